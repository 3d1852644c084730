package httperror

import (
	"runtime"
	"strconv"
	"strings"
)

const maxStackDepth = 32

// stack holds the program counters captured when an Error was built.
type stack []uintptr

// capture records the call stack, skipping the constructor frames.
func capture(skip int) stack {
	pcs := make([]uintptr, maxStackDepth)
	n := runtime.Callers(skip+2, pcs)
	return stack(pcs[:n])
}

// String renders the stack as "func\n\tfile:line" pairs, one frame per line,
// the same layout runtime.Stack uses.
func (s stack) String() string {
	if len(s) == 0 {
		return ""
	}
	var b strings.Builder
	frames := runtime.CallersFrames(s)
	for {
		frame, more := frames.Next()
		if frame.Function != "" {
			b.WriteString(frame.Function)
			b.WriteString("\n\t")
			b.WriteString(frame.File)
			b.WriteString(":")
			b.WriteString(strconv.Itoa(frame.Line))
			b.WriteString("\n")
		}
		if !more {
			break
		}
	}
	return strings.TrimRight(b.String(), "\n")
}
