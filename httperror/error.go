// Package httperror defines the application error taxonomy and its mapping
// onto HTTP responses. Handlers return plain errors; the boundary converts
// them to a JSON envelope of the form {"message": ..., "status": ...},
// extended with a "stacktrace" field in development builds.
package httperror

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/creamcroissant/servekit/internal/buildmode"
)

// Kind classifies an application error for status-code mapping.
type Kind int

const (
	// KindInternal is an unspecified internal failure.
	KindInternal Kind = iota
	// KindWrapped carries an opaque underlying error verbatim.
	KindWrapped
	// KindApp is a general application failure surfaced to the caller.
	KindApp
	// KindHeaderParse indicates a request header could not be parsed.
	KindHeaderParse
	// KindAssetNotFound indicates an embedded asset lookup missed.
	KindAssetNotFound
)

// Error is the taxonomy's concrete error type.
type Error struct {
	kind  Kind
	msg   string
	cause error
	stack stack
}

// Internal wraps err as an unspecified internal failure (HTTP 500).
func Internal(err error) *Error {
	return &Error{kind: KindInternal, cause: err, stack: capture(1)}
}

// Wrap carries err through unchanged, mapped to HTTP 500.
func Wrap(err error) *Error {
	return &Error{kind: KindWrapped, cause: err, stack: capture(1)}
}

// New builds a general application failure (HTTP 400).
func New(msg string) *Error {
	return &Error{kind: KindApp, msg: msg, stack: capture(1)}
}

// Errorf builds a general application failure from a format string.
func Errorf(format string, args ...any) *Error {
	return &Error{kind: KindApp, msg: fmt.Sprintf(format, args...), stack: capture(1)}
}

// HeaderParse marks a header-parse failure (HTTP 400).
func HeaderParse(err error) *Error {
	return &Error{kind: KindHeaderParse, cause: err, stack: capture(1)}
}

// AssetNotFound reports a missing embedded asset (HTTP 500).
func AssetNotFound(name string) *Error {
	return &Error{kind: KindAssetNotFound, msg: name, stack: capture(1)}
}

// From coerces an arbitrary error into the taxonomy. An *Error passes
// through untouched; anything else becomes a general application failure.
func From(err error) *Error {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr
	}
	return &Error{kind: KindApp, cause: err, stack: capture(1)}
}

// Kind returns the error's classification.
func (e *Error) Kind() Kind {
	return e.kind
}

func (e *Error) Error() string {
	switch e.kind {
	case KindInternal:
		return "an unspecified internal error occurred"
	case KindWrapped:
		if e.cause != nil {
			return e.cause.Error()
		}
		return "an unspecified internal error occurred"
	case KindHeaderParse:
		return fmt.Sprintf("unable to parse headers: %v", e.cause)
	case KindAssetNotFound:
		return fmt.Sprintf("failed to find %s", e.msg)
	default:
		if e.msg != "" {
			return fmt.Sprintf("an error has occurred: %s", e.msg)
		}
		return fmt.Sprintf("an error has occurred: %v", e.cause)
	}
}

// Unwrap exposes the underlying cause for errors.Is / errors.As.
func (e *Error) Unwrap() error {
	return e.cause
}

// Status maps the error onto an HTTP status code. Internal failures,
// opaque wrapped errors, and missing assets map to 500; everything else
// is the caller's fault and maps to 400.
func (e *Error) Status() int {
	switch e.kind {
	case KindInternal, KindWrapped, KindAssetNotFound:
		return http.StatusInternalServerError
	default:
		return http.StatusBadRequest
	}
}

// envelope is the wire shape of every non-2xx response the taxonomy emits.
type envelope struct {
	Message    string `json:"message"`
	Status     int    `json:"status"`
	Stacktrace string `json:"stacktrace,omitempty"`
}

// Write renders err at the HTTP boundary. Non-taxonomy errors are coerced
// first, so handlers may return anything that implements error.
func Write(w http.ResponseWriter, logger *slog.Logger, err error) {
	appErr := From(err)
	if logger != nil {
		logger.Error("request failed", "error", appErr.Error(), "status", appErr.Status())
	}

	env := envelope{Message: appErr.Error(), Status: appErr.Status()}
	if buildmode.IsDevelopment() {
		env.Stacktrace = appErr.stack.String()
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(env.Status)
	if encodeErr := json.NewEncoder(w).Encode(env); encodeErr != nil {
		slog.Warn("failed to encode error envelope", "error", encodeErr)
	}
}
