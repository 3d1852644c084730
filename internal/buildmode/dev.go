//go:build dev

package buildmode

const isDevBuild = true
