//go:build !dev

package buildmode

const isDevBuild = false
