// Package buildmode distinguishes development from production builds.
//
// The default is production. Building with `-tags dev` flips the switch,
// which enables the frontend dev-server proxy and stacktraces in error
// envelopes. Development is a plain var so tests can exercise both paths.
package buildmode

// Development reports whether this binary was built for local development.
var Development = isDevBuild

// IsDevelopment returns the current mode.
func IsDevelopment() bool {
	return Development
}
