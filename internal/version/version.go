// Package version carries the build identity of the cypherrag binary.
package version

// Overridden at build time with -ldflags "-X .../internal/version.Version=...".
var (
	Version = "dev"
	Commit  = "unknown"
	Date    = "unknown"
)
