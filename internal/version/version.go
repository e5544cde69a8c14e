// Package version exposes the build metadata logged at startup.
package version

// Injected via -ldflags "-X ..." by the release build; the zero values mark
// a local development build.
var (
	Version = "dev"
	Commit  = "unknown"
	Date    = "unknown"
)
