// Package version holds build-time version information injected via ldflags.
package version

import "fmt"

// These variables are set at build time via -ldflags.
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

// UserAgent is the default User-Agent header sent with health checks.
func UserAgent() string {
	return "pingwatch/" + Version
}

// String formats the build information for the version command.
func String() string {
	return fmt.Sprintf("pingwatch %s (commit %s, built %s)", Version, Commit, Date)
}
