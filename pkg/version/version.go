// Package version holds build information set with -ldflags
package version

import "runtime"

// Set at build time, e.g.
// -ldflags "-X github.com/NERVsystems/mevoosm/pkg/version.BuildVersion=v0.1.0"
var (
	BuildVersion = "dev"
	BuildCommit  = "unknown"
	BuildDate    = "unknown"
)

// Info returns the build information as labels
func Info() map[string]string {
	return map[string]string{
		"version":    BuildVersion,
		"commit":     BuildCommit,
		"build_date": BuildDate,
		"go_version": runtime.Version(),
	}
}

// UserAgent returns the User-Agent sent to external services
func UserAgent() string {
	return "mevoosm/" + BuildVersion
}
