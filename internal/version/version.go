// Package version holds build-time identifiers injected via ldflags.
package version

// Version, Commit, and BuildDate are overridden at build time with
// -ldflags "-X github.com/aristath/marketcore/internal/version.Version=...".
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildDate = "unknown"
)
