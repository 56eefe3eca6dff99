// Package version holds build-time version information for the termwise
// binary. The variables are injected via -ldflags:
//
// -X github.com/termwise/termwise/internal/version.Version=v0.1.0
// -X github.com/termwise/termwise/internal/version.Commit=abc1234
// -X github.com/termwise/termwise/internal/version.Date=2026-10-01T00:00:00Z
//
// so local builds without ldflags still produce sensible output.
package version

import (
	"fmt"
	"runtime"
)

// Variables set at link time. Default to dev values.
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

// String returns a single-line human-readable version string, e.g.:
//
// termwise v0.1.0 (commit abc1234, built 2026-10-01T00:00:00Z, go1.24.0)
func String() string {
	return fmt.Sprintf("termwise %s (commit %s, built %s, %s)", Version, Commit, Date, runtime.Version())
}

// Short returns just the version tag, e.g. "v0.1.0" or "dev".
func Short() string {
	return Version
}
