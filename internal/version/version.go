// Package version provides build-time version information.
//
// Variables are set at build time via ldflags:
//
//	go build -ldflags "-X github.com/rickgao/updown/internal/version.Version=1.0.0 \
//	                   -X github.com/rickgao/updown/internal/version.Commit=$(git rev-parse --short HEAD) \
//	                   -X github.com/rickgao/updown/internal/version.BuildTime=$(date -u +%Y-%m-%dT%H:%M:%SZ)"
package version

import "fmt"

// Build-time variables (set via ldflags)
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

// Info is the version triple reported by /health and the startup log line.
type Info struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"build_time"`
}

// Get returns the current build information.
func Get() Info {
	return Info{Version: Version, Commit: Commit, BuildTime: BuildTime}
}

// String returns a formatted version string.
func String() string {
	return fmt.Sprintf("updown %s (%s) built %s", Version, Commit, BuildTime)
}
