// Package version reports the build stamped into the binaries
package version

import "fmt"

// BuildInfo describes a build
type BuildInfo struct {
	Version string `json:"version"`
	Commit  string `json:"commit"`
	Date    string `json:"date"`
}

// set with -ldflags "-X 'inquirysync/internal/core/version.version=v0.1.0'"
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// Info returns the stamped build information
func Info() BuildInfo {
	return BuildInfo{Version: version, Commit: commit, Date: date}
}

func (b BuildInfo) String() string {
	return fmt.Sprintf("%s (commit %s, built %s)", b.Version, b.Commit, b.Date)
}
