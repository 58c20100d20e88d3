// Package versions reports the build information of the binary.
package versions

import (
	"fmt"
	"runtime"
	"runtime/debug"

	"github.com/Masterminds/semver/v3"
)

// Build information, set at link time:
//
//	go build -ldflags "-X github.com/stitchflow-website/dirsync/internal/versions.Version=v1.2.0"
var (
	Version   = "dev"
	Commit    = ""
	BuildDate = ""
)

// VersionInfo describes the running binary
type VersionInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildDate string `json:"build_date"`
	GoVersion string `json:"go_version"`
	Platform  string `json:"platform"`
}

// GetVersionInfo returns the build information of the running binary.
// A commit not set at link time is taken from the VCS stamp of the build.
func GetVersionInfo() VersionInfo {
	info := VersionInfo{
		Version:   Normalize(Version),
		Commit:    Commit,
		BuildDate: BuildDate,
		GoVersion: runtime.Version(),
		Platform:  fmt.Sprintf("%s/%s", runtime.GOOS, runtime.GOARCH),
	}

	if info.Commit == "" || info.BuildDate == "" {
		if bi, ok := debug.ReadBuildInfo(); ok {
			for _, s := range bi.Settings {
				switch {
				case s.Key == "vcs.revision" && info.Commit == "":
					info.Commit = s.Value
				case s.Key == "vcs.time" && info.BuildDate == "":
					info.BuildDate = s.Value
				}
			}
		}
	}
	return info
}

// Normalize returns v in canonical "vMAJOR.MINOR.PATCH" form when it is a
// semantic version, and v unchanged otherwise.
func Normalize(v string) string {
	parsed, err := semver.NewVersion(v)
	if err != nil {
		return v
	}
	return "v" + parsed.String()
}
