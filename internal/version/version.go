package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
)

// Set at build time:
//
//	go build -ldflags "-X github.com/valpere/geopogoda/internal/version.Version=0.2.0 \
//	  -X github.com/valpere/geopogoda/internal/version.GitCommit=$(git rev-parse HEAD)"
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildTime = "unknown"
	GoVersion = runtime.Version()
)

const appName = "GeoPogoda"

// Info represents complete version information
type Info struct {
	Version   string `json:"version"`
	GitCommit string `json:"git_commit"`
	BuildTime string `json:"build_time"`
	GoVersion string `json:"go_version"`
	Modified  bool   `json:"modified,omitempty"`
}

// GetInfo returns version information. Commit and build time missing from
// ldflags are taken from the VCS stamp the toolchain embeds, when present.
func GetInfo() Info {
	info := Info{
		Version:   Version,
		GitCommit: GitCommit,
		BuildTime: BuildTime,
		GoVersion: GoVersion,
	}

	if bi, ok := debug.ReadBuildInfo(); ok {
		applyBuildSettings(&info, bi.Settings)
	}

	return info
}

func applyBuildSettings(info *Info, settings []debug.BuildSetting) {
	for _, s := range settings {
		switch s.Key {
		case "vcs.revision":
			if info.GitCommit == "unknown" && s.Value != "" {
				info.GitCommit = s.Value
			}
		case "vcs.time":
			if info.BuildTime == "unknown" && s.Value != "" {
				info.BuildTime = s.Value
			}
		case "vcs.modified":
			info.Modified = s.Value == "true"
		}
	}
}

func (i Info) String() string {
	return fmt.Sprintf("%s v%s\nCommit: %s\nBuilt: %s\nGo: %s",
		appName, i.Version, i.commit(), i.BuildTime, i.GoVersion)
}

// Short returns "v<version> (<short commit>)".
func (i Info) Short() string {
	commit := i.GitCommit
	if len(commit) > 7 {
		commit = commit[:7]
	}
	if i.Modified {
		commit += "-dirty"
	}
	return fmt.Sprintf("v%s (%s)", i.Version, commit)
}

func (i Info) commit() string {
	if i.Modified {
		return i.GitCommit + "-dirty"
	}
	return i.GitCommit
}

// UserAgent identifies the bot to upstream providers, e.g. Nominatim.
func UserAgent() string {
	return fmt.Sprintf("%s-Weather-Bot/%s", appName, Version)
}
