// Package buildinfo reports the version of the running binary.
//
// Release builds inject values with ldflags:
//
//	go build -ldflags "-X github.com/yndnr/meshkv/internal/infra/buildinfo.Version=v1.0.0"
//
// Fields left unset fall back to the module build information the Go
// toolchain embeds (VCS revision and time, toolchain version).
package buildinfo

import (
	"runtime"
	"runtime/debug"
	"sync"
)

// Build-time variables (set via ldflags).
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
	GoVersion = "unknown"
)

// Info contains build information.
type Info struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"build_time"`
	GoVersion string `json:"go_version"`
}

var (
	once sync.Once
	info Info
)

// Get returns the build information.
func Get() Info {
	once.Do(func() {
		bi, _ := debug.ReadBuildInfo()
		info = resolve(bi)
	})
	return info
}

func resolve(bi *debug.BuildInfo) Info {
	out := Info{Version: Version, Commit: Commit, BuildTime: BuildTime, GoVersion: GoVersion}
	if out.GoVersion == "unknown" {
		out.GoVersion = runtime.Version()
	}
	if bi == nil {
		return out
	}
	if out.Version == "dev" && bi.Main.Version != "" && bi.Main.Version != "(devel)" {
		out.Version = bi.Main.Version
	}
	for _, s := range bi.Settings {
		switch {
		case s.Key == "vcs.revision" && out.Commit == "unknown":
			out.Commit = s.Value
			if len(out.Commit) > 12 {
				out.Commit = out.Commit[:12]
			}
		case s.Key == "vcs.time" && out.BuildTime == "unknown":
			out.BuildTime = s.Value
		}
	}
	return out
}

// String returns a formatted version string.
func String() string {
	i := Get()
	return i.Version + " (" + i.Commit + ") built at " + i.BuildTime
}
