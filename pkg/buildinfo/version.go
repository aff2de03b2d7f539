// Package buildinfo reports which ercanvas build is running.
//
// Release builds stamp the values with ldflags:
//
//	go build -ldflags "-X github.com/matzehuels/ercanvas/pkg/buildinfo.Version=v0.3.0 \
//	    -X github.com/matzehuels/ercanvas/pkg/buildinfo.Commit=$(git rev-parse HEAD)"
//
// Builds without ldflags (go install, go run) fall back to the module
// version and VCS stamp embedded by the Go toolchain.
package buildinfo

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"sync"
)

// Set via ldflags.
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

// Info is the build description served by /healthz and printed by --version.
type Info struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	Date      string `json:"date"`
	GoVersion string `json:"goVersion"`
}

var (
	once    sync.Once
	current Info
)

// Current returns the build info, filling unstamped fields from the
// toolchain's embedded build settings.
func Current() Info {
	once.Do(func() {
		current = Info{Version: Version, Commit: Commit, Date: Date, GoVersion: runtime.Version()}
		bi, ok := debug.ReadBuildInfo()
		if !ok {
			return
		}
		current = fromBuildInfo(current, bi)
	})
	return current
}

func fromBuildInfo(info Info, bi *debug.BuildInfo) Info {
	if info.Version == "dev" && bi.Main.Version != "" && bi.Main.Version != "(devel)" {
		info.Version = bi.Main.Version
	}
	for _, s := range bi.Settings {
		switch {
		case s.Key == "vcs.revision" && info.Commit == "none":
			info.Commit = s.Value
		case s.Key == "vcs.time" && info.Date == "unknown":
			info.Date = s.Value
		}
	}
	return info
}

// ShortCommit returns the first 12 characters of the commit hash.
func (i Info) ShortCommit() string {
	if len(i.Commit) > 12 {
		return i.Commit[:12]
	}
	return i.Commit
}

// String returns the multi-line form used by --version.
func (i Info) String() string {
	return fmt.Sprintf("version: %s\ncommit: %s\nbuilt: %s\ngo: %s", i.Version, i.ShortCommit(), i.Date, i.GoVersion)
}

// Template returns the cobra version template.
func Template() string {
	return "{{.Name}} " + Current().String() + "\n"
}

// UserAgent returns the User-Agent sent to the text service.
func UserAgent() string {
	return fmt.Sprintf("ercanvas/%s (%s)", Current().Version, runtime.Version())
}
