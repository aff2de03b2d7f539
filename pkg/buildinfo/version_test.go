package buildinfo

import (
	"runtime/debug"
	"strings"
	"testing"
)

func TestFromBuildInfo(t *testing.T) {
	stamped := &debug.BuildInfo{
		Main: debug.Module{Version: "v0.3.0"},
		Settings: []debug.BuildSetting{
			{Key: "vcs.revision", Value: "0123456789abcdef0123"},
			{Key: "vcs.time", Value: "2026-01-02T03:04:05Z"},
		},
	}
	tests := []struct {
		name string
		in   Info
		bi   *debug.BuildInfo
		want Info
	}{
		{
			name: "unstamped takes toolchain values",
			in:   Info{Version: "dev", Commit: "none", Date: "unknown"},
			bi:   stamped,
			want: Info{Version: "v0.3.0", Commit: "0123456789abcdef0123", Date: "2026-01-02T03:04:05Z"},
		},
		{
			name: "ldflags win",
			in:   Info{Version: "v1.0.0", Commit: "abc", Date: "today"},
			bi:   stamped,
			want: Info{Version: "v1.0.0", Commit: "abc", Date: "today"},
		},
		{
			name: "devel module keeps dev",
			in:   Info{Version: "dev", Commit: "none", Date: "unknown"},
			bi:   &debug.BuildInfo{Main: debug.Module{Version: "(devel)"}},
			want: Info{Version: "dev", Commit: "none", Date: "unknown"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := fromBuildInfo(tt.in, tt.bi); got != tt.want {
				t.Errorf("fromBuildInfo = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestInfoString(t *testing.T) {
	i := Info{Version: "v0.3.0", Commit: "0123456789abcdef", Date: "today", GoVersion: "go1.24.0"}
	if got := i.String(); !strings.Contains(got, "commit: 0123456789ab\n") || !strings.HasSuffix(got, "go: go1.24.0") {
		t.Errorf("String = %q", got)
	}
	if !strings.HasPrefix(UserAgent(), "ercanvas/") {
		t.Errorf("UserAgent = %q", UserAgent())
	}
}
