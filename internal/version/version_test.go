package version

import (
	"runtime"
	"testing"
)

func TestFormatVersion(t *testing.T) {
	tests := []struct {
		version, commit, date string
		want                  string
	}{
		{"dev", "none", "unknown", "dev (development build)"},
		{"v0.3.0", "a1b2c3d", "2026-10-01", "v0.3.0 (commit: a1b2c3d, built: 2026-10-01)"},
	}
	for _, tt := range tests {
		if got := FormatVersion(tt.version, tt.commit, tt.date); got != tt.want {
			t.Errorf("FormatVersion(%q) = %q, want %q", tt.version, got, tt.want)
		}
	}
}

func TestGetWithLdflags(t *testing.T) {
	saved := [3]string{Version, Commit, Date}
	defer func() { Version, Commit, Date = saved[0], saved[1], saved[2] }()

	Version, Commit, Date = "v1.2.3", "deadbee", "2026-09-30"
	info := Get()
	if info.Version != "v1.2.3" || info.Commit != "deadbee" || info.Date != "2026-09-30" {
		t.Errorf("ldflags values should win: %+v", info)
	}
	if info.GoVersion != runtime.Version() {
		t.Errorf("unexpected Go version %q", info.GoVersion)
	}
	if GetVersion() != "v1.2.3 (commit: deadbee, built: 2026-09-30)" {
		t.Errorf("unexpected GetVersion %q", GetVersion())
	}
}

func TestGetDev(t *testing.T) {
	info := Get()
	if info.Version == "" || info.Commit == "" || info.Date == "" {
		t.Errorf("dev build info should never be empty: %+v", info)
	}
}
