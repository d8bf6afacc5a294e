package version

import (
	"runtime/debug"
	"strings"
	"testing"
)

// stamp replaces the build variables for one test.
func stamp(t *testing.T, version, commit, date string) {
	t.Helper()
	v, c, d := Version, Commit, Date
	t.Cleanup(func() { Version, Commit, Date = v, c, d })
	Version, Commit, Date = version, commit, date
}

func TestVersionPopulated(t *testing.T) {
	if Version == "" {
		t.Error("Version should never be empty after init")
	}
	if Commit == "" {
		t.Error("Commit should never be empty after init")
	}
}

func TestFillFromBuild(t *testing.T) {
	settings := []debug.BuildSetting{
		{Key: "vcs.revision", Value: "0123456789abcdef"},
		{Key: "vcs.time", Value: "2024-05-01T22:30:00-04:00"},
		{Key: "vcs.modified", Value: "true"},
	}

	tests := []struct {
		name        string
		version     string
		commit      string
		wantVersion string
		wantCommit  string
		wantDate    string
	}{
		{"unstamped", "", "", "dev-20240502", "0123456-dirty", "2024-05-02"},
		{"ldflags win", "v0.4.0", "feedbee", "v0.4.0", "feedbee", "2024-05-02"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stamp(t, tt.version, tt.commit, "")
			fillFromBuild(settings)
			if Version != tt.wantVersion || Commit != tt.wantCommit || Date != tt.wantDate {
				t.Errorf("got %q %q %q, want %q %q %q", Version, Commit, Date, tt.wantVersion, tt.wantCommit, tt.wantDate)
			}
		})
	}

	t.Run("no vcs stamp", func(t *testing.T) {
		stamp(t, "", "", "")
		fillFromBuild(nil)
		if Version != "" || Commit != "" || Date != "" {
			t.Errorf("got %q %q %q, want all empty", Version, Commit, Date)
		}
	})
}

func TestFull(t *testing.T) {
	stamp(t, "v0.4.0", "abc1234", "")
	if got := Full(); got != "v0.4.0 (commit: abc1234)" {
		t.Errorf("Full() = %q", got)
	}
	Date = "2024-05-02"
	if got := Full(); !strings.HasSuffix(got, ", 2024-05-02)") {
		t.Errorf("Full() = %q, want the date", got)
	}
}

func TestToolVersion(t *testing.T) {
	stamp(t, "v1.2.3", "abc1234", "")
	if got := ToolVersion(); got != "v1.2.3" {
		t.Errorf("ToolVersion() = %q, want v1.2.3", got)
	}

	Version = "dev-20240501"
	if got := ToolVersion(); got != "dev-20240501+abc1234" {
		t.Errorf("ToolVersion() = %q, want dev build with commit", got)
	}
}
