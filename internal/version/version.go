// Package version identifies the cellwatch build.
//
// Release builds stamp it with ldflags:
//
//	go build -ldflags "-X github.com/muurk/cellwatch/internal/version.Version=v0.4.0 \
//	    -X github.com/muurk/cellwatch/internal/version.Commit=$(git rev-parse --short HEAD)" \
//	    ./cmd/cellwatch
//
// Anything left unset is filled from the VCS stamp the Go toolchain embeds
// in binaries built inside a checkout. ToolVersion is written into the
// metadata of every capture and advertised over mDNS.
package version

import (
	"fmt"
	"runtime/debug"
	"strings"
	"time"
)

var (
	// Version is the release tag, or dev-YYYYMMDD for untagged builds.
	Version = ""
	// Commit is the short commit hash, suffixed -dirty for modified trees.
	Commit = ""
	// Date is the commit date, YYYY-MM-DD.
	Date = ""
)

func init() {
	if info, ok := debug.ReadBuildInfo(); ok {
		fillFromBuild(info.Settings)
	}
	if Version == "" {
		Version = "dev"
	}
	if Commit == "" {
		Commit = "unknown"
	}
}

// fillFromBuild sets what ldflags left empty from the vcs.* build settings.
func fillFromBuild(settings []debug.BuildSetting) {
	vcs := make(map[string]string, len(settings))
	for _, s := range settings {
		vcs[s.Key] = s.Value
	}

	if rev := vcs["vcs.revision"]; Commit == "" && rev != "" {
		Commit = rev[:min(len(rev), 7)]
		if vcs["vcs.modified"] == "true" {
			Commit += "-dirty"
		}
	}
	if t, err := time.Parse(time.RFC3339, vcs["vcs.time"]); Date == "" && err == nil {
		Date = t.UTC().Format(time.DateOnly)
	}
	if Version == "" && Date != "" {
		Version = "dev-" + strings.ReplaceAll(Date, "-", "")
	}
}

// Full returns the version with its commit and, when known, its date.
func Full() string {
	if Date == "" {
		return fmt.Sprintf("%s (commit: %s)", Version, Commit)
	}
	return fmt.Sprintf("%s (commit: %s, %s)", Version, Commit, Date)
}

// ToolVersion is the version recorded in capture metadata and mDNS TXT
// records. Untagged builds carry the commit as well, so two dev builds of
// the same day stay distinguishable.
func ToolVersion() string {
	if strings.HasPrefix(Version, "dev") {
		return Version + "+" + Commit
	}
	return Version
}
