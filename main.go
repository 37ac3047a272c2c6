// Command pinmap manages a local-first set of map locations and keeps it in
// step with the locations API.
package main

import (
	"runtime/debug"

	"github.com/marcus/pinmap/cmd"
)

// Version is stamped by release builds with -ldflags "-X main.Version=v1.2.3".
var Version = ""

func main() {
	info, _ := debug.ReadBuildInfo()
	cmd.SetVersion(resolveVersion(Version, info))
	cmd.Execute()
}

// resolveVersion picks the stamped version, then the module version recorded
// by go install, then a dev string built from the VCS stamp, e.g.
// "dev-3f2a9c1d0b7e-modified".
func resolveVersion(stamped string, info *debug.BuildInfo) string {
	if stamped != "" {
		return stamped
	}
	if info == nil {
		return "dev"
	}
	if v := info.Main.Version; v != "" && v != "(devel)" {
		return v
	}

	vcs := make(map[string]string, len(info.Settings))
	for _, s := range info.Settings {
		vcs[s.Key] = s.Value
	}
	rev := vcs["vcs.revision"]
	if rev == "" {
		return "dev"
	}
	version := "dev-" + rev[:min(len(rev), 12)]
	if vcs["vcs.modified"] == "true" {
		version += "-modified"
	}
	return version
}
