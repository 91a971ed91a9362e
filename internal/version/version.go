package version

import (
	"runtime/debug"
)

var (
	// Version is the release version (set via -ldflags).
	Version = ""
	// Commit is the git commit hash (set via -ldflags).
	Commit = ""
	// BuildTime is the build timestamp (set via -ldflags).
	BuildTime = ""
)

// devel is reported when neither ldflags nor the module build info carry a version.
const devel = "devel"

type Info struct {
	Version   string
	Commit    string
	BuildTime string
	Modified  bool
}

// readBuildInfo is swapped out in tests.
var readBuildInfo = debug.ReadBuildInfo

// Resolve combines the ldflags values with the build info embedded by the Go
// toolchain. Values set through ldflags win.
func Resolve() Info {
	resolved := Info{
		Version:   Version,
		Commit:    Commit,
		BuildTime: BuildTime,
	}

	if bi, ok := readBuildInfo(); ok {
		if resolved.Version == "" && bi.Main.Version != "" && bi.Main.Version != "(devel)" {
			resolved.Version = bi.Main.Version
		}
		for _, s := range bi.Settings {
			switch s.Key {
			case "vcs.revision":
				if resolved.Commit == "" {
					resolved.Commit = s.Value
				}
			case "vcs.time":
				if resolved.BuildTime == "" {
					resolved.BuildTime = s.Value
				}
			case "vcs.modified":
				resolved.Modified = s.Value == "true"
			}
		}
	}

	if resolved.Version == "" {
		resolved.Version = devel
	}
	return resolved
}

func String() string {
	info := Resolve()
	if info.Commit == "" {
		return info.Version
	}
	s := info.Version + " (" + shortCommit(info.Commit)
	if info.Modified {
		s += ", modified"
	}
	return s + ")"
}

func shortCommit(commit string) string {
	if len(commit) <= 12 {
		return commit
	}
	return commit[:12]
}
