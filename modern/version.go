package modern

import "runtime/debug"

// Version is recorded as tool_version in calibration files. Set it at build
// time with -ldflags "-X github.com/CK6170/Leocal-go/modern.Version=...";
// otherwise the VCS revision embedded by the go tool is used.
var Version string

func ToolVersion() string {
	if Version != "" {
		return Version
	}
	bi, ok := debug.ReadBuildInfo()
	if !ok {
		return "devel"
	}
	rev, dirty := "", false
	for _, s := range bi.Settings {
		switch s.Key {
		case "vcs.revision":
			rev = s.Value
		case "vcs.modified":
			dirty = s.Value == "true"
		}
	}
	if rev == "" {
		return bi.Main.Version
	}
	if dirty {
		rev += "+dirty"
	}
	return rev
}
