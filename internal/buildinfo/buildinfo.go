// Package buildinfo reports the version stamped into the recorder binary.
package buildinfo

import "runtime/debug"

// version is set with -ldflags "-X .../internal/buildinfo.version=v1.2.3".
var version = "dev"

// SetVersion overrides the reported version. Empty values are ignored.
func SetVersion(v string) {
	if v == "" {
		return
	}
	version = v
}

// Version returns the stamped version, the module version, or "dev".
func Version() string {
	if version != "dev" {
		return version
	}
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" && info.Main.Version != "(devel)" {
		return info.Main.Version
	}
	return "dev"
}

// Revision returns the short VCS revision the binary was built from, with a
// "+dirty" suffix for modified trees, or "" when unknown.
func Revision() string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return ""
	}
	var rev string
	var dirty bool
	for _, s := range info.Settings {
		switch s.Key {
		case "vcs.revision":
			rev = s.Value
		case "vcs.modified":
			dirty = s.Value == "true"
		}
	}
	if len(rev) > 12 {
		rev = rev[:12]
	}
	if rev != "" && dirty {
		rev += "+dirty"
	}
	return rev
}
