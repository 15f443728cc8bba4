package version

import "runtime/debug"

// version is overridden with -ldflags "-X github.com/vinodismyname/branchrollup/pkg/version.version=v1.2.3".
var version = "dev"

// Version returns the module version recorded by go install, the ldflags
// value, or "dev" for local builds.
func Version() string {
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Sum != "" {
		return info.Main.Version
	}
	return version
}

// Revision returns the short VCS revision the binary was built from, with a
// "+dirty" suffix for modified trees. It is empty when unknown.
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

// Set assigns the version when ldflags are not provided (e.g. tests).
func Set(v string) {
	if v != "" {
		version = v
	}
}
