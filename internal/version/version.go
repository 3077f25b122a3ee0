// Package version carries build metadata injected through -ldflags.
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
)

var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

// readBuildInfo is swapped in tests.
var readBuildInfo = debug.ReadBuildInfo

// resolved returns Version, falling back to the module version recorded by
// `go install` when no -ldflags value was injected.
func resolved() string {
	if Version != "dev" {
		return Version
	}
	info, ok := readBuildInfo()
	if !ok || info.Main.Version == "" || info.Main.Version == "(devel)" {
		return Version
	}
	return info.Main.Version
}

// String renders the full version line printed by `voiceassist version`.
func String() string {
	return fmt.Sprintf("voiceassist %s (commit=%s, date=%s, go=%s)", resolved(), Commit, Date, runtime.Version())
}

// UserAgent identifies voiceassist to remote APIs.
func UserAgent() string {
	return "voiceassist/" + resolved()
}
