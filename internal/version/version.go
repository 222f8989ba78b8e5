// Package version reports the SDK version sent to the backend and printed by
// the CLI.
package version

import (
	"fmt"
	"runtime/debug"
)

// SDK is the wire version reported in every register/update request. It only
// changes when the request format changes.
const SDK = "3.2.0"

// Commit can be set at build time via ldflags:
//
//	go build -ldflags="-X github.com/localz/localzpush-go/internal/version.Commit=abc123"
//
// If not set it is read from the VCS stamp in the build info, or "unknown".
var Commit = ""

func init() {
	if Commit == "" {
		Commit = commitFromBuildInfo()
	}
	if Commit == "" {
		Commit = "unknown"
	}
}

func commitFromBuildInfo() string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return ""
	}

	var revision, modified string
	for _, setting := range info.Settings {
		switch setting.Key {
		case "vcs.revision":
			revision = setting.Value
		case "vcs.modified":
			modified = setting.Value
		}
	}
	if revision == "" {
		return ""
	}
	if len(revision) > 7 {
		revision = revision[:7]
	}
	if modified == "true" {
		revision += "-dirty"
	}
	return revision
}

// Full returns the SDK version including commit
func Full() string {
	return fmt.Sprintf("%s (commit: %s)", SDK, Commit)
}
