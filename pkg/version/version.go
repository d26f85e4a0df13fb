// Package version derives the build identity reported in logs, the health
// endpoint, and outbound user-agent strings.
package version

import "runtime/debug"

// AppName prefixes every version string.
const AppName = "chatflow"

// commitOverride is injected with
// -ldflags "-X <module>/pkg/version.commitOverride=<sha>" for builds that
// have no VCS metadata, such as container builds from a source tarball.
var commitOverride string

// GitCommit is the short commit hash, resolved once at init. It falls back
// to "dev" when neither ldflags nor build info provide a revision (go test,
// builds outside a checkout).
var GitCommit = resolveCommit()

func resolveCommit() string {
	if commitOverride != "" {
		return shortRev(commitOverride)
	}
	if info, ok := debug.ReadBuildInfo(); ok {
		for _, s := range info.Settings {
			if s.Key == "vcs.revision" && s.Value != "" {
				return shortRev(s.Value)
			}
		}
	}
	return "dev"
}

func shortRev(rev string) string {
	if len(rev) > 8 {
		return rev[:8]
	}
	return rev
}

// Full returns "chatflow/<commit>".
func Full() string {
	return AppName + "/" + GitCommit
}
