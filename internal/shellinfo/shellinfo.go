// Package shellinfo implements Shell Discovery: a one-shot, startup-time
// scan of well-known shell locations plus the user's $SHELL, each
// version-probed the same way the Binary Probe Engine probes catalog
// programs. The result is cached for the lifetime of the process.
package shellinfo

import (
	"os"
	"path/filepath"
	"time"

	"github.com/cairn-tools/enhancedterm/internal/probe"
)

// Shell is a discovered shell binary.
type Shell struct {
	Name    string
	Path    string
	Version string
}

// commonShells mirrors the well-known install locations checked at startup.
// Order matters only for de-duplication by name: the first path found for a
// given name wins.
var commonShells = []struct{ path, name string }{
	{"/bin/bash", "bash"},
	{"/usr/bin/bash", "bash"},
	{"/bin/zsh", "zsh"},
	{"/usr/bin/zsh", "zsh"},
	{"/usr/local/bin/zsh", "zsh"},
	{"/bin/fish", "fish"},
	{"/usr/bin/fish", "fish"},
	{"/usr/local/bin/fish", "fish"},
	{"/bin/sh", "sh"},
	{"/usr/bin/sh", "sh"},
	{"/bin/dash", "dash"},
	{"/bin/ksh", "ksh"},
	{"/bin/tcsh", "tcsh"},
	{"/bin/csh", "csh"},
}

const versionTimeout = 1500 * time.Millisecond

// Discover scans commonShells and the $SHELL environment variable, probing
// each distinct shell's version. It is meant to run exactly once, at
// process startup, with its result cached by the caller.
func Discover() []Shell {
	var shells []Shell
	seenNames := make(map[string]bool)

	for _, candidate := range commonShells {
		if seenNames[candidate.name] {
			continue
		}
		if info, err := os.Stat(candidate.path); err != nil || info.IsDir() {
			continue
		}
		seenNames[candidate.name] = true
		version, _ := probe.Version(candidate.path, versionTimeout)
		shells = append(shells, Shell{Name: candidate.name, Path: candidate.path, Version: version})
	}

	if userShell := os.Getenv("SHELL"); userShell != "" && !hasPath(shells, userShell) && !seenNames[filepath.Base(userShell)] {
		version, _ := probe.Version(userShell, versionTimeout)
		shells = append(shells, Shell{Name: filepath.Base(userShell), Path: userShell, Version: version})
	}

	return shells
}

func hasPath(shells []Shell, path string) bool {
	for _, s := range shells {
		if s.Path == path {
			return true
		}
	}
	return false
}
