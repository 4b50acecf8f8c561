// Package diag provides a non-gating shell-construct diagnostic: it parses
// a command string with mvdan.cc/sh's POSIX shell parser and reports which
// constructs it contains (pipelines, subshells, command substitution,
// redirections). It never denies or alters execution — the Denylist Matcher
// is the only gate, and it is pure substring matching. This is purely an
// informational annotation for debug-level logging.
package diag

import (
	"strings"

	"mvdan.cc/sh/v3/syntax"
)

// Constructs detects shell constructs present in command. Parse failures
// (the command may not even be valid POSIX shell — it might be for a
// different shell entirely) yield an empty, non-error result: this
// diagnostic is best-effort only.
func Constructs(command string) []string {
	file, err := syntax.NewParser().Parse(strings.NewReader(command), "")
	if err != nil || file == nil {
		return nil
	}

	found := map[string]bool{}
	syntax.Walk(file, func(node syntax.Node) bool {
		switch n := node.(type) {
		case *syntax.BinaryCmd:
			switch n.Op {
			case syntax.Pipe, syntax.PipeAll:
				found["pipeline"] = true
			case syntax.AndStmt, syntax.OrStmt:
				found["conditional-chain"] = true
			}
		case *syntax.Subshell:
			found["subshell"] = true
		case *syntax.CmdSubst:
			found["command-substitution"] = true
		case *syntax.Redirect:
			found["redirection"] = true
		}
		return true
	})

	constructs := make([]string, 0, len(found))
	for name := range found {
		constructs = append(constructs, name)
	}
	return constructs
}
