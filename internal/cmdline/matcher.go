package cmdline

import (
	"path/filepath"
	"strings"

	shellwords "github.com/mattn/go-shellwords"
)

// Matcher decides whether a raw command line belongs to the managed class:
// an invocation of the VPN client binary with its connect subcommand.
type Matcher struct {
	// Binary is the base name of the managed executable (e.g. "ajiasu").
	Binary string
	// Subcommand is the literal first argument that starts a connection.
	Subcommand string
}

// Matches tokenizes cmdline with shell-quoting rules and requires the base
// name of token 0 to equal Binary and token 1 to equal Subcommand. This
// deliberately rejects other subcommands, shell-wrapped invocations (token 0
// would be the shell), and unrelated processes that merely mention the binary
// in arguments. Unparseable command lines fall back to whitespace splitting.
func (m Matcher) Matches(cmdline string) bool {
	tokens, err := shellwords.Parse(cmdline)
	if err != nil {
		tokens = strings.Fields(cmdline)
	}
	if len(tokens) < 2 {
		return false
	}
	return filepath.Base(tokens[0]) == m.Binary && tokens[1] == m.Subcommand
}

// MatchesArgv applies the same rule to an already-split argument vector, as
// produced by /proc/<pid>/cmdline or gopsutil.
func (m Matcher) MatchesArgv(argv []string) bool {
	if len(argv) < 2 {
		return false
	}
	return filepath.Base(argv[0]) == m.Binary && argv[1] == m.Subcommand
}
