package repl

import (
	"sort"
	"strings"

	"github.com/yndnr/meshkv/internal/core/engine"
)

// serverCommands are handled by the RESP listener rather than the engine.
var serverCommands = []string{
	"CLIENT", "DISCARD", "ECHO", "EXEC", "MULTI", "PING",
	"PUBLISH", "PUBSUB", "SELECT", "UNWATCH", "WATCH",
}

var localCommands = []string{"CONNECT", "DISCONNECT", "EXIT", "HELP", "HISTORY", "QUIT"}

// Completer suggests command names.
type Completer struct {
	commands []string
}

// NewCompleter creates a new Completer.
func NewCompleter() *Completer {
	seen := make(map[string]bool)
	var cmds []string
	for _, group := range [][]string{engine.CommandNames(), serverCommands, localCommands} {
		for _, c := range group {
			if !seen[c] {
				seen[c] = true
				cmds = append(cmds, c)
			}
		}
	}
	sort.Strings(cmds)
	return &Completer{commands: cmds}
}

// Complete returns the commands starting with prefix, ignoring case.
func (c *Completer) Complete(prefix string) []string {
	prefix = strings.ToUpper(prefix)
	var out []string
	for _, cmd := range c.commands {
		if strings.HasPrefix(cmd, prefix) {
			out = append(out, cmd)
		}
	}
	return out
}
