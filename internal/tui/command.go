package tui

import "strings"

// Command names understood by the prompt.
const (
	CmdAdd     = "add"
	CmdPeer    = "peer"
	CmdPeers   = "peers"
	CmdRefresh = "refresh"
	CmdRestart = "restart"
	CmdKeys    = "keys"
	CmdHelp    = "help"
	CmdQuit    = "quit"
)

var aliases = map[string]string{
	"a":    CmdAdd,
	"p":    CmdPeer,
	"chat": CmdPeer,
	"ls":   CmdPeers,
	"r":    CmdRefresh,
	"key":  CmdKeys,
	"h":    CmdHelp,
	"q":    CmdQuit,
	"q!":   CmdQuit,
}

// Command represents a parsed command.
type Command struct {
	Name string
	Args string
}

// ParseCommand parses a command string (without the leading ':') and
// resolves aliases to their canonical name.
func ParseCommand(input string) Command {
	input = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(input), ":"))
	parts := strings.SplitN(input, " ", 2)
	cmd := Command{Name: strings.ToLower(parts[0])}
	if canonical, ok := aliases[cmd.Name]; ok {
		cmd.Name = canonical
	}
	if len(parts) > 1 {
		cmd.Args = strings.TrimSpace(parts[1])
	}
	return cmd
}

// Known reports whether the command has a handler.
func (c Command) Known() bool {
	switch c.Name {
	case CmdAdd, CmdPeer, CmdPeers, CmdRefresh, CmdRestart, CmdKeys, CmdHelp, CmdQuit:
		return true
	}
	return false
}
