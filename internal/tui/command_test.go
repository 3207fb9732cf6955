package tui

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseCommand(t *testing.T) {
	tests := []struct {
		in   string
		want Command
	}{
		{"add npub1abc", Command{Name: CmdAdd, Args: "npub1abc"}},
		{"  ADD   npub1abc  ", Command{Name: CmdAdd, Args: "npub1abc"}},
		{":peer alice smith", Command{Name: CmdPeer, Args: "alice smith"}},
		{"chat bob", Command{Name: CmdPeer, Args: "bob"}},
		{"r", Command{Name: CmdRefresh}},
		{"q", Command{Name: CmdQuit}},
		{"h", Command{Name: CmdHelp}},
		{"restart", Command{Name: CmdRestart}},
		{"bogus x", Command{Name: "bogus", Args: "x"}},
		{"", Command{Name: ""}},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseCommand(tt.in))
		})
	}
}

func TestCommandKnown(t *testing.T) {
	assert.True(t, ParseCommand("keys").Known())
	assert.True(t, ParseCommand("ls").Known())
	assert.False(t, ParseCommand("search foo").Known())
	assert.False(t, ParseCommand("").Known())
}
