package keys

import (
	"testing"

	"github.com/gdamore/tcell/v2"
	"github.com/matheus3301/nchat/internal/tui/ui"
	"github.com/stretchr/testify/assert"
)

func runeEvent(r rune) *tcell.EventKey {
	return tcell.NewEventKey(tcell.KeyRune, r, tcell.ModNone)
}

func TestViewBindingShadowsGlobal(t *testing.T) {
	var got string
	r := NewRegistry()
	r.AddGlobal(&Action{Key: tcell.KeyRune, Rune: 'q', Description: "Quit", Handler: func() { got = "global" }})
	r.AddView("Thread", &Action{Key: tcell.KeyRune, Rune: 'q', Description: "Back", Handler: func() { got = "view" }})

	assert.True(t, r.HandleEvent("Thread", runeEvent('q')))
	assert.Equal(t, "view", got)

	assert.True(t, r.HandleEvent("Peers", runeEvent('q')))
	assert.Equal(t, "global", got)
}

func TestHandleEventNoMatch(t *testing.T) {
	r := NewRegistry()
	r.AddGlobal(&Action{Key: tcell.KeyRune, Rune: 'q', Handler: func() { t.Fatal("unexpected") }})
	assert.False(t, r.HandleEvent("Peers", runeEvent('x')))
	assert.False(t, r.HandleEvent("Peers", tcell.NewEventKey(tcell.KeyEnter, 0, tcell.ModNone)))
}

func TestSpecialKeyMatches(t *testing.T) {
	called := false
	r := NewRegistry()
	r.AddView("Peers", &Action{Key: tcell.KeyF5, Handler: func() { called = true }})
	assert.True(t, r.HandleEvent("Peers", tcell.NewEventKey(tcell.KeyF5, 0, tcell.ModNone)))
	assert.True(t, called)
}

func TestHintsOrder(t *testing.T) {
	r := NewRegistry()
	r.AddGlobal(&Action{Key: tcell.KeyRune, Rune: '?', Description: "Help", Visible: true})
	r.AddGlobal(&Action{Key: tcell.KeyRune, Rune: 'x', Description: "Hidden"})
	r.AddView("Peers", &Action{Key: tcell.KeyRune, Rune: 'r', Description: "Refresh", Visible: true})
	r.AddView("Peers", &Action{Key: tcell.KeyEnter, Label: "Enter", Description: "Open", Visible: true})

	assert.Equal(t, []ui.MenuHint{
		{Key: "r", Description: "Refresh"},
		{Key: "Enter", Description: "Open"},
		{Key: "?", Description: "Help"},
	}, r.Hints("Peers"))
	assert.Equal(t, []ui.MenuHint{{Key: "?", Description: "Help"}}, r.Hints("Thread"))
}
