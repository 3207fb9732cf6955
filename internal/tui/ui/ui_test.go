package ui

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/rivo/tview"
	"github.com/stretchr/testify/assert"
)

func newTestPages(names ...string) *Pages {
	p := NewPages()
	for _, n := range names {
		p.AddPage(n, tview.NewBox(), true, false)
	}
	return p
}

func TestPagesStack(t *testing.T) {
	p := newTestPages("Peers", "Thread", "Details")
	var seen [][]string
	p.SetOnChange(func(stack []string) { seen = append(seen, stack) })

	p.Reset("Peers")
	p.Push("Thread")
	p.Push("Details")
	assert.Equal(t, "Details", p.Current())
	assert.Equal(t, 3, p.Depth())

	assert.Equal(t, "Details", p.Pop())
	assert.Equal(t, "Thread", p.Current())
	assert.Equal(t, []string{"Peers", "Thread"}, p.Stack())
	assert.Len(t, seen, 4)
}

func TestPagesPopTo(t *testing.T) {
	p := newTestPages("Peers", "Thread", "Details")
	p.Reset("Peers")
	p.Push("Thread")
	p.Push("Details")

	assert.False(t, p.PopTo("Help"))
	assert.Equal(t, 3, p.Depth())

	assert.True(t, p.PopTo("Peers"))
	assert.Equal(t, []string{"Peers"}, p.Stack())
	assert.True(t, p.HasPage("Thread"))
}

func TestPagesPopEmpty(t *testing.T) {
	p := NewPages()
	assert.Empty(t, p.Pop())
	assert.Empty(t, p.Current())
}

func TestFlashExpiry(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	f := NewFlashModel()
	f.now = func() time.Time { return now }

	f.Warn("channel down")
	msg := f.GetMessage()
	if assert.NotNil(t, msg) {
		assert.Equal(t, FlashWarn, msg.Level)
		assert.Equal(t, "channel down", msg.Text)
	}

	now = now.Add(9 * time.Second)
	assert.Nil(t, f.GetMessage())
	assert.Empty(t, f.Get())

	f.Err(errors.New("boom"))
	assert.Equal(t, "boom", f.Get())
	f.Err(nil)
	assert.Equal(t, "boom", f.Get())

	f.Clear()
	assert.Empty(t, f.Get())
}

func TestFlashWatch(t *testing.T) {
	f := NewFlashModel()
	f.Info("peer added")
	select {
	case m := <-f.Watch():
		assert.Equal(t, FlashInfo, m.Level)
	default:
		t.Fatal("expected a flash on the watch channel")
	}
}

func TestPromptHistory(t *testing.T) {
	p := NewPrompt(DefaultTheme())
	p.Activate(PromptCommand)
	p.remember("add npub1a")
	p.remember("add npub1a")
	p.remember("refresh")
	assert.Len(t, p.history, 2)

	assert.Equal(t, "refresh", p.step(-1))
	assert.Equal(t, "add npub1a", p.step(-1))
	assert.Equal(t, "add npub1a", p.step(-1))
	assert.Equal(t, "refresh", p.step(1))
	assert.Equal(t, "", p.step(1))
}

func TestShortKey(t *testing.T) {
	assert.Equal(t, "-", ShortKey(""))
	assert.Equal(t, "abc", ShortKey("abc"))
	assert.Equal(t, "npub10el...zvjptg00", ShortKey("npub10elfcs4fr0l0r8af98jlmgdhzvjptg00"))
}

func TestMenuLayoutColumns(t *testing.T) {
	m := NewMenu(DefaultTheme())
	m.Rows = 2
	out := m.layout([]MenuHint{
		{Key: "r", Description: "Refresh"},
		{Key: "s", Description: "Sort"},
		{Key: "?", Description: "Help"},
	})
	lines := strings.Split(out, "\n")
	assert.Len(t, lines, 2)
	assert.Contains(t, lines[0], "Refresh")
	assert.Contains(t, lines[0], "Help")
	assert.Contains(t, lines[1], "Sort")

	assert.Empty(t, m.layout(nil))
}

func TestCrumbsLabel(t *testing.T) {
	c := NewCrumbs(DefaultTheme())
	c.SetLabel(func(p string) string {
		if p == "Thread" {
			return "Alice"
		}
		return p
	})
	c.Update([]string{"Peers", "Thread"})
	text := c.GetText(true)
	assert.Contains(t, text, "Peers")
	assert.Contains(t, text, "Alice")
	assert.NotContains(t, text, "Thread")
}
