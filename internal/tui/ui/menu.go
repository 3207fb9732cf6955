package ui

import (
	"fmt"
	"strings"

	"github.com/rivo/tview"
)

// Menu displays keyboard shortcut hints in columns of at most Rows lines.
type Menu struct {
	*tview.TextView
	theme *Theme
	Rows  int
}

// NewMenu creates a new menu hint bar.
func NewMenu(theme *Theme) *Menu {
	tv := tview.NewTextView().
		SetDynamicColors(true).
		SetTextAlign(tview.AlignLeft)
	tv.SetBackgroundColor(theme.BgColor)
	tv.SetBorderPadding(0, 0, 2, 0)

	return &Menu{
		TextView: tv,
		theme:    theme,
		Rows:     6,
	}
}

// Update renders menu hints column by column.
func (m *Menu) Update(hints []MenuHint) {
	m.Clear()
	_, _ = fmt.Fprint(m, m.layout(hints))
}

func (m *Menu) layout(hints []MenuHint) string {
	rows := m.Rows
	if rows <= 0 {
		rows = len(hints)
	}
	keyColor := colorName(m.theme.MenuKeyColor)
	numColor := colorName(m.theme.NumericKeyColor)

	lines := make([]strings.Builder, min(rows, len(hints)))
	for i, h := range hints {
		kc := keyColor
		if h.Numeric {
			kc = numColor
		}
		line := &lines[i%rows]
		if line.Len() > 0 {
			line.WriteString("  ")
		}
		fmt.Fprintf(line, "[%s::b]<%s>[-:-:-] %-*s", kc, tview.Escape(h.Key), 14-len(h.Key), h.Description)
	}
	out := make([]string, len(lines))
	for i := range lines {
		out[i] = strings.TrimRight(lines[i].String(), " ")
	}
	return strings.Join(out, "\n")
}
