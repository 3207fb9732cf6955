package views

import (
	"fmt"
	"strings"

	"github.com/matheus3301/nchat/internal/tui/ui"
	"github.com/rivo/tview"
)

// HelpView displays key binding reference.
type HelpView struct {
	*tview.TextView
	theme *ui.Theme
}

// NewHelpView creates a new help view.
func NewHelpView(theme *ui.Theme) *HelpView {
	tv := tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(true)
	tv.SetBorder(true)
	tv.SetBorderColor(theme.BorderColor)
	tv.SetBackgroundColor(theme.BgColor)
	tv.SetTextColor(theme.FgColor)
	tv.SetTitle(" Help ")
	tv.SetTitleColor(theme.TitleColor)

	hv := &HelpView{
		TextView: tv,
		theme:    theme,
	}
	hv.render()
	return hv
}

// Name implements Component.
func (hv *HelpView) Name() string { return "Help" }

// Start implements Component.
func (hv *HelpView) Start() {}

// Stop implements Component.
func (hv *HelpView) Stop() {}

type helpSection struct {
	title string
	rows  [][2]string
}

var helpSections = []helpSection{
	{"Global Keys", [][2]string{
		{":", "Command mode"},
		{"Esc", "Cancel / Go back"},
		{"?", "Help"},
		{"q", "Quit / Back"},
		{"Ctrl-C", "Quit immediately"},
	}},
	{"Peer List", [][2]string{
		{"Enter", "Open conversation"},
		{"/", "Filter peers"},
		{"1-9", "Open Nth peer"},
		{"s", "Cycle sort mode"},
		{"r", "Refresh peers"},
		{"d", "Peer details"},
		{"a", "Add peer"},
	}},
	{"Conversation", [][2]string{
		{"i", "Focus composer"},
		{"Enter", "Send message (in composer)"},
		{"Esc", "Leave composer"},
		{"d", "Peer details"},
	}},
	{"Commands (: mode)", [][2]string{
		{":add <npub|hex>", "Add a peer"},
		{":peer <name>", "Open conversation by name"},
		{":peers", "Back to the peer list"},
		{":refresh / :r", "Reload peers"},
		{":restart", "Restart the backend relay connection"},
		{":keys", "Show your public key"},
		{":help / :h", "Show this help"},
		{":quit / :q", "Quit"},
	}},
}

func (hv *HelpView) render() {
	kc := colorName(hv.theme.MenuKeyColor)

	var sb strings.Builder
	for _, s := range helpSections {
		fmt.Fprintf(&sb, "\n  [::b]%s[-:-:-]\n\n", s.title)
		for _, r := range s.rows {
			fmt.Fprintf(&sb, "  [%s]%-18s[-:-:-] %s\n", kc, tview.Escape(r[0]), r[1])
		}
	}
	_, _ = fmt.Fprint(hv, sb.String())
}
