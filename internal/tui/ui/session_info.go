package ui

import (
	"fmt"
	"time"

	"github.com/rivo/tview"
)

// SessionData holds profile and channel information for display.
type SessionData struct {
	Profile   string
	Account   string
	PublicKey string
	Channel   string
	Peers     int
	Unread    int
	Uptime    time.Duration
}

// SessionInfo displays profile metadata in the header.
type SessionInfo struct {
	*tview.TextView
	theme *Theme
}

// NewSessionInfo creates a new session info panel.
func NewSessionInfo(theme *Theme) *SessionInfo {
	tv := tview.NewTextView().
		SetDynamicColors(true)
	tv.SetBackgroundColor(theme.BgColor)
	tv.SetBorderPadding(0, 0, 1, 1)

	return &SessionInfo{
		TextView: tv,
		theme:    theme,
	}
}

// Update renders the session info.
func (si *SessionInfo) Update(data *SessionData) {
	si.Clear()
	if data == nil {
		return
	}

	fgColor := colorName(si.theme.FgColor)
	counterColor := colorName(si.theme.CounterColor)
	channelColor := counterColor
	if data.Channel != "OPEN" {
		channelColor = colorName(si.theme.FlashWarnColor)
	}

	text := fmt.Sprintf(
		"[%s::b]Profile:[-:-:-] [%s]%s[-]\n"+
			"[%s::b]Account:[-:-:-] [%s]%s[-]\n"+
			"[%s::b]Key:[-:-:-]     [%s]%s[-]\n"+
			"[%s::b]Channel:[-:-:-] [%s]%s[-]\n"+
			"[%s::b]Peers:[-:-:-]   [%s]%d[-] [%s](%d unread)[-]\n"+
			"[%s::b]Uptime:[-:-:-]  [%s]%s[-]",
		fgColor, counterColor, dash(data.Profile),
		fgColor, counterColor, tview.Escape(dash(data.Account)),
		fgColor, counterColor, ShortKey(data.PublicKey),
		fgColor, channelColor, dash(data.Channel),
		fgColor, counterColor, data.Peers, counterColor, data.Unread,
		fgColor, counterColor, formatDuration(data.Uptime),
	)

	_, _ = fmt.Fprint(si, text)
}

// ShortKey abbreviates long keys as first8...last8.
func ShortKey(k string) string {
	if k == "" {
		return "-"
	}
	if len(k) <= 19 {
		return k
	}
	return k[:8] + "..." + k[len(k)-8:]
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func formatDuration(d time.Duration) string {
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	if h > 0 {
		return fmt.Sprintf("%dh%dm", h, m)
	}
	return fmt.Sprintf("%dm", m)
}
