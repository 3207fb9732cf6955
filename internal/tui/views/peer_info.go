package views

import (
	"fmt"
	"time"

	"github.com/matheus3301/nchat/internal/api"
	"github.com/matheus3301/nchat/internal/identity"
	"github.com/matheus3301/nchat/internal/tui/ui"
	"github.com/rivo/tview"
)

// PeerInfo displays detailed information about a peer.
type PeerInfo struct {
	*tview.TextView
	theme *ui.Theme
}

// NewPeerInfo creates a new peer info view.
func NewPeerInfo(theme *ui.Theme) *PeerInfo {
	tv := tview.NewTextView().
		SetDynamicColors(true).
		SetWordWrap(true)
	tv.SetBorder(true)
	tv.SetBorderColor(theme.BorderColor)
	tv.SetBackgroundColor(theme.BgColor)
	tv.SetTextColor(theme.FgColor)
	tv.SetTitle(" Peer Details ")
	tv.SetTitleColor(theme.TitleColor)

	return &PeerInfo{
		TextView: tv,
		theme:    theme,
	}
}

// Name implements Component.
func (pi *PeerInfo) Name() string { return "Details" }

// Start implements Component.
func (pi *PeerInfo) Start() {}

// Stop implements Component.
func (pi *PeerInfo) Stop() {}

// Update renders peer details.
func (pi *PeerInfo) Update(p api.Peer) {
	pi.Clear()

	fg := colorName(pi.theme.FgColor)
	ct := colorName(pi.theme.CounterColor)

	npub, err := identity.EncodePublic(p.PublicKey)
	if err != nil {
		npub = "-"
	}
	seen := "-"
	if p.EventCreatedAt > 0 {
		seen = time.Unix(p.EventCreatedAt, 0).Format(time.DateTime)
	}
	about := p.About()
	if about == "" {
		about = "-"
	}

	text := fmt.Sprintf(
		"\n [%s::b]Name:[-:-:-]    [%s]%s[-]\n"+
			" [%s::b]Pubkey:[-:-:-]  [%s]%s[-]\n"+
			" [%s::b]npub:[-:-:-]    [%s]%s[-]\n"+
			" [%s::b]Unread:[-:-:-]  [%s]%d[-]\n"+
			" [%s::b]Updated:[-:-:-] [%s]%s[-]\n"+
			" [%s::b]About:[-:-:-]   [%s]%s[-]",
		fg, ct, tview.Escape(sanitizeLine(p.DisplayName())),
		fg, ct, p.PublicKey,
		fg, ct, npub,
		fg, ct, p.UnreadMessages,
		fg, ct, seen,
		fg, ct, tview.Escape(sanitizeText(about)),
	)

	_, _ = fmt.Fprint(pi, text)
	pi.SetTitle(fmt.Sprintf(" %s Details ", tview.Escape(sanitizeLine(p.DisplayName()))))
}
