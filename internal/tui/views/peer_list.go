package views

import (
	"fmt"
	"slices"
	"strings"

	"github.com/gdamore/tcell/v2"
	"github.com/matheus3301/nchat/internal/api"
	"github.com/matheus3301/nchat/internal/tui/ui"
	"github.com/rivo/tview"
)

// SortMode orders the peer list.
type SortMode int

const (
	SortServer SortMode = iota
	SortUnread
	SortName
)

func (m SortMode) String() string {
	switch m {
	case SortUnread:
		return "unread"
	case SortName:
		return "name"
	default:
		return "server"
	}
}

// PeerList is the contact list with unread badges.
type PeerList struct {
	*tview.Table
	theme   *ui.Theme
	peers   []api.Peer
	visible []api.Peer
	active  string
	filter  string
	sort    SortMode
}

// NewPeerList creates a new peer list table.
func NewPeerList(theme *ui.Theme) *PeerList {
	table := tview.NewTable().
		SetSelectable(true, false).
		SetBorders(false).
		SetFixed(1, 0)
	table.SetBorder(true)
	table.SetBorderColor(theme.BorderColor)
	table.SetBackgroundColor(theme.BgColor)
	table.SetSelectedStyle(tcell.StyleDefault.
		Foreground(theme.TableCursorFg).
		Background(theme.TableCursorBg))
	table.SetTitle(" Peers ")
	table.SetTitleColor(theme.TitleColor)

	pl := &PeerList{
		Table: table,
		theme: theme,
	}
	pl.render()
	return pl
}

// Name implements Component.
func (pl *PeerList) Name() string { return "Peers" }

// Start implements Component.
func (pl *PeerList) Start() {}

// Stop implements Component.
func (pl *PeerList) Stop() {}

// Update replaces the listed peers, keeping the cursor on the same peer.
func (pl *PeerList) Update(peers []api.Peer) {
	selected := pl.SelectedPeer()
	pl.peers = peers
	pl.render()
	pl.selectKey(selected)
}

// SetActive marks the peer whose conversation is open.
func (pl *PeerList) SetActive(pubkey string) {
	pl.active = pubkey
	selected := pl.SelectedPeer()
	pl.render()
	pl.selectKey(selected)
}

// SetFilter sets the active filter text and re-renders.
func (pl *PeerList) SetFilter(filter string) {
	pl.filter = filter
	pl.render()
	pl.Select(1, 0)
}

// ClearFilter clears the active filter.
func (pl *PeerList) ClearFilter() {
	pl.SetFilter("")
}

// CycleSort switches to the next sort mode and returns it.
func (pl *PeerList) CycleSort() SortMode {
	pl.sort = (pl.sort + 1) % 3
	selected := pl.SelectedPeer()
	pl.render()
	pl.selectKey(selected)
	return pl.sort
}

// Visible returns the peers currently listed, in display order.
func (pl *PeerList) Visible() []api.Peer {
	return slices.Clone(pl.visible)
}

func (pl *PeerList) render() {
	pl.Clear()
	pl.visible = orderPeers(filterPeers(pl.peers, pl.filter), pl.sort)

	headers := []struct {
		text string
		exp  int
	}{
		{" NAME", 1},
		{" KEY", 2},
		{" UNREAD", 0},
	}
	for col, h := range headers {
		cell := tview.NewTableCell(h.text).
			SetSelectable(false).
			SetTextColor(pl.theme.TableHeaderFg).
			SetBackgroundColor(pl.theme.TableHeaderBg).
			SetAttributes(tcell.AttrBold).
			SetExpansion(h.exp)
		pl.SetCell(0, col, cell)
	}

	for i, p := range pl.visible {
		row := i + 1
		name := p.DisplayName()
		if p.PublicKey == pl.active {
			name = "* " + name
		}
		fg := pl.theme.FgColor
		unread := ""
		if p.UnreadMessages > 0 {
			fg = pl.theme.UnreadColor
			unread = fmt.Sprintf("%d", p.UnreadMessages)
		}
		pl.SetCell(row, 0, tview.NewTableCell(" "+tview.Escape(sanitizeLine(name))).SetExpansion(1).SetTextColor(fg))
		pl.SetCell(row, 1, tview.NewTableCell(" "+p.ShortKey()).SetExpansion(2).SetTextColor(pl.theme.FgColor))
		pl.SetCell(row, 2, tview.NewTableCell(unread).SetExpansion(0).SetTextColor(pl.theme.UnreadColor).SetAlign(tview.AlignRight))
	}

	if pl.filter != "" {
		pl.SetTitle(fmt.Sprintf(" Peers (%d/%d) filter: %s ", len(pl.visible), len(pl.peers), tview.Escape(pl.filter)))
	} else {
		pl.SetTitle(fmt.Sprintf(" Peers (%d) sort: %s ", len(pl.peers), pl.sort))
	}
}

func (pl *PeerList) selectKey(pubkey string) {
	for i, p := range pl.visible {
		if p.PublicKey == pubkey {
			pl.Select(i+1, 0)
			return
		}
	}
	if len(pl.visible) > 0 {
		pl.Select(1, 0)
	}
}

// SelectedPeer returns the public key under the cursor.
func (pl *PeerList) SelectedPeer() string {
	row, _ := pl.GetSelection()
	return pl.PeerByIndex(row)
}

// PeerByIndex returns the public key of the Nth visible peer (1-based).
func (pl *PeerList) PeerByIndex(n int) string {
	if n < 1 || n > len(pl.visible) {
		return ""
	}
	return pl.visible[n-1].PublicKey
}

func filterPeers(peers []api.Peer, filter string) []api.Peer {
	if filter == "" {
		return slices.Clone(peers)
	}
	f := strings.ToLower(filter)
	var out []api.Peer
	for _, p := range peers {
		if strings.Contains(strings.ToLower(p.DisplayName()), f) ||
			strings.Contains(strings.ToLower(p.About()), f) ||
			strings.HasPrefix(p.PublicKey, f) {
			out = append(out, p)
		}
	}
	return out
}

func orderPeers(peers []api.Peer, mode SortMode) []api.Peer {
	switch mode {
	case SortUnread:
		slices.SortStableFunc(peers, func(a, b api.Peer) int {
			return b.UnreadMessages - a.UnreadMessages
		})
	case SortName:
		slices.SortStableFunc(peers, func(a, b api.Peer) int {
			return strings.Compare(strings.ToLower(a.DisplayName()), strings.ToLower(b.DisplayName()))
		})
	}
	return peers
}
