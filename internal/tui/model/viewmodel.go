package model

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/matheus3301/nchat/internal/api"
	"github.com/matheus3301/nchat/internal/bus"
	"github.com/matheus3301/nchat/internal/core"
	"github.com/matheus3301/nchat/internal/identity"
	"github.com/matheus3301/nchat/internal/status"
	"github.com/matheus3301/nchat/internal/thread"
	"github.com/matheus3301/nchat/internal/tui/ui"
)

// PeerSource is the read side of the peer directory.
type PeerSource interface {
	Peers() []api.Peer
	Peer(pubkey string) (api.Peer, bool)
	UnreadCount() int
	Refresh(ctx context.Context) error
}

// ThreadSource is the active conversation.
type ThreadSource interface {
	SelectPeer(ctx context.Context, pubkey string) error
	SendMessage(ctx context.Context, text string) error
	SetDraft(text string)
	Draft() string
	ActivePeer() string
	Loading() bool
	Entries(now time.Time) []thread.Entry
}

// Remote is the slice of the API used directly by operator commands.
type Remote interface {
	AddPeer(ctx context.Context, accountID, pubkey string) (*api.Peer, error)
	RestartConnection(ctx context.Context) error
}

// ViewModel adapts the sync core for the views. Views read snapshots from
// it and redraw when Watch reports a bus event.
type ViewModel struct {
	Profile string
	Peers   PeerSource
	Thread  ThreadSource
	Remote  Remote
	Bus     *bus.Bus
	Flash   *ui.FlashModel

	account func() *api.Account
	state   func() status.State
	started time.Time
}

// FromCore builds a view model over an assembled core.
func FromCore(c *core.Core, profileName string) *ViewModel {
	return &ViewModel{
		Profile: profileName,
		Peers:   c.Directory,
		Thread:  c.Thread,
		Remote:  c.Client,
		Bus:     c.Bus,
		Flash:   ui.NewFlashModel(),
		account: c.Account,
		state:   c.Machine.Current,
		started: time.Now(),
	}
}

// Watch forwards bus events to onEvent until ctx is done. Notices are
// turned into flash messages before onEvent sees them.
func (vm *ViewModel) Watch(ctx context.Context, onEvent func(bus.Event)) {
	events, unsub := vm.Bus.Subscribe("", 64)
	defer unsub()
	for {
		select {
		case <-ctx.Done():
			return
		case evt := <-events:
			vm.flashNotice(evt)
			if onEvent != nil {
				onEvent(evt)
			}
		}
	}
}

// Loading returns the flag carried by a thread.loading event.
func Loading(evt bus.Event) bool {
	loading, _ := evt.Payload.(bool)
	return loading
}

func (vm *ViewModel) flashNotice(evt bus.Event) {
	n, ok := evt.Payload.(bus.Notice)
	if !ok {
		return
	}
	switch evt.Kind {
	case bus.NoticeWarning:
		vm.Flash.Warn(NoticeText(n))
	case bus.NoticeError:
		vm.Flash.Err(errors.New(NoticeText(n)))
	}
}

// NoticeText renders a notice for the flash bar.
func NoticeText(n bus.Notice) string {
	if n.Err == nil {
		return n.Message
	}
	return n.Message + ": " + n.Err.Error()
}

// Account returns the bound account, nil before the core connects.
func (vm *ViewModel) Account() *api.Account {
	if vm.account == nil {
		return nil
	}
	return vm.account()
}

// State returns the push channel state.
func (vm *ViewModel) State() status.State {
	if vm.state == nil {
		return status.Disconnected
	}
	return vm.state()
}

// Session summarizes the profile for the header.
func (vm *ViewModel) Session() *ui.SessionData {
	d := &ui.SessionData{
		Profile: vm.Profile,
		Channel: string(vm.State()),
		Peers:   len(vm.Peers.Peers()),
		Unread:  vm.Peers.UnreadCount(),
	}
	if !vm.started.IsZero() {
		d.Uptime = time.Since(vm.started)
	}
	if acct := vm.Account(); acct != nil {
		d.Account = acct.Config.Name
		if d.Account == "" {
			d.Account = acct.ID
		}
		if npub, err := identity.EncodePublic(acct.PublicKey); err == nil {
			d.PublicKey = npub
		} else {
			d.PublicKey = acct.PublicKey
		}
	}
	return d
}

// PeerName resolves a display name for pubkey.
func (vm *ViewModel) PeerName(pubkey string) string {
	if p, ok := vm.Peers.Peer(pubkey); ok {
		return p.DisplayName()
	}
	return "unknown"
}

// FindPeer returns the first peer whose name or key contains query.
func (vm *ViewModel) FindPeer(query string) (api.Peer, bool) {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return api.Peer{}, false
	}
	for _, p := range vm.Peers.Peers() {
		if strings.Contains(strings.ToLower(p.DisplayName()), q) || strings.HasPrefix(p.PublicKey, q) {
			return p, true
		}
	}
	return api.Peer{}, false
}

// OpenPeer selects the conversation with pubkey.
func (vm *ViewModel) OpenPeer(ctx context.Context, pubkey string) error {
	return vm.Thread.SelectPeer(ctx, pubkey)
}

// Send submits the composer text to the active conversation.
func (vm *ViewModel) Send(ctx context.Context, text string) error {
	return vm.Thread.SendMessage(ctx, text)
}

// AddPeer registers a contact given as npub or hex and reloads the directory.
func (vm *ViewModel) AddPeer(ctx context.Context, key string) error {
	acct := vm.Account()
	if acct == nil {
		return core.ErrNoAccount
	}
	pubkey, err := identity.ParsePublic(strings.TrimSpace(key))
	if err != nil {
		return err
	}
	if _, err := vm.Remote.AddPeer(ctx, acct.ID, pubkey); err != nil {
		return fmt.Errorf("add peer: %w", err)
	}
	vm.Flash.Info("peer added")
	return vm.Peers.Refresh(ctx)
}

// Restart asks the backend to reconnect to its relays.
func (vm *ViewModel) Restart(ctx context.Context) error {
	if err := vm.Remote.RestartConnection(ctx); err != nil {
		return fmt.Errorf("restart connection: %w", err)
	}
	vm.Flash.Info("connection restarted")
	return nil
}
