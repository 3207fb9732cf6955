package model

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/matheus3301/nchat/internal/api"
	"github.com/matheus3301/nchat/internal/bus"
	"github.com/matheus3301/nchat/internal/core"
	"github.com/matheus3301/nchat/internal/status"
	"github.com/matheus3301/nchat/internal/thread"
	"github.com/matheus3301/nchat/internal/tui/ui"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	alicePK = "7e7e9c42a91bfef19fa929e5fda1b72e0ebc1a4c1141673e2794234d86addf4e"
	aliceNP = "npub10elfcs4fr0l0r8af98jlmgdh9c8tcxjvz9qkw038js35mp4dma8qzvjptg"
)

type fakePeers struct {
	mu        sync.Mutex
	peers     []api.Peer
	refreshes int
}

func (f *fakePeers) Peers() []api.Peer { return f.peers }

func (f *fakePeers) Peer(pk string) (api.Peer, bool) {
	for _, p := range f.peers {
		if p.PublicKey == pk {
			return p, true
		}
	}
	return api.Peer{}, false
}

func (f *fakePeers) UnreadCount() int {
	n := 0
	for _, p := range f.peers {
		n += p.UnreadMessages
	}
	return n
}

func (f *fakePeers) Refresh(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refreshes++
	return nil
}

type fakeRemote struct {
	added      []string
	restartErr error
}

func (f *fakeRemote) AddPeer(_ context.Context, accountID, pubkey string) (*api.Peer, error) {
	f.added = append(f.added, accountID+"/"+pubkey)
	return &api.Peer{PublicKey: pubkey}, nil
}

func (f *fakeRemote) RestartConnection(context.Context) error { return f.restartErr }

type fakeThread struct {
	selected string
	sent     []string
	draft    string
}

func (f *fakeThread) SelectPeer(_ context.Context, pk string) error { f.selected = pk; return nil }
func (f *fakeThread) SendMessage(_ context.Context, text string) error {
	f.sent = append(f.sent, text)
	return nil
}
func (f *fakeThread) SetDraft(text string)              { f.draft = text }
func (f *fakeThread) Draft() string                     { return f.draft }
func (f *fakeThread) ActivePeer() string                { return f.selected }
func (f *fakeThread) Loading() bool                     { return false }
func (f *fakeThread) Entries(time.Time) []thread.Entry { return nil }

func newTestViewModel(acct *api.Account) (*ViewModel, *fakePeers, *fakeRemote, *fakeThread) {
	peers := &fakePeers{peers: []api.Peer{
		{PublicKey: alicePK, Profile: &api.PeerProfile{Name: "Alice"}, UnreadMessages: 2},
		{PublicKey: "bbbb", UnreadMessages: 1},
	}}
	remote := &fakeRemote{}
	th := &fakeThread{}
	vm := &ViewModel{
		Profile: "main",
		Peers:   peers,
		Thread:  th,
		Remote:  remote,
		Bus:     bus.New(),
		Flash:   ui.NewFlashModel(),
		account: func() *api.Account { return acct },
		state:   func() status.State { return status.Open },
	}
	return vm, peers, remote, th
}

func TestWatchTurnsNoticesIntoFlash(t *testing.T) {
	vm, _, _, _ := newTestViewModel(nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	got := make(chan bus.Event, 4)
	ready := make(chan struct{})
	go func() {
		close(ready)
		vm.Watch(ctx, func(evt bus.Event) { got <- evt })
	}()
	<-ready

	require.Eventually(t, func() bool {
		vm.Bus.Fail("failed to load peers", errors.New("timeout"))
		select {
		case evt := <-got:
			return evt.Kind == bus.NoticeError
		case <-time.After(10 * time.Millisecond):
			return false
		}
	}, time.Second, 20*time.Millisecond)

	msg := vm.Flash.GetMessage()
	require.NotNil(t, msg)
	assert.Equal(t, ui.FlashErr, msg.Level)
	assert.Equal(t, "failed to load peers: timeout", msg.Text)

	vm.Bus.Warn("failed to watch for updates", nil)
	for evt := range got {
		if evt.Kind == bus.NoticeWarning {
			break
		}
	}
	assert.Equal(t, "failed to watch for updates", vm.Flash.Get())
}

func TestSessionSummary(t *testing.T) {
	vm, _, _, _ := newTestViewModel(&api.Account{ID: "acct1", PublicKey: alicePK, Config: api.AccountConfig{Name: "ops"}})
	d := vm.Session()
	assert.Equal(t, "main", d.Profile)
	assert.Equal(t, "ops", d.Account)
	assert.Equal(t, aliceNP, d.PublicKey)
	assert.Equal(t, "OPEN", d.Channel)
	assert.Equal(t, 2, d.Peers)
	assert.Equal(t, 3, d.Unread)

	vm, _, _, _ = newTestViewModel(nil)
	assert.Empty(t, vm.Session().Account)
}

func TestFindPeerAndName(t *testing.T) {
	vm, _, _, _ := newTestViewModel(nil)
	p, ok := vm.FindPeer("ali")
	require.True(t, ok)
	assert.Equal(t, alicePK, p.PublicKey)

	p, ok = vm.FindPeer("bbb")
	require.True(t, ok)
	assert.Equal(t, "bbbb", p.PublicKey)

	_, ok = vm.FindPeer("  ")
	assert.False(t, ok)

	assert.Equal(t, "Alice", vm.PeerName(alicePK))
	assert.Equal(t, "unknown", vm.PeerName("bbbb"))
	assert.Equal(t, "unknown", vm.PeerName("missing"))
}

func TestAddPeer(t *testing.T) {
	vm, peers, remote, _ := newTestViewModel(&api.Account{ID: "acct1"})
	require.NoError(t, vm.AddPeer(context.Background(), " "+aliceNP+" "))
	assert.Equal(t, []string{"acct1/" + alicePK}, remote.added)
	assert.Equal(t, 1, peers.refreshes)
	assert.Equal(t, "peer added", vm.Flash.Get())

	assert.Error(t, vm.AddPeer(context.Background(), "not-a-key"))
	assert.Len(t, remote.added, 1)
}

func TestAddPeerWithoutAccount(t *testing.T) {
	vm, _, remote, _ := newTestViewModel(nil)
	assert.ErrorIs(t, vm.AddPeer(context.Background(), aliceNP), core.ErrNoAccount)
	assert.Empty(t, remote.added)
}

func TestRestart(t *testing.T) {
	vm, _, remote, _ := newTestViewModel(nil)
	require.NoError(t, vm.Restart(context.Background()))
	assert.Equal(t, "connection restarted", vm.Flash.Get())

	remote.restartErr = errors.New("503")
	assert.ErrorContains(t, vm.Restart(context.Background()), "restart connection: 503")
}

func TestOpenAndSendDelegate(t *testing.T) {
	vm, _, _, th := newTestViewModel(nil)
	require.NoError(t, vm.OpenPeer(context.Background(), alicePK))
	require.NoError(t, vm.Send(context.Background(), "hello"))
	assert.Equal(t, alicePK, th.selected)
	assert.Equal(t, []string{"hello"}, th.sent)
}

func TestNoticeText(t *testing.T) {
	assert.Equal(t, "x", NoticeText(bus.Notice{Message: "x"}))
	assert.Equal(t, "x: y", NoticeText(bus.Notice{Message: "x", Err: errors.New("y")}))
}

func TestLoadingPayload(t *testing.T) {
	assert.True(t, Loading(bus.Event{Kind: bus.ThreadLoading, Payload: true}))
	assert.False(t, Loading(bus.Event{Kind: bus.ThreadLoading, Payload: false}))
	assert.False(t, Loading(bus.Event{Kind: bus.ThreadLoading}))
}
