// Package peers caches the account's contact list with unread counters.
package peers

import (
	"context"
	"sync"
	"time"

	"github.com/matheus3301/nchat/internal/api"
	"github.com/matheus3301/nchat/internal/bus"
	"github.com/matheus3301/nchat/internal/metrics"
	"go.uber.org/zap"
)

const (
	DefaultDebounceWindow = 300 * time.Millisecond
	DefaultRetryDelay     = 500 * time.Millisecond
	DefaultFetchTimeout   = 15 * time.Second
)

// Lister fetches the authoritative peer list.
type Lister interface {
	ListPeers(ctx context.Context) ([]api.Peer, error)
}

// Snapshotter persists complete snapshots so the next start can show
// something before the first fetch returns. Snapshots are tagged with the
// account they belong to.
type Snapshotter interface {
	SavePeers(ctx context.Context, accountID string, peers []api.Peer) error
	LoadPeers(ctx context.Context) (string, []api.Peer, error)
}

// Options tunes refresh scheduling. Zero values take the defaults.
type Options struct {
	DebounceWindow time.Duration
	RetryDelay     time.Duration
	FetchTimeout   time.Duration
}

// Changed is the payload of bus.PeersChanged.
type Changed struct {
	Peers  int
	Unread int
}

// Directory holds the last complete peer snapshot. Readers never observe a
// partially applied refresh.
type Directory struct {
	lister  Lister
	snaps   Snapshotter
	bus     *bus.Bus
	logger  *zap.Logger
	metrics *metrics.Metrics
	opts    Options

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	account  string
	peers    []api.Peer
	index    map[string]int
	inFlight bool
	followUp *time.Timer
	debounce *time.Timer
	closed   bool
}

// New creates an empty directory. snaps may be nil.
func New(l Lister, snaps Snapshotter, b *bus.Bus, logger *zap.Logger, m *metrics.Metrics, opts Options) *Directory {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.DebounceWindow <= 0 {
		opts.DebounceWindow = DefaultDebounceWindow
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = DefaultRetryDelay
	}
	if opts.FetchTimeout <= 0 {
		opts.FetchTimeout = DefaultFetchTimeout
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Directory{
		lister:  l,
		snaps:   snaps,
		bus:     b,
		logger:  logger.Named("peers"),
		metrics: metrics.OrNop(m),
		opts:    opts,
		ctx:     ctx,
		cancel:  cancel,
		index:   map[string]int{},
	}
}

// Warm seeds the directory from the last persisted snapshot. It does
// nothing once a live refresh has landed.
func (d *Directory) Warm(ctx context.Context) error {
	if d.snaps == nil {
		return nil
	}
	owner, peers, err := d.snaps.LoadPeers(ctx)
	if err != nil {
		return err
	}
	d.mu.Lock()
	if len(d.peers) > 0 || len(peers) == 0 || (d.account != "" && owner != d.account) {
		d.mu.Unlock()
		return nil
	}
	d.account = owner
	d.swapLocked(peers)
	changed := d.changedLocked()
	d.mu.Unlock()

	d.bus.Emit(bus.PeersChanged, changed)
	return nil
}

// SetAccount binds the directory to accountID. A snapshot that belongs to a
// different account is dropped until the next refresh lands.
func (d *Directory) SetAccount(accountID string) {
	d.mu.Lock()
	if accountID == d.account {
		d.mu.Unlock()
		return
	}
	stale := d.account != "" && len(d.peers) > 0
	d.account = accountID
	if !stale {
		d.mu.Unlock()
		return
	}
	d.swapLocked(nil)
	changed := d.changedLocked()
	d.mu.Unlock()

	d.logger.Info("dropped peers of previous account", zap.String("account", accountID))
	d.bus.Emit(bus.PeersChanged, changed)
}

// Refresh replaces the snapshot with a fresh list. When a refresh is already
// in flight it schedules exactly one follow-up instead and returns.
func (d *Directory) Refresh(ctx context.Context) error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	if d.inFlight {
		if d.followUp != nil {
			d.followUp.Stop()
		}
		d.followUp = time.AfterFunc(d.opts.RetryDelay, d.runScheduled)
		d.mu.Unlock()
		d.metrics.PeerRefreshes.WithLabelValues("coalesced").Inc()
		return nil
	}
	d.inFlight = true
	d.mu.Unlock()

	peers, err := d.lister.ListPeers(ctx)

	d.mu.Lock()
	d.inFlight = false
	if err != nil {
		d.mu.Unlock()
		d.metrics.PeerRefreshes.WithLabelValues("error").Inc()
		d.logger.Warn("refresh peers", zap.Error(err))
		d.bus.Fail("failed to load peers", err)
		return err
	}
	d.swapLocked(peers)
	changed := d.changedLocked()
	snapshot := d.copyLocked()
	account := d.account
	d.mu.Unlock()

	d.metrics.PeerRefreshes.WithLabelValues("ok").Inc()
	d.bus.Emit(bus.PeersChanged, changed)

	if d.snaps != nil {
		if err := d.snaps.SavePeers(ctx, account, snapshot); err != nil {
			d.logger.Warn("persist peers snapshot", zap.Error(err))
		}
	}
	return nil
}

// RequestRefresh schedules a Refresh after the debounce window. Calls within
// the window collapse into one refresh.
func (d *Directory) RequestRefresh() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return
	}
	if d.debounce != nil {
		d.debounce.Stop()
	}
	d.debounce = time.AfterFunc(d.opts.DebounceWindow, d.runScheduled)
}

func (d *Directory) runScheduled() {
	ctx, cancel := context.WithTimeout(d.ctx, d.opts.FetchTimeout)
	defer cancel()
	_ = d.Refresh(ctx)
}

// Peers returns a copy of the current snapshot.
func (d *Directory) Peers() []api.Peer {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.copyLocked()
}

// Peer looks up a peer by public key.
func (d *Directory) Peer(pubkey string) (api.Peer, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	i, ok := d.index[pubkey]
	if !ok {
		return api.Peer{}, false
	}
	return d.peers[i], true
}

// UnreadCount returns how many peers have unread messages.
func (d *Directory) UnreadCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.unreadLocked()
}

// Close stops pending timers and cancels scheduled refreshes.
func (d *Directory) Close() {
	d.mu.Lock()
	d.closed = true
	if d.followUp != nil {
		d.followUp.Stop()
		d.followUp = nil
	}
	if d.debounce != nil {
		d.debounce.Stop()
		d.debounce = nil
	}
	d.mu.Unlock()
	d.cancel()
}

func (d *Directory) swapLocked(peers []api.Peer) {
	next := make([]api.Peer, len(peers))
	copy(next, peers)
	index := make(map[string]int, len(next))
	for i, p := range next {
		index[p.PublicKey] = i
	}
	d.peers = next
	d.index = index
}

func (d *Directory) copyLocked() []api.Peer {
	out := make([]api.Peer, len(d.peers))
	copy(out, d.peers)
	return out
}

func (d *Directory) unreadLocked() int {
	n := 0
	for _, p := range d.peers {
		if p.UnreadMessages > 0 {
			n++
		}
	}
	return n
}

func (d *Directory) changedLocked() Changed {
	return Changed{Peers: len(d.peers), Unread: d.unreadLocked()}
}
