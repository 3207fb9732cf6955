// Package thread keeps the active conversation consistent with fetched
// history, local sends and pushed messages.
package thread

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/matheus3301/nchat/internal/api"
	"github.com/matheus3301/nchat/internal/bus"
	"github.com/matheus3301/nchat/internal/metrics"
	"go.uber.org/zap"
)

// ErrNoActivePeer is returned by SendMessage when no conversation is selected.
var ErrNoActivePeer = errors.New("no active peer")

// Client is the slice of the remote API the reconciler needs.
type Client interface {
	FetchThread(ctx context.Context, pubkey string) ([]api.Message, error)
	SendMessage(ctx context.Context, pubkey, text string) (*api.Message, error)
}

// RefreshRequester is notified of every pushed message so unread counters
// catch up.
type RefreshRequester interface {
	RequestRefresh()
}

// Reconciler owns the message sequence of the active peer. Every message
// appears at most once per event id.
type Reconciler struct {
	client    Client
	refresher RefreshRequester
	bus       *bus.Bus
	logger    *zap.Logger
	metrics   *metrics.Metrics

	mu       sync.Mutex
	active   string
	token    uint64
	loading  bool
	messages []api.Message
	seen     map[string]struct{}
	// pending holds pushes for the active peer that arrive while its
	// history is loading; they are merged after the fetched history.
	pending []api.Message
	draft   string
}

// New creates a reconciler with no active peer. refresher may be nil.
func New(c Client, refresher RefreshRequester, b *bus.Bus, logger *zap.Logger, m *metrics.Metrics) *Reconciler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reconciler{
		client:    c,
		refresher: refresher,
		bus:       b,
		logger:    logger.Named("thread"),
		metrics:   metrics.OrNop(m),
		seen:      map[string]struct{}{},
	}
}

// SelectPeer makes pubkey the active conversation and loads its history.
// An empty pubkey clears the thread without fetching. Results of a fetch
// superseded by a later selection are discarded. Re-selecting the active
// peer keeps the current sequence until the new history arrives.
func (r *Reconciler) SelectPeer(ctx context.Context, pubkey string) error {
	r.mu.Lock()
	r.token++
	token := r.token
	if pubkey != r.active {
		r.messages = nil
		r.seen = map[string]struct{}{}
		r.pending = nil
	}
	r.active = pubkey
	r.loading = pubkey != ""
	r.mu.Unlock()

	if pubkey == "" {
		r.bus.Emit(bus.ThreadLoading, false)
		r.bus.Emit(bus.ThreadUpdated, "")
		return nil
	}
	r.bus.Emit(bus.ThreadLoading, true)
	r.bus.Emit(bus.ThreadUpdated, pubkey)

	history, err := r.client.FetchThread(ctx, pubkey)

	r.mu.Lock()
	if token != r.token {
		r.mu.Unlock()
		r.metrics.StaleFetchesDropped.Inc()
		r.logger.Debug("drop stale thread fetch", zap.String("peer", pubkey))
		return nil
	}
	r.loading = false
	pending := r.pending
	r.pending = nil
	if err == nil {
		r.seen = map[string]struct{}{}
		r.messages = make([]api.Message, 0, len(history)+len(pending))
		for _, m := range history {
			r.messages = append(r.messages, m)
			r.markSeenLocked(m)
		}
	}
	for _, m := range pending {
		r.appendLocked(m)
	}
	r.mu.Unlock()

	r.bus.Emit(bus.ThreadLoading, false)
	r.bus.Emit(bus.ThreadUpdated, pubkey)
	if err != nil {
		r.logger.Warn("fetch thread", zap.String("peer", pubkey), zap.Error(err))
		r.bus.Fail("failed to load messages", err)
		return fmt.Errorf("fetch thread: %w", err)
	}
	r.bus.Emit(bus.ThreadScroll, pubkey)
	return nil
}

// SendMessage sends text to the active peer and appends the stored copy.
// Blank text is ignored. On failure the draft and thread are untouched.
func (r *Reconciler) SendMessage(ctx context.Context, text string) error {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	r.mu.Lock()
	peer := r.active
	r.mu.Unlock()
	if peer == "" {
		return ErrNoActivePeer
	}

	msg, err := r.client.SendMessage(ctx, peer, text)
	if err != nil {
		r.logger.Warn("send message", zap.String("peer", peer), zap.Error(err))
		r.bus.Fail("failed to send message", err)
		return fmt.Errorf("send message: %w", err)
	}

	r.mu.Lock()
	appended := false
	if r.active == peer && msg != nil {
		appended = r.insertLocked(*msg)
	}
	if r.draft == text {
		r.draft = ""
	}
	r.mu.Unlock()

	if appended {
		r.bus.Emit(bus.ThreadUpdated, peer)
	}
	r.bus.Emit(bus.ThreadScroll, peer)
	r.bus.Emit(bus.ThreadRefocus, peer)
	return nil
}

// OnPushedMessage applies a message delivered by the push channel. It
// reports whether the message was appended to the active thread. The peer
// directory is asked to refresh either way.
func (r *Reconciler) OnPushedMessage(peerPubkey string, msg api.Message) bool {
	r.mu.Lock()
	appended := false
	if r.active != "" && peerPubkey == r.active {
		appended = r.insertLocked(msg)
	}
	r.mu.Unlock()

	if appended {
		r.bus.Emit(bus.ThreadUpdated, peerPubkey)
		r.bus.Emit(bus.ThreadScroll, peerPubkey)
	}
	if r.refresher != nil {
		r.refresher.RequestRefresh()
	}
	return appended
}

// insertLocked appends m, or queues it while history is loading. It
// returns true only when the visible sequence grew.
func (r *Reconciler) insertLocked(m api.Message) bool {
	if r.loading {
		for _, p := range r.pending {
			if k := m.Key(); k != "" && p.Key() == k {
				r.metrics.DuplicatesSuppressed.Inc()
				return false
			}
		}
		r.pending = append(r.pending, m)
		return false
	}
	return r.appendLocked(m)
}

func (r *Reconciler) appendLocked(m api.Message) bool {
	if k := m.Key(); k != "" {
		if _, dup := r.seen[k]; dup {
			r.metrics.DuplicatesSuppressed.Inc()
			return false
		}
	}
	r.messages = append(r.messages, m)
	r.markSeenLocked(m)
	r.metrics.ThreadAppends.Inc()
	return true
}

func (r *Reconciler) markSeenLocked(m api.Message) {
	if k := m.Key(); k != "" {
		r.seen[k] = struct{}{}
	}
}

// SetDraft replaces the composer buffer.
func (r *Reconciler) SetDraft(text string) {
	r.mu.Lock()
	r.draft = text
	r.mu.Unlock()
}

// Draft returns the composer buffer.
func (r *Reconciler) Draft() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.draft
}

// ActivePeer returns the selected peer, empty when none.
func (r *Reconciler) ActivePeer() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.active
}

// Loading reports whether the active peer's history is being fetched.
func (r *Reconciler) Loading() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.loading
}

// Messages returns a copy of the active thread.
func (r *Reconciler) Messages() []api.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]api.Message, len(r.messages))
	copy(out, r.messages)
	return out
}

// Entries returns the active thread decoded for display, with ages
// relative to now.
func (r *Reconciler) Entries(now time.Time) []Entry {
	msgs := r.Messages()
	out := make([]Entry, len(msgs))
	for i, m := range msgs {
		out[i] = newEntry(m, now)
	}
	return out
}
