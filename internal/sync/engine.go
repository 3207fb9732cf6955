// Package sync routes pushed envelopes into the thread reconciler and
// records sync checkpoints.
package sync

import (
	"context"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/matheus3301/nchat/internal/api"
	"github.com/matheus3301/nchat/internal/notify"
	"go.uber.org/zap"
)

// CheckpointLastEvent holds the newest pushed event timestamp (unix seconds).
const CheckpointLastEvent = "last_event_created_at"

// Thread receives pushed direct messages.
type Thread interface {
	OnPushedMessage(peerPubkey string, msg api.Message) bool
}

// Checkpoints persists small sync markers.
type Checkpoints interface {
	GetCheckpoint(ctx context.Context, key string) (string, error)
	SetCheckpoint(ctx context.Context, key, value string) error
}

// Engine handles envelopes delivered by the notification channel.
type Engine struct {
	thread      Thread
	checkpoints Checkpoints
	logger      *zap.Logger
	lastEvent   atomic.Int64
}

// NewEngine creates a new sync engine. checkpoints may be nil.
func NewEngine(t Thread, checkpoints Checkpoints, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		thread:      t,
		checkpoints: checkpoints,
		logger:      logger.Named("sync"),
	}
}

// Load restores the last checkpoint.
func (e *Engine) Load(ctx context.Context) error {
	if e.checkpoints == nil {
		return nil
	}
	v, err := e.checkpoints.GetCheckpoint(ctx, CheckpointLastEvent)
	if err != nil || v == "" {
		return err
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		e.logger.Warn("ignore corrupt checkpoint", zap.String("value", v))
		return nil
	}
	e.lastEvent.Store(n)
	return nil
}

// LastEvent returns the newest event timestamp seen on the channel.
func (e *Engine) LastEvent() time.Time {
	n := e.lastEvent.Load()
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(n, 0)
}

// HandleEnvelope applies a direct-message envelope. It is the channel
// manager's handler and runs on the channel's reader goroutine.
func (e *Engine) HandleEnvelope(env notify.Envelope) {
	if env.Type != notify.TypeDirectMessage || env.DM == nil {
		return
	}
	appended := e.thread.OnPushedMessage(env.PeerPubkey, *env.DM)
	e.logger.Debug("push applied",
		zap.String("peer", env.PeerPubkey),
		zap.String("event_id", env.DM.Key()),
		zap.Bool("appended", appended))

	ts := env.DM.EventCreatedAt
	if ts <= e.lastEvent.Load() {
		return
	}
	e.lastEvent.Store(ts)
	if e.checkpoints == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := e.checkpoints.SetCheckpoint(ctx, CheckpointLastEvent, strconv.FormatInt(ts, 10)); err != nil {
		e.logger.Error("failed to save checkpoint", zap.Error(err))
	}
}
