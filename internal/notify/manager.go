// Package notify maintains the push channel that delivers new-message
// envelopes for the active account.
package notify

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/matheus3301/nchat/internal/bus"
	"github.com/matheus3301/nchat/internal/metrics"
	"github.com/matheus3301/nchat/internal/status"
	"go.uber.org/zap"
)

// Handler receives direct-message envelopes.
type Handler func(Envelope)

// Options tunes the manager. Zero values take the defaults.
type Options struct {
	HealthInterval       time.Duration
	FailureWarnThreshold int
}

const (
	DefaultHealthInterval       = 5 * time.Second
	DefaultFailureWarnThreshold = 3
)

// WarnMessage is published once per failure streak.
const WarnMessage = "failed to watch for updates"

// Manager owns at most one transport handle, bound to one account id.
// Reconnection happens only from the health ticker or an explicit
// EnsureConnected, never from inside an error path.
type Manager struct {
	dialer  Dialer
	handler Handler
	machine *status.Machine
	bus     *bus.Bus
	logger  *zap.Logger
	metrics *metrics.Metrics
	opts    Options

	mu        sync.Mutex
	accountID string
	gen       uint64
	cancel    context.CancelFunc
	conn      Conn
	failures  int
	stopTick  context.CancelFunc
	wg        sync.WaitGroup
}

// NewManager creates a manager in the Disconnected state.
func NewManager(d Dialer, h Handler, machine *status.Machine, b *bus.Bus, logger *zap.Logger, m *metrics.Metrics, opts Options) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.HealthInterval <= 0 {
		opts.HealthInterval = DefaultHealthInterval
	}
	if opts.FailureWarnThreshold <= 0 {
		opts.FailureWarnThreshold = DefaultFailureWarnThreshold
	}
	if machine == nil {
		machine = status.NewMachine(b)
	}
	return &Manager{
		dialer:  d,
		handler: h,
		machine: machine,
		bus:     b,
		logger:  logger.Named("notify"),
		metrics: metrics.OrNop(m),
		opts:    opts,
	}
}

// State returns the channel state.
func (m *Manager) State() status.State {
	return m.machine.Current()
}

// AccountID returns the account the channel is bound to.
func (m *Manager) AccountID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.accountID
}

// EnsureConnected brings up a channel for accountID unless one is already
// connecting or open for it. An empty id is ignored.
func (m *Manager) EnsureConnected(accountID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ensureLocked(accountID)
}

func (m *Manager) ensureLocked(accountID string) {
	if accountID == "" {
		return
	}
	if m.accountID == accountID && m.machine.Is(status.Connecting, status.Open) {
		return
	}
	m.teardownLocked()

	m.gen++
	gen := m.gen
	m.accountID = accountID
	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	m.transitionLocked(status.Connecting)
	m.metrics.ConnectAttempts.Inc()

	m.wg.Add(1)
	go m.run(ctx, gen, accountID)
}

// Start connects and runs the health check until Shutdown.
func (m *Manager) Start(accountID string) {
	m.mu.Lock()
	if m.stopTick != nil {
		m.stopTick()
	}
	ctx, cancel := context.WithCancel(context.Background())
	m.stopTick = cancel
	m.mu.Unlock()

	m.EnsureConnected(accountID)

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		ticker := time.NewTicker(m.opts.HealthInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.mu.Lock()
				// Shutdown cancels ctx under mu; a tick racing it must not redial.
				if ctx.Err() == nil {
					m.ensureLocked(accountID)
				}
				m.mu.Unlock()
			}
		}
	}()
}

// Shutdown stops the health check, closes any handle and waits for the
// manager's goroutines to exit.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	if m.stopTick != nil {
		m.stopTick()
		m.stopTick = nil
	}
	m.teardownLocked()
	m.mu.Unlock()

	m.wg.Wait()
}

// teardownLocked invalidates the current handle. Its goroutine keeps running
// until its read returns, but every callback it makes is ignored.
func (m *Manager) teardownLocked() {
	if m.cancel == nil && m.conn == nil {
		return
	}
	m.gen++
	if m.machine.Is(status.Connecting, status.Open) {
		m.transitionLocked(status.Closing)
	}
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
	if m.conn != nil {
		if err := m.conn.Close(); err != nil {
			m.logger.Debug("close handle", zap.Error(err))
		}
		m.conn = nil
	}
	if m.machine.Is(status.Closing) {
		m.transitionLocked(status.Disconnected)
	}
}

func (m *Manager) transitionLocked(to status.State) {
	if err := m.machine.Transition(to); err != nil {
		m.logger.Debug("state transition skipped", zap.Error(err))
	}
}

func (m *Manager) run(ctx context.Context, gen uint64, accountID string) {
	defer m.wg.Done()

	conn, err := m.dialer.Dial(ctx, accountID)

	m.mu.Lock()
	if gen != m.gen {
		m.mu.Unlock()
		if conn != nil {
			_ = conn.Close()
		}
		return
	}
	if err != nil {
		m.dropLocked()
		m.failures++
		m.metrics.ConnectFailures.Inc()
		failures := m.failures
		m.mu.Unlock()
		m.logger.Warn("connect failed", zap.String("account", accountID), zap.Int("failures", failures), zap.Error(err))
		if failures == m.opts.FailureWarnThreshold {
			m.bus.Warn(WarnMessage, err)
		}
		return
	}
	m.conn = conn
	m.failures = 0
	m.transitionLocked(status.Open)
	m.mu.Unlock()
	m.logger.Info("channel open", zap.String("account", accountID))

	for {
		data, err := conn.Read(ctx)
		if err != nil {
			m.mu.Lock()
			current := gen == m.gen
			if current {
				m.dropLocked()
				m.metrics.ConnectFailures.Inc()
			}
			m.mu.Unlock()
			if current && !errors.Is(err, context.Canceled) {
				m.logger.Warn("channel closed", zap.String("account", accountID), zap.Error(err))
			}
			return
		}
		if !m.isCurrent(gen) {
			return
		}
		m.dispatch(data)
	}
}

// dropLocked discards the current handle after a transport failure.
func (m *Manager) dropLocked() {
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
	if m.conn != nil {
		_ = m.conn.Close()
		m.conn = nil
	}
	m.transitionLocked(status.Disconnected)
}

func (m *Manager) isCurrent(gen uint64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return gen == m.gen
}

func (m *Manager) dispatch(data []byte) {
	env, err := DecodeEnvelope(data)
	if err != nil {
		m.metrics.PushDecodeErrors.Inc()
		m.logger.Warn("drop push payload", zap.Error(err))
		return
	}
	m.metrics.PushesReceived.WithLabelValues(env.Type).Inc()
	if env.Type != TypeDirectMessage {
		m.logger.Debug("ignore push", zap.String("type", env.Type))
		return
	}
	if m.handler != nil {
		m.handler(env)
	}
}
