package core

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/matheus3301/nchat/internal/api"
	"github.com/matheus3301/nchat/internal/bus"
	"github.com/matheus3301/nchat/internal/config"
	"github.com/matheus3301/nchat/internal/lock"
	"github.com/matheus3301/nchat/internal/notify"
	"github.com/matheus3301/nchat/internal/peers"
	"github.com/matheus3301/nchat/internal/profile"
	"github.com/matheus3301/nchat/internal/status"
	intsync "github.com/matheus3301/nchat/internal/sync"
	"github.com/matheus3301/nchat/internal/thread"
	"go.uber.org/zap"
)

// ErrNoAccount is returned by Connect when the credentials own no account.
var ErrNoAccount = errors.New("no account for these keys")

// Core is the assembled sync core handed to the UI shell.
type Core struct {
	Client    *api.Client
	Bus       *bus.Bus
	Machine   *status.Machine
	Directory *peers.Directory
	Thread    *thread.Reconciler
	Channel   *notify.Manager
	Engine    *intsync.Engine

	baseDir string
	logger  *zap.Logger

	mu      sync.Mutex
	account *api.Account
	acctLk  *lock.Lock
}

// NewCore groups the core components.
func NewCore(
	client *api.Client,
	b *bus.Bus,
	machine *status.Machine,
	dir *peers.Directory,
	rec *thread.Reconciler,
	channel *notify.Manager,
	engine *intsync.Engine,
	logger *zap.Logger,
) *Core {
	return &Core{
		Client:    client,
		Bus:       b,
		Machine:   machine,
		Directory: dir,
		Thread:    rec,
		Channel:   channel,
		Engine:    engine,
		baseDir:   profile.BaseDir(),
		logger:    logger,
	}
}

// Account returns the connected account, nil before Connect succeeds.
func (c *Core) Account() *api.Account {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.account
}

// Connect fetches the operator account, binds the push channel to it and
// loads the peer list. Calling it again for the same account only refreshes.
func (c *Core) Connect(ctx context.Context) (*api.Account, error) {
	acct, err := c.Client.FetchAccount(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch account: %w", err)
	}
	if acct == nil {
		return nil, ErrNoAccount
	}
	if err := c.bind(acct); err != nil {
		return nil, err
	}
	if err := c.Directory.Refresh(ctx); err != nil {
		return acct, err
	}
	return acct, nil
}

// KeepConnected calls Connect on every interval tick until an account is
// bound or ctx is done. Each distinct failure is reported once.
func (c *Core) KeepConnected(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = config.DefaultHealthInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var reported string
	for attempt := 1; ; attempt++ {
		acct, err := c.Connect(ctx)
		switch {
		case acct != nil:
			if err != nil {
				c.logger.Warn("initial peer refresh failed", zap.Error(err))
			}
			c.logger.Info("connected", zap.String("account", acct.ID), zap.Int("attempt", attempt))
			return
		case ctx.Err() != nil:
			return
		case errors.Is(err, ErrNoAccount):
			if reported != "no-account" {
				reported = "no-account"
				c.logger.Info("no account yet, waiting for one to be created")
				c.Bus.Warn("no account for these keys; create one with nchatctl account create", err)
			}
		default:
			c.logger.Warn("connect failed", zap.Error(err), zap.Int("attempt", attempt))
			if reported != "error" {
				reported = "error"
				c.Bus.Fail("failed to load account", err)
			}
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// bind switches the push channel to acct, holding its account lock.
func (c *Core) bind(acct *api.Account) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.account != nil && c.account.ID == acct.ID {
		c.account = acct
		c.Channel.EnsureConnected(acct.ID)
		return nil
	}

	lk, err := lock.AcquireAccount(c.baseDir, acct.ID)
	if err != nil {
		return err
	}
	if c.account != nil {
		c.Channel.Shutdown()
		_ = c.acctLk.Release()
	}
	c.account = acct
	c.acctLk = lk
	c.Directory.SetAccount(acct.ID)
	c.Channel.Start(acct.ID)
	c.logger.Info("account bound", zap.String("account", acct.ID))
	return nil
}

// Close stops the channel and releases the account lock.
func (c *Core) Close() {
	c.Channel.Shutdown()
	c.Directory.Close()

	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.acctLk.Release(); err != nil {
		c.logger.Warn("error releasing account lock", zap.Error(err))
	}
	c.acctLk = nil
}
