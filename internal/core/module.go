package core

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/matheus3301/nchat/internal/api"
	"github.com/matheus3301/nchat/internal/bus"
	"github.com/matheus3301/nchat/internal/config"
	"github.com/matheus3301/nchat/internal/lock"
	"github.com/matheus3301/nchat/internal/logging"
	"github.com/matheus3301/nchat/internal/metrics"
	"github.com/matheus3301/nchat/internal/notify"
	"github.com/matheus3301/nchat/internal/peers"
	"github.com/matheus3301/nchat/internal/profile"
	"github.com/matheus3301/nchat/internal/status"
	"github.com/matheus3301/nchat/internal/store"
	intsync "github.com/matheus3301/nchat/internal/sync"
	"github.com/matheus3301/nchat/internal/thread"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Params holds the resolved profile configuration passed to the fx module.
type Params struct {
	ProfileName string
	Profile     config.Profile
	SocketPath  string // optional override for testing; empty = use default
	LogStderr   bool
	// Logger replaces the profile log file when set.
	Logger *zap.Logger
}

// Module returns the fx module for the sync core, composing all providers and lifecycle hooks.
func Module(p Params) fx.Option {
	return fx.Module("core",
		fx.Supply(p),
		fx.Provide(
			provideLogger,
			provideBus,
			provideStateMachine,
			provideLock,
			provideStore,
			provideRegistry,
			provideMetrics,
			provideClient,
			provideDirectory,
			provideReconciler,
			provideSyncEngine,
			provideChannel,
			NewHealthServer,
			NewCore,
		),
		fx.Invoke(registerLifecycle),
	)
}

func provideLogger(p Params) (*zap.Logger, error) {
	if p.Logger != nil {
		return p.Logger, nil
	}
	return logging.New(profile.LogPath(p.ProfileName), p.ProfileName, logging.Options{
		Stderr: p.LogStderr,
		Debug:  p.Profile.Debug,
	})
}

func provideBus() *bus.Bus {
	return bus.New()
}

func provideStateMachine(b *bus.Bus) *status.Machine {
	return status.NewMachine(b)
}

func provideLock(p Params, logger *zap.Logger) (*lock.Lock, error) {
	if err := profile.EnsureDir(p.ProfileName); err != nil {
		return nil, err
	}
	logger.Info("acquiring profile lock", zap.String("profile", p.ProfileName))
	l, err := lock.Acquire(profile.Dir(p.ProfileName))
	if err != nil {
		return nil, err
	}
	logger.Info("profile lock acquired")
	return l, nil
}

// provideStore depends on the profile lock so the database is only opened
// by its owner.
func provideStore(p Params, _ *lock.Lock, logger *zap.Logger) (*store.DB, error) {
	dbPath := profile.DBPath(p.ProfileName)
	db, err := store.Open(dbPath)
	if err != nil {
		return nil, err
	}
	result, err := db.Migrate()
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	if result.Changed {
		logger.Info("migrations applied", zap.Uint("version", result.Version))
	} else {
		logger.Info("migrations up to date", zap.Uint("version", result.Version))
	}
	logger.Info("store initialized", zap.String("path", dbPath))
	return db, nil
}

func provideRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

func provideMetrics(reg *prometheus.Registry) *metrics.Metrics {
	return metrics.New(reg)
}

func provideClient(p Params, logger *zap.Logger, m *metrics.Metrics) *api.Client {
	return api.NewClient(api.Config{
		BaseURL:    p.Profile.APIURL,
		InvoiceKey: p.Profile.InvoiceKey,
		AdminKey:   p.Profile.AdminKey,
		Timeout:    p.Profile.RequestTimeout,
	}, logger.Named("api"), m)
}

func provideDirectory(p Params, client *api.Client, db *store.DB, b *bus.Bus, logger *zap.Logger, m *metrics.Metrics) *peers.Directory {
	return peers.New(client, db, b, logger, m, peers.Options{
		DebounceWindow: p.Profile.Debounce,
		RetryDelay:     p.Profile.RetryDelay,
		FetchTimeout:   p.Profile.RequestTimeout,
	})
}

func provideReconciler(client *api.Client, dir *peers.Directory, b *bus.Bus, logger *zap.Logger, m *metrics.Metrics) *thread.Reconciler {
	return thread.New(client, dir, b, logger, m)
}

func provideSyncEngine(rec *thread.Reconciler, db *store.DB, logger *zap.Logger) *intsync.Engine {
	return intsync.NewEngine(rec, db, logger)
}

func provideChannel(p Params, client *api.Client, engine *intsync.Engine, machine *status.Machine, b *bus.Bus, logger *zap.Logger, m *metrics.Metrics) *notify.Manager {
	dialer := &notify.WSDialer{
		URL:         client.WebSocketURL,
		DialTimeout: p.Profile.RequestTimeout,
		ReadLimit:   1 << 20,
	}
	return notify.NewManager(dialer, engine.HandleEnvelope, machine, b, logger, m, notify.Options{
		HealthInterval: p.Profile.HealthInterval,
	})
}

func registerLifecycle(lc fx.Lifecycle, p Params, c *Core, srv *HealthServer, reg *prometheus.Registry, db *store.DB, lk *lock.Lock, logger *zap.Logger) {
	var metricsSrv *http.Server
	ctx, cancel := context.WithCancel(context.Background())
	connected := make(chan struct{})

	lc.Append(fx.Hook{
		OnStart: func(startCtx context.Context) error {
			if err := c.Engine.Load(startCtx); err != nil {
				logger.Warn("load checkpoint", zap.Error(err))
			}
			if err := c.Directory.Warm(startCtx); err != nil {
				logger.Warn("warm peer directory", zap.Error(err))
			}

			go func() {
				if err := srv.Start(); err != nil {
					logger.Error("health server error", zap.Error(err))
				}
			}()

			if p.Profile.MetricsAddr != "" {
				metricsSrv = &http.Server{
					Addr:              p.Profile.MetricsAddr,
					Handler:           metricsMux(reg),
					ReadHeaderTimeout: 5 * time.Second,
				}
				go func() {
					logger.Info("metrics listener starting", zap.String("addr", p.Profile.MetricsAddr))
					if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
						logger.Error("metrics listener error", zap.Error(err))
					}
				}()
			}

			// The backend may be slow or down; never block startup on it.
			go func() {
				defer close(connected)
				c.KeepConnected(ctx, p.Profile.HealthInterval)
			}()
			return nil
		},
		OnStop: func(stopCtx context.Context) error {
			cancel()
			select {
			case <-connected:
			case <-stopCtx.Done():
			}
			c.Close()
			if metricsSrv != nil {
				_ = metricsSrv.Shutdown(stopCtx)
			}
			srv.Stop(stopCtx)
			if err := db.Close(); err != nil {
				logger.Warn("error closing store", zap.Error(err))
			}
			if err := lk.Release(); err != nil {
				logger.Warn("error releasing lock", zap.Error(err))
			}
			logger.Info("core stopped")
			_ = logger.Sync()
			return nil
		},
	})
}

func metricsMux(reg *prometheus.Registry) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler(reg))
	return mux
}
