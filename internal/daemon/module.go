package daemon

import (
	"context"
	"errors"
	"os"
	"time"

	"github.com/matheus3301/tradechat/internal/api"
	"github.com/matheus3301/tradechat/internal/backend"
	"github.com/matheus3301/tradechat/internal/bus"
	"github.com/matheus3301/tradechat/internal/config"
	"github.com/matheus3301/tradechat/internal/contractlog"
	"github.com/matheus3301/tradechat/internal/directory"
	"github.com/matheus3301/tradechat/internal/feed"
	"github.com/matheus3301/tradechat/internal/lock"
	"github.com/matheus3301/tradechat/internal/logging"
	"github.com/matheus3301/tradechat/internal/metrics"
	"github.com/matheus3301/tradechat/internal/notify"
	"github.com/matheus3301/tradechat/internal/outbox"
	"github.com/matheus3301/tradechat/internal/session"
	"github.com/matheus3301/tradechat/internal/status"
	"github.com/matheus3301/tradechat/internal/store"
	intsync "github.com/matheus3301/tradechat/internal/sync"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Params holds the resolved session configuration passed to the fx module.
type Params struct {
	SessionName string
	SocketPath  string         // optional override for testing; empty = use default
	Config      *config.Config // optional; nil = load from the config file
	Debug       bool
}

// Module returns the fx module for the daemon, composing all providers and lifecycle hooks.
func Module(p Params) fx.Option {
	return fx.Module("daemon",
		fx.Supply(p),
		fx.Provide(
			provideConfig,
			provideLogger,
			provideBus,
			provideStateMachine,
			provideLock,
			provideStore,
			provideBackend,
			provideDirectory,
			provideNotifyStore,
			provideNotifyService,
			provideSyncEngine,
			provideSender,
			provideFeed,
			provideSessionService,
			provideNotificationService,
			provideDirectoryService,
			provideContractLogService,
			NewServer,
		),
		fx.Invoke(registerLifecycle),
	)
}

func provideConfig(p Params) (*config.Config, error) {
	if p.Config != nil {
		return p.Config, nil
	}
	return config.LoadEffective(session.ConfigPath())
}

func provideLogger(p Params) (*zap.Logger, error) {
	return logging.New(session.LogPath(p.SessionName), p.SessionName, p.Debug)
}

func provideBus() *bus.Bus {
	return bus.New()
}

func provideStateMachine(b *bus.Bus) *status.Machine {
	return status.NewMachine(b)
}

func provideLock(p Params, cfg *config.Config, logger *zap.Logger) (*lock.Lock, error) {
	if err := session.EnsureDir(p.SessionName); err != nil {
		return nil, err
	}
	logger.Info("acquiring session lock", zap.String("session", p.SessionName))
	l, err := lock.Acquire(session.LockPath(p.SessionName), lock.Holder{
		PID:     os.Getpid(),
		Session: p.SessionName,
		APIBase: cfg.APIBase,
		Since:   time.Now(),
	})
	if err != nil {
		return nil, err
	}
	logger.Info("session lock acquired")
	return l, nil
}

// provideStore depends on the lock so the cache is never opened by two daemons.
func provideStore(p Params, _ *lock.Lock, logger *zap.Logger) (*store.DB, error) {
	dbPath := session.CacheDBPath(p.SessionName)
	db, err := store.Open(dbPath)
	if err != nil {
		return nil, err
	}
	result, err := db.Migrate(logger)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	if result.Changed {
		logger.Info("migrations applied", zap.Uint("from", result.From), zap.Uint("version", result.Version))
	} else {
		logger.Info("migrations up to date", zap.Uint("version", result.Version))
	}
	logger.Info("store initialized", zap.String("path", dbPath))
	return db, nil
}

func provideBackend(cfg *config.Config, logger *zap.Logger) (*backend.Client, error) {
	timeout, err := cfg.Timeout()
	if err != nil {
		return nil, err
	}
	return backend.New(backend.Options{
		BaseURL:       cfg.APIBase,
		CookieName:    cfg.CookieName,
		SessionCookie: cfg.SessionCookie,
		Timeout:       timeout,
		Logger:        logger.Named("backend"),
	})
}

func provideDirectory(cfg *config.Config) *directory.Model {
	return directory.NewModel(cfg.UserID)
}

func provideNotifyStore() *notify.Store {
	return notify.NewStore()
}

func provideNotifyService(s *notify.Store, api *backend.Client, logger *zap.Logger) *notify.Service {
	return notify.NewService(s, api, logger)
}

func provideSyncEngine(db *store.DB, b *bus.Bus, dir *directory.Model, notes *notify.Store, api *backend.Client, logger *zap.Logger) *intsync.Engine {
	return intsync.NewEngine(db, b, dir, notes, api, logger.Named("sync"))
}

func provideSender(db *store.DB, api *backend.Client, dir *directory.Model, b *bus.Bus, logger *zap.Logger) *outbox.Sender {
	return outbox.NewSender(db, api, dir, b, logger.Named("outbox"))
}

// provideFeed returns nil when no push endpoint is configured.
func provideFeed(cfg *config.Config, api *backend.Client, b *bus.Bus, m *status.Machine, logger *zap.Logger) (*feed.Client, error) {
	if cfg.FeedURL == "" {
		return nil, nil
	}
	return feed.New(feed.Options{
		URL:     cfg.FeedURL,
		API:     api,
		Bus:     b,
		Machine: m,
		Logger:  logger.Named("feed"),
	})
}

func provideSessionService(p Params, cfg *config.Config, m *status.Machine, b *bus.Bus, dir *directory.Model, notes *notify.Store, db *store.DB, engine *intsync.Engine, logger *zap.Logger) *api.SessionService {
	info := api.SessionInfo{Name: p.SessionName, APIBase: cfg.APIBase, FeedURL: cfg.FeedURL}
	return api.NewSessionService(info, m, b, dir, notes, db, engine, logger)
}

func provideNotificationService(p Params, notes *notify.Service, db *store.DB, b *bus.Bus, logger *zap.Logger) *api.NotificationService {
	return api.NewNotificationService(notes, db, b, p.SessionName, logger)
}

func provideDirectoryService(p Params, dir *directory.Model, db *store.DB, engine *intsync.Engine, sender *outbox.Sender, b *bus.Bus, logger *zap.Logger) *api.DirectoryService {
	return api.NewDirectoryService(dir, db, engine, sender, b, p.SessionName, logger)
}

func provideContractLogService(client *backend.Client) *api.ContractLogService {
	return api.NewContractLogService(contractlog.New(client))
}

type lifecycleDeps struct {
	fx.In

	Config  *config.Config
	Server  *Server
	Lock    *lock.Lock
	DB      *store.DB
	Engine  *intsync.Engine
	Sender  *outbox.Sender
	Feed    *feed.Client
	Machine *status.Machine
	Logger  *zap.Logger
}

func registerLifecycle(lc fx.Lifecycle, d lifecycleDeps) {
	var (
		cancel context.CancelFunc
		group  *errgroup.Group
	)
	logger := d.Logger

	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			var ctx context.Context
			ctx, cancel = context.WithCancel(context.Background())
			group = new(errgroup.Group)

			d.Engine.Start(ctx)

			go func() {
				if err := d.Server.Start(); err != nil {
					logger.Error("gRPC server error", zap.Error(err))
				}
			}()

			d.Sender.Start(ctx)

			group.Go(func() error {
				if err := d.Engine.Hydrate(ctx); err != nil {
					logger.Warn("initial hydrate failed, serving cached state", zap.Error(err))
				}
				return nil
			})

			if d.Feed != nil {
				group.Go(func() error { return d.Feed.Run(ctx) })
			} else {
				logger.Info("no feed_url configured, push updates disabled")
				_ = d.Machine.TransitionWith(status.Offline, "no feed configured")
			}

			if addr := d.Config.MetricsAddr; addr != "" {
				group.Go(func() error {
					logger.Info("metrics listening", zap.String("addr", addr))
					return metrics.Serve(ctx, addr)
				})
			}
			return nil
		},
		OnStop: func(ctx context.Context) error {
			cancel()
			if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
				logger.Warn("background task failed", zap.Error(err))
			}
			d.Sender.Stop()
			d.Engine.Flush(ctx)
			d.Engine.Stop()
			d.Server.Stop(ctx)
			if err := d.DB.Close(); err != nil {
				logger.Warn("error closing store", zap.Error(err))
			}
			if err := d.Lock.Release(); err != nil {
				logger.Warn("error releasing lock", zap.Error(err))
			}
			logger.Info("daemon stopped")
			return nil
		},
	})
}
