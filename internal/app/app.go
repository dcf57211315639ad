package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/yungbote/student-service/internal/data/db"
	apphttp "github.com/yungbote/student-service/internal/http"
	"github.com/yungbote/student-service/internal/observability"
	"github.com/yungbote/student-service/internal/platform/logger"
	"github.com/yungbote/student-service/internal/version"
)

type App struct {
	Log      *logger.Logger
	Cfg      Config
	DB       *db.Service
	Repos    Repos
	Clients  Clients
	Services Services
	Server   *apphttp.Server

	shutdownOTel func(context.Context) error
}

func newLogger(cfg Config) (*logger.Logger, error) {
	log, err := logger.New(cfg.Env)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	return log, nil
}

func New(ctx context.Context, cfg Config) (*App, error) {
	log, err := newLogger(cfg)
	if err != nil {
		return nil, err
	}

	shutdownOTel := observability.InitOTel(ctx, log, observability.OtelConfig{
		ServiceName: serviceName,
		Environment: cfg.Env,
		Version:     version.Version,
	})
	metrics, err := observability.NewMetrics(nil)
	if err != nil {
		log.Sync()
		return nil, fmt.Errorf("init metrics: %w", err)
	}

	database, err := db.Open(cfg.DBConfig(), log)
	if err != nil {
		log.Sync()
		return nil, fmt.Errorf("init database: %w", err)
	}
	if err := database.AutoMigrateAll(); err != nil {
		_ = database.Close()
		log.Sync()
		return nil, fmt.Errorf("database automigrate: %w", err)
	}

	reposet := wireRepos(database.DB(), log)

	clientset, err := wireClients(log, cfg, metrics)
	if err != nil {
		_ = database.Close()
		log.Sync()
		return nil, err
	}

	serviceset, err := wireServices(log, cfg, reposet, clientset, metrics)
	if err != nil {
		clientset.Close()
		_ = database.Close()
		log.Sync()
		return nil, err
	}

	handlerset := wireHandlers(log, serviceset)
	server := wireServer(log, cfg, handlerset, metrics)

	return &App{
		Log:          log,
		Cfg:          cfg,
		DB:           database,
		Repos:        reposet,
		Clients:      clientset,
		Services:     serviceset,
		Server:       server,
		shutdownOTel: shutdownOTel,
	}, nil
}

// Run serves HTTP and publishes breaker events until ctx is cancelled, then
// shuts the server down within cfg.HTTP.ShutdownTimeout.
func (a *App) Run(ctx context.Context) error {
	if a == nil || a.Server == nil {
		return fmt.Errorf("app not initialized")
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.Log.Info("HTTP server listening", "addr", a.Server.Addr())
		if err := a.Server.Run(); err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	if a.Clients.BreakerBus != nil {
		g.Go(func() error {
			err := a.Clients.BreakerBus.Run(gctx)
			if err != nil && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("breaker bus: %w", err)
			}
			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		a.Log.Info("Shutting down HTTP server...")
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), a.shutdownTimeout())
		defer cancel()
		if err := a.Server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http shutdown: %w", err)
		}
		return nil
	})

	return g.Wait()
}

func (a *App) shutdownTimeout() time.Duration {
	if a.Cfg.HTTP.ShutdownTimeout > 0 {
		return a.Cfg.HTTP.ShutdownTimeout
	}
	return 15 * time.Second
}

func (a *App) Close() {
	if a == nil {
		return
	}
	a.Clients.Close()
	if a.DB != nil {
		if err := a.DB.Close(); err != nil {
			a.Log.Warn("Closing database failed", "error", err)
		}
	}
	if a.shutdownOTel != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := a.shutdownOTel(ctx); err != nil {
			a.Log.Warn("OTel shutdown failed", "error", err)
		}
		cancel()
	}
	if a.Log != nil {
		a.Log.Sync()
	}
}

// Migrate opens the configured database, applies the schema and closes it.
func Migrate(cfg Config) error {
	log, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer log.Sync()

	database, err := db.Open(cfg.DBConfig(), log)
	if err != nil {
		return fmt.Errorf("init database: %w", err)
	}
	defer database.Close()

	if err := database.AutoMigrateAll(); err != nil {
		return fmt.Errorf("database automigrate: %w", err)
	}
	log.Info("Schema migrated", "driver", database.Driver())
	return nil
}
