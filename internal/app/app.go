package app

import (
	"context"
	"sync"

	"github.com/textgate/textgate/internal/cache"
	"github.com/textgate/textgate/internal/store"
	"github.com/textgate/textgate/pkg/config"
	"github.com/textgate/textgate/pkg/logging"
	"github.com/textgate/textgate/pkg/metrics"
	"github.com/textgate/textgate/pkg/resilience"
)

// App bundles the explicitly constructed service instances. Nothing here
// is a package-level global; the hosting process owns the lifecycle.
type App struct {
	Config     *config.Config
	Logger     *logging.Logger
	Metrics    *metrics.Metrics
	Store      *store.RedisClient
	Cache      *cache.ResponseCache
	Resilience *resilience.Service
}

// New constructs the application from configuration. The cache store is
// probed but an unreachable store is not fatal; the cache runs degraded.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	logger, err := logging.NewLogger(&logging.Config{
		Level:       cfg.Logging.Level,
		Format:      cfg.Logging.Format,
		Output:      cfg.Logging.Output,
		ServiceName: "textgate",
		Version:     version,
	})
	if err != nil {
		return nil, err
	}
	logging.SetGlobalLogger(logger)

	m := metrics.NewMetrics(metrics.DefaultConfig())

	var redisClient *store.RedisClient
	if cfg.Cache.Enabled {
		redisClient, err = store.NewRedisClient(&cfg.Redis)
		if err != nil {
			return nil, err
		}
	}

	responseCache := cache.NewResponseCache(redisClient, &cache.Config{
		KeyPrefix:    cfg.Cache.KeyPrefix,
		DefaultTTL:   cfg.Cache.DefaultTTL,
		OperationTTL: cfg.Cache.OperationTTL,
	}, m)

	if cfg.Cache.Enabled && !responseCache.Connect(ctx) {
		logger.Warn("Starting without response cache")
	}

	return &App{
		Config:     cfg,
		Logger:     logger,
		Metrics:    m,
		Store:      redisClient,
		Cache:      responseCache,
		Resilience: resilience.NewService(m),
	}, nil
}

// Close releases held resources
func (a *App) Close() error {
	if a.Store != nil {
		return a.Store.Close()
	}
	return nil
}

var version = "dev"

var (
	provideOnce sync.Once
	provided    *App
	provideErr  error
)

// Provide constructs the application exactly once per process and hands
// the same instance to every caller. This is the explicit singleton scope
// for hosts that want one; tests construct their own App via New.
func Provide(ctx context.Context) (*App, error) {
	provideOnce.Do(func() {
		cfg, err := config.Load()
		if err != nil {
			provideErr = err
			return
		}
		provided, provideErr = New(ctx, cfg)
	})
	return provided, provideErr
}
