package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/splitlabs/max-visibility/internal/cache"
	"github.com/splitlabs/max-visibility/internal/config"
	"github.com/splitlabs/max-visibility/internal/resilience"
	"github.com/splitlabs/max-visibility/internal/store"
	"github.com/splitlabs/max-visibility/internal/visibility"
)

const defaultSQLitePath = "maxvis.db"

func initStore(ctx context.Context, c *config.Config) (store.Store, error) {
	switch c.Store.Driver {
	case "sqlite":
		dsn := c.Store.DatabaseURL
		if dsn == "" {
			dsn = defaultSQLitePath
		}
		return store.NewSQLite(dsn)
	case "postgres":
		return store.NewPostgres(ctx, c.Store.DatabaseURL, &store.PoolConfig{
			MaxConns: c.Store.MaxConns,
			MinConns: c.Store.MinConns,
		})
	default:
		return nil, eris.Errorf("unsupported store driver: %s", c.Store.Driver)
	}
}

// openStore opens the configured store and applies migrations.
func openStore(ctx context.Context, c *config.Config) (store.Store, error) {
	st, err := initStore(ctx, c)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, err
	}
	return st, nil
}

// initCache builds the configured snapshot cache. The returned closer is
// never nil.
func initCache(ctx context.Context, c *config.Config) (cache.SnapshotCache, string, func(), error) {
	ttl := time.Duration(c.Cache.TTLSecs) * time.Second
	noop := func() {}

	switch c.Cache.Backend {
	case cache.BackendMemory, "":
		return cache.NewMemory(c.Cache.MaxEntries, ttl), cache.BackendMemory, noop, nil
	case cache.BackendRedis:
		rc, err := cache.NewRedis(ctx, cache.RedisOptions{
			Addr:     c.Cache.RedisAddr,
			Password: c.Cache.RedisPassword,
			DB:       c.Cache.RedisDB,
			TTL:      ttl,
		})
		if err != nil {
			return nil, "", noop, err
		}
		return rc, cache.BackendRedis, func() { _ = rc.Close() }, nil
	case cache.BackendOff:
		return cache.Nop{}, cache.BackendOff, noop, nil
	default:
		return nil, "", noop, eris.Errorf("unsupported cache backend: %s", c.Cache.Backend)
	}
}

func newService(repo visibility.Repository, c *config.Config) (*visibility.Service, error) {
	loc := time.UTC
	if tz := c.Visibility.ChartTimezone; tz != "" {
		l, err := time.LoadLocation(tz)
		if err != nil {
			return nil, eris.Wrapf(err, "load chart timezone %q", tz)
		}
		loc = l
	}

	zap.L().Debug("visibility service configured",
		zap.Int("chart_days", c.Visibility.ChartDays),
		zap.Int("top_n", c.Visibility.TopN),
		zap.String("timezone", loc.String()),
	)

	return visibility.NewService(repo, visibility.Options{
		ChartDays: c.Visibility.ChartDays,
		TopN:      c.Visibility.TopN,
		Location:  loc,
		Retry:     resilience.ReadRetryConfig(),
	}), nil
}
