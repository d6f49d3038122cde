package app

import (
	"context"
	"io"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/jackc/pgx/v5/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/xenking/stitchbag/internal/domain/wishlist"
	"github.com/xenking/stitchbag/internal/storage/memory"
	"github.com/xenking/stitchbag/internal/storage/postgres"
	"github.com/xenking/stitchbag/internal/storage/redis"
	"github.com/xenking/stitchbag/internal/storage/sqlite"
	"github.com/xenking/stitchbag/pkg/health"
)

// stores holds every opened backend. close releases them in reverse order.
type stores struct {
	pool     *pgxpool.Pool
	local    *sqlite.DB
	redis    *goredis.Client
	wishlist wishlist.Store

	closers []io.Closer
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

func openStores(ctx context.Context, cfg *Config) (_ *stores, rerr error) {
	lg := zctx.From(ctx)
	s := &stores{}
	defer func() {
		if rerr != nil {
			s.close(ctx)
		}
	}()

	if err := postgres.Migrate(ctx, cfg.DatabaseURL); err != nil {
		return nil, errors.Wrap(err, "run migrations")
	}
	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, errors.Wrap(err, "create db pool")
	}
	s.pool = pool
	s.closers = append(s.closers, closerFunc(func() error { pool.Close(); return nil }))

	local, err := sqlite.Open(ctx, cfg.LocalStorePath, sqlite.Options{MaxDrafts: cfg.LocalQuota.MaxDrafts})
	if err != nil {
		return nil, errors.Wrap(err, "open local store")
	}
	s.local = local
	s.closers = append(s.closers, local)

	client, err := redisClient(cfg.Redis)
	if err != nil {
		return nil, err
	}
	if client == nil {
		lg.Warn("Redis is not configured, user wishlists are kept in memory")
		s.wishlist = memory.NewWishlistStore()
		return s, nil
	}
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, errors.Wrap(err, "ping redis")
	}
	s.redis = client
	s.closers = append(s.closers, client)
	s.wishlist = redis.NewWishlistStore(client)
	return s, nil
}

func redisClient(cfg RedisConfig) (*goredis.Client, error) {
	switch {
	case cfg.URL != "":
		opts, err := goredis.ParseURL(cfg.URL)
		if err != nil {
			return nil, errors.Wrap(err, "parse redis url")
		}
		return goredis.NewClient(opts), nil
	case cfg.Addr != "":
		return redis.NewClient(redis.Options{Addr: cfg.Addr, Password: cfg.Password, DB: cfg.DB}), nil
	default:
		return nil, nil
	}
}

// addReadinessChecks registers a ping check for every opened backend.
func (s *stores) addReadinessChecks(h *health.Health) {
	h.AddReadinessCheck("postgres", pingTimeout, health.PingCheck(s.pool))
	h.AddReadinessCheck("sqlite", pingTimeout, health.PingCheck(s.local))
	if s.redis != nil {
		h.AddReadinessCheck("redis", pingTimeout, func(ctx context.Context) error {
			return s.redis.Ping(ctx).Err()
		})
	}
}

func (s *stores) close(ctx context.Context) {
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i].Close(); err != nil {
			zctx.From(ctx).Warn("Close store", zap.Error(err))
		}
	}
	s.closers = nil
}
