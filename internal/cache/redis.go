package cache

import (
	"context"
	"errors"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/linzen78111/pos2/internal/config"
)

type redisStore struct {
	client     goredis.Cmdable
	prefix     string
	defaultTTL time.Duration
}

// newRedisStore registers the client on the lifecycle. An unreachable server
// at boot is logged, not fatal: order intake does not depend on the cache.
func newRedisStore(lc fx.Lifecycle, cfg config.Cache, logger *zap.Logger) Store {
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	store := &redisStore{client: client, prefix: cfg.KeyPrefix, defaultTTL: cfg.DefaultTTL}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := client.Ping(ctx).Err(); err != nil {
				logger.Warn("redis unreachable; requests will read through to the database",
					zap.String("addr", cfg.Redis.Addr), zap.Error(err))
				return nil
			}
			logger.Info("redis cache connected", zap.String("addr", cfg.Redis.Addr))
			return nil
		},
		OnStop: func(context.Context) error {
			logger.Info("closing redis cache")
			return client.Close()
		},
	})
	return store
}

func (s *redisStore) key(k string) string {
	return s.prefix + k
}

func (s *redisStore) Get(ctx context.Context, key string) ([]byte, error) {
	if key == "" {
		return nil, ErrCacheMiss
	}
	res, err := s.client.Get(ctx, s.key(key)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, err
	}
	return res, nil
}

func (s *redisStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if key == "" {
		return errors.New("cache key is required")
	}
	if ttl <= 0 {
		ttl = s.defaultTTL
	}
	return s.client.Set(ctx, s.key(key), value, ttl).Err()
}

func (s *redisStore) Delete(ctx context.Context, key string) error {
	if key == "" {
		return nil
	}
	return s.client.Del(ctx, s.key(key)).Err()
}
