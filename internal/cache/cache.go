package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/linzen78111/pos2/internal/config"
)

// Store is a byte cache keyed by string. Values are advisory: callers fall
// back to the database on any error.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// ErrCacheMiss indicates the key is absent from the cache.
var ErrCacheMiss = errors.New("cache miss")

// Module provides the cache store to the Fx graph.
var Module = fx.Provide(NewStore)

// NewStore builds the configured store (redis, memory or noop).
func NewStore(lc fx.Lifecycle, cfg config.Config, logger *zap.Logger) (Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	switch cfg.Cache.Driver {
	case "noop":
		logger.Info("cache disabled; using noop store")
		return NewNoop(), nil
	case "memory":
		logger.Info("using in-process cache",
			zap.Int("size", cfg.Cache.MemorySize),
			zap.Duration("default_ttl", cfg.Cache.DefaultTTL))
		return NewMemory(cfg.Cache.MemorySize, cfg.Cache.DefaultTTL), nil
	case "redis":
		return newRedisStore(lc, cfg.Cache, logger), nil
	default:
		return nil, fmt.Errorf("unsupported cache driver: %s", cfg.Cache.Driver)
	}
}

// NewNoop returns a store that never holds anything.
func NewNoop() Store {
	return noopStore{}
}

type noopStore struct{}

func (noopStore) Get(context.Context, string) ([]byte, error) {
	return nil, ErrCacheMiss
}

func (noopStore) Set(context.Context, string, []byte, time.Duration) error {
	return nil
}

func (noopStore) Delete(context.Context, string) error {
	return nil
}

// GetJSON decodes the cached value at key into dest.
func GetJSON(ctx context.Context, store Store, key string, dest any) error {
	raw, err := store.Get(ctx, key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return fmt.Errorf("decode cached %s: %w", key, err)
	}
	return nil
}

// SetJSON encodes value and stores it under key.
func SetJSON(ctx context.Context, store Store, key string, value any, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode cached %s: %w", key, err)
	}
	return store.Set(ctx, key, raw, ttl)
}
