package cache

import (
	"context"
	"errors"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// DefaultMemorySize bounds the in-process store when no size is configured.
const DefaultMemorySize = 1024

type memoryEntry struct {
	value   []byte
	expires time.Time
}

// Memory is an in-process LRU store for single-node deployments. The LRU
// evicts after defaultTTL; shorter per-key TTLs are checked on read.
type Memory struct {
	lru *expirable.LRU[string, memoryEntry]
	ttl time.Duration
	now func() time.Time
}

// NewMemory returns an empty store holding at most size keys. A non-positive
// defaultTTL keeps entries written without a TTL until evicted by size.
func NewMemory(size int, defaultTTL time.Duration) *Memory {
	if size <= 0 {
		size = DefaultMemorySize
	}
	return &Memory{
		lru: expirable.NewLRU[string, memoryEntry](size, nil, defaultTTL),
		ttl: defaultTTL,
		now: time.Now,
	}
}

func (m *Memory) Get(_ context.Context, key string) ([]byte, error) {
	e, ok := m.lru.Get(key)
	if !ok {
		return nil, ErrCacheMiss
	}
	if !e.expires.IsZero() && !m.now().Before(e.expires) {
		m.lru.Remove(key)
		return nil, ErrCacheMiss
	}
	return append([]byte(nil), e.value...), nil
}

func (m *Memory) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if key == "" {
		return errors.New("cache key is required")
	}
	if ttl <= 0 {
		ttl = m.ttl
	}
	e := memoryEntry{value: append([]byte(nil), value...)}
	if ttl > 0 {
		e.expires = m.now().Add(ttl)
	}
	m.lru.Add(key, e)
	return nil
}

func (m *Memory) Delete(_ context.Context, key string) error {
	m.lru.Remove(key)
	return nil
}
