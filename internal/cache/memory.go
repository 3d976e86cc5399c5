package cache

import (
	"context"
	"encoding/json"
	"sync"
	"time"
)

type item struct {
	value     []byte
	expiresAt time.Time // zero means no expiry
}

// Memory is a process-lifetime in-memory cache. Reads and inserts are
// safe under concurrent access; a lost update on a race only costs a
// duplicate upstream call.
type Memory struct {
	mu    sync.RWMutex
	items map[string]item
}

func NewMemory() *Memory {
	return &Memory{items: make(map[string]item)}
}

func (c *Memory) Get(_ context.Context, key string, dest any) error {
	c.mu.RLock()
	it, exists := c.items[key]
	c.mu.RUnlock()

	if !exists {
		return ErrMiss
	}
	if !it.expiresAt.IsZero() && time.Now().After(it.expiresAt) {
		return ErrMiss
	}
	return json.Unmarshal(it.value, dest)
}

func (c *Memory) Set(_ context.Context, key string, value any, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}

	it := item{value: data}
	if ttl > 0 {
		it.expiresAt = time.Now().Add(ttl)
	}

	c.mu.Lock()
	c.items[key] = it
	c.mu.Unlock()
	return nil
}
