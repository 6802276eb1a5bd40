package repository

import (
	"context"
	"sync"
)

// MemoryLocker is the single-process order lock used when Redis is
// disabled.
type MemoryLocker struct {
	mu     sync.Mutex
	locked map[string]bool
}

func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{locked: make(map[string]bool)}
}

func (l *MemoryLocker) LockOrder(_ context.Context, orderID string) (func(), error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.locked[orderID] {
		return nil, ErrLocked
	}
	l.locked[orderID] = true
	return func() {
		l.mu.Lock()
		delete(l.locked, orderID)
		l.mu.Unlock()
	}, nil
}

// MemoryStatusCache keeps guest-facing order statuses in process.
type MemoryStatusCache struct {
	mu      sync.RWMutex
	entries map[string]OrderStatusCache
}

func NewMemoryStatusCache() *MemoryStatusCache {
	return &MemoryStatusCache{entries: make(map[string]OrderStatusCache)}
}

func (c *MemoryStatusCache) CacheOrderStatus(_ context.Context, entry *OrderStatusCache) error {
	c.mu.Lock()
	c.entries[entry.ID] = *entry
	c.mu.Unlock()
	return nil
}

func (c *MemoryStatusCache) GetOrderStatusCache(_ context.Context, orderID string) (*OrderStatusCache, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	entry, ok := c.entries[orderID]
	if !ok {
		return nil, ErrNotFound
	}
	return &entry, nil
}
