package cache

import (
	"context"
	"sync"
	"time"
)

// MemoryProvider is a process-local Provider with per-key expiry.
type MemoryProvider struct {
	mu   sync.Mutex
	data map[string]entry
	now  func() time.Time
}

type entry struct {
	value     []byte
	expiresAt time.Time
}

// NewMemoryProvider creates an empty in-memory cache.
func NewMemoryProvider() *MemoryProvider {
	return &MemoryProvider{data: make(map[string]entry), now: time.Now}
}

// Get returns a copy of the cached value or ErrCacheMiss.
func (p *MemoryProvider) Get(_ context.Context, key string) ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	e, ok := p.lookup(key)
	if !ok {
		return nil, ErrCacheMiss
	}
	return append([]byte(nil), e.value...), nil
}

// Set stores value; a non-positive ttl never expires.
func (p *MemoryProvider) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.data[key] = p.newEntry(value, ttl)
	return nil
}

// SetNX stores value only when key is absent or expired and reports whether it did.
func (p *MemoryProvider) SetNX(_ context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.lookup(key); ok {
		return false, nil
	}
	p.data[key] = p.newEntry(value, ttl)
	return true, nil
}

// Del removes key.
func (p *MemoryProvider) Del(_ context.Context, key string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	delete(p.data, key)
	return nil
}

// Close drops every entry.
func (p *MemoryProvider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.data = make(map[string]entry)
	return nil
}

// lookup must be called with mu held. Expired entries are evicted lazily.
func (p *MemoryProvider) lookup(key string) (entry, bool) {
	e, ok := p.data[key]
	if !ok {
		return entry{}, false
	}
	if !e.expiresAt.IsZero() && !p.now().Before(e.expiresAt) {
		delete(p.data, key)
		return entry{}, false
	}
	return e, true
}

func (p *MemoryProvider) newEntry(value []byte, ttl time.Duration) entry {
	e := entry{value: append([]byte(nil), value...)}
	if ttl > 0 {
		e.expiresAt = p.now().Add(ttl)
	}
	return e
}
