package issuer

import (
	"context"
	"sync"

	"github.com/nft-tickets/backend/internal/credential"
)

// Cache keeps issued credentials so a holder is asked to sign only once
// per ticket. Get returns (nil, nil) on a miss.
type Cache interface {
	Get(ctx context.Context, key credential.Key) (*credential.Credential, error)
	Put(ctx context.Context, key credential.Key, c *credential.Credential) error
	Delete(ctx context.Context, key credential.Key) error
}

type MemoryCache struct {
	mu    sync.RWMutex
	items map[string]credential.Credential
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{items: make(map[string]credential.Credential)}
}

func (m *MemoryCache) Get(_ context.Context, key credential.Key) (*credential.Credential, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.items[key.String()]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

func (m *MemoryCache) Put(_ context.Context, key credential.Key, c *credential.Credential) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[key.String()] = *c
	return nil
}

func (m *MemoryCache) Delete(_ context.Context, key credential.Key) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.items, key.String())
	return nil
}
