// Package sessionstore persists transient interview sessions.
//
// MemoryStore is the single-process default; RedisStore lets several API
// replicas share sessions. Both expire idle sessions after a TTL.
package sessionstore

import (
	"context"
	"fmt"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/fairyhunter13/ai-interview-coach/internal/domain"
)

// MemoryStore keeps sessions in a go-cache with sliding expiration.
type MemoryStore struct {
	cache *cache.Cache
	ttl   time.Duration
}

var _ domain.SessionStore = (*MemoryStore)(nil)

// NewMemoryStore creates a store whose entries expire ttl after their last
// save. onExpire, when non-nil, runs for sessions that expire or are deleted.
func NewMemoryStore(ttl time.Duration, onExpire func(domain.Session)) *MemoryStore {
	c := cache.New(ttl, ttl/4+time.Second)
	if onExpire != nil {
		c.OnEvicted(func(_ string, v any) {
			if s, ok := v.(domain.Session); ok {
				onExpire(s)
			}
		})
	}
	return &MemoryStore{cache: c, ttl: ttl}
}

// Get returns the session or domain.ErrNotFound.
func (m *MemoryStore) Get(_ context.Context, id string) (domain.Session, error) {
	v, ok := m.cache.Get(id)
	if !ok {
		return domain.Session{}, fmt.Errorf("op=sessionstore.Get: session %s: %w", id, domain.ErrNotFound)
	}
	return v.(domain.Session), nil
}

// Save stores the session and refreshes its expiry.
func (m *MemoryStore) Save(_ context.Context, s domain.Session) error {
	if s.ID == "" {
		return fmt.Errorf("op=sessionstore.Save: empty id: %w", domain.ErrInvalidArgument)
	}
	m.cache.Set(s.ID, s, cache.DefaultExpiration)
	return nil
}

// Delete removes the session. Unknown ids are ignored.
func (m *MemoryStore) Delete(_ context.Context, id string) error {
	m.cache.Delete(id)
	return nil
}
