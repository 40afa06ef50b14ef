package sessionstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/fairyhunter13/ai-interview-coach/internal/domain"
)

const keyPrefix = "interview:session:"

// RedisStore keeps sessions as JSON values with a TTL. Expired sessions leave
// their vector collections behind; the Context Index must be dropped through
// an explicit Delete or Reset.
type RedisStore struct {
	rdb *redis.Client
	ttl time.Duration
}

var _ domain.SessionStore = (*RedisStore)(nil)

// NewRedisStore wraps an existing client.
func NewRedisStore(rdb *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{rdb: rdb, ttl: ttl}
}

// Get returns the session or domain.ErrNotFound.
func (r *RedisStore) Get(ctx context.Context, id string) (domain.Session, error) {
	b, err := r.rdb.Get(ctx, keyPrefix+id).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.Session{}, fmt.Errorf("op=sessionstore.Get: session %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return domain.Session{}, fmt.Errorf("op=sessionstore.Get: %w: %v", domain.ErrInternal, err)
	}
	var s domain.Session
	if err := json.Unmarshal(b, &s); err != nil {
		return domain.Session{}, fmt.Errorf("op=sessionstore.Get: decode: %w: %v", domain.ErrInternal, err)
	}
	return s, nil
}

// Save stores the session and refreshes its expiry.
func (r *RedisStore) Save(ctx context.Context, s domain.Session) error {
	if s.ID == "" {
		return fmt.Errorf("op=sessionstore.Save: empty id: %w", domain.ErrInvalidArgument)
	}
	b, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("op=sessionstore.Save: encode: %w", err)
	}
	if err := r.rdb.Set(ctx, keyPrefix+s.ID, b, r.ttl).Err(); err != nil {
		return fmt.Errorf("op=sessionstore.Save: %w: %v", domain.ErrInternal, err)
	}
	return nil
}

// Delete removes the session. Unknown ids are ignored.
func (r *RedisStore) Delete(ctx context.Context, id string) error {
	if err := r.rdb.Del(ctx, keyPrefix+id).Err(); err != nil {
		return fmt.Errorf("op=sessionstore.Delete: %w: %v", domain.ErrInternal, err)
	}
	return nil
}

// Ping checks connectivity. Used by readiness probes.
func (r *RedisStore) Ping(ctx context.Context) error {
	return r.rdb.Ping(ctx).Err()
}
