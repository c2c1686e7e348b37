// Package redis implements storage backed by Redis.
package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/xenking/storefront-checkout/internal/domain/paylock"
)

// releaseScript deletes the key only while it still holds the caller's token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// LockStore keeps payment locks in Redis so that every API instance sees the
// same lock map. Staleness is enforced by key expiry, so Sweep has nothing
// to do.
type LockStore struct {
	client redis.UniversalClient
	prefix string
}

var _ paylock.Store = (*LockStore)(nil)

// NewLockStore creates a LockStore. Keys are namespaced under prefix.
func NewLockStore(client redis.UniversalClient, prefix string) *LockStore {
	if prefix == "" {
		prefix = "paylock"
	}
	return &LockStore{client: client, prefix: prefix}
}

func (s *LockStore) lockKey(key string) string {
	return fmt.Sprintf("%s:%s", s.prefix, key)
}

// TryAcquire implements paylock.Store with SET NX PX.
func (s *LockStore) TryAcquire(ctx context.Context, key string, id uuid.UUID, _ time.Time, ttl time.Duration) (bool, error) {
	ok, err := s.client.SetNX(ctx, s.lockKey(key), id.String(), ttl).Result()
	if err != nil {
		return false, errors.Wrap(err, "redis setnx")
	}
	return ok, nil
}

// Release implements paylock.Store.
func (s *LockStore) Release(ctx context.Context, key string, id uuid.UUID) error {
	err := releaseScript.Run(ctx, s.client, []string{s.lockKey(key)}, id.String()).Err()
	if err != nil && !errors.Is(err, redis.Nil) {
		return errors.Wrap(err, "redis release")
	}
	return nil
}

// Sweep implements paylock.Store. Redis expires stale locks on its own.
func (s *LockStore) Sweep(context.Context, time.Time, time.Duration) (int, error) {
	return 0, nil
}
