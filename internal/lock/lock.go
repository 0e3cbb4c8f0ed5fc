// Package lock provides a Redis lease that lets one replica at a time run a
// periodic job.
package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrNotHeld is returned by Unlock when the lease expired or was taken over.
var ErrNotHeld = errors.New("lease not held")

// Deletes the key only if it still carries our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLocker hands out TTL-bounded leases stored as Redis keys.
type RedisLocker struct {
	rdb *redis.Client
}

// NewRedisLocker returns a RedisLocker using rdb.
func NewRedisLocker(rdb *redis.Client) *RedisLocker {
	return &RedisLocker{rdb: rdb}
}

// Lease is a held lock.
type Lease struct {
	rdb   *redis.Client
	key   string
	token string
}

// TryLock attempts to take key for ttl. It returns (nil, nil) when another
// holder has it.
func (l *RedisLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (*Lease, error) {
	token := uuid.NewString()
	ok, err := l.rdb.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("acquire lease %s: %w", key, err)
	}
	if !ok {
		return nil, nil
	}
	return &Lease{rdb: l.rdb, key: key, token: token}, nil
}

// Unlock releases the lease if it is still ours.
func (le *Lease) Unlock(ctx context.Context) error {
	n, err := releaseScript.Run(ctx, le.rdb, []string{le.key}, le.token).Int()
	if err != nil {
		return fmt.Errorf("release lease %s: %w", le.key, err)
	}
	if n == 0 {
		return ErrNotHeld
	}
	return nil
}
