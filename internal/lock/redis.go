package lock

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrNotAcquired is returned when the lock stays held by someone else
// for longer than the configured wait.
var ErrNotAcquired = errors.New("lock: not acquired")

// release deletes the key only if it still carries our token, so an
// expired holder can never free a lock someone else has since taken.
var releaseScript = redis.NewScript(`
	if redis.call('GET', KEYS[1]) == ARGV[1] then
		return redis.call('DEL', KEYS[1])
	end
	return 0
`)

// RedisLocker is a Locker shared by every API instance pointed at the
// same Redis.
type RedisLocker struct {
	rdb    *redis.Client
	prefix string
	ttl    time.Duration
	wait   time.Duration
	retry  time.Duration
}

// NewRedisLocker builds a RedisLocker.  ttl bounds how long a crashed
// holder can block a session; wait bounds how long Lock retries.
func NewRedisLocker(rdb *redis.Client, prefix string, ttl, wait time.Duration) *RedisLocker {
	if prefix == "" {
		prefix = "lock:session"
	}
	if ttl <= 0 {
		ttl = 10 * time.Second
	}
	if wait <= 0 {
		wait = 5 * time.Second
	}
	return &RedisLocker{rdb: rdb, prefix: prefix, ttl: ttl, wait: wait, retry: 25 * time.Millisecond}
}

func (l *RedisLocker) key(sessionID uint64) string {
	return fmt.Sprintf("%s:%d", l.prefix, sessionID)
}

func (l *RedisLocker) Lock(ctx context.Context, sessionID uint64) (func(), error) {
	key := l.key(sessionID)
	token := uuid.NewString()
	deadline := time.Now().Add(l.wait)

	for {
		ok, err := l.rdb.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("lock: set %s: %w", key, err)
		}
		if ok {
			break
		}
		if time.Now().After(deadline) {
			return nil, fmt.Errorf("%w: %s", ErrNotAcquired, key)
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(l.retry):
		}
	}

	return func() { l.release(key, token) }, nil
}

// release runs on a fresh context since the caller's may already be
// cancelled.  A failed release is logged; the TTL frees the key.
func (l *RedisLocker) release(key, token string) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := releaseScript.Run(ctx, l.rdb, []string{key}, token).Err(); err != nil {
		log.Printf("lock: release %s: %v", key, err)
	}
}
