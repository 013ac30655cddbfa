package services

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// InvocationLock serializes engine ticks. The external caller is
// at-least-once and may overlap invocations; holding this advisory lock for
// the duration of a tick keeps two ticks from processing the same pending
// rows concurrently. Rows are still individually guarded by the pending
// claim update, so losing the lock is never a correctness problem, only a
// throughput one.
type InvocationLock interface {
	// Acquire returns true when the lock was taken. A false return means
	// another tick is in flight and this invocation should report busy.
	Acquire(ctx context.Context, ttl time.Duration) (bool, error)
	Release(ctx context.Context) error
}

// releaseScript deletes the lock only when still owned by this holder
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisInvocationLock implements InvocationLock over a redis SET NX key
type RedisInvocationLock struct {
	client *redis.Client
	key    string
	token  string
}

func NewRedisInvocationLock(client *redis.Client, key string) *RedisInvocationLock {
	if key == "" {
		key = "engine:tick:lock"
	}
	return &RedisInvocationLock{
		client: client,
		key:    key,
		token:  uuid.NewString(),
	}
}

func (l *RedisInvocationLock) Acquire(ctx context.Context, ttl time.Duration) (bool, error) {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return l.client.SetNX(ctx, l.key, l.token, ttl).Result()
}

func (l *RedisInvocationLock) Release(ctx context.Context) error {
	return releaseScript.Run(ctx, l.client, []string{l.key}, l.token).Err()
}

// NoopInvocationLock always grants the lock; used when redis is disabled
// and in tests. Double-send under overlapping ticks is then only prevented
// by the per-row claim update.
type NoopInvocationLock struct{}

func NewNoopInvocationLock() *NoopInvocationLock {
	return &NoopInvocationLock{}
}

func (l *NoopInvocationLock) Acquire(ctx context.Context, ttl time.Duration) (bool, error) {
	return true, nil
}

func (l *NoopInvocationLock) Release(ctx context.Context) error {
	return nil
}
