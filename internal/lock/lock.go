package lock

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// AgreementLocker serializes all mutations to one agreement's ledger. The
// generator, reminder sweep, reconciler and manual payment path all take the
// same lock, so their read-modify-write cycles never interleave. Locks for
// different agreements are independent.
type AgreementLocker interface {
	// Acquire blocks until the agreement's lock is held or ctx is done, and
	// returns a release function.
	Acquire(ctx context.Context, agreementID string) (func(), error)
}

var ErrNotAcquired = errors.New("lock not acquired")

// releaseScript deletes the lock key only when it still holds our token, so
// an expired lock taken over by another process is never released by us.
var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

// RedisLocker implements per-agreement locking via SET NX PX. The TTL caps
// how long a crashed holder can block others.
type RedisLocker struct {
	client *redis.Client
	ttl    time.Duration
	retry  time.Duration
}

func NewRedisLocker(client *redis.Client, ttl time.Duration) *RedisLocker {
	return &RedisLocker{
		client: client,
		ttl:    ttl,
		retry:  50 * time.Millisecond,
	}
}

func (l *RedisLocker) Acquire(ctx context.Context, agreementID string) (func(), error) {
	key := "billing:agreement-lock:" + agreementID
	token := uuid.NewString()

	for {
		ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil {
			return nil, err
		}
		if ok {
			release := func() {
				releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				releaseScript.Run(releaseCtx, l.client, []string{key}, token)
			}
			return release, nil
		}

		select {
		case <-ctx.Done():
			return nil, ErrNotAcquired
		case <-time.After(l.retry):
		}
	}
}

// LocalLocker is an in-process locker for single-node deployments and tests.
// Locks are single-slot channels so a contended acquire still honors ctx
// cancellation, matching RedisLocker.
type LocalLocker struct {
	mu    sync.Mutex
	locks map[string]chan struct{}
}

func NewLocalLocker() *LocalLocker {
	return &LocalLocker{locks: make(map[string]chan struct{})}
}

func (l *LocalLocker) Acquire(ctx context.Context, agreementID string) (func(), error) {
	l.mu.Lock()
	slot, ok := l.locks[agreementID]
	if !ok {
		slot = make(chan struct{}, 1)
		l.locks[agreementID] = slot
	}
	l.mu.Unlock()

	select {
	case slot <- struct{}{}:
		return func() { <-slot }, nil
	case <-ctx.Done():
		return nil, ErrNotAcquired
	}
}
