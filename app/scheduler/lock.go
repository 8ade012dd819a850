package scheduler

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// CycleLock keeps two replicas from running the same loop cycle at once
type CycleLock interface {
	// Acquire returns a release func when the lock was taken
	Acquire(ctx context.Context, name string, ttl time.Duration) (release func(), acquired bool, err error)
}

// NoopCycleLock always grants the lock
type NoopCycleLock struct{}

// Acquire implements CycleLock
func (NoopCycleLock) Acquire(context.Context, string, time.Duration) (func(), bool, error) {
	return func() {}, true, nil
}

// releaseScript deletes the key only while it still holds our token
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// refreshScript extends the key only while it still holds our token
var refreshScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`)

// RedisCycleLock is a SET NX PX lock with owner-checked release. The key is
// renewed every ttl/3 until released, so a holder that outlives ttl keeps it.
type RedisCycleLock struct {
	rdb    *redis.Client
	prefix string
}

// NewRedisCycleLock creates a redis backed lock; keys are prefix + "lock:" + name
func NewRedisCycleLock(rdb *redis.Client, prefix string) *RedisCycleLock {
	return &RedisCycleLock{rdb: rdb, prefix: prefix}
}

// Acquire implements CycleLock
func (l *RedisCycleLock) Acquire(ctx context.Context, name string, ttl time.Duration) (func(), bool, error) {
	key := l.prefix + "lock:" + name
	token, err := lockToken()
	if err != nil {
		return nil, false, err
	}

	ok, err := l.rdb.SetNX(ctx, key, token, ttl).Result()
	if err != nil || !ok {
		return nil, false, err
	}

	stop := make(chan struct{})
	done := make(chan struct{})
	go l.keepAlive(key, token, ttl, stop, done)

	var once sync.Once
	release := func() {
		once.Do(func() {
			close(stop)
			<-done
			// the cycle ctx may already be cancelled on shutdown
			rctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			_ = releaseScript.Run(rctx, l.rdb, []string{key}, token).Err()
		})
	}
	return release, true, nil
}

func (l *RedisCycleLock) keepAlive(key, token string, ttl time.Duration, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	interval := ttl / 3
	if interval <= 0 {
		<-stop
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			rctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			n, err := refreshScript.Run(rctx, l.rdb, []string{key}, token, ttl.Milliseconds()).Int64()
			cancel()
			if err == nil && n == 0 {
				// another owner took over after expiry
				return
			}
		}
	}
}

func lockToken() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
