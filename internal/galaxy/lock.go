package galaxy

import (
	"context"
	stderrors "errors"
	"log/slog"
	"sync"
	"time"

	"galaxy-server/internal/shared/errors"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrLockLost is the cancellation cause of a held context whose lock
// expired or was taken over before unlock.
var ErrLockLost = stderrors.New("region lock lost")

// Locker grants exclusive write access to a region. Lock never waits: a
// held region yields errors.RegionLocked. The returned context is derived
// from ctx and is cancelled on unlock or, with cause ErrLockLost, when the
// lock can no longer be guaranteed.
type Locker interface {
	Lock(ctx context.Context, region string, ttl time.Duration) (held context.Context, unlock func(), err error)
}

// MemoryLocker serialises writers inside one process.
type MemoryLocker struct {
	mu   sync.Mutex
	held map[string]bool
}

func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{held: make(map[string]bool)}
}

func (l *MemoryLocker) Lock(ctx context.Context, region string, _ time.Duration) (context.Context, func(), error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held[region] {
		return nil, nil, errors.RegionLocked(region)
	}
	l.held[region] = true

	held, cancel := context.WithCancel(ctx)
	var once sync.Once
	return held, func() {
		once.Do(func() {
			cancel()
			l.mu.Lock()
			delete(l.held, region)
			l.mu.Unlock()
		})
	}, nil
}

const lockPrefix = "generation:lock:"

// releaseScript deletes the lock only while it still carries our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// renewScript extends the lock only while it still carries our token.
var renewScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`)

// RedisLocker shares region locks across server instances. The TTL bounds
// how long a crashed holder can block a region; a live holder renews the
// lock every third of the TTL.
type RedisLocker struct {
	client redis.Cmdable
	logger *slog.Logger
	now    func() time.Time
}

func NewRedisLocker(client redis.Cmdable, logger *slog.Logger) *RedisLocker {
	return &RedisLocker{client: client, logger: logger.With("component", "region_locker"), now: time.Now}
}

func (l *RedisLocker) Lock(ctx context.Context, region string, ttl time.Duration) (context.Context, func(), error) {
	key := lockPrefix + region
	token := uuid.NewString()

	ok, err := l.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, nil, errors.WrapExternal("failed to acquire region lock", err)
	}
	if !ok {
		return nil, nil, errors.RegionLocked(region)
	}

	held, cancel := context.WithCancelCause(ctx)
	renewed := make(chan struct{})
	if ttl > 0 {
		go l.renew(held, cancel, renewed, region, key, token, ttl)
	} else {
		close(renewed)
	}

	var once sync.Once
	return held, func() {
		once.Do(func() {
			cancel(nil)
			<-renewed

			ctx, done := context.WithTimeout(context.Background(), 3*time.Second)
			defer done()
			if err := releaseScript.Run(ctx, l.client, []string{key}, token).Err(); err != nil && err != redis.Nil {
				l.logger.Warn("Failed to release region lock", "operation", "unlock", "region", region, "error", err)
			}
		})
	}, nil
}

// renew keeps the lock alive until held ends. A missing token, or failing
// renewals for a whole TTL, cancels held with ErrLockLost.
func (l *RedisLocker) renew(held context.Context, cancel context.CancelCauseFunc, done chan<- struct{}, region, key, token string, ttl time.Duration) {
	defer close(done)
	logger := l.logger.With("operation", "renew", "region", region)

	ticker := time.NewTicker(ttl / 3)
	defer ticker.Stop()
	last := l.now()
	for {
		select {
		case <-held.Done():
			return
		case <-ticker.C:
		}

		ctx, stop := context.WithTimeout(held, ttl/3)
		n, err := renewScript.Run(ctx, l.client, []string{key}, token, ttl.Milliseconds()).Int()
		stop()
		switch {
		case err == nil && n == 1:
			last = l.now()
		case err == nil:
			logger.Error("Region lock taken over while held")
			cancel(ErrLockLost)
			return
		case held.Err() != nil:
			return
		case l.now().Sub(last) >= ttl:
			logger.Error("Region lock expired without renewal", "error", err)
			cancel(ErrLockLost)
			return
		default:
			logger.Warn("Failed to renew region lock", "error", err)
		}
	}
}
