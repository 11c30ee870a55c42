// Package redislock serializes work per key, across processes when Redis is
// configured and within the process otherwise.
package redislock

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"github.com/yungbote/intromatch-backend/internal/observability"
	"github.com/yungbote/intromatch-backend/internal/platform/ctxutil"
	"github.com/yungbote/intromatch-backend/internal/platform/httpx"
	"github.com/yungbote/intromatch-backend/internal/platform/logger"
)

// Locker acquires an exclusive hold on key. The returned release func is
// idempotent.
type Locker interface {
	Lock(ctx context.Context, key string) (release func(), err error)
	Close() error
}

type Config struct {
	Addr     string
	Password string
	DB       int
	// TTL bounds how long a crashed holder can block others.
	TTL           time.Duration
	RetryInterval time.Duration
	KeyPrefix     string
}

var releaseScript = goredis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

type redisLocker struct {
	log    *logger.Logger
	rdb    *goredis.Client
	ttl    time.Duration
	retry  time.Duration
	prefix string
}

func NewRedisLocker(ctx context.Context, log *logger.Logger, cfg Config) (Locker, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	addr := strings.TrimSpace(cfg.Addr)
	if addr == "" {
		return nil, fmt.Errorf("missing REDIS_ADDR")
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 10 * time.Minute
	}
	if cfg.RetryInterval <= 0 {
		cfg.RetryInterval = 100 * time.Millisecond
	}
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = "intromatch:lock:"
	}

	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		Password:    cfg.Password,
		DB:          cfg.DB,
		DialTimeout: 5 * time.Second,
	})
	pingCtx, cancel := context.WithTimeout(ctxutil.Default(ctx), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return &redisLocker{
		log:    log.With("service", "RedisLocker"),
		rdb:    rdb,
		ttl:    cfg.TTL,
		retry:  cfg.RetryInterval,
		prefix: cfg.KeyPrefix,
	}, nil
}

func (l *redisLocker) Close() error { return l.rdb.Close() }

func (l *redisLocker) Lock(ctx context.Context, key string) (func(), error) {
	ctx = ctxutil.Default(ctx)
	fullKey := l.prefix + key
	token := uuid.NewString()
	start := time.Now()

	for {
		ok, err := l.rdb.SetNX(ctx, fullKey, token, l.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("acquire lock %s: %w", key, err)
		}
		if ok {
			break
		}
		if err := httpx.Sleep(ctx, httpx.JitterSleep(l.retry)); err != nil {
			return nil, fmt.Errorf("acquire lock %s: %w", key, err)
		}
	}
	observability.Current().ObserveUserLockWait("redis", time.Since(start))

	var once sync.Once
	return func() {
		once.Do(func() {
			relCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			n, err := releaseScript.Run(relCtx, l.rdb, []string{fullKey}, token).Int()
			if err != nil && !errors.Is(err, goredis.Nil) {
				l.log.Warn("Lock release failed; will expire by TTL", "key", key, "error", err)
				return
			}
			if n == 0 {
				l.log.Warn("Lock expired before release", "key", key, "ttl", l.ttl.String())
			}
		})
	}, nil
}

type localSlot struct {
	ch   chan struct{}
	refs int
}

type localLocker struct {
	mu    sync.Mutex
	slots map[string]*localSlot
}

// NewLocalLocker returns an in-process keyed mutex that honors context
// cancellation while waiting.
func NewLocalLocker() Locker {
	return &localLocker{slots: map[string]*localSlot{}}
}

func (l *localLocker) Close() error { return nil }

func (l *localLocker) Lock(ctx context.Context, key string) (func(), error) {
	ctx = ctxutil.Default(ctx)
	start := time.Now()

	l.mu.Lock()
	s := l.slots[key]
	if s == nil {
		s = &localSlot{ch: make(chan struct{}, 1)}
		l.slots[key] = s
	}
	s.refs++
	l.mu.Unlock()

	select {
	case s.ch <- struct{}{}:
	case <-ctx.Done():
		l.unref(key, s)
		return nil, ctx.Err()
	}
	observability.Current().ObserveUserLockWait("local", time.Since(start))

	var once sync.Once
	return func() {
		once.Do(func() {
			<-s.ch
			l.unref(key, s)
		})
	}, nil
}

func (l *localLocker) unref(key string, s *localSlot) {
	l.mu.Lock()
	s.refs--
	if s.refs == 0 {
		delete(l.slots, key)
	}
	l.mu.Unlock()
}
