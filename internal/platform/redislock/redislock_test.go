package redislock

import (
	"context"
	"errors"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/yungbote/intromatch-backend/internal/platform/logger"
)

func TestLocalLockerSerializesSameKey(t *testing.T) {
	l := NewLocalLocker()
	var inside, maxInside int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release, err := l.Lock(context.Background(), "user-1")
			if err != nil {
				t.Errorf("Lock: %v", err)
				return
			}
			n := atomic.AddInt32(&inside, 1)
			for {
				m := atomic.LoadInt32(&maxInside)
				if n <= m || atomic.CompareAndSwapInt32(&maxInside, m, n) {
					break
				}
			}
			time.Sleep(2 * time.Millisecond)
			atomic.AddInt32(&inside, -1)
			release()
		}()
	}
	wg.Wait()
	if maxInside != 1 {
		t.Fatalf("max concurrent holders: want=1 got=%d", maxInside)
	}
	if n := len(l.(*localLocker).slots); n != 0 {
		t.Fatalf("slots should be released: got=%d", n)
	}
}

func TestLocalLockerDifferentKeysIndependent(t *testing.T) {
	l := NewLocalLocker()
	r1, err := l.Lock(context.Background(), "a")
	if err != nil {
		t.Fatalf("lock a: %v", err)
	}
	defer r1()
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	r2, err := l.Lock(ctx, "b")
	if err != nil {
		t.Fatalf("lock b should not wait on a: %v", err)
	}
	r2()
}

func TestLocalLockerHonorsContext(t *testing.T) {
	l := NewLocalLocker()
	release, err := l.Lock(context.Background(), "k")
	if err != nil {
		t.Fatalf("lock: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := l.Lock(ctx, "k"); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("want deadline exceeded, got=%v", err)
	}
	release()
	release()
	r2, err := l.Lock(context.Background(), "k")
	if err != nil {
		t.Fatalf("relock after release: %v", err)
	}
	r2()
}

func TestRedisLocker(t *testing.T) {
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR not set")
	}
	l, err := NewRedisLocker(context.Background(), logger.Nop(), Config{Addr: addr, TTL: 5 * time.Second, RetryInterval: 10 * time.Millisecond, KeyPrefix: "test:lock:"})
	if err != nil {
		t.Fatalf("NewRedisLocker: %v", err)
	}
	defer l.Close()

	release, err := l.Lock(context.Background(), t.Name())
	if err != nil {
		t.Fatalf("Lock: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if _, err := l.Lock(ctx, t.Name()); err == nil {
		t.Fatalf("second lock should time out while held")
	}
	release()
	r2, err := l.Lock(context.Background(), t.Name())
	if err != nil {
		t.Fatalf("relock: %v", err)
	}
	r2()
}
