package httpx

import (
	"context"
	"fmt"
	"net/http"
	"testing"
	"time"
)

type statusErr int

func (s statusErr) Error() string       { return fmt.Sprintf("status %d", int(s)) }
func (s statusErr) HTTPStatusCode() int { return int(s) }

func TestIsRetryableError(t *testing.T) {
	cases := map[error]bool{
		nil:                                 false,
		context.Canceled:                    false,
		context.DeadlineExceeded:            true,
		statusErr(429):                      true,
		statusErr(503):                      true,
		statusErr(400):                      false,
		fmt.Errorf("w: %w", statusErr(502)): true,
	}
	for err, want := range cases {
		if got := IsRetryableError(err); got != want {
			t.Fatalf("%v: want=%v got=%v", err, want, got)
		}
	}
}

func TestRetryAfterDurationCaps(t *testing.T) {
	resp := &http.Response{Header: http.Header{"Retry-After": []string{"30"}}}
	if got := RetryAfterDuration(resp, time.Second, 10*time.Second); got != 10*time.Second {
		t.Fatalf("cap: want=10s got=%v", got)
	}
	if got := RetryAfterDuration(nil, 2*time.Second, 0); got != 2*time.Second {
		t.Fatalf("fallback: want=2s got=%v", got)
	}
}

func TestJitterSleepWithinBounds(t *testing.T) {
	for i := 0; i < 50; i++ {
		got := JitterSleep(time.Second)
		if got < 800*time.Millisecond || got > 1200*time.Millisecond {
			t.Fatalf("jitter out of range: %v", got)
		}
	}
}

func TestSleepHonorsCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := Sleep(ctx, time.Hour); err != context.Canceled {
		t.Fatalf("sleep: want=context.Canceled got=%v", err)
	}
}
