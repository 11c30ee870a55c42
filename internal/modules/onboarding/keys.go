package onboarding

import (
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	audioContentType = "audio/wav"
	defaultContext   = "initial"
)

var unsafeContextChars = regexp.MustCompile(`[^a-z0-9_-]+`)

// uploadContext normalizes a caller-supplied label into a key segment.
func uploadContext(raw string) string {
	c := unsafeContextChars.ReplaceAllString(strings.ToLower(strings.TrimSpace(raw)), "-")
	c = strings.Trim(c, "-")
	if c == "" {
		return defaultContext
	}
	if len(c) > 48 {
		c = c[:48]
	}
	return c
}

func sessionKeyPrefix(sessionID uuid.UUID) string {
	return "onboarding/" + sessionID.String() + "/"
}

func initialKey(sessionID uuid.UUID, context string) string {
	return fmt.Sprintf("%s%s.wav", sessionKeyPrefix(sessionID), uploadContext(context))
}

// keyClock hands out strictly increasing millisecond stamps so two requests
// in the same millisecond still get distinct keys.
type keyClock struct {
	mu   sync.Mutex
	last int64
	now  func() time.Time
}

func (c *keyClock) next() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	ms := c.now().UnixMilli()
	if ms <= c.last {
		ms = c.last + 1
	}
	c.last = ms
	return ms
}

func additionalKey(sessionID uuid.UUID, context string, stamp int64) string {
	return fmt.Sprintf("%s%s-%d.wav", sessionKeyPrefix(sessionID), uploadContext(context), stamp)
}
