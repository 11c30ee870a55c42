package qdrant

import (
	"context"
	"strings"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/yungbote/intromatch-backend/internal/platform/logger"
)

// Payload keys written with every profile point.
const (
	PayloadProfileIDKey = "originalProfileId"
	PayloadSnippetKey   = "raw_input_snippet"
)

var pointIDNamespaceUUID = uuid.MustParse("0f1705d1-2c3f-4e40-b2f4-f855f7d3c8e8")

type Point struct {
	ID      string
	Vector  []float32
	Payload map[string]any
}

type Match struct {
	ID      string
	Score   float64
	Payload map[string]any
}

// Store is the vector index. Filters use the operator map accepted by
// translateFilterMap ($eq, $ne, $in, $and, $or, $not).
type Store interface {
	// EnsureCollection creates the collection when absent. A collection with a
	// different dimension yields a *domain.CollectionDimensionMismatchError.
	EnsureCollection(ctx context.Context) error
	Upsert(ctx context.Context, points ...Point) error
	// Retrieve returns nil when the point does not exist.
	Retrieve(ctx context.Context, id string) (*Point, error)
	Search(ctx context.Context, vector []float32, limit int, filter map[string]any) ([]Match, error)
	DeleteByFilter(ctx context.Context, filter map[string]any) error
	ResetCollection(ctx context.Context) error
	Close() error
}

// New builds the store selected by cfg.Transport.
func New(ctx context.Context, log *logger.Logger, cfg Config) (Store, error) {
	if err := ValidateConfig(cfg); err != nil {
		return nil, err
	}
	switch cfg.Transport {
	case TransportGRPC:
		return NewGRPCStore(log, cfg)
	case TransportMemory:
		return NewMemoryStore(log, cfg), nil
	default:
		return NewHTTPStore(ctx, log, cfg)
	}
}

func pointID(collection, id string) string {
	return uuid.NewSHA1(pointIDNamespaceUUID, []byte(collection+"|"+strings.TrimSpace(id))).String()
}

func clonePayload(in map[string]any) map[string]any {
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

// matchID prefers the caller id stored in the payload over the hashed point id.
func matchID(payload map[string]any, rawPointID string) string {
	if id, ok := payload[PayloadProfileIDKey].(string); ok && strings.TrimSpace(id) != "" {
		return strings.TrimSpace(id)
	}
	return rawPointID
}

func validatePoint(op string, dim int, p Point) error {
	if strings.TrimSpace(p.ID) == "" {
		return opErr(op, OperationErrorValidation, "point id is required", nil)
	}
	if len(p.Vector) == 0 {
		return opErr(op, OperationErrorValidation, "point "+p.ID+" has empty vector", nil)
	}
	if dim > 0 && len(p.Vector) != dim {
		return opErr(op, OperationErrorValidation, dimensionMessage("point "+p.ID, dim, len(p.Vector)), nil)
	}
	return nil
}

// collectionGuard runs the collection preflight once per process and
// coalesces concurrent callers. Failures are not cached.
type collectionGuard struct {
	mu    sync.Mutex
	ready bool
	sf    singleflight.Group
}

func (g *collectionGuard) ensure(ctx context.Context, fn func(context.Context) error) error {
	g.mu.Lock()
	ready := g.ready
	g.mu.Unlock()
	if ready {
		return nil
	}
	_, err, _ := g.sf.Do("ensure", func() (any, error) {
		if err := fn(ctx); err != nil {
			return nil, err
		}
		g.mu.Lock()
		g.ready = true
		g.mu.Unlock()
		return nil, nil
	})
	return err
}

func (g *collectionGuard) reset() {
	g.mu.Lock()
	g.ready = false
	g.mu.Unlock()
}
