package qdrant

import (
	"context"
	"math"
	"sort"
	"sync"

	types "github.com/yungbote/intromatch-backend/internal/domain"
	"github.com/yungbote/intromatch-backend/internal/platform/logger"
)

// memoryStore is a process-local index for development and tests. It applies
// the same filter semantics as the REST transport.
type memoryStore struct {
	log       *logger.Logger
	cfg       Config
	mu        sync.RWMutex
	exists    bool
	actualDim int
	points    map[string]Point
}

func NewMemoryStore(log *logger.Logger, cfg Config) Store {
	if log == nil {
		log = logger.Nop()
	}
	return &memoryStore{
		log:    log.With("service", "QdrantMemoryStore"),
		cfg:    cfg,
		points: map[string]Point{},
	}
}

// NewMemoryStoreWithDim simulates a pre-existing collection of the given
// dimension.
func NewMemoryStoreWithDim(log *logger.Logger, cfg Config, existingDim int) Store {
	s := NewMemoryStore(log, cfg).(*memoryStore)
	s.exists = true
	s.actualDim = existingDim
	return s
}

func (s *memoryStore) Close() error { return nil }

func (s *memoryStore) EnsureCollection(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.exists {
		s.exists = true
		s.actualDim = s.cfg.VectorDim
		return nil
	}
	if s.actualDim != s.cfg.VectorDim {
		return &types.CollectionDimensionMismatchError{Collection: s.cfg.Collection, Want: s.cfg.VectorDim, Got: s.actualDim}
	}
	return nil
}

func (s *memoryStore) Upsert(ctx context.Context, points ...Point) error {
	if len(points) == 0 {
		return nil
	}
	if err := s.EnsureCollection(ctx); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range points {
		if err := validatePoint("upsert", s.cfg.VectorDim, p); err != nil {
			return err
		}
		payload := clonePayload(p.Payload)
		payload[PayloadProfileIDKey] = p.ID
		vec := append([]float32(nil), p.Vector...)
		s.points[pointID(s.cfg.Collection, p.ID)] = Point{ID: p.ID, Vector: vec, Payload: payload}
	}
	return nil
}

func (s *memoryStore) Retrieve(_ context.Context, id string) (*Point, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.points[pointID(s.cfg.Collection, id)]
	if !ok {
		return nil, nil
	}
	cp := Point{ID: p.ID, Vector: append([]float32(nil), p.Vector...), Payload: clonePayload(p.Payload)}
	return &cp, nil
}

func (s *memoryStore) Search(_ context.Context, vector []float32, limit int, filter map[string]any) ([]Match, error) {
	if len(vector) != s.cfg.VectorDim {
		return nil, opErr("search", OperationErrorValidation, dimensionMessage("query vector", s.cfg.VectorDim, len(vector)), nil)
	}
	if limit <= 0 {
		limit = 10
	}
	tf, err := translateFilterMap(filter)
	if err != nil {
		return nil, err
	}
	f := tf.asMap()

	s.mu.RLock()
	out := make([]Match, 0, len(s.points))
	for _, p := range s.points {
		if !matches(f, p.Payload) {
			continue
		}
		out = append(out, Match{ID: p.ID, Score: score(s.cfg.Distance, vector, p.Vector), Payload: clonePayload(p.Payload)})
	}
	s.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score == out[j].Score {
			return out[i].ID < out[j].ID
		}
		return out[i].Score > out[j].Score
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *memoryStore) DeleteByFilter(ctx context.Context, filter map[string]any) error {
	tf, err := translateFilterMap(filter)
	if err != nil {
		return err
	}
	if tf.empty() {
		return opErr("delete", OperationErrorValidation, "refusing to delete with an empty filter", nil)
	}
	if err := s.EnsureCollection(ctx); err != nil {
		return err
	}
	f := tf.asMap()
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, p := range s.points {
		if matches(f, p.Payload) {
			delete(s.points, k)
		}
	}
	return nil
}

func (s *memoryStore) ResetCollection(ctx context.Context) error {
	s.mu.Lock()
	s.points = map[string]Point{}
	s.exists = false
	s.mu.Unlock()
	return s.EnsureCollection(ctx)
}

func score(distance string, a, b []float32) float64 {
	switch canonicalDistance(distance) {
	case "Dot":
		return dot(a, b)
	case "Euclid":
		var sum float64
		for i := range a {
			d := float64(a[i] - b[i])
			sum += d * d
		}
		return normalizeScore("euclid", math.Sqrt(sum))
	case "Manhattan":
		var sum float64
		for i := range a {
			sum += math.Abs(float64(a[i] - b[i]))
		}
		return normalizeScore("manhattan", sum)
	default:
		na, nb := math.Sqrt(dot(a, a)), math.Sqrt(dot(b, b))
		if na == 0 || nb == 0 {
			return 0
		}
		return dot(a, b) / (na * nb)
	}
}

func dot(a, b []float32) float64 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}
