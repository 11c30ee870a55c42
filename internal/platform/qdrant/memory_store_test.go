package qdrant

import (
	"context"
	"errors"
	"testing"

	types "github.com/yungbote/intromatch-backend/internal/domain"
)

func memCfg(dim int) Config {
	cfg := DefaultConfig()
	cfg.Transport = TransportMemory
	cfg.VectorDim = dim
	return cfg
}

func TestMemoryStoreSearchExcludesAndRanks(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(newTestLogger(t), memCfg(2))
	if err := s.Upsert(ctx,
		Point{ID: "self", Vector: []float32{1, 0}},
		Point{ID: "close", Vector: []float32{0.9, 0.1}},
		Point{ID: "far", Vector: []float32{0, 1}},
	); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	got, err := s.Search(ctx, []float32{1, 0}, 5, map[string]any{PayloadProfileIDKey: map[string]any{"$ne": "self"}})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(got) != 2 || got[0].ID != "close" || got[1].ID != "far" {
		t.Fatalf("Search: got=%+v", got)
	}
}

func TestMemoryStoreUpsertOverwrites(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(newTestLogger(t), memCfg(2))
	_ = s.Upsert(ctx, Point{ID: "p", Vector: []float32{1, 0}})
	_ = s.Upsert(ctx, Point{ID: "p", Vector: []float32{0, 1}})
	got, err := s.Search(ctx, []float32{0, 1}, 10, nil)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("points: want=1 got=%d", len(got))
	}
	p, _ := s.Retrieve(ctx, "p")
	if p == nil || p.Vector[1] != 1 {
		t.Fatalf("Retrieve: got=%+v", p)
	}
}

func TestMemoryStoreDimensionMismatch(t *testing.T) {
	s := NewMemoryStoreWithDim(newTestLogger(t), memCfg(3), 2)
	err := s.Upsert(context.Background(), Point{ID: "p", Vector: []float32{1, 2, 3}})
	var mismatch *types.CollectionDimensionMismatchError
	if !errors.As(err, &mismatch) || mismatch.Got != 2 || mismatch.Want != 3 {
		t.Fatalf("Upsert: want mismatch got=%v", err)
	}
	err = s.DeleteByFilter(context.Background(), map[string]any{PayloadProfileIDKey: "p"})
	if !errors.As(err, &mismatch) {
		t.Fatalf("DeleteByFilter: want mismatch got=%v", err)
	}
}

func TestMemoryStoreDeleteByFilterAndReset(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(newTestLogger(t), memCfg(2))
	_ = s.Upsert(ctx, Point{ID: "a", Vector: []float32{1, 0}}, Point{ID: "b", Vector: []float32{0, 1}})
	if err := s.DeleteByFilter(ctx, map[string]any{PayloadProfileIDKey: "a"}); err != nil {
		t.Fatalf("DeleteByFilter: %v", err)
	}
	if p, _ := s.Retrieve(ctx, "a"); p != nil {
		t.Fatalf("a should be deleted")
	}
	if err := s.DeleteByFilter(ctx, nil); err == nil {
		t.Fatalf("empty filter delete should be refused")
	}
	if err := s.ResetCollection(ctx); err != nil {
		t.Fatalf("ResetCollection: %v", err)
	}
	if p, _ := s.Retrieve(ctx, "b"); p != nil {
		t.Fatalf("reset should drop all points")
	}
}

func TestToGRPCFilterConvertsConditions(t *testing.T) {
	tf, err := translateFilterMap(map[string]any{
		PayloadProfileIDKey: map[string]any{"$ne": "self"},
		"tags":              map[string]any{"$in": []string{"a", "b"}},
	})
	if err != nil {
		t.Fatalf("translate: %v", err)
	}
	f, err := toGRPCFilter(tf.asMap())
	if err != nil {
		t.Fatalf("toGRPCFilter: %v", err)
	}
	if len(f.GetMust()) != 1 || len(f.GetMustNot()) != 1 {
		t.Fatalf("grpc filter: must=%d must_not=%d", len(f.GetMust()), len(f.GetMustNot()))
	}
	if _, err := toGRPCFilter(map[string]any{"must": []any{matchCondition("score", 1.5)}}); err == nil {
		t.Fatalf("float match should be unsupported over grpc")
	}
}
