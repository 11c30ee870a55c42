package qdrant

import (
	"errors"
	"testing"
)

func TestTranslateFilterMapExcludeProfile(t *testing.T) {
	got, err := translateFilterMap(map[string]any{
		PayloadProfileIDKey: map[string]any{"$ne": "p-1"},
	})
	if err != nil {
		t.Fatalf("translateFilterMap: %v", err)
	}
	if len(got.Must) != 0 || len(got.MustNot) != 1 {
		t.Fatalf("shape: want must=0 must_not=1 got must=%d must_not=%d", len(got.Must), len(got.MustNot))
	}
	cond := findConditionByKey(got.MustNot, PayloadProfileIDKey)
	if cond == nil {
		t.Fatalf("missing %s condition", PayloadProfileIDKey)
	}
	if m, _ := cond["match"].(map[string]any); m["value"] != "p-1" {
		t.Fatalf("match: got=%v", cond["match"])
	}
}

func TestTranslateFilterMapInAndNested(t *testing.T) {
	got, err := translateFilterMap(map[string]any{
		"event_id": map[string]any{"$in": []string{"e1", "e2"}},
		"$or":      []any{map[string]any{"kind": "profile"}, map[string]any{"kind": "participation"}},
	})
	if err != nil {
		t.Fatalf("translateFilterMap: %v", err)
	}
	if len(got.Must) != 1 || len(got.Should) != 2 {
		t.Fatalf("shape: must=%d should=%d", len(got.Must), len(got.Should))
	}
	cond := findConditionByKey(got.Must, "event_id")
	anyVals, _ := cond["match"].(map[string]any)["any"].([]any)
	if len(anyVals) != 2 || anyVals[0] != "e1" {
		t.Fatalf("any values: got=%v", anyVals)
	}
}

func TestTranslateFilterMapUnsupportedOperator(t *testing.T) {
	_, err := translateFilterMap(map[string]any{"score": map[string]any{"$gt": 2}})
	var opErr *OperationError
	if !errors.As(err, &opErr) {
		t.Fatalf("expected OperationError, got=%T", err)
	}
	if opErr.Code != OperationErrorUnsupportedFilter {
		t.Fatalf("error code: want=%q got=%q", OperationErrorUnsupportedFilter, opErr.Code)
	}
}

func TestMatchesEvaluatesTranslatedFilter(t *testing.T) {
	tf, err := translateFilterMap(map[string]any{
		PayloadProfileIDKey: map[string]any{"$ne": "self"},
		"$not":              map[string]any{"hidden": true},
	})
	if err != nil {
		t.Fatalf("translateFilterMap: %v", err)
	}
	f := tf.asMap()
	if matches(f, map[string]any{PayloadProfileIDKey: "self"}) {
		t.Fatalf("self should be excluded")
	}
	if !matches(f, map[string]any{PayloadProfileIDKey: "other"}) {
		t.Fatalf("other should match")
	}
	if matches(f, map[string]any{PayloadProfileIDKey: "other", "hidden": true}) {
		t.Fatalf("hidden should be excluded by $not")
	}
	if !matches(map[string]any{}, map[string]any{"x": 1}) {
		t.Fatalf("empty filter should match everything")
	}
}

func findConditionByKey(items []any, key string) map[string]any {
	for _, raw := range items {
		cond, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		if condKey, _ := cond["key"].(string); condKey == key {
			return cond
		}
	}
	return nil
}
