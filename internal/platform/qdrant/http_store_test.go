package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"

	types "github.com/yungbote/intromatch-backend/internal/domain"
	"github.com/yungbote/intromatch-backend/internal/platform/logger"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

func newTestLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New("development")
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	t.Cleanup(log.Sync)
	return log
}

func newTestHTTPStore(t *testing.T, dim int, rt roundTripFunc) *httpStore {
	t.Helper()
	cfg := DefaultConfig()
	cfg.URL = "http://qdrant.test:6333"
	cfg.VectorDim = dim
	return &httpStore{
		log:      newTestLogger(t),
		cfg:      cfg,
		baseURL:  cfg.URL,
		distance: "Cosine",
		http:     &http.Client{Transport: rt},
	}
}

func okResponse(t *testing.T, result any) *http.Response {
	t.Helper()
	raw, err := json.Marshal(map[string]any{"result": result, "status": "ok", "time": 0.001})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return &http.Response{StatusCode: http.StatusOK, Body: io.NopCloser(bytes.NewReader(raw)), Header: http.Header{}}
}

func statusResponse(code int, body string) *http.Response {
	return &http.Response{StatusCode: code, Body: io.NopCloser(strings.NewReader(body)), Header: http.Header{}}
}

func collectionResult(size int) map[string]any {
	return map[string]any{"config": map[string]any{"params": map[string]any{"vectors": map[string]any{"size": size, "distance": "Cosine"}}}}
}

func TestHTTPStoreEnsureCollectionCreatesWhenAbsent(t *testing.T) {
	var created map[string]any
	s := newTestHTTPStore(t, 3, func(r *http.Request) (*http.Response, error) {
		switch r.Method {
		case http.MethodGet:
			return statusResponse(http.StatusNotFound, `{"status":{"error":"Not found"}}`), nil
		case http.MethodPut:
			if r.URL.Path != "/collections/profiles" {
				t.Fatalf("create path: got=%s", r.URL.Path)
			}
			if err := json.NewDecoder(r.Body).Decode(&created); err != nil {
				t.Fatalf("decode: %v", err)
			}
			return okResponse(t, true), nil
		}
		t.Fatalf("unexpected %s %s", r.Method, r.URL.Path)
		return nil, nil
	})
	if err := s.EnsureCollection(context.Background()); err != nil {
		t.Fatalf("EnsureCollection: %v", err)
	}
	vectors, _ := created["vectors"].(map[string]any)
	if vectors["size"] != float64(3) || vectors["distance"] != "Cosine" {
		t.Fatalf("create body: got=%v", created)
	}
}

func TestHTTPStoreRefusesWritesOnDimensionMismatch(t *testing.T) {
	writes := 0
	s := newTestHTTPStore(t, 3, func(r *http.Request) (*http.Response, error) {
		if r.Method == http.MethodGet {
			return okResponse(t, collectionResult(1536)), nil
		}
		writes++
		return okResponse(t, map[string]any{"status": "acknowledged"}), nil
	})
	err := s.Upsert(context.Background(), Point{ID: "p1", Vector: []float32{1, 2, 3}})
	var mismatch *types.CollectionDimensionMismatchError
	if !errors.As(err, &mismatch) {
		t.Fatalf("Upsert: want CollectionDimensionMismatchError got=%v", err)
	}
	if !errors.Is(err, types.ErrConfiguration) {
		t.Fatalf("Upsert: want configuration taxonomy")
	}
	err = s.DeleteByFilter(context.Background(), map[string]any{PayloadProfileIDKey: "p1"})
	if !errors.As(err, &mismatch) {
		t.Fatalf("DeleteByFilter: want CollectionDimensionMismatchError got=%v", err)
	}
	if writes != 0 {
		t.Fatalf("writes: want=0 got=%d", writes)
	}
}

func TestHTTPStoreUpsertRequestShape(t *testing.T) {
	var captured map[string]any
	s := newTestHTTPStore(t, 3, func(r *http.Request) (*http.Response, error) {
		if r.Method == http.MethodGet {
			return okResponse(t, collectionResult(3)), nil
		}
		if r.URL.Path != "/collections/profiles/points" || r.URL.RawQuery != "wait=true" {
			t.Fatalf("upsert url: got=%s?%s", r.URL.Path, r.URL.RawQuery)
		}
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Fatalf("decode: %v", err)
		}
		return okResponse(t, map[string]any{"status": "acknowledged"}), nil
	})
	payload := map[string]any{PayloadSnippetKey: "hello"}
	if err := s.Upsert(context.Background(), Point{ID: "p1", Vector: []float32{1, 2, 3}, Payload: payload}); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	points, _ := captured["points"].([]any)
	if len(points) != 1 {
		t.Fatalf("points: want=1 got=%d", len(points))
	}
	first := points[0].(map[string]any)
	if first["id"] != pointID("profiles", "p1") {
		t.Fatalf("point id: got=%v", first["id"])
	}
	got := first["payload"].(map[string]any)
	if got[PayloadProfileIDKey] != "p1" || got[PayloadSnippetKey] != "hello" {
		t.Fatalf("payload: got=%v", got)
	}
	if _, mutated := payload[PayloadProfileIDKey]; mutated {
		t.Fatalf("input payload mutated")
	}
}

func TestHTTPStoreSearchSendsExcludeFilter(t *testing.T) {
	var captured map[string]any
	s := newTestHTTPStore(t, 2, func(r *http.Request) (*http.Response, error) {
		if r.URL.Path != "/collections/profiles/points/search" {
			t.Fatalf("search path: got=%s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Fatalf("decode: %v", err)
		}
		return okResponse(t, []map[string]any{
			{"id": pointID("profiles", "b"), "score": 0.5, "payload": map[string]any{PayloadProfileIDKey: "b"}},
			{"id": pointID("profiles", "a"), "score": 0.9, "payload": map[string]any{PayloadProfileIDKey: "a"}},
		}), nil
	})
	got, err := s.Search(context.Background(), []float32{1, 0}, 5, map[string]any{
		PayloadProfileIDKey: map[string]any{"$ne": "self"},
	})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(got) != 2 || got[0].ID != "a" || got[1].ID != "b" {
		t.Fatalf("ordering: got=%+v", got)
	}
	filter, _ := captured["filter"].(map[string]any)
	mustNot, _ := filter["must_not"].([]any)
	if len(mustNot) != 1 {
		t.Fatalf("filter: want one must_not got=%v", captured["filter"])
	}
	if captured["limit"] != float64(5) {
		t.Fatalf("limit: want=5 got=%v", captured["limit"])
	}
}

func TestHTTPStoreRetrieveMissingReturnsNil(t *testing.T) {
	s := newTestHTTPStore(t, 2, func(r *http.Request) (*http.Response, error) {
		return okResponse(t, []any{}), nil
	})
	p, err := s.Retrieve(context.Background(), "nobody")
	if err != nil || p != nil {
		t.Fatalf("Retrieve: want nil,nil got %+v,%v", p, err)
	}
}

func TestHTTPStoreRetrieveDecodesVector(t *testing.T) {
	s := newTestHTTPStore(t, 2, func(r *http.Request) (*http.Response, error) {
		return okResponse(t, []map[string]any{
			{"id": pointID("profiles", "p1"), "payload": map[string]any{PayloadProfileIDKey: "p1"}, "vector": []float64{0.25, 0.75}},
		}), nil
	})
	p, err := s.Retrieve(context.Background(), "p1")
	if err != nil || p == nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if len(p.Vector) != 2 || p.Vector[1] != 0.75 {
		t.Fatalf("vector: got=%v", p.Vector)
	}
}

func TestHTTPStoreSurfacesStatusErrors(t *testing.T) {
	s := newTestHTTPStore(t, 2, func(r *http.Request) (*http.Response, error) {
		return statusResponse(http.StatusServiceUnavailable, "overloaded"), nil
	})
	_, err := s.Search(context.Background(), []float32{1, 0}, 1, nil)
	var oe *OperationError
	if !errors.As(err, &oe) || oe.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("Search: want 503 OperationError got=%v", err)
	}
}
