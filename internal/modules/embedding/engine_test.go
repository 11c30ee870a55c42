package embedding

import (
	"context"
	"errors"
	"hash/fnv"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	types "github.com/yungbote/intromatch-backend/internal/domain"
	"github.com/yungbote/intromatch-backend/internal/platform/logger"
	"github.com/yungbote/intromatch-backend/internal/platform/qdrant"
)

const testDim = 4

type hashEmbedder struct {
	mu    sync.Mutex
	calls int
	err   error
}

// Embed maps text to a deterministic non-zero vector.
func (h *hashEmbedder) Embed(_ context.Context, inputs []string) ([][]float32, error) {
	h.mu.Lock()
	h.calls++
	h.mu.Unlock()
	if h.err != nil {
		return nil, h.err
	}
	out := make([][]float32, len(inputs))
	for i, in := range inputs {
		f := fnv.New64a()
		_, _ = f.Write([]byte(in))
		sum := f.Sum64()
		vec := make([]float32, testDim)
		for d := range vec {
			vec[d] = float32((sum>>(d*8))&0xff) + 1
		}
		out[i] = vec
	}
	return out, nil
}

type markRecorder struct {
	mu  sync.Mutex
	ids []uuid.UUID
}

func (m *markRecorder) MarkEmbedded(_ context.Context, id uuid.UUID, _ time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ids = append(m.ids, id)
	return nil
}

func testStoreConfig() qdrant.Config {
	cfg := qdrant.DefaultConfig()
	cfg.Transport = qdrant.TransportMemory
	cfg.VectorDim = testDim
	return cfg
}

func newTestEngine(t *testing.T, store qdrant.Store, emb Embedder, marker EmbeddedMarker) *Engine {
	t.Helper()
	e, err := New(Deps{Log: logger.Nop(), Embedder: emb, Store: store, Marker: marker, Dim: testDim})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return e
}

func TestEmbedAndStoreThenGetVector(t *testing.T) {
	ctx := context.Background()
	marks := &markRecorder{}
	e := newTestEngine(t, qdrant.NewMemoryStore(logger.Nop(), testStoreConfig()), &hashEmbedder{}, marks)
	id := uuid.New()

	if err := e.EmbedAndStore(ctx, id, "I design brands for startups"); err != nil {
		t.Fatalf("EmbedAndStore: %v", err)
	}
	vec, err := e.GetVector(ctx, id)
	if err != nil {
		t.Fatalf("GetVector: %v", err)
	}
	if len(vec) != testDim {
		t.Fatalf("dim: want=%d got=%d", testDim, len(vec))
	}
	if len(marks.ids) != 1 || marks.ids[0] != id {
		t.Fatalf("marker: got=%v", marks.ids)
	}
	missing, err := e.GetVector(ctx, uuid.New())
	if err != nil || missing != nil {
		t.Fatalf("missing vector: want nil,nil got=%v,%v", missing, err)
	}
}

func TestEmbedAndStoreIsIdempotentPerProfile(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t, qdrant.NewMemoryStore(logger.Nop(), testStoreConfig()), &hashEmbedder{}, nil)
	ids := []uuid.UUID{uuid.New(), uuid.New(), uuid.New()}
	for round := 0; round < 3; round++ {
		for i, id := range ids {
			text := []string{"alpha", "beta", "gamma"}[i]
			if round == 2 {
				text += " updated"
			}
			if err := e.EmbedAndStore(ctx, id, text); err != nil {
				t.Fatalf("EmbedAndStore: %v", err)
			}
		}
	}
	vec, _ := e.GetVector(ctx, ids[0])
	hits, err := e.FindSimilar(ctx, vec, 10, nil)
	if err != nil {
		t.Fatalf("FindSimilar: %v", err)
	}
	if len(hits) != len(ids) {
		t.Fatalf("hits: want=%d got=%d", len(ids), len(hits))
	}
	seen := map[uuid.UUID]bool{}
	for _, h := range hits {
		if seen[h.ProfileID] {
			t.Fatalf("duplicate id %s in results", h.ProfileID)
		}
		seen[h.ProfileID] = true
	}
}

func TestFindSimilarNeverReturnsExcluded(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t, qdrant.NewMemoryStore(logger.Nop(), testStoreConfig()), &hashEmbedder{}, nil)
	var ids []uuid.UUID
	for _, text := range []string{"one", "two", "three", "four", "five"} {
		id := uuid.New()
		ids = append(ids, id)
		if err := e.EmbedAndStore(ctx, id, text); err != nil {
			t.Fatalf("EmbedAndStore: %v", err)
		}
	}
	self := ids[2]
	vec, _ := e.GetVector(ctx, self)
	for k := 1; k <= 6; k++ {
		hits, err := e.FindSimilar(ctx, vec, k, &self)
		if err != nil {
			t.Fatalf("FindSimilar: %v", err)
		}
		want := k
		if want > len(ids)-1 {
			want = len(ids) - 1
		}
		if len(hits) != want {
			t.Fatalf("k=%d: want=%d hits got=%d", k, want, len(hits))
		}
		for _, h := range hits {
			if h.ProfileID == self {
				t.Fatalf("k=%d: excluded id returned", k)
			}
		}
	}
}

func TestFindSimilarOnlySelfIsEmpty(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t, qdrant.NewMemoryStore(logger.Nop(), testStoreConfig()), &hashEmbedder{}, nil)
	id := uuid.New()
	if err := e.EmbedAndStore(ctx, id, "solo"); err != nil {
		t.Fatalf("EmbedAndStore: %v", err)
	}
	vec, _ := e.GetVector(ctx, id)
	hits, err := e.FindSimilar(ctx, vec, 5, &id)
	if err != nil || hits == nil || len(hits) != 0 {
		t.Fatalf("want empty non-nil list got=%v err=%v", hits, err)
	}
}

func TestEmbedAndStoreEmptyTextIsNoop(t *testing.T) {
	emb := &hashEmbedder{}
	e := newTestEngine(t, qdrant.NewMemoryStore(logger.Nop(), testStoreConfig()), emb, nil)
	if err := e.EmbedAndStore(context.Background(), uuid.New(), "   "); !errors.Is(err, ErrEmptyText) {
		t.Fatalf("want ErrEmptyText got=%v", err)
	}
	if emb.calls != 0 {
		t.Fatalf("embedder should not be called")
	}
	vec, err := e.EmbedText(context.Background(), "")
	if vec != nil || err != nil {
		t.Fatalf("EmbedText(empty): want nil,nil got=%v,%v", vec, err)
	}
}

func TestEmbedAndStoreRefusesWrongCollectionDimension(t *testing.T) {
	emb := &hashEmbedder{}
	store := qdrant.NewMemoryStoreWithDim(logger.Nop(), testStoreConfig(), 8)
	e := newTestEngine(t, store, emb, nil)
	id := uuid.New()
	err := e.EmbedAndStore(context.Background(), id, "hello")
	var mismatch *types.CollectionDimensionMismatchError
	if !errors.As(err, &mismatch) || !errors.Is(err, types.ErrConfiguration) {
		t.Fatalf("want CollectionDimensionMismatchError got=%v", err)
	}
	if emb.calls != 0 {
		t.Fatalf("no embedding should be computed before preflight passes")
	}
}

func TestSnippetIsRuneSafe(t *testing.T) {
	long := ""
	for i := 0; i < 300; i++ {
		long += "é"
	}
	got := snippet(long, SnippetChars)
	if n := len([]rune(got)); n != SnippetChars {
		t.Fatalf("snippet runes: want=%d got=%d", SnippetChars, n)
	}
	if snippet(" short ", SnippetChars) != "short" {
		t.Fatalf("short snippet should be trimmed only")
	}
}

func TestQueueProcessesAndDrops(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	emb := &hashEmbedder{}
	marks := &markRecorder{}
	e := newTestEngine(t, qdrant.NewMemoryStore(logger.Nop(), testStoreConfig()), emb, marks)
	q := NewQueue(logger.Nop(), e, 2, 1)

	a, b, c := uuid.New(), uuid.New(), uuid.New()
	if !q.Enqueue(Task{ProfileID: a, Text: "a", Source: "test"}) || !q.Enqueue(Task{ProfileID: b, Text: "b", Source: "test"}) {
		t.Fatalf("enqueue under capacity should succeed")
	}
	if q.Enqueue(Task{ProfileID: c, Text: "c", Source: "test"}) {
		t.Fatalf("enqueue over capacity should drop")
	}

	q.Start(ctx)
	deadline := time.Now().Add(2 * time.Second)
	for {
		marks.mu.Lock()
		n := len(marks.ids)
		marks.mu.Unlock()
		if n == 2 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("queue did not drain: processed=%d", n)
		}
		time.Sleep(5 * time.Millisecond)
	}
	cancel()
	q.Wait()
}

func TestQueueSurvivesFailures(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	e := newTestEngine(t, qdrant.NewMemoryStore(logger.Nop(), testStoreConfig()), &hashEmbedder{err: errors.New("provider down")}, nil)
	q := NewQueue(logger.Nop(), e, 4, 2)
	q.Start(ctx)
	for i := 0; i < 3; i++ {
		q.Enqueue(Task{ProfileID: uuid.New(), Text: "x", Source: "test"})
	}
	deadline := time.Now().Add(2 * time.Second)
	for len(q.tasks) > 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	cancel()
	q.Wait()
}
