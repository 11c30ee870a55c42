package matching

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/yungbote/intromatch-backend/internal/data/repos"
	"github.com/yungbote/intromatch-backend/internal/data/repos/testutil"
	types "github.com/yungbote/intromatch-backend/internal/domain"
	"github.com/yungbote/intromatch-backend/internal/domain/profile"
	"github.com/yungbote/intromatch-backend/internal/modules/embedding"
	"github.com/yungbote/intromatch-backend/internal/platform/logger"
	"github.com/yungbote/intromatch-backend/internal/platform/qdrant"
)

type fakeIndex struct {
	vectors map[uuid.UUID][]float32
	hits    []embedding.Similar
	exclude *uuid.UUID
	calls   int
}

func (f *fakeIndex) GetVector(_ context.Context, id uuid.UUID) ([]float32, error) {
	return f.vectors[id], nil
}

func (f *fakeIndex) FindSimilar(_ context.Context, _ []float32, limit int, exclude *uuid.UUID) ([]embedding.Similar, error) {
	f.calls++
	f.exclude = exclude
	if len(f.hits) > limit {
		return f.hits[:limit], nil
	}
	return f.hits, nil
}

type fakeExplainer struct {
	failFor map[string]bool
	calls   int
}

func (f *fakeExplainer) GenerateMatchReason(_ context.Context, a, b profile.Condensed) (string, error) {
	f.calls++
	if f.failFor[b.Name] {
		return "", errors.New("llm down")
	}
	return a.Name + " and " + b.Name + " both build products.", nil
}

func namedDoc(name string) profile.Document {
	d := profile.NewDocument()
	if name != "" {
		d.Personal.Name = &name
	}
	d.RawInput = "I am " + name
	return d
}

type fixture struct {
	svc   *Service
	index *fakeIndex
	expl  *fakeExplainer
	self  *types.Profile
	peers []*types.Profile
}

func newFixture(t *testing.T, names ...string) *fixture {
	t.Helper()
	ctx := context.Background()
	log := testutil.Logger(t)
	db := testutil.DB(t)

	u := testutil.SeedUser(t, ctx, db, "self")
	self := testutil.SeedProfile(t, ctx, db, u.ID, namedDoc("Alex"))
	f := &fixture{
		index: &fakeIndex{vectors: map[uuid.UUID][]float32{self.ID: {1, 0, 0, 0}}},
		expl:  &fakeExplainer{failFor: map[string]bool{}},
		self:  self,
	}
	for i, n := range names {
		pu := testutil.SeedUser(t, ctx, db, "peer-"+n)
		p := testutil.SeedProfile(t, ctx, db, pu.ID, namedDoc(n))
		f.peers = append(f.peers, p)
		f.index.hits = append(f.index.hits, embedding.Similar{ProfileID: p.ID, Score: 0.9 - float64(i)*0.1})
	}
	svc, err := New(Deps{
		Log:       log,
		Profiles:  ReaderFromRepo(repos.NewProfileRepo(db, log)),
		Index:     f.index,
		Explainer: f.expl,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	f.svc = svc
	return f
}

func TestFindTopMatchesRanksAndExplains(t *testing.T) {
	f := newFixture(t, "Blair", "Casey", "Drew")
	out, err := f.svc.FindTopMatches(context.Background(), f.self.UserID, 5)
	if err != nil {
		t.Fatalf("FindTopMatches: %v", err)
	}
	if len(out) != 3 {
		t.Fatalf("len: want=3 got=%d", len(out))
	}
	for i, want := range []string{"Blair", "Casey", "Drew"} {
		if out[i].Name != want || out[i].ProfileID != f.peers[i].ID || out[i].UserID != f.peers[i].UserID {
			t.Fatalf("rank %d: want=%s got=%+v", i, want, out[i])
		}
		if !strings.Contains(out[i].Reason, want) {
			t.Fatalf("reason %d: %q", i, out[i].Reason)
		}
	}
	if f.index.exclude == nil || *f.index.exclude != f.self.ID {
		t.Fatalf("expected self excluded from the query")
	}
}

func TestFindTopMatchesFallbackReason(t *testing.T) {
	f := newFixture(t, "Blair", "Casey")
	f.expl.failFor["Casey"] = true
	out, err := f.svc.FindTopMatches(context.Background(), f.self.UserID, 5)
	if err != nil {
		t.Fatalf("FindTopMatches: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("len: want=2 got=%d", len(out))
	}
	if out[1].Reason != "similarity score: 0.80" {
		t.Fatalf("fallback: got=%q", out[1].Reason)
	}
	if !strings.Contains(out[0].Reason, "Blair") {
		t.Fatalf("reason: %q", out[0].Reason)
	}
}

func TestFindTopMatchesUnnamedCandidateSkipsExplainer(t *testing.T) {
	f := newFixture(t, "")
	out, err := f.svc.FindTopMatches(context.Background(), f.self.UserID, 5)
	if err != nil {
		t.Fatalf("FindTopMatches: %v", err)
	}
	if len(out) != 1 || out[0].Reason != "similarity score: 0.90" {
		t.Fatalf("out: %+v", out)
	}
	if f.expl.calls != 0 {
		t.Fatalf("explainer calls: want=0 got=%d", f.expl.calls)
	}
}

func TestFindTopMatchesSkipsUnresolvedCandidates(t *testing.T) {
	f := newFixture(t, "Blair", "Casey")
	ghost := embedding.Similar{ProfileID: uuid.New(), Score: 0.95}
	f.index.hits = append([]embedding.Similar{ghost}, f.index.hits...)

	out, err := f.svc.FindTopMatches(context.Background(), f.self.UserID, 5)
	if err != nil {
		t.Fatalf("FindTopMatches: %v", err)
	}
	if len(out) != 2 || out[0].Name != "Blair" || out[1].Name != "Casey" {
		t.Fatalf("out: %+v", out)
	}
}

func TestFindTopMatchesNoProfile(t *testing.T) {
	f := newFixture(t, "Blair")
	out, err := f.svc.FindTopMatches(context.Background(), uuid.New(), 5)
	if err != nil {
		t.Fatalf("FindTopMatches: %v", err)
	}
	if out == nil || len(out) != 0 {
		t.Fatalf("want empty non-nil list got %+v", out)
	}
	if f.index.calls != 0 {
		t.Fatalf("index must not be queried")
	}
}

func TestFindTopMatchesNoVector(t *testing.T) {
	f := newFixture(t, "Blair")
	delete(f.index.vectors, f.self.ID)
	out, err := f.svc.FindTopMatches(context.Background(), f.self.UserID, 5)
	if err != nil {
		t.Fatalf("FindTopMatches: %v", err)
	}
	if len(out) != 0 || f.index.calls != 0 {
		t.Fatalf("want [] without a query, got %+v calls=%d", out, f.index.calls)
	}
}

func TestFindTopMatchesDefaultLimit(t *testing.T) {
	f := newFixture(t, "A1", "A2", "A3", "A4", "A5", "A6", "A7")
	out, err := f.svc.FindTopMatches(context.Background(), f.self.UserID, 0)
	if err != nil {
		t.Fatalf("FindTopMatches: %v", err)
	}
	if len(out) != DefaultLimit {
		t.Fatalf("len: want=%d got=%d", DefaultLimit, len(out))
	}
}

// unitEmbedder puts each text on its own axis keyed by its first byte.
type unitEmbedder struct{}

func (unitEmbedder) Embed(_ context.Context, inputs []string) ([][]float32, error) {
	out := make([][]float32, len(inputs))
	for i, in := range inputs {
		v := make([]float32, 4)
		v[int(in[len(in)-1])%4] = 1
		v[(int(in[len(in)-1])+1)%4] = 0.5
		out[i] = v
	}
	return out, nil
}

func TestFindTopMatchesWithVectorIndex(t *testing.T) {
	ctx := context.Background()
	log := logger.Nop()
	db := testutil.DB(t)
	cfg := qdrant.DefaultConfig()
	cfg.Transport = qdrant.TransportMemory
	cfg.VectorDim = 4

	engine, err := embedding.New(embedding.Deps{Log: log, Embedder: unitEmbedder{}, Store: qdrant.NewMemoryStore(log, cfg), Dim: 4})
	if err != nil {
		t.Fatalf("embedding.New: %v", err)
	}
	var selfUser uuid.UUID
	for i, n := range []string{"Alex", "Blair", "Casey"} {
		u := testutil.SeedUser(t, ctx, db, "vec-"+n)
		p := testutil.SeedProfile(t, ctx, db, u.ID, namedDoc(n))
		if i == 0 {
			selfUser = u.ID
		}
		if err := engine.EmbedAndStore(ctx, p.ID, namedDoc(n).EmbeddingText()); err != nil {
			t.Fatalf("EmbedAndStore: %v", err)
		}
	}
	svc, err := New(Deps{Log: log, Profiles: ReaderFromRepo(repos.NewProfileRepo(db, log)), Index: engine})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	out, err := svc.FindTopMatches(ctx, selfUser, 5)
	if err != nil {
		t.Fatalf("FindTopMatches: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("len: want=2 got=%d", len(out))
	}
	for _, m := range out {
		if m.UserID == selfUser {
			t.Fatalf("self returned as a match")
		}
		if !strings.HasPrefix(m.Reason, "similarity score: ") {
			t.Fatalf("reason without explainer: %q", m.Reason)
		}
	}
	if out[0].Score < out[1].Score {
		t.Fatalf("not ranked: %+v", out)
	}
}
