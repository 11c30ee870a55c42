// Package embedding keeps one vector per profile in the vector index and
// answers similarity queries against it.
package embedding

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	types "github.com/yungbote/intromatch-backend/internal/domain"
	"github.com/yungbote/intromatch-backend/internal/observability"
	"github.com/yungbote/intromatch-backend/internal/platform/logger"
	"github.com/yungbote/intromatch-backend/internal/platform/qdrant"
)

// SnippetChars bounds the raw input excerpt stored with each point.
const SnippetChars = 200

// ErrEmptyText is returned by EmbedAndStore when there is nothing to embed.
// Onboarding ignores it; bulk re-index counts it as skipped.
var ErrEmptyText = errors.New("embedding: empty text")

type Embedder interface {
	Embed(ctx context.Context, inputs []string) ([][]float32, error)
}

// EmbeddedMarker records when a profile's vector was last written.
type EmbeddedMarker interface {
	MarkEmbedded(ctx context.Context, profileID uuid.UUID, at time.Time) error
}

type Deps struct {
	Log      *logger.Logger
	Embedder Embedder
	Store    qdrant.Store
	// Marker is optional.
	Marker EmbeddedMarker
	// Dim is the vector dimension the collection was configured with.
	Dim int
	Now func() time.Time
}

type Engine struct {
	log      *logger.Logger
	embedder Embedder
	store    qdrant.Store
	marker   EmbeddedMarker
	dim      int
	now      func() time.Time
}

func New(deps Deps) (*Engine, error) {
	if deps.Log == nil || deps.Embedder == nil || deps.Store == nil {
		return nil, fmt.Errorf("embedding: missing deps")
	}
	now := deps.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &Engine{
		log:      deps.Log.With("service", "EmbeddingEngine"),
		embedder: deps.Embedder,
		store:    deps.Store,
		marker:   deps.Marker,
		dim:      deps.Dim,
		now:      now,
	}, nil
}

// Similar is one nearest-neighbour hit.
type Similar struct {
	ProfileID uuid.UUID
	Score     float64
}

// Preflight creates the collection when absent and fails with a
// configuration error when it exists with the wrong dimension.
func (e *Engine) Preflight(ctx context.Context) error {
	start := time.Now()
	err := e.store.EnsureCollection(ctx)
	observability.Current().ObserveVectorOp("ensure_collection", err, time.Since(start))
	return err
}

// EmbedText returns nil for blank input.
func (e *Engine) EmbedText(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}
	vecs, err := e.embedder.Embed(ctx, []string{text})
	if err != nil {
		return nil, fmt.Errorf("embed text: %w", err)
	}
	if len(vecs) != 1 || len(vecs[0]) == 0 {
		return nil, fmt.Errorf("%w: embedder returned %d vectors", types.ErrExternalService, len(vecs))
	}
	if e.dim > 0 && len(vecs[0]) != e.dim {
		return nil, fmt.Errorf("%w: embedding model produced %d dimensions, index expects %d",
			types.ErrConfiguration, len(vecs[0]), e.dim)
	}
	return vecs[0], nil
}

// EmbedAndStore embeds text and overwrites the profile's point.
func (e *Engine) EmbedAndStore(ctx context.Context, profileID uuid.UUID, text string) (err error) {
	ctx, span := observability.StartSpan(ctx, "embedding.embed_and_store", attribute.String("profile_id", profileID.String()))
	defer func() { observability.EndSpan(span, err) }()

	if strings.TrimSpace(text) == "" {
		e.log.Warn("Nothing to embed for profile", "profile_id", profileID)
		return ErrEmptyText
	}
	if err := e.Preflight(ctx); err != nil {
		return err
	}
	vec, err := e.EmbedText(ctx, text)
	if err != nil {
		return err
	}

	start := time.Now()
	err = e.store.Upsert(ctx, qdrant.Point{
		ID:     profileID.String(),
		Vector: vec,
		Payload: map[string]any{
			qdrant.PayloadProfileIDKey: profileID.String(),
			qdrant.PayloadSnippetKey:   snippet(text, SnippetChars),
		},
	})
	observability.Current().ObserveVectorOp("upsert", err, time.Since(start))
	if err != nil {
		return fmt.Errorf("upsert profile vector: %w", err)
	}

	if e.marker != nil {
		if err := e.marker.MarkEmbedded(ctx, profileID, e.now()); err != nil {
			// the vector is written; the next resync will just redo it
			e.log.Warn("Failed to record embedding time", "profile_id", profileID, "error", err)
		}
	}
	e.log.Debug("Profile vector stored", "profile_id", profileID, "dim", len(vec))
	return nil
}

// GetVector returns nil when the profile has no stored point.
func (e *Engine) GetVector(ctx context.Context, profileID uuid.UUID) ([]float32, error) {
	start := time.Now()
	p, err := e.store.Retrieve(ctx, profileID.String())
	observability.Current().ObserveVectorOp("retrieve", err, time.Since(start))
	if err != nil {
		return nil, fmt.Errorf("retrieve profile vector: %w", err)
	}
	if p == nil || len(p.Vector) == 0 {
		return nil, nil
	}
	return p.Vector, nil
}

// FindSimilar returns up to limit profiles ordered by similarity. The
// excluded id is filtered inside the index query, so it never takes a slot.
func (e *Engine) FindSimilar(ctx context.Context, vector []float32, limit int, exclude *uuid.UUID) (out []Similar, err error) {
	ctx, span := observability.StartSpan(ctx, "embedding.find_similar", attribute.Int("limit", limit))
	defer func() { observability.EndSpan(span, err) }()

	if len(vector) == 0 || limit <= 0 {
		return []Similar{}, nil
	}
	var filter map[string]any
	if exclude != nil && *exclude != uuid.Nil {
		filter = map[string]any{qdrant.PayloadProfileIDKey: map[string]any{"$ne": exclude.String()}}
	}

	start := time.Now()
	matches, err := e.store.Search(ctx, vector, limit, filter)
	observability.Current().ObserveVectorOp("search", err, time.Since(start))
	if err != nil {
		return nil, fmt.Errorf("search similar profiles: %w", err)
	}

	out = make([]Similar, 0, len(matches))
	seen := map[uuid.UUID]bool{}
	for _, m := range matches {
		id, perr := uuid.Parse(m.ID)
		if perr != nil {
			e.log.Warn("Skipping vector hit with non-uuid id", "id", m.ID)
			continue
		}
		if seen[id] || (exclude != nil && id == *exclude) {
			continue
		}
		seen[id] = true
		out = append(out, Similar{ProfileID: id, Score: m.Score})
	}
	return out, nil
}

// Reset deletes every point by recreating the collection.
func (e *Engine) Reset(ctx context.Context) error {
	start := time.Now()
	err := e.store.ResetCollection(ctx)
	observability.Current().ObserveVectorOp("reset_collection", err, time.Since(start))
	return err
}

func snippet(s string, n int) string {
	s = strings.TrimSpace(s)
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n])
}
