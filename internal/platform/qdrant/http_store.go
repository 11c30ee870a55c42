package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"sort"
	"strings"

	types "github.com/yungbote/intromatch-backend/internal/domain"
	"github.com/yungbote/intromatch-backend/internal/platform/ctxutil"
	"github.com/yungbote/intromatch-backend/internal/platform/logger"
)

const maxErrorBodyBytes = 1024

// httpStore talks to Qdrant's REST API.
type httpStore struct {
	log      *logger.Logger
	cfg      Config
	baseURL  string
	distance string
	http     *http.Client
	guard    collectionGuard
}

type qdrantEnvelope struct {
	Result json.RawMessage `json:"result"`
	Status json.RawMessage `json:"status"`
	Time   float64         `json:"time"`
}

type restPoint struct {
	ID      json.RawMessage `json:"id"`
	Score   float64         `json:"score"`
	Payload map[string]any  `json:"payload"`
	Vector  json.RawMessage `json:"vector"`
}

type collectionInfo struct {
	Config struct {
		Params struct {
			Vectors struct {
				Size     int    `json:"size"`
				Distance string `json:"distance"`
			} `json:"vectors"`
		} `json:"params"`
	} `json:"config"`
}

func NewHTTPStore(ctx context.Context, log *logger.Logger, cfg Config) (Store, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	if err := ValidateConfig(cfg); err != nil {
		return nil, err
	}
	s := &httpStore{
		log:      log.With("service", "QdrantHTTPStore"),
		cfg:      cfg,
		baseURL:  strings.TrimRight(cfg.URL, "/"),
		distance: canonicalDistance(cfg.Distance),
		http:     &http.Client{Timeout: cfg.Timeout},
	}
	if err := s.verifyReady(ctx); err != nil {
		return nil, err
	}
	s.log.Info("Qdrant vector store selected",
		"transport", "http",
		"url", s.baseURL,
		"collection", cfg.Collection,
		"vector_dim", cfg.VectorDim,
	)
	return s, nil
}

func (s *httpStore) Close() error { return nil }

func (s *httpStore) verifyReady(ctx context.Context) error {
	const op = "bootstrap_verify"
	req, err := http.NewRequestWithContext(ctxutil.Default(ctx), http.MethodGet, s.baseURL+"/readyz", nil)
	if err != nil {
		return opErr(op, OperationErrorTransportFailed, "build ready request failed", err)
	}
	s.authorize(req)
	resp, err := s.http.Do(req)
	if err != nil {
		return classifyHTTPCallError(op, "qdrant ready check failed", err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &OperationError{
			Code:       OperationErrorQueryFailed,
			Operation:  op,
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("qdrant ready check returned status=%d", resp.StatusCode),
		}
	}
	return nil
}

func (s *httpStore) EnsureCollection(ctx context.Context) error {
	return s.guard.ensure(ctx, s.ensureCollection)
}

func (s *httpStore) ensureCollection(ctx context.Context) error {
	const op = "ensure_collection"
	var info collectionInfo
	err := s.doJSON(ctx, op, http.MethodGet, s.collectionPath(""), nil, &info)
	if isStatus(err, http.StatusNotFound) {
		body := map[string]any{"vectors": map[string]any{"size": s.cfg.VectorDim, "distance": s.distance}}
		if err := s.doJSON(ctx, op, http.MethodPut, s.collectionPath(""), body, nil); err != nil {
			return err
		}
		s.log.Info("Qdrant collection created", "collection", s.cfg.Collection, "vector_dim", s.cfg.VectorDim)
		return nil
	}
	if err != nil {
		return err
	}
	if size := info.Config.Params.Vectors.Size; size != s.cfg.VectorDim {
		return &types.CollectionDimensionMismatchError{Collection: s.cfg.Collection, Want: s.cfg.VectorDim, Got: size}
	}
	if d := strings.TrimSpace(info.Config.Params.Vectors.Distance); d != "" {
		s.distance = d
	}
	return nil
}

func (s *httpStore) Upsert(ctx context.Context, points ...Point) error {
	const op = "upsert"
	if len(points) == 0 {
		return nil
	}
	if err := s.EnsureCollection(ctx); err != nil {
		return err
	}
	body := make([]map[string]any, 0, len(points))
	for _, p := range points {
		if err := validatePoint(op, s.cfg.VectorDim, p); err != nil {
			return err
		}
		payload := clonePayload(p.Payload)
		payload[PayloadProfileIDKey] = p.ID
		body = append(body, map[string]any{
			"id":      pointID(s.cfg.Collection, p.ID),
			"vector":  p.Vector,
			"payload": payload,
		})
	}
	return s.doJSON(ctx, op, http.MethodPut, s.collectionPath("/points?wait=true"), map[string]any{"points": body}, nil)
}

func (s *httpStore) Retrieve(ctx context.Context, id string) (*Point, error) {
	const op = "retrieve"
	req := map[string]any{
		"ids":          []string{pointID(s.cfg.Collection, id)},
		"with_payload": true,
		"with_vector":  true,
	}
	var out []restPoint
	err := s.doJSON(ctx, op, http.MethodPost, s.collectionPath("/points"), req, &out)
	if isStatus(err, http.StatusNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, nil
	}
	var vec []float32
	if len(out[0].Vector) > 0 && string(out[0].Vector) != "null" {
		if err := json.Unmarshal(out[0].Vector, &vec); err != nil {
			return nil, opErr(op, OperationErrorDecodeFailed, "decode point vector failed", err)
		}
	}
	return &Point{ID: matchID(out[0].Payload, id), Vector: vec, Payload: out[0].Payload}, nil
}

func (s *httpStore) Search(ctx context.Context, vector []float32, limit int, filter map[string]any) ([]Match, error) {
	const op = "search"
	if len(vector) == 0 {
		return nil, opErr(op, OperationErrorValidation, "query vector required", nil)
	}
	if len(vector) != s.cfg.VectorDim {
		return nil, opErr(op, OperationErrorValidation, dimensionMessage("query vector", s.cfg.VectorDim, len(vector)), nil)
	}
	if limit <= 0 {
		limit = 10
	}
	req := map[string]any{
		"vector":       vector,
		"limit":        limit,
		"with_payload": true,
		"with_vector":  false,
	}
	if len(filter) > 0 {
		tf, err := translateFilterMap(filter)
		if err != nil {
			return nil, err
		}
		if !tf.empty() {
			req["filter"] = tf.asMap()
		}
	}
	var raw []restPoint
	err := s.doJSON(ctx, op, http.MethodPost, s.collectionPath("/points/search"), req, &raw)
	if isStatus(err, http.StatusNotFound) {
		return []Match{}, nil
	}
	if err != nil {
		return nil, err
	}
	out := make([]Match, 0, len(raw))
	for _, item := range raw {
		id := matchID(item.Payload, decodePointID(item.ID))
		if id == "" {
			continue
		}
		out = append(out, Match{ID: id, Score: s.normalizeScore(item.Score), Payload: item.Payload})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out, nil
}

func (s *httpStore) DeleteByFilter(ctx context.Context, filter map[string]any) error {
	const op = "delete"
	tf, err := translateFilterMap(filter)
	if err != nil {
		return err
	}
	if tf.empty() {
		return opErr(op, OperationErrorValidation, "refusing to delete with an empty filter", nil)
	}
	if err := s.EnsureCollection(ctx); err != nil {
		return err
	}
	err = s.doJSON(ctx, op, http.MethodPost, s.collectionPath("/points/delete?wait=true"), map[string]any{"filter": tf.asMap()}, nil)
	if isStatus(err, http.StatusNotFound) {
		return nil
	}
	return err
}

func (s *httpStore) ResetCollection(ctx context.Context) error {
	const op = "reset_collection"
	err := s.doJSON(ctx, op, http.MethodDelete, s.collectionPath(""), nil, nil)
	if err != nil && !isStatus(err, http.StatusNotFound) {
		return err
	}
	s.guard.reset()
	return s.EnsureCollection(ctx)
}

func (s *httpStore) authorize(req *http.Request) {
	if s.cfg.APIKey != "" {
		req.Header.Set("api-key", s.cfg.APIKey)
	}
}

func (s *httpStore) doJSON(ctx context.Context, op, method, path string, in any, out any) error {
	var body io.Reader
	if in != nil {
		var buf bytes.Buffer
		if err := json.NewEncoder(&buf).Encode(in); err != nil {
			return opErr(op, OperationErrorEncodeFailed, "encode request failed", err)
		}
		body = &buf
	}
	req, err := http.NewRequestWithContext(ctxutil.Default(ctx), method, s.baseURL+path, body)
	if err != nil {
		return opErr(op, OperationErrorTransportFailed, "build request failed", err)
	}
	req.Header.Set("Content-Type", "application/json")
	s.authorize(req)

	resp, err := s.http.Do(req)
	if err != nil {
		return classifyHTTPCallError(op, "qdrant request failed", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return opErr(op, OperationErrorDecodeFailed, "read response failed", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &OperationError{
			Code:       OperationErrorQueryFailed,
			Operation:  op,
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("qdrant http status=%d body=%q", resp.StatusCode, truncateBody(raw)),
		}
	}
	var envelope qdrantEnvelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return opErr(op, OperationErrorDecodeFailed, "decode qdrant envelope failed", err)
	}
	if statusErr := parseEnvelopeStatus(envelope.Status); statusErr != "" {
		return &OperationError{Code: OperationErrorQueryFailed, Operation: op, StatusCode: resp.StatusCode, Message: statusErr}
	}
	if out == nil || len(envelope.Result) == 0 || string(envelope.Result) == "null" {
		return nil
	}
	if err := json.Unmarshal(envelope.Result, out); err != nil {
		return opErr(op, OperationErrorDecodeFailed, "decode qdrant result failed", err)
	}
	return nil
}

func isStatus(err error, status int) bool {
	var oe *OperationError
	return errors.As(err, &oe) && oe.StatusCode == status
}

func classifyHTTPCallError(op, message string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return opErr(op, OperationErrorTimeout, message, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return opErr(op, OperationErrorTimeout, message, err)
	}
	return opErr(op, OperationErrorTransportFailed, message, err)
}

func parseEnvelopeStatus(raw json.RawMessage) string {
	status := strings.TrimSpace(string(raw))
	if status == "" || status == "null" {
		return ""
	}
	var statusString string
	if err := json.Unmarshal(raw, &statusString); err == nil {
		if strings.EqualFold(statusString, "ok") {
			return ""
		}
		return fmt.Sprintf("qdrant status=%q", statusString)
	}
	var statusObject struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(raw, &statusObject); err == nil && strings.TrimSpace(statusObject.Error) != "" {
		return strings.TrimSpace(statusObject.Error)
	}
	return fmt.Sprintf("qdrant status=%s", status)
}

func truncateBody(raw []byte) string {
	if len(raw) <= maxErrorBodyBytes {
		return string(raw)
	}
	return string(raw[:maxErrorBodyBytes]) + "..."
}

func (s *httpStore) collectionPath(suffix string) string {
	return "/collections/" + s.cfg.Collection + suffix
}

func decodePointID(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var idString string
	if err := json.Unmarshal(raw, &idString); err == nil {
		return strings.TrimSpace(idString)
	}
	var idNumber uint64
	if err := json.Unmarshal(raw, &idNumber); err == nil {
		return fmt.Sprintf("%d", idNumber)
	}
	return strings.TrimSpace(string(raw))
}

// normalizeScore maps distance-based scores into a higher-is-better range.
func (s *httpStore) normalizeScore(score float64) float64 {
	return normalizeScore(s.distance, score)
}

func normalizeScore(distance string, score float64) float64 {
	switch strings.ToLower(strings.TrimSpace(distance)) {
	case "euclid", "manhattan":
		if score < 0 {
			score = -score
		}
		return 1.0 / (1.0 + score)
	default:
		return score
	}
}
