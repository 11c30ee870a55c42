package qdrant

import (
	"context"
	"fmt"
	"sort"

	qc "github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	types "github.com/yungbote/intromatch-backend/internal/domain"
	"github.com/yungbote/intromatch-backend/internal/platform/logger"
)

// grpcStore uses the official Qdrant gRPC client.
type grpcStore struct {
	log    *logger.Logger
	cfg    Config
	client *qc.Client
	guard  collectionGuard
}

func NewGRPCStore(log *logger.Logger, cfg Config) (Store, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	if err := ValidateConfig(cfg); err != nil {
		return nil, err
	}
	client, err := qc.NewClient(&qc.Config{
		Host:   cfg.GRPCHost,
		Port:   cfg.GRPCPort,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
	})
	if err != nil {
		return nil, opErr("connect", OperationErrorTransportFailed, "create qdrant grpc client failed", err)
	}
	s := &grpcStore{log: log.With("service", "QdrantGRPCStore"), cfg: cfg, client: client}
	s.log.Info("Qdrant vector store selected",
		"transport", "grpc",
		"host", cfg.GRPCHost,
		"port", cfg.GRPCPort,
		"collection", cfg.Collection,
		"vector_dim", cfg.VectorDim,
	)
	return s, nil
}

func (s *grpcStore) Close() error { return s.client.Close() }

func (s *grpcStore) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.cfg.Timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.cfg.Timeout)
}

func (s *grpcStore) EnsureCollection(ctx context.Context) error {
	return s.guard.ensure(ctx, s.ensureCollection)
}

func (s *grpcStore) ensureCollection(ctx context.Context) error {
	const op = "ensure_collection"
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	exists, err := s.client.CollectionExists(ctx, s.cfg.Collection)
	if err != nil {
		return grpcErr(op, err)
	}
	if !exists {
		err := s.client.CreateCollection(ctx, &qc.CreateCollection{
			CollectionName: s.cfg.Collection,
			VectorsConfig: qc.NewVectorsConfig(&qc.VectorParams{
				Size:     uint64(s.cfg.VectorDim),
				Distance: grpcDistance(s.cfg.Distance),
			}),
		})
		if err != nil {
			return grpcErr(op, err)
		}
		s.log.Info("Qdrant collection created", "collection", s.cfg.Collection, "vector_dim", s.cfg.VectorDim)
		return nil
	}
	info, err := s.client.GetCollectionInfo(ctx, s.cfg.Collection)
	if err != nil {
		return grpcErr(op, err)
	}
	size := int(info.GetConfig().GetParams().GetVectorsConfig().GetParams().GetSize())
	if size != s.cfg.VectorDim {
		return &types.CollectionDimensionMismatchError{Collection: s.cfg.Collection, Want: s.cfg.VectorDim, Got: size}
	}
	return nil
}

func (s *grpcStore) Upsert(ctx context.Context, points ...Point) error {
	const op = "upsert"
	if len(points) == 0 {
		return nil
	}
	if err := s.EnsureCollection(ctx); err != nil {
		return err
	}
	structs := make([]*qc.PointStruct, 0, len(points))
	for _, p := range points {
		if err := validatePoint(op, s.cfg.VectorDim, p); err != nil {
			return err
		}
		payload := clonePayload(p.Payload)
		payload[PayloadProfileIDKey] = p.ID
		values, err := qc.TryValueMap(payload)
		if err != nil {
			return opErr(op, OperationErrorEncodeFailed, "encode payload failed", err)
		}
		structs = append(structs, &qc.PointStruct{
			Id:      qc.NewIDUUID(pointID(s.cfg.Collection, p.ID)),
			Vectors: qc.NewVectorsDense(p.Vector),
			Payload: values,
		})
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	_, err := s.client.Upsert(ctx, &qc.UpsertPoints{
		CollectionName: s.cfg.Collection,
		Wait:           qc.PtrOf(true),
		Points:         structs,
	})
	return grpcErr(op, err)
}

func (s *grpcStore) Retrieve(ctx context.Context, id string) (*Point, error) {
	const op = "retrieve"
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	got, err := s.client.Get(ctx, &qc.GetPoints{
		CollectionName: s.cfg.Collection,
		Ids:            []*qc.PointId{qc.NewIDUUID(pointID(s.cfg.Collection, id))},
		WithPayload:    qc.NewWithPayload(true),
		WithVectors:    qc.NewWithVectors(true),
	})
	if status.Code(err) == codes.NotFound {
		return nil, nil
	}
	if err != nil {
		return nil, grpcErr(op, err)
	}
	if len(got) == 0 {
		return nil, nil
	}
	payload := payloadToMap(got[0].GetPayload())
	return &Point{
		ID:      matchID(payload, id),
		Vector:  denseVector(got[0].GetVectors()),
		Payload: payload,
	}, nil
}

func (s *grpcStore) Search(ctx context.Context, vector []float32, limit int, filter map[string]any) ([]Match, error) {
	const op = "search"
	if len(vector) != s.cfg.VectorDim {
		return nil, opErr(op, OperationErrorValidation, dimensionMessage("query vector", s.cfg.VectorDim, len(vector)), nil)
	}
	if limit <= 0 {
		limit = 10
	}
	tf, err := translateFilterMap(filter)
	if err != nil {
		return nil, err
	}
	req := &qc.QueryPoints{
		CollectionName: s.cfg.Collection,
		Query:          qc.NewQueryDense(vector),
		Limit:          qc.PtrOf(uint64(limit)),
		WithPayload:    qc.NewWithPayload(true),
	}
	if !tf.empty() {
		f, err := toGRPCFilter(tf.asMap())
		if err != nil {
			return nil, err
		}
		req.Filter = f
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	scored, err := s.client.Query(ctx, req)
	if status.Code(err) == codes.NotFound {
		return []Match{}, nil
	}
	if err != nil {
		return nil, grpcErr(op, err)
	}
	out := make([]Match, 0, len(scored))
	for _, sp := range scored {
		payload := payloadToMap(sp.GetPayload())
		id := matchID(payload, sp.GetId().GetUuid())
		if id == "" {
			continue
		}
		out = append(out, Match{ID: id, Score: normalizeScore(s.cfg.Distance, float64(sp.GetScore())), Payload: payload})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out, nil
}

func (s *grpcStore) DeleteByFilter(ctx context.Context, filter map[string]any) error {
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
	f, err := toGRPCFilter(tf.asMap())
	if err != nil {
		return err
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	_, err = s.client.Delete(ctx, &qc.DeletePoints{
		CollectionName: s.cfg.Collection,
		Wait:           qc.PtrOf(true),
		Points:         qc.NewPointsSelectorFilter(f),
	})
	if status.Code(err) == codes.NotFound {
		return nil
	}
	return grpcErr(op, err)
}

func (s *grpcStore) ResetCollection(ctx context.Context) error {
	const op = "reset_collection"
	cctx, cancel := s.withTimeout(ctx)
	err := s.client.DeleteCollection(cctx, s.cfg.Collection)
	cancel()
	if err != nil && status.Code(err) != codes.NotFound {
		return grpcErr(op, err)
	}
	s.guard.reset()
	return s.EnsureCollection(ctx)
}

func grpcErr(op string, err error) error {
	if err == nil {
		return nil
	}
	switch status.Code(err) {
	case codes.DeadlineExceeded:
		return opErr(op, OperationErrorTimeout, "qdrant grpc deadline exceeded", err)
	case codes.Unavailable:
		return opErr(op, OperationErrorTransportFailed, "qdrant grpc unavailable", err)
	case codes.InvalidArgument:
		return opErr(op, OperationErrorValidation, "qdrant rejected request", err)
	default:
		return opErr(op, OperationErrorQueryFailed, "qdrant grpc call failed", err)
	}
}

func grpcDistance(d string) qc.Distance {
	switch canonicalDistance(d) {
	case "Dot":
		return qc.Distance_Dot
	case "Euclid":
		return qc.Distance_Euclid
	case "Manhattan":
		return qc.Distance_Manhattan
	default:
		return qc.Distance_Cosine
	}
}

// toGRPCFilter converts the REST-shaped translated filter into the protobuf
// filter used by the gRPC API.
func toGRPCFilter(m map[string]any) (*qc.Filter, error) {
	f := &qc.Filter{}
	var err error
	if f.Must, err = toGRPCConditions(asSlice(m["must"])); err != nil {
		return nil, err
	}
	if f.Should, err = toGRPCConditions(asSlice(m["should"])); err != nil {
		return nil, err
	}
	if f.MustNot, err = toGRPCConditions(asSlice(m["must_not"])); err != nil {
		return nil, err
	}
	return f, nil
}

func toGRPCConditions(items []any) ([]*qc.Condition, error) {
	out := make([]*qc.Condition, 0, len(items))
	for _, item := range items {
		m, ok := item.(map[string]any)
		if !ok {
			return nil, filterErr(OperationErrorValidation, nil, "unexpected condition %T", item)
		}
		key, hasKey := m["key"].(string)
		if !hasKey {
			nested, err := toGRPCFilter(m)
			if err != nil {
				return nil, err
			}
			out = append(out, qc.NewFilterAsCondition(nested))
			continue
		}
		match, _ := m["match"].(map[string]any)
		if v, ok := match["value"]; ok {
			c, err := grpcMatchValue(key, v)
			if err != nil {
				return nil, err
			}
			out = append(out, c)
			continue
		}
		c, err := grpcMatchAny(key, asSlice(match["any"]))
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

func grpcMatchValue(key string, v any) (*qc.Condition, error) {
	switch typed := v.(type) {
	case string:
		return qc.NewMatchKeyword(key, typed), nil
	case bool:
		return qc.NewMatchBool(key, typed), nil
	case int64:
		return qc.NewMatchInt(key, typed), nil
	default:
		return nil, filterErr(OperationErrorUnsupportedFilter, nil, "grpc match on %q does not support %T", key, v)
	}
}

func grpcMatchAny(key string, values []any) (*qc.Condition, error) {
	if len(values) == 0 {
		return nil, filterErr(OperationErrorValidation, nil, "empty match set for %q", key)
	}
	switch values[0].(type) {
	case string:
		keywords := make([]string, 0, len(values))
		for _, v := range values {
			s, ok := v.(string)
			if !ok {
				return nil, filterErr(OperationErrorValidation, nil, "mixed match set for %q", key)
			}
			keywords = append(keywords, s)
		}
		return qc.NewMatchKeywords(key, keywords...), nil
	case int64:
		ints := make([]int64, 0, len(values))
		for _, v := range values {
			n, ok := v.(int64)
			if !ok {
				return nil, filterErr(OperationErrorValidation, nil, "mixed match set for %q", key)
			}
			ints = append(ints, n)
		}
		return qc.NewMatchInts(key, ints...), nil
	default:
		return nil, filterErr(OperationErrorUnsupportedFilter, nil, "grpc match set on %q does not support %T", key, values[0])
	}
}

func payloadToMap(in map[string]*qc.Value) map[string]any {
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = valueToAny(v)
	}
	return out
}

func valueToAny(v *qc.Value) any {
	switch k := v.GetKind().(type) {
	case *qc.Value_StringValue:
		return k.StringValue
	case *qc.Value_IntegerValue:
		return k.IntegerValue
	case *qc.Value_DoubleValue:
		return k.DoubleValue
	case *qc.Value_BoolValue:
		return k.BoolValue
	case *qc.Value_StructValue:
		return payloadToMap(k.StructValue.GetFields())
	case *qc.Value_ListValue:
		items := k.ListValue.GetValues()
		out := make([]any, 0, len(items))
		for _, item := range items {
			out = append(out, valueToAny(item))
		}
		return out
	default:
		return nil
	}
}

func denseVector(v *qc.VectorsOutput) []float32 {
	out := v.GetVector()
	if out == nil {
		return nil
	}
	if dense := out.GetDense(); dense != nil {
		return dense.GetData()
	}
	//nolint:staticcheck // older servers only fill the deprecated data field
	return out.GetData()
}
