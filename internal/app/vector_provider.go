package app

import (
	"context"
	"errors"
	"fmt"

	types "github.com/yungbote/intromatch-backend/internal/domain"
	"github.com/yungbote/intromatch-backend/internal/observability"
	"github.com/yungbote/intromatch-backend/internal/platform/logger"
	"github.com/yungbote/intromatch-backend/internal/platform/qdrant"
)

var newQdrantStore = qdrant.New

type VectorProviderBootstrapErrorCode string

const (
	VectorProviderBootstrapErrorInvalidTransport  VectorProviderBootstrapErrorCode = "invalid_transport"
	VectorProviderBootstrapErrorMissingQdrantURL  VectorProviderBootstrapErrorCode = "missing_qdrant_url"
	VectorProviderBootstrapErrorInvalidQdrantURL  VectorProviderBootstrapErrorCode = "invalid_qdrant_url"
	VectorProviderBootstrapErrorMissingGRPCHost   VectorProviderBootstrapErrorCode = "missing_qdrant_grpc_host"
	VectorProviderBootstrapErrorMissingCollection VectorProviderBootstrapErrorCode = "missing_qdrant_collection"
	VectorProviderBootstrapErrorInvalidVectorDim  VectorProviderBootstrapErrorCode = "invalid_qdrant_vector_dim"
	VectorProviderBootstrapErrorInvalidDistance   VectorProviderBootstrapErrorCode = "invalid_qdrant_distance"
	VectorProviderBootstrapErrorConnectFailed     VectorProviderBootstrapErrorCode = "connect_failed"
)

type VectorProviderBootstrapError struct {
	Code      VectorProviderBootstrapErrorCode
	Transport string
	Cause     error
}

func (e *VectorProviderBootstrapError) Error() string {
	if e == nil {
		return "vector provider bootstrap failed"
	}
	return fmt.Sprintf("vector provider bootstrap failed (code=%s transport=%q): %v", e.Code, e.Transport, e.Cause)
}

func (e *VectorProviderBootstrapError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

func (e *VectorProviderBootstrapError) Is(target error) bool {
	return target == types.ErrConfiguration
}

func resolveVectorStore(ctx context.Context, log *logger.Logger, cfg qdrant.Config) (qdrant.Store, error) {
	metrics := observability.Current()
	transport := string(cfg.Transport)

	log.Info("Selecting vector store provider",
		"transport", transport,
		"qdrant_url", cfg.URL,
		"qdrant_grpc_host", cfg.GRPCHost,
		"qdrant_collection", cfg.Collection,
		"qdrant_vector_dim", cfg.VectorDim,
		"qdrant_distance", cfg.Distance,
	)
	if cfg.Transport == qdrant.TransportMemory {
		log.Warn("Using in-process vector index; vectors are lost on restart")
	}

	store, err := newQdrantStore(ctx, log, cfg)
	if err != nil {
		classified := classifyVectorProviderBootstrapError(transport, err)
		code := vectorProviderBootstrapErrorCode(classified)
		metrics.ObserveProviderBootstrap("vector_store", transport, "error", string(code))
		log.Error("Vector store provider bootstrap failed",
			"transport", transport,
			"error_code", code,
			"error", classified,
		)
		return nil, classified
	}
	metrics.ObserveProviderBootstrap("vector_store", transport, "success", "none")
	return store, nil
}

func classifyVectorProviderBootstrapError(transport string, err error) error {
	code := VectorProviderBootstrapErrorConnectFailed
	var cfgErr *qdrant.ConfigError
	if errors.As(err, &cfgErr) {
		switch cfgErr.Code {
		case qdrant.ConfigErrorInvalidTransport:
			code = VectorProviderBootstrapErrorInvalidTransport
		case qdrant.ConfigErrorMissingURL:
			code = VectorProviderBootstrapErrorMissingQdrantURL
		case qdrant.ConfigErrorInvalidURL:
			code = VectorProviderBootstrapErrorInvalidQdrantURL
		case qdrant.ConfigErrorMissingGRPCHost:
			code = VectorProviderBootstrapErrorMissingGRPCHost
		case qdrant.ConfigErrorMissingCollection:
			code = VectorProviderBootstrapErrorMissingCollection
		case qdrant.ConfigErrorInvalidVectorDim:
			code = VectorProviderBootstrapErrorInvalidVectorDim
		case qdrant.ConfigErrorInvalidDistance:
			code = VectorProviderBootstrapErrorInvalidDistance
		}
	}
	return &VectorProviderBootstrapError{Code: code, Transport: transport, Cause: err}
}

func vectorProviderBootstrapErrorCode(err error) VectorProviderBootstrapErrorCode {
	var bootstrapErr *VectorProviderBootstrapError
	if errors.As(err, &bootstrapErr) {
		return bootstrapErr.Code
	}
	return VectorProviderBootstrapErrorConnectFailed
}
