package qdrant

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

type Transport string

const (
	TransportHTTP   Transport = "http"
	TransportGRPC   Transport = "grpc"
	TransportMemory Transport = "memory"
)

type Config struct {
	Transport  Transport
	URL        string
	GRPCHost   string
	GRPCPort   int
	APIKey     string
	UseTLS     bool
	Collection string
	VectorDim  int
	Distance   string
	Timeout    time.Duration
}

func DefaultConfig() Config {
	return Config{
		Transport:  TransportHTTP,
		GRPCHost:   "localhost",
		GRPCPort:   6334,
		Collection: "profiles",
		VectorDim:  3072,
		Distance:   "Cosine",
		Timeout:    10 * time.Second,
	}
}

type ConfigErrorCode string

const (
	ConfigErrorInvalidTransport  ConfigErrorCode = "invalid_transport"
	ConfigErrorMissingURL        ConfigErrorCode = "missing_url"
	ConfigErrorInvalidURL        ConfigErrorCode = "invalid_url"
	ConfigErrorMissingGRPCHost   ConfigErrorCode = "missing_grpc_host"
	ConfigErrorMissingCollection ConfigErrorCode = "missing_collection"
	ConfigErrorInvalidVectorDim  ConfigErrorCode = "invalid_vector_dim"
	ConfigErrorInvalidDistance   ConfigErrorCode = "invalid_distance"
)

type ConfigError struct {
	Code  ConfigErrorCode
	Value string
	Cause error
}

func (e *ConfigError) Error() string {
	if e == nil {
		return "invalid qdrant config"
	}
	switch e.Code {
	case ConfigErrorInvalidTransport:
		return fmt.Sprintf("invalid QDRANT_TRANSPORT=%q; expected http, grpc or memory", e.Value)
	case ConfigErrorMissingURL:
		return "QDRANT_URL is required for the http transport"
	case ConfigErrorInvalidURL:
		return fmt.Sprintf("invalid QDRANT_URL=%q; expected absolute URL like http://qdrant:6333", e.Value)
	case ConfigErrorMissingGRPCHost:
		return "QDRANT_GRPC_HOST is required for the grpc transport"
	case ConfigErrorMissingCollection:
		return "QDRANT_COLLECTION is required"
	case ConfigErrorInvalidVectorDim:
		return fmt.Sprintf("invalid QDRANT_VECTOR_DIM=%q; expected positive integer", e.Value)
	case ConfigErrorInvalidDistance:
		return fmt.Sprintf("invalid QDRANT_DISTANCE=%q; expected Cosine, Dot, Euclid or Manhattan", e.Value)
	default:
		return "invalid qdrant config"
	}
}

func (e *ConfigError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

func ValidateConfig(cfg Config) error {
	switch cfg.Transport {
	case TransportHTTP:
		if strings.TrimSpace(cfg.URL) == "" {
			return &ConfigError{Code: ConfigErrorMissingURL}
		}
		parsed, err := url.Parse(cfg.URL)
		if err != nil || strings.TrimSpace(parsed.Scheme) == "" || strings.TrimSpace(parsed.Host) == "" {
			return &ConfigError{Code: ConfigErrorInvalidURL, Value: cfg.URL, Cause: err}
		}
	case TransportGRPC:
		if strings.TrimSpace(cfg.GRPCHost) == "" {
			return &ConfigError{Code: ConfigErrorMissingGRPCHost}
		}
	case TransportMemory:
	default:
		return &ConfigError{Code: ConfigErrorInvalidTransport, Value: string(cfg.Transport)}
	}
	if strings.TrimSpace(cfg.Collection) == "" {
		return &ConfigError{Code: ConfigErrorMissingCollection}
	}
	if cfg.VectorDim <= 0 {
		return &ConfigError{Code: ConfigErrorInvalidVectorDim, Value: fmt.Sprint(cfg.VectorDim)}
	}
	if _, ok := distanceNames[strings.ToLower(cfg.Distance)]; !ok {
		return &ConfigError{Code: ConfigErrorInvalidDistance, Value: cfg.Distance}
	}
	return nil
}

var distanceNames = map[string]string{
	"cosine":    "Cosine",
	"dot":       "Dot",
	"euclid":    "Euclid",
	"manhattan": "Manhattan",
}

func canonicalDistance(d string) string {
	if v, ok := distanceNames[strings.ToLower(strings.TrimSpace(d))]; ok {
		return v
	}
	return "Cosine"
}
