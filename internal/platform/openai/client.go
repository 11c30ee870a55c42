package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/yungbote/intromatch-backend/internal/observability"
	"github.com/yungbote/intromatch-backend/internal/platform/ctxutil"
	"github.com/yungbote/intromatch-backend/internal/platform/httpx"
	"github.com/yungbote/intromatch-backend/internal/platform/logger"
)

// Client is the text-generation and embedding client used by the rest of
// the backend.
type Client interface {
	Embed(ctx context.Context, inputs []string) ([][]float32, error)
	// GenerateText returns the model's free-form reply. Callers that expect
	// JSON parse it themselves.
	GenerateText(ctx context.Context, system string, user string) (string, error)
}

type APIStyle string

const (
	APIStyleResponses       APIStyle = "responses"
	APIStyleChatCompletions APIStyle = "chat_completions"
)

type Config struct {
	APIKey  string
	BaseURL string
	Model   string
	// EmbedBaseURL/EmbedAPIKey default to BaseURL/APIKey. Useful when text
	// generation goes to an OpenAI-compatible provider that has no embeddings.
	EmbedBaseURL    string
	EmbedAPIKey     string
	EmbedModel      string
	EmbedDimensions int
	APIStyle        APIStyle
	Timeout         time.Duration
	MaxRetries      int
	// Temperature nil omits the parameter.
	Temperature *float64
}

func DefaultConfig() Config {
	temp := 0.1
	return Config{
		BaseURL:     "https://api.openai.com",
		Model:       "gpt-4.1-mini",
		EmbedModel:  "text-embedding-3-large",
		APIStyle:    APIStyleResponses,
		Timeout:     120 * time.Second,
		MaxRetries:  4,
		Temperature: &temp,
	}
}

type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid openai config %s: %s", e.Field, e.Reason)
}

type client struct {
	log          *logger.Logger
	baseURL      string
	apiKey       string
	embedBaseURL string
	embedAPIKey  string
	model        string
	embedModel   string
	embedDims    int
	style        APIStyle
	httpClient   *http.Client
	maxRetries   int
	temperature  *float64

	// Models that rejected temperature; omitted for the rest of the process.
	noTempMu   sync.RWMutex
	noTempSeen map[string]bool
}

func NewClient(log *logger.Logger, cfg Config) (Client, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, &ConfigError{Field: "OPENAI_API_KEY", Reason: "missing"}
	}
	def := DefaultConfig()
	if strings.TrimSpace(cfg.BaseURL) == "" {
		cfg.BaseURL = def.BaseURL
	}
	if strings.TrimSpace(cfg.Model) == "" {
		cfg.Model = def.Model
	}
	if strings.TrimSpace(cfg.EmbedModel) == "" {
		cfg.EmbedModel = def.EmbedModel
	}
	if cfg.EmbedBaseURL == "" {
		cfg.EmbedBaseURL = cfg.BaseURL
	}
	if cfg.EmbedAPIKey == "" {
		cfg.EmbedAPIKey = cfg.APIKey
	}
	switch cfg.APIStyle {
	case "":
		cfg.APIStyle = APIStyleResponses
	case APIStyleResponses, APIStyleChatCompletions:
	default:
		return nil, &ConfigError{Field: "OPENAI_API_STYLE", Reason: fmt.Sprintf("unknown style %q", cfg.APIStyle)}
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}

	return &client{
		log:          log.With("service", "OpenAIClient"),
		baseURL:      strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
		apiKey:       strings.TrimSpace(cfg.APIKey),
		embedBaseURL: strings.TrimRight(strings.TrimSpace(cfg.EmbedBaseURL), "/"),
		embedAPIKey:  strings.TrimSpace(cfg.EmbedAPIKey),
		model:        strings.TrimSpace(cfg.Model),
		embedModel:   strings.TrimSpace(cfg.EmbedModel),
		embedDims:    cfg.EmbedDimensions,
		style:        cfg.APIStyle,
		httpClient:   &http.Client{Timeout: cfg.Timeout},
		maxRetries:   cfg.MaxRetries,
		temperature:  cfg.Temperature,
		noTempSeen:   map[string]bool{},
	}, nil
}

type openAIHTTPError struct {
	StatusCode int
	Body       string
}

func (e *openAIHTTPError) Error() string {
	return fmt.Sprintf("openai http %d: %s", e.StatusCode, e.Body)
}

func (e *openAIHTTPError) HTTPStatusCode() int {
	if e == nil {
		return 0
	}
	return e.StatusCode
}

func isUnsupportedTemperatureParam(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	if !strings.Contains(msg, "temperature") {
		return false
	}
	for _, marker := range []string{"unsupported", "unknown parameter", "unrecognized", "not supported", "does not support", "only the default"} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

func (c *client) temperatureFor(model string) *float64 {
	if c.temperature == nil {
		return nil
	}
	c.noTempMu.RLock()
	defer c.noTempMu.RUnlock()
	if c.noTempSeen[strings.ToLower(model)] {
		return nil
	}
	return c.temperature
}

func (c *client) noteNoTempModel(model string) {
	c.noTempMu.Lock()
	c.noTempSeen[strings.ToLower(model)] = true
	c.noTempMu.Unlock()
	c.log.Warn("Model rejected temperature; omitting from now on", "model", model)
}

type endpoint struct {
	baseURL string
	apiKey  string
}

func (c *client) doOnce(ctx context.Context, ep endpoint, method, path string, body any) (*http.Response, []byte, error) {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return nil, nil, err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, ep.baseURL+path, &buf)
	if err != nil {
		return nil, nil, err
	}
	req.Header.Set("Authorization", "Bearer "+ep.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, nil, err
	}
	raw, readErr := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if readErr != nil {
		return resp, nil, readErr
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return resp, raw, &openAIHTTPError{StatusCode: resp.StatusCode, Body: string(raw)}
	}
	return resp, raw, nil
}

// do retries transient failures with jittered exponential backoff, honoring
// Retry-After.
func (c *client) do(ctx context.Context, ep endpoint, path, model string, body any, out any) error {
	ctx = ctxutil.Default(ctx)
	ctx, span := observability.StartSpan(ctx, "openai"+strings.ReplaceAll(path, "/", "."),
		attribute.String("llm.model", model))
	var spanErr error
	defer func() { observability.EndSpan(span, spanErr) }()

	backoff := time.Second
	start := time.Now()
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		resp, raw, err := c.doOnce(ctx, ep, http.MethodPost, path, body)
		if err == nil {
			in, outTok := extractUsage(raw)
			observability.Current().ObserveLLMRequest(model, path, statusFromResp(resp, nil), time.Since(start), in, outTok)
			if out == nil {
				return nil
			}
			if uErr := json.Unmarshal(raw, out); uErr != nil {
				spanErr = fmt.Errorf("openai decode error: %w; raw=%s", uErr, truncate(string(raw), 512))
				return spanErr
			}
			return nil
		}
		if !httpx.IsRetryableError(err) || attempt == c.maxRetries {
			observability.Current().ObserveLLMRequest(model, path, statusFromResp(resp, err), time.Since(start), 0, 0)
			spanErr = err
			return err
		}

		sleepFor := httpx.JitterSleep(httpx.RetryAfterDuration(resp, backoff, 10*time.Second))
		c.log.Warn("OpenAI request retrying",
			"path", path,
			"attempt", attempt+1,
			"max_retries", c.maxRetries,
			"sleep", sleepFor.String(),
			"error", err.Error(),
		)
		if err := httpx.Sleep(ctx, sleepFor); err != nil {
			spanErr = err
			return err
		}
		backoff *= 2
	}
	return fmt.Errorf("unreachable retry loop")
}

func statusFromResp(resp *http.Response, err error) string {
	if resp != nil {
		return strconv.Itoa(resp.StatusCode)
	}
	if err != nil {
		return "error"
	}
	return "ok"
}

func extractUsage(raw []byte) (int, int) {
	var env struct {
		Usage struct {
			InputTokens      int `json:"input_tokens"`
			OutputTokens     int `json:"output_tokens"`
			PromptTokens     int `json:"prompt_tokens"`
			CompletionTokens int `json:"completion_tokens"`
		} `json:"usage"`
	}
	if err := json.Unmarshal(raw, &env); err != nil {
		return 0, 0
	}
	in := env.Usage.InputTokens + env.Usage.PromptTokens
	out := env.Usage.OutputTokens + env.Usage.CompletionTokens
	return in, out
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
