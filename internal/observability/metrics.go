package observability

import (
	"io"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/yungbote/intromatch-backend/internal/platform/logger"
)

type Metrics struct {
	apiRequests *CounterVec
	apiLatency  *HistogramVec
	apiInflight *GaugeVec

	llmRequests *CounterVec
	llmLatency  *HistogramVec
	llmTokens   *CounterVec

	onboardingOutcomes   *CounterVec
	onboardingStepTime   *HistogramVec
	transcriptionPolls   *CounterVec
	embedQueueDepth      *GaugeVec
	embedResults         *CounterVec
	vectorOps            *CounterVec
	vectorLatency        *HistogramVec
	reindexProfiles      *CounterVec
	dataQuality          *CounterVec
	userLockWaitDuration *HistogramVec
	providerBootstrap    *CounterVec
}

var (
	initOnce sync.Once
	instance *Metrics
)

// Current returns the process metrics, or nil when metrics are disabled. All
// Metrics methods are nil-safe.
func Current() *Metrics {
	return instance
}

func Init(log *logger.Logger, enabled bool) *Metrics {
	if !enabled {
		return nil
	}
	initOnce.Do(func() {
		instance = newMetrics()
		if log != nil {
			log.Info("metrics enabled")
		}
	})
	return instance
}

func newMetrics() *Metrics {
	latency := []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30}
	slow := []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300}
	return &Metrics{
		apiRequests: NewCounterVec("im_api_requests_total", "Total API requests by method/route/status.", []string{"method", "route", "status"}),
		apiLatency:  NewHistogramVec("im_api_request_duration_seconds", "API request latency in seconds by method/route.", []string{"method", "route"}, latency),
		apiInflight: NewGauge("im_api_inflight_requests", "In-flight API requests."),

		llmRequests: NewCounterVec("im_llm_requests_total", "LLM requests by model/endpoint/status.", []string{"model", "endpoint", "status"}),
		llmLatency:  NewHistogramVec("im_llm_request_duration_seconds", "LLM request latency in seconds by model/endpoint.", []string{"model", "endpoint"}, slow),
		llmTokens:   NewCounterVec("im_llm_tokens_total", "LLM tokens by model/direction.", []string{"model", "direction"}),

		onboardingOutcomes: NewCounterVec("im_onboarding_outcomes_total", "processAudio outcomes by resulting session status.", []string{"status"}),
		onboardingStepTime: NewHistogramVec("im_onboarding_step_duration_seconds", "Onboarding pipeline step latency.", []string{"step", "status"}, slow),
		transcriptionPolls: NewCounterVec("im_transcription_polls_total", "Transcription job polls by observed state.", []string{"state"}),
		embedQueueDepth:    NewGauge("im_embed_queue_depth", "Pending profile embedding tasks."),
		embedResults:       NewCounterVec("im_embed_results_total", "Profile embedding results by source/status.", []string{"source", "status"}),
		vectorOps:          NewCounterVec("im_vector_ops_total", "Vector index operations by op/status.", []string{"op", "status"}),
		vectorLatency:      NewHistogramVec("im_vector_op_duration_seconds", "Vector index operation latency.", []string{"op"}, latency),
		reindexProfiles:    NewCounterVec("im_reindex_profiles_total", "Profiles processed by bulk reindex, by outcome.", []string{"outcome"}),
		dataQuality:        NewCounterVec("im_data_quality_issues_total", "Data quality issues by stage/issue/key.", []string{"stage", "issue", "key"}),
		userLockWaitDuration: NewHistogramVec("im_user_lock_wait_seconds", "Time spent waiting for the per-user onboarding lock.",
			[]string{"backend"}, latency),
		providerBootstrap: NewCounterVec("im_provider_bootstrap_total", "Provider bootstrap attempts by provider/mode/outcome/code.",
			[]string{"provider", "mode", "outcome", "code"}),
	}
}

// Handler serves the exposition format.
func (m *Metrics) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m == nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "text/plain; version=0.0.4")
		_ = m.WritePrometheus(w)
	})
}

func (m *Metrics) WritePrometheus(w io.Writer) error {
	if m == nil {
		return nil
	}
	writers := []interface{ WritePrometheus(io.Writer) error }{
		m.apiRequests, m.apiLatency, m.apiInflight,
		m.llmRequests, m.llmLatency, m.llmTokens,
		m.onboardingOutcomes, m.onboardingStepTime, m.transcriptionPolls,
		m.embedQueueDepth, m.embedResults,
		m.vectorOps, m.vectorLatency,
		m.reindexProfiles, m.dataQuality, m.userLockWaitDuration,
		m.providerBootstrap,
	}
	for _, wr := range writers {
		if err := wr.WritePrometheus(w); err != nil {
			return err
		}
	}
	return nil
}

func (m *Metrics) ObserveAPI(method, route string, status int, dur time.Duration) {
	if m == nil {
		return
	}
	if method == "" {
		method = "UNKNOWN"
	}
	m.apiRequests.Inc(method, route, strconv.Itoa(status))
	m.apiLatency.Observe(dur.Seconds(), method, route)
}

func (m *Metrics) APIInflight(delta float64) {
	if m == nil {
		return
	}
	m.apiInflight.Add(delta)
}

func (m *Metrics) ObserveLLMRequest(model, endpoint, status string, dur time.Duration, inputTokens, outputTokens int) {
	if m == nil {
		return
	}
	m.llmRequests.Inc(model, endpoint, status)
	m.llmLatency.Observe(dur.Seconds(), model, endpoint)
	if inputTokens > 0 {
		m.llmTokens.Add(float64(inputTokens), model, "input")
	}
	if outputTokens > 0 {
		m.llmTokens.Add(float64(outputTokens), model, "output")
	}
}

func (m *Metrics) ObserveOnboardingOutcome(status string) {
	if m == nil {
		return
	}
	m.onboardingOutcomes.Inc(status)
}

func (m *Metrics) ObserveOnboardingStep(step string, err error, dur time.Duration) {
	if m == nil {
		return
	}
	m.onboardingStepTime.Observe(dur.Seconds(), step, statusLabel(err))
}

func (m *Metrics) IncTranscriptionPoll(state string) {
	if m == nil {
		return
	}
	m.transcriptionPolls.Inc(state)
}

func (m *Metrics) SetEmbedQueueDepth(n int) {
	if m == nil {
		return
	}
	m.embedQueueDepth.Set(float64(n))
}

func (m *Metrics) IncEmbedResult(source, status string) {
	if m == nil {
		return
	}
	m.embedResults.Inc(source, status)
}

func (m *Metrics) ObserveVectorOp(op string, err error, dur time.Duration) {
	if m == nil {
		return
	}
	m.vectorOps.Inc(op, statusLabel(err))
	m.vectorLatency.Observe(dur.Seconds(), op)
}

func (m *Metrics) AddReindexProfiles(outcome string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.reindexProfiles.Add(float64(n), outcome)
}

func (m *Metrics) ObserveUserLockWait(backend string, dur time.Duration) {
	if m == nil {
		return
	}
	m.userLockWaitDuration.Observe(dur.Seconds(), backend)
}

func (m *Metrics) incDataQuality(stage, issue, key string) {
	if m == nil {
		return
	}
	m.dataQuality.Inc(stage, issue, key)
}

func statusLabel(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// ObserveProviderBootstrap records the selection of a storage or vector
// backend at startup. code is "none" on success.
func (m *Metrics) ObserveProviderBootstrap(provider, mode, outcome, code string) {
	if m == nil {
		return
	}
	m.providerBootstrap.Inc(provider, mode, outcome, code)
}
