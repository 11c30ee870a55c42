package app

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/yungbote/intromatch-backend/internal/data/db"
	"github.com/yungbote/intromatch-backend/internal/modules/extraction"
	"github.com/yungbote/intromatch-backend/internal/modules/onboarding"
	"github.com/yungbote/intromatch-backend/internal/modules/transcription"
	"github.com/yungbote/intromatch-backend/internal/observability"
	"github.com/yungbote/intromatch-backend/internal/platform/gcp"
	"github.com/yungbote/intromatch-backend/internal/platform/logger"
	"github.com/yungbote/intromatch-backend/internal/platform/openai"
	"github.com/yungbote/intromatch-backend/internal/platform/qdrant"
	"github.com/yungbote/intromatch-backend/internal/platform/redislock"
)

type TranscriptionMode string

const (
	TranscriptionModeGCP  TranscriptionMode = "gcp"
	TranscriptionModeStub TranscriptionMode = "stub"
)

type Config struct {
	Env            string
	HTTPAddr       string
	CORSOrigins    []string
	JWTSecretKey   string
	AdminToken     string
	MetricsEnabled bool

	DB db.Config

	Storage         gcp.ObjectStorageConfig
	StorageModeRaw  string
	Speech          gcp.SpeechConfig
	TranscriptMode  TranscriptionMode
	Transcription   transcription.Config
	OpenAI          openai.Config
	MergeMode       extraction.MergeMode
	Qdrant          qdrant.Config
	Redis           redislock.Config
	Onboarding      onboarding.Config
	ValidationRules string

	EmbedQueueSize     int
	EmbedWorkers       int
	ReindexConcurrency int
	StaleBatch         int
	ResyncCron         string

	Otel observability.OtelConfig
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.env", "development")
	v.SetDefault("http.addr", ":8080")
	v.SetDefault("cors.origins", "")
	v.SetDefault("jwt.secret.key", "")
	v.SetDefault("admin.api.token", "")
	v.SetDefault("metrics.enabled", false)

	v.SetDefault("db.driver", string(db.DriverPostgres))
	v.SetDefault("postgres.host", "localhost")
	v.SetDefault("postgres.port", "5432")
	v.SetDefault("postgres.user", "postgres")
	v.SetDefault("postgres.password", "")
	v.SetDefault("postgres.name", "intromatch")
	v.SetDefault("postgres.sslmode", "disable")
	v.SetDefault("sqlite.path", "")

	v.SetDefault("object.storage.mode", "")
	v.SetDefault("storage.emulator.host", "")
	v.SetDefault("audio.gcs.bucket.name", "")
	v.SetDefault("google.application.credentials", "")
	v.SetDefault("upload.url.ttl.seconds", 3600)
	v.SetDefault("session.ttl.hours", 24)

	v.SetDefault("transcription.mode", string(TranscriptionModeGCP))
	v.SetDefault("transcription.poll.attempts", 30)
	v.SetDefault("transcription.poll.interval.seconds", 10)
	v.SetDefault("speech.language.code", "en-US")
	v.SetDefault("speech.model", "")

	oa := openai.DefaultConfig()
	v.SetDefault("openai.api.key", "")
	v.SetDefault("openai.base.url", oa.BaseURL)
	v.SetDefault("openai.model", oa.Model)
	v.SetDefault("openai.embed.base.url", "")
	v.SetDefault("openai.embed.api.key", "")
	v.SetDefault("openai.embed.model", oa.EmbedModel)
	v.SetDefault("openai.embed.dimensions", 0)
	v.SetDefault("openai.api.style", string(oa.APIStyle))
	v.SetDefault("openai.timeout.seconds", int(oa.Timeout/time.Second))
	v.SetDefault("openai.max.retries", oa.MaxRetries)
	v.SetDefault("profile.merge.mode", string(extraction.MergeModeLLM))

	qd := qdrant.DefaultConfig()
	v.SetDefault("qdrant.transport", string(qd.Transport))
	v.SetDefault("qdrant.url", "")
	v.SetDefault("qdrant.grpc.host", qd.GRPCHost)
	v.SetDefault("qdrant.grpc.port", qd.GRPCPort)
	v.SetDefault("qdrant.api.key", "")
	v.SetDefault("qdrant.use.tls", false)
	v.SetDefault("qdrant.collection", qd.Collection)
	v.SetDefault("qdrant.vector.dim", qd.VectorDim)
	v.SetDefault("qdrant.distance", qd.Distance)
	v.SetDefault("qdrant.timeout.seconds", int(qd.Timeout/time.Second))

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("user.lock.ttl.seconds", 600)

	v.SetDefault("validation.rules.file", "")
	v.SetDefault("embed.queue.size", 64)
	v.SetDefault("embed.workers", 1)
	v.SetDefault("reindex.concurrency", 4)
	v.SetDefault("resync.stale.batch", 200)
	v.SetDefault("resync.cron", "@every 15m")

	v.SetDefault("otel.enabled", false)
	v.SetDefault("otel.service.name", "intromatch-backend")
	v.SetDefault("otel.exporter.otlp.endpoint", "")
	v.SetDefault("otel.exporter.otlp.headers", "")
	v.SetDefault("otel.exporter.otlp.insecure", false)
	v.SetDefault("otel.sample.ratio", 1.0)
	v.SetDefault("app.version", "dev")
}

// LoadConfig reads .env (when present), an optional CONFIG_FILE and the
// environment, in increasing precedence. Keys map to env vars by replacing
// "." with "_", e.g. qdrant.vector.dim <- QDRANT_VECTOR_DIM.
func LoadConfig(log *logger.Logger) (Config, error) {
	if err := loadDotenv(os.Getenv("DOTENV_FILE")); err != nil {
		return Config{}, err
	}
	v := viper.New()
	setDefaults(v)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if path := strings.TrimSpace(os.Getenv("CONFIG_FILE")); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read CONFIG_FILE %s: %w", path, err)
		}
		if log != nil {
			log.Info("Loaded config file", "path", path)
		}
	}
	return fromViper(v)
}

func loadDotenv(path string) error {
	path = strings.TrimSpace(path)
	if path == "" {
		path = ".env"
		if _, err := os.Stat(path); err != nil {
			return nil
		}
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

func fromViper(v *viper.Viper) (Config, error) {
	cfg := Config{
		Env:            v.GetString("app.env"),
		HTTPAddr:       v.GetString("http.addr"),
		CORSOrigins:    splitList(v.GetString("cors.origins")),
		JWTSecretKey:   v.GetString("jwt.secret.key"),
		AdminToken:     v.GetString("admin.api.token"),
		MetricsEnabled: v.GetBool("metrics.enabled"),

		DB: db.Config{
			Driver:     db.Driver(strings.ToLower(v.GetString("db.driver"))),
			Host:       v.GetString("postgres.host"),
			Port:       v.GetString("postgres.port"),
			User:       v.GetString("postgres.user"),
			Password:   v.GetString("postgres.password"),
			Name:       v.GetString("postgres.name"),
			SSLMode:    v.GetString("postgres.sslmode"),
			SQLitePath: v.GetString("sqlite.path"),
		},

		Storage: gcp.ObjectStorageConfig{
			EmulatorHost: v.GetString("storage.emulator.host"),
			Bucket:       strings.TrimSpace(v.GetString("audio.gcs.bucket.name")),
			Credentials:  v.GetString("google.application.credentials"),
		},
		StorageModeRaw: v.GetString("object.storage.mode"),
		Speech: gcp.SpeechConfig{
			Credentials:                v.GetString("google.application.credentials"),
			LanguageCode:               v.GetString("speech.language.code"),
			Model:                      v.GetString("speech.model"),
			EnableAutomaticPunctuation: true,
		},
		TranscriptMode: TranscriptionMode(strings.ToLower(strings.TrimSpace(v.GetString("transcription.mode")))),
		Transcription: transcription.Config{
			PollAttempts: v.GetInt("transcription.poll.attempts"),
			PollInterval: time.Duration(v.GetInt("transcription.poll.interval.seconds")) * time.Second,
		},
		MergeMode: extraction.MergeMode(strings.ToLower(strings.TrimSpace(v.GetString("profile.merge.mode")))),
		Qdrant: qdrant.Config{
			Transport:  qdrant.Transport(strings.ToLower(strings.TrimSpace(v.GetString("qdrant.transport")))),
			URL:        strings.TrimSpace(v.GetString("qdrant.url")),
			GRPCHost:   v.GetString("qdrant.grpc.host"),
			GRPCPort:   v.GetInt("qdrant.grpc.port"),
			APIKey:     v.GetString("qdrant.api.key"),
			UseTLS:     v.GetBool("qdrant.use.tls"),
			Collection: v.GetString("qdrant.collection"),
			VectorDim:  v.GetInt("qdrant.vector.dim"),
			Distance:   v.GetString("qdrant.distance"),
			Timeout:    time.Duration(v.GetInt("qdrant.timeout.seconds")) * time.Second,
		},
		Redis: redislock.Config{
			Addr:      strings.TrimSpace(v.GetString("redis.addr")),
			Password:  v.GetString("redis.password"),
			DB:        v.GetInt("redis.db"),
			TTL:       time.Duration(v.GetInt("user.lock.ttl.seconds")) * time.Second,
			KeyPrefix: "intromatch:lock:",
		},
		Onboarding: onboarding.Config{
			UploadTTL:  time.Duration(v.GetInt("upload.url.ttl.seconds")) * time.Second,
			SessionTTL: time.Duration(v.GetInt("session.ttl.hours")) * time.Hour,
		},
		ValidationRules: strings.TrimSpace(v.GetString("validation.rules.file")),

		EmbedQueueSize:     v.GetInt("embed.queue.size"),
		EmbedWorkers:       v.GetInt("embed.workers"),
		ReindexConcurrency: v.GetInt("reindex.concurrency"),
		StaleBatch:         v.GetInt("resync.stale.batch"),
		ResyncCron:         v.GetString("resync.cron"),

		Otel: observability.OtelConfig{
			Enabled:     v.GetBool("otel.enabled"),
			ServiceName: v.GetString("otel.service.name"),
			Environment: v.GetString("app.env"),
			Version:     v.GetString("app.version"),
			Endpoint:    v.GetString("otel.exporter.otlp.endpoint"),
			Headers:     v.GetString("otel.exporter.otlp.headers"),
			Insecure:    v.GetBool("otel.exporter.otlp.insecure"),
			SampleRatio: v.GetFloat64("otel.sample.ratio"),
		},
	}

	oa := openai.DefaultConfig()
	oa.APIKey = v.GetString("openai.api.key")
	oa.BaseURL = v.GetString("openai.base.url")
	oa.Model = v.GetString("openai.model")
	oa.EmbedBaseURL = v.GetString("openai.embed.base.url")
	oa.EmbedAPIKey = v.GetString("openai.embed.api.key")
	oa.EmbedModel = v.GetString("openai.embed.model")
	oa.EmbedDimensions = v.GetInt("openai.embed.dimensions")
	oa.APIStyle = openai.APIStyle(strings.ToLower(strings.TrimSpace(v.GetString("openai.api.style"))))
	oa.Timeout = time.Duration(v.GetInt("openai.timeout.seconds")) * time.Second
	oa.MaxRetries = v.GetInt("openai.max.retries")
	cfg.OpenAI = oa

	switch cfg.TranscriptMode {
	case TranscriptionModeGCP, TranscriptionModeStub:
	default:
		return cfg, fmt.Errorf("invalid TRANSCRIPTION_MODE=%q; expected gcp or stub", cfg.TranscriptMode)
	}
	if cfg.EmbedQueueSize < 1 || cfg.EmbedWorkers < 1 {
		return cfg, fmt.Errorf("EMBED_QUEUE_SIZE and EMBED_WORKERS must be positive")
	}
	return cfg, nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
