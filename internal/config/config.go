// Package config defines configuration parsing and helpers.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"

	"github.com/fairyhunter13/ai-interview-coach/internal/domain"
)

// Config holds all application configuration parsed from environment variables.
type Config struct {
	AppEnv string `env:"APP_ENV" envDefault:"dev"`
	Port   int    `env:"PORT" envDefault:"8080"`

	OpenAIAPIKey       string `env:"OPENAI_API_KEY,required,notEmpty"`
	OpenAIBaseURL      string `env:"OPENAI_BASE_URL" envDefault:"https://api.openai.com/v1"`
	ChatModelStandard  string `env:"CHAT_MODEL_STANDARD" envDefault:"gpt-4o"`
	ChatModelLite      string `env:"CHAT_MODEL_LITE" envDefault:"gpt-4o-mini"`
	EmbeddingsModel    string `env:"EMBEDDINGS_MODEL" envDefault:"text-embedding-3-small"`
	EmbeddingsDim      int    `env:"EMBEDDINGS_DIM" envDefault:"1536"`
	TranscriptionModel string `env:"TRANSCRIPTION_MODEL" envDefault:"whisper-1"`
	SpeechModel        string `env:"SPEECH_MODEL" envDefault:"tts-1"`
	SpeechVoice        string `env:"SPEECH_VOICE" envDefault:"nova"`
	// AIMaxRetries is the number of extra attempts on 429/5xx. Zero disables retries.
	AIMaxRetries             int           `env:"AI_MAX_RETRIES" envDefault:"0"`
	AIRequestTimeout         time.Duration `env:"AI_REQUEST_TIMEOUT" envDefault:"120s"`
	AIBackoffInitialInterval time.Duration `env:"AI_BACKOFF_INITIAL_INTERVAL" envDefault:"1s"`
	AIBackoffMaxInterval     time.Duration `env:"AI_BACKOFF_MAX_INTERVAL" envDefault:"10s"`
	EmbedCacheSize           int           `env:"EMBED_CACHE_SIZE" envDefault:"2048"`
	EmbedCacheTTL            time.Duration `env:"EMBED_CACHE_TTL" envDefault:"1h"`

	// QdrantURL empty selects the in-process vector store.
	QdrantURL    string `env:"QDRANT_URL"`
	QdrantAPIKey string `env:"QDRANT_API_KEY"`
	// TikaURL specifies the base URL for the Apache Tika server used for text extraction
	TikaURL string `env:"TIKA_URL" envDefault:"http://localhost:9998"`
	// RedisURL empty selects the in-process session store.
	RedisURL   string        `env:"REDIS_URL"`
	SessionTTL time.Duration `env:"SESSION_TTL" envDefault:"2h"`
	// KafkaBrokers empty disables lifecycle events.
	KafkaBrokers []string `env:"KAFKA_BROKERS" envSeparator:","`
	EventsTopic  string   `env:"EVENTS_TOPIC" envDefault:"interview-events"`

	ChunkSize      int `env:"CHUNK_SIZE" envDefault:"1000"`
	ChunkOverlap   int `env:"CHUNK_OVERLAP" envDefault:"100"`
	RetrievalTopK  int `env:"RETRIEVAL_TOP_K" envDefault:"3"`
	StageThreshold int `env:"STAGE_THRESHOLD" envDefault:"2"`
	MaxQuestions   int `env:"MAX_QUESTIONS" envDefault:"3"`

	AudioDir string `env:"AUDIO_DIR"`
	// AudioMaxAge bounds how long an unplayed reply file is kept.
	AudioMaxAge        time.Duration `env:"AUDIO_MAX_AGE" envDefault:"30m"`
	AudioSweepInterval time.Duration `env:"AUDIO_SWEEP_INTERVAL" envDefault:"5m"`
	PodcastDir         string        `env:"PODCAST_DIR" envDefault:"podcasts"`
	PromptsFile        string        `env:"PROMPTS_FILE"`

	OTLPEndpoint    string `env:"OTEL_EXPORTER_OTLP_ENDPOINT" envDefault:""`
	OTELServiceName string `env:"OTEL_SERVICE_NAME" envDefault:"ai-interview-coach"`
	// LogFile adds a rotated file sink next to stdout when set.
	LogFile       string `env:"LOG_FILE"`
	LogMaxSizeMB  int    `env:"LOG_MAX_SIZE_MB" envDefault:"50"`
	LogMaxBackups int    `env:"LOG_MAX_BACKUPS" envDefault:"5"`

	MaxUploadMB      int64  `env:"MAX_UPLOAD_MB" envDefault:"10"`
	MaxAudioMB       int64  `env:"MAX_AUDIO_MB" envDefault:"25"`
	CORSAllowOrigins string `env:"CORS_ALLOW_ORIGINS" envDefault:"*"`
	RateLimitPerMin  int    `env:"RATE_LIMIT_PER_MIN" envDefault:"30"`
	// AIRateLimitPerMin is the per-client budget for model-backed routes,
	// shared across replicas through Redis when REDIS_URL is set.
	AIRateLimitPerMin     int           `env:"AI_RATE_LIMIT_PER_MIN" envDefault:"20"`
	ServerShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" envDefault:"30s"`
	HTTPReadTimeout       time.Duration `env:"HTTP_READ_TIMEOUT" envDefault:"15s"`
	HTTPWriteTimeout      time.Duration `env:"HTTP_WRITE_TIMEOUT" envDefault:"180s"`
	HTTPIdleTimeout       time.Duration `env:"HTTP_IDLE_TIMEOUT" envDefault:"60s"`
	StartupWaitTimeout    time.Duration `env:"STARTUP_WAIT_TIMEOUT" envDefault:"30s"`
}

// Load parses environment variables into a Config.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("op=config.Load: %w", err)
	}
	if cfg.ChunkOverlap >= cfg.ChunkSize {
		return Config{}, fmt.Errorf("op=config.Load: CHUNK_OVERLAP (%d) must be smaller than CHUNK_SIZE (%d)", cfg.ChunkOverlap, cfg.ChunkSize)
	}
	if cfg.StageThreshold < 1 || cfg.MaxQuestions < 1 {
		return Config{}, fmt.Errorf("op=config.Load: STAGE_THRESHOLD and MAX_QUESTIONS must be positive")
	}
	return cfg, nil
}

// IsDev reports whether the app is running in development mode.
func (c Config) IsDev() bool { return strings.ToLower(c.AppEnv) == "dev" }

// IsProd reports whether the app is running in production mode.
func (c Config) IsProd() bool { return strings.ToLower(c.AppEnv) == "prod" }

// IsTest reports whether the app is running in test mode.
func (c Config) IsTest() bool { return strings.ToLower(c.AppEnv) == "test" }

// ChatModel resolves the model name for a tier, falling back to the
// standard model when the lite model is not configured.
func (c Config) ChatModel(tier domain.ModelTier) string {
	if tier == domain.TierLite && c.ChatModelLite != "" {
		return c.ChatModelLite
	}
	if c.ChatModelStandard != "" {
		return c.ChatModelStandard
	}
	return "gpt-4o"
}

// GetAIBackoffConfig returns backoff intervals for upstream AI calls.
// In test environments it uses much shorter intervals.
func (c Config) GetAIBackoffConfig() (initialInterval, maxInterval time.Duration) {
	if c.IsTest() {
		return 10 * time.Millisecond, 50 * time.Millisecond
	}
	return c.AIBackoffInitialInterval, c.AIBackoffMaxInterval
}

// UsesQdrant reports whether the Context Index is backed by Qdrant.
func (c Config) UsesQdrant() bool { return c.QdrantURL != "" }

// UsesRedis reports whether sessions are stored in Redis.
func (c Config) UsesRedis() bool { return c.RedisURL != "" }

// EventsEnabled reports whether lifecycle events are published.
func (c Config) EventsEnabled() bool { return len(c.KafkaBrokers) > 0 }
