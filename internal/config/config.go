// Package config provides application configuration loaded from environment
// variables with defaults and validation. It centralizes server settings,
// logging, database paths, the ingestion pipeline knobs (chunking, embedding,
// vector index), generation, quota accounting, rate limiting, and observability.
package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"
)

// CORSConfig defines Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string
}

// OTELConfig defines OpenTelemetry observability settings.
type OTELConfig struct {
	Enabled     bool    // OTEL_ENABLED
	Endpoint    string  // OTEL_EXPORTER_OTLP_ENDPOINT (e.g. "otel:4317")
	Insecure    bool    // OTEL_EXPORTER_OTLP_INSECURE (true if no TLS)
	ServiceName string  // OTEL_SERVICE_NAME
	SampleRatio float64 // OTEL_TRACES_SAMPLER_ARG in [0..1]
}

// IngestConfig holds the ingestion pipeline knobs: chunk geometry, the worker
// pool, and the per-stage timeout applied to embedding and index calls.
type IngestConfig struct {
	ChunkSize    int           // CHUNK_SIZE (window W, characters)
	ChunkOverlap int           // CHUNK_OVERLAP (overlap O, characters)
	Workers      int           // INGEST_WORKERS (concurrent documents)
	QueueDepth   int           // INGEST_QUEUE_DEPTH (pending documents)
	StageTimeout time.Duration // INGEST_STAGE_TIMEOUT per external call
}

// EmbeddingConfig configures the OpenAI-compatible embeddings backend.
type EmbeddingConfig struct {
	BaseURL   string        // EMBEDDING_BASE_URL
	APIKey    string        // EMBEDDING_API_KEY
	Model     string        // EMBEDDING_MODEL
	Dimension int           // EMBEDDING_DIMENSION (0 = learn from first call)
	Timeout   time.Duration // EMBEDDING_TIMEOUT
}

// QdrantConfig configures the vector index backend.
type QdrantConfig struct {
	URL        string        // QDRANT_URL
	APIKey     string        // QDRANT_API_KEY
	Collection string        // QDRANT_COLLECTION
	Timeout    time.Duration // QDRANT_TIMEOUT
}

// GenerationConfig configures the chat-completions backend used for answers.
type GenerationConfig struct {
	BaseURL     string        // GENERATION_BASE_URL
	APIKey      string        // GENERATION_API_KEY
	Model       string        // GENERATION_MODEL
	Temperature float64       // GENERATION_TEMPERATURE
	Timeout     time.Duration // GENERATION_TIMEOUT
}

// Config holds all configuration values for the application.
type Config struct {
	// Server
	Port              string
	ReadTimeout       time.Duration
	ReadHeaderTimeout time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	MaxHeaderBytes    int
	GinMode           string // debug|release|test

	// Logging
	LogLevel    string // debug|info|warn|error|fatal|panic
	LogPretty   bool
	APIBasePath string

	// Storage
	DBPath    string // SQLite path
	UploadDir string // where raw uploads are kept
	MaxUpload int64  // max upload size in bytes

	// Retrieval / chat
	TopK           int   // RETRIEVAL_TOP_K matches per question
	HistoryWindow  int   // CHAT_HISTORY_WINDOW messages carried to generation
	TokenCharRatio int   // QUOTA_CHAR_RATIO chars per usage unit
	BasicDocLimit  int64 // PLAN_BASIC_DOC_LIMIT documents on the basic plan

	// VectorBackend selects the index implementation: qdrant|memory.
	VectorBackend string

	Ingest     IngestConfig
	Embedding  EmbeddingConfig
	Qdrant     QdrantConfig
	Generation GenerationConfig

	// Rate limiting
	RateRPS   float64
	RateBurst int

	// Web protection
	CORS CORSConfig

	// Observability
	OTEL OTELConfig
}

// MustLoad loads the configuration and panics if validation fails.
func MustLoad() Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// Load reads configuration from environment variables, applies defaults,
// normalizes values, and validates the result.
func Load() (Config, error) {
	cfg := Config{
		Port:              getenv("PORT", "8080"),
		ReadTimeout:       getdur("READ_TIMEOUT", 15*time.Second),
		ReadHeaderTimeout: getdur("READ_HEADER_TIMEOUT", 10*time.Second),
		WriteTimeout:      getdur("WRITE_TIMEOUT", 30*time.Second),
		IdleTimeout:       getdur("IDLE_TIMEOUT", 60*time.Second),
		MaxHeaderBytes:    getint("MAX_HEADER_BYTES", 1<<20),
		GinMode:           strings.ToLower(getenv("GIN_MODE", "release")),

		LogLevel:    strings.ToLower(getenv("LOG_LEVEL", "info")),
		LogPretty:   getbool("LOG_PRETTY", false),
		APIBasePath: normalizeBasePath(getenv("API_BASE_PATH", "/api/v1")),

		DBPath:    getenv("DB_PATH", "app.db"),
		UploadDir: getenv("UPLOAD_DIR", "uploads"),
		MaxUpload: int64(getint("MAX_UPLOAD_BYTES", 20<<20)),

		TopK:           getint("RETRIEVAL_TOP_K", 5),
		HistoryWindow:  getint("CHAT_HISTORY_WINDOW", 10),
		TokenCharRatio: getint("QUOTA_CHAR_RATIO", 4),
		BasicDocLimit:  int64(getint("PLAN_BASIC_DOC_LIMIT", 10)),

		VectorBackend: strings.ToLower(getenv("VECTOR_INDEX", "qdrant")),

		Ingest: IngestConfig{
			ChunkSize:    getint("CHUNK_SIZE", 1000),
			ChunkOverlap: getint("CHUNK_OVERLAP", 200),
			Workers:      getint("INGEST_WORKERS", 2),
			QueueDepth:   getint("INGEST_QUEUE_DEPTH", 64),
			StageTimeout: getdur("INGEST_STAGE_TIMEOUT", 2*time.Minute),
		},
		Embedding: EmbeddingConfig{
			BaseURL:   getenv("EMBEDDING_BASE_URL", "https://api.openai.com/v1"),
			APIKey:    getenv("EMBEDDING_API_KEY", ""),
			Model:     getenv("EMBEDDING_MODEL", "text-embedding-3-small"),
			Dimension: getint("EMBEDDING_DIMENSION", 0),
			Timeout:   getdur("EMBEDDING_TIMEOUT", 30*time.Second),
		},
		Qdrant: QdrantConfig{
			URL:        getenv("QDRANT_URL", "http://localhost:6333"),
			APIKey:     getenv("QDRANT_API_KEY", ""),
			Collection: getenv("QDRANT_COLLECTION", "prashnly"),
			Timeout:    getdur("QDRANT_TIMEOUT", 15*time.Second),
		},
		Generation: GenerationConfig{
			BaseURL:     getenv("GENERATION_BASE_URL", "https://api.groq.com/openai/v1"),
			APIKey:      getenv("GENERATION_API_KEY", ""),
			Model:       getenv("GENERATION_MODEL", "llama-3.1-8b-instant"),
			Temperature: getfloat("GENERATION_TEMPERATURE", 0.1),
			Timeout:     getdur("GENERATION_TIMEOUT", 45*time.Second),
		},

		RateRPS:   getfloat("RATE_RPS", 5.0),
		RateBurst: getint("RATE_BURST", 10),

		CORS: CORSConfig{
			AllowedOrigins: splitCSV(getenv("CORS_ALLOWED_ORIGINS", "")),
		},

		OTEL: OTELConfig{
			Enabled:     getbool("OTEL_ENABLED", false),
			Endpoint:    getenv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			Insecure:    getbool("OTEL_EXPORTER_OTLP_INSECURE", true),
			ServiceName: getenv("OTEL_SERVICE_NAME", "prashnly-backend"),
			SampleRatio: getfloat("OTEL_TRACES_SAMPLER_ARG", 1.0),
		},
	}

	// --- normalization ---
	if cfg.LogLevel == "warning" {
		cfg.LogLevel = "warn"
	}
	switch cfg.GinMode {
	case "debug", "release", "test":
	default:
		cfg.GinMode = "release"
	}

	// --- validation ---
	switch cfg.LogLevel {
	case "debug", "info", "warn", "error", "fatal", "panic":
	default:
		return cfg, errors.New("LOG_LEVEL must be one of: debug, info, warn, error, fatal, panic")
	}
	if strings.TrimSpace(cfg.Port) == "" {
		return cfg, errors.New("PORT must not be empty")
	}
	if cfg.ReadTimeout <= 0 || cfg.ReadHeaderTimeout <= 0 || cfg.WriteTimeout <= 0 || cfg.IdleTimeout <= 0 {
		return cfg, errors.New("timeouts must be positive durations")
	}
	if strings.TrimSpace(cfg.DBPath) == "" {
		return cfg, errors.New("DB_PATH must not be empty")
	}
	if strings.TrimSpace(cfg.UploadDir) == "" {
		return cfg, errors.New("UPLOAD_DIR must not be empty")
	}
	if cfg.MaxUpload <= 0 {
		return cfg, errors.New("MAX_UPLOAD_BYTES must be > 0")
	}
	switch cfg.VectorBackend {
	case "qdrant", "memory":
	default:
		return cfg, errors.New("VECTOR_INDEX must be one of: qdrant, memory")
	}
	if cfg.Ingest.ChunkSize <= 0 {
		return cfg, errors.New("CHUNK_SIZE must be > 0")
	}
	if cfg.Ingest.ChunkOverlap < 0 || cfg.Ingest.ChunkOverlap >= cfg.Ingest.ChunkSize {
		return cfg, errors.New("CHUNK_OVERLAP must satisfy 0 <= overlap < CHUNK_SIZE")
	}
	if cfg.Ingest.Workers < 1 {
		return cfg, errors.New("INGEST_WORKERS must be >= 1")
	}
	if cfg.Ingest.QueueDepth < 1 {
		return cfg, errors.New("INGEST_QUEUE_DEPTH must be >= 1")
	}
	if cfg.Ingest.StageTimeout <= 0 {
		return cfg, errors.New("INGEST_STAGE_TIMEOUT must be > 0")
	}
	if cfg.TopK < 1 {
		return cfg, errors.New("RETRIEVAL_TOP_K must be >= 1")
	}
	if cfg.HistoryWindow < 0 {
		return cfg, errors.New("CHAT_HISTORY_WINDOW must be >= 0")
	}
	if cfg.TokenCharRatio < 1 {
		return cfg, errors.New("QUOTA_CHAR_RATIO must be >= 1")
	}
	if cfg.RateRPS < 0 {
		return cfg, errors.New("RATE_RPS must be >= 0")
	}
	if cfg.RateBurst < 1 {
		return cfg, errors.New("RATE_BURST must be >= 1")
	}
	if cfg.OTEL.SampleRatio < 0 || cfg.OTEL.SampleRatio > 1 {
		return cfg, errors.New("OTEL_TRACES_SAMPLER_ARG must be in [0,1]")
	}

	return cfg, nil
}

// ---- helpers (no external deps) ----

func getenv(k, def string) string {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		return v
	}
	return def
}

func getfloat(k string, def float64) float64 {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getint(k string, def int) int {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getbool(k string, def bool) bool {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "true", "yes", "y", "on":
			return true
		case "0", "false", "no", "n", "off":
			return false
		}
	}
	return def
}

func getdur(k string, def time.Duration) time.Duration {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		t := strings.TrimSpace(p)
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}

// normalizeBasePath ensures a leading '/' and strips any trailing '/'
// (except for the root path).
func normalizeBasePath(p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return "/"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	if len(p) > 1 && strings.HasSuffix(p, "/") {
		p = strings.TrimRight(p, "/")
	}
	return p
}
