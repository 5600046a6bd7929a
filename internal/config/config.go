package config

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/cloo-solutions/docqa/internal/domain"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Index backends
const (
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
	BackendBolt     = "bolt"
	BackendMemory   = "memory"
)

// Re-ingest policies
const (
	IndexModeIncremental = "incremental"
	IndexModeRebuild     = "rebuild"
)

// Embedding providers
const (
	EmbeddingProviderAuto   = "auto"
	EmbeddingProviderOpenAI = "openai"
	EmbeddingProviderHash   = "hash"
)

type Config struct {
	Port  string `envconfig:"PORT" default:"8080"`
	Debug bool   `envconfig:"DEBUG" default:"false"`

	IndexBackend string `envconfig:"INDEX_BACKEND" default:"sqlite"`
	IndexMode    string `envconfig:"INDEX_MODE" default:"incremental"`
	DataDir      string `envconfig:"DATA_DIR" default:"./data"`
	DatabaseURL  string `envconfig:"DATABASE_URL"`

	ChunkSize    int `envconfig:"CHUNK_SIZE" default:"800"`
	ChunkOverlap int `envconfig:"CHUNK_OVERLAP" default:"50"`
	TopK         int `envconfig:"TOP_K" default:"4"`

	HistoryTurns      int           `envconfig:"HISTORY_TURNS" default:"10"`
	CondenseQuestions bool          `envconfig:"CONDENSE_QUESTIONS" default:"true"`
	RefusalMarkers    []string      `envconfig:"REFUSAL_MARKERS" default:"I don't know,I do not know,I'm not sure,cannot answer,not mentioned in the context"`
	QueryTimeout      time.Duration `envconfig:"QUERY_TIMEOUT" default:"60s"`
	SessionTTL        time.Duration `envconfig:"SESSION_TTL" default:"0s"`

	DocsDir            string        `envconfig:"DOCS_DIR" default:"docs"`
	DocsWatch          bool          `envconfig:"DOCS_WATCH" default:"false"`
	IngestOnStart      bool          `envconfig:"INGEST_ON_START" default:"true"`
	IngestPollInterval time.Duration `envconfig:"INGEST_POLL_INTERVAL" default:"2s"`

	EmbeddingProvider   string  `envconfig:"EMBEDDING_PROVIDER" default:"auto"`
	EmbeddingModel      string  `envconfig:"EMBEDDING_MODEL" default:"text-embedding-3-small"`
	EmbeddingDimensions int     `envconfig:"EMBEDDING_DIMENSIONS" default:"1536"`
	HashDimensions      int     `envconfig:"HASH_DIMENSIONS" default:"512"`
	ChatModel           string  `envconfig:"CHAT_MODEL" default:"gpt-3.5-turbo"`
	Temperature         float32 `envconfig:"TEMPERATURE" default:"0.3"`

	OpenAIAPIKey  string `envconfig:"OPENAI_API_KEY"`
	OpenAIBaseURL string `envconfig:"OPENAI_BASE_URL"`

	S3Endpoint  string `envconfig:"S3_ENDPOINT"`
	S3AccessKey string `envconfig:"S3_ACCESS_KEY_ID"`
	S3SecretKey string `envconfig:"S3_SECRET_ACCESS_KEY"`
	S3Bucket    string `envconfig:"S3_BUCKET"`
	S3Prefix    string `envconfig:"S3_PREFIX"`
	S3Region    string `envconfig:"S3_REGION" default:"us-east-1"`

	SentryDSN         string `envconfig:"SENTRY_DSN"`
	SentryEnvironment string `envconfig:"SENTRY_ENVIRONMENT" default:"development"`
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("DOCQA", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	return cfg
}

// Validate checks the settings that are fatal at startup
func (c *Config) Validate() error {
	if c.ChunkSize <= 0 {
		return domain.ErrInvalidChunkSize
	}
	if c.ChunkOverlap < 0 || c.ChunkOverlap >= c.ChunkSize {
		return domain.ErrInvalidChunkOverlap
	}
	if c.TopK <= 0 {
		return domain.ErrInvalidTopK
	}

	switch c.IndexBackend {
	case BackendSQLite, BackendBolt, BackendMemory:
	case BackendPostgres:
		if c.DatabaseURL == "" {
			return configError("DATABASE_URL is required for the postgres backend")
		}
	default:
		return configError(fmt.Sprintf("unknown index backend %q", c.IndexBackend))
	}

	switch c.IndexMode {
	case IndexModeIncremental, IndexModeRebuild:
	default:
		return configError(fmt.Sprintf("unknown index mode %q", c.IndexMode))
	}

	switch c.EmbeddingProvider {
	case EmbeddingProviderAuto, EmbeddingProviderHash:
	case EmbeddingProviderOpenAI:
		if !c.HasOpenAI() {
			return configError("OPENAI_API_KEY is required for the openai embedding provider")
		}
	default:
		return configError(fmt.Sprintf("unknown embedding provider %q", c.EmbeddingProvider))
	}

	return nil
}

func configError(msg string) error {
	return domain.NewDomainError(domain.ErrCodeConfiguration, msg)
}

// Rebuild reports whether ingestion should clear the index first
func (c *Config) Rebuild() bool {
	return c.IndexMode == IndexModeRebuild
}

// ResolvedEmbeddingProvider resolves "auto" to a concrete provider
func (c *Config) ResolvedEmbeddingProvider() string {
	if c.EmbeddingProvider != EmbeddingProviderAuto {
		return c.EmbeddingProvider
	}
	if c.HasOpenAI() {
		return EmbeddingProviderOpenAI
	}
	return EmbeddingProviderHash
}

// Markers returns the refusal markers with blanks removed
func (c *Config) Markers() []string {
	out := make([]string, 0, len(c.RefusalMarkers))
	for _, m := range c.RefusalMarkers {
		if m = strings.TrimSpace(m); m != "" {
			out = append(out, m)
		}
	}
	return out
}

func (c *Config) HasS3() bool {
	return c.S3Bucket != ""
}

func (c *Config) HasOpenAI() bool {
	return c.OpenAIAPIKey != ""
}

func (c *Config) HasSentry() bool {
	return c.SentryDSN != ""
}
