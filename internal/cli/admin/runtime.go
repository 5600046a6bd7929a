package admin

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/cloo-solutions/docqa/internal/config"
	"github.com/cloo-solutions/docqa/internal/database"
	"github.com/cloo-solutions/docqa/internal/domain"
	"github.com/cloo-solutions/docqa/internal/embedding"
	"github.com/cloo-solutions/docqa/internal/extract"
	"github.com/cloo-solutions/docqa/internal/index"
	"github.com/cloo-solutions/docqa/internal/openai"
	"github.com/cloo-solutions/docqa/internal/repository"
	"github.com/cloo-solutions/docqa/internal/service"
	"github.com/cloo-solutions/docqa/internal/storage"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrGenerationNotConfigured is returned by the placeholder generator used
// when no OpenAI key is set.
var ErrGenerationNotConfigured = errors.New("generation not configured: DOCQA_OPENAI_API_KEY required")

// NoOpGenerator fails every generation call. Retrieval and ingestion keep
// working without a key.
type NoOpGenerator struct{}

func (NoOpGenerator) Generate(ctx context.Context, messages []domain.ChatMessage) (string, error) {
	return "", ErrGenerationNotConfigured
}

// runtime holds everything the daemon commands share
type runtime struct {
	cfg      *config.Config
	pool     *pgxpool.Pool
	store    index.Store
	index    *index.Index
	source   storage.Source
	registry *extract.Registry
	chunker  *service.Chunker
	ingester *service.Ingester
	openai   *openai.Client
}

type runtimeOptions struct {
	migrate bool
}

func newRuntime(ctx context.Context, cfg *config.Config, opts runtimeOptions) (*runtime, error) {
	rt := &runtime{cfg: cfg, registry: extract.NewRegistry()}

	if cfg.HasOpenAI() {
		rt.openai = openai.NewClientWithConfig(openai.Config{
			APIKey:              cfg.OpenAIAPIKey,
			BaseURL:             cfg.OpenAIBaseURL,
			EmbeddingModel:      cfg.EmbeddingModel,
			EmbeddingDimensions: cfg.EmbeddingDimensions,
			ChatModel:           cfg.ChatModel,
			Temperature:         cfg.Temperature,
		})
	}

	store, err := rt.openStore(ctx, opts)
	if err != nil {
		return nil, err
	}
	rt.store = store

	embedder, dims := rt.embedder()
	ixOpts := index.DefaultOptions()
	ixOpts.Dimensions = dims
	rt.index = index.New(store, embedder, ixOpts)

	if err := rt.index.Load(ctx); err != nil {
		rt.Close()
		return nil, fmt.Errorf("failed to load index: %w", err)
	}

	source, err := rt.openSource(ctx)
	if err != nil {
		rt.Close()
		return nil, err
	}
	rt.source = source

	chunker, err := service.NewChunker(service.ChunkConfig{Size: cfg.ChunkSize, Overlap: cfg.ChunkOverlap})
	if err != nil {
		rt.Close()
		return nil, err
	}
	rt.chunker = chunker
	rt.ingester = service.NewIngester(source, rt.registry, chunker, rt.index)

	stats := rt.index.Stats()
	log.Printf("index ready: backend=%s entries=%d documents=%d source=%s",
		cfg.IndexBackend, stats.Entries, stats.Documents, source.Name())
	return rt, nil
}

func (rt *runtime) openStore(ctx context.Context, opts runtimeOptions) (index.Store, error) {
	switch rt.cfg.IndexBackend {
	case config.BackendPostgres:
		pool, err := database.NewPool(ctx, database.Config{URL: rt.cfg.DatabaseURL})
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		log.Println("connected to database")
		if opts.migrate {
			if err := database.Migrate(rt.cfg.DatabaseURL); err != nil {
				pool.Close()
				return nil, fmt.Errorf("failed to run migrations: %w", err)
			}
		}
		rt.pool = pool
		return repository.NewPostgresChunkStore(pool), nil
	case config.BackendBolt:
		return repository.NewBoltChunkStore(rt.cfg.DataDir)
	case config.BackendMemory:
		return repository.NewMemoryChunkStore(), nil
	default:
		return repository.NewSQLiteChunkStore(rt.cfg.DataDir)
	}
}

func (rt *runtime) embedder() (index.Embedder, int) {
	if rt.cfg.ResolvedEmbeddingProvider() == config.EmbeddingProviderOpenAI && rt.openai != nil {
		log.Printf("embeddings: openai model=%s dimensions=%d", rt.cfg.EmbeddingModel, rt.openai.Dimensions())
		return rt.openai, rt.openai.Dimensions()
	}
	hash := embedding.NewHashingEmbedder(rt.cfg.HashDimensions)
	log.Printf("embeddings: feature hashing dimensions=%d", hash.Dimensions())
	return hash, hash.Dimensions()
}

func (rt *runtime) openSource(ctx context.Context) (storage.Source, error) {
	if !rt.cfg.HasS3() {
		return storage.NewDirSource(rt.cfg.DocsDir), nil
	}

	s3Cfg := storage.S3ClientConfig{
		Endpoint:        rt.cfg.S3Endpoint,
		Region:          rt.cfg.S3Region,
		AccessKeyID:     rt.cfg.S3AccessKey,
		SecretAccessKey: rt.cfg.S3SecretKey,
		Bucket:          rt.cfg.S3Bucket,
		Prefix:          rt.cfg.S3Prefix,
		UsePathStyle:    rt.cfg.S3Endpoint != "",
	}
	src, err := storage.NewS3Source(ctx, s3Cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create S3 source: %w", err)
	}
	return src, nil
}

// generator returns the chat capability, or a placeholder without a key
func (rt *runtime) generator() service.Generator {
	if rt.openai != nil {
		return rt.openai
	}
	log.Println("generation: no OpenAI key, /ask will fail with SYNTHESIS_ERROR")
	return NoOpGenerator{}
}

// jobRepository picks where ingest jobs are queued
func (rt *runtime) jobRepository() ingestJobRepository {
	if rt.pool != nil {
		return repository.NewIngestJobRepository(rt.pool)
	}
	return repository.NewMemoryIngestJobRepository()
}

func (rt *runtime) Close() {
	if rt.store != nil {
		if err := rt.store.Close(); err != nil {
			log.Printf("failed to close index store: %v", err)
		}
	}
	if rt.pool != nil {
		rt.pool.Close()
	}
}

// ingestJobRepository is what serve needs from a job store
type ingestJobRepository interface {
	Create(ctx context.Context, job *domain.IngestJob) error
	GetByID(ctx context.Context, id string) (*domain.IngestJob, error)
	GetPendingJobs(ctx context.Context) ([]*domain.IngestJob, error)
	UpdateJobStatus(ctx context.Context, jobID string, status domain.IngestJobStatus, errMsg string) error
	IncrementRetries(ctx context.Context, jobID string) error
	SaveReport(ctx context.Context, jobID string, report *domain.IngestReport) error
}
