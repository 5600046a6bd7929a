package e2e

import (
	"context"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/cloo-solutions/docqa/internal/api/handlers"
	"github.com/cloo-solutions/docqa/internal/cli/client"
	"github.com/cloo-solutions/docqa/internal/domain"
	"github.com/cloo-solutions/docqa/internal/embedding"
	"github.com/cloo-solutions/docqa/internal/extract"
	"github.com/cloo-solutions/docqa/internal/index"
	"github.com/cloo-solutions/docqa/internal/jobs"
	"github.com/cloo-solutions/docqa/internal/repository"
	"github.com/cloo-solutions/docqa/internal/server"
	"github.com/cloo-solutions/docqa/internal/service"
	"github.com/cloo-solutions/docqa/internal/session"
	"github.com/cloo-solutions/docqa/internal/storage"
	"github.com/stretchr/testify/require"
)

// scriptedGenerator answers from a fixed script keyed by the last question.
// It records every prompt so tests can check what the pipeline sent.
type scriptedGenerator struct {
	mu      sync.Mutex
	prompts [][]domain.ChatMessage
}

func (g *scriptedGenerator) Generate(_ context.Context, messages []domain.ChatMessage) (string, error) {
	g.mu.Lock()
	g.prompts = append(g.prompts, messages)
	g.mu.Unlock()

	question := strings.ToLower(messages[len(messages)-1].Content)
	grounding := messages[0].Content
	switch {
	case strings.Contains(question, "capital of france") && strings.Contains(grounding, "Paris"):
		return "The capital of France is Paris.", nil
	case strings.Contains(question, "population") && len(messages) > 2:
		// only answerable as a follow-up: "its" refers to the previous answer
		return "Paris has about 2.1 million inhabitants.", nil
	default:
		return "I don't know", nil
	}
}

func (g *scriptedGenerator) calls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.prompts)
}

func (g *scriptedGenerator) lastPrompt() []domain.ChatMessage {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.prompts[len(g.prompts)-1]
}

// testEnv is a full server over a temporary docs directory
type testEnv struct {
	t         *testing.T
	ctx       context.Context
	docsDir   string
	index     *index.Index
	ingester  *service.Ingester
	generator *scriptedGenerator
	client    *client.APIClient
}

var corpus = map[string]string{
	"france.txt":  "France is a country in Western Europe. The capital of France is Paris. Paris has about 2.1 million inhabitants.",
	"germany.md":  "# Germany\n\nGermany borders France. The capital of Germany is Berlin.",
	"notes.xyz":   "binary blob",
	".hidden.txt": "never indexed",
}

func setupEnv(t *testing.T) *testEnv {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	docsDir := t.TempDir()
	for name, text := range corpus {
		require.NoError(t, os.WriteFile(filepath.Join(docsDir, name), []byte(text), 0644))
	}

	embedder := embedding.NewHashingEmbedder(256)
	ix := index.New(repository.NewMemoryChunkStore(), embedder, index.Options{Dimensions: embedder.Dimensions()})
	require.NoError(t, ix.Load(ctx))

	chunker, err := service.NewChunker(service.ChunkConfig{Size: 200, Overlap: 20})
	require.NoError(t, err)
	ingester := service.NewIngester(storage.NewDirSource(docsDir), extract.NewRegistry(), chunker, ix)

	generator := &scriptedGenerator{}
	retriever, err := service.NewRetriever(ix, service.DefaultTopK)
	require.NoError(t, err)
	history := session.NewHistory()
	querySvc := service.NewQueryService(
		retriever,
		service.NewSynthesizer(generator, service.SynthesisOptions{}),
		nil,
		service.NewGuard(nil),
		history,
		5*time.Second,
	)

	jobRepo := repository.NewMemoryIngestJobRepository()
	worker := jobs.NewWorker(jobs.NewIngestWorker(jobRepo, ingester), 20*time.Millisecond)
	go worker.Start(ctx)
	t.Cleanup(worker.Stop)

	router := server.NewRouter(server.RouterConfig{
		AskHandler:      handlers.NewAskHandler(querySvc),
		SessionHandler:  handlers.NewSessionHandler(history),
		DocumentHandler: handlers.NewDocumentHandler(ix),
		IngestHandler:   handlers.NewIngestHandler(jobRepo, worker.Notify),
		HealthHandler:   handlers.NewHealthHandler(ix),
	})
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	return &testEnv{
		t:         t,
		ctx:       ctx,
		docsDir:   docsDir,
		index:     ix,
		ingester:  ingester,
		generator: generator,
		client:    client.NewAPIClientWithConfig(srv.URL),
	}
}

func (e *testEnv) writeDoc(name, text string) {
	e.t.Helper()
	require.NoError(e.t, os.WriteFile(filepath.Join(e.docsDir, name), []byte(text), 0644))
}
