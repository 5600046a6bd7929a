package service

import (
	"context"

	"github.com/cloo-solutions/docqa/internal/domain"
	"github.com/stretchr/testify/mock"
)

// MockSearcher is a mock implementation of Searcher
type MockSearcher struct {
	mock.Mock
}

func (m *MockSearcher) Search(ctx context.Context, queryText string, k int) (domain.RetrievalResult, error) {
	args := m.Called(ctx, queryText, k)
	return args.Get(0).(domain.RetrievalResult), args.Error(1)
}

// MockGenerator is a mock implementation of Generator
type MockGenerator struct {
	mock.Mock
}

func (m *MockGenerator) Generate(ctx context.Context, messages []domain.ChatMessage) (string, error) {
	args := m.Called(ctx, messages)
	return args.String(0), args.Error(1)
}

func scored(doc, text string, score float64) domain.ScoredChunk {
	return domain.ScoredChunk{Chunk: domain.NewChunk(doc, 0, 0, text), Score: score}
}

func isCondensePrompt(msgs []domain.ChatMessage) bool {
	return len(msgs) == 2 && msgs[0].Content == condensePrompt
}

func isAnswerPrompt(msgs []domain.ChatMessage) bool {
	return len(msgs) > 0 && !isCondensePrompt(msgs)
}
