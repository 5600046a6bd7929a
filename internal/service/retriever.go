package service

import (
	"context"

	"github.com/cloo-solutions/docqa/internal/domain"
)

// DefaultTopK is the number of chunks retrieved per question
const DefaultTopK = 4

// Searcher is the read side of the embedding index
type Searcher interface {
	Search(ctx context.Context, queryText string, k int) (domain.RetrievalResult, error)
}

// Retriever fetches the top k chunks for a question
type Retriever struct {
	index Searcher
	k     int
}

// NewRetriever creates a retriever with a fixed k
func NewRetriever(index Searcher, k int) (*Retriever, error) {
	if k <= 0 {
		return nil, domain.ErrInvalidTopK
	}
	return &Retriever{index: index, k: k}, nil
}

// K returns the configured number of chunks per retrieval
func (r *Retriever) K() int {
	return r.k
}

// Retrieve returns at most k chunks, most similar first.
func (r *Retriever) Retrieve(ctx context.Context, question string) (domain.RetrievalResult, error) {
	return r.index.Search(ctx, question, r.k)
}
