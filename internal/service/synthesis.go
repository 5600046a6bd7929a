package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloo-solutions/docqa/internal/domain"
)

// DefaultHistoryTurns is how many prior turns are rendered into a prompt
const DefaultHistoryTurns = 10

const systemPrompt = `You answer questions using only the context below.
If the context does not contain the answer, reply exactly "I don't know".
Do not use outside knowledge and do not invent sources.

Context:
%s`

// Generator is the external text generation capability
type Generator interface {
	Generate(ctx context.Context, messages []domain.ChatMessage) (string, error)
}

// SynthesisOptions tunes prompt construction
type SynthesisOptions struct {
	HistoryTurns int
}

// Synthesizer produces a raw answer from retrieved chunks and history.
type Synthesizer struct {
	generator Generator
	opts      SynthesisOptions
}

// NewSynthesizer creates a synthesizer over a generator
func NewSynthesizer(generator Generator, opts SynthesisOptions) *Synthesizer {
	if opts.HistoryTurns <= 0 {
		opts.HistoryTurns = DefaultHistoryTurns
	}
	return &Synthesizer{generator: generator, opts: opts}
}

// Synthesize makes exactly one generator call. Failures become
// SYNTHESIS_ERROR, or TIMEOUT when the context expired.
func (s *Synthesizer) Synthesize(ctx context.Context, question string, chunks []domain.ScoredChunk, history domain.ConversationHistory) (string, error) {
	answer, err := s.generator.Generate(ctx, s.Prompt(question, chunks, history))
	if err != nil {
		return "", domain.WrapCapabilityError(domain.ErrSynthesisFailed, err)
	}
	return answer, nil
}

// Prompt builds the messages sent to the generator: the grounding context,
// the recent turns as alternating user/assistant messages, then the question.
func (s *Synthesizer) Prompt(question string, chunks []domain.ScoredChunk, history domain.ConversationHistory) []domain.ChatMessage {
	recent := history.Last(s.opts.HistoryTurns)

	msgs := make([]domain.ChatMessage, 0, 2+2*len(recent))
	msgs = append(msgs, domain.ChatMessage{
		Role:    domain.RoleSystem,
		Content: fmt.Sprintf(systemPrompt, renderContext(chunks)),
	})
	for _, turn := range recent {
		msgs = append(msgs,
			domain.ChatMessage{Role: domain.RoleUser, Content: turn.Question},
			domain.ChatMessage{Role: domain.RoleAssistant, Content: turn.Answer},
		)
	}
	msgs = append(msgs, domain.ChatMessage{Role: domain.RoleUser, Content: question})
	return msgs
}

func renderContext(chunks []domain.ScoredChunk) string {
	parts := make([]string, len(chunks))
	for i, c := range chunks {
		parts[i] = fmt.Sprintf("[%d] (%s)\n%s", i+1, c.Chunk.DocumentID, c.Chunk.Text)
	}
	return strings.Join(parts, "\n\n")
}
