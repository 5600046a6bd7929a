package service

import (
	"context"
	"strings"

	"github.com/cloo-solutions/docqa/internal/domain"
)

const condensePrompt = `Given the conversation below and a follow up question, rephrase the follow up
question to be a standalone question in its original language. Reply with the
question only.`

// Condenser rewrites follow-up questions into standalone questions so that
// retrieval sees the referents of earlier turns.
type Condenser struct {
	generator Generator
	turns     int
	enabled   bool
}

// NewCondenser creates a condenser; a disabled one returns questions as is
func NewCondenser(generator Generator, historyTurns int, enabled bool) *Condenser {
	if historyTurns <= 0 {
		historyTurns = DefaultHistoryTurns
	}
	return &Condenser{generator: generator, turns: historyTurns, enabled: enabled && generator != nil}
}

// Condense returns the question unchanged when there is no history. An empty
// rewrite falls back to the original question.
func (c *Condenser) Condense(ctx context.Context, question string, history domain.ConversationHistory) (string, error) {
	if !c.enabled || len(history) == 0 {
		return question, nil
	}

	var b strings.Builder
	b.WriteString("Conversation:\n")
	for _, turn := range history.Last(c.turns) {
		b.WriteString("Human: ")
		b.WriteString(turn.Question)
		b.WriteString("\nAssistant: ")
		b.WriteString(turn.Answer)
		b.WriteString("\n")
	}
	b.WriteString("\nFollow up question: ")
	b.WriteString(question)

	out, err := c.generator.Generate(ctx, []domain.ChatMessage{
		{Role: domain.RoleSystem, Content: condensePrompt},
		{Role: domain.RoleUser, Content: b.String()},
	})
	if err != nil {
		return "", domain.WrapCapabilityError(domain.ErrSynthesisFailed, err)
	}

	if out = strings.TrimSpace(out); out == "" {
		return question, nil
	}
	return out, nil
}
