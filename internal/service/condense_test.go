package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/cloo-solutions/docqa/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestCondenser_NoHistoryIsPassThrough(t *testing.T) {
	gen := new(MockGenerator)
	c := NewCondenser(gen, 0, true)

	got, err := c.Condense(context.Background(), "What is Go?", nil)

	require.NoError(t, err)
	assert.Equal(t, "What is Go?", got)
	gen.AssertNotCalled(t, "Generate", mock.Anything, mock.Anything)
}

func TestCondenser_Disabled(t *testing.T) {
	gen := new(MockGenerator)
	c := NewCondenser(gen, 0, false)

	got, err := c.Condense(context.Background(), "and its population?", domain.ConversationHistory{{Question: "q", Answer: "a"}})

	require.NoError(t, err)
	assert.Equal(t, "and its population?", got)
	gen.AssertNotCalled(t, "Generate", mock.Anything, mock.Anything)
}

func TestCondenser_Rewrites(t *testing.T) {
	gen := new(MockGenerator)
	history := domain.ConversationHistory{{Question: "What is the capital of France?", Answer: "Paris"}}
	gen.On("Generate", mock.Anything, mock.MatchedBy(func(msgs []domain.ChatMessage) bool {
		return isCondensePrompt(msgs) &&
			msgs[1].Role == domain.RoleUser &&
			strings.Contains(msgs[1].Content, "Human: What is the capital of France?\nAssistant: Paris") &&
			strings.Contains(msgs[1].Content, "Follow up question: And its population?")
	})).Return("  What is the population of Paris?\n", nil)

	got, err := NewCondenser(gen, 5, true).Condense(context.Background(), "And its population?", history)

	require.NoError(t, err)
	assert.Equal(t, "What is the population of Paris?", got)
	gen.AssertExpectations(t)
}

func TestCondenser_EmptyRewriteFallsBack(t *testing.T) {
	gen := new(MockGenerator)
	gen.On("Generate", mock.Anything, mock.Anything).Return("   ", nil)

	got, err := NewCondenser(gen, 5, true).Condense(context.Background(), "why?", domain.ConversationHistory{{Question: "q", Answer: "a"}})

	require.NoError(t, err)
	assert.Equal(t, "why?", got)
}

func TestCondenser_Error(t *testing.T) {
	gen := new(MockGenerator)
	gen.On("Generate", mock.Anything, mock.Anything).Return("", errors.New("boom"))

	_, err := NewCondenser(gen, 5, true).Condense(context.Background(), "why?", domain.ConversationHistory{{Question: "q", Answer: "a"}})

	assert.True(t, domain.IsCode(err, domain.ErrCodeSynthesis))
}
