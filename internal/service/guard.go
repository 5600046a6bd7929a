package service

import (
	"strings"

	"github.com/cloo-solutions/docqa/internal/domain"
)

// RefusalAnswer replaces answers the guard does not trust
const RefusalAnswer = "I can’t confidently answer that based on the provided documents."

// DefaultRefusalMarkers are phrases that signal the model had no grounding
var DefaultRefusalMarkers = []string{
	"I don't know",
	"I do not know",
	"I'm not sure",
	"cannot answer",
	"not mentioned in the context",
}

// Guard rejects answers that signal missing grounding. It only matches
// markers; an ungrounded answer without one passes.
type Guard struct {
	markers []string
}

// NewGuard creates a guard; no markers means the defaults
func NewGuard(markers []string) *Guard {
	if len(markers) == 0 {
		markers = DefaultRefusalMarkers
	}
	g := &Guard{markers: make([]string, 0, len(markers))}
	for _, m := range markers {
		if m = normalizeAnswer(strings.TrimSpace(m)); m != "" {
			g.markers = append(g.markers, m)
		}
	}
	return g
}

// Check returns the answer to deliver and whether it was kept. Empty
// answers, answers with a refusal marker and answers with no retrieved
// context are replaced by RefusalAnswer.
func (g *Guard) Check(rawAnswer string, chunks []domain.ScoredChunk) (string, bool) {
	if len(chunks) == 0 || strings.TrimSpace(rawAnswer) == "" {
		return RefusalAnswer, false
	}

	normalized := normalizeAnswer(rawAnswer)
	for _, m := range g.markers {
		if strings.Contains(normalized, m) {
			return RefusalAnswer, false
		}
	}
	return rawAnswer, true
}

var apostrophes = strings.NewReplacer("’", "'", "‘", "'", "ʼ", "'")

func normalizeAnswer(s string) string {
	return strings.ToLower(apostrophes.Replace(s))
}
