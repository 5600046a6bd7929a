package domain

import "time"

// ConversationTurn is one question/answer exchange. Immutable once appended.
type ConversationTurn struct {
	Question string    `json:"question"`
	Answer   string    `json:"answer"`
	AskedAt  time.Time `json:"askedAt"`
}

// ConversationHistory is the ordered turns of one session
type ConversationHistory []ConversationTurn

// Last returns at most n most recent turns, oldest first.
func (h ConversationHistory) Last(n int) ConversationHistory {
	if n <= 0 || len(h) <= n {
		return h
	}
	return h[len(h)-n:]
}

// Chat roles understood by the generation capability
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ChatMessage is one message of a generation prompt
type ChatMessage struct {
	Role    string
	Content string
}

// QueryRequest is an inbound question for a session
type QueryRequest struct {
	SessionID string
	Question  string
}

// ScoredChunk is a retrieved chunk with its similarity score
type ScoredChunk struct {
	Chunk Chunk
	Score float64
}

// RetrievalResult holds the top-k chunks in descending score order
type RetrievalResult struct {
	Chunks []ScoredChunk
}

// Empty reports whether nothing was retrieved
func (r RetrievalResult) Empty() bool {
	return len(r.Chunks) == 0
}

// DocumentIDs returns the source document ids in rank order, deduplicated.
func (r RetrievalResult) DocumentIDs() []string {
	ids := make([]string, 0, len(r.Chunks))
	seen := make(map[string]struct{}, len(r.Chunks))
	for _, c := range r.Chunks {
		if _, ok := seen[c.Chunk.DocumentID]; ok {
			continue
		}
		seen[c.Chunk.DocumentID] = struct{}{}
		ids = append(ids, c.Chunk.DocumentID)
	}
	return ids
}

// AnswerResult is what a query returns to the caller
type AnswerResult struct {
	SessionID string   `json:"sessionId"`
	Answer    string   `json:"answer"`
	Sources   []string `json:"sources"`
	Confident bool     `json:"confident"`
}
