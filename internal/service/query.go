package service

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/cloo-solutions/docqa/internal/domain"
	"github.com/cloo-solutions/docqa/internal/telemetry"
	"github.com/google/uuid"
)

// DefaultQueryTimeout bounds one question end to end
const DefaultQueryTimeout = 60 * time.Second

// QueryState is a step of the per-question pipeline
type QueryState string

const (
	StateReceived    QueryState = "received"
	StateRetrieved   QueryState = "retrieved"
	StateSynthesized QueryState = "synthesized"
	StateGuarded     QueryState = "guarded"
	StateRecorded    QueryState = "recorded"
	StateReturned    QueryState = "returned"
	StateFailed      QueryState = "failed"
)

// HistoryStore keeps conversation turns per session
type HistoryStore interface {
	Get(sessionID string) domain.ConversationHistory
	Append(sessionID string, turn domain.ConversationTurn)
}

// QueryService answers questions against the index, one session at a time.
type QueryService struct {
	retriever   *Retriever
	synthesizer *Synthesizer
	condenser   *Condenser
	guard       *Guard
	history     HistoryStore
	timeout     time.Duration
	newSession  func() string
	now         func() time.Time
}

// NewQueryService wires the pipeline stages. A nil condenser disables
// question condensing; a zero timeout disables the deadline.
func NewQueryService(
	retriever *Retriever,
	synthesizer *Synthesizer,
	condenser *Condenser,
	guard *Guard,
	history HistoryStore,
	timeout time.Duration,
) *QueryService {
	return &QueryService{
		retriever:   retriever,
		synthesizer: synthesizer,
		condenser:   condenser,
		guard:       guard,
		history:     history,
		timeout:     timeout,
		newSession:  uuid.NewString,
		now:         time.Now,
	}
}

// Ask runs Received -> Retrieved -> Synthesized -> Guarded -> Recorded ->
// Returned. Any failure stops the pipeline and leaves history untouched.
func (s *QueryService) Ask(ctx context.Context, req domain.QueryRequest) (*domain.AnswerResult, error) {
	question := strings.TrimSpace(req.Question)
	if question == "" {
		return nil, domain.ErrEmptyQuestion
	}

	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = s.newSession()
	}

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	ctx, span := telemetry.StartSpan(ctx, "QueryService.Ask", telemetry.SpanAttributes{
		SessionID: sessionID,
		Operation: "ask",
	})
	defer span.End()
	s.transition(ctx, sessionID, StateReceived)

	// snapshot only: no lock is held while capabilities run
	history := s.history.Get(sessionID)

	retrieval, err := s.retrieve(ctx, question, history)
	if err != nil {
		return nil, s.fail(ctx, span, sessionID, StateReceived, err)
	}
	s.transition(ctx, sessionID, StateRetrieved)

	var raw string
	if !retrieval.Empty() {
		raw, err = s.synthesize(ctx, question, retrieval, history)
		if err != nil {
			return nil, s.fail(ctx, span, sessionID, StateRetrieved, err)
		}
	}
	s.transition(ctx, sessionID, StateSynthesized)

	answer, confident := s.guard.Check(raw, retrieval.Chunks)
	s.transition(ctx, sessionID, StateGuarded)
	span.SetData("confident", confident)

	s.history.Append(sessionID, domain.ConversationTurn{
		Question: question,
		Answer:   answer,
		AskedAt:  s.now().UTC(),
	})
	s.transition(ctx, sessionID, StateRecorded)

	result := &domain.AnswerResult{
		SessionID: sessionID,
		Answer:    answer,
		Sources:   retrieval.DocumentIDs(),
		Confident: confident,
	}
	s.transition(ctx, sessionID, StateReturned)
	return result, nil
}

func (s *QueryService) retrieve(ctx context.Context, question string, history domain.ConversationHistory) (domain.RetrievalResult, error) {
	ctx, span := telemetry.StartSpan(ctx, "pipeline.retrieve", telemetry.SpanAttributes{Operation: "retrieve"})
	defer span.End()

	standalone := question
	if s.condenser != nil && len(history) > 0 {
		var err error
		standalone, err = s.condenser.Condense(ctx, question, history)
		if err != nil {
			return domain.RetrievalResult{}, err
		}
	}

	result, err := s.retriever.Retrieve(ctx, standalone)
	if err != nil {
		return domain.RetrievalResult{}, err
	}
	span.SetData("chunks", len(result.Chunks))
	return result, nil
}

func (s *QueryService) synthesize(ctx context.Context, question string, retrieval domain.RetrievalResult, history domain.ConversationHistory) (string, error) {
	ctx, span := telemetry.StartSpan(ctx, "pipeline.synthesize", telemetry.SpanAttributes{Operation: "synthesize"})
	defer span.End()

	return s.synthesizer.Synthesize(ctx, question, retrieval.Chunks, history)
}

func (s *QueryService) transition(ctx context.Context, sessionID string, state QueryState) {
	telemetry.AddBreadcrumb(ctx, "query", string(state))
	if state == StateReceived || state == StateReturned {
		log.Printf("query session=%s state=%s", sessionID, state)
	}
}

func (s *QueryService) fail(ctx context.Context, span *telemetry.Span, sessionID string, from QueryState, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) && !domain.IsCode(err, domain.ErrCodeTimeout) {
		err = domain.NewDomainErrorWithCause(domain.ErrCodeTimeout, domain.ErrTimeout.Message, err)
	}
	log.Printf("query session=%s state=%s after=%s: %v", sessionID, StateFailed, from, err)
	span.SetError(err)
	return err
}
