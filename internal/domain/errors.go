package domain

import (
	"context"
	"errors"
	"fmt"
)

// DomainError represents a domain-specific error
type DomainError struct {
	Code    string
	Message string
	Err     error
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *DomainError) Unwrap() error {
	return e.Err
}

// Is matches sentinel domain errors by code and message so that wrapped
// copies created with a cause still satisfy errors.Is.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Code == t.Code && e.Message == t.Message
}

// NewDomainError creates a new DomainError
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Err:     nil,
	}
}

// NewDomainErrorWithCause creates a new DomainError with an underlying cause
func NewDomainErrorWithCause(code, message string, err error) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// CodeOf returns the code of the first DomainError in err's chain, or "".
func CodeOf(err error) string {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code
	}
	return ""
}

// IsCode reports whether err carries a DomainError with the given code.
func IsCode(err error, code string) bool {
	return CodeOf(err) == code
}

// WrapCapabilityError converts a failure of an external capability into a
// domain error. Deadline and cancellation failures become TIMEOUT, existing
// domain errors pass through.
func WrapCapabilityError(sentinel *DomainError, err error) error {
	if err == nil {
		return nil
	}
	var de *DomainError
	if errors.As(err, &de) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return NewDomainErrorWithCause(ErrCodeTimeout, ErrTimeout.Message, err)
	}
	return NewDomainErrorWithCause(sentinel.Code, sentinel.Message, err)
}

// Domain error codes
const (
	ErrCodeConfiguration   = "CONFIGURATION_ERROR"
	ErrCodeInvalidArgument = "INVALID_ARGUMENT"
	ErrCodeEmbedding       = "EMBEDDING_ERROR"
	ErrCodeSynthesis       = "SYNTHESIS_ERROR"
	ErrCodeTimeout         = "TIMEOUT"
	ErrCodeUnsupportedType = "UNSUPPORTED_TYPE"
	ErrCodeNotFound        = "NOT_FOUND"
	ErrCodeInternalError   = "INTERNAL_ERROR"
)

// Argument errors
var (
	ErrEmptyQuestion = NewDomainError(ErrCodeInvalidArgument, "question cannot be empty")
	ErrInvalidK      = NewDomainError(ErrCodeInvalidArgument, "k must be positive")
	ErrInvalidLimit  = NewDomainError(ErrCodeInvalidArgument, "limit must be between 1 and 100")
	ErrInvalidCursor = NewDomainError(ErrCodeInvalidArgument, "invalid cursor")
)

// Configuration errors
var (
	ErrInvalidChunkSize    = NewDomainError(ErrCodeConfiguration, "chunk size must be positive")
	ErrInvalidChunkOverlap = NewDomainError(ErrCodeConfiguration, "chunk overlap must be non-negative and smaller than chunk size")
	ErrInvalidTopK         = NewDomainError(ErrCodeConfiguration, "top k must be positive")
)

// Capability errors
var (
	ErrEmbeddingFailed   = NewDomainError(ErrCodeEmbedding, "embedding request failed")
	ErrDimensionMismatch = NewDomainError(ErrCodeEmbedding, "embedding dimension does not match index")
	ErrSynthesisFailed   = NewDomainError(ErrCodeSynthesis, "answer synthesis failed")
	ErrTimeout           = NewDomainError(ErrCodeTimeout, "external call exceeded deadline")
)

// Not found errors
var (
	ErrSessionNotFound = NewDomainError(ErrCodeNotFound, "session not found")
	ErrJobNotFound     = NewDomainError(ErrCodeNotFound, "ingest job not found")
)

// Extraction errors
var (
	ErrUnsupportedType = NewDomainError(ErrCodeUnsupportedType, "unsupported document type")
)
