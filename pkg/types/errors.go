package types

import (
	"errors"
	"fmt"
)

// Domain errors shared by every layer of the engine
var (
	// Validation errors
	ErrInvalidChunkID  = errors.New("invalid chunk ID")
	ErrEmptyContent    = errors.New("content cannot be empty")
	ErrInvalidArgument = errors.New("invalid argument")

	// Startup errors
	ErrConfiguration = errors.New("configuration error")

	// Cache and index errors
	ErrCacheCorruption  = errors.New("cache store corrupt")
	ErrIndexUnavailable = errors.New("index unavailable")

	// Model errors
	ErrModelInvocation = errors.New("model invocation failed")

	// Pipeline errors
	ErrRetrievalUnavailable = errors.New("retrieval unavailable")
	ErrIndexingInProgress   = errors.New("indexing already in progress")
)

// RetrievalError is the single error a search surfaces when a model or index
// call fails. It matches both ErrRetrievalUnavailable and its cause.
type RetrievalError struct {
	Stage string // embed, vector, lexical, rerank
	Err   error
}

// NewRetrievalError wraps err as a retrieval failure of the given stage
func NewRetrievalError(stage string, err error) *RetrievalError {
	return &RetrievalError{Stage: stage, Err: err}
}

func (e *RetrievalError) Error() string {
	return fmt.Sprintf("%s: %s: %v", ErrRetrievalUnavailable, e.Stage, e.Err)
}

func (e *RetrievalError) Unwrap() []error {
	return []error{ErrRetrievalUnavailable, e.Err}
}
