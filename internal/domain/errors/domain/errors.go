// Package domain provides domain-specific error definitions and utilities.
package domain

import (
	"errors"
	"fmt"
)

// Job-related errors.
var (
	ErrJobNotCreated     = errors.New("job has not been created yet")
	ErrJobTerminal       = errors.New("job is in a terminal phase")
	ErrOperationInFlight = errors.New("another owning operation is already in flight for this job")
	ErrSelectionFrozen   = errors.New("product selection is immutable after approval")
)

// InvalidTransition indicates that a lifecycle event was applied to a job
// phase that does not accept it. It is a programming error on the caller's
// side: the caller must observe a phase change before retrying.
type InvalidTransition struct {
	Phase string
	Event string
}

// NewInvalidTransition creates an InvalidTransition error for the given
// phase and event.
func NewInvalidTransition(phase, event string) *InvalidTransition {
	return &InvalidTransition{Phase: phase, Event: event}
}

// Error implements the error interface.
func (e *InvalidTransition) Error() string {
	return fmt.Sprintf("invalid transition: event %q is not legal in phase %q", e.Event, e.Phase)
}

// IsInvalidTransition reports whether err is an InvalidTransition error.
func IsInvalidTransition(err error) bool {
	var target *InvalidTransition
	return errors.As(err, &target)
}

// RemoteError indicates a non-2xx HTTP status or a malformed JSON body
// from a synchronous remote job API call.
type RemoteError struct {
	Code    int
	Message string
}

// NewRemoteError creates a RemoteError with the given HTTP status code
// and message.
func NewRemoteError(code int, message string) *RemoteError {
	return &RemoteError{Code: code, Message: message}
}

// Error implements the error interface.
func (e *RemoteError) Error() string {
	if e.Code > 0 {
		return fmt.Sprintf("remote error (status %d): %s", e.Code, e.Message)
	}
	return fmt.Sprintf("remote error: %s", e.Message)
}

// IsRemoteError reports whether err is a RemoteError.
func IsRemoteError(err error) bool {
	var target *RemoteError
	return errors.As(err, &target)
}

// StreamError indicates that a preview or refine event stream terminated
// abnormally: either an explicit error event or a broken byte stream
// before a terminal event was seen. It aborts only the streaming
// operation; the job phase is left unchanged so the caller can retry.
type StreamError struct {
	Message string
	Cause   error
}

// NewStreamError creates a StreamError with the given message.
func NewStreamError(message string) *StreamError {
	return &StreamError{Message: message}
}

// WrapStreamError creates a StreamError that wraps an underlying cause.
func WrapStreamError(message string, cause error) *StreamError {
	return &StreamError{Message: message, Cause: cause}
}

// Error implements the error interface.
func (e *StreamError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("stream error: %s: %v", e.Message, e.Cause)
	}
	return fmt.Sprintf("stream error: %s", e.Message)
}

// Unwrap returns the underlying cause, if any.
func (e *StreamError) Unwrap() error {
	return e.Cause
}

// IsStreamError reports whether err is a StreamError.
func IsStreamError(err error) bool {
	var target *StreamError
	return errors.As(err, &target)
}

// ChunkTransportFailure indicates that a whole process-chunk call failed
// at the network level. The processor absorbs it by recording every item
// in the chunk as failed and continuing; it is never fatal to the run.
type ChunkTransportFailure struct {
	ChunkIndex int
	Cause      error
}

// NewChunkTransportFailure creates a ChunkTransportFailure for the chunk
// at the given index.
func NewChunkTransportFailure(chunkIndex int, cause error) *ChunkTransportFailure {
	return &ChunkTransportFailure{ChunkIndex: chunkIndex, Cause: cause}
}

// Error implements the error interface.
func (e *ChunkTransportFailure) Error() string {
	return fmt.Sprintf("chunk %d transport failure: %v", e.ChunkIndex, e.Cause)
}

// Unwrap returns the underlying transport error.
func (e *ChunkTransportFailure) Unwrap() error {
	return e.Cause
}
