package domain

import (
	"errors"
	"fmt"
)

// Taxonomy sentinels. Typed errors below match one of these with errors.Is.
var (
	ErrNotFound         = errors.New("not found")
	ErrValidationFailed = errors.New("validation failed")
	ErrExternalService  = errors.New("external service failure")
	ErrConfiguration    = errors.New("configuration error")
	ErrUnauthorized     = errors.New("unauthorized")
)

type SessionNotFoundError struct {
	SessionID string
}

func (e *SessionNotFoundError) Error() string {
	return fmt.Sprintf("onboarding session %s not found", e.SessionID)
}

func (e *SessionNotFoundError) Is(target error) bool { return target == ErrNotFound }

type TranscriptionFailedError struct {
	JobID  string
	Reason string
	Cause  error
}

func (e *TranscriptionFailedError) Error() string {
	msg := "transcription failed"
	if e.JobID != "" {
		msg += " (job " + e.JobID + ")"
	}
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *TranscriptionFailedError) Unwrap() error        { return e.Cause }
func (e *TranscriptionFailedError) Is(target error) bool { return target == ErrExternalService }

type TranscriptionJobNotFoundError struct {
	JobID string
}

func (e *TranscriptionJobNotFoundError) Error() string {
	return fmt.Sprintf("transcription job %s not found", e.JobID)
}

func (e *TranscriptionJobNotFoundError) Is(target error) bool {
	return target == ErrNotFound || target == ErrExternalService
}

type LLMExtractionFailedError struct {
	Reason string
	Cause  error
}

func (e *LLMExtractionFailedError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("llm extraction failed: %s: %v", e.Reason, e.Cause)
	}
	return "llm extraction failed: " + e.Reason
}

func (e *LLMExtractionFailedError) Unwrap() error        { return e.Cause }
func (e *LLMExtractionFailedError) Is(target error) bool { return target == ErrExternalService }

type LLMMergeFailedError struct {
	Reason string
	Cause  error
}

func (e *LLMMergeFailedError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("llm merge failed: %s: %v", e.Reason, e.Cause)
	}
	return "llm merge failed: " + e.Reason
}

func (e *LLMMergeFailedError) Unwrap() error        { return e.Cause }
func (e *LLMMergeFailedError) Is(target error) bool { return target == ErrExternalService }

// CollectionDimensionMismatchError means the vector collection exists with a
// different dimension than the embedding model produces. Writes are refused.
type CollectionDimensionMismatchError struct {
	Collection string
	Want       int
	Got        int
}

func (e *CollectionDimensionMismatchError) Error() string {
	return fmt.Sprintf("vector collection %q has dimension %d, expected %d", e.Collection, e.Got, e.Want)
}

func (e *CollectionDimensionMismatchError) Is(target error) bool { return target == ErrConfiguration }

// ValidationError is a caller input problem.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation failed: " + e.Reason
	}
	return fmt.Sprintf("validation failed: %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidationFailed }

// NotFoundError is a generic missing-entity error.
type NotFoundError struct {
	Entity string
	ID     string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Entity, e.ID)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }
