package domain

import (
	"errors"
	"fmt"
	"testing"
)

func TestTypedErrorsMatchTaxonomy(t *testing.T) {
	cause := errors.New("rpc unavailable")
	cases := []struct {
		err  error
		want error
	}{
		{&SessionNotFoundError{SessionID: "s"}, ErrNotFound},
		{&TranscriptionFailedError{Reason: "codec"}, ErrExternalService},
		{&TranscriptionJobNotFoundError{JobID: "j"}, ErrNotFound},
		{&LLMExtractionFailedError{Reason: "bad json"}, ErrExternalService},
		{&LLMMergeFailedError{Reason: "shape", Cause: cause}, ErrExternalService},
		{&CollectionDimensionMismatchError{Collection: "profiles", Want: 3072, Got: 1536}, ErrConfiguration},
		{&ValidationError{Field: "storage_key", Reason: "required"}, ErrValidationFailed},
		{&NotFoundError{Entity: "event", ID: "e"}, ErrNotFound},
	}
	for _, tc := range cases {
		wrapped := fmt.Errorf("outer: %w", tc.err)
		if !errors.Is(wrapped, tc.want) {
			t.Fatalf("%T: want errors.Is(%v) true", tc.err, tc.want)
		}
	}
	merge := &LLMMergeFailedError{Reason: "shape", Cause: cause}
	if !errors.Is(merge, cause) {
		t.Fatalf("merge error should unwrap to its cause")
	}
}

func TestTranscriptionFailedCarriesReason(t *testing.T) {
	err := &TranscriptionFailedError{JobID: "op-1", Reason: "audio too short"}
	if got := err.Error(); got != "transcription failed (job op-1): audio too short" {
		t.Fatalf("message: got=%q", got)
	}
}
