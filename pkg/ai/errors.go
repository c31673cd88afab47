package ai

import (
	"errors"
	"fmt"
)

var (
	// ErrRateLimited signals that the upstream service rejected the call
	// with a rate-limit response. Adapters map their transport-specific
	// 429 errors to this sentinel; the credential pool reacts by cooling
	// the active credential and rotating to the next one.
	ErrRateLimited = errors.New("upstream rate limited")

	// ErrServiceUnavailable signals that every configured credential is
	// cooling. The call fails fast without contacting the upstream
	// service; callers should retry after the cooldown window.
	ErrServiceUnavailable = errors.New("all credentials cooling, service unavailable")
)

// AnalysisError is returned when the model's response could not be parsed
// or validated even after the corrective retry, or when the upstream call
// failed in a non-recoverable way. Raw carries the last raw response for
// diagnosis.
type AnalysisError struct {
	Kind Kind
	Raw  string
	Err  error
}

func (e *AnalysisError) Error() string {
	return fmt.Sprintf("analysis failed for %q prompt: %v", e.Kind, e.Err)
}

func (e *AnalysisError) Unwrap() error {
	return e.Err
}
