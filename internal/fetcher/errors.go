package fetcher

import (
	"errors"
	"fmt"
)

// ErrDecode marks a response whose body could not be parsed into the expected
// shape.
var ErrDecode = errors.New("decode response")

// Outcome classifies one upstream attempt and drives the retry policy.
type Outcome int

const (
	OutcomeSuccess Outcome = iota
	OutcomeRetryable
	OutcomeRateLimited
	OutcomeFatal
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeRetryable:
		return "retryable"
	case OutcomeRateLimited:
		return "rate_limited"
	case OutcomeFatal:
		return "fatal"
	}
	return "unknown"
}

// StatusError is a non-2xx upstream response.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("upstream returned HTTP %d", e.StatusCode)
	}
	return fmt.Sprintf("upstream returned HTTP %d: %s", e.StatusCode, e.Body)
}

// FetchError is returned once a request has failed for good. Cause is the
// error of the last attempt.
type FetchError struct {
	Source   string
	URL      string
	Attempts int
	Cause    error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s from %s failed after %d attempt(s): %v", e.URL, e.Source, e.Attempts, e.Cause)
}

func (e *FetchError) Unwrap() error {
	return e.Cause
}
