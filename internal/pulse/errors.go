package pulse

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrInvalidURL is returned by New when no base URL is given.
	ErrInvalidURL = errors.New("invalid url")

	// ErrMissingAPIKey is returned when a request is attempted without a key.
	ErrMissingAPIKey = errors.New("PULSE_API_KEY is not configured")

	// ErrMissingJobID is returned by Job when called with an empty id.
	ErrMissingJobID = errors.New("Job ID is required")

	// ErrFileNotAccessible is returned when the reachability check of a
	// document URL fails.
	ErrFileNotAccessible = errors.New("PDF file not accessible")

	// ErrPollFailed is returned once every poll attempt for a job has failed.
	ErrPollFailed = errors.New("poll failed")
)

// APIError is a non-2xx answer from the provider.
type APIError struct {
	// Op is the request that failed ("extract", "extract_async", "job").
	Op string

	// StatusCode is the HTTP status of the response.
	StatusCode int

	// Message is the provider's error text, or a generic status line when the
	// body carried none.
	Message string
}

func (e *APIError) Error() string {
	return e.Message
}

// Temporary reports whether retrying the request may succeed.
func (e *APIError) Temporary() bool {
	return e.StatusCode >= http.StatusInternalServerError || e.StatusCode == http.StatusTooManyRequests
}

func newAPIError(op string, statusCode int, message string) *APIError {
	if message == "" {
		message = fmt.Sprintf("HTTP error! status: %d", statusCode)
	}
	return &APIError{Op: op, StatusCode: statusCode, Message: message}
}

// PollError wraps the last failure of a retried poll.
type PollError struct {
	JobID    string
	Attempts int
	Err      error
}

func (e *PollError) Error() string {
	return e.Err.Error()
}

func (e *PollError) Unwrap() error {
	return e.Err
}

// Is matches ErrPollFailed as well as the wrapped error.
func (e *PollError) Is(target error) bool {
	return target == ErrPollFailed
}
