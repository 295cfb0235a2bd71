package extraction

import "errors"

// Failures surfaced through controller status messages.
var (
	// ErrEmptyFileURL is returned when no document URL was given.
	ErrEmptyFileURL = errors.New("file URL is required")

	// ErrNoJobID is returned when the provider accepted a submission but
	// returned neither a job id nor a result.
	ErrNoJobID = errors.New("No job ID returned from API")

	// ErrJobFailed is used when the provider reports a failed job without a reason.
	ErrJobFailed = errors.New("Extraction failed")

	// ErrTimedOut is returned when a job stays non-terminal past the maximum wait.
	ErrTimedOut = errors.New("Extraction timed out")
)

func reason(err error) string {
	if err == nil {
		return "Unknown error occurred"
	}
	return err.Error()
}
