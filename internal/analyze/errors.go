package analyze

import (
	"errors"
	"fmt"
)

var (
	ErrProcessingFailed = errors.New("document AI processing failed")

	ErrInvalidCredentials = errors.New("invalid Google Cloud credentials")

	ErrMissingCredentials = errors.New("missing Google Cloud credentials")

	ErrInvalidConfiguration = errors.New("invalid Document AI configuration")

	ErrProcessorNotFound = errors.New("Document AI processor not found")

	ErrQuotaExceeded = errors.New("Document AI API quota exceeded")

	// ErrDocumentTooLarge is returned for uploads above 20MB.
	ErrDocumentTooLarge = errors.New("document exceeds maximum size limit")

	ErrUnsupportedFormat = errors.New("unsupported document format")

	ErrContextCanceled = errors.New("document analysis was canceled")
)

// AnalysisError records which step of an analysis failed and for which
// processor.
type AnalysisError struct {
	Op          string
	Err         error
	Details     string
	ProcessorID string
}

func (e *AnalysisError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("analyze: %s failed: %s: %v", e.Op, e.Details, e.Err)
	}
	if e.ProcessorID != "" {
		return fmt.Sprintf("analyze: %s failed (processor: %s): %v", e.Op, e.ProcessorID, e.Err)
	}
	return fmt.Sprintf("analyze: %s failed: %v", e.Op, e.Err)
}

func (e *AnalysisError) Unwrap() error {
	return e.Err
}

func (e *AnalysisError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// WrapAnalysisError wraps err unless it already is an *AnalysisError.
func WrapAnalysisError(op string, err error, details string) error {
	if err == nil {
		return nil
	}

	var analysisErr *AnalysisError
	if errors.As(err, &analysisErr) {
		return err
	}

	return &AnalysisError{Op: op, Err: err, Details: details}
}
