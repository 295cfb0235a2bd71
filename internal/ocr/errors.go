package ocr

import (
	"errors"
	"fmt"
)

var (
	// ErrFileTooLarge is returned for uploads above the 20MB inline limit of
	// the Vision API.
	ErrFileTooLarge = errors.New("file size exceeds the maximum limit (20MB)")

	// ErrUnsupportedType is returned when the upload is neither a PDF, a TIFF
	// nor an image format the Vision API reads.
	ErrUnsupportedType = errors.New("unsupported file type")

	ErrOCRFailed = errors.New("OCR processing failed")

	ErrMissingCredentials = errors.New("missing Google Cloud credentials: set GOOGLE_APPLICATION_CREDENTIALS or GOOGLE_CREDENTIALS environment variable")

	// ErrTooManyPages is returned for documents over the synchronous page limit.
	ErrTooManyPages = errors.New("document has too many pages (maximum 5 pages for synchronous processing)")

	ErrEmptyDocument = errors.New("document contains no readable text")
)

// OCRError records which step of a recognition failed.
type OCRError struct {
	Op      string
	Err     error
	Details string
}

func (e *OCRError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("ocr: %s failed: %s: %v", e.Op, e.Details, e.Err)
	}
	return fmt.Sprintf("ocr: %s failed: %v", e.Op, e.Err)
}

func (e *OCRError) Unwrap() error {
	return e.Err
}

func (e *OCRError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// WrapOCRError wraps err unless it already is an *OCRError.
func WrapOCRError(op string, err error, details string) error {
	if err == nil {
		return nil
	}

	var ocrErr *OCRError
	if errors.As(err, &ocrErr) {
		return err
	}

	return &OCRError{Op: op, Err: err, Details: details}
}
