// Package ocr recognizes text in uploaded PDFs and images with Google Cloud
// Vision document text detection.
//
// Credentials come from GOOGLE_CREDENTIALS (inline JSON) or
// GOOGLE_APPLICATION_CREDENTIALS (file path), falling back to application
// default credentials.
//
// Vision limits for inline synchronous requests apply: at most 20MB per file
// and 5 pages per PDF or TIFF.
package ocr

import (
	"context"
	"io"
	"time"
)

// Engine extracts plain text from a document.
type Engine interface {
	// Recognize reads the whole upload, detects its type and returns the
	// recognized text of all pages.
	Recognize(ctx context.Context, r io.Reader) (*Result, error)

	Close() error
}

// Result is the text recognized in one upload.
type Result struct {
	// Text holds all pages in reading order, separated by page markers.
	Text string `json:"text"`

	// MimeType is the detected type of the upload.
	MimeType string `json:"mime_type"`

	PageCount int `json:"page_count"`

	// Confidence is the mean page confidence reported by Vision (0.0 to 1.0).
	Confidence float32 `json:"confidence"`

	LanguageCodes []string `json:"language_codes,omitempty"`

	ProcessedAt        time.Time     `json:"processed_at"`
	ProcessingDuration time.Duration `json:"processing_duration"`
}
