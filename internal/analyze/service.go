// Package analyze runs uploaded documents through a Google Document AI
// processor and normalizes the response into an extraction.Result: the full
// text, every page table and the detected form fields as schema entries.
//
// Required configuration:
//   - GOOGLE_CLOUD_PROJECT: Google Cloud project ID
//   - DOCUMENT_AI_PROCESSOR_ID: processor to run (a Form Parser works best)
//   - GOOGLE_CLOUD_LOCATION: processor location, "us" by default
//
// Credentials are read like in package ocr.
package analyze

import (
	"context"
	"io"
	"time"

	"docdash/internal/extraction"
)

// Analyzer extracts text, tables and form fields from a document.
type Analyzer interface {
	Analyze(ctx context.Context, r io.Reader) (*extraction.Result, error)
	Close() error
}

// Config selects the Document AI processor.
type Config struct {
	ProjectID string

	// Location should match where the processor was created ("us", "eu").
	Location string

	ProcessorID string

	// ProcessorVersion pins a processor version. Empty uses the default.
	ProcessorVersion string

	// Timeout bounds one ProcessDocument call. Default: 60 seconds.
	Timeout time.Duration
}

func DefaultConfig() Config {
	return Config{
		Location: "us",
		Timeout:  60 * time.Second,
	}
}
