package pulse

import (
	"encoding/json"
	"strings"
	"time"

	"docdash/internal/extraction"
)

type extractRequest struct {
	FileURL       string            `json:"file-url"`
	Chunking      string            `json:"chunking,omitempty"`
	ReturnTable   bool              `json:"return_table,omitempty"`
	ReturnTables  bool              `json:"return_tables,omitempty"`
	Schema        map[string]string `json:"schema,omitempty"`
	ExtractSchema bool              `json:"extract_schema,omitempty"`
}

type asyncResponse struct {
	JobID  string `json:"job_id"`
	Status string `json:"status"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// JobStatus is the provider's view of an extraction job as returned by
// GET /job/{id}, with missing fields defaulted.
type JobStatus struct {
	JobID                   string          `json:"job_id"`
	Status                  string          `json:"status"`
	Progress                float64         `json:"progress"`
	Result                  json.RawMessage `json:"result,omitempty"`
	Error                   string          `json:"error,omitempty"`
	CreatedAt               string          `json:"created_at,omitempty"`
	UpdatedAt               string          `json:"updated_at,omitempty"`
	EstimatedCompletionTime string          `json:"estimated_completion_time,omitempty"`
}

// Outcome maps the provider status onto the poll outcome understood by the
// extraction controllers. Cancelled jobs count as failed and unknown values
// as pending.
func (s *JobStatus) Outcome() *extraction.PollOutcome {
	outcome := &extraction.PollOutcome{
		Progress: s.Progress,
		Result:   s.Result,
		Error:    s.Error,
	}

	switch strings.ToLower(s.Status) {
	case "processing", "running", "in_progress":
		outcome.Status = extraction.PollProcessing
	case "completed", "succeeded", "success":
		outcome.Status = extraction.PollCompleted
	case "failed", "error", "cancelled", "canceled":
		outcome.Status = extraction.PollFailed
		if outcome.Error == "" && strings.HasPrefix(strings.ToLower(s.Status), "cancel") {
			outcome.Error = "Extraction cancelled"
		}
	default:
		outcome.Status = extraction.PollPending
	}

	if s.EstimatedCompletionTime != "" {
		if t, err := time.Parse(time.RFC3339, s.EstimatedCompletionTime); err == nil {
			outcome.EstimatedCompletion = t
		}
	}

	return outcome
}
