// Package extraction tracks document-extraction jobs hosted by an external
// extraction provider.
//
// A job is submitted through a Submitter and, when the provider answers with a
// job id instead of an immediate result, polled through a Poller until it
// reaches a terminal status. Two controllers are provided:
//
//   - AsyncController exposes a forward-only state machine
//     (idle → pending → processing → completed, or failed) for dashboard
//     consumers that render discrete steps.
//   - SyncController handles providers that return results immediately and
//     reports raw progress percentages for the self-rescheduling poll path.
//
// Raw provider payloads are normalized by Transform into a Result whose table
// and schema fields never need nil checks.
package extraction

import (
	"context"
	"encoding/json"
	"time"
)

// Chunking selects the provider-side text chunking strategy.
type Chunking string

const (
	ChunkingSemantic  Chunking = "semantic"
	ChunkingRecursive Chunking = "recursive"
)

// SubmitOptions are the fixed extraction options sent with a submission.
type SubmitOptions struct {
	// Chunking is the provider chunking mode. Empty leaves the provider default.
	Chunking Chunking

	// SchemaFields are the named fields the provider is asked to infer.
	// Every field listed here is present in Result.Schema after Transform.
	SchemaFields []string

	// ReturnTables asks the provider to include extracted tables.
	ReturnTables bool

	// SkipPolling requests the provider's synchronous endpoint, which answers
	// with a result instead of a job id.
	SkipPolling bool

	// VerifyFile checks that the file URL is reachable before submitting.
	VerifyFile bool
}

// Submission is the provider's answer to a submit call: either a job id or an
// immediate raw result.
type Submission struct {
	JobID  string          `json:"job_id,omitempty"`
	Status string          `json:"status,omitempty"`
	Result json.RawMessage `json:"result,omitempty"`
}

// PollStatus is the job status reported by the provider.
type PollStatus string

const (
	PollPending    PollStatus = "pending"
	PollProcessing PollStatus = "processing"
	PollCompleted  PollStatus = "completed"
	PollFailed     PollStatus = "failed"
)

// PollOutcome is a single poll response. It is transient and never retained.
type PollOutcome struct {
	Status   PollStatus      `json:"status"`
	Progress float64         `json:"progress"`
	Result   json.RawMessage `json:"result,omitempty"`
	Error    string          `json:"error,omitempty"`

	// EstimatedCompletion is zero when the provider gave no estimate.
	EstimatedCompletion time.Time `json:"estimated_completion_time,omitempty"`
}

// Job is a provider-side extraction task being polled by a controller.
type Job struct {
	ID          string    `json:"jobId"`
	SubmittedAt time.Time `json:"submittedAt"`
}

// Submitter starts an extraction for a document URL.
type Submitter interface {
	Submit(ctx context.Context, fileURL string, options SubmitOptions) (*Submission, error)
}

// Poller fetches the current status of a job.
type Poller interface {
	Poll(ctx context.Context, jobID string) (*PollOutcome, error)
}

// Endpoint is a provider adapter offering both operations.
type Endpoint interface {
	Submitter
	Poller
}

func hasPayload(raw json.RawMessage) bool {
	return len(raw) > 0 && string(raw) != "null"
}
