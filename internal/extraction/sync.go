package extraction

import (
	"context"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"docdash/internal/logger"
)

// Progress is the state of a SyncController as seen by UI consumers.
type Progress struct {
	Status   string    `json:"extractionStatus"`
	Result   *Result   `json:"extractedData"`
	Percent  float64   `json:"progress"`
	Done     bool      `json:"done"`
	JobID    string    `json:"jobId,omitempty"`
	Estimate time.Time `json:"estimatedCompletion"`
}

// SyncConfig configures a SyncController.
type SyncConfig struct {
	// Interval is the delay between the end of one poll and the next.
	Interval time.Duration

	// Observer, when set, receives every progress change in order. It runs
	// with the controller locked and must not call back into it.
	Observer func(Progress)
}

// SyncController runs one extraction at a time, accepting either an
// immediate provider result or a job id that is polled with a
// self-rescheduling timer. Transport retries are left to the Poller.
type SyncController struct {
	submitter Submitter
	poller    Poller
	config    SyncConfig
	log       zerolog.Logger
	now       func() time.Time

	mu       sync.Mutex
	status   string
	result   *Result
	progress float64
	estimate time.Time
	jobID    string
	finished bool

	generation uint64
	timer      *time.Timer
	cancel     context.CancelFunc
	done       chan struct{}
}

// NewSyncController creates an idle controller.
func NewSyncController(submitter Submitter, poller Poller, config SyncConfig) *SyncController {
	if config.Interval <= 0 {
		config.Interval = DefaultPollInterval
	}
	return &SyncController{
		submitter: submitter,
		poller:    poller,
		config:    config,
		log:       logger.WithComponent("extraction-sync"),
		now:       time.Now,
	}
}

// Start submits fileURL with options. If the provider answers with a job id
// the job is polled in the background until it is terminal.
func (c *SyncController) Start(ctx context.Context, fileURL string, options SubmitOptions) {
	c.mu.Lock()
	c.stopLocked()
	c.generation++
	gen := c.generation
	c.status = "Processing document..."
	c.result = nil
	c.progress = 0
	c.estimate = time.Time{}
	c.jobID = ""
	c.finished = false
	c.done = make(chan struct{})
	c.notifyLocked()
	c.mu.Unlock()

	var (
		submission *Submission
		err        error
	)
	if strings.TrimSpace(fileURL) == "" {
		err = ErrEmptyFileURL
	} else {
		submission, err = c.submitter.Submit(ctx, fileURL, options)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if gen != c.generation {
		return
	}

	if err == nil && submission == nil {
		err = ErrNoJobID
	}
	if err != nil {
		c.log.Error().Err(err).Str("file_url", fileURL).Msg("Extraction failed")
		c.finishLocked(fmt.Sprintf("Failed to extract: %s", reason(err)), 0)
		return
	}

	if hasPayload(submission.Result) {
		c.result = Transform(submission.Result, options.SchemaFields)
		c.finishLocked("Extraction completed!", 100)
		return
	}

	if submission.JobID == "" {
		c.finishLocked(fmt.Sprintf("Failed to extract: %s", ErrNoJobID), 0)
		return
	}

	c.jobID = submission.JobID
	c.progress = 10
	c.notifyLocked()

	pollCtx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	c.scheduleLocked(pollCtx, gen, submission.JobID, options.SchemaFields, 0)
}

func (c *SyncController) scheduleLocked(ctx context.Context, gen uint64, jobID string, fields []string, delay time.Duration) {
	c.timer = time.AfterFunc(delay, func() {
		c.tick(ctx, gen, jobID, fields)
	})
}

func (c *SyncController) tick(ctx context.Context, gen uint64, jobID string, fields []string) {
	outcome, err := c.poller.Poll(ctx, jobID)

	c.mu.Lock()
	defer c.mu.Unlock()

	if gen != c.generation || c.finished {
		return
	}

	log := logger.WithJobID(c.log, jobID)

	if err == nil && outcome == nil {
		err = fmt.Errorf("empty poll response")
	}
	if err != nil {
		log.Error().Err(err).Msg("Poll failed")
		c.finishLocked(fmt.Sprintf("Failed to check status: %s", reason(err)), 0)
		return
	}

	if outcome.Progress > 0 {
		c.progress = outcome.Progress
	} else {
		c.progress = math.Min(90, c.progress+10)
	}
	if !outcome.EstimatedCompletion.IsZero() {
		c.estimate = outcome.EstimatedCompletion
	}

	switch {
	case outcome.Status == PollCompleted && hasPayload(outcome.Result):
		c.result = Transform(outcome.Result, fields)
		c.finishLocked("Extraction completed!", 100)
		log.Info().Msg("Extraction completed")
		return
	case outcome.Status == PollFailed:
		msg := outcome.Error
		if msg == "" {
			msg = ErrJobFailed.Error()
		}
		c.finishLocked(fmt.Sprintf("Failed to check status: %s", msg), 0)
		return
	}

	c.notifyLocked()
	c.scheduleLocked(ctx, gen, jobID, fields, c.config.Interval)
}

// Reset stops any poll and clears all progress.
func (c *SyncController) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.stopLocked()
	c.generation++
	c.status = ""
	c.result = nil
	c.progress = 0
	c.estimate = time.Time{}
	c.jobID = ""
	c.finished = false
}

// Wait blocks until the extraction finished, was reset, or ctx is done.
func (c *SyncController) Wait(ctx context.Context) (Progress, error) {
	c.mu.Lock()
	done := c.done
	c.mu.Unlock()

	if done != nil {
		select {
		case <-done:
		case <-ctx.Done():
			return c.Progress(), ctx.Err()
		}
	}
	return c.Progress(), nil
}

// Progress returns the current status, result and percentage.
func (c *SyncController) Progress() Progress {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.progressLocked()
}

// TimeRemaining returns the time left until the provider's estimated
// completion, rounded to seconds and floored at zero. ok is false when no
// estimate is known or the extraction already finished.
func (c *SyncController) TimeRemaining() (time.Duration, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.estimate.IsZero() || c.progress >= 100 {
		return 0, false
	}
	remaining := c.estimate.Sub(c.now())
	if remaining < 0 {
		remaining = 0
	}
	return remaining.Round(time.Second), true
}

func (c *SyncController) progressLocked() Progress {
	return Progress{
		Status:   c.status,
		Result:   c.result,
		Percent:  c.progress,
		Done:     c.finished,
		JobID:    c.jobID,
		Estimate: c.estimate,
	}
}

func (c *SyncController) finishLocked(status string, progress float64) {
	c.status = status
	c.progress = progress
	c.finished = true
	c.stopLocked()
	c.notifyLocked()
}

func (c *SyncController) stopLocked() {
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	if c.done != nil {
		close(c.done)
		c.done = nil
	}
}

func (c *SyncController) notifyLocked() {
	if c.config.Observer != nil {
		c.config.Observer(c.progressLocked())
	}
}
