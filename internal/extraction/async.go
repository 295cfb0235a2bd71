package extraction

import (
	"context"
	"fmt"
	"math"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"docdash/internal/logger"
)

const (
	// DefaultPollInterval is the delay between status polls.
	DefaultPollInterval = 2 * time.Second

	// DefaultMaxWait bounds how long a job may stay non-terminal.
	DefaultMaxWait = 5 * time.Minute
)

// Snapshot is the state of an AsyncController as seen by UI consumers.
type Snapshot struct {
	State        State   `json:"extractionState"`
	Status       string  `json:"extractionStatus"`
	Result       *Result `json:"extractedData"`
	IsProcessing bool    `json:"isProcessing"`
	JobID        string  `json:"jobId,omitempty"`
}

// AsyncConfig configures an AsyncController.
type AsyncConfig struct {
	// Interval is the fixed delay between poll ticks.
	Interval time.Duration

	// MaxWait fails a job that is still running after this long. Zero disables it.
	MaxWait time.Duration

	// Options are sent with every submission.
	Options SubmitOptions

	// Observer, when set, receives every state or status change in order.
	// It runs with the controller locked and must not call back into it.
	Observer func(Snapshot)
}

// DefaultAsyncConfig returns the reference polling behavior.
func DefaultAsyncConfig() AsyncConfig {
	return AsyncConfig{
		Interval: DefaultPollInterval,
		MaxWait:  DefaultMaxWait,
		Options: SubmitOptions{
			Chunking:     ChunkingSemantic,
			ReturnTables: true,
		},
	}
}

// AsyncController submits one extraction job at a time, polls it to
// completion and exposes a forward-only State.
//
// All methods are safe for concurrent use. Start and Reset never return
// errors; failures are reported through State and Status.
type AsyncController struct {
	submitter Submitter
	poller    Poller
	config    AsyncConfig
	log       zerolog.Logger

	mu     sync.Mutex
	state  State
	status string
	result *Result
	job    *Job

	// generation identifies the current job; responses tagged with an
	// older generation are discarded.
	generation uint64
	cancel     context.CancelFunc
	expiry     *time.Timer
	done       chan struct{}

	loops atomic.Int32
}

// NewAsyncController creates an idle controller.
func NewAsyncController(submitter Submitter, poller Poller, config AsyncConfig) *AsyncController {
	if config.Interval <= 0 {
		config.Interval = DefaultPollInterval
	}
	return &AsyncController{
		submitter: submitter,
		poller:    poller,
		config:    config,
		log:       logger.WithComponent("extraction-async"),
	}
}

// Start submits fileURL and begins polling the returned job. Any job started
// earlier on this controller is abandoned first.
func (c *AsyncController) Start(ctx context.Context, fileURL string) {
	c.mu.Lock()
	c.stopLocked()
	c.generation++
	gen := c.generation
	c.job = nil
	c.result = nil
	c.done = make(chan struct{})
	c.state = StatePending
	c.status = "Starting async extraction..."
	c.notifyLocked()
	c.mu.Unlock()

	c.log.Info().
		Str("file_url", fileURL).
		Uint64("generation", gen).
		Msg("Starting async extraction")

	submission, err := c.submit(ctx, fileURL)

	c.mu.Lock()
	defer c.mu.Unlock()

	if gen != c.generation {
		c.log.Debug().Uint64("generation", gen).Msg("Discarding superseded submission")
		return
	}

	if err != nil {
		c.log.Error().Err(err).Str("file_url", fileURL).Msg("Extraction submission failed")
		c.failLocked(fmt.Sprintf("Failed to extract: %s", reason(err)))
		return
	}

	c.job = &Job{ID: submission.JobID, SubmittedAt: time.Now()}
	c.state, _ = c.state.Advance(StateProcessing)
	c.status = "Processing document..."
	c.notifyLocked()

	pollCtx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	// The deadline runs apart from the loop so a poll stuck upstream cannot
	// hold it off.
	if c.config.MaxWait > 0 {
		c.expiry = time.AfterFunc(c.config.MaxWait, func() { c.expire(gen) })
	}
	c.loops.Add(1)
	go c.pollLoop(pollCtx, gen, c.job.ID)

	log := logger.WithJobID(c.log, c.job.ID)
	log.Info().Msg("Extraction job submitted")
}

func (c *AsyncController) submit(ctx context.Context, fileURL string) (*Submission, error) {
	if strings.TrimSpace(fileURL) == "" {
		return nil, ErrEmptyFileURL
	}
	submission, err := c.submitter.Submit(ctx, fileURL, c.config.Options)
	if err != nil {
		return nil, err
	}
	if submission == nil || submission.JobID == "" {
		return nil, ErrNoJobID
	}
	return submission, nil
}

func (c *AsyncController) pollLoop(ctx context.Context, gen uint64, jobID string) {
	defer c.loops.Add(-1)

	ticker := time.NewTicker(c.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if c.tick(ctx, gen, jobID) {
				return
			}
		}
	}
}

// tick polls once and applies the outcome. It reports whether the loop
// should stop.
func (c *AsyncController) tick(ctx context.Context, gen uint64, jobID string) bool {
	outcome, err := c.poller.Poll(ctx, jobID)

	c.mu.Lock()
	defer c.mu.Unlock()

	if gen != c.generation || c.job == nil || c.job.ID != jobID {
		return true
	}

	log := logger.WithJobID(c.log, jobID)

	if err == nil && outcome == nil {
		err = fmt.Errorf("empty poll response")
	}
	if err != nil {
		log.Error().Err(err).Msg("Poll failed")
		c.failLocked(fmt.Sprintf("Failed to check status: %s", reason(err)))
		return true
	}

	switch {
	case outcome.Status == PollCompleted && hasPayload(outcome.Result):
		c.result = Transform(outcome.Result, c.config.Options.SchemaFields)
		c.state, _ = c.state.Advance(StateCompleted)
		c.status = "Extraction completed!"
		c.job = nil
		c.stopLocked()
		c.notifyLocked()
		log.Info().
			Int("tables", len(c.result.Tables)).
			Int("text_length", len(c.result.TextOrEmpty())).
			Msg("Extraction completed")
		return true

	case outcome.Status == PollFailed:
		msg := outcome.Error
		if msg == "" {
			msg = ErrJobFailed.Error()
		}
		log.Warn().Str("error", msg).Msg("Provider reported job failure")
		c.failLocked(fmt.Sprintf("Failed to check status: %s", msg))
		return true
	}

	if outcome.Status == PollProcessing {
		c.state, _ = c.state.Advance(StateProcessing)
	}
	c.status = fmt.Sprintf("Processing document... (%d%%)", int(math.Round(outcome.Progress)))
	c.notifyLocked()

	log.Debug().
		Str("status", string(outcome.Status)).
		Float64("progress", outcome.Progress).
		Str("state", c.state.String()).
		Msg("Job still running")
	return false
}

func (c *AsyncController) expire(gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if gen != c.generation || c.job == nil {
		return
	}
	c.log.Warn().Str("job_id", c.job.ID).Dur("max_wait", c.config.MaxWait).Msg("Extraction timed out")
	c.failLocked(ErrTimedOut.Error())
}

// Reset abandons any job and returns the controller to idle. It is safe to
// call at any time.
func (c *AsyncController) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.stopLocked()
	c.generation++
	c.job = nil
	c.result = nil
	c.status = ""
	if c.state != StateIdle {
		c.state = StateIdle
		c.notifyLocked()
	}
}

// Close releases the polling loop. The controller is reusable afterwards.
func (c *AsyncController) Close() error {
	c.Reset()
	return nil
}

// Wait blocks until the current job reaches a terminal state, the controller
// is reset, or ctx is done.
func (c *AsyncController) Wait(ctx context.Context) (Snapshot, error) {
	c.mu.Lock()
	done := c.done
	c.mu.Unlock()

	if done != nil {
		select {
		case <-done:
		case <-ctx.Done():
			return c.Snapshot(), ctx.Err()
		}
	}
	return c.Snapshot(), nil
}

// State returns the displayed extraction state.
func (c *AsyncController) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Status returns the human-readable status message.
func (c *AsyncController) Status() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// Result returns the normalized result, or nil before completion.
func (c *AsyncController) Result() *Result {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.result
}

// IsProcessing reports whether a job is pending or processing.
func (c *AsyncController) IsProcessing() bool {
	return c.State().Processing()
}

// JobID returns the id of the job being polled, or "".
func (c *AsyncController) JobID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.job == nil {
		return ""
	}
	return c.job.ID
}

// Snapshot returns all readable fields at once.
func (c *AsyncController) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

func (c *AsyncController) snapshotLocked() Snapshot {
	snapshot := Snapshot{
		State:        c.state,
		Status:       c.status,
		Result:       c.result,
		IsProcessing: c.state.Processing(),
	}
	if c.job != nil {
		snapshot.JobID = c.job.ID
	}
	return snapshot
}

func (c *AsyncController) failLocked(status string) {
	c.state, _ = c.state.Advance(StateFailed)
	c.status = status
	c.result = nil
	c.job = nil
	c.stopLocked()
	c.notifyLocked()
}

// stopLocked cancels the polling loop and the deadline, and wakes waiters.
func (c *AsyncController) stopLocked() {
	if c.expiry != nil {
		c.expiry.Stop()
		c.expiry = nil
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

func (c *AsyncController) notifyLocked() {
	if c.config.Observer != nil {
		c.config.Observer(c.snapshotLocked())
	}
}
