// Package pulse is the client for the Pulse document extraction API. It
// implements extraction.Submitter and extraction.Poller, including the fixed
// retry policy applied to job polls.
package pulse

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	neturl "net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"docdash/internal/extraction"
	"docdash/internal/logger"
)

var _ extraction.Endpoint = &Client{}

type Client struct {
	client  *http.Client
	limiter *rate.Limiter
	log     zerolog.Logger

	url   string
	token string

	maxRetries int
	retryDelay time.Duration
	timeout    time.Duration
}

func New(url string, options ...Option) (*Client, error) {
	if u, err := neturl.Parse(url); err != nil || u.Scheme == "" || u.Host == "" {
		return nil, ErrInvalidURL
	}

	c := &Client{
		client: http.DefaultClient,
		log:    logger.WithComponent("pulse"),

		url: strings.TrimRight(url, "/"),

		maxRetries: DefaultMaxRetries,
		retryDelay: DefaultRetryDelay,
		timeout:    DefaultTimeout,
	}

	for _, option := range options {
		option(c)
	}

	return c, nil
}

// Submit starts an extraction of fileURL. With SkipPolling the synchronous
// endpoint is used and the raw payload is returned as the submission result;
// otherwise the returned submission carries the job id.
func (c *Client) Submit(ctx context.Context, fileURL string, options extraction.SubmitOptions) (*extraction.Submission, error) {
	if c.token == "" {
		return nil, ErrMissingAPIKey
	}
	if strings.TrimSpace(fileURL) == "" {
		return nil, extraction.ErrEmptyFileURL
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	if options.VerifyFile {
		if err := c.verify(ctx, fileURL); err != nil {
			return nil, err
		}
	}

	op := "extract_async"
	body := extractRequest{
		FileURL:  fileURL,
		Chunking: string(options.Chunking),
	}

	if options.SkipPolling {
		op = "extract"
		body.ReturnTables = options.ReturnTables
	} else {
		body.ReturnTable = options.ReturnTables
	}

	if schema := DefaultSchema(options.SchemaFields); schema != nil {
		body.Schema = schema
		body.ExtractSchema = true
	}

	data, err := json.Marshal(body)

	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url+"/"+op, bytes.NewReader(data))

	if err != nil {
		return nil, err
	}

	req.Header.Set("Content-Type", "application/json")

	resp, err := c.do(req)

	if err != nil {
		return nil, err
	}

	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, convertError(op, resp)
	}

	if options.SkipPolling {
		payload, err := io.ReadAll(resp.Body)

		if err != nil {
			return nil, err
		}

		return &extraction.Submission{
			Status: "completed",
			Result: json.RawMessage(payload),
		}, nil
	}

	var result asyncResponse

	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode %s response: %w", op, err)
	}

	if result.JobID == "" {
		return nil, extraction.ErrNoJobID
	}

	if result.Status == "" {
		result.Status = "pending"
	}

	c.log.Info().
		Str("job_id", result.JobID).
		Str("status", result.Status).
		Msg("Extraction submitted")

	return &extraction.Submission{
		JobID:  result.JobID,
		Status: result.Status,
	}, nil
}

// Poll returns the job's current outcome, retrying failed attempts.
func (c *Client) Poll(ctx context.Context, jobID string) (*extraction.PollOutcome, error) {
	status, err := c.Job(ctx, jobID)

	if err != nil {
		return nil, err
	}

	return status.Outcome(), nil
}

// Job fetches the provider's status for jobID. Transport failures, undecodable
// bodies and temporary API errors are retried up to the configured number of
// times with a fixed delay; the last failure is returned as a *PollError.
func (c *Client) Job(ctx context.Context, jobID string) (*JobStatus, error) {
	if jobID == "" {
		return nil, ErrMissingJobID
	}
	if c.token == "" {
		return nil, ErrMissingAPIKey
	}

	log := logger.WithJobID(c.log, jobID)

	for attempt := 0; ; attempt++ {
		status, err := c.fetchJob(ctx, jobID)

		if err == nil {
			return status, nil
		}

		if attempt >= c.maxRetries || !retryable(ctx, err) {
			return nil, &PollError{JobID: jobID, Attempts: attempt + 1, Err: err}
		}

		log.Warn().
			Err(err).
			Int("attempt", attempt+1).
			Dur("retry_in", c.retryDelay).
			Msg("Poll failed, retrying")

		timer := time.NewTimer(c.retryDelay)

		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, &PollError{JobID: jobID, Attempts: attempt + 1, Err: ctx.Err()}
		case <-timer.C:
		}
	}
}

func (c *Client) fetchJob(ctx context.Context, jobID string) (*JobStatus, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url+"/job/"+neturl.PathEscape(jobID), nil)

	if err != nil {
		return nil, err
	}

	resp, err := c.do(req)

	if err != nil {
		return nil, err
	}

	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, convertError("job", resp)
	}

	var status JobStatus

	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return nil, fmt.Errorf("decode job response: %w", err)
	}

	if status.JobID == "" {
		status.JobID = jobID
	}

	if status.Status == "" {
		status.Status = "pending"
	}

	return &status, nil
}

func (c *Client) verify(ctx context.Context, fileURL string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fileURL, nil)

	if err != nil {
		return fmt.Errorf("%w: %v", ErrFileNotAccessible, err)
	}

	resp, err := c.client.Do(req)

	if err != nil {
		return fmt.Errorf("%w: %v", ErrFileNotAccessible, err)
	}

	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%w: %d", ErrFileNotAccessible, resp.StatusCode)
	}

	return nil
}

func (c *Client) do(req *http.Request) (*http.Response, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(req.Context()); err != nil {
			return nil, err
		}
	}

	req.Header.Set("x-api-key", c.token)

	return c.client.Do(req)
}

func retryable(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return false
	}

	var apiErr *APIError

	if errors.As(err, &apiErr) {
		return apiErr.Temporary()
	}

	return true
}

func convertError(op string, resp *http.Response) error {
	data, _ := io.ReadAll(resp.Body)

	var body errorResponse

	if len(data) > 0 {
		json.Unmarshal(data, &body)
	}

	return newAPIError(op, resp.StatusCode, body.Error)
}
