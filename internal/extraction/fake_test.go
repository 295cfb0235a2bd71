package extraction

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

type pollReply struct {
	outcome *PollOutcome
	err     error
}

// fakeEndpoint scripts submit and poll answers. Poll replies are consumed in
// order; the last one repeats.
type fakeEndpoint struct {
	mu sync.Mutex

	submission *Submission
	submitErr  error
	submits    int
	options    []SubmitOptions

	replies []pollReply
	polled  []string

	// pollFunc overrides replies when set.
	pollFunc func(ctx context.Context, jobID string) (*PollOutcome, error)
}

func (f *fakeEndpoint) Submit(ctx context.Context, fileURL string, options SubmitOptions) (*Submission, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.submits++
	f.options = append(f.options, options)
	if f.submitErr != nil {
		return nil, f.submitErr
	}
	if f.submission != nil {
		return f.submission, nil
	}
	return &Submission{JobID: fmt.Sprintf("job-%d", f.submits), Status: "pending"}, nil
}

func (f *fakeEndpoint) Poll(ctx context.Context, jobID string) (*PollOutcome, error) {
	f.mu.Lock()
	f.polled = append(f.polled, jobID)
	pollFunc := f.pollFunc
	if pollFunc == nil {
		defer f.mu.Unlock()
		if len(f.replies) == 0 {
			return &PollOutcome{Status: PollPending}, nil
		}
		reply := f.replies[0]
		if len(f.replies) > 1 {
			f.replies = f.replies[1:]
		}
		return reply.outcome, reply.err
	}
	f.mu.Unlock()
	return pollFunc(ctx, jobID)
}

func (f *fakeEndpoint) polls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.polled...)
}

func outcome(status PollStatus, progress float64, result string) pollReply {
	o := &PollOutcome{Status: status, Progress: progress}
	if result != "" {
		o.Result = json.RawMessage(result)
	}
	return pollReply{outcome: o}
}

type recorder struct {
	mu        sync.Mutex
	snapshots []Snapshot
}

func (r *recorder) observe(s Snapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.snapshots = append(r.snapshots, s)
}

func (r *recorder) states() []State {
	r.mu.Lock()
	defer r.mu.Unlock()

	states := make([]State, 0, len(r.snapshots))
	for _, s := range r.snapshots {
		states = append(states, s.State)
	}
	return states
}
