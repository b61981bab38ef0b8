package batch

import (
	"context"
	"time"
)

// Progress is emitted after every item of a batch.
type Progress struct {
	JobID      string    `json:"job_id,omitempty"`
	Identifier string    `json:"identifier"`
	Index      int       `json:"index"`
	Completed  int       `json:"completed"`
	Total      int       `json:"total"`
	Success    bool      `json:"success"`
	Error      string    `json:"error,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// Percent returns completion in the 0-100 range.
func (p Progress) Percent() float64 {
	if p.Total == 0 {
		return 100
	}
	return float64(p.Completed) / float64(p.Total) * 100
}

// Option configures a single Fetch call.
type Option func(*runOptions)

type runOptions struct {
	jobID     string
	callbacks []func(Progress)
	channels  []chan<- Progress
}

// WithProgress registers a callback invoked synchronously after each item.
func WithProgress(fn func(Progress)) Option {
	return func(o *runOptions) {
		if fn != nil {
			o.callbacks = append(o.callbacks, fn)
		}
	}
}

// WithProgressChan delivers every progress event to ch, waiting for the
// reader when ch is full. Once ctx is done a send that would block is
// skipped. The channel is never closed by the batch.
func WithProgressChan(ch chan<- Progress) Option {
	return func(o *runOptions) {
		if ch != nil {
			o.channels = append(o.channels, ch)
		}
	}
}

// WithJobID tags progress events and log lines with id.
func WithJobID(id string) Option {
	return func(o *runOptions) {
		o.jobID = id
	}
}

func (o *runOptions) emit(ctx context.Context, p Progress) {
	for _, fn := range o.callbacks {
		fn(p)
	}
	for _, ch := range o.channels {
		select {
		case ch <- p:
			continue
		default:
		}
		select {
		case ch <- p:
		case <-ctx.Done():
		}
	}
}
