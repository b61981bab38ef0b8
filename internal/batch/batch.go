// Package batch fetches data for many identifiers one at a time, pacing
// calls to stay under upstream rate limits and tolerating per-item failures.
package batch

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/vnmarket/internal/metrics"
	"github.com/aristath/vnmarket/pkg/logger"
)

// DefaultDelay is the pause between consecutive items.
const DefaultDelay = time.Second

// ErrNilFetch is returned when Fetch is called without a fetch function.
var ErrNilFetch = errors.New("batch: fetch function is nil")

// Config holds orchestrator configuration
type Config struct {
	Delay time.Duration // pause between items; zero disables pacing
	Now   func() time.Time
}

// DefaultConfig returns the production pacing.
func DefaultConfig() Config {
	return Config{Delay: DefaultDelay}
}

// Orchestrator runs sequential batches. It holds no per-batch state and may
// be shared; progress consumers are attached per call.
type Orchestrator struct {
	delay time.Duration
	now   func() time.Time
	log   zerolog.Logger
}

// New creates an orchestrator.
func New(cfg Config, log zerolog.Logger) *Orchestrator {
	delay := cfg.Delay
	if delay < 0 {
		delay = 0
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Orchestrator{
		delay: delay,
		now:   now,
		log:   logger.Component(log, "batch"),
	}
}

// Delay returns the pause between items.
func (o *Orchestrator) Delay() time.Duration {
	return o.delay
}

// FetchFunc retrieves the value for one identifier.
type FetchFunc[T any] func(ctx context.Context, identifier string) (T, error)

// Result is the outcome for one identifier.
type Result[T any] struct {
	Identifier string `json:"identifier"`
	Success    bool   `json:"success"`
	Value      T      `json:"value,omitempty"`
	Error      string `json:"error,omitempty"`
	Err        error  `json:"-"`
}

// Fetch calls fn for every distinct non-blank identifier, strictly in order,
// waiting the orchestrator delay between calls (never after the last one).
// A failing item is recorded and the batch continues. Results are returned in
// input order with exactly one entry per filtered identifier.
//
// If ctx is cancelled the remaining items are recorded as failed with the
// context error and that error is returned alongside the full results.
func Fetch[T any](ctx context.Context, o *Orchestrator, identifiers []string, fn FetchFunc[T], opts ...Option) ([]Result[T], error) {
	if fn == nil {
		return nil, ErrNilFetch
	}

	var options runOptions
	for _, opt := range opts {
		opt(&options)
	}

	ids := Filter(identifiers)
	results := make([]Result[T], 0, len(ids))
	if len(ids) == 0 {
		return results, nil
	}

	log := o.log.With().Str("job_id", options.jobID).Int("total", len(ids)).Logger()
	log.Debug().Msg("Batch started")
	started := o.now()

	succeeded := 0
	for i, id := range ids {
		var result Result[T]
		if err := ctx.Err(); err != nil {
			result = Result[T]{Identifier: id, Error: err.Error(), Err: err}
		} else {
			value, err := fn(ctx, id)
			if err != nil {
				log.Warn().Err(err).Str("identifier", id).Msg("Batch item failed")
				result = Result[T]{Identifier: id, Error: err.Error(), Err: err}
			} else {
				result = Result[T]{Identifier: id, Success: true, Value: value}
				succeeded++
			}
		}
		results = append(results, result)
		metrics.RecordBatchItem(result.Success)

		options.emit(ctx, Progress{
			JobID:      options.jobID,
			Identifier: id,
			Index:      i,
			Completed:  i + 1,
			Total:      len(ids),
			Success:    result.Success,
			Error:      result.Error,
			Timestamp:  o.now(),
		})

		if i < len(ids)-1 && o.delay > 0 && ctx.Err() == nil {
			o.wait(ctx)
		}
	}

	log.Info().
		Int("succeeded", succeeded).
		Int("failed", len(ids)-succeeded).
		Dur("duration", o.now().Sub(started)).
		Msg("Batch finished")

	return results, ctx.Err()
}

// wait sleeps for the delay or until ctx is done.
func (o *Orchestrator) wait(ctx context.Context) {
	timer := time.NewTimer(o.delay)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
	}
}

// Filter trims identifiers and drops blanks and duplicates, keeping the first
// occurrence. Comparison is case-sensitive after trimming.
func Filter(identifiers []string) []string {
	seen := make(map[string]struct{}, len(identifiers))
	out := make([]string, 0, len(identifiers))
	for _, raw := range identifiers {
		id := strings.TrimSpace(raw)
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
