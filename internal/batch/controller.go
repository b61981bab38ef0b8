package batch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/vnmarket/pkg/logger"
)

// DefaultDebounceWindow coalesces bursts of triggers, e.g. keystrokes in a search box.
const DefaultDebounceWindow = 300 * time.Millisecond

// State is the lifecycle of a Controller.
type State string

// Controller states
const (
	StateIdle     State = "idle"
	StateFetching State = "fetching"
	StateFailed   State = "failed"
)

var (
	// ErrBusy is returned when a fetch is triggered while another is running.
	ErrBusy = errors.New("fetch already in progress")
	// ErrStopped is returned after Stop.
	ErrStopped = errors.New("controller stopped")
)

// Status is a snapshot of a Controller.
type Status struct {
	Name       string     `json:"name"`
	State      State      `json:"state"`
	LastError  string     `json:"last_error,omitempty"`
	LastRunAt  *time.Time `json:"last_run_at,omitempty"`
	LastRunFor string     `json:"last_run_duration,omitempty"`
}

// Controller guards one kind of fetch with the state machine
// Idle -> Fetching -> Idle | Failed. Triggers while Fetching are rejected
// with ErrBusy; a Failed controller may be triggered again.
type Controller struct {
	name   string
	window time.Duration
	log    zerolog.Logger

	mu          sync.Mutex
	state       State
	lastErr     error
	lastRunAt   time.Time
	lastRunFor  time.Duration
	timer       *time.Timer
	stopped     bool
	cancelFetch context.CancelFunc
}

// NewController creates an idle controller. A non-positive window selects
// DefaultDebounceWindow.
func NewController(name string, window time.Duration, log zerolog.Logger) *Controller {
	if window <= 0 {
		window = DefaultDebounceWindow
	}
	return &Controller{
		name:   name,
		window: window,
		state:  StateIdle,
		log:    logger.Component(log, "fetch-controller").With().Str("controller", name).Logger(),
	}
}

// Name returns the controller name.
func (c *Controller) Name() string {
	return c.name
}

// State returns the current state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// LastError returns the error of the last failed fetch, nil after a success.
func (c *Controller) LastError() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

// Status returns a snapshot suitable for JSON.
func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := Status{Name: c.name, State: c.state}
	if c.lastErr != nil {
		s.LastError = c.lastErr.Error()
	}
	if !c.lastRunAt.IsZero() {
		at := c.lastRunAt
		s.LastRunAt = &at
		s.LastRunFor = c.lastRunFor.String()
	}
	return s
}

// Run executes fn synchronously if the controller is not already fetching.
func (c *Controller) Run(ctx context.Context, fn func(context.Context) error) error {
	ctx, err := c.begin(ctx)
	if err != nil {
		return err
	}
	return c.finish(fn(ctx))
}

// Start transitions to Fetching and runs fn in a goroutine. It returns
// ErrBusy immediately when a fetch is already running.
func (c *Controller) Start(ctx context.Context, fn func(context.Context) error) error {
	ctx, err := c.begin(ctx)
	if err != nil {
		return err
	}
	go func() {
		_ = c.finish(fn(ctx))
	}()
	return nil
}

// Debounce schedules fn to run after the debounce window. Each call within
// the window resets the timer, so a burst of triggers results in one fetch.
// A trigger that fires while a fetch is running is dropped.
func (c *Controller) Debounce(fn func(context.Context) error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.debounceLocked(fn)
}

// debounceLocked replaces the pending timer. A timer that already fired but
// has not run its callback yet sees it was superseded and does nothing.
func (c *Controller) debounceLocked(fn func(context.Context) error) {
	if c.stopped {
		return
	}
	if c.timer != nil {
		c.timer.Stop()
	}
	var timer *time.Timer
	timer = time.AfterFunc(c.window, func() {
		c.mu.Lock()
		superseded := c.timer != timer
		if !superseded {
			c.timer = nil
		}
		c.mu.Unlock()
		if superseded {
			return
		}

		if err := c.Run(context.Background(), fn); err != nil {
			if errors.Is(err, ErrBusy) {
				c.log.Debug().Msg("Debounced trigger dropped, fetch in progress")
				return
			}
			c.log.Warn().Err(err).Msg("Debounced fetch failed")
		}
	})
	c.timer = timer
}

// Stop cancels a pending debounce and the running fetch, and rejects new triggers.
func (c *Controller) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.stopped = true
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	if c.cancelFetch != nil {
		c.cancelFetch()
	}
}

func (c *Controller) begin(ctx context.Context) (context.Context, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.stopped {
		return nil, ErrStopped
	}
	if c.state == StateFetching {
		return nil, fmt.Errorf("%s: %w", c.name, ErrBusy)
	}

	ctx, cancel := context.WithCancel(ctx)
	c.state = StateFetching
	c.cancelFetch = cancel
	c.lastRunAt = time.Now()
	c.log.Debug().Msg("Fetch started")
	return ctx, nil
}

func (c *Controller) finish(err error) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cancelFetch != nil {
		c.cancelFetch()
		c.cancelFetch = nil
	}
	c.lastRunFor = time.Since(c.lastRunAt)
	if err != nil {
		c.state = StateFailed
		c.lastErr = err
		c.log.Error().Err(err).Dur("duration", c.lastRunFor).Msg("Fetch failed")
		return err
	}
	c.state = StateIdle
	c.lastErr = nil
	c.log.Debug().Dur("duration", c.lastRunFor).Msg("Fetch finished")
	return nil
}
