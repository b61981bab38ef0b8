package batch

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultMaxJobs bounds how many finished jobs are retained.
const DefaultMaxJobs = 50

// JobStatus is the lifecycle of a submitted batch.
type JobStatus string

// Job statuses
const (
	JobRunning   JobStatus = "running"
	JobCompleted JobStatus = "completed"
	JobFailed    JobStatus = "failed"
)

// Job is a snapshot of a batch submitted through the API.
type Job struct {
	ID          string     `json:"id"`
	Kind        string     `json:"kind"`
	Status      JobStatus  `json:"status"`
	Identifiers []string   `json:"identifiers"`
	Completed   int        `json:"completed"`
	Failed      int        `json:"failed"`
	Total       int        `json:"total"`
	Error       string     `json:"error,omitempty"`
	Results     any        `json:"results,omitempty"`
	StartedAt   time.Time  `json:"started_at"`
	FinishedAt  *time.Time `json:"finished_at,omitempty"`
}

// Done reports whether the job has finished.
func (j Job) Done() bool {
	return j.Status != JobRunning
}

type jobEntry struct {
	job     Job
	history []Progress
	subs    map[int]chan Progress
	nextSub int
}

// Jobs tracks submitted batches and fans their progress out to subscribers.
type Jobs struct {
	mu    sync.Mutex
	jobs  map[string]*jobEntry
	order []string
	max   int
}

// NewJobs creates a registry retaining at most max jobs.
func NewJobs(max int) *Jobs {
	if max <= 0 {
		max = DefaultMaxJobs
	}
	return &Jobs{
		jobs: make(map[string]*jobEntry),
		max:  max,
	}
}

// Create registers a running job for the filtered identifiers.
func (r *Jobs) Create(kind string, identifiers []string) Job {
	ids := Filter(identifiers)
	job := Job{
		ID:          uuid.New().String(),
		Kind:        kind,
		Status:      JobRunning,
		Identifiers: ids,
		Total:       len(ids),
		StartedAt:   time.Now(),
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.jobs[job.ID] = &jobEntry{job: job, subs: make(map[int]chan Progress)}
	r.order = append(r.order, job.ID)
	r.evict()
	return job
}

// Get returns a snapshot of the job.
func (r *Jobs) Get(id string) (Job, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.jobs[id]
	if !ok {
		return Job{}, false
	}
	return e.job, true
}

// List returns snapshots of all retained jobs, newest first.
func (r *Jobs) List() []Job {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Job, 0, len(r.order))
	for i := len(r.order) - 1; i >= 0; i-- {
		out = append(out, r.jobs[r.order[i]].job)
	}
	return out
}

// Record applies a progress event to its job and forwards it to subscribers.
// It has the shape of a WithProgress callback.
func (r *Jobs) Record(p Progress) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.jobs[p.JobID]
	if !ok || e.job.Done() {
		return
	}
	e.job.Completed = p.Completed
	if !p.Success {
		e.job.Failed++
	}
	e.history = append(e.history, p)
	for _, ch := range e.subs {
		select {
		case ch <- p:
		default:
		}
	}
}

// Finish marks the job done, stores its results and closes subscriber channels.
func (r *Jobs) Finish(id string, results any, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.jobs[id]
	if !ok || e.job.Done() {
		return
	}
	now := time.Now()
	e.job.FinishedAt = &now
	e.job.Results = results
	e.job.Status = JobCompleted
	if err != nil {
		e.job.Status = JobFailed
		e.job.Error = err.Error()
	}
	for key, ch := range e.subs {
		close(ch)
		delete(e.subs, key)
	}
	r.evict()
}

// Subscribe returns the progress already recorded and a channel of further
// events. The channel is closed when the job finishes; it is nil if the job
// is already done. cancel releases the subscription.
func (r *Jobs) Subscribe(id string) (history []Progress, events <-chan Progress, cancel func(), ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, found := r.jobs[id]
	if !found {
		return nil, nil, func() {}, false
	}
	history = append([]Progress(nil), e.history...)
	if e.job.Done() {
		return history, nil, func() {}, true
	}

	key := e.nextSub
	e.nextSub++
	ch := make(chan Progress, e.job.Total+1)
	e.subs[key] = ch

	cancel = func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		if sub, ok := e.subs[key]; ok {
			close(sub)
			delete(e.subs, key)
		}
	}
	return history, ch, cancel, true
}

// evict drops the oldest finished jobs beyond the retention bound.
// Caller holds r.mu.
func (r *Jobs) evict() {
	for len(r.order) > r.max {
		evicted := false
		for i, id := range r.order {
			if r.jobs[id].job.Done() {
				delete(r.jobs, id)
				r.order = append(r.order[:i], r.order[i+1:]...)
				evicted = true
				break
			}
		}
		if !evicted {
			return
		}
	}
}
