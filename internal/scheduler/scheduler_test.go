package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/vnmarket/internal/batch"
	"github.com/aristath/vnmarket/internal/cache"
	"github.com/aristath/vnmarket/internal/scoring"
)

type countingJob struct {
	runs int32
	err  error
}

func (j *countingJob) Run() error {
	atomic.AddInt32(&j.runs, 1)
	return j.err
}

func (j *countingJob) Name() string { return "counting" }

func TestScheduler_RunsJobs(t *testing.T) {
	s := New(zerolog.Nop())
	job := &countingJob{}
	require.NoError(t, s.AddJob("@every 1s", job))

	s.Start()
	defer s.Stop()

	assert.Eventually(t, func() bool { return atomic.LoadInt32(&job.runs) >= 1 }, 3*time.Second, 20*time.Millisecond)

	jobs := s.Jobs()
	require.Len(t, jobs, 1)
	assert.Equal(t, "counting", jobs[0].Name)
	assert.Equal(t, "@every 1s", jobs[0].Schedule)
}

func TestScheduler_InvalidSchedule(t *testing.T) {
	s := New(zerolog.Nop())
	assert.Error(t, s.AddJob("every now and then", &countingJob{}))
	assert.Empty(t, s.Jobs())
}

func TestScheduler_RunNow(t *testing.T) {
	s := New(zerolog.Nop())
	job := &countingJob{err: errors.New("boom")}
	assert.Error(t, s.RunNow(job))
	assert.Equal(t, int32(1), job.runs)
}

type fakeStore struct {
	cache.Store
	deleted int64
	err     error
	calls   int
}

func (f *fakeStore) DeleteExpired(time.Time) (int64, error) {
	f.calls++
	return f.deleted, f.err
}

func TestCacheCleanupJob(t *testing.T) {
	store := &fakeStore{deleted: 3}
	job := NewCacheCleanupJob(store, zerolog.Nop())
	assert.Equal(t, "cache_cleanup", job.Name())
	require.NoError(t, job.Run())
	assert.Equal(t, 1, store.calls)

	failing := NewCacheCleanupJob(&fakeStore{err: errors.New("disk full")}, zerolog.Nop())
	assert.Error(t, failing.Run())

	assert.NoError(t, NewCacheCleanupJob(nil, zerolog.Nop()).Run())
}

type fakeAuth struct{ err error }

func (f *fakeAuth) EnsureLogin(context.Context) error { return f.err }

type fakeRanker struct {
	release chan struct{}
	runs    int32
	err     error
}

func (f *fakeRanker) Run(ctx context.Context, _ ...batch.Option) (*scoring.Snapshot, error) {
	atomic.AddInt32(&f.runs, 1)
	if f.release != nil {
		select {
		case <-f.release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	return &scoring.Snapshot{Market: "HOSE"}, nil
}

type fakeExporter struct{ exported int32 }

func (f *fakeExporter) Export(context.Context, *scoring.Snapshot) (map[string]string, error) {
	atomic.AddInt32(&f.exported, 1)
	return map[string]string{}, nil
}

func TestRankingRefreshJob_RunExports(t *testing.T) {
	ranker := &fakeRanker{}
	exporter := &fakeExporter{}
	controller := batch.NewController("rankings", 0, zerolog.Nop())
	job := NewRankingRefreshJob(&fakeAuth{}, ranker, exporter, controller, zerolog.Nop())

	require.NoError(t, job.Run())
	assert.Equal(t, int32(1), ranker.runs)
	assert.Equal(t, int32(1), exporter.exported)
	assert.Equal(t, batch.StateIdle, controller.State())
	assert.Equal(t, "ranking_refresh", job.Name())
}

func TestRankingRefreshJob_LoginFailure(t *testing.T) {
	ranker := &fakeRanker{}
	controller := batch.NewController("rankings", 0, zerolog.Nop())
	job := NewRankingRefreshJob(&fakeAuth{err: errors.New("bad secret")}, ranker, nil, controller, zerolog.Nop())

	assert.Error(t, job.Run())
	assert.Equal(t, int32(0), ranker.runs)
	assert.Equal(t, batch.StateFailed, controller.State())
}

func TestRankingRefreshJob_OverlapRejected(t *testing.T) {
	ranker := &fakeRanker{release: make(chan struct{})}
	controller := batch.NewController("rankings", 0, zerolog.Nop())
	job := NewRankingRefreshJob(nil, ranker, nil, controller, zerolog.Nop())

	require.NoError(t, job.Start())
	assert.Eventually(t, func() bool { return atomic.LoadInt32(&ranker.runs) == 1 }, time.Second, 5*time.Millisecond)

	assert.ErrorIs(t, job.Start(), batch.ErrBusy)
	assert.NoError(t, job.Run(), "scheduled run is skipped, not failed")

	close(ranker.release)
	assert.Eventually(t, func() bool { return controller.State() == batch.StateIdle }, time.Second, 5*time.Millisecond)
	assert.Equal(t, int32(1), atomic.LoadInt32(&ranker.runs))
}

func TestRankingRefreshJob_TriggerCollapsesBurst(t *testing.T) {
	ranker := &fakeRanker{}
	exporter := &fakeExporter{}
	controller := batch.NewController("rankings", 20*time.Millisecond, zerolog.Nop())
	job := NewRankingRefreshJob(nil, ranker, exporter, controller, zerolog.Nop())
	t.Cleanup(controller.Stop)

	for i := 0; i < 3; i++ {
		job.Trigger()
	}

	assert.Eventually(t, func() bool { return atomic.LoadInt32(&exporter.exported) == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(1), atomic.LoadInt32(&ranker.runs))
}
