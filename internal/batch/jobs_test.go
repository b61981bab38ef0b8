package batch

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJobs_TracksFetchProgress(t *testing.T) {
	jobs := NewJobs(10)
	job := jobs.Create("ohlc", []string{"A", "B", "", "A"})
	assert.Equal(t, 2, job.Total)
	assert.Equal(t, JobRunning, job.Status)

	history, events, cancel, ok := jobs.Subscribe(job.ID)
	require.True(t, ok)
	defer cancel()
	assert.Empty(t, history)

	fn := func(_ context.Context, id string) (string, error) {
		if id == "B" {
			return "", errors.New("failed")
		}
		return id, nil
	}
	results, err := Fetch(context.Background(), New(Config{}, zerolog.Nop()), job.Identifiers, fn,
		WithJobID(job.ID), WithProgress(jobs.Record))
	require.NoError(t, err)
	jobs.Finish(job.ID, results, nil)

	var received []Progress
	for p := range events {
		received = append(received, p)
	}
	assert.Len(t, received, 2)

	got, ok := jobs.Get(job.ID)
	require.True(t, ok)
	assert.Equal(t, JobCompleted, got.Status)
	assert.Equal(t, 2, got.Completed)
	assert.Equal(t, 1, got.Failed)
	assert.NotNil(t, got.FinishedAt)
	assert.True(t, got.Done())

	history, events, _, ok = jobs.Subscribe(job.ID)
	require.True(t, ok)
	assert.Len(t, history, 2)
	assert.Nil(t, events)
}

func TestJobs_FinishWithError(t *testing.T) {
	jobs := NewJobs(10)
	job := jobs.Create("ohlc", []string{"A"})
	jobs.Finish(job.ID, nil, context.Canceled)

	got, ok := jobs.Get(job.ID)
	require.True(t, ok)
	assert.Equal(t, JobFailed, got.Status)
	assert.Equal(t, context.Canceled.Error(), got.Error)
}

func TestJobs_EvictsOldestFinished(t *testing.T) {
	jobs := NewJobs(2)
	first := jobs.Create("ohlc", []string{"A"})
	jobs.Finish(first.ID, nil, nil)
	second := jobs.Create("ohlc", []string{"B"})
	third := jobs.Create("ohlc", []string{"C"})

	_, ok := jobs.Get(first.ID)
	assert.False(t, ok)
	_, ok = jobs.Get(second.ID)
	assert.True(t, ok)

	list := jobs.List()
	require.Len(t, list, 2)
	assert.Equal(t, third.ID, list[0].ID)
}

func TestJobs_UnknownJob(t *testing.T) {
	jobs := NewJobs(0)
	_, ok := jobs.Get("missing")
	assert.False(t, ok)
	_, _, cancel, ok := jobs.Subscribe("missing")
	assert.False(t, ok)
	cancel()
	jobs.Record(Progress{JobID: "missing"})
	jobs.Finish("missing", nil, nil)
}
