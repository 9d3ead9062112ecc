package jobs

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JoelGresham/teamPoll/internal/events"
)

type fakeSweeper struct {
	mu       sync.Mutex
	horizons []time.Duration
	ids      []string
	err      error
}

func (s *fakeSweeper) Sweep(_ context.Context, horizon time.Duration) ([]string, []events.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.horizons = append(s.horizons, horizon)
	if s.err != nil {
		return nil, nil, s.err
	}
	var evts []events.Event
	for _, id := range s.ids {
		evts = append(evts, events.ToSession(events.TypeSessionDeleted, id, nil))
	}
	return s.ids, evts, nil
}

func (s *fakeSweeper) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.horizons)
}

func TestRetentionJobRunCountsRemoved(t *testing.T) {
	sweeper := &fakeSweeper{ids: []string{"abc234", "def567"}}
	job := NewRetentionJob(sweeper, 30*24*time.Hour, nil)

	removed, err := job.Run(context.Background(), time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 2, removed)
	assert.Equal(t, []time.Duration{time.Hour}, sweeper.horizons)
}

func TestRetentionJobRunError(t *testing.T) {
	sweeper := &fakeSweeper{err: errors.New("db gone")}
	job := NewRetentionJob(sweeper, time.Hour, nil)

	removed, err := job.Run(context.Background(), time.Hour)
	assert.ErrorContains(t, err, "db gone")
	assert.Zero(t, removed)
}

func TestHandleTaskUsesPayloadHorizon(t *testing.T) {
	sweeper := &fakeSweeper{}
	job := NewRetentionJob(sweeper, 30*24*time.Hour, nil)

	task, err := NewRetentionTask(48 * time.Hour)
	require.NoError(t, err)
	assert.Equal(t, TypeRetentionSweep, task.Type())
	require.NoError(t, job.HandleTask(context.Background(), task))

	// empty payload falls back to the configured horizon
	require.NoError(t, job.HandleTask(context.Background(), asynq.NewTask(TypeRetentionSweep, nil)))
	assert.Equal(t, []time.Duration{48 * time.Hour, 30 * 24 * time.Hour}, sweeper.horizons)
}

func TestHandleTaskBadPayloadSkipsRetry(t *testing.T) {
	job := NewRetentionJob(&fakeSweeper{}, time.Hour, nil)
	err := job.HandleTask(context.Background(), asynq.NewTask(TypeRetentionSweep, []byte("{")))
	assert.ErrorIs(t, err, asynq.SkipRetry)
}

func TestTickerRunnerSweepsUntilStopped(t *testing.T) {
	sweeper := &fakeSweeper{}
	runner := NewTickerRunner(NewRetentionJob(sweeper, time.Hour, nil), 5*time.Millisecond)
	require.NoError(t, runner.Start(context.Background()))

	assert.Eventually(t, func() bool { return sweeper.calls() >= 2 }, time.Second, 5*time.Millisecond)
	runner.Stop()
	after := sweeper.calls()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, after, sweeper.calls())
}

func TestTickerRunnerRejectsZeroInterval(t *testing.T) {
	runner := NewTickerRunner(NewRetentionJob(&fakeSweeper{}, time.Hour, nil), 0)
	assert.Error(t, runner.Start(context.Background()))
	runner.Stop()
}

func TestCronspec(t *testing.T) {
	assert.Equal(t, "@every 1h0m0s", Cronspec(time.Hour))
}
