package scheduler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type funcJob struct {
	name string
	run  func(ctx context.Context) error
}

func (j funcJob) Name() string                  { return j.name }
func (j funcJob) Description() string           { return "test job " + j.name }
func (j funcJob) Run(ctx context.Context) error { return j.run(ctx) }

func newTestScheduler(t *testing.T, cfg Config) *Scheduler {
	t.Helper()
	s, err := New(cfg, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Stop() })
	return s
}

func TestScheduler_Register(t *testing.T) {
	s := newTestScheduler(t, Config{})
	job := funcJob{name: "a", run: func(context.Context) error { return nil }}

	require.NoError(t, s.Register(job, Every(time.Hour)))
	assert.ErrorIs(t, s.Register(job, Every(time.Hour)), ErrJobAlreadyExists)
	assert.ErrorIs(t, s.Register(nil, Every(time.Hour)), ErrNilJob)
	assert.ErrorIs(t, s.Register(funcJob{name: "b"}, Schedule{}), ErrNilSchedule)

	_, err := s.RunNow(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrJobNotFound)
}

func TestScheduler_RunNowOutcomes(t *testing.T) {
	s := newTestScheduler(t, Config{})
	require.NoError(t, s.Register(funcJob{name: "ok", run: func(context.Context) error { return nil }}, Every(time.Hour)))
	require.NoError(t, s.Register(funcJob{name: "off", run: func(context.Context) error { return ErrSkipped }}, Every(time.Hour)))
	require.NoError(t, s.Register(funcJob{name: "bad", run: func(context.Context) error { return errors.New("db down") }}, Every(time.Hour)))
	require.NoError(t, s.Register(funcJob{name: "panics", run: func(context.Context) error { panic("boom") }}, Every(time.Hour)))

	ctx := context.Background()

	res, err := s.RunNow(ctx, "ok")
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.False(t, res.Skipped)

	res, _ = s.RunNow(ctx, "off")
	assert.True(t, res.Success)
	assert.True(t, res.Skipped)

	res, _ = s.RunNow(ctx, "bad")
	assert.False(t, res.Success)
	assert.Equal(t, "db down", res.Error)

	res, _ = s.RunNow(ctx, "panics")
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "panic in job panics")

	assert.Len(t, s.History(0), 4)
	assert.Equal(t, "panics", s.History(1)[0].JobName)

	snap := s.Metrics().Snapshot()
	assert.Equal(t, int64(1), snap["bad"].Executions)
	assert.Equal(t, int64(1), snap["bad"].Failures)
	assert.Equal(t, int64(0), snap["off"].Failures)

	infos := s.ListJobs()
	require.Len(t, infos, 4)
	assert.Equal(t, "bad", infos[0].Name)
	assert.Equal(t, int64(1), infos[0].FailCount)
	assert.Equal(t, "@every 1h0m0s", infos[0].Schedule)
}

func TestScheduler_JobTimeout(t *testing.T) {
	s := newTestScheduler(t, Config{JobTimeout: 20 * time.Millisecond})
	require.NoError(t, s.Register(funcJob{name: "slow", run: func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}}, Every(time.Hour)))

	res, err := s.RunNow(context.Background(), "slow")
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "deadline exceeded")
}

type recordingLocker struct {
	mu   sync.Mutex
	keys []string
}

func (l *recordingLocker) Lock(_ context.Context, key string) (gocron.Lock, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.keys = append(l.keys, key)
	return noopLock{}, nil
}

func (l *recordingLocker) seen() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.keys...)
}

type noopLock struct{}

func (noopLock) Unlock(context.Context) error { return nil }

func TestScheduler_ScheduledRunTakesDistributedLock(t *testing.T) {
	locker := &recordingLocker{}
	s := newTestScheduler(t, Config{Locker: locker})

	var runs atomic.Int32
	require.NoError(t, s.Register(funcJob{name: "tick", run: func(context.Context) error {
		runs.Add(1)
		return nil
	}}, Every(20*time.Millisecond)))

	s.Start()

	assert.Eventually(t, func() bool { return runs.Load() >= 1 }, 2*time.Second, 10*time.Millisecond)
	assert.Contains(t, locker.seen(), "tick")

	infos := s.ListJobs()
	require.Len(t, infos, 1)
	assert.False(t, infos[0].NextRun.IsZero())
}

func TestSchedule_Strings(t *testing.T) {
	assert.Equal(t, "monthly on day 25 at 09:00", Monthly(25, 9, 0).String())
	assert.Equal(t, "0 6 1 * *", Cron("0 6 1 * *").String())
	assert.Equal(t, "@every 10m0s", Every(10*time.Minute).String())
}
