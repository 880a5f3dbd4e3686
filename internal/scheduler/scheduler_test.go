package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSpecFor(t *testing.T) {
	assert.Equal(t, "*/5 * * * *", SpecFor("*/5 * * * *", 30*time.Second))
	assert.Equal(t, "@every 30s", SpecFor("", 30*time.Second))
	assert.Equal(t, "@every 5m0s", SpecFor("", 300*time.Second))
}

func TestStartRunsImmediately(t *testing.T) {
	var runs atomic.Int32
	s := New(func(context.Context) { runs.Add(1) })

	require.NoError(t, s.Start(context.Background(), "@every 1h"))
	defer s.Stop(time.Second)

	assert.Eventually(t, func() bool { return runs.Load() == 1 }, time.Second, 10*time.Millisecond)
}

func TestRunNowSkipsWhileRunning(t *testing.T) {
	var runs atomic.Int32
	release := make(chan struct{})
	s := New(func(context.Context) {
		runs.Add(1)
		<-release
	})

	require.NoError(t, s.Start(context.Background(), "@every 1h"))
	require.Eventually(t, func() bool { return runs.Load() == 1 }, time.Second, 10*time.Millisecond)

	s.RunNow()
	s.RunNow()
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(1), runs.Load())

	close(release)
	require.NoError(t, s.Stop(time.Second))
}

func TestReschedule(t *testing.T) {
	s := New(func(context.Context) {})
	require.NoError(t, s.Reschedule("@every 30s"))
	first := s.entry

	require.NoError(t, s.Reschedule("@every 30s"))
	assert.Equal(t, first, s.entry)

	require.NoError(t, s.Reschedule("*/2 * * * *"))
	assert.NotEqual(t, first, s.entry)
	assert.Equal(t, "*/2 * * * *", s.Spec())
	assert.Len(t, s.cron.Entries(), 1)

	assert.Error(t, s.Reschedule("every now and then"))
	assert.Equal(t, "*/2 * * * *", s.Spec())
}

func TestCancelledContextSkipsRun(t *testing.T) {
	var runs atomic.Int32
	s := New(func(context.Context) { runs.Add(1) })
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.NoError(t, s.Start(ctx, "@every 1h"))
	time.Sleep(50 * time.Millisecond)
	assert.Zero(t, runs.Load())
	require.NoError(t, s.Stop(time.Second))
}
