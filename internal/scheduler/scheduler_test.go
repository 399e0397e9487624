package scheduler

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeTask struct {
	freq    time.Duration
	calls   int32
	panicOn int32

	mu       sync.Mutex
	panicked bool
}

func (f *fakeTask) RunOnce(ctx context.Context) {
	n := atomic.AddInt32(&f.calls, 1)
	if f.panicOn != 0 && n == f.panicOn {
		f.mu.Lock()
		f.panicked = true
		f.mu.Unlock()
		panic("fake task failure")
	}
}

func (f *fakeTask) Frequency() time.Duration { return f.freq }

func (f *fakeTask) callCount() int32 { return atomic.LoadInt32(&f.calls) }

func TestScheduler_RunsBothTasksRepeatedly(t *testing.T) {
	submit := &fakeTask{freq: 20 * time.Millisecond}
	fetch := &fakeTask{freq: 20 * time.Millisecond}
	s := New(submit, fetch)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.Start(ctx)

	require.Eventually(t, func() bool {
		return submit.callCount() >= 3 && fetch.callCount() >= 3
	}, time.Second, 10*time.Millisecond)

	s.Stop()
}

func TestScheduler_SurvivesPanicAndKeepsTicking(t *testing.T) {
	submit := &fakeTask{freq: 15 * time.Millisecond, panicOn: 2}
	fetch := &fakeTask{freq: 15 * time.Millisecond}
	s := New(submit, fetch)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.Start(ctx)

	require.Eventually(t, func() bool {
		return submit.callCount() >= 4
	}, 2*time.Second, 10*time.Millisecond)

	submit.mu.Lock()
	assert.True(t, submit.panicked)
	submit.mu.Unlock()

	h := s.Health()
	assert.True(t, h.Submit.Running)

	s.Stop()
}

func TestScheduler_StopReturnsWithinOneTick(t *testing.T) {
	submit := &fakeTask{freq: 30 * time.Millisecond}
	fetch := &fakeTask{freq: 30 * time.Millisecond}
	s := New(submit, fetch)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.Start(ctx)

	require.Eventually(t, func() bool {
		return submit.callCount() >= 1
	}, time.Second, 5*time.Millisecond)

	stopped := make(chan struct{})
	go func() {
		s.Stop()
		close(stopped)
	}()

	select {
	case <-stopped:
	case <-time.After(200 * time.Millisecond):
		t.Fatal("Stop did not return within one tick")
	}
}

func TestScheduler_HealthReflectsNotRunningBeforeStart(t *testing.T) {
	submit := &fakeTask{freq: time.Minute}
	fetch := &fakeTask{freq: time.Minute}
	s := New(submit, fetch)

	h := s.Health()
	assert.False(t, h.Submit.Running)
	assert.False(t, h.Fetch.Running)
}

func TestScheduler_CancelledContextStopsLoop(t *testing.T) {
	submit := &fakeTask{freq: 15 * time.Millisecond}
	fetch := &fakeTask{freq: 15 * time.Millisecond}
	s := New(submit, fetch)

	ctx, cancel := context.WithCancel(context.Background())
	s.Start(ctx)

	require.Eventually(t, func() bool {
		return submit.callCount() >= 1
	}, time.Second, 5*time.Millisecond)

	cancel()

	require.Eventually(t, func() bool {
		return !s.Health().Submit.Running
	}, time.Second, 10*time.Millisecond)
}
