package jobqueue

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func newStartedQueue(t *testing.T, concurrency int) *Queue {
	t.Helper()
	q := New(concurrency)
	q.SetInterval(10 * time.Millisecond)
	q.Start(context.Background())
	t.Cleanup(func() {
		_ = q.StopWithTimeout(5 * time.Second)
	})
	return q
}

func TestEnqueueBeforeStartRejected(t *testing.T) {
	q := New(2)
	q.OnKind(KindAnalyze, func(context.Context, any) error { return nil })

	_, err := q.Enqueue(KindAnalyze, nil)
	assert.ErrorIs(t, err, ErrQueueStopped)
}

func TestEnqueueUnknownKindRejected(t *testing.T) {
	q := newStartedQueue(t, 2)

	_, err := q.Enqueue(KindRender, nil)
	assert.ErrorIs(t, err, ErrNoHandler)
}

func TestJobsRunInFIFOOrder(t *testing.T) {
	q := newStartedQueue(t, 1)

	var mu sync.Mutex
	var order []int
	q.OnKind(KindAnalyze, func(_ context.Context, payload any) error {
		mu.Lock()
		order = append(order, payload.(int))
		mu.Unlock()
		return nil
	})

	for i := 0; i < 5; i++ {
		_, err := q.Enqueue(KindAnalyze, i)
		require.NoError(t, err)
	}

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(order) == 5
	}, 5*time.Second, 10*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []int{0, 1, 2, 3, 4}, order)
}

func TestConcurrencyBound(t *testing.T) {
	const concurrency = 2
	q := newStartedQueue(t, concurrency)

	var active, peak int64
	release := make(chan struct{})
	q.OnKind(KindRender, func(context.Context, any) error {
		n := atomic.AddInt64(&active, 1)
		for {
			old := atomic.LoadInt64(&peak)
			if n <= old || atomic.CompareAndSwapInt64(&peak, old, n) {
				break
			}
		}
		<-release
		atomic.AddInt64(&active, -1)
		return nil
	})

	for i := 0; i < 6; i++ {
		_, err := q.Enqueue(KindRender, i)
		require.NoError(t, err)
	}

	require.Eventually(t, func() bool {
		return atomic.LoadInt64(&active) == concurrency
	}, 5*time.Second, 5*time.Millisecond)

	close(release)
	require.Eventually(t, func() bool {
		return q.GetStats().Completed == 6
	}, 5*time.Second, 10*time.Millisecond)

	assert.EqualValues(t, concurrency, atomic.LoadInt64(&peak))
}

func TestWorkIsDrainedWithoutTicker(t *testing.T) {
	// A one-hour tick isolates the wake path: a finishing worker must
	// pull the next job itself.
	q := New(1)
	q.SetInterval(time.Hour)
	q.Start(context.Background())
	defer func() { _ = q.StopWithTimeout(5 * time.Second) }()

	var done int64
	q.OnKind(KindPlan, func(context.Context, any) error {
		atomic.AddInt64(&done, 1)
		return nil
	})

	for i := 0; i < 4; i++ {
		_, err := q.Enqueue(KindPlan, i)
		require.NoError(t, err)
	}

	require.Eventually(t, func() bool {
		return atomic.LoadInt64(&done) == 4
	}, 5*time.Second, 10*time.Millisecond)
}

func TestFailureIsSwallowedAndCounted(t *testing.T) {
	q := newStartedQueue(t, 2)

	q.OnKind(KindAnalyze, func(context.Context, any) error {
		return errors.New("decode exploded")
	})
	q.OnKind(KindPlan, func(context.Context, any) error { return nil })

	_, err := q.Enqueue(KindAnalyze, nil)
	require.NoError(t, err)
	_, err = q.Enqueue(KindPlan, nil)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		s := q.GetStats()
		return s.Failed == 1 && s.Completed == 1
	}, 5*time.Second, 10*time.Millisecond)

	s := q.GetStats()
	assert.Equal(t, 1, s.PerKind[KindAnalyze].Failed)
	assert.Equal(t, 1, s.PerKind[KindPlan].Completed)
}

func TestPanicFailsJobWithoutKillingQueue(t *testing.T) {
	q := newStartedQueue(t, 1)

	var completed int64
	q.OnKind(KindRender, func(_ context.Context, payload any) error {
		if payload.(bool) {
			panic("filter graph blew up")
		}
		atomic.AddInt64(&completed, 1)
		return nil
	})

	_, err := q.Enqueue(KindRender, true)
	require.NoError(t, err)
	_, err = q.Enqueue(KindRender, false)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		s := q.GetStats()
		return s.Failed == 1 && s.Completed == 1
	}, 5*time.Second, 10*time.Millisecond)
	assert.EqualValues(t, 1, atomic.LoadInt64(&completed))
}

func TestRetryWithBackoff(t *testing.T) {
	q := newStartedQueue(t, 1)

	var attempts int64
	q.OnKind(KindSeparate, func(context.Context, any) error {
		if atomic.AddInt64(&attempts, 1) < 3 {
			return errors.New("engine unavailable")
		}
		return nil
	})

	job, err := q.EnqueueWithRetry(KindSeparate, nil, RetryConfig{
		Enabled:      true,
		MaxRetries:   3,
		InitialDelay: 5 * time.Millisecond,
		MaxDelay:     20 * time.Millisecond,
		Multiplier:   2,
	})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return q.GetStats().Completed == 1
	}, 5*time.Second, 10*time.Millisecond)

	assert.EqualValues(t, 3, atomic.LoadInt64(&attempts))
	assert.Equal(t, StatusCompleted, job.Status)
	assert.GreaterOrEqual(t, q.GetStats().PerKind[KindSeparate].Retried, 2)
}

func TestBackpressureRejectsWhenFull(t *testing.T) {
	q := NewWithOptions(1, 2, 10)
	q.SetInterval(10 * time.Millisecond)
	q.Start(context.Background())
	defer func() { _ = q.StopWithTimeout(5 * time.Second) }()

	release := make(chan struct{})
	defer close(release)
	q.OnKind(KindRender, func(context.Context, any) error {
		<-release
		return nil
	})

	_, err := q.Enqueue(KindRender, 0)
	require.NoError(t, err)
	_, err = q.Enqueue(KindRender, 1)
	require.NoError(t, err)

	// Two jobs occupy the bounded queue (one running, one pending).
	_, err = q.Enqueue(KindRender, 2)
	assert.ErrorIs(t, err, ErrQueueFull)
	assert.Equal(t, 1, q.GetStats().Dropped)
}

func TestGracefulStopWaitsForRunningJob(t *testing.T) {
	q := New(1)
	q.SetInterval(10 * time.Millisecond)
	q.Start(context.Background())

	var finished int64
	q.OnKind(KindRender, func(context.Context, any) error {
		time.Sleep(100 * time.Millisecond)
		atomic.AddInt64(&finished, 1)
		return nil
	})

	_, err := q.Enqueue(KindRender, nil)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return q.GetStats().RunningJobs == 1
	}, 5*time.Second, 5*time.Millisecond)

	require.NoError(t, q.StopWithTimeout(5*time.Second))
	assert.EqualValues(t, 1, atomic.LoadInt64(&finished))
}

func TestStopTimesOutOnStuckJob(t *testing.T) {
	q := New(1)
	q.SetInterval(10 * time.Millisecond)
	q.Start(context.Background())

	release := make(chan struct{})
	q.OnKind(KindRender, func(context.Context, any) error {
		<-release
		return nil
	})

	_, err := q.Enqueue(KindRender, nil)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return q.GetStats().RunningJobs == 1
	}, 5*time.Second, 5*time.Millisecond)

	assert.Error(t, q.StopWithTimeout(50*time.Millisecond))

	close(release) // let the worker exit so the test leaves no goroutine
	time.Sleep(50 * time.Millisecond)
}

func TestArchiveBounded(t *testing.T) {
	q := NewWithOptions(2, 1000, 3)
	q.SetInterval(5 * time.Millisecond)
	q.Start(context.Background())
	defer func() { _ = q.StopWithTimeout(5 * time.Second) }()

	q.OnKind(KindAnalyze, func(context.Context, any) error { return nil })
	for i := 0; i < 10; i++ {
		_, err := q.Enqueue(KindAnalyze, i)
		require.NoError(t, err)
	}

	require.Eventually(t, func() bool {
		return q.GetStats().Completed == 10 && q.Depth() == 0
	}, 5*time.Second, 10*time.Millisecond)

	assert.LessOrEqual(t, q.GetStats().Archived, 3)
}

func TestStatsSnapshotIsACopy(t *testing.T) {
	q := newStartedQueue(t, 1)
	q.OnKind(KindPlan, func(context.Context, any) error { return nil })

	_, err := q.Enqueue(KindPlan, nil)
	require.NoError(t, err)

	s := q.GetStats()
	s.PerKind[KindPlan] = KindStats{Enqueued: 99}
	assert.NotEqual(t, 99, q.GetStats().PerKind[KindPlan].Enqueued)
}
