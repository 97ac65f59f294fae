package jobqueue

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/automixer/automix-go/internal/logging"
)

// Queue is a bounded worker pool over a single shared FIFO. At most
// `concurrency` jobs run in parallel; a finishing worker immediately
// pulls the next due job, so pending work is drained without waiting
// for the housekeeping ticker.
type Queue struct {
	mu       sync.Mutex
	jobs     []*Job
	archived []*Job
	handlers map[Kind]Handler
	stats    Stats

	concurrency int
	maxJobs     int
	maxArchived int
	running     int
	jobCounter  int
	isRunning   bool

	stopCh   chan struct{}
	wake     chan struct{}
	cancel   context.CancelFunc
	workers  sync.WaitGroup
	interval time.Duration

	metrics Metrics
	logger  *slog.Logger
}

// New builds a queue with the given worker count and default bounds.
func New(concurrency int) *Queue {
	return NewWithOptions(concurrency, 1000, 100)
}

// NewWithOptions builds a queue with explicit queue and archive bounds.
func NewWithOptions(concurrency, maxJobs, maxArchived int) *Queue {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Queue{
		handlers:    make(map[Kind]Handler),
		concurrency: concurrency,
		maxJobs:     maxJobs,
		maxArchived: maxArchived,
		stopCh:      make(chan struct{}),
		wake:        make(chan struct{}, 1),
		interval:    time.Second,
		stats:       Stats{PerKind: make(map[Kind]KindStats)},
		logger:      logging.ForService("jobqueue"),
	}
}

// SetMetrics attaches a metrics sink. Call before Start.
func (q *Queue) SetMetrics(m Metrics) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.metrics = m
}

// SetInterval overrides the housekeeping tick, mainly for tests.
func (q *Queue) SetInterval(d time.Duration) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.interval = d
}

// OnKind registers the handler for a job kind. Registering twice
// replaces the previous handler.
func (q *Queue) OnKind(kind Kind, handler Handler) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.handlers[kind] = handler
}

// Start launches the dispatch loop.
func (q *Queue) Start(ctx context.Context) {
	q.mu.Lock()
	if q.isRunning {
		q.mu.Unlock()
		return
	}
	q.isRunning = true
	q.stopCh = make(chan struct{})

	dispatchCtx, cancel := context.WithCancel(ctx)
	q.cancel = cancel
	q.mu.Unlock()

	go q.dispatchLoop(dispatchCtx)
}

// Stop shuts the queue down, waiting up to 10 seconds for running jobs.
func (q *Queue) Stop() error {
	return q.StopWithTimeout(10 * time.Second)
}

// StopWithTimeout stops dispatching and waits for in-flight jobs up to
// the grace period. Pending jobs stay queued but are never started.
func (q *Queue) StopWithTimeout(timeout time.Duration) error {
	q.mu.Lock()
	if !q.isRunning {
		q.mu.Unlock()
		return nil
	}
	q.isRunning = false
	if q.cancel != nil {
		q.cancel()
		q.cancel = nil
	}
	close(q.stopCh)
	q.mu.Unlock()

	done := make(chan struct{})
	go func() {
		q.workers.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-time.After(timeout):
		return fmt.Errorf("timed out after %v waiting for running jobs", timeout)
	}
}

// Enqueue queues a job with no retry policy.
func (q *Queue) Enqueue(kind Kind, payload any) (*Job, error) {
	return q.EnqueueWithRetry(kind, payload, RetryConfig{})
}

// EnqueueWithRetry queues a job with an explicit retry policy. A full
// queue rejects the job rather than dropping older work.
func (q *Queue) EnqueueWithRetry(kind Kind, payload any, retry RetryConfig) (*Job, error) {
	q.mu.Lock()

	if !q.isRunning {
		q.mu.Unlock()
		return nil, ErrQueueStopped
	}
	if _, ok := q.handlers[kind]; !ok {
		q.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrNoHandler, kind)
	}
	if q.maxJobs > 0 && len(q.jobs) >= q.maxJobs {
		ks := q.stats.PerKind[kind]
		ks.Dropped++
		q.stats.PerKind[kind] = ks
		q.stats.Dropped++
		q.mu.Unlock()
		return nil, fmt.Errorf("%w: %d jobs pending", ErrQueueFull, q.maxJobs)
	}

	q.jobCounter++
	job := &Job{
		ID:          fmt.Sprintf("job-%d", q.jobCounter),
		Kind:        kind,
		Payload:     payload,
		Status:      StatusPending,
		MaxAttempts: retry.MaxRetries + 1,
		Retry:       retry,
		CreatedAt:   time.Now(),
		NextRetryAt: time.Now(),
	}
	q.jobs = append(q.jobs, job)
	q.stats.TotalJobs++
	ks := q.stats.PerKind[kind]
	ks.Enqueued++
	q.stats.PerKind[kind] = ks
	metrics := q.metrics
	depth := len(q.jobs)
	q.mu.Unlock()

	if metrics != nil {
		metrics.JobEnqueued(string(kind))
		metrics.QueueDepth(depth)
	}
	q.notify()
	return job, nil
}

// notify nudges the dispatcher without blocking.
func (q *Queue) notify() {
	select {
	case q.wake <- struct{}{}:
	default:
	}
}

func (q *Queue) dispatchLoop(ctx context.Context) {
	ticker := time.NewTicker(q.currentInterval())
	defer ticker.Stop()

	for {
		select {
		case <-q.stopCh:
			return
		case <-ctx.Done():
			return
		case <-q.wake:
			q.fillWorkers(ctx)
		case <-ticker.C:
			q.archiveFinished()
			q.fillWorkers(ctx)
		}
	}
}

func (q *Queue) currentInterval() time.Duration {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.interval
}

// fillWorkers starts due jobs in FIFO order until every worker slot is
// occupied or nothing is runnable.
func (q *Queue) fillWorkers(ctx context.Context) {
	now := time.Now()
	for {
		q.mu.Lock()
		if !q.isRunning || q.running >= q.concurrency {
			q.mu.Unlock()
			return
		}

		var job *Job
		for _, j := range q.jobs {
			if j.due(now) {
				job = j
				break
			}
		}
		if job == nil {
			q.mu.Unlock()
			return
		}

		job.Status = StatusRunning
		job.Attempts++
		q.running++
		q.stats.RunningJobs = q.running
		handler := q.handlers[job.Kind]
		q.workers.Add(1)
		q.mu.Unlock()

		go q.execute(ctx, job, handler)
	}
}

// execute runs one job to completion, applying the retry policy on
// failure. Errors are logged and swallowed; panics fail the job.
func (q *Queue) execute(ctx context.Context, job *Job, handler Handler) {
	defer q.workers.Done()

	start := time.Now()
	err := q.runHandler(ctx, job, handler)

	q.mu.Lock()
	q.running--
	q.stats.RunningJobs = q.running
	ks := q.stats.PerKind[job.Kind]

	switch {
	case err == nil:
		job.Status = StatusCompleted
		q.stats.Completed++
		ks.Completed++
	case job.Retry.Enabled && job.Attempts < job.MaxAttempts:
		job.Status = StatusRetrying
		job.LastError = err
		job.NextRetryAt = time.Now().Add(backoffDelay(job.Retry, job.Attempts))
		ks.Retried++
	default:
		job.Status = StatusFailed
		job.LastError = err
		q.stats.Failed++
		ks.Failed++
	}
	q.stats.PerKind[job.Kind] = ks
	status := job.Status
	metrics := q.metrics
	q.mu.Unlock()

	if err != nil {
		q.logger.Error("job failed",
			"job_id", job.ID,
			"kind", job.Kind,
			"attempt", job.Attempts,
			"status", status.String(),
			"error", err)
	}
	if metrics != nil {
		metrics.JobFinished(string(job.Kind), status.String(), time.Since(start))
	}

	// A freed slot should pick up pending work immediately.
	q.notify()
}

func (q *Queue) runHandler(ctx context.Context, job *Job, handler Handler) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job handler panic: %v", r)
		}
	}()
	return handler(ctx, job.Payload)
}

// archiveFinished moves terminal jobs out of the active list, keeping a
// bounded history for inspection.
func (q *Queue) archiveFinished() {
	q.mu.Lock()
	defer q.mu.Unlock()

	active := q.jobs[:0]
	for _, j := range q.jobs {
		if j.Status == StatusCompleted || j.Status == StatusFailed {
			q.archived = append(q.archived, j)
		} else {
			active = append(active, j)
		}
	}
	q.jobs = active

	if q.maxArchived > 0 && len(q.archived) > q.maxArchived {
		q.archived = q.archived[len(q.archived)-q.maxArchived:]
	}
	q.stats.Archived = len(q.archived)
}

// GetStats returns a snapshot of queue counters.
func (q *Queue) GetStats() Stats {
	q.mu.Lock()
	defer q.mu.Unlock()

	snapshot := q.stats
	snapshot.PerKind = make(map[Kind]KindStats, len(q.stats.PerKind))
	for k, v := range q.stats.PerKind {
		snapshot.PerKind[k] = v
	}
	pending := 0
	for _, j := range q.jobs {
		if j.Status == StatusPending || j.Status == StatusRetrying {
			pending++
		}
	}
	snapshot.PendingJobs = pending
	return snapshot
}

// Depth returns the number of jobs not yet in a terminal state.
func (q *Queue) Depth() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	n := 0
	for _, j := range q.jobs {
		if j.Status != StatusCompleted && j.Status != StatusFailed {
			n++
		}
	}
	return n
}
