// Package jobqueue provides a bounded-concurrency job dispatcher with a
// single shared FIFO across job kinds, optional per-job retry policies,
// and graceful shutdown.
package jobqueue

import (
	"context"
	"errors"
	"time"
)

// Common errors returned by queue operations.
var (
	ErrNoHandler    = errors.New("no handler registered for job kind")
	ErrQueueStopped = errors.New("job queue has been stopped")
	ErrQueueFull    = errors.New("job queue is full")
)

// Kind identifies the pipeline stage a job belongs to.
type Kind string

const (
	KindAnalyze  Kind = "analyze"
	KindSeparate Kind = "separate"
	KindPlan     Kind = "plan"
	KindRender   Kind = "render"
)

// Handler executes one job. Side effects on the catalog and object
// store are the only observable result; a returned error is logged and
// swallowed unless the job's retry policy says otherwise.
type Handler func(ctx context.Context, payload any) error

// RetryConfig controls retry behavior for a job. The zero value
// disables retries, which is the default for all pipeline kinds.
type RetryConfig struct {
	Enabled      bool
	MaxRetries   int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}

// Status is a job's lifecycle state.
type Status int

const (
	StatusPending Status = iota
	StatusRunning
	StatusCompleted
	StatusFailed
	StatusRetrying
)

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusRunning:
		return "running"
	case StatusCompleted:
		return "completed"
	case StatusFailed:
		return "failed"
	case StatusRetrying:
		return "retrying"
	default:
		return "unknown"
	}
}

// KindStats aggregates per-kind outcomes.
type KindStats struct {
	Enqueued  int
	Completed int
	Failed    int
	Retried   int
	Dropped   int
}

// Stats is a point-in-time snapshot of queue counters.
type Stats struct {
	TotalJobs   int
	Completed   int
	Failed      int
	Dropped     int
	Archived    int
	PendingJobs int
	RunningJobs int
	PerKind     map[Kind]KindStats
}

// Metrics receives queue observations; the observability package
// provides a Prometheus-backed implementation. A nil Metrics is valid.
type Metrics interface {
	JobEnqueued(kind string)
	JobFinished(kind, status string, elapsed time.Duration)
	QueueDepth(depth int)
}
