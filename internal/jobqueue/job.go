package jobqueue

import (
	"math"
	"math/rand"
	"time"
)

// Job is one unit of queued work.
type Job struct {
	ID          string
	Kind        Kind
	Payload     any
	Status      Status
	Attempts    int
	MaxAttempts int
	Retry       RetryConfig
	CreatedAt   time.Time
	NextRetryAt time.Time
	LastError   error
}

// due reports whether the job is ready to run at now.
func (j *Job) due(now time.Time) bool {
	if j.Status != StatusPending && j.Status != StatusRetrying {
		return false
	}
	return !j.NextRetryAt.After(now)
}

// backoffDelay computes the wait before attempt n (1-based), using
// exponential growth with up to 10% jitter, capped at MaxDelay.
func backoffDelay(cfg RetryConfig, attempt int) time.Duration {
	if cfg.InitialDelay <= 0 {
		cfg.InitialDelay = time.Second
	}
	if cfg.Multiplier < 1 {
		cfg.Multiplier = 2
	}

	delay := float64(cfg.InitialDelay) * math.Pow(cfg.Multiplier, float64(attempt-1))
	if cfg.MaxDelay > 0 && delay > float64(cfg.MaxDelay) {
		delay = float64(cfg.MaxDelay)
	}

	jitter := delay * 0.1 * rand.Float64()
	return time.Duration(delay + jitter)
}
