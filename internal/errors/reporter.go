package errors

import "sync"

// Reporter receives enhanced errors for telemetry purposes. The telemetry
// package registers an implementation at startup; when none is registered,
// errors are built without side effects.
type Reporter interface {
	ReportError(ee *EnhancedError)
}

var (
	activeReporter Reporter
	reporterMu     sync.RWMutex
)

// SetReporter installs the telemetry reporter. Passing nil disables reporting.
func SetReporter(r Reporter) {
	reporterMu.Lock()
	defer reporterMu.Unlock()
	activeReporter = r
}

func report(ee *EnhancedError) {
	reporterMu.RLock()
	r := activeReporter
	reporterMu.RUnlock()
	if r == nil {
		return
	}
	r.ReportError(ee)
	ee.MarkReported()
}
