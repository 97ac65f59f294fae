// Package telemetry ships enhanced errors to Sentry. Reporting is
// opt-in and every message is scrubbed before leaving the process:
// users upload personal music libraries, so filenames, paths, and
// addresses never appear in an event.
package telemetry

import (
	"fmt"
	"time"

	"github.com/getsentry/sentry-go"

	"github.com/automixer/automix-go/internal/conf"
	"github.com/automixer/automix-go/internal/errors"
	"github.com/automixer/automix-go/internal/logging"
)

// Reporter implements errors.Reporter on top of Sentry. A disabled
// reporter is a no-op, so callers never branch on configuration.
type Reporter struct {
	enabled bool
}

// Init configures Sentry from settings and installs the reporter into
// the errors package. With Sentry disabled it installs nothing.
func Init(settings *conf.Settings) (*Reporter, error) {
	if !settings.Sentry.Enabled {
		return &Reporter{}, nil
	}

	err := sentry.Init(sentry.ClientOptions{
		Dsn:              settings.Sentry.DSN,
		Release:          "automix-go@" + settings.Version,
		AttachStacktrace: true,
	})
	if err != nil {
		return nil, fmt.Errorf("sentry init failed: %w", err)
	}

	r := &Reporter{enabled: true}
	errors.SetReporter(r)
	logging.ForService("telemetry").Info("sentry error reporting enabled")
	return r, nil
}

// ReportError sends one enhanced error, tagged by component and
// category, with scrubbed message and context.
func (r *Reporter) ReportError(ee *errors.EnhancedError) {
	if !r.enabled {
		return
	}

	sentry.WithScope(func(scope *sentry.Scope) {
		scope.SetTag("component", ee.GetComponent())
		scope.SetTag("category", ee.GetCategory())
		for key, value := range ee.GetContext() {
			scope.SetExtra(key, ScrubMessage(fmt.Sprintf("%v", value)))
		}
		sentry.CaptureMessage(ScrubMessage(ee.Error()))
	})
}

// Flush blocks until buffered events are sent or the timeout elapses.
// Called on shutdown.
func (r *Reporter) Flush(timeout time.Duration) {
	if r.enabled {
		sentry.Flush(timeout)
	}
}
