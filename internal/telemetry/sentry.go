// Package telemetry wires the runner's ambient error reporting: a
// no-op unless SENTRY_DSN is set, so a laptop run without a DSN pays
// nothing, while a deployed runner reports fatal step and manifest
// errors automatically.
package telemetry

import (
	"os"
	"time"

	"github.com/getsentry/sentry-go"
)

const flushTimeout = 2 * time.Second

// Init initializes the Sentry SDK for the given release version. If
// SENTRY_DSN is not set, reporting is disabled and Init is a no-op.
// Returns a cleanup function the caller should defer.
func Init(version string) func() {
	dsn := os.Getenv("SENTRY_DSN")
	if dsn == "" {
		return func() {}
	}

	env := os.Getenv("SENTRY_ENVIRONMENT")
	if env == "" {
		env = "production"
	}

	err := sentry.Init(sentry.ClientOptions{
		Dsn:              dsn,
		Release:          "stepforge@" + version,
		Environment:      env,
		AttachStacktrace: true,
		SampleRate:       1.0,
	})
	if err != nil {
		return func() {}
	}

	return func() {
		sentry.Flush(flushTimeout)
	}
}

// CaptureError reports an error to Sentry if initialized. Safe to
// call even when reporting is disabled.
func CaptureError(err error) {
	if err == nil {
		return
	}
	sentry.CaptureException(err)
}

// AddBreadcrumb records a step of context for a later error report,
// e.g. "step:attempt" / "s3 attempt 2/3".
func AddBreadcrumb(category, message string) {
	sentry.AddBreadcrumb(&sentry.Breadcrumb{
		Category: category,
		Message:  message,
		Level:    sentry.LevelInfo,
	})
}

// SetTag attaches a searchable tag (e.g. job_id, task_name) to
// subsequently reported events.
func SetTag(key, value string) {
	sentry.ConfigureScope(func(scope *sentry.Scope) {
		scope.SetTag(key, value)
	})
}
