// Package sentryinit wires up error reporting for the eventspine services.
package sentryinit

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/getsentry/sentry-go"
	sentryhttp "github.com/getsentry/sentry-go/http"
)

var sentryEnabled atomic.Bool

// Init configures the global Sentry client. A blank dsn disables reporting
// and returns a nil handler.
func Init(dsn, environment, release string) (*sentryhttp.Handler, error) {
	if dsn == "" {
		sentryEnabled.Store(false)
		return nil, nil
	}
	if err := sentry.Init(sentry.ClientOptions{
		Dsn:         dsn,
		Environment: environment,
		Release:     release,
	}); err != nil {
		sentryEnabled.Store(false)
		return nil, err
	}
	sentryEnabled.Store(true)
	return sentryhttp.New(sentryhttp.Options{
		Repanic:         true,
		WaitForDelivery: true,
		Timeout:         5 * time.Second,
	}), nil
}

func Enabled() bool {
	return sentryEnabled.Load()
}

func CaptureLifecycleEvent(phase string, tags map[string]string, extras map[string]any) {
	if !Enabled() {
		return
	}
	sentry.WithScope(func(scope *sentry.Scope) {
		scope.SetTag("event", "lifecycle")
		scope.SetTag("lifecycle_phase", phase)
		scope.SetLevel(sentry.LevelInfo)
		for k, v := range tags {
			scope.SetTag(k, v)
		}
		for k, v := range extras {
			scope.SetExtra(k, v)
		}
		sentry.CaptureMessage(fmt.Sprintf("eventspine.lifecycle.%s", phase))
	})
}

// CaptureDeadLetter reports an envelope's terminal failure: the reliability
// router sending it to the DLQ, or the dispatcher exhausting retries.
func CaptureDeadLetter(topic, eventID, failureType string, attemptCount int, cause error) {
	if !Enabled() {
		return
	}
	sentry.WithScope(func(scope *sentry.Scope) {
		scope.SetTag("event", "dead_letter")
		scope.SetTag("topic", topic)
		scope.SetTag("failure_type", failureType)
		scope.SetExtra("event_id", eventID)
		scope.SetExtra("attempt_count", attemptCount)
		scope.SetLevel(sentry.LevelError)
		if cause != nil {
			sentry.CaptureException(cause)
			return
		}
		sentry.CaptureMessage(fmt.Sprintf("eventspine.dead_letter.%s", failureType))
	})
}

func Flush(timeout time.Duration) {
	if !Enabled() {
		return
	}
	sentry.Flush(timeout)
}
