// sentry.go - Sentry error tracking for the API and the maintenance CLI.
//
// Usage in main.go:
//
//	telemetry.InitSentry(cfg.SentryDSN, "api", cfg.Environment, version)
//	defer telemetry.Flush()
//
// Usage in handlers:
//
//	telemetry.CaptureError(err, map[string]string{"operation": "POST /rentals/movies/{movieId}"})
package telemetry

import (
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/getsentry/sentry-go"
)

// InitSentry initializes the Sentry SDK for a named service. dsn may be
// empty, in which case Sentry stays disabled and every capture is a no-op.
func InitSentry(dsn, serviceName, environment, release string) error {
	if dsn == "" {
		fmt.Fprintf(os.Stderr, "[telemetry] SENTRY_DSN not set, Sentry disabled for %s\n", serviceName)
		return nil
	}
	if environment == "" {
		environment = "development"
	}

	err := sentry.Init(sentry.ClientOptions{
		Dsn:              dsn,
		Environment:      environment,
		Release:          release,
		TracesSampleRate: 0.1,
		AttachStacktrace: true,
		Tags: map[string]string{
			"service": serviceName,
		},
		BeforeSend: func(event *sentry.Event, _ *sentry.EventHint) *sentry.Event {
			return scrubPII(event)
		},
	})
	if err != nil {
		return fmt.Errorf("sentry.Init: %w", err)
	}
	return nil
}

// CaptureError sends an error to Sentry with optional tags. Safe to call
// when Sentry is disabled.
func CaptureError(err error, tags map[string]string) {
	if err == nil {
		return
	}
	sentry.WithScope(func(scope *sentry.Scope) {
		for k, v := range tags {
			scope.SetTag(k, v)
		}
		sentry.CaptureException(err)
	})
}

// Flush waits for buffered events to be sent.
func Flush() {
	sentry.Flush(2 * time.Second)
}

// PanicRecoveryMiddleware catches panics, reports them with request
// context and answers with the JSON 500 envelope.
func PanicRecoveryMiddleware(serviceName string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				hub := sentry.CurrentHub().Clone()
				hub.Scope().SetRequest(r)
				hub.Scope().SetTag("service", serviceName)
				hub.Scope().SetTag("panic", "true")

				err, ok := rec.(error)
				if !ok {
					err = fmt.Errorf("panic: %v", rec)
				}
				hub.CaptureException(err)
				hub.Flush(2 * time.Second)

				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusInternalServerError)
				_, _ = w.Write([]byte(`{"error":"INTERNAL","message":"Internal server error"}`))
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// scrubbedHeaders never leave the process. The anonymous id is a bearer
// credential for guest rentals.
var scrubbedHeaders = map[string]bool{
	"authorization":  true,
	"cookie":         true,
	"x-anonymous-id": true,
}

// scrubPII removes credentials and personal data before transmission.
func scrubPII(event *sentry.Event) *sentry.Event {
	if event == nil {
		return nil
	}
	if event.User.Email != "" {
		event.User.Email = "[redacted]"
	}
	event.User.IPAddress = ""

	if event.Request != nil {
		for k := range event.Request.Headers {
			if scrubbedHeaders[strings.ToLower(k)] {
				event.Request.Headers[k] = "[redacted]"
			}
		}
		event.Request.Cookies = ""
		if strings.Contains(event.Request.QueryString, "token=") {
			event.Request.QueryString = "[redacted]"
		}
		if strings.Contains(event.Request.URL, "/video-tokens/validate/") {
			event.Request.URL = event.Request.URL[:strings.Index(event.Request.URL, "/video-tokens/validate/")] + "/video-tokens/validate/[redacted]"
		}
	}
	return event
}
