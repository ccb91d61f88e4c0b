// Package streamlog is an allowlist logger for the endpoints the video
// server calls on every segment request. Those log lines must never carry a
// token, the viewer's identity, their IP address or the title being watched.
//
//	sl := streamlog.New("video-token-validate")
//	sl.Log(streamlog.Fields{"status": 200, "duration_ms": 3})
//
// Fields outside PermittedFields are dropped silently.
package streamlog

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// SafeLogger wraps logrus and filters every call through the allowlist.
// Create instances with New.
type SafeLogger struct {
	entry *logrus.Entry
}

// New creates a SafeLogger for the named component writing JSON to stdout.
func New(service string) *SafeLogger {
	return NewWithWriter(os.Stdout, service, os.Getenv("LOG_LEVEL"))
}

// NewWithWriter is New with an explicit sink and level.
func NewWithWriter(w io.Writer, service, levelStr string) *SafeLogger {
	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{
		TimestampFormat: "2006-01-02T15:04:05.000Z07:00",
	})
	log.SetOutput(w)

	level, err := logrus.ParseLevel(levelStr)
	if err != nil || levelStr == "" {
		level = logrus.InfoLevel
	}
	log.SetLevel(level)

	return &SafeLogger{entry: log.WithField("service", service)}
}

// Fields is a set of log fields.
type Fields = map[string]interface{}

// Log writes an INFO line with the permitted subset of fields.
func (l *SafeLogger) Log(fields Fields) {
	l.entry.WithFields(sanitize(fields)).Info("stream")
}

// LogError writes an ERROR line. err must be a technical description that
// names no viewer.
func (l *SafeLogger) LogError(err error, fields Fields) {
	if err == nil {
		l.Log(fields)
		return
	}
	merged := make(Fields, len(fields)+1)
	for k, v := range fields {
		merged[k] = v
	}
	merged["error"] = err.Error()
	l.entry.WithFields(sanitize(merged)).Error("stream_error")
}

func sanitize(fields Fields) logrus.Fields {
	safe := make(logrus.Fields, len(fields))
	for k, v := range fields {
		if isPermitted(k) {
			safe[k] = v
		}
	}
	return safe
}
