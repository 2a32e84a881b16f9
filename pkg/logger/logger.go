// Package logger wraps logrus with request-scoped fields carried on context.Context.
package logger

import (
	"context"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
)

type contextKey string

const (
	requestIDKey contextKey = "request_id"
	studentIDKey contextKey = "student_id"
)

var (
	base = logrus.New()
	mu   sync.RWMutex
)

// Init configures the process-wide logger. Production gets JSON output, anything else text.
func Init(env, level string) {
	mu.Lock()
	defer mu.Unlock()

	if env == "production" {
		base.SetFormatter(&logrus.JSONFormatter{TimestampFormat: "2006-01-02T15:04:05.000Z07:00"})
	} else {
		base.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	lvl, err := logrus.ParseLevel(strings.ToLower(level))
	if err != nil {
		lvl = logrus.InfoLevel
	}
	base.SetLevel(lvl)
	base.SetOutput(os.Stdout)
}

// SetOutput redirects log output. Tests use it to silence or capture logs.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	base.SetOutput(w)
}

// L returns the base logger entry without request fields.
func L() *logrus.Entry {
	mu.RLock()
	defer mu.RUnlock()
	return logrus.NewEntry(base)
}

func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

func WithStudentID(ctx context.Context, studentID string) context.Context {
	return context.WithValue(ctx, studentIDKey, studentID)
}

func GetRequestID(ctx context.Context) string {
	if v, ok := ctx.Value(requestIDKey).(string); ok {
		return v
	}
	return ""
}

// FromContext returns an entry annotated with request_id and student_id when present.
func FromContext(ctx context.Context) *logrus.Entry {
	entry := L()
	if ctx == nil {
		return entry
	}

	fields := logrus.Fields{}
	if requestID := GetRequestID(ctx); requestID != "" {
		fields["request_id"] = requestID
	}
	if studentID, ok := ctx.Value(studentIDKey).(string); ok && studentID != "" {
		fields["student_id"] = studentID
	}
	if len(fields) > 0 {
		entry = entry.WithFields(fields)
	}
	return entry
}
