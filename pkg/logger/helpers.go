package logger

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// LogComponentStart logs component initialization
func LogComponentStart(l Logger, component string, fields map[string]interface{}) {
	l.WithField("component", component).InfoWithFields("Component starting", fields)
}

// LogComponentStop logs component shutdown
func LogComponentStop(l Logger, component string, err error) {
	log := l.WithField("component", component)
	if err != nil {
		log.WithError(err).Error("Component stopped with error")
		return
	}
	log.Info("Component stopped")
}

// LogTraversalStop logs why a traversal ended and how much it gathered
func LogTraversalStop(l Logger, reason string, cycles, collected int, elapsed time.Duration) {
	l.InfoWithFields("Traversal finished", map[string]interface{}{
		"reason":    reason,
		"cycles":    cycles,
		"collected": collected,
		"elapsed":   elapsed,
	})
}

// LogOutcome logs the result of materializing one image reference
func LogOutcome(l Logger, index int, kind, path string, bytes int64, err error) {
	fields := map[string]interface{}{
		"index": index,
		"kind":  kind,
	}
	if err != nil {
		l.WithError(err).WarnWithFields("Image failed", fields)
		return
	}
	fields["path"] = path
	fields["bytes"] = bytes
	l.DebugWithFields("Image saved", fields)
}

// LogRequest logs one HTTP request handled by the relay
func LogRequest(l Logger, method, path string, statusCode int, duration time.Duration) {
	fields := map[string]interface{}{
		"method":      method,
		"path":        path,
		"status_code": statusCode,
		"duration":    duration,
	}

	switch {
	case statusCode >= 500:
		l.ErrorWithFields("HTTP request server error", fields)
	case statusCode >= 400:
		l.WarnWithFields("HTTP request client error", fields)
	default:
		l.DebugWithFields("HTTP request completed", fields)
	}
}

// NewNopLogger returns a logger that discards everything
func NewNopLogger() Logger {
	return &nopLogger{}
}

type nopLogger struct{}

func (n *nopLogger) Debug(msg string)                                          {}
func (n *nopLogger) Info(msg string)                                           {}
func (n *nopLogger) Warn(msg string)                                           {}
func (n *nopLogger) Error(msg string)                                          {}
func (n *nopLogger) Fatal(msg string)                                          {}
func (n *nopLogger) WithField(key string, value interface{}) Logger           { return n }
func (n *nopLogger) WithFields(fields map[string]interface{}) Logger          { return n }
func (n *nopLogger) WithError(err error) Logger                               { return n }
func (n *nopLogger) WithContext(ctx context.Context) Logger                   { return n }
func (n *nopLogger) DebugWithFields(msg string, fields map[string]interface{}) {}
func (n *nopLogger) InfoWithFields(msg string, fields map[string]interface{})  {}
func (n *nopLogger) WarnWithFields(msg string, fields map[string]interface{})  {}
func (n *nopLogger) ErrorWithFields(msg string, fields map[string]interface{}) {}
func (n *nopLogger) FatalWithFields(msg string, fields map[string]interface{}) {}
func (n *nopLogger) GetZerolog() *zerolog.Logger {
	nop := zerolog.Nop()
	return &nop
}
