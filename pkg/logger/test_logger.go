package logger

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog"
)

// LogMessage is one captured log line
type LogMessage struct {
	Level   string
	Message string
	Fields  map[string]interface{}
	Error   error
}

// testRecord is shared by a TestLogger and every logger derived from it
type testRecord struct {
	mu       sync.Mutex
	messages []LogMessage
}

// TestLogger captures log output in memory for assertions
type TestLogger struct {
	record *testRecord
	fields map[string]interface{}
	err    error
}

// NewTestLogger creates an empty capturing logger
func NewTestLogger() *TestLogger {
	return &TestLogger{record: &testRecord{}}
}

func (l *TestLogger) Debug(msg string) { l.log("debug", msg, nil) }
func (l *TestLogger) Info(msg string)  { l.log("info", msg, nil) }
func (l *TestLogger) Warn(msg string)  { l.log("warn", msg, nil) }
func (l *TestLogger) Error(msg string) { l.log("error", msg, nil) }

// Fatal records the message without exiting
func (l *TestLogger) Fatal(msg string) { l.log("fatal", msg, nil) }

func (l *TestLogger) DebugWithFields(msg string, fields map[string]interface{}) {
	l.log("debug", msg, fields)
}

func (l *TestLogger) InfoWithFields(msg string, fields map[string]interface{}) {
	l.log("info", msg, fields)
}

func (l *TestLogger) WarnWithFields(msg string, fields map[string]interface{}) {
	l.log("warn", msg, fields)
}

func (l *TestLogger) ErrorWithFields(msg string, fields map[string]interface{}) {
	l.log("error", msg, fields)
}

func (l *TestLogger) FatalWithFields(msg string, fields map[string]interface{}) {
	l.log("fatal", msg, fields)
}

func (l *TestLogger) WithField(key string, value interface{}) Logger {
	return l.derive(map[string]interface{}{key: value}, l.err)
}

func (l *TestLogger) WithFields(fields map[string]interface{}) Logger {
	return l.derive(fields, l.err)
}

func (l *TestLogger) WithError(err error) Logger {
	if err == nil {
		return l
	}
	return l.derive(nil, err)
}

func (l *TestLogger) WithContext(ctx context.Context) Logger {
	return l
}

func (l *TestLogger) GetZerolog() *zerolog.Logger {
	nop := zerolog.Nop()
	return &nop
}

func (l *TestLogger) derive(fields map[string]interface{}, err error) *TestLogger {
	merged := make(map[string]interface{}, len(l.fields)+len(fields))
	for k, v := range l.fields {
		merged[k] = v
	}
	for k, v := range fields {
		merged[k] = v
	}
	return &TestLogger{record: l.record, fields: merged, err: err}
}

func (l *TestLogger) log(level, msg string, fields map[string]interface{}) {
	all := make(map[string]interface{}, len(l.fields)+len(fields))
	for k, v := range l.fields {
		all[k] = v
	}
	for k, v := range fields {
		all[k] = v
	}

	l.record.mu.Lock()
	defer l.record.mu.Unlock()
	l.record.messages = append(l.record.messages, LogMessage{
		Level:   level,
		Message: msg,
		Fields:  all,
		Error:   l.err,
	})
}

// GetMessages returns a copy of everything logged so far
func (l *TestLogger) GetMessages() []LogMessage {
	l.record.mu.Lock()
	defer l.record.mu.Unlock()
	out := make([]LogMessage, len(l.record.messages))
	copy(out, l.record.messages)
	return out
}

// GetMessagesByLevel returns the messages logged at level
func (l *TestLogger) GetMessagesByLevel(level string) []LogMessage {
	var out []LogMessage
	for _, m := range l.GetMessages() {
		if m.Level == level {
			out = append(out, m)
		}
	}
	return out
}

// HasMessage reports whether any message contains text
func (l *TestLogger) HasMessage(text string) bool {
	for _, m := range l.GetMessages() {
		if strings.Contains(m.Message, text) {
			return true
		}
	}
	return false
}

// HasError reports whether anything was logged at error level
func (l *TestLogger) HasError() bool {
	return len(l.GetMessagesByLevel("error")) > 0
}

// Clear drops all captured messages
func (l *TestLogger) Clear() {
	l.record.mu.Lock()
	l.record.messages = nil
	l.record.mu.Unlock()
}

func (l *TestLogger) String() string {
	var sb strings.Builder
	for _, m := range l.GetMessages() {
		fmt.Fprintf(&sb, "[%s] %s", strings.ToUpper(m.Level), m.Message)
		if len(m.Fields) > 0 {
			fmt.Fprintf(&sb, " %v", m.Fields)
		}
		if m.Error != nil {
			fmt.Fprintf(&sb, " error=%v", m.Error)
		}
		sb.WriteString("\n")
	}
	return sb.String()
}
