package cliutil

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/theratcoder/ratinit/internal/supervisor"
)

// LogRecord represents a structured log event ready for JSON encoding.
type LogRecord struct {
	Timestamp time.Time `json:"ts"`
	Service   string    `json:"service,omitempty"`
	Level     string    `json:"level"`
	Type      string    `json:"type"`
	Message   string    `json:"msg"`
	PID       int       `json:"pid,omitempty"`
	Error     string    `json:"error,omitempty"`
}

// NewLogRecord converts a supervisor event into a structured log record.
func NewLogRecord(event supervisor.Event) LogRecord {
	level := "info"
	switch event.Type {
	case supervisor.EventTypeError, supervisor.EventTypeStartFailed:
		level = "error"
	case supervisor.EventTypeRestarting, supervisor.EventTypeStopping:
		level = "warn"
	}
	record := LogRecord{
		Timestamp: event.Timestamp,
		Service:   event.Service,
		Level:     level,
		Type:      string(event.Type),
		Message:   event.Message,
		PID:       event.PID,
	}
	if event.Err != nil {
		record.Error = event.Err.Error()
	}
	return record
}

// EncodeLogEvent encodes a log event to JSON, reporting errors to stderr if needed.
func EncodeLogEvent(enc *json.Encoder, stderr io.Writer, event supervisor.Event) {
	if enc == nil {
		return
	}
	record := NewLogRecord(event)
	if record.Timestamp.IsZero() {
		record.Timestamp = time.Now()
	}
	if err := enc.Encode(&record); err != nil {
		fmt.Fprintf(stderr, "error: encode log: %v\n", err)
	}
}
