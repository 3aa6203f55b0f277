package report

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// EventType represents the type of event
type EventType string

const (
	EventUpload  EventType = "upload"
	EventExtract EventType = "extract"
	EventMatch   EventType = "match"
	EventMerge   EventType = "merge"
	EventError   EventType = "error"
)

// EventLevel represents the severity level
type EventLevel string

const (
	LevelDebug   EventLevel = "debug"
	LevelInfo    EventLevel = "info"
	LevelWarning EventLevel = "warning"
	LevelError   EventLevel = "error"
)

// levelPriority maps event levels to numeric priorities for comparison
var levelPriority = map[EventLevel]int{
	LevelDebug:   0,
	LevelInfo:    1,
	LevelWarning: 2,
	LevelError:   3,
}

// ParseLevel maps a level name to an EventLevel, defaulting to info
func ParseLevel(name string) EventLevel {
	level := EventLevel(name)
	if _, ok := levelPriority[level]; ok {
		return level
	}
	return LevelInfo
}

// Event represents a single step of an ingest
type Event struct {
	Timestamp  time.Time         `json:"ts"`
	Level      EventLevel        `json:"level"`
	Event      EventType         `json:"event"`
	FileName   string            `json:"file_name,omitempty"`
	Archive    string            `json:"archive,omitempty"`
	Source     string            `json:"source,omitempty"`
	Query      string            `json:"query,omitempty"`
	Confidence float64           `json:"confidence,omitempty"`
	Bytes      int64             `json:"bytes,omitempty"`
	Duration   int64             `json:"duration_ms,omitempty"` // in milliseconds
	Error      string            `json:"error,omitempty"`
	Extra      map[string]string `json:"extra,omitempty"`
}

// EventLogger writes events to a JSONL file. A nil *EventLogger is valid
// and discards everything.
type EventLogger struct {
	file     *os.File
	encoder  *jsoniter.Encoder
	mu       sync.Mutex
	path     string
	minLevel EventLevel
}

// NewEventLogger creates a new event logger with a minimum log level
// minLevel determines which events are written (e.g., LevelInfo skips LevelDebug)
func NewEventLogger(outputDir string, minLevel EventLevel) (*EventLogger, error) {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	timestamp := time.Now().Format("20060102-150405")
	filename := fmt.Sprintf("events-%s.jsonl", timestamp)
	path := filepath.Join(outputDir, filename)

	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to create event log: %w", err)
	}

	return &EventLogger{
		file:     file,
		encoder:  json.NewEncoder(file),
		path:     path,
		minLevel: minLevel,
	}, nil
}

// Log writes an event to the JSONL file
func (l *EventLogger) Log(event *Event) error {
	if l == nil || l.file == nil {
		return nil
	}

	if levelPriority[event.Level] < levelPriority[l.minLevel] {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	if err := l.encoder.Encode(event); err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}

	return nil
}

// LogUpload logs an object upload
func (l *EventLogger) LogUpload(fileName, archive string, size int64, duration time.Duration, err error) error {
	level, errMsg := outcome(err)
	return l.Log(&Event{
		Level:    level,
		Event:    EventUpload,
		FileName: fileName,
		Archive:  archive,
		Bytes:    size,
		Duration: duration.Milliseconds(),
		Error:    errMsg,
	})
}

// LogExtract logs evidence gathered from one source for a file
func (l *EventLogger) LogExtract(fileName, source, title, artist string) error {
	level := LevelDebug
	if title != "" && artist != "" {
		level = LevelInfo
	}

	return l.Log(&Event{
		Level:    level,
		Event:    EventExtract,
		FileName: fileName,
		Source:   source,
		Extra: map[string]string{
			"title":  title,
			"artist": artist,
		},
	})
}

// LogMatch logs the outcome of a catalog lookup
func (l *EventLogger) LogMatch(fileName, query, source string, candidates int, confidence float64) error {
	level := LevelInfo
	if candidates == 0 {
		level = LevelWarning
	}

	return l.Log(&Event{
		Level:      level,
		Event:      EventMatch,
		FileName:   fileName,
		Query:      query,
		Source:     source,
		Confidence: confidence,
		Extra: map[string]string{
			"candidates": fmt.Sprintf("%d", candidates),
		},
	})
}

// LogMerge logs a metadata store write
func (l *EventLogger) LogMerge(fileName string, fields []string, err error) error {
	level, errMsg := outcome(err)
	extra := map[string]string{}
	if len(fields) > 0 {
		extra["fields"] = fmt.Sprintf("%v", fields)
	}

	return l.Log(&Event{
		Level:    level,
		Event:    EventMerge,
		FileName: fileName,
		Error:    errMsg,
		Extra:    extra,
	})
}

// LogError logs a failure at any step
func (l *EventLogger) LogError(fileName, archive string, err error) error {
	return l.Log(&Event{
		Level:    LevelError,
		Event:    EventError,
		FileName: fileName,
		Archive:  archive,
		Error:    err.Error(),
	})
}

func outcome(err error) (EventLevel, string) {
	if err != nil {
		return LevelError, err.Error()
	}
	return LevelInfo, ""
}

// Close closes the event log file
func (l *EventLogger) Close() error {
	if l == nil || l.file == nil {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	return l.file.Close()
}

// Path returns the path to the event log file
func (l *EventLogger) Path() string {
	if l == nil {
		return ""
	}
	return l.path
}

// NullLogger returns a no-op event logger
func NullLogger() *EventLogger {
	return nil
}
