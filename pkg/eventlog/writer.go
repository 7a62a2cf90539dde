// Package eventlog provides the session activity log: one JSONL record per
// workflow event, written to daily rotated files.
package eventlog

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Record is one activity log entry.
type Record struct {
	Timestamp time.Time      `json:"ts"`
	SessionID string         `json:"session_id"`
	Event     string         `json:"event"`
	Fields    map[string]any `json:"fields,omitempty"`
}

// Writer appends activity records to daily rotated JSONL files.
type Writer struct {
	logDir      string
	sessionID   string
	mu          sync.Mutex
	currentFile *os.File
	currentDate string
}

// NewWriter creates an activity log writer rooted at logDir. The directory is
// created if missing.
func NewWriter(logDir, sessionID string) (*Writer, error) {
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	writer := &Writer{
		logDir:    logDir,
		sessionID: sessionID,
	}

	if err := writer.rotateIfNeeded(); err != nil {
		return nil, fmt.Errorf("failed to initialize log file: %w", err)
	}

	return writer, nil
}

// Append writes one event record to the current log file, rotating first if
// the day changed since the last write.
func (w *Writer) Append(event string, fields map[string]any) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.rotateIfNeeded(); err != nil {
		return fmt.Errorf("failed to rotate log file: %w", err)
	}

	record := Record{
		Timestamp: time.Now().UTC(),
		SessionID: w.sessionID,
		Event:     event,
		Fields:    fields,
	}

	data, err := json.Marshal(&record)
	if err != nil {
		return fmt.Errorf("failed to serialize record: %w", err)
	}

	if _, err := w.currentFile.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("failed to write record: %w", err)
	}

	if err := w.currentFile.Sync(); err != nil {
		return fmt.Errorf("failed to sync file: %w", err)
	}

	return nil
}

func (w *Writer) rotateIfNeeded() error {
	newDate := time.Now().Format("2006-01-02")
	if w.currentFile == nil || w.currentDate != newDate {
		return w.rotate(newDate)
	}
	return nil
}

func (w *Writer) rotate(newDate string) error {
	if w.currentFile != nil {
		if err := w.currentFile.Close(); err != nil {
			return fmt.Errorf("failed to close current log file: %w", err)
		}
	}

	path := filepath.Join(w.logDir, fmt.Sprintf("activity-%s.jsonl", newDate))
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to open log file %s: %w", path, err)
	}

	w.currentFile = file
	w.currentDate = newDate
	return nil
}

// Close closes the current log file.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.currentFile != nil {
		err := w.currentFile.Close()
		w.currentFile = nil
		if err != nil {
			return fmt.Errorf("failed to close activity log file: %w", err)
		}
	}

	return nil
}

// CurrentLogFile returns the path of the currently active log file.
func (w *Writer) CurrentLogFile() string {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.currentFile == nil {
		return ""
	}
	return filepath.Join(w.logDir, fmt.Sprintf("activity-%s.jsonl", w.currentDate))
}

// ReadRecords reads and parses all records from a log file.
func ReadRecords(path string) ([]*Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read log file: %w", err)
	}

	var records []*Record
	var line []byte
	flush := func() error {
		if len(line) == 0 {
			return nil
		}
		var record Record
		if err := json.Unmarshal(line, &record); err != nil {
			return fmt.Errorf("failed to parse record: %w", err)
		}
		records = append(records, &record)
		line = nil
		return nil
	}

	for _, b := range data {
		if b == '\n' {
			if err := flush(); err != nil {
				return nil, err
			}
			continue
		}
		line = append(line, b)
	}
	if err := flush(); err != nil {
		return nil, err
	}

	return records, nil
}

// ListLogFiles returns all activity log files under logDir.
func ListLogFiles(logDir string) ([]string, error) {
	files, err := filepath.Glob(filepath.Join(logDir, "activity-*.jsonl"))
	if err != nil {
		return nil, fmt.Errorf("failed to list log files: %w", err)
	}
	return files, nil
}
