// Package models contains domain models for devdeck.
package models

import (
	"database/sql/driver"
	"fmt"
	"time"

	"github.com/goccy/go-json"
)

// EmptyOutputPlaceholder replaces the output of a command that printed nothing.
const EmptyOutputPlaceholder = "Command executed successfully"

// ExecutionRecord is one command run inside a terminal session.
// Records are never modified after they are appended to a history.
type ExecutionRecord struct {
	Command   string `json:"command"`
	Output    string `json:"output"`
	Timestamp string `json:"timestamp"`
	ExitCode  int    `json:"exitCode"`
}

// Succeeded reports whether the command exited with status 0.
func (r ExecutionRecord) Succeeded() bool {
	return r.ExitCode == 0
}

// ExecutionHistory is the ordered list of records of a session, oldest first.
// It is stored as a JSON array in a single column and always encodes as an
// array, never as null.
type ExecutionHistory []ExecutionRecord

// Append returns a new history with rec added at the end.
// The receiver is left untouched so earlier snapshots stay valid.
func (h ExecutionHistory) Append(rec ExecutionRecord) ExecutionHistory {
	next := make(ExecutionHistory, len(h), len(h)+1)
	copy(next, h)
	return append(next, rec)
}

// Last returns the most recent record.
func (h ExecutionHistory) Last() (ExecutionRecord, bool) {
	if len(h) == 0 {
		return ExecutionRecord{}, false
	}
	return h[len(h)-1], true
}

// MarshalJSON implements json.Marshaler.
func (h ExecutionHistory) MarshalJSON() ([]byte, error) {
	if h == nil {
		return []byte("[]"), nil
	}
	return json.Marshal([]ExecutionRecord(h))
}

// Scan implements sql.Scanner.
func (h *ExecutionHistory) Scan(value interface{}) error {
	var data []byte
	switch v := value.(type) {
	case nil:
		*h = ExecutionHistory{}
		return nil
	case string:
		data = []byte(v)
	case []byte:
		data = v
	default:
		return fmt.Errorf("scan execution history: unsupported type %T", value)
	}
	if len(data) == 0 {
		*h = ExecutionHistory{}
		return nil
	}

	var records []ExecutionRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return fmt.Errorf("scan execution history: %w", err)
	}
	if records == nil {
		records = []ExecutionRecord{}
	}
	*h = records
	return nil
}

// Value implements driver.Valuer.
func (h ExecutionHistory) Value() (driver.Value, error) {
	data, err := h.MarshalJSON()
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

// TerminalSession is a named terminal context with its execution history.
type TerminalSession struct {
	CreatedAt time.Time        `json:"createdAt"`
	UpdatedAt time.Time        `json:"updatedAt"`
	ID        string           `json:"id"`
	ProjectID string           `json:"projectId"`
	Name      string           `json:"name"`
	History   ExecutionHistory `json:"history"`
	Version   int64            `json:"version"`
}

// FormatTimestamp renders t the way execution timestamps are stored.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.000Z07:00")
}
