package models

import "time"

// LogLevel is the severity of a console log entry.
type LogLevel string

const (
	LogLevelInfo    LogLevel = "info"
	LogLevelWarn    LogLevel = "warn"
	LogLevelError   LogLevel = "error"
	LogLevelSuccess LogLevel = "success"
)

// Valid reports whether l is one of the known levels.
func (l LogLevel) Valid() bool {
	switch l {
	case LogLevelInfo, LogLevelWarn, LogLevelError, LogLevelSuccess:
		return true
	}
	return false
}

// ConsoleLog is an entry in a project's console panel.
type ConsoleLog struct {
	CreatedAt time.Time `json:"createdAt"`
	ID        string    `json:"id"`
	ProjectID string    `json:"projectId"`
	Level     LogLevel  `json:"level"`
	Source    string    `json:"source"`
	Message   string    `json:"message"`
}
