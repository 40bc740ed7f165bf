package models

import (
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestExecutionHistoryScan tests scanning the history column.
func TestExecutionHistoryScan(t *testing.T) {
	tests := []struct {
		input    interface{}
		name     string
		expected ExecutionHistory
		wantErr  bool
	}{
		{
			name:     "nil input",
			input:    nil,
			expected: ExecutionHistory{},
		},
		{
			name:     "empty string",
			input:    "",
			expected: ExecutionHistory{},
		},
		{
			name:     "json null",
			input:    "null",
			expected: ExecutionHistory{},
		},
		{
			name:  "json array string",
			input: `[{"command":"ls","output":"a","timestamp":"2026-01-01T00:00:00.000Z","exitCode":0}]`,
			expected: ExecutionHistory{
				{Command: "ls", Output: "a", Timestamp: "2026-01-01T00:00:00.000Z", ExitCode: 0},
			},
		},
		{
			name:  "json array bytes",
			input: []byte(`[{"command":"false","output":"x","exitCode":1}]`),
			expected: ExecutionHistory{
				{Command: "false", Output: "x", ExitCode: 1},
			},
		},
		{
			name:    "invalid json",
			input:   "{",
			wantErr: true,
		},
		{
			name:    "unsupported type",
			input:   42,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var h ExecutionHistory
			err := h.Scan(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, h)
			assert.Equal(t, tt.expected, h)
		})
	}
}

func TestExecutionHistoryValueNeverNull(t *testing.T) {
	var h ExecutionHistory
	v, err := h.Value()
	require.NoError(t, err)
	assert.Equal(t, "[]", v)

	data, err := json.Marshal(TerminalSession{ID: "s1"})
	require.NoError(t, err)
	assert.Contains(t, string(data), `"history":[]`)
}

func TestExecutionHistoryAppendDoesNotAlias(t *testing.T) {
	base := make(ExecutionHistory, 1, 4)
	base[0] = ExecutionRecord{Command: "one"}

	a := base.Append(ExecutionRecord{Command: "two"})
	b := base.Append(ExecutionRecord{Command: "three"})

	assert.Len(t, base, 1)
	assert.Equal(t, "two", a[1].Command)
	assert.Equal(t, "three", b[1].Command)

	last, ok := a.Last()
	assert.True(t, ok)
	assert.Equal(t, "two", last.Command)

	_, ok = ExecutionHistory{}.Last()
	assert.False(t, ok)
}

func TestFormatTimestamp(t *testing.T) {
	ts := time.Date(2026, 3, 4, 5, 6, 7, 8_000_000, time.FixedZone("X", 3600))
	assert.Equal(t, "2026-03-04T04:06:07.008Z", FormatTimestamp(ts))
}
