// Package gorm provides GORM-based database operations for devdeck.
package gorm

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/thebtf/devdeck/pkg/models"
)

// DefaultLogLimit is the number of console entries returned when no limit is given.
const DefaultLogLimit = 200

// LogStore provides console log database operations using GORM.
type LogStore struct {
	db *gorm.DB
}

// NewLogStore creates a new console log store.
func NewLogStore(store *Store) *LogStore {
	return &LogStore{db: store.DB}
}

// CreateLog inserts a console log entry.
func (s *LogStore) CreateLog(ctx context.Context, entry *models.ConsoleLog) (*models.ConsoleLog, error) {
	if entry.Message == "" {
		return nil, fmt.Errorf("log message is required: %w", models.ErrValidation)
	}
	if entry.Level != "" && !entry.Level.Valid() {
		return nil, fmt.Errorf("unknown log level %q: %w", entry.Level, models.ErrValidation)
	}

	row := &ConsoleLog{
		ProjectID: entry.ProjectID,
		Level:     string(entry.Level),
		Source:    entry.Source,
		Message:   entry.Message,
	}
	if err := s.db.WithContext(ctx).Create(row).Error; err != nil {
		return nil, fmt.Errorf("create console log: %w", err)
	}
	return row.toModel(), nil
}

// ListLogs returns the newest entries of a project, oldest first.
func (s *LogStore) ListLogs(ctx context.Context, projectID string, limit int) ([]*models.ConsoleLog, error) {
	if limit <= 0 {
		limit = DefaultLogLimit
	}

	var rows []ConsoleLog
	err := s.db.WithContext(ctx).
		Where("project_id = ?", projectID).
		Order("created_at DESC").
		Order("id DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("list console logs: %w", err)
	}

	logs := make([]*models.ConsoleLog, len(rows))
	for i := range rows {
		logs[len(rows)-1-i] = rows[i].toModel()
	}
	return logs, nil
}

// ClearLogs deletes all entries of a project and returns how many were removed.
func (s *LogStore) ClearLogs(ctx context.Context, projectID string) (int64, error) {
	res := s.db.WithContext(ctx).Where("project_id = ?", projectID).Delete(&ConsoleLog{})
	if res.Error != nil {
		return 0, fmt.Errorf("clear console logs: %w", res.Error)
	}
	return res.RowsAffected, nil
}
