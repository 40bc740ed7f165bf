// Package gorm provides GORM-based database operations for devdeck.
package gorm

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/thebtf/devdeck/pkg/models"
)

// TerminalStore provides terminal session database operations using GORM.
type TerminalStore struct {
	db *gorm.DB
}

// NewTerminalStore creates a new terminal store.
func NewTerminalStore(store *Store) *TerminalStore {
	return &TerminalStore{db: store.DB}
}

// CreateSession inserts a session with an empty history.
func (s *TerminalStore) CreateSession(ctx context.Context, projectID, name string) (*models.TerminalSession, error) {
	row := &TerminalSession{
		ProjectID: projectID,
		Name:      name,
		History:   models.ExecutionHistory{},
	}
	if err := s.db.WithContext(ctx).Create(row).Error; err != nil {
		return nil, fmt.Errorf("create terminal session: %w", err)
	}
	return row.toModel(), nil
}

// GetSession returns the session with id.
func (s *TerminalStore) GetSession(ctx context.Context, id string) (*models.TerminalSession, error) {
	var row TerminalSession
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&row).Error; err != nil {
		return nil, notFound(err, "terminal session", id)
	}
	return row.toModel(), nil
}

// ListSessions returns the sessions of a project in creation order.
func (s *TerminalStore) ListSessions(ctx context.Context, projectID string) ([]*models.TerminalSession, error) {
	var rows []TerminalSession
	err := s.db.WithContext(ctx).
		Where("project_id = ?", projectID).
		Order("created_at ASC").
		Order("id").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("list terminal sessions: %w", err)
	}

	sessions := make([]*models.TerminalSession, len(rows))
	for i := range rows {
		sessions[i] = rows[i].toModel()
	}
	return sessions, nil
}

// CountSessions returns how many sessions a project has.
func (s *TerminalStore) CountSessions(ctx context.Context, projectID string) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).
		Model(&TerminalSession{}).
		Where("project_id = ?", projectID).
		Count(&count).Error
	return count, err
}

// RenameSession changes the display name of a session.
func (s *TerminalStore) RenameSession(ctx context.Context, id, name string) (*models.TerminalSession, error) {
	res := s.db.WithContext(ctx).
		Model(&TerminalSession{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{"name": name, "updated_at": time.Now().UTC()})
	if res.Error != nil {
		return nil, fmt.Errorf("rename terminal session: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, fmt.Errorf("terminal session %s: %w", id, models.ErrNotFound)
	}
	return s.GetSession(ctx, id)
}

// ReplaceHistory writes the full history of a session if its version still
// equals expectedVersion, bumping the version by one.
// Returns models.ErrConflict when another writer got there first and
// models.ErrNotFound when the session is gone.
func (s *TerminalStore) ReplaceHistory(ctx context.Context, id string, expectedVersion int64, history models.ExecutionHistory) (*models.TerminalSession, error) {
	if history == nil {
		history = models.ExecutionHistory{}
	}

	res := s.db.WithContext(ctx).
		Model(&TerminalSession{}).
		Where("id = ? AND version = ?", id, expectedVersion).
		Updates(map[string]interface{}{
			"history":    history,
			"version":    gorm.Expr("version + 1"),
			"updated_at": time.Now().UTC(),
		})
	if res.Error != nil {
		return nil, fmt.Errorf("replace history: %w", res.Error)
	}

	if res.RowsAffected == 0 {
		if _, err := s.GetSession(ctx, id); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("terminal session %s at version %d: %w", id, expectedVersion, models.ErrConflict)
	}
	return s.GetSession(ctx, id)
}

// DeleteSession removes a session. Returns false when it did not exist.
func (s *TerminalStore) DeleteSession(ctx context.Context, id string) (bool, error) {
	res := s.db.WithContext(ctx).Where("id = ?", id).Delete(&TerminalSession{})
	if res.Error != nil {
		return false, fmt.Errorf("delete terminal session %s: %w", id, res.Error)
	}
	return res.RowsAffected > 0, nil
}
