// Package gorm provides GORM-based database operations for devdeck.
package gorm

import (
	"context"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/thebtf/devdeck/pkg/models"
)

// ProjectStore provides project-related database operations using GORM.
type ProjectStore struct {
	db *gorm.DB
}

// NewProjectStore creates a new project store.
func NewProjectStore(store *Store) *ProjectStore {
	return &ProjectStore{db: store.DB}
}

// CreateProject inserts a project with the given name.
func (s *ProjectStore) CreateProject(ctx context.Context, name, description string) (*models.Project, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("project name is required: %w", models.ErrValidation)
	}

	p := &Project{Name: name, Description: description}
	if err := s.db.WithContext(ctx).Create(p).Error; err != nil {
		return nil, fmt.Errorf("create project: %w", err)
	}
	return p.toModel(), nil
}

// GetProject returns the project with id.
func (s *ProjectStore) GetProject(ctx context.Context, id string) (*models.Project, error) {
	var p Project
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&p).Error; err != nil {
		return nil, notFound(err, "project", id)
	}
	return p.toModel(), nil
}

// ListProjects returns all projects, newest first.
func (s *ProjectStore) ListProjects(ctx context.Context) ([]*models.Project, error) {
	var rows []Project
	if err := s.db.WithContext(ctx).Order("created_at DESC").Order("id").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}

	projects := make([]*models.Project, len(rows))
	for i := range rows {
		projects[i] = rows[i].toModel()
	}
	return projects, nil
}

// ResolveProject returns the project a request works on.
// A non-empty id must exist. An empty id selects the newest project, creating
// the default project when there is none.
func (s *ProjectStore) ResolveProject(ctx context.Context, id string) (*models.Project, error) {
	if id != "" {
		return s.GetProject(ctx, id)
	}

	var p Project
	err := s.db.WithContext(ctx).Order("created_at DESC").Order("id").Limit(1).Find(&p).Error
	if err != nil {
		return nil, fmt.Errorf("find current project: %w", err)
	}
	if p.ID != "" {
		return p.toModel(), nil
	}
	return s.CreateProject(ctx, models.DefaultProjectName, "")
}

// DeleteProject removes a project and everything it owns.
// Returns false when the project did not exist.
func (s *ProjectStore) DeleteProject(ctx context.Context, id string) (bool, error) {
	var deleted bool
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("project_id = ?", id).Delete(&ConsoleLog{}).Error; err != nil {
			return err
		}
		if err := tx.Where("project_id = ?", id).Delete(&TerminalSession{}).Error; err != nil {
			return err
		}
		res := tx.Where("id = ?", id).Delete(&Project{})
		if res.Error != nil {
			return res.Error
		}
		deleted = res.RowsAffected > 0
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("delete project %s: %w", id, err)
	}
	return deleted, nil
}
