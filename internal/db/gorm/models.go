// Package gorm provides GORM-based database operations for devdeck.
package gorm

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/thebtf/devdeck/pkg/models"
)

// GORM Models

// Project is a workspace grouping terminals and console logs.
type Project struct {
	CreatedAt   time.Time `gorm:"index:idx_projects_created;not null"`
	UpdatedAt   time.Time `gorm:"not null"`
	ID          string    `gorm:"primaryKey;type:varchar(36)"`
	Name        string    `gorm:"type:text;not null"`
	Description string    `gorm:"type:text"`
}

func (Project) TableName() string { return "projects" }

// BeforeCreate hook to assign an id.
func (p *Project) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	return nil
}

func (p *Project) toModel() *models.Project {
	return &models.Project{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
}

// TerminalSession is a persisted terminal with its JSON history column.
type TerminalSession struct {
	CreatedAt time.Time               `gorm:"index:idx_terminal_sessions_project,priority:2;not null"`
	UpdatedAt time.Time               `gorm:"not null"`
	Project   *Project                `gorm:"foreignKey:ProjectID;constraint:OnDelete:CASCADE"`
	ID        string                  `gorm:"primaryKey;type:varchar(36)"`
	ProjectID string                  `gorm:"type:varchar(36);not null;index:idx_terminal_sessions_project,priority:1"`
	Name      string                  `gorm:"type:text;not null"`
	History   models.ExecutionHistory `gorm:"type:text;not null"`
	Version   int64                   `gorm:"not null;default:0"`
}

func (TerminalSession) TableName() string { return "terminal_sessions" }

// BeforeCreate hook to assign an id and an empty history.
func (s *TerminalSession) BeforeCreate(tx *gorm.DB) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	if s.History == nil {
		s.History = models.ExecutionHistory{}
	}
	return nil
}

func (s *TerminalSession) toModel() *models.TerminalSession {
	history := s.History
	if history == nil {
		history = models.ExecutionHistory{}
	}
	return &models.TerminalSession{
		ID:        s.ID,
		ProjectID: s.ProjectID,
		Name:      s.Name,
		History:   history,
		Version:   s.Version,
		CreatedAt: s.CreatedAt,
		UpdatedAt: s.UpdatedAt,
	}
}

// ConsoleLog is an entry of a project's console panel.
type ConsoleLog struct {
	CreatedAt time.Time `gorm:"index:idx_console_logs_project,priority:2;not null"`
	Project   *Project  `gorm:"foreignKey:ProjectID;constraint:OnDelete:CASCADE"`
	ID        string    `gorm:"primaryKey;type:varchar(36)"`
	ProjectID string    `gorm:"type:varchar(36);not null;index:idx_console_logs_project,priority:1"`
	Level     string    `gorm:"type:varchar(16);not null;default:'info'"`
	Source    string    `gorm:"type:text"`
	Message   string    `gorm:"type:text;not null"`
}

func (ConsoleLog) TableName() string { return "console_logs" }

// BeforeCreate hook to assign an id.
func (l *ConsoleLog) BeforeCreate(tx *gorm.DB) error {
	if l.ID == "" {
		l.ID = uuid.NewString()
	}
	if l.Level == "" {
		l.Level = string(models.LogLevelInfo)
	}
	return nil
}

func (l *ConsoleLog) toModel() *models.ConsoleLog {
	return &models.ConsoleLog{
		ID:        l.ID,
		ProjectID: l.ProjectID,
		Level:     models.LogLevel(l.Level),
		Source:    l.Source,
		Message:   l.Message,
		CreatedAt: l.CreatedAt,
	}
}
