// Package gorm provides GORM-based database operations for devdeck.
package gorm

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"gorm.io/gorm"
)

// runMigrations runs all database migrations using gormigrate.
func runMigrations(db *gorm.DB) error {
	m := gormigrate.New(db, gormigrate.DefaultOptions, []*gormigrate.Migration{
		// Migration 001: projects
		{
			ID: "001_projects",
			Migrate: func(tx *gorm.DB) error {
				return tx.AutoMigrate(&Project{})
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropTable("projects")
			},
		},

		// Migration 002: terminal sessions with JSON history and version counter
		{
			ID: "002_terminal_sessions",
			Migrate: func(tx *gorm.DB) error {
				return tx.AutoMigrate(&TerminalSession{})
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropTable("terminal_sessions")
			},
		},

		// Migration 003: console logs
		{
			ID: "003_console_logs",
			Migrate: func(tx *gorm.DB) error {
				return tx.AutoMigrate(&ConsoleLog{})
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropTable("console_logs")
			},
		},
	})

	return m.Migrate()
}
