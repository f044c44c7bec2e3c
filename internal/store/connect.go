// Package store implements the persistent record store for messages,
// rules, and scripts on top of GORM.
package store

import (
	"fmt"

	"github.com/acornrpa/acorn/internal/config"
	"github.com/acornrpa/acorn/internal/models"
	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Open connects to the configured database backend.
func Open(cfg config.DatabaseConfig) (*gorm.DB, error) {
	gcfg := &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	}
	switch cfg.Backend {
	case "", "sqlite":
		db, err := gorm.Open(sqlite.Open(cfg.Path), gcfg)
		if err != nil {
			return nil, fmt.Errorf("store: open sqlite %s: %w", cfg.Path, err)
		}
		return db, nil
	case "mysql":
		db, err := gorm.Open(mysql.Open(cfg.DSN), gcfg)
		if err != nil {
			return nil, fmt.Errorf("store: connect mysql: %w", err)
		}
		return db, nil
	default:
		return nil, fmt.Errorf("store: unsupported backend %q", cfg.Backend)
	}
}

// Migrate creates or updates the schema for all record types.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&models.ChatMessage{},
		&models.MessageRule{},
		&models.ScriptInfo{},
	); err != nil {
		return fmt.Errorf("store: migrate: %w", err)
	}
	return nil
}
