package database

import (
	"fmt"
	"strings"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/mspr-sante/backend/config"
	"github.com/mspr-sante/backend/internal/models"
)

// New opens the relational store. Postgres DSNs ("postgres://..." or
// key=value form) go through the postgres driver; anything else is treated
// as a SQLite file path, matching the original single-file deployment.
func New(cfg *config.Config) (*gorm.DB, error) {
	return Open(cfg.DatabaseDSN)
}

// Open connects to the database identified by dsn.
func Open(dsn string) (*gorm.DB, error) {
	var dialector gorm.Dialector
	if isPostgresDSN(dsn) {
		dialector = postgres.Open(dsn)
	} else {
		dialector = sqlite.Open(dsn)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("error opening database: %w", err)
	}

	if db.Dialector.Name() == "sqlite" {
		// SQLite ships with foreign keys off; the schema relies on them.
		if err := db.Exec("PRAGMA foreign_keys = ON").Error; err != nil {
			return nil, fmt.Errorf("error enabling foreign keys: %w", err)
		}
	}

	return db, nil
}

// Migrate creates or upgrades the full schema.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.Patient{},
		&models.Sante{},
		&models.Nutrition{},
		&models.ActivitePhysique{},
		&models.GymSession{},
		&models.PipelineRun{},
		&models.SourceStat{},
	)
}

func isPostgresDSN(dsn string) bool {
	return strings.HasPrefix(dsn, "postgres://") ||
		strings.HasPrefix(dsn, "postgresql://") ||
		strings.Contains(dsn, "host=")
}
