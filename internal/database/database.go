package database

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/glebarez/sqlite"
	"github.com/stormon/stormon/internal/config"
	"github.com/stormon/stormon/internal/models"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Connect opens the history database. SQLite is the default; Postgres
// can be selected for setups that already run one.
func Connect(cfg *config.Config) (*gorm.DB, error) {
	gormCfg := &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	}

	switch cfg.History.Driver {
	case "", "sqlite":
		if err := os.MkdirAll(filepath.Dir(cfg.History.Path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
		dsn := cfg.History.Path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(30000)&_pragma=foreign_keys(ON)"
		db, err := gorm.Open(sqlite.Open(dsn), gormCfg)
		if err != nil {
			return nil, fmt.Errorf("failed to open sqlite database: %w", err)
		}
		slog.Info("Database connected", "driver", "sqlite", "path", cfg.History.Path)
		return db, nil

	case "postgres":
		db, err := gorm.Open(postgres.Open(cfg.History.DSN), gormCfg)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to postgres: %w", err)
		}
		slog.Info("Database connected", "driver", "postgres")
		return db, nil

	default:
		return nil, fmt.Errorf("unsupported history driver: %s", cfg.History.Driver)
	}
}

func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.Run{},
		&models.CheckResult{},
		&models.Metric{},
		&models.Event{},
		&models.IssueState{},
		&models.SyncHistory{},
		&models.SmartHistory{},
		&models.Acknowledgment{},
	)
}
