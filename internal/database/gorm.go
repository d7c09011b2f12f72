package database

import (
	"fmt"

	"campaign-console/internal/config"
	"campaign-console/internal/models"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// InitGorm opens the session store, migrates it and clears whatever a
// previous process left behind: dispatch history lives for one session only.
func InitGorm(cfg *config.Config, log *zap.Logger) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch cfg.DBDriver {
	case "postgres":
		if cfg.DBDSN == "" {
			return nil, fmt.Errorf("DB_DSN is required for the postgres driver")
		}
		dialector = postgres.Open(cfg.DBDSN)
	case "sqlite", "":
		dialector = sqlite.Open(cfg.DBPath)
	default:
		return nil, fmt.Errorf("unsupported DB_DRIVER %q", cfg.DBDriver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", cfg.DBDriver, err)
	}
	log.Info("Connected to session store", zap.String("driver", cfg.DBDriver))

	err = db.AutoMigrate(
		&models.Message{},
		&models.CallRecord{},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to run auto-migration: %w", err)
	}

	if err := Reset(db); err != nil {
		return nil, err
	}
	log.Info("Session store migrated and cleared")
	return db, nil
}

// Reset deletes every dispatch record.
func Reset(db *gorm.DB) error {
	tx := db.Session(&gorm.Session{AllowGlobalUpdate: true})
	if err := tx.Delete(&models.Message{}).Error; err != nil {
		return fmt.Errorf("failed to clear messages: %w", err)
	}
	if err := tx.Delete(&models.CallRecord{}).Error; err != nil {
		return fmt.Errorf("failed to clear call records: %w", err)
	}
	return nil
}
