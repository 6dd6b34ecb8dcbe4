package main

import (
	"fmt"

	"imagehub/pkg/catalog"
	"imagehub/pkg/config"

	"github.com/rs/zerolog/log"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// openDB connects to Postgres and, unless DB_AUTO_MIGRATE is off, brings the
// image_metadata table up to date. Migration failures (often missing DDL rights on a
// shared database) are logged and the service keeps going.
func openDB(cfg *config.Config) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(cfg.DBDSN), &gorm.Config{
		Logger: logger.Default.LogMode(gormLogLevel(cfg.LogLevel)),
	})
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if cfg.DBAutoMigrate {
		if err := migrateDB(db); err != nil {
			log.Warn().Err(err).Msg("migration warning (image_metadata)")
		}
	}
	return db, nil
}

func migrateDB(db *gorm.DB) error {
	return catalog.Migrate(db)
}

func closeDB(db *gorm.DB) {
	sqlDB, err := db.DB()
	if err != nil {
		return
	}
	if err := sqlDB.Close(); err != nil {
		log.Warn().Err(err).Msg("close database")
	}
}

func gormLogLevel(level string) logger.LogLevel {
	switch level {
	case "trace", "debug":
		return logger.Info
	case "error", "fatal", "panic":
		return logger.Error
	case "disabled":
		return logger.Silent
	default:
		return logger.Warn
	}
}
