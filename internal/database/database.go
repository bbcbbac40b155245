package database

import (
	"fmt"

	"github.com/contentkit/importer/internal/config"
	"github.com/contentkit/importer/internal/models"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Connect opens a MySQL connection and optionally runs auto-migration.
func Connect(cfg *config.AppConfig, autoMigrate bool) (*gorm.DB, error) {
	logLevel := logger.Warn
	if cfg.IsDev() {
		logLevel = logger.Info
	}

	db, err := gorm.Open(mysql.New(mysql.Config{
		DSN:               cfg.Database.DSNValue(),
		DefaultStringSize: 191,
	}), &gorm.Config{
		Logger: logger.Default.LogMode(logLevel),
	})
	if err != nil {
		return nil, fmt.Errorf("database connection failed: %w", err)
	}

	if autoMigrate {
		if err := migrate(db, cfg.Import.LogTable); err != nil {
			return nil, fmt.Errorf("migration failed: %w", err)
		}
	}
	return db, nil
}

// migrate runs GORM auto-migration for all models. The import log table is
// migrated separately because its name is configurable.
func migrate(db *gorm.DB, logTable string) error {
	if err := db.AutoMigrate(
		&models.UserModel{},
		&models.ContentModel{},
		&models.ContentMetaModel{},
		&models.TermModel{},
		&models.TermRelationshipModel{},
		&models.TranslationModel{},
	); err != nil {
		return err
	}
	return db.Table(logTable).AutoMigrate(&models.ImportLogModel{})
}
