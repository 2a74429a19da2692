package database

import (
	"errors"
	"fmt"
	"strings"

	"github.com/dvinyl/core/internal/config"
	"github.com/dvinyl/core/internal/models"
	mysqlDriver "github.com/go-sql-driver/mysql"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Connect opens a MySQL connection and optionally runs auto-migration.
func Connect(cfg *config.AppConfig, autoMigrate bool) (*gorm.DB, error) {
	db, err := gorm.Open(mysql.New(mysql.Config{
		DSN:               cfg.DSN,
		DefaultStringSize: 191,
	}), &gorm.Config{
		Logger: logger.Default.LogMode(resolveLogLevel(cfg)),
	})
	if err != nil {
		return nil, fmt.Errorf("database connection failed: %w", err)
	}

	if autoMigrate {
		if err := Migrate(db); err != nil {
			return nil, fmt.Errorf("migration failed: %w", err)
		}
	}
	return db, nil
}

func resolveLogLevel(cfg *config.AppConfig) logger.LogLevel {
	if cfg.IsDev() {
		return logger.Info
	}
	return logger.Warn
}

// Migrate runs GORM auto-migration for all models.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&models.UserModel{},
		&models.LoginLogModel{},
		&models.BlockedIPModel{},
		&models.AlbumModel{},
		&models.InstallLockModel{},
	); err != nil {
		return err
	}
	if err := db.FirstOrCreate(&models.InstallLockModel{}, models.InstallLockModel{ID: models.InstallLockID}).Error; err != nil {
		return fmt.Errorf("seed install lock: %w", err)
	}

	if db.Dialector.Name() == "mysql" {
		if err := db.Exec("ALTER TABLE `albums` MODIFY COLUMN `tracklist` LONGTEXT NULL").Error; err != nil {
			return err
		}
	}
	return nil
}

// IsDuplicateKey reports whether err is a unique constraint violation on
// any of the supported dialects.
func IsDuplicateKey(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}

	var mysqlErr *mysqlDriver.MySQLError
	if errors.As(err, &mysqlErr) && mysqlErr.Number == 1062 {
		return true
	}

	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "duplicate entry") ||
		strings.Contains(msg, "duplicate key") ||
		strings.Contains(msg, "unique constraint")
}
