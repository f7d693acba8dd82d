package db

import (
	"fmt"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"parking-lpr-service/internal/repository"
)

// Open connects to the configured backend and brings the schema up to date.
// Postgres is the multi-terminal deployment; sqlite serves single-kiosk
// installs and keeps legacy parking.db files readable.
func Open(driver, dsn string) (*gorm.DB, error) {
	cfg := &gorm.Config{Logger: logger.Default.LogMode(logger.Warn)}

	switch driver {
	case "postgres":
		gdb, err := gorm.Open(postgres.Open(dsn), cfg)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		if err := runMigrations(gdb); err != nil {
			return nil, err
		}
		return gdb, nil
	case "sqlite":
		gdb, err := gorm.Open(sqlite.Open(dsn), cfg)
		if err != nil {
			return nil, fmt.Errorf("open sqlite: %w", err)
		}
		// AutoMigrate adds columns missing from older kiosk databases.
		if err := gdb.AutoMigrate(&repository.EventRecord{}); err != nil {
			return nil, fmt.Errorf("migrate sqlite schema: %w", err)
		}
		return gdb, nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}
}
