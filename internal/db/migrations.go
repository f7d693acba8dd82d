package db

import (
	"fmt"

	"gorm.io/gorm"
)

var migrationStatements = []string{
	`CREATE TABLE IF NOT EXISTS events (
		id              BIGSERIAL PRIMARY KEY,
		timestamp       TIMESTAMPTZ NOT NULL,
		date_key        TEXT NOT NULL,
		action          TEXT NOT NULL,
		vehicle_class   TEXT NOT NULL,
		plate_canonical TEXT NOT NULL,
		plate_display   TEXT,
		fee             BIGINT NOT NULL DEFAULT 0,
		image_path      TEXT,
		crop_path       TEXT,
		raw_payload     JSONB,
		created_at      TIMESTAMPTZ NOT NULL DEFAULT now()
	);`,
	`CREATE INDEX IF NOT EXISTS idx_events_date_plate ON events(date_key, plate_canonical);`,
	`CREATE INDEX IF NOT EXISTS idx_events_plate_recency ON events(plate_canonical, id DESC);`,
}

func runMigrations(db *gorm.DB) error {
	for i, stmt := range migrationStatements {
		if err := db.Exec(stmt).Error; err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
	}
	return nil
}
