package db

import (
	"kultuurivoog/internal/models"
)

// AutoMigrate creates or alters the tables. The read views depend on the
// events table and are (re)created by the repository after migration.
func AutoMigrate(db *DB) error {
	if db == nil || db.Gorm == nil || db.SQL == nil {
		return nil
	}

	return db.Gorm.AutoMigrate(
		&models.Event{},
		&models.SourceRun{},
	)
}
