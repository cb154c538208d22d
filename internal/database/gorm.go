package database

import (
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"leadmatch/server/internal/models"
)

// NewGormDB opens the gorm handle used by the matchmaker's
// transactional notification writes. It points at the same sqlite file
// as the raw handle.
func NewGormDB(dbPath string) (*gorm.DB, error) {
	return gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
}

// NewTestDB opens an in-memory database for tests. The pool is pinned
// to a single connection because each sqlite :memory: connection is
// its own database.
func NewTestDB() (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)
	return db, nil
}

// MigrateSchema creates the notification schema on a gorm handle.
// Production uses RunMigrations on the raw handle; this exists for
// test databases.
func MigrateSchema(db *gorm.DB) error {
	return db.AutoMigrate(&models.MatchNotification{})
}

// UpsertMatchNotifications writes a batch of notifications inside the
// caller's transaction. Re-running matchmaking for the same property
// updates the existing lead/property pair instead of duplicating it.
func UpsertMatchNotifications(tx *gorm.DB, notifications []*models.MatchNotification) error {
	if len(notifications) == 0 {
		return nil
	}
	return tx.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "lead_id"}, {Name: "property_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"match_score", "requires_verification", "created_at",
		}),
	}).Create(&notifications).Error
}
