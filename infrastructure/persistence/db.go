package persistence

import (
	"github.com/lostworld/plateau/internal/database"
)

// AutoMigrate creates or updates the database schema for all models.
func AutoMigrate(db database.Database) error {
	return db.GORM().AutoMigrate(
		&SubmissionModel{},
		&EmbeddingModel{},
	)
}
