// Package persistence provides database storage implementations.
package persistence

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// SubmissionModel is the GORM entity for feedback submissions.
type SubmissionModel struct {
	ID         int64  `gorm:"primaryKey;autoIncrement"`
	Reference  string `gorm:"uniqueIndex;not null"`
	Content    string `gorm:"type:text;not null"`
	Status     string `gorm:"index;not null;default:pending"`
	AgentNotes string `gorm:"type:text"`
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// TableName returns the database table name.
func (SubmissionModel) TableName() string { return "feedback" }

// EmbeddingModel is the GORM entity for submission embeddings.
// Vectors are stored as JSON; similarity queries run in-memory.
type EmbeddingModel struct {
	Reference string       `gorm:"primaryKey"`
	Document  string       `gorm:"type:text;not null"`
	Embedding Float64Slice `gorm:"type:json;not null"`
	CreatedAt time.Time
}

// TableName returns the database table name.
func (EmbeddingModel) TableName() string { return "feedback_embeddings" }

// Float64Slice stores a float64 slice as JSON in the database.
type Float64Slice []float64

// Scan implements sql.Scanner.
func (f *Float64Slice) Scan(value any) error {
	if value == nil {
		*f = nil
		return nil
	}
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("unsupported type for Float64Slice: %T", value)
	}
	return json.Unmarshal(data, f)
}

// Value implements driver.Valuer.
func (f Float64Slice) Value() (driver.Value, error) {
	if f == nil {
		return nil, nil
	}
	data, err := json.Marshal(f)
	if err != nil {
		return nil, fmt.Errorf("marshal Float64Slice: %w", err)
	}
	return string(data), nil
}
