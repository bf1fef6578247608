package indexer

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// EventRecord is a committed marketplace event as persisted for indexers.
type EventRecord struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey"`
	Height     uint64    `gorm:"index:idx_event_position,priority:1;not null"`
	Sequence   int       `gorm:"index:idx_event_position,priority:2;not null"`
	Type       string    `gorm:"size:64;index"`
	OfferingID string    `gorm:"size:32;index"`
	Attributes string    `gorm:"type:text"`
	CreatedAt  time.Time
}

// AutoMigrate performs all schema migrations for the indexer.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&EventRecord{})
}
