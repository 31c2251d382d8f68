package entities

import (
	"time"

	"github.com/google/uuid"
)

// Topic is a short label describing something discussed in a meeting
type Topic struct {
	ID        uuid.UUID `gorm:"type:uuid;primary_key" json:"id"`
	MeetingID uuid.UUID `gorm:"type:uuid;not null;index" json:"meeting_id"`
	Position  int       `gorm:"not null" json:"-"`
	Label     string    `gorm:"type:varchar(255);not null" json:"label"`
	CreatedAt time.Time `json:"created_at"`
}

// TableName specifies the table name for GORM
func (Topic) TableName() string {
	return "topics"
}
