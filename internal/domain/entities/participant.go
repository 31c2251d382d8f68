package entities

import (
	"time"

	"github.com/google/uuid"
)

// Participant is a speaker identified in a meeting, unique by name within it
type Participant struct {
	ID           uuid.UUID `gorm:"type:uuid;primary_key" json:"id"`
	MeetingID    uuid.UUID `gorm:"type:uuid;not null;index" json:"meeting_id"`
	Position     int       `gorm:"not null" json:"-"`
	Name         string    `gorm:"type:varchar(255);not null" json:"name"`
	Role         string    `gorm:"type:varchar(255)" json:"role,omitempty"`
	SpeakerLabel string    `gorm:"type:varchar(64)" json:"speaker_label,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// TableName specifies the table name for GORM
func (Participant) TableName() string {
	return "participants"
}
