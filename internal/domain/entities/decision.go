package entities

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Decision is a decision recorded during a meeting
type Decision struct {
	ID        uuid.UUID                   `gorm:"type:uuid;primary_key" json:"id"`
	MeetingID uuid.UUID                   `gorm:"type:uuid;not null;index" json:"meeting_id"`
	Position  int                         `gorm:"not null" json:"-"`
	Text      string                      `gorm:"column:decision;type:text;not null" json:"decision"`
	MadeBy    datatypes.JSONSlice[string] `gorm:"type:jsonb;not null" json:"made_by"`
	CreatedAt time.Time                   `json:"created_at"`
}

// TableName specifies the table name for GORM
func (Decision) TableName() string {
	return "decisions"
}
