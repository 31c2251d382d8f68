package entities

import (
	"time"

	"github.com/google/uuid"
)

// UnassignedAssignee marks an action item whose owner could not be resolved
const UnassignedAssignee = "unassigned"

// ActionItem is a task extracted from a meeting transcript
type ActionItem struct {
	ID        uuid.UUID  `gorm:"type:uuid;primary_key" json:"id"`
	MeetingID uuid.UUID  `gorm:"type:uuid;not null;index" json:"meeting_id"`
	Position  int        `gorm:"not null" json:"-"`
	Task      string     `gorm:"type:text;not null" json:"task"`
	Assignee  string     `gorm:"type:varchar(255);not null" json:"assignee"`
	Deadline  *time.Time `gorm:"type:date" json:"deadline,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

// TableName specifies the table name for GORM
func (ActionItem) TableName() string {
	return "action_items"
}
