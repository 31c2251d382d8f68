package entities

import (
	"fmt"
	"path"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

// MeetingStatus represents the externally visible lifecycle state of a meeting
type MeetingStatus string

const (
	MeetingStatusUploaded   MeetingStatus = "uploaded"
	MeetingStatusProcessing MeetingStatus = "processing"
	MeetingStatusCompleted  MeetingStatus = "completed"
	MeetingStatusFailed     MeetingStatus = "failed"
)

// IsValid reports whether s is a known status
func (s MeetingStatus) IsValid() bool {
	switch s {
	case MeetingStatusUploaded, MeetingStatusProcessing, MeetingStatusCompleted, MeetingStatusFailed:
		return true
	}
	return false
}

// IsTerminal reports whether no transition can leave s
func (s MeetingStatus) IsTerminal() bool {
	return s == MeetingStatusCompleted || s == MeetingStatusFailed
}

// CanTransitionTo reports whether uploaded -> processing -> completed|failed allows the move.
// processing -> processing is allowed so a redelivered job can resume its run.
func (s MeetingStatus) CanTransitionTo(next MeetingStatus) bool {
	if !s.IsValid() || !next.IsValid() || s.IsTerminal() {
		return false
	}
	switch s {
	case MeetingStatusUploaded:
		return next == MeetingStatusProcessing
	case MeetingStatusProcessing:
		return next == MeetingStatusProcessing || next == MeetingStatusCompleted || next == MeetingStatusFailed
	}
	return false
}

// PipelineStage is the step a processing meeting is currently in
type PipelineStage string

const (
	StageTranscribing PipelineStage = "transcribing"
	StageExtracting   PipelineStage = "extracting"
	StageIndexing     PipelineStage = "indexing"
	StageCommitting   PipelineStage = "committing"
)

// Meeting is one uploaded recording and its processing lifecycle
type Meeting struct {
	ID                  uuid.UUID      `gorm:"type:uuid;primary_key" json:"id"`
	Filename            string         `gorm:"type:varchar(512);not null" json:"filename"`
	MediaObject         string         `gorm:"type:varchar(1024);not null" json:"-"`
	ContentType         string         `gorm:"type:varchar(255)" json:"content_type"`
	SizeBytes           int64          `gorm:"not null;default:0" json:"size_bytes"`
	Status              MeetingStatus  `gorm:"type:varchar(20);not null;index" json:"status"`
	Stage               *PipelineStage `gorm:"type:varchar(20)" json:"stage,omitempty"`
	FailureReason       *string        `gorm:"type:text" json:"failure_reason,omitempty"`
	Attempts            int            `gorm:"not null;default:0" json:"attempts"`
	DurationSeconds     float64        `gorm:"not null;default:0" json:"duration_seconds"`
	UploadedAt          time.Time      `gorm:"not null;index" json:"uploaded_at"`
	ProcessingStartedAt *time.Time     `json:"processing_started_at,omitempty"`
	CompletedAt         *time.Time     `json:"completed_at,omitempty"`
	UpdatedAt           time.Time      `json:"updated_at"`
}

// TableName specifies the table name for GORM
func (Meeting) TableName() string {
	return "meetings"
}

// NewMeeting creates a meeting in the uploaded state with a fresh identifier
func NewMeeting(filename, contentType string, sizeBytes int64) *Meeting {
	now := time.Now().UTC()
	id := uuid.New()
	return &Meeting{
		ID:          id,
		Filename:    filename,
		MediaObject: MediaObjectKey(id, filename),
		ContentType: contentType,
		SizeBytes:   sizeBytes,
		Status:      MeetingStatusUploaded,
		UploadedAt:  now,
		UpdatedAt:   now,
	}
}

var unsafeObjectChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// MediaObjectKey returns the object storage key for a meeting's raw media
func MediaObjectKey(id uuid.UUID, filename string) string {
	name := path.Base(strings.ReplaceAll(filename, "\\", "/"))
	name = unsafeObjectChars.ReplaceAllString(name, "_")
	name = strings.Trim(name, "._")
	if name == "" {
		name = "media"
	}
	return fmt.Sprintf("meetings/%s/%s", id, name)
}

// FileExtension returns the lower-cased extension of the filename without the dot
func FileExtension(filename string) string {
	ext := strings.ToLower(path.Ext(strings.ReplaceAll(filename, "\\", "/")))
	return strings.TrimPrefix(ext, ".")
}

// Progress estimates pipeline progress as a percentage for polling clients
func (m *Meeting) Progress() int {
	switch m.Status {
	case MeetingStatusCompleted, MeetingStatusFailed:
		return 100
	case MeetingStatusProcessing:
		if m.Stage == nil {
			return 5
		}
		switch *m.Stage {
		case StageTranscribing:
			return 10
		case StageExtracting, StageIndexing:
			return 40
		case StageCommitting:
			return 90
		}
		return 5
	}
	return 0
}

// Reason returns the failure reason or an empty string
func (m *Meeting) Reason() string {
	if m.FailureReason == nil {
		return ""
	}
	return *m.FailureReason
}
