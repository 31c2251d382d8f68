package entities

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// TranscriptChunk is a bounded span of transcribed speech.
// Chunks of a meeting ordered by SequenceIndex reconstruct the full transcript.
type TranscriptChunk struct {
	ID            uuid.UUID `gorm:"type:uuid;primary_key" json:"id"`
	MeetingID     uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_transcript_chunks_meeting_seq" json:"meeting_id"`
	SequenceIndex int       `gorm:"not null;uniqueIndex:idx_transcript_chunks_meeting_seq" json:"sequence_index"`
	Speaker       string    `gorm:"type:varchar(64)" json:"speaker,omitempty"`
	Text          string    `gorm:"type:text;not null" json:"text"`
	StartTime     float64   `gorm:"not null" json:"start_time"`
	EndTime       float64   `gorm:"not null" json:"end_time"`
	CreatedAt     time.Time `json:"created_at"`
}

// TableName specifies the table name for GORM
func (TranscriptChunk) TableName() string {
	return "transcript_chunks"
}

// JoinChunks rebuilds the transcript text from ordered chunks
func JoinChunks(chunks []TranscriptChunk) string {
	parts := make([]string, 0, len(chunks))
	for _, c := range chunks {
		parts = append(parts, c.Text)
	}
	return strings.Join(parts, " ")
}
