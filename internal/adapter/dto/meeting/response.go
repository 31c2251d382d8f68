package meeting

import (
	"time"
)

// UploadResponse is returned when an upload is accepted
type UploadResponse struct {
	MeetingID string `json:"meeting_id"`
}

// StatusResponse is the pollable processing state of a meeting
type StatusResponse struct {
	MeetingID     string  `json:"meeting_id"`
	Status        string  `json:"status"`
	FailureReason *string `json:"failure_reason,omitempty"`
	Stage         *string `json:"stage,omitempty"`
	Progress      int     `json:"progress"`
}

// MeetingSummary is one entry of the meeting list
type MeetingSummary struct {
	ID        string    `json:"id"`
	Filename  string    `json:"filename"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

// MeetingDetailResponse is a completed meeting with everything derived from it
type MeetingDetailResponse struct {
	ID              string                `json:"id"`
	Filename        string                `json:"filename"`
	ContentType     string                `json:"content_type"`
	SizeBytes       int64                 `json:"size_bytes"`
	Status          string                `json:"status"`
	DurationSeconds float64               `json:"duration_seconds"`
	CreatedAt       time.Time             `json:"created_at"`
	CompletedAt     *time.Time            `json:"completed_at,omitempty"`
	Transcript      TranscriptResponse    `json:"transcript"`
	ActionItems     []ActionItemResponse  `json:"action_items"`
	Decisions       []DecisionResponse    `json:"decisions"`
	Participants    []ParticipantResponse `json:"participants"`
	Topics          []string              `json:"topics"`
}

// TranscriptResponse holds the full text and its ordered chunks
type TranscriptResponse struct {
	Text   string          `json:"text"`
	Chunks []ChunkResponse `json:"chunks"`
}

// ChunkResponse is one timed span of the transcript
type ChunkResponse struct {
	ID            string  `json:"id"`
	SequenceIndex int     `json:"sequence_index"`
	Speaker       string  `json:"speaker,omitempty"`
	Text          string  `json:"text"`
	StartTime     float64 `json:"start_time"`
	EndTime       float64 `json:"end_time"`
}

// ActionItemResponse is an extracted task. Deadline is YYYY-MM-DD.
type ActionItemResponse struct {
	Task     string  `json:"task"`
	Assignee string  `json:"assignee"`
	Deadline *string `json:"deadline"`
}

// DecisionResponse is an extracted decision
type DecisionResponse struct {
	Decision string   `json:"decision"`
	MadeBy   []string `json:"made_by"`
}

// ParticipantResponse is a speaker identified in the meeting
type ParticipantResponse struct {
	Name         string  `json:"name"`
	Role         *string `json:"role"`
	SpeakerLabel string  `json:"speaker_label,omitempty"`
}

// SearchResponse wraps ranked search hits
type SearchResponse struct {
	Results []SearchResult `json:"results"`
}

// SearchResult is one matching transcript chunk
type SearchResult struct {
	ID       string         `json:"id"`
	Content  string         `json:"content"`
	Distance float64        `json:"distance"`
	Metadata map[string]any `json:"metadata"`
}
