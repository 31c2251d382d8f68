package entities

import (
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
	"gorm.io/datatypes"
)

// EmbeddingDimensions is the width of the vector column in vector_entries
const EmbeddingDimensions = 768

// VectorEntry is an embedding of one transcript chunk.
// Entries are never mutated and are removed only with their meeting.
type VectorEntry struct {
	ID        uuid.UUID         `gorm:"type:uuid;primary_key" json:"id"`
	MeetingID uuid.UUID         `gorm:"type:uuid;not null;index" json:"meeting_id"`
	ChunkID   uuid.UUID         `gorm:"type:uuid;not null;index" json:"chunk_id"`
	Content   string            `gorm:"type:text;not null" json:"content"`
	Embedding pgvector.Vector   `gorm:"type:vector(768);not null" json:"-"`
	Metadata  datatypes.JSONMap `gorm:"type:jsonb;not null" json:"metadata"`
	CreatedAt time.Time         `json:"created_at"`
}

// TableName specifies the table name for GORM
func (VectorEntry) TableName() string {
	return "vector_entries"
}

// NewVectorEntry builds the entry for a chunk embedding
func NewVectorEntry(chunk TranscriptChunk, embedding []float32) VectorEntry {
	return VectorEntry{
		ID:        uuid.New(),
		MeetingID: chunk.MeetingID,
		ChunkID:   chunk.ID,
		Content:   chunk.Text,
		Embedding: pgvector.NewVector(embedding),
		Metadata: datatypes.JSONMap{
			"meeting_id":     chunk.MeetingID.String(),
			"sequence_index": chunk.SequenceIndex,
			"start_time":     chunk.StartTime,
			"end_time":       chunk.EndTime,
		},
	}
}

// VectorMatch is a search hit with its distance normalised to [0,1]
type VectorMatch struct {
	Entry    VectorEntry
	Distance float64
}
