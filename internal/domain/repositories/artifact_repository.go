package repositories

import (
	"context"

	"github.com/google/uuid"

	"github.com/johnquangdev/meeting-intelligence/internal/domain/entities"
)

// ArtifactRepository stores the derived entities of a meeting.
type ArtifactRepository interface {
	// Commit replaces all derived entities and vector entries of the meeting and
	// moves it from processing to completed in one transaction. It returns
	// entities.ErrMeetingNotProcessing when the meeting is missing or not processing.
	Commit(ctx context.Context, meetingID uuid.UUID, artifacts *entities.MeetingArtifacts, durationSeconds float64) error
	// Get loads the derived entities of a meeting, without vector entries.
	Get(ctx context.Context, meetingID uuid.UUID) (*entities.MeetingArtifacts, error)
}

// VectorIndex answers nearest-neighbour queries over transcript chunk embeddings.
type VectorIndex interface {
	// Search returns up to limit entries closest to query, optionally scoped to
	// one meeting, ordered by ascending distance in [0,1].
	Search(ctx context.Context, query []float32, meetingID *uuid.UUID, limit int) ([]entities.VectorMatch, error)
}
