package repositories

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/johnquangdev/meeting-intelligence/internal/domain/entities"
)

// MeetingRepository persists meeting records and their status transitions.
// Lookups return (nil, nil) when the meeting does not exist.
type MeetingRepository interface {
	// Create inserts an uploaded meeting. beforeCommit runs inside the same
	// transaction; if it fails the insert is rolled back.
	Create(ctx context.Context, meeting *entities.Meeting, beforeCommit func(ctx context.Context) error) error
	GetByID(ctx context.Context, id uuid.UUID) (*entities.Meeting, error)
	// List returns meetings ordered by upload time, newest first, ties broken by id.
	List(ctx context.Context, offset, limit int) ([]*entities.Meeting, error)
	Count(ctx context.Context) (int64, error)

	// ClaimForProcessing moves an uploaded meeting, or a processing meeting whose
	// run started before staleBefore, to processing and increments its attempt
	// counter. claimed is false otherwise; meeting is nil when it does not exist.
	ClaimForProcessing(ctx context.Context, id uuid.UUID, staleBefore time.Time) (meeting *entities.Meeting, claimed bool, err error)
	UpdateStage(ctx context.Context, id uuid.UUID, stage entities.PipelineStage) error
	// MarkFailed moves a processing meeting to failed. It reports false when the
	// meeting was not processing.
	MarkFailed(ctx context.Context, id uuid.UUID, reason string) (bool, error)
	// ListStale returns processing meetings whose current run started before cutoff
	// and uploaded meetings that were never picked up before cutoff.
	ListStale(ctx context.Context, cutoff time.Time, limit int) ([]*entities.Meeting, error)

	// Delete removes a meeting together with all derived data. It reports false
	// when the meeting does not exist and returns entities.ErrMeetingProcessing
	// while a pipeline run owns it.
	Delete(ctx context.Context, id uuid.UUID) (bool, error)
}
