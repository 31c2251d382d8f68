package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/johnquangdev/meeting-intelligence/internal/domain/entities"
	"github.com/johnquangdev/meeting-intelligence/internal/domain/repositories"
)

const insertBatchSize = 200

// artifactRepository implements the ArtifactRepository interface
type artifactRepository struct {
	db *gorm.DB
}

// NewArtifactRepository creates a new artifact repository
func NewArtifactRepository(db *gorm.DB) repositories.ArtifactRepository {
	return &artifactRepository{db: db}
}

// Commit replaces the derived rows of a processing meeting and completes it.
// Nothing becomes visible unless every write succeeds.
func (r *artifactRepository) Commit(ctx context.Context, meetingID uuid.UUID, artifacts *entities.MeetingArtifacts, durationSeconds float64) error {
	if artifacts == nil {
		artifacts = &entities.MeetingArtifacts{}
	}
	for _, entry := range artifacts.VectorEntries {
		if err := validateEmbeddingDim(entry.Embedding.Slice()); err != nil {
			return err
		}
	}

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var meeting entities.Meeting
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ?", meetingID).
			First(&meeting).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.ErrMeetingNotProcessing
		}
		if err != nil {
			return err
		}
		if !meeting.Status.CanTransitionTo(entities.MeetingStatusCompleted) {
			return entities.ErrMeetingNotProcessing
		}

		if err := deleteDerived(tx, meetingID); err != nil {
			return err
		}
		if err := insertAll(tx, artifacts.Chunks); err != nil {
			return err
		}
		if err := insertAll(tx, artifacts.ActionItems); err != nil {
			return err
		}
		if err := insertAll(tx, artifacts.Decisions); err != nil {
			return err
		}
		if err := insertAll(tx, artifacts.Participants); err != nil {
			return err
		}
		if err := insertAll(tx, artifacts.Topics); err != nil {
			return err
		}
		if err := insertAll(tx, artifacts.VectorEntries); err != nil {
			return err
		}

		now := time.Now().UTC()
		return tx.Model(&entities.Meeting{}).
			Where("id = ?", meetingID).
			Updates(map[string]interface{}{
				"status":           entities.MeetingStatusCompleted,
				"stage":            nil,
				"failure_reason":   nil,
				"duration_seconds": durationSeconds,
				"completed_at":     now,
				"updated_at":       now,
			}).Error
	})
}

// Get loads the derived rows of a meeting in their stored order
func (r *artifactRepository) Get(ctx context.Context, meetingID uuid.UUID) (*entities.MeetingArtifacts, error) {
	db := r.db.WithContext(ctx)
	artifacts := &entities.MeetingArtifacts{}

	if err := db.Where("meeting_id = ?", meetingID).Order("sequence_index ASC").Find(&artifacts.Chunks).Error; err != nil {
		return nil, err
	}
	if err := db.Where("meeting_id = ?", meetingID).Order("position ASC").Find(&artifacts.ActionItems).Error; err != nil {
		return nil, err
	}
	if err := db.Where("meeting_id = ?", meetingID).Order("position ASC").Find(&artifacts.Decisions).Error; err != nil {
		return nil, err
	}
	if err := db.Where("meeting_id = ?", meetingID).Order("position ASC").Find(&artifacts.Participants).Error; err != nil {
		return nil, err
	}
	if err := db.Where("meeting_id = ?", meetingID).Order("position ASC").Find(&artifacts.Topics).Error; err != nil {
		return nil, err
	}

	artifacts.Normalize()
	return artifacts, nil
}

func insertAll[T any](tx *gorm.DB, rows []T) error {
	if len(rows) == 0 {
		return nil
	}
	return tx.CreateInBatches(rows, insertBatchSize).Error
}

// deleteDerived removes everything produced by a pipeline run for the meeting.
// Vector entries go first since they reference chunks.
func deleteDerived(tx *gorm.DB, meetingID uuid.UUID) error {
	models := []interface{}{
		&entities.VectorEntry{},
		&entities.TranscriptChunk{},
		&entities.ActionItem{},
		&entities.Decision{},
		&entities.Participant{},
		&entities.Topic{},
	}
	for _, model := range models {
		if err := tx.Where("meeting_id = ?", meetingID).Delete(model).Error; err != nil {
			return err
		}
	}
	return nil
}
