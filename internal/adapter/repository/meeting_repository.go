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

// meetingRepository implements the MeetingRepository interface
type meetingRepository struct {
	db *gorm.DB
}

// NewMeetingRepository creates a new meeting repository
func NewMeetingRepository(db *gorm.DB) repositories.MeetingRepository {
	return &meetingRepository{db: db}
}

// Create inserts the meeting and runs beforeCommit inside the same transaction
func (r *meetingRepository) Create(ctx context.Context, meeting *entities.Meeting, beforeCommit func(ctx context.Context) error) error {
	if meeting == nil {
		return errors.New("meeting cannot be nil")
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(meeting).Error; err != nil {
			return err
		}
		if beforeCommit != nil {
			return beforeCommit(ctx)
		}
		return nil
	})
}

// GetByID retrieves a meeting by ID
func (r *meetingRepository) GetByID(ctx context.Context, id uuid.UUID) (*entities.Meeting, error) {
	var meeting entities.Meeting
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&meeting).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &meeting, nil
}

// List retrieves a page of meetings, newest first
func (r *meetingRepository) List(ctx context.Context, offset, limit int) ([]*entities.Meeting, error) {
	var meetings []*entities.Meeting
	if limit <= 0 {
		return meetings, nil
	}
	if err := r.db.WithContext(ctx).
		Order("uploaded_at DESC").
		Order("id DESC").
		Offset(offset).
		Limit(limit).
		Find(&meetings).Error; err != nil {
		return nil, err
	}
	return meetings, nil
}

// Count returns the total number of meetings
func (r *meetingRepository) Count(ctx context.Context) (int64, error) {
	var total int64
	err := r.db.WithContext(ctx).Model(&entities.Meeting{}).Count(&total).Error
	return total, err
}

// ClaimForProcessing locks the meeting row and moves it to processing
func (r *meetingRepository) ClaimForProcessing(ctx context.Context, id uuid.UUID, staleBefore time.Time) (*entities.Meeting, bool, error) {
	var (
		meeting entities.Meeting
		claimed bool
	)
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ?", id).
			First(&meeting).Error; err != nil {
			return err
		}
		if !meeting.Status.CanTransitionTo(entities.MeetingStatusProcessing) {
			return nil
		}
		if meeting.Status == entities.MeetingStatusProcessing &&
			meeting.ProcessingStartedAt != nil && !meeting.ProcessingStartedAt.Before(staleBefore) {
			return nil
		}

		now := time.Now().UTC()
		stage := entities.StageTranscribing
		if err := tx.Model(&entities.Meeting{}).
			Where("id = ?", id).
			Updates(map[string]interface{}{
				"status":                entities.MeetingStatusProcessing,
				"stage":                 stage,
				"failure_reason":        nil,
				"attempts":              gorm.Expr("attempts + 1"),
				"processing_started_at": now,
				"updated_at":            now,
			}).Error; err != nil {
			return err
		}

		meeting.Status = entities.MeetingStatusProcessing
		meeting.Stage = &stage
		meeting.FailureReason = nil
		meeting.Attempts++
		meeting.ProcessingStartedAt = &now
		meeting.UpdatedAt = now
		claimed = true
		return nil
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return &meeting, claimed, nil
}

// UpdateStage records the pipeline stage of a processing meeting
func (r *meetingRepository) UpdateStage(ctx context.Context, id uuid.UUID, stage entities.PipelineStage) error {
	result := r.db.WithContext(ctx).
		Model(&entities.Meeting{}).
		Where("id = ? AND status = ?", id, entities.MeetingStatusProcessing).
		Updates(map[string]interface{}{
			"stage":      stage,
			"updated_at": time.Now().UTC(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return entities.ErrMeetingNotProcessing
	}
	return nil
}

// MarkFailed moves a processing meeting to failed with a reason
func (r *meetingRepository) MarkFailed(ctx context.Context, id uuid.UUID, reason string) (bool, error) {
	now := time.Now().UTC()
	result := r.db.WithContext(ctx).
		Model(&entities.Meeting{}).
		Where("id = ? AND status = ?", id, entities.MeetingStatusProcessing).
		Updates(map[string]interface{}{
			"status":         entities.MeetingStatusFailed,
			"stage":          nil,
			"failure_reason": reason,
			"completed_at":   now,
			"updated_at":     now,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// ListStale retrieves meetings stuck in uploaded or processing since before cutoff
func (r *meetingRepository) ListStale(ctx context.Context, cutoff time.Time, limit int) ([]*entities.Meeting, error) {
	var meetings []*entities.Meeting
	if limit <= 0 {
		limit = 100
	}
	if err := r.db.WithContext(ctx).
		Where("(status = ? AND (processing_started_at IS NULL OR processing_started_at < ?)) OR (status = ? AND uploaded_at < ?)",
			entities.MeetingStatusProcessing, cutoff,
			entities.MeetingStatusUploaded, cutoff).
		Order("uploaded_at ASC").
		Limit(limit).
		Find(&meetings).Error; err != nil {
		return nil, err
	}
	return meetings, nil
}

// Delete removes the meeting and every row derived from it
func (r *meetingRepository) Delete(ctx context.Context, id uuid.UUID) (bool, error) {
	deleted := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var meeting entities.Meeting
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ?", id).
			First(&meeting).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil
			}
			return err
		}
		if meeting.Status == entities.MeetingStatusProcessing {
			return entities.ErrMeetingProcessing
		}
		if err := deleteDerived(tx, id); err != nil {
			return err
		}
		if err := tx.Delete(&entities.Meeting{}, "id = ?", id).Error; err != nil {
			return err
		}
		deleted = true
		return nil
	})
	return deleted, err
}
