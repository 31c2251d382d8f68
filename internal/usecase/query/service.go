package query

import (
	"context"
	stdErrors "errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/johnquangdev/meeting-intelligence/internal/domain/entities"
	"github.com/johnquangdev/meeting-intelligence/internal/domain/repositories"
	"github.com/johnquangdev/meeting-intelligence/internal/infrastructure/cache"
	ucErrors "github.com/johnquangdev/meeting-intelligence/internal/usecase/errors"
	"github.com/johnquangdev/meeting-intelligence/pkg/config"
	"github.com/johnquangdev/meeting-intelligence/pkg/metrics"
)

// Pagination bounds for ListMeetings
const (
	DefaultListLimit = 100
	MaxListLimit     = 100
)

// QueryEmbedder embeds a single search query
type QueryEmbedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// MediaRemover deletes stored raw media
type MediaRemover interface {
	RemoveFile(ctx context.Context, objectName string) error
}

// MeetingDetails is a completed meeting with everything derived from it
type MeetingDetails struct {
	Meeting   *entities.Meeting
	Artifacts *entities.MeetingArtifacts
}

// SearchInput is a semantic search request. MeetingID is optional.
type SearchInput struct {
	Query     string
	MeetingID string
}

// Service answers status, detail, listing and search queries
type Service interface {
	GetStatus(ctx context.Context, id uuid.UUID) (*entities.Meeting, error)
	GetDetails(ctx context.Context, id uuid.UUID) (*MeetingDetails, error)
	ListMeetings(ctx context.Context, skip, limit int) ([]*entities.Meeting, error)
	CountMeetings(ctx context.Context) (int64, error)
	Search(ctx context.Context, in SearchInput) ([]entities.VectorMatch, error)
	DeleteMeeting(ctx context.Context, id uuid.UUID) error
}

type queryService struct {
	meetings    repositories.MeetingRepository
	artifacts   repositories.ArtifactRepository
	vectors     repositories.VectorIndex
	embedder    QueryEmbedder
	media       MediaRemover
	queryCache  *cache.MemoryStore[[]float32]
	cacheTTL    time.Duration
	resultLimit int
	metrics     *metrics.Metrics
	logger      *zap.Logger
}

// NewService creates the query service. queryCache may be nil to disable caching.
func NewService(
	meetings repositories.MeetingRepository,
	artifacts repositories.ArtifactRepository,
	vectors repositories.VectorIndex,
	embedder QueryEmbedder,
	media MediaRemover,
	queryCache *cache.MemoryStore[[]float32],
	cfg *config.Config,
	m *metrics.Metrics,
	logger *zap.Logger,
) Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	limit := cfg.Search.ResultLimit
	if limit <= 0 {
		limit = 5
	}

	return &queryService{
		meetings:    meetings,
		artifacts:   artifacts,
		vectors:     vectors,
		embedder:    embedder,
		media:       media,
		queryCache:  queryCache,
		cacheTTL:    cfg.Search.QueryCacheTTL,
		resultLimit: limit,
		metrics:     m,
		logger:      logger.Named("query"),
	}
}

func (s *queryService) GetStatus(ctx context.Context, id uuid.UUID) (*entities.Meeting, error) {
	return s.getMeeting(ctx, id)
}

// GetDetails returns a completed meeting and its derived entities
func (s *queryService) GetDetails(ctx context.Context, id uuid.UUID) (*MeetingDetails, error) {
	meeting, err := s.getMeeting(ctx, id)
	if err != nil {
		return nil, err
	}
	if meeting.Status != entities.MeetingStatusCompleted {
		return &MeetingDetails{Meeting: meeting}, fmt.Errorf("%w: status is %s", ucErrors.ErrMeetingNotReady, meeting.Status)
	}

	artifacts, err := s.artifacts.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%w: load artifacts: %v", ucErrors.ErrStorage, err)
	}
	return &MeetingDetails{Meeting: meeting, Artifacts: artifacts}, nil
}

// ListMeetings returns a page ordered by upload time, newest first
func (s *queryService) ListMeetings(ctx context.Context, skip, limit int) ([]*entities.Meeting, error) {
	if skip < 0 {
		return nil, fmt.Errorf("%w: skip must not be negative", ucErrors.ErrValidation)
	}
	if limit < 1 {
		return nil, fmt.Errorf("%w: limit must be at least 1", ucErrors.ErrValidation)
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}

	meetings, err := s.meetings.List(ctx, skip, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: list meetings: %v", ucErrors.ErrStorage, err)
	}
	return meetings, nil
}

// CountMeetings returns the total number of meetings
func (s *queryService) CountMeetings(ctx context.Context) (int64, error) {
	total, err := s.meetings.Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("%w: count meetings: %v", ucErrors.ErrStorage, err)
	}
	return total, nil
}

// Search embeds the query and returns the nearest transcript chunks
func (s *queryService) Search(ctx context.Context, in SearchInput) (matches []entities.VectorMatch, err error) {
	started := time.Now()
	defer func() { s.metrics.ObserveSearch(started, err) }()

	q := strings.TrimSpace(in.Query)
	if q == "" {
		return nil, fmt.Errorf("%w: query must not be empty", ucErrors.ErrValidation)
	}

	var scope *uuid.UUID
	if id := strings.TrimSpace(in.MeetingID); id != "" {
		parsed, err := uuid.Parse(id)
		if err != nil {
			return nil, fmt.Errorf("%w: meeting_id is not a valid id", ucErrors.ErrValidation)
		}
		scope = &parsed
	}

	vec, err := s.embedQuery(ctx, q)
	if err != nil {
		s.logger.Error("failed to embed search query", zap.Error(err))
		return nil, fmt.Errorf("%w: embed query: %v", ucErrors.ErrSearch, err)
	}

	matches, err = s.vectors.Search(ctx, vec, scope, s.resultLimit)
	if err != nil {
		s.logger.Error("vector search failed", zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ucErrors.ErrSearch, err)
	}
	if matches == nil {
		matches = make([]entities.VectorMatch, 0)
	}
	return matches, nil
}

func (s *queryService) embedQuery(ctx context.Context, q string) ([]float32, error) {
	if s.queryCache != nil {
		if vec, ok := s.queryCache.Get(q); ok {
			return vec, nil
		}
	}
	vec, err := s.embedder.Embed(ctx, q)
	if err != nil {
		return nil, err
	}
	if len(vec) != entities.EmbeddingDimensions {
		return nil, fmt.Errorf("%w: got %d", entities.ErrEmbeddingDimension, len(vec))
	}
	if s.queryCache != nil && s.cacheTTL > 0 {
		s.queryCache.Set(q, vec, s.cacheTTL)
	}
	return vec, nil
}

// DeleteMeeting removes a meeting, everything derived from it and its media
func (s *queryService) DeleteMeeting(ctx context.Context, id uuid.UUID) error {
	meeting, err := s.getMeeting(ctx, id)
	if err != nil {
		return err
	}

	deleted, err := s.meetings.Delete(ctx, id)
	switch {
	case stdErrors.Is(err, entities.ErrMeetingProcessing):
		return fmt.Errorf("%w: %s", ucErrors.ErrMeetingBusy, id)
	case err != nil:
		return fmt.Errorf("%w: delete meeting: %v", ucErrors.ErrStorage, err)
	case !deleted:
		return ucErrors.ErrMeetingNotFound
	}

	if err := s.media.RemoveFile(ctx, meeting.MediaObject); err != nil {
		s.logger.Warn("failed to remove media of deleted meeting",
			zap.String("meeting_id", id.String()),
			zap.String("object", meeting.MediaObject),
			zap.Error(err),
		)
	}
	s.logger.Info("meeting deleted", zap.String("meeting_id", id.String()))
	return nil
}

func (s *queryService) getMeeting(ctx context.Context, id uuid.UUID) (*entities.Meeting, error) {
	meeting, err := s.meetings.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%w: get meeting: %v", ucErrors.ErrStorage, err)
	}
	if meeting == nil {
		return nil, ucErrors.ErrMeetingNotFound
	}
	return meeting, nil
}
