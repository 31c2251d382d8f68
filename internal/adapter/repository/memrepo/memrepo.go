// Package memrepo provides in-memory repositories with the same semantics as
// the Postgres ones. It backs usecase and handler tests.
package memrepo

import (
	"context"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/johnquangdev/meeting-intelligence/internal/domain/entities"
	"github.com/johnquangdev/meeting-intelligence/internal/domain/repositories"
)

var (
	_ repositories.MeetingRepository  = (*MeetingRepository)(nil)
	_ repositories.ArtifactRepository = (*ArtifactRepository)(nil)
	_ repositories.VectorIndex        = (*VectorIndex)(nil)
)

// Store holds meetings, their artifacts and vector entries
type Store struct {
	mu        sync.Mutex
	meetings  map[uuid.UUID]*entities.Meeting
	artifacts map[uuid.UUID]*entities.MeetingArtifacts

	// CreateErr and CommitErr inject failures when set
	CreateErr error
	CommitErr error
}

// New creates an empty store
func New() *Store {
	return &Store{
		meetings:  make(map[uuid.UUID]*entities.Meeting),
		artifacts: make(map[uuid.UUID]*entities.MeetingArtifacts),
	}
}

// Meetings returns the store as a MeetingRepository
func (s *Store) Meetings() *MeetingRepository { return &MeetingRepository{s: s} }

// Artifacts returns the store as an ArtifactRepository
func (s *Store) Artifacts() *ArtifactRepository { return &ArtifactRepository{s: s} }

// Vectors returns the store as a VectorIndex
func (s *Store) Vectors() *VectorIndex { return &VectorIndex{s: s} }

// Put inserts or replaces a meeting directly
func (s *Store) Put(m *entities.Meeting) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *m
	s.meetings[m.ID] = &cp
}

// Get returns a copy of a stored meeting
func (s *Store) Get(id uuid.UUID) (*entities.Meeting, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.meetings[id]
	if !ok {
		return nil, false
	}
	cp := *m
	return &cp, true
}

// CountDerived returns the number of derived rows stored for a meeting
func (s *Store) CountDerived(id uuid.UUID) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.artifacts[id]
	if !ok {
		return 0
	}
	return len(a.Chunks) + len(a.ActionItems) + len(a.Decisions) +
		len(a.Participants) + len(a.Topics) + len(a.VectorEntries)
}

// MeetingRepository is the in-memory MeetingRepository
type MeetingRepository struct{ s *Store }

func (r *MeetingRepository) Create(ctx context.Context, meeting *entities.Meeting, beforeCommit func(ctx context.Context) error) error {
	r.s.mu.Lock()
	if r.s.CreateErr != nil {
		r.s.mu.Unlock()
		return r.s.CreateErr
	}
	r.s.mu.Unlock()

	if beforeCommit != nil {
		if err := beforeCommit(ctx); err != nil {
			return err
		}
	}
	r.s.Put(meeting)
	return nil
}

func (r *MeetingRepository) GetByID(_ context.Context, id uuid.UUID) (*entities.Meeting, error) {
	m, ok := r.s.Get(id)
	if !ok {
		return nil, nil
	}
	return m, nil
}

func (r *MeetingRepository) List(_ context.Context, offset, limit int) ([]*entities.Meeting, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	all := make([]*entities.Meeting, 0, len(r.s.meetings))
	for _, m := range r.s.meetings {
		cp := *m
		all = append(all, &cp)
	}
	sort.Slice(all, func(i, j int) bool {
		if !all[i].UploadedAt.Equal(all[j].UploadedAt) {
			return all[i].UploadedAt.After(all[j].UploadedAt)
		}
		return all[i].ID.String() > all[j].ID.String()
	})
	if offset >= len(all) || limit <= 0 {
		return []*entities.Meeting{}, nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], nil
}

func (r *MeetingRepository) Count(context.Context) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return int64(len(r.s.meetings)), nil
}

func (r *MeetingRepository) ClaimForProcessing(_ context.Context, id uuid.UUID, staleBefore time.Time) (*entities.Meeting, bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	m, ok := r.s.meetings[id]
	if !ok {
		return nil, false, nil
	}
	if !m.Status.CanTransitionTo(entities.MeetingStatusProcessing) {
		cp := *m
		return &cp, false, nil
	}
	if m.Status == entities.MeetingStatusProcessing && m.ProcessingStartedAt != nil && !m.ProcessingStartedAt.Before(staleBefore) {
		cp := *m
		return &cp, false, nil
	}

	now := time.Now().UTC()
	stage := entities.StageTranscribing
	m.Status = entities.MeetingStatusProcessing
	m.Stage = &stage
	m.FailureReason = nil
	m.Attempts++
	m.ProcessingStartedAt = &now
	m.UpdatedAt = now
	cp := *m
	return &cp, true, nil
}

func (r *MeetingRepository) UpdateStage(_ context.Context, id uuid.UUID, stage entities.PipelineStage) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	m, ok := r.s.meetings[id]
	if !ok || m.Status != entities.MeetingStatusProcessing {
		return entities.ErrMeetingNotProcessing
	}
	m.Stage = &stage
	m.UpdatedAt = time.Now().UTC()
	return nil
}

func (r *MeetingRepository) MarkFailed(_ context.Context, id uuid.UUID, reason string) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	m, ok := r.s.meetings[id]
	if !ok || m.Status != entities.MeetingStatusProcessing {
		return false, nil
	}
	now := time.Now().UTC()
	m.Status = entities.MeetingStatusFailed
	m.Stage = nil
	m.FailureReason = &reason
	m.CompletedAt = &now
	m.UpdatedAt = now
	return true, nil
}

func (r *MeetingRepository) ListStale(_ context.Context, cutoff time.Time, limit int) ([]*entities.Meeting, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	out := make([]*entities.Meeting, 0)
	for _, m := range r.s.meetings {
		stale := false
		switch m.Status {
		case entities.MeetingStatusProcessing:
			stale = m.ProcessingStartedAt == nil || m.ProcessingStartedAt.Before(cutoff)
		case entities.MeetingStatusUploaded:
			stale = m.UploadedAt.Before(cutoff)
		}
		if stale {
			cp := *m
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UploadedAt.Before(out[j].UploadedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *MeetingRepository) Delete(_ context.Context, id uuid.UUID) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	m, ok := r.s.meetings[id]
	if !ok {
		return false, nil
	}
	if m.Status == entities.MeetingStatusProcessing {
		return false, entities.ErrMeetingProcessing
	}
	delete(r.s.meetings, id)
	delete(r.s.artifacts, id)
	return true, nil
}

// ArtifactRepository is the in-memory ArtifactRepository
type ArtifactRepository struct{ s *Store }

func (r *ArtifactRepository) Commit(_ context.Context, meetingID uuid.UUID, artifacts *entities.MeetingArtifacts, durationSeconds float64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if r.s.CommitErr != nil {
		return r.s.CommitErr
	}
	m, ok := r.s.meetings[meetingID]
	if !ok || !m.Status.CanTransitionTo(entities.MeetingStatusCompleted) {
		return entities.ErrMeetingNotProcessing
	}
	if artifacts == nil {
		artifacts = &entities.MeetingArtifacts{}
	}
	for _, e := range artifacts.VectorEntries {
		if len(e.Embedding.Slice()) != entities.EmbeddingDimensions {
			return entities.ErrEmbeddingDimension
		}
	}

	cp := *artifacts
	r.s.artifacts[meetingID] = &cp

	now := time.Now().UTC()
	m.Status = entities.MeetingStatusCompleted
	m.Stage = nil
	m.FailureReason = nil
	m.DurationSeconds = durationSeconds
	m.CompletedAt = &now
	m.UpdatedAt = now
	return nil
}

func (r *ArtifactRepository) Get(_ context.Context, meetingID uuid.UUID) (*entities.MeetingArtifacts, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	out := &entities.MeetingArtifacts{}
	if a, ok := r.s.artifacts[meetingID]; ok {
		out.Chunks = append(out.Chunks, a.Chunks...)
		out.ActionItems = append(out.ActionItems, a.ActionItems...)
		out.Decisions = append(out.Decisions, a.Decisions...)
		out.Participants = append(out.Participants, a.Participants...)
		out.Topics = append(out.Topics, a.Topics...)
	}
	out.Normalize()
	return out, nil
}

// VectorIndex is the in-memory VectorIndex using exact cosine distance
type VectorIndex struct{ s *Store }

func (v *VectorIndex) Search(_ context.Context, query []float32, meetingID *uuid.UUID, limit int) ([]entities.VectorMatch, error) {
	if len(query) != entities.EmbeddingDimensions {
		return nil, entities.ErrEmbeddingDimension
	}
	v.s.mu.Lock()
	defer v.s.mu.Unlock()

	matches := make([]entities.VectorMatch, 0)
	for id, a := range v.s.artifacts {
		if meetingID != nil && id != *meetingID {
			continue
		}
		for _, e := range a.VectorEntries {
			matches = append(matches, entities.VectorMatch{
				Entry:    e,
				Distance: cosineDistance(query, e.Embedding.Slice()) / 2,
			})
		}
	}
	sort.SliceStable(matches, func(i, j int) bool { return matches[i].Distance < matches[j].Distance })
	if limit >= 0 && len(matches) > limit {
		matches = matches[:limit]
	}
	return matches, nil
}

func cosineDistance(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		if i >= len(b) {
			break
		}
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 2
	}
	d := 1 - dot/(math.Sqrt(na)*math.Sqrt(nb))
	return math.Max(0, math.Min(2, d))
}
