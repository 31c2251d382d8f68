package presenter

import (
	"github.com/johnquangdev/meeting-intelligence/internal/adapter/dto/meeting"
	"github.com/johnquangdev/meeting-intelligence/internal/domain/entities"
)

const dateLayout = "2006-01-02"

// ToStatusResponse converts a Meeting entity to StatusResponse DTO
func ToStatusResponse(m *entities.Meeting) *meeting.StatusResponse {
	if m == nil {
		return nil
	}

	resp := &meeting.StatusResponse{
		MeetingID: m.ID.String(),
		Status:    string(m.Status),
		Progress:  m.Progress(),
	}
	if m.Status == entities.MeetingStatusFailed {
		reason := m.Reason()
		resp.FailureReason = &reason
	}
	if m.Stage != nil && m.Status == entities.MeetingStatusProcessing {
		stage := string(*m.Stage)
		resp.Stage = &stage
	}
	return resp
}

// ToMeetingSummaries converts meetings to list entries
func ToMeetingSummaries(meetings []*entities.Meeting) []meeting.MeetingSummary {
	out := make([]meeting.MeetingSummary, 0, len(meetings))
	for _, m := range meetings {
		out = append(out, meeting.MeetingSummary{
			ID:        m.ID.String(),
			Filename:  m.Filename,
			Status:    string(m.Status),
			CreatedAt: m.UploadedAt,
		})
	}
	return out
}

// ToMeetingDetailResponse converts a completed meeting and its artifacts
func ToMeetingDetailResponse(m *entities.Meeting, a *entities.MeetingArtifacts) *meeting.MeetingDetailResponse {
	if m == nil {
		return nil
	}
	if a == nil {
		a = &entities.MeetingArtifacts{}
	}
	a.Normalize()

	resp := &meeting.MeetingDetailResponse{
		ID:              m.ID.String(),
		Filename:        m.Filename,
		ContentType:     m.ContentType,
		SizeBytes:       m.SizeBytes,
		Status:          string(m.Status),
		DurationSeconds: m.DurationSeconds,
		CreatedAt:       m.UploadedAt,
		CompletedAt:     m.CompletedAt,
		Transcript: meeting.TranscriptResponse{
			Text:   a.Transcript(),
			Chunks: make([]meeting.ChunkResponse, 0, len(a.Chunks)),
		},
		ActionItems:  make([]meeting.ActionItemResponse, 0, len(a.ActionItems)),
		Decisions:    make([]meeting.DecisionResponse, 0, len(a.Decisions)),
		Participants: make([]meeting.ParticipantResponse, 0, len(a.Participants)),
		Topics:       make([]string, 0, len(a.Topics)),
	}

	for _, c := range a.Chunks {
		resp.Transcript.Chunks = append(resp.Transcript.Chunks, meeting.ChunkResponse{
			ID:            c.ID.String(),
			SequenceIndex: c.SequenceIndex,
			Speaker:       c.Speaker,
			Text:          c.Text,
			StartTime:     c.StartTime,
			EndTime:       c.EndTime,
		})
	}
	for _, item := range a.ActionItems {
		var deadline *string
		if item.Deadline != nil {
			d := item.Deadline.Format(dateLayout)
			deadline = &d
		}
		resp.ActionItems = append(resp.ActionItems, meeting.ActionItemResponse{
			Task:     item.Task,
			Assignee: item.Assignee,
			Deadline: deadline,
		})
	}
	for _, d := range a.Decisions {
		madeBy := []string(d.MadeBy)
		if madeBy == nil {
			madeBy = []string{}
		}
		resp.Decisions = append(resp.Decisions, meeting.DecisionResponse{
			Decision: d.Text,
			MadeBy:   madeBy,
		})
	}
	for _, p := range a.Participants {
		var role *string
		if p.Role != "" {
			r := p.Role
			role = &r
		}
		resp.Participants = append(resp.Participants, meeting.ParticipantResponse{
			Name:         p.Name,
			Role:         role,
			SpeakerLabel: p.SpeakerLabel,
		})
	}
	for _, t := range a.Topics {
		resp.Topics = append(resp.Topics, t.Label)
	}
	return resp
}

// ToSearchResponse converts ranked vector matches
func ToSearchResponse(matches []entities.VectorMatch) *meeting.SearchResponse {
	results := make([]meeting.SearchResult, 0, len(matches))
	for _, match := range matches {
		metadata := make(map[string]any, len(match.Entry.Metadata)+1)
		for k, v := range match.Entry.Metadata {
			metadata[k] = v
		}
		metadata["meeting_id"] = match.Entry.MeetingID.String()

		results = append(results, meeting.SearchResult{
			ID:       match.Entry.ID.String(),
			Content:  match.Entry.Content,
			Distance: match.Distance,
			Metadata: metadata,
		})
	}
	return &meeting.SearchResponse{Results: results}
}
