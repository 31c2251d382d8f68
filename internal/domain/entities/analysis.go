package entities

// MeetingArtifacts is the full derived-entity set of a completed meeting.
// It is written as one unit on commit.
type MeetingArtifacts struct {
	Chunks        []TranscriptChunk
	ActionItems   []ActionItem
	Decisions     []Decision
	Participants  []Participant
	Topics        []Topic
	VectorEntries []VectorEntry
}

// Transcript returns the full transcript text
func (a *MeetingArtifacts) Transcript() string {
	if a == nil {
		return ""
	}
	return JoinChunks(a.Chunks)
}

// Normalize initializes nil slices so responses render empty lists
func (a *MeetingArtifacts) Normalize() {
	if a.Chunks == nil {
		a.Chunks = make([]TranscriptChunk, 0)
	}
	if a.ActionItems == nil {
		a.ActionItems = make([]ActionItem, 0)
	}
	if a.Decisions == nil {
		a.Decisions = make([]Decision, 0)
	}
	if a.Participants == nil {
		a.Participants = make([]Participant, 0)
	}
	if a.Topics == nil {
		a.Topics = make([]Topic, 0)
	}
}
