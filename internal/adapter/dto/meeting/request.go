package meeting

// ListMeetingsRequest represents query parameters for listing meetings.
// Callers prefill the defaults before binding.
type ListMeetingsRequest struct {
	Skip  int `query:"skip" validate:"min=0"`
	Limit int `query:"limit" validate:"min=1"`
}

// SearchRequest represents a semantic search over transcript chunks
type SearchRequest struct {
	Query     string  `json:"query" validate:"required,notblank,max=2000"`
	MeetingID *string `json:"meeting_id,omitempty" validate:"omitempty,uuid"`
}
