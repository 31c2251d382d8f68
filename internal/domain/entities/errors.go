package entities

import "errors"

// Domain errors
var (
	ErrMeetingNotProcessing = errors.New("meeting is not processing")
	ErrMeetingProcessing    = errors.New("meeting is processing")
	ErrInvalidTransition    = errors.New("invalid meeting status transition")
	ErrEmbeddingDimension   = errors.New("embedding dimension mismatch")
)
