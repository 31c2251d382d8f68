package errors

import "errors"

// Common errors
var (
	ErrValidation = errors.New("invalid input")
	ErrStorage    = errors.New("storage failure")
	ErrQueue      = errors.New("job queue failure")
	ErrTransient  = errors.New("transient pipeline failure")
)

// Meeting errors
var (
	ErrMeetingNotFound   = errors.New("meeting not found")
	ErrMeetingNotReady   = errors.New("meeting is not ready")
	ErrMeetingBusy       = errors.New("meeting is being processed")
	ErrUnsupportedMedia  = errors.New("unsupported media type")
	ErrPayloadTooLarge   = errors.New("upload exceeds size limit")
	ErrEmptyTranscript   = errors.New("transcript is empty")
	ErrMalformedAnalysis = errors.New("malformed model output")
)

// Search errors
var (
	ErrSearch = errors.New("search failed")
)
