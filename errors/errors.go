package errors

import (
	"fmt"
	"net/http"
	"time"
)

// AppError is the error shape returned to API clients.
type AppError struct {
	Raw       error
	HTTPCode  int
	Code      ErrorCode
	Message   string
	Details   map[string]string
	Timestamp time.Time
}

// Error implements error interface
func (e AppError) Error() string {
	if e.Raw != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code.String(), e.Message, e.Raw)
	}
	return fmt.Sprintf("[%s] %s", e.Code.String(), e.Message)
}

// Unwrap exposes the underlying cause to errors.Is/As.
func (e AppError) Unwrap() error {
	return e.Raw
}

// WithDetail adds a detail to the error
func (e AppError) WithDetail(key, value string) AppError {
	details := make(map[string]string, len(e.Details)+1)
	for k, v := range e.Details {
		details[k] = v
	}
	details[key] = value
	e.Details = details
	return e
}

func newAppError(httpCode int, code ErrorCode, message string, raw error) AppError {
	return AppError{
		Raw:       raw,
		HTTPCode:  httpCode,
		Code:      code,
		Message:   message,
		Timestamp: time.Now().UTC(),
	}
}

// General Errors
func ErrInternal(err error) AppError {
	return newAppError(http.StatusInternalServerError, ErrorCode_INTERNAL, "Internal server error", err)
}

func ErrInvalidArgument(message string) AppError {
	return newAppError(http.StatusBadRequest, ErrorCode_INVALID_ARGUMENT, message, nil)
}

func ErrInvalidPayload() AppError {
	return newAppError(http.StatusBadRequest, ErrorCode_INVALID_PAYLOAD, "Invalid payload", nil)
}

// Meeting Errors
func ErrMeetingNotFound(meetingID string) AppError {
	return newAppError(http.StatusNotFound, ErrorCode_MEETING_NOT_FOUND, "Meeting not found", nil).
		WithDetail("meeting_id", meetingID)
}

func ErrMeetingNotReady(meetingID, status string) AppError {
	return newAppError(http.StatusConflict, ErrorCode_MEETING_NOT_READY, "Meeting is still being processed", nil).
		WithDetail("meeting_id", meetingID).
		WithDetail("status", status)
}

func ErrMeetingBusy(meetingID string) AppError {
	return newAppError(http.StatusConflict, ErrorCode_MEETING_BUSY, "Meeting is currently being processed", nil).
		WithDetail("meeting_id", meetingID)
}

func ErrUnsupportedMedia(contentType string) AppError {
	return newAppError(http.StatusBadRequest, ErrorCode_UNSUPPORTED_MEDIA, "Unsupported media type, expected audio or video", nil).
		WithDetail("content_type", contentType)
}

func ErrPayloadTooLarge(maxBytes int64) AppError {
	return newAppError(http.StatusRequestEntityTooLarge, ErrorCode_PAYLOAD_TOO_LARGE, "Uploaded file is too large", nil).
		WithDetail("max_bytes", fmt.Sprintf("%d", maxBytes))
}

func ErrMeetingUploadFailed(err error) AppError {
	return newAppError(http.StatusInternalServerError, ErrorCode_MEETING_UPLOAD_FAILED, "Failed to store upload", err)
}

func ErrSearchFailed(err error) AppError {
	return newAppError(http.StatusBadGateway, ErrorCode_SEARCH_FAILED, "Search failed", err)
}

// Integration Errors
func ErrStorageFailed(operation string, err error) AppError {
	return newAppError(http.StatusInternalServerError, ErrorCode_INTEGRATION_STORAGE_FAILED,
		fmt.Sprintf("Storage operation failed: %s", operation), err)
}

func ErrQueueFailed(operation string, err error) AppError {
	return newAppError(http.StatusInternalServerError, ErrorCode_INTEGRATION_QUEUE_FAILED,
		fmt.Sprintf("Queue operation failed: %s", operation), err)
}

