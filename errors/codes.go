package errors

// ErrorCode identifies an application error in API responses.
type ErrorCode int32

const (
	ErrorCode_UNSPECIFIED ErrorCode = 0

	// General
	ErrorCode_INTERNAL         ErrorCode = 1000
	ErrorCode_INVALID_ARGUMENT ErrorCode = 1001
	ErrorCode_INVALID_PAYLOAD  ErrorCode = 1004

	// Meetings
	ErrorCode_MEETING_NOT_FOUND     ErrorCode = 2000
	ErrorCode_MEETING_NOT_READY     ErrorCode = 2001
	ErrorCode_MEETING_BUSY          ErrorCode = 2002
	ErrorCode_UNSUPPORTED_MEDIA     ErrorCode = 2003
	ErrorCode_PAYLOAD_TOO_LARGE     ErrorCode = 2004
	ErrorCode_SEARCH_FAILED         ErrorCode = 2006
	ErrorCode_MEETING_UPLOAD_FAILED ErrorCode = 2008

	// Integrations
	ErrorCode_INTEGRATION_STORAGE_FAILED ErrorCode = 3000
	ErrorCode_INTEGRATION_QUEUE_FAILED   ErrorCode = 3001
)

var errorCodeNames = map[ErrorCode]string{
	ErrorCode_UNSPECIFIED:                "UNSPECIFIED",
	ErrorCode_INTERNAL:                   "INTERNAL",
	ErrorCode_INVALID_ARGUMENT:           "INVALID_ARGUMENT",
	ErrorCode_INVALID_PAYLOAD:            "INVALID_PAYLOAD",
	ErrorCode_MEETING_NOT_FOUND:          "MEETING_NOT_FOUND",
	ErrorCode_MEETING_NOT_READY:          "MEETING_NOT_READY",
	ErrorCode_MEETING_BUSY:               "MEETING_BUSY",
	ErrorCode_UNSUPPORTED_MEDIA:          "UNSUPPORTED_MEDIA",
	ErrorCode_PAYLOAD_TOO_LARGE:          "PAYLOAD_TOO_LARGE",
	ErrorCode_SEARCH_FAILED:              "SEARCH_FAILED",
	ErrorCode_MEETING_UPLOAD_FAILED:      "MEETING_UPLOAD_FAILED",
	ErrorCode_INTEGRATION_STORAGE_FAILED: "INTEGRATION_STORAGE_FAILED",
	ErrorCode_INTEGRATION_QUEUE_FAILED:   "INTEGRATION_QUEUE_FAILED",
}

// String returns the symbolic name of the code.
func (c ErrorCode) String() string {
	if name, ok := errorCodeNames[c]; ok {
		return name
	}
	return "UNSPECIFIED"
}

// MarshalText renders the code by name in JSON bodies.
func (c ErrorCode) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}
