package handler

import (
	stdErrors "errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/johnquangdev/meeting-intelligence/errors"
	ucErrors "github.com/johnquangdev/meeting-intelligence/internal/usecase/errors"
)

// Response shapes
type errs struct {
	Code    interface{} `json:"code,omitempty"`
	Message string      `json:"message,omitempty"`
	Info    string      `json:"info,omitempty"`
}

// getRequestID reads the request id set by the RequestID middleware
func getRequestID(c echo.Context) string {
	if c == nil || c.Request() == nil {
		return ""
	}
	if id := c.Response().Header().Get(echo.HeaderXRequestID); id != "" {
		return id
	}
	return c.Request().Header.Get(echo.HeaderXRequestID)
}

// toAppError maps usecase errors to API errors
func toAppError(err error, meetingID string, maxUploadBytes int64) error {
	var appErr errors.AppError
	if stdErrors.As(err, &appErr) {
		return appErr
	}

	switch {
	case stdErrors.Is(err, ucErrors.ErrMeetingNotFound):
		return errors.ErrMeetingNotFound(meetingID)
	case stdErrors.Is(err, ucErrors.ErrMeetingBusy):
		return errors.ErrMeetingBusy(meetingID)
	case stdErrors.Is(err, ucErrors.ErrPayloadTooLarge):
		return errors.ErrPayloadTooLarge(maxUploadBytes)
	case stdErrors.Is(err, ucErrors.ErrUnsupportedMedia):
		appErr = errors.ErrUnsupportedMedia(err.Error())
		appErr.Raw = err
		return appErr
	case stdErrors.Is(err, ucErrors.ErrValidation):
		return errors.ErrInvalidArgument(err.Error())
	case stdErrors.Is(err, ucErrors.ErrSearch):
		return errors.ErrSearchFailed(err)
	case stdErrors.Is(err, ucErrors.ErrQueue):
		return errors.ErrQueueFailed("enqueue meeting", err)
	case stdErrors.Is(err, ucErrors.ErrStorage):
		return errors.ErrStorageFailed("meeting store", err)
	}
	return errors.ErrInternal(err)
}

// HandleError centralizes error handling and logging using provided logger
func HandleError(logger *zap.Logger, c echo.Context, err error) error {
	reqID := getRequestID(c)

	var appErr errors.AppError
	if stdErrors.As(err, &appErr) {
		if logger != nil {
			fields := []zap.Field{
				zap.String("request_id", reqID),
				zap.String("path", c.Path()),
				zap.Any("app_code", appErr.Code),
				zap.Error(err),
			}
			if appErr.HTTPCode >= http.StatusInternalServerError {
				logger.Error("http.response.error", fields...)
			} else {
				logger.Info("http.response.error", fields...)
			}
		}

		info := ""
		if appErr.Raw != nil {
			info = appErr.Raw.Error()
		}

		body := errs{
			Code:    appErr.Code,
			Message: appErr.Message,
			Info:    info,
		}

		return c.JSON(appErr.HTTPCode, body)
	}

	if logger != nil {
		logger.Error("http.response.error",
			zap.String("request_id", reqID),
			zap.String("path", c.Path()),
			zap.Error(err),
		)
	}

	body := errs{
		Code:    errors.ErrorCode_INTERNAL,
		Message: "Internal server error",
		Info:    err.Error(),
	}

	return c.JSON(http.StatusInternalServerError, body)
}
