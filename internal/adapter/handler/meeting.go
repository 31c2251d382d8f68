package handler

import (
	stdErrors "errors"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/johnquangdev/meeting-intelligence/errors"
	"github.com/johnquangdev/meeting-intelligence/internal/adapter/dto/meeting"
	"github.com/johnquangdev/meeting-intelligence/internal/adapter/presenter"
	ucErrors "github.com/johnquangdev/meeting-intelligence/internal/usecase/errors"
	"github.com/johnquangdev/meeting-intelligence/internal/usecase/ingest"
	"github.com/johnquangdev/meeting-intelligence/internal/usecase/query"
)

const headerTotalCount = "X-Total-Count"

// Meeting handles upload, status, detail, listing, search and delete requests
type Meeting struct {
	ingest         ingest.Service
	query          query.Service
	maxUploadBytes int64
	logger         *zap.Logger
}

// NewMeetingHandler creates a new meeting handler
func NewMeetingHandler(ingestService ingest.Service, queryService query.Service, maxUploadBytes int64, logger *zap.Logger) *Meeting {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Meeting{
		ingest:         ingestService,
		query:          queryService,
		maxUploadBytes: maxUploadBytes,
		logger:         logger.Named("http"),
	}
}

func (h *Meeting) fail(c echo.Context, err error, meetingID string) error {
	return HandleError(h.logger, c, toAppError(err, meetingID, h.maxUploadBytes))
}

// Upload handles POST /upload
// @Summary      Upload a meeting recording
// @Tags         Meetings
// @Accept       multipart/form-data
// @Produce      json
// @Param        file  formData  file  true  "Audio or video file"
// @Success      200   {object}  meeting.UploadResponse
// @Failure      400   {object}  errs
// @Failure      413   {object}  errs
// @Router       /upload [post]
func (h *Meeting) Upload(c echo.Context) error {
	fh, err := c.FormFile("file")
	if err != nil {
		return HandleError(h.logger, c, errors.ErrInvalidArgument("multipart field \"file\" is required"))
	}

	file, err := fh.Open()
	if err != nil {
		return HandleError(h.logger, c, errors.ErrInvalidPayload())
	}
	defer file.Close()

	m, err := h.ingest.Upload(c.Request().Context(), ingest.UploadInput{
		Filename: fh.Filename,
		Size:     fh.Size,
		Body:     file,
	})
	if err != nil {
		if stdErrors.Is(err, ucErrors.ErrStorage) {
			return HandleError(h.logger, c, errors.ErrMeetingUploadFailed(err))
		}
		return h.fail(c, err, "")
	}

	return c.JSON(http.StatusOK, meeting.UploadResponse{MeetingID: m.ID.String()})
}

// GetStatus handles GET /meetings/:id/status
// @Summary      Get meeting processing status
// @Tags         Meetings
// @Produce      json
// @Param        id   path      string  true  "Meeting ID (UUID)"
// @Success      200  {object}  meeting.StatusResponse
// @Failure      404  {object}  errs
// @Router       /meetings/{id}/status [get]
func (h *Meeting) GetStatus(c echo.Context) error {
	rawID := c.Param("id")
	id, err := uuid.Parse(rawID)
	if err != nil {
		return HandleError(h.logger, c, errors.ErrMeetingNotFound(rawID))
	}

	m, err := h.query.GetStatus(c.Request().Context(), id)
	if err != nil {
		return h.fail(c, err, rawID)
	}

	return c.JSON(http.StatusOK, presenter.ToStatusResponse(m))
}

// GetMeeting handles GET /meetings/:id
// @Summary      Get a completed meeting with transcript and insights
// @Tags         Meetings
// @Produce      json
// @Param        id   path      string  true  "Meeting ID (UUID)"
// @Success      200  {object}  meeting.MeetingDetailResponse
// @Failure      404  {object}  errs
// @Failure      409  {object}  errs  "Meeting not completed yet"
// @Router       /meetings/{id} [get]
func (h *Meeting) GetMeeting(c echo.Context) error {
	rawID := c.Param("id")
	id, err := uuid.Parse(rawID)
	if err != nil {
		return HandleError(h.logger, c, errors.ErrMeetingNotFound(rawID))
	}

	details, err := h.query.GetDetails(c.Request().Context(), id)
	if err != nil {
		if stdErrors.Is(err, ucErrors.ErrMeetingNotReady) && details != nil && details.Meeting != nil {
			return HandleError(h.logger, c, errors.ErrMeetingNotReady(rawID, string(details.Meeting.Status)))
		}
		return h.fail(c, err, rawID)
	}

	return c.JSON(http.StatusOK, presenter.ToMeetingDetailResponse(details.Meeting, details.Artifacts))
}

// ListMeetings handles GET /meetings
// @Summary      List meetings, newest first
// @Tags         Meetings
// @Produce      json
// @Param        skip   query     int  false  "Offset"  default(0)
// @Param        limit  query     int  false  "Page size (max 100)"  default(100)
// @Success      200    {array}   meeting.MeetingSummary
// @Header       200    {integer} X-Total-Count  "Total number of meetings"
// @Failure      400    {object}  errs
// @Router       /meetings [get]
func (h *Meeting) ListMeetings(c echo.Context) error {
	req := meeting.ListMeetingsRequest{Skip: 0, Limit: query.DefaultListLimit}
	if err := c.Bind(&req); err != nil {
		return HandleError(h.logger, c, errors.ErrInvalidArgument("skip and limit must be integers"))
	}
	if err := c.Validate(&req); err != nil {
		return HandleError(h.logger, c, errors.ErrInvalidArgument(err.Error()))
	}

	meetings, err := h.query.ListMeetings(c.Request().Context(), req.Skip, req.Limit)
	if err != nil {
		return h.fail(c, err, "")
	}
	total, err := h.query.CountMeetings(c.Request().Context())
	if err != nil {
		return h.fail(c, err, "")
	}

	c.Response().Header().Set(headerTotalCount, strconv.FormatInt(total, 10))

	return c.JSON(http.StatusOK, presenter.ToMeetingSummaries(meetings))
}

// Search handles POST /search
// @Summary      Semantic search over meeting transcripts
// @Tags         Search
// @Accept       json
// @Produce      json
// @Param        request  body      meeting.SearchRequest  true  "Search request"
// @Success      200      {object}  meeting.SearchResponse
// @Failure      400      {object}  errs
// @Failure      502      {object}  errs  "Embedding or index failure"
// @Router       /search [post]
func (h *Meeting) Search(c echo.Context) error {
	var req meeting.SearchRequest
	if err := c.Bind(&req); err != nil {
		return HandleError(h.logger, c, errors.ErrInvalidPayload())
	}
	if err := c.Validate(&req); err != nil {
		return HandleError(h.logger, c, errors.ErrInvalidArgument(err.Error()))
	}

	in := query.SearchInput{Query: req.Query}
	if req.MeetingID != nil {
		in.MeetingID = *req.MeetingID
	}

	matches, err := h.query.Search(c.Request().Context(), in)
	if err != nil {
		return h.fail(c, err, in.MeetingID)
	}

	return c.JSON(http.StatusOK, presenter.ToSearchResponse(matches))
}

// DeleteMeeting handles DELETE /meetings/:id
// @Summary      Delete a meeting and everything derived from it
// @Tags         Meetings
// @Param        id   path  string  true  "Meeting ID (UUID)"
// @Success      204
// @Failure      404  {object}  errs
// @Failure      409  {object}  errs  "Meeting is processing"
// @Router       /meetings/{id} [delete]
func (h *Meeting) DeleteMeeting(c echo.Context) error {
	rawID := c.Param("id")
	id, err := uuid.Parse(rawID)
	if err != nil {
		return HandleError(h.logger, c, errors.ErrMeetingNotFound(rawID))
	}

	if err := h.query.DeleteMeeting(c.Request().Context(), id); err != nil {
		return h.fail(c, err, rawID)
	}

	return c.NoContent(http.StatusNoContent)
}
