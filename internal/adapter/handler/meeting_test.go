package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/johnquangdev/meeting-intelligence/internal/adapter/dto/meeting"
	"github.com/johnquangdev/meeting-intelligence/internal/adapter/repository/memrepo"
	"github.com/johnquangdev/meeting-intelligence/internal/domain/entities"
	"github.com/johnquangdev/meeting-intelligence/internal/usecase/ingest"
	"github.com/johnquangdev/meeting-intelligence/internal/usecase/query"
	"github.com/johnquangdev/meeting-intelligence/pkg/config"
	"github.com/johnquangdev/meeting-intelligence/pkg/metrics"
	pkgvalidator "github.com/johnquangdev/meeting-intelligence/pkg/validator"
)

type memMedia struct {
	mu        sync.Mutex
	objects   map[string][]byte
	uploadErr error
}

func (m *memMedia) UploadFile(_ context.Context, name string, r io.Reader, _ int64, _ string) error {
	if m.uploadErr != nil {
		return m.uploadErr
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[name] = data
	return nil
}

func (m *memMedia) RemoveFile(_ context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, name)
	return nil
}

type memQueue struct {
	jobs []uuid.UUID
	err  error
}

func (q *memQueue) Enqueue(_ context.Context, id uuid.UUID) error {
	if q.err != nil {
		return q.err
	}
	q.jobs = append(q.jobs, id)
	return nil
}

type axisEmbedder struct {
	err error
}

func (e *axisEmbedder) Embed(_ context.Context, _ string) ([]float32, error) {
	if e.err != nil {
		return nil, e.err
	}
	v := make([]float32, entities.EmbeddingDimensions)
	v[0] = 1
	return v, nil
}

type server struct {
	e        *echo.Echo
	store    *memrepo.Store
	media    *memMedia
	queue    *memQueue
	embedder *axisEmbedder
}

func newServer(t *testing.T, checks map[string]HealthCheck) *server {
	t.Helper()
	cfg := &config.Config{
		Server: config.ServerConfig{Environment: "test"},
		Upload: config.UploadConfig{MaxSizeMB: 1},
		Search: config.SearchConfig{ResultLimit: 5},
	}
	s := &server{
		e:        echo.New(),
		store:    memrepo.New(),
		queue:    &memQueue{},
		embedder: &axisEmbedder{},
	}
	s.media = &memMedia{objects: make(map[string][]byte)}
	media := s.media
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	ingestSvc := ingest.NewService(s.store.Meetings(), media, s.queue, cfg, m, nil)
	querySvc := query.NewService(s.store.Meetings(), s.store.Artifacts(), s.store.Vectors(), s.embedder, media, nil, cfg, m, nil)

	s.e.Validator = pkgvalidator.New()
	NewRouter(cfg, NewMeetingHandler(ingestSvc, querySvc, cfg.MaxUploadBytes(), nil), checks, reg).Setup(s.e)
	return s
}

func (s *server) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.e.ServeHTTP(rec, req)
	return rec
}

func (s *server) completed(t *testing.T) *entities.Meeting {
	t.Helper()
	m := entities.NewMeeting("weekly.mp3", "audio/mpeg", 100)
	now := time.Now().UTC()
	m.Status = entities.MeetingStatusProcessing
	m.ProcessingStartedAt = &now
	s.store.Put(m)

	chunk := entities.TranscriptChunk{ID: uuid.New(), MeetingID: m.ID, Speaker: "A", Text: "We agreed to ship.", EndTime: 3}
	v := make([]float32, entities.EmbeddingDimensions)
	v[0] = 1
	deadline := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	artifacts := &entities.MeetingArtifacts{
		Chunks:        []entities.TranscriptChunk{chunk},
		ActionItems:   []entities.ActionItem{{ID: uuid.New(), MeetingID: m.ID, Task: "Ship it", Assignee: "Alice", Deadline: &deadline}},
		Decisions:     []entities.Decision{{ID: uuid.New(), MeetingID: m.ID, Text: "Ship Friday", MadeBy: []string{"Alice"}}},
		Participants:  []entities.Participant{{ID: uuid.New(), MeetingID: m.ID, Name: "Alice", SpeakerLabel: "A"}},
		Topics:        []entities.Topic{{ID: uuid.New(), MeetingID: m.ID, Label: "Release"}},
		VectorEntries: []entities.VectorEntry{entities.NewVectorEntry(chunk, v)},
	}
	require.NoError(t, s.store.Artifacts().Commit(context.Background(), m.ID, artifacts, 3))
	got, _ := s.store.Get(m.ID)
	return got
}

func multipartUpload(t *testing.T, path, filename string, content []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	part, err := w.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, path, &body)
	req.Header.Set(echo.HeaderContentType, w.FormDataContentType())
	return req
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestUploadThenPollStatus(t *testing.T) {
	s := newServer(t, nil)
	payload := append([]byte("ID3\x03\x00\x00\x00\x00\x00\x00"), bytes.Repeat([]byte{0}, 2048)...)

	rec := s.do(multipartUpload(t, "/upload", "standup.mp3", payload))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var uploaded meeting.UploadResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &uploaded))
	require.NotEmpty(t, uploaded.MeetingID)
	assert.Equal(t, []uuid.UUID{uuid.MustParse(uploaded.MeetingID)}, s.queue.jobs)

	rec = s.do(httptest.NewRequest(http.MethodGet, "/api/meetings/"+uploaded.MeetingID+"/status", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var status meeting.StatusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.Equal(t, "uploaded", status.Status)
	assert.Nil(t, status.FailureReason)
	assert.Equal(t, 0, status.Progress)
}

func TestUpload_Rejections(t *testing.T) {
	s := newServer(t, nil)

	rec := s.do(multipartUpload(t, "/upload", "notes.txt", []byte("plain text notes")))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "UNSUPPORTED_MEDIA", decodeError(t, rec)["code"])

	rec = s.do(multipartUpload(t, "/upload", "big.mp3", bytes.Repeat([]byte{1}, 2<<20)))
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)

	req := httptest.NewRequest(http.MethodPost, "/upload", strings.NewReader("{}"))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec = s.do(req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, s.queue.jobs)
}

func TestUpload_BackendFailures(t *testing.T) {
	payload := append([]byte("ID3\x03\x00\x00\x00\x00\x00\x00"), bytes.Repeat([]byte{0}, 2048)...)

	s := newServer(t, nil)
	s.media.uploadErr = errors.New("bucket gone")
	rec := s.do(multipartUpload(t, "/upload", "standup.mp3", payload))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "MEETING_UPLOAD_FAILED", decodeError(t, rec)["code"])

	s = newServer(t, nil)
	s.queue.err = errors.New("redis down")
	rec = s.do(multipartUpload(t, "/upload", "standup.mp3", payload))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "INTEGRATION_QUEUE_FAILED", decodeError(t, rec)["code"])
	assert.Empty(t, s.media.objects)
	total, err := s.store.Meetings().Count(context.Background())
	require.NoError(t, err)
	assert.Zero(t, total)
}

func TestGetMeeting(t *testing.T) {
	s := newServer(t, nil)

	rec := s.do(httptest.NewRequest(http.MethodGet, "/meetings/"+uuid.NewString(), nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "MEETING_NOT_FOUND", decodeError(t, rec)["code"])

	pending := entities.NewMeeting("a.mp3", "audio/mpeg", 1)
	s.store.Put(pending)
	rec = s.do(httptest.NewRequest(http.MethodGet, "/meetings/"+pending.ID.String(), nil))
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "MEETING_NOT_READY", decodeError(t, rec)["code"])

	done := s.completed(t)
	rec = s.do(httptest.NewRequest(http.MethodGet, "/meetings/"+done.ID.String(), nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var details meeting.MeetingDetailResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &details))
	assert.Equal(t, "completed", details.Status)
	assert.Equal(t, "We agreed to ship.", details.Transcript.Text)
	require.Len(t, details.ActionItems, 1)
	require.NotNil(t, details.ActionItems[0].Deadline)
	assert.Equal(t, "2024-06-01", *details.ActionItems[0].Deadline)
	assert.Equal(t, []string{"Release"}, details.Topics)
	assert.Equal(t, []string{"Alice"}, details.Decisions[0].MadeBy)
}

func TestListMeetings(t *testing.T) {
	s := newServer(t, nil)
	for i := 0; i < 3; i++ {
		m := entities.NewMeeting("m.mp3", "audio/mpeg", 1)
		m.UploadedAt = time.Now().UTC().Add(-time.Duration(i) * time.Minute)
		s.store.Put(m)
	}

	rec := s.do(httptest.NewRequest(http.MethodGet, "/meetings?skip=1&limit=5", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var page []meeting.MeetingSummary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &page))
	assert.Len(t, page, 2)
	assert.Equal(t, "3", rec.Header().Get("X-Total-Count"))

	rec = s.do(httptest.NewRequest(http.MethodGet, "/meetings?limit=abc", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = s.do(httptest.NewRequest(http.MethodGet, "/meetings?skip=-1", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSearch(t *testing.T) {
	s := newServer(t, nil)
	done := s.completed(t)

	post := func(body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/search", strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
		return s.do(req)
	}

	rec := post(`{"query": "when do we ship?", "meeting_id": "` + done.ID.String() + `"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp meeting.SearchResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Results, 1)
	assert.Equal(t, "We agreed to ship.", resp.Results[0].Content)
	assert.Equal(t, done.ID.String(), resp.Results[0].Metadata["meeting_id"])
	assert.InDelta(t, 0.0, resp.Results[0].Distance, 1e-9)

	rec = post(`{"query": "   "}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = post(`{"query": "x", "meeting_id": "not-a-uuid"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	s.embedder.err = errors.New("embedding backend unreachable")
	rec = post(`{"query": "anything else"}`)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Equal(t, "SEARCH_FAILED", decodeError(t, rec)["code"])
}

func TestDeleteMeeting(t *testing.T) {
	s := newServer(t, nil)
	done := s.completed(t)

	rec := s.do(httptest.NewRequest(http.MethodDelete, "/meetings/"+done.ID.String(), nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = s.do(httptest.NewRequest(http.MethodGet, "/meetings/"+done.ID.String()+"/status", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	busy := entities.NewMeeting("b.mp3", "audio/mpeg", 1)
	busy.Status = entities.MeetingStatusProcessing
	s.store.Put(busy)
	rec = s.do(httptest.NewRequest(http.MethodDelete, "/api/meetings/"+busy.ID.String(), nil))
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "MEETING_BUSY", decodeError(t, rec)["code"])
}

func TestHealthAndMetrics(t *testing.T) {
	s := newServer(t, map[string]HealthCheck{
		"database": func(context.Context) error { return nil },
		"redis":    func(context.Context) error { return errors.New("connection refused") },
	})

	rec := s.do(httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	body := decodeError(t, rec)
	assert.Equal(t, "degraded", body["status"])
	checks := body["checks"].(map[string]any)
	assert.Equal(t, "ok", checks["database"])
	assert.Equal(t, "connection refused", checks["redis"])

	rec = s.do(multipartUpload(t, "/upload", "notes.txt", []byte("not media")))
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "meeting_uploads_total")
}
