package ingest

import (
	"bytes"
	"context"
	stdErrors "errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/johnquangdev/meeting-intelligence/internal/domain/entities"
	"github.com/johnquangdev/meeting-intelligence/internal/domain/repositories"
	ucErrors "github.com/johnquangdev/meeting-intelligence/internal/usecase/errors"
	"github.com/johnquangdev/meeting-intelligence/pkg/config"
	"github.com/johnquangdev/meeting-intelligence/pkg/metrics"
)

// sniffLen is how much of the upload is inspected for its media type
const sniffLen = 3072

// maxFilenameLen matches the meetings.filename column
const maxFilenameLen = 512

// MediaStore stores raw uploads
type MediaStore interface {
	UploadFile(ctx context.Context, objectName string, reader io.Reader, size int64, contentType string) error
	RemoveFile(ctx context.Context, objectName string) error
}

// JobQueue accepts pipeline jobs
type JobQueue interface {
	Enqueue(ctx context.Context, meetingID uuid.UUID) error
}

// UploadInput is one uploaded file
type UploadInput struct {
	Filename string
	Size     int64
	Body     io.Reader
}

// Service registers uploaded recordings
type Service interface {
	Upload(ctx context.Context, in UploadInput) (*entities.Meeting, error)
}

type ingestService struct {
	meetings    repositories.MeetingRepository
	media       MediaStore
	queue       JobQueue
	maxBytes    int64
	allowedExts map[string]struct{}
	metrics     *metrics.Metrics
	logger      *zap.Logger
}

// NewService creates the upload service
func NewService(
	meetings repositories.MeetingRepository,
	media MediaStore,
	queue JobQueue,
	cfg *config.Config,
	m *metrics.Metrics,
	logger *zap.Logger,
) Service {
	exts := cfg.Upload.AllowedExtensions
	if len(exts) == 0 {
		exts = config.DefaultAllowedExtensions
	}
	allowed := make(map[string]struct{}, len(exts))
	for _, ext := range exts {
		allowed[strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))] = struct{}{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &ingestService{
		meetings:    meetings,
		media:       media,
		queue:       queue,
		maxBytes:    cfg.MaxUploadBytes(),
		allowedExts: allowed,
		metrics:     m,
		logger:      logger.Named("ingest"),
	}
}

// Upload validates the media, stores it, then registers the meeting and its
// job in one transaction. On failure the stored object is removed.
func (s *ingestService) Upload(ctx context.Context, in UploadInput) (meeting *entities.Meeting, err error) {
	defer func() { s.metrics.IncUpload(err) }()

	filename := strings.TrimSpace(in.Filename)
	if filename == "" {
		return nil, fmt.Errorf("%w: filename is required", ucErrors.ErrValidation)
	}
	if !utf8.ValidString(filename) {
		return nil, fmt.Errorf("%w: filename is not valid UTF-8", ucErrors.ErrValidation)
	}
	if utf8.RuneCountInString(filename) > maxFilenameLen {
		return nil, fmt.Errorf("%w: filename exceeds %d characters", ucErrors.ErrValidation, maxFilenameLen)
	}
	if in.Body == nil || in.Size == 0 {
		return nil, fmt.Errorf("%w: file is empty", ucErrors.ErrValidation)
	}
	if s.maxBytes > 0 && in.Size > s.maxBytes {
		return nil, fmt.Errorf("%w: %w: %d bytes (max %d)", ucErrors.ErrValidation, ucErrors.ErrPayloadTooLarge, in.Size, s.maxBytes)
	}

	head := make([]byte, sniffLen)
	n, readErr := io.ReadFull(in.Body, head)
	if readErr != nil && !stdErrors.Is(readErr, io.ErrUnexpectedEOF) && !stdErrors.Is(readErr, io.EOF) {
		return nil, fmt.Errorf("%w: read upload: %v", ucErrors.ErrValidation, readErr)
	}
	head = head[:n]
	if n == 0 {
		return nil, fmt.Errorf("%w: file is empty", ucErrors.ErrValidation)
	}

	contentType, ok := s.acceptMedia(filename, head)
	if !ok {
		return nil, fmt.Errorf("%w: %w: %s", ucErrors.ErrValidation, ucErrors.ErrUnsupportedMedia, contentType)
	}

	meeting = entities.NewMeeting(filename, contentType, in.Size)
	log := s.logger.With(
		zap.String("meeting_id", meeting.ID.String()),
		zap.String("filename", filename),
		zap.Int64("size_bytes", in.Size),
	)

	body := io.MultiReader(bytes.NewReader(head), in.Body)
	if err := s.media.UploadFile(ctx, meeting.MediaObject, body, in.Size, contentType); err != nil {
		log.Error("failed to store media", zap.Error(err))
		return nil, fmt.Errorf("%w: store media: %v", ucErrors.ErrStorage, err)
	}

	err = s.meetings.Create(ctx, meeting, func(ctx context.Context) error {
		if err := s.queue.Enqueue(ctx, meeting.ID); err != nil {
			return fmt.Errorf("%w: %v", ucErrors.ErrQueue, err)
		}
		return nil
	})
	if err != nil {
		log.Error("failed to register meeting", zap.Error(err))
		if rmErr := s.media.RemoveFile(context.WithoutCancel(ctx), meeting.MediaObject); rmErr != nil {
			log.Warn("failed to remove orphaned media", zap.Error(rmErr))
		}
		if stdErrors.Is(err, ucErrors.ErrQueue) {
			return nil, fmt.Errorf("enqueue meeting: %w", err)
		}
		return nil, fmt.Errorf("%w: register meeting: %v", ucErrors.ErrStorage, err)
	}

	log.Info("meeting uploaded", zap.String("content_type", contentType))
	return meeting, nil
}

// acceptMedia reports whether the upload is audio or video, by sniffed type or
// by extension, and returns the content type to store.
func (s *ingestService) acceptMedia(filename string, head []byte) (string, bool) {
	detected := mimetype.Detect(head)
	for m := detected; m != nil; m = m.Parent() {
		mt := m.String()
		if strings.HasPrefix(mt, "audio/") || strings.HasPrefix(mt, "video/") {
			return mt, true
		}
	}

	ext := entities.FileExtension(filename)
	if _, ok := s.allowedExts[ext]; ok {
		if mt, known := extensionTypes[ext]; known {
			return mt, true
		}
		return "application/octet-stream", true
	}
	return detected.String(), false
}

var extensionTypes = map[string]string{
	"mp3":  "audio/mpeg",
	"wav":  "audio/wav",
	"m4a":  "audio/x-m4a",
	"ogg":  "audio/ogg",
	"flac": "audio/flac",
	"aac":  "audio/aac",
	"webm": "video/webm",
	"mp4":  "video/mp4",
	"avi":  "video/x-msvideo",
	"mov":  "video/quicktime",
	"wmv":  "video/x-ms-wmv",
	"flv":  "video/x-flv",
	"mkv":  "video/x-matroska",
}
