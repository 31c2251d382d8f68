package ingest

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/johnquangdev/meeting-intelligence/internal/adapter/repository/memrepo"
	"github.com/johnquangdev/meeting-intelligence/internal/domain/entities"
	ucErrors "github.com/johnquangdev/meeting-intelligence/internal/usecase/errors"
	"github.com/johnquangdev/meeting-intelligence/pkg/config"
)

type fakeMedia struct {
	mu        sync.Mutex
	objects   map[string][]byte
	uploadErr error
}

func newFakeMedia() *fakeMedia {
	return &fakeMedia{objects: make(map[string][]byte)}
}

func (f *fakeMedia) UploadFile(_ context.Context, name string, r io.Reader, _ int64, _ string) error {
	if f.uploadErr != nil {
		return f.uploadErr
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[name] = data
	return nil
}

func (f *fakeMedia) RemoveFile(_ context.Context, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.objects, name)
	return nil
}

type fakeQueue struct {
	jobs []uuid.UUID
	err  error
}

func (q *fakeQueue) Enqueue(_ context.Context, id uuid.UUID) error {
	if q.err != nil {
		return q.err
	}
	q.jobs = append(q.jobs, id)
	return nil
}

// mp3 frame header followed by padding
func mp3Payload() []byte {
	data := []byte("ID3\x03\x00\x00\x00\x00\x00\x00")
	return append(data, bytes.Repeat([]byte{0}, 4096)...)
}

func newTestService(store *memrepo.Store, media *fakeMedia, queue *fakeQueue) Service {
	cfg := &config.Config{Upload: config.UploadConfig{MaxSizeMB: 1}}
	return NewService(store.Meetings(), media, queue, cfg, nil, nil)
}

func TestUpload_RegistersMeetingAndJob(t *testing.T) {
	store := memrepo.New()
	media := newFakeMedia()
	queue := &fakeQueue{}
	svc := newTestService(store, media, queue)

	payload := mp3Payload()
	meeting, err := svc.Upload(context.Background(), UploadInput{
		Filename: "standup.mp3",
		Size:     int64(len(payload)),
		Body:     bytes.NewReader(payload),
	})
	require.NoError(t, err)

	assert.Equal(t, entities.MeetingStatusUploaded, meeting.Status)
	assert.Equal(t, []uuid.UUID{meeting.ID}, queue.jobs)
	assert.Equal(t, payload, media.objects[meeting.MediaObject], "stored object must include the sniffed head")

	stored, ok := store.Get(meeting.ID)
	require.True(t, ok)
	assert.Equal(t, "standup.mp3", stored.Filename)
}

func TestUpload_AcceptsAllowedExtensionWithUnknownContent(t *testing.T) {
	svc := newTestService(memrepo.New(), newFakeMedia(), &fakeQueue{})

	payload := bytes.Repeat([]byte{0x01, 0x02}, 100)
	meeting, err := svc.Upload(context.Background(), UploadInput{
		Filename: "call.MOV",
		Size:     int64(len(payload)),
		Body:     bytes.NewReader(payload),
	})
	require.NoError(t, err)
	assert.Equal(t, "video/quicktime", meeting.ContentType)
}

func TestUpload_ValidationErrors(t *testing.T) {
	cases := []struct {
		name   string
		input  UploadInput
		target error
	}{
		{
			name:   "empty file",
			input:  UploadInput{Filename: "a.mp3", Size: 0, Body: bytes.NewReader(nil)},
			target: ucErrors.ErrValidation,
		},
		{
			name:   "missing filename",
			input:  UploadInput{Filename: "  ", Size: 3, Body: bytes.NewReader([]byte("abc"))},
			target: ucErrors.ErrValidation,
		},
		{
			name:   "filename too long",
			input:  UploadInput{Filename: strings.Repeat("a", 600) + ".mp3", Size: 3, Body: bytes.NewReader([]byte("abc"))},
			target: ucErrors.ErrValidation,
		},
		{
			name:   "filename not utf8",
			input:  UploadInput{Filename: "bad\xff\xfe.mp3", Size: 3, Body: bytes.NewReader([]byte("abc"))},
			target: ucErrors.ErrValidation,
		},
		{
			name:   "too large",
			input:  UploadInput{Filename: "a.mp3", Size: 2 << 20, Body: bytes.NewReader([]byte("abc"))},
			target: ucErrors.ErrPayloadTooLarge,
		},
		{
			name:   "not media",
			input:  UploadInput{Filename: "notes.txt", Size: 11, Body: bytes.NewReader([]byte("hello world"))},
			target: ucErrors.ErrUnsupportedMedia,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			queue := &fakeQueue{}
			svc := newTestService(memrepo.New(), newFakeMedia(), queue)

			_, err := svc.Upload(context.Background(), tc.input)
			require.Error(t, err)
			assert.ErrorIs(t, err, tc.target)
			assert.ErrorIs(t, err, ucErrors.ErrValidation)
			assert.Empty(t, queue.jobs)
		})
	}
}

func TestUpload_EnqueueFailureRollsBack(t *testing.T) {
	store := memrepo.New()
	media := newFakeMedia()
	queue := &fakeQueue{err: errors.New("redis down")}
	svc := newTestService(store, media, queue)

	payload := mp3Payload()
	_, err := svc.Upload(context.Background(), UploadInput{
		Filename: "standup.mp3",
		Size:     int64(len(payload)),
		Body:     bytes.NewReader(payload),
	})
	require.ErrorIs(t, err, ucErrors.ErrQueue)
	assert.NotErrorIs(t, err, ucErrors.ErrStorage)

	total, _ := store.Meetings().Count(context.Background())
	assert.Zero(t, total, "meeting must not be registered")
	assert.Empty(t, media.objects, "stored media must be removed")
}

func TestUpload_StorageFailure(t *testing.T) {
	media := newFakeMedia()
	media.uploadErr = errors.New("bucket gone")
	queue := &fakeQueue{}
	svc := newTestService(memrepo.New(), media, queue)

	payload := mp3Payload()
	_, err := svc.Upload(context.Background(), UploadInput{
		Filename: "standup.mp3",
		Size:     int64(len(payload)),
		Body:     bytes.NewReader(payload),
	})
	require.ErrorIs(t, err, ucErrors.ErrStorage)
	assert.Empty(t, queue.jobs)
}
