package pipeline

import (
	"context"
	stdErrors "errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/johnquangdev/meeting-intelligence/internal/domain/entities"
	"github.com/johnquangdev/meeting-intelligence/internal/domain/repositories"
	"github.com/johnquangdev/meeting-intelligence/internal/infrastructure/queue"
	"github.com/johnquangdev/meeting-intelligence/internal/infrastructure/storage"
	ucErrors "github.com/johnquangdev/meeting-intelligence/internal/usecase/errors"
	pkgai "github.com/johnquangdev/meeting-intelligence/pkg/ai"
	"github.com/johnquangdev/meeting-intelligence/pkg/config"
	"github.com/johnquangdev/meeting-intelligence/pkg/jobcontext"
	"github.com/johnquangdev/meeting-intelligence/pkg/metrics"
)

const (
	jobType = "meeting_pipeline"

	maxReasonLen = 500

	reasonTimedOut = "processing timed out"
)

// Job outcomes reported to metrics
const (
	outcomeCompleted = "completed"
	outcomeFailed    = "failed"
	outcomeDropped   = "dropped"
	outcomeSkipped   = "skipped"
)

// Transcriber turns raw media into a speaker-labelled transcript
type Transcriber interface {
	Transcribe(ctx context.Context, media io.Reader) (*pkgai.Transcript, error)
}

// Completer runs one chat completion
type Completer interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// Embedder embeds texts in one call, preserving order
type Embedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// MediaSource reads stored raw media
type MediaSource interface {
	Open(ctx context.Context, objectName string) (io.ReadCloser, error)
}

// JobQueue delivers pipeline jobs
type JobQueue interface {
	Enqueue(ctx context.Context, meetingID uuid.UUID) error
	Consume(ctx context.Context, consumer string, handler queue.Handler) error
	Depth(ctx context.Context) (int64, error)
}

// Service runs uploaded meetings through transcription, extraction, indexing and commit
type Service interface {
	Process(ctx context.Context, workerID int, job queue.Job) error
	Sweep(ctx context.Context) (int, error)
	StartWorkerPool(ctx context.Context) error
	StopWorkerPool() error
}

type pipelineService struct {
	meetings    repositories.MeetingRepository
	artifacts   repositories.ArtifactRepository
	media       MediaSource
	queue       JobQueue
	transcriber Transcriber
	llm         Completer
	embedder    Embedder
	cfg         config.PipelineConfig
	metrics     *metrics.Metrics
	logger      *zap.Logger

	workerCancel        context.CancelFunc
	workerWg            sync.WaitGroup
	isWorkerPoolRunning bool
	workerMutex         sync.Mutex
}

// NewService creates the pipeline service
func NewService(
	meetings repositories.MeetingRepository,
	artifacts repositories.ArtifactRepository,
	media MediaSource,
	jobs JobQueue,
	transcriber Transcriber,
	llm Completer,
	embedder Embedder,
	cfg *config.Config,
	m *metrics.Metrics,
	logger *zap.Logger,
) Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	pc := cfg.Pipeline
	if pc.ChunkMaxWords <= 0 {
		pc.ChunkMaxWords = DefaultChunkMaxWords
	}
	if pc.EmbedBatchSize <= 0 {
		pc.EmbedBatchSize = 16
	}
	if pc.StageMaxAttempts <= 0 {
		pc.StageMaxAttempts = 1
	}
	if pc.Workers <= 0 {
		pc.Workers = 1
	}

	return &pipelineService{
		meetings:    meetings,
		artifacts:   artifacts,
		media:       media,
		queue:       jobs,
		transcriber: transcriber,
		llm:         llm,
		embedder:    embedder,
		cfg:         pc,
		metrics:     m,
		logger:      logger.Named("pipeline"),
	}
}

// stageError records which stage a job failed in
type stageError struct {
	stage entities.PipelineStage
	err   error
}

func (e *stageError) Error() string {
	return fmt.Sprintf("%s: %v", e.stage, e.err)
}

func (e *stageError) Unwrap() error { return e.err }

func failAt(stage entities.PipelineStage, err error) error {
	if err == nil {
		return nil
	}
	var se *stageError
	if stdErrors.As(err, &se) {
		return err
	}
	return &stageError{stage: stage, err: err}
}

// Process runs one delivered job. A nil return acknowledges it; an error
// leaves it to the queue for redelivery.
func (s *pipelineService) Process(ctx context.Context, workerID int, job queue.Job) error {
	log := s.logger.With(
		zap.String("meeting_id", job.MeetingID.String()),
		zap.Int("worker_id", workerID),
		zap.Int("delivery", job.Delivery),
	)

	staleBefore := time.Now().UTC().Add(-s.cfg.StaleAfter)
	meeting, claimed, err := s.meetings.ClaimForProcessing(ctx, job.MeetingID, staleBefore)
	if err != nil {
		return fmt.Errorf("claim meeting %s: %w", job.MeetingID, err)
	}
	if meeting == nil {
		// the registering transaction may not be visible yet
		return fmt.Errorf("meeting %s not found", job.MeetingID)
	}
	if !claimed {
		log.Info("job skipped", zap.String("status", string(meeting.Status)))
		s.metrics.IncJob(outcomeSkipped)
		return nil
	}

	done := s.metrics.JobStarted()
	defer done()

	jobCtx, cancel := jobcontext.JobBegin(ctx, meeting.ID, jobType, workerID, job.Delivery, s.cfg.JobTimeout)
	defer cancel()

	log.Info("job started", zap.Int("attempts", meeting.Attempts))
	runErr := jobcontext.Run(jobCtx, func(ctx context.Context) error {
		return s.run(ctx, meeting)
	})

	switch {
	case runErr == nil:
		s.metrics.IncJob(outcomeCompleted)
		log.Info("job completed", zap.Duration("elapsed", time.Since(*meeting.ProcessingStartedAt)))
		return nil

	case stdErrors.Is(runErr, entities.ErrMeetingNotProcessing):
		s.metrics.IncJob(outcomeDropped)
		log.Warn("meeting left processing during the run, dropping results", zap.Error(runErr))
		return nil

	case ctx.Err() != nil:
		log.Warn("job interrupted", zap.Error(runErr))
		return runErr
	}

	reason := failureReason(runErr)
	marked, err := s.meetings.MarkFailed(context.WithoutCancel(ctx), meeting.ID, reason)
	if err != nil {
		log.Error("failed to mark meeting failed", zap.Error(err), zap.NamedError("job_error", runErr))
		return fmt.Errorf("mark meeting failed: %w", err)
	}
	s.metrics.IncJob(outcomeFailed)
	log.Error("job failed",
		zap.Bool("marked", marked),
		zap.String("failure_reason", reason),
		zap.Error(runErr),
	)
	return nil
}

// run executes every stage for a claimed meeting
func (s *pipelineService) run(ctx context.Context, meeting *entities.Meeting) error {
	transcript, err := s.transcribe(ctx, meeting)
	if err != nil {
		return failAt(entities.StageTranscribing, err)
	}

	chunks := BuildChunks(meeting.ID, transcript, s.cfg.ChunkMaxWords)
	if len(chunks) == 0 {
		return failAt(entities.StageTranscribing, ucErrors.ErrEmptyTranscript)
	}

	artifacts, err := s.analyse(ctx, meeting.ID, transcript, chunks)
	if err != nil {
		return err
	}

	if err := s.meetings.UpdateStage(ctx, meeting.ID, entities.StageCommitting); err != nil {
		return failAt(entities.StageCommitting, err)
	}
	started := time.Now()
	_, err = retryStage(ctx, s, string(entities.StageCommitting), func(ctx context.Context) (struct{}, error) {
		return struct{}{}, s.artifacts.Commit(ctx, meeting.ID, artifacts, transcript.DurationSeconds)
	})
	s.metrics.ObserveStage(string(entities.StageCommitting), started, err)
	if err != nil {
		return failAt(entities.StageCommitting, err)
	}

	s.logger.Info("meeting committed",
		append(jobcontext.Fields(ctx),
			zap.Int("chunks", len(artifacts.Chunks)),
			zap.Int("action_items", len(artifacts.ActionItems)),
			zap.Int("decisions", len(artifacts.Decisions)),
			zap.Int("participants", len(artifacts.Participants)),
			zap.Int("topics", len(artifacts.Topics)),
		)...,
	)
	return nil
}

func (s *pipelineService) transcribe(ctx context.Context, meeting *entities.Meeting) (*pkgai.Transcript, error) {
	started := time.Now()
	transcript, err := retryStage(ctx, s, string(entities.StageTranscribing), func(ctx context.Context) (*pkgai.Transcript, error) {
		media, err := s.media.Open(ctx, meeting.MediaObject)
		if err != nil {
			if stdErrors.Is(err, storage.ErrObjectNotFound) {
				return nil, fmt.Errorf("media missing: %w", err)
			}
			return nil, fmt.Errorf("%w: open media: %v", ucErrors.ErrTransient, err)
		}
		defer media.Close()
		return s.transcriber.Transcribe(ctx, media)
	})
	s.metrics.ObserveStage(string(entities.StageTranscribing), started, err)
	return transcript, err
}

// analyse runs the four extractions and indexing concurrently and waits for all
func (s *pipelineService) analyse(
	ctx context.Context,
	meetingID uuid.UUID,
	transcript *pkgai.Transcript,
	chunks []entities.TranscriptChunk,
) (*entities.MeetingArtifacts, error) {
	if err := s.meetings.UpdateStage(ctx, meetingID, entities.StageExtracting); err != nil {
		return nil, failAt(entities.StageExtracting, err)
	}

	text := speakerTranscript(transcript)
	if text == "" {
		text = entities.JoinChunks(chunks)
	}
	prompt := userPrompt(text)
	labels := speakerLabels(transcript)

	var (
		actionItems  []entities.ActionItem
		decisions    []entities.Decision
		participants []entities.Participant
		topics       []entities.Topic
		vectors      []entities.VectorEntry

		pending       atomic.Int32
		indexingDone  atomic.Bool
		extractionLog = s.logger.With(jobcontext.Fields(ctx)...)
	)
	pending.Store(4)

	g, gctx := errgroup.WithContext(ctx)
	extracted := func() error {
		if pending.Add(-1) != 0 || indexingDone.Load() {
			return nil
		}
		if err := s.meetings.UpdateStage(gctx, meetingID, entities.StageIndexing); err != nil {
			if stdErrors.Is(err, entities.ErrMeetingNotProcessing) {
				return err
			}
			extractionLog.Warn("failed to record indexing stage", zap.Error(err))
		}
		return nil
	}

	g.Go(func() error {
		items, err := extract(gctx, s, "extract_action_items", actionItemsPrompt, prompt, func(content string) ([]entities.ActionItem, error) {
			return parseActionItems(meetingID, content)
		})
		if err != nil {
			return failAt(entities.StageExtracting, err)
		}
		actionItems = items
		return extracted()
	})
	g.Go(func() error {
		items, err := extract(gctx, s, "extract_decisions", decisionsPrompt, prompt, func(content string) ([]entities.Decision, error) {
			return parseDecisions(meetingID, content)
		})
		if err != nil {
			return failAt(entities.StageExtracting, err)
		}
		decisions = items
		return extracted()
	})
	g.Go(func() error {
		items, err := extract(gctx, s, "extract_participants", participantsPrompt, prompt, func(content string) ([]entities.Participant, error) {
			return parseParticipants(meetingID, content, labels)
		})
		if err != nil {
			return failAt(entities.StageExtracting, err)
		}
		participants = items
		return extracted()
	})
	g.Go(func() error {
		items, err := extract(gctx, s, "extract_topics", topicsPrompt, prompt, func(content string) ([]entities.Topic, error) {
			return parseTopics(meetingID, content)
		})
		if err != nil {
			return failAt(entities.StageExtracting, err)
		}
		topics = items
		return extracted()
	})
	g.Go(func() error {
		started := time.Now()
		entries, err := s.index(gctx, chunks)
		s.metrics.ObserveStage(string(entities.StageIndexing), started, err)
		if err != nil {
			return failAt(entities.StageIndexing, err)
		}
		vectors = entries
		indexingDone.Store(true)
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return &entities.MeetingArtifacts{
		Chunks:        chunks,
		ActionItems:   actionItems,
		Decisions:     decisions,
		Participants:  participants,
		Topics:        topics,
		VectorEntries: vectors,
	}, nil
}

// extract runs one LLM extraction with retries; malformed replies are retried too
func extract[T any](ctx context.Context, s *pipelineService, name, systemPrompt, prompt string, parse func(string) ([]T, error)) ([]T, error) {
	started := time.Now()
	items, err := retryStage(ctx, s, name, func(ctx context.Context) ([]T, error) {
		content, err := s.llm.Complete(ctx, systemPrompt, prompt)
		if err != nil {
			return nil, err
		}
		return parse(content)
	})
	s.metrics.ObserveStage(name, started, err)
	return items, err
}

// index embeds chunks in batches and builds their vector entries
func (s *pipelineService) index(ctx context.Context, chunks []entities.TranscriptChunk) ([]entities.VectorEntry, error) {
	entries := make([]entities.VectorEntry, 0, len(chunks))
	batchSize := s.cfg.EmbedBatchSize

	for start := 0; start < len(chunks); start += batchSize {
		end := start + batchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		batch := chunks[start:end]
		texts := make([]string, len(batch))
		for i, c := range batch {
			texts[i] = c.Text
		}

		vectors, err := retryStage(ctx, s, string(entities.StageIndexing), func(ctx context.Context) ([][]float32, error) {
			return s.embedder.EmbedBatch(ctx, texts)
		})
		if err != nil {
			return nil, err
		}
		if len(vectors) != len(batch) {
			return nil, fmt.Errorf("embedder returned %d vectors for %d chunks", len(vectors), len(batch))
		}
		for i, vec := range vectors {
			if len(vec) != entities.EmbeddingDimensions {
				return nil, fmt.Errorf("%w: got %d, want %d", entities.ErrEmbeddingDimension, len(vec), entities.EmbeddingDimensions)
			}
			entries = append(entries, entities.NewVectorEntry(batch[i], vec))
		}
	}
	return entries, nil
}

// failureReason renders a job error as the reason shown to clients
func failureReason(err error) string {
	if stdErrors.Is(err, context.DeadlineExceeded) {
		return reasonTimedOut
	}

	stage := "processing"
	var se *stageError
	if stdErrors.As(err, &se) {
		stage = string(se.stage)
		err = se.err
	}

	var reason string
	switch {
	case stdErrors.Is(err, ucErrors.ErrEmptyTranscript):
		reason = "transcription produced no speech"
	case stdErrors.Is(err, pkgai.ErrTranscriptionRejected):
		reason = fmt.Sprintf("transcription failed: %v", err)
	case stdErrors.Is(err, storage.ErrObjectNotFound):
		reason = "uploaded media is missing"
	case stdErrors.Is(err, ucErrors.ErrMalformedAnalysis):
		reason = fmt.Sprintf("%s failed: the model returned malformed output", stage)
	default:
		reason = fmt.Sprintf("%s failed: %v", stage, err)
	}
	return truncate(reason, maxReasonLen)
}

// StartWorkerPool starts the queue consumers and the recovery sweeper
func (s *pipelineService) StartWorkerPool(ctx context.Context) error {
	s.workerMutex.Lock()
	defer s.workerMutex.Unlock()

	if s.isWorkerPoolRunning {
		return fmt.Errorf("worker pool already running")
	}

	workerCtx, cancel := context.WithCancel(ctx)
	s.workerCancel = cancel
	s.isWorkerPoolRunning = true

	s.logger.Info("starting pipeline worker pool",
		zap.Int("worker_count", s.cfg.Workers),
		zap.String("consumer", s.cfg.QueueConsumer),
	)

	for i := 0; i < s.cfg.Workers; i++ {
		s.workerWg.Add(1)
		go s.worker(workerCtx, i)
	}

	s.workerWg.Add(1)
	go s.sweepLoop(workerCtx)

	return nil
}

// StopWorkerPool cancels the workers and waits for in-flight jobs to return
func (s *pipelineService) StopWorkerPool() error {
	s.workerMutex.Lock()
	defer s.workerMutex.Unlock()

	if !s.isWorkerPoolRunning {
		return fmt.Errorf("worker pool not running")
	}

	s.logger.Info("stopping pipeline worker pool")
	s.workerCancel()
	s.workerWg.Wait()
	s.isWorkerPoolRunning = false
	s.logger.Info("pipeline worker pool stopped")

	return nil
}

func (s *pipelineService) worker(ctx context.Context, workerID int) {
	defer s.workerWg.Done()

	consumer := fmt.Sprintf("%s-%d", s.cfg.QueueConsumer, workerID)
	log := s.logger.With(zap.Int("worker_id", workerID), zap.String("consumer", consumer))
	log.Info("worker started")

	for {
		err := s.queue.Consume(ctx, consumer, func(ctx context.Context, job queue.Job) error {
			return s.Process(ctx, workerID, job)
		})
		if ctx.Err() != nil {
			log.Info("worker stopping")
			return
		}
		log.Error("consumer exited, restarting", zap.Error(err))
		select {
		case <-ctx.Done():
			return
		case <-time.After(5 * time.Second):
		}
	}
}
