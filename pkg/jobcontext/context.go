package jobcontext

import (
	"context"
	stdErrors "errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type KeyContext string

var (
	keyMeetingID    KeyContext = "meeting_id"
	keyJobType      KeyContext = "job_type"
	keyWorkerID     KeyContext = "worker_id"
	keyDelivery     KeyContext = "delivery"
	keyJobStartTime KeyContext = "job_start_time"
)

// DefaultJobTimeout bounds a job when no timeout is configured.
const DefaultJobTimeout = 30 * time.Minute

// JobMetadata holds metadata for a job execution
type JobMetadata struct {
	MeetingID uuid.UUID
	JobType   string
	WorkerID  int
	Delivery  int
	StartTime time.Time
}

// JobBegin derives a job context carrying metadata and a hard timeout.
// Timeout expiry is the only path that terminates a running job.
func JobBegin(parentCtx context.Context, meetingID uuid.UUID, jobType string, workerID int, delivery int, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		timeout = DefaultJobTimeout
	}
	ctx, cancel := context.WithTimeout(parentCtx, timeout)

	ctx = context.WithValue(ctx, keyMeetingID, meetingID)
	ctx = context.WithValue(ctx, keyJobType, jobType)
	ctx = context.WithValue(ctx, keyWorkerID, workerID)
	ctx = context.WithValue(ctx, keyDelivery, delivery)
	ctx = context.WithValue(ctx, keyJobStartTime, time.Now())

	return ctx, cancel
}

// Run executes jobFunc, converting a panic into an error.
func Run(ctx context.Context, jobFunc func(context.Context) error) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic recovered: %v", p)
		}
	}()

	if ctx.Err() != nil {
		return fmt.Errorf("context cancelled before job execution: %w", ctx.Err())
	}

	return jobFunc(ctx)
}

// GetMeetingID extracts the meeting ID from context
func GetMeetingID(ctx context.Context) (uuid.UUID, bool) {
	id, ok := ctx.Value(keyMeetingID).(uuid.UUID)
	return id, ok
}

// GetJobType extracts job type from context
func GetJobType(ctx context.Context) (string, bool) {
	jobType, ok := ctx.Value(keyJobType).(string)
	return jobType, ok
}

// GetWorkerID extracts worker ID from context
func GetWorkerID(ctx context.Context) int {
	workerID, ok := ctx.Value(keyWorkerID).(int)
	if !ok {
		return -1
	}
	return workerID
}

// GetDelivery returns how many times the queue delivered this job
func GetDelivery(ctx context.Context) int {
	delivery, ok := ctx.Value(keyDelivery).(int)
	if !ok {
		return 0
	}
	return delivery
}

// GetJobStartTime extracts job start time from context
func GetJobStartTime(ctx context.Context) (time.Time, bool) {
	startTime, ok := ctx.Value(keyJobStartTime).(time.Time)
	return startTime, ok
}

// GetJobMetadata extracts all job metadata from context
func GetJobMetadata(ctx context.Context) *JobMetadata {
	meetingID, _ := GetMeetingID(ctx)
	jobType, _ := GetJobType(ctx)
	startTime, _ := GetJobStartTime(ctx)

	return &JobMetadata{
		MeetingID: meetingID,
		JobType:   jobType,
		WorkerID:  GetWorkerID(ctx),
		Delivery:  GetDelivery(ctx),
		StartTime: startTime,
	}
}

// Fields returns the job metadata as zap fields.
func Fields(ctx context.Context) []zap.Field {
	meta := GetJobMetadata(ctx)
	fields := []zap.Field{
		zap.String("meeting_id", meta.MeetingID.String()),
		zap.Int("worker_id", meta.WorkerID),
		zap.Int("delivery", meta.Delivery),
	}
	if meta.JobType != "" {
		fields = append(fields, zap.String("job_type", meta.JobType))
	}
	if !meta.StartTime.IsZero() {
		fields = append(fields, zap.Duration("elapsed", time.Since(meta.StartTime)))
	}
	return fields
}

// temporary is implemented by errors that know whether a retry can help.
type temporary interface {
	Temporary() bool
}

// IsRetryableError checks if an error should trigger a retry
// Retryable errors include: network errors, timeouts, deadlocks, rate limits
func IsRetryableError(err error) bool {
	if err == nil {
		return false
	}

	if stdErrors.Is(err, context.Canceled) {
		return false
	}

	var tmp temporary
	if stdErrors.As(err, &tmp) && tmp.Temporary() {
		return true
	}

	var netErr net.Error
	if stdErrors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	if stdErrors.Is(err, context.DeadlineExceeded) {
		return true
	}

	errStr := strings.ToLower(err.Error())

	// Network errors
	if strings.Contains(errStr, "connection refused") ||
		strings.Contains(errStr, "connection reset") ||
		strings.Contains(errStr, "network unreachable") ||
		strings.Contains(errStr, "no such host") ||
		strings.Contains(errStr, "i/o timeout") ||
		strings.Contains(errStr, "unexpected eof") {
		return true
	}

	// Database deadlock/lock errors (Postgres)
	if strings.Contains(errStr, "deadlock") ||
		strings.Contains(errStr, "40001") || // serialization_failure
		strings.Contains(errStr, "40p01") { // deadlock_detected
		return true
	}

	// API rate limiting
	if strings.Contains(errStr, "rate limit") ||
		strings.Contains(errStr, "too many requests") {
		return true
	}

	// Server errors (5xx)
	if strings.Contains(errStr, "internal server error") ||
		strings.Contains(errStr, "service unavailable") ||
		strings.Contains(errStr, "bad gateway") ||
		strings.Contains(errStr, "gateway timeout") {
		return true
	}

	// Temporary failures
	if strings.Contains(errStr, "temporary failure") ||
		strings.Contains(errStr, "try again") {
		return true
	}

	return false
}
