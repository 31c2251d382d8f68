package queue

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	fieldMeetingID  = "meeting_id"
	fieldDelivery   = "delivery"
	fieldEnqueuedAt = "enqueued_at"
)

// Job is one pipeline request read from the stream
type Job struct {
	MessageID  string
	MeetingID  uuid.UUID
	Delivery   int
	EnqueuedAt time.Time
}

// Handler processes a job. A nil error acknowledges it; any other error
// schedules a redelivery until the delivery limit is reached.
type Handler func(ctx context.Context, job Job) error

// RedisQueueConfig configures the stream queue
type RedisQueueConfig struct {
	Stream        string
	Group         string
	MaxDeliveries int
	Block         time.Duration
	ClaimIdle     time.Duration
	RetryDelay    time.Duration
	MaxLen        int64
	ReadCount     int64
	ClaimCount    int64
}

// RedisStreamQueue is an at-least-once job queue on a Redis stream consumer group
type RedisStreamQueue struct {
	client        *redis.Client
	logger        *zap.Logger
	stream        string
	group         string
	maxDeliveries int
	block         time.Duration
	claimIdle     time.Duration
	retryDelay    time.Duration
	maxLen        int64
	readCount     int64
	claimCount    int64
	once          sync.Once
	groupErr      error
}

// NewRedisStreamQueue creates a queue on an existing client
func NewRedisStreamQueue(client *redis.Client, cfg RedisQueueConfig, logger *zap.Logger) (*RedisStreamQueue, error) {
	if client == nil {
		return nil, errors.New("redis client required")
	}
	stream := strings.TrimSpace(cfg.Stream)
	if stream == "" {
		return nil, errors.New("queue stream required")
	}
	group := strings.TrimSpace(cfg.Group)
	if group == "" {
		group = "default"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	maxDeliveries := cfg.MaxDeliveries
	if maxDeliveries <= 0 {
		maxDeliveries = 5
	}
	block := cfg.Block
	if block <= 0 {
		block = 5 * time.Second
	}
	claimIdle := cfg.ClaimIdle
	if claimIdle <= 0 {
		claimIdle = 30 * time.Second
	}
	retryDelay := cfg.RetryDelay
	if retryDelay < 0 {
		retryDelay = 0
	}
	maxLen := cfg.MaxLen
	if maxLen <= 0 {
		maxLen = 10000
	}
	readCount := cfg.ReadCount
	if readCount <= 0 {
		readCount = 1
	}
	claimCount := cfg.ClaimCount
	if claimCount <= 0 {
		claimCount = 1
	}

	return &RedisStreamQueue{
		client:        client,
		logger:        logger.Named("queue"),
		stream:        stream,
		group:         group,
		maxDeliveries: maxDeliveries,
		block:         block,
		claimIdle:     claimIdle,
		retryDelay:    retryDelay,
		maxLen:        maxLen,
		readCount:     readCount,
		claimCount:    claimCount,
	}, nil
}

// Enqueue appends a job for the meeting
func (q *RedisStreamQueue) Enqueue(ctx context.Context, meetingID uuid.UUID) error {
	return q.add(ctx, q.client, meetingID, 1)
}

func (q *RedisStreamQueue) add(ctx context.Context, c redis.Cmdable, meetingID uuid.UUID, delivery int) error {
	err := c.XAdd(ctx, &redis.XAddArgs{
		Stream: q.stream,
		MaxLen: q.maxLen,
		Approx: true,
		Values: map[string]any{
			fieldMeetingID:  meetingID.String(),
			fieldDelivery:   strconv.Itoa(delivery),
			fieldEnqueuedAt: time.Now().UTC().Format(time.RFC3339Nano),
		},
	}).Err()
	if err != nil {
		return fmt.Errorf("enqueue meeting %s: %w", meetingID, err)
	}
	return nil
}

// EnsureGroup creates the consumer group. Jobs added before the group existed
// are still delivered.
func (q *RedisStreamQueue) EnsureGroup(ctx context.Context) error {
	q.once.Do(func() {
		err := q.client.XGroupCreateMkStream(ctx, q.stream, q.group, "0").Err()
		if err != nil && !strings.Contains(err.Error(), "BUSYGROUP") {
			q.groupErr = err
		}
	})
	return q.groupErr
}

// Consume reads jobs as consumer until ctx is done. Stale pending jobs of
// crashed consumers are claimed before new ones are read.
func (q *RedisStreamQueue) Consume(ctx context.Context, consumer string, handler Handler) error {
	if err := q.EnsureGroup(ctx); err != nil {
		return fmt.Errorf("ensure consumer group: %w", err)
	}
	log := q.logger.With(zap.String("consumer", consumer))

	for {
		if ctx.Err() != nil {
			return nil
		}

		msgs, err := q.claimPending(ctx, consumer)
		if err != nil && ctx.Err() == nil {
			log.Warn("claim pending failed", zap.Error(err))
		}
		for _, msg := range msgs {
			q.handleMessage(ctx, msg, handler)
		}

		streams, err := q.client.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    q.group,
			Consumer: consumer,
			Streams:  []string{q.stream, ">"},
			Count:    q.readCount,
			Block:    q.block,
		}).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) || ctx.Err() != nil {
				continue
			}
			log.Warn("read group failed", zap.Error(err))
			q.sleep(ctx, time.Second)
			continue
		}
		for _, stream := range streams {
			for _, msg := range stream.Messages {
				q.handleMessage(ctx, msg, handler)
			}
		}
	}
}

func (q *RedisStreamQueue) claimPending(ctx context.Context, consumer string) ([]redis.XMessage, error) {
	res, _, err := q.client.XAutoClaim(ctx, &redis.XAutoClaimArgs{
		Stream:   q.stream,
		Group:    q.group,
		Consumer: consumer,
		MinIdle:  q.claimIdle,
		Start:    "0-0",
		Count:    q.claimCount,
	}).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return res, nil
}

func (q *RedisStreamQueue) handleMessage(ctx context.Context, msg redis.XMessage, handler Handler) {
	job, err := decodeJob(msg)
	if err != nil {
		q.logger.Warn("dropping malformed job", zap.String("message_id", msg.ID), zap.Error(err))
		q.ackAndDel(ctx, msg.ID)
		return
	}

	err = handler(ctx, job)
	if err == nil {
		q.ackAndDel(ctx, msg.ID)
		return
	}
	if ctx.Err() != nil {
		// left pending; another consumer claims it after the idle timeout
		return
	}

	log := q.logger.With(
		zap.String("meeting_id", job.MeetingID.String()),
		zap.Int("delivery", job.Delivery),
		zap.Error(err),
	)
	if job.Delivery >= q.maxDeliveries {
		log.Error("job exhausted deliveries, dropping")
		q.ackAndDel(ctx, msg.ID)
		return
	}

	log.Warn("job failed, requeueing")
	q.sleep(ctx, q.retryDelay)
	if err := q.requeueAndAck(ctx, msg.ID, job.MeetingID, job.Delivery+1); err != nil && ctx.Err() == nil {
		log.Error("requeue failed", zap.NamedError("requeue_error", err))
	}
}

func (q *RedisStreamQueue) ackAndDel(ctx context.Context, msgID string) {
	pipe := q.client.TxPipeline()
	pipe.XAck(ctx, q.stream, q.group, msgID)
	pipe.XDel(ctx, q.stream, msgID)
	if _, err := pipe.Exec(ctx); err != nil {
		q.logger.Warn("ack failed", zap.String("message_id", msgID), zap.Error(err))
	}
}

// requeueAndAck appends the follow-up delivery and acknowledges the current
// one atomically, so the job is never lost or doubled.
func (q *RedisStreamQueue) requeueAndAck(ctx context.Context, msgID string, meetingID uuid.UUID, delivery int) error {
	pipe := q.client.TxPipeline()
	if err := q.add(ctx, pipe, meetingID, delivery); err != nil {
		return err
	}
	pipe.XAck(ctx, q.stream, q.group, msgID)
	pipe.XDel(ctx, q.stream, msgID)
	_, err := pipe.Exec(ctx)
	return err
}

// Depth returns the number of jobs in the stream, delivered or not
func (q *RedisStreamQueue) Depth(ctx context.Context) (int64, error) {
	return q.client.XLen(ctx, q.stream).Result()
}

// Ping checks the Redis connection
func (q *RedisStreamQueue) Ping(ctx context.Context) error {
	return q.client.Ping(ctx).Err()
}

func (q *RedisStreamQueue) sleep(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

func decodeJob(msg redis.XMessage) (Job, error) {
	raw, _ := msg.Values[fieldMeetingID].(string)
	meetingID, err := uuid.Parse(raw)
	if err != nil {
		return Job{}, fmt.Errorf("invalid meeting id %q: %w", raw, err)
	}
	job := Job{MessageID: msg.ID, MeetingID: meetingID, Delivery: 1}
	if v, ok := msg.Values[fieldDelivery].(string); ok {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			job.Delivery = n
		}
	}
	if v, ok := msg.Values[fieldEnqueuedAt].(string); ok {
		if ts, err := time.Parse(time.RFC3339Nano, v); err == nil {
			job.EnqueuedAt = ts
		}
	}
	return job, nil
}
