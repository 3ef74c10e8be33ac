// Package queue runs single-article processing jobs through Redis.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"meridian/internal/config"
	"meridian/internal/core"
)

const (
	DefaultKeyPrefix   = "meridian"
	DefaultPollTimeout = 5 * time.Second
	DefaultJobTTL      = 7 * 24 * time.Hour
)

// ErrJobNotFound is returned by Status for unknown or expired jobs.
var ErrJobNotFound = errors.New("job not found")

// State is the lifecycle position of a job.
type State string

const (
	StatePending    State = "pending"
	StateProcessing State = "processing"
	StateCompleted  State = "completed"
	StateFailed     State = "failed"
)

// JobInfo describes one queued article.
type JobInfo struct {
	ID          string           `json:"id"`
	ArticleID   int64            `json:"article_id"`
	FeedProfile core.FeedProfile `json:"feed_profile"`
	State       State            `json:"state"`
	Reason      string           `json:"reason,omitempty"`
	CreatedAt   time.Time        `json:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at"`
}

// message is the list entry a worker pops.
type message struct {
	ID          string           `json:"id"`
	ArticleID   int64            `json:"article_id"`
	FeedProfile core.FeedProfile `json:"feed_profile"`
}

// RedisQueue keeps pending job ids in a list and each job's state in a hash.
type RedisQueue struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
	log    zerolog.Logger
}

// NewRedisQueue connects to Redis and verifies the connection.
func NewRedisQueue(ctx context.Context, cfg config.Queue, log zerolog.Logger) (*RedisQueue, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.Addr, err)
	}

	return New(client, cfg.KeyPrefix, cfg.JobTTL, log), nil
}

// New wraps an existing client.
func New(client *redis.Client, prefix string, ttl time.Duration, log zerolog.Logger) *RedisQueue {
	prefix = strings.TrimSuffix(prefix, ":")
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	if ttl <= 0 {
		ttl = DefaultJobTTL
	}
	return &RedisQueue{
		client: client,
		prefix: prefix,
		ttl:    ttl,
		log:    log.With().Str("component", "queue").Logger(),
	}
}

// Close closes the Redis connection
func (q *RedisQueue) Close() error {
	return q.client.Close()
}

// Ping checks the Redis connection
func (q *RedisQueue) Ping(ctx context.Context) error {
	return q.client.Ping(ctx).Err()
}

func (q *RedisQueue) listKey() string {
	return q.prefix + ":jobs"
}

func (q *RedisQueue) jobKey(id string) string {
	return q.prefix + ":job:" + id
}

// Enqueue records a pending job for the article and pushes it on the list.
func (q *RedisQueue) Enqueue(ctx context.Context, articleID int64, profile core.FeedProfile) (JobInfo, error) {
	now := time.Now().UTC()
	job := JobInfo{
		ID:          uuid.NewString(),
		ArticleID:   articleID,
		FeedProfile: profile,
		State:       StatePending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	payload, err := json.Marshal(message{ID: job.ID, ArticleID: articleID, FeedProfile: profile})
	if err != nil {
		return JobInfo{}, fmt.Errorf("failed to encode job: %w", err)
	}

	key := q.jobKey(job.ID)
	_, err = q.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key, jobFields(job))
		pipe.Expire(ctx, key, q.ttl)
		pipe.LPush(ctx, q.listKey(), payload)
		return nil
	})
	if err != nil {
		return JobInfo{}, fmt.Errorf("failed to enqueue article %d: %w", articleID, err)
	}

	q.log.Info().Str("job_id", job.ID).Int64("article_id", articleID).Str("profile", string(profile)).Msg("Job enqueued")
	return job, nil
}

// Status returns the current state of a job.
func (q *RedisQueue) Status(ctx context.Context, jobID string) (JobInfo, error) {
	fields, err := q.client.HGetAll(ctx, q.jobKey(jobID)).Result()
	if err != nil {
		return JobInfo{}, fmt.Errorf("failed to read job %s: %w", jobID, err)
	}
	if len(fields) == 0 {
		return JobInfo{}, ErrJobNotFound
	}
	return parseJob(fields)
}

// Dequeue blocks up to timeout for the next job. It returns nil, nil when
// nothing arrived in time.
func (q *RedisQueue) Dequeue(ctx context.Context, timeout time.Duration) (*JobInfo, error) {
	res, err := q.client.BRPop(ctx, timeout, q.listKey()).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to pop job: %w", err)
	}
	if len(res) < 2 {
		return nil, nil
	}

	var msg message
	if err := json.Unmarshal([]byte(res[1]), &msg); err != nil {
		q.log.Warn().Err(err).Str("payload", res[1]).Msg("Dropping malformed job")
		return nil, nil
	}
	return &JobInfo{ID: msg.ID, ArticleID: msg.ArticleID, FeedProfile: msg.FeedProfile, State: StatePending}, nil
}

// MarkProcessing flags a popped job as running
func (q *RedisQueue) MarkProcessing(ctx context.Context, jobID string) error {
	return q.setState(ctx, jobID, StateProcessing, "")
}

// Complete flags a job as done
func (q *RedisQueue) Complete(ctx context.Context, jobID string) error {
	return q.setState(ctx, jobID, StateCompleted, "")
}

// Fail flags a job as failed with the reason
func (q *RedisQueue) Fail(ctx context.Context, jobID, reason string) error {
	return q.setState(ctx, jobID, StateFailed, reason)
}

func (q *RedisQueue) setState(ctx context.Context, jobID string, state State, reason string) error {
	key := q.jobKey(jobID)
	_, err := q.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key,
			"state", string(state),
			"reason", reason,
			"updated_at", time.Now().UTC().Format(time.RFC3339Nano),
		)
		pipe.Expire(ctx, key, q.ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to set job %s to %s: %w", jobID, state, err)
	}
	return nil
}

func jobFields(job JobInfo) map[string]interface{} {
	return map[string]interface{}{
		"id":           job.ID,
		"article_id":   strconv.FormatInt(job.ArticleID, 10),
		"feed_profile": string(job.FeedProfile),
		"state":        string(job.State),
		"reason":       job.Reason,
		"created_at":   job.CreatedAt.Format(time.RFC3339Nano),
		"updated_at":   job.UpdatedAt.Format(time.RFC3339Nano),
	}
}

func parseJob(fields map[string]string) (JobInfo, error) {
	articleID, err := strconv.ParseInt(fields["article_id"], 10, 64)
	if err != nil {
		return JobInfo{}, fmt.Errorf("invalid article id in job %s: %w", fields["id"], err)
	}

	job := JobInfo{
		ID:          fields["id"],
		ArticleID:   articleID,
		FeedProfile: core.FeedProfile(fields["feed_profile"]),
		State:       State(fields["state"]),
		Reason:      fields["reason"],
	}
	// Timestamps are informational; a malformed one leaves the zero value.
	job.CreatedAt, _ = time.Parse(time.RFC3339Nano, fields["created_at"])
	job.UpdatedAt, _ = time.Parse(time.RFC3339Nano, fields["updated_at"])
	return job, nil
}
