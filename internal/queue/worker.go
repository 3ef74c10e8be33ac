package queue

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"meridian/internal/core"
)

// Jobs is the queue side a worker consumes.
type Jobs interface {
	Dequeue(ctx context.Context, timeout time.Duration) (*JobInfo, error)
	MarkProcessing(ctx context.Context, jobID string) error
	Complete(ctx context.Context, jobID string) error
	Fail(ctx context.Context, jobID, reason string) error
}

// ArticleProcessor runs every processing stage for one article.
type ArticleProcessor interface {
	ProcessArticle(ctx context.Context, articleID int64, profile core.FeedProfile) error
}

// Worker pops jobs one at a time and processes them.
type Worker struct {
	jobs        Jobs
	processor   ArticleProcessor
	pollTimeout time.Duration
	retryDelay  time.Duration
	log         zerolog.Logger
}

// NewWorker creates a worker polling with the given BRPOP timeout
func NewWorker(jobs Jobs, processor ArticleProcessor, pollTimeout time.Duration, log zerolog.Logger) *Worker {
	if pollTimeout <= 0 {
		pollTimeout = DefaultPollTimeout
	}
	return &Worker{
		jobs:        jobs,
		processor:   processor,
		pollTimeout: pollTimeout,
		retryDelay:  time.Second,
		log:         log.With().Str("component", "worker").Logger(),
	}
}

// Run processes jobs until ctx is cancelled. Queue errors are logged and retried.
func (w *Worker) Run(ctx context.Context) error {
	w.log.Info().Dur("poll_timeout", w.pollTimeout).Msg("Worker started")
	defer w.log.Info().Msg("Worker stopped")

	for {
		if ctx.Err() != nil {
			return nil
		}

		_, err := w.ProcessNext(ctx)
		if err == nil {
			continue
		}
		if ctx.Err() != nil {
			return nil
		}

		w.log.Error().Err(err).Msg("Queue error")
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(w.retryDelay):
		}
	}
}

// ProcessNext handles at most one job. It reports whether a job was taken.
// Processing failures are recorded on the job, not returned.
func (w *Worker) ProcessNext(ctx context.Context) (bool, error) {
	job, err := w.jobs.Dequeue(ctx, w.pollTimeout)
	if err != nil {
		return false, err
	}
	if job == nil {
		return false, nil
	}

	log := w.log.With().Str("job_id", job.ID).Int64("article_id", job.ArticleID).Logger()
	if err := w.jobs.MarkProcessing(ctx, job.ID); err != nil {
		log.Warn().Err(err).Msg("Failed to mark job as processing")
	}

	start := time.Now()
	if err := w.processor.ProcessArticle(ctx, job.ArticleID, job.FeedProfile); err != nil {
		log.Error().Err(err).Msg("Job failed")
		// Record the outcome even when the worker is shutting down.
		if ferr := w.jobs.Fail(context.WithoutCancel(ctx), job.ID, err.Error()); ferr != nil {
			log.Warn().Err(ferr).Msg("Failed to record job failure")
		}
		return true, nil
	}

	if err := w.jobs.Complete(context.WithoutCancel(ctx), job.ID); err != nil {
		log.Warn().Err(err).Msg("Failed to record job completion")
	}
	log.Info().Dur("duration", time.Since(start)).Msg("Job completed")
	return true, nil
}
