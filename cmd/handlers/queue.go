package handlers

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"meridian/internal/persistence"
	"meridian/internal/queue"
)

// NewEnqueueCmd creates the enqueue command
func NewEnqueueCmd() *cobra.Command {
	var articleID int64

	cmd := &cobra.Command{
		Use:   "enqueue",
		Short: "Queue an article for background processing",
		Long: `Push a job that runs summarize, rate and categorize for one article.
A running 'meridian worker' (or 'meridian serve --worker') picks it up.

Example:
  meridian enqueue --article-id 42`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if articleID <= 0 {
				return errors.New("--article-id is required")
			}
			ctx := cmd.Context()

			cfg, log, err := loadConfig()
			if err != nil {
				return err
			}

			store, err := persistence.Open(ctx, cfg.Database, log)
			if err != nil {
				return fmt.Errorf("failed to open database: %w", err)
			}
			defer store.Close()

			article, err := store.Articles().Get(ctx, articleID)
			if err != nil {
				return err
			}

			q, err := queue.NewRedisQueue(ctx, cfg.Queue, log)
			if err != nil {
				return err
			}
			defer q.Close()

			job, err := q.Enqueue(ctx, article.ID, article.FeedProfile)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Queued job %s for article %d (%s)\n", job.ID, job.ArticleID, job.FeedProfile)
			return nil
		},
	}

	cmd.Flags().Int64Var(&articleID, "article-id", 0, "article to process")
	return cmd
}

// NewWorkerCmd creates the worker command
func NewWorkerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "worker",
		Short: "Process queued articles until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signalContext(cmd)
			defer stop()

			c, log, err := buildComponents(ctx)
			if err != nil {
				return err
			}
			defer c.Close()

			q, err := queue.NewRedisQueue(ctx, c.Config.Queue, log)
			if err != nil {
				return err
			}
			defer q.Close()

			return queue.NewWorker(q, c.Processor, c.Config.Queue.PollTimeout, log).Run(ctx)
		},
	}
}

// signalContext is cmd.Context() with SIGINT and SIGTERM cancellation
func signalContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	return signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
}
