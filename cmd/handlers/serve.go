package handlers

import (
	"context"
	"errors"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"meridian/internal/queue"
	"meridian/internal/server"
)

const shutdownTimeout = 15 * time.Second

// NewServeCmd creates the serve command for starting the HTTP server
func NewServeCmd() *cobra.Command {
	var (
		port       int
		host       string
		withWorker bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		Long: `Start the JSON API for browsing articles and briefings.

The server provides:
  • article listing, search, detail and manual URL submission
  • briefing listing, detail (Markdown and HTML) and on-demand generation
  • video transcription listing and detail
  • single-article processing jobs through the Redis queue

When Redis is unreachable the server starts without the job endpoints.
With --worker a queue worker runs in the same process.

Examples:
  meridian serve
  meridian serve --port 3000 --worker`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, port, host, withWorker)
		},
	}

	cmd.Flags().IntVar(&port, "port", 0, "HTTP server port (default from config: 8080)")
	cmd.Flags().StringVar(&host, "host", "", "HTTP server host (default from config: 0.0.0.0)")
	cmd.Flags().BoolVar(&withWorker, "worker", false, "also run a queue worker")

	return cmd
}

func runServe(cmd *cobra.Command, port int, host string, withWorker bool) error {
	ctx, stop := signalContext(cmd)
	defer stop()

	c, log, err := buildComponents(ctx)
	if err != nil {
		return err
	}
	defer c.Close()

	serverCfg := c.Config.Server
	if port != 0 {
		serverCfg.Port = port
	}
	if host != "" {
		serverCfg.Host = host
	}

	deps := server.Deps{
		Health:         c.Store,
		Articles:       c.Store.Articles(),
		Briefings:      c.Store.Briefings(),
		Transcriptions: c.Store.Transcriptions(),
		Profiles:       c.Profiles,
		Scraper:        c.Scraper,
		Briefs:         c.Briefing,
	}

	q, err := queue.NewRedisQueue(ctx, c.Config.Queue, log)
	if err != nil {
		if withWorker {
			return err
		}
		log.Warn().Err(err).Msg("Job queue unavailable, job endpoints disabled")
	} else {
		defer q.Close()
		deps.Jobs = q
	}

	srv := server.New(deps, serverCfg, c.Config.Briefing.ArticlesPerPage, log)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Run(gctx, shutdownTimeout)
	})
	if withWorker && q != nil {
		g.Go(func() error {
			return queue.NewWorker(q, c.Processor, c.Config.Queue.PollTimeout, log).Run(gctx)
		})
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	log.Info().Msg("Server stopped successfully")
	return nil
}
