package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"meridian/internal/archive"
	"meridian/internal/briefing"
	"meridian/internal/clustering"
	"meridian/internal/config"
	"meridian/internal/feeds"
	"meridian/internal/llm"
	"meridian/internal/persistence"
	"meridian/internal/processor"
	"meridian/internal/profiles"
	"meridian/internal/prompts"
	"meridian/internal/throttle"
	"meridian/internal/transcripts"
)

// Components is the fully wired application graph shared by the CLI,
// the worker and the HTTP server.
type Components struct {
	Config      *config.Config
	Store       *persistence.Store
	Gateway     *llm.Gateway
	Profiles    *profiles.Registry
	Prompts     *prompts.Provider
	Processor   *processor.Runner
	Briefing    *briefing.Service
	Scraper     *feeds.Scraper
	Pipeline    *Pipeline
	Transcripts *transcripts.Processor
}

// Close releases the database connection
func (c *Components) Close() error {
	if c.Store == nil {
		return nil
	}
	return c.Store.Close()
}

// Builder helps construct the application components
type Builder struct {
	cfg         *config.Config
	log         zerolog.Logger
	store       *persistence.Store
	gateway     *llm.Gateway
	limiter     throttle.Limiter
	skipArchive bool
}

// NewBuilder creates a new builder for the given configuration
func NewBuilder(cfg *config.Config) *Builder {
	return &Builder{cfg: cfg, log: zerolog.Nop()}
}

// WithLogger sets the logger handed to every component
func (b *Builder) WithLogger(log zerolog.Logger) *Builder {
	b.log = log
	return b
}

// WithStore uses an already opened store instead of opening one from config
func (b *Builder) WithStore(store *persistence.Store) *Builder {
	b.store = store
	return b
}

// WithGateway uses an existing AI gateway instead of building one from config
func (b *Builder) WithGateway(gateway *llm.Gateway) *Builder {
	b.gateway = gateway
	return b
}

// WithCallLimiter overrides the limiter spacing model calls
func (b *Builder) WithCallLimiter(limiter throttle.Limiter) *Builder {
	b.limiter = limiter
	return b
}

// WithoutArchive disables the S3 briefing archive
func (b *Builder) WithoutArchive() *Builder {
	b.skipArchive = true
	return b
}

// Build constructs every component
func (b *Builder) Build(ctx context.Context) (*Components, error) {
	if b.cfg == nil {
		return nil, errors.New("configuration is required")
	}
	cfg := b.cfg

	registry := profiles.NewRegistry()
	if cfg.Profiles.Path != "" {
		loaded, err := profiles.LoadFile(cfg.Profiles.Path)
		if err != nil {
			return nil, fmt.Errorf("failed to load profiles: %w", err)
		}
		registry = loaded
	}

	store := b.store
	if store == nil {
		opened, err := persistence.Open(ctx, cfg.Database, b.log)
		if err != nil {
			return nil, fmt.Errorf("failed to open database: %w", err)
		}
		store = opened
	}

	gateway := b.gateway
	if gateway == nil {
		built, err := llm.NewFromConfig(ctx, cfg.AI, b.log)
		if err != nil {
			_ = store.Close()
			return nil, fmt.Errorf("failed to create AI gateway: %w", err)
		}
		gateway = built
	}

	limiter := b.limiter
	if limiter == nil {
		limiter = throttle.NewRateLimiter(cfg.Processing.CallDelay)
	}

	provider := prompts.NewProvider(registry, prompts.BriefingDefaults{
		LookbackHours: cfg.Briefing.LookbackHours,
		MinArticles:   cfg.Briefing.MinArticles,
		ClustersQtd:   cfg.Briefing.ClustersQtd,
	}, nil)

	runner := processor.NewRunner(store.Articles(), gateway, provider, limiter, processor.Config{
		BatchLimit:    cfg.Processing.BatchLimit,
		SummaryChars:  cfg.Processing.SummaryChars,
		CategoryChars: cfg.Processing.CategoryChars,
	}, b.log)

	engine := clustering.NewEngine(clustering.DefaultConfig(), b.log)
	service := briefing.NewService(store.Articles(), store.Briefings(), gateway, provider, engine, limiter, briefing.Config{
		MaxClusterSummaries:  cfg.Briefing.MaxClusterSummaries,
		MaxSynthesisClusters: cfg.Briefing.MaxSynthesisClusters,
		SimpleBriefMax:       cfg.Briefing.SimpleBriefMax,
	}, b.log)

	if cfg.Archive.Enabled && !b.skipArchive {
		archiver, err := archive.NewS3Archiver(ctx, cfg.Archive, b.log)
		if err != nil {
			b.log.Warn().Err(err).Msg("Briefing archive disabled")
		} else {
			service.WithArchiver(archiver)
		}
	}

	scraper := feeds.NewScraper(store.Articles(), feeds.Config{
		UserAgent:          cfg.Feeds.UserAgent,
		Timeout:            cfg.Feeds.Timeout,
		MaxArticlesPerFeed: cfg.Feeds.MaxArticlesPerFeed,
	}, b.log)

	channels := make([]transcripts.Channel, 0, len(cfg.Transcripts.Channels))
	for _, ch := range cfg.Transcripts.Channels {
		channels = append(channels, transcripts.Channel{ID: ch.ID, Name: ch.Name, Enabled: ch.IsEnabled()})
	}
	videos := transcripts.NewProcessor(store.Transcriptions(), gateway, provider, limiter, transcripts.Config{
		Dir:          cfg.Transcripts.Dir,
		SummaryChars: cfg.Transcripts.SummaryChars,
		Channels:     channels,
	}, b.log)

	return &Components{
		Config:      cfg,
		Store:       store,
		Gateway:     gateway,
		Profiles:    registry,
		Prompts:     provider,
		Processor:   runner,
		Briefing:    service,
		Scraper:     scraper,
		Pipeline:    NewPipeline(registry, scraper, runner, service, b.log),
		Transcripts: videos,
	}, nil
}
