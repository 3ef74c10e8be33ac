// Package pipeline runs the whole daily flow for a feed profile and wires
// the components that make it up.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"meridian/internal/briefing"
	"meridian/internal/core"
	"meridian/internal/processor"
	"meridian/internal/prompts"
)

// Pipeline orchestrates scrape, the three processing stages and the brief
type Pipeline struct {
	feeds   FeedSource
	scraper FeedScraper
	stages  StageRunner
	briefs  BriefGenerator
	log     zerolog.Logger
}

// NewPipeline creates a new pipeline with all dependencies
func NewPipeline(feeds FeedSource, scraper FeedScraper, stages StageRunner, briefs BriefGenerator, log zerolog.Logger) *Pipeline {
	return &Pipeline{
		feeds:   feeds,
		scraper: scraper,
		stages:  stages,
		briefs:  briefs,
		log:     log.With().Str("component", "pipeline").Logger(),
	}
}

// RunOptions configures one run
type RunOptions struct {
	SkipScrape  bool // process what is already stored
	Limit       int  // per-stage batch cap, zero for the default
	SimpleBrief bool // use the clustering-free brief
	Overrides   prompts.BriefingOverrides
}

// RunResult contains the output of every step
type RunResult struct {
	FeedProfile core.FeedProfile                         `json:"feed_profile"`
	Scraping    core.ScrapingStats                       `json:"scraping"`
	Stages      map[processor.Stage]core.ProcessingStats `json:"stages"`
	Brief       briefing.Result                          `json:"brief"`
	Duration    time.Duration                            `json:"duration"`
}

// Run executes the full pipeline for a profile. Per-article and per-feed
// failures are reported in the stats; a store failure or a profile without
// feeds stops the run with an error. A brief that could not be produced is
// reported through Brief.Success.
func (p *Pipeline) Run(ctx context.Context, profile core.FeedProfile, opts RunOptions) (*RunResult, error) {
	start := time.Now()
	result := &RunResult{
		FeedProfile: profile,
		Stages:      make(map[processor.Stage]core.ProcessingStats, len(processor.Stages)),
	}
	log := p.log.With().Str("profile", string(profile)).Logger()

	// Step 1: Scrape feeds
	if !opts.SkipScrape {
		feeds := p.feeds.EnabledFeeds(profile)
		if len(feeds) == 0 {
			return nil, fmt.Errorf("no enabled feeds for profile %q", profile)
		}

		log.Info().Int("feeds", len(feeds)).Msg("Step 1/5: Scraping feeds")
		stats, err := p.scraper.Scrape(ctx, profile, feeds)
		if err != nil {
			return nil, fmt.Errorf("failed to scrape feeds: %w", err)
		}
		result.Scraping = stats
	}

	// Steps 2-4: summarize, rate, categorize
	for i, stage := range processor.Stages {
		log.Info().Msgf("Step %d/5: Running %s stage", i+2, stage)
		stats, err := p.stages.RunStage(ctx, stage, profile, processor.Options{Limit: opts.Limit})
		if err != nil {
			return nil, fmt.Errorf("%s stage failed: %w", stage, err)
		}
		result.Stages[stage] = stats
	}

	// Step 5: Brief
	log.Info().Bool("simple", opts.SimpleBrief).Msg("Step 5/5: Generating brief")
	var (
		brief briefing.Result
		err   error
	)
	if opts.SimpleBrief {
		brief, err = p.briefs.GenerateSimpleBrief(ctx, profile, 0)
	} else {
		brief, err = p.briefs.GenerateBrief(ctx, profile, opts.Overrides)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to generate brief: %w", err)
	}
	result.Brief = brief

	result.Duration = time.Since(start)
	log.Info().
		Int("new_articles", result.Scraping.NewArticles).
		Bool("brief_success", brief.Success).
		Str("brief_error", brief.Error).
		Dur("duration", result.Duration).
		Msg("Pipeline completed")
	return result, nil
}
