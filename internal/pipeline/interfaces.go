package pipeline

import (
	"context"

	"meridian/internal/briefing"
	"meridian/internal/core"
	"meridian/internal/processor"
	"meridian/internal/profiles"
	"meridian/internal/prompts"
)

// FeedSource lists the feeds a profile scrapes
type FeedSource interface {
	EnabledFeeds(profile core.FeedProfile) []profiles.Feed
}

// FeedScraper ingests new articles from feeds
type FeedScraper interface {
	// Scrape reads the given feeds and stores new articles
	Scrape(ctx context.Context, profile core.FeedProfile, feeds []profiles.Feed) (core.ScrapingStats, error)
}

// StageRunner advances stored articles through one processing stage
type StageRunner interface {
	RunStage(ctx context.Context, stage processor.Stage, profile core.FeedProfile, opts processor.Options) (core.ProcessingStats, error)
}

// BriefGenerator produces and persists briefings
type BriefGenerator interface {
	// GenerateBrief clusters, analyzes and synthesizes recent articles
	GenerateBrief(ctx context.Context, profile core.FeedProfile, overrides prompts.BriefingOverrides) (briefing.Result, error)

	// GenerateSimpleBrief synthesizes the top rated articles without clustering
	GenerateSimpleBrief(ctx context.Context, profile core.FeedProfile, limit int) (briefing.Result, error)
}
