package server

import (
	"context"

	"meridian/internal/briefing"
	"meridian/internal/core"
	"meridian/internal/profiles"
	"meridian/internal/prompts"
	"meridian/internal/queue"
)

// Pinger checks a backing service
type Pinger interface {
	Ping(ctx context.Context) error
}

// ProfileLister describes the configured feed profiles
type ProfileLister interface {
	Available() []core.FeedProfile
	Feeds(profile core.FeedProfile) []profiles.Feed
}

// URLScraper ingests a single article page
type URLScraper interface {
	ScrapeURL(ctx context.Context, url string, profile core.FeedProfile) (*core.Article, error)
}

// BriefGenerator produces briefings on demand
type BriefGenerator interface {
	GenerateBrief(ctx context.Context, profile core.FeedProfile, overrides prompts.BriefingOverrides) (briefing.Result, error)
	GenerateSimpleBrief(ctx context.Context, profile core.FeedProfile, limit int) (briefing.Result, error)
}

// JobQueue schedules single-article processing
type JobQueue interface {
	Enqueue(ctx context.Context, articleID int64, profile core.FeedProfile) (queue.JobInfo, error)
	Status(ctx context.Context, jobID string) (queue.JobInfo, error)
}
