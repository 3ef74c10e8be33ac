// Package processor advances articles through the summarize, rate and
// categorize stages. Articles are handled one at a time; a failure on one
// article is counted and never stops the batch.
package processor

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"meridian/internal/categorization"
	"meridian/internal/core"
	"meridian/internal/throttle"
)

// Stage identifies one processing step.
type Stage string

const (
	StageSummarize  Stage = "summarize"
	StageRate       Stage = "rate"
	StageCategorize Stage = "categorize"
)

// Stages lists the stages in pipeline order.
var Stages = []Stage{StageSummarize, StageRate, StageCategorize}

// ParseStage validates a stage name.
func ParseStage(name string) (Stage, error) {
	for _, s := range Stages {
		if string(s) == strings.ToLower(strings.TrimSpace(name)) {
			return s, nil
		}
	}
	return "", fmt.Errorf("unknown stage %q", name)
}

const (
	DefaultBatchLimit    = 1000
	DefaultSummaryChars  = 4000
	DefaultCategoryChars = 2000
)

var (
	// ErrNoRating means the model response carried no integer.
	ErrNoRating = errors.New("no rating in response")
	// ErrInvalidRating means the parsed integer is outside 1..10.
	ErrInvalidRating = errors.New("rating out of range")
)

// Store is the part of the article store the runner reads and mutates.
type Store interface {
	Get(ctx context.Context, id int64) (*core.Article, error)
	GetUnprocessed(ctx context.Context, profile core.FeedProfile, limit int) ([]core.Article, error)
	GetUnrated(ctx context.Context, profile core.FeedProfile, limit int) ([]core.Article, error)
	GetUncategorized(ctx context.Context, profile core.FeedProfile, limit int) ([]core.Article, error)
	UpdateProcessing(ctx context.Context, id int64, processed string, embedding []float64) error
	UpdateRating(ctx context.Context, id int64, rating int) error
	UpdateCategories(ctx context.Context, id int64, categories []core.Category) error
}

// AI is the model capability the stages call.
type AI interface {
	ChatComplete(ctx context.Context, prompt, systemPrompt string) (string, error)
	Embed(ctx context.Context, text string) ([]float64, error)
}

// Prompts renders the per-stage prompts.
type Prompts interface {
	ArticleSummaryPrompt(profile core.FeedProfile, content string) string
	ImpactRatingPrompt(profile core.FeedProfile, summary string) string
	CategoryPrompt(title, content string) string
}

// Config tunes batch sizes and prompt budgets.
type Config struct {
	BatchLimit    int
	SummaryChars  int
	CategoryChars int
}

// Options narrows one stage run.
type Options struct {
	Limit     int   // batch cap; zero uses Config.BatchLimit
	ArticleID int64 // when set, only this article is handled
}

// Runner drives the processing stages.
type Runner struct {
	store       Store
	ai          AI
	prompts     Prompts
	categorizer *categorization.Categorizer
	limiter     throttle.Limiter
	cfg         Config
	log         zerolog.Logger
}

// NewRunner creates a stage runner. The limiter spaces consecutive model calls.
func NewRunner(store Store, ai AI, prompts Prompts, limiter throttle.Limiter, cfg Config, log zerolog.Logger) *Runner {
	if cfg.BatchLimit <= 0 {
		cfg.BatchLimit = DefaultBatchLimit
	}
	if cfg.SummaryChars <= 0 {
		cfg.SummaryChars = DefaultSummaryChars
	}
	if cfg.CategoryChars <= 0 {
		cfg.CategoryChars = DefaultCategoryChars
	}
	if limiter == nil {
		limiter = throttle.Noop{}
	}
	log = log.With().Str("component", "processor").Logger()
	return &Runner{
		store:       store,
		ai:          ai,
		prompts:     prompts,
		categorizer: categorization.NewCategorizer(ai, prompts, cfg.CategoryChars, log),
		limiter:     limiter,
		cfg:         cfg,
		log:         log,
	}
}

// Summarize runs the summarize and embed stage.
func (r *Runner) Summarize(ctx context.Context, profile core.FeedProfile, opts Options) (core.ProcessingStats, error) {
	return r.RunStage(ctx, StageSummarize, profile, opts)
}

// Rate runs the impact rating stage.
func (r *Runner) Rate(ctx context.Context, profile core.FeedProfile, opts Options) (core.ProcessingStats, error) {
	return r.RunStage(ctx, StageRate, profile, opts)
}

// Categorize runs the categorization stage.
func (r *Runner) Categorize(ctx context.Context, profile core.FeedProfile, opts Options) (core.ProcessingStats, error) {
	return r.RunStage(ctx, StageCategorize, profile, opts)
}

// RunStage processes the candidate articles of one stage sequentially.
// Only a failure to load candidates or a cancelled context returns an error;
// per-article failures are counted in the stats.
func (r *Runner) RunStage(ctx context.Context, stage Stage, profile core.FeedProfile, opts Options) (core.ProcessingStats, error) {
	stats := core.ProcessingStats{FeedProfile: profile, StartTime: time.Now()}
	log := r.log.With().Str("stage", string(stage)).Str("profile", string(profile)).Logger()

	candidates, err := r.candidates(ctx, stage, profile, opts)
	if err != nil {
		stats.EndTime = time.Now()
		return stats, fmt.Errorf("failed to load %s candidates: %w", stage, err)
	}

	log.Info().Int("candidates", len(candidates)).Msg("Starting stage")

	for _, article := range candidates {
		if err := r.limiter.Wait(ctx); err != nil {
			stats.EndTime = time.Now()
			return stats, fmt.Errorf("%s stage interrupted: %w", stage, err)
		}

		var stepErr error
		switch stage {
		case StageSummarize:
			stepErr = r.summarizeOne(ctx, article, &stats)
		case StageRate:
			stepErr = r.rateOne(ctx, article, &stats)
		case StageCategorize:
			stepErr = r.categorizeOne(ctx, article, &stats)
		}
		if stepErr != nil {
			stats.Errors++
			log.Warn().Err(stepErr).Int64("article_id", article.ID).Msg("Article failed")
		}
	}

	stats.EndTime = time.Now()
	log.Info().
		Int("processed", stats.Processed).
		Int("rated", stats.Rated).
		Int("categorized", stats.Categorized).
		Int("errors", stats.Errors).
		Dur("duration", stats.Duration()).
		Msg("Stage completed")
	return stats, nil
}

func (r *Runner) candidates(ctx context.Context, stage Stage, profile core.FeedProfile, opts Options) ([]core.Article, error) {
	if opts.ArticleID != 0 {
		article, err := r.store.Get(ctx, opts.ArticleID)
		if err != nil {
			return nil, err
		}
		// Rating and categorization need a summary even on the single article path.
		if stage != StageSummarize && !article.HasProcessedContent() {
			r.log.Info().Int64("article_id", article.ID).Str("stage", string(stage)).Msg("Article has no processed content, skipping")
			return nil, nil
		}
		return []core.Article{*article}, nil
	}

	limit := opts.Limit
	if limit <= 0 {
		limit = r.cfg.BatchLimit
	}

	switch stage {
	case StageSummarize:
		return r.store.GetUnprocessed(ctx, profile, limit)
	case StageRate:
		return r.store.GetUnrated(ctx, profile, limit)
	case StageCategorize:
		return r.store.GetUncategorized(ctx, profile, limit)
	default:
		return nil, fmt.Errorf("unknown stage %q", stage)
	}
}

func (r *Runner) summarizeOne(ctx context.Context, article core.Article, stats *core.ProcessingStats) error {
	if strings.TrimSpace(article.RawContent) == "" {
		return errors.New("article has no raw content")
	}

	prompt := r.prompts.ArticleSummaryPrompt(article.FeedProfile, core.Truncate(article.RawContent, r.cfg.SummaryChars))
	summary, err := r.ai.ChatComplete(ctx, prompt, "")
	if err != nil {
		return fmt.Errorf("summary failed: %w", err)
	}

	processed := strings.TrimSpace(summary) + Citation(article.Title, article.URL)

	embedding, err := r.ai.Embed(ctx, processed)
	if err != nil {
		return fmt.Errorf("embedding failed: %w", err)
	}

	if err := r.store.UpdateProcessing(ctx, article.ID, processed, embedding); err != nil {
		return fmt.Errorf("failed to save summary: %w", err)
	}

	stats.Processed++
	r.log.Debug().Int64("article_id", article.ID).Int("dimensions", len(embedding)).Msg("Article summarized")
	return nil
}

func (r *Runner) rateOne(ctx context.Context, article core.Article, stats *core.ProcessingStats) error {
	prompt := r.prompts.ImpactRatingPrompt(article.FeedProfile, article.Processed())
	response, err := r.ai.ChatComplete(ctx, prompt, "")
	if err != nil {
		return fmt.Errorf("rating failed: %w", err)
	}

	rating, err := ParseRating(response)
	if err != nil {
		return fmt.Errorf("rating response %q: %w", core.Truncate(response, 80), err)
	}

	if err := r.store.UpdateRating(ctx, article.ID, rating); err != nil {
		return fmt.Errorf("failed to save rating: %w", err)
	}

	stats.Rated++
	r.log.Debug().Int64("article_id", article.ID).Int("rating", rating).Msg("Article rated")
	return nil
}

func (r *Runner) categorizeOne(ctx context.Context, article core.Article, stats *core.ProcessingStats) error {
	result := r.categorizer.Categorize(ctx, article)
	if err := r.store.UpdateCategories(ctx, article.ID, result.Categories); err != nil {
		return fmt.Errorf("failed to save categories: %w", err)
	}

	stats.Categorized++
	r.log.Debug().
		Int64("article_id", article.ID).
		Interface("categories", result.Categories).
		Bool("fallback", result.Fallback).
		Msg("Article categorized")
	return nil
}

// ProcessArticle runs all three stages for one article, back to back. A stage
// that reports any error or makes no progress fails the whole call.
func (r *Runner) ProcessArticle(ctx context.Context, articleID int64, profile core.FeedProfile) error {
	opts := Options{Limit: 1, ArticleID: articleID}
	for _, stage := range Stages {
		stats, err := r.RunStage(ctx, stage, profile, opts)
		if err != nil {
			return err
		}
		if stats.Errors > 0 {
			return fmt.Errorf("%s stage failed for article %d", stage, articleID)
		}
		if stats.Progress() == 0 {
			return fmt.Errorf("%s stage made no progress for article %d", stage, articleID)
		}
	}
	return nil
}

var ratingPattern = regexp.MustCompile(`\d+`)

// ParseRating extracts the first integer in a model response and checks it
// lies in 1..10. "3.9" yields 3.
func ParseRating(response string) (int, error) {
	match := ratingPattern.FindString(response)
	if match == "" {
		return 0, ErrNoRating
	}
	rating, err := strconv.Atoi(match)
	if err != nil || rating < 1 || rating > 10 {
		return 0, fmt.Errorf("%w: %s", ErrInvalidRating, match)
	}
	return rating, nil
}

// Citation is the source line appended to every summary.
func Citation(title, url string) string {
	return fmt.Sprintf("\n\nSource: [%s](%s)", title, url)
}
