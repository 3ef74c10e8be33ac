// Package briefing clusters recent articles, analyzes each cluster and
// synthesizes the analyses into a persisted Markdown briefing.
package briefing

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"meridian/internal/clustering"
	"meridian/internal/core"
	"meridian/internal/prompts"
	"meridian/internal/throttle"
)

// Completer is the chat capability used for analysis and synthesis.
type Completer interface {
	ChatComplete(ctx context.Context, prompt, systemPrompt string) (string, error)
}

// Prompts renders the briefing prompts and resolves per-run thresholds.
type Prompts interface {
	ClusterAnalysisPrompt(profile core.FeedProfile, summaries, custom string) string
	BriefSynthesisPrompt(profile core.FeedProfile, analyses, custom string) string
	SimpleBriefPrompt(profile core.FeedProfile, articles string) string
	BriefingConfig(profile core.FeedProfile, overrides prompts.BriefingOverrides) prompts.BriefingConfig
}

// ArticleSource provides the articles a briefing is built from.
type ArticleSource interface {
	GetForBriefing(ctx context.Context, lookbackHours int, profile core.FeedProfile) ([]core.Article, error)
}

// BriefingSink persists finished briefings.
type BriefingSink interface {
	Save(ctx context.Context, content string, articleIDs []int64, profile core.FeedProfile) (int64, error)
}

// Clusterer partitions embeddings into at most k groups.
type Clusterer interface {
	Cluster(embeddings [][]float64, k int) []int
}

// Archiver receives every persisted briefing. Failures never fail the brief.
type Archiver interface {
	Archive(ctx context.Context, briefing core.Briefing) error
}

// Result is the outcome of one briefing run. Insufficient input is reported
// through Success and Error, not as a Go error.
type Result struct {
	Success    bool            `json:"success"`
	Error      string          `json:"error,omitempty"`
	BriefingID int64           `json:"briefing_id,omitempty"`
	Content    string          `json:"content,omitempty"`
	Stats      core.BriefStats `json:"stats"`
}

func failed(format string, args ...any) Result {
	return Result{Success: false, Error: fmt.Sprintf(format, args...)}
}

// Config holds the service limits
type Config struct {
	MaxClusterSummaries  int
	MaxSynthesisClusters int
	SimpleBriefMax       int
}

// Service runs the full and simple briefing paths.
type Service struct {
	articles    ArticleSource
	briefings   BriefingSink
	ai          Completer
	prompts     Prompts
	clusterer   Clusterer
	analyzer    *Analyzer
	synthesizer *Synthesizer
	limiter     throttle.Limiter
	archiver    Archiver
	cfg         Config
	log         zerolog.Logger
}

// NewService wires the briefing stages together. The limiter spaces the
// per-cluster analysis calls.
func NewService(
	articles ArticleSource,
	briefings BriefingSink,
	ai Completer,
	p Prompts,
	clusterer Clusterer,
	limiter throttle.Limiter,
	cfg Config,
	log zerolog.Logger,
) *Service {
	if limiter == nil {
		limiter = throttle.Noop{}
	}
	if cfg.SimpleBriefMax <= 0 {
		cfg.SimpleBriefMax = DefaultSimpleBriefMax
	}
	log = log.With().Str("component", "briefing").Logger()
	return &Service{
		articles:    articles,
		briefings:   briefings,
		ai:          ai,
		prompts:     p,
		clusterer:   clusterer,
		analyzer:    NewAnalyzer(ai, p, cfg.MaxClusterSummaries, log),
		synthesizer: NewSynthesizer(ai, p, cfg.MaxSynthesisClusters, log),
		limiter:     limiter,
		cfg:         cfg,
		log:         log,
	}
}

// WithArchiver registers a post-save archive hook.
func (s *Service) WithArchiver(a Archiver) *Service {
	s.archiver = a
	return s
}

// GenerateBrief runs eligibility check, clustering, analysis and synthesis
// for a profile and persists the result. A Go error is returned only when a
// store call fails.
func (s *Service) GenerateBrief(ctx context.Context, profile core.FeedProfile, overrides prompts.BriefingOverrides) (Result, error) {
	cfg := s.prompts.BriefingConfig(profile, overrides)
	log := s.log.With().Str("profile", string(cfg.FeedProfile)).Logger()

	log.Info().
		Int("lookback_hours", cfg.LookbackHours).
		Int("min_articles", cfg.MinArticles).
		Int("clusters_qtd", cfg.ClustersQtd).
		Msg("Generating brief")

	articles, err := s.articles.GetForBriefing(ctx, cfg.LookbackHours, cfg.FeedProfile)
	if err != nil {
		return failed("failed to load articles: %v", err), fmt.Errorf("failed to load articles for briefing: %w", err)
	}
	if len(articles) < cfg.MinArticles {
		return failed("Not enough recent articles (%d) for profile '%s'. Min required: %d.", len(articles), cfg.FeedProfile, cfg.MinArticles), nil
	}

	eligible := make([]core.Article, 0, len(articles))
	embeddings := make([][]float64, 0, len(articles))
	for _, article := range articles {
		if len(article.Embedding) == 0 {
			log.Warn().Int64("article_id", article.ID).Msg("Article has no embedding, excluding it")
			continue
		}
		eligible = append(eligible, article)
		embeddings = append(embeddings, article.Embedding)
	}
	if len(eligible) < cfg.MinArticles {
		return failed("Not enough articles (%d) with embeddings to cluster. Min required: %d.", len(eligible), cfg.MinArticles), nil
	}

	k := clustering.EffectiveK(len(eligible), cfg.ClustersQtd)
	if k < 2 {
		return failed("Not enough articles to form meaningful clusters"), nil
	}

	labels := s.clusterer.Cluster(embeddings, k)
	groups := clustering.Groups(labels, k)

	var analyses []core.ClusterAnalysis
	for index, members := range groups {
		if len(members) == 0 {
			continue
		}
		if err := s.limiter.Wait(ctx); err != nil {
			return failed("brief generation interrupted"), err
		}

		clusterArticles := make([]core.Article, len(members))
		for i, m := range members {
			clusterArticles[i] = eligible[m]
		}
		if analysis, ok := s.analyzer.Analyze(ctx, clusterArticles, cfg.FeedProfile, index, cfg.CustomPrompts.ClusterAnalysis); ok {
			analyses = append(analyses, analysis)
		}
	}

	if len(analyses) == 0 {
		return failed("No meaningful clusters found or analyzed."), nil
	}

	content, err := s.synthesizer.Synthesize(ctx, analyses, cfg.FeedProfile, cfg.CustomPrompts.BriefSynthesis)
	if err != nil {
		log.Error().Err(err).Msg("Synthesis failed")
		return failed("Could not synthesize final brief."), nil
	}

	ids := make([]int64, len(eligible))
	for i, article := range eligible {
		ids[i] = article.ID
	}

	briefingID, err := s.save(ctx, content, ids, cfg.FeedProfile)
	if err != nil {
		return failed("failed to save briefing: %v", err), err
	}

	stats := core.BriefStats{
		ArticlesAnalyzed:  len(eligible),
		ClustersGenerated: k,
		ClustersUsed:      len(analyses),
	}
	log.Info().
		Int64("briefing_id", briefingID).
		Int("articles", stats.ArticlesAnalyzed).
		Int("clusters", stats.ClustersGenerated).
		Int("clusters_used", stats.ClustersUsed).
		Msg("Brief generated")

	return Result{Success: true, BriefingID: briefingID, Content: content, Stats: stats}, nil
}

// save persists the briefing and hands it to the archiver, if any.
func (s *Service) save(ctx context.Context, content string, ids []int64, profile core.FeedProfile) (int64, error) {
	id, err := s.briefings.Save(ctx, content, ids, profile)
	if err != nil {
		return 0, fmt.Errorf("failed to save briefing: %w", err)
	}

	if s.archiver != nil {
		b := core.Briefing{ID: id, Content: content, ArticleIDs: ids, FeedProfile: profile, CreatedAt: time.Now().UTC()}
		if err := s.archiver.Archive(ctx, b); err != nil {
			s.log.Warn().Err(err).Int64("briefing_id", id).Msg("Failed to archive briefing")
		}
	}
	return id, nil
}
