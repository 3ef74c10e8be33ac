package briefing

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"meridian/internal/core"
	"meridian/internal/prompts"
)

// DefaultSimpleBriefMax is how many top rated articles feed a simple brief.
const DefaultSimpleBriefMax = 10

// GenerateSimpleBrief skips clustering: the highest rated recent articles are
// listed in one prompt and synthesized directly. A non-positive limit uses the
// configured default.
func (s *Service) GenerateSimpleBrief(ctx context.Context, profile core.FeedProfile, limit int) (Result, error) {
	if limit <= 0 {
		limit = s.cfg.SimpleBriefMax
	}
	cfg := s.prompts.BriefingConfig(profile, prompts.BriefingOverrides{})
	log := s.log.With().Str("profile", string(cfg.FeedProfile)).Str("mode", "simple").Logger()

	articles, err := s.articles.GetForBriefing(ctx, cfg.LookbackHours, cfg.FeedProfile)
	if err != nil {
		return failed("failed to load articles: %v", err), fmt.Errorf("failed to load articles for briefing: %w", err)
	}
	if len(articles) == 0 {
		return failed("No articles found for briefing"), nil
	}

	top := TopRated(articles, limit)
	prompt := s.prompts.SimpleBriefPrompt(cfg.FeedProfile, RenderArticleList(top))

	content, err := s.ai.ChatComplete(ctx, prompt, "")
	if err != nil {
		log.Error().Err(err).Msg("Simple brief call failed")
		return failed("Failed to generate brief content"), nil
	}

	ids := make([]int64, len(top))
	for i, article := range top {
		ids[i] = article.ID
	}

	briefingID, err := s.save(ctx, content, ids, cfg.FeedProfile)
	if err != nil {
		return failed("failed to save briefing: %v", err), err
	}

	log.Info().Int64("briefing_id", briefingID).Int("articles", len(top)).Msg("Simple brief generated")
	return Result{
		Success:    true,
		BriefingID: briefingID,
		Content:    content,
		Stats:      core.BriefStats{ArticlesAnalyzed: len(top)},
	}, nil
}

// TopRated returns up to limit articles by impact rating, highest first.
// Unrated articles rank as zero; ties keep their input order.
func TopRated(articles []core.Article, limit int) []core.Article {
	sorted := make([]core.Article, len(articles))
	copy(sorted, articles)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Rating() > sorted[j].Rating()
	})
	if limit > 0 && len(sorted) > limit {
		sorted = sorted[:limit]
	}
	return sorted
}

// RenderArticleList numbers articles with their title, rating and summary.
func RenderArticleList(articles []core.Article) string {
	lines := make([]string, 0, len(articles))
	for i, article := range articles {
		rating := "N/A"
		if article.ImpactRating != nil {
			rating = strconv.Itoa(*article.ImpactRating)
		}
		lines = append(lines, fmt.Sprintf("%d. **%s** (Impact: %s)\n   %s\n", i+1, article.Title, rating, article.Processed()))
	}
	return strings.Join(lines, "\n")
}
