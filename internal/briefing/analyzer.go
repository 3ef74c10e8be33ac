package briefing

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"meridian/internal/core"
)

// DefaultMaxClusterSummaries bounds how many summaries go into one analysis prompt.
const DefaultMaxClusterSummaries = 10

// Analyzer turns one cluster of articles into a short topic analysis.
type Analyzer struct {
	ai           Completer
	prompts      Prompts
	maxSummaries int
	log          zerolog.Logger
}

// NewAnalyzer creates a cluster analyzer
func NewAnalyzer(ai Completer, prompts Prompts, maxSummaries int, log zerolog.Logger) *Analyzer {
	if maxSummaries <= 0 {
		maxSummaries = DefaultMaxClusterSummaries
	}
	return &Analyzer{ai: ai, prompts: prompts, maxSummaries: maxSummaries, log: log}
}

// Analyze asks the model for an analysis of the cluster at index. It reports
// false when the cluster is empty, the call fails, or the model flags a
// cluster of two or fewer articles as unrelated.
func (a *Analyzer) Analyze(ctx context.Context, articles []core.Article, profile core.FeedProfile, index int, customPrompt string) (core.ClusterAnalysis, bool) {
	if len(articles) == 0 {
		return core.ClusterAnalysis{}, false
	}

	sample := articles
	if len(sample) > a.maxSummaries {
		sample = sample[:a.maxSummaries]
	}
	summaries := make([]string, 0, len(sample))
	for _, article := range sample {
		summaries = append(summaries, "- "+article.Processed())
	}

	prompt := a.prompts.ClusterAnalysisPrompt(profile, strings.Join(summaries, "\n\n"), customPrompt)
	analysis, err := a.ai.ChatComplete(ctx, prompt, "")
	if err != nil {
		a.log.Warn().Err(err).Int("cluster", index).Msg("Cluster analysis failed")
		return core.ClusterAnalysis{}, false
	}

	if len(articles) <= 2 && strings.Contains(strings.ToLower(analysis), "unrelated") {
		a.log.Info().Int("cluster", index).Int("size", len(articles)).Msg("Skipping small cluster flagged as unrelated")
		return core.ClusterAnalysis{}, false
	}

	return core.ClusterAnalysis{
		Label:    index,
		Topic:    fmt.Sprintf("Cluster %d", index+1),
		Analysis: analysis,
		Size:     len(articles),
		Articles: articles,
	}, true
}
