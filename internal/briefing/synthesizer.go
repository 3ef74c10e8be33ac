package briefing

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"meridian/internal/core"
)

// DefaultMaxSynthesisClusters is how many analyses reach the final prompt.
const DefaultMaxSynthesisClusters = 5

// Synthesizer combines accepted cluster analyses into one Markdown brief.
type Synthesizer struct {
	ai          Completer
	prompts     Prompts
	maxClusters int
	log         zerolog.Logger
}

// NewSynthesizer creates a brief synthesizer
func NewSynthesizer(ai Completer, prompts Prompts, maxClusters int, log zerolog.Logger) *Synthesizer {
	if maxClusters <= 0 {
		maxClusters = DefaultMaxSynthesisClusters
	}
	return &Synthesizer{ai: ai, prompts: prompts, maxClusters: maxClusters, log: log}
}

// Rank orders analyses by size, largest first, keeping input order between
// equal sizes, and returns at most limit of them.
func Rank(analyses []core.ClusterAnalysis, limit int) []core.ClusterAnalysis {
	ranked := make([]core.ClusterAnalysis, len(analyses))
	copy(ranked, analyses)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Size > ranked[j].Size
	})
	if limit > 0 && len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked
}

// RenderAnalyses formats ranked analyses as the labelled blocks the synthesis
// prompt expects.
func RenderAnalyses(ranked []core.ClusterAnalysis) string {
	blocks := make([]string, 0, len(ranked))
	for i, analysis := range ranked {
		blocks = append(blocks, fmt.Sprintf("--- Cluster %d (%d articles) ---\nAnalysis: %s\n", i+1, analysis.Size, analysis.Analysis))
	}
	return strings.Join(blocks, "\n")
}

// Synthesize renders the top analyses into the synthesis prompt and returns
// the model's Markdown.
func (s *Synthesizer) Synthesize(ctx context.Context, analyses []core.ClusterAnalysis, profile core.FeedProfile, customPrompt string) (string, error) {
	ranked := Rank(analyses, s.maxClusters)
	prompt := s.prompts.BriefSynthesisPrompt(profile, RenderAnalyses(ranked), customPrompt)

	s.log.Debug().Int("analyses", len(analyses)).Int("used", len(ranked)).Msg("Synthesizing brief")

	content, err := s.ai.ChatComplete(ctx, prompt, "")
	if err != nil {
		return "", fmt.Errorf("synthesis call failed: %w", err)
	}
	return content, nil
}
