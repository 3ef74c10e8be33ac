// Package prompts supplies prompt templates and briefing thresholds.
// Templates resolve per feed profile first and fall back to the global defaults.
package prompts

import (
	"regexp"

	"meridian/internal/categorization"
	"meridian/internal/core"
	"meridian/internal/profiles"
)

// Kind identifies a prompt template.
type Kind string

const (
	KindArticleSummary         Kind = "article_summary"
	KindImpactRating           Kind = "impact_rating"
	KindCategoryClassification Kind = "category_classification"
	KindClusterAnalysis        Kind = "cluster_analysis"
	KindBriefSynthesis         Kind = "brief_synthesis"
	KindTranscriptionSummary   Kind = "transcription_summary"
)

// Templates maps each kind to its template text.
type Templates map[Kind]string

// BriefingDefaults are the process-wide briefing thresholds.
type BriefingDefaults struct {
	LookbackHours int
	MinArticles   int
	ClustersQtd   int
}

// DefaultBriefingDefaults mirrors the shipped configuration.
func DefaultBriefingDefaults() BriefingDefaults {
	return BriefingDefaults{LookbackHours: 24, MinArticles: 5, ClustersQtd: 10}
}

// CustomPrompts replace the cluster analysis and synthesis templates for one run.
type CustomPrompts struct {
	ClusterAnalysis string `json:"cluster_analysis,omitempty"`
	BriefSynthesis  string `json:"brief_synthesis,omitempty"`
}

// BriefingOverrides are caller supplied values. Zero values keep the defaults.
type BriefingOverrides struct {
	LookbackHours int
	MinArticles   int
	ClustersQtd   int
	CustomPrompts CustomPrompts
}

// BriefingConfig is the resolved configuration for one briefing run.
type BriefingConfig struct {
	FeedProfile   core.FeedProfile
	LookbackHours int
	MinArticles   int
	ClustersQtd   int
	CustomPrompts CustomPrompts
}

// Provider resolves prompts and briefing configuration. It holds no mutable state.
type Provider struct {
	templates Templates
	registry  *profiles.Registry
	defaults  BriefingDefaults
}

// NewProvider builds a provider. Missing templates are filled from DefaultTemplates.
func NewProvider(registry *profiles.Registry, defaults BriefingDefaults, templates Templates) *Provider {
	merged := DefaultTemplates()
	for kind, text := range templates {
		if text != "" {
			merged[kind] = text
		}
	}
	if registry == nil {
		registry = profiles.NewRegistry()
	}
	return &Provider{templates: merged, registry: registry, defaults: defaults}
}

// GetPrompt returns the global template of a kind.
func (p *Provider) GetPrompt(kind Kind) string {
	return p.templates[kind]
}

// PromptsForProfile returns the profile's overrides. Fields may be empty.
func (p *Provider) PromptsForProfile(profile core.FeedProfile) profiles.PromptOverrides {
	return p.registry.Prompts(profile)
}

// Registry exposes the profile registry backing the provider.
func (p *Provider) Registry() *profiles.Registry {
	return p.registry
}

var placeholderPattern = regexp.MustCompile(`\{([a-z][a-z0-9_]*)\}`)

// Format substitutes {key} placeholders. Placeholders without a value render as
// an empty string; braces that do not form a placeholder are left alone.
func Format(template string, vars map[string]string) string {
	return placeholderPattern.ReplaceAllStringFunc(template, func(match string) string {
		return vars[match[1:len(match)-1]]
	})
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// ArticleSummaryPrompt renders the summarization prompt for raw article content.
func (p *Provider) ArticleSummaryPrompt(profile core.FeedProfile, content string) string {
	template := firstNonEmpty(p.registry.Prompts(profile).ArticleSummary, p.templates[KindArticleSummary])
	return Format(template, map[string]string{"article_content": content})
}

// ImpactRatingPrompt renders the rating prompt for a processed summary.
func (p *Provider) ImpactRatingPrompt(profile core.FeedProfile, summary string) string {
	template := firstNonEmpty(p.registry.Prompts(profile).ImpactRating, p.templates[KindImpactRating])
	return Format(template, map[string]string{"summary": summary})
}

// CategoryPrompt renders the classification prompt. Profiles cannot override it.
func (p *Provider) CategoryPrompt(title, content string) string {
	return Format(p.templates[KindCategoryClassification], map[string]string{
		"categories": categorization.PromptList(),
		"title":      title,
		"content":    content,
	})
}

// ClusterAnalysisPrompt picks custom, then profile, then global template.
func (p *Provider) ClusterAnalysisPrompt(profile core.FeedProfile, summaries, custom string) string {
	template := firstNonEmpty(custom, p.registry.Prompts(profile).ClusterAnalysis, p.templates[KindClusterAnalysis])
	return Format(template, map[string]string{
		"feed_profile":           string(profile),
		"cluster_summaries_text": summaries,
	})
}

// BriefSynthesisPrompt picks custom, then profile, then global template.
func (p *Provider) BriefSynthesisPrompt(profile core.FeedProfile, analyses, custom string) string {
	template := firstNonEmpty(custom, p.registry.Prompts(profile).BriefSynthesis, p.templates[KindBriefSynthesis])
	return Format(template, map[string]string{
		"feed_profile":          string(profile),
		"cluster_analyses_text": analyses,
	})
}

// SimpleBriefPrompt renders the clustering-free briefing prompt.
func (p *Provider) SimpleBriefPrompt(profile core.FeedProfile, articles string) string {
	return Format(SimpleBriefTemplate, map[string]string{
		"feed_profile":  string(profile),
		"articles_text": articles,
	})
}

// TranscriptionSummaryPrompt renders the summary prompt for a video transcript.
func (p *Provider) TranscriptionSummaryPrompt(title, transcript string) string {
	return Format(p.templates[KindTranscriptionSummary], map[string]string{
		"title":      title,
		"transcript": transcript,
	})
}

// BriefingConfig resolves thresholds for a run, applying non-zero overrides.
func (p *Provider) BriefingConfig(profile core.FeedProfile, overrides BriefingOverrides) BriefingConfig {
	cfg := BriefingConfig{
		FeedProfile:   profile,
		LookbackHours: p.defaults.LookbackHours,
		MinArticles:   p.defaults.MinArticles,
		ClustersQtd:   p.defaults.ClustersQtd,
		CustomPrompts: overrides.CustomPrompts,
	}
	if cfg.FeedProfile == "" {
		cfg.FeedProfile = core.ProfileDefault
	}
	if overrides.LookbackHours > 0 {
		cfg.LookbackHours = overrides.LookbackHours
	}
	if overrides.MinArticles > 0 {
		cfg.MinArticles = overrides.MinArticles
	}
	if overrides.ClustersQtd > 0 {
		cfg.ClustersQtd = overrides.ClustersQtd
	}
	return cfg
}
