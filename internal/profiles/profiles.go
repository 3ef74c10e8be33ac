// Package profiles holds the feed profile registry: which RSS feeds belong to
// each profile and which prompt templates a profile overrides.
package profiles

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"meridian/internal/core"
)

// Feed is one RSS/Atom source attached to a profile.
type Feed struct {
	URL         string `yaml:"url" json:"url"`
	Name        string `yaml:"name" json:"name"`
	Category    string `yaml:"category,omitempty" json:"category,omitempty"`
	Description string `yaml:"description,omitempty" json:"description,omitempty"`
	Enabled     *bool  `yaml:"enabled,omitempty" json:"enabled,omitempty"`
}

// IsEnabled treats a feed without an explicit flag as enabled.
func (f Feed) IsEnabled() bool {
	return f.Enabled == nil || *f.Enabled
}

// PromptOverrides are per-profile replacements for the global templates.
// Empty fields fall back to the global template.
type PromptOverrides struct {
	ArticleSummary  string `yaml:"article_summary,omitempty" json:"article_summary,omitempty"`
	ImpactRating    string `yaml:"impact_rating,omitempty" json:"impact_rating,omitempty"`
	ClusterAnalysis string `yaml:"cluster_analysis,omitempty" json:"cluster_analysis,omitempty"`
	BriefSynthesis  string `yaml:"brief_synthesis,omitempty" json:"brief_synthesis,omitempty"`
}

// Profile is the full configuration of a feed profile.
type Profile struct {
	Name     core.FeedProfile `yaml:"name" json:"name"`
	Priority int              `yaml:"priority,omitempty" json:"priority,omitempty"`
	Feeds    []Feed           `yaml:"feeds" json:"feeds"`
	Prompts  PromptOverrides  `yaml:"prompts,omitempty" json:"prompts,omitempty"`
}

// Registry maps profiles to their configuration.
type Registry struct {
	profiles map[core.FeedProfile]Profile
}

// NewRegistry returns a registry seeded with the built-in profiles.
func NewRegistry() *Registry {
	r := &Registry{profiles: make(map[core.FeedProfile]Profile)}
	for _, p := range builtinProfiles() {
		r.Register(p)
	}
	return r
}

// Register adds or replaces a profile.
func (r *Registry) Register(p Profile) {
	r.profiles[p.Name] = p
}

// Get returns the profile configuration, if registered.
func (r *Registry) Get(profile core.FeedProfile) (Profile, bool) {
	p, ok := r.profiles[profile]
	return p, ok
}

// Available lists registered profiles ordered by priority, then name.
func (r *Registry) Available() []core.FeedProfile {
	list := make([]Profile, 0, len(r.profiles))
	for _, p := range r.profiles {
		list = append(list, p)
	}
	sort.Slice(list, func(i, j int) bool {
		if list[i].Priority != list[j].Priority {
			return list[i].Priority < list[j].Priority
		}
		return list[i].Name < list[j].Name
	})

	names := make([]core.FeedProfile, len(list))
	for i, p := range list {
		names[i] = p.Name
	}
	return names
}

// Feeds returns every feed configured for the profile.
func (r *Registry) Feeds(profile core.FeedProfile) []Feed {
	return r.profiles[profile].Feeds
}

// EnabledFeeds returns only the feeds that should be scraped.
func (r *Registry) EnabledFeeds(profile core.FeedProfile) []Feed {
	var enabled []Feed
	for _, f := range r.profiles[profile].Feeds {
		if f.IsEnabled() {
			enabled = append(enabled, f)
		}
	}
	return enabled
}

// Prompts returns the prompt overrides of a profile. Unknown profiles have none.
func (r *Registry) Prompts(profile core.FeedProfile) PromptOverrides {
	return r.profiles[profile].Prompts
}

type profileFile struct {
	Profiles []Profile `yaml:"profiles"`
}

// LoadFile reads profiles from a YAML file and layers them over the built-ins.
// A profile defined in the file replaces the built-in with the same name.
func LoadFile(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read profiles file: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML profile definitions and layers them over the built-ins.
func Parse(data []byte) (*Registry, error) {
	var file profileFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse profiles: %w", err)
	}

	r := NewRegistry()
	for i, p := range file.Profiles {
		name, err := core.ParseProfile(string(p.Name))
		if err != nil {
			return nil, fmt.Errorf("profile #%d: %w", i+1, err)
		}
		p.Name = name
		for j, f := range p.Feeds {
			if f.URL == "" {
				return nil, fmt.Errorf("profile %s: feed #%d has no url", name, j+1)
			}
		}
		r.Register(p)
	}
	return r, nil
}
