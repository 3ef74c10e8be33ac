package core

import (
	"fmt"
	"strings"
	"time"
)

// FeedProfile names a content track with its own feeds, prompts and briefings.
type FeedProfile string

const (
	ProfileDefault    FeedProfile = "default"
	ProfileTechnology FeedProfile = "technology"
	ProfilePolitics   FeedProfile = "politics"
	ProfileBusiness   FeedProfile = "business"
	ProfileHealth     FeedProfile = "health"
	ProfileScience    FeedProfile = "science"
	ProfileBrasil     FeedProfile = "brasil"
	ProfileTeclas     FeedProfile = "teclas"
)

// AllProfiles lists every known feed profile in display order.
var AllProfiles = []FeedProfile{
	ProfileDefault,
	ProfileTechnology,
	ProfilePolitics,
	ProfileBusiness,
	ProfileHealth,
	ProfileScience,
	ProfileBrasil,
	ProfileTeclas,
}

// ParseProfile converts a user supplied name into a FeedProfile.
func ParseProfile(name string) (FeedProfile, error) {
	candidate := FeedProfile(strings.ToLower(strings.TrimSpace(name)))
	for _, p := range AllProfiles {
		if p == candidate {
			return p, nil
		}
	}
	return "", fmt.Errorf("unknown feed profile %q", name)
}

// Category is one of the fixed article classification tags.
type Category string

const (
	CategoryNews       Category = "news"
	CategoryBlog       Category = "blog"
	CategoryResearch   Category = "research"
	CategoryNodeJS     Category = "nodejs"
	CategoryTypeScript Category = "typescript"
	CategoryTutorial   Category = "tutorial"
	CategoryOther      Category = "other"
)

// Article is one ingested document and the fields each processing stage fills in.
type Article struct {
	ID               int64       `json:"id"`                          // Store assigned identifier
	URL              string      `json:"url"`                         // Source URL, unique
	Title            string      `json:"title"`                       // Headline
	PublishedDate    time.Time   `json:"published_date"`              // Publication timestamp
	FeedSource       string      `json:"feed_source"`                 // Name of the feed it came from
	RawContent       string      `json:"raw_content"`                 // Extracted article text
	ProcessedContent *string     `json:"processed_content,omitempty"` // Summary with source citation
	Embedding        []float64   `json:"embedding,omitempty"`         // Embedding of the processed content
	ImpactRating     *int        `json:"impact_rating,omitempty"`     // 1-10 score
	FeedProfile      FeedProfile `json:"feed_profile"`                // Owning profile
	ImageURL         *string     `json:"image_url,omitempty"`         // Lead image, if any
	Categories       []Category  `json:"categories,omitempty"`        // Classification tags
	CreatedAt        time.Time   `json:"created_at"`                  // Insert timestamp
}

// HasProcessedContent reports whether the summarize stage has run for the article.
func (a Article) HasProcessedContent() bool {
	return a.ProcessedContent != nil && *a.ProcessedContent != ""
}

// Processed returns the processed text or an empty string.
func (a Article) Processed() string {
	if a.ProcessedContent == nil {
		return ""
	}
	return *a.ProcessedContent
}

// Rating returns the impact rating, or zero when unrated.
func (a Article) Rating() int {
	if a.ImpactRating == nil {
		return 0
	}
	return *a.ImpactRating
}

// IsEligible reports whether the article can take part in a briefing built
// from articles published at or after cutoff.
func (a Article) IsEligible(cutoff time.Time) bool {
	return a.HasProcessedContent() && len(a.Embedding) > 0 && !a.PublishedDate.Before(cutoff)
}

// Briefing is a persisted, immutable briefing document.
type Briefing struct {
	ID          int64       `json:"id"`
	Content     string      `json:"content"`     // Markdown text
	ArticleIDs  []int64     `json:"article_ids"` // Contributing articles, in input order
	FeedProfile FeedProfile `json:"feed_profile"`
	CreatedAt   time.Time   `json:"created_at"`
}

// ClusterAnalysis is the analyzed form of one cluster. It is never persisted.
type ClusterAnalysis struct {
	Label    int       `json:"label"`
	Topic    string    `json:"topic"`
	Analysis string    `json:"analysis"`
	Size     int       `json:"size"`
	Articles []Article `json:"-"`
}

// ProcessingStats summarizes one run of a processing stage.
type ProcessingStats struct {
	FeedProfile FeedProfile `json:"feed_profile"`
	Processed   int         `json:"processed"`
	Rated       int         `json:"rated"`
	Categorized int         `json:"categorized"`
	Errors      int         `json:"errors"`
	StartTime   time.Time   `json:"start_time"`
	EndTime     time.Time   `json:"end_time"`
}

// Progress returns the count relevant to whichever stage produced the stats.
func (s ProcessingStats) Progress() int {
	return s.Processed + s.Rated + s.Categorized
}

// Duration is the wall time of the run.
func (s ProcessingStats) Duration() time.Duration {
	return s.EndTime.Sub(s.StartTime)
}

// ScrapingStats summarizes one scrape run.
type ScrapingStats struct {
	FeedProfile FeedProfile `json:"feed_profile"`
	TotalFeeds  int         `json:"total_feeds"`
	NewArticles int         `json:"new_articles"`
	Errors      int         `json:"errors"`
	StartTime   time.Time   `json:"start_time"`
	EndTime     time.Time   `json:"end_time"`
}

// BriefStats describes how a briefing was assembled.
type BriefStats struct {
	ArticlesAnalyzed  int `json:"articles_analyzed"`
	ClustersGenerated int `json:"clusters_generated"`
	ClustersUsed      int `json:"clusters_used"`
}

// Truncate returns at most n runes of s.
func Truncate(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if len(s) <= n {
		return s
	}
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}

// Transcription is a stored video transcript and its optional summary.
type Transcription struct {
	ID          int64      `json:"id"`
	ChannelID   string     `json:"channel_id"`
	ChannelName string     `json:"channel_name"`
	VideoTitle  string     `json:"video_title"`
	PostedAt    *time.Time `json:"posted_at,omitempty"` // nil when the source did not know
	VideoURL    string     `json:"video_url"`           // unique
	ProcessedAt time.Time  `json:"processed_at"`
	Text        string     `json:"transcription_text"`
	Summary     *string    `json:"transcription_summary,omitempty"`
}

// HasSummary reports whether a summary was generated for the transcript.
func (t Transcription) HasSummary() bool {
	return t.Summary != nil && *t.Summary != ""
}

// Channel identifies a video channel.
type Channel struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}
