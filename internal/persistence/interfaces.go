// Package persistence provides the article and briefing stores
package persistence

import (
	"context"
	"errors"
	"time"

	"meridian/internal/core"
)

// ErrNotFound is returned when a row with the requested id does not exist.
var ErrNotFound = errors.New("not found")

// ErrDuplicate is returned when an insert hits a unique constraint.
var ErrDuplicate = errors.New("already exists")

// ArticleRepository handles article persistence operations
type ArticleRepository interface {
	// Create inserts a new raw article and sets its ID
	Create(ctx context.Context, article *core.Article) error

	// Exists reports whether an article with the URL is already stored
	Exists(ctx context.Context, url string) (bool, error)

	// Get retrieves an article by ID
	Get(ctx context.Context, id int64) (*core.Article, error)

	// GetUnprocessed returns articles without processed text, newest first
	GetUnprocessed(ctx context.Context, profile core.FeedProfile, limit int) ([]core.Article, error)

	// GetUnrated returns processed articles without a rating, newest first
	GetUnrated(ctx context.Context, profile core.FeedProfile, limit int) ([]core.Article, error)

	// GetUncategorized returns processed articles without categories, newest first
	GetUncategorized(ctx context.Context, profile core.FeedProfile, limit int) ([]core.Article, error)

	// GetForBriefing returns processed and embedded articles published within
	// the lookback window, ordered by rating then date, both descending
	GetForBriefing(ctx context.Context, lookbackHours int, profile core.FeedProfile) ([]core.Article, error)

	// UpdateProcessing sets processed text and embedding in one statement
	UpdateProcessing(ctx context.Context, id int64, processed string, embedding []float64) error

	// UpdateRating sets the impact rating
	UpdateRating(ctx context.Context, id int64, rating int) error

	// UpdateCategories sets the category tags
	UpdateCategories(ctx context.Context, id int64, categories []core.Category) error

	// List retrieves articles with pagination and filtering
	List(ctx context.Context, filter ArticleFilter) ([]core.Article, error)

	// Count returns the number of articles matching the filter, ignoring paging
	Count(ctx context.Context, filter ArticleFilter) (int, error)

	// Delete removes an article by ID
	Delete(ctx context.Context, id int64) error

	// DistinctProfiles lists the profiles that have at least one article
	DistinctProfiles(ctx context.Context) ([]core.FeedProfile, error)

	// DistinctCategories lists every category assigned to some article
	DistinctCategories(ctx context.Context) ([]core.Category, error)

	// Stats returns pipeline progress counters
	Stats(ctx context.Context) (*ArticleStats, error)
}

// BriefingRepository handles briefing persistence operations
type BriefingRepository interface {
	// Save appends a briefing and returns its ID
	Save(ctx context.Context, content string, articleIDs []int64, profile core.FeedProfile) (int64, error)

	// Get retrieves a briefing by ID
	Get(ctx context.Context, id int64) (*core.Briefing, error)

	// List retrieves briefings newest first, optionally for one profile
	List(ctx context.Context, profile core.FeedProfile, limit, offset int) ([]core.Briefing, error)

	// Latest returns the newest briefing, optionally for one profile
	Latest(ctx context.Context, profile core.FeedProfile) (*core.Briefing, error)
}

// TranscriptionRepository handles video transcript persistence
type TranscriptionRepository interface {
	// Create inserts a transcript and sets its ID. A second insert for the
	// same video URL fails with ErrDuplicate.
	Create(ctx context.Context, t *core.Transcription) error

	// Exists reports whether a transcript for the video URL is stored
	Exists(ctx context.Context, videoURL string) (bool, error)

	// Get retrieves a transcript by ID
	Get(ctx context.Context, id int64) (*core.Transcription, error)

	// List retrieves transcripts with pagination and filtering
	List(ctx context.Context, filter TranscriptionFilter) ([]core.Transcription, error)

	// Count returns the number of transcripts matching the filter, ignoring paging
	Count(ctx context.Context, filter TranscriptionFilter) (int, error)

	// DistinctChannels lists every channel with a stored transcript, by name
	DistinctChannels(ctx context.Context) ([]core.Channel, error)
}

// SortField is a column articles can be ordered by
type SortField string

const (
	SortPublishedDate SortField = "published_date"
	SortTitle         SortField = "title"
	SortImpactRating  SortField = "impact_rating"
	SortCreatedAt     SortField = "created_at"
)

// ArticleFilter provides filtering and pagination for article listings
type ArticleFilter struct {
	Profile   core.FeedProfile
	Search    string // matched against title, raw and processed text
	StartDate *time.Time
	EndDate   *time.Time // inclusive day
	Category  core.Category
	SortBy    SortField
	Ascending bool
	Page      int // 1-based
	PerPage   int
}

// ArticleStats counts articles per pipeline stage
type ArticleStats struct {
	Total       int                      `json:"total"`
	Processed   int                      `json:"processed"`
	Embedded    int                      `json:"embedded"`
	Rated       int                      `json:"rated"`
	Categorized int                      `json:"categorized"`
	ByProfile   map[core.FeedProfile]int `json:"by_profile"`
}

// TranscriptSortField is a column transcripts can be ordered by
type TranscriptSortField string

const (
	SortPostedAt    TranscriptSortField = "posted_at"
	SortVideoTitle  TranscriptSortField = "video_title"
	SortProcessedAt TranscriptSortField = "processed_at"
	SortChannelName TranscriptSortField = "channel_name"
)

// TranscriptionFilter provides filtering and pagination for transcript listings
type TranscriptionFilter struct {
	ChannelID   string
	ChannelName string
	Search      string // matched against title, transcript and summary
	StartDate   *time.Time
	EndDate     *time.Time // inclusive day
	SortBy      TranscriptSortField
	Ascending   bool
	Page        int // 1-based
	PerPage     int
}
