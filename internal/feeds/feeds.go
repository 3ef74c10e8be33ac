// Package feeds scrapes RSS/Atom feeds and web pages into raw articles.
package feeds

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"
	"github.com/rs/zerolog"

	"meridian/internal/core"
	"meridian/internal/profiles"
)

const (
	DefaultUserAgent          = "Mozilla/5.0 (compatible; Meridian/1.0; +https://github.com/meridian)"
	DefaultTimeout            = 30 * time.Second
	DefaultMaxArticlesPerFeed = 50

	ManualSource = "Manual"
	untitled     = "Untitled Article"
)

// ErrDuplicate is returned by ScrapeURL when the URL is already stored.
var ErrDuplicate = errors.New("article already exists")

// ArticleStore is the part of the article store the scraper writes to.
type ArticleStore interface {
	Exists(ctx context.Context, url string) (bool, error)
	Create(ctx context.Context, article *core.Article) error
}

// Config tunes HTTP fetching and per-feed limits
type Config struct {
	UserAgent          string
	Timeout            time.Duration
	MaxArticlesPerFeed int
}

// Scraper turns feed items and single URLs into raw articles.
type Scraper struct {
	store  ArticleStore
	client *http.Client
	parser *gofeed.Parser
	cfg    Config
	log    zerolog.Logger
}

// NewScraper creates a new scraper
func NewScraper(store ArticleStore, cfg Config, log zerolog.Logger) *Scraper {
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.MaxArticlesPerFeed <= 0 {
		cfg.MaxArticlesPerFeed = DefaultMaxArticlesPerFeed
	}
	return &Scraper{
		store:  store,
		client: &http.Client{Timeout: cfg.Timeout},
		parser: gofeed.NewParser(),
		cfg:    cfg,
		log:    log.With().Str("component", "scraper").Logger(),
	}
}

// Scrape reads every enabled feed and stores items whose URL is new. Feed
// and item failures are counted; only a cancelled context stops the run.
func (s *Scraper) Scrape(ctx context.Context, profile core.FeedProfile, feeds []profiles.Feed) (core.ScrapingStats, error) {
	stats := core.ScrapingStats{FeedProfile: profile, StartTime: time.Now()}

	for _, feed := range feeds {
		if !feed.IsEnabled() {
			continue
		}
		if err := ctx.Err(); err != nil {
			stats.EndTime = time.Now()
			return stats, err
		}

		stats.TotalFeeds++
		added, errs := s.scrapeFeed(ctx, profile, feed)
		stats.NewArticles += added
		stats.Errors += errs
	}

	stats.EndTime = time.Now()
	s.log.Info().
		Str("profile", string(profile)).
		Int("feeds", stats.TotalFeeds).
		Int("new_articles", stats.NewArticles).
		Int("errors", stats.Errors).
		Msg("Scrape completed")
	return stats, nil
}

func (s *Scraper) scrapeFeed(ctx context.Context, profile core.FeedProfile, feed profiles.Feed) (added, errs int) {
	log := s.log.With().Str("feed", feed.URL).Logger()

	parsed, err := s.fetchFeed(ctx, feed.URL)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to fetch feed")
		return 0, 1
	}

	source := feed.Name
	if source == "" {
		source = parsed.Title
	}

	items := parsed.Items
	if len(items) > s.cfg.MaxArticlesPerFeed {
		items = items[:s.cfg.MaxArticlesPerFeed]
	}

	for _, item := range items {
		if item.Link == "" {
			continue
		}

		exists, err := s.store.Exists(ctx, item.Link)
		if err != nil {
			log.Warn().Err(err).Str("url", item.Link).Msg("Duplicate check failed")
			errs++
			continue
		}
		if exists {
			continue
		}

		article := s.articleFromItem(ctx, item, source, profile)
		if article.RawContent == "" {
			log.Debug().Str("url", item.Link).Msg("No content extracted, skipping")
			errs++
			continue
		}

		if err := s.store.Create(ctx, article); err != nil {
			log.Warn().Err(err).Str("url", item.Link).Msg("Failed to save article")
			errs++
			continue
		}
		added++
	}

	log.Debug().Int("items", len(items)).Int("added", added).Msg("Feed scraped")
	return added, errs
}

func (s *Scraper) fetchFeed(ctx context.Context, feedURL string) (*gofeed.Feed, error) {
	body, err := s.fetchPage(ctx, feedURL)
	if err != nil {
		return nil, err
	}
	parsed, err := s.parser.Parse(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to parse feed: %w", err)
	}
	return parsed, nil
}

// articleFromItem builds a raw article from a feed item, extracting the full
// page text. The feed's own content is used when the page cannot be read.
func (s *Scraper) articleFromItem(ctx context.Context, item *gofeed.Item, source string, profile core.FeedProfile) *core.Article {
	article := &core.Article{
		URL:           item.Link,
		Title:         strings.TrimSpace(item.Title),
		PublishedDate: publishedDate(item),
		FeedSource:    source,
		FeedProfile:   profile,
	}

	page, err := s.Extract(ctx, item.Link)
	if err != nil {
		s.log.Debug().Err(err).Str("url", item.Link).Msg("Page extraction failed, using feed content")
		article.RawContent = htmlToText(firstNonEmpty(item.Content, item.Description))
	} else {
		article.RawContent = page.Text
	}

	if image := ItemImage(item); image != "" {
		article.ImageURL = &image
	} else if page.ImageURL != "" {
		article.ImageURL = &page.ImageURL
	}

	if article.Title == "" {
		article.Title = firstNonEmpty(page.Title, untitled)
	}
	return article
}

// ScrapeURL ingests a single page outside of any feed.
func (s *Scraper) ScrapeURL(ctx context.Context, pageURL string, profile core.FeedProfile) (*core.Article, error) {
	exists, err := s.store.Exists(ctx, pageURL)
	if err != nil {
		return nil, fmt.Errorf("failed to check for existing article: %w", err)
	}
	if exists {
		return nil, ErrDuplicate
	}

	page, err := s.Extract(ctx, pageURL)
	if err != nil {
		return nil, err
	}

	article := &core.Article{
		URL:           pageURL,
		Title:         firstNonEmpty(page.Title, untitled),
		PublishedDate: time.Now().UTC(),
		FeedSource:    ManualSource,
		RawContent:    page.Text,
		FeedProfile:   profile,
	}
	if page.ImageURL != "" {
		article.ImageURL = &page.ImageURL
	}

	if err := s.store.Create(ctx, article); err != nil {
		return nil, fmt.Errorf("failed to save article: %w", err)
	}

	s.log.Info().Int64("article_id", article.ID).Str("url", pageURL).Msg("Manual article ingested")
	return article, nil
}

// ItemImage picks an image from the feed item: image enclosures first, then
// media:content, media:thumbnail and the item image.
func ItemImage(item *gofeed.Item) string {
	for _, enc := range item.Enclosures {
		if enc != nil && enc.URL != "" && strings.HasPrefix(enc.Type, "image/") {
			return enc.URL
		}
	}
	if media, ok := item.Extensions["media"]; ok {
		for _, name := range []string{"content", "thumbnail"} {
			for _, e := range media[name] {
				if u := e.Attrs["url"]; u != "" {
					return u
				}
			}
		}
	}
	if item.Image != nil && item.Image.URL != "" {
		return item.Image.URL
	}
	return ""
}

func publishedDate(item *gofeed.Item) time.Time {
	switch {
	case item.PublishedParsed != nil:
		return item.PublishedParsed.UTC()
	case item.UpdatedParsed != nil:
		return item.UpdatedParsed.UTC()
	default:
		return time.Now().UTC()
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}
