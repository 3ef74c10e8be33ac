package persistence

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"meridian/internal/core"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := OpenSQLite(context.Background(), ":memory:", zerolog.Nop())
	require.NoError(t, err)
	require.NoError(t, store.Migrate(context.Background()))
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func insertArticle(t *testing.T, repo ArticleRepository, profile core.FeedProfile, url string, published time.Time) *core.Article {
	t.Helper()
	article := &core.Article{
		URL:           url,
		Title:         "Title " + url,
		PublishedDate: published,
		FeedSource:    "Test Feed",
		RawContent:    "raw content for " + url,
		FeedProfile:   profile,
	}
	require.NoError(t, repo.Create(context.Background(), article))
	require.NotZero(t, article.ID)
	return article
}

func ids(articles []core.Article) []int64 {
	out := make([]int64, len(articles))
	for i, a := range articles {
		out[i] = a.ID
	}
	return out
}

func TestMigrate_Idempotent(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Migrate(ctx))

	status, err := NewMigrationManager(store).Status(ctx)
	require.NoError(t, err)
	require.Len(t, status, 3)
	for _, s := range status {
		assert.True(t, s.Applied, "migration %d", s.Version)
	}
	assert.Equal(t, "initial schema", status[0].Description)
}

func TestMigrate_RollbackForgetsLast(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	m := NewMigrationManager(store)

	version, err := m.Rollback(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, version)

	status, err := m.Status(ctx)
	require.NoError(t, err)
	assert.True(t, status[1].Applied)
	assert.False(t, status[2].Applied)

	// the transcript table uses IF NOT EXISTS, so re-applying succeeds
	require.NoError(t, m.Migrate(ctx))
	status, err = m.Status(ctx)
	require.NoError(t, err)
	assert.True(t, status[2].Applied)
}

func TestArticleRepo_CreateGetExists(t *testing.T) {
	store := newTestStore(t)
	repo := store.Articles()
	ctx := context.Background()

	published := time.Date(2025, 3, 1, 10, 30, 0, 0, time.UTC)
	image := "https://example.com/a.png"
	article := &core.Article{
		URL:           "https://example.com/a",
		Title:         "A",
		PublishedDate: published,
		FeedSource:    "Example",
		RawContent:    "body",
		FeedProfile:   core.ProfileTechnology,
		ImageURL:      &image,
	}
	require.NoError(t, repo.Create(ctx, article))

	got, err := repo.Get(ctx, article.ID)
	require.NoError(t, err)
	assert.Equal(t, "A", got.Title)
	assert.True(t, published.Equal(got.PublishedDate))
	assert.Equal(t, core.ProfileTechnology, got.FeedProfile)
	require.NotNil(t, got.ImageURL)
	assert.Equal(t, image, *got.ImageURL)
	assert.Nil(t, got.ProcessedContent)
	assert.Nil(t, got.ImpactRating)
	assert.Empty(t, got.Embedding)

	exists, err := repo.Exists(ctx, "https://example.com/a")
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = repo.Exists(ctx, "https://example.com/missing")
	require.NoError(t, err)
	assert.False(t, exists)

	_, err = repo.Get(ctx, 9999)
	assert.ErrorIs(t, err, ErrNotFound)

	dup := *article
	assert.Error(t, repo.Create(ctx, &dup), "url must be unique")
}

func TestArticleRepo_StageQueues(t *testing.T) {
	store := newTestStore(t)
	repo := store.Articles()
	ctx := context.Background()
	now := time.Now().UTC()

	older := insertArticle(t, repo, core.ProfileTechnology, "https://t/1", now.Add(-2*time.Hour))
	newer := insertArticle(t, repo, core.ProfileTechnology, "https://t/2", now.Add(-1*time.Hour))
	insertArticle(t, repo, core.ProfileBrasil, "https://b/1", now)

	unprocessed, err := repo.GetUnprocessed(ctx, core.ProfileTechnology, 10)
	require.NoError(t, err)
	assert.Equal(t, []int64{newer.ID, older.ID}, ids(unprocessed), "newest first, profile scoped")

	limited, err := repo.GetUnprocessed(ctx, core.ProfileTechnology, 1)
	require.NoError(t, err)
	assert.Equal(t, []int64{newer.ID}, ids(limited))

	unrated, err := repo.GetUnrated(ctx, core.ProfileTechnology, 10)
	require.NoError(t, err)
	assert.Empty(t, unrated, "unprocessed articles are not rateable")

	require.NoError(t, repo.UpdateProcessing(ctx, older.ID, "summary", []float64{0.1, 0.2}))

	unprocessed, err = repo.GetUnprocessed(ctx, core.ProfileTechnology, 10)
	require.NoError(t, err)
	assert.Equal(t, []int64{newer.ID}, ids(unprocessed), "processed article never reappears")

	unrated, err = repo.GetUnrated(ctx, core.ProfileTechnology, 10)
	require.NoError(t, err)
	assert.Equal(t, []int64{older.ID}, ids(unrated))

	uncategorized, err := repo.GetUncategorized(ctx, core.ProfileTechnology, 10)
	require.NoError(t, err)
	assert.Equal(t, []int64{older.ID}, ids(uncategorized))

	require.NoError(t, repo.UpdateRating(ctx, older.ID, 8))
	require.NoError(t, repo.UpdateCategories(ctx, older.ID, []core.Category{core.CategoryNews, core.CategoryResearch}))

	unrated, err = repo.GetUnrated(ctx, core.ProfileTechnology, 10)
	require.NoError(t, err)
	assert.Empty(t, unrated)
	uncategorized, err = repo.GetUncategorized(ctx, core.ProfileTechnology, 10)
	require.NoError(t, err)
	assert.Empty(t, uncategorized)

	got, err := repo.Get(ctx, older.ID)
	require.NoError(t, err)
	assert.Equal(t, "summary", got.Processed())
	assert.Equal(t, []float64{0.1, 0.2}, got.Embedding)
	assert.Equal(t, 8, got.Rating())
	if diff := cmp.Diff([]core.Category{core.CategoryNews, core.CategoryResearch}, got.Categories); diff != "" {
		t.Errorf("categories mismatch (-want +got):\n%s", diff)
	}
}

func TestArticleRepo_UpdateProcessingRequiresEmbedding(t *testing.T) {
	store := newTestStore(t)
	repo := store.Articles()
	ctx := context.Background()

	a := insertArticle(t, repo, core.ProfileTechnology, "https://t/x", time.Now())
	assert.Error(t, repo.UpdateProcessing(ctx, a.ID, "summary", nil))

	got, err := repo.Get(ctx, a.ID)
	require.NoError(t, err)
	assert.Nil(t, got.ProcessedContent, "text must not be persisted without embedding")

	assert.ErrorIs(t, repo.UpdateRating(ctx, 12345, 5), ErrNotFound)
}

func TestArticleRepo_GetForBriefing(t *testing.T) {
	store := newTestStore(t)
	repo := store.Articles()
	ctx := context.Background()
	now := time.Now().UTC()

	low := insertArticle(t, repo, core.ProfileTechnology, "https://t/low", now.Add(-1*time.Hour))
	high := insertArticle(t, repo, core.ProfileTechnology, "https://t/high", now.Add(-3*time.Hour))
	unrated := insertArticle(t, repo, core.ProfileTechnology, "https://t/unrated", now.Add(-30*time.Minute))
	stale := insertArticle(t, repo, core.ProfileTechnology, "https://t/stale", now.Add(-48*time.Hour))
	insertArticle(t, repo, core.ProfileTechnology, "https://t/raw", now)

	for _, a := range []*core.Article{low, high, unrated, stale} {
		require.NoError(t, repo.UpdateProcessing(ctx, a.ID, "s", []float64{1, 0}))
	}
	require.NoError(t, repo.UpdateRating(ctx, low.ID, 3))
	require.NoError(t, repo.UpdateRating(ctx, high.ID, 9))
	require.NoError(t, repo.UpdateRating(ctx, stale.ID, 10))

	got, err := repo.GetForBriefing(ctx, 24, core.ProfileTechnology)
	require.NoError(t, err)
	assert.Equal(t, []int64{high.ID, low.ID, unrated.ID}, ids(got))
}

func TestArticleRepo_ListCountAndFilters(t *testing.T) {
	store := newTestStore(t)
	repo := store.Articles()
	ctx := context.Background()
	day := time.Date(2025, 5, 10, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		insertArticle(t, repo, core.ProfileTechnology, fmt.Sprintf("https://t/%d", i), day.AddDate(0, 0, -i))
	}
	b := insertArticle(t, repo, core.ProfileBrasil, "https://b/golang", day)
	require.NoError(t, repo.UpdateProcessing(ctx, b.ID, "Go release notes", []float64{1}))
	require.NoError(t, repo.UpdateCategories(ctx, b.ID, []core.Category{core.CategoryTutorial}))

	page1, err := repo.List(ctx, ArticleFilter{Profile: core.ProfileTechnology, Page: 1, PerPage: 2})
	require.NoError(t, err)
	require.Len(t, page1, 2)
	assert.Equal(t, "https://t/0", page1[0].URL)

	page3, err := repo.List(ctx, ArticleFilter{Profile: core.ProfileTechnology, Page: 3, PerPage: 2})
	require.NoError(t, err)
	require.Len(t, page3, 1)
	assert.Equal(t, "https://t/4", page3[0].URL)

	asc, err := repo.List(ctx, ArticleFilter{Profile: core.ProfileTechnology, Ascending: true, PerPage: 10})
	require.NoError(t, err)
	assert.Equal(t, "https://t/4", asc[0].URL)

	count, err := repo.Count(ctx, ArticleFilter{Profile: core.ProfileTechnology})
	require.NoError(t, err)
	assert.Equal(t, 5, count)

	start := day.AddDate(0, 0, -2)
	end := day.AddDate(0, 0, -1)
	count, err = repo.Count(ctx, ArticleFilter{Profile: core.ProfileTechnology, StartDate: &start, EndDate: &end})
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	count, err = repo.Count(ctx, ArticleFilter{Search: "RELEASE"})
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	byCategory, err := repo.List(ctx, ArticleFilter{Category: core.CategoryTutorial})
	require.NoError(t, err)
	assert.Equal(t, []int64{b.ID}, ids(byCategory))

	profiles, err := repo.DistinctProfiles(ctx)
	require.NoError(t, err)
	assert.Equal(t, []core.FeedProfile{core.ProfileBrasil, core.ProfileTechnology}, profiles)

	categories, err := repo.DistinctCategories(ctx)
	require.NoError(t, err)
	assert.Equal(t, []core.Category{core.CategoryTutorial}, categories)

	stats, err := repo.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 6, stats.Total)
	assert.Equal(t, 1, stats.Processed)
	assert.Equal(t, 1, stats.Embedded)
	assert.Equal(t, 0, stats.Rated)
	assert.Equal(t, 1, stats.Categorized)
	assert.Equal(t, 5, stats.ByProfile[core.ProfileTechnology])

	require.NoError(t, repo.Delete(ctx, b.ID))
	assert.ErrorIs(t, repo.Delete(ctx, b.ID), ErrNotFound)
}

func TestBriefingRepo(t *testing.T) {
	store := newTestStore(t)
	repo := store.Briefings()
	ctx := context.Background()

	_, err := repo.Latest(ctx, "")
	assert.ErrorIs(t, err, ErrNotFound)

	first, err := repo.Save(ctx, "# Tech", []int64{3, 1, 2}, core.ProfileTechnology)
	require.NoError(t, err)
	second, err := repo.Save(ctx, "# Brasil", nil, core.ProfileBrasil)
	require.NoError(t, err)
	assert.Greater(t, second, first)

	got, err := repo.Get(ctx, first)
	require.NoError(t, err)
	assert.Equal(t, "# Tech", got.Content)
	assert.Equal(t, []int64{3, 1, 2}, got.ArticleIDs, "article order is preserved")
	assert.Equal(t, core.ProfileTechnology, got.FeedProfile)

	latest, err := repo.Latest(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, second, latest.ID)
	assert.Empty(t, latest.ArticleIDs)

	latestTech, err := repo.Latest(ctx, core.ProfileTechnology)
	require.NoError(t, err)
	assert.Equal(t, first, latestTech.ID)

	all, err := repo.List(ctx, "", 10, 0)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	_, err = repo.Get(ctx, 42)
	assert.ErrorIs(t, err, ErrNotFound)
}

func insertTranscription(t *testing.T, repo TranscriptionRepository, tr core.Transcription) *core.Transcription {
	t.Helper()
	require.NoError(t, repo.Create(context.Background(), &tr))
	require.NotZero(t, tr.ID)
	return &tr
}

func TestTranscriptionRepo_CreateGetDuplicate(t *testing.T) {
	store := newTestStore(t)
	repo := store.Transcriptions()
	ctx := context.Background()

	posted := time.Date(2025, 3, 1, 15, 0, 0, 0, time.UTC)
	summary := "a short recap"
	created := insertTranscription(t, repo, core.Transcription{
		ChannelID:   "UC1",
		ChannelName: "Theo Browne",
		VideoTitle:  "Why TypeScript",
		PostedAt:    &posted,
		VideoURL:    "https://www.youtube.com/watch?v=a1",
		Text:        "full transcript",
		Summary:     &summary,
	})

	got, err := repo.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Why TypeScript", got.VideoTitle)
	require.NotNil(t, got.PostedAt)
	assert.True(t, posted.Equal(*got.PostedAt))
	require.NotNil(t, got.Summary)
	assert.Equal(t, summary, *got.Summary)
	assert.False(t, got.ProcessedAt.IsZero())

	exists, err := repo.Exists(ctx, "https://www.youtube.com/watch?v=a1")
	require.NoError(t, err)
	assert.True(t, exists)

	err = repo.Create(ctx, &core.Transcription{
		ChannelID:   "UC1",
		ChannelName: "Theo Browne",
		VideoTitle:  "Again",
		VideoURL:    "https://www.youtube.com/watch?v=a1",
		Text:        "other",
	})
	assert.ErrorIs(t, err, ErrDuplicate)

	noDate := insertTranscription(t, repo, core.Transcription{
		ChannelID: "UC2", ChannelName: "Fireship", VideoTitle: "100s",
		VideoURL: "https://www.youtube.com/watch?v=b2", Text: "quick",
	})
	got, err = repo.Get(ctx, noDate.ID)
	require.NoError(t, err)
	assert.Nil(t, got.PostedAt)
	assert.Nil(t, got.Summary)

	_, err = repo.Get(ctx, 999)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestTranscriptionRepo_ListCountAndChannels(t *testing.T) {
	store := newTestStore(t)
	repo := store.Transcriptions()
	ctx := context.Background()

	day := func(d int) *time.Time {
		at := time.Date(2025, 3, d, 12, 0, 0, 0, time.UTC)
		return &at
	}
	recap := "mentions Rust"
	a := insertTranscription(t, repo, core.Transcription{ChannelID: "UC1", ChannelName: "Theo Browne", VideoTitle: "Bun 2", PostedAt: day(1), VideoURL: "u1", Text: "bun runtime"})
	b := insertTranscription(t, repo, core.Transcription{ChannelID: "UC1", ChannelName: "Theo Browne", VideoTitle: "Deno", PostedAt: day(3), VideoURL: "u2", Text: "deno runtime", Summary: &recap})
	c := insertTranscription(t, repo, core.Transcription{ChannelID: "UC2", ChannelName: "Fireship", VideoTitle: "Zig", PostedAt: day(5), VideoURL: "u3", Text: "zig in 100 seconds"})

	list, err := repo.List(ctx, TranscriptionFilter{})
	require.NoError(t, err)
	assert.Equal(t, []int64{c.ID, b.ID, a.ID}, transcriptIDs(list), "newest posted first by default")

	list, err = repo.List(ctx, TranscriptionFilter{SortBy: SortVideoTitle, Ascending: true})
	require.NoError(t, err)
	assert.Equal(t, []int64{a.ID, b.ID, c.ID}, transcriptIDs(list))

	list, err = repo.List(ctx, TranscriptionFilter{ChannelID: "UC1", PerPage: 1, Page: 2})
	require.NoError(t, err)
	assert.Equal(t, []int64{a.ID}, transcriptIDs(list))

	n, err := repo.Count(ctx, TranscriptionFilter{ChannelName: "Theo Browne", PerPage: 1})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = repo.Count(ctx, TranscriptionFilter{Search: "RUST"})
	require.NoError(t, err)
	assert.Equal(t, 1, n, "summary is searched")

	n, err = repo.Count(ctx, TranscriptionFilter{Search: "runtime"})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = repo.Count(ctx, TranscriptionFilter{StartDate: day(3), EndDate: day(3)})
	require.NoError(t, err)
	assert.Equal(t, 1, n, "end date is inclusive")

	channels, err := repo.DistinctChannels(ctx)
	require.NoError(t, err)
	assert.Equal(t, []core.Channel{{ID: "UC2", Name: "Fireship"}, {ID: "UC1", Name: "Theo Browne"}}, channels)
}

func transcriptIDs(list []core.Transcription) []int64 {
	out := make([]int64, len(list))
	for i, tr := range list {
		out[i] = tr.ID
	}
	return out
}
