package processor

import (
	"context"
	"errors"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"meridian/internal/core"
	"meridian/internal/persistence"
	"meridian/internal/throttle"
)

type memStore struct {
	articles   map[int64]*core.Article
	failUpdate bool
	failQuery  bool
}

func newMemStore(articles ...core.Article) *memStore {
	s := &memStore{articles: make(map[int64]*core.Article)}
	for i := range articles {
		a := articles[i]
		s.articles[a.ID] = &a
	}
	return s
}

func (s *memStore) Get(_ context.Context, id int64) (*core.Article, error) {
	a, ok := s.articles[id]
	if !ok {
		return nil, persistence.ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (s *memStore) filter(profile core.FeedProfile, limit int, keep func(*core.Article) bool) ([]core.Article, error) {
	if s.failQuery {
		return nil, errors.New("connection refused")
	}
	var out []core.Article
	for _, a := range s.articles {
		if a.FeedProfile == profile && keep(a) {
			out = append(out, *a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PublishedDate.After(out[j].PublishedDate) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *memStore) GetUnprocessed(_ context.Context, profile core.FeedProfile, limit int) ([]core.Article, error) {
	return s.filter(profile, limit, func(a *core.Article) bool { return a.ProcessedContent == nil })
}

func (s *memStore) GetUnrated(_ context.Context, profile core.FeedProfile, limit int) ([]core.Article, error) {
	return s.filter(profile, limit, func(a *core.Article) bool { return a.ProcessedContent != nil && a.ImpactRating == nil })
}

func (s *memStore) GetUncategorized(_ context.Context, profile core.FeedProfile, limit int) ([]core.Article, error) {
	return s.filter(profile, limit, func(a *core.Article) bool { return a.ProcessedContent != nil && a.Categories == nil })
}

func (s *memStore) UpdateProcessing(_ context.Context, id int64, processed string, embedding []float64) error {
	if s.failUpdate {
		return errors.New("disk full")
	}
	a := s.articles[id]
	a.ProcessedContent = &processed
	a.Embedding = embedding
	return nil
}

func (s *memStore) UpdateRating(_ context.Context, id int64, rating int) error {
	if s.failUpdate {
		return errors.New("disk full")
	}
	s.articles[id].ImpactRating = &rating
	return nil
}

func (s *memStore) UpdateCategories(_ context.Context, id int64, categories []core.Category) error {
	if s.failUpdate {
		return errors.New("disk full")
	}
	s.articles[id].Categories = categories
	return nil
}

type fakeAI struct {
	chat      func(prompt string) (string, error)
	embedErr  error
	chatCalls int
}

func (f *fakeAI) ChatComplete(_ context.Context, prompt, _ string) (string, error) {
	f.chatCalls++
	return f.chat(prompt)
}

func (f *fakeAI) Embed(_ context.Context, text string) ([]float64, error) {
	if f.embedErr != nil {
		return nil, f.embedErr
	}
	return []float64{float64(len(text)), 1}, nil
}

type fakePrompts struct{}

func (fakePrompts) ArticleSummaryPrompt(_ core.FeedProfile, content string) string {
	return "SUMMARIZE:" + content
}

func (fakePrompts) ImpactRatingPrompt(_ core.FeedProfile, summary string) string {
	return "RATE:" + summary
}

func (fakePrompts) CategoryPrompt(title, content string) string {
	return "CATEGORIZE:" + title + "|" + content
}

func raw(id int64, age time.Duration) core.Article {
	return core.Article{
		ID:            id,
		URL:           "https://example.com/" + string(rune('a'+id)),
		Title:         "Title " + string(rune('A'+id)),
		RawContent:    "raw body",
		FeedProfile:   core.ProfileTechnology,
		PublishedDate: time.Now().Add(-age),
	}
}

func summarized(id int64, text string) core.Article {
	a := raw(id, time.Hour)
	a.ProcessedContent = &text
	a.Embedding = []float64{1, 0}
	return a
}

func newRunner(store *memStore, ai *fakeAI, limiter throttle.Limiter) *Runner {
	return NewRunner(store, ai, fakePrompts{}, limiter, Config{}, zerolog.Nop())
}

func TestParseRating(t *testing.T) {
	tests := []struct {
		name     string
		response string
		want     int
		wantErr  error
	}{
		{name: "plain", response: "7", want: 7},
		{name: "leading integer of decimal", response: "3.9", want: 3},
		{name: "with label", response: "Impact: 10/10", want: 10},
		{name: "out of range", response: "Rating: 11", wantErr: ErrInvalidRating},
		{name: "zero", response: "0", wantErr: ErrInvalidRating},
		{name: "no number", response: "no number here", wantErr: ErrNoRating},
		{name: "empty", response: "", wantErr: ErrNoRating},
		{name: "overflow", response: "99999999999999999999999", wantErr: ErrInvalidRating},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseRating(tt.response)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseStage(t *testing.T) {
	s, err := ParseStage(" Rate ")
	require.NoError(t, err)
	assert.Equal(t, StageRate, s)

	_, err = ParseStage("publish")
	assert.Error(t, err)
}

func TestCitation(t *testing.T) {
	assert.Equal(t, "\n\nSource: [Go 1.24](https://go.dev/blog)", Citation("Go 1.24", "https://go.dev/blog"))
}

func TestSummarize_PersistsTextWithCitationAndEmbedding(t *testing.T) {
	store := newMemStore(raw(1, time.Hour))
	ai := &fakeAI{chat: func(string) (string, error) { return "  A short summary.  ", nil }}
	limiter := &throttle.Counting{}

	stats, err := newRunner(store, ai, limiter).Summarize(context.Background(), core.ProfileTechnology, Options{})
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Processed)
	assert.Equal(t, 0, stats.Errors)
	assert.Equal(t, 1, limiter.Calls)

	a := store.articles[1]
	require.NotNil(t, a.ProcessedContent)
	assert.Equal(t, "A short summary."+Citation(a.Title, a.URL), *a.ProcessedContent)
	assert.NotEmpty(t, a.Embedding)
}

func TestSummarize_TruncatesRawContent(t *testing.T) {
	a := raw(1, time.Hour)
	a.RawContent = strings.Repeat("x", 5000)
	store := newMemStore(a)

	var seen string
	ai := &fakeAI{chat: func(p string) (string, error) { seen = p; return "ok", nil }}

	_, err := newRunner(store, ai, nil).Summarize(context.Background(), core.ProfileTechnology, Options{})
	require.NoError(t, err)
	assert.Equal(t, "SUMMARIZE:"+strings.Repeat("x", DefaultSummaryChars), seen)
}

func TestSummarize_IsIdempotent(t *testing.T) {
	store := newMemStore(raw(1, time.Hour), raw(2, 2*time.Hour))
	ai := &fakeAI{chat: func(string) (string, error) { return "summary", nil }}
	runner := newRunner(store, ai, nil)

	first, err := runner.Summarize(context.Background(), core.ProfileTechnology, Options{})
	require.NoError(t, err)
	assert.Equal(t, 2, first.Processed)

	second, err := runner.Summarize(context.Background(), core.ProfileTechnology, Options{})
	require.NoError(t, err)
	assert.Equal(t, 0, second.Processed)
	assert.Equal(t, 2, ai.chatCalls)
}

func TestSummarize_PartialFailures(t *testing.T) {
	store := newMemStore(raw(1, time.Hour), raw(2, 2*time.Hour), raw(3, 3*time.Hour))
	calls := 0
	ai := &fakeAI{chat: func(string) (string, error) {
		calls++
		if calls == 2 {
			return "", errors.New("rate limited")
		}
		return "summary", nil
	}}

	stats, err := newRunner(store, ai, nil).Summarize(context.Background(), core.ProfileTechnology, Options{})
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Processed)
	assert.Equal(t, 1, stats.Errors)
	// newest first: the second call handled article 2
	assert.Nil(t, store.articles[2].ProcessedContent)
}

func TestSummarize_EmbeddingFailureLeavesArticleUntouched(t *testing.T) {
	store := newMemStore(raw(1, time.Hour))
	ai := &fakeAI{chat: func(string) (string, error) { return "summary", nil }, embedErr: errors.New("boom")}

	stats, err := newRunner(store, ai, nil).Summarize(context.Background(), core.ProfileTechnology, Options{})
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Processed)
	assert.Equal(t, 1, stats.Errors)
	assert.Nil(t, store.articles[1].ProcessedContent)
	assert.Nil(t, store.articles[1].Embedding)
}

func TestRunStage_StoreFailures(t *testing.T) {
	store := newMemStore(raw(1, time.Hour))
	store.failQuery = true
	ai := &fakeAI{chat: func(string) (string, error) { return "summary", nil }}

	_, err := newRunner(store, ai, nil).Summarize(context.Background(), core.ProfileTechnology, Options{})
	assert.Error(t, err)

	store.failQuery = false
	store.failUpdate = true
	stats, err := newRunner(store, ai, nil).Summarize(context.Background(), core.ProfileTechnology, Options{})
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Errors)
}

func TestRunStage_CancelledContext(t *testing.T) {
	store := newMemStore(raw(1, time.Hour))
	ai := &fakeAI{chat: func(string) (string, error) { return "summary", nil }}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newRunner(store, ai, nil).Summarize(ctx, core.ProfileTechnology, Options{})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, ai.chatCalls)
}

func TestRate(t *testing.T) {
	store := newMemStore(
		summarized(1, "first"),
		summarized(2, "second"),
		summarized(3, "third"),
		summarized(4, "fourth"),
		raw(5, time.Hour),
	)
	responses := map[string]string{
		"RATE:first":  "7",
		"RATE:second": "Rating: 11",
		"RATE:third":  "no number here",
		"RATE:fourth": "3.9",
	}
	ai := &fakeAI{chat: func(p string) (string, error) { return responses[p], nil }}

	stats, err := newRunner(store, ai, nil).Rate(context.Background(), core.ProfileTechnology, Options{})
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Rated)
	assert.Equal(t, 2, stats.Errors)

	assert.Equal(t, 7, store.articles[1].Rating())
	assert.Nil(t, store.articles[2].ImpactRating)
	assert.Nil(t, store.articles[3].ImpactRating)
	assert.Equal(t, 3, store.articles[4].Rating())
	assert.Nil(t, store.articles[5].ImpactRating, "unprocessed articles are never rated")
}

func TestCategorize(t *testing.T) {
	store := newMemStore(
		summarized(1, "one"),
		summarized(2, "two"),
		summarized(3, "three"),
		summarized(4, "four"),
	)
	ai := &fakeAI{chat: func(p string) (string, error) {
		switch {
		case strings.HasSuffix(p, "|one"):
			return "not json", nil
		case strings.HasSuffix(p, "|two"):
			return `["news","bogus"]`, nil
		case strings.HasSuffix(p, "|three"):
			return `["bogus1","bogus2"]`, nil
		default:
			return "", errors.New("timeout")
		}
	}}

	stats, err := newRunner(store, ai, nil).Categorize(context.Background(), core.ProfileTechnology, Options{})
	require.NoError(t, err)
	assert.Equal(t, 4, stats.Categorized)
	assert.Equal(t, 0, stats.Errors)

	assert.Equal(t, []core.Category{core.CategoryOther}, store.articles[1].Categories)
	assert.Equal(t, []core.Category{core.CategoryNews}, store.articles[2].Categories)
	assert.Equal(t, []core.Category{core.CategoryOther}, store.articles[3].Categories)
	assert.Equal(t, []core.Category{core.CategoryOther}, store.articles[4].Categories)
}

func TestRunStage_SingleArticle(t *testing.T) {
	done := summarized(1, "old summary")
	store := newMemStore(done, raw(2, time.Hour))
	ai := &fakeAI{chat: func(string) (string, error) { return "fresh", nil }}
	runner := newRunner(store, ai, nil)

	stats, err := runner.Summarize(context.Background(), core.ProfileTechnology, Options{ArticleID: 1})
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Processed, "the override ignores the article's state")
	assert.True(t, strings.HasPrefix(*store.articles[1].ProcessedContent, "fresh"))
	assert.Nil(t, store.articles[2].ProcessedContent)

	stats, err = runner.Rate(context.Background(), core.ProfileTechnology, Options{ArticleID: 2})
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Rated)
	assert.Equal(t, 0, stats.Errors)

	_, err = runner.Rate(context.Background(), core.ProfileTechnology, Options{ArticleID: 99})
	assert.ErrorIs(t, err, persistence.ErrNotFound)
}

func TestProcessArticle(t *testing.T) {
	store := newMemStore(raw(1, time.Hour))
	ai := &fakeAI{chat: func(p string) (string, error) {
		switch {
		case strings.HasPrefix(p, "RATE:"):
			return "8", nil
		case strings.HasPrefix(p, "CATEGORIZE:"):
			return `["research"]`, nil
		default:
			return "summary", nil
		}
	}}

	require.NoError(t, newRunner(store, ai, nil).ProcessArticle(context.Background(), 1, core.ProfileTechnology))

	a := store.articles[1]
	assert.True(t, a.HasProcessedContent())
	assert.Equal(t, 8, a.Rating())
	assert.Equal(t, []core.Category{core.CategoryResearch}, a.Categories)
}

func TestProcessArticle_FailsOnStageError(t *testing.T) {
	store := newMemStore(raw(1, time.Hour))
	ai := &fakeAI{chat: func(p string) (string, error) {
		if strings.HasPrefix(p, "RATE:") {
			return "eleven", nil
		}
		return "summary", nil
	}}

	err := newRunner(store, ai, nil).ProcessArticle(context.Background(), 1, core.ProfileTechnology)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rate stage failed")
	assert.Nil(t, store.articles[1].Categories)
}
