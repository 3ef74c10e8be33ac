package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"meridian/internal/briefing"
	"meridian/internal/config"
	"meridian/internal/core"
	"meridian/internal/feeds"
	"meridian/internal/persistence"
	"meridian/internal/profiles"
	"meridian/internal/prompts"
	"meridian/internal/queue"
)

type fakeScraper struct {
	store persistence.ArticleRepository
	err   error
}

func (f *fakeScraper) ScrapeURL(ctx context.Context, url string, profile core.FeedProfile) (*core.Article, error) {
	if f.err != nil {
		return nil, f.err
	}
	a := &core.Article{URL: url, Title: "Submitted", PublishedDate: time.Now().UTC(), FeedSource: feeds.ManualSource, RawContent: "text", FeedProfile: profile}
	if err := f.store.Create(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}

type fakeJobs struct {
	enqueued []int64
	jobs     map[string]queue.JobInfo
}

func (f *fakeJobs) Enqueue(_ context.Context, articleID int64, profile core.FeedProfile) (queue.JobInfo, error) {
	f.enqueued = append(f.enqueued, articleID)
	job := queue.JobInfo{ID: "job-1", ArticleID: articleID, FeedProfile: profile, State: queue.StatePending}
	f.jobs[job.ID] = job
	return job, nil
}

func (f *fakeJobs) Status(_ context.Context, id string) (queue.JobInfo, error) {
	job, ok := f.jobs[id]
	if !ok {
		return queue.JobInfo{}, queue.ErrJobNotFound
	}
	return job, nil
}

type fakeBriefs struct {
	result    briefing.Result
	overrides prompts.BriefingOverrides
	simple    bool
}

func (f *fakeBriefs) GenerateBrief(_ context.Context, _ core.FeedProfile, o prompts.BriefingOverrides) (briefing.Result, error) {
	f.overrides = o
	return f.result, nil
}

func (f *fakeBriefs) GenerateSimpleBrief(context.Context, core.FeedProfile, int) (briefing.Result, error) {
	f.simple = true
	return f.result, nil
}

type testEnv struct {
	store   *persistence.Store
	server  *Server
	scraper *fakeScraper
	jobs    *fakeJobs
	briefs  *fakeBriefs
}

func newTestEnv(t *testing.T, withQueue bool) *testEnv {
	t.Helper()
	ctx := context.Background()

	store, err := persistence.OpenSQLite(ctx, ":memory:", zerolog.Nop())
	require.NoError(t, err)
	require.NoError(t, store.Migrate(ctx))
	t.Cleanup(func() { _ = store.Close() })

	env := &testEnv{
		store:   store,
		scraper: &fakeScraper{store: store.Articles()},
		jobs:    &fakeJobs{jobs: map[string]queue.JobInfo{}},
		briefs:  &fakeBriefs{},
	}
	deps := Deps{
		Health:         store,
		Articles:       store.Articles(),
		Briefings:      store.Briefings(),
		Transcriptions: store.Transcriptions(),
		Profiles:       profiles.NewRegistry(),
		Scraper:        env.scraper,
		Briefs:         env.briefs,
	}
	if withQueue {
		deps.Jobs = env.jobs
	}
	env.server = New(deps, config.Server{CORS: config.CORS{Enabled: true, AllowedOrigins: []string{"*"}}}, 2, zerolog.Nop())
	return env
}

func (e *testEnv) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	rec := httptest.NewRecorder()
	e.server.Router().ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) seed(t *testing.T, profile core.FeedProfile, title string, published time.Time) *core.Article {
	t.Helper()
	a := &core.Article{
		URL:           "https://example.com/" + strings.ReplaceAll(strings.ToLower(title), " ", "-"),
		Title:         title,
		PublishedDate: published,
		FeedSource:    "Example",
		RawContent:    "raw " + title,
		FeedProfile:   profile,
	}
	require.NoError(t, e.store.Articles().Create(context.Background(), a))
	return a
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t, false)

	rec := env.do(t, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decode[HealthResponse](t, rec)
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "ok", resp.Checks["database"])
	assert.Equal(t, "disabled", resp.Checks["queue"])
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
}

func TestListProfiles(t *testing.T) {
	env := newTestEnv(t, false)

	rec := env.do(t, http.MethodGet, "/api/profiles", "")
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decode[map[string][]ProfileSummary](t, rec)
	require.NotEmpty(t, resp["profiles"])
	for _, p := range resp["profiles"] {
		assert.LessOrEqual(t, p.EnabledFeeds, p.Feeds, p.Name)
	}
}

func TestListArticles_FilterAndPaging(t *testing.T) {
	env := newTestEnv(t, false)
	now := time.Now().UTC()
	env.seed(t, core.ProfileTechnology, "Go release", now.Add(-time.Hour))
	env.seed(t, core.ProfileTechnology, "Rust release", now.Add(-2*time.Hour))
	env.seed(t, core.ProfileTechnology, "Go conference", now.Add(-3*time.Hour))
	env.seed(t, core.ProfileBrasil, "Eleições", now)

	rec := env.do(t, http.MethodGet, "/api/articles?profile=technology", "")
	require.Equal(t, http.StatusOK, rec.Code)
	page := decode[ArticleListResponse](t, rec)
	assert.Equal(t, 3, page.Total)
	assert.Equal(t, 2, page.PerPage)
	assert.Equal(t, 2, page.TotalPages)
	require.Len(t, page.Articles, 2)
	assert.Equal(t, "Go release", page.Articles[0].Title)

	rec = env.do(t, http.MethodGet, "/api/articles?profile=technology&page=2", "")
	page = decode[ArticleListResponse](t, rec)
	require.Len(t, page.Articles, 1)
	assert.Equal(t, "Go conference", page.Articles[0].Title)

	rec = env.do(t, http.MethodGet, "/api/articles?search=go&sort=title&order=asc", "")
	page = decode[ArticleListResponse](t, rec)
	assert.Equal(t, 2, page.Total)
	assert.Equal(t, "Go conference", page.Articles[0].Title)

	rec = env.do(t, http.MethodGet, "/api/articles?profile=nope", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/articles?start_date=yesterday", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/articles?per_page=0", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetArticle(t *testing.T) {
	env := newTestEnv(t, false)
	ctx := context.Background()
	a := env.seed(t, core.ProfileDefault, "Summarized", time.Now().UTC())
	require.NoError(t, env.store.Articles().UpdateProcessing(ctx, a.ID, "**Bold** summary\n\nSource: [Summarized](https://example.com/summarized)", []float64{0.1, 0.2}))

	rec := env.do(t, http.MethodGet, "/api/articles/"+itoa(a.ID), "")
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[ArticleResponse](t, rec)
	assert.True(t, resp.HasEmbedding)
	assert.Contains(t, resp.ProcessedContentHTML, "<strong>Bold</strong>")
	assert.Contains(t, resp.ProcessedContentHTML, `target="_blank"`)
	assert.Equal(t, []core.Category{}, resp.Categories)

	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodGet, "/api/articles/999", "").Code)
	assert.Equal(t, http.StatusBadRequest, env.do(t, http.MethodGet, "/api/articles/abc", "").Code)
}

func (e *testEnv) seedTranscription(t *testing.T, channelID, channelName, title string, posted time.Time, summary *string) *core.Transcription {
	t.Helper()
	tr := &core.Transcription{
		ChannelID:   channelID,
		ChannelName: channelName,
		VideoTitle:  title,
		PostedAt:    &posted,
		VideoURL:    "https://www.youtube.com/watch?v=" + strings.ReplaceAll(strings.ToLower(title), " ", "-"),
		Text:        "transcript of " + title,
		Summary:     summary,
	}
	require.NoError(t, e.store.Transcriptions().Create(context.Background(), tr))
	return tr
}

func TestListTranscriptions(t *testing.T) {
	env := newTestEnv(t, false)
	today := time.Now().UTC().Truncate(24 * time.Hour)
	env.seedTranscription(t, "UCtheo", "Theo Browne", "Bun is fast", today.Add(time.Hour), nil)
	env.seedTranscription(t, "UCtheo", "Theo Browne", "Deno again", today.Add(-12*time.Hour), nil)
	env.seedTranscription(t, "UCfire", "Fireship", "Zig in 100 seconds", today.AddDate(0, 0, -20), nil)

	rec := env.do(t, http.MethodGet, "/api/transcriptions", "")
	require.Equal(t, http.StatusOK, rec.Code)
	page := decode[TranscriptionListResponse](t, rec)
	assert.Equal(t, TranscriptionPagination{Page: 1, PerPage: 2, TotalPages: 2, TotalTranscriptions: 3}, page.Pagination)
	require.Len(t, page.Transcriptions, 2)
	assert.Equal(t, "Bun is fast", page.Transcriptions[0].VideoTitle)
	assert.Equal(t, "posted_at", page.Filters.SortBy)
	assert.Equal(t, "desc", page.Filters.Direction)
	assert.Equal(t, []core.Channel{{ID: "UCfire", Name: "Fireship"}, {ID: "UCtheo", Name: "Theo Browne"}}, page.AvailableChannels)

	rec = env.do(t, http.MethodGet, "/api/transcriptions?channel_id=UCtheo&sort_by=video_title&direction=asc", "")
	page = decode[TranscriptionListResponse](t, rec)
	assert.Equal(t, 2, page.Pagination.TotalTranscriptions)
	assert.Equal(t, "Bun is fast", page.Transcriptions[0].VideoTitle)
	assert.Equal(t, "UCtheo", page.Filters.ChannelID)

	rec = env.do(t, http.MethodGet, "/api/transcriptions?preset=yesterday", "")
	page = decode[TranscriptionListResponse](t, rec)
	require.Len(t, page.Transcriptions, 1)
	assert.Equal(t, "Deno again", page.Transcriptions[0].VideoTitle)
	assert.Equal(t, "yesterday", page.Filters.Preset)

	rec = env.do(t, http.MethodGet, "/api/transcriptions?search=ZIG", "")
	page = decode[TranscriptionListResponse](t, rec)
	assert.Equal(t, 1, page.Pagination.TotalTranscriptions)

	assert.Equal(t, http.StatusBadRequest, env.do(t, http.MethodGet, "/api/transcriptions?preset=forever", "").Code)
	assert.Equal(t, http.StatusBadRequest, env.do(t, http.MethodGet, "/api/transcriptions?end_date=soon", "").Code)
}

func TestGetTranscription(t *testing.T) {
	env := newTestEnv(t, false)
	summary := "**Bun** is fast"
	tr := env.seedTranscription(t, "UCtheo", "Theo Browne", "Bun is fast", time.Now().UTC(), &summary)

	rec := env.do(t, http.MethodGet, "/api/transcriptions/"+itoa(tr.ID), "")
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[TranscriptionResponse](t, rec)
	assert.Equal(t, "Bun is fast", resp.VideoTitle)
	assert.Equal(t, "transcript of Bun is fast", resp.Text)
	assert.Contains(t, resp.SummaryHTML, "<strong>Bun</strong>")

	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodGet, "/api/transcriptions/999", "").Code)
	assert.Equal(t, http.StatusBadRequest, env.do(t, http.MethodGet, "/api/transcriptions/abc", "").Code)
}

func TestTranscriptionsUnavailable(t *testing.T) {
	env := newTestEnv(t, false)
	env.server = New(Deps{Health: env.store}, config.Server{}, 2, zerolog.Nop())

	assert.Equal(t, http.StatusServiceUnavailable, env.do(t, http.MethodGet, "/api/transcriptions", "").Code)
	assert.Equal(t, http.StatusServiceUnavailable, env.do(t, http.MethodGet, "/api/transcriptions/1", "").Code)
}

func TestDeleteArticle(t *testing.T) {
	env := newTestEnv(t, false)
	a := env.seed(t, core.ProfileDefault, "Doomed", time.Now().UTC())

	assert.Equal(t, http.StatusNoContent, env.do(t, http.MethodDelete, "/api/articles/"+itoa(a.ID), "").Code)
	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodDelete, "/api/articles/"+itoa(a.ID), "").Code)
}

func TestSubmitArticle(t *testing.T) {
	env := newTestEnv(t, true)

	rec := env.do(t, http.MethodPost, "/api/articles", `{"url":"https://example.com/manual","profile":"technology"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	resp := decode[SubmitArticleResponse](t, rec)
	assert.Equal(t, core.ProfileTechnology, resp.Article.FeedProfile)
	assert.Equal(t, feeds.ManualSource, resp.Article.FeedSource)
	require.NotNil(t, resp.Job)
	assert.Equal(t, queue.StatePending, resp.Job.State)
	assert.Equal(t, []int64{resp.Article.ID}, env.jobs.enqueued)

	assert.Equal(t, http.StatusBadRequest, env.do(t, http.MethodPost, "/api/articles", `{"url":"ftp://example.com"}`).Code)
	assert.Equal(t, http.StatusBadRequest, env.do(t, http.MethodPost, "/api/articles", `{"url":"https://example.com/x","profile":"sports"}`).Code)
	assert.Equal(t, http.StatusBadRequest, env.do(t, http.MethodPost, "/api/articles", `not json`).Code)

	env.scraper.err = feeds.ErrDuplicate
	assert.Equal(t, http.StatusConflict, env.do(t, http.MethodPost, "/api/articles", `{"url":"https://example.com/manual"}`).Code)

	env.scraper.err = errors.New("status 404")
	assert.Equal(t, http.StatusUnprocessableEntity, env.do(t, http.MethodPost, "/api/articles", `{"url":"https://example.com/gone"}`).Code)
}

func TestProcessArticleAndJobStatus(t *testing.T) {
	env := newTestEnv(t, true)
	a := env.seed(t, core.ProfileHealth, "Queued", time.Now().UTC())

	rec := env.do(t, http.MethodPost, "/api/articles/"+itoa(a.ID)+"/process", "")
	require.Equal(t, http.StatusAccepted, rec.Code)
	job := decode[queue.JobInfo](t, rec)
	assert.Equal(t, core.ProfileHealth, job.FeedProfile)

	rec = env.do(t, http.MethodGet, "/api/jobs/"+job.ID, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, a.ID, decode[queue.JobInfo](t, rec).ArticleID)

	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodGet, "/api/jobs/unknown", "").Code)
	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodPost, "/api/articles/999/process", "").Code)
}

func TestJobsWithoutQueue(t *testing.T) {
	env := newTestEnv(t, false)
	a := env.seed(t, core.ProfileDefault, "No queue", time.Now().UTC())

	assert.Equal(t, http.StatusServiceUnavailable, env.do(t, http.MethodPost, "/api/articles/"+itoa(a.ID)+"/process", "").Code)
	assert.Equal(t, http.StatusServiceUnavailable, env.do(t, http.MethodGet, "/api/jobs/x", "").Code)
}

func TestBriefings(t *testing.T) {
	env := newTestEnv(t, false)
	ctx := context.Background()

	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodGet, "/api/briefings/latest", "").Code)

	repo := env.store.Briefings()
	_, err := repo.Save(ctx, "# First", []int64{1}, core.ProfileTechnology)
	require.NoError(t, err)
	id, err := repo.Save(ctx, "# Second\n\n- point", []int64{1, 2}, core.ProfileTechnology)
	require.NoError(t, err)
	_, err = repo.Save(ctx, "# Other", nil, core.ProfileBrasil)
	require.NoError(t, err)

	rec := env.do(t, http.MethodGet, "/api/briefings?profile=technology", "")
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[BriefingListResponse](t, rec)
	require.Len(t, list.Briefings, 2)
	assert.Equal(t, id, list.Briefings[0].ID)
	assert.Empty(t, list.Briefings[0].ContentHTML)

	rec = env.do(t, http.MethodGet, "/api/briefings/latest?profile=technology", "")
	require.Equal(t, http.StatusOK, rec.Code)
	latest := decode[BriefingResponse](t, rec)
	assert.Equal(t, id, latest.ID)
	assert.Equal(t, 2, latest.ArticleCount)
	assert.Contains(t, latest.ContentHTML, "<li>point</li>")

	rec = env.do(t, http.MethodGet, "/api/briefings/"+itoa(id)+"/html", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/html; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Body.String(), "<title>technology briefing #"+itoa(id)+"</title>")
	assert.Contains(t, rec.Body.String(), "Second</h1>")

	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodGet, "/api/briefings/999", "").Code)
}

func TestGenerateBriefing(t *testing.T) {
	env := newTestEnv(t, false)

	env.briefs.result = briefing.Result{Success: false, Error: "Not enough recent articles (2) for profile 'technology'. Min required: 5."}
	rec := env.do(t, http.MethodPost, "/api/briefings/generate", `{"profile":"technology","clusters_qtd":3,"custom_prompts":{"brief_synthesis":"Be brief: {cluster_analyses_text}"}}`)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, env.briefs.result.Error, decode[briefing.Result](t, rec).Error)
	assert.Equal(t, 3, env.briefs.overrides.ClustersQtd)
	assert.Equal(t, "Be brief: {cluster_analyses_text}", env.briefs.overrides.CustomPrompts.BriefSynthesis)

	env.briefs.result = briefing.Result{Success: true, BriefingID: 7, Content: "# Brief"}
	rec = env.do(t, http.MethodPost, "/api/briefings/generate", `{"simple":true}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.True(t, env.briefs.simple)
	assert.Equal(t, int64(7), decode[briefing.Result](t, rec).BriefingID)

	rec = env.do(t, http.MethodPost, "/api/briefings/generate", "")
	assert.Equal(t, http.StatusCreated, rec.Code)
}

func TestStats(t *testing.T) {
	env := newTestEnv(t, false)
	ctx := context.Background()
	a := env.seed(t, core.ProfileTechnology, "Categorized", time.Now().UTC())
	env.seed(t, core.ProfileBrasil, "Raw", time.Now().UTC())
	require.NoError(t, env.store.Articles().UpdateCategories(ctx, a.ID, []core.Category{core.CategoryNews}))

	rec := env.do(t, http.MethodGet, "/api/stats", "")
	require.Equal(t, http.StatusOK, rec.Code)
	stats := decode[StatsResponse](t, rec)
	assert.Equal(t, 2, stats.Articles.Total)
	assert.Equal(t, 1, stats.Articles.Categorized)
	assert.ElementsMatch(t, []core.FeedProfile{core.ProfileTechnology, core.ProfileBrasil}, stats.Profiles)
	assert.Equal(t, []core.Category{core.CategoryNews}, stats.Categories)
}

func TestCORSPreflight(t *testing.T) {
	env := newTestEnv(t, false)

	req := httptest.NewRequest(http.MethodOptions, "/api/articles", nil)
	req.Header.Set("Origin", "https://app.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	rec := httptest.NewRecorder()
	env.server.Router().ServeHTTP(rec, req)

	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}
