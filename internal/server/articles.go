package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"meridian/internal/core"
	"meridian/internal/feeds"
	"meridian/internal/persistence"
	"meridian/internal/queue"
)

const dateLayout = "2006-01-02"

// ArticleListResponse is one page of articles
type ArticleListResponse struct {
	Articles   []ArticleResponse `json:"articles"`
	Total      int               `json:"total"`
	Page       int               `json:"page"`
	PerPage    int               `json:"per_page"`
	TotalPages int               `json:"total_pages"`
}

// ArticleResponse is an article without its embedding
type ArticleResponse struct {
	ID                   int64            `json:"id"`
	URL                  string           `json:"url"`
	Title                string           `json:"title"`
	PublishedDate        time.Time        `json:"published_date"`
	FeedSource           string           `json:"feed_source"`
	ProcessedContent     *string          `json:"processed_content,omitempty"`
	ProcessedContentHTML string           `json:"processed_content_html,omitempty"`
	ImpactRating         *int             `json:"impact_rating,omitempty"`
	FeedProfile          core.FeedProfile `json:"feed_profile"`
	ImageURL             *string          `json:"image_url,omitempty"`
	Categories           []core.Category  `json:"categories"`
	HasEmbedding         bool             `json:"has_embedding"`
	CreatedAt            time.Time        `json:"created_at"`
}

// SubmitArticleRequest is the body of POST /api/articles
type SubmitArticleRequest struct {
	URL     string `json:"url"`
	Profile string `json:"profile"`
}

// SubmitArticleResponse reports the stored article and its processing job
type SubmitArticleResponse struct {
	Article ArticleResponse `json:"article"`
	Job     *queue.JobInfo  `json:"job,omitempty"`
}

func toArticleResponse(a core.Article, withHTML bool) ArticleResponse {
	resp := ArticleResponse{
		ID:               a.ID,
		URL:              a.URL,
		Title:            a.Title,
		PublishedDate:    a.PublishedDate,
		FeedSource:       a.FeedSource,
		ProcessedContent: a.ProcessedContent,
		ImpactRating:     a.ImpactRating,
		FeedProfile:      a.FeedProfile,
		ImageURL:         a.ImageURL,
		Categories:       a.Categories,
		HasEmbedding:     len(a.Embedding) > 0,
		CreatedAt:        a.CreatedAt,
	}
	if resp.Categories == nil {
		resp.Categories = []core.Category{}
	}
	if withHTML {
		resp.ProcessedContentHTML = renderMarkdown(a.Processed())
	}
	return resp
}

// parseArticleFilter reads the listing query parameters
func (s *Server) parseArticleFilter(r *http.Request) (persistence.ArticleFilter, error) {
	q := r.URL.Query()

	page, perPage, err := s.paging(r)
	if err != nil {
		return persistence.ArticleFilter{}, err
	}
	profile, err := profileParam(q.Get("profile"))
	if err != nil {
		return persistence.ArticleFilter{}, err
	}

	filter := persistence.ArticleFilter{
		Profile:   profile,
		Search:    q.Get("search"),
		Category:  core.Category(strings.ToLower(q.Get("category"))),
		SortBy:    persistence.SortField(q.Get("sort")),
		Ascending: strings.EqualFold(q.Get("order"), "asc"),
		Page:      page,
		PerPage:   perPage,
	}

	for name, dst := range map[string]**time.Time{"start_date": &filter.StartDate, "end_date": &filter.EndDate} {
		raw := q.Get(name)
		if raw == "" {
			continue
		}
		t, err := time.Parse(dateLayout, raw)
		if err != nil {
			return persistence.ArticleFilter{}, errors.New("invalid " + name + ", expected YYYY-MM-DD")
		}
		*dst = &t
	}
	return filter, nil
}

// handleListArticles handles GET /api/articles
func (s *Server) handleListArticles(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	filter, err := s.parseArticleFilter(r)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	articles, err := s.deps.Articles.List(ctx, filter)
	if err != nil {
		s.log.Error().Err(err).Msg("Failed to list articles")
		s.respondError(w, http.StatusInternalServerError, "Failed to retrieve articles")
		return
	}
	total, err := s.deps.Articles.Count(ctx, filter)
	if err != nil {
		s.log.Error().Err(err).Msg("Failed to count articles")
		s.respondError(w, http.StatusInternalServerError, "Failed to retrieve articles")
		return
	}

	items := make([]ArticleResponse, len(articles))
	for i, a := range articles {
		items[i] = toArticleResponse(a, false)
	}

	s.respondJSON(w, http.StatusOK, ArticleListResponse{
		Articles:   items,
		Total:      total,
		Page:       filter.Page,
		PerPage:    filter.PerPage,
		TotalPages: (total + filter.PerPage - 1) / filter.PerPage,
	})
}

// handleGetArticle handles GET /api/articles/{id}
func (s *Server) handleGetArticle(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "Article ID must be a positive integer")
		return
	}

	article, err := s.deps.Articles.Get(r.Context(), id)
	if err != nil {
		s.respondStoreError(w, err, "Article not found")
		return
	}

	s.respondJSON(w, http.StatusOK, toArticleResponse(*article, true))
}

// handleDeleteArticle handles DELETE /api/articles/{id}
func (s *Server) handleDeleteArticle(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "Article ID must be a positive integer")
		return
	}

	if err := s.deps.Articles.Delete(r.Context(), id); err != nil {
		s.respondStoreError(w, err, "Article not found")
		return
	}

	s.log.Info().Int64("article_id", id).Msg("Article deleted")
	w.WriteHeader(http.StatusNoContent)
}

// handleSubmitArticle handles POST /api/articles. The page is scraped
// synchronously and processing is queued when a queue is configured.
func (s *Server) handleSubmitArticle(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req SubmitArticleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	req.URL = strings.TrimSpace(req.URL)
	parsed, err := url.Parse(req.URL)
	if req.URL == "" || err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		s.respondError(w, http.StatusBadRequest, "A valid http(s) URL is required")
		return
	}

	profile := core.ProfileDefault
	if req.Profile != "" {
		if profile, err = core.ParseProfile(req.Profile); err != nil {
			s.respondError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	article, err := s.deps.Scraper.ScrapeURL(ctx, req.URL, profile)
	if errors.Is(err, feeds.ErrDuplicate) {
		s.respondError(w, http.StatusConflict, "Article already exists")
		return
	}
	if err != nil {
		s.log.Warn().Err(err).Str("url", req.URL).Msg("Failed to scrape submitted URL")
		s.respondError(w, http.StatusUnprocessableEntity, "Failed to scrape URL")
		return
	}

	resp := SubmitArticleResponse{Article: toArticleResponse(*article, false)}
	if s.deps.Jobs != nil {
		job, err := s.deps.Jobs.Enqueue(ctx, article.ID, profile)
		if err != nil {
			s.log.Error().Err(err).Int64("article_id", article.ID).Msg("Failed to enqueue article")
		} else {
			resp.Job = &job
		}
	}

	s.respondJSON(w, http.StatusCreated, resp)
}

// handleProcessArticle handles POST /api/articles/{id}/process
func (s *Server) handleProcessArticle(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if s.deps.Jobs == nil {
		s.respondError(w, http.StatusServiceUnavailable, "Job queue is not configured")
		return
	}

	id, err := idParam(r)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "Article ID must be a positive integer")
		return
	}

	article, err := s.deps.Articles.Get(ctx, id)
	if err != nil {
		s.respondStoreError(w, err, "Article not found")
		return
	}

	job, err := s.deps.Jobs.Enqueue(ctx, article.ID, article.FeedProfile)
	if err != nil {
		s.log.Error().Err(err).Int64("article_id", id).Msg("Failed to enqueue article")
		s.respondError(w, http.StatusInternalServerError, "Failed to enqueue article")
		return
	}

	s.respondJSON(w, http.StatusAccepted, job)
}

// handleGetJob handles GET /api/jobs/{id}
func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	if s.deps.Jobs == nil {
		s.respondError(w, http.StatusServiceUnavailable, "Job queue is not configured")
		return
	}

	job, err := s.deps.Jobs.Status(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, queue.ErrJobNotFound) {
		s.respondError(w, http.StatusNotFound, "Job not found")
		return
	}
	if err != nil {
		s.log.Error().Err(err).Msg("Failed to read job")
		s.respondError(w, http.StatusInternalServerError, "Failed to read job")
		return
	}

	s.respondJSON(w, http.StatusOK, job)
}
