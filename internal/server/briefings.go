package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"io"
	"net/http"
	"time"

	"meridian/internal/briefing"
	"meridian/internal/core"
	"meridian/internal/prompts"
)

// BriefingListResponse is one page of briefings
type BriefingListResponse struct {
	Briefings []BriefingResponse `json:"briefings"`
	Page      int                `json:"page"`
	PerPage   int                `json:"per_page"`
}

// BriefingResponse is a stored briefing, optionally rendered to HTML
type BriefingResponse struct {
	ID           int64            `json:"id"`
	Content      string           `json:"content"`
	ContentHTML  string           `json:"content_html,omitempty"`
	ArticleIDs   []int64          `json:"article_ids"`
	ArticleCount int              `json:"article_count"`
	FeedProfile  core.FeedProfile `json:"feed_profile"`
	CreatedAt    time.Time        `json:"created_at"`
}

// GenerateBriefingRequest is the body of POST /api/briefings/generate.
// Zero thresholds keep the configured defaults.
type GenerateBriefingRequest struct {
	Profile       string                `json:"profile"`
	Simple        bool                  `json:"simple"`
	Limit         int                   `json:"limit"`
	LookbackHours int                   `json:"lookback_hours"`
	MinArticles   int                   `json:"min_articles"`
	ClustersQtd   int                   `json:"clusters_qtd"`
	CustomPrompts prompts.CustomPrompts `json:"custom_prompts"`
}

func toBriefingResponse(b core.Briefing, withHTML bool) BriefingResponse {
	resp := BriefingResponse{
		ID:           b.ID,
		Content:      b.Content,
		ArticleIDs:   b.ArticleIDs,
		ArticleCount: len(b.ArticleIDs),
		FeedProfile:  b.FeedProfile,
		CreatedAt:    b.CreatedAt,
	}
	if resp.ArticleIDs == nil {
		resp.ArticleIDs = []int64{}
	}
	if withHTML {
		resp.ContentHTML = renderMarkdown(b.Content)
	}
	return resp
}

// handleListBriefings handles GET /api/briefings
func (s *Server) handleListBriefings(w http.ResponseWriter, r *http.Request) {
	page, perPage, err := s.paging(r)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	profile, err := profileParam(r.URL.Query().Get("profile"))
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	briefings, err := s.deps.Briefings.List(r.Context(), profile, perPage, (page-1)*perPage)
	if err != nil {
		s.log.Error().Err(err).Msg("Failed to list briefings")
		s.respondError(w, http.StatusInternalServerError, "Failed to load briefings")
		return
	}

	items := make([]BriefingResponse, len(briefings))
	for i, b := range briefings {
		items[i] = toBriefingResponse(b, false)
	}

	s.respondJSON(w, http.StatusOK, BriefingListResponse{Briefings: items, Page: page, PerPage: perPage})
}

// handleLatestBriefing handles GET /api/briefings/latest
func (s *Server) handleLatestBriefing(w http.ResponseWriter, r *http.Request) {
	profile, err := profileParam(r.URL.Query().Get("profile"))
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	b, err := s.deps.Briefings.Latest(r.Context(), profile)
	if err != nil {
		s.respondStoreError(w, err, "No briefing found")
		return
	}

	s.respondJSON(w, http.StatusOK, toBriefingResponse(*b, true))
}

// handleGetBriefing handles GET /api/briefings/{id}
func (s *Server) handleGetBriefing(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "Briefing ID must be a positive integer")
		return
	}

	b, err := s.deps.Briefings.Get(r.Context(), id)
	if err != nil {
		s.respondStoreError(w, err, "Briefing not found")
		return
	}

	s.respondJSON(w, http.StatusOK, toBriefingResponse(*b, true))
}

// handleBriefingHTML handles GET /api/briefings/{id}/html
func (s *Server) handleBriefingHTML(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		http.Error(w, "Briefing ID must be a positive integer", http.StatusBadRequest)
		return
	}

	b, err := s.deps.Briefings.Get(r.Context(), id)
	if err != nil {
		s.respondStoreError(w, err, "Briefing not found")
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	title := html.EscapeString(fmt.Sprintf("%s briefing #%d", b.FeedProfile, b.ID))
	_, _ = io.WriteString(w, "<!DOCTYPE html>\n<html><head><meta charset=\"utf-8\"><title>"+title+"</title></head>\n<body>\n")
	_, _ = io.WriteString(w, renderMarkdown(b.Content))
	_, _ = io.WriteString(w, "</body></html>\n")
}

// handleGenerateBriefing handles POST /api/briefings/generate. Insufficient
// input is reported with 422 and the briefing error message.
func (s *Server) handleGenerateBriefing(w http.ResponseWriter, r *http.Request) {
	var req GenerateBriefingRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			s.respondError(w, http.StatusBadRequest, "Invalid request body")
			return
		}
	}

	profile := core.ProfileDefault
	if req.Profile != "" {
		var err error
		if profile, err = core.ParseProfile(req.Profile); err != nil {
			s.respondError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	log := s.log.With().Str("profile", string(profile)).Bool("simple", req.Simple).Logger()
	log.Info().Msg("Briefing requested")

	var (
		result briefing.Result
		err    error
	)
	if req.Simple {
		result, err = s.deps.Briefs.GenerateSimpleBrief(r.Context(), profile, req.Limit)
	} else {
		result, err = s.deps.Briefs.GenerateBrief(r.Context(), profile, prompts.BriefingOverrides{
			LookbackHours: req.LookbackHours,
			MinArticles:   req.MinArticles,
			ClustersQtd:   req.ClustersQtd,
			CustomPrompts: req.CustomPrompts,
		})
	}
	if err != nil {
		log.Error().Err(err).Msg("Briefing generation failed")
		s.respondError(w, http.StatusInternalServerError, "Failed to generate briefing")
		return
	}

	status := http.StatusCreated
	if !result.Success {
		status = http.StatusUnprocessableEntity
	}
	s.respondJSON(w, status, result)
}
