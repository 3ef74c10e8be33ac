package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"meridian/internal/core"
	"meridian/internal/persistence"
)

const (
	defaultPerPage = 20
	maxPerPage     = 100
)

// HealthResponse is the body of /health
type HealthResponse struct {
	Status string            `json:"status"`
	Uptime string            `json:"uptime"`
	Checks map[string]string `json:"checks"`
}

// ProfileSummary describes one feed profile
type ProfileSummary struct {
	Name         core.FeedProfile `json:"name"`
	Feeds        int              `json:"feeds"`
	EnabledFeeds int              `json:"enabled_feeds"`
}

// StatsResponse is the body of /api/stats
type StatsResponse struct {
	Articles   *persistence.ArticleStats `json:"articles"`
	Profiles   []core.FeedProfile        `json:"profiles"`
	Categories []core.Category           `json:"categories"`
}

var serverStartTime = time.Now()

// handleHealth handles the /health endpoint
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	checks := make(map[string]string)
	status := http.StatusOK
	resp := HealthResponse{Status: "ok", Uptime: time.Since(serverStartTime).Round(time.Second).String(), Checks: checks}

	if s.deps.Health != nil {
		if err := s.deps.Health.Ping(r.Context()); err != nil {
			s.log.Warn().Err(err).Msg("Database health check failed")
			checks["database"] = "error"
			resp.Status = "unhealthy"
			status = http.StatusServiceUnavailable
		} else {
			checks["database"] = "ok"
		}
	}

	if s.deps.Jobs != nil {
		checks["queue"] = "enabled"
	} else {
		checks["queue"] = "disabled"
	}

	s.respondJSON(w, status, resp)
}

// handleListProfiles handles GET /api/profiles
func (s *Server) handleListProfiles(w http.ResponseWriter, r *http.Request) {
	available := s.deps.Profiles.Available()
	summaries := make([]ProfileSummary, 0, len(available))
	for _, profile := range available {
		feeds := s.deps.Profiles.Feeds(profile)
		enabled := 0
		for _, f := range feeds {
			if f.IsEnabled() {
				enabled++
			}
		}
		summaries = append(summaries, ProfileSummary{Name: profile, Feeds: len(feeds), EnabledFeeds: enabled})
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"profiles": summaries})
}

// handleStats handles GET /api/stats
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	stats, err := s.deps.Articles.Stats(ctx)
	if err != nil {
		s.log.Error().Err(err).Msg("Failed to compute stats")
		s.respondError(w, http.StatusInternalServerError, "Failed to compute stats")
		return
	}
	profiles, err := s.deps.Articles.DistinctProfiles(ctx)
	if err != nil {
		s.log.Error().Err(err).Msg("Failed to list profiles")
		s.respondError(w, http.StatusInternalServerError, "Failed to compute stats")
		return
	}
	categories, err := s.deps.Articles.DistinctCategories(ctx)
	if err != nil {
		s.log.Error().Err(err).Msg("Failed to list categories")
		s.respondError(w, http.StatusInternalServerError, "Failed to compute stats")
		return
	}

	s.respondJSON(w, http.StatusOK, StatsResponse{Articles: stats, Profiles: profiles, Categories: categories})
}

// respondJSON writes a JSON response
func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

// respondError writes a JSON error response
func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]interface{}{
		"error": map[string]interface{}{
			"status":  status,
			"message": message,
		},
	})
}

// respondStoreError maps a repository error to 404 or 500
func (s *Server) respondStoreError(w http.ResponseWriter, err error, notFound string) {
	if errors.Is(err, persistence.ErrNotFound) {
		s.respondError(w, http.StatusNotFound, notFound)
		return
	}
	s.log.Error().Err(err).Msg("Store error")
	s.respondError(w, http.StatusInternalServerError, "Internal server error")
}

func idParam(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, errors.New("invalid id")
	}
	return id, nil
}

// profileParam parses an optional profile value. Empty means all profiles.
func profileParam(value string) (core.FeedProfile, error) {
	if value == "" {
		return "", nil
	}
	return core.ParseProfile(value)
}

func intParam(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 1 {
		return 0, errors.New("invalid " + name)
	}
	return v, nil
}

func (s *Server) paging(r *http.Request) (page, perPage int, err error) {
	page, err = intParam(r, "page", 1)
	if err != nil {
		return 0, 0, err
	}
	perPage, err = intParam(r, "per_page", s.perPage)
	if err != nil {
		return 0, 0, err
	}
	if perPage > maxPerPage {
		perPage = maxPerPage
	}
	return page, perPage, nil
}
