package server

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"meridian/internal/core"
	"meridian/internal/persistence"
	"meridian/internal/transcripts"
)

// TranscriptionListResponse is one page of transcriptions plus the filters
// that produced it
type TranscriptionListResponse struct {
	Transcriptions    []TranscriptionResponse `json:"transcriptions"`
	Pagination        TranscriptionPagination `json:"pagination"`
	Filters           TranscriptionFilters    `json:"filters"`
	AvailableChannels []core.Channel          `json:"available_channels"`
}

// TranscriptionPagination describes the returned page
type TranscriptionPagination struct {
	Page                int `json:"page"`
	PerPage             int `json:"per_page"`
	TotalPages          int `json:"total_pages"`
	TotalTranscriptions int `json:"total_transcriptions"`
}

// TranscriptionFilters echoes the query as received
type TranscriptionFilters struct {
	SortBy      string `json:"sort_by"`
	Direction   string `json:"direction"`
	ChannelID   string `json:"channel_id"`
	ChannelName string `json:"channel_name"`
	Search      string `json:"search"`
	StartDate   string `json:"start_date"`
	EndDate     string `json:"end_date"`
	Preset      string `json:"preset"`
}

// TranscriptionResponse is a transcription with its summary rendered to HTML
type TranscriptionResponse struct {
	core.Transcription
	SummaryHTML string `json:"transcription_summary_html,omitempty"`
}

func toTranscriptionResponse(t core.Transcription, withHTML bool) TranscriptionResponse {
	resp := TranscriptionResponse{Transcription: t}
	if withHTML && t.HasSummary() {
		resp.SummaryHTML = renderMarkdown(*t.Summary)
	}
	return resp
}

// parseTranscriptionFilter reads the listing query parameters. A preset
// overrides explicit dates.
func (s *Server) parseTranscriptionFilter(r *http.Request) (persistence.TranscriptionFilter, TranscriptionFilters, error) {
	q := r.URL.Query()

	echo := TranscriptionFilters{
		SortBy:      q.Get("sort_by"),
		Direction:   strings.ToLower(q.Get("direction")),
		ChannelID:   q.Get("channel_id"),
		ChannelName: q.Get("channel_name"),
		Search:      q.Get("search"),
		StartDate:   q.Get("start_date"),
		EndDate:     q.Get("end_date"),
		Preset:      q.Get("preset"),
	}
	if echo.SortBy == "" {
		echo.SortBy = string(persistence.SortPostedAt)
	}
	if echo.Direction == "" {
		echo.Direction = "desc"
	}

	page, perPage, err := s.paging(r)
	if err != nil {
		return persistence.TranscriptionFilter{}, echo, err
	}

	filter := persistence.TranscriptionFilter{
		ChannelID:   echo.ChannelID,
		ChannelName: echo.ChannelName,
		Search:      echo.Search,
		SortBy:      persistence.TranscriptSortField(echo.SortBy),
		Ascending:   echo.Direction == "asc",
		Page:        page,
		PerPage:     perPage,
	}

	if echo.Preset != "" {
		start, end, err := transcripts.DatePreset(echo.Preset, time.Now().UTC())
		if err != nil {
			return persistence.TranscriptionFilter{}, echo, err
		}
		filter.StartDate, filter.EndDate = &start, &end
		return filter, echo, nil
	}

	for name, dst := range map[string]**time.Time{"start_date": &filter.StartDate, "end_date": &filter.EndDate} {
		raw := q.Get(name)
		if raw == "" {
			continue
		}
		t, err := time.Parse(dateLayout, raw)
		if err != nil {
			return persistence.TranscriptionFilter{}, echo, errors.New("invalid " + name + ", expected YYYY-MM-DD")
		}
		*dst = &t
	}
	return filter, echo, nil
}

// handleListTranscriptions handles GET /api/transcriptions
func (s *Server) handleListTranscriptions(w http.ResponseWriter, r *http.Request) {
	if s.deps.Transcriptions == nil {
		s.respondError(w, http.StatusServiceUnavailable, "Transcriptions are not available")
		return
	}
	ctx := r.Context()

	filter, echo, err := s.parseTranscriptionFilter(r)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	list, err := s.deps.Transcriptions.List(ctx, filter)
	if err != nil {
		s.log.Error().Err(err).Msg("Failed to list transcriptions")
		s.respondError(w, http.StatusInternalServerError, "Failed to retrieve transcriptions")
		return
	}
	total, err := s.deps.Transcriptions.Count(ctx, filter)
	if err != nil {
		s.log.Error().Err(err).Msg("Failed to count transcriptions")
		s.respondError(w, http.StatusInternalServerError, "Failed to retrieve transcriptions")
		return
	}
	channels, err := s.deps.Transcriptions.DistinctChannels(ctx)
	if err != nil {
		s.log.Error().Err(err).Msg("Failed to list channels")
		s.respondError(w, http.StatusInternalServerError, "Failed to retrieve transcriptions")
		return
	}

	items := make([]TranscriptionResponse, len(list))
	for i, t := range list {
		items[i] = toTranscriptionResponse(t, false)
	}

	s.respondJSON(w, http.StatusOK, TranscriptionListResponse{
		Transcriptions: items,
		Pagination: TranscriptionPagination{
			Page:                filter.Page,
			PerPage:             filter.PerPage,
			TotalPages:          (total + filter.PerPage - 1) / filter.PerPage,
			TotalTranscriptions: total,
		},
		Filters:           echo,
		AvailableChannels: channels,
	})
}

// handleGetTranscription handles GET /api/transcriptions/{id}
func (s *Server) handleGetTranscription(w http.ResponseWriter, r *http.Request) {
	if s.deps.Transcriptions == nil {
		s.respondError(w, http.StatusServiceUnavailable, "Transcriptions are not available")
		return
	}

	id, err := idParam(r)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "Transcription ID must be a positive integer")
		return
	}

	t, err := s.deps.Transcriptions.Get(r.Context(), id)
	if err != nil {
		s.respondStoreError(w, err, "Transcription not found")
		return
	}

	s.respondJSON(w, http.StatusOK, toTranscriptionResponse(*t, true))
}
