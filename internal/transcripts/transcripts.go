// Package transcripts ingests video transcript files into the store. Each
// file holds one video as JSON; videos from channels that are not configured,
// or are disabled, are skipped. A summary is generated from the start of the
// transcript, and a failed summary never prevents the transcript being saved.
package transcripts

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"meridian/internal/core"
	"meridian/internal/persistence"
	"meridian/internal/throttle"
)

const (
	DefaultDir          = "transcripts"
	DefaultSummaryChars = 8000
)

var (
	// ErrMissingFields means a video lacks text, title, URL, video ID or channel.
	ErrMissingFields = errors.New("missing required fields in video data")
	// ErrDuplicate means a transcript for the video URL is already stored.
	ErrDuplicate = errors.New("transcription already exists")
)

// Segment is one timed piece of a transcript.
type Segment struct {
	Text     string  `json:"text"`
	Duration float64 `json:"duration"`
	Offset   float64 `json:"offset"`
}

// VideoChannel names the channel a video was published on.
type VideoChannel struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// Video is the on-disk form of one fetched video.
type Video struct {
	Channel        VideoChannel `json:"channel"`
	VideoID        string       `json:"videoId"`
	Title          string       `json:"title"`
	URL            string       `json:"url"`
	PublishedAt    string       `json:"publishedAt"` // RFC 3339, a bare date, or "Unknown"
	Description    string       `json:"description,omitempty"`
	ThumbnailURL   string       `json:"thumbnailUrl,omitempty"`
	Transcript     []Segment    `json:"transcript,omitempty"`
	TranscriptText string       `json:"transcriptText"`
}

// missingFields lists the required fields the video lacks.
func (v Video) missingFields() []string {
	var missing []string
	for _, f := range []struct {
		name  string
		value string
	}{
		{"transcriptText", v.TranscriptText},
		{"title", v.Title},
		{"url", v.URL},
		{"videoId", v.VideoID},
		{"channel.id", v.Channel.ID},
		{"channel.name", v.Channel.Name},
	} {
		if strings.TrimSpace(f.value) == "" {
			missing = append(missing, f.name)
		}
	}
	return missing
}

// PostedAt parses the publication date. Unknown or malformed dates give nil.
func (v Video) PostedAt() *time.Time {
	raw := strings.TrimSpace(v.PublishedAt)
	if raw == "" || strings.EqualFold(raw, "unknown") {
		return nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, raw); err == nil {
			t = t.UTC()
			return &t
		}
	}
	return nil
}

// Channel is a configured source channel.
type Channel struct {
	ID      string
	Name    string
	Enabled bool
}

// Config tunes the processor.
type Config struct {
	Dir          string
	SummaryChars int
	Channels     []Channel
}

// FileError records why one file failed.
type FileError struct {
	File  string `json:"file"`
	Error string `json:"error"`
}

// Stats summarizes one directory run.
type Stats struct {
	TotalFiles int         `json:"total_files"`
	Processed  int         `json:"processed"`
	Skipped    int         `json:"skipped"`
	Errors     int         `json:"errors"`
	Failures   []FileError `json:"error_details,omitempty"`
}

// Store is the part of the transcript repository the processor needs.
type Store interface {
	Create(ctx context.Context, t *core.Transcription) error
	Exists(ctx context.Context, videoURL string) (bool, error)
}

// AI is the model capability used for summaries.
type AI interface {
	ChatComplete(ctx context.Context, prompt, systemPrompt string) (string, error)
}

// Prompts renders the transcript summary prompt.
type Prompts interface {
	TranscriptionSummaryPrompt(title, transcript string) string
}

// Processor turns transcript files into stored transcriptions.
type Processor struct {
	store    Store
	ai       AI
	prompts  Prompts
	limiter  throttle.Limiter
	cfg      Config
	channels map[string]Channel
	log      zerolog.Logger
}

// NewProcessor creates a processor. The limiter spaces summary calls.
func NewProcessor(store Store, ai AI, prompts Prompts, limiter throttle.Limiter, cfg Config, log zerolog.Logger) *Processor {
	if cfg.Dir == "" {
		cfg.Dir = DefaultDir
	}
	if cfg.SummaryChars <= 0 {
		cfg.SummaryChars = DefaultSummaryChars
	}
	if limiter == nil {
		limiter = throttle.Noop{}
	}
	channels := make(map[string]Channel, len(cfg.Channels))
	for _, ch := range cfg.Channels {
		channels[ch.ID] = ch
	}
	return &Processor{
		store:    store,
		ai:       ai,
		prompts:  prompts,
		limiter:  limiter,
		cfg:      cfg,
		channels: channels,
		log:      log.With().Str("component", "transcripts").Logger(),
	}
}

// ProcessDir ingests every visible .json file in dir, in name order. An empty
// dir uses the configured one; a missing directory yields empty stats.
// Per-file failures are counted, only a cancelled context returns an error.
func (p *Processor) ProcessDir(ctx context.Context, dir string) (Stats, error) {
	if dir == "" {
		dir = p.cfg.Dir
	}
	log := p.log.With().Str("dir", dir).Logger()

	var stats Stats
	entries, err := os.ReadDir(dir)
	if errors.Is(err, os.ErrNotExist) {
		log.Info().Msg("Transcripts directory does not exist")
		return stats, nil
	}
	if err != nil {
		return stats, fmt.Errorf("failed to read transcripts directory: %w", err)
	}

	var files []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, ".") || filepath.Ext(name) != ".json" {
			continue
		}
		files = append(files, name)
	}
	sort.Strings(files)
	stats.TotalFiles = len(files)

	log.Info().Int("files", len(files)).Msg("Processing transcripts")

	for _, name := range files {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		video, err := readVideo(filepath.Join(dir, name))
		if err != nil {
			stats.fail(name, err)
			log.Warn().Err(err).Str("file", name).Msg("Failed to read transcript")
			continue
		}

		if reason := p.skipReason(video.Channel.ID); reason != "" {
			stats.Skipped++
			log.Debug().Str("file", name).Str("channel_id", video.Channel.ID).Msg(reason)
			continue
		}

		if _, err := p.ProcessVideo(ctx, video); err != nil {
			if ctx.Err() != nil {
				return stats, ctx.Err()
			}
			stats.fail(name, err)
			log.Warn().Err(err).Str("file", name).Msg("Failed to process transcript")
			continue
		}
		stats.Processed++
	}

	log.Info().
		Int("processed", stats.Processed).
		Int("skipped", stats.Skipped).
		Int("errors", stats.Errors).
		Msg("Transcripts processed")
	return stats, nil
}

func (s *Stats) fail(file string, err error) {
	s.Errors++
	s.Failures = append(s.Failures, FileError{File: file, Error: err.Error()})
}

func (p *Processor) skipReason(channelID string) string {
	if channelID == "" {
		return "Video has no channel id, skipping"
	}
	ch, ok := p.channels[channelID]
	if !ok {
		return "Channel not configured, skipping"
	}
	if !ch.Enabled {
		return "Channel disabled, skipping"
	}
	return ""
}

func readVideo(path string) (Video, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Video{}, err
	}
	var v Video
	if err := json.Unmarshal(data, &v); err != nil {
		return Video{}, fmt.Errorf("invalid transcript JSON: %w", err)
	}
	return v, nil
}

// ProcessVideo validates, summarizes and stores one video. It does not check
// the channel filter; ProcessDir does.
func (p *Processor) ProcessVideo(ctx context.Context, v Video) (*core.Transcription, error) {
	if missing := v.missingFields(); len(missing) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrMissingFields, strings.Join(missing, ", "))
	}

	exists, err := p.store.Exists(ctx, v.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to check transcription: %w", err)
	}
	if exists {
		return nil, fmt.Errorf("%w: %s", ErrDuplicate, v.URL)
	}

	t := &core.Transcription{
		ChannelID:   v.Channel.ID,
		ChannelName: v.Channel.Name,
		VideoTitle:  v.Title,
		PostedAt:    v.PostedAt(),
		VideoURL:    v.URL,
		ProcessedAt: time.Now().UTC(),
		Text:        v.TranscriptText,
	}

	if err := p.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	t.Summary = p.summarize(ctx, v)

	if err := p.store.Create(ctx, t); err != nil {
		if errors.Is(err, persistence.ErrDuplicate) {
			return nil, fmt.Errorf("%w: %s", ErrDuplicate, v.URL)
		}
		return nil, fmt.Errorf("failed to save transcription: %w", err)
	}

	p.log.Debug().
		Int64("id", t.ID).
		Str("video_id", v.VideoID).
		Bool("summarized", t.Summary != nil).
		Msg("Transcription saved")
	return t, nil
}

// summarize returns nil when the model call fails or answers with nothing.
func (p *Processor) summarize(ctx context.Context, v Video) *string {
	prompt := p.prompts.TranscriptionSummaryPrompt(v.Title, core.Truncate(v.TranscriptText, p.cfg.SummaryChars))
	response, err := p.ai.ChatComplete(ctx, prompt, "")
	if err != nil {
		p.log.Warn().Err(err).Str("video_id", v.VideoID).Msg("Summary failed, saving transcript without it")
		return nil
	}
	summary := strings.TrimSpace(response)
	if summary == "" {
		return nil
	}
	return &summary
}
