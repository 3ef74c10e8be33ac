package transcripts

import (
	"fmt"
	"time"

	"meridian/internal/core"
)

// Date presets accepted by listings.
const (
	PresetYesterday = "yesterday"
	PresetLastWeek  = "last_week"
	PresetLast30d   = "last_30d"
	PresetLast3m    = "last_3m"
	PresetLast12m   = "last_12m"
)

// DatePreset resolves a named range to inclusive start and end days relative
// to now.
func DatePreset(name string, now time.Time) (start, end time.Time, err error) {
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	switch name {
	case PresetYesterday:
		y := today.AddDate(0, 0, -1)
		return y, y, nil
	case PresetLastWeek:
		return today.AddDate(0, 0, -7), today, nil
	case PresetLast30d:
		return today.AddDate(0, 0, -30), today, nil
	case PresetLast3m:
		return today.AddDate(0, -3, 0), today, nil
	case PresetLast12m:
		return today.AddDate(0, -12, 0), today, nil
	default:
		return time.Time{}, time.Time{}, fmt.Errorf("unknown date preset %q", name)
	}
}

// ListStats summarizes a set of transcriptions.
type ListStats struct {
	Total          int            `json:"total"`
	WithSummary    int            `json:"with_summary"`
	WithoutSummary int            `json:"without_summary"`
	ChannelCounts  map[string]int `json:"channel_counts"` // by channel name
}

// Statistics counts summaries and channels across list.
func Statistics(list []core.Transcription) ListStats {
	stats := ListStats{Total: len(list), ChannelCounts: make(map[string]int)}
	for _, t := range list {
		if t.HasSummary() {
			stats.WithSummary++
		} else {
			stats.WithoutSummary++
		}
		stats.ChannelCounts[t.ChannelName]++
	}
	return stats
}
