package handlers

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"meridian/internal/config"
	"meridian/internal/core"
	"meridian/internal/persistence"
)

func TestRootCmd_Subcommands(t *testing.T) {
	root := NewRootCmd()

	for _, name := range []string{
		"scrape", "process", "rate", "categorize", "brief", "simple-brief", "run",
		"enqueue", "worker", "serve", "migrate", "profiles", "ping", "transcripts",
	} {
		cmd, _, err := root.Find([]string{name})
		require.NoError(t, err, name)
		assert.Equal(t, name, cmd.Name())
	}

	for _, path := range [][]string{
		{"migrate", "up"}, {"migrate", "status"}, {"migrate", "rollback"},
		{"transcripts", "process"}, {"transcripts", "list"},
	} {
		cmd, _, err := root.Find(path)
		require.NoError(t, err, path)
		assert.Equal(t, path[1], cmd.Name())
	}
}

func TestResolveProfile(t *testing.T) {
	t.Cleanup(func() { profileName = "" })
	cfg := &config.Config{}

	profileName = ""
	p, err := resolveProfile(cfg)
	require.NoError(t, err)
	assert.Equal(t, core.ProfileDefault, p)

	cfg.App.DefaultProfile = "technology"
	p, err = resolveProfile(cfg)
	require.NoError(t, err)
	assert.Equal(t, core.FeedProfile("technology"), p)

	profileName = "brasil"
	p, err = resolveProfile(cfg)
	require.NoError(t, err)
	assert.Equal(t, core.FeedProfile("brasil"), p)
}

func TestPrintMigrationStatus(t *testing.T) {
	var buf bytes.Buffer
	printMigrationStatus(&buf, []persistence.MigrationStatus{
		{Version: 1, Description: "initial schema", Applied: true},
		{Version: 2, Description: "stage indexes"},
	})

	out := buf.String()
	assert.Contains(t, out, "initial schema")
	assert.Contains(t, out, "pending")
	assert.Contains(t, out, "Applied: 1 | Pending: 1 | Total: 2")
	assert.Contains(t, out, "meridian migrate up")

	buf.Reset()
	printMigrationStatus(&buf, nil)
	assert.Equal(t, "No migrations found\n", buf.String())
}

func TestPrintTranscriptions(t *testing.T) {
	var buf bytes.Buffer
	posted := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	summary := "recap"
	printTranscriptions(&buf, []core.Transcription{
		{ID: 1, ChannelName: "Theo Browne", VideoTitle: "Bun 2", PostedAt: &posted, Summary: &summary},
		{ID: 2, ChannelName: "Fireship", VideoTitle: "Zig"},
	})

	out := buf.String()
	assert.Contains(t, out, "2025-03-01")
	assert.Contains(t, out, "unknown")
	assert.Contains(t, out, "Total: 2 | With summary: 1 | Without summary: 1")
	assert.Contains(t, out, "  Fireship: 1\n  Theo Browne: 1\n")

	buf.Reset()
	printTranscriptions(&buf, nil)
	assert.Equal(t, "No transcriptions found\n", buf.String())
}
