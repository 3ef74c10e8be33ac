package handlers

import (
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"meridian/internal/core"
	"meridian/internal/persistence"
	"meridian/internal/transcripts"
)

// NewTranscriptsCmd creates the transcripts command group
func NewTranscriptsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "transcripts",
		Short: "Ingest and browse video transcripts",
		Long: `Ingest video transcript files and browse the stored transcriptions.

Transcript files are JSON documents, one per video, written by an external
fetcher. Only videos from enabled channels under transcripts.channels are kept.

Examples:
  meridian transcripts process --dir ./transcripts
  meridian transcripts list --channel-id UCbRP3c757lWg9M-U7TyEkXA`,
	}

	cmd.AddCommand(newTranscriptsProcessCmd(), newTranscriptsListCmd())
	return cmd
}

func newTranscriptsProcessCmd() *cobra.Command {
	var (
		dir      string
		jsonMode bool
	)

	cmd := &cobra.Command{
		Use:   "process",
		Short: "Summarize and store transcript files",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signalContext(cmd)
			defer stop()

			c, _, err := buildComponents(ctx)
			if err != nil {
				return err
			}
			defer c.Close()

			stats, err := c.Transcripts.ProcessDir(ctx, dir)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if jsonMode {
				return printJSON(out, stats)
			}
			fmt.Fprintf(out, "transcripts: files=%d processed=%d skipped=%d errors=%d\n",
				stats.TotalFiles, stats.Processed, stats.Skipped, stats.Errors)
			for _, f := range stats.Failures {
				fmt.Fprintf(out, "  %s: %s\n", f.File, f.Error)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&dir, "dir", "", "directory to read (default from config: transcripts)")
	cmd.Flags().BoolVar(&jsonMode, "json", false, "print the run statistics as JSON")
	return cmd
}

func newTranscriptsListCmd() *cobra.Command {
	var (
		channelID   string
		channelName string
		search      string
		preset      string
		limit       int
		jsonMode    bool
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List stored transcriptions, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, log, err := loadConfig()
			if err != nil {
				return err
			}

			store, err := persistence.Open(ctx, cfg.Database, log)
			if err != nil {
				return fmt.Errorf("failed to open database: %w", err)
			}
			defer store.Close()

			filter := persistence.TranscriptionFilter{
				ChannelID:   channelID,
				ChannelName: channelName,
				Search:      search,
				PerPage:     limit,
			}
			if preset != "" {
				start, end, err := transcripts.DatePreset(preset, time.Now().UTC())
				if err != nil {
					return err
				}
				filter.StartDate, filter.EndDate = &start, &end
			}

			list, err := store.Transcriptions().List(ctx, filter)
			if err != nil {
				return err
			}

			if jsonMode {
				return printJSON(cmd.OutOrStdout(), map[string]interface{}{
					"transcriptions": list,
					"statistics":     transcripts.Statistics(list),
				})
			}
			printTranscriptions(cmd.OutOrStdout(), list)
			return nil
		},
	}

	cmd.Flags().StringVar(&channelID, "channel-id", "", "only this channel id")
	cmd.Flags().StringVar(&channelName, "channel-name", "", "only this channel name")
	cmd.Flags().StringVar(&search, "search", "", "match title, transcript or summary")
	cmd.Flags().StringVar(&preset, "preset", "", "date range: yesterday, last_week, last_30d, last_3m, last_12m")
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum rows")
	cmd.Flags().BoolVar(&jsonMode, "json", false, "print JSON")
	return cmd
}

func printTranscriptions(w io.Writer, list []core.Transcription) {
	if len(list) == 0 {
		fmt.Fprintln(w, "No transcriptions found")
		return
	}

	for _, t := range list {
		posted := "unknown"
		if t.PostedAt != nil {
			posted = t.PostedAt.Format("2006-01-02")
		}
		mark := " "
		if t.HasSummary() {
			mark = "*"
		}
		fmt.Fprintf(w, "%-6d %s %-10s %-20s %s\n", t.ID, mark, posted, core.Truncate(t.ChannelName, 20), t.VideoTitle)
	}

	stats := transcripts.Statistics(list)
	fmt.Fprintf(w, "\nTotal: %d | With summary: %d | Without summary: %d\n", stats.Total, stats.WithSummary, stats.WithoutSummary)

	names := make([]string, 0, len(stats.ChannelCounts))
	for name := range stats.ChannelCounts {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(w, "  %s: %d\n", name, stats.ChannelCounts[name])
	}
}
