package handlers

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"meridian/internal/briefing"
	"meridian/internal/prompts"
)

// NewBriefCmd creates the brief command
func NewBriefCmd() *cobra.Command {
	var overrides prompts.BriefingOverrides

	cmd := &cobra.Command{
		Use:   "brief",
		Short: "Cluster recent articles and synthesize a briefing",
		Long: `Cluster the profile's recent summarized articles by embedding, analyze
each cluster and synthesize the strongest clusters into a Markdown briefing.
The briefing is stored and printed.

Examples:
  meridian brief --profile technology
  meridian brief --profile brasil --lookback 48 --min-articles 10 --clusters 8`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			c, _, err := buildComponents(ctx)
			if err != nil {
				return err
			}
			defer c.Close()

			profile, err := resolveProfile(c.Config)
			if err != nil {
				return err
			}

			result, err := c.Briefing.GenerateBrief(ctx, profile, overrides)
			if err != nil {
				return err
			}
			return printBrief(cmd.OutOrStdout(), result)
		},
	}

	cmd.Flags().IntVar(&overrides.LookbackHours, "lookback", 0, "hours of articles to consider (default from config)")
	cmd.Flags().IntVar(&overrides.MinArticles, "min-articles", 0, "minimum articles required (default from config)")
	cmd.Flags().IntVar(&overrides.ClustersQtd, "clusters", 0, "requested number of clusters (default from config)")
	return cmd
}

// NewSimpleBriefCmd creates the simple-brief command
func NewSimpleBriefCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "simple-brief",
		Short: "Synthesize a briefing from the top rated articles",
		Long: `Build a briefing from the highest rated recent articles without clustering.

Example:
  meridian simple-brief --profile health --limit 5`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			c, _, err := buildComponents(ctx)
			if err != nil {
				return err
			}
			defer c.Close()

			profile, err := resolveProfile(c.Config)
			if err != nil {
				return err
			}

			result, err := c.Briefing.GenerateSimpleBrief(ctx, profile, limit)
			if err != nil {
				return err
			}
			return printBrief(cmd.OutOrStdout(), result)
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 0, "number of articles (default from config: briefing.simple_brief_max)")
	return cmd
}

func printBrief(w io.Writer, result briefing.Result) error {
	if !result.Success {
		return fmt.Errorf("brief not generated: %s", result.Error)
	}
	fmt.Fprintln(w, result.Content)
	fmt.Fprintf(w, "\n---\nbriefing %d: articles=%d clusters=%d used=%d\n",
		result.BriefingID, result.Stats.ArticlesAnalyzed, result.Stats.ClustersGenerated, result.Stats.ClustersUsed)
	return nil
}
