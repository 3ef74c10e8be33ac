package handlers

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"meridian/internal/pipeline"
	"meridian/internal/processor"
)

// NewRunCmd creates the run command
func NewRunCmd() *cobra.Command {
	var (
		opts   pipeline.RunOptions
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run scrape, processing and briefing in one go",
		Long: `Run the whole daily pipeline for a profile:
  1. scrape the enabled feeds
  2. summarize and embed
  3. rate
  4. categorize
  5. generate the briefing

Examples:
  meridian run --profile technology
  meridian run --profile brasil --skip-scrape --simple`,
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

			result, err := c.Pipeline.Run(ctx, profile, opts)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON {
				return printJSON(out, result)
			}

			if !opts.SkipScrape {
				fmt.Fprintf(out, "scrape [%s]: feeds=%d new=%d errors=%d\n",
					profile, result.Scraping.TotalFeeds, result.Scraping.NewArticles, result.Scraping.Errors)
			}
			for _, stage := range processor.Stages {
				printStats(out, string(stage), result.Stages[stage])
			}
			if err := printBrief(out, result.Brief); err != nil {
				return err
			}
			fmt.Fprintf(out, "total: %s\n", result.Duration.Round(time.Millisecond))
			return nil
		},
	}

	cmd.Flags().BoolVar(&opts.SkipScrape, "skip-scrape", false, "process articles already stored")
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "per-stage article limit")
	cmd.Flags().BoolVar(&opts.SimpleBrief, "simple", false, "generate a simple brief instead of clustering")
	cmd.Flags().IntVar(&opts.Overrides.LookbackHours, "lookback", 0, "hours of articles to consider (default from config)")
	cmd.Flags().IntVar(&opts.Overrides.MinArticles, "min-articles", 0, "minimum articles required (default from config)")
	cmd.Flags().IntVar(&opts.Overrides.ClustersQtd, "clusters", 0, "requested number of clusters (default from config)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the run result as JSON")
	return cmd
}
