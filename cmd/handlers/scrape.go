package handlers

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewScrapeCmd creates the scrape command
func NewScrapeCmd() *cobra.Command {
	var url string

	cmd := &cobra.Command{
		Use:   "scrape",
		Short: "Fetch new articles from the profile's feeds",
		Long: `Read every enabled feed of the profile and store the articles whose URL
is not yet known. With --url a single page is scraped instead.

Examples:
  meridian scrape --profile brasil
  meridian scrape --url https://example.com/post --profile technology`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			c, log, err := buildComponents(ctx)
			if err != nil {
				return err
			}
			defer c.Close()

			profile, err := resolveProfile(c.Config)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			if url != "" {
				article, err := c.Scraper.ScrapeURL(ctx, url, profile)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "Stored article %d: %s\n", article.ID, article.Title)
				return nil
			}

			feeds := c.Profiles.EnabledFeeds(profile)
			if len(feeds) == 0 {
				return fmt.Errorf("no enabled feeds for profile %q", profile)
			}
			log.Info().Str("profile", string(profile)).Int("feeds", len(feeds)).Msg("Scraping feeds")

			stats, err := c.Scraper.Scrape(ctx, profile, feeds)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "scrape [%s]: feeds=%d new=%d errors=%d\n", profile, stats.TotalFeeds, stats.NewArticles, stats.Errors)
			return nil
		},
	}

	cmd.Flags().StringVar(&url, "url", "", "scrape a single article URL instead of the feeds")
	return cmd
}
