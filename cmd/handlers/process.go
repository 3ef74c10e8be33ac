package handlers

import (
	"github.com/spf13/cobra"

	"meridian/internal/processor"
)

// NewStageCmds creates one command per processing stage
func NewStageCmds() []*cobra.Command {
	return []*cobra.Command{
		newStageCmd("process", processor.StageSummarize,
			"Summarize and embed unprocessed articles",
			"Summarize every article without processed content, append its source\ncitation and store the summary embedding."),
		newStageCmd("rate", processor.StageRate,
			"Rate the impact of summarized articles",
			"Ask the model for a 1-10 impact rating of every summarized, unrated article."),
		newStageCmd("categorize", processor.StageCategorize,
			"Categorize summarized articles",
			"Classify every summarized, uncategorized article into the fixed category set."),
	}
}

func newStageCmd(use string, stage processor.Stage, short, long string) *cobra.Command {
	var opts processor.Options

	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Long: long + `

With --article-id only that article is handled, regardless of its state.`,
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

			stats, err := c.Processor.RunStage(ctx, stage, profile, opts)
			if err != nil {
				return err
			}
			printStats(cmd.OutOrStdout(), string(stage), stats)
			return nil
		},
	}

	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "maximum articles to handle (default from config: processing.batch_limit)")
	cmd.Flags().Int64Var(&opts.ArticleID, "article-id", 0, "handle a single article")
	return cmd
}
