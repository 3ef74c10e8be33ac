package handlers

import (
	"fmt"

	"github.com/spf13/cobra"

	"meridian/internal/profiles"
)

// NewProfilesCmd creates the profiles command
func NewProfilesCmd() *cobra.Command {
	var showFeeds bool

	cmd := &cobra.Command{
		Use:   "profiles",
		Short: "List feed profiles and their feeds",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := loadConfig()
			if err != nil {
				return err
			}

			registry := profiles.NewRegistry()
			if cfg.Profiles.Path != "" {
				if registry, err = profiles.LoadFile(cfg.Profiles.Path); err != nil {
					return err
				}
			}

			out := cmd.OutOrStdout()
			for _, name := range registry.Available() {
				feeds := registry.Feeds(name)
				enabled := registry.EnabledFeeds(name)
				fmt.Fprintf(out, "%-12s %d/%d feeds enabled\n", name, len(enabled), len(feeds))
				if !showFeeds {
					continue
				}
				for _, f := range feeds {
					mark := " "
					if f.IsEnabled() {
						mark = "*"
					}
					fmt.Fprintf(out, "  %s %-28s %s\n", mark, f.Name, f.URL)
				}
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&showFeeds, "feeds", false, "list every feed")
	return cmd
}
