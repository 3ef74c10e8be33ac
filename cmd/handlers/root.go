/*
Copyright © 2025 Your Name

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package handlers

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	cfgFile     string
	profileName string
)

// NewRootCmd creates the root command with all subcommands attached
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "meridian",
		Short: "Meridian turns news feeds into daily briefings.",
		Long: `Meridian scrapes RSS feeds per profile, summarizes, rates and categorizes
each article with a language model, clusters the day's articles by topic and
synthesizes the clusters into a Markdown briefing.

Typical daily flow:
  meridian run --profile technology

Or step by step:
  meridian scrape --profile technology
  meridian process --profile technology
  meridian rate --profile technology
  meridian categorize --profile technology
  meridian brief --profile technology`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.meridian.yaml)")
	rootCmd.PersistentFlags().StringVarP(&profileName, "profile", "p", "", "feed profile (default from config: app.default_profile)")

	rootCmd.AddCommand(NewScrapeCmd())
	rootCmd.AddCommand(NewStageCmds()...)
	rootCmd.AddCommand(NewBriefCmd())
	rootCmd.AddCommand(NewSimpleBriefCmd())
	rootCmd.AddCommand(NewRunCmd())
	rootCmd.AddCommand(NewEnqueueCmd())
	rootCmd.AddCommand(NewWorkerCmd())
	rootCmd.AddCommand(NewServeCmd())
	rootCmd.AddCommand(NewMigrateCmd())
	rootCmd.AddCommand(NewProfilesCmd())
	rootCmd.AddCommand(NewPingCmd())
	rootCmd.AddCommand(NewTranscriptsCmd())

	return rootCmd
}

// Execute runs the root command
func Execute() {
	rootCmd := NewRootCmd()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
