package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"

	"meridian/internal/config"
	"meridian/internal/core"
	"meridian/internal/logger"
	"meridian/internal/pipeline"
)

// loadConfig reads the configuration and initializes the process logger
func loadConfig() (*config.Config, zerolog.Logger, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, zerolog.Nop(), fmt.Errorf("failed to load config: %w", err)
	}

	logger.Init(logger.Options{Level: cfg.Logging.Level, Format: cfg.Logging.Format})
	log := *logger.Get()
	if cfg.ConfigFile != "" {
		log.Debug().Str("file", cfg.ConfigFile).Msg("Using config file")
	}
	return cfg, log, nil
}

// buildComponents loads the configuration and wires every component.
// Callers must Close the result.
func buildComponents(ctx context.Context) (*pipeline.Components, zerolog.Logger, error) {
	cfg, log, err := loadConfig()
	if err != nil {
		return nil, log, err
	}
	if err := cfg.RequireAI(); err != nil {
		return nil, log, err
	}

	components, err := pipeline.NewBuilder(cfg).WithLogger(log).Build(ctx)
	if err != nil {
		return nil, log, err
	}
	return components, log, nil
}

// resolveProfile picks the --profile flag, then the configured default
func resolveProfile(cfg *config.Config) (core.FeedProfile, error) {
	name := profileName
	if name == "" {
		name = cfg.App.DefaultProfile
	}
	if name == "" {
		return core.ProfileDefault, nil
	}
	return core.ParseProfile(name)
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printStats(w io.Writer, label string, stats core.ProcessingStats) {
	fmt.Fprintf(w, "%s [%s]: processed=%d rated=%d categorized=%d errors=%d (%s)\n",
		label, stats.FeedProfile, stats.Processed, stats.Rated, stats.Categorized, stats.Errors,
		stats.Duration().Round(time.Millisecond))
}
