package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	App         App         `mapstructure:"app"`
	Logging     Logging     `mapstructure:"logging"`
	Database    Database    `mapstructure:"database"`
	AI          AI          `mapstructure:"ai"`
	Processing  Processing  `mapstructure:"processing"`
	Feeds       Feeds       `mapstructure:"feeds"`
	Briefing    Briefing    `mapstructure:"briefing"`
	Queue       Queue       `mapstructure:"queue"`
	Server      Server      `mapstructure:"server"`
	Archive     Archive     `mapstructure:"archive"`
	Profiles    Profiles    `mapstructure:"profiles"`
	Transcripts Transcripts `mapstructure:"transcripts"`

	// ConfigFile is the file the configuration was read from, if any.
	ConfigFile string `mapstructure:"-"`
}

// App holds general application configuration
type App struct {
	Name           string `mapstructure:"name"`
	Debug          bool   `mapstructure:"debug"`
	DefaultProfile string `mapstructure:"default_profile"`
}

// Logging holds logging configuration
type Logging struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Database holds storage configuration
type Database struct {
	Driver          string        `mapstructure:"driver"` // postgres or sqlite
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	AutoMigrate     bool          `mapstructure:"auto_migrate"`
}

// AI holds model endpoint configuration. Chat and embedding are configured
// separately and may point at different providers.
type AI struct {
	Chat      Chat      `mapstructure:"chat"`
	Embedding Embedding `mapstructure:"embedding"`
}

// Chat configures the chat completion endpoint
type Chat struct {
	Provider    string        `mapstructure:"provider"` // openai or gemini
	APIKey      string        `mapstructure:"api_key"`
	BaseURL     string        `mapstructure:"base_url"`
	Model       string        `mapstructure:"model"`
	MaxTokens   int           `mapstructure:"max_tokens"`
	Temperature float32       `mapstructure:"temperature"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

// Embedding configures the embedding endpoint
type Embedding struct {
	Provider     string        `mapstructure:"provider"` // openai, gemini or cohere
	APIKey       string        `mapstructure:"api_key"`
	BaseURL      string        `mapstructure:"base_url"`
	Model        string        `mapstructure:"model"`
	Dimensions   int           `mapstructure:"dimensions"`
	BatchSize    int           `mapstructure:"batch_size"`
	BatchDelay   time.Duration `mapstructure:"batch_delay"`
	MaxRetries   int           `mapstructure:"max_retries"`
	RetryBackoff time.Duration `mapstructure:"retry_backoff"`
	Timeout      time.Duration `mapstructure:"timeout"`
}

// Processing holds stage runner configuration
type Processing struct {
	BatchLimit    int           `mapstructure:"batch_limit"`
	CallDelay     time.Duration `mapstructure:"call_delay"`
	SummaryChars  int           `mapstructure:"summary_chars"`
	CategoryChars int           `mapstructure:"category_chars"`
}

// Feeds holds scraping configuration
type Feeds struct {
	UserAgent          string        `mapstructure:"user_agent"`
	Timeout            time.Duration `mapstructure:"timeout"`
	MaxArticlesPerFeed int           `mapstructure:"max_articles_per_feed"`
}

// Briefing holds briefing thresholds
type Briefing struct {
	LookbackHours   int `mapstructure:"lookback_hours"`
	MinArticles     int `mapstructure:"min_articles"`
	ClustersQtd     int `mapstructure:"clusters_qtd"`
	SimpleBriefMax  int `mapstructure:"simple_brief_max"`
	ArticlesPerPage int `mapstructure:"articles_per_page"`

	// MaxClusterSummaries caps the summaries sent in one cluster analysis prompt
	MaxClusterSummaries  int `mapstructure:"max_cluster_summaries"`
	// MaxSynthesisClusters caps the analyses sent to the final synthesis
	MaxSynthesisClusters int `mapstructure:"max_synthesis_clusters"`
}

// Queue holds Redis job queue configuration
type Queue struct {
	Addr        string        `mapstructure:"addr"`
	Password    string        `mapstructure:"password"`
	DB          int           `mapstructure:"db"`
	KeyPrefix   string        `mapstructure:"key_prefix"`
	PollTimeout time.Duration `mapstructure:"poll_timeout"`
	JobTTL      time.Duration `mapstructure:"job_ttl"`
}

// Server holds HTTP server configuration
type Server struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	CORS         CORS          `mapstructure:"cors"`
}

// CORS holds cross-origin configuration
type CORS struct {
	Enabled        bool     `mapstructure:"enabled"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// Archive holds S3 briefing archive configuration
type Archive struct {
	Enabled      bool   `mapstructure:"enabled"`
	Bucket       string `mapstructure:"bucket"`
	Prefix       string `mapstructure:"prefix"`
	Region       string `mapstructure:"region"`
	Profile      string `mapstructure:"profile"`
	UsePathStyle bool   `mapstructure:"use_path_style"`
}

// Profiles points at an optional YAML file with feed profile definitions
type Profiles struct {
	Path string `mapstructure:"path"`
}

// Transcripts configures ingestion of video transcript files
type Transcripts struct {
	Dir          string              `mapstructure:"dir"`
	SummaryChars int                 `mapstructure:"summary_chars"`
	Channels     []TranscriptChannel `mapstructure:"channels"`
}

// TranscriptChannel is a channel whose transcripts are accepted. Channels are
// a list rather than a map because channel IDs are case sensitive.
type TranscriptChannel struct {
	ID          string `mapstructure:"id"`
	Name        string `mapstructure:"name"`
	URL         string `mapstructure:"url"`
	Description string `mapstructure:"description"`
	Enabled     *bool  `mapstructure:"enabled"` // unset means enabled
}

// IsEnabled reports whether transcripts from the channel should be ingested.
func (c TranscriptChannel) IsEnabled() bool {
	return c.Enabled == nil || *c.Enabled
}

// Load reads configuration from defaults, an optional file, .env and the environment.
// Every call builds a fresh Config; nothing is cached globally.
func Load(configFile string) (*Config, error) {
	// Load .env file if it exists
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(".env"); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: Error loading .env file: %v\n", err)
		}
	}

	v := viper.New()
	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME")
		v.SetConfigName(".meridian")
		v.SetConfigType("yaml")
	}

	setDefaults(v)
	bindEnvironmentVariables(v)

	v.SetEnvPrefix("MERIDIAN")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || configFile != "" {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	config := &Config{}
	if err := v.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	config.ConfigFile = v.ConfigFileUsed()

	if err := postProcessConfig(config); err != nil {
		return nil, fmt.Errorf("error post-processing config: %w", err)
	}

	if err := validateConfig(config); err != nil {
		return nil, err
	}

	return config, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "meridian")
	v.SetDefault("app.debug", false)
	v.SetDefault("app.default_profile", "default")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "meridian.db")
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "5m")
	v.SetDefault("database.auto_migrate", true)

	v.SetDefault("ai.chat.provider", "openai")
	v.SetDefault("ai.chat.base_url", "https://api.deepseek.com/v1")
	v.SetDefault("ai.chat.model", "deepseek-chat")
	v.SetDefault("ai.chat.max_tokens", 2048)
	v.SetDefault("ai.chat.temperature", 0.7)
	v.SetDefault("ai.chat.timeout", "60s")

	v.SetDefault("ai.embedding.provider", "openai")
	v.SetDefault("ai.embedding.base_url", "https://api.together.xyz/v1")
	v.SetDefault("ai.embedding.model", "togethercomputer/m2-bert-80M-32k-retrieval")
	v.SetDefault("ai.embedding.dimensions", 768)
	v.SetDefault("ai.embedding.batch_size", 10)
	v.SetDefault("ai.embedding.batch_delay", "500ms")
	v.SetDefault("ai.embedding.max_retries", 2)
	v.SetDefault("ai.embedding.retry_backoff", "1s")
	v.SetDefault("ai.embedding.timeout", "30s")

	v.SetDefault("processing.batch_limit", 1000)
	v.SetDefault("processing.call_delay", "1s")
	v.SetDefault("processing.summary_chars", 4000)
	v.SetDefault("processing.category_chars", 2000)

	v.SetDefault("feeds.user_agent", "Meridian/1.0 (+https://github.com/meridian)")
	v.SetDefault("feeds.timeout", "30s")
	v.SetDefault("feeds.max_articles_per_feed", 50)

	v.SetDefault("briefing.lookback_hours", 24)
	v.SetDefault("briefing.min_articles", 5)
	v.SetDefault("briefing.clusters_qtd", 10)
	v.SetDefault("briefing.simple_brief_max", 10)
	v.SetDefault("briefing.articles_per_page", 15)
	v.SetDefault("briefing.max_cluster_summaries", 10)
	v.SetDefault("briefing.max_synthesis_clusters", 5)

	v.SetDefault("queue.addr", "localhost:6379")
	v.SetDefault("queue.db", 0)
	v.SetDefault("queue.key_prefix", "meridian")
	v.SetDefault("queue.poll_timeout", "5s")
	v.SetDefault("queue.job_ttl", "168h")

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "120s")
	v.SetDefault("server.cors.enabled", true)
	v.SetDefault("server.cors.allowed_origins", []string{"*"})

	v.SetDefault("archive.enabled", false)
	v.SetDefault("archive.prefix", "briefings")

	v.SetDefault("transcripts.dir", "transcripts")
	v.SetDefault("transcripts.summary_chars", 8000)
	v.SetDefault("transcripts.channels", []map[string]interface{}{
		{
			"id":          "UCbRP3c757lWg9M-U7TyEkXA",
			"name":        "Theo Browne",
			"url":         "https://www.youtube.com/feeds/videos.xml?channel_id=UCbRP3c757lWg9M-U7TyEkXA",
			"description": "Theo is a software dev, AI nerd, TypeScript sympathizer, creator of T3 Chat and the T3 Stack.",
		},
	})
}

// bindEnvironmentVariables sets up flexible environment variable binding
func bindEnvironmentVariables(v *viper.Viper) {
	bindEnvKeys(v, "ai.chat.api_key", []string{
		"CHAT_API_KEY",
		"DEEPSEEK_API_KEY",
		"GEMINI_API_KEY",
		"GOOGLE_AI_API_KEY",
	})

	bindEnvKeys(v, "ai.embedding.api_key", []string{
		"EMBEDDING_API_KEY",
		"TOGETHER_API_KEY",
		"COHERE_API_KEY",
		"GEMINI_API_KEY",
	})

	bindEnvKeys(v, "database.dsn", []string{
		"DATABASE_URL",
		"DATABASE_DSN",
	})

	bindEnvKeys(v, "queue.addr", []string{
		"REDIS_ADDR",
		"REDIS_HOST",
	})

	bindEnvKeys(v, "queue.password", []string{
		"REDIS_PASSWORD",
	})

	bindEnvKeys(v, "archive.bucket", []string{
		"ARCHIVE_BUCKET",
		"S3_BUCKET",
	})

	bindEnvKeys(v, "app.debug", []string{
		"DEBUG",
		"MERIDIAN_DEBUG",
	})
}

// bindEnvKeys binds the first found environment variable to a viper key
func bindEnvKeys(v *viper.Viper, viperKey string, envKeys []string) {
	for _, envKey := range envKeys {
		if value := os.Getenv(envKey); value != "" {
			v.Set(viperKey, value)
			return
		}
	}
}

// postProcessConfig applies post-processing to configuration values
func postProcessConfig(config *Config) error {
	if config.Database.Driver == "sqlite" && config.Database.DSN != "" {
		config.Database.DSN = expandPath(config.Database.DSN)
	}
	if config.Profiles.Path != "" {
		config.Profiles.Path = expandPath(config.Profiles.Path)
	}
	if config.Transcripts.Dir != "" {
		config.Transcripts.Dir = expandPath(config.Transcripts.Dir)
	}

	config.Database.Driver = strings.ToLower(config.Database.Driver)
	config.AI.Chat.Provider = strings.ToLower(config.AI.Chat.Provider)
	config.AI.Embedding.Provider = strings.ToLower(config.AI.Embedding.Provider)

	if config.App.Debug {
		config.Logging.Level = "debug"
	}

	durations := map[string]time.Duration{
		"processing.call_delay":      config.Processing.CallDelay,
		"ai.embedding.batch_delay":   config.AI.Embedding.BatchDelay,
		"ai.embedding.retry_backoff": config.AI.Embedding.RetryBackoff,
		"ai.chat.timeout":            config.AI.Chat.Timeout,
		"ai.embedding.timeout":       config.AI.Embedding.Timeout,
		"feeds.timeout":              config.Feeds.Timeout,
	}
	for key, d := range durations {
		if d < 0 {
			return fmt.Errorf("invalid duration for %s: %s", key, d)
		}
	}

	return nil
}

// expandPath expands ~ and environment variables in paths
func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return os.ExpandEnv(path)
}

// validateConfig ensures configuration values are coherent
func validateConfig(config *Config) error {
	var errors []string

	switch config.Database.Driver {
	case "postgres", "sqlite":
	default:
		errors = append(errors, fmt.Sprintf("Unknown database driver: %s. Supported: postgres, sqlite", config.Database.Driver))
	}
	if config.Database.DSN == "" {
		errors = append(errors, "Database DSN is required. Set DATABASE_URL or database.dsn in config file")
	}

	switch config.AI.Chat.Provider {
	case "openai", "gemini":
	default:
		errors = append(errors, fmt.Sprintf("Unknown chat provider: %s. Supported: openai, gemini", config.AI.Chat.Provider))
	}

	switch config.AI.Embedding.Provider {
	case "openai", "gemini", "cohere":
	default:
		errors = append(errors, fmt.Sprintf("Unknown embedding provider: %s. Supported: openai, gemini, cohere", config.AI.Embedding.Provider))
	}

	if config.AI.Embedding.BatchSize < 1 {
		errors = append(errors, "ai.embedding.batch_size must be at least 1")
	}
	if config.Briefing.MinArticles < 1 {
		errors = append(errors, "briefing.min_articles must be at least 1")
	}
	if config.Briefing.LookbackHours < 1 {
		errors = append(errors, "briefing.lookback_hours must be at least 1")
	}
	if config.Briefing.ClustersQtd < 2 {
		errors = append(errors, "briefing.clusters_qtd must be at least 2")
	}

	if config.Transcripts.SummaryChars < 1 {
		errors = append(errors, "transcripts.summary_chars must be at least 1")
	}
	for i, ch := range config.Transcripts.Channels {
		if ch.ID == "" {
			errors = append(errors, fmt.Sprintf("transcripts.channels[%d] is missing an id", i))
		}
	}

	if config.Archive.Enabled && config.Archive.Bucket == "" {
		errors = append(errors, "archive.bucket is required when the archive is enabled. Set ARCHIVE_BUCKET")
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration errors:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}

// RequireAI reports missing credentials for commands that call the model endpoints.
func (c *Config) RequireAI() error {
	var missing []string
	if !isValidAPIKey(c.AI.Chat.APIKey) {
		missing = append(missing, "Chat API key is required. Set DEEPSEEK_API_KEY (or CHAT_API_KEY) or ai.chat.api_key in config file")
	}
	if !isValidAPIKey(c.AI.Embedding.APIKey) {
		missing = append(missing, "Embedding API key is required. Set EMBEDDING_API_KEY or ai.embedding.api_key in config file")
	}
	if len(missing) > 0 {
		return fmt.Errorf("configuration errors:\n- %s", strings.Join(missing, "\n- "))
	}
	return nil
}

// isValidAPIKey checks if an API key is valid (not empty and not a placeholder)
func isValidAPIKey(apiKey string) bool {
	if apiKey == "" {
		return false
	}

	placeholders := []string{
		"your-api-key", "your-deepseek-key", "your-embedding-key",
		"YOUR_API_KEY", "PLACEHOLDER", "TODO", "CHANGE_ME",
	}

	for _, placeholder := range placeholders {
		if apiKey == placeholder {
			return false
		}
	}

	return true
}
