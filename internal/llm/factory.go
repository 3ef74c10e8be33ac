package llm

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"meridian/internal/config"
	"meridian/internal/throttle"
)

// NewFromConfig selects the chat and embedding backends named in cfg and
// combines them into a Gateway. Chat calls are traced at debug level.
func NewFromConfig(ctx context.Context, cfg config.AI, log zerolog.Logger) (*Gateway, error) {
	chat, err := newChat(ctx, cfg.Chat)
	if err != nil {
		return nil, fmt.Errorf("chat backend: %w", err)
	}

	embedder, err := newEmbedder(ctx, cfg.Embedding)
	if err != nil {
		return nil, fmt.Errorf("embedding backend: %w", err)
	}

	return NewGateway(NewTracedClient(chat, cfg.Chat.Model, log), embedder, Options{
		BatchSize:    cfg.Embedding.BatchSize,
		BatchLimiter: throttle.NewRateLimiter(cfg.Embedding.BatchDelay),
		MaxRetries:   cfg.Embedding.MaxRetries,
		RetryBackoff: cfg.Embedding.RetryBackoff,
		Logger:       log,
	}), nil
}

func newChat(ctx context.Context, cfg config.Chat) (ChatCompleter, error) {
	switch cfg.Provider {
	case "gemini":
		return NewGeminiClient(ctx, GeminiConfig{
			APIKey:      cfg.APIKey,
			Model:       cfg.Model,
			MaxTokens:   int32(cfg.MaxTokens),
			Temperature: cfg.Temperature,
		})
	case "openai", "":
		return NewOpenAIClient(OpenAIConfig{
			BaseURL:     cfg.BaseURL,
			APIKey:      cfg.APIKey,
			Model:       cfg.Model,
			MaxTokens:   cfg.MaxTokens,
			Temperature: cfg.Temperature,
			Timeout:     cfg.Timeout,
		})
	default:
		return nil, fmt.Errorf("unknown chat provider: %s", cfg.Provider)
	}
}

func newEmbedder(ctx context.Context, cfg config.Embedding) (Embedder, error) {
	switch cfg.Provider {
	case "gemini":
		return NewGeminiClient(ctx, GeminiConfig{
			APIKey:         cfg.APIKey,
			EmbeddingModel: cfg.Model,
			Dimensions:     int32(cfg.Dimensions),
		})
	case "cohere":
		return NewCohereEmbedder(cfg.APIKey, cfg.Model, cfg.Timeout)
	case "openai", "":
		return NewOpenAIClient(OpenAIConfig{
			BaseURL: cfg.BaseURL,
			APIKey:  cfg.APIKey,
			Model:   cfg.Model,
			Timeout: cfg.Timeout,
		})
	default:
		return nil, fmt.Errorf("unknown embedding provider: %s", cfg.Provider)
	}
}
