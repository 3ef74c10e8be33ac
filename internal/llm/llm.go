package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/eapache/go-resiliency/retrier"
	"github.com/rs/zerolog"

	"meridian/internal/throttle"
)

var (
	// ErrEmptyResponse is returned when the model answers with no text.
	ErrEmptyResponse = errors.New("empty response from model")
	// ErrNoEmbedding is returned when the embedding endpoint returns no vector.
	ErrNoEmbedding = errors.New("no embedding values returned")
	// ErrMissingAPIKey is returned by constructors when no credential is configured.
	ErrMissingAPIKey = errors.New("api key is required")
)

const (
	// DefaultBatchSize is the largest embedding batch sent in one request.
	DefaultBatchSize = 10
	// DefaultBatchDelay spaces consecutive embedding batches.
	DefaultBatchDelay = 500 * time.Millisecond

	pingPrompt = `Respond with "OK" if you can read this.`
	pingText   = "This is a test for embedding API connectivity."
)

// ChatCompleter turns a prompt into model text.
type ChatCompleter interface {
	Complete(ctx context.Context, prompt, systemPrompt string) (string, error)
}

// Embedder turns texts into vectors, one per input, in input order.
type Embedder interface {
	EmbedTexts(ctx context.Context, texts []string) ([][]float64, error)
}

// Options tunes the embedding path of a Gateway.
type Options struct {
	BatchSize    int
	BatchLimiter throttle.Limiter
	MaxRetries   int
	RetryBackoff time.Duration
	Logger       zerolog.Logger
}

// Gateway is the single entry point to the chat and embedding endpoints.
// Every failure is returned as an error; callers decide whether to count it or abort.
type Gateway struct {
	chat     ChatCompleter
	embedder Embedder
	opts     Options
	log      zerolog.Logger
}

// NewGateway combines a chat backend and an embedding backend.
func NewGateway(chat ChatCompleter, embedder Embedder, opts Options) *Gateway {
	if opts.BatchSize <= 0 || opts.BatchSize > DefaultBatchSize {
		opts.BatchSize = DefaultBatchSize
	}
	if opts.BatchLimiter == nil {
		opts.BatchLimiter = throttle.NewRateLimiter(DefaultBatchDelay)
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}
	return &Gateway{
		chat:     chat,
		embedder: embedder,
		opts:     opts,
		log:      opts.Logger.With().Str("component", "llm").Logger(),
	}
}

// ChatComplete sends one prompt with an optional system prompt and returns trimmed text.
func (g *Gateway) ChatComplete(ctx context.Context, prompt, systemPrompt string) (string, error) {
	if strings.TrimSpace(prompt) == "" {
		return "", fmt.Errorf("prompt cannot be empty")
	}

	text, err := g.chat.Complete(ctx, prompt, systemPrompt)
	if err != nil {
		g.log.Warn().Err(err).Msg("chat completion failed")
		return "", err
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}

// Embed returns the embedding of one text, retrying with exponential backoff.
func (g *Gateway) Embed(ctx context.Context, text string) ([]float64, error) {
	vectors, err := g.embedWithRetry(ctx, []string{text})
	if err != nil {
		g.log.Warn().Err(err).Msg("embedding failed")
		return nil, err
	}
	if len(vectors) == 0 || len(vectors[0]) == 0 {
		return nil, ErrNoEmbedding
	}
	return vectors[0], nil
}

// EmbedBatch embeds texts in batches of at most BatchSize, pacing batches with
// the batch limiter. A failed batch yields nil entries for each of its texts.
// The returned error is non-nil only when ctx ends.
func (g *Gateway) EmbedBatch(ctx context.Context, texts []string) ([][]float64, error) {
	results := make([][]float64, 0, len(texts))

	for start := 0; start < len(texts); start += g.opts.BatchSize {
		end := start + g.opts.BatchSize
		if end > len(texts) {
			end = len(texts)
		}
		batch := texts[start:end]

		if err := g.opts.BatchLimiter.Wait(ctx); err != nil {
			return results, err
		}

		vectors, err := g.embedWithRetry(ctx, batch)
		if err != nil {
			if ctx.Err() != nil {
				return results, ctx.Err()
			}
			g.log.Warn().Err(err).Int("batch_start", start).Int("batch_size", len(batch)).Msg("embedding batch failed")
			vectors = nil
		}

		for i := range batch {
			if i < len(vectors) && len(vectors[i]) > 0 {
				results = append(results, vectors[i])
			} else {
				results = append(results, nil)
			}
		}
	}

	return results, nil
}

func (g *Gateway) embedWithRetry(ctx context.Context, texts []string) ([][]float64, error) {
	var vectors [][]float64
	r := retrier.New(retrier.ExponentialBackoff(g.opts.MaxRetries, g.opts.RetryBackoff), nil)
	err := r.RunCtx(ctx, func(ctx context.Context) error {
		out, err := g.embedder.EmbedTexts(ctx, texts)
		if err != nil {
			return err
		}
		vectors = out
		return nil
	})
	return vectors, err
}

// ConnectivityReport is the result of Ping.
type ConnectivityReport struct {
	Chat      bool     `json:"chat"`
	Embedding bool     `json:"embedding"`
	Errors    []string `json:"errors,omitempty"`
}

// Ping issues one tiny request against each endpoint.
func (g *Gateway) Ping(ctx context.Context) ConnectivityReport {
	var report ConnectivityReport

	if _, err := g.ChatComplete(ctx, pingPrompt, ""); err != nil {
		report.Errors = append(report.Errors, fmt.Sprintf("chat API error: %v", err))
	} else {
		report.Chat = true
	}

	if _, err := g.Embed(ctx, pingText); err != nil {
		report.Errors = append(report.Errors, fmt.Sprintf("embedding API error: %v", err))
	} else {
		report.Embedding = true
	}

	return report
}
