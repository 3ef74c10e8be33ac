package llm

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// TracedClient wraps a ChatCompleter and logs latency and size of every call.
type TracedClient struct {
	client ChatCompleter
	model  string
	log    zerolog.Logger
}

var _ ChatCompleter = (*TracedClient)(nil)

// NewTracedClient creates a new traced chat client
func NewTracedClient(client ChatCompleter, model string, log zerolog.Logger) *TracedClient {
	return &TracedClient{client: client, model: model, log: log}
}

// Complete implements ChatCompleter with tracing
func (tc *TracedClient) Complete(ctx context.Context, prompt, systemPrompt string) (string, error) {
	startTime := time.Now()
	result, err := tc.client.Complete(ctx, prompt, systemPrompt)
	latencyMs := time.Since(startTime).Milliseconds()

	event := tc.log.Debug()
	if err != nil {
		event = tc.log.Warn().Err(err)
	}
	event.
		Str("model", tc.model).
		Int64("latency_ms", latencyMs).
		Int("estimated_tokens", estimateTokens(prompt+systemPrompt, result)).
		Msg("chat completion")

	return result, err
}

// estimateTokens estimates token count (rough approximation: 1 token ≈ 4 chars)
func estimateTokens(prompt, completion string) int {
	return (len(prompt) + len(completion)) / 4
}
