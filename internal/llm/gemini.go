package llm

import (
	"context"
	"fmt"

	"google.golang.org/genai"
)

const (
	// DefaultGeminiModel is the default Gemini chat model.
	DefaultGeminiModel = "gemini-flash-lite-latest"
	// DefaultGeminiEmbeddingModel is the default Gemini embedding model
	DefaultGeminiEmbeddingModel = "gemini-embedding-001"
	// DefaultEmbeddingDimensions is the output dimension for embeddings (Matryoshka)
	DefaultEmbeddingDimensions = int32(768)
)

// GeminiConfig configures a GeminiClient.
type GeminiConfig struct {
	APIKey         string
	Model          string
	EmbeddingModel string
	Dimensions     int32
	MaxTokens      int32
	Temperature    float32
}

// GeminiClient implements ChatCompleter and Embedder on the Gemini API.
type GeminiClient struct {
	cfg     GeminiConfig
	gClient *genai.Client
}

var (
	_ ChatCompleter = (*GeminiClient)(nil)
	_ Embedder      = (*GeminiClient)(nil)
)

// NewGeminiClient creates a new Gemini backed client.
func NewGeminiClient(ctx context.Context, cfg GeminiConfig) (*GeminiClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini: %w", ErrMissingAPIKey)
	}
	if cfg.Model == "" {
		cfg.Model = DefaultGeminiModel
	}
	if cfg.EmbeddingModel == "" {
		cfg.EmbeddingModel = DefaultGeminiEmbeddingModel
	}
	if cfg.Dimensions <= 0 {
		cfg.Dimensions = DefaultEmbeddingDimensions
	}

	gClient, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return &GeminiClient{cfg: cfg, gClient: gClient}, nil
}

// Complete implements ChatCompleter.
func (c *GeminiClient) Complete(ctx context.Context, prompt, systemPrompt string) (string, error) {
	contents := []*genai.Content{{
		Parts: []*genai.Part{{Text: prompt}},
		Role:  "user",
	}}

	config := &genai.GenerateContentConfig{}
	if c.cfg.MaxTokens > 0 {
		config.MaxOutputTokens = c.cfg.MaxTokens
	}
	if c.cfg.Temperature > 0 {
		temp := c.cfg.Temperature
		config.Temperature = &temp
	}
	if systemPrompt != "" {
		config.SystemInstruction = &genai.Content{Parts: []*genai.Part{{Text: systemPrompt}}}
	}

	resp, err := c.gClient.Models.GenerateContent(ctx, c.cfg.Model, contents, config)
	if err != nil {
		return "", fmt.Errorf("failed to generate content: %w", err)
	}

	text := resp.Text()
	if text == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}

// EmbedTexts implements Embedder. Each text is sent as its own content so the
// response carries one embedding per input.
func (c *GeminiClient) EmbedTexts(ctx context.Context, texts []string) ([][]float64, error) {
	contents := make([]*genai.Content, len(texts))
	for i, text := range texts {
		contents[i] = &genai.Content{
			Parts: []*genai.Part{{Text: text}},
			Role:  "user",
		}
	}

	dims := c.cfg.Dimensions
	resp, err := c.gClient.Models.EmbedContent(ctx, c.cfg.EmbeddingModel, contents, &genai.EmbedContentConfig{
		OutputDimensionality: &dims,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to generate embedding: %w", err)
	}
	if resp == nil || len(resp.Embeddings) != len(texts) {
		return nil, ErrNoEmbedding
	}

	out := make([][]float64, len(resp.Embeddings))
	for i, emb := range resp.Embeddings {
		if emb == nil {
			continue
		}
		vec := make([]float64, len(emb.Values))
		for j, v := range emb.Values {
			vec[j] = float64(v)
		}
		out[i] = vec
	}
	return out, nil
}
