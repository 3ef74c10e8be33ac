package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	cohere "github.com/cohere-ai/cohere-go/v2"
	cohereclient "github.com/cohere-ai/cohere-go/v2/client"
)

// DefaultCohereModel is used when no embed-* model is configured.
const DefaultCohereModel = "embed-english-v3.0"

// CohereEmbedder implements Embedder using the Cohere Embed API (v2).
type CohereEmbedder struct {
	client *cohereclient.Client
	model  string
}

var _ Embedder = (*CohereEmbedder)(nil)

// NewCohereEmbedder creates an embedder for the given key and model.
func NewCohereEmbedder(apiKey, model string, timeout time.Duration) (*CohereEmbedder, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("cohere: %w", ErrMissingAPIKey)
	}
	if model == "" || !strings.HasPrefix(model, "embed-") {
		model = DefaultCohereModel
	}
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	client := cohereclient.NewClient(
		cohereclient.WithToken(apiKey),
		cohereclient.WithHTTPClient(&http.Client{Timeout: timeout}),
	)
	return &CohereEmbedder{client: client, model: model}, nil
}

// EmbedTexts implements Embedder.
func (c *CohereEmbedder) EmbedTexts(ctx context.Context, texts []string) ([][]float64, error) {
	if len(texts) == 0 {
		return [][]float64{}, nil
	}

	resp, err := c.client.V2.Embed(ctx, &cohere.V2EmbedRequest{
		Texts:          texts,
		Model:          c.model,
		InputType:      cohere.EmbedInputTypeSearchDocument,
		EmbeddingTypes: []cohere.EmbeddingType{cohere.EmbeddingTypeFloat},
	})
	if err != nil {
		return nil, fmt.Errorf("cohere embed error: %w", err)
	}
	if resp == nil || resp.Embeddings == nil || resp.Embeddings.Float == nil {
		return nil, errors.New("cohere embed returned no float embeddings")
	}

	floats := resp.Embeddings.Float
	if len(floats) != len(texts) {
		return nil, errors.New("embedding count mismatch")
	}
	return floats, nil
}
