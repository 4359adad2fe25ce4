package embedding

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

const defaultGenAIModel = "gemini-embedding-001"

// GenAIEngine generates embeddings through Google's Gemini API. Output
// dimensionality is pinned to Dimensions so vectors from either backend
// stay comparable in the store.
type GenAIEngine struct {
	client *genai.Client
	model  string
}

// NewGenAIEngine builds the GenAI backend.
func NewGenAIEngine(apiKey, model string) (*GenAIEngine, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("genai: API key is required")
	}
	if model == "" {
		model = defaultGenAIModel
	}
	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{APIKey: apiKey})
	if err != nil {
		return nil, fmt.Errorf("genai: create client: %w", err)
	}
	return &GenAIEngine{client: client, model: model}, nil
}

// Embed generates the embedding for one text.
func (e *GenAIEngine) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedBatch generates embeddings for multiple texts; the API has native
// batch support.
func (e *GenAIEngine) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	if len(texts) > MaxBatchSize {
		return nil, &InvalidInputError{Reason: fmt.Sprintf("batch of %d exceeds cap %d", len(texts), MaxBatchSize)}
	}

	contents := make([]*genai.Content, len(texts))
	for i, t := range texts {
		if strings.TrimSpace(t) == "" {
			return nil, &InvalidInputError{Reason: fmt.Sprintf("empty text at position %d", i)}
		}
		contents[i] = genai.NewContentFromText(truncateChars(t, MaxInputChars), genai.RoleUser)
	}

	dims := int32(Dimensions)
	result, err := e.client.Models.EmbedContent(ctx, e.model, contents,
		&genai.EmbedContentConfig{
			TaskType:             "SEMANTIC_SIMILARITY",
			OutputDimensionality: &dims,
		})
	if err != nil {
		return nil, &ProviderError{Provider: e.Name(), Err: err}
	}
	if len(result.Embeddings) != len(texts) {
		return nil, &ProviderError{Provider: e.Name(),
			Err: fmt.Errorf("got %d embeddings for %d inputs", len(result.Embeddings), len(texts))}
	}

	out := make([][]float32, len(result.Embeddings))
	for i, emb := range result.Embeddings {
		if len(emb.Values) != Dimensions {
			return nil, &ProviderError{Provider: e.Name(),
				Err: fmt.Errorf("vector %d has %d dimensions, want %d", i, len(emb.Values), Dimensions)}
		}
		out[i] = emb.Values
	}
	return out, nil
}

// Dimensions returns the pinned output size.
func (e *GenAIEngine) Dimensions() int { return Dimensions }

// Name returns the engine name.
func (e *GenAIEngine) Name() string { return "genai:" + e.model }
