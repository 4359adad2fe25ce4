// Package embedding wraps the external text->vector providers and the
// indexer that keeps stored records embedded. Supported backends: OpenAI
// (text-embedding-3-small) and Google GenAI (gemini-embedding-001 pinned to
// the same output dimensionality).
package embedding

import (
	"context"
	"fmt"
	"math"
	"strings"
)

// Dimensions is the vector size every backend must produce.
const Dimensions = 1536

// MaxInputChars approximates the provider's per-item token cap.
const MaxInputChars = 8000

// MaxBatchSize is the provider's per-call item cap.
const MaxBatchSize = 2048

// =============================================================================
// ENGINE INTERFACE
// =============================================================================

// Engine generates vector embeddings for text.
type Engine interface {
	// Embed generates the embedding for a single text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates embeddings for multiple texts, order-preserving.
	// Callers pass at most MaxBatchSize non-empty texts.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the vector size the engine produces.
	Dimensions() int

	// Name identifies the engine for logs and stats.
	Name() string
}

// =============================================================================
// ERRORS
// =============================================================================

// InvalidInputError marks a caller mistake: empty or whitespace-only input.
type InvalidInputError struct {
	Reason string
}

func (e *InvalidInputError) Error() string {
	return "invalid embedding input: " + e.Reason
}

// ProviderError marks a transport or service failure at the provider.
type ProviderError struct {
	Provider string
	Status   int
	Err      error
}

func (e *ProviderError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s: HTTP %d: %v", e.Provider, e.Status, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Provider, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// =============================================================================
// CONFIG / FACTORY
// =============================================================================

// Config selects and tunes a backend.
type Config struct {
	Provider string `yaml:"provider"` // "openai" or "genai"
	APIKey   string `yaml:"api_key"`
	Model    string `yaml:"model"`
	BaseURL  string `yaml:"base_url"`
}

// NewEngine creates the configured backend.
func NewEngine(cfg Config) (Engine, error) {
	switch cfg.Provider {
	case "", "openai":
		return NewOpenAIEngine(cfg.APIKey, cfg.Model, cfg.BaseURL)
	case "genai":
		return NewGenAIEngine(cfg.APIKey, cfg.Model)
	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s (use 'openai' or 'genai')", cfg.Provider)
	}
}

// =============================================================================
// BATCH ALIGNMENT
// =============================================================================

// EmbedMany embeds texts preserving positions. Empty and whitespace-only
// entries are filtered out before the provider call and come back as nil
// vectors at their original positions. Lists beyond MaxBatchSize are
// chunked and the results concatenated in order.
func EmbedMany(ctx context.Context, e Engine, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))

	var batch []string
	var positions []int
	for i, t := range texts {
		if strings.TrimSpace(t) == "" {
			continue
		}
		batch = append(batch, t)
		positions = append(positions, i)
	}
	if len(batch) == 0 {
		return out, nil
	}

	for start := 0; start < len(batch); start += MaxBatchSize {
		end := start + MaxBatchSize
		if end > len(batch) {
			end = len(batch)
		}
		vecs, err := e.EmbedBatch(ctx, batch[start:end])
		if err != nil {
			return nil, err
		}
		if len(vecs) != end-start {
			return nil, &ProviderError{Provider: e.Name(),
				Err: fmt.Errorf("batch returned %d vectors for %d inputs", len(vecs), end-start)}
		}
		for j, v := range vecs {
			out[positions[start+j]] = v
		}
	}
	return out, nil
}

// =============================================================================
// COSINE SIMILARITY
// =============================================================================

// CosineSimilarity computes the cosine of the angle between two vectors,
// in [-1, 1]. Mismatched lengths or zero-norm inputs return ok=false.
func CosineSimilarity(a, b []float32) (float64, bool) {
	if len(a) == 0 || len(a) != len(b) {
		return 0, false
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0, false
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB)), true
}
