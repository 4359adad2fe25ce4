package embedding

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeEngine derives a deterministic vector from the text so alignment is
// checkable without a provider.
type fakeEngine struct {
	dims  int
	calls int
}

func (f *fakeEngine) Embed(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, &InvalidInputError{Reason: "empty text"}
	}
	vec := make([]float32, f.dims)
	for i, r := range text {
		vec[i%f.dims] += float32(r)
	}
	return vec, nil
}

func (f *fakeEngine) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	f.calls++
	out := make([][]float32, len(texts))
	for i, t := range texts {
		vec, err := f.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = vec
	}
	return out, nil
}

func (f *fakeEngine) Dimensions() int { return f.dims }
func (f *fakeEngine) Name() string    { return "fake" }

func TestCosineSimilarity(t *testing.T) {
	sim, ok := CosineSimilarity([]float32{1, 0}, []float32{1, 0})
	require.True(t, ok)
	assert.InDelta(t, 1.0, sim, 1e-9)

	sim, ok = CosineSimilarity([]float32{1, 0}, []float32{0, 1})
	require.True(t, ok)
	assert.InDelta(t, 0.0, sim, 1e-9)

	sim, ok = CosineSimilarity([]float32{1, 0}, []float32{-1, 0})
	require.True(t, ok)
	assert.InDelta(t, -1.0, sim, 1e-9)

	_, ok = CosineSimilarity([]float32{1, 0}, []float32{1, 0, 0})
	assert.False(t, ok)
	_, ok = CosineSimilarity([]float32{0, 0}, []float32{1, 0})
	assert.False(t, ok)
	_, ok = CosineSimilarity(nil, nil)
	assert.False(t, ok)
}

func TestEmbedManyAlignsFilteredInputs(t *testing.T) {
	eng := &fakeEngine{dims: 8}
	texts := []string{"alpha", "", "beta", "   ", "gamma"}

	vecs, err := EmbedMany(context.Background(), eng, texts)
	require.NoError(t, err)
	require.Len(t, vecs, len(texts))

	assert.Nil(t, vecs[1])
	assert.Nil(t, vecs[3])

	// Each surviving position must equal the single-call result.
	for _, i := range []int{0, 2, 4} {
		single, err := eng.Embed(context.Background(), texts[i])
		require.NoError(t, err)
		assert.Equal(t, single, vecs[i], "position %d", i)
	}
}

func TestEmbedManyAllEmpty(t *testing.T) {
	eng := &fakeEngine{dims: 4}
	vecs, err := EmbedMany(context.Background(), eng, []string{"", "  "})
	require.NoError(t, err)
	assert.Equal(t, [][]float32{nil, nil}, vecs)
	assert.Zero(t, eng.calls)
}

func TestNewEngineRejectsUnknownProvider(t *testing.T) {
	_, err := NewEngine(Config{Provider: "abacus"})
	assert.Error(t, err)
}

func TestProviderErrorFormatting(t *testing.T) {
	err := &ProviderError{Provider: "openai:test", Status: 503, Err: fmt.Errorf("overloaded")}
	assert.Contains(t, err.Error(), "503")
	assert.Contains(t, err.Error(), "overloaded")
}
