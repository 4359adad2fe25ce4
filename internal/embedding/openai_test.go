package embedding

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openAIServer(t *testing.T, handler http.HandlerFunc) *OpenAIEngine {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	eng, err := NewOpenAIEngine("test-key", "", srv.URL)
	require.NoError(t, err)
	return eng
}

func TestOpenAIEmbedBatch(t *testing.T) {
	eng := openAIServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/embeddings", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req openAIRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, defaultOpenAIModel, req.Model)

		resp := openAIResponse{}
		// Reversed order: the client must realign by index.
		for i := len(req.Input) - 1; i >= 0; i-- {
			vec := make([]float32, Dimensions)
			vec[0] = float32(i + 1)
			resp.Data = append(resp.Data, struct {
				Index     int       `json:"index"`
				Embedding []float32 `json:"embedding"`
			}{Index: i, Embedding: vec})
		}
		json.NewEncoder(w).Encode(resp)
	})

	vecs, err := eng.EmbedBatch(context.Background(), []string{"one", "two"})
	require.NoError(t, err)
	require.Len(t, vecs, 2)
	assert.Equal(t, float32(1), vecs[0][0])
	assert.Equal(t, float32(2), vecs[1][0])
}

func TestOpenAIEmptyInputIsInvalid(t *testing.T) {
	eng := openAIServer(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("no request expected")
	})
	_, err := eng.EmbedBatch(context.Background(), []string{"ok", "   "})
	var invalid *InvalidInputError
	assert.True(t, errors.As(err, &invalid))
}

func TestOpenAIServerErrorIsProviderError(t *testing.T) {
	eng := openAIServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte(`{"error":{"message":"overloaded","type":"server_error"}}`))
	})
	_, err := eng.Embed(context.Background(), "text")
	var provider *ProviderError
	require.True(t, errors.As(err, &provider))
	assert.Equal(t, http.StatusServiceUnavailable, provider.Status)
}

func TestOpenAIDimensionMismatchRejected(t *testing.T) {
	eng := openAIServer(t, func(w http.ResponseWriter, r *http.Request) {
		resp := openAIResponse{}
		resp.Data = append(resp.Data, struct {
			Index     int       `json:"index"`
			Embedding []float32 `json:"embedding"`
		}{Index: 0, Embedding: []float32{1, 2, 3}})
		json.NewEncoder(w).Encode(resp)
	})
	_, err := eng.Embed(context.Background(), "text")
	var provider *ProviderError
	assert.True(t, errors.As(err, &provider))
}

func TestOpenAIRequiresKey(t *testing.T) {
	_, err := NewOpenAIEngine("", "", "")
	assert.Error(t, err)
}
