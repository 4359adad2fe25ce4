package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"
)

const (
	defaultOpenAIBaseURL = "https://api.openai.com/v1"
	defaultOpenAIModel   = "text-embedding-3-small"
)

// OpenAIEngine generates embeddings through the OpenAI embeddings endpoint.
type OpenAIEngine struct {
	hc      *http.Client
	apiKey  string
	model   string
	baseURL string
}

// NewOpenAIEngine builds the OpenAI backend. baseURL is overridable for
// tests and compatible gateways.
func NewOpenAIEngine(apiKey, model, baseURL string) (*OpenAIEngine, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("openai: API key is required")
	}
	if model == "" {
		model = defaultOpenAIModel
	}
	if baseURL == "" {
		baseURL = defaultOpenAIBaseURL
	}
	return &OpenAIEngine{
		hc:      &http.Client{Timeout: 60 * time.Second},
		apiKey:  apiKey,
		model:   model,
		baseURL: strings.TrimRight(baseURL, "/"),
	}, nil
}

// Embed generates the embedding for one text.
func (e *OpenAIEngine) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

type openAIRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type openAIResponse struct {
	Data []struct {
		Index     int       `json:"index"`
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// EmbedBatch generates embeddings for up to MaxBatchSize texts.
func (e *OpenAIEngine) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	if len(texts) > MaxBatchSize {
		return nil, &InvalidInputError{Reason: fmt.Sprintf("batch of %d exceeds cap %d", len(texts), MaxBatchSize)}
	}
	input := make([]string, len(texts))
	for i, t := range texts {
		if strings.TrimSpace(t) == "" {
			return nil, &InvalidInputError{Reason: fmt.Sprintf("empty text at position %d", i)}
		}
		input[i] = truncateChars(t, MaxInputChars)
	}

	body, err := json.Marshal(openAIRequest{Model: e.model, Input: input})
	if err != nil {
		return nil, &ProviderError{Provider: e.Name(), Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, &ProviderError{Provider: e.Name(), Err: err}
	}
	req.Header.Set("Authorization", "Bearer "+e.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.hc.Do(req)
	if err != nil {
		return nil, &ProviderError{Provider: e.Name(), Err: err}
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 256<<20))
	if err != nil {
		return nil, &ProviderError{Provider: e.Name(), Err: err}
	}

	var parsed openAIResponse
	if err := json.Unmarshal(payload, &parsed); err != nil {
		if resp.StatusCode != http.StatusOK {
			return nil, &ProviderError{Provider: e.Name(), Status: resp.StatusCode,
				Err: fmt.Errorf("unparseable error body")}
		}
		return nil, &ProviderError{Provider: e.Name(), Err: err}
	}
	if resp.StatusCode != http.StatusOK {
		msg := "request failed"
		if parsed.Error != nil {
			msg = parsed.Error.Message
		}
		return nil, &ProviderError{Provider: e.Name(), Status: resp.StatusCode, Err: fmt.Errorf("%s", msg)}
	}
	if len(parsed.Data) != len(input) {
		return nil, &ProviderError{Provider: e.Name(),
			Err: fmt.Errorf("got %d embeddings for %d inputs", len(parsed.Data), len(input))}
	}

	// The API documents response order as request order, but index is
	// authoritative.
	sort.Slice(parsed.Data, func(i, j int) bool { return parsed.Data[i].Index < parsed.Data[j].Index })
	out := make([][]float32, len(parsed.Data))
	for i, d := range parsed.Data {
		if len(d.Embedding) != Dimensions {
			return nil, &ProviderError{Provider: e.Name(),
				Err: fmt.Errorf("vector %d has %d dimensions, want %d", i, len(d.Embedding), Dimensions)}
		}
		out[i] = d.Embedding
	}
	return out, nil
}

// Dimensions returns the configured output size.
func (e *OpenAIEngine) Dimensions() int { return Dimensions }

// Name returns the engine name.
func (e *OpenAIEngine) Name() string { return "openai:" + e.model }

func truncateChars(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}
