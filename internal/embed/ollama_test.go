package embed

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newFakeOllama starts a test server that lists the given models and
// answers /api/embed with fixed-dimension embeddings.
func newFakeOllama(t *testing.T, models []string, dims int) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/api/tags", func(w http.ResponseWriter, r *http.Request) {
		infos := make([]OllamaModelInfo, len(models))
		for i, m := range models {
			infos[i] = OllamaModelInfo{Name: m}
		}
		_ = json.NewEncoder(w).Encode(OllamaModelListResponse{Models: infos})
	})
	mux.HandleFunc("/api/embed", func(w http.ResponseWriter, r *http.Request) {
		var req OllamaEmbedRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		count := 1
		if arr, ok := req.Input.([]any); ok {
			count = len(arr)
		}
		embeddings := make([][]float64, count)
		for i := range embeddings {
			vec := make([]float64, dims)
			vec[i%dims] = 1
			embeddings[i] = vec
		}
		_ = json.NewEncoder(w).Encode(OllamaEmbedResponse{Model: req.Model, Embeddings: embeddings})
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestOllamaEmbedder(t *testing.T) {
	ctx := context.Background()

	t.Run("detects model and dimensions on startup", func(t *testing.T) {
		srv := newFakeOllama(t, []string{"nomic-embed-text:latest"}, 768)

		e, err := NewOllamaEmbedder(ctx, OllamaConfig{Host: srv.URL})
		require.NoError(t, err)
		defer e.Close()

		assert.Equal(t, "nomic-embed-text:latest", e.ModelName())
		assert.Equal(t, 768, e.Dimensions())
		assert.True(t, e.Available(ctx))
	})

	t.Run("falls back to an installed model", func(t *testing.T) {
		srv := newFakeOllama(t, []string{"mxbai-embed-large:latest"}, 1024)

		e, err := NewOllamaEmbedder(ctx, OllamaConfig{Host: srv.URL})
		require.NoError(t, err)
		defer e.Close()

		assert.Equal(t, "mxbai-embed-large:latest", e.ModelName())
		assert.Equal(t, 1024, e.Dimensions())
	})

	t.Run("errors when no embedding model installed", func(t *testing.T) {
		srv := newFakeOllama(t, nil, 768)

		_, err := NewOllamaEmbedder(ctx, OllamaConfig{Host: srv.URL})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "no embedding model available")
	})

	t.Run("errors when server unreachable", func(t *testing.T) {
		_, err := NewOllamaEmbedder(ctx, OllamaConfig{Host: "http://127.0.0.1:1"})
		require.Error(t, err)
	})

	t.Run("embed returns normalized vector", func(t *testing.T) {
		srv := newFakeOllama(t, []string{"nomic-embed-text"}, 8)

		e, err := NewOllamaEmbedder(ctx, OllamaConfig{Host: srv.URL})
		require.NoError(t, err)
		defer e.Close()

		vec, err := e.Embed(ctx, "compound interest")
		require.NoError(t, err)
		require.Len(t, vec, 8)
		assert.InDelta(t, 1.0, vectorNorm(vec), 1e-5)
	})

	t.Run("blank input skips the API", func(t *testing.T) {
		srv := newFakeOllama(t, []string{"nomic-embed-text"}, 8)

		e, err := NewOllamaEmbedder(ctx, OllamaConfig{Host: srv.URL})
		require.NoError(t, err)
		defer e.Close()

		vec, err := e.Embed(ctx, "  ")
		require.NoError(t, err)
		require.Len(t, vec, 8)
		assert.Zero(t, vectorNorm(vec))
	})

	t.Run("batch preserves order and handles blanks", func(t *testing.T) {
		srv := newFakeOllama(t, []string{"nomic-embed-text"}, 8)

		e, err := NewOllamaEmbedder(ctx, OllamaConfig{Host: srv.URL, BatchSize: 2})
		require.NoError(t, err)
		defer e.Close()

		results, err := e.EmbedBatch(ctx, []string{"a", "", "b", "c"})
		require.NoError(t, err)
		require.Len(t, results, 4)
		assert.Zero(t, vectorNorm(results[1]))
		for _, i := range []int{0, 2, 3} {
			assert.InDelta(t, 1.0, vectorNorm(results[i]), 1e-5, "index %d", i)
		}
	})

	t.Run("closed embedder errors", func(t *testing.T) {
		srv := newFakeOllama(t, []string{"nomic-embed-text"}, 8)

		e, err := NewOllamaEmbedder(ctx, OllamaConfig{Host: srv.URL})
		require.NoError(t, err)
		require.NoError(t, e.Close())

		_, err = e.Embed(ctx, "anything")
		assert.Error(t, err)
	})
}

func TestOllamaEmbedderRetries(t *testing.T) {
	var calls atomic.Int32

	mux := http.NewServeMux()
	mux.HandleFunc("/api/embed", func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			http.Error(w, "model loading", http.StatusServiceUnavailable)
			return
		}
		_ = json.NewEncoder(w).Encode(OllamaEmbedResponse{
			Embeddings: [][]float64{{1, 0, 0, 0}},
		})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	e, err := NewOllamaEmbedder(context.Background(), OllamaConfig{
		Host:            srv.URL,
		Dimensions:      4,
		MaxRetries:      3,
		SkipHealthCheck: true,
	})
	require.NoError(t, err)
	defer e.Close()

	vec, err := e.Embed(context.Background(), "retry me")
	require.NoError(t, err)
	assert.Len(t, vec, 4)
	assert.Equal(t, int32(2), calls.Load())
}
