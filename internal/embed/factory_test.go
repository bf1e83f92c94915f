package embed

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseProvider(t *testing.T) {
	tests := []struct {
		input string
		want  ProviderType
	}{
		{"ollama", ProviderOllama},
		{"OLLAMA", ProviderOllama},
		{"static", ProviderStatic},
		{"Static", ProviderStatic},
		{"", ProviderOllama},
		{"unknown", ProviderOllama},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseProvider(tt.input))
		})
	}
}

func TestIsValidProvider(t *testing.T) {
	assert.True(t, IsValidProvider("ollama"))
	assert.True(t, IsValidProvider("static"))
	assert.True(t, IsValidProvider("STATIC"))
	assert.False(t, IsValidProvider("mlx"))
	assert.False(t, IsValidProvider(""))
}

func TestNewEmbedderStatic(t *testing.T) {
	e, err := NewEmbedder(context.Background(), ProviderStatic, "")
	require.NoError(t, err)
	defer e.Close()

	// Caching wrap is on by default.
	cached, ok := e.(*CachedEmbedder)
	require.True(t, ok)
	assert.IsType(t, &StaticEmbedder{}, cached.Inner())
	assert.Equal(t, StaticDimensions, e.Dimensions())
}

func TestNewEmbedderCacheDisabled(t *testing.T) {
	t.Setenv("BOOKRAG_EMBED_CACHE", "false")

	e, err := NewEmbedder(context.Background(), ProviderStatic, "")
	require.NoError(t, err)
	defer e.Close()

	assert.IsType(t, &StaticEmbedder{}, e)
}

func TestNewEmbedderEnvOverride(t *testing.T) {
	t.Setenv("BOOKRAG_EMBEDDER", "static")

	e, err := NewEmbedder(context.Background(), ProviderOllama, "")
	require.NoError(t, err)
	defer e.Close()

	assert.Equal(t, "static", e.ModelName())
}

func TestGetInfo(t *testing.T) {
	ctx := context.Background()

	e, err := NewEmbedder(ctx, ProviderStatic, "")
	require.NoError(t, err)
	defer e.Close()

	info := GetInfo(ctx, e)
	assert.Equal(t, ProviderStatic, info.Provider)
	assert.Equal(t, "static", info.Model)
	assert.Equal(t, StaticDimensions, info.Dimensions)
	assert.True(t, info.Available)
}
