package embed

import (
	"context"
	"fmt"
	"os"
	"strings"
)

// ProviderType represents an embedding provider
type ProviderType string

const (
	// ProviderOllama uses the Ollama API for embeddings (default)
	ProviderOllama ProviderType = "ollama"

	// ProviderStatic uses hash-based embeddings (offline, reduced quality)
	ProviderStatic ProviderType = "static"
)

// NewEmbedder creates an embedder based on provider type. The
// BOOKRAG_EMBEDDER environment variable overrides the provider:
//   - "ollama": Use OllamaEmbedder (default)
//   - "static": Use StaticEmbedder (offline hash embeddings)
//
// An unavailable provider is an error, never a silent fallback: the
// index and the query embedder must agree on model and dimensions, so
// substituting one for the other would corrupt retrieval quality
// without any visible signal.
//
// Query embedding caching is enabled by default.
// Set BOOKRAG_EMBED_CACHE=false to disable it.
func NewEmbedder(ctx context.Context, provider ProviderType, model string) (Embedder, error) {
	if env := os.Getenv("BOOKRAG_EMBEDDER"); env != "" {
		provider = ParseProvider(env)
	}

	var embedder Embedder
	var err error

	switch provider {
	case ProviderStatic:
		embedder = NewStaticEmbedder()
	case ProviderOllama, "":
		embedder, err = newOllama(ctx, model)
	default:
		return nil, fmt.Errorf("unknown embedding provider %q (valid: %s)",
			provider, strings.Join(ValidProviders(), ", "))
	}
	if err != nil {
		return nil, err
	}

	if !isCacheDisabled() {
		embedder = NewCachedEmbedderWithDefaults(embedder)
	}

	return embedder, nil
}

// isCacheDisabled checks if embedding cache is disabled via environment.
func isCacheDisabled() bool {
	v := strings.ToLower(os.Getenv("BOOKRAG_EMBED_CACHE"))
	return v == "false" || v == "0" || v == "off" || v == "disabled"
}

// newOllama creates an Ollama embedder with environment overrides applied.
func newOllama(ctx context.Context, model string) (Embedder, error) {
	cfg := DefaultOllamaConfig()
	if model != "" {
		cfg.Model = model
	}

	if host := os.Getenv("BOOKRAG_OLLAMA_HOST"); host != "" {
		cfg.Host = host
	}
	if modelOverride := os.Getenv("BOOKRAG_OLLAMA_MODEL"); modelOverride != "" {
		cfg.Model = modelOverride
	}

	embedder, err := NewOllamaEmbedder(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("ollama unavailable: %w\n\nTo fix:\n  1. Start Ollama: ollama serve\n  2. Or use offline embeddings: bookrag index --embedder=static\n  3. Or skip the dense branch entirely: bookrag retrieve --lexical-only", err)
	}
	return embedder, nil
}

// ParseProvider converts a string to ProviderType
func ParseProvider(s string) ProviderType {
	switch strings.ToLower(s) {
	case "static":
		return ProviderStatic
	case "ollama":
		return ProviderOllama
	default:
		return ProviderOllama
	}
}

// String returns the string representation of ProviderType
func (p ProviderType) String() string {
	return string(p)
}

// ValidProviders returns all valid provider names
func ValidProviders() []string {
	return []string{
		string(ProviderOllama),
		string(ProviderStatic),
	}
}

// IsValidProvider checks if a provider name is valid
func IsValidProvider(s string) bool {
	lower := strings.ToLower(s)
	for _, p := range ValidProviders() {
		if lower == p {
			return true
		}
	}
	return false
}

// EmbedderInfo contains information about an embedder
type EmbedderInfo struct {
	Provider   ProviderType
	Model      string
	Dimensions int
	Available  bool
}

// GetInfo returns information about an embedder
func GetInfo(ctx context.Context, embedder Embedder) EmbedderInfo {
	info := EmbedderInfo{
		Model:      embedder.ModelName(),
		Dimensions: embedder.Dimensions(),
		Available:  embedder.Available(ctx),
	}

	inner := embedder
	if cached, ok := embedder.(*CachedEmbedder); ok {
		inner = cached.inner
	}

	switch inner.(type) {
	case *OllamaEmbedder:
		info.Provider = ProviderOllama
	default:
		info.Provider = ProviderStatic
	}

	return info
}
