package store

import (
	"fmt"
)

// Lexical backend names.
const (
	LexicalBackendMemory = "memory"
	LexicalBackendBleve  = "bleve"
)

// NewLexicalIndex creates a lexical index for the configured backend.
// An empty backend selects the in-memory BM25 index.
func NewLexicalIndex(backend, path string, config BM25Config) (LexicalIndex, error) {
	switch backend {
	case "", LexicalBackendMemory:
		return NewMemoryBM25Index(config), nil
	case LexicalBackendBleve:
		return NewBleveLexicalIndex(path, config)
	default:
		return nil, fmt.Errorf("unknown lexical backend %q (use: memory, bleve)", backend)
	}
}
