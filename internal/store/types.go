// Package store provides the lexical index, vector index, and chunk
// persistence backing the retrieval pipeline.
package store

import (
	"context"
	"fmt"

	"github.com/bookrag/bookrag/internal/corpus"
)

// State keys for the chunk store's key-value state table.
const (
	// StateKeyIndexDimension stores the embedding dimension used for the index
	StateKeyIndexDimension = "index_embedding_dimension"
	// StateKeyIndexModel stores the embedding model name used for the index
	StateKeyIndexModel = "index_embedding_model"
	// StateKeyIndexBuilt marks a completed build ("1" when all stages finished)
	StateKeyIndexBuilt = "index_built"
	// StateKeyCorpusPath stores the corpus file the index was built from
	StateKeyCorpusPath = "corpus_path"
)

// Document represents a chunk's text to be indexed lexically.
type Document struct {
	ID      string // Chunk ID
	Content string // Text content
}

// LexicalResult represents a single lexical search result.
type LexicalResult struct {
	DocID        string
	Score        float64
	MatchedTerms []string
}

// IndexStats provides statistics about the lexical index.
type IndexStats struct {
	DocumentCount int
	TermCount     int
	AvgDocLength  float64
}

// LexicalIndex provides keyword search using BM25 scoring.
// Results are ordered by descending score, ties broken by ascending doc id.
type LexicalIndex interface {
	// Index adds documents to the index
	Index(ctx context.Context, docs []*Document) error

	// Search returns documents matching query, scored by BM25.
	// A query with no tokens after normalization returns an empty list.
	Search(ctx context.Context, query string, limit int) ([]*LexicalResult, error)

	// Stats returns index statistics
	Stats() *IndexStats

	// Persistence
	Save(path string) error
	Load(path string) error
	Close() error
}

// BM25Config configures BM25 scoring.
type BM25Config struct {
	// K1 is the term frequency saturation parameter (default: 1.2)
	K1 float64

	// B is the length normalization parameter (default: 0.75)
	B float64

	// StopWords is a list of words to filter out during tokenization
	StopWords []string

	// MinTokenLength is minimum token length to index (default: 2)
	MinTokenLength int
}

// DefaultBM25Config returns default BM25 configuration.
func DefaultBM25Config() BM25Config {
	return BM25Config{
		K1:             1.2,
		B:              0.75,
		StopWords:      DefaultEnglishStopWords,
		MinTokenLength: 2,
	}
}

// DefaultEnglishStopWords is the fixed stopword list applied to both
// indexed text and queries.
var DefaultEnglishStopWords = []string{
	"a", "an", "and", "are", "as", "at", "be", "but", "by",
	"for", "from", "has", "had", "have", "he", "her", "his",
	"if", "in", "into", "is", "it", "its", "my", "no", "not",
	"of", "on", "or", "our", "she", "so", "such", "that", "the",
	"their", "then", "there", "these", "they", "this", "to",
	"was", "we", "were", "what", "when", "which", "who", "will",
	"with", "you", "your",
}

// VectorResult represents a single vector search result.
type VectorResult struct {
	ID       string  // Chunk ID
	Distance float32 // Lower is more similar (0-2 for cosine)
	Score    float32 // Normalized similarity (0-1)
}

// VectorStoreConfig configures the vector store.
type VectorStoreConfig struct {
	// Dimensions is the vector dimension
	Dimensions int

	// Metric is the distance metric: "cos" (cosine), "l2" (euclidean) (default: "cos")
	Metric string

	// M is HNSW max connections per layer (default: 16)
	M int

	// EfSearch is HNSW query-time search width (default: 64)
	EfSearch int
}

// DefaultVectorStoreConfig returns sensible defaults for the vector store.
func DefaultVectorStoreConfig(dimensions int) VectorStoreConfig {
	return VectorStoreConfig{
		Dimensions: dimensions,
		Metric:     "cos",
		M:          16,
		EfSearch:   64,
	}
}

// VectorStore provides nearest-neighbor search over chunk embeddings.
// Results are ordered by descending similarity, ties broken by ascending id.
type VectorStore interface {
	// Add inserts vectors with their IDs. If an ID exists, it is replaced.
	Add(ctx context.Context, ids []string, vectors [][]float32) error

	// Search finds k nearest neighbors to query vector.
	Search(ctx context.Context, query []float32, k int) ([]*VectorResult, error)

	// Contains checks if ID exists.
	Contains(id string) bool

	// Count returns number of vectors.
	Count() int

	// Persistence
	Save(path string) error
	Load(path string) error
	Close() error
}

// ChunkStore persists chunk records and index state.
type ChunkStore interface {
	// SaveChunks stores chunk records, replacing existing ids.
	SaveChunks(ctx context.Context, chunks []corpus.Chunk) error

	// GetChunk returns one chunk by id.
	GetChunk(ctx context.Context, id string) (*corpus.Chunk, error)

	// GetChunks returns chunks for the given ids, in the same order.
	// Missing ids are skipped.
	GetChunks(ctx context.Context, ids []string) ([]corpus.Chunk, error)

	// AllChunks returns the whole corpus ordered by ascending id.
	AllChunks(ctx context.Context) ([]corpus.Chunk, error)

	// Count returns the number of stored chunks.
	Count(ctx context.Context) (int, error)

	// State operations (key-value store for index metadata)
	GetState(ctx context.Context, key string) (string, error)
	SetState(ctx context.Context, key, value string) error

	// Lifecycle
	Close() error
}

// ErrDimensionMismatch indicates vector dimension mismatch.
type ErrDimensionMismatch struct {
	Expected int
	Got      int
}

func (e ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("dimension mismatch: expected %d, got %d (rebuild the index with 'bookrag index')", e.Expected, e.Got)
}
