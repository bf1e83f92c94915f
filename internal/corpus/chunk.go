// Package corpus defines the retrievable chunk record and corpus loading.
package corpus

import (
	"fmt"
	"math"

	"github.com/bookrag/bookrag/internal/errors"
)

// Chunk is an immutable unit of retrievable text with its metadata.
// Chunks are produced once by the external chunking pipeline and are
// read-only to the retrieval core.
type Chunk struct {
	ID            string          `json:"id"`
	Text          string          `json:"text"`
	Embedding     []float32       `json:"embedding,omitempty"`
	ChapterTitle  string          `json:"chapter_title"`
	ChapterNumber int             `json:"chapter_number"`
	Position      int             `json:"position"`
	SourceID      string          `json:"source_id"`
	Category      string          `json:"category,omitempty"`
	Tags          map[string]bool `json:"tags,omitempty"`
}

// Categories a chunk may carry. Empty category is allowed.
var knownCategories = map[string]bool{
	"concept":    true,
	"example":    true,
	"definition": true,
	"exercise":   true,
	"summary":    true,
}

// embeddingNormTolerance bounds the allowed deviation from unit length.
const embeddingNormTolerance = 1e-3

// Validate checks a single chunk's fields. Embeddings, when present,
// must be unit-norm so that dot product equals cosine similarity.
func (c *Chunk) Validate() error {
	if c.ID == "" {
		return errors.New(errors.ErrCodeChunkInvalid, "chunk id is empty", nil)
	}
	if c.Text == "" {
		return errors.New(errors.ErrCodeChunkInvalid,
			fmt.Sprintf("chunk %s has empty text", c.ID), nil)
	}
	if c.ChapterNumber < 0 {
		return errors.New(errors.ErrCodeChunkInvalid,
			fmt.Sprintf("chunk %s has negative chapter number %d", c.ID, c.ChapterNumber), nil)
	}
	if c.Position < 0 {
		return errors.New(errors.ErrCodeChunkInvalid,
			fmt.Sprintf("chunk %s has negative position %d", c.ID, c.Position), nil)
	}
	if c.Category != "" && !knownCategories[c.Category] {
		return errors.New(errors.ErrCodeChunkInvalid,
			fmt.Sprintf("chunk %s has unknown category %q", c.ID, c.Category), nil)
	}
	if len(c.Embedding) > 0 {
		norm := embeddingNorm(c.Embedding)
		if math.Abs(norm-1.0) > embeddingNormTolerance {
			return errors.New(errors.ErrCodeChunkInvalid,
				fmt.Sprintf("chunk %s embedding is not unit-norm (got %.6f)", c.ID, norm), nil)
		}
	}
	return nil
}

// HasEmbedding reports whether the chunk carries a dense vector.
func (c *Chunk) HasEmbedding() bool {
	return len(c.Embedding) > 0
}

func embeddingNorm(v []float32) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}

// ValidateAll checks corpus-wide invariants: unique ids, unique
// (chapter, position) pairs, and a consistent embedding dimension.
func ValidateAll(chunks []Chunk) error {
	seenIDs := make(map[string]bool, len(chunks))
	seenPos := make(map[[2]int]string, len(chunks))
	dim := 0

	for i := range chunks {
		c := &chunks[i]
		if err := c.Validate(); err != nil {
			return err
		}

		if seenIDs[c.ID] {
			return errors.New(errors.ErrCodeChunkInvalid,
				fmt.Sprintf("duplicate chunk id %s", c.ID), nil)
		}
		seenIDs[c.ID] = true

		key := [2]int{c.ChapterNumber, c.Position}
		if prev, ok := seenPos[key]; ok {
			return errors.New(errors.ErrCodeChunkInvalid,
				fmt.Sprintf("chunks %s and %s share chapter %d position %d",
					prev, c.ID, c.ChapterNumber, c.Position), nil)
		}
		seenPos[key] = c.ID

		if c.HasEmbedding() {
			if dim == 0 {
				dim = len(c.Embedding)
			} else if len(c.Embedding) != dim {
				return errors.New(errors.ErrCodeDimensionMismatch,
					fmt.Sprintf("chunk %s embedding dimension %d, expected %d",
						c.ID, len(c.Embedding), dim), nil)
			}
		}
	}
	return nil
}
