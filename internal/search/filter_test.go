package search

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fusedPool(ids ...string) []FusedResult {
	out := make([]FusedResult, len(ids))
	for i, id := range ids {
		out[i] = FusedResult{ChunkID: id, Score: float64(len(ids) - i)}
	}
	return out
}

func TestFilterExcluded(t *testing.T) {
	chapters := map[string]int{
		"ch01_p001": 1,
		"ch01_p002": 1,
		"ch02_p001": 2,
		"ch03_p001": 3,
	}

	t.Run("drops excluded chapters", func(t *testing.T) {
		pool := fusedPool("ch01_p001", "ch02_p001", "ch01_p002", "ch03_p001")

		kept := FilterExcluded(pool, chapters, []int{1})

		require.Len(t, kept, 2)
		assert.Equal(t, "ch02_p001", kept[0].ChunkID)
		assert.Equal(t, "ch03_p001", kept[1].ChunkID)
	})

	t.Run("empty exclusion passes through unchanged", func(t *testing.T) {
		pool := fusedPool("ch01_p001", "ch02_p001")
		kept := FilterExcluded(pool, chapters, nil)
		assert.Equal(t, pool, kept)
	})

	t.Run("preserves relative order of survivors", func(t *testing.T) {
		pool := fusedPool("ch03_p001", "ch01_p001", "ch02_p001")
		kept := FilterExcluded(pool, chapters, []int{1})

		require.Len(t, kept, 2)
		assert.Equal(t, "ch03_p001", kept[0].ChunkID)
		assert.Equal(t, "ch02_p001", kept[1].ChunkID)
	})

	t.Run("unknown chapter kept", func(t *testing.T) {
		pool := fusedPool("mystery")
		kept := FilterExcluded(pool, chapters, []int{1})
		assert.Len(t, kept, 1)
	})
}

func TestCapPerChapter(t *testing.T) {
	chapters := map[string]int{
		"ch01_p001": 1,
		"ch01_p002": 1,
		"ch01_p003": 1,
		"ch02_p001": 2,
	}

	t.Run("keeps first max per chapter in rank order", func(t *testing.T) {
		pool := fusedPool("ch01_p001", "ch01_p002", "ch02_p001", "ch01_p003")

		kept := CapPerChapter(pool, chapters, 2)

		require.Len(t, kept, 3)
		assert.Equal(t, "ch01_p001", kept[0].ChunkID)
		assert.Equal(t, "ch01_p002", kept[1].ChunkID)
		assert.Equal(t, "ch02_p001", kept[2].ChunkID)
	})

	t.Run("cap of one keeps single result per chapter", func(t *testing.T) {
		pool := fusedPool("ch01_p001", "ch01_p002", "ch02_p001")
		kept := CapPerChapter(pool, chapters, 1)

		require.Len(t, kept, 2)
		seen := map[int]int{}
		for _, r := range kept {
			seen[chapters[r.ChunkID]]++
		}
		for ch, n := range seen {
			assert.Equal(t, 1, n, "chapter %d", ch)
		}
	})

	t.Run("zero cap means unlimited", func(t *testing.T) {
		pool := fusedPool("ch01_p001", "ch01_p002", "ch01_p003")
		kept := CapPerChapter(pool, chapters, 0)
		assert.Equal(t, pool, kept)
	})

	t.Run("unknown chapter not counted against any cap", func(t *testing.T) {
		pool := fusedPool("mystery", "ch01_p001")
		kept := CapPerChapter(pool, chapters, 1)
		assert.Len(t, kept, 2)
	})
}
