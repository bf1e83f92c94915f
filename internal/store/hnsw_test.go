package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestVectorStore(t *testing.T) *HNSWStore {
	t.Helper()
	s, err := NewHNSWStore(DefaultVectorStoreConfig(3))
	require.NoError(t, err)

	ids := []string{"ch01_p001", "ch01_p002", "ch02_p001"}
	vectors := [][]float32{
		{1, 0, 0},
		{0.9, 0.1, 0},
		{0, 0, 1},
	}
	require.NoError(t, s.Add(context.Background(), ids, vectors))
	return s
}

func TestHNSWSearch(t *testing.T) {
	s := newTestVectorStore(t)
	ctx := context.Background()

	t.Run("nearest neighbor first", func(t *testing.T) {
		results, err := s.Search(ctx, []float32{1, 0, 0}, 3)
		require.NoError(t, err)
		require.NotEmpty(t, results)
		assert.Equal(t, "ch01_p001", results[0].ID)
	})

	t.Run("scores descend", func(t *testing.T) {
		results, err := s.Search(ctx, []float32{1, 0, 0}, 3)
		require.NoError(t, err)
		for i := 1; i < len(results); i++ {
			assert.GreaterOrEqual(t, results[i-1].Score, results[i].Score)
		}
	})

	t.Run("dimension mismatch rejected", func(t *testing.T) {
		_, err := s.Search(ctx, []float32{1, 0}, 3)
		require.Error(t, err)
		assert.IsType(t, ErrDimensionMismatch{}, err)
	})

	t.Run("empty store returns empty results", func(t *testing.T) {
		empty, err := NewHNSWStore(DefaultVectorStoreConfig(3))
		require.NoError(t, err)
		results, err := empty.Search(ctx, []float32{1, 0, 0}, 5)
		require.NoError(t, err)
		assert.Empty(t, results)
	})
}

func TestHNSWAdd(t *testing.T) {
	ctx := context.Background()

	t.Run("length mismatch rejected", func(t *testing.T) {
		s, err := NewHNSWStore(DefaultVectorStoreConfig(3))
		require.NoError(t, err)
		err = s.Add(ctx, []string{"a", "b"}, [][]float32{{1, 0, 0}})
		assert.Error(t, err)
	})

	t.Run("re-adding an id replaces its vector", func(t *testing.T) {
		s := newTestVectorStore(t)
		require.NoError(t, s.Add(ctx, []string{"ch01_p001"}, [][]float32{{0, 1, 0}}))

		assert.Equal(t, 3, s.Count())

		results, err := s.Search(ctx, []float32{0, 1, 0}, 1)
		require.NoError(t, err)
		require.NotEmpty(t, results)
		assert.Equal(t, "ch01_p001", results[0].ID)
	})
}

func TestHNSWContainsCount(t *testing.T) {
	s := newTestVectorStore(t)

	assert.True(t, s.Contains("ch01_p001"))
	assert.False(t, s.Contains("nope"))
	assert.Equal(t, 3, s.Count())
}

func TestHNSWSaveLoad(t *testing.T) {
	s := newTestVectorStore(t)
	ctx := context.Background()

	dir := t.TempDir()
	path := filepath.Join(dir, "vectors.hnsw")
	require.NoError(t, s.Save(path))

	t.Run("round trip preserves results", func(t *testing.T) {
		loaded, err := NewHNSWStore(DefaultVectorStoreConfig(3))
		require.NoError(t, err)
		require.NoError(t, loaded.Load(path))

		assert.Equal(t, 3, loaded.Count())

		results, err := loaded.Search(ctx, []float32{1, 0, 0}, 1)
		require.NoError(t, err)
		require.NotEmpty(t, results)
		assert.Equal(t, "ch01_p001", results[0].ID)
	})

	t.Run("dimensions readable from metadata sidecar", func(t *testing.T) {
		dims, err := ReadHNSWStoreDimensions(path)
		require.NoError(t, err)
		assert.Equal(t, 3, dims)
	})

	t.Run("missing metadata means fresh start", func(t *testing.T) {
		dims, err := ReadHNSWStoreDimensions(filepath.Join(dir, "missing.hnsw"))
		require.NoError(t, err)
		assert.Equal(t, 0, dims)
	})
}

func TestNormalizeVectorInPlace(t *testing.T) {
	v := []float32{3, 4}
	normalizeVectorInPlace(v)
	assert.InDelta(t, 0.6, v[0], 1e-6)
	assert.InDelta(t, 0.8, v[1], 1e-6)

	// Zero vector unchanged
	z := []float32{0, 0}
	normalizeVectorInPlace(z)
	assert.Equal(t, []float32{0, 0}, z)
}
