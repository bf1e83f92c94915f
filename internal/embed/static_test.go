package embed

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func vectorNorm(v []float32) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}

func TestStaticEmbedder(t *testing.T) {
	ctx := context.Background()

	t.Run("produces unit length vectors", func(t *testing.T) {
		e := NewStaticEmbedder()
		defer e.Close()

		vec, err := e.Embed(ctx, "compound interest grows savings over time")
		require.NoError(t, err)
		require.Len(t, vec, StaticDimensions)
		assert.InDelta(t, 1.0, vectorNorm(vec), 1e-5)
	})

	t.Run("deterministic for identical text", func(t *testing.T) {
		e := NewStaticEmbedder()
		defer e.Close()

		a, err := e.Embed(ctx, "emergency fund basics")
		require.NoError(t, err)
		b, err := e.Embed(ctx, "emergency fund basics")
		require.NoError(t, err)
		assert.Equal(t, a, b)
	})

	t.Run("different texts differ", func(t *testing.T) {
		e := NewStaticEmbedder()
		defer e.Close()

		a, err := e.Embed(ctx, "debt snowball method")
		require.NoError(t, err)
		b, err := e.Embed(ctx, "index fund diversification")
		require.NoError(t, err)
		assert.NotEqual(t, a, b)
	})

	t.Run("blank text yields zero vector", func(t *testing.T) {
		e := NewStaticEmbedder()
		defer e.Close()

		vec, err := e.Embed(ctx, "   \n\t ")
		require.NoError(t, err)
		require.Len(t, vec, StaticDimensions)
		assert.Zero(t, vectorNorm(vec))
	})

	t.Run("related texts are closer than unrelated", func(t *testing.T) {
		e := NewStaticEmbedder()
		defer e.Close()

		debt1, err := e.Embed(ctx, "pay off the smallest debt balance first")
		require.NoError(t, err)
		debt2, err := e.Embed(ctx, "pay off the highest interest debt first")
		require.NoError(t, err)
		other, err := e.Embed(ctx, "zebra quantum kaleidoscope")
		require.NoError(t, err)

		dot := func(a, b []float32) float64 {
			var s float64
			for i := range a {
				s += float64(a[i]) * float64(b[i])
			}
			return s
		}
		assert.Greater(t, dot(debt1, debt2), dot(debt1, other))
	})

	t.Run("batch matches single embeds", func(t *testing.T) {
		e := NewStaticEmbedder()
		defer e.Close()

		texts := []string{"budgeting basics", "", "retirement accounts"}
		batch, err := e.EmbedBatch(ctx, texts)
		require.NoError(t, err)
		require.Len(t, batch, 3)

		for i, text := range texts {
			single, err := e.Embed(ctx, text)
			require.NoError(t, err)
			assert.Equal(t, single, batch[i], "text %d", i)
		}
	})

	t.Run("closed embedder errors", func(t *testing.T) {
		e := NewStaticEmbedder()
		require.NoError(t, e.Close())

		_, err := e.Embed(ctx, "anything")
		assert.Error(t, err)
		assert.False(t, e.Available(ctx))
	})
}

func TestStaticEmbedderMetadata(t *testing.T) {
	e := NewStaticEmbedder()
	defer e.Close()

	assert.Equal(t, StaticDimensions, e.Dimensions())
	assert.Equal(t, "static", e.ModelName())
	assert.True(t, e.Available(context.Background()))
}

func TestExtractNgrams(t *testing.T) {
	assert.Empty(t, extractNgrams("ab", 3))
	assert.Equal(t, []string{"abc"}, extractNgrams("abc", 3))
	assert.Equal(t, []string{"abc", "bcd", "cde"}, extractNgrams("abcde", 3))
}

func TestNormalizeForNgrams(t *testing.T) {
	assert.Equal(t, "debtfree2025", normalizeForNgrams("Debt-Free 2025!"))
}
