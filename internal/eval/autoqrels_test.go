package eval

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSilverGenerator(t *testing.T) {
	ctx := context.Background()

	t.Run("intersection of both branches is relevant", func(t *testing.T) {
		r := newEvalRetriever(t)
		g := NewSilverGenerator(r, nil)

		judgments, err := g.Generate(ctx, []string{"debt snowball method"}, evalConfig())
		require.NoError(t, err)
		require.Len(t, judgments, 1)

		j := judgments[0]
		assert.Equal(t, "debt snowball method", j.Query)
		assert.Equal(t, SilverMethod, j.Method)
		assert.NotEmpty(t, j.RelevantIDs)
		// The chunk both branches rank at the top leads the judgment.
		assert.Equal(t, "ch01_p001", j.RelevantIDs[0])
	})

	t.Run("thin intersections are topped up from the fused ranking", func(t *testing.T) {
		r := newEvalRetriever(t)
		g := NewSilverGenerator(r, nil)

		judgments, err := g.Generate(ctx, []string{"emergency fund"}, evalConfig())
		require.NoError(t, err)
		require.Len(t, judgments, 1)

		// The corpus only has three chunks, so the judgment reaches
		// the minimum size exactly.
		assert.Len(t, judgments[0].RelevantIDs, SilverMinRelevant)
	})

	t.Run("no duplicate ids in a judgment", func(t *testing.T) {
		r := newEvalRetriever(t)
		g := NewSilverGenerator(r, nil)

		judgments, err := g.Generate(ctx, BuiltinQueries[:3], evalConfig())
		require.NoError(t, err)

		for _, j := range judgments {
			seen := map[string]bool{}
			for _, id := range j.RelevantIDs {
				assert.False(t, seen[id], "duplicate %s in %q", id, j.Query)
				seen[id] = true
			}
		}
	})

	t.Run("deterministic", func(t *testing.T) {
		r := newEvalRetriever(t)
		g := NewSilverGenerator(r, nil)

		first, err := g.Generate(ctx, []string{"debt snowball method"}, evalConfig())
		require.NoError(t, err)
		second, err := g.Generate(ctx, []string{"debt snowball method"}, evalConfig())
		require.NoError(t, err)
		assert.Equal(t, first, second)
	})
}

func TestBuiltinQueries(t *testing.T) {
	assert.Len(t, BuiltinQueries, 20)

	seen := map[string]bool{}
	for _, q := range BuiltinQueries {
		assert.NotEmpty(t, q)
		assert.False(t, seen[q], "duplicate query %q", q)
		seen[q] = true
	}
}
