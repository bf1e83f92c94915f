package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	t.Run("derives category from code", func(t *testing.T) {
		tests := []struct {
			code     string
			category Category
		}{
			{ErrCodeConfigInvalid, CategoryConfig},
			{ErrCodeCorruptIndex, CategoryIO},
			{ErrCodeEmbedderTimeout, CategoryNetwork},
			{ErrCodeQueryEmpty, CategoryValidation},
			{ErrCodeIndexNotBuilt, CategoryInternal},
		}

		for _, tt := range tests {
			err := New(tt.code, "test", nil)
			assert.Equal(t, tt.category, err.Category, "code %s", tt.code)
		}
	})

	t.Run("marks retryable codes", func(t *testing.T) {
		assert.True(t, New(ErrCodeDenseUnavailable, "dense backend down", nil).Retryable)
		assert.False(t, New(ErrCodeMalformedCandidates, "duplicate id", nil).Retryable)
	})

	t.Run("formats as code plus message", func(t *testing.T) {
		err := New(ErrCodeQueryEmpty, "no tokens after normalization", nil)
		assert.Equal(t, "[ERR_401_QUERY_EMPTY] no tokens after normalization", err.Error())
	})
}

func TestWrap(t *testing.T) {
	t.Run("nil error returns nil", func(t *testing.T) {
		assert.Nil(t, Wrap(ErrCodeInternal, nil))
	})

	t.Run("preserves cause for unwrapping", func(t *testing.T) {
		cause := stderrors.New("disk exploded")
		err := Wrap(ErrCodeCorruptIndex, cause)

		require.NotNil(t, err)
		assert.ErrorIs(t, err, cause)
	})
}

func TestErrorsIs(t *testing.T) {
	// Given two errors with the same code but different messages
	a := New(ErrCodeIndexNotBuilt, "query before build", nil)
	b := New(ErrCodeIndexNotBuilt, "different message", nil)

	// When compared via errors.Is
	// Then they match by code
	assert.True(t, stderrors.Is(a, b))
	assert.False(t, stderrors.Is(a, New(ErrCodeQueryEmpty, "x", nil)))
}

func TestErrorsIsThroughWrapping(t *testing.T) {
	inner := New(ErrCodeDenseUnavailable, "embedder not responding", nil)
	outer := fmt.Errorf("retrieve: %w", inner)

	assert.True(t, stderrors.Is(outer, inner))
	assert.True(t, IsRetryable(outer))
	assert.Equal(t, ErrCodeDenseUnavailable, GetCode(outer))
	assert.Equal(t, CategoryInternal, GetCategory(outer))
}

func TestWithDetail(t *testing.T) {
	err := New(ErrCodeJudgmentMismatch, "no judgment for query", nil).
		WithDetail("query", "debt snowball vs avalanche").
		WithSuggestion("regenerate qrels or remove the query from the list")

	assert.Equal(t, "debt snowball vs avalanche", err.Details["query"])
	assert.NotEmpty(t, err.Suggestion)
}

func TestIsFatal(t *testing.T) {
	assert.True(t, IsFatal(New(ErrCodeCorruptIndex, "bad bytes", nil)))
	assert.False(t, IsFatal(New(ErrCodeQueryEmpty, "empty", nil)))
	assert.False(t, IsFatal(nil))
}
