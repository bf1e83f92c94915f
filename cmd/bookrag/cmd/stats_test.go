package cmd

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatsCmd_NoIndex(t *testing.T) {
	// Given: a project without an index
	setupTestProject(t)

	// When: running stats
	_, err := runCLI(t, "stats")

	// Then: it should fail with an index-not-built error
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no index found")
}

func TestStatsCmd_JSONOutput(t *testing.T) {
	// Given: a built index
	buildTestIndex(t)

	// When: running stats --json
	output, err := runCLI(t, "stats", "--json")

	// Then: it should report the corpus and index shape
	require.NoError(t, err, output)
	var stats StatsOutput
	require.NoError(t, json.Unmarshal([]byte(output), &stats))
	assert.Equal(t, 6, stats.Chunks)
	assert.Equal(t, 3, stats.Chapters)
	assert.Equal(t, "memory", stats.LexicalBackend)
	assert.Equal(t, 6, stats.LexicalDocs)
	assert.Greater(t, stats.LexicalTerms, 0)
	assert.Equal(t, 256, stats.Dimensions)
	assert.Contains(t, stats.CorpusPath, "corpus.jsonl")
	assert.NotEmpty(t, stats.EmbeddingModel)
}

func TestStatsCmd_FormattedOutput(t *testing.T) {
	// Given: a built index
	buildTestIndex(t)

	// When: running stats without --json
	output, err := runCLI(t, "stats")

	// Then: the human-readable summary prints
	require.NoError(t, err, output)
	assert.Contains(t, output, "Index Statistics")
	assert.Contains(t, output, "Chunks:          6")
	assert.Contains(t, output, "memory")
}
