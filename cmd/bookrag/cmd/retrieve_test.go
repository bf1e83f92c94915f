package cmd

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bookrag/bookrag/internal/search"
)

func TestRetrieveCmd_RequiresQuery(t *testing.T) {
	// Given: no query flags
	// When: running retrieve
	_, err := runCLI(t, "retrieve")

	// Then: it should require exactly one query source
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--q")
}

func TestRetrieveCmd_RejectsBothQuerySources(t *testing.T) {
	// Given: both --q and --q-file
	// When: running retrieve
	_, err := runCLI(t, "retrieve", "--q", "x", "--q-file", "y.txt")

	// Then: it should reject the combination
	require.Error(t, err)
}

func TestRetrieveCmd_RejectsUnknownFormat(t *testing.T) {
	// Given: an invalid format
	// When: running retrieve
	_, err := runCLI(t, "retrieve", "--q", "x", "--format", "xml")

	// Then: it should name the valid formats
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pretty")
}

func TestRetrieveCmd_NoIndex(t *testing.T) {
	// Given: a project without an index
	setupTestProject(t)

	// When: running retrieve
	_, err := runCLI(t, "retrieve", "--q", "emergency fund")

	// Then: it should fail rather than return empty results
	require.Error(t, err)
}

func TestRetrieveCmd_JSONOutput(t *testing.T) {
	// Given: a built index
	buildTestIndex(t)

	// When: retrieving with JSON output
	output, err := runCLI(t, "retrieve", "--q", "emergency fund savings", "--format", "json")

	// Then: results decode and lead with the emergency fund chunk
	require.NoError(t, err, output)
	var results []struct {
		Rank    int     `json:"rank"`
		ChunkID string  `json:"chunk_id"`
		Score   float64 `json:"score"`
	}
	require.NoError(t, json.Unmarshal([]byte(output), &results))
	require.NotEmpty(t, results)
	assert.Equal(t, 1, results[0].Rank)
	assert.Equal(t, "ch01_p001", results[0].ChunkID)
	assert.Greater(t, results[0].Score, 0.0)
}

func TestRetrieveCmd_IDsOutput(t *testing.T) {
	// Given: a built index
	buildTestIndex(t)

	// When: retrieving ids only
	output, err := runCLI(t, "retrieve", "--q", "debt snowball avalanche", "--format", "ids", "--k", "3")

	// Then: output is bare chunk ids, one per line
	require.NoError(t, err, output)
	lines := strings.Fields(strings.TrimSpace(output))
	require.NotEmpty(t, lines)
	assert.LessOrEqual(t, len(lines), 3)
	for _, id := range lines {
		assert.Regexp(t, `^ch\d\d_p\d\d\d$`, id)
	}
}

func TestRetrieveCmd_LexicalOnly(t *testing.T) {
	// Given: a built index
	buildTestIndex(t)

	// When: retrieving with the dense branch disabled
	output, err := runCLI(t, "retrieve", "--q", "index funds diversification", "--lexical-only", "--format", "json")

	// Then: results come back with no dense rank
	require.NoError(t, err, output)
	var results []struct {
		ChunkID   string `json:"chunk_id"`
		DenseRank int    `json:"dense_rank"`
	}
	require.NoError(t, json.Unmarshal([]byte(output), &results))
	require.NotEmpty(t, results)
	assert.Equal(t, "ch03_p001", results[0].ChunkID)
	for _, r := range results {
		assert.Zero(t, r.DenseRank)
	}
}

func TestRetrieveCmd_ExcludeChapters(t *testing.T) {
	// Given: a built index
	buildTestIndex(t)

	// When: excluding the debt chapter
	output, err := runCLI(t, "retrieve", "--q", "interest", "--exclude-chapters", "2", "--format", "json")

	// Then: no result comes from chapter 2
	require.NoError(t, err, output)
	var results []struct {
		ChapterNumber int `json:"chapter_number"`
	}
	require.NoError(t, json.Unmarshal([]byte(output), &results))
	for _, r := range results {
		assert.NotEqual(t, 2, r.ChapterNumber)
	}
}

func TestRetrieveCmd_QueryFile(t *testing.T) {
	// Given: a built index and a query file
	dir := buildTestIndex(t)
	queryFile := filepath.Join(dir, "queries.txt")
	require.NoError(t, os.WriteFile(queryFile,
		[]byte("emergency fund\n\n# comment\ncompound interest\n"), 0o644))

	// When: retrieving from the file
	output, err := runCLI(t, "retrieve", "--q-file", queryFile)

	// Then: both queries produce headed result sections
	require.NoError(t, err, output)
	assert.Contains(t, output, "emergency fund")
	assert.Contains(t, output, "compound interest")
}

func TestApplyRetrieveFlags(t *testing.T) {
	tests := []struct {
		name  string
		opts  retrieveOptions
		check func(t *testing.T, cfg search.RetrievalConfig)
	}{
		{
			name: "k raises pool when needed",
			opts: retrieveOptions{k: 50, maxPerChapter: -1, mmrLambda: -1},
			check: func(t *testing.T, cfg search.RetrievalConfig) {
				assert.Equal(t, 50, cfg.K)
				assert.GreaterOrEqual(t, cfg.CandidatePool, 50)
			},
		},
		{
			name: "max per chapter zero disables cap",
			opts: retrieveOptions{maxPerChapter: 0, mmrLambda: -1},
			check: func(t *testing.T, cfg search.RetrievalConfig) {
				assert.False(t, cfg.UsePerChapterCap)
			},
		},
		{
			name: "exclude chapters enables filters",
			opts: retrieveOptions{excludeChapters: []int{4}, maxPerChapter: -1, mmrLambda: -1},
			check: func(t *testing.T, cfg search.RetrievalConfig) {
				assert.True(t, cfg.UseFilters)
				assert.Equal(t, []int{4}, cfg.ExcludeChapters)
			},
		},
		{
			name: "no-filters wins over exclusions",
			opts: retrieveOptions{excludeChapters: []int{4}, noFilters: true, maxPerChapter: -1, mmrLambda: -1},
			check: func(t *testing.T, cfg search.RetrievalConfig) {
				assert.False(t, cfg.UseFilters)
			},
		},
		{
			name: "mmr lambda override",
			opts: retrieveOptions{mmrLambda: 1.0, maxPerChapter: -1},
			check: func(t *testing.T, cfg search.RetrievalConfig) {
				assert.Equal(t, 1.0, cfg.MMRLambda)
			},
		},
		{
			name: "lexical only propagates",
			opts: retrieveOptions{lexicalOnly: true, maxPerChapter: -1, mmrLambda: -1},
			check: func(t *testing.T, cfg search.RetrievalConfig) {
				assert.True(t, cfg.LexicalOnly)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := search.DefaultRetrievalConfig()
			applyRetrieveFlags(&cfg, tt.opts)
			tt.check(t, cfg)
		})
	}
}

func TestGatherQueries(t *testing.T) {
	t.Run("inline query", func(t *testing.T) {
		queries, err := gatherQueries("how much emergency fund", "")
		require.NoError(t, err)
		assert.Equal(t, []string{"how much emergency fund"}, queries)
	})

	t.Run("file skips blanks and comments", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "q.txt")
		require.NoError(t, os.WriteFile(path, []byte("a\n\n# note\nb\n"), 0o644))

		queries, err := gatherQueries("", path)
		require.NoError(t, err)
		assert.Equal(t, []string{"a", "b"}, queries)
	})

	t.Run("empty file is an error", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "q.txt")
		require.NoError(t, os.WriteFile(path, []byte("\n# only comments\n"), 0o644))

		_, err := gatherQueries("", path)
		require.Error(t, err)
	})

	t.Run("missing file is an error", func(t *testing.T) {
		_, err := gatherQueries("", filepath.Join(t.TempDir(), "nope.txt"))
		require.Error(t, err)
	})
}
