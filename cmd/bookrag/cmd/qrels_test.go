package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bookrag/bookrag/internal/eval"
)

func TestQrelsAutoCmd_GeneratesSilverJudgments(t *testing.T) {
	// Given: a built index and a query file matching the corpus
	dir := buildTestIndex(t)
	queryFile := filepath.Join(dir, "queries.txt")
	require.NoError(t, os.WriteFile(queryFile,
		[]byte("emergency fund savings\ndebt snowball avalanche\n"), 0o644))
	outPath := filepath.Join(dir, "silver.jsonl")

	// When: generating silver judgments
	output, err := runCLI(t, "qrels", "auto", "--q-file", queryFile, "--out", outPath)

	// Then: a labeled, loadable judgments file exists and the CLI
	// warns that it is approximate
	require.NoError(t, err, output)
	assert.Contains(t, output, "approximate")

	judgments, err := eval.ReadJudgments(outPath)
	require.NoError(t, err)
	require.Len(t, judgments, 2)
	for _, j := range judgments {
		assert.Equal(t, eval.SilverMethod, j.Method)
		assert.NotEmpty(t, j.RelevantIDs)
	}
}

func TestQrelsAutoCmd_DefaultOutputPath(t *testing.T) {
	// Given: a built index
	dir := buildTestIndex(t)
	queryFile := filepath.Join(dir, "queries.txt")
	require.NoError(t, os.WriteFile(queryFile, []byte("compound interest\n"), 0o644))

	// When: generating without --out
	output, err := runCLI(t, "qrels", "auto", "--q-file", queryFile)

	// Then: the file lands in the data directory
	require.NoError(t, err, output)
	assert.FileExists(t, filepath.Join(dir, ".bookrag", "qrels.silver.jsonl"))
}

func TestQrelsAutoCmd_FeedsEval(t *testing.T) {
	// Given: silver judgments generated over the corpus
	dir := buildTestIndex(t)
	queryFile := filepath.Join(dir, "queries.txt")
	require.NoError(t, os.WriteFile(queryFile,
		[]byte("emergency fund savings\nindex funds diversification\n"), 0o644))
	outPath := filepath.Join(dir, "silver.jsonl")
	_, err := runCLI(t, "qrels", "auto", "--q-file", queryFile, "--out", outPath)
	require.NoError(t, err)

	// When: evaluating against them
	output, err := runCLI(t, "eval", "--qrels", outPath)

	// Then: the run completes and flags the judgments as approximate
	require.NoError(t, err, output)
	assert.Contains(t, output, "silver-intersection")
}

func TestQrelsAutoCmd_NoIndex(t *testing.T) {
	// Given: a project without an index
	setupTestProject(t)

	// When: generating silver judgments
	_, err := runCLI(t, "qrels", "auto")

	// Then: it should fail
	require.Error(t, err)
}
