package cmd

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bookrag/bookrag/internal/errors"
	"github.com/bookrag/bookrag/internal/store"
)

func newStatsCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show index statistics",
		Long: `Display statistics about the built index: chunk and chapter counts,
lexical index size, embedding model, and dimensions.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStats(cmd.Context(), cmd, jsonOutput)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}

// StatsOutput is the JSON output format for index stats.
type StatsOutput struct {
	CorpusPath     string  `json:"corpus_path"`
	Chunks         int     `json:"chunks"`
	Chapters       int     `json:"chapters"`
	LexicalBackend string  `json:"lexical_backend"`
	LexicalDocs    int     `json:"lexical_docs"`
	LexicalTerms   int     `json:"lexical_terms"`
	AvgDocLength   float64 `json:"avg_doc_length"`
	EmbeddingModel string  `json:"embedding_model"`
	Dimensions     int     `json:"dimensions"`
}

func runStats(ctx context.Context, cmd *cobra.Command, jsonOutput bool) error {
	ws, err := openWorkspace()
	if err != nil {
		return err
	}
	defer ws.setupCommandLogging()()

	if !fileExists(ws.chunkStorePath()) {
		return errors.New(errors.ErrCodeIndexNotBuilt,
			fmt.Sprintf("no index found in %s", ws.DataDir), nil).
			WithSuggestion("run 'bookrag index' first")
	}

	chunks, err := store.NewSQLiteChunkStore(ws.chunkStorePath())
	if err != nil {
		return err
	}
	defer func() { _ = chunks.Close() }()

	stats, err := gatherStats(ctx, ws, chunks)
	if err != nil {
		return err
	}

	if jsonOutput {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(stats)
	}
	return printStatsFormatted(cmd, stats)
}

func gatherStats(ctx context.Context, ws *workspace, chunks store.ChunkStore) (*StatsOutput, error) {
	all, err := chunks.AllChunks(ctx)
	if err != nil {
		return nil, err
	}

	chapters := make(map[int]bool)
	for _, c := range all {
		chapters[c.ChapterNumber] = true
	}

	stats := &StatsOutput{
		Chunks:         len(all),
		Chapters:       len(chapters),
		LexicalBackend: lexicalBackendName(ws),
		Dimensions:     indexDimension(ctx, chunks),
	}
	stats.CorpusPath, _ = chunks.GetState(ctx, store.StateKeyCorpusPath)
	stats.EmbeddingModel, _ = chunks.GetState(ctx, store.StateKeyIndexModel)

	if lexical, err := ws.openLexicalIndex(); err == nil {
		if s := lexical.Stats(); s != nil {
			stats.LexicalDocs = s.DocumentCount
			stats.LexicalTerms = s.TermCount
			stats.AvgDocLength = s.AvgDocLength
		}
		_ = lexical.Close()
	}

	return stats, nil
}

func printStatsFormatted(cmd *cobra.Command, stats *StatsOutput) error {
	w := cmd.OutOrStdout()

	fmt.Fprintln(w, "Index Statistics")
	fmt.Fprintln(w, "================")
	fmt.Fprintln(w)

	fmt.Fprintf(w, "Corpus:          %s\n", stats.CorpusPath)
	fmt.Fprintf(w, "Chunks:          %d\n", stats.Chunks)
	fmt.Fprintf(w, "Chapters:        %d\n", stats.Chapters)
	fmt.Fprintln(w)

	fmt.Fprintf(w, "Lexical backend: %s\n", stats.LexicalBackend)
	fmt.Fprintf(w, "Indexed docs:    %d\n", stats.LexicalDocs)
	fmt.Fprintf(w, "Distinct terms:  %d\n", stats.LexicalTerms)
	fmt.Fprintf(w, "Avg doc length:  %.1f tokens\n", stats.AvgDocLength)
	fmt.Fprintln(w)

	fmt.Fprintf(w, "Embedding model: %s\n", stats.EmbeddingModel)
	fmt.Fprintf(w, "Dimensions:      %d\n", stats.Dimensions)

	return nil
}
