package cmd

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/bookrag/bookrag/internal/errors"
	"github.com/bookrag/bookrag/internal/output"
	"github.com/bookrag/bookrag/internal/search"
)

// retrieveOptions holds CLI flags for retrieve.
type retrieveOptions struct {
	query           string
	queryFile       string
	k               int
	format          string
	snippet         bool
	lexicalOnly     bool
	excludeChapters []int
	maxPerChapter   int
	noFilters       bool
	noChapterCap    bool
	mmrLambda       float64
}

func newRetrieveCmd() *cobra.Command {
	var opts retrieveOptions

	cmd := &cobra.Command{
		Use:   "retrieve",
		Short: "Retrieve chunks for a query",
		Long: `Retrieve the top chunks for a query using the hybrid pipeline.

Lexical (BM25) and dense (embedding) candidates are fused with
Reciprocal Rank Fusion, filtered by chapter metadata, and re-ranked
with MMR for diversity.

Examples:
  bookrag retrieve --q "debt snowball vs avalanche"
  bookrag retrieve --q "emergency fund size" --k 10 --format json
  bookrag retrieve --q "index funds" --lexical-only
  bookrag retrieve --q-file queries.txt --format ids
  bookrag retrieve --q "compound interest" --exclude-chapters 1,2`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if (opts.query == "") == (opts.queryFile == "") {
				return fmt.Errorf("exactly one of --q or --q-file is required")
			}
			if !output.IsValidFormat(opts.format) {
				return fmt.Errorf("unknown format %q (valid: %s)",
					opts.format, strings.Join(output.ValidFormats(), ", "))
			}
			return runRetrieve(cmd.Context(), cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.query, "q", "", "Query text")
	cmd.Flags().StringVar(&opts.queryFile, "q-file", "", "File with one query per line")
	cmd.Flags().IntVarP(&opts.k, "k", "k", 0, "Number of results (default from config)")
	cmd.Flags().StringVarP(&opts.format, "format", "f", output.FormatPretty, "Output format: pretty, json, ids")
	cmd.Flags().BoolVar(&opts.snippet, "snippet", false, "Include a text snippet per result")
	cmd.Flags().BoolVar(&opts.lexicalOnly, "lexical-only", false, "Keyword search only (skip the dense branch)")
	cmd.Flags().IntSliceVar(&opts.excludeChapters, "exclude-chapters", nil, "Chapter numbers to exclude (repeatable or comma-separated)")
	cmd.Flags().IntVar(&opts.maxPerChapter, "max-per-chapter", -1, "Cap results per chapter (0 = unlimited)")
	cmd.Flags().BoolVar(&opts.noFilters, "no-filters", false, "Disable chapter exclusion filtering")
	cmd.Flags().BoolVar(&opts.noChapterCap, "no-chapter-cap", false, "Disable the per-chapter cap")
	cmd.Flags().Float64Var(&opts.mmrLambda, "mmr-lambda", -1, "Relevance/diversity trade-off in [0,1]")

	return cmd
}

func runRetrieve(ctx context.Context, cmd *cobra.Command, opts retrieveOptions) error {
	ws, err := openWorkspace()
	if err != nil {
		return err
	}
	defer ws.setupCommandLogging()()

	queries, err := gatherQueries(opts.query, opts.queryFile)
	if err != nil {
		return err
	}

	stack, err := ws.openRetrievalStack(ctx, opts.lexicalOnly)
	if err != nil {
		return err
	}
	defer stack.Close()

	cfg := stack.Retriever.Defaults()
	applyRetrieveFlags(&cfg, opts)

	out := output.New(cmd.OutOrStdout())
	for i, query := range queries {
		slog.Info("retrieve_started", slog.String("query", query), slog.Int("k", cfg.K))

		results, err := stack.Retriever.Retrieve(ctx, query, cfg)
		if err != nil {
			if errors.IsCode(err, errors.ErrCodeDenseUnavailable) {
				out.Warning("Dense retrieval unavailable; rerun with --lexical-only for keyword-only results")
			}
			return err
		}
		slog.Info("retrieve_complete", slog.String("query", query), slog.Int("results", len(results)))

		if len(queries) > 1 && opts.format == output.FormatPretty {
			if i > 0 {
				out.Newline()
			}
			out.Header(fmt.Sprintf("Query: %s", query))
		}
		if len(results) == 0 && opts.format == output.FormatPretty {
			out.Printf("No results for %q", query)
			continue
		}
		if err := out.WriteResults(results, opts.format, opts.snippet); err != nil {
			return err
		}
	}
	return nil
}

// applyRetrieveFlags layers explicit flags over the configured defaults.
func applyRetrieveFlags(cfg *search.RetrievalConfig, opts retrieveOptions) {
	if opts.k > 0 {
		cfg.K = opts.k
		if cfg.CandidatePool < cfg.K {
			cfg.CandidatePool = cfg.K
		}
	}
	if opts.mmrLambda >= 0 {
		cfg.MMRLambda = opts.mmrLambda
	}
	if len(opts.excludeChapters) > 0 {
		cfg.ExcludeChapters = opts.excludeChapters
		cfg.UseFilters = true
	}
	if opts.maxPerChapter >= 0 {
		cfg.MaxPerChapter = opts.maxPerChapter
		cfg.UsePerChapterCap = opts.maxPerChapter > 0
	}
	if opts.noFilters {
		cfg.UseFilters = false
	}
	if opts.noChapterCap {
		cfg.UsePerChapterCap = false
	}
	cfg.LexicalOnly = opts.lexicalOnly
}

// gatherQueries returns the single inline query or the non-blank lines
// of the query file.
func gatherQueries(query, queryFile string) ([]string, error) {
	if query != "" {
		return []string{query}, nil
	}

	f, err := os.Open(queryFile)
	if err != nil {
		return nil, errors.New(errors.ErrCodeFileNotFound,
			fmt.Sprintf("cannot open query file %s", queryFile), err)
	}
	defer f.Close()

	var queries []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		queries = append(queries, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading query file: %w", err)
	}
	if len(queries) == 0 {
		return nil, errors.New(errors.ErrCodeQueryEmpty,
			fmt.Sprintf("query file %s contains no queries", queryFile), nil)
	}
	return queries, nil
}
