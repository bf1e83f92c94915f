package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/bookrag/bookrag/internal/eval"
	"github.com/bookrag/bookrag/internal/output"
)

// evalOptions holds CLI flags for eval.
type evalOptions struct {
	qrels       string
	queryFile   string
	k           int
	lexicalOnly bool
	outJSON     string
	perQueryCSV string
}

func newEvalCmd() *cobra.Command {
	var opts evalOptions

	cmd := &cobra.Command{
		Use:   "eval",
		Short: "Evaluate retrieval quality against relevance judgments",
		Long: `Run the judged queries through the retrieval pipeline and score the
results: Recall@K, nDCG@K, MRR@K, and first-relevant-rank percentiles.

Judgments are a JSONL file of {"query", "relevant_ids"} records.
Use 'bookrag qrels auto' to generate approximate silver judgments
when no hand-labeled set exists.

The summary is written to the run directory (.bookrag/runs/) as
last_run.json plus a timestamped copy.

Examples:
  bookrag eval --qrels qrels.jsonl
  bookrag eval --qrels qrels.jsonl --k 10 --per-query-csv per_query.csv
  bookrag eval --qrels qrels.jsonl --out-json report.json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEval(cmd.Context(), cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.qrels, "qrels", "", "Relevance judgments file (JSONL)")
	cmd.Flags().StringVar(&opts.queryFile, "q-file", "", "Evaluate only the queries in this file (one per line)")
	cmd.Flags().IntVarP(&opts.k, "k", "k", 0, "Evaluation depth (default from config)")
	cmd.Flags().BoolVar(&opts.lexicalOnly, "lexical-only", false, "Evaluate the lexical branch alone")
	cmd.Flags().StringVar(&opts.outJSON, "out-json", "", "Also write the report JSON to this path")
	cmd.Flags().StringVar(&opts.perQueryCSV, "per-query-csv", "", "Write per-query metrics CSV to this path")

	return cmd
}

func runEval(ctx context.Context, cmd *cobra.Command, opts evalOptions) error {
	ws, err := openWorkspace()
	if err != nil {
		return err
	}
	defer ws.setupCommandLogging()()

	qrelsPath := opts.qrels
	if qrelsPath == "" {
		qrelsPath = ws.Config.Eval.QrelsPath
		if qrelsPath != "" && !filepath.IsAbs(qrelsPath) {
			qrelsPath = filepath.Join(ws.Root, qrelsPath)
		}
	}
	if qrelsPath == "" {
		return fmt.Errorf("no judgments file: pass --qrels or set eval.qrels_path in config")
	}

	judgments, err := eval.ReadJudgments(qrelsPath)
	if err != nil {
		return err
	}

	var queries []string
	if opts.queryFile != "" {
		queries, err = gatherQueries("", opts.queryFile)
		if err != nil {
			return err
		}
	} else {
		queries = make([]string, 0, len(judgments))
		for _, j := range judgments {
			queries = append(queries, j.Query)
		}
	}

	stack, err := ws.openRetrievalStack(ctx, opts.lexicalOnly)
	if err != nil {
		return err
	}
	defer stack.Close()

	cfg := stack.Retriever.Defaults()
	if opts.k > 0 {
		cfg.K = opts.k
		if cfg.CandidatePool < cfg.K {
			cfg.CandidatePool = cfg.K
		}
	}
	cfg.LexicalOnly = opts.lexicalOnly

	harness := eval.NewHarness(stack.Retriever,
		eval.WithParallelism(ws.Config.Eval.Parallelism))
	report, err := harness.Run(ctx, queries, judgments, cfg)
	if err != nil {
		return err
	}

	out := output.New(cmd.OutOrStdout())
	out.WriteReport(report)

	if err := eval.SaveReport(report, ws.runsDir()); err != nil {
		return err
	}
	out.Newline()
	out.Printf("Report saved to %s", filepath.Join(ws.runsDir(), "last_run.json"))

	if opts.outJSON != "" {
		if err := writeReportJSON(report, opts.outJSON); err != nil {
			return err
		}
	}
	if opts.perQueryCSV != "" {
		if err := eval.WritePerQueryCSV(report, opts.perQueryCSV); err != nil {
			return err
		}
		out.Printf("Per-query metrics written to %s", opts.perQueryCSV)
	}
	return nil
}

func writeReportJSON(report *eval.Report, path string) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0o644)
}
