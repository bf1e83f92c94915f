package cmd

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/bookrag/bookrag/internal/eval"
	"github.com/bookrag/bookrag/internal/output"
)

func newQrelsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "qrels",
		Short: "Manage relevance judgments",
		Long:  `Generate and inspect relevance judgment files for evaluation.`,
	}

	cmd.AddCommand(newQrelsAutoCmd())
	return cmd
}

func newQrelsAutoCmd() *cobra.Command {
	var (
		outPath   string
		queryFile string
	)

	cmd := &cobra.Command{
		Use:   "auto",
		Short: "Generate approximate silver judgments",
		Long: `Generate silver relevance judgments without human labeling.

For each query, a chunk counts as relevant when it appears in both the
dense top results and the lexical top results; thin intersections are
topped up from the fused ranking. These judgments are approximate and
suitable for regression tracking, not for absolute quality claims.

Without --q-file, the built-in personal-finance query set is used.

Examples:
  bookrag qrels auto
  bookrag qrels auto --q-file queries.txt --out qrels.silver.jsonl`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQrelsAuto(cmd.Context(), cmd, outPath, queryFile)
		},
	}

	cmd.Flags().StringVar(&outPath, "out", "", "Output judgments file (default: <data-dir>/qrels.silver.jsonl)")
	cmd.Flags().StringVar(&queryFile, "q-file", "", "File with one query per line (default: built-in query set)")

	return cmd
}

func runQrelsAuto(ctx context.Context, cmd *cobra.Command, outPath, queryFile string) error {
	ws, err := openWorkspace()
	if err != nil {
		return err
	}
	defer ws.setupCommandLogging()()

	queries := eval.BuiltinQueries
	if queryFile != "" {
		queries, err = gatherQueries("", queryFile)
		if err != nil {
			return err
		}
	}

	if outPath == "" {
		outPath = filepath.Join(ws.DataDir, silverQrelsFile)
	}

	stack, err := ws.openRetrievalStack(ctx, false)
	if err != nil {
		return err
	}
	defer stack.Close()

	generator := eval.NewSilverGenerator(stack.Retriever, nil)
	judgments, err := generator.Generate(ctx, queries, stack.Retriever.Defaults())
	if err != nil {
		return err
	}

	if err := eval.WriteJudgments(outPath, judgments); err != nil {
		return err
	}

	out := output.New(cmd.OutOrStdout())
	out.Success(fmt.Sprintf("Wrote %d silver judgments to %s", len(judgments), outPath))
	out.Warning("Silver judgments are approximate (lexical/dense agreement), not human-labeled")
	out.Printf("Evaluate with: bookrag eval --qrels %s", outPath)
	return nil
}
