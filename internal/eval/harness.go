package eval

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/bookrag/bookrag/internal/errors"
	"github.com/bookrag/bookrag/internal/search"
)

// DefaultEvalParallelism bounds concurrent query evaluation.
const DefaultEvalParallelism = 4

// QueryResult holds one query's retrieved ids and metric values.
type QueryResult struct {
	Query        string   `json:"query"`
	Retrieved    []string `json:"retrieved"`
	RecallAtK    float64  `json:"recall_at_k"`
	NDCGAtK      float64  `json:"ndcg_at_k"`
	MRRAtK       float64  `json:"mrr_at_k"`
	FirstRelRank int      `json:"first_rel_rank"`
}

// Report aggregates an evaluation run. FirstRelRank percentiles use
// the nearest-rank method over per-query first relevant ranks, with
// misses counted as k+1.
type Report struct {
	RunID           string        `json:"run_id"`
	Timestamp       time.Time     `json:"timestamp"`
	K               int           `json:"k"`
	Queries         int           `json:"queries"`
	Skipped         int           `json:"skipped"`
	QrelsMethod     string        `json:"qrels_method,omitempty"`
	RecallAtKMean   float64       `json:"recall_at_k_mean"`
	NDCGAtKMean     float64       `json:"ndcg_at_k_mean"`
	MRRAtKMean      float64       `json:"mrr_at_k_mean"`
	FirstRelRankP50 float64       `json:"first_rel_rank_p50"`
	FirstRelRankP95 float64       `json:"first_rel_rank_p95"`
	PerQuery        []QueryResult `json:"per_query"`
}

// Harness runs a query set through the retrieval pipeline and scores
// the results against relevance judgments.
type Harness struct {
	retriever   *search.Retriever
	logger      *slog.Logger
	parallelism int
}

// HarnessOption configures a Harness.
type HarnessOption func(*Harness)

// WithHarnessLogger sets the structured logger.
func WithHarnessLogger(logger *slog.Logger) HarnessOption {
	return func(h *Harness) {
		h.logger = logger
	}
}

// WithParallelism bounds concurrent query evaluation.
func WithParallelism(n int) HarnessOption {
	return func(h *Harness) {
		if n > 0 {
			h.parallelism = n
		}
	}
}

// NewHarness creates an evaluation harness over the given retriever.
func NewHarness(retriever *search.Retriever, opts ...HarnessOption) *Harness {
	h := &Harness{
		retriever:   retriever,
		logger:      slog.Default(),
		parallelism: DefaultEvalParallelism,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Run evaluates every judged query and aggregates the metrics. Queries
// without a judgment, and judgments whose query is not in the query
// set, are skipped with a warning rather than failing the run. Query
// evaluation runs in parallel but the report is deterministic: results
// keep query-set order and each query's retrieval is itself
// deterministic.
func (h *Harness) Run(ctx context.Context, queries []string, judgments []Judgment, cfg search.RetrievalConfig) (*Report, error) {
	byQuery := JudgmentMap(judgments)

	inQuerySet := make(map[string]bool, len(queries))
	for _, q := range queries {
		inQuerySet[q] = true
	}
	for _, j := range judgments {
		if !inQuerySet[j.Query] {
			h.logger.Warn("judgment_without_query",
				slog.String("code", errors.ErrCodeJudgmentMismatch),
				slog.String("query", j.Query))
		}
	}

	type judged struct {
		query    string
		relevant map[string]bool
	}
	var evaluable []judged
	skipped := 0
	for _, q := range queries {
		j, ok := byQuery[q]
		if !ok {
			h.logger.Warn("query_without_judgment",
				slog.String("code", errors.ErrCodeJudgmentMismatch),
				slog.String("query", q))
			skipped++
			continue
		}
		relevant := make(map[string]bool, len(j.RelevantIDs))
		for _, id := range j.RelevantIDs {
			relevant[id] = true
		}
		evaluable = append(evaluable, judged{query: q, relevant: relevant})
	}

	if len(evaluable) == 0 {
		return nil, fmt.Errorf("no queries with judgments to evaluate")
	}

	perQuery := make([]QueryResult, len(evaluable))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(h.parallelism)
	for i, jq := range evaluable {
		g.Go(func() error {
			results, err := h.retriever.Retrieve(gctx, jq.query, cfg)
			if err != nil {
				return fmt.Errorf("retrieving %q: %w", jq.query, err)
			}

			retrieved := make([]string, len(results))
			for r, res := range results {
				retrieved[r] = res.Chunk.ID
			}

			perQuery[i] = QueryResult{
				Query:        jq.query,
				Retrieved:    retrieved,
				RecallAtK:    RecallAtK(retrieved, jq.relevant, cfg.K),
				NDCGAtK:      NDCGAtK(retrieved, jq.relevant, cfg.K),
				MRRAtK:       MRRAtK(retrieved, jq.relevant, cfg.K),
				FirstRelRank: FirstRelevantRank(retrieved, jq.relevant, cfg.K),
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	recalls := make([]float64, len(perQuery))
	ndcgs := make([]float64, len(perQuery))
	mrrs := make([]float64, len(perQuery))
	firstRanks := make([]float64, len(perQuery))
	for i, qr := range perQuery {
		recalls[i] = qr.RecallAtK
		ndcgs[i] = qr.NDCGAtK
		mrrs[i] = qr.MRRAtK
		firstRanks[i] = float64(qr.FirstRelRank)
	}

	// Surface the judgment provenance so reports generated from
	// silver qrels are visibly approximate.
	method := ""
	for _, j := range judgments {
		if j.Method != "" {
			method = j.Method
			break
		}
	}

	report := &Report{
		RunID:           uuid.NewString(),
		Timestamp:       time.Now().UTC(),
		K:               cfg.K,
		Queries:         len(perQuery),
		Skipped:         skipped,
		QrelsMethod:     method,
		RecallAtKMean:   Mean(recalls),
		NDCGAtKMean:     Mean(ndcgs),
		MRRAtKMean:      Mean(mrrs),
		FirstRelRankP50: Percentile(firstRanks, 50),
		FirstRelRankP95: Percentile(firstRanks, 95),
		PerQuery:        perQuery,
	}

	h.logger.Info("evaluation_complete",
		slog.String("run_id", report.RunID),
		slog.Int("queries", report.Queries),
		slog.Int("skipped", report.Skipped),
		slog.Float64("recall_at_k_mean", report.RecallAtKMean),
		slog.Float64("ndcg_at_k_mean", report.NDCGAtKMean),
		slog.Float64("mrr_at_k_mean", report.MRRAtKMean))

	return report, nil
}

// SaveReport writes the report under dir as both last_run.json and a
// timestamped copy keyed by run id.
func SaveReport(report *Report, dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating runs directory: %w", err)
	}

	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding report: %w", err)
	}
	data = append(data, '\n')

	stamped := fmt.Sprintf("%s_%s.json",
		report.Timestamp.Format("20060102T150405Z"), report.RunID[:8])
	if err := os.WriteFile(filepath.Join(dir, stamped), data, 0o644); err != nil {
		return fmt.Errorf("writing report: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "last_run.json"), data, 0o644); err != nil {
		return fmt.Errorf("writing last run report: %w", err)
	}
	return nil
}

// WritePerQueryCSV writes one row per evaluated query.
func WritePerQueryCSV(report *Report, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating csv directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating csv: %w", err)
	}
	defer func() { _ = f.Close() }()

	w := csv.NewWriter(f)
	if err := w.Write([]string{"query", "recall_at_k", "ndcg_at_k", "mrr_at_k", "first_rel_rank"}); err != nil {
		return fmt.Errorf("writing csv header: %w", err)
	}
	for _, qr := range report.PerQuery {
		row := []string{
			qr.Query,
			strconv.FormatFloat(qr.RecallAtK, 'f', 4, 64),
			strconv.FormatFloat(qr.NDCGAtK, 'f', 4, 64),
			strconv.FormatFloat(qr.MRRAtK, 'f', 4, 64),
			strconv.Itoa(qr.FirstRelRank),
		}
		if err := w.Write(row); err != nil {
			return fmt.Errorf("writing csv row: %w", err)
		}
	}
	w.Flush()
	return w.Error()
}
