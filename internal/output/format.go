package output

import (
	"encoding/json"
	"fmt"
	"strings"
	"unicode"

	"github.com/bookrag/bookrag/internal/eval"
	"github.com/bookrag/bookrag/internal/search"
)

// Result output formats.
const (
	FormatPretty = "pretty"
	FormatJSON   = "json"
	FormatIDs    = "ids"
)

// ValidFormats lists the accepted --format values.
func ValidFormats() []string {
	return []string{FormatPretty, FormatJSON, FormatIDs}
}

// IsValidFormat checks a --format value.
func IsValidFormat(s string) bool {
	switch strings.ToLower(s) {
	case FormatPretty, FormatJSON, FormatIDs:
		return true
	}
	return false
}

// SnippetLength is the maximum snippet length in runes.
const SnippetLength = 200

// resultJSON is the JSON shape of one retrieval result.
type resultJSON struct {
	Rank          int     `json:"rank"`
	ChunkID       string  `json:"chunk_id"`
	Score         float64 `json:"score"`
	ChapterNumber int     `json:"chapter_number"`
	ChapterTitle  string  `json:"chapter_title"`
	Position      int     `json:"position"`
	Category      string  `json:"category,omitempty"`
	InBoth        bool    `json:"in_both"`
	LexRank       int     `json:"lex_rank,omitempty"`
	DenseRank     int     `json:"dense_rank,omitempty"`
	Text          string  `json:"text,omitempty"`
}

// WriteResults renders retrieval results in the given format.
// withText controls whether chunk text (a snippet in pretty mode, the
// full text in json mode) is included.
func (w *Writer) WriteResults(results []search.Result, format string, withText bool) error {
	switch strings.ToLower(format) {
	case FormatIDs:
		for _, r := range results {
			w.Print(r.Chunk.ID)
		}
		return nil

	case FormatJSON:
		out := make([]resultJSON, len(results))
		for i, r := range results {
			out[i] = resultJSON{
				Rank:          r.Rank,
				ChunkID:       r.Chunk.ID,
				Score:         r.Score,
				ChapterNumber: r.Chunk.ChapterNumber,
				ChapterTitle:  r.Chunk.ChapterTitle,
				Position:      r.Chunk.Position,
				Category:      r.Chunk.Category,
				InBoth:        r.InBoth,
				LexRank:       r.LexRank,
				DenseRank:     r.DenseRank,
			}
			if withText {
				out[i].Text = r.Chunk.Text
			}
		}
		data, err := json.MarshalIndent(out, "", "  ")
		if err != nil {
			return fmt.Errorf("encoding results: %w", err)
		}
		w.Print(string(data))
		return nil

	case FormatPretty, "":
		w.writePretty(results, withText)
		return nil

	default:
		return fmt.Errorf("unknown format %q (valid: %s)", format, strings.Join(ValidFormats(), ", "))
	}
}

func (w *Writer) writePretty(results []search.Result, withSnippet bool) {
	if len(results) == 0 {
		w.Print("no results")
		return
	}

	s := w.styles
	for _, r := range results {
		header := fmt.Sprintf("%s %s",
			s.Rank.Render(fmt.Sprintf("%2d.", r.Rank)),
			s.Title.Render(fmt.Sprintf("ch%02d %s", r.Chunk.ChapterNumber, r.Chunk.ChapterTitle)))
		w.Print(header)

		detail := fmt.Sprintf("    %s  score=%.4f  %s",
			r.Chunk.ID, r.Score, provenance(r))
		if r.Chunk.Category != "" {
			detail += "  [" + r.Chunk.Category + "]"
		}
		w.Print(s.Label.Render(detail))

		if withSnippet {
			w.Print(s.Dim.Render("    " + Snippet(r.Chunk.Text, SnippetLength)))
		}
	}
}

// provenance describes which branches surfaced a result.
func provenance(r search.Result) string {
	switch {
	case r.InBoth:
		return fmt.Sprintf("both(lex#%d dense#%d)", r.LexRank, r.DenseRank)
	case r.LexRank > 0:
		return fmt.Sprintf("lex#%d", r.LexRank)
	case r.DenseRank > 0:
		return fmt.Sprintf("dense#%d", r.DenseRank)
	default:
		return "none"
	}
}

// Snippet collapses whitespace and truncates text to maxRunes,
// breaking at a word boundary where possible.
func Snippet(text string, maxRunes int) string {
	collapsed := strings.Join(strings.Fields(text), " ")
	runes := []rune(collapsed)
	if len(runes) <= maxRunes {
		return collapsed
	}

	cut := maxRunes
	for cut > 0 && !unicode.IsSpace(runes[cut]) {
		cut--
	}
	if cut == 0 {
		cut = maxRunes
	}
	return strings.TrimRight(string(runes[:cut]), " ") + "…"
}

// WriteReport renders an evaluation report summary.
func (w *Writer) WriteReport(report *eval.Report) {
	s := w.styles

	w.Header(fmt.Sprintf("evaluation run %s", report.RunID))
	w.Print(s.Label.Render(fmt.Sprintf("  queries: %d  skipped: %d  k: %d",
		report.Queries, report.Skipped, report.K)))
	if report.QrelsMethod != "" {
		w.Warningf("judgments are %s: approximate, not human-labeled", report.QrelsMethod)
	}
	w.Newline()

	w.Printf("  recall@%-2d mean     %.4f", report.K, report.RecallAtKMean)
	w.Printf("  ndcg@%-2d   mean     %.4f", report.K, report.NDCGAtKMean)
	w.Printf("  mrr@%-2d    mean     %.4f", report.K, report.MRRAtKMean)
	w.Printf("  first relevant    p50=%.0f  p95=%.0f (miss=%d)",
		report.FirstRelRankP50, report.FirstRelRankP95, report.K+1)
}
