//go:build ignore

// Package main generates a synthetic book corpus for benchmarking.
// Usage: go run scripts/generate-corpus.go -chapters 30 -output testdata/bench/corpus.jsonl
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
)

var (
	numChapters    = flag.Int("chapters", 30, "Number of chapters to generate")
	chunksPerChap  = flag.Int("chunks", 40, "Chunks per chapter")
	outputPath     = flag.String("output", "testdata/bench/corpus.jsonl", "Output JSONL file")
	seed           = flag.Int64("seed", 42, "Random seed for reproducibility")
	wordsPerChunk  = flag.Int("words", 100, "Approximate words per chunk")
)

var topics = []string{
	"budgeting", "saving", "debt", "credit", "investing",
	"retirement", "insurance", "taxes", "real estate", "income",
}

var vocabulary = []string{
	"account", "balance", "interest", "rate", "fund", "expense", "income",
	"portfolio", "diversification", "compound", "principal", "payment",
	"emergency", "budget", "savings", "debt", "credit", "loan", "mortgage",
	"retirement", "investment", "stock", "bond", "index", "fee", "return",
	"risk", "inflation", "tax", "deduction", "asset", "liability", "equity",
	"cash", "flow", "net", "worth", "goal", "plan", "strategy", "term",
	"annual", "monthly", "percentage", "premium", "deductible", "broker",
}

var sentenceOpeners = []string{
	"The first step is understanding",
	"Most people underestimate",
	"A common mistake involves",
	"Research consistently shows",
	"Over the long term",
	"In practical terms",
	"The key principle here is",
	"Before making any decision about",
}

var categories = []string{"", "concept", "example", "definition", "exercise", "summary"}

type chunkRecord struct {
	ID            string `json:"id"`
	Text          string `json:"text"`
	ChapterTitle  string `json:"chapter_title"`
	ChapterNumber int    `json:"chapter_number"`
	Position      int    `json:"position"`
	SourceID      string `json:"source_id"`
	Category      string `json:"category,omitempty"`
}

func main() {
	flag.Parse()
	rng := rand.New(rand.NewSource(*seed))

	if err := os.MkdirAll(filepath.Dir(*outputPath), 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "mkdir: %v\n", err)
		os.Exit(1)
	}
	f, err := os.Create(*outputPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "create: %v\n", err)
		os.Exit(1)
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	total := 0
	for ch := 1; ch <= *numChapters; ch++ {
		topic := topics[rng.Intn(len(topics))]
		title := fmt.Sprintf("Chapter %d: %s", ch, capitalize(topic))
		for pos := 1; pos <= *chunksPerChap; pos++ {
			record := chunkRecord{
				ID:            fmt.Sprintf("ch%02d_p%03d", ch, pos),
				Text:          generateText(rng, topic, *wordsPerChunk),
				ChapterTitle:  title,
				ChapterNumber: ch,
				Position:      pos,
				SourceID:      "synthetic-book",
				Category:      categories[rng.Intn(len(categories))],
			}
			if err := enc.Encode(record); err != nil {
				fmt.Fprintf(os.Stderr, "encode: %v\n", err)
				os.Exit(1)
			}
			total++
		}
	}

	fmt.Printf("Generated %d chunks across %d chapters → %s\n", total, *numChapters, *outputPath)
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// generateText produces pseudo-prose biased toward the chapter topic so
// lexical and dense retrieval have realistic term distributions.
func generateText(rng *rand.Rand, topic string, words int) string {
	var b strings.Builder
	written := 0
	for written < words {
		opener := sentenceOpeners[rng.Intn(len(sentenceOpeners))]
		b.WriteString(opener)
		b.WriteByte(' ')
		b.WriteString(topic)
		written += len(strings.Fields(opener)) + 1

		sentenceLen := 8 + rng.Intn(10)
		for i := 0; i < sentenceLen; i++ {
			b.WriteByte(' ')
			b.WriteString(vocabulary[rng.Intn(len(vocabulary))])
			written++
		}
		b.WriteString(". ")
	}
	return strings.TrimSpace(b.String())
}
