package store

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"sync"
)

// MemoryBM25Index is an in-memory inverted index with Okapi BM25 scoring.
// It is the default lexical backend: small corpora fit comfortably in
// memory and serialization is byte-reproducible, so identical input
// always yields an identical index file.
type MemoryBM25Index struct {
	mu        sync.RWMutex
	config    BM25Config
	stopWords map[string]struct{}

	docIDs      []string       // insertion order
	idToPos     map[string]int // doc id -> position in docIDs
	termFreqs   []map[string]int
	docLengths  []int
	totalLength int

	docFreqs map[string]int   // term -> number of docs containing it
	postings map[string][]int // term -> doc positions, ascending

	closed bool
}

// Verify interface implementation at compile time
var _ LexicalIndex = (*MemoryBM25Index)(nil)

// NewMemoryBM25Index creates an empty in-memory BM25 index.
func NewMemoryBM25Index(config BM25Config) *MemoryBM25Index {
	if config.K1 == 0 {
		config.K1 = 1.2
	}
	if config.B == 0 {
		config.B = 0.75
	}
	if config.MinTokenLength == 0 {
		config.MinTokenLength = 2
	}
	return &MemoryBM25Index{
		config:    config,
		stopWords: BuildStopWordMap(config.StopWords),
		idToPos:   make(map[string]int),
		docFreqs:  make(map[string]int),
		postings:  make(map[string][]int),
	}
}

// Index adds documents to the index. Re-adding an existing id is an error:
// the corpus is immutable and rebuilds produce a fresh index instance.
func (m *MemoryBM25Index) Index(ctx context.Context, docs []*Document) error {
	if len(docs) == 0 {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return fmt.Errorf("index is closed")
	}

	for _, doc := range docs {
		if err := ctx.Err(); err != nil {
			return err
		}
		if _, exists := m.idToPos[doc.ID]; exists {
			return fmt.Errorf("document %s already indexed", doc.ID)
		}

		tokens := m.analyze(doc.Content)
		freqs := make(map[string]int, len(tokens))
		for _, t := range tokens {
			freqs[t]++
		}

		pos := len(m.docIDs)
		m.docIDs = append(m.docIDs, doc.ID)
		m.idToPos[doc.ID] = pos
		m.termFreqs = append(m.termFreqs, freqs)
		m.docLengths = append(m.docLengths, len(tokens))
		m.totalLength += len(tokens)

		for term := range freqs {
			m.docFreqs[term]++
			m.postings[term] = append(m.postings[term], pos)
		}
	}

	return nil
}

// analyze tokenizes and stopword-filters text using the index configuration.
func (m *MemoryBM25Index) analyze(text string) []string {
	return FilterStopWords(Tokenize(text, m.config.MinTokenLength), m.stopWords)
}

// Search scores every document containing at least one query term.
// Results are ordered by descending score, ties broken by ascending doc id.
// An empty query (no tokens after stopword removal) returns an empty list.
func (m *MemoryBM25Index) Search(ctx context.Context, query string, limit int) ([]*LexicalResult, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, fmt.Errorf("index is closed")
	}
	if limit <= 0 {
		return []*LexicalResult{}, nil
	}

	terms := uniqueSorted(m.analyze(query))
	if len(terms) == 0 {
		return []*LexicalResult{}, nil
	}

	n := len(m.docIDs)
	if n == 0 {
		return []*LexicalResult{}, nil
	}
	avgLen := float64(m.totalLength) / float64(n)

	scores := make(map[int]float64)
	matched := make(map[int][]string)
	for _, term := range terms {
		df := m.docFreqs[term]
		if df == 0 {
			continue
		}
		idf := math.Log((float64(n)-float64(df)+0.5)/(float64(df)+0.5) + 1.0)
		if idf < 0 {
			idf = 0
		}

		for _, pos := range m.postings[term] {
			tf := float64(m.termFreqs[pos][term])
			dl := float64(m.docLengths[pos])
			norm := m.config.K1 * (1.0 - m.config.B + m.config.B*dl/avgLen)
			scores[pos] += idf * (tf * (m.config.K1 + 1.0)) / (tf + norm)
			matched[pos] = append(matched[pos], term)
		}
	}

	results := make([]*LexicalResult, 0, len(scores))
	for pos, score := range scores {
		results = append(results, &LexicalResult{
			DocID:        m.docIDs[pos],
			Score:        score,
			MatchedTerms: matched[pos],
		})
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].DocID < results[j].DocID
	})

	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// Stats returns index statistics.
func (m *MemoryBM25Index) Stats() *IndexStats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed || len(m.docIDs) == 0 {
		return &IndexStats{}
	}

	return &IndexStats{
		DocumentCount: len(m.docIDs),
		TermCount:     len(m.docFreqs),
		AvgDocLength:  float64(m.totalLength) / float64(len(m.docIDs)),
	}
}

// bm25Snapshot is the on-disk representation. Documents appear in
// insertion order; JSON object keys serialize sorted, keeping the
// output byte-identical across rebuilds of the same corpus.
type bm25Snapshot struct {
	Config BM25Config     `json:"config"`
	Docs   []bm25DocEntry `json:"docs"`
}

type bm25DocEntry struct {
	ID     string         `json:"id"`
	Length int            `json:"length"`
	Terms  map[string]int `json:"terms"`
}

// Save writes the index to path atomically (temp file + rename).
func (m *MemoryBM25Index) Save(path string) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return fmt.Errorf("index is closed")
	}

	snap := bm25Snapshot{Config: m.config, Docs: make([]bm25DocEntry, len(m.docIDs))}
	for i, id := range m.docIDs {
		snap.Docs[i] = bm25DocEntry{ID: id, Length: m.docLengths[i], Terms: m.termFreqs[i]}
	}

	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal index: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create index directory: %w", err)
	}

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return fmt.Errorf("write index file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename index file: %w", err)
	}
	return nil
}

// Load replaces the index contents from a saved snapshot.
func (m *MemoryBM25Index) Load(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read index file: %w", err)
	}

	var snap bm25Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return fmt.Errorf("decode index file: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return fmt.Errorf("index is closed")
	}

	m.config = snap.Config
	m.stopWords = BuildStopWordMap(snap.Config.StopWords)
	m.docIDs = make([]string, len(snap.Docs))
	m.idToPos = make(map[string]int, len(snap.Docs))
	m.termFreqs = make([]map[string]int, len(snap.Docs))
	m.docLengths = make([]int, len(snap.Docs))
	m.totalLength = 0
	m.docFreqs = make(map[string]int)
	m.postings = make(map[string][]int)

	for i, doc := range snap.Docs {
		m.docIDs[i] = doc.ID
		m.idToPos[doc.ID] = i
		m.termFreqs[i] = doc.Terms
		m.docLengths[i] = doc.Length
		m.totalLength += doc.Length
		for term := range doc.Terms {
			m.docFreqs[term]++
			m.postings[term] = append(m.postings[term], i)
		}
	}

	return nil
}

// Close releases the index.
func (m *MemoryBM25Index) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// uniqueSorted deduplicates tokens and sorts them for a deterministic
// scoring order.
func uniqueSorted(tokens []string) []string {
	seen := make(map[string]struct{}, len(tokens))
	out := make([]string, 0, len(tokens))
	for _, t := range tokens {
		if _, ok := seen[t]; !ok {
			seen[t] = struct{}{}
			out = append(out, t)
		}
	}
	sort.Strings(out)
	return out
}
