package eval

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/bookrag/bookrag/internal/errors"
)

// Judgment is one query's relevance judgment: the set of chunk ids a
// good retrieval should surface for it.
type Judgment struct {
	Query       string   `json:"query"`
	RelevantIDs []string `json:"relevant_ids"`

	// Method records how the judgment was produced, e.g.
	// "silver-intersection" for auto-generated sets. Empty for
	// hand-labeled judgments.
	Method string `json:"method,omitempty"`
}

// maxQrelsLineBytes bounds a single JSONL line.
const maxQrelsLineBytes = 1 << 20

// ReadJudgments loads judgments from a JSONL file, one object per
// line. Blank lines and lines starting with '#' are skipped.
func ReadJudgments(path string) ([]Judgment, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.New(errors.ErrCodeFileNotFound,
			fmt.Sprintf("cannot open qrels file %s", path), err)
	}
	defer func() { _ = f.Close() }()

	judgments, err := ReadJudgmentsFrom(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return judgments, nil
}

// ReadJudgmentsFrom parses JSONL judgments from a reader.
func ReadJudgmentsFrom(r io.Reader) ([]Judgment, error) {
	var judgments []Judgment

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxQrelsLineBytes)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		var j Judgment
		if err := json.Unmarshal([]byte(line), &j); err != nil {
			return nil, errors.New(errors.ErrCodeQrelsInvalid,
				fmt.Sprintf("invalid judgment on line %d", lineNo), err)
		}
		if strings.TrimSpace(j.Query) == "" {
			return nil, errors.New(errors.ErrCodeQrelsInvalid,
				fmt.Sprintf("judgment on line %d has an empty query", lineNo), nil)
		}
		judgments = append(judgments, j)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading qrels: %w", err)
	}

	return judgments, nil
}

// judgmentsMethod returns the generation method shared by the set,
// empty for hand-labeled judgments.
func judgmentsMethod(judgments []Judgment) string {
	for _, j := range judgments {
		if j.Method != "" {
			return j.Method
		}
	}
	return ""
}

// WriteJudgments writes judgments as JSONL, atomically via a temp
// file. Auto-generated sets get a header comment marking them
// approximate; readers skip '#' lines.
func WriteJudgments(path string, judgments []Judgment) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating qrels directory: %w", err)
	}

	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("creating qrels file: %w", err)
	}

	w := bufio.NewWriter(f)
	if method := judgmentsMethod(judgments); method != "" {
		fmt.Fprintf(w, "# method=%s: approximate auto-generated judgments, not ground truth\n", method)
	}
	enc := json.NewEncoder(w)
	for _, j := range judgments {
		if err := enc.Encode(j); err != nil {
			_ = f.Close()
			_ = os.Remove(tmp)
			return fmt.Errorf("encoding judgment: %w", err)
		}
	}
	if err := w.Flush(); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return fmt.Errorf("flushing qrels: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("closing qrels: %w", err)
	}

	return os.Rename(tmp, path)
}

// JudgmentMap indexes judgments by exact query text. Later duplicates
// override earlier ones.
func JudgmentMap(judgments []Judgment) map[string]Judgment {
	m := make(map[string]Judgment, len(judgments))
	for _, j := range judgments {
		m[j.Query] = j
	}
	return m
}
