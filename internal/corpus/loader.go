package corpus

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/bookrag/bookrag/internal/errors"
)

// maxLineBytes bounds a single JSONL record. Chunks are 50-150 words,
// but inline embeddings can make lines large.
const maxLineBytes = 4 * 1024 * 1024

// Load reads a corpus from a JSONL file, one chunk record per line.
// Blank lines and lines starting with '#' are skipped. The loaded
// corpus is validated before being returned.
func Load(path string) ([]Chunk, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.New(errors.ErrCodeFileNotFound,
			fmt.Sprintf("cannot open corpus file %s", path), err)
	}
	defer f.Close()

	chunks, err := Read(f)
	if err != nil {
		return nil, fmt.Errorf("corpus %s: %w", path, err)
	}
	return chunks, nil
}

// Read parses chunk records from a JSONL stream and validates them.
func Read(r io.Reader) ([]Chunk, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxLineBytes)

	var chunks []Chunk
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		var c Chunk
		if err := json.Unmarshal([]byte(line), &c); err != nil {
			return nil, errors.New(errors.ErrCodeCorpusInvalid,
				fmt.Sprintf("line %d: invalid chunk record", lineNo), err)
		}
		chunks = append(chunks, c)
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.New(errors.ErrCodeCorpusInvalid, "reading corpus stream", err)
	}

	if err := ValidateAll(chunks); err != nil {
		return nil, err
	}
	return chunks, nil
}
