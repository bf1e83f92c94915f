package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/bookrag/bookrag/internal/corpus"
	"github.com/bookrag/bookrag/internal/embed"
	"github.com/bookrag/bookrag/internal/output"
	"github.com/bookrag/bookrag/internal/store"
)

func newIndexCmd() *cobra.Command {
	var (
		force    bool
		embedder string
	)

	cmd := &cobra.Command{
		Use:   "index [corpus.jsonl]",
		Short: "Build the retrieval indexes from a chunk corpus",
		Long: `Build the lexical and dense indexes from a pre-chunked corpus file.

The corpus is a JSONL file, one chunk record per line. Chunks that
already carry an embedding of the right dimension are reused without
calling the embedding provider.

Use --force to discard an existing index and rebuild from scratch.

Examples:
  bookrag index corpus.jsonl
  bookrag index --force
  bookrag index --embedder=static book_chunks.jsonl`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			// Ctrl+C must cancel in-flight embedding batches.
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			corpusPath := ""
			if len(args) > 0 {
				corpusPath = args[0]
			}

			if embedder != "" {
				if !embed.IsValidProvider(embedder) {
					return fmt.Errorf("unknown embedder %q (valid: ollama, static)", embedder)
				}
				os.Setenv("BOOKRAG_EMBEDDER", embedder)
			}

			return runIndex(ctx, cmd, corpusPath, force)
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Discard existing index and rebuild from scratch")
	cmd.Flags().StringVar(&embedder, "embedder", "", "Embedding provider: ollama (default) or static")

	return cmd
}

func runIndex(ctx context.Context, cmd *cobra.Command, corpusPath string, force bool) error {
	out := output.New(cmd.OutOrStdout())

	ws, err := openWorkspace()
	if err != nil {
		return err
	}
	defer ws.setupCommandLogging()()

	if corpusPath == "" {
		corpusPath = ws.Config.Corpus.Path
		if !filepath.IsAbs(corpusPath) {
			corpusPath = filepath.Join(ws.Root, corpusPath)
		}
	}
	absCorpus, err := filepath.Abs(corpusPath)
	if err == nil {
		corpusPath = absCorpus
	}

	if err := os.MkdirAll(ws.DataDir, 0o755); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}

	// One build at a time per data directory.
	lock := store.NewBuildLock(ws.DataDir)
	acquired, err := lock.TryLock()
	if err != nil {
		return err
	}
	if !acquired {
		return fmt.Errorf("another index build is running (lock: %s)", lock.Path())
	}
	defer func() { _ = lock.Unlock() }()

	if fileExists(ws.chunkStorePath()) {
		if !force {
			return fmt.Errorf("index already exists in %s\nUse --force to rebuild", ws.DataDir)
		}
		if err := clearIndexData(ws); err != nil {
			return fmt.Errorf("failed to clear index data: %w", err)
		}
		out.Print("Cleared existing index data, starting fresh...")
		slog.Info("index_force_clear", slog.String("data_dir", ws.DataDir))
	}

	start := time.Now()
	slog.Info("index_started", slog.String("corpus", corpusPath))
	out.Printf("Indexing %s", corpusPath)

	chunks, err := corpus.Load(corpusPath)
	if err != nil {
		return err
	}
	if len(chunks) == 0 {
		return fmt.Errorf("corpus %s contains no chunks", corpusPath)
	}
	out.Printf("Loaded %d chunks", len(chunks))

	metadata, err := store.NewSQLiteChunkStore(ws.chunkStorePath())
	if err != nil {
		return err
	}
	defer func() { _ = metadata.Close() }()

	if err := metadata.SaveChunks(ctx, chunks); err != nil {
		return err
	}

	if err := buildLexicalIndex(ctx, ws, chunks); err != nil {
		return err
	}
	out.Success(fmt.Sprintf("Lexical index built (%s backend)", lexicalBackendName(ws)))

	model, dims, err := buildVectorIndex(ctx, ws, out, chunks)
	if err != nil {
		return err
	}
	out.Success(fmt.Sprintf("Vector index built (%s, %d dimensions)", model, dims))

	for key, value := range map[string]string{
		store.StateKeyIndexDimension: strconv.Itoa(dims),
		store.StateKeyIndexModel:     model,
		store.StateKeyCorpusPath:     corpusPath,
		store.StateKeyIndexBuilt:     "1",
	} {
		if err := metadata.SetState(ctx, key, value); err != nil {
			return err
		}
	}

	elapsed := time.Since(start).Round(10 * time.Millisecond)
	slog.Info("index_complete",
		slog.Int("chunks", len(chunks)),
		slog.String("model", model),
		slog.Int("dimensions", dims),
		slog.Duration("elapsed", elapsed))
	out.Success(fmt.Sprintf("Indexed %d chunks in %s", len(chunks), elapsed))
	return nil
}

func lexicalBackendName(ws *workspace) string {
	if ws.Config.Storage.LexicalBackend == "" {
		return store.LexicalBackendMemory
	}
	return ws.Config.Storage.LexicalBackend
}

func buildLexicalIndex(ctx context.Context, ws *workspace, chunks []corpus.Chunk) error {
	lexical, err := store.NewLexicalIndex(ws.Config.Storage.LexicalBackend, ws.lexicalPath(), store.DefaultBM25Config())
	if err != nil {
		return err
	}
	defer func() { _ = lexical.Close() }()

	docs := make([]*store.Document, len(chunks))
	for i, c := range chunks {
		docs[i] = &store.Document{ID: c.ID, Content: c.Text}
	}
	if err := lexical.Index(ctx, docs); err != nil {
		return err
	}
	return lexical.Save(ws.lexicalPath())
}

// buildVectorIndex embeds chunks that do not carry a usable embedding
// and writes the HNSW index. Returns the model name and dimension.
func buildVectorIndex(ctx context.Context, ws *workspace, out *output.Writer, chunks []corpus.Chunk) (string, int, error) {
	embedder, err := ws.openEmbedder(ctx, nil)
	if err != nil {
		return "", 0, err
	}
	defer func() { _ = embedder.Close() }()

	dims := embedder.Dimensions()
	vectors, err := store.NewHNSWStore(store.DefaultVectorStoreConfig(dims))
	if err != nil {
		return "", 0, err
	}
	defer func() { _ = vectors.Close() }()

	batchSize := ws.Config.Embeddings.BatchSize
	if batchSize <= 0 {
		batchSize = embed.DefaultBatchSize
	}

	ids := make([]string, 0, batchSize)
	texts := make([]string, 0, batchSize)
	embedded := 0
	reused := 0

	flush := func() error {
		if len(texts) == 0 {
			return nil
		}
		vecs, err := embedder.EmbedBatch(ctx, texts)
		if err != nil {
			return err
		}
		if err := vectors.Add(ctx, ids, vecs); err != nil {
			return err
		}
		embedded += len(texts)
		ids = ids[:0]
		texts = texts[:0]
		out.Progress(embedded+reused, len(chunks), "Embedding chunks")
		return nil
	}

	for i := range chunks {
		c := &chunks[i]
		if c.HasEmbedding() && len(c.Embedding) == dims {
			if err := vectors.Add(ctx, []string{c.ID}, [][]float32{c.Embedding}); err != nil {
				return "", 0, err
			}
			reused++
			continue
		}
		ids = append(ids, c.ID)
		texts = append(texts, c.Text)
		if len(texts) >= batchSize {
			if err := flush(); err != nil {
				return "", 0, err
			}
		}
	}
	if err := flush(); err != nil {
		return "", 0, err
	}
	out.Progress(len(chunks), len(chunks), "Embedding chunks")

	slog.Info("embeddings_built",
		slog.Int("embedded", embedded),
		slog.Int("reused", reused),
		slog.String("model", embedder.ModelName()))

	if err := vectors.Save(ws.vectorPath()); err != nil {
		return "", 0, err
	}
	return embedder.ModelName(), dims, nil
}

// clearIndexData removes index artifacts, preserving the project
// config file and run history.
func clearIndexData(ws *workspace) error {
	targets := []string{
		ws.chunkStorePath(),
		ws.chunkStorePath() + "-wal",
		ws.chunkStorePath() + "-shm",
		filepath.Join(ws.DataDir, memoryIndexFile),
		filepath.Join(ws.DataDir, bleveIndexDir),
		ws.vectorPath(),
		ws.vectorPath() + ".meta",
	}

	for _, path := range targets {
		if err := os.RemoveAll(path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to remove %s: %w", filepath.Base(path), err)
		}
	}
	return nil
}
