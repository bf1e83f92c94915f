package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"

	"github.com/bookrag/bookrag/internal/config"
	"github.com/bookrag/bookrag/internal/embed"
	"github.com/bookrag/bookrag/internal/errors"
	"github.com/bookrag/bookrag/internal/logging"
	"github.com/bookrag/bookrag/internal/search"
	"github.com/bookrag/bookrag/internal/store"
)

// Index artifact names inside the data directory.
const (
	chunkStoreFile  = "chunks.db"
	memoryIndexFile = "bm25.gob"
	bleveIndexDir   = "bm25.bleve"
	vectorFile      = "vectors.hnsw"
	runsDirName     = "runs"
	silverQrelsFile = "qrels.silver.jsonl"
)

// workspace resolves the project root, configuration, and data
// directory for a command invocation.
type workspace struct {
	Root    string
	DataDir string
	Config  *config.Config
}

func openWorkspace() (*workspace, error) {
	root, err := config.FindProjectRoot(".")
	if err != nil {
		root, _ = os.Getwd()
	}

	cfg, err := config.Load(root)
	if err != nil {
		return nil, err
	}

	dataDir := cfg.Storage.DataDir
	if dataDir == "" {
		dataDir = config.DataDirName
	}
	if !filepath.IsAbs(dataDir) {
		dataDir = filepath.Join(root, dataDir)
	}

	return &workspace{Root: root, DataDir: dataDir, Config: cfg}, nil
}

func (w *workspace) chunkStorePath() string { return filepath.Join(w.DataDir, chunkStoreFile) }
func (w *workspace) vectorPath() string     { return filepath.Join(w.DataDir, vectorFile) }
func (w *workspace) runsDir() string        { return filepath.Join(w.DataDir, runsDirName) }

func (w *workspace) lexicalPath() string {
	if w.Config.Storage.LexicalBackend == store.LexicalBackendBleve {
		return filepath.Join(w.DataDir, bleveIndexDir)
	}
	return filepath.Join(w.DataDir, memoryIndexFile)
}

// setupCommandLogging routes slog to the configured log file so
// user-facing output stays clean. Returns a no-op cleanup on failure.
func (w *workspace) setupCommandLogging() func() {
	logCfg := logging.Config{
		Level:         w.Config.Logging.Level,
		FilePath:      w.Config.Logging.FilePath,
		MaxSizeMB:     w.Config.Logging.MaxSizeMB,
		MaxFiles:      w.Config.Logging.MaxFiles,
		WriteToStderr: w.Config.Logging.Stderr,
	}
	if logCfg.FilePath == "" {
		logCfg.FilePath = logging.DefaultLogPath()
	}
	if debugMode {
		logCfg.Level = "debug"
	}

	logger, cleanup, err := logging.Setup(logCfg)
	if err != nil {
		return func() {}
	}
	slog.SetDefault(logger)
	return cleanup
}

// retrievalStack bundles the open stores behind a retriever so
// commands can close everything with one call.
type retrievalStack struct {
	Retriever *search.Retriever
	Chunks    store.ChunkStore
	closers   []func() error
}

func (s *retrievalStack) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		_ = s.closers[i]()
	}
}

// openRetrievalStack opens the persisted indexes and wires a retriever.
// With lexicalOnly set, no embedder connection is made and the dense
// branch is left nil.
func (w *workspace) openRetrievalStack(ctx context.Context, lexicalOnly bool) (*retrievalStack, error) {
	stack := &retrievalStack{}

	chunks, err := store.NewSQLiteChunkStore(w.chunkStorePath())
	if err != nil {
		stack.Close()
		return nil, err
	}
	stack.Chunks = chunks
	stack.closers = append(stack.closers, chunks.Close)

	built, err := chunks.GetState(ctx, store.StateKeyIndexBuilt)
	if err != nil || built != "1" {
		stack.Close()
		return nil, errors.New(errors.ErrCodeIndexNotBuilt,
			fmt.Sprintf("no index found in %s", w.DataDir), nil).
			WithSuggestion("run 'bookrag index' first")
	}

	lexical, err := w.openLexicalIndex()
	if err != nil {
		stack.Close()
		return nil, err
	}
	stack.closers = append(stack.closers, lexical.Close)

	var dense search.DenseScorer
	if !lexicalOnly {
		dense, err = w.openDenseScorer(ctx, chunks, stack)
		if err != nil {
			stack.Close()
			return nil, err
		}
	}

	retriever, err := search.NewRetriever(lexical, dense, chunks,
		search.WithDefaults(w.Config.SearchConfig()),
		search.WithLogger(slog.Default()))
	if err != nil {
		stack.Close()
		return nil, err
	}
	stack.Retriever = retriever
	return stack, nil
}

func (w *workspace) openLexicalIndex() (store.LexicalIndex, error) {
	backend := w.Config.Storage.LexicalBackend
	lexical, err := store.NewLexicalIndex(backend, w.lexicalPath(), store.DefaultBM25Config())
	if err != nil {
		return nil, err
	}
	// The Bleve backend opens its on-disk index at construction; the
	// in-memory backend loads its snapshot explicitly.
	if backend == "" || backend == store.LexicalBackendMemory {
		if err := lexical.Load(w.lexicalPath()); err != nil {
			_ = lexical.Close()
			return nil, err
		}
	}
	return lexical, nil
}

func (w *workspace) openDenseScorer(ctx context.Context, chunks store.ChunkStore, stack *retrievalStack) (search.DenseScorer, error) {
	dims, err := store.ReadHNSWStoreDimensions(w.vectorPath())
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeIndexNotBuilt, err).
			WithSuggestion("run 'bookrag index' to build the vector index")
	}
	if dims == 0 {
		return nil, errors.New(errors.ErrCodeIndexNotBuilt,
			fmt.Sprintf("vector index missing from %s", w.DataDir), nil).
			WithSuggestion("run 'bookrag index' to build the vector index")
	}

	vectors, err := store.NewHNSWStore(store.DefaultVectorStoreConfig(dims))
	if err != nil {
		return nil, err
	}
	stack.closers = append(stack.closers, vectors.Close)
	if err := vectors.Load(w.vectorPath()); err != nil {
		return nil, err
	}

	embedder, err := w.openEmbedder(ctx, chunks)
	if err != nil {
		return nil, err
	}
	stack.closers = append(stack.closers, embedder.Close)

	if embedder.Dimensions() != dims {
		return nil, errors.New(errors.ErrCodeDimensionMismatch,
			fmt.Sprintf("index was built with %d-dimensional embeddings, embedder produces %d", dims, embedder.Dimensions()), nil).
			WithSuggestion("run 'bookrag index --force' to rebuild with the current embedder")
	}

	return search.NewVectorDenseScorer(embedder, vectors)
}

// openEmbedder creates an embedder matching the one the index was
// built with, falling back to the configured provider and model.
func (w *workspace) openEmbedder(ctx context.Context, chunks store.ChunkStore) (embed.Embedder, error) {
	model := w.Config.Embeddings.Model
	if chunks != nil {
		if indexed, err := chunks.GetState(ctx, store.StateKeyIndexModel); err == nil && indexed != "" {
			model = indexed
		}
	}

	// The factory reads the host from the environment; the explicit
	// env var still wins over the config file.
	if w.Config.Embeddings.OllamaHost != "" && os.Getenv("BOOKRAG_OLLAMA_HOST") == "" {
		os.Setenv("BOOKRAG_OLLAMA_HOST", w.Config.Embeddings.OllamaHost)
	}

	provider := embed.ParseProvider(w.Config.Embeddings.Provider)
	return embed.NewEmbedder(ctx, provider, model)
}

// indexDimension reads the recorded embedding dimension, 0 if unset.
func indexDimension(ctx context.Context, chunks store.ChunkStore) int {
	raw, err := chunks.GetState(ctx, store.StateKeyIndexDimension)
	if err != nil || raw == "" {
		return 0
	}
	dims, err := strconv.Atoi(raw)
	if err != nil {
		return 0
	}
	return dims
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
