// Package config loads bookrag configuration. Settings apply in order
// of increasing precedence: hardcoded defaults, the user config
// (~/.config/bookrag/config.yaml), the project config (.bookrag.yaml),
// then BOOKRAG_* environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/bookrag/bookrag/internal/errors"
	"github.com/bookrag/bookrag/internal/search"
)

// DataDirName is the per-project data directory.
const DataDirName = ".bookrag"

// Config is the complete bookrag configuration.
type Config struct {
	Version    int              `yaml:"version" json:"version"`
	Corpus     CorpusConfig     `yaml:"corpus" json:"corpus"`
	Retrieval  RetrievalConfig  `yaml:"retrieval" json:"retrieval"`
	Storage    StorageConfig    `yaml:"storage" json:"storage"`
	Embeddings EmbeddingsConfig `yaml:"embeddings" json:"embeddings"`
	Eval       EvalConfig       `yaml:"eval" json:"eval"`
	Logging    LoggingConfig    `yaml:"logging" json:"logging"`
}

// CorpusConfig locates the chunk corpus.
type CorpusConfig struct {
	// Path is the JSONL corpus file to index.
	Path string `yaml:"path" json:"path"`
}

// RetrievalConfig holds retrieval pipeline parameters. Fields where
// zero is a meaningful value (lambda, per-chapter cap, the filter
// switches) are pointers so an explicit zero in YAML survives merging.
type RetrievalConfig struct {
	K                int      `yaml:"k" json:"k"`
	CandidatePool    int      `yaml:"candidate_pool" json:"candidate_pool"`
	RRFK             int      `yaml:"rrf_k" json:"rrf_k"`
	MMRLambda        *float64 `yaml:"mmr_lambda" json:"mmr_lambda"`
	MaxPerChapter    *int     `yaml:"max_per_chapter" json:"max_per_chapter"`
	ExcludeChapters  []int    `yaml:"exclude_chapters" json:"exclude_chapters"`
	UseFilters       *bool    `yaml:"use_filters" json:"use_filters"`
	UsePerChapterCap *bool    `yaml:"use_per_chapter_cap" json:"use_per_chapter_cap"`
	LexicalOnly      bool     `yaml:"lexical_only" json:"lexical_only"`
}

// StorageConfig configures the index backends.
type StorageConfig struct {
	// DataDir is where indexes and run artifacts live.
	// Default: <project>/.bookrag
	DataDir string `yaml:"data_dir" json:"data_dir"`

	// LexicalBackend selects the lexical index implementation.
	// Options: "memory" (default, exact BM25) or "bleve".
	LexicalBackend string `yaml:"lexical_backend" json:"lexical_backend"`
}

// EmbeddingsConfig configures the embedding provider.
type EmbeddingsConfig struct {
	Provider   string `yaml:"provider" json:"provider"`
	Model      string `yaml:"model" json:"model"`
	Dimensions int    `yaml:"dimensions" json:"dimensions"`
	BatchSize  int    `yaml:"batch_size" json:"batch_size"`
	OllamaHost string `yaml:"ollama_host" json:"ollama_host"`
	CacheSize  int    `yaml:"cache_size" json:"cache_size"`
}

// EvalConfig configures the evaluation harness.
type EvalConfig struct {
	// QrelsPath is the default relevance judgments file.
	QrelsPath string `yaml:"qrels_path" json:"qrels_path"`

	// Parallelism bounds concurrent query evaluation.
	Parallelism int `yaml:"parallelism" json:"parallelism"`
}

// LoggingConfig configures structured logging.
type LoggingConfig struct {
	Level     string `yaml:"level" json:"level"`
	FilePath  string `yaml:"file_path" json:"file_path"`
	MaxSizeMB int    `yaml:"max_size_mb" json:"max_size_mb"`
	MaxFiles  int    `yaml:"max_files" json:"max_files"`
	Stderr    bool   `yaml:"stderr" json:"stderr"`
}

// NewConfig creates a Config with defaults.
func NewConfig() *Config {
	defaults := search.DefaultRetrievalConfig()

	lambda := defaults.MMRLambda
	maxPerChapter := defaults.MaxPerChapter
	useFilters := defaults.UseFilters
	useCap := defaults.UsePerChapterCap

	return &Config{
		Version: 1,
		Corpus: CorpusConfig{
			Path: "corpus.jsonl",
		},
		Retrieval: RetrievalConfig{
			K:                defaults.K,
			CandidatePool:    defaults.CandidatePool,
			RRFK:             defaults.RRFK,
			MMRLambda:        &lambda,
			MaxPerChapter:    &maxPerChapter,
			ExcludeChapters:  nil,
			UseFilters:       &useFilters,
			UsePerChapterCap: &useCap,
			LexicalOnly:      false,
		},
		Storage: StorageConfig{
			DataDir:        DataDirName,
			LexicalBackend: "memory",
		},
		Embeddings: EmbeddingsConfig{
			Provider:   "ollama",
			Model:      "", // Empty uses the provider default
			Dimensions: 0,  // Auto-detect from embedder
			BatchSize:  32,
			OllamaHost: "", // Empty uses default http://localhost:11434
			CacheSize:  1000,
		},
		Eval: EvalConfig{
			QrelsPath:   filepath.Join(DataDirName, "qrels.jsonl"),
			Parallelism: 4,
		},
		Logging: LoggingConfig{
			Level:     "info",
			FilePath:  "", // Empty uses the default log directory
			MaxSizeMB: 10,
			MaxFiles:  3,
			Stderr:    false,
		},
	}
}

// SearchConfig converts the retrieval section into the engine's
// config type, resolving unset pointers to defaults.
func (c *Config) SearchConfig() search.RetrievalConfig {
	out := search.DefaultRetrievalConfig()

	if c.Retrieval.K != 0 {
		out.K = c.Retrieval.K
	}
	if c.Retrieval.CandidatePool != 0 {
		out.CandidatePool = c.Retrieval.CandidatePool
	}
	if c.Retrieval.RRFK != 0 {
		out.RRFK = c.Retrieval.RRFK
	}
	if c.Retrieval.MMRLambda != nil {
		out.MMRLambda = *c.Retrieval.MMRLambda
	}
	if c.Retrieval.MaxPerChapter != nil {
		out.MaxPerChapter = *c.Retrieval.MaxPerChapter
	}
	if c.Retrieval.UseFilters != nil {
		out.UseFilters = *c.Retrieval.UseFilters
	}
	if c.Retrieval.UsePerChapterCap != nil {
		out.UsePerChapterCap = *c.Retrieval.UsePerChapterCap
	}
	out.ExcludeChapters = append([]int(nil), c.Retrieval.ExcludeChapters...)
	out.LexicalOnly = c.Retrieval.LexicalOnly

	return out
}

// GetUserConfigPath returns the path to the user configuration file,
// following the XDG Base Directory layout.
func GetUserConfigPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "bookrag", "config.yaml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".config", "bookrag", "config.yaml")
	}
	return filepath.Join(home, ".config", "bookrag", "config.yaml")
}

// GetUserConfigDir returns the directory containing the user configuration.
func GetUserConfigDir() string {
	return filepath.Dir(GetUserConfigPath())
}

// UserConfigExists returns true if the user configuration file exists.
func UserConfigExists() bool {
	return fileExists(GetUserConfigPath())
}

// loadUserConfig loads the user configuration file if it exists.
func loadUserConfig() (*Config, error) {
	configPath := GetUserConfigPath()
	if !fileExists(configPath) {
		return nil, nil
	}

	var cfg Config
	if err := readYAML(configPath, &cfg); err != nil {
		return nil, fmt.Errorf("failed to load user config from %s: %w", configPath, err)
	}
	return &cfg, nil
}

// Load loads configuration for the project at dir.
func Load(dir string) (*Config, error) {
	cfg := NewConfig()

	if userCfg, err := loadUserConfig(); err != nil {
		return nil, err
	} else if userCfg != nil {
		cfg.mergeWith(userCfg)
	}

	if err := cfg.loadProjectFile(dir); err != nil {
		return nil, err
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// loadProjectFile merges .bookrag.yaml or .bookrag.yml from dir.
func (c *Config) loadProjectFile(dir string) error {
	for _, name := range []string{".bookrag.yaml", ".bookrag.yml"} {
		path := filepath.Join(dir, name)
		if !fileExists(path) {
			continue
		}
		var parsed Config
		if err := readYAML(path, &parsed); err != nil {
			return err
		}
		c.mergeWith(&parsed)
		return nil
	}
	// No project config is fine, defaults apply.
	return nil
}

func readYAML(path string, out *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.New(errors.ErrCodeConfigNotFound,
			fmt.Sprintf("failed to read config file %s", path), err)
	}
	if err := yaml.Unmarshal(data, out); err != nil {
		return errors.New(errors.ErrCodeConfigInvalid,
			fmt.Sprintf("failed to parse config file %s", path), err)
	}
	return nil
}

// mergeWith merges set values from other into c. Pointer fields merge
// when non-nil, value fields when non-zero.
func (c *Config) mergeWith(other *Config) {
	if other.Version != 0 {
		c.Version = other.Version
	}

	if other.Corpus.Path != "" {
		c.Corpus.Path = other.Corpus.Path
	}

	if other.Retrieval.K != 0 {
		c.Retrieval.K = other.Retrieval.K
	}
	if other.Retrieval.CandidatePool != 0 {
		c.Retrieval.CandidatePool = other.Retrieval.CandidatePool
	}
	if other.Retrieval.RRFK != 0 {
		c.Retrieval.RRFK = other.Retrieval.RRFK
	}
	if other.Retrieval.MMRLambda != nil {
		c.Retrieval.MMRLambda = other.Retrieval.MMRLambda
	}
	if other.Retrieval.MaxPerChapter != nil {
		c.Retrieval.MaxPerChapter = other.Retrieval.MaxPerChapter
	}
	if len(other.Retrieval.ExcludeChapters) > 0 {
		c.Retrieval.ExcludeChapters = other.Retrieval.ExcludeChapters
	}
	if other.Retrieval.UseFilters != nil {
		c.Retrieval.UseFilters = other.Retrieval.UseFilters
	}
	if other.Retrieval.UsePerChapterCap != nil {
		c.Retrieval.UsePerChapterCap = other.Retrieval.UsePerChapterCap
	}
	if other.Retrieval.LexicalOnly {
		c.Retrieval.LexicalOnly = true
	}

	if other.Storage.DataDir != "" {
		c.Storage.DataDir = other.Storage.DataDir
	}
	if other.Storage.LexicalBackend != "" {
		c.Storage.LexicalBackend = other.Storage.LexicalBackend
	}

	if other.Embeddings.Provider != "" {
		c.Embeddings.Provider = other.Embeddings.Provider
	}
	if other.Embeddings.Model != "" {
		c.Embeddings.Model = other.Embeddings.Model
	}
	if other.Embeddings.Dimensions != 0 {
		c.Embeddings.Dimensions = other.Embeddings.Dimensions
	}
	if other.Embeddings.BatchSize != 0 {
		c.Embeddings.BatchSize = other.Embeddings.BatchSize
	}
	if other.Embeddings.OllamaHost != "" {
		c.Embeddings.OllamaHost = other.Embeddings.OllamaHost
	}
	if other.Embeddings.CacheSize != 0 {
		c.Embeddings.CacheSize = other.Embeddings.CacheSize
	}

	if other.Eval.QrelsPath != "" {
		c.Eval.QrelsPath = other.Eval.QrelsPath
	}
	if other.Eval.Parallelism != 0 {
		c.Eval.Parallelism = other.Eval.Parallelism
	}

	if other.Logging.Level != "" {
		c.Logging.Level = other.Logging.Level
	}
	if other.Logging.FilePath != "" {
		c.Logging.FilePath = other.Logging.FilePath
	}
	if other.Logging.MaxSizeMB != 0 {
		c.Logging.MaxSizeMB = other.Logging.MaxSizeMB
	}
	if other.Logging.MaxFiles != 0 {
		c.Logging.MaxFiles = other.Logging.MaxFiles
	}
	if other.Logging.Stderr {
		c.Logging.Stderr = true
	}
}

// applyEnvOverrides applies BOOKRAG_* environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("BOOKRAG_CORPUS"); v != "" {
		c.Corpus.Path = v
	}
	if v := os.Getenv("BOOKRAG_K"); v != "" {
		if k, err := strconv.Atoi(v); err == nil && k > 0 {
			c.Retrieval.K = k
		}
	}
	if v := os.Getenv("BOOKRAG_RRF_K"); v != "" {
		if k, err := strconv.Atoi(v); err == nil && k >= 0 {
			c.Retrieval.RRFK = k
		}
	}
	if v := os.Getenv("BOOKRAG_MMR_LAMBDA"); v != "" {
		if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil && f >= 0 && f <= 1 {
			c.Retrieval.MMRLambda = &f
		}
	}
	if v := os.Getenv("BOOKRAG_DATA_DIR"); v != "" {
		c.Storage.DataDir = v
	}
	if v := os.Getenv("BOOKRAG_LEXICAL_BACKEND"); v != "" {
		c.Storage.LexicalBackend = v
	}
	if v := os.Getenv("BOOKRAG_EMBEDDER"); v != "" {
		c.Embeddings.Provider = v
	}
	if v := os.Getenv("BOOKRAG_OLLAMA_MODEL"); v != "" {
		c.Embeddings.Model = v
	}
	if v := os.Getenv("BOOKRAG_OLLAMA_HOST"); v != "" {
		c.Embeddings.OllamaHost = v
	}
	if v := os.Getenv("BOOKRAG_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
}

// Validate checks the final configuration.
func (c *Config) Validate() error {
	sc := c.SearchConfig()
	if err := sc.Validate(); err != nil {
		return err
	}

	switch c.Storage.LexicalBackend {
	case "", "memory", "bleve":
	default:
		return errors.New(errors.ErrCodeConfigInvalid,
			fmt.Sprintf("unknown lexical backend %q (valid: memory, bleve)", c.Storage.LexicalBackend), nil)
	}

	switch strings.ToLower(c.Logging.Level) {
	case "", "debug", "info", "warn", "error":
	default:
		return errors.New(errors.ErrCodeConfigInvalid,
			fmt.Sprintf("unknown log level %q", c.Logging.Level), nil)
	}

	if c.Eval.Parallelism < 0 {
		return errors.New(errors.ErrCodeConfigRange,
			"eval.parallelism must not be negative", nil)
	}

	return nil
}

// Save writes the configuration to path as YAML.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	return os.WriteFile(path, data, 0o644)
}

// FindProjectRoot walks up from startDir looking for a .git directory
// or a .bookrag.yaml/.yml file. Falls back to startDir itself.
func FindProjectRoot(startDir string) (string, error) {
	absDir, err := filepath.Abs(startDir)
	if err != nil {
		return "", fmt.Errorf("failed to get absolute path: %w", err)
	}

	currentDir := absDir
	for {
		if dirExists(filepath.Join(currentDir, ".git")) {
			return currentDir, nil
		}
		if fileExists(filepath.Join(currentDir, ".bookrag.yaml")) ||
			fileExists(filepath.Join(currentDir, ".bookrag.yml")) {
			return currentDir, nil
		}

		parentDir := filepath.Dir(currentDir)
		if parentDir == currentDir {
			return absDir, nil
		}
		currentDir = parentDir
	}
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

func dirExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
