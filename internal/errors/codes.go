// Package errors provides structured error handling for bookrag.
//
// Error codes follow the pattern ERR_XXX_DESCRIPTION where:
//   - 1XX: Configuration errors
//   - 2XX: IO errors (index files, corpus files)
//   - 3XX: Embedder/network errors
//   - 4XX: Validation errors
//   - 5XX: Internal errors
package errors

// Category defines error categories for classification.
type Category string

const (
	// CategoryConfig indicates configuration-related errors.
	CategoryConfig Category = "CONFIG"
	// CategoryIO indicates file and disk I/O errors.
	CategoryIO Category = "IO"
	// CategoryNetwork indicates embedder and network errors.
	CategoryNetwork Category = "NETWORK"
	// CategoryValidation indicates input validation errors.
	CategoryValidation Category = "VALIDATION"
	// CategoryInternal indicates unexpected internal errors.
	CategoryInternal Category = "INTERNAL"
)

// Severity defines error severity levels.
type Severity string

const (
	// SeverityFatal indicates unrecoverable error, must abort.
	SeverityFatal Severity = "FATAL"
	// SeverityError indicates operation failed but can continue.
	SeverityError Severity = "ERROR"
	// SeverityWarning indicates degraded operation, continuing.
	SeverityWarning Severity = "WARNING"
	// SeverityInfo indicates informational only.
	SeverityInfo Severity = "INFO"
)

// Error codes organized by category.
const (
	// Config errors (100-199)
	ErrCodeConfigNotFound = "ERR_101_CONFIG_NOT_FOUND"
	ErrCodeConfigInvalid  = "ERR_102_CONFIG_INVALID"
	ErrCodeConfigRange    = "ERR_103_CONFIG_RANGE"

	// IO errors (200-299)
	ErrCodeFileNotFound  = "ERR_201_FILE_NOT_FOUND"
	ErrCodeCorruptIndex  = "ERR_202_CORRUPT_INDEX"
	ErrCodeIndexLocked   = "ERR_203_INDEX_LOCKED"
	ErrCodeCorpusInvalid = "ERR_204_CORPUS_INVALID"
	ErrCodeStoreClosed   = "ERR_205_STORE_CLOSED"

	// Embedder/network errors (300-399)
	ErrCodeEmbedderUnavailable = "ERR_301_EMBEDDER_UNAVAILABLE"
	ErrCodeEmbedderTimeout     = "ERR_302_EMBEDDER_TIMEOUT"

	// Validation errors (400-499)
	ErrCodeQueryEmpty          = "ERR_401_QUERY_EMPTY"
	ErrCodeMalformedCandidates = "ERR_402_MALFORMED_CANDIDATES"
	ErrCodeJudgmentMismatch    = "ERR_403_JUDGMENT_MISMATCH"
	ErrCodeDimensionMismatch   = "ERR_404_DIMENSION_MISMATCH"
	ErrCodeChunkInvalid        = "ERR_405_CHUNK_INVALID"
	ErrCodeQrelsInvalid        = "ERR_406_QRELS_INVALID"

	// Internal errors (500-599)
	ErrCodeInternal         = "ERR_501_INTERNAL"
	ErrCodeIndexNotBuilt    = "ERR_502_INDEX_NOT_BUILT"
	ErrCodeDenseUnavailable = "ERR_503_DENSE_UNAVAILABLE"
	ErrCodeSearchFailed     = "ERR_504_SEARCH_FAILED"
)

// categoryFromCode extracts category from error code.
func categoryFromCode(code string) Category {
	if len(code) < 7 {
		return CategoryInternal
	}

	// Extract numeric portion (e.g., "101" from "ERR_101_CONFIG_NOT_FOUND")
	numStr := code[4:7]
	if len(numStr) < 1 {
		return CategoryInternal
	}

	switch numStr[0] {
	case '1':
		return CategoryConfig
	case '2':
		return CategoryIO
	case '3':
		return CategoryNetwork
	case '4':
		return CategoryValidation
	default:
		return CategoryInternal
	}
}

// severityFromCode determines severity based on error code.
func severityFromCode(code string) Severity {
	switch code {
	case ErrCodeCorruptIndex:
		return SeverityFatal
	case ErrCodeQueryEmpty, ErrCodeJudgmentMismatch:
		return SeverityWarning
	}

	if isRetryableCode(code) {
		return SeverityWarning
	}

	return SeverityError
}

// isRetryableCode checks if an error code represents a retryable error.
func isRetryableCode(code string) bool {
	switch code {
	case ErrCodeEmbedderUnavailable, ErrCodeEmbedderTimeout, ErrCodeIndexLocked, ErrCodeDenseUnavailable:
		return true
	default:
		return false
	}
}
