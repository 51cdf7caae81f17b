package domain

import "fmt"

// DomainError represents a domain-specific error
type DomainError struct {
	Code    string
	Message string
	Err     error
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError creates a new DomainError
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Err:     nil,
	}
}

// NewDomainErrorWithCause creates a new DomainError with an underlying cause
func NewDomainErrorWithCause(code, message string, err error) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// IsCode reports whether err is a DomainError carrying the given code
func IsCode(err error, code string) bool {
	domainErr, ok := err.(*DomainError)
	return ok && domainErr.Code == code
}

// Common domain error codes
const (
	ErrCodeValidation           = "VALIDATION_ERROR"
	ErrCodeNotFound             = "NOT_FOUND"
	ErrCodeConflict             = "CONFLICT"
	ErrCodeDimensionMismatch    = "DIMENSION_MISMATCH"
	ErrCodeEmbeddingUnavailable = "EMBEDDING_UNAVAILABLE"
	ErrCodeOracleUnavailable    = "ORACLE_UNAVAILABLE"
	ErrCodeStorage              = "STORAGE_ERROR"
	ErrCodeInternalError        = "INTERNAL_ERROR"
	ErrCodeInvalidOperation     = "INVALID_OPERATION"
)

// Validation errors
var (
	ErrInvalidKind = NewDomainError(ErrCodeValidation, "invalid knowledge base kind")
	ErrEmptyQuery  = NewDomainError(ErrCodeValidation, "query cannot be empty")
)

// Not found errors
var (
	ErrKnowledgeBaseNotFound = NewDomainError(ErrCodeNotFound, "knowledge base entry not found")
)

// Conflict errors
var (
	ErrDuplicateFingerprint = NewDomainError(ErrCodeConflict, "an entry with this source fingerprint already exists")
)

// Embedding errors
var (
	ErrEmbeddingUnavailable = NewDomainError(ErrCodeEmbeddingUnavailable, "embedding oracle returned no vector")
)

// NewDimensionMismatchError reports an embedding whose length disagrees with
// the configured vector dimension. Mismatches are never padded or truncated.
func NewDimensionMismatchError(got, want int) *DomainError {
	return NewDomainError(ErrCodeDimensionMismatch,
		fmt.Sprintf("embedding has %d dimensions, expected %d", got, want))
}

// NewStorageError wraps a persistence-layer failure with its underlying cause.
func NewStorageError(op string, err error) *DomainError {
	return NewDomainErrorWithCause(ErrCodeStorage, op+" failed", err)
}

// NewEmbeddingUnavailableError wraps an embedding oracle failure. Retryable by
// the caller and distinct from an empty result set.
func NewEmbeddingUnavailableError(err error) *DomainError {
	return NewDomainErrorWithCause(ErrCodeEmbeddingUnavailable, "embedding oracle failed", err)
}

// NewOracleUnavailableError wraps a synthesis oracle failure. Kept apart from
// embedding failures so callers can tell which upstream call fell over.
func NewOracleUnavailableError(err error) *DomainError {
	return NewDomainErrorWithCause(ErrCodeOracleUnavailable, "synthesis oracle failed", err)
}
