package domain

import (
	"fmt"
	"time"
)

// Kind distinguishes directly ingested documents from derived summaries.
type Kind string

const (
	KindRaw       Kind = "raw"
	KindProcessed Kind = "processed"
)

// KnowledgeBase represents a top-level stored document. Its chunks live in
// document_chunks and are owned entirely by this entry: rewriting or deleting
// an entry cascades to its chunks.
type KnowledgeBase struct {
	ID                int64
	Name              string
	Content           string
	Kind              Kind
	SourceFingerprint string
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// NewKnowledgeBase creates a new KnowledgeBase instance
func NewKnowledgeBase(name, content string, kind Kind, createdAt time.Time) *KnowledgeBase {
	return &KnowledgeBase{
		Name:      name,
		Content:   content,
		Kind:      kind,
		CreatedAt: createdAt,
		UpdatedAt: createdAt,
	}
}

// ValidateKnowledgeBase validates a KnowledgeBase instance
func ValidateKnowledgeBase(kb *KnowledgeBase) error {
	if kb == nil {
		return fmt.Errorf("knowledge base cannot be nil")
	}

	if kb.Name == "" {
		return fmt.Errorf("knowledge base Name is required")
	}

	if kb.Content == "" {
		return fmt.Errorf("knowledge base Content is required")
	}

	if !IsValidKind(kb.Kind) {
		return fmt.Errorf("knowledge base Kind is invalid: %s", kb.Kind)
	}

	return nil
}

// IsValidKind checks if a Kind is valid
func IsValidKind(k Kind) bool {
	switch k {
	case KindRaw, KindProcessed:
		return true
	}
	return false
}
