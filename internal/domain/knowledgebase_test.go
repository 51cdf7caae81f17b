package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewKnowledgeBase(t *testing.T) {
	now := time.Now().UTC()
	kb := NewKnowledgeBase("report.pdf", "# Quarterly Report", KindRaw, now)

	require.NotNil(t, kb)
	assert.Equal(t, int64(0), kb.ID)
	assert.Equal(t, "report.pdf", kb.Name)
	assert.Equal(t, "# Quarterly Report", kb.Content)
	assert.Equal(t, KindRaw, kb.Kind)
	assert.Equal(t, now, kb.CreatedAt)
	assert.Equal(t, now, kb.UpdatedAt)
}

func TestValidateKnowledgeBase(t *testing.T) {
	now := time.Now().UTC()

	tests := []struct {
		name    string
		kb      *KnowledgeBase
		wantErr string
	}{
		{
			name: "valid raw entry",
			kb:   NewKnowledgeBase("doc", "content", KindRaw, now),
		},
		{
			name: "valid processed entry",
			kb:   NewKnowledgeBase("summary", "content", KindProcessed, now),
		},
		{
			name:    "nil",
			kb:      nil,
			wantErr: "cannot be nil",
		},
		{
			name:    "missing name",
			kb:      NewKnowledgeBase("", "content", KindRaw, now),
			wantErr: "Name is required",
		},
		{
			name:    "missing content",
			kb:      NewKnowledgeBase("doc", "", KindRaw, now),
			wantErr: "Content is required",
		},
		{
			name:    "invalid kind",
			kb:      NewKnowledgeBase("doc", "content", Kind("draft"), now),
			wantErr: "Kind is invalid",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateKnowledgeBase(tt.kb)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestIsValidKind(t *testing.T) {
	assert.True(t, IsValidKind(KindRaw))
	assert.True(t, IsValidKind(KindProcessed))
	assert.False(t, IsValidKind(Kind("")))
	assert.False(t, IsValidKind(Kind("derived")))
}
