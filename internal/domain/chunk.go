package domain

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// DocumentChunk represents a bounded fragment of a knowledge base entry,
// paired with its embedding for similarity search. Content begins with the
// serialized header path followed by a blank line and the chunk body.
type DocumentChunk struct {
	ID              int64
	KnowledgeBaseID int64
	Content         string
	Embedding       []float32
	CreatedAt       time.Time
}

// Heading is one level of a markdown header hierarchy.
type Heading struct {
	Level int
	Title string
}

// HeaderPath is the ordered stack of active headings (level 1-3) at a chunk's
// position in its source document. An empty path is valid: it marks content
// appearing before any header.
type HeaderPath []Heading

var headerLabels = map[int]string{
	1: "Header 1",
	2: "Header 2",
	3: "Header 3",
}

// Push returns a copy of the path with heading set at its level, discarding
// any deeper headings previously active.
func (p HeaderPath) Push(level int, title string) HeaderPath {
	next := make(HeaderPath, 0, len(p)+1)
	for _, h := range p {
		if h.Level < level {
			next = append(next, h)
		}
	}
	return append(next, Heading{Level: level, Title: title})
}

// Serialize renders the path as a JSON object keyed by header-level labels,
// shallowest first. An empty path serializes to "{}" so stored chunk content
// always carries a metadata prefix.
func (p HeaderPath) Serialize() string {
	var b strings.Builder
	b.WriteByte('{')
	for i, h := range p {
		if i > 0 {
			b.WriteByte(',')
		}
		label, ok := headerLabels[h.Level]
		if !ok {
			label = fmt.Sprintf("Header %d", h.Level)
		}
		key, _ := json.Marshal(label)
		val, _ := json.Marshal(h.Title)
		b.Write(key)
		b.WriteByte(':')
		b.Write(val)
	}
	b.WriteByte('}')
	return b.String()
}

// String implements fmt.Stringer for log output.
func (p HeaderPath) String() string {
	if len(p) == 0 {
		return "(top)"
	}
	titles := make([]string, 0, len(p))
	for _, h := range p {
		titles = append(titles, h.Title)
	}
	return strings.Join(titles, " > ")
}

// ParseHeaderPath is the inverse of Serialize. Unknown keys are ignored.
func ParseHeaderPath(s string) (HeaderPath, error) {
	var raw map[string]string
	if err := json.Unmarshal([]byte(s), &raw); err != nil {
		return nil, fmt.Errorf("invalid header path: %w", err)
	}

	var path HeaderPath
	for level := 1; level <= 3; level++ {
		if title, ok := raw[headerLabels[level]]; ok {
			path = append(path, Heading{Level: level, Title: title})
		}
	}
	return path, nil
}

// ComposeChunkContent prepends the serialized header path to a chunk body so a
// retrieved chunk is self-describing without a join.
func ComposeChunkContent(path HeaderPath, body string) string {
	return path.Serialize() + "\n\n" + body
}

// SplitChunkContent separates a stored chunk's metadata prefix from its body.
// Content without a recognizable prefix is returned whole with an empty path.
func SplitChunkContent(content string) (HeaderPath, string) {
	prefix, body, found := strings.Cut(content, "\n\n")
	if !found {
		return nil, content
	}
	path, err := ParseHeaderPath(prefix)
	if err != nil {
		return nil, content
	}
	return path, body
}
