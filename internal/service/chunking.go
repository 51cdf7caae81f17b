package service

import (
	"strings"
	"unicode"

	"github.com/veldt-labs/corpora/internal/domain"
)

// ChunkConfig controls document chunking for embeddings.
type ChunkConfig struct {
	MaxChars int
	Overlap  int
}

// DefaultChunkConfig provides the canonical chunking parameters.
func DefaultChunkConfig() ChunkConfig {
	return ChunkConfig{
		MaxChars: 800,
		Overlap:  150,
	}
}

// Fragment is one chunk of a split document together with the header path
// active at its position. All size-pass fragments of one header segment share
// the same path.
type Fragment struct {
	Text    string
	Headers domain.HeaderPath
}

type headerSegment struct {
	headers domain.HeaderPath
	body    string
}

// SplitMarkdown splits a markdown document in two cascaded passes: first at
// level 1-3 headers, then each header segment's body into size-bounded
// fragments with overlap. Output preserves document order.
func SplitMarkdown(text string, cfg ChunkConfig) []Fragment {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	if cfg.MaxChars <= 0 {
		cfg = DefaultChunkConfig()
	}
	if cfg.Overlap < 0 {
		cfg.Overlap = 0
	}
	if cfg.Overlap >= cfg.MaxChars {
		cfg.Overlap = cfg.MaxChars / 2
	}

	fragments := make([]Fragment, 0, 8)
	for _, segment := range splitByHeaders(text) {
		for _, piece := range splitBySize(segment.body, cfg) {
			fragments = append(fragments, Fragment{
				Text:    piece,
				Headers: segment.headers,
			})
		}
	}
	return fragments
}

// splitByHeaders scans the document top to bottom, cutting at level 1-3
// headers. Header marker lines are stripped from segment bodies; their text
// survives only in the header path. Fenced code blocks are opaque, a "#"
// inside a fence is not a header.
func splitByHeaders(text string) []headerSegment {
	var (
		segments []headerSegment
		path     domain.HeaderPath
		body     []string
		inFence  bool
	)

	flush := func() {
		joined := strings.TrimSpace(strings.Join(body, "\n"))
		body = body[:0]
		if joined == "" {
			return
		}
		headers := make(domain.HeaderPath, len(path))
		copy(headers, path)
		segments = append(segments, headerSegment{headers: headers, body: joined})
	}

	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)

		if strings.HasPrefix(trimmed, "```") || strings.HasPrefix(trimmed, "~~~") {
			inFence = !inFence
			body = append(body, line)
			continue
		}

		if !inFence {
			if level, title, ok := parseHeaderLine(trimmed); ok {
				flush()
				path = path.Push(level, title)
				continue
			}
		}

		body = append(body, line)
	}
	flush()

	return segments
}

// parseHeaderLine recognizes level 1-3 markdown headers. Deeper headings stay
// in the body text.
func parseHeaderLine(line string) (int, string, bool) {
	level := 0
	for level < len(line) && line[level] == '#' {
		level++
	}
	if level == 0 || level > 3 {
		return 0, "", false
	}
	if level == len(line) || line[level] != ' ' {
		return 0, "", false
	}

	title := strings.TrimSpace(line[level+1:])
	if title == "" {
		return 0, "", false
	}
	return level, title, true
}

// splitBySize cuts a segment body into fragments of at most MaxChars runes,
// replicating the trailing Overlap runes of each fragment at the start of the
// next. Cut points are chosen by preference: double line break, single line
// break, whitespace, then a hard rune boundary.
func splitBySize(text string, cfg ChunkConfig) []string {
	runes := []rune(text)
	if len(runes) == 0 {
		return nil
	}
	if len(runes) <= cfg.MaxChars {
		return []string{text}
	}

	pieces := make([]string, 0, 4)
	start := 0
	for start < len(runes) {
		end := start + cfg.MaxChars
		if end >= len(runes) {
			pieces = append(pieces, string(runes[start:]))
			break
		}

		cut := findCut(runes, start, end)
		pieces = append(pieces, string(runes[start:cut]))

		next := cut
		if cut-start > cfg.Overlap {
			next = cut - cfg.Overlap
		}
		if next <= start {
			next = cut
		}
		start = next
	}
	return pieces
}

// findCut backscans (start, end] for the best split point.
func findCut(runes []rune, start, end int) int {
	// Prefer a paragraph boundary.
	for i := end; i > start+1; i-- {
		if runes[i-1] == '\n' && runes[i-2] == '\n' {
			return i
		}
	}
	// Then a line boundary.
	for i := end; i > start; i-- {
		if runes[i-1] == '\n' {
			return i
		}
	}
	// Then any whitespace.
	for i := end; i > start; i-- {
		if unicode.IsSpace(runes[i-1]) {
			return i
		}
	}
	// Hard cut at the size bound.
	return end
}
