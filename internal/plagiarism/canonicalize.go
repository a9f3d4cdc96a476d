package plagiarism

import (
	"regexp"
	"sort"
	"strings"
)

// Template is the canonical line sequence of a boilerplate file. A nil
// Template disables subtraction.
type Template []string

// Canonicalizer turns raw text into an order-independent, comment-free line
// set. It is safe for concurrent use.
type Canonicalizer struct {
	removePattern *regexp.Regexp
	template      Template
}

func NewCanonicalizer(removePattern *regexp.Regexp, template Template) *Canonicalizer {
	return &Canonicalizer{
		removePattern: removePattern,
		template:      template,
	}
}

// Canonicalize runs the full pipeline: indent clearing, pattern removal,
// case-insensitive line sort and, when configured, template subtraction.
func (c *Canonicalizer) Canonicalize(raw string) string {
	text := ClearIndent(raw)
	text = RemovePattern(text, c.removePattern)
	lines := SortLines(strings.Split(text, "\n"))
	if c.template != nil {
		lines = SubtractTemplate(lines, c.template)
	}
	return strings.Join(lines, "\n")
}

// ClearIndent normalizes line endings, trims every line and drops the lines
// left empty.
func ClearIndent(raw string) string {
	raw = strings.ReplaceAll(raw, "\r\n", "\n")
	raw = strings.ReplaceAll(raw, "\r", "\n")

	lines := strings.Split(raw, "\n")
	kept := lines[:0]
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line != "" {
			kept = append(kept, line)
		}
	}
	return strings.Join(kept, "\n")
}

// RemovePattern deletes every match of pattern from text. A nil pattern
// leaves text unchanged.
func RemovePattern(text string, pattern *regexp.Regexp) string {
	if pattern == nil {
		return text
	}
	return pattern.ReplaceAllString(text, "")
}

// SortLines stable-sorts lines by their lower-cased form. The input slice is
// not modified.
func SortLines(lines []string) []string {
	type keyed struct {
		key  string
		line string
	}
	ks := make([]keyed, len(lines))
	for i, line := range lines {
		ks[i] = keyed{key: strings.ToLower(line), line: line}
	}
	sort.SliceStable(ks, func(i, j int) bool { return ks[i].key < ks[j].key })

	sorted := make([]string, len(ks))
	for i, k := range ks {
		sorted[i] = k.line
	}
	return sorted
}

// SubtractTemplate drops boilerplate lines in a single forward pass. Only the
// template line at the cursor can match; a match drops the document line
// and advances the cursor. Once the template is exhausted every remaining
// line is kept.
func SubtractTemplate(lines []string, template Template) []string {
	kept := make([]string, 0, len(lines))
	next := 0
	for i, line := range lines {
		if next >= len(template) {
			kept = append(kept, lines[i:]...)
			break
		}
		if line == template[next] {
			next++
			continue
		}
		kept = append(kept, line)
	}
	return kept
}
