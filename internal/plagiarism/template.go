package plagiarism

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/RishiKendai/plagscan/internal/corpus"
)

// ParseTemplate canonicalizes raw boilerplate text without subtraction and
// returns its lines.
func ParseTemplate(raw string, removePattern *regexp.Regexp) Template {
	canonical := NewCanonicalizer(removePattern, nil).Canonicalize(raw)
	if canonical == "" {
		return Template{}
	}
	return Template(strings.Split(canonical, "\n"))
}

// LoadTemplate reads and canonicalizes a template file. Failures are
// reported as ConfigError since no comparison may start without it.
func LoadTemplate(path string, removePattern *regexp.Regexp) (Template, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &ConfigError{Field: "template", Err: err}
	}
	text, err := corpus.DecodeText(data)
	if err != nil {
		return nil, &ConfigError{Field: "template", Err: fmt.Errorf("%s: %w", path, err)}
	}
	return ParseTemplate(text, removePattern), nil
}

// CompilePattern compiles a removal pattern, reporting failures as
// ConfigError.
func CompilePattern(pattern string) (*regexp.Regexp, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, &ConfigError{Field: "remove pattern", Err: err}
	}
	return re, nil
}
