package corpus

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"unicode/utf8"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// ErrInvalidEncoding is returned for documents that are not valid UTF-8.
var ErrInvalidEncoding = errors.New("document is not valid UTF-8")

// DecodeText validates UTF-8 and strips a leading byte order mark.
func DecodeText(data []byte) (string, error) {
	if !utf8.Valid(data) {
		return "", ErrInvalidEncoding
	}
	out, _, err := transform.Bytes(unicode.UTF8BOM.NewDecoder(), data)
	if err != nil {
		return "", fmt.Errorf("failed to decode document: %w", err)
	}
	return string(out), nil
}

// FileSource reads documents from the local file system.
type FileSource struct{}

func NewFileSource() *FileSource {
	return &FileSource{}
}

// ReadDocument returns the decoded text of the file at path.
func (s *FileSource) ReadDocument(ctx context.Context, path string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return DecodeText(data)
}

// List returns the regular files directly inside dir, sorted by name, minus
// the excluded paths. Exclusions are compared as absolute paths so that
// "./result.csv" and "/work/result.csv" name the same file.
func List(dir string, exclude ...string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list corpus %q: %w", dir, err)
	}

	skip := make(map[string]bool, len(exclude))
	for _, p := range exclude {
		if p == "" {
			continue
		}
		if abs, err := filepath.Abs(p); err == nil {
			skip[abs] = true
		}
	}

	paths := make([]string, 0, len(entries))
	for _, entry := range entries {
		path := filepath.Join(dir, entry.Name())
		// follow symlinks: os.Stat rather than entry.Type()
		info, err := os.Stat(path)
		if err != nil || !info.Mode().IsRegular() {
			continue
		}
		if abs, err := filepath.Abs(path); err == nil && skip[abs] {
			continue
		}
		paths = append(paths, path)
	}
	sort.Strings(paths)

	return paths, nil
}
