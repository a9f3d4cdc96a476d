package plagiarism

import (
	"errors"
	"fmt"
)

// ErrSignatureMismatch is returned when two signatures were built with a
// different permutation count or seed and cannot be compared.
var ErrSignatureMismatch = errors.New("signatures are not comparable")

// ConfigError aborts a run before any comparison starts: a removal pattern
// that does not compile, an unreadable template, an unusable corpus path.
type ConfigError struct {
	Field string
	Err   error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid %s: %v", e.Field, e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// DocumentReadError marks a single document that could not be read or
// decoded. Only that document is dropped from the run.
type DocumentReadError struct {
	Path string
	Err  error
}

func (e *DocumentReadError) Error() string {
	return fmt.Sprintf("failed to read document %q: %v", e.Path, e.Err)
}

func (e *DocumentReadError) Unwrap() error { return e.Err }

// AggregationError reports a malformed result batch.
type AggregationError struct {
	SourceID string
	Reason   string
}

func (e *AggregationError) Error() string {
	return fmt.Sprintf("malformed batch for %q: %s", e.SourceID, e.Reason)
}

// IsPermanent reports whether running the same request again cannot
// succeed: bad configuration, or results that broke an aggregation
// invariant.
func IsPermanent(err error) bool {
	var cfgErr *ConfigError
	var aggErr *AggregationError
	return errors.As(err, &cfgErr) || errors.As(err, &aggErr)
}
