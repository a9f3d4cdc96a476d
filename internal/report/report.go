package report

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/RishiKendai/plagscan/internal/models"
)

var (
	pairwiseHeader = []string{"cmp1", "cmp2", "similarity"}
	summaryHeader  = []string{"id", "max similarity"}
	failedHeader   = []string{"id", "path", "error"}
)

// FormatSimilarity renders a score the way downstream tooling expects:
// shortest round-trip digits, always with a fractional part ("1.0", "0.5").
func FormatSimilarity(v float64) string {
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if !strings.ContainsAny(s, ".eE") {
		s += ".0"
	}
	return s
}

// FormatMax renders a summary maximum; documents without peers get -1.
func FormatMax(v *float64) string {
	if v == nil {
		return "-1"
	}
	return FormatSimilarity(*v)
}

// WritePairwise writes the pairwise table with its header.
func WritePairwise(w io.Writer, rows []models.ComparisonResult) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(pairwiseHeader); err != nil {
		return err
	}
	for _, r := range rows {
		if err := cw.Write([]string{r.SourceID, r.TargetID, FormatSimilarity(r.Similarity)}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteSummary writes the summary table with its header.
func WriteSummary(w io.Writer, entries []models.SummaryEntry) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(summaryHeader); err != nil {
		return err
	}
	for _, e := range entries {
		if err := cw.Write([]string{e.ID, FormatMax(e.MaxSimilarity)}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteFailed writes the failed-files table with its header.
func WriteFailed(w io.Writer, failed []models.FailedDocument) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(failedHeader); err != nil {
		return err
	}
	for _, f := range failed {
		if err := cw.Write([]string{f.ID, f.Path, f.Reason}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// Paths names the output files of a run. An empty FailedFile skips the
// failed-files table.
type Paths struct {
	ResultFile  string
	SummaryFile string
	FailedFile  string
}

// WriteFiles renders every table in memory first and then replaces each
// file atomically, so a failure never leaves a half-written table behind.
// The failed-files table is only written when something failed; otherwise
// a stale one is removed.
func WriteFiles(rep *models.Report, paths Paths) error {
	var pairwise, summary bytes.Buffer
	if err := WritePairwise(&pairwise, rep.Pairwise); err != nil {
		return fmt.Errorf("failed to render pairwise table: %w", err)
	}
	if err := WriteSummary(&summary, rep.Summary); err != nil {
		return fmt.Errorf("failed to render summary table: %w", err)
	}

	if err := WriteAtomic(paths.ResultFile, pairwise.Bytes()); err != nil {
		return fmt.Errorf("failed to save %s: %w", paths.ResultFile, err)
	}
	if err := WriteAtomic(paths.SummaryFile, summary.Bytes()); err != nil {
		return fmt.Errorf("failed to save %s: %w", paths.SummaryFile, err)
	}

	if paths.FailedFile != "" && len(rep.Failed) > 0 {
		var failed bytes.Buffer
		if err := WriteFailed(&failed, rep.Failed); err != nil {
			return fmt.Errorf("failed to render failed-files table: %w", err)
		}
		if err := WriteAtomic(paths.FailedFile, failed.Bytes()); err != nil {
			return fmt.Errorf("failed to save %s: %w", paths.FailedFile, err)
		}
	} else if paths.FailedFile != "" {
		// A table left over from an earlier run would be misleading.
		if err := os.Remove(paths.FailedFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to remove stale %s: %w", paths.FailedFile, err)
		}
	}
	return nil
}

// WriteAtomic writes data to a temp file next to dest and renames it over
// dest.
func WriteAtomic(dest string, data []byte) error {
	dir := filepath.Dir(dest)
	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	if err := os.Chmod(tmpPath, 0o644); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	if err := os.Rename(tmpPath, dest); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	return nil
}
