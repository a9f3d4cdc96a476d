package report

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/RishiKendai/plagscan/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatSimilarity(t *testing.T) {
	tests := map[float64]string{
		1:         "1.0",
		0:         "0.0",
		0.5234375: "0.5234375",
		0.0078125: "0.0078125",
	}
	for in, want := range tests {
		assert.Equal(t, want, FormatSimilarity(in))
	}
}

func TestFormatMax(t *testing.T) {
	assert.Equal(t, "-1", FormatMax(nil))
	v := 0.25
	assert.Equal(t, "0.25", FormatMax(&v))
}

func TestWritePairwise(t *testing.T) {
	var sb strings.Builder
	err := WritePairwise(&sb, []models.ComparisonResult{
		{SourceID: "A.txt", TargetID: "B.txt", Similarity: 1},
		{SourceID: "B.txt", TargetID: "A.txt", Similarity: 0.5},
	})

	require.NoError(t, err)
	assert.Equal(t, "cmp1,cmp2,similarity\nA.txt,B.txt,1.0\nB.txt,A.txt,0.5\n", sb.String())
}

func TestWriteSummarySentinel(t *testing.T) {
	var sb strings.Builder
	require.NoError(t, WriteSummary(&sb, []models.SummaryEntry{{ID: "A.txt"}}))

	assert.Equal(t, "id,max similarity\nA.txt,-1\n", sb.String())
}

func TestWriteFilesSkipsEmptyFailedTable(t *testing.T) {
	dir := t.TempDir()
	paths := Paths{
		ResultFile:  filepath.Join(dir, "result.csv"),
		SummaryFile: filepath.Join(dir, "summary.csv"),
		FailedFile:  filepath.Join(dir, "failed.csv"),
	}

	require.NoError(t, WriteFiles(&models.Report{Summary: []models.SummaryEntry{{ID: "A.txt"}}}, paths))

	result, err := os.ReadFile(paths.ResultFile)
	require.NoError(t, err)
	assert.Equal(t, "cmp1,cmp2,similarity\n", string(result))

	summary, err := os.ReadFile(paths.SummaryFile)
	require.NoError(t, err)
	assert.Equal(t, "id,max similarity\nA.txt,-1\n", string(summary))

	_, err = os.Stat(paths.FailedFile)
	assert.True(t, os.IsNotExist(err))
}

func TestWriteFilesWithFailures(t *testing.T) {
	dir := t.TempDir()
	paths := Paths{
		ResultFile:  filepath.Join(dir, "result.csv"),
		SummaryFile: filepath.Join(dir, "summary.csv"),
		FailedFile:  filepath.Join(dir, "failed.csv"),
	}
	rep := &models.Report{
		Failed: []models.FailedDocument{{ID: "bad.c", Path: "/corpus/bad.c", Reason: "document is not valid UTF-8"}},
	}

	require.NoError(t, WriteFiles(rep, paths))

	failed, err := os.ReadFile(paths.FailedFile)
	require.NoError(t, err)
	assert.Equal(t, "id,path,error\nbad.c,/corpus/bad.c,document is not valid UTF-8\n", string(failed))
}

func TestWriteFilesRemovesStaleFailedTable(t *testing.T) {
	dir := t.TempDir()
	paths := Paths{
		ResultFile:  filepath.Join(dir, "result.csv"),
		SummaryFile: filepath.Join(dir, "summary.csv"),
		FailedFile:  filepath.Join(dir, "failed.csv"),
	}
	require.NoError(t, os.WriteFile(paths.FailedFile, []byte("id,path,error\nold.c,/old.c,gone\n"), 0o644))

	require.NoError(t, WriteFiles(&models.Report{}, paths))

	_, err := os.Stat(paths.FailedFile)
	assert.True(t, os.IsNotExist(err))
}
