package audit

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/redactyl/promptscan/internal/types"
)

func sampleFindings() []types.Finding {
	return []types.Finding{
		{Category: types.CategoryAPIKey, Rule: 1, Value: "api_key", Groups: []string{"api_key"}, Match: "api_key='abcdefghijkl'", Path: "a.txt", Line: 3, Fingerprint: "f1"},
		{Category: types.CategoryGitHubToken, Rule: 1, Value: "ghp_x", Match: "ghp_x", Path: "b.txt", Line: 1, Fingerprint: "f2"},
	}
}

func TestNewAuditLog_PrefersGitDir(t *testing.T) {
	dir := t.TempDir()
	assert.Equal(t, filepath.Join(dir, FileName), NewAuditLog(dir).Path())

	require.NoError(t, os.Mkdir(filepath.Join(dir, ".git"), 0o755))
	assert.Equal(t, filepath.Join(dir, ".git", "promptscan_audit.jsonl"), NewAuditLog(dir).Path())
}

func TestCreateScanRecord_RedactsAndCounts(t *testing.T) {
	all := sampleFindings()
	rec := CreateScanRecord("/repo", all, all[1:], 7, 1500*time.Millisecond, "base.json")

	assert.Equal(t, 2, rec.TotalFindings)
	assert.Equal(t, 1, rec.NewFindings)
	assert.Equal(t, 1, rec.BaselinedCount)
	assert.Equal(t, map[string]int{"API_KEY": 1, "GITHUB_TOKEN": 1}, rec.CategoryCounts)
	assert.Equal(t, "1.5s", rec.Duration)
	require.Len(t, rec.TopFindings, 1)
	assert.Equal(t, types.CategoryGitHubToken, rec.TopFindings[0].Category)

	for _, f := range rec.AllFindings {
		assert.Equal(t, redacted, f.Match)
		assert.Equal(t, redacted, f.Value)
		assert.NotEmpty(t, f.Fingerprint)
	}
	assert.Equal(t, []string{redacted}, rec.AllFindings[0].Groups)
	assert.Equal(t, "api_key='abcdefghijkl'", all[0].Match, "input must not be modified")
}

func TestLogScan_HistoryNewestFirst(t *testing.T) {
	a := NewAuditLog(t.TempDir())
	_, err := a.LoadHistory()
	assert.Error(t, err)

	for _, root := range []string{"first", "second", "third"} {
		require.NoError(t, a.LogScan(ScanRecord{Root: root}))
	}
	records, err := a.LoadHistory()
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, "third", records[0].Root)
	assert.NotEmpty(t, records[0].ScanID)
	assert.NotEqual(t, records[0].ScanID, records[1].ScanID)

	b, err := os.ReadFile(a.Path())
	require.NoError(t, err)
	assert.Equal(t, 3, strings.Count(string(b), "\n"))
}

func TestDeleteRecord(t *testing.T) {
	a := NewAuditLog(t.TempDir())
	for _, root := range []string{"first", "second", "third"} {
		require.NoError(t, a.LogScan(ScanRecord{Root: root}))
	}
	require.NoError(t, a.DeleteRecord(1))

	records, err := a.LoadHistory()
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "third", records[0].Root)
	assert.Equal(t, "first", records[1].Root)

	assert.Error(t, a.DeleteRecord(5))
}
