package redact

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/redactyl/promptscan/internal/detectors"
	"github.com/redactyl/promptscan/internal/types"
)

type finderFunc func(string) ([]types.Finding, error)

func (f finderFunc) DetectFindings(s string) ([]types.Finding, error) { return f(s) }

func TestText(t *testing.T) {
	text := "a=SECRET1 b=SECRET2 c"
	tests := []struct {
		name     string
		findings []types.Finding
		want     string
	}{
		{"none", nil, text},
		{
			"single",
			[]types.Finding{{Category: types.CategoryAPIKey, Start: 2, End: 9}},
			"a=[API-KEY] b=SECRET2 c",
		},
		{
			"unordered",
			[]types.Finding{
				{Category: types.CategoryGitHubToken, Start: 12, End: 19},
				{Category: types.CategoryAPIKey, Start: 2, End: 9},
			},
			"a=[API-KEY] b=[GITHUB-TOKEN] c",
		},
		{
			"overlap earliest wins",
			[]types.Finding{
				{Category: types.CategoryAWSCredentials, Start: 4, End: 19},
				{Category: types.CategoryAPIKey, Start: 2, End: 9},
			},
			"a=[API-KEY] c",
		},
		{
			"contained",
			[]types.Finding{
				{Category: types.CategoryPrivateKey, Start: 0, End: 21},
				{Category: types.CategoryAPIKey, Start: 2, End: 9},
			},
			"[PRIVATE-KEY]",
		},
		{
			"out of range ignored",
			[]types.Finding{{Category: types.CategoryAPIKey, Start: 5, End: 500}},
			text,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Text(text, tc.findings))
		})
	}
}

func TestPlaceholder(t *testing.T) {
	assert.Equal(t, "[CONNECTION-STRING]", Placeholder(types.CategoryDatabaseConnection))
	assert.Equal(t, "[AWS-KEY]", Placeholder(types.CategoryAWSCredentials))
	assert.Equal(t, "[REDACTED]", Placeholder("OTHER"))
}

func TestString_PropagatesError(t *testing.T) {
	boom := errors.New("boom")
	_, _, err := String(finderFunc(func(string) ([]types.Finding, error) { return nil, boom }), "x")
	assert.ErrorIs(t, err, boom)
}

func TestApplyAndWouldChange(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.env")
	original := "api_key = 'abcdefghijklmnop'\nname=x\n"
	require.NoError(t, os.WriteFile(path, []byte(original), 0o600))

	d := detectors.Default()

	would, err := WouldChange(path, d)
	require.NoError(t, err)
	assert.True(t, would)

	changed, err := Apply(path, d)
	require.NoError(t, err)
	assert.True(t, changed)

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "[API-KEY]\nname=x\n", string(b))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	// second apply is a no-op
	changed, err = Apply(path, d)
	require.NoError(t, err)
	assert.False(t, changed)
}

func TestApply_MissingFile(t *testing.T) {
	_, err := Apply(filepath.Join(t.TempDir(), "nope"), detectors.Default())
	assert.Error(t, err)
}
