// Package redact replaces detected secrets with category placeholders.
package redact

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/redactyl/promptscan/internal/types"
)

// Finder produces findings with byte offsets for a text.
type Finder interface {
	DetectFindings(text string) ([]types.Finding, error)
}

var placeholders = map[types.Category]string{
	types.CategoryAPIKey:             "[API-KEY]",
	types.CategoryAWSCredentials:     "[AWS-KEY]",
	types.CategoryDatabaseConnection: "[CONNECTION-STRING]",
	types.CategoryGitHubToken:        "[GITHUB-TOKEN]",
	types.CategoryPrivateKey:         "[PRIVATE-KEY]",
}

// Placeholder returns the replacement text for a category.
func Placeholder(c types.Category) string {
	if p, ok := placeholders[c]; ok {
		return p
	}
	return "[REDACTED]"
}

type region struct {
	start, end int
	cat        types.Category
}

// merge sorts findings by start offset and folds overlapping spans together.
// A merged region keeps the category of its earliest-starting finding.
func merge(text string, findings []types.Finding) []region {
	rs := make([]region, 0, len(findings))
	for _, f := range findings {
		if f.Start < 0 || f.End > len(text) || f.End <= f.Start {
			continue
		}
		rs = append(rs, region{start: f.Start, end: f.End, cat: f.Category})
	}
	sort.SliceStable(rs, func(i, j int) bool { return rs[i].start < rs[j].start })
	out := rs[:0]
	for _, r := range rs {
		if n := len(out); n > 0 && r.start < out[n-1].end {
			if r.end > out[n-1].end {
				out[n-1].end = r.end
			}
			continue
		}
		out = append(out, r)
	}
	return out
}

// Text returns text with every finding's full-match span replaced by its
// category placeholder.
func Text(text string, findings []types.Finding) string {
	regions := merge(text, findings)
	if len(regions) == 0 {
		return text
	}
	var b strings.Builder
	b.Grow(len(text))
	last := 0
	for _, r := range regions {
		b.WriteString(text[last:r.start])
		b.WriteString(Placeholder(r.cat))
		last = r.end
	}
	b.WriteString(text[last:])
	return b.String()
}

// String detects and redacts in one step.
func String(f Finder, text string) (string, []types.Finding, error) {
	findings, err := f.DetectFindings(text)
	if err != nil {
		return "", nil, err
	}
	return Text(text, findings), findings, nil
}

// WouldChange reports whether Apply would modify the file at path.
func WouldChange(path string, f Finder) (bool, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return false, err
	}
	out, _, err := String(f, string(b))
	if err != nil {
		return false, fmt.Errorf("%s: %w", path, err)
	}
	return out != string(b), nil
}

// Apply redacts the file at path in place, preserving its mode. It reports
// whether the contents changed.
func Apply(path string, f Finder) (bool, error) {
	info, err := os.Stat(path)
	if err != nil {
		return false, err
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return false, err
	}
	out, _, err := String(f, string(b))
	if err != nil {
		return false, fmt.Errorf("%s: %w", path, err)
	}
	if out == string(b) {
		return false, nil
	}
	if err := os.WriteFile(path, []byte(out), info.Mode().Perm()); err != nil {
		return false, err
	}
	return true, nil
}
