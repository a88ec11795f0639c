package report

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/cespare/xxhash/v2"

	"github.com/redactyl/promptscan/internal/types"
)

// Baseline is a set of finding fingerprints accepted as known.
type Baseline struct {
	Items map[string]bool `json:"items"`
}

// Fingerprint identifies a finding by category, value and path, so the same
// secret keeps its identity when surrounding lines move.
func Fingerprint(f types.Finding) string {
	h := xxhash.New()
	_, _ = h.WriteString(string(f.Category))
	_, _ = h.WriteString("|")
	_, _ = h.WriteString(f.Match)
	_, _ = h.WriteString("|")
	_, _ = h.WriteString(f.Path)
	return strconv.FormatUint(h.Sum64(), 16)
}

// Fingerprints fills in Fingerprint on every finding lacking one.
func Fingerprints(findings []types.Finding) {
	for i := range findings {
		if findings[i].Fingerprint == "" {
			findings[i].Fingerprint = Fingerprint(findings[i])
		}
	}
}

func LoadBaseline(path string) (Baseline, error) {
	b := Baseline{Items: map[string]bool{}}
	f, err := os.ReadFile(path)
	if err != nil {
		return b, err
	}
	if err := json.Unmarshal(f, &b); err != nil {
		return Baseline{Items: map[string]bool{}}, fmt.Errorf("baseline %s: %w", path, err)
	}
	if b.Items == nil {
		b.Items = map[string]bool{}
	}
	return b, nil
}

func SaveBaseline(path string, findings []types.Finding) error {
	b := Baseline{Items: map[string]bool{}}
	for _, f := range findings {
		b.Items[key(f)] = true
	}
	buf, err := json.MarshalIndent(b, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, buf, 0o644)
}

func FilterNewFindings(findings []types.Finding, base Baseline) []types.Finding {
	out := []types.Finding{}
	for _, f := range findings {
		if !base.Items[key(f)] {
			out = append(out, f)
		}
	}
	return out
}

func key(f types.Finding) string {
	if f.Fingerprint != "" {
		return f.Fingerprint
	}
	return Fingerprint(f)
}

// ShouldFail reports whether any finding falls in one of the given
// categories. An empty list means any finding fails.
func ShouldFail(findings []types.Finding, failOn []types.Category) bool {
	if len(failOn) == 0 {
		return len(findings) > 0
	}
	for _, f := range findings {
		for _, c := range failOn {
			if f.Category == c {
				return true
			}
		}
	}
	return false
}
