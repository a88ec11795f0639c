package report

import (
	"fmt"
	"io"

	"github.com/redactyl/promptscan/internal/types"
)

type sarif struct {
	Schema  string     `json:"$schema"`
	Version string     `json:"version"`
	Runs    []sarifRun `json:"runs"`
}

type sarifRun struct {
	Tool    sarifTool     `json:"tool"`
	Results []sarifResult `json:"results"`
}

type sarifTool struct {
	Driver sarifDriver `json:"driver"`
}

type sarifDriver struct {
	Name    string      `json:"name"`
	Version string      `json:"version"`
	Rules   []sarifRule `json:"rules"`
}

type sarifRule struct {
	ID               string       `json:"id"`
	Name             string       `json:"name"`
	ShortDescription sarifMessage `json:"shortDescription"`
}

type sarifResult struct {
	RuleID    string       `json:"ruleId"`
	RuleIndex int          `json:"ruleIndex"`
	Level     string       `json:"level"`
	Message   sarifMessage `json:"message"`
	Locations []sarifLoc   `json:"locations"`
}

type sarifMessage struct {
	Text string `json:"text"`
}

type sarifLoc struct {
	PhysicalLocation sarifPhys `json:"physicalLocation"`
}

type sarifPhys struct {
	ArtifactLocation sarifArt    `json:"artifactLocation"`
	Region           sarifRegion `json:"region"`
}

type sarifArt struct {
	URI string `json:"uri"`
}

type sarifRegion struct {
	StartLine  int          `json:"startLine,omitempty"`
	CharOffset int          `json:"charOffset"`
	CharLength int          `json:"charLength"`
	Snippet    sarifMessage `json:"snippet"`
}

// RuleID names a pattern rule as CATEGORY/index.
func RuleID(f types.Finding) string {
	return fmt.Sprintf("%s/%d", f.Category, f.Rule)
}

// WriteSARIF writes findings as SARIF 2.1.0. Snippets are masked.
func WriteSARIF(w io.Writer, findings []types.Finding, version string) error {
	run := sarifRun{
		Tool:    sarifTool{Driver: sarifDriver{Name: "promptscan", Version: version, Rules: []sarifRule{}}},
		Results: []sarifResult{},
	}
	index := map[string]int{}
	for _, f := range findings {
		id := RuleID(f)
		idx, ok := index[id]
		if !ok {
			idx = len(run.Tool.Driver.Rules)
			index[id] = idx
			run.Tool.Driver.Rules = append(run.Tool.Driver.Rules, sarifRule{
				ID:               id,
				Name:             string(f.Category),
				ShortDescription: sarifMessage{Text: fmt.Sprintf("%s pattern %d", f.Category, f.Rule)},
			})
		}
		run.Results = append(run.Results, sarifResult{
			RuleID:    id,
			RuleIndex: idx,
			Level:     "error",
			Message:   sarifMessage{Text: string(f.Category) + " detected"},
			Locations: []sarifLoc{{
				PhysicalLocation: sarifPhys{
					ArtifactLocation: sarifArt{URI: f.Path},
					Region: sarifRegion{
						StartLine:  f.Line,
						CharOffset: f.Start,
						CharLength: f.End - f.Start,
						Snippet:    sarifMessage{Text: maskValue(f.Match)},
					},
				},
			}},
		})
	}
	doc := sarif{
		Schema:  "https://json.schemastore.org/sarif-2.1.0.json",
		Version: "2.1.0",
		Runs:    []sarifRun{run},
	}
	return WriteJSON(w, doc)
}
