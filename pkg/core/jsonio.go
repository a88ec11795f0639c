package core

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/redactyl/promptscan/internal/types"
)

// MarshalFindings pretty-prints findings as a JSON array. Nil is written as
// [] so consumers never see null.
func MarshalFindings(w io.Writer, findings []Finding) error {
	if findings == nil {
		findings = []Finding{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(findings)
}

// UnmarshalFindings decodes a findings array written by MarshalFindings or
// `promptscan scan --json`.
func UnmarshalFindings(r io.Reader) ([]Finding, error) {
	var fs []Finding
	if err := json.NewDecoder(r).Decode(&fs); err != nil {
		return nil, fmt.Errorf("decode findings: %w", err)
	}
	return fs, nil
}

// MarshalOutcome writes o in the POST /scan response shape.
func MarshalOutcome(w io.Writer, o Outcome) error {
	return json.NewEncoder(w).Encode(o)
}

// UnmarshalOutcome decodes a POST /scan response body. A body whose status
// is neither success nor error is rejected.
func UnmarshalOutcome(r io.Reader) (Outcome, error) {
	var o Outcome
	if err := json.NewDecoder(r).Decode(&o); err != nil {
		return o, fmt.Errorf("decode outcome: %w", err)
	}
	switch o.Status {
	case types.StatusSuccess:
		if o.Matches == nil {
			o.Matches = []string{}
		}
	case types.StatusError:
	default:
		return o, fmt.Errorf("decode outcome: unknown status %q", o.Status)
	}
	return o, nil
}
