package types

import "encoding/json"

// Category names a class of sensitive data recognised by the pattern table.
type Category string

const (
	CategoryAPIKey             Category = "API_KEY"
	CategoryAWSCredentials     Category = "AWS_CREDENTIALS"
	CategoryDatabaseConnection Category = "DATABASE_CONNECTION"
	CategoryGitHubToken        Category = "GITHUB_TOKEN"
	CategoryPrivateKey         Category = "PRIVATE_KEY"
)

// Finding describes a single pattern match with its category attribution.
// Value is what the flat match list reports for this match (the captured
// group text when the rule has groups, else the full match). Match is always
// the full matched span and Start/End are its byte offsets in the input.
type Finding struct {
	Category    Category `json:"category"`
	Rule        int      `json:"rule"`
	Value       string   `json:"value"`
	Groups      []string `json:"groups,omitempty"`
	Match       string   `json:"match"`
	Start       int      `json:"start"`
	End         int      `json:"end"`
	Path        string   `json:"path,omitempty"`
	Line        int      `json:"line,omitempty"`
	Fingerprint string   `json:"fingerprint,omitempty"`
}

// Span is a region of text the learned classifier flagged as sensitive.
type Span struct {
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
}

const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Outcome is the caller-visible result of one scan.
type Outcome struct {
	Status  string
	Matches []string
	Message string
	Spans   []Span
}

// FoundLength is the number of pattern matches in a successful outcome.
func (o Outcome) FoundLength() int { return len(o.Matches) }

// OK reports whether the scan completed.
func (o Outcome) OK() bool { return o.Status == StatusSuccess }

// Success builds a success outcome. A nil slice is normalised to empty so
// the wire form is always a JSON array.
func Success(matches []string) Outcome {
	if matches == nil {
		matches = []string{}
	}
	return Outcome{Status: StatusSuccess, Matches: matches}
}

// Failure builds an error outcome carrying a human-readable message.
func Failure(msg string) Outcome {
	return Outcome{Status: StatusError, Message: msg}
}

type successWire struct {
	Status      string   `json:"status"`
	Matches     []string `json:"matches"`
	FoundLength int      `json:"found_length"`
	Spans       []Span   `json:"classifier_spans,omitempty"`
}

type errorWire struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// MarshalJSON emits {status, matches, found_length} on success and
// {status, message} on error.
func (o Outcome) MarshalJSON() ([]byte, error) {
	if o.Status != StatusSuccess {
		return json.Marshal(errorWire{Status: StatusError, Message: o.Message})
	}
	m := o.Matches
	if m == nil {
		m = []string{}
	}
	return json.Marshal(successWire{Status: o.Status, Matches: m, FoundLength: len(m), Spans: o.Spans})
}

// UnmarshalJSON accepts both wire shapes.
func (o *Outcome) UnmarshalJSON(b []byte) error {
	var w struct {
		Status  string   `json:"status"`
		Matches []string `json:"matches"`
		Message string   `json:"message"`
		Spans   []Span   `json:"classifier_spans"`
	}
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	*o = Outcome{Status: w.Status, Matches: w.Matches, Message: w.Message, Spans: w.Spans}
	return nil
}
