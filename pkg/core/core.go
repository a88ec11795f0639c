package core

import (
	"context"

	"github.com/redactyl/promptscan/internal/detectors"
	"github.com/redactyl/promptscan/internal/engine"
	"github.com/redactyl/promptscan/internal/redact"
	"github.com/redactyl/promptscan/internal/service"
	"github.com/redactyl/promptscan/internal/types"
)

// Re-export selected internal types as a stable public API surface.
// These are type aliases so external consumers can depend on a stable path.
type (
	Config   = engine.Config
	Result   = engine.Result
	Finding  = types.Finding
	Category = types.Category
	Outcome  = types.Outcome
	Span     = types.Span
)

// Detect returns the flat match list for text using the shared detector.
func Detect(text string) ([]string, error) {
	return detectors.Default().Detect(text)
}

// DetectFindings is Detect with category attribution and byte offsets.
func DetectFindings(text string) ([]Finding, error) {
	return detectors.Default().DetectFindings(text)
}

// ScanText runs the full prompt scan and returns the caller-visible outcome.
// It never returns an error; failures are reported in the outcome.
func ScanText(ctx context.Context, text string) Outcome {
	return service.New(detectors.Default()).Scan(ctx, text)
}

// Redact replaces every detected secret in text with its category
// placeholder.
func Redact(text string) (string, error) {
	out, _, err := redact.String(detectors.Default(), text)
	return out, err
}

// Scan walks files per cfg and returns findings.
func Scan(ctx context.Context, cfg Config) ([]Finding, error) {
	return engine.Scan(ctx, cfg)
}

// ScanWithStats is Scan with timing and counts.
func ScanWithStats(ctx context.Context, cfg Config) (Result, error) {
	return engine.ScanWithStats(ctx, cfg)
}

// Categories lists the category names in scan order.
func Categories() []Category {
	infos := detectors.Default().Categories()
	out := make([]Category, 0, len(infos))
	for _, c := range infos {
		out = append(out, c.Name)
	}
	return out
}
