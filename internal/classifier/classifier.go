// Package classifier wraps the learned token-classification model as an
// opaque collaborator: text in, sensitive spans out. The pattern detector
// never depends on it.
package classifier

import (
	"context"

	"github.com/redactyl/promptscan/internal/types"
)

// Classifier flags spans of text as sensitive.
type Classifier interface {
	Classify(ctx context.Context, text string) ([]types.Span, error)
}

// Noop is a Classifier that never flags anything.
type Noop struct{}

// Classify implements Classifier.
func (Noop) Classify(context.Context, string) ([]types.Span, error) { return nil, nil }

// Func adapts a plain function to the Classifier interface.
type Func func(ctx context.Context, text string) ([]types.Span, error)

// Classify implements Classifier.
func (f Func) Classify(ctx context.Context, text string) ([]types.Span, error) { return f(ctx, text) }

// FilterByConfidence drops spans below min.
func FilterByConfidence(spans []types.Span, min float64) []types.Span {
	if min <= 0 {
		return spans
	}
	out := spans[:0:0]
	for _, s := range spans {
		if s.Confidence >= min {
			out = append(out, s)
		}
	}
	return out
}
