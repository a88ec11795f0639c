// Package service turns a submitted prompt into a scan outcome. It is the
// error boundary between the detector and its callers: every failure becomes
// an error outcome, never a panic or a transport error.
package service

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/redactyl/promptscan/internal/classifier"
	"github.com/redactyl/promptscan/internal/redact"
	"github.com/redactyl/promptscan/internal/types"
)

// DefaultMaxPromptBytes caps accepted prompt size.
const DefaultMaxPromptBytes = 1 << 20

// Detector is the pattern layer the service drives.
type Detector interface {
	Detect(text string) ([]string, error)
	DetectFindings(text string) ([]types.Finding, error)
}

// Service runs scans. The zero value is not usable; build with New.
type Service struct {
	detector       Detector
	classifier     classifier.Classifier
	maxPromptBytes int
	classifyBudget time.Duration
	log            zerolog.Logger
}

// Option customises a Service.
type Option func(*Service)

// WithClassifier attaches the learned classifier. Without one no spans are
// reported.
func WithClassifier(c classifier.Classifier) Option {
	return func(s *Service) { s.classifier = c }
}

// WithMaxPromptBytes overrides DefaultMaxPromptBytes. Values <= 0 disable
// the limit.
func WithMaxPromptBytes(n int) Option {
	return func(s *Service) { s.maxPromptBytes = n }
}

// WithClassifierBudget bounds each classifier call. When the budget runs out
// the scan returns pattern matches only. Zero means the caller's context is
// the only deadline.
func WithClassifierBudget(d time.Duration) Option {
	return func(s *Service) { s.classifyBudget = d }
}

// WithLogger sets the logger used for degraded classifier calls.
func WithLogger(l zerolog.Logger) Option {
	return func(s *Service) { s.log = l }
}

// New builds a Service around d.
func New(d Detector, opts ...Option) *Service {
	s := &Service{
		detector:       d,
		maxPromptBytes: DefaultMaxPromptBytes,
		log:            zerolog.Nop(),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Scan evaluates prompt and returns the outcome.
func (s *Service) Scan(ctx context.Context, prompt string) types.Outcome {
	if err := s.checkSize(prompt); err != nil {
		return types.Failure(err.Error())
	}
	matches, err := s.detect(prompt)
	if err != nil {
		return types.Failure(err.Error())
	}
	out := types.Success(matches)
	out.Spans = s.classify(ctx, prompt)
	return out
}

// Redact returns prompt with every finding replaced by its placeholder,
// together with the scan outcome for the original text.
func (s *Service) Redact(ctx context.Context, prompt string) (string, types.Outcome) {
	if err := s.checkSize(prompt); err != nil {
		return "", types.Failure(err.Error())
	}
	findings, err := s.detectFindings(prompt)
	if err != nil {
		return "", types.Failure(err.Error())
	}
	matches := make([]string, 0, len(findings))
	for _, f := range findings {
		if len(f.Groups) > 0 {
			matches = append(matches, f.Groups...)
			continue
		}
		matches = append(matches, f.Value)
	}
	out := types.Success(matches)
	out.Spans = s.classify(ctx, prompt)
	return redact.Text(prompt, findings), out
}

func (s *Service) checkSize(prompt string) error {
	if s.maxPromptBytes > 0 && len(prompt) > s.maxPromptBytes {
		return fmt.Errorf("prompt too large: %d bytes exceeds limit of %d", len(prompt), s.maxPromptBytes)
	}
	return nil
}

func (s *Service) detect(prompt string) (matches []string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("detector panic: %v", r)
		}
	}()
	return s.detector.Detect(prompt)
}

func (s *Service) detectFindings(prompt string) (findings []types.Finding, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("detector panic: %v", r)
		}
	}()
	return s.detector.DetectFindings(prompt)
}

// classify never fails the scan; errors are logged and yield no spans.
func (s *Service) classify(ctx context.Context, prompt string) (spans []types.Span) {
	if s.classifier == nil {
		return nil
	}
	defer func() {
		if r := recover(); r != nil {
			s.log.Warn().Interface("panic", r).Msg("Classifier panicked")
			spans = nil
		}
	}()
	if s.classifyBudget > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.classifyBudget)
		defer cancel()
	}
	spans, err := s.classifier.Classify(ctx, prompt)
	if err != nil {
		s.log.Warn().Err(err).Msg("Classifier unavailable, returning pattern matches only")
		return nil
	}
	if len(spans) == 0 {
		return nil
	}
	return spans
}
