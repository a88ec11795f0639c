package classifier

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/tidwall/gjson"
	"resty.dev/v3"

	"github.com/redactyl/promptscan/internal/types"
)

// ErrBadResponse is returned when the model server answers with a body that
// is not one of the recognised span shapes.
var ErrBadResponse = errors.New("classifier: unrecognised response")

// HTTPConfig configures an HTTPClient.
type HTTPConfig struct {
	URL           string
	Timeout       time.Duration
	Retries       int
	MinConfidence float64
}

// HTTPClient calls a model-serving endpoint over HTTP. The endpoint receives
// {"text": "..."} and may answer either {"spans":[{"text","confidence"}]} or
// a token-classification pipeline list [{"word","score",...}].
type HTTPClient struct {
	cfg    HTTPConfig
	client *resty.Client
}

// NewHTTP builds an HTTPClient. The URL is required.
func NewHTTP(cfg HTTPConfig) (*HTTPClient, error) {
	if strings.TrimSpace(cfg.URL) == "" {
		return nil, errors.New("classifier: url is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	c := resty.New().
		SetTimeout(cfg.Timeout).
		SetRetryCount(cfg.Retries).
		SetHeader("Content-Type", "application/json")
	c.AddRetryHooks(func(res *resty.Response, err error) {
		if res != nil {
			log.Debug().Int("status", res.StatusCode()).Str("url", cfg.URL).Msg("Retrying classifier request")
			return
		}
		log.Debug().Err(err).Str("url", cfg.URL).Msg("Retrying classifier request")
	})
	return &HTTPClient{cfg: cfg, client: c}, nil
}

type classifyRequest struct {
	Text string `json:"text"`
}

// Classify implements Classifier.
func (h *HTTPClient) Classify(ctx context.Context, text string) ([]types.Span, error) {
	res, err := h.client.R().
		SetContext(ctx).
		SetBody(classifyRequest{Text: text}).
		Post(h.cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("classifier request: %w", err)
	}
	if res.IsError() {
		return nil, fmt.Errorf("classifier request: http %d", res.StatusCode())
	}
	spans, err := ParseSpans(res.String())
	if err != nil {
		return nil, err
	}
	return FilterByConfidence(spans, h.cfg.MinConfidence), nil
}

// Close releases the underlying HTTP client.
func (h *HTTPClient) Close() error {
	return h.client.Close()
}

// ParseSpans decodes a model-server response body into spans.
func ParseSpans(body string) ([]types.Span, error) {
	if !gjson.Valid(body) {
		return nil, ErrBadResponse
	}
	root := gjson.Parse(body)
	items := root
	if !root.IsArray() {
		items = root.Get("spans")
		if !items.IsArray() {
			return nil, ErrBadResponse
		}
	}
	spans := []types.Span{}
	items.ForEach(func(_, v gjson.Result) bool {
		text := v.Get("text")
		if !text.Exists() {
			text = v.Get("word")
		}
		conf := v.Get("confidence")
		if !conf.Exists() {
			conf = v.Get("score")
		}
		if text.String() == "" {
			return true
		}
		spans = append(spans, types.Span{Text: strings.TrimSpace(text.String()), Confidence: conf.Float()})
		return true
	})
	return spans, nil
}
