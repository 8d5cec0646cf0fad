// Package gemini is a minimal client for the Gemini generateContent API.
package gemini

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const (
	DefaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"
	DefaultModel   = "gemini-1.5-flash"

	maxResponseBytes = 4 << 20
)

var (
	// ErrNotConfigured is returned when no API key is set.
	ErrNotConfigured = errors.New("gemini API key not configured")
	// ErrEmptyResponse is returned when the model produced no text.
	ErrEmptyResponse = errors.New("no text content in gemini response")
)

// APIError is a non-200 response from the API.
type APIError struct {
	StatusCode int
	Status     string
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("gemini: http %d", e.StatusCode)
	}
	return fmt.Sprintf("gemini: http %d %s: %s", e.StatusCode, e.Status, e.Message)
}

// Config configures a Client.
type Config struct {
	APIKey          string
	Model           string
	BaseURL         string
	Timeout         time.Duration
	Temperature     float64
	MaxOutputTokens int
}

// Client calls generateContent for a single model.
type Client struct {
	cfg    Config
	http   *http.Client
	tracer trace.Tracer
}

// NewClient creates a Client. Empty model and base URL fall back to the
// package defaults.
func NewClient(cfg Config, httpClient *http.Client, tp trace.TracerProvider) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &Client{
		cfg:    cfg,
		http:   httpClient,
		tracer: tp.Tracer("github.com/xenking/dormdash/internal/gemini"),
	}
}

// Generate sends a single-turn prompt and returns the concatenated text of
// the first candidate.
func (c *Client) Generate(ctx context.Context, prompt string) (_ string, rerr error) {
	ctx, span := c.tracer.Start(ctx, "gemini.Generate",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("ai.provider", "gemini"),
			attribute.String("ai.model", c.cfg.Model),
			attribute.Int("ai.prompt_length", len(prompt)),
		),
	)
	defer func() {
		if rerr != nil {
			span.RecordError(rerr)
			span.SetStatus(codes.Error, rerr.Error())
		}
		span.End()
	}()

	if c.cfg.APIKey == "" {
		return "", ErrNotConfigured
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	body := encodeRequest(prompt, c.cfg.Temperature, c.cfg.MaxOutputTokens)
	url := fmt.Sprintf("%s/models/%s:generateContent", c.cfg.BaseURL, c.cfg.Model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", errors.Wrap(err, "create request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", c.cfg.APIKey)

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return "", errors.Wrap(err, "send request")
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return "", errors.Wrap(err, "read response")
	}
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))

	if resp.StatusCode != http.StatusOK {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		if e, err := decodeError(data); err == nil {
			apiErr.Status = e.Status
			apiErr.Message = e.Message
		}
		return "", apiErr
	}

	out, err := decodeResponse(data)
	if err != nil {
		return "", errors.Wrap(err, "decode response")
	}
	text := out.Text()
	if text == "" {
		return "", ErrEmptyResponse
	}

	span.SetAttributes(
		attribute.Int("ai.prompt_tokens", out.Usage.PromptTokens),
		attribute.Int("ai.completion_tokens", out.Usage.CandidatesTokens),
		attribute.Int("ai.total_tokens", out.Usage.TotalTokens),
	)
	zctx.From(ctx).Debug("Gemini response",
		zap.String("model", c.cfg.Model),
		zap.Int("total_tokens", out.Usage.TotalTokens),
		zap.Duration("duration", time.Since(start)),
	)
	return text, nil
}
