// Package insight generates assessment summaries with a local Ollama model.
// The client adds retries, timeout, and a circuit breaker around the model
// API.
package insight

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"log/slog"

	"github.com/ascenthq/ascent/internal/config"
	"github.com/ollama/ollama/api"
)

var ErrCircuitOpen = errors.New("insight circuit open")

// Report is the structured output expected from the model.
type Report struct {
	Summary         string   `json:"summary"`
	Insights        []string `json:"insights"`
	Recommendations []string `json:"recommendations"`
}

// Client wraps the Ollama API client.
type Client struct {
	api *api.Client
	cfg config.InsightsConfig

	// simple circuit breaker state
	failures  int32
	openUntil int64 // unix nano
}

// NewClient creates a new insight client. Returns nil when no model is
// configured; callers treat a nil client as insights-disabled.
func NewClient(cfg config.InsightsConfig, httpClient *http.Client) (*Client, error) {
	if cfg.Model == "" {
		return nil, nil
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}

	u, err := url.ParseRequestURI(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base url: %w", err)
	}

	c := &Client{api: api.NewClient(u, httpClient), cfg: cfg}
	logger.Info("insight: NewClient created", slog.String("base_url", cfg.BaseURL), slog.String("model", cfg.Model))
	return c, nil
}

// package-level logger for pkg/insight; can be replaced by callers
var logger = slog.New(slog.NewJSONHandler(os.Stdout, nil))

// SetLogger sets the logger used by pkg/insight. Passing nil is a no-op.
func SetLogger(l *slog.Logger) {
	if l != nil {
		logger = l
	}
}

func (c *Client) isCircuitOpen() bool {
	if atomic.LoadInt32(&c.failures) < int32(c.cfg.CircuitFailureThreshold) {
		return false
	}

	if time.Now().UnixNano() < atomic.LoadInt64(&c.openUntil) {
		return true
	}

	atomic.StoreInt32(&c.failures, 0)
	return false
}

func (c *Client) recordFailure() {
	v := atomic.AddInt32(&c.failures, 1)
	if v >= int32(c.cfg.CircuitFailureThreshold) {
		atomic.StoreInt64(&c.openUntil, time.Now().Add(c.cfg.CircuitReset).UnixNano())
	}
}

// Generate prompts the model and parses its JSON report. It retries
// transient failures with linear backoff.
func (c *Client) Generate(ctx context.Context, prompt string) (*Report, error) {
	if c.isCircuitOpen() {
		return nil, ErrCircuitOpen
	}

	stream := false
	var lastErr error
	for attempt := 0; attempt <= c.cfg.Retries; attempt++ {
		ctxReq, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
		req := &api.GenerateRequest{Model: c.cfg.Model, Prompt: prompt, Stream: &stream}

		var text strings.Builder
		err := c.api.Generate(ctxReq, req, func(r api.GenerateResponse) error {
			text.WriteString(r.Response)
			return nil
		})
		cancel()

		if err == nil {
			report, perr := parseReport(text.String())
			if perr == nil {
				atomic.StoreInt32(&c.failures, 0)
				return report, nil
			}
			err = perr
		}

		c.recordFailure()
		if ctx.Err() != nil {
			return nil, err
		}
		lastErr = err

		time.Sleep(c.cfg.Backoff * time.Duration(attempt+1))
	}

	return nil, fmt.Errorf("generate failed after %d attempts: %w", c.cfg.Retries+1, lastErr)
}

// parseReport extracts the first JSON object from model output. Models often
// wrap JSON in prose or code fences.
func parseReport(text string) (*Report, error) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("no JSON object in model output")
	}

	var report Report
	if err := json.Unmarshal([]byte(text[start:end+1]), &report); err != nil {
		return nil, fmt.Errorf("decode model output: %w", err)
	}
	if report.Summary == "" && len(report.Insights) == 0 && len(report.Recommendations) == 0 {
		return nil, fmt.Errorf("model output carries no report fields")
	}

	return &report, nil
}
