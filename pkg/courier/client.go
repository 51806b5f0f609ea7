// Package courier wraps the transactional email provider's REST API and
// adds retries, timeout, and a circuit breaker.
package courier

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"log/slog"

	"github.com/ascenthq/ascent/internal/config"
	"github.com/ascenthq/ascent/pkg/models"
)

var ErrCircuitOpen = errors.New("courier circuit open")

// ErrRateLimited marks a provider rate-limit response. The dispatcher uses
// it to pick a longer backoff before the next attempt.
var ErrRateLimited = errors.New("courier rate limited")

// Sender is the delivery contract the dispatcher depends on.
type Sender interface {
	Send(ctx context.Context, msg models.EmailMessage) (*SendReceipt, error)
}

// SendReceipt is the provider's acknowledgement of an accepted message.
type SendReceipt struct {
	MessageID string `json:"message_id"`
}

// Client talks to the email provider with retries, timeout, and a simple
// circuit breaker.
type Client struct {
	cfg    config.CourierConfig
	client *http.Client

	// simple circuit breaker state
	failures  int32
	openUntil int64 // unix nano
	closed    int32 // atomic flag for Close()
}

var _ Sender = (*Client)(nil)

// NewClient creates a new courier client.
func NewClient(cfg config.CourierConfig, httpClient *http.Client) (*Client, error) {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}

	if _, err := url.ParseRequestURI(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("invalid base url: %w", err)
	}

	c := &Client{cfg: cfg, client: httpClient}
	logger.Info("courier: NewClient created", slog.String("base_url", cfg.BaseURL), slog.Duration("timeout", cfg.Timeout))
	return c, nil
}

func NewDefaultClient(cfg config.CourierConfig) (*Client, error) {
	defaultClient := &http.Client{
		Transport: &http.Transport{
			Proxy: http.ProxyFromEnvironment,
			DialContext: (&net.Dialer{
				Timeout:   10 * time.Second,
				KeepAlive: 15 * time.Second,
			}).DialContext,
			ForceAttemptHTTP2:     true,
			MaxIdleConns:          100,
			IdleConnTimeout:       90 * time.Second,
			TLSHandshakeTimeout:   10 * time.Second,
			ExpectContinueTimeout: 1 * time.Second,
		},
	}

	return NewClient(cfg, defaultClient)
}

// package-level logger for pkg/courier; can be replaced by callers
var logger = slog.New(slog.NewJSONHandler(os.Stdout, nil))

// SetLogger sets the logger used by pkg/courier. Passing nil is a no-op.
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

	// attempt half-open: reset failures and allow a request
	atomic.StoreInt32(&c.failures, 0)
	return false
}

func (c *Client) recordFailure() {
	v := atomic.AddInt32(&c.failures, 1)
	if v >= int32(c.cfg.CircuitFailureThreshold) {
		atomic.StoreInt64(&c.openUntil, time.Now().Add(c.cfg.CircuitReset).UnixNano())
	}
}

type sendRequest struct {
	From    string `json:"from"`
	To      string `json:"to"`
	Subject string `json:"subject"`
	Text    string `json:"text"`
}

type sendResponse struct {
	ID string `json:"id"`
}

// Send delivers one message. Transient failures are retried with linear
// backoff; a provider rate-limit response returns ErrRateLimited without
// further attempts so the caller controls the cool-down.
func (c *Client) Send(ctx context.Context, msg models.EmailMessage) (*SendReceipt, error) {
	if c.isCircuitOpen() {
		return nil, ErrCircuitOpen
	}

	body, err := json.Marshal(sendRequest{
		From:    c.cfg.FromAddress,
		To:      msg.Recipient,
		Subject: msg.Subject,
		Text:    msg.Body,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal send request: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= c.cfg.Retries; attempt++ {
		receipt, err := c.doSend(ctx, body)
		if err == nil {
			atomic.StoreInt32(&c.failures, 0)
			return receipt, nil
		}

		c.recordFailure()
		if errors.Is(err, ErrRateLimited) || ctx.Err() != nil {
			return nil, err
		}
		lastErr = err

		// backoff
		time.Sleep(c.cfg.Backoff * time.Duration(attempt+1))
	}

	return nil, fmt.Errorf("send to %s failed after %d attempts: %w", msg.Recipient, c.cfg.Retries+1, lastErr)
}

func (c *Client) doSend(ctx context.Context, body []byte) (*SendReceipt, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	u := strings.TrimRight(c.cfg.BaseURL, "/") + "/emails"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	if resp.StatusCode == http.StatusTooManyRequests || rateLimitedBody(respBody) {
		return nil, fmt.Errorf("status %d: %w", resp.StatusCode, ErrRateLimited)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("emails endpoint returned status %d", resp.StatusCode)
	}

	var out sendResponse
	if err := json.Unmarshal(respBody, &out); err != nil {
		return nil, fmt.Errorf("decode send response: %w", err)
	}

	return &SendReceipt{MessageID: out.ID}, nil
}

func rateLimitedBody(body []byte) bool {
	return strings.Contains(strings.ToLower(string(body)), "rate limit")
}

// Close releases any resources held by the client. Close is idempotent and
// safe to call multiple times.
func (c *Client) Close() error {
	if c == nil {
		return nil
	}
	if !atomic.CompareAndSwapInt32(&c.closed, 0, 1) {
		return nil
	}
	if c.client != nil && c.client.Transport != nil {
		if tr, ok := c.client.Transport.(interface{ CloseIdleConnections() }); ok {
			tr.CloseIdleConnections()
		}
	}
	return nil
}
