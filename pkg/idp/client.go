// Package idp wraps the identity provider's admin REST API: organization
// membership and user metadata.
package idp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"log/slog"

	"github.com/ascenthq/ascent/internal/config"
)

var ErrCircuitOpen = errors.New("idp circuit open")

// Member is an organization membership record at the provider.
type Member struct {
	UserID string `json:"user_id"`
	Role   string `json:"role"`
}

// Provider is the subset of the identity provider API the webhook
// synchronizer depends on.
type Provider interface {
	GetOrganizationMembers(ctx context.Context, orgID string) ([]Member, error)
	AddOrganizationMember(ctx context.Context, orgID, userID, role string) error
	UpdateUserMetadata(ctx context.Context, userID string, metadata map[string]any) error
}

// Client talks to the identity provider with retries, timeout, and a simple
// circuit breaker.
type Client struct {
	cfg    config.IdentityConfig
	client *http.Client

	failures  int32
	openUntil int64 // unix nano
}

var _ Provider = (*Client)(nil)

// NewClient creates a new identity provider client.
func NewClient(cfg config.IdentityConfig, httpClient *http.Client) (*Client, error) {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}

	if _, err := url.ParseRequestURI(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("invalid base url: %w", err)
	}

	c := &Client{cfg: cfg, client: httpClient}
	logger.Info("idp: NewClient created", slog.String("base_url", cfg.BaseURL))
	return c, nil
}

// package-level logger for pkg/idp; can be replaced by callers
var logger = slog.New(slog.NewJSONHandler(os.Stdout, nil))

// SetLogger sets the logger used by pkg/idp. Passing nil is a no-op.
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

// GetOrganizationMembers lists the current members of an organization.
func (c *Client) GetOrganizationMembers(ctx context.Context, orgID string) ([]Member, error) {
	var out struct {
		Members []Member `json:"members"`
	}
	path := fmt.Sprintf("/organizations/%s/memberships", url.PathEscape(orgID))
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out.Members, nil
}

// AddOrganizationMember adds a user to an organization with the given role.
func (c *Client) AddOrganizationMember(ctx context.Context, orgID, userID, role string) error {
	path := fmt.Sprintf("/organizations/%s/memberships", url.PathEscape(orgID))
	body := map[string]string{"user_id": userID, "role": role}
	return c.do(ctx, http.MethodPost, path, body, nil)
}

// UpdateUserMetadata merges metadata onto the provider-side user record.
func (c *Client) UpdateUserMetadata(ctx context.Context, userID string, metadata map[string]any) error {
	path := fmt.Sprintf("/users/%s/metadata", url.PathEscape(userID))
	return c.do(ctx, http.MethodPatch, path, map[string]any{"public_metadata": metadata}, nil)
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	if c.isCircuitOpen() {
		return ErrCircuitOpen
	}

	var payload []byte
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		payload = b
	}

	var lastErr error
	for attempt := 0; attempt <= c.cfg.Retries; attempt++ {
		err := c.doOnce(ctx, method, path, payload, out)
		if err == nil {
			atomic.StoreInt32(&c.failures, 0)
			return nil
		}

		c.recordFailure()
		if ctx.Err() != nil {
			return err
		}
		lastErr = err

		time.Sleep(c.cfg.Backoff * time.Duration(attempt+1))
	}

	return fmt.Errorf("%s %s failed after %d attempts: %w", method, path, c.cfg.Retries+1, lastErr)
}

func (c *Client) doOnce(ctx context.Context, method, path string, payload []byte, out any) error {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	u := strings.TrimRight(c.cfg.BaseURL, "/") + path
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%s returned status %d", path, resp.StatusCode)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}

	return nil
}
