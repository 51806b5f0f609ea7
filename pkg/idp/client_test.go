package idp_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ascenthq/ascent/internal/config"
	"github.com/ascenthq/ascent/pkg/idp"
)

func testConfig(baseURL string) config.IdentityConfig {
	return config.IdentityConfig{
		BaseURL:                 baseURL,
		APIKey:                  "idp-key",
		Timeout:                 2 * time.Second,
		Retries:                 0,
		Backoff:                 time.Millisecond,
		CircuitFailureThreshold: 100,
		CircuitReset:            time.Minute,
	}
}

func TestGetOrganizationMembers(t *testing.T) {
	var gotAuth, gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotPath = r.URL.Path
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"members":[{"user_id":"user_1","role":"admin"},{"user_id":"user_2","role":"basic_member"}]}`))
	}))
	defer srv.Close()

	client, err := idp.NewClient(testConfig(srv.URL), srv.Client())
	if err != nil {
		t.Fatalf("NewClient error: %v", err)
	}

	members, err := client.GetOrganizationMembers(context.Background(), "org_1")
	if err != nil {
		t.Fatalf("GetOrganizationMembers failed: %v", err)
	}
	if len(members) != 2 || members[0].UserID != "user_1" || members[1].Role != "basic_member" {
		t.Fatalf("unexpected members: %#v", members)
	}
	if gotAuth != "Bearer idp-key" {
		t.Fatalf("unexpected auth header: %q", gotAuth)
	}
	if gotPath != "/organizations/org_1/memberships" {
		t.Fatalf("unexpected path: %q", gotPath)
	}
}

func TestAddOrganizationMember(t *testing.T) {
	var gotMethod string
	var gotBody map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	client, err := idp.NewClient(testConfig(srv.URL), srv.Client())
	if err != nil {
		t.Fatalf("NewClient error: %v", err)
	}

	if err := client.AddOrganizationMember(context.Background(), "org_1", "user_5", "basic_member"); err != nil {
		t.Fatalf("AddOrganizationMember failed: %v", err)
	}
	if gotMethod != http.MethodPost {
		t.Fatalf("expected POST, got %s", gotMethod)
	}
	if gotBody["user_id"] != "user_5" || gotBody["role"] != "basic_member" {
		t.Fatalf("unexpected body: %#v", gotBody)
	}
}

func TestUpdateUserMetadata(t *testing.T) {
	var gotMethod, gotPath string
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	client, err := idp.NewClient(testConfig(srv.URL), srv.Client())
	if err != nil {
		t.Fatalf("NewClient error: %v", err)
	}

	err = client.UpdateUserMetadata(context.Background(), "user_5", map[string]any{"company_id": 7})
	if err != nil {
		t.Fatalf("UpdateUserMetadata failed: %v", err)
	}
	if gotMethod != http.MethodPatch {
		t.Fatalf("expected PATCH, got %s", gotMethod)
	}
	if gotPath != "/users/user_5/metadata" {
		t.Fatalf("unexpected path: %q", gotPath)
	}
	meta, ok := gotBody["public_metadata"].(map[string]any)
	if !ok || meta["company_id"] != float64(7) {
		t.Fatalf("metadata must be wrapped in public_metadata: %#v", gotBody)
	}
}

func TestClient_RetriesOnServerError(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 2 {
			http.Error(w, "server error", http.StatusInternalServerError)
			return
		}
		_, _ = w.Write([]byte(`{"members":[]}`))
	}))
	defer srv.Close()

	cfg := testConfig(srv.URL)
	cfg.Retries = 1
	client, err := idp.NewClient(cfg, srv.Client())
	if err != nil {
		t.Fatalf("NewClient error: %v", err)
	}

	if _, err := client.GetOrganizationMembers(context.Background(), "org_1"); err != nil {
		t.Fatalf("expected retry to succeed: %v", err)
	}
	if n := atomic.LoadInt32(&calls); n != 2 {
		t.Fatalf("expected 2 attempts, got %d", n)
	}
}

func TestClient_CircuitOpens(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "server error", http.StatusInternalServerError)
	}))
	defer srv.Close()

	cfg := testConfig(srv.URL)
	cfg.CircuitFailureThreshold = 1
	client, err := idp.NewClient(cfg, srv.Client())
	if err != nil {
		t.Fatalf("NewClient error: %v", err)
	}

	if _, err := client.GetOrganizationMembers(context.Background(), "org_1"); err == nil {
		t.Fatalf("expected failure")
	}
	_, err = client.GetOrganizationMembers(context.Background(), "org_1")
	if !errors.Is(err, idp.ErrCircuitOpen) {
		t.Fatalf("expected ErrCircuitOpen, got %v", err)
	}
}

func TestNewClient_InvalidBaseURL(t *testing.T) {
	if _, err := idp.NewClient(testConfig("not a url"), nil); err == nil {
		t.Fatalf("expected error for invalid base url")
	}
}
