package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ascenthq/ascent/api"
	dbfs "github.com/ascenthq/ascent/db"
	"github.com/ascenthq/ascent/internal/campaigns"
	"github.com/ascenthq/ascent/internal/config"
	"github.com/ascenthq/ascent/internal/db"
	"github.com/ascenthq/ascent/internal/directory"
	"github.com/ascenthq/ascent/internal/invitations"
	"github.com/ascenthq/ascent/internal/mailer"
	"github.com/ascenthq/ascent/internal/ratelimit"
	"github.com/ascenthq/ascent/internal/repository/sqlite"
	"github.com/ascenthq/ascent/internal/webhooks"
	"github.com/ascenthq/ascent/pkg/courier"
	"github.com/ascenthq/ascent/pkg/idp"
	"github.com/ascenthq/ascent/pkg/models"
)

const testBaseURL = "https://app.ascent.test"

// fakeSender records deliveries instead of calling the provider.
type fakeSender struct {
	mu        sync.Mutex
	delivered []string
	failFor   map[string]bool
}

func (f *fakeSender) Send(ctx context.Context, msg models.EmailMessage) (*courier.SendReceipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failFor[msg.Recipient] {
		return nil, fmt.Errorf("delivery to %s failed", msg.Recipient)
	}
	f.delivered = append(f.delivered, msg.Recipient)
	return &courier.SendReceipt{MessageID: "msg-" + msg.Recipient}, nil
}

func (f *fakeSender) deliveredCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.delivered)
}

// fakeProvider is an in-memory identity provider for webhook tests.
type fakeProvider struct {
	mu      sync.Mutex
	members map[string][]idp.Member
}

func (f *fakeProvider) GetOrganizationMembers(ctx context.Context, orgID string) ([]idp.Member, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.members[orgID], nil
}

func (f *fakeProvider) AddOrganizationMember(ctx context.Context, orgID, userID, role string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.members[orgID] = append(f.members[orgID], idp.Member{UserID: userID, Role: role})
	return nil
}

func (f *fakeProvider) UpdateUserMetadata(ctx context.Context, userID string, metadata map[string]any) error {
	return nil
}

type env struct {
	srv    *httptest.Server
	repo   *sqlite.SQLiteRepo
	sender *fakeSender
}

var envSeq int64

func newEnv(t *testing.T) *env {
	t.Helper()
	ctx := context.Background()

	dsn := fmt.Sprintf("file:api_env_%d?mode=memory&cache=shared", atomic.AddInt64(&envSeq, 1))
	d, err := db.New(ctx, dsn, nil)
	if err != nil {
		t.Fatalf("db.New: %v", err)
	}
	t.Cleanup(func() { d.Close() })
	if err := db.Migrate(ctx, d, dbfs.Migrations); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	repo := sqlite.New(d, nil)
	outbox := mailer.NewOutbox(d)
	dir := directory.New(repo, nil)
	store := invitations.NewStore(repo, repo, repo, repo, testBaseURL, outbox, nil)
	limiter := ratelimit.NewWindow(100, time.Hour)
	manager := campaigns.NewManager(repo, repo, repo, store, dir, limiter, testBaseURL, nil)
	sender := &fakeSender{failFor: map[string]bool{}}
	dispatcher := mailer.NewDispatcher(sender, nil)
	synchronizer, err := webhooks.NewSynchronizer(repo, repo, &fakeProvider{members: map[string][]idp.Member{}}, nil)
	if err != nil {
		t.Fatalf("NewSynchronizer: %v", err)
	}

	cfg := &config.Config{JWTSecret: "test-secret", TokenDuration: time.Hour}
	mailerCfg := config.MailerConfig{MaxConcurrent: 2}

	h := api.Handlers{
		System:        &api.SystemHandler{},
		Auth:          api.NewAuthHandler(repo, cfg.JWTSecret, cfg.TokenDuration),
		Invitations:   api.NewInvitationsHandler(store, dir, outbox),
		Campaigns:     api.NewCampaignsHandler(manager, dispatcher, outbox, store, repo, repo, mailerCfg),
		Organizations: api.NewOrganizationsHandler(repo, dir),
		Users:         api.NewUsersHandler(store),
		Assessments:   api.NewAssessmentsHandler(repo, repo),
		Webhooks:      api.NewWebhooksHandler(synchronizer),
	}

	srv := httptest.NewServer(api.SetupRoutes(cfg, "test", "test", h))
	t.Cleanup(srv.Close)

	return &env{srv: srv, repo: repo, sender: sender}
}

// do performs a request against the test server and decodes the JSON
// response into out when out is non-nil.
func (e *env) do(t *testing.T, method, path, token string, body, out any) int {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, e.srv.URL+path, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := e.srv.Client().Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode %s %s response: %v", method, path, err)
		}
	}
	return resp.StatusCode
}

// signup registers an admin and returns a bearer token for protected routes.
func (e *env) signup(t *testing.T, name, email string) string {
	t.Helper()
	var out struct {
		Token string `json:"token"`
	}
	status := e.do(t, http.MethodPost, "/v1/auth/signup", "", map[string]string{
		"name":     name,
		"email":    email,
		"password": "hunter2hunter2",
	}, &out)
	if status != http.StatusOK || out.Token == "" {
		t.Fatalf("signup failed: status %d token %q", status, out.Token)
	}
	return out.Token
}
