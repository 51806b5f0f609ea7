package mailer_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/ascenthq/ascent/internal/invitations"
	"github.com/ascenthq/ascent/internal/mailer"
	"github.com/ascenthq/ascent/pkg/courier"
	"github.com/ascenthq/ascent/pkg/models"
	"github.com/ascenthq/ascent/pkg/repository/mock"
)

// fakeSender fails recipients listed in failFor, optionally recovering after
// failUntil attempts per recipient.
type fakeSender struct {
	mu        sync.Mutex
	attempts  map[string]int
	failFor   map[string]bool
	failUntil int
}

func newFakeSender() *fakeSender {
	return &fakeSender{attempts: make(map[string]int), failFor: make(map[string]bool)}
}

func (f *fakeSender) Send(ctx context.Context, msg models.EmailMessage) (*courier.SendReceipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.attempts[msg.Recipient]++
	if f.failFor[msg.Recipient] && (f.failUntil == 0 || f.attempts[msg.Recipient] <= f.failUntil) {
		return nil, errors.New("provider unavailable")
	}
	return &courier.SendReceipt{MessageID: "msg-" + msg.Recipient}, nil
}

func TestSendBatchReportsEveryRecipient(t *testing.T) {
	sender := newFakeSender()
	sender.failFor["b@acme.com"] = true

	d := mailer.NewDispatcher(sender, nil)
	msgs := []models.EmailMessage{
		{Recipient: "a@acme.com"},
		{Recipient: "b@acme.com"},
		{Recipient: "c@acme.com"},
	}

	results := d.SendBatch(context.Background(), msgs, mailer.BatchOptions{MaxConcurrent: 2})
	if len(results) != len(msgs) {
		t.Fatalf("expected %d results got %d", len(msgs), len(results))
	}

	byRecipient := make(map[string]mailer.SendResult)
	for _, r := range results {
		byRecipient[r.Recipient] = r
	}
	if !byRecipient["a@acme.com"].Success || !byRecipient["c@acme.com"].Success {
		t.Fatalf("healthy recipients must succeed: %+v", results)
	}
	if byRecipient["a@acme.com"].ProviderMessageID != "msg-a@acme.com" {
		t.Fatalf("provider message id missing: %+v", byRecipient["a@acme.com"])
	}
	if byRecipient["b@acme.com"].Success || byRecipient["b@acme.com"].Error == "" {
		t.Fatalf("failed recipient must report its error: %+v", byRecipient["b@acme.com"])
	}
}

func TestSendBatchRetries(t *testing.T) {
	sender := newFakeSender()
	sender.failFor["a@acme.com"] = true
	sender.failUntil = 2 // first two attempts fail, third succeeds

	d := mailer.NewDispatcher(sender, nil)
	results := d.SendBatch(context.Background(), []models.EmailMessage{{Recipient: "a@acme.com"}}, mailer.BatchOptions{
		MaxConcurrent: 1,
		RetryFailures: true,
		MaxRetries:    2,
	})

	if !results[0].Success {
		t.Fatalf("expected success after retries: %+v", results[0])
	}
	if sender.attempts["a@acme.com"] != 3 {
		t.Fatalf("expected 3 attempts got %d", sender.attempts["a@acme.com"])
	}
}

func TestSendBatchNoRetryByDefault(t *testing.T) {
	sender := newFakeSender()
	sender.failFor["a@acme.com"] = true

	d := mailer.NewDispatcher(sender, nil)
	results := d.SendBatch(context.Background(), []models.EmailMessage{{Recipient: "a@acme.com"}}, mailer.BatchOptions{MaxConcurrent: 1})

	if results[0].Success {
		t.Fatalf("expected failure")
	}
	if sender.attempts["a@acme.com"] != 1 {
		t.Fatalf("expected a single attempt got %d", sender.attempts["a@acme.com"])
	}
}

func TestSendBatchEmpty(t *testing.T) {
	d := mailer.NewDispatcher(newFakeSender(), nil)
	results := d.SendBatch(context.Background(), nil, mailer.BatchOptions{})
	if len(results) != 0 {
		t.Fatalf("expected no results got %d", len(results))
	}
}

func TestSendHandlerMarksInvitationSent(t *testing.T) {
	m := mock.NewMocks()
	if _, err := m.Companies.CreateCompany(context.Background(), &models.Company{Name: "Acme", Domains: []string{"acme.com"}}); err != nil {
		t.Fatalf("seed company: %v", err)
	}
	store := invitations.NewStore(m.Invitations, m.Companies, m.Assessments, m.Metadata, "https://app.example.com", nil, nil)

	inv, err := store.Create(context.Background(), invitations.CreateInput{Email: "a@acme.com", CompanyID: 1})
	if err != nil {
		t.Fatalf("create invitation: %v", err)
	}

	sender := newFakeSender()
	handler := mailer.SendHandler(sender, store, nil)

	payload, _ := json.Marshal(models.EmailMessage{Recipient: "a@acme.com", InviteCode: inv.InviteCode})
	job := &mailer.Job{Type: "email.send", Payload: payload}
	if err := handler(context.Background(), job); err != nil {
		t.Fatalf("handler: %v", err)
	}
	if job.ProviderMessageID == "" {
		t.Fatalf("provider message id must be recorded on the job")
	}

	got, err := store.Get(context.Background(), inv.InviteCode)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != models.StatusSent || got.SentAt == nil {
		t.Fatalf("invitation must be SENT, got %s", got.Status)
	}
}

func TestSendHandlerPropagatesSendFailure(t *testing.T) {
	sender := newFakeSender()
	sender.failFor["a@acme.com"] = true
	handler := mailer.SendHandler(sender, nil, nil)

	payload, _ := json.Marshal(models.EmailMessage{Recipient: "a@acme.com"})
	if err := handler(context.Background(), &mailer.Job{Type: "email.send", Payload: payload}); err == nil {
		t.Fatalf("expected error so the outbox retries the job")
	}
}
