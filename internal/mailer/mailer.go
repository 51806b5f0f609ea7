// Package mailer delivers invitation emails: an in-process batch dispatcher
// with bounded fan-out plus a durable outbox drained by a worker pool.
package mailer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"log/slog"

	"github.com/ascenthq/ascent/internal/invitations"
	"github.com/ascenthq/ascent/pkg/courier"
	"github.com/ascenthq/ascent/pkg/models"
)

const (
	retryBackoff     = 500 * time.Millisecond
	rateLimitBackoff = 2 * time.Second
)

// BatchOptions tunes a single SendBatch call.
type BatchOptions struct {
	MaxConcurrent       int
	DelayBetweenBatches time.Duration
	RetryFailures       bool
	MaxRetries          int
}

// SendResult reports the outcome for one recipient. A batch of N messages
// always yields exactly N results.
type SendResult struct {
	Recipient         string `json:"recipient"`
	Success           bool   `json:"success"`
	Error             string `json:"error,omitempty"`
	ProviderMessageID string `json:"provider_message_id,omitempty"`
}

// Dispatcher sends batches of messages through the provider client.
type Dispatcher struct {
	sender courier.Sender
	logger *slog.Logger
}

func NewDispatcher(sender courier.Sender, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{sender: sender, logger: logger}
}

// SendBatch partitions msgs into chunks of MaxConcurrent, sends each chunk
// concurrently, and waits DelayBetweenBatches between chunks (not after the
// last). Individual failures never abort the batch.
func (d *Dispatcher) SendBatch(ctx context.Context, msgs []models.EmailMessage, opts BatchOptions) []SendResult {
	if opts.MaxConcurrent <= 0 {
		opts.MaxConcurrent = 5
	}

	results := make([]SendResult, len(msgs))
	for start := 0; start < len(msgs); start += opts.MaxConcurrent {
		end := start + opts.MaxConcurrent
		if end > len(msgs) {
			end = len(msgs)
		}

		var wg sync.WaitGroup
		for i := start; i < end; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				results[i] = d.sendOne(ctx, msgs[i], opts)
			}(i)
		}
		wg.Wait()

		if end < len(msgs) && opts.DelayBetweenBatches > 0 {
			time.Sleep(opts.DelayBetweenBatches)
		}
	}

	return results
}

func (d *Dispatcher) sendOne(ctx context.Context, msg models.EmailMessage, opts BatchOptions) SendResult {
	attempts := 1
	if opts.RetryFailures && opts.MaxRetries > 0 {
		attempts = opts.MaxRetries + 1
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		receipt, err := d.sender.Send(ctx, msg)
		if err == nil {
			return SendResult{Recipient: msg.Recipient, Success: true, ProviderMessageID: receipt.MessageID}
		}
		lastErr = err

		if attempt == attempts-1 || ctx.Err() != nil {
			break
		}
		if errors.Is(err, courier.ErrRateLimited) {
			// give the provider room before the next attempt
			time.Sleep(rateLimitBackoff)
		} else {
			time.Sleep(retryBackoff)
		}
	}

	d.logger.Warn("send failed", "recipient", msg.Recipient, "err", lastErr)
	return SendResult{Recipient: msg.Recipient, Success: false, Error: lastErr.Error()}
}

// EnqueueBatch persists one outbox job per message so delivery survives a
// process crash.
func EnqueueBatch(ctx context.Context, outbox *Outbox, msgs []models.EmailMessage) error {
	for _, msg := range msgs {
		if _, err := outbox.Enqueue(ctx, "email.send", msg); err != nil {
			return fmt.Errorf("enqueue email for %s: %w", msg.Recipient, err)
		}
	}
	return nil
}

// SendHandler returns the outbox handler for email.send jobs. Successful
// sends record the provider message id and mark the invitation sent.
func SendHandler(sender courier.Sender, store *invitations.Store, logger *slog.Logger) Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return func(ctx context.Context, j *Job) error {
		var msg models.EmailMessage
		if err := json.Unmarshal(j.Payload, &msg); err != nil {
			return fmt.Errorf("decode email payload: %w", err)
		}

		receipt, err := sender.Send(ctx, msg)
		if err != nil {
			return err
		}
		j.ProviderMessageID = receipt.MessageID

		if msg.InviteCode != "" && store != nil {
			if _, err := store.MarkSent(ctx, msg.InviteCode); err != nil {
				// the email is out; a tracking failure must not retry the send
				logger.Warn("failed to mark invitation sent", "invite_code", msg.InviteCode, "err", err)
			}
		}

		return nil
	}
}
