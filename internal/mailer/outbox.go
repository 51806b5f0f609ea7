package mailer

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ascenthq/ascent/internal/db"
)

// Job is a durable outbox entry. Email sends and insight generation both
// flow through the outbox so retry state survives a crash.
type Job struct {
	ID                int64           `json:"id"`
	Type              string          `json:"type"`
	Payload           json.RawMessage `json:"payload"`
	Status            string          `json:"status"`
	Attempts          int             `json:"attempts"`
	MaxAttempts       int             `json:"max_attempts"`
	Priority          int             `json:"priority"`
	ScheduledAt       time.Time       `json:"scheduled_at"`
	NextTryAt         *time.Time      `json:"next_try_at,omitempty"`
	LastError         string          `json:"last_error,omitempty"`
	ProviderMessageID string          `json:"provider_message_id,omitempty"`
	Created           time.Time       `json:"created"`
	Updated           time.Time       `json:"updated"`
}

// Handler is the function that processes a job
type Handler func(ctx context.Context, j *Job) error

// BackoffDuration returns exponential backoff duration for attempt n
func BackoffDuration(attempt int) time.Duration {
	if attempt <= 0 {
		return time.Second
	}
	d := time.Duration(1<<uint(attempt)) * time.Second
	max := 5 * time.Minute
	if d > max {
		return max
	}
	return d
}

// Outbox persists jobs in the email_outbox table.
type Outbox struct {
	db *db.DB
}

func NewOutbox(d *db.DB) *Outbox { return &Outbox{db: d} }

// Enqueue marshals payload and inserts a job, returning the new ID.
func (o *Outbox) Enqueue(ctx context.Context, jobType string, payload any) (int64, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return 0, fmt.Errorf("marshal payload: %w", err)
	}
	return o.EnqueueJob(ctx, &Job{Type: jobType, Payload: b, Priority: 100, MaxAttempts: 5, ScheduledAt: time.Now()})
}

// EnqueueJob inserts a job into the outbox and returns the new ID.
func (o *Outbox) EnqueueJob(ctx context.Context, j *Job) (int64, error) {
	if j.MaxAttempts == 0 {
		j.MaxAttempts = 5
	}
	now := time.Now().UTC().UnixMilli()
	q := `INSERT INTO email_outbox(type, payload, status, attempts, max_attempts, priority, scheduled_at, created, updated) VALUES(?,?,?,?,?,?,?,?,?)`
	res, err := o.db.Exec(ctx, q, j.Type, string(j.Payload), "queued", j.Attempts, j.MaxAttempts, j.Priority, j.ScheduledAt.UTC().Unix(), now, now)
	if err != nil {
		return 0, fmt.Errorf("enqueue failed: %w", err)
	}
	return res.LastInsertId()
}

// FetchNext fetches the next available job respecting priority and schedule
func (o *Outbox) FetchNext(ctx context.Context) (*Job, error) {
	q := `SELECT id, type, payload, status, attempts, max_attempts, priority, scheduled_at, next_try_at, last_error, provider_message_id, created, updated FROM email_outbox WHERE (status = 'queued' OR status = 'retry') AND (next_try_at IS NULL OR next_try_at <= ?) AND scheduled_at <= ? ORDER BY priority ASC, scheduled_at ASC LIMIT 1`
	now := time.Now().UTC().Unix()
	row := o.db.QueryRow(ctx, q, now, now)
	var (
		id          int64
		typ         string
		payload     sql.NullString
		status      string
		attempts    int
		maxAttempts int
		priority    int
		scheduledAt int64
		nextTry     sql.NullInt64
		lastError   sql.NullString
		messageID   sql.NullString
		created     int64
		updated     int64
	)
	if err := row.Scan(&id, &typ, &payload, &status, &attempts, &maxAttempts, &priority, &scheduledAt, &nextTry, &lastError, &messageID, &created, &updated); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("fetch next job: %w", err)
	}
	j := &Job{
		ID:          id,
		Type:        typ,
		Status:      status,
		Attempts:    attempts,
		MaxAttempts: maxAttempts,
		Priority:    priority,
		ScheduledAt: time.Unix(scheduledAt, 0),
		Created:     time.UnixMilli(created),
		Updated:     time.UnixMilli(updated),
	}
	if payload.Valid {
		j.Payload = json.RawMessage(payload.String)
	}
	if nextTry.Valid {
		t := time.Unix(nextTry.Int64, 0)
		j.NextTryAt = &t
	}
	if lastError.Valid {
		j.LastError = lastError.String
	}
	if messageID.Valid {
		j.ProviderMessageID = messageID.String
	}
	return j, nil
}

// UpdateJob updates attempts, status, next_try_at, last_error
func (o *Outbox) UpdateJob(ctx context.Context, j *Job) error {
	var nextTry any
	if j.NextTryAt != nil {
		nextTry = j.NextTryAt.Unix()
	}
	q := `UPDATE email_outbox SET status = ?, attempts = ?, next_try_at = ?, last_error = ?, provider_message_id = ?, updated = ? WHERE id = ?`
	_, err := o.db.Exec(ctx, q, j.Status, j.Attempts, nextTry, j.LastError, j.ProviderMessageID, time.Now().UTC().UnixMilli(), j.ID)
	return err
}

// MoveToDeadLetter moves a job to dead_letter_emails and deletes the original
func (o *Outbox) MoveToDeadLetter(ctx context.Context, j *Job) error {
	return o.db.InTx(ctx, func(ctx context.Context) error {
		insert := `INSERT INTO dead_letter_emails(job_id, type, payload, attempts, last_error, failed_at) VALUES(?,?,?,?,?,?)`
		if _, err := o.db.Exec(ctx, insert, j.ID, j.Type, string(j.Payload), j.Attempts, j.LastError, time.Now().UTC().Unix()); err != nil {
			return err
		}
		if _, err := o.db.Exec(ctx, `DELETE FROM email_outbox WHERE id = ?`, j.ID); err != nil {
			return err
		}
		return nil
	})
}
