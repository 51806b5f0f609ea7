// Package invitations implements the invitation lifecycle: creation with
// unique invite codes, forward-only status tracking and idempotent
// completion.
package invitations

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"math/big"
	"strings"
	"time"

	"log/slog"

	"github.com/ascenthq/ascent/pkg/apperr"
	"github.com/ascenthq/ascent/pkg/models"
	"github.com/ascenthq/ascent/pkg/repository"
	"github.com/google/uuid"
)

const (
	codeAlphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	codeLength   = 12
	codeAttempts = 5
)

// Enqueuer enqueues a background job. The outbox worker satisfies it.
type Enqueuer interface {
	Enqueue(ctx context.Context, jobType string, payload any) (int64, error)
}

type Store struct {
	invitations repository.InvitationRepo
	companies   repository.CompanyRepo
	results     repository.AssessmentRepo
	metadata    repository.MetadataRepo
	baseURL     string
	enqueuer    Enqueuer
	logger      *slog.Logger
}

func NewStore(invitations repository.InvitationRepo, companies repository.CompanyRepo, results repository.AssessmentRepo, metadata repository.MetadataRepo, baseURL string, enqueuer Enqueuer, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		invitations: invitations,
		companies:   companies,
		results:     results,
		metadata:    metadata,
		baseURL:     strings.TrimRight(baseURL, "/"),
		enqueuer:    enqueuer,
		logger:      logger,
	}
}

// CreateInput describes an invitation to create or update.
type CreateInput struct {
	Email           string
	Name            string
	CompanyID       int64
	CampaignID      *int64
	CampaignCode    string
	PersonalMessage string
}

// Create inserts a new invitation and fails with a conflict when one already
// exists for (email, company).
func (s *Store) Create(ctx context.Context, in CreateInput) (*models.Invitation, error) {
	if err := s.validate(ctx, &in); err != nil {
		return nil, err
	}

	existing, err := s.invitations.GetInvitationByEmailAndCompany(ctx, in.Email, in.CompanyID)
	if err != nil {
		return nil, fmt.Errorf("lookup invitation: %w", err)
	}
	if existing != nil {
		return nil, apperr.Newf(apperr.KindConflict, "invitation already exists for %s", in.Email)
	}

	return s.insert(ctx, in)
}

// CreateOrUpdate looks an invitation up by (email, company) and updates it in
// place when found, preserving the invite code and never regressing a
// completed status. Absent invitations are created with a fresh code.
func (s *Store) CreateOrUpdate(ctx context.Context, in CreateInput) (*models.Invitation, error) {
	if err := s.validate(ctx, &in); err != nil {
		return nil, err
	}

	existing, err := s.invitations.GetInvitationByEmailAndCompany(ctx, in.Email, in.CompanyID)
	if err != nil {
		return nil, fmt.Errorf("lookup invitation: %w", err)
	}
	if existing == nil {
		return s.insert(ctx, in)
	}

	if in.Name != "" {
		existing.Name = in.Name
	}
	if in.PersonalMessage != "" {
		existing.PersonalMessage = in.PersonalMessage
	}
	if in.CampaignID != nil {
		existing.CampaignID = in.CampaignID
	}
	if existing.InviteCode == "" {
		code, err := s.generateCode(ctx)
		if err != nil {
			return nil, err
		}
		existing.InviteCode = code
	}
	existing.InviteURL = s.buildURL(in.CampaignCode, existing.InviteCode)
	// a completed invitation keeps its status through re-invites
	if err := s.invitations.UpdateInvitation(ctx, existing); err != nil {
		return nil, fmt.Errorf("update invitation: %w", err)
	}

	return existing, nil
}

func (s *Store) validate(ctx context.Context, in *CreateInput) error {
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	if in.Email == "" || !strings.Contains(in.Email, "@") {
		return apperr.Validation("invalid invitation", map[string]string{"email": "a valid email address is required"})
	}
	if in.CompanyID <= 0 {
		return apperr.Validation("invalid invitation", map[string]string{"company_id": "company_id is required"})
	}

	company, err := s.companies.GetCompanyByID(ctx, in.CompanyID)
	if err != nil {
		return fmt.Errorf("lookup company: %w", err)
	}
	if company == nil {
		return apperr.New(apperr.KindNotFound, "company not found")
	}

	return nil
}

func (s *Store) insert(ctx context.Context, in CreateInput) (*models.Invitation, error) {
	code, err := s.generateCode(ctx)
	if err != nil {
		return nil, err
	}

	inv := &models.Invitation{
		Email:           in.Email,
		Name:            in.Name,
		InviteCode:      code,
		InviteURL:       s.buildURL(in.CampaignCode, code),
		CompanyID:       in.CompanyID,
		CampaignID:      in.CampaignID,
		Status:          models.StatusPending,
		PersonalMessage: in.PersonalMessage,
	}
	id, err := s.invitations.CreateInvitation(ctx, inv)
	if err != nil {
		return nil, fmt.Errorf("create invitation: %w", err)
	}

	inv.ID = id
	inv.Created = time.Now().UTC().UnixMilli()
	return inv, nil
}

// Get returns the invitation for an invite code.
func (s *Store) Get(ctx context.Context, inviteCode string) (*models.Invitation, error) {
	inv, err := s.invitations.GetInvitationByCode(ctx, inviteCode)
	if err != nil {
		return nil, fmt.Errorf("lookup invitation: %w", err)
	}
	if inv == nil {
		return nil, apperr.New(apperr.KindNotFound, "invitation not found")
	}
	return inv, nil
}

// Company returns a company by id, with a not-found domain error.
func (s *Store) Company(ctx context.Context, id int64) (*models.Company, error) {
	company, err := s.companies.GetCompanyByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("lookup company: %w", err)
	}
	if company == nil {
		return nil, apperr.New(apperr.KindNotFound, "company not found")
	}
	return company, nil
}

// ListByCompany pages invitations for a company.
func (s *Store) ListByCompany(ctx context.Context, companyID int64, limit, offset int) ([]models.Invitation, error) {
	return s.invitations.ListInvitationsByCompany(ctx, companyID, limit, offset)
}

// ListByCampaign returns the invitations launched under a campaign.
func (s *Store) ListByCampaign(ctx context.Context, campaignID int64) ([]models.Invitation, error) {
	return s.invitations.ListInvitationsByCampaign(ctx, campaignID)
}

// DeleteByEmail removes all invitations for an email, returning the count.
func (s *Store) DeleteByEmail(ctx context.Context, email string) (int64, error) {
	return s.invitations.DeleteInvitationsByEmail(ctx, email)
}

// Track applies an opened/started event. Events whose edge is not in the
// transition table no-op and return the invitation unchanged, so replayed
// or out-of-order events stay harmless.
func (s *Store) Track(ctx context.Context, inviteCode string, event TrackEvent) (*models.Invitation, error) {
	target, ok := statusForEvent(event)
	if !ok {
		return nil, apperr.Newf(apperr.KindValidation, "unknown tracking event %q", event)
	}

	inv, err := s.Get(ctx, inviteCode)
	if err != nil {
		return nil, err
	}

	if !CanAdvance(inv.Status, target) {
		return inv, nil
	}

	ts := time.Now().UTC().UnixMilli()
	inv.Status = target
	switch target {
	case models.StatusOpened:
		if inv.OpenedAt == nil {
			inv.OpenedAt = &ts
		}
	case models.StatusStarted:
		if inv.StartedAt == nil {
			inv.StartedAt = &ts
		}
	}

	if err := s.invitations.UpdateInvitation(ctx, inv); err != nil {
		return nil, fmt.Errorf("update invitation: %w", err)
	}

	return inv, nil
}

// MarkSent records a successful email delivery. Later statuses are kept.
func (s *Store) MarkSent(ctx context.Context, inviteCode string) (*models.Invitation, error) {
	inv, err := s.Get(ctx, inviteCode)
	if err != nil {
		return nil, err
	}

	ts := time.Now().UTC().UnixMilli()
	if inv.SentAt == nil {
		inv.SentAt = &ts
	}
	if CanAdvance(inv.Status, models.StatusSent) {
		inv.Status = models.StatusSent
	}

	if err := s.invitations.UpdateInvitation(ctx, inv); err != nil {
		return nil, fmt.Errorf("update invitation: %w", err)
	}

	return inv, nil
}

// Submission is a completed assessment payload. Role, department and
// challenges are self-reported participant attributes; campaign results
// aggregate the challenge tags.
type Submission struct {
	ToolID     string          `json:"tool_id"`
	ToolName   string          `json:"tool_name,omitempty"`
	Responses  json.RawMessage `json:"responses"`
	Scores     json.RawMessage `json:"scores"`
	Role       string          `json:"role,omitempty"`
	Department string          `json:"department,omitempty"`
	Challenges []string        `json:"challenges,omitempty"`
}

// Complete records an assessment submission and moves the invitation to
// COMPLETED. It is idempotent per (invitation, tool): when a result already
// exists the call succeeds without creating a second row.
func (s *Store) Complete(ctx context.Context, inviteCode string, sub Submission) (*models.AssessmentResult, error) {
	if sub.ToolID == "" {
		return nil, apperr.Validation("invalid submission", map[string]string{"tool_id": "tool_id is required"})
	}

	inv, err := s.Get(ctx, inviteCode)
	if err != nil {
		return nil, err
	}

	existing, err := s.results.GetResultByInvitationAndTool(ctx, inv.ID, sub.ToolID)
	if err != nil {
		return nil, fmt.Errorf("lookup result: %w", err)
	}
	if existing != nil {
		return existing, nil
	}

	ts := time.Now().UTC().UnixMilli()
	result := &models.AssessmentResult{
		InvitationID: inv.ID,
		ToolID:       sub.ToolID,
		ToolName:     sub.ToolName,
		ShareID:      uuid.NewString(),
		CompletedAt:  ts,
		Responses:    sub.Responses,
		Scores:       sub.Scores,
	}
	id, err := s.results.CreateResult(ctx, result)
	if err != nil {
		return nil, fmt.Errorf("create result: %w", err)
	}
	result.ID = id

	if CanAdvance(inv.Status, models.StatusCompleted) {
		inv.Status = models.StatusCompleted
		inv.CompletedAt = &ts
		if err := s.invitations.UpdateInvitation(ctx, inv); err != nil {
			return nil, fmt.Errorf("update invitation: %w", err)
		}
	}

	if err := s.recordMetadata(ctx, inv.ID, sub); err != nil {
		return nil, err
	}

	if s.enqueuer != nil {
		payload := map[string]any{"result_id": id}
		if _, err := s.enqueuer.Enqueue(ctx, "insights.generate", payload); err != nil {
			s.logger.Warn("failed to enqueue insights job", "result_id", id, "err", err)
		}
	}

	return result, nil
}

// recordMetadata merges the submission's participant attributes into the
// invitation's metadata row. The completed tool is always appended to
// tools_accessed; role and department only overwrite when present.
func (s *Store) recordMetadata(ctx context.Context, invitationID int64, sub Submission) error {
	if s.metadata == nil {
		return nil
	}

	meta, err := s.metadata.GetMetadataByInvitation(ctx, invitationID)
	if err != nil {
		return fmt.Errorf("lookup metadata: %w", err)
	}
	if meta == nil {
		meta = &models.InvitationMetadata{InvitationID: invitationID}
	}

	if sub.Role != "" {
		meta.Role = sub.Role
	}
	if sub.Department != "" {
		meta.Department = sub.Department
	}
	for _, c := range sub.Challenges {
		c = strings.TrimSpace(c)
		if c != "" && !containsString(meta.Challenges, c) {
			meta.Challenges = append(meta.Challenges, c)
		}
	}
	if !containsString(meta.ToolsAccessed, sub.ToolID) {
		meta.ToolsAccessed = append(meta.ToolsAccessed, sub.ToolID)
	}

	if _, err := s.metadata.UpsertMetadata(ctx, meta); err != nil {
		return fmt.Errorf("upsert metadata: %w", err)
	}

	return nil
}

func containsString(xs []string, s string) bool {
	for _, x := range xs {
		if x == s {
			return true
		}
	}
	return false
}

// generateCode produces a random alphanumeric invite code, retrying on the
// unlikely collision with an existing one.
func (s *Store) generateCode(ctx context.Context) (string, error) {
	for range codeAttempts {
		code, err := randomCode(codeLength)
		if err != nil {
			return "", fmt.Errorf("generate invite code: %w", err)
		}

		existing, err := s.invitations.GetInvitationByCode(ctx, code)
		if err != nil {
			return "", fmt.Errorf("check invite code: %w", err)
		}
		if existing == nil {
			return code, nil
		}
	}

	return "", fmt.Errorf("failed to generate a unique invite code after %d attempts", codeAttempts)
}

func (s *Store) buildURL(campaignCode, inviteCode string) string {
	if campaignCode != "" {
		return fmt.Sprintf("%s/assessment/%s?invite=%s", s.baseURL, campaignCode, inviteCode)
	}
	return fmt.Sprintf("%s/start?invite=%s", s.baseURL, inviteCode)
}

// RandomCode returns a random alphanumeric token of the given length.
func RandomCode(length int) (string, error) {
	return randomCode(length)
}

func randomCode(length int) (string, error) {
	out := make([]byte, length)
	max := big.NewInt(int64(len(codeAlphabet)))
	for i := range out {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("read random byte: %w", err)
		}
		out[i] = codeAlphabet[n.Int64()]
	}
	return string(out), nil
}
