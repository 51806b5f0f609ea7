// Package campaigns groups invitations under named campaigns: transactional
// launch, result metrics and lifecycle.
package campaigns

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"log/slog"

	"github.com/ascenthq/ascent/internal/directory"
	"github.com/ascenthq/ascent/internal/invitations"
	"github.com/ascenthq/ascent/internal/ratelimit"
	"github.com/ascenthq/ascent/pkg/apperr"
	"github.com/ascenthq/ascent/pkg/models"
	"github.com/ascenthq/ascent/pkg/repository"
)

const (
	campaignCodeLength   = 10
	campaignCodeAttempts = 5
	topChallengeCount    = 5
)

type Manager struct {
	tx        repository.TxRunner
	campaigns repository.CampaignRepo
	metadata  repository.MetadataRepo
	store     *invitations.Store
	directory *directory.Directory
	limiter   ratelimit.Limiter
	baseURL   string
	logger    *slog.Logger
}

func NewManager(tx repository.TxRunner, campaigns repository.CampaignRepo, metadata repository.MetadataRepo, store *invitations.Store, dir *directory.Directory, limiter ratelimit.Limiter, baseURL string, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		tx:        tx,
		campaigns: campaigns,
		metadata:  metadata,
		store:     store,
		directory: dir,
		limiter:   limiter,
		baseURL:   strings.TrimRight(baseURL, "/"),
		logger:    logger,
	}
}

// LaunchSpec describes a campaign to launch.
type LaunchSpec struct {
	Identity        string   `json:"-"`
	Name            string   `json:"name"`
	Description     string   `json:"description,omitempty"`
	CompanyID       int64    `json:"company_id,omitempty"`
	CompanyName     string   `json:"company_name,omitempty"`
	ToolID          string   `json:"tool_id,omitempty"`
	ToolName        string   `json:"tool_name,omitempty"`
	ToolPath        string   `json:"tool_path,omitempty"`
	Participants    []string `json:"participants"`
	PersonalMessage string   `json:"personal_message,omitempty"`
	EndDate         *int64   `json:"end_date,omitempty"`
}

// LaunchResult is the outcome of a campaign launch.
type LaunchResult struct {
	Campaign    *models.Campaign    `json:"campaign"`
	Invitations []models.Invitation `json:"invitations"`
}

// Launch rate-limits the caller, resolves the owning company and creates the
// campaign plus one invitation per participant inside a single transaction.
// Either everything commits or nothing does. Email delivery is not part of
// the transaction; callers enqueue messages after a successful launch.
func (m *Manager) Launch(ctx context.Context, spec LaunchSpec) (*LaunchResult, error) {
	if m.limiter != nil && spec.Identity != "" && !m.limiter.Allow(spec.Identity) {
		return nil, apperr.New(apperr.KindRateLimited, "campaign creation quota exceeded, retry later")
	}

	spec.Name = strings.TrimSpace(spec.Name)
	if spec.Name == "" {
		return nil, apperr.Validation("invalid campaign", map[string]string{"name": "name is required"})
	}
	if len(spec.Participants) == 0 {
		return nil, apperr.Validation("invalid campaign", map[string]string{"participants": "at least one participant is required"})
	}

	participants := make([]string, 0, len(spec.Participants))
	seen := make(map[string]bool, len(spec.Participants))
	for _, p := range spec.Participants {
		email := strings.ToLower(strings.TrimSpace(p))
		if email == "" || !strings.Contains(email, "@") {
			return nil, apperr.Validation("invalid campaign", map[string]string{"participants": fmt.Sprintf("invalid participant email %q", p)})
		}
		if seen[email] {
			continue
		}
		seen[email] = true
		participants = append(participants, email)
	}

	company, err := m.resolveCompany(ctx, spec, participants[0])
	if err != nil {
		return nil, err
	}

	code, err := m.generateCode(ctx)
	if err != nil {
		return nil, err
	}

	campaign := &models.Campaign{
		Name:         spec.Name,
		Description:  spec.Description,
		CompanyID:    company.ID,
		Status:       models.CampaignActive,
		StartDate:    time.Now().UTC().UnixMilli(),
		EndDate:      spec.EndDate,
		ToolID:       spec.ToolID,
		ToolName:     spec.ToolName,
		ToolPath:     spec.ToolPath,
		Participants: participants,
		CampaignCode: code,
		CampaignLink: fmt.Sprintf("%s/assessment/%s", m.baseURL, code),
	}

	var invited []models.Invitation
	err = m.tx.InTx(ctx, func(ctx context.Context) error {
		id, err := m.campaigns.CreateCampaign(ctx, campaign)
		if err != nil {
			return fmt.Errorf("create campaign: %w", err)
		}
		campaign.ID = id

		for _, email := range participants {
			inv, err := m.store.CreateOrUpdate(ctx, invitations.CreateInput{
				Email:           email,
				CompanyID:       company.ID,
				CampaignID:      &campaign.ID,
				CampaignCode:    code,
				PersonalMessage: spec.PersonalMessage,
			})
			if err != nil {
				return fmt.Errorf("invite %s: %w", email, err)
			}
			invited = append(invited, *inv)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	m.logger.Info("campaign launched", "campaign", campaign.Name, "code", code, "participants", len(participants))
	return &LaunchResult{Campaign: campaign, Invitations: invited}, nil
}

func (m *Manager) resolveCompany(ctx context.Context, spec LaunchSpec, firstParticipant string) (*models.Company, error) {
	if spec.CompanyID > 0 {
		company, err := m.store.Company(ctx, spec.CompanyID)
		if err != nil {
			return nil, err
		}
		return company, nil
	}

	return m.directory.ResolveCompanyForEmail(ctx, firstParticipant, spec.CompanyName)
}

// Metrics aggregates campaign progress.
type Metrics struct {
	CampaignID     int64          `json:"campaign_id"`
	Total          int            `json:"total"`
	ByStatus       map[string]int `json:"by_status"`
	CompletionRate int            `json:"completion_rate"`
	EngagementRate int            `json:"engagement_rate"`
	TopChallenges  []ChallengeTag `json:"top_challenges"`
}

// ChallengeTag is a challenge string with its frequency across invitations.
type ChallengeTag struct {
	Tag   string `json:"tag"`
	Count int    `json:"count"`
}

// Results computes completion and engagement rates plus the five most
// frequent challenge tags. Rates are rounded integers in [0,100] and zero
// when the campaign has no invitations.
func (m *Manager) Results(ctx context.Context, campaignID int64) (*Metrics, error) {
	campaign, err := m.campaigns.GetCampaignByID(ctx, campaignID)
	if err != nil {
		return nil, fmt.Errorf("lookup campaign: %w", err)
	}
	if campaign == nil {
		return nil, apperr.New(apperr.KindNotFound, "campaign not found")
	}

	invited, err := m.store.ListByCampaign(ctx, campaignID)
	if err != nil {
		return nil, err
	}

	metrics := &Metrics{
		CampaignID: campaignID,
		Total:      len(invited),
		ByStatus:   make(map[string]int),
	}

	completed, engaged := 0, 0
	challenges := make(map[string]int)
	for _, inv := range invited {
		metrics.ByStatus[string(inv.Status)]++
		switch inv.Status {
		case models.StatusCompleted:
			completed++
			engaged++
		case models.StatusStarted:
			engaged++
		}

		meta, err := m.metadata.GetMetadataByInvitation(ctx, inv.ID)
		if err != nil {
			return nil, fmt.Errorf("lookup metadata: %w", err)
		}
		if meta != nil {
			for _, c := range meta.Challenges {
				challenges[c]++
			}
		}
	}

	if metrics.Total > 0 {
		metrics.CompletionRate = int(math.Round(float64(completed) / float64(metrics.Total) * 100))
		metrics.EngagementRate = int(math.Round(float64(engaged) / float64(metrics.Total) * 100))
	}
	metrics.TopChallenges = topChallenges(challenges, topChallengeCount)

	return metrics, nil
}

// ListByCompany returns the campaigns launched for a company.
func (m *Manager) ListByCompany(ctx context.Context, companyID int64) ([]models.Campaign, error) {
	return m.campaigns.ListCampaignsByCompany(ctx, companyID)
}

// Complete closes an active campaign, stamping its end date.
func (m *Manager) Complete(ctx context.Context, campaignID int64) (*models.Campaign, error) {
	campaign, err := m.campaigns.GetCampaignByID(ctx, campaignID)
	if err != nil {
		return nil, fmt.Errorf("lookup campaign: %w", err)
	}
	if campaign == nil {
		return nil, apperr.New(apperr.KindNotFound, "campaign not found")
	}

	if campaign.Status == models.CampaignCompleted {
		return campaign, nil
	}

	ts := time.Now().UTC().UnixMilli()
	campaign.Status = models.CampaignCompleted
	campaign.EndDate = &ts
	if err := m.campaigns.UpdateCampaign(ctx, campaign); err != nil {
		return nil, fmt.Errorf("update campaign: %w", err)
	}

	return campaign, nil
}

// InvitationEmails renders one email per invitation for a launched campaign.
func InvitationEmails(campaign *models.Campaign, invited []models.Invitation) []models.EmailMessage {
	msgs := make([]models.EmailMessage, 0, len(invited))
	for _, inv := range invited {
		subject := fmt.Sprintf("You're invited: %s", campaign.Name)
		if campaign.ToolName != "" {
			subject = fmt.Sprintf("You're invited: %s", campaign.ToolName)
		}

		var b strings.Builder
		if inv.Name != "" {
			fmt.Fprintf(&b, "Hi %s,\n\n", inv.Name)
		} else {
			b.WriteString("Hi,\n\n")
		}
		fmt.Fprintf(&b, "You've been invited to complete the %s assessment.\n\n", campaign.Name)
		if inv.PersonalMessage != "" {
			fmt.Fprintf(&b, "%s\n\n", inv.PersonalMessage)
		}
		fmt.Fprintf(&b, "Start here: %s\n", inv.InviteURL)

		msgs = append(msgs, models.EmailMessage{
			Recipient:  inv.Email,
			Subject:    subject,
			Body:       b.String(),
			InviteCode: inv.InviteCode,
		})
	}

	return msgs
}

func (m *Manager) generateCode(ctx context.Context) (string, error) {
	for range campaignCodeAttempts {
		code, err := invitations.RandomCode(campaignCodeLength)
		if err != nil {
			return "", fmt.Errorf("generate campaign code: %w", err)
		}

		existing, err := m.campaigns.GetCampaignByCode(ctx, code)
		if err != nil {
			return "", fmt.Errorf("check campaign code: %w", err)
		}
		if existing == nil {
			return code, nil
		}
	}

	return "", fmt.Errorf("failed to generate a unique campaign code after %d attempts", campaignCodeAttempts)
}

func topChallenges(freq map[string]int, n int) []ChallengeTag {
	tags := make([]ChallengeTag, 0, len(freq))
	for tag, count := range freq {
		tags = append(tags, ChallengeTag{Tag: tag, Count: count})
	}
	sort.Slice(tags, func(i, j int) bool {
		if tags[i].Count != tags[j].Count {
			return tags[i].Count > tags[j].Count
		}
		return tags[i].Tag < tags[j].Tag
	})
	if len(tags) > n {
		tags = tags[:n]
	}
	return tags
}
