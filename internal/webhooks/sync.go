// Package webhooks reconciles identity-provider events with the company
// directory and provider-side organization membership. Signature
// verification happens upstream; every event is acknowledged regardless of
// internal failures so the provider never enters a retry storm.
package webhooks

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"log/slog"

	"github.com/ascenthq/ascent/internal/directory"
	"github.com/ascenthq/ascent/pkg/idp"
	"github.com/ascenthq/ascent/pkg/models"
	"github.com/ascenthq/ascent/pkg/repository"
	"github.com/qri-io/jsonschema"
)

type Synchronizer struct {
	companies repository.CompanyRepo
	profiles  repository.ProfileRepo
	provider  idp.Provider
	schema    *jsonschema.Schema
	logger    *slog.Logger
}

func NewSynchronizer(companies repository.CompanyRepo, profiles repository.ProfileRepo, provider idp.Provider, logger *slog.Logger) (*Synchronizer, error) {
	if logger == nil {
		logger = slog.Default()
	}
	rs, err := compileEnvelopeSchema()
	if err != nil {
		return nil, err
	}
	return &Synchronizer{
		companies: companies,
		profiles:  profiles,
		provider:  provider,
		schema:    rs,
		logger:    logger,
	}, nil
}

// Process handles one webhook delivery. The returned error is for internal
// logging only; callers must acknowledge the delivery either way.
func (s *Synchronizer) Process(ctx context.Context, raw []byte) error {
	env, err := parseEnvelope(ctx, s.schema, raw)
	if err != nil {
		return err
	}

	switch env.Type {
	case EventOrganizationCreated, EventOrganizationUpdated:
		return s.upsertOrganization(ctx, env.Data)
	case EventOrganizationDeleted:
		return s.organizationDeleted(env.Data)
	case EventUserCreated, EventUserUpdated, EventSessionCreated:
		return s.reconcileUser(ctx, env.Data)
	default:
		return fmt.Errorf("unhandled event type %q", env.Type)
	}
}

// upsertOrganization keys companies on the provider org id and syncs the
// name.
func (s *Synchronizer) upsertOrganization(ctx context.Context, data json.RawMessage) error {
	var payload OrganizationPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return fmt.Errorf("decode organization payload: %w", err)
	}
	if payload.ID == "" {
		return fmt.Errorf("organization payload missing id")
	}

	company, err := s.companies.GetCompanyByProviderOrgID(ctx, payload.ID)
	if err != nil {
		return fmt.Errorf("lookup company by provider org: %w", err)
	}
	if company == nil && payload.Name != "" {
		company, err = s.companies.GetCompanyByName(ctx, payload.Name)
		if err != nil {
			return fmt.Errorf("lookup company by name: %w", err)
		}
	}

	if company == nil {
		c := &models.Company{Name: payload.Name, ProviderOrgID: payload.ID, Logo: payload.LogoURL}
		if c.Name == "" {
			c.Name = payload.ID
		}
		if _, err := s.companies.CreateCompany(ctx, c); err != nil {
			return fmt.Errorf("create company from org event: %w", err)
		}
		s.logger.Info("company created from org event", "provider_org_id", payload.ID, "name", c.Name)
		return nil
	}

	company.ProviderOrgID = payload.ID
	if payload.Name != "" {
		company.Name = payload.Name
	}
	if payload.LogoURL != "" {
		company.Logo = payload.LogoURL
	}
	if err := s.companies.UpdateCompany(ctx, company); err != nil {
		return fmt.Errorf("update company from org event: %w", err)
	}

	return nil
}

// organizationDeleted is logged only; company rows are retained for
// historical reporting.
func (s *Synchronizer) organizationDeleted(data json.RawMessage) error {
	var payload OrganizationPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return fmt.Errorf("decode organization payload: %w", err)
	}
	s.logger.Info("organization deleted at provider, retaining company", "provider_org_id", payload.ID)
	return nil
}

// reconcileUser upserts the user profile and, when the email's domain maps
// to a company with a provider organization, ensures the user is a member
// there exactly once.
func (s *Synchronizer) reconcileUser(ctx context.Context, data json.RawMessage) error {
	var payload UserPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return fmt.Errorf("decode user payload: %w", err)
	}

	userID := payload.ProviderUserID()
	email := strings.ToLower(strings.TrimSpace(payload.Email))
	if userID == "" || email == "" {
		return fmt.Errorf("user payload missing id or email")
	}

	domain, err := directory.DomainOf(email)
	if err != nil {
		return err
	}

	company, err := s.companies.GetCompanyByDomain(ctx, domain)
	if err != nil {
		return fmt.Errorf("lookup company by domain: %w", err)
	}

	if err := s.upsertProfile(ctx, userID, email, payload, company); err != nil {
		return err
	}

	if company == nil || company.ProviderOrgID == "" {
		return nil
	}

	if err := s.ensureMembership(ctx, company, userID); err != nil {
		// provider failures degrade gracefully; the profile is already synced
		s.logger.Error("membership reconciliation failed", "user", userID, "org", company.ProviderOrgID, "err", err)
	}

	return nil
}

func (s *Synchronizer) upsertProfile(ctx context.Context, userID, email string, payload UserPayload, company *models.Company) error {
	profile, err := s.profiles.GetProfileByProviderID(ctx, userID)
	if err != nil {
		return fmt.Errorf("lookup profile: %w", err)
	}
	if profile == nil {
		profile, err = s.profiles.GetProfileByEmail(ctx, email)
		if err != nil {
			return fmt.Errorf("lookup profile by email: %w", err)
		}
	}

	var companyID *int64
	if company != nil {
		companyID = &company.ID
	}

	if profile == nil {
		p := &models.UserProfile{
			ProviderUserID: userID,
			Email:          email,
			FirstName:      payload.FirstName,
			LastName:       payload.LastName,
			CompanyID:      companyID,
			Role:           "member",
		}
		if _, err := s.profiles.CreateProfile(ctx, p); err != nil {
			return fmt.Errorf("create profile: %w", err)
		}
		return nil
	}

	profile.Email = email
	if payload.FirstName != "" {
		profile.FirstName = payload.FirstName
	}
	if payload.LastName != "" {
		profile.LastName = payload.LastName
	}
	if profile.CompanyID == nil {
		profile.CompanyID = companyID
	}
	if err := s.profiles.UpdateProfile(ctx, profile); err != nil {
		return fmt.Errorf("update profile: %w", err)
	}

	return nil
}

func (s *Synchronizer) ensureMembership(ctx context.Context, company *models.Company, userID string) error {
	members, err := s.provider.GetOrganizationMembers(ctx, company.ProviderOrgID)
	if err != nil {
		return fmt.Errorf("list members: %w", err)
	}
	for _, m := range members {
		if m.UserID == userID {
			return nil
		}
	}

	if err := s.provider.AddOrganizationMember(ctx, company.ProviderOrgID, userID, "member"); err != nil {
		return fmt.Errorf("add member: %w", err)
	}

	metadata := map[string]any{
		"company_id":   company.ID,
		"company_name": company.Name,
	}
	if err := s.provider.UpdateUserMetadata(ctx, userID, metadata); err != nil {
		return fmt.Errorf("update user metadata: %w", err)
	}

	s.logger.Info("user added to organization", "user", userID, "org", company.ProviderOrgID)
	return nil
}
