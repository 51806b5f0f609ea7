// Package mock provides in-memory repository implementations for tests.
package mock

import (
	"context"
	"strings"

	"github.com/ascenthq/ascent/pkg/models"
)

// Mocks bundles one in-memory repository per interface, sharing nothing.
type Mocks struct {
	Companies   *companyRepo
	Invitations *invitationRepo
	Metadata    *metadataRepo
	Campaigns   *campaignRepo
	Assessments *assessmentRepo
	Profiles    *profileRepo
	Admins      *adminRepo
	Tx          *txRunner
}

func NewMocks() *Mocks {
	return &Mocks{
		Companies:   &companyRepo{},
		Invitations: &invitationRepo{},
		Metadata:    &metadataRepo{},
		Campaigns:   &campaignRepo{},
		Assessments: &assessmentRepo{},
		Profiles:    &profileRepo{},
		Admins:      &adminRepo{},
		Tx:          &txRunner{},
	}
}

type txRunner struct {
	Calls int
	Err   error
}

func (t *txRunner) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	t.Calls++
	if t.Err != nil {
		return t.Err
	}
	return fn(ctx)
}

type companyRepo struct {
	Items     []models.Company
	nextID    int64
	CreateErr error
}

func (m *companyRepo) CreateCompany(ctx context.Context, c *models.Company) (int64, error) {
	if m.CreateErr != nil {
		return 0, m.CreateErr
	}
	m.nextID++
	c.ID = m.nextID
	m.Items = append(m.Items, *c)
	return c.ID, nil
}

func (m *companyRepo) GetCompanyByID(ctx context.Context, id int64) (*models.Company, error) {
	for i := range m.Items {
		if m.Items[i].ID == id {
			c := m.Items[i]
			return &c, nil
		}
	}
	return nil, nil
}

func (m *companyRepo) GetCompanyByName(ctx context.Context, name string) (*models.Company, error) {
	for i := range m.Items {
		if m.Items[i].Name == name {
			c := m.Items[i]
			return &c, nil
		}
	}
	return nil, nil
}

func (m *companyRepo) GetCompanyByDomain(ctx context.Context, domain string) (*models.Company, error) {
	for i := range m.Items {
		for _, d := range m.Items[i].Domains {
			if d == domain {
				c := m.Items[i]
				return &c, nil
			}
		}
	}
	return nil, nil
}

func (m *companyRepo) GetCompanyByProviderOrgID(ctx context.Context, orgID string) (*models.Company, error) {
	for i := range m.Items {
		if m.Items[i].ProviderOrgID == orgID {
			c := m.Items[i]
			return &c, nil
		}
	}
	return nil, nil
}

func (m *companyRepo) UpdateCompany(ctx context.Context, c *models.Company) error {
	for i := range m.Items {
		if m.Items[i].ID == c.ID {
			m.Items[i] = *c
			return nil
		}
	}
	return nil
}

func (m *companyRepo) ListCompanies(ctx context.Context, limit, offset int) ([]models.Company, error) {
	if offset >= len(m.Items) {
		return nil, nil
	}
	end := offset + limit
	if end > len(m.Items) {
		end = len(m.Items)
	}
	out := make([]models.Company, end-offset)
	copy(out, m.Items[offset:end])
	return out, nil
}

type invitationRepo struct {
	Items     []models.Invitation
	nextID    int64
	CreateErr error
	UpdateErr error
}

func (m *invitationRepo) CreateInvitation(ctx context.Context, inv *models.Invitation) (int64, error) {
	if m.CreateErr != nil {
		return 0, m.CreateErr
	}
	m.nextID++
	inv.ID = m.nextID
	m.Items = append(m.Items, *inv)
	return inv.ID, nil
}

func (m *invitationRepo) GetInvitationByID(ctx context.Context, id int64) (*models.Invitation, error) {
	for i := range m.Items {
		if m.Items[i].ID == id {
			inv := m.Items[i]
			return &inv, nil
		}
	}
	return nil, nil
}

func (m *invitationRepo) GetInvitationByCode(ctx context.Context, code string) (*models.Invitation, error) {
	for i := range m.Items {
		if m.Items[i].InviteCode == code {
			inv := m.Items[i]
			return &inv, nil
		}
	}
	return nil, nil
}

func (m *invitationRepo) GetInvitationByEmailAndCompany(ctx context.Context, email string, companyID int64) (*models.Invitation, error) {
	email = strings.ToLower(email)
	for i := range m.Items {
		if m.Items[i].Email == email && m.Items[i].CompanyID == companyID {
			inv := m.Items[i]
			return &inv, nil
		}
	}
	return nil, nil
}

func (m *invitationRepo) UpdateInvitation(ctx context.Context, inv *models.Invitation) error {
	if m.UpdateErr != nil {
		return m.UpdateErr
	}
	for i := range m.Items {
		if m.Items[i].ID == inv.ID {
			m.Items[i] = *inv
			return nil
		}
	}
	return nil
}

func (m *invitationRepo) ListInvitationsByCompany(ctx context.Context, companyID int64, limit, offset int) ([]models.Invitation, error) {
	var all []models.Invitation
	for i := range m.Items {
		if m.Items[i].CompanyID == companyID {
			all = append(all, m.Items[i])
		}
	}
	if offset >= len(all) {
		return nil, nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], nil
}

func (m *invitationRepo) ListInvitationsByCampaign(ctx context.Context, campaignID int64) ([]models.Invitation, error) {
	var out []models.Invitation
	for i := range m.Items {
		if m.Items[i].CampaignID != nil && *m.Items[i].CampaignID == campaignID {
			out = append(out, m.Items[i])
		}
	}
	return out, nil
}

func (m *invitationRepo) DeleteInvitationsByEmail(ctx context.Context, email string) (int64, error) {
	email = strings.ToLower(email)
	var kept []models.Invitation
	var deleted int64
	for i := range m.Items {
		if m.Items[i].Email == email {
			deleted++
			continue
		}
		kept = append(kept, m.Items[i])
	}
	m.Items = kept
	return deleted, nil
}

type metadataRepo struct {
	Items  []models.InvitationMetadata
	nextID int64
}

func (m *metadataRepo) UpsertMetadata(ctx context.Context, md *models.InvitationMetadata) (int64, error) {
	for i := range m.Items {
		if m.Items[i].InvitationID == md.InvitationID {
			md.ID = m.Items[i].ID
			m.Items[i] = *md
			return md.ID, nil
		}
	}
	m.nextID++
	md.ID = m.nextID
	m.Items = append(m.Items, *md)
	return md.ID, nil
}

func (m *metadataRepo) GetMetadataByInvitation(ctx context.Context, invitationID int64) (*models.InvitationMetadata, error) {
	for i := range m.Items {
		if m.Items[i].InvitationID == invitationID {
			md := m.Items[i]
			return &md, nil
		}
	}
	return nil, nil
}

type campaignRepo struct {
	Items     []models.Campaign
	nextID    int64
	CreateErr error
}

func (m *campaignRepo) CreateCampaign(ctx context.Context, c *models.Campaign) (int64, error) {
	if m.CreateErr != nil {
		return 0, m.CreateErr
	}
	m.nextID++
	c.ID = m.nextID
	m.Items = append(m.Items, *c)
	return c.ID, nil
}

func (m *campaignRepo) GetCampaignByID(ctx context.Context, id int64) (*models.Campaign, error) {
	for i := range m.Items {
		if m.Items[i].ID == id {
			c := m.Items[i]
			return &c, nil
		}
	}
	return nil, nil
}

func (m *campaignRepo) GetCampaignByCode(ctx context.Context, code string) (*models.Campaign, error) {
	for i := range m.Items {
		if m.Items[i].CampaignCode == code {
			c := m.Items[i]
			return &c, nil
		}
	}
	return nil, nil
}

func (m *campaignRepo) UpdateCampaign(ctx context.Context, c *models.Campaign) error {
	for i := range m.Items {
		if m.Items[i].ID == c.ID {
			m.Items[i] = *c
			return nil
		}
	}
	return nil
}

func (m *campaignRepo) ListCampaignsByCompany(ctx context.Context, companyID int64) ([]models.Campaign, error) {
	var out []models.Campaign
	for i := range m.Items {
		if m.Items[i].CompanyID == companyID {
			out = append(out, m.Items[i])
		}
	}
	return out, nil
}

type assessmentRepo struct {
	Items  []models.AssessmentResult
	nextID int64
}

func (m *assessmentRepo) CreateResult(ctx context.Context, r *models.AssessmentResult) (int64, error) {
	m.nextID++
	r.ID = m.nextID
	m.Items = append(m.Items, *r)
	return r.ID, nil
}

func (m *assessmentRepo) GetResultByID(ctx context.Context, id int64) (*models.AssessmentResult, error) {
	for i := range m.Items {
		if m.Items[i].ID == id {
			r := m.Items[i]
			return &r, nil
		}
	}
	return nil, nil
}

func (m *assessmentRepo) GetResultByInvitationAndTool(ctx context.Context, invitationID int64, toolID string) (*models.AssessmentResult, error) {
	for i := range m.Items {
		if m.Items[i].InvitationID == invitationID && m.Items[i].ToolID == toolID {
			r := m.Items[i]
			return &r, nil
		}
	}
	return nil, nil
}

func (m *assessmentRepo) GetResultByShareID(ctx context.Context, shareID string) (*models.AssessmentResult, error) {
	for i := range m.Items {
		if m.Items[i].ShareID == shareID {
			r := m.Items[i]
			return &r, nil
		}
	}
	return nil, nil
}

func (m *assessmentRepo) UpdateResultInsights(ctx context.Context, id int64, summary string, insights, recommendations []string) error {
	for i := range m.Items {
		if m.Items[i].ID == id {
			m.Items[i].Summary = summary
			m.Items[i].Insights = insights
			m.Items[i].Recommendations = recommendations
			return nil
		}
	}
	return nil
}

type profileRepo struct {
	Items  []models.UserProfile
	nextID int64
}

func (m *profileRepo) CreateProfile(ctx context.Context, p *models.UserProfile) (int64, error) {
	m.nextID++
	p.ID = m.nextID
	m.Items = append(m.Items, *p)
	return p.ID, nil
}

func (m *profileRepo) GetProfileByProviderID(ctx context.Context, providerUserID string) (*models.UserProfile, error) {
	for i := range m.Items {
		if m.Items[i].ProviderUserID == providerUserID {
			p := m.Items[i]
			return &p, nil
		}
	}
	return nil, nil
}

func (m *profileRepo) GetProfileByEmail(ctx context.Context, email string) (*models.UserProfile, error) {
	email = strings.ToLower(email)
	for i := range m.Items {
		if m.Items[i].Email == email {
			p := m.Items[i]
			return &p, nil
		}
	}
	return nil, nil
}

func (m *profileRepo) UpdateProfile(ctx context.Context, p *models.UserProfile) error {
	for i := range m.Items {
		if m.Items[i].ID == p.ID {
			m.Items[i] = *p
			return nil
		}
	}
	return nil
}

type adminRepo struct {
	Items     []models.Admin
	nextID    int64
	CreateErr error
}

func (m *adminRepo) CreateAdmin(ctx context.Context, a *models.Admin) (int64, error) {
	if m.CreateErr != nil {
		return 0, m.CreateErr
	}
	m.nextID++
	a.ID = m.nextID
	m.Items = append(m.Items, *a)
	return a.ID, nil
}

func (m *adminRepo) GetAdminByID(ctx context.Context, id int64) (*models.Admin, error) {
	for i := range m.Items {
		if m.Items[i].ID == id {
			a := m.Items[i]
			return &a, nil
		}
	}
	return nil, nil
}

func (m *adminRepo) GetAdminByEmail(ctx context.Context, email string) (*models.Admin, error) {
	for i := range m.Items {
		if m.Items[i].Email == email {
			a := m.Items[i]
			return &a, nil
		}
	}
	return nil, nil
}

func (m *adminRepo) DeleteAdmin(ctx context.Context, id int64) error {
	var kept []models.Admin
	for i := range m.Items {
		if m.Items[i].ID != id {
			kept = append(kept, m.Items[i])
		}
	}
	m.Items = kept
	return nil
}
