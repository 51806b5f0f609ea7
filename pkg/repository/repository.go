package repository

import (
	"context"

	"github.com/ascenthq/ascent/pkg/models"
)

// Repository interfaces for domain entities. These are the public contracts
// consumers should depend on; concrete implementations live under internal/.
//
// Lookup methods return (nil, nil) when no row matches.

type CompanyRepo interface {
	CreateCompany(ctx context.Context, c *models.Company) (int64, error)
	GetCompanyByID(ctx context.Context, id int64) (*models.Company, error)
	GetCompanyByName(ctx context.Context, name string) (*models.Company, error)
	GetCompanyByDomain(ctx context.Context, domain string) (*models.Company, error)
	GetCompanyByProviderOrgID(ctx context.Context, orgID string) (*models.Company, error)
	UpdateCompany(ctx context.Context, c *models.Company) error
	ListCompanies(ctx context.Context, limit, offset int) ([]models.Company, error)
}

type InvitationRepo interface {
	CreateInvitation(ctx context.Context, inv *models.Invitation) (int64, error)
	GetInvitationByID(ctx context.Context, id int64) (*models.Invitation, error)
	GetInvitationByCode(ctx context.Context, code string) (*models.Invitation, error)
	GetInvitationByEmailAndCompany(ctx context.Context, email string, companyID int64) (*models.Invitation, error)
	UpdateInvitation(ctx context.Context, inv *models.Invitation) error
	ListInvitationsByCompany(ctx context.Context, companyID int64, limit, offset int) ([]models.Invitation, error)
	ListInvitationsByCampaign(ctx context.Context, campaignID int64) ([]models.Invitation, error)
	DeleteInvitationsByEmail(ctx context.Context, email string) (int64, error)
}

type MetadataRepo interface {
	UpsertMetadata(ctx context.Context, m *models.InvitationMetadata) (int64, error)
	GetMetadataByInvitation(ctx context.Context, invitationID int64) (*models.InvitationMetadata, error)
}

type CampaignRepo interface {
	CreateCampaign(ctx context.Context, c *models.Campaign) (int64, error)
	GetCampaignByID(ctx context.Context, id int64) (*models.Campaign, error)
	GetCampaignByCode(ctx context.Context, code string) (*models.Campaign, error)
	UpdateCampaign(ctx context.Context, c *models.Campaign) error
	ListCampaignsByCompany(ctx context.Context, companyID int64) ([]models.Campaign, error)
}

type AssessmentRepo interface {
	CreateResult(ctx context.Context, r *models.AssessmentResult) (int64, error)
	GetResultByID(ctx context.Context, id int64) (*models.AssessmentResult, error)
	GetResultByInvitationAndTool(ctx context.Context, invitationID int64, toolID string) (*models.AssessmentResult, error)
	GetResultByShareID(ctx context.Context, shareID string) (*models.AssessmentResult, error)
	UpdateResultInsights(ctx context.Context, id int64, summary string, insights, recommendations []string) error
}

type ProfileRepo interface {
	CreateProfile(ctx context.Context, p *models.UserProfile) (int64, error)
	GetProfileByProviderID(ctx context.Context, providerUserID string) (*models.UserProfile, error)
	GetProfileByEmail(ctx context.Context, email string) (*models.UserProfile, error)
	UpdateProfile(ctx context.Context, p *models.UserProfile) error
}

type AdminRepo interface {
	CreateAdmin(ctx context.Context, a *models.Admin) (int64, error)
	GetAdminByID(ctx context.Context, id int64) (*models.Admin, error)
	GetAdminByEmail(ctx context.Context, email string) (*models.Admin, error)
	DeleteAdmin(ctx context.Context, id int64) error
}

// TxRunner runs fn inside a single database transaction. Repository calls
// made with the ctx passed to fn join that transaction.
type TxRunner interface {
	InTx(ctx context.Context, fn func(ctx context.Context) error) error
}
