package models

import "encoding/json"

// Domain models matching the database schema in db/migrations/0001_init.sql

// InvitationStatus is the lifecycle state of an invitation.
type InvitationStatus string

const (
	StatusPending   InvitationStatus = "PENDING"
	StatusSent      InvitationStatus = "SENT"
	StatusOpened    InvitationStatus = "OPENED"
	StatusStarted   InvitationStatus = "STARTED"
	StatusCompleted InvitationStatus = "COMPLETED"
)

// CampaignStatus is the lifecycle state of a campaign.
type CampaignStatus string

const (
	CampaignActive    CampaignStatus = "ACTIVE"
	CampaignCompleted CampaignStatus = "COMPLETED"
)

// Company is a tenant boundary identified by one or more email domains.
type Company struct {
	ID            int64    `json:"id" db:"id"`
	Name          string   `json:"name" db:"name" validate:"required"`
	Domains       []string `json:"domains" db:"domains"`
	Logo          string   `json:"logo,omitempty" db:"logo"`
	ProviderOrgID string   `json:"provider_org_id,omitempty" db:"provider_org_id"`
	Created       int64    `json:"created" db:"created"`
	Updated       int64    `json:"updated" db:"updated"`
}

// Invitation grants one email address access to complete an assessment for
// one company. Status moves forward only; see internal/invitations.
type Invitation struct {
	ID              int64            `json:"id" db:"id"`
	Email           string           `json:"email" db:"email" validate:"required,email"`
	Name            string           `json:"name,omitempty" db:"name"`
	InviteCode      string           `json:"invite_code" db:"invite_code"`
	InviteURL       string           `json:"invite_url" db:"invite_url"`
	CompanyID       int64            `json:"company_id" db:"company_id"`
	CampaignID      *int64           `json:"campaign_id,omitempty" db:"campaign_id"`
	Status          InvitationStatus `json:"status" db:"status"`
	PersonalMessage string           `json:"personal_message,omitempty" db:"personal_message"`
	SentAt          *int64           `json:"sent_at,omitempty" db:"sent_at"`
	OpenedAt        *int64           `json:"opened_at,omitempty" db:"opened_at"`
	StartedAt       *int64           `json:"started_at,omitempty" db:"started_at"`
	CompletedAt     *int64           `json:"completed_at,omitempty" db:"completed_at"`
	Created         int64            `json:"created" db:"created"`
}

// InvitationMetadata is 1:1 with an invitation.
type InvitationMetadata struct {
	ID            int64    `json:"id" db:"id"`
	InvitationID  int64    `json:"invitation_id" db:"invitation_id"`
	Role          string   `json:"role,omitempty" db:"role"`
	Department    string   `json:"department,omitempty" db:"department"`
	ToolsAccessed []string `json:"tools_accessed,omitempty" db:"tools_accessed"`
	Challenges    []string `json:"challenges,omitempty" db:"challenges"`
}

// Campaign is a named batch of invitations sharing a tool, deadline and
// shareable link. Participants is a denormalized snapshot of the emails
// invited at launch time; the authoritative link is invitations.campaign_id.
type Campaign struct {
	ID           int64          `json:"id" db:"id"`
	Name         string         `json:"name" db:"name" validate:"required"`
	Description  string         `json:"description,omitempty" db:"description"`
	CompanyID    int64          `json:"company_id" db:"company_id"`
	Status       CampaignStatus `json:"status" db:"status"`
	StartDate    int64          `json:"start_date" db:"start_date"`
	EndDate      *int64         `json:"end_date,omitempty" db:"end_date"`
	ToolID       string         `json:"tool_id,omitempty" db:"tool_id"`
	ToolName     string         `json:"tool_name,omitempty" db:"tool_name"`
	ToolPath     string         `json:"tool_path,omitempty" db:"tool_path"`
	Participants []string       `json:"participants" db:"participants"`
	CampaignCode string         `json:"campaign_code" db:"campaign_code"`
	CampaignLink string         `json:"campaign_link" db:"campaign_link"`
	Created      int64          `json:"created" db:"created"`
}

// AssessmentResult stores one submission per (invitation, tool).
type AssessmentResult struct {
	ID              int64           `json:"id" db:"id"`
	InvitationID    int64           `json:"invitation_id" db:"invitation_id"`
	ToolID          string          `json:"tool_id" db:"tool_id"`
	ToolName        string          `json:"tool_name" db:"tool_name"`
	ShareID         string          `json:"share_id" db:"share_id"`
	CompletedAt     int64           `json:"completed_at" db:"completed_at"`
	Responses       json.RawMessage `json:"responses" db:"responses"`
	Scores          json.RawMessage `json:"scores" db:"scores"`
	Summary         string          `json:"summary,omitempty" db:"summary"`
	Insights        []string        `json:"insights,omitempty" db:"insights"`
	Recommendations []string        `json:"recommendations,omitempty" db:"recommendations"`
	Created         int64           `json:"created" db:"created"`
}

// UserProfile bridges the identity provider's user identity to the
// application's company/role model.
type UserProfile struct {
	ID                 int64  `json:"id" db:"id"`
	ProviderUserID     string `json:"provider_user_id" db:"provider_user_id"`
	Email              string `json:"email" db:"email" validate:"required,email"`
	FirstName          string `json:"first_name,omitempty" db:"first_name"`
	LastName           string `json:"last_name,omitempty" db:"last_name"`
	CompanyID          *int64 `json:"company_id,omitempty" db:"company_id"`
	Role               string `json:"role" db:"role"`
	OnboardingComplete bool   `json:"onboarding_complete" db:"onboarding_complete"`
	Created            int64  `json:"created" db:"created"`
	Updated            int64  `json:"updated" db:"updated"`
}

// Admin is an API operator account authenticated with email + password.
type Admin struct {
	ID           int64  `json:"id" db:"id"`
	Name         string `json:"name" db:"name" validate:"required"`
	Email        string `json:"email" db:"email" validate:"required,email"`
	Updated      int64  `json:"updated" db:"updated"`
	PasswordHash string `json:"password_hash,omitempty" db:"password_hash"`
}

// EmailMessage is a single templated email to one recipient.
type EmailMessage struct {
	Recipient  string `json:"recipient"`
	Subject    string `json:"subject"`
	Body       string `json:"body"`
	InviteCode string `json:"invite_code,omitempty"`
}
