package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/ascenthq/ascent/internal/campaigns"
	"github.com/ascenthq/ascent/internal/config"
	"github.com/ascenthq/ascent/internal/directory"
	"github.com/ascenthq/ascent/internal/invitations"
	"github.com/ascenthq/ascent/internal/mailer"
	"github.com/ascenthq/ascent/pkg/apperr"
	"github.com/ascenthq/ascent/pkg/models"
	"github.com/ascenthq/ascent/pkg/repository"
	"github.com/gorilla/mux"
)

type CampaignsHandler struct {
	manager    *campaigns.Manager
	dispatcher *mailer.Dispatcher
	outbox     *mailer.Outbox
	store      *invitations.Store
	admins     repository.AdminRepo
	companies  repository.CompanyRepo
	mailerCfg  config.MailerConfig
}

func NewCampaignsHandler(manager *campaigns.Manager, dispatcher *mailer.Dispatcher, outbox *mailer.Outbox, store *invitations.Store, admins repository.AdminRepo, companies repository.CompanyRepo, mailerCfg config.MailerConfig) *CampaignsHandler {
	return &CampaignsHandler{
		manager:    manager,
		dispatcher: dispatcher,
		outbox:     outbox,
		store:      store,
		admins:     admins,
		companies:  companies,
		mailerCfg:  mailerCfg,
	}
}

type launchResponse struct {
	Campaign    any                 `json:"campaign"`
	Invitations any                 `json:"invitations"`
	EmailsSent  int                 `json:"emails_sent"`
	Results     []mailer.SendResult `json:"results,omitempty"`
}

// LaunchCampaign creates the campaign plus invitations and sends the
// invitation emails synchronously before responding.
func (h *CampaignsHandler) LaunchCampaign(w http.ResponseWriter, r *http.Request) {
	spec, ok := h.decodeSpec(w, r)
	if !ok {
		return
	}

	launched, err := h.manager.Launch(r.Context(), spec)
	if err != nil {
		respondError(w, err)
		return
	}

	sent, results := h.sendInvitations(r, launched)
	writeJSON(w, launchResponse{
		Campaign:    launched.Campaign,
		Invitations: launched.Invitations,
		EmailsSent:  sent,
		Results:     results,
	}, http.StatusCreated)
}

// DraftCampaign creates the campaign and its invitations without sending
// any email.
func (h *CampaignsHandler) DraftCampaign(w http.ResponseWriter, r *http.Request) {
	spec, ok := h.decodeSpec(w, r)
	if !ok {
		return
	}

	launched, err := h.manager.Launch(r.Context(), spec)
	if err != nil {
		respondError(w, err)
		return
	}

	writeJSON(w, launchResponse{
		Campaign:    launched.Campaign,
		Invitations: launched.Invitations,
	}, http.StatusCreated)
}

// SecureLaunchCampaign is LaunchCampaign with the caller verified against
// the target company: the admin must exist and, when a company is named,
// the admin's email domain must belong to it.
func (h *CampaignsHandler) SecureLaunchCampaign(w http.ResponseWriter, r *http.Request) {
	spec, ok := h.decodeSpec(w, r)
	if !ok {
		return
	}

	ctx := r.Context()

	admin, err := h.admins.GetAdminByID(ctx, adminID(r))
	if err != nil {
		respondError(w, err)
		return
	}
	if admin == nil {
		respondError(w, apperr.New(apperr.KindForbidden, "caller is not a registered admin"))
		return
	}

	if spec.CompanyID > 0 {
		company, err := h.companies.GetCompanyByID(ctx, spec.CompanyID)
		if err != nil {
			respondError(w, err)
			return
		}
		if company == nil {
			respondError(w, apperr.New(apperr.KindNotFound, "company not found"))
			return
		}

		domain, err := directory.DomainOf(admin.Email)
		if err != nil {
			respondError(w, err)
			return
		}
		member := false
		for _, d := range company.Domains {
			if d == domain {
				member = true
				break
			}
		}
		if !member {
			respondError(w, apperr.New(apperr.KindForbidden, "caller does not belong to the target company"))
			return
		}
	}

	launched, err := h.manager.Launch(ctx, spec)
	if err != nil {
		respondError(w, err)
		return
	}

	sent, results := h.sendInvitations(r, launched)
	writeJSON(w, launchResponse{
		Campaign:    launched.Campaign,
		Invitations: launched.Invitations,
		EmailsSent:  sent,
		Results:     results,
	}, http.StatusCreated)
}

// ListCampaigns lists a company's campaigns.
func (h *CampaignsHandler) ListCampaigns(w http.ResponseWriter, r *http.Request) {
	companyStr := r.URL.Query().Get("company_id")
	if companyStr == "" {
		respondError(w, apperr.Validation("missing query parameter", map[string]string{"company_id": "company_id is required"}))
		return
	}
	companyID, err := strconv.ParseInt(companyStr, 10, 64)
	if err != nil || companyID <= 0 {
		respondError(w, apperr.Validation("invalid query parameter", map[string]string{"company_id": "must be a positive integer"}))
		return
	}

	items, err := h.manager.ListByCompany(r.Context(), companyID)
	if err != nil {
		respondError(w, err)
		return
	}
	if items == nil {
		items = []models.Campaign{}
	}

	writeJSON(w, map[string]any{"items": items}, http.StatusOK)
}

func (h *CampaignsHandler) CampaignResults(w http.ResponseWriter, r *http.Request) {
	id, ok := h.campaignID(w, r)
	if !ok {
		return
	}

	metrics, err := h.manager.Results(r.Context(), id)
	if err != nil {
		respondError(w, err)
		return
	}

	writeJSON(w, metrics, http.StatusOK)
}

func (h *CampaignsHandler) CompleteCampaign(w http.ResponseWriter, r *http.Request) {
	id, ok := h.campaignID(w, r)
	if !ok {
		return
	}

	campaign, err := h.manager.Complete(r.Context(), id)
	if err != nil {
		respondError(w, err)
		return
	}

	writeJSON(w, campaign, http.StatusOK)
}

func (h *CampaignsHandler) decodeSpec(w http.ResponseWriter, r *http.Request) (campaigns.LaunchSpec, bool) {
	var spec campaigns.LaunchSpec
	if err := json.NewDecoder(r.Body).Decode(&spec); err != nil {
		respondError(w, apperr.New(apperr.KindValidation, "invalid request body"))
		return spec, false
	}
	spec.Identity = adminEmail(r)
	return spec, true
}

func (h *CampaignsHandler) campaignID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil || id <= 0 {
		respondError(w, apperr.Validation("invalid campaign id", map[string]string{"id": "must be a positive integer"}))
		return 0, false
	}
	return id, true
}

// sendInvitations delivers the invitation emails for a launch and marks the
// successfully delivered invitations sent. Delivery failures degrade the
// response, never the launch.
func (h *CampaignsHandler) sendInvitations(r *http.Request, launched *campaigns.LaunchResult) (int, []mailer.SendResult) {
	msgs := campaigns.InvitationEmails(launched.Campaign, launched.Invitations)
	if len(msgs) == 0 || h.dispatcher == nil {
		return 0, nil
	}

	results := h.dispatcher.SendBatch(r.Context(), msgs, mailer.BatchOptions{
		MaxConcurrent:       h.mailerCfg.MaxConcurrent,
		DelayBetweenBatches: h.mailerCfg.DelayBetweenBatches,
		RetryFailures:       h.mailerCfg.MaxRetries > 0,
		MaxRetries:          h.mailerCfg.MaxRetries,
	})

	sent := 0
	for i, res := range results {
		if !res.Success {
			continue
		}
		sent++
		if _, err := h.store.MarkSent(r.Context(), msgs[i].InviteCode); err != nil {
			logger.Warn("failed to mark invitation sent", "invite_code", msgs[i].InviteCode, "err", err)
		}
	}

	return sent, results
}
