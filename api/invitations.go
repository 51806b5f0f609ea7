package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/ascenthq/ascent/internal/directory"
	"github.com/ascenthq/ascent/internal/invitations"
	"github.com/ascenthq/ascent/internal/mailer"
	"github.com/ascenthq/ascent/pkg/apperr"
	"github.com/ascenthq/ascent/pkg/models"
	"github.com/gorilla/mux"
)

type InvitationsHandler struct {
	store     *invitations.Store
	directory *directory.Directory
	outbox    *mailer.Outbox
}

func NewInvitationsHandler(store *invitations.Store, dir *directory.Directory, outbox *mailer.Outbox) *InvitationsHandler {
	return &InvitationsHandler{store: store, directory: dir, outbox: outbox}
}

type postInvitationRequest struct {
	Email           string `json:"email"`
	Name            string `json:"name,omitempty"`
	CompanyID       int64  `json:"company_id,omitempty"`
	CompanyName     string `json:"company_name,omitempty"`
	PersonalMessage string `json:"personal_message,omitempty"`
	Upsert          *bool  `json:"upsert,omitempty"`
}

type invitationResponse struct {
	Invitation *models.Invitation `json:"invitation"`
	EmailSent  bool               `json:"emailSent"`
}

// CreateInvitation invites a single email. The company is resolved from the
// email domain when no company_id is given. The invitation is created even
// when the notification email cannot be enqueued; emailSent reports which.
func (h *InvitationsHandler) CreateInvitation(w http.ResponseWriter, r *http.Request) {
	var req postInvitationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, apperr.New(apperr.KindValidation, "invalid request body"))
		return
	}

	ctx := r.Context()

	companyID := req.CompanyID
	if companyID == 0 {
		company, err := h.directory.ResolveCompanyForEmail(ctx, req.Email, req.CompanyName)
		if err != nil {
			respondError(w, err)
			return
		}
		companyID = company.ID
	}

	in := invitations.CreateInput{
		Email:           req.Email,
		Name:            req.Name,
		CompanyID:       companyID,
		PersonalMessage: req.PersonalMessage,
	}

	var inv *models.Invitation
	var err error
	if req.Upsert != nil && !*req.Upsert {
		inv, err = h.store.Create(ctx, in)
	} else {
		inv, err = h.store.CreateOrUpdate(ctx, in)
	}
	if err != nil {
		respondError(w, err)
		return
	}

	emailSent := h.enqueueInviteEmail(ctx, inv)
	writeJSON(w, invitationResponse{Invitation: inv, EmailSent: emailSent}, http.StatusCreated)
}

func (h *InvitationsHandler) ListInvitations(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	companyStr := q.Get("company_id")
	if companyStr == "" {
		respondError(w, apperr.Validation("missing query parameter", map[string]string{"company_id": "company_id is required"}))
		return
	}
	companyID, err := strconv.ParseInt(companyStr, 10, 64)
	if err != nil || companyID <= 0 {
		respondError(w, apperr.Validation("invalid query parameter", map[string]string{"company_id": "must be a positive integer"}))
		return
	}

	// pagination: limit and offset params
	limit := 50
	if l := q.Get("limit"); l != "" {
		if v, err := strconv.Atoi(l); err == nil && v > 0 && v <= 500 {
			limit = v
		}
	}
	offset := 0
	if o := q.Get("offset"); o != "" {
		if v, err := strconv.Atoi(o); err == nil && v >= 0 {
			offset = v
		}
	}

	invs, err := h.store.ListByCompany(r.Context(), companyID, limit, offset)
	if err != nil {
		respondError(w, err)
		return
	}
	if invs == nil {
		invs = []models.Invitation{}
	}

	writeJSON(w, map[string]any{"limit": limit, "offset": offset, "items": invs}, http.StatusOK)
}

func (h *InvitationsHandler) GetInvitation(w http.ResponseWriter, r *http.Request) {
	code := mux.Vars(r)["code"]
	inv, err := h.store.Get(r.Context(), code)
	if err != nil {
		respondError(w, err)
		return
	}

	writeJSON(w, inv, http.StatusOK)
}

// ResendInvitation re-enqueues the invitation email. A completed invitation
// keeps its status.
func (h *InvitationsHandler) ResendInvitation(w http.ResponseWriter, r *http.Request) {
	code := mux.Vars(r)["code"]
	inv, err := h.store.Get(r.Context(), code)
	if err != nil {
		respondError(w, err)
		return
	}

	emailSent := h.enqueueInviteEmail(r.Context(), inv)
	writeJSON(w, invitationResponse{Invitation: inv, EmailSent: emailSent}, http.StatusOK)
}

// StartHandler serves invitation deep links (<base>/start?invite=<code>),
// marking the invitation opened.
func (h *InvitationsHandler) StartHandler(w http.ResponseWriter, r *http.Request) {
	code := r.URL.Query().Get("invite")
	if code == "" {
		respondError(w, apperr.Validation("missing query parameter", map[string]string{"invite": "invite code is required"}))
		return
	}

	inv, err := h.store.Track(r.Context(), code, invitations.EventOpened)
	if err != nil {
		respondError(w, err)
		return
	}

	writeJSON(w, inv, http.StatusOK)
}

type trackRequest struct {
	Event string `json:"event"`
}

// TrackHandler applies opened/started events reported by the assessment UI.
func (h *InvitationsHandler) TrackHandler(w http.ResponseWriter, r *http.Request) {
	code := mux.Vars(r)["code"]

	var req trackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, apperr.New(apperr.KindValidation, "invalid request body"))
		return
	}

	inv, err := h.store.Track(r.Context(), code, invitations.TrackEvent(req.Event))
	if err != nil {
		respondError(w, err)
		return
	}

	writeJSON(w, inv, http.StatusOK)
}

// CompleteHandler records an assessment submission. Idempotent per
// (invitation, tool).
func (h *InvitationsHandler) CompleteHandler(w http.ResponseWriter, r *http.Request) {
	code := mux.Vars(r)["code"]

	var sub invitations.Submission
	if err := json.NewDecoder(r.Body).Decode(&sub); err != nil {
		respondError(w, apperr.New(apperr.KindValidation, "invalid request body"))
		return
	}

	result, err := h.store.Complete(r.Context(), code, sub)
	if err != nil {
		respondError(w, err)
		return
	}

	writeJSON(w, map[string]any{"share_id": result.ShareID, "completed_at": result.CompletedAt}, http.StatusOK)
}

func (h *InvitationsHandler) enqueueInviteEmail(ctx context.Context, inv *models.Invitation) bool {
	if h.outbox == nil {
		return false
	}

	msg := models.EmailMessage{
		Recipient:  inv.Email,
		Subject:    "You're invited to complete an assessment",
		Body:       inviteEmailBody(inv),
		InviteCode: inv.InviteCode,
	}
	if _, err := h.outbox.Enqueue(ctx, "email.send", msg); err != nil {
		logger.Warn("failed to enqueue invitation email", "recipient", inv.Email, "err", err)
		return false
	}

	return true
}

func inviteEmailBody(inv *models.Invitation) string {
	greeting := "Hi,"
	if inv.Name != "" {
		greeting = fmt.Sprintf("Hi %s,", inv.Name)
	}
	body := greeting + "\n\nYou've been invited to complete an assessment.\n\n"
	if inv.PersonalMessage != "" {
		body += inv.PersonalMessage + "\n\n"
	}
	return body + "Start here: " + inv.InviteURL + "\n"
}
