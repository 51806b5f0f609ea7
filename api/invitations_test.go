package api_test

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/ascenthq/ascent/pkg/models"
)

type invitationEnvelope struct {
	Invitation models.Invitation `json:"invitation"`
	EmailSent  bool              `json:"emailSent"`
}

func TestInvitationLifecycle(t *testing.T) {
	e := newEnv(t)
	token := e.signup(t, "Admin", "admin@acme.com")

	// create: the company is resolved from the email domain
	var created invitationEnvelope
	status := e.do(t, http.MethodPost, "/v1/invitations", token, map[string]any{
		"email":        "Carol@Acme.com",
		"name":         "Carol",
		"company_name": "Acme Inc",
	}, &created)
	if status != http.StatusCreated {
		t.Fatalf("create invitation: %d", status)
	}
	inv := created.Invitation
	if inv.Email != "carol@acme.com" {
		t.Fatalf("email must be stored lowercase: %q", inv.Email)
	}
	if len(inv.InviteCode) != 12 {
		t.Fatalf("unexpected invite code %q", inv.InviteCode)
	}
	if !created.EmailSent {
		t.Fatalf("expected the invitation email to be enqueued")
	}

	// list by company
	var list struct {
		Items []models.Invitation `json:"items"`
	}
	status = e.do(t, http.MethodGet, "/v1/invitations?company_id=1", token, nil, &list)
	if status != http.StatusOK || len(list.Items) != 1 {
		t.Fatalf("list: status %d items %d", status, len(list.Items))
	}

	// the participant opens the deep link
	var opened models.Invitation
	status = e.do(t, http.MethodGet, "/start?invite="+inv.InviteCode, "", nil, &opened)
	if status != http.StatusOK || opened.Status != models.StatusOpened {
		t.Fatalf("start: status %d invitation %+v", status, opened)
	}

	// the assessment UI reports a start
	var started models.Invitation
	status = e.do(t, http.MethodPost, "/v1/track/"+inv.InviteCode, "", map[string]string{"event": "started"}, &started)
	if status != http.StatusOK || started.Status != models.StatusStarted {
		t.Fatalf("track: status %d invitation %+v", status, started)
	}

	// submission completes the invitation
	var completed struct {
		ShareID     string `json:"share_id"`
		CompletedAt int64  `json:"completed_at"`
	}
	status = e.do(t, http.MethodPost, "/v1/assessments/"+inv.InviteCode+"/complete", "", map[string]any{
		"tool_id":   "disc",
		"tool_name": "DISC",
		"responses": json.RawMessage(`{"q1":"a"}`),
		"scores":    json.RawMessage(`{"d":42}`),
	}, &completed)
	if status != http.StatusOK || completed.ShareID == "" {
		t.Fatalf("complete: status %d share %q", status, completed.ShareID)
	}

	// shared result by share id, no auth
	var result models.AssessmentResult
	status = e.do(t, http.MethodGet, "/v1/results/"+completed.ShareID, "", nil, &result)
	if status != http.StatusOK || result.ToolID != "disc" {
		t.Fatalf("result: status %d tool %q", status, result.ToolID)
	}

	// unified result carries the participant, not the raw responses
	var unified map[string]any
	status = e.do(t, http.MethodGet, "/v1/results/"+completed.ShareID+"/unified", "", nil, &unified)
	if status != http.StatusOK {
		t.Fatalf("unified result: %d", status)
	}
	participant, ok := unified["participant"].(map[string]any)
	if !ok || participant["email"] != "carol@acme.com" {
		t.Fatalf("unexpected unified payload: %v", unified)
	}
	if _, found := unified["responses"]; found {
		t.Fatalf("unified result must not expose raw responses")
	}
}

func TestCreateInvitationStrictConflict(t *testing.T) {
	e := newEnv(t)
	token := e.signup(t, "Admin", "admin@acme.com")

	body := map[string]any{
		"email":        "carol@acme.com",
		"company_name": "Acme",
		"upsert":       false,
	}
	if status := e.do(t, http.MethodPost, "/v1/invitations", token, body, nil); status != http.StatusCreated {
		t.Fatalf("first create: %d", status)
	}

	var errOut struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	status := e.do(t, http.MethodPost, "/v1/invitations", token, body, &errOut)
	if status != http.StatusConflict {
		t.Fatalf("expected 409, got %d", status)
	}
	if errOut.Error.Code != "CONFLICT" {
		t.Fatalf("unexpected error code %q", errOut.Error.Code)
	}
}

func TestCreateInvitationUpsertByDefault(t *testing.T) {
	e := newEnv(t)
	token := e.signup(t, "Admin", "admin@acme.com")

	var first invitationEnvelope
	e.do(t, http.MethodPost, "/v1/invitations", token, map[string]any{
		"email":        "carol@acme.com",
		"company_name": "Acme",
	}, &first)

	var second invitationEnvelope
	status := e.do(t, http.MethodPost, "/v1/invitations", token, map[string]any{
		"email":        "carol@acme.com",
		"name":         "Carol Updated",
		"company_name": "Acme",
	}, &second)
	if status != http.StatusCreated {
		t.Fatalf("upsert: %d", status)
	}
	if second.Invitation.InviteCode != first.Invitation.InviteCode {
		t.Fatalf("upsert must keep the invite code")
	}
	if second.Invitation.Name != "Carol Updated" {
		t.Fatalf("upsert must refresh the name: %+v", second.Invitation)
	}
}

func TestResendInvitation(t *testing.T) {
	e := newEnv(t)
	token := e.signup(t, "Admin", "admin@acme.com")

	var created invitationEnvelope
	e.do(t, http.MethodPost, "/v1/invitations", token, map[string]any{
		"email":        "carol@acme.com",
		"company_name": "Acme",
	}, &created)

	var resent invitationEnvelope
	status := e.do(t, http.MethodPost, "/v1/invitations/"+created.Invitation.InviteCode+"/resend", token, nil, &resent)
	if status != http.StatusOK || !resent.EmailSent {
		t.Fatalf("resend: status %d sent %v", status, resent.EmailSent)
	}
}

func TestGetInvitationUnknownCode(t *testing.T) {
	e := newEnv(t)
	token := e.signup(t, "Admin", "admin@acme.com")

	status := e.do(t, http.MethodGet, "/v1/invitations/nosuchcode00", token, nil, nil)
	if status != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", status)
	}
}

func TestListInvitationsRequiresCompany(t *testing.T) {
	e := newEnv(t)
	token := e.signup(t, "Admin", "admin@acme.com")

	if status := e.do(t, http.MethodGet, "/v1/invitations", token, nil, nil); status != http.StatusBadRequest {
		t.Fatalf("expected 400 without company_id, got %d", status)
	}
}

func TestDeleteUserRemovesInvitations(t *testing.T) {
	e := newEnv(t)
	token := e.signup(t, "Admin", "admin@acme.com")

	var created invitationEnvelope
	e.do(t, http.MethodPost, "/v1/invitations", token, map[string]any{
		"email":        "carol@acme.com",
		"company_name": "Acme",
	}, &created)

	var out struct {
		Email   string `json:"email"`
		Deleted int64  `json:"deleted"`
	}
	status := e.do(t, http.MethodDelete, "/v1/users/Carol@acme.com", token, nil, &out)
	if status != http.StatusOK {
		t.Fatalf("delete user: %d", status)
	}
	if out.Email != "carol@acme.com" || out.Deleted != 1 {
		t.Fatalf("unexpected delete payload: %+v", out)
	}

	status = e.do(t, http.MethodGet, "/v1/invitations/"+created.Invitation.InviteCode, token, nil, nil)
	if status != http.StatusNotFound {
		t.Fatalf("invitation must be gone, got %d", status)
	}
}
