package api_test

import (
	"net/http"
	"testing"

	"github.com/ascenthq/ascent/pkg/models"
)

type launchEnvelope struct {
	Campaign    models.Campaign     `json:"campaign"`
	Invitations []models.Invitation `json:"invitations"`
	EmailsSent  int                 `json:"emails_sent"`
}

func TestLaunchCampaignSendsEmails(t *testing.T) {
	e := newEnv(t)
	token := e.signup(t, "Admin", "admin@acme.com")

	var out launchEnvelope
	status := e.do(t, http.MethodPost, "/v1/campaigns", token, map[string]any{
		"name":         "Q3 Leadership Review",
		"company_name": "Acme",
		"tool_id":      "disc",
		"tool_name":    "DISC",
		"participants": []string{"alice@acme.com", "bob@acme.com"},
	}, &out)
	if status != http.StatusCreated {
		t.Fatalf("launch: %d", status)
	}
	if len(out.Campaign.CampaignCode) != 10 {
		t.Fatalf("unexpected campaign code %q", out.Campaign.CampaignCode)
	}
	if len(out.Invitations) != 2 {
		t.Fatalf("expected 2 invitations, got %d", len(out.Invitations))
	}
	if out.EmailsSent != 2 || e.sender.deliveredCount() != 2 {
		t.Fatalf("expected 2 deliveries, got %d reported %d delivered", out.EmailsSent, e.sender.deliveredCount())
	}

	// delivered invitations are marked sent
	var inv models.Invitation
	status = e.do(t, http.MethodGet, "/v1/invitations/"+out.Invitations[0].InviteCode, token, nil, &inv)
	if status != http.StatusOK || inv.Status != models.StatusSent {
		t.Fatalf("invitation not marked sent: status %d %+v", status, inv)
	}
}

func TestLaunchCampaignPartialDeliveryFailure(t *testing.T) {
	e := newEnv(t)
	token := e.signup(t, "Admin", "admin@acme.com")
	e.sender.failFor["bob@acme.com"] = true

	var out launchEnvelope
	status := e.do(t, http.MethodPost, "/v1/campaigns", token, map[string]any{
		"name":         "Q3 Review",
		"company_name": "Acme",
		"participants": []string{"alice@acme.com", "bob@acme.com"},
	}, &out)
	if status != http.StatusCreated {
		t.Fatalf("a delivery failure must not fail the launch: %d", status)
	}
	if out.EmailsSent != 1 {
		t.Fatalf("expected 1 email sent, got %d", out.EmailsSent)
	}
	if len(out.Invitations) != 2 {
		t.Fatalf("both invitations must exist regardless of delivery")
	}
}

func TestDraftCampaignSendsNothing(t *testing.T) {
	e := newEnv(t)
	token := e.signup(t, "Admin", "admin@acme.com")

	var out launchEnvelope
	status := e.do(t, http.MethodPost, "/v1/campaigns/draft", token, map[string]any{
		"name":         "Draft Review",
		"company_name": "Acme",
		"participants": []string{"alice@acme.com"},
	}, &out)
	if status != http.StatusCreated {
		t.Fatalf("draft: %d", status)
	}
	if out.EmailsSent != 0 || e.sender.deliveredCount() != 0 {
		t.Fatalf("draft must not send email")
	}
	if len(out.Invitations) != 1 {
		t.Fatalf("draft must still create invitations")
	}
}

func TestSecureLaunchEnforcesCompanyMembership(t *testing.T) {
	e := newEnv(t)
	token := e.signup(t, "Admin", "admin@acme.com")

	// a company the admin's domain does not belong to
	var other models.Company
	status := e.do(t, http.MethodPost, "/v1/organizations", token, map[string]any{
		"name":    "Globex",
		"domains": []string{"globex.com"},
	}, &other)
	if status != http.StatusCreated {
		t.Fatalf("create company: %d", status)
	}

	status = e.do(t, http.MethodPost, "/v1/campaigns/secure", token, map[string]any{
		"name":         "Cross Company",
		"company_id":   other.ID,
		"participants": []string{"eve@globex.com"},
	}, nil)
	if status != http.StatusForbidden {
		t.Fatalf("expected 403 for foreign company, got %d", status)
	}

	// the admin's own company works
	var own models.Company
	e.do(t, http.MethodPost, "/v1/organizations", token, map[string]any{
		"name":    "Acme",
		"domains": []string{"acme.com"},
	}, &own)

	status = e.do(t, http.MethodPost, "/v1/campaigns/secure", token, map[string]any{
		"name":         "Own Company",
		"company_id":   own.ID,
		"participants": []string{"alice@acme.com"},
	}, nil)
	if status != http.StatusCreated {
		t.Fatalf("expected 201 for own company, got %d", status)
	}
}

func TestCampaignResultsAndComplete(t *testing.T) {
	e := newEnv(t)
	token := e.signup(t, "Admin", "admin@acme.com")

	var launched launchEnvelope
	e.do(t, http.MethodPost, "/v1/campaigns", token, map[string]any{
		"name":         "Metrics Review",
		"company_name": "Acme",
		"tool_id":      "disc",
		"participants": []string{"alice@acme.com", "bob@acme.com"},
	}, &launched)

	// one participant completes
	code := launched.Invitations[0].InviteCode
	status := e.do(t, http.MethodPost, "/v1/assessments/"+code+"/complete", "", map[string]any{
		"tool_id": "disc",
		"scores":  map[string]int{"d": 10},
	}, nil)
	if status != http.StatusOK {
		t.Fatalf("complete submission: %d", status)
	}

	var metrics struct {
		Total          int `json:"total"`
		Completed      int `json:"completed"`
		CompletionRate int `json:"completion_rate"`
	}
	status = e.do(t, http.MethodGet, "/v1/campaigns/1/results", token, nil, &metrics)
	if status != http.StatusOK {
		t.Fatalf("results: %d", status)
	}
	if metrics.Total != 2 || metrics.Completed != 1 || metrics.CompletionRate != 50 {
		t.Fatalf("unexpected metrics: %+v", metrics)
	}

	var campaign models.Campaign
	status = e.do(t, http.MethodPost, "/v1/campaigns/1/complete", token, nil, &campaign)
	if status != http.StatusOK || campaign.Status != models.CampaignCompleted {
		t.Fatalf("complete campaign: status %d %+v", status, campaign)
	}
}

func TestCampaignResultsAggregateChallenges(t *testing.T) {
	e := newEnv(t)
	token := e.signup(t, "Admin", "admin@acme.com")

	var launched launchEnvelope
	e.do(t, http.MethodPost, "/v1/campaigns/draft", token, map[string]any{
		"name":         "Challenge Survey",
		"company_name": "Acme",
		"tool_id":      "disc",
		"participants": []string{"alice@acme.com", "bob@acme.com"},
	}, &launched)

	challenges := [][]string{
		{"communication", "trust"},
		{"communication"},
	}
	for i, inv := range launched.Invitations {
		status := e.do(t, http.MethodPost, "/v1/assessments/"+inv.InviteCode+"/complete", "", map[string]any{
			"tool_id":    "disc",
			"scores":     map[string]int{"d": 1},
			"challenges": challenges[i],
		}, nil)
		if status != http.StatusOK {
			t.Fatalf("complete %d: %d", i, status)
		}
	}

	var metrics struct {
		Total         int `json:"total"`
		TopChallenges []struct {
			Tag   string `json:"tag"`
			Count int    `json:"count"`
		} `json:"top_challenges"`
	}
	status := e.do(t, http.MethodGet, "/v1/campaigns/1/results", token, nil, &metrics)
	if status != http.StatusOK {
		t.Fatalf("results: %d", status)
	}
	if metrics.Total != 2 {
		t.Fatalf("unexpected total: %d", metrics.Total)
	}
	if len(metrics.TopChallenges) != 2 {
		t.Fatalf("submitted challenges must be aggregated: %+v", metrics.TopChallenges)
	}
	if metrics.TopChallenges[0].Tag != "communication" || metrics.TopChallenges[0].Count != 2 {
		t.Fatalf("most frequent challenge must rank first: %+v", metrics.TopChallenges)
	}
}

func TestCampaignResultsUnknownID(t *testing.T) {
	e := newEnv(t)
	token := e.signup(t, "Admin", "admin@acme.com")

	if status := e.do(t, http.MethodGet, "/v1/campaigns/999/results", token, nil, nil); status != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", status)
	}
}

func TestListCampaignsByCompany(t *testing.T) {
	e := newEnv(t)
	token := e.signup(t, "Admin", "admin@acme.com")

	for _, name := range []string{"First Wave", "Second Wave"} {
		status := e.do(t, http.MethodPost, "/v1/campaigns/draft", token, map[string]any{
			"name":         name,
			"company_name": "Acme",
			"participants": []string{"alice@acme.com"},
		}, nil)
		if status != http.StatusCreated {
			t.Fatalf("draft %q: %d", name, status)
		}
	}

	var list struct {
		Items []models.Campaign `json:"items"`
	}
	status := e.do(t, http.MethodGet, "/v1/campaigns?company_id=1", token, nil, &list)
	if status != http.StatusOK || len(list.Items) != 2 {
		t.Fatalf("list: status %d items %d", status, len(list.Items))
	}

	if status := e.do(t, http.MethodGet, "/v1/campaigns", token, nil, nil); status != http.StatusBadRequest {
		t.Fatalf("expected 400 without company_id, got %d", status)
	}
}

func TestLaunchCampaignValidation(t *testing.T) {
	e := newEnv(t)
	token := e.signup(t, "Admin", "admin@acme.com")

	status := e.do(t, http.MethodPost, "/v1/campaigns", token, map[string]any{
		"name":         "",
		"participants": []string{},
	}, nil)
	if status != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", status)
	}
}
