package api_test

import (
	"net/http"
	"testing"

	"github.com/ascenthq/ascent/pkg/models"
)

func TestCreateOrganizationIdempotent(t *testing.T) {
	e := newEnv(t)
	token := e.signup(t, "Admin", "admin@acme.com")

	var first models.Company
	status := e.do(t, http.MethodPost, "/v1/organizations", token, map[string]any{
		"name":    "Acme Inc",
		"domains": []string{"Acme.com"},
	}, &first)
	if status != http.StatusCreated {
		t.Fatalf("create: %d", status)
	}
	if len(first.Domains) != 1 || first.Domains[0] != "acme.com" {
		t.Fatalf("domains must be lowercased: %v", first.Domains)
	}

	var second models.Company
	status = e.do(t, http.MethodPost, "/v1/organizations", token, map[string]any{
		"name":    "Acme Inc",
		"domains": []string{"acme.com"},
	}, &second)
	if status != http.StatusCreated {
		t.Fatalf("recreate: %d", status)
	}
	if second.ID != first.ID {
		t.Fatalf("same name must resolve to the same company: %d vs %d", second.ID, first.ID)
	}
}

func TestCreateOrganizationExtraDomains(t *testing.T) {
	e := newEnv(t)
	token := e.signup(t, "Admin", "admin@acme.com")

	var company models.Company
	status := e.do(t, http.MethodPost, "/v1/organizations", token, map[string]any{
		"name":    "Acme",
		"domains": []string{"acme.com", "acme.io", "ACME.com"},
		"logo":    "https://cdn/acme.png",
	}, &company)
	if status != http.StatusCreated {
		t.Fatalf("create: %d", status)
	}
	if len(company.Domains) != 2 {
		t.Fatalf("duplicate domains must be dropped: %v", company.Domains)
	}
	if company.Logo != "https://cdn/acme.png" {
		t.Fatalf("logo not stored: %+v", company)
	}
}

func TestCreateOrganizationRequiresName(t *testing.T) {
	e := newEnv(t)
	token := e.signup(t, "Admin", "admin@acme.com")

	status := e.do(t, http.MethodPost, "/v1/organizations", token, map[string]any{
		"name": "   ",
	}, nil)
	if status != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", status)
	}
}

func TestListOrganizationsByDomain(t *testing.T) {
	e := newEnv(t)
	token := e.signup(t, "Admin", "admin@acme.com")

	e.do(t, http.MethodPost, "/v1/organizations", token, map[string]any{
		"name": "Acme", "domains": []string{"acme.com"},
	}, nil)
	e.do(t, http.MethodPost, "/v1/organizations", token, map[string]any{
		"name": "Globex", "domains": []string{"globex.com"},
	}, nil)

	var filtered struct {
		Items []models.Company `json:"items"`
	}
	status := e.do(t, http.MethodGet, "/v1/organizations?domain=globex.com", token, nil, &filtered)
	if status != http.StatusOK || len(filtered.Items) != 1 || filtered.Items[0].Name != "Globex" {
		t.Fatalf("domain filter: status %d items %+v", status, filtered.Items)
	}

	// an unknown domain yields an empty list, not an error
	var empty struct {
		Items []models.Company `json:"items"`
	}
	status = e.do(t, http.MethodGet, "/v1/organizations?domain=nowhere.com", token, nil, &empty)
	if status != http.StatusOK || len(empty.Items) != 0 {
		t.Fatalf("unknown domain: status %d items %+v", status, empty.Items)
	}

	var all struct {
		Items []models.Company `json:"items"`
	}
	status = e.do(t, http.MethodGet, "/v1/organizations", token, nil, &all)
	if status != http.StatusOK || len(all.Items) != 2 {
		t.Fatalf("list: status %d items %d", status, len(all.Items))
	}
}

func TestUpdateOrganization(t *testing.T) {
	e := newEnv(t)
	token := e.signup(t, "Admin", "admin@acme.com")

	var company models.Company
	e.do(t, http.MethodPost, "/v1/organizations", token, map[string]any{
		"name": "Acme", "domains": []string{"acme.com"}, "logo": "old.png",
	}, &company)

	var updated models.Company
	status := e.do(t, http.MethodPatch, "/v1/organizations/1", token, map[string]any{
		"name":    "Acme Holdings",
		"domains": []string{"acme.com", "acme.io"},
	}, &updated)
	if status != http.StatusOK {
		t.Fatalf("patch: %d", status)
	}
	if updated.Name != "Acme Holdings" || len(updated.Domains) != 2 {
		t.Fatalf("patch not applied: %+v", updated)
	}
	if updated.Logo != "old.png" {
		t.Fatalf("absent fields must keep their value: %+v", updated)
	}

	var fetched models.Company
	status = e.do(t, http.MethodGet, "/v1/organizations/1", token, nil, &fetched)
	if status != http.StatusOK || fetched.Name != "Acme Holdings" {
		t.Fatalf("get after patch: status %d %+v", status, fetched)
	}
}

func TestGetOrganizationNotFound(t *testing.T) {
	e := newEnv(t)
	token := e.signup(t, "Admin", "admin@acme.com")

	if status := e.do(t, http.MethodGet, "/v1/organizations/99", token, nil, nil); status != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", status)
	}
	if status := e.do(t, http.MethodGet, "/v1/organizations/abc", token, nil, nil); status != http.StatusBadRequest {
		t.Fatalf("expected 400 for a bad id, got %d", status)
	}
}
