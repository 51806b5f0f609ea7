package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/ascenthq/ascent/internal/directory"
	"github.com/ascenthq/ascent/pkg/apperr"
	"github.com/ascenthq/ascent/pkg/models"
	"github.com/ascenthq/ascent/pkg/repository"
	"github.com/gorilla/mux"
)

type OrganizationsHandler struct {
	companies repository.CompanyRepo
	directory *directory.Directory
}

func NewOrganizationsHandler(companies repository.CompanyRepo, dir *directory.Directory) *OrganizationsHandler {
	return &OrganizationsHandler{companies: companies, directory: dir}
}

type postOrganizationRequest struct {
	Name    string   `json:"name"`
	Domains []string `json:"domains,omitempty"`
	Logo    string   `json:"logo,omitempty"`
}

// CreateOrganization registers a company. With a single domain this is an
// idempotent find-or-create; an existing company with the same name is
// returned, not duplicated.
func (h *OrganizationsHandler) CreateOrganization(w http.ResponseWriter, r *http.Request) {
	var req postOrganizationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, apperr.New(apperr.KindValidation, "invalid request body"))
		return
	}

	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		respondError(w, apperr.Validation("invalid organization", map[string]string{"name": "name is required"}))
		return
	}

	ctx := r.Context()

	domain := ""
	if len(req.Domains) > 0 {
		domain = strings.ToLower(strings.TrimSpace(req.Domains[0]))
	}

	company, err := h.directory.FindOrCreateCompany(ctx, req.Name, domain)
	if err != nil {
		respondError(w, err)
		return
	}

	changed := false
	if len(req.Domains) > 1 {
		for _, d := range req.Domains[1:] {
			d = strings.ToLower(strings.TrimSpace(d))
			if d != "" && !containsString(company.Domains, d) {
				company.Domains = append(company.Domains, d)
				changed = true
			}
		}
	}
	if req.Logo != "" && company.Logo == "" {
		company.Logo = req.Logo
		changed = true
	}
	if changed {
		if err := h.companies.UpdateCompany(ctx, company); err != nil {
			respondError(w, err)
			return
		}
	}

	writeJSON(w, company, http.StatusCreated)
}

// ListOrganizations lists companies, optionally filtered by an exact domain
// via ?domain=.
func (h *OrganizationsHandler) ListOrganizations(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	if domain := strings.ToLower(strings.TrimSpace(q.Get("domain"))); domain != "" {
		company, err := h.companies.GetCompanyByDomain(r.Context(), domain)
		if err != nil {
			respondError(w, err)
			return
		}
		items := []models.Company{}
		if company != nil {
			items = append(items, *company)
		}
		writeJSON(w, map[string]any{"items": items}, http.StatusOK)
		return
	}

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

	items, err := h.companies.ListCompanies(r.Context(), limit, offset)
	if err != nil {
		respondError(w, err)
		return
	}
	if items == nil {
		items = []models.Company{}
	}

	writeJSON(w, map[string]any{"limit": limit, "offset": offset, "items": items}, http.StatusOK)
}

func (h *OrganizationsHandler) GetOrganization(w http.ResponseWriter, r *http.Request) {
	id, ok := h.organizationID(w, r)
	if !ok {
		return
	}

	company, err := h.companies.GetCompanyByID(r.Context(), id)
	if err != nil {
		respondError(w, err)
		return
	}
	if company == nil {
		respondError(w, apperr.New(apperr.KindNotFound, "organization not found"))
		return
	}

	writeJSON(w, company, http.StatusOK)
}

type patchOrganizationRequest struct {
	Name    *string   `json:"name,omitempty"`
	Domains *[]string `json:"domains,omitempty"`
	Logo    *string   `json:"logo,omitempty"`
}

// UpdateOrganization applies a partial update; absent fields keep their
// current value.
func (h *OrganizationsHandler) UpdateOrganization(w http.ResponseWriter, r *http.Request) {
	id, ok := h.organizationID(w, r)
	if !ok {
		return
	}

	var req patchOrganizationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, apperr.New(apperr.KindValidation, "invalid request body"))
		return
	}

	ctx := r.Context()

	company, err := h.companies.GetCompanyByID(ctx, id)
	if err != nil {
		respondError(w, err)
		return
	}
	if company == nil {
		respondError(w, apperr.New(apperr.KindNotFound, "organization not found"))
		return
	}

	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			respondError(w, apperr.Validation("invalid organization", map[string]string{"name": "name cannot be empty"}))
			return
		}
		company.Name = name
	}
	if req.Domains != nil {
		domains := make([]string, 0, len(*req.Domains))
		for _, d := range *req.Domains {
			d = strings.ToLower(strings.TrimSpace(d))
			if d != "" && !containsString(domains, d) {
				domains = append(domains, d)
			}
		}
		company.Domains = domains
	}
	if req.Logo != nil {
		company.Logo = *req.Logo
	}

	if err := h.companies.UpdateCompany(ctx, company); err != nil {
		respondError(w, err)
		return
	}

	writeJSON(w, company, http.StatusOK)
}

func (h *OrganizationsHandler) organizationID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil || id <= 0 {
		respondError(w, apperr.Validation("invalid organization id", map[string]string{"id": "must be a positive integer"}))
		return 0, false
	}
	return id, true
}

func containsString(xs []string, s string) bool {
	for _, x := range xs {
		if x == s {
			return true
		}
	}
	return false
}
