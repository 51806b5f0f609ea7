// Package directory resolves email addresses to companies by domain match
// and creates companies on demand.
package directory

import (
	"context"
	"fmt"
	"strings"

	"log/slog"

	"github.com/ascenthq/ascent/pkg/apperr"
	"github.com/ascenthq/ascent/pkg/models"
	"github.com/ascenthq/ascent/pkg/repository"
)

type Directory struct {
	companies repository.CompanyRepo
	logger    *slog.Logger
}

func New(companies repository.CompanyRepo, logger *slog.Logger) *Directory {
	if logger == nil {
		logger = slog.Default()
	}
	return &Directory{companies: companies, logger: logger}
}

// DomainOf extracts the lowercase domain of an email address.
func DomainOf(email string) (string, error) {
	at := strings.LastIndex(email, "@")
	if at < 0 || at == len(email)-1 {
		return "", apperr.Newf(apperr.KindValidation, "invalid email address %q", email)
	}
	return strings.ToLower(email[at+1:]), nil
}

// ResolveCompanyForEmail finds the company owning the email's domain,
// creating one named after fallbackName (or the domain itself) when no
// company owns it yet. Repeated calls with emails sharing a domain return
// the same company.
func (d *Directory) ResolveCompanyForEmail(ctx context.Context, email, fallbackName string) (*models.Company, error) {
	domain, err := DomainOf(email)
	if err != nil {
		return nil, err
	}

	company, err := d.companies.GetCompanyByDomain(ctx, domain)
	if err != nil {
		return nil, fmt.Errorf("lookup company by domain: %w", err)
	}
	if company != nil {
		return company, nil
	}

	name := strings.TrimSpace(fallbackName)
	if name == "" {
		name = domain
	}

	return d.createCompany(ctx, name, domain)
}

// FindOrCreateCompany looks a company up by exact name, then by domain, and
// creates it when absent.
func (d *Directory) FindOrCreateCompany(ctx context.Context, name, domain string) (*models.Company, error) {
	name = strings.TrimSpace(name)
	domain = strings.ToLower(strings.TrimSpace(domain))
	if name == "" && domain == "" {
		return nil, apperr.New(apperr.KindValidation, "company name or domain is required")
	}

	if name != "" {
		company, err := d.companies.GetCompanyByName(ctx, name)
		if err != nil {
			return nil, fmt.Errorf("lookup company by name: %w", err)
		}
		if company != nil {
			return company, nil
		}
	}

	if domain != "" {
		company, err := d.companies.GetCompanyByDomain(ctx, domain)
		if err != nil {
			return nil, fmt.Errorf("lookup company by domain: %w", err)
		}
		if company != nil {
			return company, nil
		}
	}

	if name == "" {
		name = domain
	}

	return d.createCompany(ctx, name, domain)
}

func (d *Directory) createCompany(ctx context.Context, name, domain string) (*models.Company, error) {
	var domains []string
	if domain != "" {
		domains = []string{domain}
	}

	company := &models.Company{Name: name, Domains: domains}
	id, err := d.companies.CreateCompany(ctx, company)
	if err != nil {
		// unique name constraint: a concurrent create or an existing company
		// with the same name but a different domain
		if existing, lookupErr := d.companies.GetCompanyByName(ctx, name); lookupErr == nil && existing != nil {
			return existing, nil
		}
		if isUniqueViolation(err) {
			return nil, apperr.Wrap(err, apperr.KindConflict, fmt.Sprintf("company %q already exists", name))
		}
		return nil, fmt.Errorf("create company: %w", err)
	}

	company.ID = id
	d.logger.Info("company created", "name", name, "domain", domain)

	fresh, err := d.companies.GetCompanyByID(ctx, id)
	if err != nil || fresh == nil {
		return company, nil
	}
	return fresh, nil
}

// isUniqueViolation reports whether err is a sqlite UNIQUE constraint
// failure.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
