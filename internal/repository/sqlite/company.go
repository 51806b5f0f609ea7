package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/ascenthq/ascent/pkg/models"
)

func (r *SQLiteRepo) CreateCompany(ctx context.Context, c *models.Company) (int64, error) {
	if c == nil {
		return 0, fmt.Errorf("company is nil")
	}

	ts := now()
	res, err := r.conn.Exec(ctx, `INSERT INTO companies (name, domains, logo, provider_org_id, created, updated) VALUES (?, ?, ?, ?, ?, ?)`,
		c.Name, marshalStrings(c.Domains), nullable(c.Logo), nullable(c.ProviderOrgID), ts, ts)
	if err != nil {
		return 0, err
	}

	return res.LastInsertId()
}

func (r *SQLiteRepo) GetCompanyByID(ctx context.Context, id int64) (*models.Company, error) {
	return r.scanCompany(ctx, `SELECT id, name, domains, logo, provider_org_id, created, updated FROM companies WHERE id = ?`, id)
}

func (r *SQLiteRepo) GetCompanyByName(ctx context.Context, name string) (*models.Company, error) {
	return r.scanCompany(ctx, `SELECT id, name, domains, logo, provider_org_id, created, updated FROM companies WHERE name = ?`, name)
}

// GetCompanyByDomain matches companies whose domains JSON array contains the
// given domain string exactly.
func (r *SQLiteRepo) GetCompanyByDomain(ctx context.Context, domain string) (*models.Company, error) {
	q := `SELECT c.id, c.name, c.domains, c.logo, c.provider_org_id, c.created, c.updated
		FROM companies c, json_each(c.domains) d
		WHERE d.value = ? LIMIT 1`
	return r.scanCompany(ctx, q, domain)
}

func (r *SQLiteRepo) GetCompanyByProviderOrgID(ctx context.Context, orgID string) (*models.Company, error) {
	return r.scanCompany(ctx, `SELECT id, name, domains, logo, provider_org_id, created, updated FROM companies WHERE provider_org_id = ?`, orgID)
}

func (r *SQLiteRepo) UpdateCompany(ctx context.Context, c *models.Company) error {
	if c == nil {
		return fmt.Errorf("company is nil")
	}

	_, err := r.conn.Exec(ctx, `UPDATE companies SET name = ?, domains = ?, logo = ?, provider_org_id = ?, updated = ? WHERE id = ?`,
		c.Name, marshalStrings(c.Domains), nullable(c.Logo), nullable(c.ProviderOrgID), now(), c.ID)
	return err
}

func (r *SQLiteRepo) ListCompanies(ctx context.Context, limit, offset int) ([]models.Company, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	rows, err := r.conn.QueryRows(ctx, `SELECT id, name, domains, logo, provider_org_id, created, updated FROM companies ORDER BY name LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Company
	for rows.Next() {
		c, err := scanCompanyRow(rows)
		if err != nil {
			return nil, err
		}

		out = append(out, *c)
	}

	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (r *SQLiteRepo) scanCompany(ctx context.Context, query string, args ...any) (*models.Company, error) {
	row := r.conn.QueryRow(ctx, query, args...)
	c, err := scanCompanyRow(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}

		return nil, err
	}

	return c, nil
}

func scanCompanyRow(s rowScanner) (*models.Company, error) {
	var c models.Company
	var domains string
	var logo, orgID sql.NullString
	if err := s.Scan(&c.ID, &c.Name, &domains, &logo, &orgID, &c.Created, &c.Updated); err != nil {
		return nil, err
	}

	c.Domains = unmarshalStrings(domains)
	if logo.Valid {
		c.Logo = logo.String
	}
	if orgID.Valid {
		c.ProviderOrgID = orgID.String
	}

	return &c, nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
