package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/ascenthq/ascent/pkg/models"
)

const profileCols = `id, provider_user_id, email, first_name, last_name, company_id, role, onboarding_complete, created, updated`

func (r *SQLiteRepo) CreateProfile(ctx context.Context, p *models.UserProfile) (int64, error) {
	if p == nil {
		return 0, fmt.Errorf("profile is nil")
	}

	if p.Role == "" {
		p.Role = "member"
	}
	ts := now()
	res, err := r.conn.Exec(ctx, `INSERT INTO user_profiles (provider_user_id, email, first_name, last_name, company_id, role, onboarding_complete, created, updated) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ProviderUserID, strings.ToLower(p.Email), nullable(p.FirstName), nullable(p.LastName), p.CompanyID, p.Role, boolInt(p.OnboardingComplete), ts, ts)
	if err != nil {
		return 0, err
	}

	return res.LastInsertId()
}

func (r *SQLiteRepo) GetProfileByProviderID(ctx context.Context, providerUserID string) (*models.UserProfile, error) {
	return r.scanProfile(ctx, `SELECT `+profileCols+` FROM user_profiles WHERE provider_user_id = ?`, providerUserID)
}

func (r *SQLiteRepo) GetProfileByEmail(ctx context.Context, email string) (*models.UserProfile, error) {
	return r.scanProfile(ctx, `SELECT `+profileCols+` FROM user_profiles WHERE email = ?`, strings.ToLower(email))
}

func (r *SQLiteRepo) UpdateProfile(ctx context.Context, p *models.UserProfile) error {
	if p == nil {
		return fmt.Errorf("profile is nil")
	}

	_, err := r.conn.Exec(ctx, `UPDATE user_profiles SET email = ?, first_name = ?, last_name = ?, company_id = ?, role = ?, onboarding_complete = ?, updated = ? WHERE id = ?`,
		strings.ToLower(p.Email), nullable(p.FirstName), nullable(p.LastName), p.CompanyID, p.Role, boolInt(p.OnboardingComplete), now(), p.ID)
	return err
}

func (r *SQLiteRepo) scanProfile(ctx context.Context, query string, args ...any) (*models.UserProfile, error) {
	row := r.conn.QueryRow(ctx, query, args...)
	var p models.UserProfile
	var firstName, lastName sql.NullString
	var companyID sql.NullInt64
	var onboarding int
	if err := row.Scan(&p.ID, &p.ProviderUserID, &p.Email, &firstName, &lastName, &companyID, &p.Role, &onboarding, &p.Created, &p.Updated); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}

		return nil, err
	}

	p.OnboardingComplete = onboarding != 0
	if firstName.Valid {
		p.FirstName = firstName.String
	}
	if lastName.Valid {
		p.LastName = lastName.String
	}
	if companyID.Valid {
		p.CompanyID = &companyID.Int64
	}

	return &p, nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
