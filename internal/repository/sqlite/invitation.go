package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/ascenthq/ascent/pkg/models"
)

const invitationCols = `id, email, name, invite_code, invite_url, company_id, campaign_id, status, personal_message, sent_at, opened_at, started_at, completed_at, created`

func (r *SQLiteRepo) CreateInvitation(ctx context.Context, inv *models.Invitation) (int64, error) {
	if inv == nil {
		return 0, fmt.Errorf("invitation is nil")
	}

	if inv.Status == "" {
		inv.Status = models.StatusPending
	}
	res, err := r.conn.Exec(ctx, `INSERT INTO invitations (email, name, invite_code, invite_url, company_id, campaign_id, status, personal_message, sent_at, opened_at, started_at, completed_at, created) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		strings.ToLower(inv.Email), nullable(inv.Name), inv.InviteCode, inv.InviteURL, inv.CompanyID, inv.CampaignID, string(inv.Status), nullable(inv.PersonalMessage), inv.SentAt, inv.OpenedAt, inv.StartedAt, inv.CompletedAt, now())
	if err != nil {
		return 0, err
	}

	return res.LastInsertId()
}

func (r *SQLiteRepo) GetInvitationByID(ctx context.Context, id int64) (*models.Invitation, error) {
	return r.scanInvitation(ctx, `SELECT `+invitationCols+` FROM invitations WHERE id = ?`, id)
}

func (r *SQLiteRepo) GetInvitationByCode(ctx context.Context, code string) (*models.Invitation, error) {
	return r.scanInvitation(ctx, `SELECT `+invitationCols+` FROM invitations WHERE invite_code = ?`, code)
}

func (r *SQLiteRepo) GetInvitationByEmailAndCompany(ctx context.Context, email string, companyID int64) (*models.Invitation, error) {
	return r.scanInvitation(ctx, `SELECT `+invitationCols+` FROM invitations WHERE email = ? AND company_id = ?`, strings.ToLower(email), companyID)
}

func (r *SQLiteRepo) UpdateInvitation(ctx context.Context, inv *models.Invitation) error {
	if inv == nil {
		return fmt.Errorf("invitation is nil")
	}

	_, err := r.conn.Exec(ctx, `UPDATE invitations SET email = ?, name = ?, invite_code = ?, invite_url = ?, company_id = ?, campaign_id = ?, status = ?, personal_message = ?, sent_at = ?, opened_at = ?, started_at = ?, completed_at = ? WHERE id = ?`,
		strings.ToLower(inv.Email), nullable(inv.Name), inv.InviteCode, inv.InviteURL, inv.CompanyID, inv.CampaignID, string(inv.Status), nullable(inv.PersonalMessage), inv.SentAt, inv.OpenedAt, inv.StartedAt, inv.CompletedAt, inv.ID)
	return err
}

func (r *SQLiteRepo) ListInvitationsByCompany(ctx context.Context, companyID int64, limit, offset int) ([]models.Invitation, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	rows, err := r.conn.QueryRows(ctx, `SELECT `+invitationCols+` FROM invitations WHERE company_id = ? ORDER BY created DESC LIMIT ? OFFSET ?`, companyID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectInvitations(rows)
}

func (r *SQLiteRepo) ListInvitationsByCampaign(ctx context.Context, campaignID int64) ([]models.Invitation, error) {
	rows, err := r.conn.QueryRows(ctx, `SELECT `+invitationCols+` FROM invitations WHERE campaign_id = ? ORDER BY created`, campaignID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectInvitations(rows)
}

// DeleteInvitationsByEmail removes every invitation for an email address,
// cascading to metadata and assessment results. Used by user deletion.
func (r *SQLiteRepo) DeleteInvitationsByEmail(ctx context.Context, email string) (int64, error) {
	res, err := r.conn.Exec(ctx, `DELETE FROM invitations WHERE email = ?`, strings.ToLower(email))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *SQLiteRepo) scanInvitation(ctx context.Context, query string, args ...any) (*models.Invitation, error) {
	row := r.conn.QueryRow(ctx, query, args...)
	inv, err := scanInvitationRow(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}

		return nil, err
	}

	return inv, nil
}

func collectInvitations(rows *sql.Rows) ([]models.Invitation, error) {
	var out []models.Invitation
	for rows.Next() {
		inv, err := scanInvitationRow(rows)
		if err != nil {
			return nil, err
		}

		out = append(out, *inv)
	}

	return out, rows.Err()
}

func scanInvitationRow(s rowScanner) (*models.Invitation, error) {
	var inv models.Invitation
	var name, message sql.NullString
	var campaignID, sentAt, openedAt, startedAt, completedAt sql.NullInt64
	var status string
	if err := s.Scan(&inv.ID, &inv.Email, &name, &inv.InviteCode, &inv.InviteURL, &inv.CompanyID, &campaignID, &status, &message, &sentAt, &openedAt, &startedAt, &completedAt, &inv.Created); err != nil {
		return nil, err
	}

	inv.Status = models.InvitationStatus(status)
	if name.Valid {
		inv.Name = name.String
	}
	if message.Valid {
		inv.PersonalMessage = message.String
	}
	if campaignID.Valid {
		inv.CampaignID = &campaignID.Int64
	}
	if sentAt.Valid {
		inv.SentAt = &sentAt.Int64
	}
	if openedAt.Valid {
		inv.OpenedAt = &openedAt.Int64
	}
	if startedAt.Valid {
		inv.StartedAt = &startedAt.Int64
	}
	if completedAt.Valid {
		inv.CompletedAt = &completedAt.Int64
	}

	return &inv, nil
}
