package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/ascenthq/ascent/pkg/models"
)

const campaignCols = `id, name, description, company_id, status, start_date, end_date, tool_id, tool_name, tool_path, participants, campaign_code, campaign_link, created`

func (r *SQLiteRepo) CreateCampaign(ctx context.Context, c *models.Campaign) (int64, error) {
	if c == nil {
		return 0, fmt.Errorf("campaign is nil")
	}

	if c.Status == "" {
		c.Status = models.CampaignActive
	}
	res, err := r.conn.Exec(ctx, `INSERT INTO campaigns (name, description, company_id, status, start_date, end_date, tool_id, tool_name, tool_path, participants, campaign_code, campaign_link, created) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.Name, nullable(c.Description), c.CompanyID, string(c.Status), c.StartDate, c.EndDate, nullable(c.ToolID), nullable(c.ToolName), nullable(c.ToolPath), marshalStrings(c.Participants), c.CampaignCode, c.CampaignLink, now())
	if err != nil {
		return 0, err
	}

	return res.LastInsertId()
}

func (r *SQLiteRepo) GetCampaignByID(ctx context.Context, id int64) (*models.Campaign, error) {
	return r.scanCampaign(ctx, `SELECT `+campaignCols+` FROM campaigns WHERE id = ?`, id)
}

func (r *SQLiteRepo) GetCampaignByCode(ctx context.Context, code string) (*models.Campaign, error) {
	return r.scanCampaign(ctx, `SELECT `+campaignCols+` FROM campaigns WHERE campaign_code = ?`, code)
}

func (r *SQLiteRepo) UpdateCampaign(ctx context.Context, c *models.Campaign) error {
	if c == nil {
		return fmt.Errorf("campaign is nil")
	}

	_, err := r.conn.Exec(ctx, `UPDATE campaigns SET name = ?, description = ?, status = ?, start_date = ?, end_date = ?, tool_id = ?, tool_name = ?, tool_path = ?, participants = ?, campaign_link = ? WHERE id = ?`,
		c.Name, nullable(c.Description), string(c.Status), c.StartDate, c.EndDate, nullable(c.ToolID), nullable(c.ToolName), nullable(c.ToolPath), marshalStrings(c.Participants), c.CampaignLink, c.ID)
	return err
}

func (r *SQLiteRepo) ListCampaignsByCompany(ctx context.Context, companyID int64) ([]models.Campaign, error) {
	rows, err := r.conn.QueryRows(ctx, `SELECT `+campaignCols+` FROM campaigns WHERE company_id = ? ORDER BY created DESC`, companyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Campaign
	for rows.Next() {
		c, err := scanCampaignRow(rows)
		if err != nil {
			return nil, err
		}

		out = append(out, *c)
	}

	return out, rows.Err()
}

func (r *SQLiteRepo) scanCampaign(ctx context.Context, query string, args ...any) (*models.Campaign, error) {
	row := r.conn.QueryRow(ctx, query, args...)
	c, err := scanCampaignRow(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}

		return nil, err
	}

	return c, nil
}

func scanCampaignRow(s rowScanner) (*models.Campaign, error) {
	var c models.Campaign
	var description, toolID, toolName, toolPath sql.NullString
	var endDate sql.NullInt64
	var status, participants string
	if err := s.Scan(&c.ID, &c.Name, &description, &c.CompanyID, &status, &c.StartDate, &endDate, &toolID, &toolName, &toolPath, &participants, &c.CampaignCode, &c.CampaignLink, &c.Created); err != nil {
		return nil, err
	}

	c.Status = models.CampaignStatus(status)
	c.Participants = unmarshalStrings(participants)
	if description.Valid {
		c.Description = description.String
	}
	if toolID.Valid {
		c.ToolID = toolID.String
	}
	if toolName.Valid {
		c.ToolName = toolName.String
	}
	if toolPath.Valid {
		c.ToolPath = toolPath.String
	}
	if endDate.Valid {
		c.EndDate = &endDate.Int64
	}

	return &c, nil
}
