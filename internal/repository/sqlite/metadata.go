package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/ascenthq/ascent/pkg/models"
)

// UpsertMetadata inserts or replaces the metadata row for an invitation.
func (r *SQLiteRepo) UpsertMetadata(ctx context.Context, m *models.InvitationMetadata) (int64, error) {
	if m == nil {
		return 0, fmt.Errorf("metadata is nil")
	}

	res, err := r.conn.Exec(ctx, `INSERT INTO invitation_metadata (invitation_id, role, department, tools_accessed, challenges) VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(invitation_id) DO UPDATE SET role = excluded.role, department = excluded.department, tools_accessed = excluded.tools_accessed, challenges = excluded.challenges`,
		m.InvitationID, nullable(m.Role), nullable(m.Department), marshalStrings(m.ToolsAccessed), marshalStrings(m.Challenges))
	if err != nil {
		return 0, err
	}

	return res.LastInsertId()
}

func (r *SQLiteRepo) GetMetadataByInvitation(ctx context.Context, invitationID int64) (*models.InvitationMetadata, error) {
	row := r.conn.QueryRow(ctx, `SELECT id, invitation_id, role, department, tools_accessed, challenges FROM invitation_metadata WHERE invitation_id = ?`, invitationID)
	var m models.InvitationMetadata
	var role, department sql.NullString
	var tools, challenges string
	if err := row.Scan(&m.ID, &m.InvitationID, &role, &department, &tools, &challenges); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}

		return nil, err
	}

	m.ToolsAccessed = unmarshalStrings(tools)
	m.Challenges = unmarshalStrings(challenges)
	if role.Valid {
		m.Role = role.String
	}
	if department.Valid {
		m.Department = department.String
	}

	return &m, nil
}
