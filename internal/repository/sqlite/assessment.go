package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/ascenthq/ascent/pkg/models"
)

const resultCols = `id, invitation_id, tool_id, tool_name, share_id, completed_at, responses, scores, summary, insights, recommendations, created`

func (r *SQLiteRepo) CreateResult(ctx context.Context, res *models.AssessmentResult) (int64, error) {
	if res == nil {
		return 0, fmt.Errorf("assessment result is nil")
	}

	responses := string(res.Responses)
	if responses == "" {
		responses = "{}"
	}
	scores := string(res.Scores)
	if scores == "" {
		scores = "{}"
	}
	out, err := r.conn.Exec(ctx, `INSERT INTO assessment_results (invitation_id, tool_id, tool_name, share_id, completed_at, responses, scores, summary, insights, recommendations, created) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		res.InvitationID, res.ToolID, nullable(res.ToolName), res.ShareID, res.CompletedAt, responses, scores, nullable(res.Summary), marshalStrings(res.Insights), marshalStrings(res.Recommendations), now())
	if err != nil {
		return 0, err
	}

	return out.LastInsertId()
}

func (r *SQLiteRepo) GetResultByID(ctx context.Context, id int64) (*models.AssessmentResult, error) {
	return r.scanResult(ctx, `SELECT `+resultCols+` FROM assessment_results WHERE id = ?`, id)
}

func (r *SQLiteRepo) GetResultByInvitationAndTool(ctx context.Context, invitationID int64, toolID string) (*models.AssessmentResult, error) {
	return r.scanResult(ctx, `SELECT `+resultCols+` FROM assessment_results WHERE invitation_id = ? AND tool_id = ?`, invitationID, toolID)
}

func (r *SQLiteRepo) GetResultByShareID(ctx context.Context, shareID string) (*models.AssessmentResult, error) {
	return r.scanResult(ctx, `SELECT `+resultCols+` FROM assessment_results WHERE share_id = ?`, shareID)
}

func (r *SQLiteRepo) UpdateResultInsights(ctx context.Context, id int64, summary string, insights, recommendations []string) error {
	_, err := r.conn.Exec(ctx, `UPDATE assessment_results SET summary = ?, insights = ?, recommendations = ? WHERE id = ?`,
		nullable(summary), marshalStrings(insights), marshalStrings(recommendations), id)
	return err
}

func (r *SQLiteRepo) scanResult(ctx context.Context, query string, args ...any) (*models.AssessmentResult, error) {
	row := r.conn.QueryRow(ctx, query, args...)
	var res models.AssessmentResult
	var toolName, summary sql.NullString
	var responses, scores, insights, recommendations string
	if err := row.Scan(&res.ID, &res.InvitationID, &res.ToolID, &toolName, &res.ShareID, &res.CompletedAt, &responses, &scores, &summary, &insights, &recommendations, &res.Created); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}

		return nil, err
	}

	res.Responses = []byte(responses)
	res.Scores = []byte(scores)
	res.Insights = unmarshalStrings(insights)
	res.Recommendations = unmarshalStrings(recommendations)
	if toolName.Valid {
		res.ToolName = toolName.String
	}
	if summary.Valid {
		res.Summary = summary.String
	}

	return &res, nil
}
