package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/ascenthq/ascent/pkg/models"
)

func (r *SQLiteRepo) CreateAdmin(ctx context.Context, a *models.Admin) (int64, error) {
	if a == nil {
		return 0, fmt.Errorf("admin is nil")
	}

	res, err := r.conn.Exec(ctx, `INSERT INTO admins (name, email, password_hash, updated) VALUES (?, ?, ?, ?)`,
		a.Name, strings.ToLower(a.Email), a.PasswordHash, now())
	if err != nil {
		return 0, err
	}

	return res.LastInsertId()
}

func (r *SQLiteRepo) GetAdminByID(ctx context.Context, id int64) (*models.Admin, error) {
	return r.scanAdmin(ctx, `SELECT id, name, email, password_hash, updated FROM admins WHERE id = ?`, id)
}

func (r *SQLiteRepo) GetAdminByEmail(ctx context.Context, email string) (*models.Admin, error) {
	return r.scanAdmin(ctx, `SELECT id, name, email, password_hash, updated FROM admins WHERE email = ?`, strings.ToLower(email))
}

func (r *SQLiteRepo) DeleteAdmin(ctx context.Context, id int64) error {
	_, err := r.conn.Exec(ctx, `DELETE FROM admins WHERE id = ?`, id)
	return err
}

func (r *SQLiteRepo) scanAdmin(ctx context.Context, query string, args ...any) (*models.Admin, error) {
	row := r.conn.QueryRow(ctx, query, args...)
	var a models.Admin
	var pw sql.NullString
	if err := row.Scan(&a.ID, &a.Name, &a.Email, &pw, &a.Updated); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}

		return nil, err
	}

	if pw.Valid {
		a.PasswordHash = pw.String
	}

	return &a, nil
}
