package sqlite

import (
	"context"
	"encoding/json"
	"time"

	"log/slog"

	"github.com/ascenthq/ascent/internal/db"
	"github.com/ascenthq/ascent/pkg/repository"
)

// SQLiteRepo implements repository interfaces using the internal DB wrapper.
type SQLiteRepo struct {
	conn   *db.DB
	logger *slog.Logger
}

// Ensure SQLiteRepo implements the public interfaces.
var _ repository.CompanyRepo = (*SQLiteRepo)(nil)
var _ repository.InvitationRepo = (*SQLiteRepo)(nil)
var _ repository.MetadataRepo = (*SQLiteRepo)(nil)
var _ repository.CampaignRepo = (*SQLiteRepo)(nil)
var _ repository.AssessmentRepo = (*SQLiteRepo)(nil)
var _ repository.ProfileRepo = (*SQLiteRepo)(nil)
var _ repository.AdminRepo = (*SQLiteRepo)(nil)
var _ repository.TxRunner = (*SQLiteRepo)(nil)

func New(conn *db.DB, logger *slog.Logger) *SQLiteRepo {
	if logger == nil {
		logger = slog.Default()
	}
	return &SQLiteRepo{conn: conn, logger: logger}
}

// InTx runs fn inside one database transaction.
func (r *SQLiteRepo) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return r.conn.InTx(ctx, fn)
}

func now() int64 {
	return time.Now().UTC().UnixMilli()
}

// marshalStrings encodes a string slice as a JSON column value. Nil encodes
// as an empty array so columns stay queryable.
func marshalStrings(v []string) string {
	if v == nil {
		v = []string{}
	}
	b, _ := json.Marshal(v)
	return string(b)
}

func unmarshalStrings(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	if err := json.Unmarshal([]byte(s), &out); err != nil {
		return nil
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
