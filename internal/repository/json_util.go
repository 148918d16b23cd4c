package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"owl-haccp/internal/models"
)

func marshalJSONB(v interface{}) ([]byte, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal jsonb: %w", err)
	}
	return b, nil
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func stringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

func timePtr(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time
	return &t
}

// updateDraft 只更新 DRAFT 状态的记录；没有命中时区分“不存在”和“已审核”
func updateDraft(ctx context.Context, db *sql.DB, table, idColumn, id, setClause string, args ...interface{}) error {
	query := fmt.Sprintf(`UPDATE %s SET %s WHERE %s = $1 AND status = 'DRAFT'`, table, setClause, idColumn)

	res, err := db.ExecContext(ctx, query, append([]interface{}{id}, args...)...)
	if err != nil {
		return fmt.Errorf("failed to update %s: %w", table, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected > 0 {
		return nil
	}

	var status string
	err = db.QueryRowContext(ctx, fmt.Sprintf(`SELECT status FROM %s WHERE %s = $1`, table, idColumn), id).Scan(&status)
	if err == sql.ErrNoRows {
		return fmt.Errorf("%s %s: %w", table, id, models.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("failed to get %s status: %w", table, err)
	}
	return fmt.Errorf("%s %s: %w", table, id, models.ErrRecordVerified)
}
