package audit

import (
	"context"
	"database/sql"
	"strings"
)

type mysqlStore struct {
	db *sql.DB
}

func NewStore(db *sql.DB) Store { return &mysqlStore{db: db} }

func (s *mysqlStore) Insert(ctx context.Context, e *Entry) error {
	const q = `
	INSERT INTO audit_log (action, item_id, actor, detail, recorded_at)
	VALUES (?, ?, ?, ?, ?)`
	res, err := s.db.ExecContext(ctx, q, e.Action, e.ItemID, e.Actor, e.Detail, e.RecordedAt)
	if err != nil {
		return err
	}
	id, _ := res.LastInsertId()
	e.AuditID = id
	return nil
}

func (s *mysqlStore) List(ctx context.Context, itemID *int64, limit int) ([]Entry, error) {
	sb := strings.Builder{}
	sb.WriteString(`SELECT audit_id, action, item_id, actor, detail, recorded_at FROM audit_log WHERE 1=1`)

	args := []any{}
	if itemID != nil {
		sb.WriteString(` AND item_id = ?`)
		args = append(args, *itemID)
	}
	sb.WriteString(` ORDER BY recorded_at DESC, audit_id DESC LIMIT ?`)
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.AuditID, &e.Action, &e.ItemID, &e.Actor, &e.Detail, &e.RecordedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
