package audit

import (
	"database/sql"
	"time"
)

// Entry は audit_log テーブルの1行を表す。書き込み専用（コアから読み返さない）。
type Entry struct {
	AuditID    int64
	Action     string
	ItemID     int64
	Actor      string
	Detail     sql.NullString
	RecordedAt time.Time
}
