package movements

import (
	"database/sql"
	"time"
)

// Movement kinds. CHECKOUT has a due date, INDEFINITE has none.
const (
	KindCheckout   = "CHECKOUT"
	KindIndefinite = "INDEFINITE"
)

// Deadline status state machine:
// PENDING --(return on/before due date)--> CLOSED
// PENDING --(return after due date, or sweep fires first)--> LATE
// LATE    --(later return)--> LATE   ※先に確定したステータスを維持する
const (
	StatusPending = "PENDING"
	StatusLate    = "LATE"
	StatusClosed  = "CLOSED"
)

// Movement は movements テーブルの1行を表す。1チェックアウト＝1行で、
// 部分返却のたびに quantity が縮む。returned_at は完全消化時に一度だけ立つ。
type Movement struct {
	MovementID     int64
	MovementULID   string
	ItemID         int64
	ItemName       sql.NullString
	Quantity       int
	Kind           string
	Requester      string
	CheckedOutAt   time.Time
	DueOn          sql.NullTime
	ReturnedAt     sql.NullTime
	DeadlineStatus string
	CreatedAt      time.Time
}

// Stock は stocks テーブルの照合ビュー（このパッケージが読む分だけ）
type Stock struct {
	ItemID       int64
	TotalQty     int
	AvailableQty int
}

// FullClose / PartialClose は FIFO 照合の適用計画。
// サービス層が計画を立て、ストアが在庫解放と共に1トランザクションで適用する。
type FullClose struct {
	MovementID int64
	Status     string
}

type PartialClose struct {
	MovementID  int64
	NewQuantity int
}
