package movements

import "time"

// ===== Requests =====

type CheckoutRequest struct {
	Quantity  int    `json:"quantity" binding:"required"`
	Requester string `json:"requester" binding:"required"`
	// CHECKOUT（要返却期限）または INDEFINITE（期限なし）。省略時は CHECKOUT。
	Kind string `json:"kind,omitempty"`
	// "2006-01-02" 形式。CHECKOUT では必須、INDEFINITE では指定不可。
	DueOn *string `json:"due_on,omitempty"`
}

type ReturnRequest struct {
	Quantity int `json:"quantity" binding:"required"`
}

// ===== Responses =====

type MovementResponse struct {
	MovementID     int64      `json:"movement_id"`
	MovementULID   string     `json:"movement_ulid"`
	ItemID         int64      `json:"item_id"`
	ItemName       *string    `json:"item_name,omitempty"`
	Quantity       int        `json:"quantity"`
	Kind           string     `json:"kind"`
	Requester      string     `json:"requester"`
	CheckedOutAt   time.Time  `json:"checked_out_at"`
	DueOn          *string    `json:"due_on,omitempty"`
	ReturnedAt     *time.Time `json:"returned_at,omitempty"`
	DeadlineStatus string     `json:"deadline_status"`
}

type ReturnResponse struct {
	ItemID      int64 `json:"item_id"`
	Quantity    int   `json:"quantity"`
	ClosedCount int   `json:"closed_count"`
	Remainder   int   `json:"remainder"`
}

type StockResponse struct {
	ItemID            int64 `json:"item_id"`
	TotalQuantity     int   `json:"total_quantity"`
	AvailableQuantity int   `json:"available_quantity"`
}
