package movements

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"portaria-backend/internal/platform/db"
)

type mysqlStore struct {
	db *sql.DB
}

func NewStore(conn *sql.DB) Store { return &mysqlStore{db: conn} }

const movementCols = `movement_id, movement_ulid, item_id, item_name, quantity, kind, requester,
	checked_out_at, due_on, returned_at, deadline_status, created_at`

func (s *mysqlStore) ItemName(ctx context.Context, itemID int64) (string, error) {
	const q = `SELECT name FROM items WHERE item_id = ?`
	var name string
	if err := s.db.QueryRowContext(ctx, q, itemID).Scan(&name); err != nil {
		if err == sql.ErrNoRows {
			return "", ErrNotFound("item not found")
		}
		return "", err
	}
	return name, nil
}

func (s *mysqlStore) GetStock(ctx context.Context, itemID int64) (*Stock, error) {
	const q = `SELECT item_id, total_qty, available_qty FROM stocks WHERE item_id = ?`
	var st Stock
	err := s.db.QueryRowContext(ctx, q, itemID).Scan(&st.ItemID, &st.TotalQty, &st.AvailableQty)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound("stock record not found for item")
		}
		return nil, err
	}
	return &st, nil
}

// lockStockRow: 在庫行を行ロックして可用数を返す
func lockStockRow(ctx context.Context, tx db.DBTX, itemID int64) (stockID int64, available int, err error) {
	const q = `SELECT stock_id, available_qty FROM stocks WHERE item_id = ? FOR UPDATE`
	row := tx.QueryRowContext(ctx, q, itemID)
	if err = row.Scan(&stockID, &available); err != nil {
		if err == sql.ErrNoRows {
			return 0, 0, ErrNotFound("stock record not found for item")
		}
		return 0, 0, err
	}
	return stockID, available, nil
}

// ExecCheckout reserves stock and inserts the movement as one transaction.
// 可用数不足なら何も書かずに INSUFFICIENT_STOCK で失敗する。
func (s *mysqlStore) ExecCheckout(ctx context.Context, m *Movement) error {
	return db.RunInTx(ctx, s.db, nil, func(ctx context.Context, tx db.DBTX) error {
		stockID, available, err := lockStockRow(ctx, tx, m.ItemID)
		if err != nil {
			return err
		}
		if m.Quantity > available {
			return ErrInsufficientStock(fmt.Sprintf("insufficient stock, available: %d", available))
		}

		const qReserve = `UPDATE stocks SET available_qty = available_qty - ? WHERE stock_id = ?`
		if _, err := tx.ExecContext(ctx, qReserve, m.Quantity, stockID); err != nil {
			return err
		}

		const qInsert = `
		INSERT INTO movements
		(movement_ulid, item_id, item_name, quantity, kind, requester, checked_out_at, due_on, deadline_status)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
		res, err := tx.ExecContext(ctx, qInsert,
			m.MovementULID, m.ItemID, m.ItemName, m.Quantity, m.Kind, m.Requester,
			m.CheckedOutAt, m.DueOn, m.DeadlineStatus,
		)
		if err != nil {
			return err
		}
		id, _ := res.LastInsertId()
		m.MovementID = id
		return nil
	})
}

func (s *mysqlStore) Outstanding(ctx context.Context, itemID int64) ([]Movement, error) {
	q := fmt.Sprintf(`
	SELECT %s FROM movements
	WHERE item_id = ? AND returned_at IS NULL
	ORDER BY checked_out_at ASC, movement_id ASC`, movementCols)

	rows, err := s.db.QueryContext(ctx, q, itemID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanMovements(rows)
}

func (s *mysqlStore) LatestOutstanding(ctx context.Context, itemID int64) (*Movement, error) {
	q := fmt.Sprintf(`
	SELECT %s FROM movements
	WHERE item_id = ? AND returned_at IS NULL
	ORDER BY checked_out_at DESC, movement_id DESC
	LIMIT 1`, movementCols)

	var m Movement
	err := scanMovement(s.db.QueryRowContext(ctx, q, itemID), &m)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound("no active movement for item")
		}
		return nil, err
	}
	return &m, nil
}

// ExecReturn applies the reconciliation plan: stock release plus every
// movement close/shrink, all-or-nothing.
func (s *mysqlStore) ExecReturn(ctx context.Context, itemID int64, qty int, returnedAt time.Time, closes []FullClose, partial *PartialClose) error {
	return db.RunInTx(ctx, s.db, nil, func(ctx context.Context, tx db.DBTX) error {
		// 上限クランプはしない。unitsOut の検査はサービス層が item ロック下で済ませている。
		const qRelease = `UPDATE stocks SET available_qty = available_qty + ? WHERE item_id = ?`
		res, err := tx.ExecContext(ctx, qRelease, qty, itemID)
		if err != nil {
			return err
		}
		aff, _ := res.RowsAffected()
		if aff == 0 {
			return ErrNotFound("stock record not found for item")
		}

		const qClose = `
		UPDATE movements SET returned_at = ?, deadline_status = ?
		WHERE movement_id = ? AND returned_at IS NULL`
		for _, cl := range closes {
			if _, err := tx.ExecContext(ctx, qClose, returnedAt, cl.Status, cl.MovementID); err != nil {
				return err
			}
		}

		if partial != nil {
			const qShrink = `
			UPDATE movements SET quantity = ?
			WHERE movement_id = ? AND returned_at IS NULL`
			if _, err := tx.ExecContext(ctx, qShrink, partial.NewQuantity, partial.MovementID); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *mysqlStore) PendingDue(ctx context.Context) ([]Movement, error) {
	q := fmt.Sprintf(`
	SELECT %s FROM movements
	WHERE returned_at IS NULL
	  AND kind = ?
	  AND deadline_status = ?
	  AND due_on IS NOT NULL`, movementCols)

	rows, err := s.db.QueryContext(ctx, q, KindCheckout, StatusPending)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanMovements(rows)
}

func (s *mysqlStore) MarkLate(ctx context.Context, movementID int64) (bool, error) {
	// 楽観ガード: 並行する返却が先に確定していたら何もしない（返却側が勝つ）
	const q = `
	UPDATE movements SET deadline_status = ?
	WHERE movement_id = ? AND deadline_status = ? AND returned_at IS NULL`
	res, err := s.db.ExecContext(ctx, q, StatusLate, movementID, StatusPending)
	if err != nil {
		return false, err
	}
	aff, _ := res.RowsAffected()
	return aff == 1, nil
}

// ---- scan helpers ----

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMovement(r rowScanner, m *Movement) error {
	return r.Scan(
		&m.MovementID, &m.MovementULID, &m.ItemID, &m.ItemName, &m.Quantity, &m.Kind,
		&m.Requester, &m.CheckedOutAt, &m.DueOn, &m.ReturnedAt, &m.DeadlineStatus, &m.CreatedAt,
	)
}

func scanMovements(rows *sql.Rows) ([]Movement, error) {
	var out []Movement
	for rows.Next() {
		var m Movement
		if err := scanMovement(rows, &m); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
