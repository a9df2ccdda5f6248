package items

import (
	"context"
	"database/sql"

	"portaria-backend/internal/platform/db"
)

type mysqlStore struct {
	db *sql.DB
}

func NewStore(conn *sql.DB) Store { return &mysqlStore{db: conn} }

// ExecCreate inserts the item and its stock record in one transaction.
func (s *mysqlStore) ExecCreate(ctx context.Context, item *Item, totalQty int) error {
	return db.RunInTx(ctx, s.db, nil, func(ctx context.Context, tx db.DBTX) error {
		const qItem = `INSERT INTO items (name, asset_tag, description) VALUES (?, ?, ?)`
		res, err := tx.ExecContext(ctx, qItem, item.Name, item.AssetTag, item.Description)
		if err != nil {
			return err
		}
		id, _ := res.LastInsertId()
		item.ItemID = id

		const qStock = `INSERT INTO stocks (item_id, total_qty, available_qty) VALUES (?, ?, ?)`
		_, err = tx.ExecContext(ctx, qStock, item.ItemID, totalQty, totalQty)
		return err
	})
}

func (s *mysqlStore) GetItem(ctx context.Context, itemID int64) (*Item, error) {
	const q = `SELECT item_id, name, asset_tag, description FROM items WHERE item_id = ?`
	var m Item
	err := s.db.QueryRowContext(ctx, q, itemID).Scan(&m.ItemID, &m.Name, &m.AssetTag, &m.Description)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound("item not found")
		}
		return nil, err
	}
	return &m, nil
}

func (s *mysqlStore) ListItems(ctx context.Context) ([]Item, error) {
	const q = `SELECT item_id, name, asset_tag, description FROM items ORDER BY item_id ASC`
	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Item
	for rows.Next() {
		var m Item
		if err := rows.Scan(&m.ItemID, &m.Name, &m.AssetTag, &m.Description); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (s *mysqlStore) UpdateItem(ctx context.Context, item *Item) error {
	const q = `UPDATE items SET name = ?, asset_tag = ?, description = ? WHERE item_id = ?`
	_, err := s.db.ExecContext(ctx, q, item.Name, item.AssetTag, item.Description, item.ItemID)
	return err
}

// ExecDelete cascades: movements -> stock -> item, as one transaction.
// クラッシュしても孤児レコードを残さない。
func (s *mysqlStore) ExecDelete(ctx context.Context, itemID int64) error {
	return db.RunInTx(ctx, s.db, nil, func(ctx context.Context, tx db.DBTX) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM movements WHERE item_id = ?`, itemID); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM stocks WHERE item_id = ?`, itemID); err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, `DELETE FROM items WHERE item_id = ?`, itemID)
		if err != nil {
			return err
		}
		aff, _ := res.RowsAffected()
		if aff == 0 {
			return ErrNotFound("item not found")
		}
		return nil
	})
}

func (s *mysqlStore) GetStock(ctx context.Context, itemID int64) (*Stock, error) {
	const q = `SELECT stock_id, item_id, total_qty, available_qty FROM stocks WHERE item_id = ?`
	var st Stock
	err := s.db.QueryRowContext(ctx, q, itemID).Scan(&st.StockID, &st.ItemID, &st.TotalQty, &st.AvailableQty)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound("stock record not found for item")
		}
		return nil, err
	}
	return &st, nil
}

func (s *mysqlStore) UpdateStockTotals(ctx context.Context, itemID int64, totalQty, availableQty int) error {
	const q = `UPDATE stocks SET total_qty = ?, available_qty = ? WHERE item_id = ?`
	res, err := s.db.ExecContext(ctx, q, totalQty, availableQty, itemID)
	if err != nil {
		return err
	}
	aff, _ := res.RowsAffected()
	_ = aff // 値が同一の更新は aff=0 になるので判定には使わない
	return nil
}
