package items

import "database/sql"

// Item は items テーブルの1行を表す
type Item struct {
	ItemID      int64
	Name        string
	AssetTag    sql.NullString
	Description sql.NullString
}

// Stock は stocks テーブルの1行を表す（Itemと1:1）
// 不変条件: 0 <= available_qty。total縮小時は0でクランプする。
type Stock struct {
	StockID      int64
	ItemID       int64
	TotalQty     int
	AvailableQty int
}
