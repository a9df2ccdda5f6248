package items

// ===== Requests =====

type CreateItemRequest struct {
	Name          string  `json:"name" binding:"required"`
	AssetTag      *string `json:"asset_tag,omitempty"`
	Description   *string `json:"description,omitempty"`
	TotalQuantity int     `json:"total_quantity" binding:"required"`
}

// 部分更新ではなく全フィールド置換（未指定の任意項目はNULLになる）
type UpdateItemRequest struct {
	Name        string  `json:"name" binding:"required"`
	AssetTag    *string `json:"asset_tag,omitempty"`
	Description *string `json:"description,omitempty"`
}

type AdjustStockRequest struct {
	TotalQuantity *int `json:"total_quantity" binding:"required"`
}

// ===== Responses =====

type ItemResponse struct {
	ItemID      int64   `json:"item_id"`
	Name        string  `json:"name"`
	AssetTag    *string `json:"asset_tag,omitempty"`
	Description *string `json:"description,omitempty"`
}

type StockResponse struct {
	ItemID            int64 `json:"item_id"`
	TotalQuantity     int   `json:"total_quantity"`
	AvailableQuantity int   `json:"available_quantity"`
}
