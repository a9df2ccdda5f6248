package items

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"portaria-backend/internal/platform/keylock"
)

// ===== Error model =====
type Code string

const (
	CodeInvalidArgument Code = "INVALID_ARGUMENT"
	CodeNotFound        Code = "NOT_FOUND"
	CodeConflict        Code = "CONFLICT"
	CodeInternal        Code = "INTERNAL"
)

type APIError struct {
	Code    Code
	Message string
}

func (e *APIError) Error() string      { return fmt.Sprintf("%s: %s", e.Code, e.Message) }
func ErrInvalid(msg string) *APIError  { return &APIError{Code: CodeInvalidArgument, Message: msg} }
func ErrNotFound(msg string) *APIError { return &APIError{Code: CodeNotFound, Message: msg} }
func ErrConflict(msg string) *APIError { return &APIError{Code: CodeConflict, Message: msg} }
func ErrInternal(msg string) *APIError { return &APIError{Code: CodeInternal, Message: msg} }

func toHTTPStatus(err error) int {
	var api *APIError
	if errors.As(err, &api) {
		switch api.Code {
		case CodeInvalidArgument:
			return 400
		case CodeNotFound:
			return 404
		case CodeConflict:
			return 409
		default:
			return 500
		}
	}
	return 500
}

// ===== Collaborators =====

type Store interface {
	ExecCreate(ctx context.Context, item *Item, totalQty int) error
	GetItem(ctx context.Context, itemID int64) (*Item, error)
	ListItems(ctx context.Context) ([]Item, error)
	UpdateItem(ctx context.Context, item *Item) error
	ExecDelete(ctx context.Context, itemID int64) error
	GetStock(ctx context.Context, itemID int64) (*Stock, error)
	UpdateStockTotals(ctx context.Context, itemID int64, totalQty, availableQty int) error
}

type Auditor interface {
	Record(ctx context.Context, action string, itemID int64, detail string)
}

// ===== Service =====

type Service struct {
	store Store
	aud   Auditor
	locks *keylock.KeyedMutex
}

func NewService(db *sql.DB, aud Auditor, locks *keylock.KeyedMutex) *Service {
	return &Service{store: NewStore(db), aud: aud, locks: locks}
}

// Create registers an item together with its stock record
// (total = available = total_quantity) in one transaction.
func (s *Service) Create(ctx context.Context, req CreateItemRequest) (*ItemResponse, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, ErrInvalid("name is required")
	}
	if req.TotalQuantity <= 0 {
		return nil, ErrInvalid("total_quantity must be > 0")
	}

	item := &Item{Name: name}
	if req.AssetTag != nil && *req.AssetTag != "" {
		item.AssetTag = sql.NullString{String: *req.AssetTag, Valid: true}
	}
	if req.Description != nil && *req.Description != "" {
		item.Description = sql.NullString{String: *req.Description, Valid: true}
	}

	if err := s.store.ExecCreate(ctx, item, req.TotalQuantity); err != nil {
		return nil, err
	}

	s.aud.Record(ctx, "CRIACAO_ITEM", item.ItemID,
		fmt.Sprintf("new item: %s (qty: %d)", name, req.TotalQuantity))

	resp := buildItemResponse(item)
	return &resp, nil
}

func (s *Service) Get(ctx context.Context, itemID int64) (*ItemResponse, error) {
	item, err := s.store.GetItem(ctx, itemID)
	if err != nil {
		return nil, err
	}
	resp := buildItemResponse(item)
	return &resp, nil
}

func (s *Service) List(ctx context.Context) ([]ItemResponse, error) {
	list, err := s.store.ListItems(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]ItemResponse, 0, len(list))
	for i := range list {
		out = append(out, buildItemResponse(&list[i]))
	}
	return out, nil
}

func (s *Service) Update(ctx context.Context, itemID int64, req UpdateItemRequest) (*ItemResponse, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, ErrInvalid("name is required")
	}

	if _, err := s.store.GetItem(ctx, itemID); err != nil {
		return nil, err
	}

	item := &Item{ItemID: itemID, Name: name}
	if req.AssetTag != nil && *req.AssetTag != "" {
		item.AssetTag = sql.NullString{String: *req.AssetTag, Valid: true}
	}
	if req.Description != nil && *req.Description != "" {
		item.Description = sql.NullString{String: *req.Description, Valid: true}
	}

	if err := s.store.UpdateItem(ctx, item); err != nil {
		return nil, err
	}
	resp := buildItemResponse(item)
	return &resp, nil
}

// Delete removes the item, its stock record and the whole movement history
// as one transaction. 履歴ごと消える破壊的操作。
func (s *Service) Delete(ctx context.Context, itemID int64) error {
	unlock := s.locks.Lock(itemID)
	defer unlock()

	item, err := s.store.GetItem(ctx, itemID)
	if err != nil {
		return err
	}
	if err := s.store.ExecDelete(ctx, itemID); err != nil {
		return err
	}

	s.aud.Record(ctx, "EXCLUSAO_ITEM", itemID,
		fmt.Sprintf("item removed: %s (full wipe, movement history included)", item.Name))
	return nil
}

// AdjustStock sets a new total and shifts availability by the same delta.
// total縮小で available が負になる場合は0でクランプする。帳簿上は貸出中の
// 台数が残っていても黙って吸収する。
func (s *Service) AdjustStock(ctx context.Context, itemID int64, newTotal int) (*StockResponse, error) {
	if newTotal < 0 {
		return nil, ErrInvalid("total_quantity must be >= 0")
	}

	unlock := s.locks.Lock(itemID)
	defer unlock()

	st, err := s.store.GetStock(ctx, itemID)
	if err != nil {
		return nil, err
	}

	delta := newTotal - st.TotalQty
	available := st.AvailableQty + delta
	if available < 0 {
		available = 0
	}

	if err := s.store.UpdateStockTotals(ctx, itemID, newTotal, available); err != nil {
		return nil, err
	}

	s.aud.Record(ctx, "AJUSTE_ESTOQUE", itemID,
		fmt.Sprintf("total adjusted: %d -> %d (delta: %+d)", st.TotalQty, newTotal, delta))

	return &StockResponse{ItemID: itemID, TotalQuantity: newTotal, AvailableQuantity: available}, nil
}

func buildItemResponse(item *Item) ItemResponse {
	resp := ItemResponse{ItemID: item.ItemID, Name: item.Name}
	if item.AssetTag.Valid {
		v := item.AssetTag.String
		resp.AssetTag = &v
	}
	if item.Description.Valid {
		v := item.Description.String
		resp.Description = &v
	}
	return resp
}
