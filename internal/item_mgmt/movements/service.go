package movements

import (
	"context"
	"crypto/rand"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"portaria-backend/internal/platform/keylock"
)

const dueOnLayout = "2006-01-02"

// ===== インターフェース群 =====

type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

type IDGen interface {
	New() (string, error)
}

type ulidGen struct{}

func (ulidGen) New() (string, error) {
	t := time.Now().UTC()
	entropy := ulid.Monotonic(rand.Reader, 0)
	id, err := ulid.New(ulid.Timestamp(t), entropy)
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

// Store is the persistence collaborator of the reconciliation engine.
// Exec系は複数レコードをまたぐ書き込みを1トランザクションで適用する。
type Store interface {
	ItemName(ctx context.Context, itemID int64) (string, error)
	GetStock(ctx context.Context, itemID int64) (*Stock, error)
	// ExecCheckout: 在庫行ロック → 可用数チェック → 減算 → movement INSERT
	ExecCheckout(ctx context.Context, m *Movement) error
	// Outstanding: returned_at IS NULL を checked_out_at 昇順（FIFO順）で返す
	Outstanding(ctx context.Context, itemID int64) ([]Movement, error)
	LatestOutstanding(ctx context.Context, itemID int64) (*Movement, error)
	// ExecReturn: 在庫解放と close/shrink 群を1トランザクションで適用
	ExecReturn(ctx context.Context, itemID int64, qty int, returnedAt time.Time, closes []FullClose, partial *PartialClose) error
	// PendingDue: 未返却・kind=CHECKOUT・status=PENDING・期限付きの行
	PendingDue(ctx context.Context) ([]Movement, error)
	// MarkLate: PENDING かつ未返却のままの場合のみ LATE にする（楽観ガード）。
	// 競合する返却が先に確定していれば false を返す。
	MarkLate(ctx context.Context, movementID int64) (bool, error)
}

type Auditor interface {
	Record(ctx context.Context, action string, itemID int64, detail string)
}

// ===== Service本体 =====

type Service struct {
	store Store
	aud   Auditor
	locks *keylock.KeyedMutex
	clock Clock
	id    IDGen
}

func NewService(db *sql.DB, aud Auditor, locks *keylock.KeyedMutex) *Service {
	return &Service{
		store: NewStore(db),
		aud:   aud,
		locks: locks,
		clock: realClock{},
		id:    ulidGen{},
	}
}

// Checkout reserves stock and opens a movement record, atomically per item.
func (s *Service) Checkout(ctx context.Context, itemID int64, req CheckoutRequest) (*MovementResponse, error) {
	if req.Quantity <= 0 {
		return nil, ErrInvalid("quantity must be > 0")
	}
	requester := strings.TrimSpace(req.Requester)
	if requester == "" {
		return nil, ErrInvalid("requester is required")
	}

	kind := strings.ToUpper(strings.TrimSpace(req.Kind))
	if kind == "" {
		kind = KindCheckout
	}

	var dueOn sql.NullTime
	switch kind {
	case KindCheckout:
		if req.DueOn == nil || *req.DueOn == "" {
			return nil, ErrInvalid("due_on is required for kind CHECKOUT")
		}
		parsed, err := time.Parse(dueOnLayout, *req.DueOn)
		if err != nil {
			return nil, ErrInvalid("invalid due_on format, expected YYYY-MM-DD")
		}
		dueOn = sql.NullTime{Time: parsed, Valid: true}
	case KindIndefinite:
		if req.DueOn != nil && *req.DueOn != "" {
			return nil, ErrInvalid("due_on is not allowed for kind INDEFINITE")
		}
	default:
		return nil, ErrInvalid("kind must be CHECKOUT or INDEFINITE")
	}

	itemName, err := s.store.ItemName(ctx, itemID)
	if err != nil {
		return nil, err
	}

	idStr, err := s.id.New()
	if err != nil {
		return nil, err
	}

	unlock := s.locks.Lock(itemID)
	defer unlock()

	m := &Movement{
		MovementULID:   idStr,
		ItemID:         itemID,
		ItemName:       sql.NullString{String: itemName, Valid: true},
		Quantity:       req.Quantity,
		Kind:           kind,
		Requester:      requester,
		CheckedOutAt:   s.clock.Now(),
		DueOn:          dueOn,
		DeadlineStatus: StatusPending,
	}

	if err := s.store.ExecCheckout(ctx, m); err != nil {
		return nil, err
	}

	dueStr := "none"
	if dueOn.Valid {
		dueStr = dueOn.Time.Format(dueOnLayout)
	}
	s.aud.Record(ctx, "RETIRADA_"+kind, itemID,
		fmt.Sprintf("checkout of %d unit(s) by %s, due: %s", req.Quantity, requester, dueStr))

	resp := buildMovementResponse(m)
	return &resp, nil
}

// Return releases stock and reconciles the returned quantity against the
// outstanding movements, oldest checkout first.
//
// 一番古い貸出から消し込む。どの個体が戻ったかは追跡しない（数量のみの台帳）。
func (s *Service) Return(ctx context.Context, itemID int64, req ReturnRequest) (*ReturnResponse, error) {
	if req.Quantity <= 0 {
		return nil, ErrInvalid("quantity must be > 0")
	}

	unlock := s.locks.Lock(itemID)
	defer unlock()

	st, err := s.store.GetStock(ctx, itemID)
	if err != nil {
		return nil, err
	}

	unitsOut := st.TotalQty - st.AvailableQty
	if req.Quantity > unitsOut {
		return nil, ErrConflict(fmt.Sprintf("return quantity exceeds units currently checked out (%d)", unitsOut))
	}

	open, err := s.store.Outstanding(ctx, itemID)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	remaining := req.Quantity
	var closes []FullClose
	var partial *PartialClose
	closedUnits := 0

	for i := range open {
		if remaining == 0 {
			break
		}
		m := &open[i]
		if m.Quantity <= remaining {
			closes = append(closes, FullClose{MovementID: m.MovementID, Status: closeStatus(m, now)})
			remaining -= m.Quantity
			closedUnits += m.Quantity
		} else {
			partial = &PartialClose{MovementID: m.MovementID, NewQuantity: m.Quantity - remaining}
			remaining = 0
		}
	}

	if err := s.store.ExecReturn(ctx, itemID, req.Quantity, now, closes, partial); err != nil {
		return nil, err
	}

	s.aud.Record(ctx, "DEVOLUCAO_ITEM", itemID,
		fmt.Sprintf("returned %d unit(s); %d absorbed by fully closed records", req.Quantity, closedUnits))

	return &ReturnResponse{
		ItemID:      itemID,
		Quantity:    req.Quantity,
		ClosedCount: len(closes),
		Remainder:   remaining,
	}, nil
}

// closeStatus decides the terminal deadline status of a fully returned record.
// sweep が既に LATE を確定させていた場合はそれを維持する。
func closeStatus(m *Movement, returnedAt time.Time) string {
	if m.DeadlineStatus == StatusLate {
		return StatusLate
	}
	if m.Kind == KindCheckout && m.DueOn.Valid {
		// 比較は時刻ではなく暦日で行う（当日中の返却は期限内）
		if dateOnly(returnedAt).After(dateOnly(m.DueOn.Time)) {
			return StatusLate
		}
	}
	return StatusClosed
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// ActiveMovements lists the outstanding movements for an item, oldest first.
func (s *Service) ActiveMovements(ctx context.Context, itemID int64) ([]MovementResponse, error) {
	open, err := s.store.Outstanding(ctx, itemID)
	if err != nil {
		return nil, err
	}
	out := make([]MovementResponse, 0, len(open))
	for i := range open {
		out = append(out, buildMovementResponse(&open[i]))
	}
	return out, nil
}

// LatestActive returns the most recent outstanding movement for an item.
func (s *Service) LatestActive(ctx context.Context, itemID int64) (*MovementResponse, error) {
	m, err := s.store.LatestOutstanding(ctx, itemID)
	if err != nil {
		return nil, err
	}
	resp := buildMovementResponse(m)
	return &resp, nil
}

func (s *Service) GetStock(ctx context.Context, itemID int64) (*StockResponse, error) {
	st, err := s.store.GetStock(ctx, itemID)
	if err != nil {
		return nil, err
	}
	return &StockResponse{ItemID: st.ItemID, TotalQuantity: st.TotalQty, AvailableQuantity: st.AvailableQty}, nil
}

// SweepOverdue flags pending due-dated movements whose due date is strictly
// before today. Idempotent: flagged rows leave the PENDING set, so a second
// run on the same day counts 0.
func (s *Service) SweepOverdue(ctx context.Context, today time.Time) (int, error) {
	pending, err := s.store.PendingDue(ctx)
	if err != nil {
		return 0, err
	}

	d := dateOnly(today)
	count := 0
	for i := range pending {
		m := &pending[i]
		if !m.DueOn.Valid {
			continue
		}
		if dateOnly(m.DueOn.Time).Before(d) {
			flagged, err := s.store.MarkLate(ctx, m.MovementID)
			if err != nil {
				return count, err
			}
			if flagged {
				count++
			}
		}
	}
	return count, nil
}

// ヘルパー関数
func buildMovementResponse(m *Movement) MovementResponse {
	resp := MovementResponse{
		MovementID:     m.MovementID,
		MovementULID:   m.MovementULID,
		ItemID:         m.ItemID,
		Quantity:       m.Quantity,
		Kind:           m.Kind,
		Requester:      m.Requester,
		CheckedOutAt:   m.CheckedOutAt,
		DeadlineStatus: m.DeadlineStatus,
	}
	if m.ItemName.Valid {
		v := m.ItemName.String
		resp.ItemName = &v
	}
	if m.DueOn.Valid {
		v := m.DueOn.Time.Format(dueOnLayout)
		resp.DueOn = &v
	}
	if m.ReturnedAt.Valid {
		v := m.ReturnedAt.Time
		resp.ReturnedAt = &v
	}
	return resp
}
