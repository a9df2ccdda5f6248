package movements

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"portaria-backend/internal/platform/keylock"
)

// fakeStore is an in-memory Store for engine tests.
type fakeStore struct {
	mu         sync.Mutex
	items      map[int64]string
	stocks     map[int64]*Stock
	movements  []*Movement
	nextID     int64
	pendingErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		items:  make(map[int64]string),
		stocks: make(map[int64]*Stock),
	}
}

func (f *fakeStore) addItem(id int64, name string, total, available int) {
	f.items[id] = name
	f.stocks[id] = &Stock{ItemID: id, TotalQty: total, AvailableQty: available}
}

func (f *fakeStore) addMovement(m Movement) *Movement {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	m.MovementID = f.nextID
	cp := m
	f.movements = append(f.movements, &cp)
	return &cp
}

func (f *fakeStore) movementByID(id int64) *Movement {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, m := range f.movements {
		if m.MovementID == id {
			return m
		}
	}
	return nil
}

func (f *fakeStore) ItemName(ctx context.Context, itemID int64) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	name, ok := f.items[itemID]
	if !ok {
		return "", ErrNotFound("item not found")
	}
	return name, nil
}

func (f *fakeStore) GetStock(ctx context.Context, itemID int64) (*Stock, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	st, ok := f.stocks[itemID]
	if !ok {
		return nil, ErrNotFound("stock record not found for item")
	}
	cp := *st
	return &cp, nil
}

func (f *fakeStore) ExecCheckout(ctx context.Context, m *Movement) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	st, ok := f.stocks[m.ItemID]
	if !ok {
		return ErrNotFound("stock record not found for item")
	}
	if m.Quantity > st.AvailableQty {
		return ErrInsufficientStock(fmt.Sprintf("insufficient stock, available: %d", st.AvailableQty))
	}
	st.AvailableQty -= m.Quantity
	f.nextID++
	m.MovementID = f.nextID
	cp := *m
	f.movements = append(f.movements, &cp)
	return nil
}

func (f *fakeStore) Outstanding(ctx context.Context, itemID int64) ([]Movement, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []Movement
	for _, m := range f.movements {
		if m.ItemID == itemID && !m.ReturnedAt.Valid {
			out = append(out, *m)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CheckedOutAt.Equal(out[j].CheckedOutAt) {
			return out[i].MovementID < out[j].MovementID
		}
		return out[i].CheckedOutAt.Before(out[j].CheckedOutAt)
	})
	return out, nil
}

func (f *fakeStore) LatestOutstanding(ctx context.Context, itemID int64) (*Movement, error) {
	open, err := f.Outstanding(ctx, itemID)
	if err != nil {
		return nil, err
	}
	if len(open) == 0 {
		return nil, ErrNotFound("no active movement for item")
	}
	cp := open[len(open)-1]
	return &cp, nil
}

func (f *fakeStore) ExecReturn(ctx context.Context, itemID int64, qty int, returnedAt time.Time, closes []FullClose, partial *PartialClose) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	st, ok := f.stocks[itemID]
	if !ok {
		return ErrNotFound("stock record not found for item")
	}
	st.AvailableQty += qty
	for _, cl := range closes {
		for _, m := range f.movements {
			if m.MovementID == cl.MovementID && !m.ReturnedAt.Valid {
				m.ReturnedAt.Time = returnedAt
				m.ReturnedAt.Valid = true
				m.DeadlineStatus = cl.Status
			}
		}
	}
	if partial != nil {
		for _, m := range f.movements {
			if m.MovementID == partial.MovementID && !m.ReturnedAt.Valid {
				m.Quantity = partial.NewQuantity
			}
		}
	}
	return nil
}

func (f *fakeStore) PendingDue(ctx context.Context) ([]Movement, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.pendingErr != nil {
		return nil, f.pendingErr
	}
	var out []Movement
	for _, m := range f.movements {
		if !m.ReturnedAt.Valid && m.Kind == KindCheckout && m.DeadlineStatus == StatusPending && m.DueOn.Valid {
			out = append(out, *m)
		}
	}
	return out, nil
}

func (f *fakeStore) MarkLate(ctx context.Context, movementID int64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, m := range f.movements {
		if m.MovementID == movementID && m.DeadlineStatus == StatusPending && !m.ReturnedAt.Valid {
			m.DeadlineStatus = StatusLate
			return true, nil
		}
	}
	return false, nil
}

// ---- other fakes ----

type fakeClock struct{ now time.Time }

func (c fakeClock) Now() time.Time { return c.now }

type seqID struct {
	mu sync.Mutex
	n  int
}

func (g *seqID) New() (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("01TESTULID%016d", g.n), nil
}

type recAuditor struct {
	mu      sync.Mutex
	actions []string
	details []string
}

func (a *recAuditor) Record(ctx context.Context, action string, itemID int64, detail string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.actions = append(a.actions, action)
	a.details = append(a.details, detail)
}

func newTestService(fs *fakeStore, now time.Time) (*Service, *recAuditor) {
	aud := &recAuditor{}
	svc := &Service{
		store: fs,
		aud:   aud,
		locks: keylock.New(),
		clock: fakeClock{now: now},
		id:    &seqID{},
	}
	return svc, aud
}
