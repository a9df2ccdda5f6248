package audit

import (
	"context"
	"database/sql"
	"log"
	"time"
)

// 認証を持たないため、登録者は固定
const defaultActor = "Portaria Admin"

type Store interface {
	Insert(ctx context.Context, e *Entry) error
	List(ctx context.Context, itemID *int64, limit int) ([]Entry, error)
}

type Service struct {
	store Store
}

func NewService(db *sql.DB) *Service {
	return &Service{store: NewStore(db)}
}

// Record writes one audit row. Fire-and-forget: a failure here must not roll
// back the business mutation, so it is logged and swallowed.
func (s *Service) Record(ctx context.Context, action string, itemID int64, detail string) {
	e := &Entry{
		Action:     action,
		ItemID:     itemID,
		Actor:      defaultActor,
		RecordedAt: time.Now(),
	}
	if detail != "" {
		e.Detail = sql.NullString{String: detail, Valid: true}
	}
	if err := s.store.Insert(ctx, e); err != nil {
		log.Printf("[WARN] audit: failed to record %s for item %d: %v", action, itemID, err)
	}
}

func (s *Service) List(ctx context.Context, itemID *int64, limit int) ([]EntryResponse, error) {
	if limit <= 0 || limit > 500 {
		limit = 200
	}
	entries, err := s.store.List(ctx, itemID, limit)
	if err != nil {
		return nil, err
	}
	out := make([]EntryResponse, 0, len(entries))
	for _, e := range entries {
		r := EntryResponse{
			AuditID:    e.AuditID,
			Action:     e.Action,
			ItemID:     e.ItemID,
			Actor:      e.Actor,
			RecordedAt: e.RecordedAt,
		}
		if e.Detail.Valid {
			v := e.Detail.String
			r.Detail = &v
		}
		out = append(out, r)
	}
	return out, nil
}
