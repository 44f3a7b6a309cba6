package audit

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PGStore keeps the activity trail in quote_activity.
type PGStore struct {
	pool *pgxpool.Pool
}

// NewPGStore wraps pool.
func NewPGStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{pool: pool}
}

// Insert implements Store.
func (s *PGStore) Insert(ctx context.Context, e Entry) error {
	var quoteID pgtype.UUID
	if e.QuoteID != nil {
		quoteID = pgtype.UUID{Bytes: *e.QuoteID, Valid: true}
	}
	_, err := s.pool.Exec(ctx, `
INSERT INTO quote_activity (quote_id, actor, action, method, route, status, ip, user_agent, request_id, created_at)
VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7, ''), NULLIF($8, ''), NULLIF($9, ''), $10)`,
		quoteID, e.Actor, e.Action, e.Method, e.Route, e.Status, e.IP, e.UserAgent, e.RequestID, e.CreatedAt)
	return err
}

// ListForQuote implements Store.
func (s *PGStore) ListForQuote(ctx context.Context, quoteID uuid.UUID, limit int) ([]Entry, error) {
	rows, err := s.pool.Query(ctx, `
SELECT quote_id, actor, action, method, route, status,
       COALESCE(ip, ''), COALESCE(user_agent, ''), COALESCE(request_id, ''), created_at
FROM quote_activity
WHERE quote_id = $1
ORDER BY created_at DESC, id DESC
LIMIT $2`, quoteID, limit)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (Entry, error) {
		var (
			e  Entry
			id pgtype.UUID
		)
		if err := row.Scan(&id, &e.Actor, &e.Action, &e.Method, &e.Route, &e.Status, &e.IP, &e.UserAgent, &e.RequestID, &e.CreatedAt); err != nil {
			return Entry{}, err
		}
		if id.Valid {
			qid := uuid.UUID(id.Bytes)
			e.QuoteID = &qid
		}
		return e, nil
	})
}
