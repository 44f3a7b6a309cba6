package events

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/noah-isme/crm-quotes/internal/obs"
)

// EventStore records processed events.
type EventStore interface {
	Record(ctx context.Context, quoteID uuid.UUID, topic string, payload []byte) error
}

// Handler consumes quote events on the worker side.
type Handler struct {
	Store   EventStore
	Metrics *obs.QuoteMetrics
	Logger  zerolog.Logger
}

// Register mounts the handlers on mux.
func (h *Handler) Register(mux *asynq.ServeMux) {
	mux.HandleFunc(TopicQuoteCreated, h.HandleQuoteCreated)
}

// HandleQuoteCreated records the event. Malformed payloads are not retried.
func (h *Handler) HandleQuoteCreated(ctx context.Context, t *asynq.Task) (err error) {
	defer func() { h.Metrics.ObserveEvent(TopicQuoteCreated, err) }()

	p, err := DecodeQuoteCreated(t.Payload())
	if err != nil {
		return fmt.Errorf("%w: %w", err, asynq.SkipRetry)
	}
	if h.Store == nil {
		return fmt.Errorf("events: store not configured")
	}
	if err := h.Store.Record(ctx, uuid.MustParse(p.QuoteID), TopicQuoteCreated, t.Payload()); err != nil {
		return fmt.Errorf("events: record %s: %w", p.QuoteID, err)
	}
	h.Logger.Info().
		Str("quote_id", p.QuoteID).
		Str("reference", p.Reference).
		Str("total_engagement_ttc", p.TotalEngagementTTC).
		Msg("quote created")
	return nil
}

// PGStore writes processed events to quote_events.
type PGStore struct {
	pool *pgxpool.Pool
}

// NewPGStore wraps pool.
func NewPGStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{pool: pool}
}

// Record inserts the event once; replays are ignored.
func (s *PGStore) Record(ctx context.Context, quoteID uuid.UUID, topic string, payload []byte) error {
	_, err := s.pool.Exec(ctx, `
INSERT INTO quote_events (quote_id, topic, payload)
VALUES ($1, $2, $3)
ON CONFLICT (quote_id, topic) DO NOTHING`, quoteID, topic, payload)
	return err
}
