package audit

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/noah-isme/crm-quotes/internal/common"
	"github.com/noah-isme/crm-quotes/internal/obs"
)

// Actions recorded against a quote.
const (
	ActionCreate = "quote.create"
	ActionDelete = "quote.delete"
	ActionExport = "quote.export"
)

const anonymous = "anonymous"

// Entry is one line of a quote's activity trail.
type Entry struct {
	QuoteID   *uuid.UUID `json:"quoteId,omitempty"`
	Actor     string     `json:"actor"`
	Action    string     `json:"action"`
	Method    string     `json:"method"`
	Route     string     `json:"route"`
	Status    int        `json:"status"`
	IP        string     `json:"ip,omitempty"`
	UserAgent string     `json:"userAgent,omitempty"`
	RequestID string     `json:"requestId,omitempty"`
	CreatedAt time.Time  `json:"createdAt"`
}

// Store persists and reads activity entries.
type Store interface {
	Insert(ctx context.Context, e Entry) error
	ListForQuote(ctx context.Context, quoteID uuid.UUID, limit int) ([]Entry, error)
}

// Service records who did what to which quote.
type Service struct {
	Store   Store
	Enabled bool
	Now     func() time.Time
}

// Record stores an entry built from req. quoteID may be empty when the request never
// resolved a quote, e.g. a rejected creation.
func (s Service) Record(ctx context.Context, actor, action, quoteID string, req *http.Request, status int) error {
	if !s.Enabled {
		return nil
	}
	if req == nil {
		return errors.New("audit: request is required")
	}
	if s.Store == nil {
		return errors.New("audit: store not configured")
	}
	route := obs.RoutePatternFromContext(req.Context())
	if route == "" {
		route = req.URL.Path
	}
	if status == 0 {
		status = http.StatusOK
	}
	now := time.Now
	if s.Now != nil {
		now = s.Now
	}
	e := Entry{
		Actor:     orDefault(actor, anonymous),
		Action:    orDefault(action, strings.ToUpper(req.Method)+" "+route),
		Method:    req.Method,
		Route:     route,
		Status:    status,
		IP:        strings.TrimSpace(common.ClientIP(req)),
		UserAgent: strings.TrimSpace(req.UserAgent()),
		RequestID: middleware.GetReqID(req.Context()),
		CreatedAt: now().UTC(),
	}
	if id, err := uuid.Parse(strings.TrimSpace(quoteID)); err == nil {
		e.QuoteID = &id
	}
	return s.Store.Insert(ctx, e)
}

// Activity returns the latest entries for a quote, newest first.
func (s Service) Activity(ctx context.Context, quoteID string, limit int) ([]Entry, error) {
	if s.Store == nil {
		return nil, errors.New("audit: store not configured")
	}
	id, err := uuid.Parse(strings.TrimSpace(quoteID))
	if err != nil {
		return nil, common.NotFound("quote not found", err)
	}
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	return s.Store.ListForQuote(ctx, id, limit)
}

func orDefault(v, fallback string) string {
	if v = strings.TrimSpace(v); v != "" {
		return v
	}
	return fallback
}
