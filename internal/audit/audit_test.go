package audit

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/crm-quotes/internal/common"
)

type memoryStore struct {
	mu      sync.Mutex
	entries []Entry
}

func (m *memoryStore) Insert(_ context.Context, e Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, e)
	return nil
}

func (m *memoryStore) ListForQuote(_ context.Context, quoteID uuid.UUID, limit int) ([]Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Entry
	for i := len(m.entries) - 1; i >= 0 && len(out) < limit; i-- {
		if e := m.entries[i]; e.QuoteID != nil && *e.QuoteID == quoteID {
			out = append(out, e)
		}
	}
	return out, nil
}

func withUser(id string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(common.WithUserID(r.Context(), id)))
		})
	}
}

func TestRecorderCapturesQuoteActions(t *testing.T) {
	store := &memoryStore{}
	svc := &Service{Store: store, Enabled: true, Now: func() time.Time { return time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC) }}
	rec := HTTPRecorder{Service: svc, OnError: func(err error) { t.Errorf("record: %v", err) }}
	quoteID := uuid.MustParse("7b0e3f7e-2a55-4c0d-9a63-2f6d1e0b4a11")

	r := chi.NewRouter()
	r.Use(withUser("sales-7"))
	r.With(rec.Middleware(ActionCreate)).Post("/api/v1/quotes", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Location", "/api/v1/quotes/"+quoteID.String())
		w.WriteHeader(http.StatusCreated)
	})
	r.With(rec.Middleware(ActionDelete)).Delete("/api/v1/quotes/{id}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	r.Get("/api/v1/quotes/{id}/activity", Handler{Service: svc}.Activity)

	for _, req := range []*http.Request{
		httptest.NewRequest(http.MethodPost, "/api/v1/quotes", nil),
		httptest.NewRequest(http.MethodDelete, "/api/v1/quotes/"+quoteID.String(), nil),
	} {
		r.ServeHTTP(httptest.NewRecorder(), req)
	}

	require.Len(t, store.entries, 2)
	created := store.entries[0]
	require.Equal(t, ActionCreate, created.Action)
	require.Equal(t, "sales-7", created.Actor)
	require.Equal(t, http.StatusCreated, created.Status)
	require.NotNil(t, created.QuoteID)
	require.Equal(t, quoteID, *created.QuoteID)
	require.Equal(t, ActionDelete, store.entries[1].Action)
	require.Equal(t, http.StatusNoContent, store.entries[1].Status)

	entries, err := svc.Activity(context.Background(), quoteID.String(), 10)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.Equal(t, ActionDelete, entries[0].Action)

	activity := httptest.NewRecorder()
	r.ServeHTTP(activity, httptest.NewRequest(http.MethodGet, "/api/v1/quotes/"+quoteID.String()+"/activity", nil))
	require.Equal(t, http.StatusOK, activity.Code)
	require.Contains(t, activity.Body.String(), `"action":"quote.delete"`)
}

func TestRecorderSkipsWhenDisabled(t *testing.T) {
	store := &memoryStore{}
	rec := HTTPRecorder{Service: &Service{Store: store}}
	h := rec.Middleware(ActionExport)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/v1/quotes/x/export.pdf", nil))
	require.Empty(t, store.entries)
}

func TestRecordWithoutQuoteID(t *testing.T) {
	store := &memoryStore{}
	svc := Service{Store: store, Enabled: true}
	req := httptest.NewRequest(http.MethodPost, "/api/v1/quotes", nil)
	require.NoError(t, svc.Record(context.Background(), "", ActionCreate, "", req, http.StatusUnprocessableEntity))
	require.Len(t, store.entries, 1)
	require.Nil(t, store.entries[0].QuoteID)
	require.Equal(t, "anonymous", store.entries[0].Actor)
	require.Equal(t, "/api/v1/quotes", store.entries[0].Route)

	_, err := svc.Activity(context.Background(), "not-a-uuid", 10)
	var appErr *common.AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, http.StatusNotFound, appErr.HTTPStatus)
}
