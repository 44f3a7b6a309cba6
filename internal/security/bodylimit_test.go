package security

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBodyLimit(t *testing.T) {
	var captured string
	handler := BodyLimit{Max: 10}.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		captured = string(data)
		w.WriteHeader(http.StatusOK)
	}))

	t.Run("within limit", func(t *testing.T) {
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/v1/quotes", strings.NewReader(`{"a":1}`)))
		require.Equal(t, http.StatusOK, rr.Code)
		require.Equal(t, `{"a":1}`, captured)
	})

	t.Run("oversized body", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/quotes", strings.NewReader(`{"companyId":"acme"}`))
		req.ContentLength = -1
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)
		require.Equal(t, http.StatusRequestEntityTooLarge, rr.Code)
		require.Contains(t, rr.Body.String(), "PAYLOAD_TOO_LARGE")
	})

	t.Run("declared oversized length", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/quotes", strings.NewReader("{}"))
		req.ContentLength = 100
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)
		require.Equal(t, http.StatusRequestEntityTooLarge, rr.Code)
	})
}
