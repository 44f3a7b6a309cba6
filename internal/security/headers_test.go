package security

import (
	"crypto/tls"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHeadersMiddleware(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })

	handler := Headers{Enable: true, EnableHSTS: true, HSTSIncludeSubdomains: true}.Middleware(ok)
	req := httptest.NewRequest(http.MethodGet, "https://quotes.example.com/api/v1/quotes", nil)
	req.TLS = &tls.ConnectionState{}
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	require.Equal(t, "nosniff", rr.Header().Get("X-Content-Type-Options"))
	require.Equal(t, "no-store", rr.Header().Get("Cache-Control"))
	require.Equal(t, "max-age=31536000; includeSubDomains", rr.Header().Get("Strict-Transport-Security"))

	plain := httptest.NewRecorder()
	handler.ServeHTTP(plain, httptest.NewRequest(http.MethodGet, "http://localhost/api/v1/quotes", nil))
	require.Empty(t, plain.Header().Get("Strict-Transport-Security"))

	disabled := httptest.NewRecorder()
	Headers{}.Middleware(ok).ServeHTTP(disabled, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Empty(t, disabled.Header().Get("X-Content-Type-Options"))
}
