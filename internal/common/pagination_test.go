package common

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParsePagination(t *testing.T) {
	page, per := ParsePagination(httptest.NewRequest(http.MethodGet, "/quotes?page=3&limit=10", nil), 20, 100)
	require.Equal(t, 3, page)
	require.Equal(t, 10, per)

	page, per = ParsePagination(httptest.NewRequest(http.MethodGet, "/quotes?page=-1&limit=abc", nil), 20, 100)
	require.Equal(t, 1, page)
	require.Equal(t, 20, per)

	_, per = ParsePagination(httptest.NewRequest(http.MethodGet, "/quotes?limit=1000", nil), 20, 100)
	require.Equal(t, 100, per)
}
