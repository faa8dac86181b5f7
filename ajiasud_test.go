package ajiasud

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFacadeConstruction(t *testing.T) {
	s := New(Config{BinPath: "/no/such/ajiasu"})
	require.NotNil(t, s)
	require.Nil(t, s.Current())
	require.Empty(t, s.Nodes())
}

func TestFacadeHandlerServesStatus(t *testing.T) {
	s := New(Config{BinPath: "/no/such/ajiasu"})
	req := httptest.NewRequest(http.MethodGet, "/api/status", nil)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	require.JSONEq(t, `{"current":null}`, w.Body.String())
}
