package web

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIndexServed(t *testing.T) {
	e := echo.New()
	require.NoError(t, RegisterStaticRoutes(e))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get(echo.HeaderContentType), "text/html")
	assert.Contains(t, rec.Body.String(), "NeuroLink")
}

func TestAssetServed(t *testing.T) {
	e := echo.New()
	require.NoError(t, RegisterStaticRoutes(e))

	req := httptest.NewRequest(http.MethodGet, "/assets/panel.css", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "--cyber")
}
