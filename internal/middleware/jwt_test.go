package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meetread/meetread/internal/utils"
)

func okHandler(c echo.Context) error { return c.String(http.StatusOK, "ok") }

func runMiddleware(t *testing.T, mw echo.MiddlewareFunc, setup func(*http.Request, echo.Context)) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	if setup != nil {
		setup(req, c)
	}
	require.NoError(t, mw(okHandler)(c))
	return rec
}

func TestJWTAuthAcceptsValidToken(t *testing.T) {
	tok, err := utils.NewAccessToken("secret", 7, "USER", 15)
	require.NoError(t, err)

	rec := runMiddleware(t, JWTAuth("secret"), func(req *http.Request, c echo.Context) {
		req.Header.Set("Authorization", "Bearer "+tok.Token)
	})
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestJWTAuthRejectsMissingAndBadTokens(t *testing.T) {
	rec := runMiddleware(t, JWTAuth("secret"), nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = runMiddleware(t, JWTAuth("secret"), func(req *http.Request, c echo.Context) {
		req.Header.Set("Authorization", "Bearer not-a-jwt")
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	other, err := utils.NewAccessToken("other-secret", 7, "USER", 15)
	require.NoError(t, err)
	rec = runMiddleware(t, JWTAuth("secret"), func(req *http.Request, c echo.Context) {
		req.Header.Set("Authorization", "Bearer "+other.Token)
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequireRole(t *testing.T) {
	rec := runMiddleware(t, RequireRole("ADMIN"), func(_ *http.Request, c echo.Context) {
		c.Set("role", "ADMIN")
	})
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = runMiddleware(t, RequireRole("ADMIN"), func(_ *http.Request, c echo.Context) {
		c.Set("role", "USER")
	})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = runMiddleware(t, RequireRole("USER", "ADMIN"), nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}
