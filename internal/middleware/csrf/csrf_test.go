package csrf

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newEcho(cfg Config) *echo.Echo {
	e := echo.New()
	e.Use(Middleware(cfg))
	ok := func(c echo.Context) error { return c.NoContent(http.StatusNoContent) }
	e.GET("/api/v1/basket", ok)
	e.POST("/api/v1/basket/items", ok)
	e.POST("/health/live", ok)
	return e
}

func TestCSRF_SafeMethodIssuesToken(t *testing.T) {
	e := newEcho(Config{SkipPrefixes: []string{"/health"}})
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/basket", nil))

	require.Equal(t, http.StatusNoContent, rec.Code)
	token := rec.Header().Get("X-CSRF-Token")
	assert.NotEmpty(t, token)

	var cookie *http.Cookie
	for _, ck := range rec.Result().Cookies() {
		if ck.Name == "XSRF-TOKEN" {
			cookie = ck
		}
	}
	require.NotNil(t, cookie)
	assert.Equal(t, token, cookie.Value)
}

func TestCSRF_UnsafeMethod(t *testing.T) {
	e := newEcho(Config{SkipPrefixes: []string{"/health"}})

	post := func(token, origin string) int {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/basket/items", nil)
		req.AddCookie(&http.Cookie{Name: "XSRF-TOKEN", Value: "tok"})
		if token != "" {
			req.Header.Set("X-CSRF-Token", token)
		}
		if origin != "" {
			req.Header.Set("Origin", origin)
		}
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusNoContent, post("tok", "http://example.com"))
	assert.Equal(t, http.StatusForbidden, post("", "http://example.com"))
	assert.Equal(t, http.StatusForbidden, post("other", "http://example.com"))
	assert.Equal(t, http.StatusForbidden, post("tok", "http://evil.test"))
}

func TestCSRF_SameOriginOptOut(t *testing.T) {
	e := newEcho(Config{SkipSameOrigin: true})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/basket/items", nil)
	req.AddCookie(&http.Cookie{Name: "XSRF-TOKEN", Value: "tok"})
	req.Header.Set("X-CSRF-Token", "tok")
	req.Header.Set("Origin", "http://evil.test")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestCSRF_SkipPrefixes(t *testing.T) {
	e := newEcho(Config{SkipPrefixes: []string{"/health"}})
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/health/live", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)
}
