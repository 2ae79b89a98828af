package loggingmw

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skotchmaster/grocery_storefront/internal/logging"
)

func TestRequestLogger(t *testing.T) {
	var buf bytes.Buffer
	e := echo.New()
	e.Use(RequestLogger(logging.NewWithWriter("info", &buf)))
	e.GET("/api/v1/orders/:id", func(c echo.Context) error {
		logging.FromContext(c.Request().Context()).Info("get_order_success")
		return echo.NewHTTPError(http.StatusNotFound, "order not found")
	})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/orders/7", nil)
	req.Header.Set(echo.HeaderXRequestID, "rid-1")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "rid-1", rec.Header().Get(echo.HeaderXRequestID))

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	require.Len(t, lines, 2)

	var handlerLine, summary map[string]any
	require.NoError(t, json.Unmarshal(lines[0], &handlerLine))
	require.NoError(t, json.Unmarshal(lines[1], &summary))
	assert.Equal(t, "rid-1", handlerLine["request_id"])
	assert.Equal(t, "/api/v1/orders/:id", handlerLine["path"])
	assert.Equal(t, "WARN", summary["level"])
	assert.Equal(t, float64(404), summary["status"])
}
