package httpserver

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/grocery_storefront/internal/backend"
	"github.com/Skotchmaster/grocery_storefront/internal/lifecycle"
	"github.com/Skotchmaster/grocery_storefront/internal/logging"
	"github.com/Skotchmaster/grocery_storefront/internal/models"
	"github.com/Skotchmaster/grocery_storefront/internal/transport"
	"github.com/Skotchmaster/grocery_storefront/internal/util"
)

func (h *OrderHTTP) interval() time.Duration {
	if h.RefreshInterval > 0 {
		return h.RefreshInterval
	}
	return lifecycle.DefaultInterval
}

func startStream(c echo.Context) {
	res := c.Response()
	// streams outlive the server write timeout
	_ = http.NewResponseController(res).SetWriteDeadline(time.Time{})

	res.Header().Set(echo.HeaderContentType, "text/event-stream")
	res.Header().Set("Cache-Control", "no-cache")
	res.Header().Set("Connection", "keep-alive")
	res.Header().Set("X-Accel-Buffering", "no")
	res.WriteHeader(http.StatusOK)
	res.Flush()
}

func writeEvent(c echo.Context, event string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return err
	}
	res := c.Response()
	if _, err := fmt.Fprintf(res, "event: %s\ndata: %s\n\n", event, payload); err != nil {
		return err
	}
	res.Flush()
	return nil
}

func streamError(c echo.Context, err error) error {
	return writeEvent(c, "error", transport.Response{Status: "error", Message: backend.UserMessage(err)})
}

// StreamOrder pushes the order every refresh interval until the client goes away or
// the order reaches a final status.
func (h *OrderHTTP) StreamOrder(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "order.stream_order")

	id, err := util.ParseID(c.Param("id"))
	if err != nil {
		l.Warn("stream_order_error", "status", 400, "reason", "id is not a positive integer", "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "id is not a positive integer")
	}

	names := h.names(ctx)
	startStream(c)
	l.Info("stream_order_opened", "order_id", id)

	var last *models.Order
	p := h.Orders.Watch(ctx, id, h.interval(), func(o *models.Order, err error) error {
		if err != nil {
			l.Warn("stream_order_refresh_error", "order_id", id, "error", err)
			return streamError(c, err)
		}
		last = o
		return writeEvent(c, "order", h.view(ctx, o, names))
	})
	<-p.Done()
	p.Stop()

	if ctx.Err() == nil && last != nil && last.Status.Terminal() {
		_ = writeEvent(c, "end", map[string]any{"id": id, "status": last.Status})
	}
	l.Info("stream_order_closed", "order_id", id)
	return nil
}

func (h *OrderHTTP) StreamOrders(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "order.stream_orders")
	page, size, sort := pageParams(c)

	names := h.names(ctx)
	startStream(c)

	p := h.Orders.WatchHistory(ctx, page, size, sort, h.interval(), func(out *models.Page[models.Order], err error) error {
		if err != nil {
			l.Warn("stream_orders_refresh_error", "error", err)
			return streamError(c, err)
		}
		resp := transport.NewOrderPage(out, names)
		for i := range resp.Orders {
			resp.Orders[i] = h.view(ctx, &out.Content[i], names)
		}
		return writeEvent(c, "orders", resp)
	})
	<-p.Done()
	p.Stop()
	return nil
}
