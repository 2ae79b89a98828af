package httpserver

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"golang.org/x/sync/errgroup"

	"github.com/Skotchmaster/grocery_storefront/internal/catalog"
	"github.com/Skotchmaster/grocery_storefront/internal/lifecycle"
	"github.com/Skotchmaster/grocery_storefront/internal/logging"
	"github.com/Skotchmaster/grocery_storefront/internal/models"
	"github.com/Skotchmaster/grocery_storefront/internal/transport"
	"github.com/Skotchmaster/grocery_storefront/internal/util"
)

type OrderHTTP struct {
	Orders          *lifecycle.Service
	Catalog         *catalog.Service
	RefreshInterval time.Duration
}

// names resolves product names for order lines. A failure only degrades the view to
// "#<id>" labels.
func (h *OrderHTTP) names(ctx context.Context) catalog.Names {
	names, err := h.Catalog.ProductNames(ctx)
	if err != nil {
		logging.FromContext(ctx).Warn("product_names_error", "error", err)
		return nil
	}
	return names
}

func (h *OrderHTTP) view(ctx context.Context, o *models.Order, names catalog.Names) transport.OrderView {
	v := transport.NewOrderView(o, names)
	if action, ok := h.Orders.InFlight(ctx, o.ID); ok {
		v.Pending = action
		v.Actions = []string{}
	}
	return v
}

func pageParams(c echo.Context) (int, int, string) {
	page, size := util.Calculate(
		util.ParseIntDefault(c.QueryParam("page"), 0),
		util.ParseIntDefault(c.QueryParam("size"), util.DefaultOrderSize),
		util.DefaultOrderSize,
	)
	return page, size, c.QueryParam("sort")
}

func (h *OrderHTTP) GetOrders(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "order.get_orders")
	page, size, sort := pageParams(c)

	var (
		out   *models.Page[models.Order]
		names catalog.Names
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		out, err = h.Orders.List(gctx, page, size, sort)
		return err
	})
	g.Go(func() error {
		names = h.names(gctx)
		return nil
	})
	if err := g.Wait(); err != nil {
		return fail(l, "get_orders_error", err)
	}

	resp := transport.NewOrderPage(out, names)
	for i := range resp.Orders {
		resp.Orders[i] = h.view(ctx, &out.Content[i], names)
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *OrderHTTP) GetOrder(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "order.get_order")

	id, err := util.ParseID(c.Param("id"))
	if err != nil {
		l.Warn("get_order_error", "status", 400, "reason", "id is not a positive integer", "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "id is not a positive integer")
	}

	var (
		order *models.Order
		names catalog.Names
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		order, err = h.Orders.Get(gctx, id)
		return err
	})
	g.Go(func() error {
		names = h.names(gctx)
		return nil
	})
	if err := g.Wait(); err != nil {
		return fail(l, "get_order_error", err)
	}

	return c.JSON(http.StatusOK, h.view(ctx, order, names))
}

func (h *OrderHTTP) PayOrder(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "order.pay_order")

	id, err := util.ParseID(c.Param("id"))
	if err != nil {
		l.Warn("pay_order_error", "status", 400, "reason", "id is not a positive integer", "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "id is not a positive integer")
	}

	var req transport.PayRequest
	if c.Request().ContentLength != 0 {
		if err := bindValid(c, &req); err != nil {
			l.Warn("pay_order_error", "status", 400, "reason", "invalid body", "error", err)
			return err
		}
	}

	order, err := h.Orders.Pay(ctx, id, lifecycle.Payment{Method: req.PaymentMethod, Details: req.PaymentDetails})
	if err != nil {
		return fail(l, "pay_order_error", err)
	}

	l.Info("pay_order_success", "order_id", id)
	return c.JSON(http.StatusOK, transport.ActionResult{
		Message: "Order paid!",
		Order:   h.view(ctx, order, h.names(ctx)),
	})
}

func (h *OrderHTTP) CancelOrder(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "order.cancel_order")

	id, err := util.ParseID(c.Param("id"))
	if err != nil {
		l.Warn("cancel_order_error", "status", 400, "reason", "id is not a positive integer", "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "id is not a positive integer")
	}

	order, err := h.Orders.Cancel(ctx, id)
	if err != nil {
		return fail(l, "cancel_order_error", err)
	}

	l.Info("cancel_order_success", "order_id", id)
	return c.JSON(http.StatusOK, transport.ActionResult{
		Message: "Order cancelled!",
		Order:   h.view(ctx, order, h.names(ctx)),
	})
}
