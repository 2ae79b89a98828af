package httpserver

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/grocery_storefront/internal/basket"
	"github.com/Skotchmaster/grocery_storefront/internal/catalog"
	"github.com/Skotchmaster/grocery_storefront/internal/checkout"
	"github.com/Skotchmaster/grocery_storefront/internal/logging"
	"github.com/Skotchmaster/grocery_storefront/internal/session"
	"github.com/Skotchmaster/grocery_storefront/internal/transport"
	"github.com/Skotchmaster/grocery_storefront/internal/util"
)

type BasketHTTP struct {
	Catalog  *catalog.Service
	Checkout *checkout.Service
}

func basketView(store *basket.Store) transport.BasketView {
	items := store.Items()
	lines := make([]transport.BasketLine, 0, len(items))
	for _, it := range items {
		lines = append(lines, transport.BasketLine{
			ProductID:    it.Product.ID,
			Name:         it.Product.Name,
			PricePerUnit: it.Product.PricePerUnit,
			Quantity:     it.Quantity,
			LineTotal:    it.LineTotal(),
		})
	}
	return transport.BasketView{
		Items:       lines,
		Count:       len(lines),
		Total:       store.Total(),
		CheckingOut: store.CheckingOut(),
	}
}

func (h *BasketHTTP) GetBasket(c echo.Context) error {
	return c.JSON(http.StatusOK, basketView(session.BasketFrom(c)))
}

func (h *BasketHTTP) AddItem(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "basket.add_item")
	store := session.BasketFrom(c)

	var req transport.AddItemRequest
	if err := bindValid(c, &req); err != nil {
		l.Warn("add_item_error", "status", 400, "reason", "invalid body", "error", err)
		return err
	}

	product, err := h.Catalog.GetProduct(ctx, req.ProductID)
	if err != nil {
		return fail(l, "add_item_error", err)
	}

	if remaining := store.Remaining(*product); req.Quantity > remaining {
		l.Warn("add_item_error", "status", 422, "reason", "exceeds stock", "product_id", product.ID, "remaining", remaining)
		return echo.NewHTTPError(http.StatusUnprocessableEntity,
			fmt.Sprintf("only %d more of %s available", max(remaining, 0), product.Name))
	}

	if err := store.Add(*product, req.Quantity); err != nil {
		return fail(l, "add_item_error", err)
	}

	l.Info("add_item_success", "product_id", product.ID, "quantity", req.Quantity)
	return c.JSON(http.StatusOK, basketView(store))
}

func (h *BasketHTTP) SetQuantity(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "basket.set_quantity")
	store := session.BasketFrom(c)

	id, err := util.ParseID(c.Param("productId"))
	if err != nil {
		l.Warn("set_quantity_error", "status", 400, "reason", "id is not a positive integer", "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "id is not a positive integer")
	}

	var req transport.SetQuantityRequest
	if err := bindValid(c, &req); err != nil {
		l.Warn("set_quantity_error", "status", 400, "reason", "invalid body", "error", err)
		return err
	}

	for _, it := range store.Items() {
		if it.Product.ID == id && req.Quantity > it.Product.StockQuantity {
			l.Warn("set_quantity_error", "status", 422, "reason", "exceeds stock", "product_id", id)
			return echo.NewHTTPError(http.StatusUnprocessableEntity,
				fmt.Sprintf("only %d of %s available", it.Product.StockQuantity, it.Product.Name))
		}
	}

	if err := store.SetQuantity(id, req.Quantity); err != nil {
		return fail(l, "set_quantity_error", err)
	}
	return c.JSON(http.StatusOK, basketView(store))
}

func (h *BasketHTTP) RemoveItem(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "basket.remove_item")
	store := session.BasketFrom(c)

	id, err := util.ParseID(c.Param("productId"))
	if err != nil {
		l.Warn("remove_item_error", "status", 400, "reason", "id is not a positive integer", "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "id is not a positive integer")
	}
	if err := store.Remove(id); err != nil {
		return fail(l, "remove_item_error", err)
	}
	return c.JSON(http.StatusOK, basketView(store))
}

func (h *BasketHTTP) Clear(c echo.Context) error {
	l := logging.FromContext(c.Request().Context()).With("handler", "basket.clear")
	store := session.BasketFrom(c)

	if err := store.Clear(); err != nil {
		return fail(l, "clear_basket_error", err)
	}
	return c.JSON(http.StatusOK, basketView(store))
}

func (h *BasketHTTP) Reconcile(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "basket.reconcile")
	store := session.BasketFrom(c)

	res, err := h.Checkout.Reconcile(ctx, store)
	if err != nil {
		return fail(l, "reconcile_error", err)
	}

	if len(res.Removed) > 0 {
		l.Info("reconcile_removed_products", "product_ids", res.Removed)
	}
	return c.JSON(http.StatusOK, transport.ReconcileResult{
		Removed:   res.Removed,
		Refreshed: res.Refreshed,
		Basket:    basketView(store),
	})
}

func (h *BasketHTTP) CheckoutBasket(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "basket.checkout")
	store := session.BasketFrom(c)

	names := catalog.Names{}
	for _, it := range store.Items() {
		names[it.Product.ID] = it.Product.Name
	}

	receipt, err := h.Checkout.Submit(ctx, store)
	if err != nil {
		return fail(l, "checkout_error", err)
	}

	l.Info("checkout_success", "order_id", receipt.Order.ID, "total", receipt.Order.TotalPrice.String())
	return c.JSON(http.StatusCreated, transport.CheckoutResult{
		Order:         transport.NewOrderView(receipt.Order, names),
		ReservedUntil: receipt.ReservedUntil,
		Notice:        receipt.Notice,
	})
}
