package httpserver

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/grocery_storefront/internal/catalog"
	"github.com/Skotchmaster/grocery_storefront/internal/logging"
	"github.com/Skotchmaster/grocery_storefront/internal/models"
	"github.com/Skotchmaster/grocery_storefront/internal/search"
	"github.com/Skotchmaster/grocery_storefront/internal/util"
)

type ProductHTTP struct {
	Svc    *catalog.Service
	Search search.Index
}

// reindex keeps the search index in step with catalog writes. The periodic sync
// repairs anything missed here.
func (h *ProductHTTP) reindex(ctx context.Context, product *models.Product, deletedID int64) {
	if h.Search == nil {
		return
	}
	var err error
	if product != nil {
		err = h.Search.Put(ctx, *product)
	} else {
		err = h.Search.Delete(ctx, deletedID)
	}
	if err != nil {
		logging.FromContext(ctx).Warn("search_reindex_error", "error", err)
	}
}

func (h *ProductHTTP) SearchProducts(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "product.search_products")

	if h.Search == nil {
		return echo.NewHTTPError(http.StatusNotImplemented, "search is not configured")
	}

	page, size := util.Calculate(
		util.ParseIntDefault(c.QueryParam("page"), 0),
		util.ParseIntDefault(c.QueryParam("size"), util.DefaultPageSize),
		util.DefaultPageSize,
	)

	res, err := h.Search.Search(ctx, c.QueryParam("q"), page, size)
	if err != nil {
		return fail(l, "search_products_error", err)
	}
	return c.JSON(http.StatusOK, res)
}

func (h *ProductHTTP) GetProducts(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "product.get_products")

	page, size := util.Calculate(
		util.ParseIntDefault(c.QueryParam("page"), 0),
		util.ParseIntDefault(c.QueryParam("size"), util.DefaultPageSize),
		util.DefaultPageSize,
	)

	out, err := h.Svc.ListProducts(ctx, page, size)
	if err != nil {
		return fail(l, "get_products_error", err)
	}

	l.Debug("get_products_success", "page", page, "size", size, "total", out.TotalElements)
	return c.JSON(http.StatusOK, out)
}

func (h *ProductHTTP) GetProduct(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "product.get_product")

	id, err := util.ParseID(c.Param("id"))
	if err != nil {
		l.Warn("get_product_error", "status", 400, "reason", "id is not a positive integer", "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "id is not a positive integer")
	}

	product, err := h.Svc.GetProduct(ctx, id)
	if err != nil {
		return fail(l, "get_product_error", err)
	}
	return c.JSON(http.StatusOK, product)
}

func (h *ProductHTTP) CreateProduct(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "product.create_product")

	var req models.ProductInput
	if err := c.Bind(&req); err != nil {
		l.Warn("create_product_error", "status", 400, "reason", "invalid body", "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	product, err := h.Svc.CreateProduct(ctx, req)
	if err != nil {
		return fail(l, "create_product_error", err)
	}

	h.reindex(ctx, product, 0)
	l.Info("create_product_success", "product_id", product.ID)
	return c.JSON(http.StatusCreated, product)
}

func (h *ProductHTTP) UpdateProduct(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "product.update_product")

	id, err := util.ParseID(c.Param("id"))
	if err != nil {
		l.Warn("update_product_error", "status", 400, "reason", "id is not a positive integer", "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "id is not a positive integer")
	}

	var req models.ProductInput
	if err := c.Bind(&req); err != nil {
		l.Warn("update_product_error", "status", 400, "reason", "invalid body", "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	product, err := h.Svc.UpdateProduct(ctx, id, req)
	if err != nil {
		return fail(l, "update_product_error", err)
	}

	h.reindex(ctx, product, 0)
	l.Info("update_product_success", "product_id", id)
	return c.JSON(http.StatusOK, product)
}

func (h *ProductHTTP) DeleteProduct(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "product.delete_product")

	id, err := util.ParseID(c.Param("id"))
	if err != nil {
		l.Warn("delete_product_error", "status", 400, "reason", "id is not a positive integer", "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "id is not a positive integer")
	}

	if err := h.Svc.DeleteProduct(ctx, id); err != nil {
		return fail(l, "delete_product_error", err)
	}

	h.reindex(ctx, nil, id)
	l.Info("delete_product_success", "product_id", id)
	return c.NoContent(http.StatusNoContent)
}
