package httpserver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/grocery_storefront/internal/backend"
	"github.com/Skotchmaster/grocery_storefront/internal/basket"
	"github.com/Skotchmaster/grocery_storefront/internal/catalog"
	"github.com/Skotchmaster/grocery_storefront/internal/checkout"
	"github.com/Skotchmaster/grocery_storefront/internal/lifecycle"
	"github.com/Skotchmaster/grocery_storefront/internal/search"
	"github.com/Skotchmaster/grocery_storefront/internal/transport"
)

// HTTPErrorHandler renders every error as {"status":"error","message":...}.
func HTTPErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	code := http.StatusInternalServerError
	msg := "internal server error"
	var he *echo.HTTPError
	if errors.As(err, &he) {
		code = he.Code
		msg = fmt.Sprint(he.Message)
	}

	if c.Request().Method == http.MethodHead {
		_ = c.NoContent(code)
		return
	}
	_ = c.JSON(code, transport.Response{Status: "error", Message: msg})
}

// toHTTPError maps domain and backend errors to the status and text shown to the shopper.
func toHTTPError(err error) *echo.HTTPError {
	var he *echo.HTTPError
	var apiErr *backend.APIError
	switch {
	case errors.As(err, &he):
		return he
	case errors.Is(err, basket.ErrInvalidQuantity):
		return echo.NewHTTPError(http.StatusBadRequest, "quantity must be at least 1")
	case errors.Is(err, basket.ErrEmptyBasket):
		return echo.NewHTTPError(http.StatusBadRequest, "basket is empty")
	case errors.Is(err, basket.ErrNotInBasket):
		return echo.NewHTTPError(http.StatusNotFound, "product is not in the basket")
	case errors.Is(err, basket.ErrCheckoutInProgress):
		return echo.NewHTTPError(http.StatusConflict, "order submission already in progress")
	case errors.Is(err, catalog.ErrValidation):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, checkout.ErrProductUnavailable):
		return echo.NewHTTPError(http.StatusConflict, "a product in the basket is no longer available: "+backend.UserMessage(err))
	case errors.Is(err, search.ErrEmptyQuery):
		return echo.NewHTTPError(http.StatusBadRequest, "search query is empty")
	case errors.Is(err, search.ErrUnavailable):
		return echo.NewHTTPError(http.StatusServiceUnavailable, "product search is unavailable, try again later")
	case errors.Is(err, lifecycle.ErrActionInProgress):
		return echo.NewHTTPError(http.StatusConflict, "another action on this order is in progress")
	case errors.Is(err, lifecycle.ErrStaleState):
		return echo.NewHTTPError(http.StatusConflict, "order status changed: "+backend.UserMessage(err))
	case errors.Is(err, lifecycle.ErrTransitionNotAllowed):
		return echo.NewHTTPError(http.StatusConflict, "this action is not available for the order's current status")
	case errors.As(err, &apiErr):
		code := apiErr.Status
		if code >= http.StatusInternalServerError {
			code = http.StatusBadGateway
		}
		return echo.NewHTTPError(code, backend.UserMessage(err))
	case errors.Is(err, backend.ErrProtocol):
		return echo.NewHTTPError(http.StatusBadGateway, backend.UserMessage(err))
	case errors.Is(err, backend.ErrTransport), errors.Is(err, context.DeadlineExceeded):
		return echo.NewHTTPError(http.StatusServiceUnavailable, backend.UserMessage(err))
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, "internal server error")
	}
}

// fail logs err under event and returns the matching HTTP error.
func fail(l *slog.Logger, event string, err error) error {
	he := toHTTPError(err)
	if he.Code >= http.StatusInternalServerError {
		l.Error(event, "status", he.Code, "reason", he.Message, "error", err)
	} else {
		l.Warn(event, "status", he.Code, "reason", he.Message, "error", err)
	}
	return he
}
