package httpserver

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
	ecM "github.com/labstack/echo/v4/middleware"

	"github.com/Skotchmaster/grocery_storefront/internal/metrics"
	"github.com/Skotchmaster/grocery_storefront/internal/middleware/auth"
	"github.com/Skotchmaster/grocery_storefront/internal/middleware/csrf"
	loggingmw "github.com/Skotchmaster/grocery_storefront/internal/middleware/logging"
	"github.com/Skotchmaster/grocery_storefront/internal/session"
	"github.com/Skotchmaster/grocery_storefront/internal/telemetry"
)

type Deps struct {
	ProductHandler *ProductHTTP
	BasketHandler  *BasketHTTP
	OrderHandler   *OrderHTTP

	Sessions *session.Manager
	Metrics  *metrics.Metrics
	Logger   *slog.Logger

	// CSRF is nil when double-submit protection is disabled.
	CSRF *csrf.Config

	// AdminSecret guards product writes when set.
	AdminSecret []byte

	// Ready reports whether the storefront can serve traffic.
	Ready func(ctx context.Context) error
}

// NewEcho builds the storefront router with its error handler and validator.
func NewEcho() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = HTTPErrorHandler
	e.Validator = NewValidator()
	return e
}

func Register(e *echo.Echo, d *Deps) {
	e.Use(ecM.Recover(), ecM.RequestID(), ecM.Secure(), telemetry.RouteMiddleware())
	if d.Metrics != nil {
		e.Use(d.Metrics.Middleware())
		e.GET("/metrics", echo.WrapHandler(d.Metrics.Handler()))
	}
	if d.Logger != nil {
		e.Use(loggingmw.RequestLogger(d.Logger))
	}

	e.GET("/health/live", func(c echo.Context) error { return c.NoContent(http.StatusOK) })
	e.GET("/health/ready", func(c echo.Context) error {
		if d.Ready != nil {
			if err := d.Ready(c.Request().Context()); err != nil {
				return echo.NewHTTPError(http.StatusServiceUnavailable, "not ready")
			}
		}
		return c.NoContent(http.StatusOK)
	})

	v1 := e.Group("/api/v1", d.Sessions.Middleware)
	if d.CSRF != nil {
		v1.Use(csrf.Middleware(*d.CSRF))
	}

	products := v1.Group("/products")
	if len(d.AdminSecret) > 0 {
		products.Use(auth.AdminOnly(d.AdminSecret))
	}
	products.GET("", d.ProductHandler.GetProducts)
	products.GET("/search", d.ProductHandler.SearchProducts)
	products.GET("/:id", d.ProductHandler.GetProduct)
	products.POST("", d.ProductHandler.CreateProduct)
	products.PUT("/:id", d.ProductHandler.UpdateProduct)
	products.DELETE("/:id", d.ProductHandler.DeleteProduct)

	basket := v1.Group("/basket")
	basket.GET("", d.BasketHandler.GetBasket)
	basket.DELETE("", d.BasketHandler.Clear)
	basket.POST("/items", d.BasketHandler.AddItem)
	basket.PUT("/items/:productId", d.BasketHandler.SetQuantity)
	basket.DELETE("/items/:productId", d.BasketHandler.RemoveItem)
	basket.POST("/reconcile", d.BasketHandler.Reconcile)
	basket.POST("/checkout", d.BasketHandler.CheckoutBasket)

	orders := v1.Group("/orders")
	orders.GET("", d.OrderHandler.GetOrders)
	orders.GET("/events", d.OrderHandler.StreamOrders)
	orders.GET("/:id", d.OrderHandler.GetOrder)
	orders.GET("/:id/events", d.OrderHandler.StreamOrder)
	orders.POST("/:id/pay", d.OrderHandler.PayOrder)
	orders.POST("/:id/cancel", d.OrderHandler.CancelOrder)
}
