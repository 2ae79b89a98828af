package transport

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/Skotchmaster/grocery_storefront/internal/catalog"
	"github.com/Skotchmaster/grocery_storefront/internal/lifecycle"
	"github.com/Skotchmaster/grocery_storefront/internal/models"
)

type Response struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

type AddItemRequest struct {
	ProductID int64 `json:"productId" validate:"required,gt=0"`
	Quantity  int   `json:"quantity"  validate:"required,gte=1"`
}

type SetQuantityRequest struct {
	Quantity int `json:"quantity" validate:"required,gte=1"`
}

type PayRequest struct {
	PaymentMethod  string `json:"paymentMethod"  validate:"omitempty,max=32"`
	PaymentDetails string `json:"paymentDetails" validate:"omitempty,max=64"`
}

type BasketLine struct {
	ProductID    int64           `json:"productId"`
	Name         string          `json:"name"`
	PricePerUnit decimal.Decimal `json:"pricePerUnit"`
	Quantity     int             `json:"quantity"`
	LineTotal    decimal.Decimal `json:"lineTotal"`
}

type BasketView struct {
	Items       []BasketLine    `json:"items"`
	Count       int             `json:"count"`
	Total       decimal.Decimal `json:"total"`
	CheckingOut bool            `json:"checkingOut"`
}

type OrderLine struct {
	ProductID   int64  `json:"productId"`
	ProductName string `json:"productName"`
	Quantity    int    `json:"quantity"`
}

type OrderView struct {
	ID         int64              `json:"id"`
	Status     models.OrderStatus `json:"status"`
	TotalPrice decimal.Decimal    `json:"totalPrice"`
	CreatedAt  models.Timestamp   `json:"createdAt"`
	UpdatedAt  models.Timestamp   `json:"updatedAt"`
	Items      []OrderLine        `json:"items"`
	Actions    []string           `json:"actions"`
	Pending    string             `json:"pending,omitempty"`
}

type OrderPage struct {
	Orders        []OrderView `json:"orders"`
	TotalElements int64       `json:"totalElements"`
	TotalPages    int         `json:"totalPages"`
	Page          int         `json:"page"`
	Size          int         `json:"size"`
}

type ActionResult struct {
	Message string    `json:"message"`
	Order   OrderView `json:"order"`
}

type ReconcileResult struct {
	Removed   []int64    `json:"removed"`
	Refreshed []int64    `json:"refreshed"`
	Basket    BasketView `json:"basket"`
}

type CheckoutResult struct {
	Order         OrderView `json:"order"`
	ReservedUntil time.Time `json:"reservedUntil"`
	Notice        string    `json:"notice"`
}

// NewOrderView resolves product names when names is non-nil and falls back to "#<id>".
func NewOrderView(o *models.Order, names catalog.Names) OrderView {
	lines := make([]OrderLine, 0, len(o.Items))
	for _, it := range o.Items {
		lines = append(lines, OrderLine{
			ProductID:   it.ProductID,
			ProductName: names.Name(it.ProductID),
			Quantity:    it.Quantity,
		})
	}
	return OrderView{
		ID:         o.ID,
		Status:     o.Status,
		TotalPrice: o.TotalPrice,
		CreatedAt:  o.CreatedAt,
		UpdatedAt:  o.UpdatedAt,
		Items:      lines,
		Actions:    lifecycle.Actions(o.Status),
	}
}

func NewOrderPage(p *models.Page[models.Order], names catalog.Names) OrderPage {
	out := OrderPage{
		Orders:        make([]OrderView, 0, len(p.Content)),
		TotalElements: p.TotalElements,
		TotalPages:    p.TotalPages,
		Page:          p.Number,
		Size:          p.Size,
	}
	for i := range p.Content {
		out.Orders = append(out.Orders, NewOrderView(&p.Content[i], names))
	}
	return out
}
