package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

func init() {
	// the backend expects plain JSON numbers for prices and amounts
	decimal.MarshalJSONWithoutQuotes = true
}

type Product struct {
	ID            int64           `json:"id"`
	Name          string          `json:"name"`
	PricePerUnit  decimal.Decimal `json:"pricePerUnit"`
	StockQuantity int             `json:"stockQuantity"`
	CreatedAt     Timestamp       `json:"createdAt"`
	UpdatedAt     Timestamp       `json:"updatedAt"`
}

type ProductInput struct {
	Name          string          `json:"name"          validate:"required,min=1,max=50"`
	PricePerUnit  decimal.Decimal `json:"pricePerUnit"`
	StockQuantity int             `json:"stockQuantity" validate:"min=0"`
}

type OrderItem struct {
	ProductID int64 `json:"productId" validate:"required,gt=0"`
	Quantity  int   `json:"quantity"  validate:"required,gte=1"`
}

type OrderRequest struct {
	Items []OrderItem `json:"items" validate:"required,min=1,dive"`
}

type Order struct {
	ID         int64           `json:"id"`
	CreatedAt  Timestamp       `json:"createdAt"`
	UpdatedAt  Timestamp       `json:"updatedAt"`
	Items      []OrderItem     `json:"items"`
	Status     OrderStatus     `json:"status"`
	TotalPrice decimal.Decimal `json:"totalPrice"`
}

type PaymentRequest struct {
	PaymentMethod  string          `json:"paymentMethod"`
	PaymentDetails string          `json:"paymentDetails"`
	Amount         decimal.Decimal `json:"amount"`
}

// Page mirrors the backend's paged response envelope. Number is 0-based.
type Page[T any] struct {
	Content       []T   `json:"content"`
	TotalElements int64 `json:"totalElements"`
	TotalPages    int   `json:"totalPages"`
	Number        int   `json:"number"`
	Size          int   `json:"size"`
}

type OrderStatus string

const (
	StatusReserved  OrderStatus = "RESERVED"
	StatusPaid      OrderStatus = "PAID"
	StatusCancelled OrderStatus = "CANCELLED"
)

// ErrUnknownStatus is returned when the backend sends a status outside the closed set.
var ErrUnknownStatus = errors.New("unknown order status")

func ParseOrderStatus(s string) (OrderStatus, error) {
	switch OrderStatus(s) {
	case StatusReserved, StatusPaid, StatusCancelled:
		return OrderStatus(s), nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownStatus, s)
}

func (s *OrderStatus) UnmarshalJSON(b []byte) error {
	var raw string
	if err := json.Unmarshal(b, &raw); err != nil {
		return fmt.Errorf("%w: %s", ErrUnknownStatus, string(b))
	}
	st, err := ParseOrderStatus(raw)
	if err != nil {
		return err
	}
	*s = st
	return nil
}

// CheckStatus reports an order whose status is missing or outside the closed set.
func (o *Order) CheckStatus() error {
	if _, err := ParseOrderStatus(string(o.Status)); err != nil {
		return fmt.Errorf("order %d: %w", o.ID, err)
	}
	return nil
}

func (s OrderStatus) Terminal() bool {
	return s == StatusPaid || s == StatusCancelled
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
}

// Timestamp accepts both zoned and zone-less ISO-8601 values; zone-less ones are read as UTC.
type Timestamp struct {
	time.Time
}

func (t *Timestamp) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		t.Time = time.Time{}
		return nil
	}
	for _, layout := range timestampLayouts {
		if parsed, err := time.Parse(layout, s); err == nil {
			t.Time = parsed
			return nil
		}
	}
	return fmt.Errorf("invalid timestamp %q", s)
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.Time.Format(time.RFC3339Nano))
}

// StatusRecord is the last order status observed by the storefront.
type StatusRecord struct {
	OrderID    int64     `gorm:"primaryKey;autoIncrement:false" json:"orderId"`
	Status     string    `gorm:"not null"                       json:"status"`
	ObservedAt time.Time `gorm:"not null"                       json:"observedAt"`
}

func (StatusRecord) TableName() string {
	return "order_statuses"
}
