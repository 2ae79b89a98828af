package checkout

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/Skotchmaster/grocery_storefront/internal/backend"
	"github.com/Skotchmaster/grocery_storefront/internal/basket"
	"github.com/Skotchmaster/grocery_storefront/internal/logging"
	"github.com/Skotchmaster/grocery_storefront/internal/metrics"
	"github.com/Skotchmaster/grocery_storefront/internal/models"
	"github.com/Skotchmaster/grocery_storefront/internal/mykafka"
)

// DefaultWindow is how long the backend holds a reservation before cancelling it.
const DefaultWindow = 30 * time.Minute

// ErrProductUnavailable means a basketed product no longer exists in the catalog.
var ErrProductUnavailable = errors.New("product no longer available")

type API interface {
	CreateOrder(ctx context.Context, req models.OrderRequest) (*models.Order, error)
	GetProduct(ctx context.Context, id int64) (*models.Product, error)
}

type Book interface {
	Record(ctx context.Context, orderID int64, status models.OrderStatus) (models.OrderStatus, error)
}

type Service struct {
	API       API
	Book      Book
	Publisher mykafka.Publisher
	Metrics   *metrics.Metrics
	Window    time.Duration
	Now       func() time.Time
}

type Receipt struct {
	Order         *models.Order `json:"order"`
	ReservedUntil time.Time     `json:"reservedUntil"`
	Notice        string        `json:"notice"`
}

// Reconciliation lists what Reconcile changed in the basket.
type Reconciliation struct {
	Removed   []int64 `json:"removed"`
	Refreshed []int64 `json:"refreshed"`
}

func (s *Service) window() time.Duration {
	if s.Window > 0 {
		return s.Window
	}
	return DefaultWindow
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *Service) publish(ctx context.Context, key string, event map[string]any) {
	if s.Publisher == nil {
		return
	}
	if err := s.Publisher.PublishEvent(ctx, key, event); err != nil {
		logging.FromContext(ctx).Warn("publish_event_failed", "type", event["type"], "error", err)
	}
}

// Submit turns the basket into a reserved order. The basket is cleared only after the
// backend confirms the reservation; on any failure it is left exactly as it was.
func (s *Service) Submit(ctx context.Context, store *basket.Store) (*Receipt, error) {
	items, err := store.BeginCheckout()
	if err != nil {
		return nil, err
	}

	req := models.OrderRequest{Items: make([]models.OrderItem, 0, len(items))}
	for _, it := range items {
		req.Items = append(req.Items, models.OrderItem{ProductID: it.Product.ID, Quantity: it.Quantity})
	}

	order, err := s.API.CreateOrder(ctx, req)
	if err == nil && order.Status != models.StatusReserved {
		err = fmt.Errorf("%w: new order %d has status %s", backend.ErrProtocol, order.ID, order.Status)
	}
	if err != nil {
		store.Abort()
		if backend.IsNotFound(err) {
			err = fmt.Errorf("%w: %w", ErrProductUnavailable, err)
		}
		s.Metrics.Submission(err)
		s.publish(ctx, "basket", map[string]any{
			"type":  "order_submission_failed",
			"items": len(req.Items),
			"error": err.Error(),
		})
		return nil, err
	}
	store.Commit()
	s.Metrics.Submission(nil)

	if s.Book != nil {
		if _, err := s.Book.Record(ctx, order.ID, order.Status); err != nil {
			logging.FromContext(ctx).Warn("record_status_failed", "order_id", order.ID, "error", err)
		}
	}

	placed := order.CreatedAt.Time
	if placed.IsZero() {
		placed = s.now()
	}
	until := placed.Add(s.window()).UTC()

	s.publish(ctx, strconv.FormatInt(order.ID, 10), map[string]any{
		"type":          "order_submitted",
		"orderID":       order.ID,
		"items":         len(order.Items),
		"totalPrice":    order.TotalPrice,
		"reservedUntil": until,
	})

	return &Receipt{
		Order:         order,
		ReservedUntil: until,
		Notice: fmt.Sprintf("Order #%d is reserved. Pay within %d minutes or it will be cancelled automatically.",
			order.ID, int(s.window().Minutes())),
	}, nil
}

// Reconcile re-reads every basketed product, refreshing snapshots and dropping the
// products the catalog no longer has.
func (s *Service) Reconcile(ctx context.Context, store *basket.Store) (*Reconciliation, error) {
	res := &Reconciliation{Removed: []int64{}, Refreshed: []int64{}}
	for _, it := range store.Items() {
		id := it.Product.ID
		p, err := s.API.GetProduct(ctx, id)
		switch {
		case backend.IsNotFound(err):
			if err := store.Remove(id); err != nil {
				return res, err
			}
			res.Removed = append(res.Removed, id)
		case err != nil:
			return res, err
		default:
			if err := store.Refresh(*p); err != nil && !errors.Is(err, basket.ErrNotInBasket) {
				return res, err
			}
			res.Refreshed = append(res.Refreshed, id)
		}
	}
	return res, nil
}
