// Package lifecycle tracks orders after submission: RESERVED until the shopper pays or
// cancels, or until the backend cancels an unpaid reservation. PAID and CANCELLED are final.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/Skotchmaster/grocery_storefront/internal/logging"
	"github.com/Skotchmaster/grocery_storefront/internal/metrics"
	"github.com/Skotchmaster/grocery_storefront/internal/models"
	"github.com/Skotchmaster/grocery_storefront/internal/mykafka"
	"github.com/Skotchmaster/grocery_storefront/internal/poller"
)

// DefaultInterval is how often a displayed order is re-read.
const DefaultInterval = 15 * time.Second

const (
	ActionPay    = "pay"
	ActionCancel = "cancel"
)

const (
	DefaultPaymentMethod  = "card"
	DefaultPaymentDetails = "**** **** **** 1234"
)

var (
	ErrTransitionNotAllowed = errors.New("action not allowed in current order status")
	ErrStaleState           = errors.New("order status changed")
	ErrActionInProgress     = errors.New("another action on this order is in progress")
)

type API interface {
	GetOrder(ctx context.Context, id int64) (*models.Order, error)
	ListOrders(ctx context.Context, page, size int, sort string) (*models.Page[models.Order], error)
	PayOrder(ctx context.Context, id int64, payment models.PaymentRequest) (*models.Order, error)
	CancelOrder(ctx context.Context, id int64) (*models.Order, error)
}

type Book interface {
	Observed(ctx context.Context, orderID int64) (models.OrderStatus, bool, error)
	Record(ctx context.Context, orderID int64, status models.OrderStatus) (models.OrderStatus, error)
}

// Lock guards an order against concurrent actions from other storefront replicas.
// ok is false when another holder has the order.
type Lock interface {
	Acquire(ctx context.Context, id int64, action string) (release func(), ok bool, err error)
	Holder(ctx context.Context, id int64) (action string, held bool, err error)
}

type Payment struct {
	Method  string
	Details string
}

type Service struct {
	API       API
	Book      Book
	Publisher mykafka.Publisher
	Metrics   *metrics.Metrics
	// Lock is optional; without it actions are serialized per process only.
	Lock Lock

	mu       sync.Mutex
	inflight map[int64]string
}

// Actions lists what the shopper may do with an order in the given status.
func Actions(status models.OrderStatus) []string {
	if status == models.StatusReserved {
		return []string{ActionPay, ActionCancel}
	}
	return []string{}
}

func (s *Service) begin(ctx context.Context, id int64, action string) (func(), error) {
	s.mu.Lock()
	if s.inflight == nil {
		s.inflight = make(map[int64]string)
	}
	if running, ok := s.inflight[id]; ok {
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: %s on order %d", ErrActionInProgress, running, id)
	}
	s.inflight[id] = action
	s.mu.Unlock()

	local := func() {
		s.mu.Lock()
		delete(s.inflight, id)
		s.mu.Unlock()
	}
	if s.Lock == nil {
		return local, nil
	}

	unlock, ok, err := s.Lock.Acquire(ctx, id, action)
	switch {
	case err != nil:
		// fail open: the backend still rejects a second transition
		logging.FromContext(ctx).Warn("order_lock_unavailable", "order_id", id, "error", err)
		return local, nil
	case !ok:
		local()
		return nil, fmt.Errorf("%w: order %d is locked by another storefront", ErrActionInProgress, id)
	}
	return func() {
		unlock()
		local()
	}, nil
}

// InFlight reports the action currently running on an order, here or on another replica.
func (s *Service) InFlight(ctx context.Context, id int64) (string, bool) {
	s.mu.Lock()
	action, ok := s.inflight[id]
	s.mu.Unlock()
	if ok || s.Lock == nil {
		return action, ok
	}
	action, held, err := s.Lock.Holder(ctx, id)
	if err != nil {
		logging.FromContext(ctx).Debug("order_lock_holder_error", "order_id", id, "error", err)
		return "", false
	}
	return action, held
}

// observe records the fetched status and replaces it with the merged one.
func (s *Service) observe(ctx context.Context, order *models.Order) {
	if s.Book == nil {
		return
	}
	st, err := s.Book.Record(ctx, order.ID, order.Status)
	if err != nil {
		logging.FromContext(ctx).Warn("record_status_failed", "order_id", order.ID, "error", err)
		return
	}
	order.Status = st
}

func (s *Service) publish(ctx context.Context, id int64, event map[string]any) {
	if s.Publisher == nil {
		return
	}
	if err := s.Publisher.PublishEvent(ctx, strconv.FormatInt(id, 10), event); err != nil {
		logging.FromContext(ctx).Warn("publish_event_failed", "type", event["type"], "error", err)
	}
}

func (s *Service) Get(ctx context.Context, id int64) (*models.Order, error) {
	order, err := s.API.GetOrder(ctx, id)
	if err != nil {
		return nil, err
	}
	s.observe(ctx, order)
	return order, nil
}

func (s *Service) List(ctx context.Context, page, size int, sort string) (*models.Page[models.Order], error) {
	out, err := s.API.ListOrders(ctx, page, size, sort)
	if err != nil {
		return nil, err
	}
	for i := range out.Content {
		s.observe(ctx, &out.Content[i])
	}
	return out, nil
}

// current returns the order to act on. A terminal status already in the ledger
// rejects the action before anything is sent to the backend.
func (s *Service) current(ctx context.Context, id int64, action string) (*models.Order, error) {
	if s.Book != nil {
		if st, ok, err := s.Book.Observed(ctx, id); err == nil && ok && st.Terminal() {
			return nil, fmt.Errorf("%w: cannot %s order %d in status %s", ErrTransitionNotAllowed, action, id, st)
		}
	}
	order, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if order.Status != models.StatusReserved {
		return order, fmt.Errorf("%w: cannot %s order %d in status %s", ErrTransitionNotAllowed, action, id, order.Status)
	}
	return order, nil
}

// reconcile re-reads an order after a failed action. When the order has moved on,
// the returned error says so instead of only reporting the backend's rejection.
func (s *Service) reconcile(ctx context.Context, id int64, cause error) (*models.Order, error) {
	order, err := s.Get(ctx, id)
	if err != nil {
		logging.FromContext(ctx).Warn("refresh_after_action_failed", "order_id", id, "error", err)
		return nil, cause
	}
	if order.Status.Terminal() {
		return order, fmt.Errorf("%w: order %d is %s: %w", ErrStaleState, id, order.Status, cause)
	}
	return order, cause
}

// Pay settles a reserved order for its total price. On failure the order is re-read and
// returned alongside the error when available.
func (s *Service) Pay(ctx context.Context, id int64, payment Payment) (*models.Order, error) {
	release, err := s.begin(ctx, id, ActionPay)
	if err != nil {
		return nil, err
	}
	defer release()

	order, err := s.current(ctx, id, ActionPay)
	if err != nil {
		return order, err
	}

	if payment.Method == "" {
		payment.Method = DefaultPaymentMethod
	}
	if payment.Details == "" {
		payment.Details = DefaultPaymentDetails
	}

	paid, err := s.API.PayOrder(ctx, id, models.PaymentRequest{
		PaymentMethod:  payment.Method,
		PaymentDetails: payment.Details,
		Amount:         order.TotalPrice,
	})
	s.Metrics.Action(ActionPay, err)
	if err != nil {
		s.publish(ctx, id, map[string]any{"type": "order_payment_failed", "orderID": id, "error": err.Error()})
		return s.reconcile(ctx, id, err)
	}

	s.observe(ctx, paid)
	s.publish(ctx, id, map[string]any{
		"type":       "order_paid",
		"orderID":    id,
		"totalPrice": paid.TotalPrice,
		"method":     payment.Method,
	})
	return paid, nil
}

func (s *Service) Cancel(ctx context.Context, id int64) (*models.Order, error) {
	release, err := s.begin(ctx, id, ActionCancel)
	if err != nil {
		return nil, err
	}
	defer release()

	if _, err := s.current(ctx, id, ActionCancel); err != nil {
		return nil, err
	}

	cancelled, err := s.API.CancelOrder(ctx, id)
	s.Metrics.Action(ActionCancel, err)
	if err != nil {
		s.publish(ctx, id, map[string]any{"type": "order_cancel_failed", "orderID": id, "error": err.Error()})
		return s.reconcile(ctx, id, err)
	}

	s.observe(ctx, cancelled)
	s.publish(ctx, id, map[string]any{"type": "order_cancelled", "orderID": id})
	return cancelled, nil
}

// Watch re-reads an order every interval and hands each result to emit until ctx ends,
// emit returns an error or a final status has been emitted. emit runs on the poller
// goroutine and must not call Stop on the returned poller.
func (s *Service) Watch(ctx context.Context, id int64, interval time.Duration, emit func(*models.Order, error) error) *poller.Poller {
	return poller.Start(ctx, interval, func(ctx context.Context) bool {
		order, err := s.Get(ctx, id)
		if ctx.Err() != nil {
			// torn down while the request was in flight
			return false
		}
		s.Metrics.Refresh(err)
		if emitErr := emit(order, err); emitErr != nil {
			return false
		}
		return err != nil || !order.Status.Terminal()
	})
}

// WatchHistory is Watch for one page of the order history.
func (s *Service) WatchHistory(ctx context.Context, page, size int, sort string, interval time.Duration, emit func(*models.Page[models.Order], error) error) *poller.Poller {
	return poller.Start(ctx, interval, func(ctx context.Context) bool {
		out, err := s.List(ctx, page, size, sort)
		if ctx.Err() != nil {
			return false
		}
		s.Metrics.Refresh(err)
		return emit(out, err) == nil
	})
}
