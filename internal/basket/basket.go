// Package basket holds the shopper's pre-commit cart for one session.
//
// All mutations go through Store so that the one-entry-per-product invariant is
// enforced in a single place. Entries keep their insertion order, which is the
// order used when the basket is turned into an order request.
package basket

import (
	"errors"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/Skotchmaster/grocery_storefront/internal/models"
)

var (
	ErrInvalidQuantity    = errors.New("quantity must be at least 1")
	ErrNotInBasket        = errors.New("product is not in the basket")
	ErrEmptyBasket        = errors.New("basket is empty")
	ErrCheckoutInProgress = errors.New("basket is being checked out")
)

type Item struct {
	Product  models.Product `json:"product"`
	Quantity int            `json:"quantity"`
}

func (i Item) LineTotal() decimal.Decimal {
	return i.Product.PricePerUnit.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

type Store struct {
	mu         sync.Mutex
	items      []Item
	index      map[int64]int
	checkedOut bool
}

func New() *Store {
	return &Store{index: make(map[int64]int)}
}

func (s *Store) Add(product models.Product, quantity int) error {
	if quantity < 1 {
		return ErrInvalidQuantity
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.checkedOut {
		return ErrCheckoutInProgress
	}

	if i, ok := s.index[product.ID]; ok {
		s.items[i].Quantity += quantity
		s.items[i].Product = product
		return nil
	}
	s.index[product.ID] = len(s.items)
	s.items = append(s.items, Item{Product: product, Quantity: quantity})
	return nil
}

func (s *Store) Remove(productID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.checkedOut {
		return ErrCheckoutInProgress
	}

	i, ok := s.index[productID]
	if !ok {
		return nil
	}
	s.items = append(s.items[:i], s.items[i+1:]...)
	s.reindex()
	return nil
}

func (s *Store) SetQuantity(productID int64, quantity int) error {
	if quantity < 1 {
		return ErrInvalidQuantity
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.checkedOut {
		return ErrCheckoutInProgress
	}

	i, ok := s.index[productID]
	if !ok {
		return ErrNotInBasket
	}
	s.items[i].Quantity = quantity
	return nil
}

// Refresh replaces the stored snapshot of a basketed product, keeping its quantity.
func (s *Store) Refresh(product models.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.checkedOut {
		return ErrCheckoutInProgress
	}

	i, ok := s.index[product.ID]
	if !ok {
		return ErrNotInBasket
	}
	s.items[i].Product = product
	return nil
}

func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.checkedOut {
		return ErrCheckoutInProgress
	}
	s.reset()
	return nil
}

func (s *Store) Items() []Item {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Item, len(s.items))
	copy(out, s.items)
	return out
}

func (s *Store) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

func (s *Store) Quantity(productID int64) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i, ok := s.index[productID]; ok {
		return s.items[i].Quantity
	}
	return 0
}

// Total is recomputed from the entries on every call.
func (s *Store) Total() decimal.Decimal {
	s.mu.Lock()
	defer s.mu.Unlock()
	total := decimal.Zero
	for _, it := range s.items {
		total = total.Add(it.LineTotal())
	}
	return total
}

// Remaining is the last known stock of product minus what is already basketed.
// It is a hint for the shopper; the backend decides whether stock suffices.
func (s *Store) Remaining(product models.Product) int {
	left := product.StockQuantity - s.Quantity(product.ID)
	if left < 0 {
		return 0
	}
	return left
}

func (s *Store) CheckingOut() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.checkedOut
}

// BeginCheckout locks the basket and returns the entries to submit. Until Commit or
// Abort is called every mutation and any second checkout is rejected.
func (s *Store) BeginCheckout() ([]Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.checkedOut {
		return nil, ErrCheckoutInProgress
	}
	if len(s.items) == 0 {
		return nil, ErrEmptyBasket
	}
	s.checkedOut = true
	out := make([]Item, len(s.items))
	copy(out, s.items)
	return out, nil
}

// Commit empties the basket after a confirmed order and releases the lock.
func (s *Store) Commit() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reset()
	s.checkedOut = false
}

// Abort releases the lock and leaves the entries as they were.
func (s *Store) Abort() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.checkedOut = false
}

func (s *Store) reset() {
	s.items = nil
	s.index = make(map[int64]int)
}

func (s *Store) reindex() {
	s.index = make(map[int64]int, len(s.items))
	for i, it := range s.items {
		s.index[it.Product.ID] = i
	}
}
