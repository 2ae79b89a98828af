// Package ledger remembers the last order status the storefront has observed so that
// a displayed status never moves from PAID or CANCELLED back to RESERVED.
package ledger

import (
	"context"
	"errors"
	"sync"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Skotchmaster/grocery_storefront/internal/models"
)

// Merge returns the status to display after observing next when prev was known.
func Merge(prev, next models.OrderStatus) models.OrderStatus {
	if prev.Terminal() {
		return prev
	}
	return next
}

type GormRepo struct {
	DB *gorm.DB
}

func (r *GormRepo) Observed(ctx context.Context, orderID int64) (models.OrderStatus, bool, error) {
	var rec models.StatusRecord
	err := r.DB.WithContext(ctx).Where("order_id = ?", orderID).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	st, err := models.ParseOrderStatus(rec.Status)
	if err != nil {
		return "", false, err
	}
	return st, true, nil
}

func (r *GormRepo) Record(ctx context.Context, orderID int64, status models.OrderStatus) (models.OrderStatus, error) {
	if _, err := models.ParseOrderStatus(string(status)); err != nil {
		return "", err
	}
	effective := status
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		q := tx
		if tx.Dialector.Name() == "postgres" {
			q = tx.Clauses(clause.Locking{Strength: "UPDATE"})
		}
		var rec models.StatusRecord
		err := q.Where("order_id = ?", orderID).First(&rec).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			return tx.Create(&models.StatusRecord{
				OrderID:    orderID,
				Status:     string(status),
				ObservedAt: time.Now().UTC(),
			}).Error
		case err != nil:
			return err
		}

		effective = Merge(models.OrderStatus(rec.Status), status)
		return tx.Model(&rec).Updates(map[string]any{
			"status":      string(effective),
			"observed_at": time.Now().UTC(),
		}).Error
	})
	if err != nil {
		return "", err
	}
	return effective, nil
}

// MemoryBook keeps observations in process memory.
type MemoryBook struct {
	mu       sync.Mutex
	statuses map[int64]models.OrderStatus
}

func NewMemoryBook() *MemoryBook {
	return &MemoryBook{statuses: make(map[int64]models.OrderStatus)}
}

func (m *MemoryBook) Observed(_ context.Context, orderID int64) (models.OrderStatus, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.statuses[orderID]
	return st, ok, nil
}

func (m *MemoryBook) Record(_ context.Context, orderID int64, status models.OrderStatus) (models.OrderStatus, error) {
	if _, err := models.ParseOrderStatus(string(status)); err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	effective := status
	if prev, ok := m.statuses[orderID]; ok {
		effective = Merge(prev, status)
	}
	m.statuses[orderID] = effective
	return effective, nil
}
