package basket

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skotchmaster/grocery_storefront/internal/models"
)

func product(id int64, price string, stock int) models.Product {
	return models.Product{
		ID:            id,
		Name:          "product",
		PricePerUnit:  decimal.RequireFromString(price),
		StockQuantity: stock,
	}
}

func TestStore_AddSumsExistingEntry(t *testing.T) {
	s := New()
	p := product(1, "10", 100)

	require.NoError(t, s.Add(p, 2))
	require.NoError(t, s.Add(p, 3))

	items := s.Items()
	require.Len(t, items, 1)
	assert.Equal(t, 5, items[0].Quantity)
}

func TestStore_AddRejectsNonPositiveQuantity(t *testing.T) {
	s := New()

	for _, q := range []int{0, -1} {
		err := s.Add(product(1, "1", 1), q)
		assert.ErrorIs(t, err, ErrInvalidQuantity)
	}
	assert.Equal(t, 0, s.Count())
}

func TestStore_AddKeepsLatestSnapshot(t *testing.T) {
	s := New()
	require.NoError(t, s.Add(product(1, "10", 5), 1))
	require.NoError(t, s.Add(product(1, "12", 3), 1))

	items := s.Items()
	require.Len(t, items, 1)
	assert.True(t, items[0].Product.PricePerUnit.Equal(decimal.NewFromInt(12)))
	assert.Equal(t, 2, items[0].Quantity)
}

func TestStore_NeverHoldsDuplicateProducts(t *testing.T) {
	s := New()
	ops := []func(){
		func() { _ = s.Add(product(1, "1", 10), 1) },
		func() { _ = s.Add(product(2, "1", 10), 2) },
		func() { _ = s.Add(product(1, "1", 10), 4) },
		func() { _ = s.SetQuantity(2, 7) },
		func() { _ = s.Remove(1) },
		func() { _ = s.Add(product(1, "1", 10), 1) },
		func() { _ = s.Add(product(3, "1", 10), 1) },
		func() { _ = s.Add(product(2, "1", 10), 1) },
		func() { _ = s.Remove(99) },
	}

	for _, op := range ops {
		op()
		seen := map[int64]bool{}
		for _, it := range s.Items() {
			require.False(t, seen[it.Product.ID], "duplicate entry for %d", it.Product.ID)
			require.GreaterOrEqual(t, it.Quantity, 1)
			seen[it.Product.ID] = true
		}
	}

	ids := []int64{}
	for _, it := range s.Items() {
		ids = append(ids, it.Product.ID)
	}
	assert.Equal(t, []int64{2, 1, 3}, ids)
	assert.Equal(t, 8, s.Quantity(2))
}

func TestStore_SetQuantityIsLastWriteWins(t *testing.T) {
	s := New()
	require.NoError(t, s.Add(product(1, "1", 10), 1))

	require.NoError(t, s.SetQuantity(1, 5))
	require.NoError(t, s.SetQuantity(1, 3))

	assert.Equal(t, 3, s.Quantity(1))
}

func TestStore_SetQuantityErrors(t *testing.T) {
	s := New()
	require.NoError(t, s.Add(product(1, "1", 10), 2))

	assert.ErrorIs(t, s.SetQuantity(1, 0), ErrInvalidQuantity)
	assert.ErrorIs(t, s.SetQuantity(2, 3), ErrNotInBasket)
	assert.Equal(t, 2, s.Quantity(1))
}

func TestStore_RemoveAbsentIsNoop(t *testing.T) {
	s := New()
	require.NoError(t, s.Add(product(1, "1", 10), 1))

	require.NoError(t, s.Remove(42))
	assert.Equal(t, 1, s.Count())

	require.NoError(t, s.Remove(1))
	assert.Equal(t, 0, s.Count())
	assert.Equal(t, 0, s.Quantity(1))
}

func TestStore_TotalIsRecomputed(t *testing.T) {
	s := New()
	require.NoError(t, s.Add(product(1, "10", 10), 2))
	require.NoError(t, s.Add(product(2, "5", 10), 3))
	assert.True(t, s.Total().Equal(decimal.NewFromInt(35)), s.Total().String())

	require.NoError(t, s.SetQuantity(2, 1))
	assert.True(t, s.Total().Equal(decimal.NewFromInt(25)), s.Total().String())

	require.NoError(t, s.Remove(1))
	assert.True(t, s.Total().Equal(decimal.NewFromInt(5)), s.Total().String())

	require.NoError(t, s.Clear())
	assert.True(t, s.Total().IsZero())
}

func TestStore_TotalKeepsCents(t *testing.T) {
	s := New()
	require.NoError(t, s.Add(product(1, "0.10", 10), 3))

	assert.Equal(t, "0.3", s.Total().String())
}

func TestStore_Remaining(t *testing.T) {
	s := New()
	p := product(1, "1", 5)
	assert.Equal(t, 5, s.Remaining(p))

	require.NoError(t, s.Add(p, 4))
	assert.Equal(t, 1, s.Remaining(p))

	require.NoError(t, s.SetQuantity(1, 9))
	assert.Equal(t, 0, s.Remaining(p))
}

func TestStore_CheckoutLock(t *testing.T) {
	s := New()
	_, err := s.BeginCheckout()
	require.ErrorIs(t, err, ErrEmptyBasket)

	require.NoError(t, s.Add(product(1, "1", 10), 2))
	snapshot, err := s.BeginCheckout()
	require.NoError(t, err)
	require.Len(t, snapshot, 1)
	assert.True(t, s.CheckingOut())

	_, err = s.BeginCheckout()
	assert.ErrorIs(t, err, ErrCheckoutInProgress)
	assert.ErrorIs(t, s.Add(product(2, "1", 1), 1), ErrCheckoutInProgress)
	assert.ErrorIs(t, s.SetQuantity(1, 5), ErrCheckoutInProgress)
	assert.ErrorIs(t, s.Remove(1), ErrCheckoutInProgress)
	assert.ErrorIs(t, s.Clear(), ErrCheckoutInProgress)

	s.Abort()
	assert.False(t, s.CheckingOut())
	assert.Equal(t, snapshot, s.Items())

	_, err = s.BeginCheckout()
	require.NoError(t, err)
	s.Commit()
	assert.Equal(t, 0, s.Count())
	require.NoError(t, s.Add(product(3, "1", 1), 1))
}

func TestStore_ItemsReturnsCopy(t *testing.T) {
	s := New()
	require.NoError(t, s.Add(product(1, "1", 10), 1))

	items := s.Items()
	items[0].Quantity = 99

	assert.Equal(t, 1, s.Quantity(1))
}
