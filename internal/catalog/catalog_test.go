package catalog

import (
	"context"
	"net/http"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skotchmaster/grocery_storefront/internal/backend/backendtest"
	"github.com/Skotchmaster/grocery_storefront/internal/models"
)

func TestValidate(t *testing.T) {
	svc := NewService(nil)

	tests := []struct {
		name  string
		in    models.ProductInput
		valid bool
	}{
		{"ok", models.ProductInput{Name: "Milk", PricePerUnit: decimal.RequireFromString("1.20"), StockQuantity: 3}, true},
		{"min price", models.ProductInput{Name: "Gum", PricePerUnit: decimal.RequireFromString("0.01")}, true},
		{"empty name", models.ProductInput{Name: "", PricePerUnit: decimal.NewFromInt(1)}, false},
		{"long name", models.ProductInput{Name: strings.Repeat("x", 51), PricePerUnit: decimal.NewFromInt(1)}, false},
		{"zero price", models.ProductInput{Name: "Free", PricePerUnit: decimal.Zero}, false},
		{"negative stock", models.ProductInput{Name: "Eggs", PricePerUnit: decimal.NewFromInt(2), StockQuantity: -1}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := svc.Validate(tt.in)
			if tt.valid {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrValidation)
			}
		})
	}
}

func TestCreateProduct_InvalidNeverReachesBackend(t *testing.T) {
	fake := backendtest.New(t)
	svc := NewService(fake.Client())

	_, err := svc.CreateProduct(context.Background(), models.ProductInput{Name: "", PricePerUnit: decimal.NewFromInt(1)})
	require.ErrorIs(t, err, ErrValidation)
	assert.Equal(t, 0, fake.Calls(http.MethodPost, "/products"))

	p, err := svc.CreateProduct(context.Background(), models.ProductInput{Name: "Bread", PricePerUnit: decimal.RequireFromString("3.10"), StockQuantity: 7})
	require.NoError(t, err)
	assert.Equal(t, "Bread", p.Name)
	assert.Equal(t, 1, fake.Calls(http.MethodPost, "/products"))
}

func TestProductNames(t *testing.T) {
	fake := backendtest.New(t)
	apples := fake.AddProduct("Apples", "2.50", 10)
	pears := fake.AddProduct("Pears", "3.00", 4)
	svc := NewService(fake.Client())

	names, err := svc.ProductNames(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Apples", names.Name(apples.ID))
	assert.Equal(t, "Pears", names.Name(pears.ID))
	assert.Equal(t, "#42", names.Name(42))
}
