package backend_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skotchmaster/grocery_storefront/internal/backend"
	"github.com/Skotchmaster/grocery_storefront/internal/backend/backendtest"
	"github.com/Skotchmaster/grocery_storefront/internal/models"
)

func TestClient_ProductsAndOrders(t *testing.T) {
	fake := backendtest.New(t)
	apples := fake.AddProduct("Apples", "2.50", 10)
	client := fake.Client()
	ctx := context.Background()

	page, err := client.ListProducts(ctx, 0, 10)
	require.NoError(t, err)
	require.Len(t, page.Content, 1)
	assert.Equal(t, "Apples", page.Content[0].Name)
	assert.Equal(t, "2.5", page.Content[0].PricePerUnit.String())

	order, err := client.CreateOrder(ctx, models.OrderRequest{Items: []models.OrderItem{{ProductID: apples.ID, Quantity: 4}}})
	require.NoError(t, err)
	assert.Equal(t, models.StatusReserved, order.Status)
	assert.Equal(t, "10", order.TotalPrice.String())

	var sent map[string]any
	require.NoError(t, json.Unmarshal(fake.LastBody(http.MethodPost, "/orders"), &sent))
	assert.Equal(t, []any{map[string]any{"productId": float64(apples.ID), "quantity": float64(4)}}, sent["items"])

	paid, err := client.PayOrder(ctx, order.ID, models.PaymentRequest{PaymentMethod: "card", Amount: order.TotalPrice})
	require.NoError(t, err)
	assert.Equal(t, models.StatusPaid, paid.Status)

	require.NoError(t, json.Unmarshal(fake.LastBody(http.MethodPost, "/orders/100/pay"), &sent))
	assert.Equal(t, float64(10), sent["amount"])
}

func TestClient_BusinessRejection(t *testing.T) {
	fake := backendtest.New(t)
	client := fake.Client()

	_, err := client.GetProduct(context.Background(), 99)
	require.Error(t, err)
	assert.True(t, backend.IsNotFound(err))
	assert.Equal(t, "Product not found with id: 99", backend.UserMessage(err))

	fake.FailNext(http.MethodGet, "/products/1", http.StatusInternalServerError, "<html>oops</html>")
	_, err = client.GetProduct(context.Background(), 1)
	var apiErr *backend.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusInternalServerError, apiErr.Status)
	assert.Equal(t, "The request was rejected by the store", backend.UserMessage(err))
}

func TestClient_TransportError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()

	client := backend.NewClient(srv.URL, time.Second)
	_, err := client.GetOrder(context.Background(), 1)
	require.Error(t, err)
	assert.True(t, errors.Is(err, backend.ErrTransport))
	assert.Equal(t, "The store is not reachable right now, please try again", backend.UserMessage(err))
}

func TestClient_ProtocolError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":1,"status":"SHIPPED","totalPrice":1}`))
	}))
	defer srv.Close()

	client := backend.NewClient(srv.URL, time.Second)
	_, err := client.GetOrder(context.Background(), 1)
	require.Error(t, err)
	assert.True(t, errors.Is(err, backend.ErrProtocol))
	assert.True(t, errors.Is(err, models.ErrUnknownStatus))
}

func TestClient_MissingStatusIsProtocolError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if r.URL.Path == "/orders" {
			_, _ = w.Write([]byte(`{"content":[{"id":100,"status":"RESERVED","totalPrice":40},{"id":101,"totalPrice":5}],"totalElements":2,"totalPages":1,"number":0,"size":20}`))
			return
		}
		_, _ = w.Write([]byte(`{"id":100,"totalPrice":40}`))
	}))
	defer srv.Close()
	client := backend.NewClient(srv.URL, time.Second)
	ctx := context.Background()

	order, err := client.GetOrder(ctx, 100)
	require.Error(t, err)
	assert.Nil(t, order)
	assert.True(t, errors.Is(err, backend.ErrProtocol))
	assert.True(t, errors.Is(err, models.ErrUnknownStatus))

	_, err = client.PayOrder(ctx, 100, models.PaymentRequest{PaymentMethod: "card"})
	assert.True(t, errors.Is(err, backend.ErrProtocol))

	_, err = client.ListOrders(ctx, 0, 20, "")
	assert.True(t, errors.Is(err, backend.ErrProtocol))
}

func TestClient_ZonelessTimestamps(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"id":5,"status":"RESERVED","totalPrice":12.40,"createdAt":"2024-03-01T10:15:30.123456","items":[]}`))
	}))
	defer srv.Close()

	order, err := backend.NewClient(srv.URL, time.Second).GetOrder(context.Background(), 5)
	require.NoError(t, err)
	assert.Equal(t, 2024, order.CreatedAt.Year())
	assert.Equal(t, "12.4", order.TotalPrice.String())
	assert.True(t, order.UpdatedAt.IsZero())
}
