package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/Skotchmaster/grocery_storefront/internal/models"
	"github.com/Skotchmaster/grocery_storefront/internal/telemetry"
)

const maxErrorBody = 64 << 10

// Client talks to the grocery backend REST API. It never retries.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	return NewClientWithHTTP(baseURL, &http.Client{
		Timeout: timeout,
		Transport: telemetry.Transport(&http.Transport{
			Proxy:               http.ProxyFromEnvironment,
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
		}),
	})
}

func NewClientWithHTTP(baseURL string, httpClient *http.Client) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
	}
}

func pageQuery(page, size int) url.Values {
	q := url.Values{}
	q.Set("page", strconv.Itoa(page))
	q.Set("size", strconv.Itoa(size))
	return q
}

func (c *Client) ListProducts(ctx context.Context, page, size int) (*models.Page[models.Product], error) {
	var out models.Page[models.Product]
	if err := c.do(ctx, http.MethodGet, "/products", pageQuery(page, size), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) GetProduct(ctx context.Context, id int64) (*models.Product, error) {
	var out models.Product
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/products/%d", id), nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) CreateProduct(ctx context.Context, in models.ProductInput) (*models.Product, error) {
	var out models.Product
	if err := c.do(ctx, http.MethodPost, "/products", nil, in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) UpdateProduct(ctx context.Context, id int64, in models.ProductInput) (*models.Product, error) {
	var out models.Product
	if err := c.do(ctx, http.MethodPut, fmt.Sprintf("/products/%d", id), nil, in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) DeleteProduct(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("/products/%d", id), nil, nil, nil)
}

func (c *Client) CreateOrder(ctx context.Context, req models.OrderRequest) (*models.Order, error) {
	return c.order(ctx, http.MethodPost, "/orders", req)
}

func (c *Client) ListOrders(ctx context.Context, page, size int, sort string) (*models.Page[models.Order], error) {
	q := pageQuery(page, size)
	if sort != "" {
		q.Set("sort", sort)
	}
	var out models.Page[models.Order]
	if err := c.do(ctx, http.MethodGet, "/orders", q, nil, &out); err != nil {
		return nil, err
	}
	for i := range out.Content {
		if err := out.Content[i].CheckStatus(); err != nil {
			return nil, fmt.Errorf("%w: GET /orders: %w", ErrProtocol, err)
		}
	}
	return &out, nil
}

// order decodes an order response. A missing status is a protocol error, not an
// empty state.
func (c *Client) order(ctx context.Context, method, path string, body any) (*models.Order, error) {
	var out models.Order
	if err := c.do(ctx, method, path, nil, body, &out); err != nil {
		return nil, err
	}
	if err := out.CheckStatus(); err != nil {
		return nil, fmt.Errorf("%w: %s %s: %w", ErrProtocol, method, path, err)
	}
	return &out, nil
}

func (c *Client) GetOrder(ctx context.Context, id int64) (*models.Order, error) {
	return c.order(ctx, http.MethodGet, fmt.Sprintf("/orders/%d", id), nil)
}

func (c *Client) PayOrder(ctx context.Context, id int64, payment models.PaymentRequest) (*models.Order, error) {
	return c.order(ctx, http.MethodPost, fmt.Sprintf("/orders/%d/pay", id), payment)
}

func (c *Client) CancelOrder(ctx context.Context, id int64) (*models.Order, error) {
	return c.order(ctx, http.MethodPost, fmt.Sprintf("/orders/%d/cancel", id), nil)
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s %s: %w", ErrTransport, method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &APIError{
			Status:  resp.StatusCode,
			Message: parseErrorBody(raw),
			Method:  method,
			Path:    path,
		}
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode %s %s: %w", ErrProtocol, method, path, err)
	}
	return nil
}
