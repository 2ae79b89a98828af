// Package backendtest serves an in-memory grocery backend over httptest for package tests.
package backendtest

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	"github.com/Skotchmaster/grocery_storefront/internal/backend"
	"github.com/Skotchmaster/grocery_storefront/internal/models"
)

type failure struct {
	status int
	body   string
}

type Fake struct {
	Server *httptest.Server

	mu            sync.Mutex
	products      map[int64]models.Product
	orders        map[int64]models.Order
	nextProductID int64
	nextOrderID   int64
	failures      map[string][]failure
	holds         map[string]chan struct{}
	calls         map[string]int
	lastBodies    map[string][]byte
}

func New(t *testing.T) *Fake {
	t.Helper()
	f := &Fake{
		products:      make(map[int64]models.Product),
		orders:        make(map[int64]models.Order),
		nextProductID: 1,
		nextOrderID:   100,
		failures:      make(map[string][]failure),
		holds:         make(map[string]chan struct{}),
		calls:         make(map[string]int),
		lastBodies:    make(map[string][]byte),
	}

	e := echo.New()
	e.HideBanner = true
	e.Use(f.intercept)
	e.GET("/products", f.listProducts)
	e.POST("/products", f.createProduct)
	e.GET("/products/:id", f.getProduct)
	e.PUT("/products/:id", f.updateProduct)
	e.DELETE("/products/:id", f.deleteProduct)
	e.GET("/orders", f.listOrders)
	e.POST("/orders", f.createOrder)
	e.GET("/orders/:id", f.getOrder)
	e.POST("/orders/:id/pay", f.payOrder)
	e.POST("/orders/:id/cancel", f.cancelOrder)

	f.Server = httptest.NewServer(e)
	t.Cleanup(f.Server.Close)
	return f
}

func (f *Fake) Client() *backend.Client {
	return backend.NewClientWithHTTP(f.Server.URL, f.Server.Client())
}

func key(method, path string) string { return method + " " + path }

// FailNext makes the next call to method+path answer with status and body.
func (f *Fake) FailNext(method, path string, status int, body string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	k := key(method, path)
	f.failures[k] = append(f.failures[k], failure{status: status, body: body})
}

// Hold blocks calls to method+path until the returned release func is called.
func (f *Fake) Hold(method, path string) (release func()) {
	ch := make(chan struct{})
	f.mu.Lock()
	f.holds[key(method, path)] = ch
	f.mu.Unlock()
	var once sync.Once
	return func() {
		once.Do(func() {
			f.mu.Lock()
			delete(f.holds, key(method, path))
			f.mu.Unlock()
			close(ch)
		})
	}
}

func (f *Fake) Calls(method, path string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[key(method, path)]
}

// LastBody returns the last request body sent to method+path.
func (f *Fake) LastBody(method, path string) []byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastBodies[key(method, path)]
}

func (f *Fake) AddProduct(name, price string, stock int) models.Product {
	f.mu.Lock()
	defer f.mu.Unlock()
	now := models.Timestamp{Time: time.Now().UTC()}
	p := models.Product{
		ID:            f.nextProductID,
		Name:          name,
		PricePerUnit:  decimal.RequireFromString(price),
		StockQuantity: stock,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	f.products[p.ID] = p
	f.nextProductID++
	return p
}

func (f *Fake) RemoveProduct(id int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.products, id)
}

func (f *Fake) Product(id int64) (models.Product, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.products[id]
	return p, ok
}

// SetOrderStatus changes an order behind the storefront's back, e.g. a reservation expiring.
func (f *Fake) SetOrderStatus(id int64, status models.OrderStatus) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if o, ok := f.orders[id]; ok {
		o.Status = status
		o.UpdatedAt = models.Timestamp{Time: time.Now().UTC()}
		f.orders[id] = o
	}
}

func (f *Fake) Order(id int64) (models.Order, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.orders[id]
	return o, ok
}

func (f *Fake) intercept(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		req := c.Request()
		k := key(req.Method, req.URL.Path)

		var body []byte
		if req.Body != nil {
			body, _ = io.ReadAll(req.Body)
			req.Body = http.NoBody
		}
		c.Set("body", body)

		f.mu.Lock()
		f.calls[k]++
		f.lastBodies[k] = body
		hold := f.holds[k]
		var fail *failure
		if queue := f.failures[k]; len(queue) > 0 {
			fail = &queue[0]
			f.failures[k] = queue[1:]
		}
		f.mu.Unlock()

		if hold != nil {
			select {
			case <-hold:
			case <-req.Context().Done():
				return req.Context().Err()
			}
		}
		if fail != nil {
			return c.String(fail.status, fail.body)
		}
		return next(c)
	}
}

func messageJSON(c echo.Context, status int, msg string) error {
	return c.JSON(status, map[string]string{"message": msg})
}

func pathID(c echo.Context) (int64, error) {
	return strconv.ParseInt(c.Param("id"), 10, 64)
}

func paginate[T any](items []T, c echo.Context) models.Page[T] {
	page, _ := strconv.Atoi(c.QueryParam("page"))
	size, err := strconv.Atoi(c.QueryParam("size"))
	if err != nil || size <= 0 {
		size = 20
	}
	total := len(items)
	from := page * size
	if from > total {
		from = total
	}
	to := from + size
	if to > total {
		to = total
	}
	return models.Page[T]{
		Content:       items[from:to],
		TotalElements: int64(total),
		TotalPages:    (total + size - 1) / size,
		Number:        page,
		Size:          size,
	}
}

func (f *Fake) listProducts(c echo.Context) error {
	f.mu.Lock()
	items := make([]models.Product, 0, len(f.products))
	for _, p := range f.products {
		items = append(items, p)
	}
	f.mu.Unlock()
	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })
	return c.JSON(http.StatusOK, paginate(items, c))
}

func (f *Fake) getProduct(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return messageJSON(c, http.StatusBadRequest, "bad id")
	}
	p, ok := f.Product(id)
	if !ok {
		return messageJSON(c, http.StatusNotFound, fmt.Sprintf("Product not found with id: %d", id))
	}
	return c.JSON(http.StatusOK, p)
}

func bindBody(c echo.Context, out any) error {
	raw, _ := c.Get("body").([]byte)
	if len(raw) == 0 {
		return io.ErrUnexpectedEOF
	}
	return json.Unmarshal(raw, out)
}

func (f *Fake) createProduct(c echo.Context) error {
	var in models.ProductInput
	if err := bindBody(c, &in); err != nil {
		return messageJSON(c, http.StatusBadRequest, "invalid body")
	}
	p := f.AddProduct(in.Name, in.PricePerUnit.String(), in.StockQuantity)
	return c.JSON(http.StatusCreated, p)
}

func (f *Fake) updateProduct(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return messageJSON(c, http.StatusBadRequest, "bad id")
	}
	var in models.ProductInput
	if err := bindBody(c, &in); err != nil {
		return messageJSON(c, http.StatusBadRequest, "invalid body")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.products[id]
	if !ok {
		return messageJSON(c, http.StatusNotFound, fmt.Sprintf("Product not found with id: %d", id))
	}
	p.Name = in.Name
	p.PricePerUnit = in.PricePerUnit
	p.StockQuantity = in.StockQuantity
	p.UpdatedAt = models.Timestamp{Time: time.Now().UTC()}
	f.products[id] = p
	return c.JSON(http.StatusOK, p)
}

func (f *Fake) deleteProduct(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return messageJSON(c, http.StatusBadRequest, "bad id")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.products[id]; !ok {
		return messageJSON(c, http.StatusNotFound, fmt.Sprintf("Product not found with id: %d", id))
	}
	delete(f.products, id)
	return c.NoContent(http.StatusNoContent)
}

func (f *Fake) listOrders(c echo.Context) error {
	f.mu.Lock()
	items := make([]models.Order, 0, len(f.orders))
	for _, o := range f.orders {
		items = append(items, o)
	}
	f.mu.Unlock()
	sort.Slice(items, func(i, j int) bool { return items[i].ID > items[j].ID })
	return c.JSON(http.StatusOK, paginate(items, c))
}

func (f *Fake) createOrder(c echo.Context) error {
	var req models.OrderRequest
	if err := bindBody(c, &req); err != nil || len(req.Items) == 0 {
		return messageJSON(c, http.StatusBadRequest, "Order must contain items")
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	total := decimal.Zero
	for _, it := range req.Items {
		p, ok := f.products[it.ProductID]
		if !ok {
			return messageJSON(c, http.StatusNotFound, fmt.Sprintf("Product not found with id: %d", it.ProductID))
		}
		if p.StockQuantity < it.Quantity {
			return messageJSON(c, http.StatusBadRequest, fmt.Sprintf("Insufficient stock for product: %s", p.Name))
		}
		total = total.Add(p.PricePerUnit.Mul(decimal.NewFromInt(int64(it.Quantity))))
	}
	for _, it := range req.Items {
		p := f.products[it.ProductID]
		p.StockQuantity -= it.Quantity
		f.products[it.ProductID] = p
	}

	now := models.Timestamp{Time: time.Now().UTC()}
	o := models.Order{
		ID:         f.nextOrderID,
		CreatedAt:  now,
		UpdatedAt:  now,
		Items:      append([]models.OrderItem(nil), req.Items...),
		Status:     models.StatusReserved,
		TotalPrice: total,
	}
	f.orders[o.ID] = o
	f.nextOrderID++
	return c.JSON(http.StatusCreated, o)
}

func (f *Fake) getOrder(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return messageJSON(c, http.StatusBadRequest, "bad id")
	}
	o, ok := f.Order(id)
	if !ok {
		return messageJSON(c, http.StatusNotFound, fmt.Sprintf("Order not found with id: %d", id))
	}
	return c.JSON(http.StatusOK, o)
}

func (f *Fake) transition(c echo.Context, to models.OrderStatus) error {
	id, err := pathID(c)
	if err != nil {
		return messageJSON(c, http.StatusBadRequest, "bad id")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.orders[id]
	if !ok {
		return messageJSON(c, http.StatusNotFound, fmt.Sprintf("Order not found with id: %d", id))
	}
	if o.Status != models.StatusReserved {
		return messageJSON(c, http.StatusBadRequest, fmt.Sprintf("Order is not in RESERVED status: %s", o.Status))
	}
	if to == models.StatusCancelled {
		for _, it := range o.Items {
			if p, ok := f.products[it.ProductID]; ok {
				p.StockQuantity += it.Quantity
				f.products[it.ProductID] = p
			}
		}
	}
	o.Status = to
	o.UpdatedAt = models.Timestamp{Time: time.Now().UTC()}
	f.orders[id] = o
	return c.JSON(http.StatusOK, o)
}

func (f *Fake) payOrder(c echo.Context) error {
	var pay models.PaymentRequest
	if err := bindBody(c, &pay); err != nil {
		return messageJSON(c, http.StatusBadRequest, "invalid payment")
	}
	return f.transition(c, models.StatusPaid)
}

func (f *Fake) cancelOrder(c echo.Context) error {
	return f.transition(c, models.StatusCancelled)
}
