package session

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skotchmaster/grocery_storefront/internal/models"
)

func newManager() *Manager {
	return &Manager{
		Secret:   []byte("test-secret"),
		TTL:      time.Hour,
		Registry: NewRegistry(time.Hour, nil),
	}
}

func TestRegistry_SameBasketPerSession(t *testing.T) {
	r := NewRegistry(time.Hour, nil)
	id := uuid.New()

	a := r.Basket(id)
	b := r.Basket(id)
	assert.Same(t, a, b)
	assert.NotSame(t, a, r.Basket(uuid.New()))
	assert.Equal(t, 2, r.Len())
}

func TestRegistry_EvictsIdle(t *testing.T) {
	r := NewRegistry(time.Hour, nil)
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	r.now = func() time.Time { return now }

	idle := uuid.New()
	busy := uuid.New()
	r.Basket(idle)
	store := r.Basket(busy)
	require.NoError(t, store.Add(models.Product{ID: 1, Name: "Milk"}, 1))
	_, err := store.BeginCheckout()
	require.NoError(t, err)

	now = now.Add(2 * time.Hour)
	assert.Equal(t, 1, r.Evict())
	assert.Equal(t, 1, r.Len())

	store.Abort()
	assert.Equal(t, 1, r.Evict())
	assert.Equal(t, 0, r.Len())
}

func TestRegistry_JanitorStops(t *testing.T) {
	r := NewRegistry(time.Millisecond, nil)
	r.Basket(uuid.New())

	p := r.RunJanitor(context.Background(), 5*time.Millisecond)
	require.Eventually(t, func() bool { return r.Len() == 0 }, time.Second, 5*time.Millisecond)
	p.Stop()
}

func TestManager_IssueParse(t *testing.T) {
	m := newManager()
	id := uuid.New()

	token, exp, err := m.Issue(id)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), exp, time.Minute)

	got, err := m.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, id, got)

	other := &Manager{Secret: []byte("other")}
	_, err = other.Parse(token)
	assert.Error(t, err)

	stale := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{RegisteredClaims: jwt.RegisteredClaims{
		Subject:   id.String(),
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
	}})
	token, err = stale.SignedString(m.Secret)
	require.NoError(t, err)
	_, err = m.Parse(token)
	assert.Error(t, err)
}

func serve(t *testing.T, m *Manager, cookie *http.Cookie) (*httptest.ResponseRecorder, uuid.UUID) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/basket", nil)
	if cookie != nil {
		req.AddCookie(cookie)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	var seen uuid.UUID
	h := m.Middleware(func(c echo.Context) error {
		seen = ID(c)
		require.NotNil(t, BasketFrom(c))
		return c.NoContent(http.StatusOK)
	})
	require.NoError(t, h(c))
	return rec, seen
}

func sessionCookie(t *testing.T, rec *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, ck := range rec.Result().Cookies() {
		if ck.Name == CookieName {
			return ck
		}
	}
	t.Fatal("no session cookie set")
	return nil
}

func TestMiddleware_IssuesAndReusesSession(t *testing.T) {
	m := newManager()

	rec, first := serve(t, m, nil)
	require.NotEqual(t, uuid.Nil, first)
	ck := sessionCookie(t, rec)
	assert.True(t, ck.HttpOnly)

	_, second := serve(t, m, ck)
	assert.Equal(t, first, second)
	assert.Same(t, m.Registry.Basket(first), m.Registry.Basket(second))
}

func TestMiddleware_TamperedCookieStartsNewSession(t *testing.T) {
	m := newManager()

	rec, first := serve(t, m, nil)
	ck := sessionCookie(t, rec)
	ck.Value += "x"

	_, second := serve(t, m, ck)
	assert.NotEqual(t, first, second)
}
