package session

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/grocery_storefront/internal/basket"
	"github.com/Skotchmaster/grocery_storefront/internal/logging"
	"github.com/Skotchmaster/grocery_storefront/internal/metrics"
	"github.com/Skotchmaster/grocery_storefront/internal/poller"
)

const (
	CookieName = "storefrontSession"
	DefaultTTL = 2 * time.Hour

	ctxSessionID = "session_id"
	ctxBasket    = "basket"
)

type entry struct {
	store    *basket.Store
	lastSeen time.Time
}

// Registry owns one basket per session. Baskets live in memory only.
type Registry struct {
	mu      sync.Mutex
	baskets map[uuid.UUID]*entry
	ttl     time.Duration
	metrics *metrics.Metrics
	now     func() time.Time
}

func NewRegistry(ttl time.Duration, m *metrics.Metrics) *Registry {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Registry{
		baskets: make(map[uuid.UUID]*entry),
		ttl:     ttl,
		metrics: m,
		now:     time.Now,
	}
}

// Basket returns the session's basket, creating it on first use.
func (r *Registry) Basket(id uuid.UUID) *basket.Store {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.baskets[id]
	if !ok {
		e = &entry{store: basket.New()}
		r.baskets[id] = e
		r.metrics.SetActiveBaskets(len(r.baskets))
	}
	e.lastSeen = r.now()
	return e.store
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.baskets)
}

// Evict drops baskets idle for longer than the TTL. A basket in the middle of a
// checkout is kept until the checkout finishes.
func (r *Registry) Evict() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	cutoff := r.now().Add(-r.ttl)
	n := 0
	for id, e := range r.baskets {
		if e.lastSeen.Before(cutoff) && !e.store.CheckingOut() {
			delete(r.baskets, id)
			n++
		}
	}
	r.metrics.SetActiveBaskets(len(r.baskets))
	return n
}

// RunJanitor evicts idle sessions every interval until ctx ends or the poller is stopped.
func (r *Registry) RunJanitor(ctx context.Context, interval time.Duration) *poller.Poller {
	l := logging.FromContext(ctx).With("component", "session_janitor")
	return poller.Start(ctx, interval, func(context.Context) bool {
		if n := r.Evict(); n > 0 {
			l.Info("sessions_evicted", "count", n, "active", r.Len())
		}
		return true
	})
}

type Claims struct {
	jwt.RegisteredClaims
}

type Manager struct {
	Secret   []byte
	TTL      time.Duration
	Secure   bool
	Registry *Registry
}

func (m *Manager) ttl() time.Duration {
	if m.TTL > 0 {
		return m.TTL
	}
	return DefaultTTL
}

func (m *Manager) Issue(id uuid.UUID) (string, time.Time, error) {
	now := time.Now()
	exp := now.Add(m.ttl())
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.Secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign session: %w", err)
	}
	return token, exp, nil
}

func (m *Manager) Parse(raw string) (uuid.UUID, error) {
	var claims Claims
	tkn, err := jwt.ParseWithClaims(raw, &claims, func(t *jwt.Token) (any, error) {
		if t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, errors.New("unexpected sign method")
		}
		return m.Secret, nil
	})
	if err != nil {
		return uuid.Nil, err
	}
	if !tkn.Valid {
		return uuid.Nil, errors.New("invalid session token")
	}
	return uuid.Parse(claims.Subject)
}

func CreateCookie(name, value, path string, exp time.Time, secure bool) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     path,
		Expires:  exp,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}
}

func DeleteCookie(name, path string) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     path,
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HttpOnly: true,
	}
}

// Middleware resolves the session from its cookie, starting a new one when the cookie
// is missing, expired or tampered with, and slides the cookie expiry forward.
func (m *Manager) Middleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		id := uuid.Nil
		if cookie, err := c.Cookie(CookieName); err == nil && cookie.Value != "" {
			parsed, err := m.Parse(cookie.Value)
			if err != nil {
				logging.FromContext(c.Request().Context()).Info("session_reset", "reason", "invalid cookie", "error", err)
			} else {
				id = parsed
			}
		}
		if id == uuid.Nil {
			id = uuid.New()
		}

		token, exp, err := m.Issue(id)
		if err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, "cannot start session")
		}
		c.SetCookie(CreateCookie(CookieName, token, "/", exp, m.Secure))

		c.Set(ctxSessionID, id)
		c.Set(ctxBasket, m.Registry.Basket(id))
		return next(c)
	}
}

func ID(c echo.Context) uuid.UUID {
	id, _ := c.Get(ctxSessionID).(uuid.UUID)
	return id
}

// BasketFrom returns the basket attached by Middleware.
func BasketFrom(c echo.Context) *basket.Store {
	store, _ := c.Get(ctxBasket).(*basket.Store)
	return store
}
