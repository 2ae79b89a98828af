// Package auth guards the catalog administration endpoints with an HS256 bearer token
// carrying role=admin.
package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/grocery_storefront/internal/logging"
)

const (
	RoleAdmin = "admin"

	ctxSubject = "admin_subject"
)

type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// SignAdminToken issues a token accepted by AdminOnly, mostly for operators and tests.
func SignAdminToken(subject string, secret []byte, ttl time.Duration) (string, error) {
	claims := Claims{
		Role: RoleAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

func parse(raw string, secret []byte) (*Claims, error) {
	var claims Claims
	tkn, err := jwt.ParseWithClaims(raw, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signature method: %v", t.Header["alg"])
		}
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, err
	}
	if !tkn.Valid {
		return nil, errors.New("invalid token")
	}
	return &claims, nil
}

// AdminOnly rejects requests without a valid admin bearer token. Only unsafe methods
// are checked so the catalog stays readable by shoppers.
func AdminOnly(secret []byte) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			switch c.Request().Method {
			case http.MethodGet, http.MethodHead, http.MethodOptions:
				return next(c)
			}

			l := logging.FromContext(c.Request().Context()).With("middleware", "admin_only")
			header := c.Request().Header.Get(echo.HeaderAuthorization)
			raw, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || raw == "" {
				l.Warn("admin_denied", "status", 401, "reason", "missing bearer token")
				return echo.NewHTTPError(http.StatusUnauthorized, "authorization required")
			}

			claims, err := parse(raw, secret)
			if err != nil {
				l.Warn("admin_denied", "status", 401, "reason", "invalid token", "error", err)
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
			}
			if claims.Role != RoleAdmin {
				l.Warn("admin_denied", "status", 403, "reason", "not an admin", "subject", claims.Subject)
				return echo.NewHTTPError(http.StatusForbidden, "you don't have enough rights")
			}

			c.Set(ctxSubject, claims.Subject)
			return next(c)
		}
	}
}

func Subject(c echo.Context) string {
	s, _ := c.Get(ctxSubject).(string)
	return s
}
