// Package search finds catalog products by name. Elastic serves queries from an
// Elasticsearch index kept in sync with the catalog; Scan filters the catalog directly
// when no cluster is configured.
package search

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/Skotchmaster/grocery_storefront/internal/logging"
	"github.com/Skotchmaster/grocery_storefront/internal/models"
	"github.com/Skotchmaster/grocery_storefront/internal/poller"
)

var (
	ErrEmptyQuery  = errors.New("search query is empty")
	ErrUnavailable = errors.New("search unavailable")
)

type Results struct {
	Total int64            `json:"total"`
	Items []models.Product `json:"products"`
}

// Index is a searchable view of the catalog.
type Index interface {
	Search(ctx context.Context, query string, page, size int) (Results, error)
	Put(ctx context.Context, p models.Product) error
	Delete(ctx context.Context, id int64) error
}

// Catalog lists every product the index should contain.
type Catalog interface {
	AllProducts(ctx context.Context) ([]models.Product, error)
}

func sanitizeQuery(q string) string {
	return strings.TrimSpace(q)
}

// Scan matches names case-insensitively against a fresh catalog read.
type Scan struct {
	Catalog Catalog
}

func (s *Scan) Search(ctx context.Context, query string, page, size int) (Results, error) {
	q := strings.ToLower(sanitizeQuery(query))
	if q == "" {
		return Results{}, ErrEmptyQuery
	}
	products, err := s.Catalog.AllProducts(ctx)
	if err != nil {
		return Results{}, err
	}

	matched := make([]models.Product, 0)
	for _, p := range products {
		if strings.Contains(strings.ToLower(p.Name), q) {
			matched = append(matched, p)
		}
	}

	if size <= 0 || page < 0 || page > len(matched)/size {
		return Results{Total: int64(len(matched)), Items: []models.Product{}}, nil
	}
	from := page * size
	to := min(from+size, len(matched))
	return Results{Total: int64(len(matched)), Items: matched[from:to]}, nil
}

func (s *Scan) Put(context.Context, models.Product) error { return nil }
func (s *Scan) Delete(context.Context, int64) error       { return nil }

// Sync writes every catalog product into idx and returns how many were indexed.
func Sync(ctx context.Context, idx Index, cat Catalog) (int, error) {
	products, err := cat.AllProducts(ctx)
	if err != nil {
		return 0, err
	}
	for _, p := range products {
		if err := idx.Put(ctx, p); err != nil {
			return 0, err
		}
	}
	return len(products), nil
}

// RunSync re-indexes the catalog every interval so products changed outside the
// storefront become searchable.
func RunSync(ctx context.Context, idx Index, cat Catalog, interval time.Duration) *poller.Poller {
	l := logging.FromContext(ctx).With("component", "search_sync")
	return poller.Start(ctx, interval, func(ctx context.Context) bool {
		n, err := Sync(ctx, idx, cat)
		if err != nil {
			if ctx.Err() == nil {
				l.Warn("search_sync_error", "error", err)
			}
			return true
		}
		l.Debug("search_sync_done", "indexed", n)
		return true
	})
}
