package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/elastic/go-elasticsearch/v9"

	"github.com/Skotchmaster/grocery_storefront/internal/models"
)

const DefaultIndex = "products"

// NewClient connects to the cluster at addr and checks that it answers.
func NewClient(ctx context.Context, addr, user, password string) (*elasticsearch.Client, error) {
	client, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: []string{addr},
		Username:  user,
		Password:  password,
	})
	if err != nil {
		return nil, fmt.Errorf("elasticsearch client: %w", err)
	}

	res, err := client.Info(client.Info.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("elasticsearch info: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		body, _ := io.ReadAll(res.Body)
		return nil, fmt.Errorf("elasticsearch info: %s: %s", res.Status(), body)
	}
	return client, nil
}

// maxResultWindow is Elasticsearch's default index.max_result_window.
const maxResultWindow = 10000

type Elastic struct {
	Client *elasticsearch.Client
	Index  string
}

func (e *Elastic) index() string {
	if e.Index != "" {
		return e.Index
	}
	return DefaultIndex
}

func (e *Elastic) Search(ctx context.Context, query string, page, size int) (Results, error) {
	q := sanitizeQuery(query)
	if q == "" {
		return Results{}, ErrEmptyQuery
	}

	// pages past the result window only report the total
	from, n := page*size, size
	if size <= 0 || page < 0 || page > (maxResultWindow-size)/size {
		from, n = 0, 0
	}

	body := map[string]any{
		"query": map[string]any{
			"match": map[string]any{
				"name": map[string]any{
					"query":     q,
					"fuzziness": "AUTO",
				},
			},
		},
		"from": from,
		"size": n,
	}
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(body); err != nil {
		return Results{}, fmt.Errorf("encode search: %w", err)
	}

	res, err := e.Client.Search(
		e.Client.Search.WithContext(ctx),
		e.Client.Search.WithIndex(e.index()),
		e.Client.Search.WithBody(&buf),
	)
	if err != nil {
		return Results{}, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	defer res.Body.Close()
	if res.StatusCode == http.StatusNotFound {
		// index not created yet
		return Results{Items: []models.Product{}}, nil
	}
	if res.IsError() {
		return Results{}, fmt.Errorf("%w: %s", ErrUnavailable, res.Status())
	}

	var r struct {
		Hits struct {
			Total struct {
				Value int64 `json:"value"`
			} `json:"total"`
			Hits []struct {
				Source models.Product `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&r); err != nil {
		return Results{}, fmt.Errorf("%w: decode: %w", ErrUnavailable, err)
	}

	items := make([]models.Product, len(r.Hits.Hits))
	for i, hit := range r.Hits.Hits {
		items[i] = hit.Source
	}
	return Results{Total: r.Hits.Total.Value, Items: items}, nil
}

func (e *Elastic) Put(ctx context.Context, p models.Product) error {
	doc, err := json.Marshal(p)
	if err != nil {
		return err
	}
	res, err := e.Client.Index(e.index(), bytes.NewReader(doc),
		e.Client.Index.WithContext(ctx),
		e.Client.Index.WithDocumentID(strconv.FormatInt(p.ID, 10)),
	)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("%w: index product %d: %s", ErrUnavailable, p.ID, res.Status())
	}
	return nil
}

func (e *Elastic) Delete(ctx context.Context, id int64) error {
	res, err := e.Client.Delete(e.index(), strconv.FormatInt(id, 10), e.Client.Delete.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	defer res.Body.Close()
	if res.IsError() && res.StatusCode != http.StatusNotFound {
		return fmt.Errorf("%w: delete product %d: %s", ErrUnavailable, id, res.Status())
	}
	return nil
}
