package catalog

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/Skotchmaster/grocery_storefront/internal/models"
)

var ErrValidation = errors.New("validation")

// namesPageSize is the single large page used to resolve product names and to
// feed the search index.
const namesPageSize = 1000

var minPrice = decimal.RequireFromString("0.01")

type API interface {
	ListProducts(ctx context.Context, page, size int) (*models.Page[models.Product], error)
	GetProduct(ctx context.Context, id int64) (*models.Product, error)
	CreateProduct(ctx context.Context, in models.ProductInput) (*models.Product, error)
	UpdateProduct(ctx context.Context, id int64, in models.ProductInput) (*models.Product, error)
	DeleteProduct(ctx context.Context, id int64) error
}

type Service struct {
	API      API
	validate *validator.Validate
}

func NewService(api API) *Service {
	return &Service{API: api, validate: validator.New(validator.WithRequiredStructEnabled())}
}

// Validate checks a product form before it is sent anywhere.
func (s *Service) Validate(in models.ProductInput) error {
	if err := s.validate.Struct(in); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return fmt.Errorf("%w: %s failed on %s", ErrValidation, verrs[0].Field(), verrs[0].Tag())
		}
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}
	if in.PricePerUnit.LessThan(minPrice) {
		return fmt.Errorf("%w: pricePerUnit must be at least %s", ErrValidation, minPrice)
	}
	return nil
}

func (s *Service) ListProducts(ctx context.Context, page, size int) (*models.Page[models.Product], error) {
	return s.API.ListProducts(ctx, page, size)
}

func (s *Service) GetProduct(ctx context.Context, id int64) (*models.Product, error) {
	return s.API.GetProduct(ctx, id)
}

func (s *Service) CreateProduct(ctx context.Context, in models.ProductInput) (*models.Product, error) {
	if err := s.Validate(in); err != nil {
		return nil, err
	}
	return s.API.CreateProduct(ctx, in)
}

func (s *Service) UpdateProduct(ctx context.Context, id int64, in models.ProductInput) (*models.Product, error) {
	if err := s.Validate(in); err != nil {
		return nil, err
	}
	return s.API.UpdateProduct(ctx, id, in)
}

func (s *Service) DeleteProduct(ctx context.Context, id int64) error {
	return s.API.DeleteProduct(ctx, id)
}

// Names maps product ids to display names.
type Names map[int64]string

// Name falls back to "#<id>" for products the catalog no longer lists.
func (n Names) Name(id int64) string {
	if name, ok := n[id]; ok {
		return name
	}
	return "#" + strconv.FormatInt(id, 10)
}

// AllProducts reads the catalog in one large page.
func (s *Service) AllProducts(ctx context.Context) ([]models.Product, error) {
	page, err := s.API.ListProducts(ctx, 0, namesPageSize)
	if err != nil {
		return nil, err
	}
	return page.Content, nil
}

func (s *Service) ProductNames(ctx context.Context) (Names, error) {
	products, err := s.AllProducts(ctx)
	if err != nil {
		return nil, err
	}
	names := make(Names, len(products))
	for _, p := range products {
		names[p.ID] = p.Name
	}
	return names, nil
}
