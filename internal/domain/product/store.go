package product

import (
	"context"
	"errors"
	"strings"

	"github.com/example/ec-admin-sync/internal/liststore"
	"github.com/example/ec-admin-sync/internal/readmodel"
)

// StoreName identifies the products store in logs, metrics and
// real-time dispatch.
const StoreName = "products"

var (
	ErrInvalidName  = errors.New("name is required")
	ErrInvalidPrice = errors.New("price must not be negative")
	ErrInvalidStock = errors.New("stock must not be negative")
)

// Store is the products list
type Store struct {
	*liststore.Store[readmodel.Product]
}

func NewStore(backend liststore.Backend[readmodel.Product], opts liststore.Options) *Store {
	cfg := liststore.Apply(liststore.Config[readmodel.Product]{
		Name:         StoreName,
		Backend:      backend,
		DefaultSort:  "name",
		SearchFields: []string{"name", "description", "sku", "category.name"},
	}, opts)
	return &Store{Store: liststore.New(cfg)}
}

// Validate checks a product before it is sent
func Validate(p readmodel.Product) error {
	if strings.TrimSpace(p.Name) == "" {
		return ErrInvalidName
	}
	if p.Price < 0 {
		return ErrInvalidPrice
	}
	if p.Stock < 0 {
		return ErrInvalidStock
	}
	return nil
}

// Create validates p and adds it
func (s *Store) Create(ctx context.Context, p readmodel.Product) error {
	if err := Validate(p); err != nil {
		s.SetError(err)
		return err
	}
	return s.Add(ctx, p)
}

// LowStock lists products whose stock is at or below threshold
func (s *Store) LowStock(threshold int) []readmodel.Product {
	var out []readmodel.Product
	for _, p := range s.Items() {
		if p.Stock <= threshold {
			out = append(out, p)
		}
	}
	return out
}
