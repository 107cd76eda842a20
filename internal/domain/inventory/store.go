package inventory

import (
	"context"
	"errors"
	"fmt"

	"github.com/example/ec-admin-sync/internal/liststore"
	"github.com/example/ec-admin-sync/internal/readmodel"
	"github.com/example/ec-admin-sync/internal/resource"
)

const (
	StoreName       = "inventory"
	OrdersStoreName = "inventory-orders"
)

// Stock order statuses
const (
	StockOrderPending  = "PENDING"
	StockOrderReceived = "RECEIVED"
	StockOrderCanceled = "CANCELED"
)

var (
	ErrInvalidQuantity = errors.New("quantity must be positive")
	ErrInvalidProduct  = errors.New("product is required")
	ErrInvalidStatus   = errors.New("invalid stock order status")
)

// Store is the stock level list. Product fields are searched and sorted
// through their dotted paths.
type Store struct {
	*liststore.Store[readmodel.InventoryItem]
}

func NewStore(backend liststore.Backend[readmodel.InventoryItem], opts liststore.Options) *Store {
	cfg := liststore.Apply(liststore.Config[readmodel.InventoryItem]{
		Name:         StoreName,
		Backend:      backend,
		DefaultSort:  "product.name",
		SearchFields: []string{"product.name", "product.sku", "location"},
	}, opts)
	return &Store{Store: liststore.New(cfg)}
}

// Available returns the stocked quantity of a product, 0 when unknown
func (s *Store) Available(productID string) int {
	total := 0
	for _, it := range s.Items() {
		if it.Product.ID == productID {
			total += it.Quantity
		}
	}
	return total
}

// BelowThreshold lists items whose quantity is at or below threshold
func (s *Store) BelowThreshold(threshold int) []readmodel.InventoryItem {
	var out []readmodel.InventoryItem
	for _, it := range s.Items() {
		if it.Quantity <= threshold {
			out = append(out, it)
		}
	}
	return out
}

// OrdersBackend is the stock order resource. *resource.InventoryResource
// provides UpdateOrderStatus; its Orders field provides the rest.
type OrdersBackend interface {
	liststore.Backend[readmodel.InventoryOrder]
	UpdateStatus(ctx context.Context, id, status string) resource.Result[*readmodel.InventoryOrder]
}

// OrdersBinding adapts *resource.InventoryResource to OrdersBackend
type OrdersBinding struct {
	*resource.Collection[readmodel.InventoryOrder]
	Resource *resource.InventoryResource
}

func NewOrdersBinding(r *resource.InventoryResource) OrdersBinding {
	return OrdersBinding{Collection: r.Orders, Resource: r}
}

func (b OrdersBinding) UpdateStatus(ctx context.Context, id, status string) resource.Result[*readmodel.InventoryOrder] {
	return b.Resource.UpdateOrderStatus(ctx, id, status)
}

// OrdersStore is the stock replenishment order list
type OrdersStore struct {
	*liststore.Store[readmodel.InventoryOrder]
	backend OrdersBackend
}

func NewOrdersStore(backend OrdersBackend, opts liststore.Options) *OrdersStore {
	cfg := liststore.Apply(liststore.Config[readmodel.InventoryOrder]{
		Name:         OrdersStoreName,
		Backend:      backend,
		DefaultSort:  "createdAt",
		SearchFields: []string{"product.name", "supplier", "status"},
	}, opts)
	return &OrdersStore{Store: liststore.New(cfg), backend: backend}
}

// Create validates and places a stock order
func (s *OrdersStore) Create(ctx context.Context, o readmodel.InventoryOrder) error {
	switch {
	case o.Product.ID == "":
		s.SetError(ErrInvalidProduct)
		return ErrInvalidProduct
	case o.Quantity <= 0:
		s.SetError(ErrInvalidQuantity)
		return ErrInvalidQuantity
	}
	if o.Status == "" {
		o.Status = StockOrderPending
	}
	return s.Add(ctx, o)
}

// UpdateStatus moves a stock order to status
func (s *OrdersStore) UpdateStatus(ctx context.Context, id, status string) error {
	switch status {
	case StockOrderPending, StockOrderReceived, StockOrderCanceled:
	default:
		err := fmt.Errorf("%w: %q", ErrInvalidStatus, status)
		s.SetError(err)
		return err
	}

	defer s.Track()()
	res := s.backend.UpdateStatus(ctx, id, status)
	if err := res.Err(); err != nil {
		s.SetError(err)
		return err
	}
	if updated := res.Value(); updated != nil && s.Replace(id, *updated) {
		s.ClearError()
		return nil
	}
	return s.Fetch(ctx)
}

// Pending lists the stock orders not yet received or canceled
func (s *OrdersStore) Pending() []readmodel.InventoryOrder {
	var out []readmodel.InventoryOrder
	for _, o := range s.Items() {
		if o.Status == StockOrderPending {
			out = append(out, o)
		}
	}
	return out
}
