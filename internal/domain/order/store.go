package order

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/example/ec-admin-sync/internal/liststore"
	"github.com/example/ec-admin-sync/internal/notification"
	"github.com/example/ec-admin-sync/internal/readmodel"
	"github.com/example/ec-admin-sync/internal/resource"
)

// StoreName identifies the orders ("workflow") store
const StoreName = "orders"

// FilterAll disables the status filter
const FilterAll = "all"

var (
	ErrOrderNotFound     = errors.New("order not found")
	ErrInvalidStatus     = errors.New("invalid order status transition")
	ErrInvalidFilter     = errors.New("unknown status filter")
	ErrInsufficientStock = errors.New("insufficient stock")
)

// validTransitions defines which statuses an order can move to
var validTransitions = map[string][]string{
	readmodel.OrderStatusPending:   {readmodel.OrderStatusConfirmed, readmodel.OrderStatusCanceled},
	readmodel.OrderStatusConfirmed: {}, // terminal state
	readmodel.OrderStatusCanceled:  {}, // terminal state
}

// CanTransition reports whether an order in status from may move to target.
// Orders without a status are treated as pending.
func CanTransition(from, target string) bool {
	if from == "" {
		from = readmodel.OrderStatusPending
	}
	for _, s := range validTransitions[from] {
		if s == target {
			return true
		}
	}
	return false
}

// Shortage is one order line that cannot be served from stock
type Shortage struct {
	ProductID string
	Name      string
	Needed    int
	Stocked   int
}

// StockError lists the lines that block an approval
type StockError struct {
	OrderID   string
	Shortages []Shortage
}

func (e *StockError) Error() string {
	names := make([]string, 0, len(e.Shortages))
	for _, s := range e.Shortages {
		names = append(names, fmt.Sprintf("%s (needs %d, %d in stock)", s.Name, s.Needed, s.Stocked))
	}
	return "insufficient stock for " + strings.Join(names, ", ")
}

func (e *StockError) Unwrap() error { return ErrInsufficientStock }

// CheckStock returns a *StockError when any line of a SELL order needs more
// than the stock embedded in the order. Other order types always pass.
func CheckStock(o readmodel.Order) error {
	if o.OrderType != readmodel.OrderTypeSell {
		return nil
	}
	var short []Shortage
	for _, it := range o.Items {
		if it.StockedQuantity >= it.NeedQuantity {
			continue
		}
		name := it.ProductID
		if it.Product != nil && it.Product.Name != "" {
			name = it.Product.Name
		}
		short = append(short, Shortage{
			ProductID: it.ProductID,
			Name:      name,
			Needed:    it.NeedQuantity,
			Stocked:   it.StockedQuantity,
		})
	}
	if len(short) == 0 {
		return nil
	}
	return &StockError{OrderID: o.ID, Shortages: short}
}

// Backend is the orders resource including its workflow transitions.
// *resource.OrdersResource satisfies it.
type Backend interface {
	liststore.Backend[readmodel.Order]
	Confirm(ctx context.Context, id string) resource.Result[readmodel.OrderStatusResponse]
	Cancel(ctx context.Context, id string) resource.Result[readmodel.OrderStatusResponse]
}

// Store is the orders list with a status filter and a selected order
type Store struct {
	*liststore.Store[readmodel.Order]
	backend  Backend
	notifier notification.Notifier

	mu       sync.RWMutex
	filter   string
	selected string
}

func NewStore(backend Backend, opts liststore.Options) *Store {
	cfg := liststore.Apply(liststore.Config[readmodel.Order]{
		Name:               StoreName,
		Backend:            backend,
		DefaultSort:        "createdAt",
		SearchFields:       []string{"id", "customer", "status", "orderType", "items.#.product.name"},
		RefetchAfterRemove: true,
	}, opts)

	notifier := opts.Notifier
	if notifier == nil {
		notifier = notification.Discard
	}
	return &Store{
		Store:    liststore.New(cfg),
		backend:  backend,
		notifier: notifier,
		filter:   FilterAll,
	}
}

// SetStatusFilter narrows the list to one status, or FilterAll
func (s *Store) SetStatusFilter(status string) error {
	status = strings.ToUpper(status)
	switch status {
	case strings.ToUpper(FilterAll):
		s.mu.Lock()
		s.filter = FilterAll
		s.mu.Unlock()
		s.SetScope(nil)
		return nil
	case readmodel.OrderStatusPending, readmodel.OrderStatusConfirmed, readmodel.OrderStatusCanceled:
		s.mu.Lock()
		s.filter = status
		s.mu.Unlock()
		s.SetScope(func(o readmodel.Order) bool { return o.Status == status })
		return nil
	}
	return fmt.Errorf("%w: %q", ErrInvalidFilter, status)
}

func (s *Store) StatusFilter() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.filter
}

// Approve confirms a pending order. A SELL order whose lines are not covered
// by stock is rejected here and never reaches the backend.
func (s *Store) Approve(ctx context.Context, id string) error {
	o, ok := s.Find(id)
	if !ok {
		s.SetError(ErrOrderNotFound)
		return ErrOrderNotFound
	}
	if !CanTransition(o.Status, readmodel.OrderStatusConfirmed) {
		err := fmt.Errorf("%w: cannot confirm %s order", ErrInvalidStatus, strings.ToLower(o.Status))
		s.SetError(err)
		return err
	}
	if err := CheckStock(o); err != nil {
		s.SetError(err)
		s.notifier.Notify(notification.Error("Insufficient stock", err.Error()))
		return err
	}

	defer s.Track()()
	return s.transition(id, readmodel.OrderStatusConfirmed, s.backend.Confirm(ctx, id))
}

// Cancel cancels a pending order
func (s *Store) Cancel(ctx context.Context, id string) error {
	o, ok := s.Find(id)
	if !ok {
		s.SetError(ErrOrderNotFound)
		return ErrOrderNotFound
	}
	if !CanTransition(o.Status, readmodel.OrderStatusCanceled) {
		err := fmt.Errorf("%w: cannot cancel %s order", ErrInvalidStatus, strings.ToLower(o.Status))
		s.SetError(err)
		return err
	}

	defer s.Track()()
	return s.transition(id, readmodel.OrderStatusCanceled, s.backend.Cancel(ctx, id))
}

// transition applies the status the backend answered with to the local
// record, without re-reading the list.
func (s *Store) transition(id, fallback string, res resource.Result[readmodel.OrderStatusResponse]) error {
	if err := res.Err(); err != nil {
		s.SetError(err)
		return err
	}
	status := res.Value().Status
	if status == "" {
		status = fallback
	}
	s.Patch(id, func(o *readmodel.Order) { o.Status = status })
	s.ClearError()
	return nil
}

// Select marks id as the order shown in detail
func (s *Store) Select(id string) bool {
	if _, ok := s.Find(id); !ok {
		return false
	}
	s.mu.Lock()
	s.selected = id
	s.mu.Unlock()
	return true
}

// Selected returns the selected order as currently stored
func (s *Store) Selected() (readmodel.Order, bool) {
	s.mu.RLock()
	id := s.selected
	s.mu.RUnlock()
	if id == "" {
		return readmodel.Order{}, false
	}
	return s.Find(id)
}

// Remove deletes id and drops the selection when it pointed there
func (s *Store) Remove(ctx context.Context, id string) error {
	if err := s.Store.Remove(ctx, id); err != nil {
		return err
	}
	s.mu.Lock()
	if s.selected == id {
		s.selected = ""
	}
	s.mu.Unlock()
	return nil
}
