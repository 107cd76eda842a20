package cart

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/example/ec-admin-sync/internal/infrastructure/store"
	"github.com/example/ec-admin-sync/internal/readmodel"
)

var (
	ErrInvalidQuantity = errors.New("quantity must be positive")
	ErrInvalidProduct  = errors.New("product_id is required")
	ErrItemNotFound    = errors.New("item not in cart")
)

// Store is the cart kept in client storage. Every mutation writes a JSON
// snapshot under store.KeyCart.
type Store struct {
	kv  store.KVStore
	log *logrus.Entry

	mu       sync.RWMutex
	items    []readmodel.CartItem
	restored sync.Once

	obsMu     sync.Mutex
	observers []func()
}

func NewStore(kv store.KVStore, log *logrus.Entry) *Store {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Store{kv: kv, log: log.WithFields(logrus.Fields{"component": "store", "store": "cart"})}
}

// Restore loads the snapshot. Only the first call reads storage; an
// unreadable snapshot leaves the cart empty.
func (s *Store) Restore() error {
	var err error
	s.restored.Do(func() {
		var raw string
		var ok bool
		raw, ok, err = s.kv.Get(store.KeyCart)
		if err != nil || !ok || raw == "" {
			return
		}
		var items []readmodel.CartItem
		if err = json.Unmarshal([]byte(raw), &items); err != nil {
			err = fmt.Errorf("decode cart snapshot: %w", err)
			s.log.WithError(err).Warn("discarding cart snapshot")
			return
		}
		s.mu.Lock()
		s.items = items
		s.mu.Unlock()
		s.log.WithField("items", len(items)).Debug("cart restored")
	})
	return err
}

// Add puts item in the cart, adding to the quantity of an existing line
func (s *Store) Add(item readmodel.CartItem) error {
	if item.ProductID == "" {
		return ErrInvalidProduct
	}
	if item.Quantity <= 0 {
		return ErrInvalidQuantity
	}
	return s.mutate(func(items []readmodel.CartItem) ([]readmodel.CartItem, error) {
		for i := range items {
			if items[i].ProductID == item.ProductID {
				items[i].Quantity += item.Quantity
				items[i].Price = item.Price
				return items, nil
			}
		}
		return append(items, item), nil
	})
}

// AddProduct adds quantity units of p
func (s *Store) AddProduct(p readmodel.Product, quantity int) error {
	return s.Add(readmodel.CartItem{ProductID: p.ID, Name: p.Name, Price: p.Price, Quantity: quantity})
}

func (s *Store) Increment(productID string) error {
	return s.mutate(func(items []readmodel.CartItem) ([]readmodel.CartItem, error) {
		i := indexOf(items, productID)
		if i < 0 {
			return nil, ErrItemNotFound
		}
		items[i].Quantity++
		return items, nil
	})
}

// Decrement lowers the quantity by one; a line never drops below 1
func (s *Store) Decrement(productID string) error {
	return s.mutate(func(items []readmodel.CartItem) ([]readmodel.CartItem, error) {
		i := indexOf(items, productID)
		if i < 0 {
			return nil, ErrItemNotFound
		}
		if items[i].Quantity > 1 {
			items[i].Quantity--
		}
		return items, nil
	})
}

func (s *Store) Remove(productID string) error {
	return s.mutate(func(items []readmodel.CartItem) ([]readmodel.CartItem, error) {
		i := indexOf(items, productID)
		if i < 0 {
			return nil, ErrItemNotFound
		}
		return append(items[:i], items[i+1:]...), nil
	})
}

func (s *Store) Clear() error {
	return s.mutate(func([]readmodel.CartItem) ([]readmodel.CartItem, error) {
		return nil, nil
	})
}

// Items returns a copy of the cart lines
func (s *Store) Items() []readmodel.CartItem {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]readmodel.CartItem(nil), s.items...)
}

// Total is the sum of price times quantity
func (s *Store) Total() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var total float64
	for _, it := range s.items {
		total += it.Price * float64(it.Quantity)
	}
	return total
}

// Count is the number of units in the cart
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, it := range s.items {
		n += it.Quantity
	}
	return n
}

// Subscribe registers fn to run after every mutation
func (s *Store) Subscribe(fn func()) {
	s.obsMu.Lock()
	defer s.obsMu.Unlock()
	s.observers = append(s.observers, fn)
}

// mutate applies fn to a copy of the lines, persists the result and only
// then makes it current.
func (s *Store) mutate(fn func([]readmodel.CartItem) ([]readmodel.CartItem, error)) error {
	s.mu.Lock()
	next, err := fn(append([]readmodel.CartItem(nil), s.items...))
	if err != nil {
		s.mu.Unlock()
		return err
	}
	if next == nil {
		next = []readmodel.CartItem{}
	}
	data, err := json.Marshal(next)
	if err != nil {
		s.mu.Unlock()
		return fmt.Errorf("encode cart: %w", err)
	}
	if err := s.kv.Set(store.KeyCart, string(data)); err != nil {
		s.mu.Unlock()
		s.log.WithError(err).Warn("failed to persist cart")
		return fmt.Errorf("persist cart: %w", err)
	}
	s.items = next
	s.mu.Unlock()

	s.obsMu.Lock()
	fns := append([]func(){}, s.observers...)
	s.obsMu.Unlock()
	for _, f := range fns {
		f()
	}
	return nil
}

func indexOf(items []readmodel.CartItem, productID string) int {
	for i, it := range items {
		if it.ProductID == productID {
			return i
		}
	}
	return -1
}
