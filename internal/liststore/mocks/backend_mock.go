package mocks

import (
	"context"
	"errors"
	"sync"

	"github.com/example/ec-admin-sync/internal/resource"
)

var ErrNotFound = errors.New("record not found")

// MockBackend is an in-memory resource collection that records calls
type MockBackend[T interface{ GetID() string }] struct {
	mu    sync.Mutex
	items []T
	calls map[string]int

	// Err fails every call while set
	Err error
	// NoEcho makes Update return no record
	NoEcho bool
	// CreateFn assigns server-side fields such as the id
	CreateFn func(T) T
	// UpdateFn applies a patch to a stored record
	UpdateFn func(T, any) T
}

func NewMockBackend[T interface{ GetID() string }](items ...T) *MockBackend[T] {
	return &MockBackend[T]{items: items, calls: make(map[string]int)}
}

func (m *MockBackend[T]) GetAll(ctx context.Context) resource.Result[[]T] {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls["GetAll"]++
	if m.Err != nil {
		return resource.Err[[]T](m.Err)
	}
	return resource.Ok(append([]T(nil), m.items...))
}

func (m *MockBackend[T]) Create(ctx context.Context, record T) resource.Result[T] {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls["Create"]++
	if m.Err != nil {
		return resource.Err[T](m.Err)
	}
	if m.CreateFn != nil {
		record = m.CreateFn(record)
	}
	m.items = append(m.items, record)
	return resource.Ok(record)
}

func (m *MockBackend[T]) Update(ctx context.Context, id string, patch any) resource.Result[*T] {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls["Update"]++
	if m.Err != nil {
		return resource.Err[*T](m.Err)
	}
	for i, it := range m.items {
		if it.GetID() != id {
			continue
		}
		if m.UpdateFn != nil {
			m.items[i] = m.UpdateFn(it, patch)
		}
		if m.NoEcho {
			return resource.Ok[*T](nil)
		}
		out := m.items[i]
		return resource.Ok(&out)
	}
	return resource.Err[*T](ErrNotFound)
}

func (m *MockBackend[T]) Delete(ctx context.Context, id string) resource.Result[resource.Empty] {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls["Delete"]++
	if m.Err != nil {
		return resource.Err[resource.Empty](m.Err)
	}
	for i, it := range m.items {
		if it.GetID() == id {
			m.items = append(m.items[:i], m.items[i+1:]...)
			return resource.Ok(resource.Empty{})
		}
	}
	return resource.Err[resource.Empty](ErrNotFound)
}

// SetItems replaces the server-side collection
func (m *MockBackend[T]) SetItems(items ...T) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items = items
}

// Count returns how often op ("GetAll", "Create", "Update", "Delete") ran
func (m *MockBackend[T]) Count(op string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[op]
}
