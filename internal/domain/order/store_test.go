package order

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/ec-admin-sync/internal/liststore"
	"github.com/example/ec-admin-sync/internal/liststore/mocks"
	"github.com/example/ec-admin-sync/internal/readmodel"
	"github.com/example/ec-admin-sync/internal/resource"

	notifmocks "github.com/example/ec-admin-sync/internal/notification/mocks"
)

// mockOrders adds the workflow endpoints to the generic mock backend
type mockOrders struct {
	*mocks.MockBackend[readmodel.Order]
	confirmed []string
	canceled  []string
	status    string
	err       error
	onCall    func() // runs inside Confirm and Cancel
}

func (m *mockOrders) Confirm(ctx context.Context, id string) resource.Result[readmodel.OrderStatusResponse] {
	m.confirmed = append(m.confirmed, id)
	if m.onCall != nil {
		m.onCall()
	}
	if m.err != nil {
		return resource.Err[readmodel.OrderStatusResponse](m.err)
	}
	return resource.Ok(readmodel.OrderStatusResponse{Status: m.status})
}

func (m *mockOrders) Cancel(ctx context.Context, id string) resource.Result[readmodel.OrderStatusResponse] {
	m.canceled = append(m.canceled, id)
	if m.onCall != nil {
		m.onCall()
	}
	if m.err != nil {
		return resource.Err[readmodel.OrderStatusResponse](m.err)
	}
	return resource.Ok(readmodel.OrderStatusResponse{ID: id, Status: readmodel.OrderStatusCanceled})
}

func newTestStore(t *testing.T, orders ...readmodel.Order) (*Store, *mockOrders, *notifmocks.MockNotifier) {
	t.Helper()
	backend := &mockOrders{MockBackend: mocks.NewMockBackend(orders...), status: readmodel.OrderStatusConfirmed}
	notifier := notifmocks.NewMockNotifier()
	store := NewStore(backend, liststore.Options{Notifier: notifier})
	require.NoError(t, store.Fetch(context.Background()))
	return store, backend, notifier
}

func sellOrder(id string, stocked, needed int) readmodel.Order {
	return readmodel.Order{
		ID:        id,
		OrderType: readmodel.OrderTypeSell,
		Status:    readmodel.OrderStatusPending,
		Items: []readmodel.OrderItem{
			{ProductID: "prod-1", Product: &readmodel.Product{ID: "prod-1", Name: "Apple"}, StockedQuantity: stocked, NeedQuantity: needed},
		},
	}
}

// ============================================
// Stock Check Tests
// ============================================

func TestCheckStock(t *testing.T) {
	tests := []struct {
		name    string
		order   readmodel.Order
		wantErr bool
	}{
		{"sell covered", sellOrder("o1", 5, 5), false},
		{"sell short", sellOrder("o1", 3, 5), true},
		{"buy short passes", readmodel.Order{OrderType: readmodel.OrderTypeBuy, Items: []readmodel.OrderItem{{StockedQuantity: 0, NeedQuantity: 9}}}, false},
		{"sell without items", readmodel.Order{OrderType: readmodel.OrderTypeSell}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckStock(tt.order)
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			var stockErr *StockError
			require.ErrorAs(t, err, &stockErr)
			assert.ErrorIs(t, err, ErrInsufficientStock)
			require.Len(t, stockErr.Shortages, 1)
			assert.Equal(t, "Apple", stockErr.Shortages[0].Name)
		})
	}
}

// ============================================
// Approve Tests
// ============================================

func TestStore_Approve_InsufficientStockSkipsBackend(t *testing.T) {
	store, backend, notifier := newTestStore(t, sellOrder("o1", 3, 5))

	err := store.Approve(context.Background(), "o1")

	assert.ErrorIs(t, err, ErrInsufficientStock)
	assert.Empty(t, backend.confirmed)
	assert.ErrorIs(t, store.Error(), ErrInsufficientStock)
	assert.Contains(t, store.FieldErrors()["general"], "Apple")
	assert.Equal(t, 1, notifier.Count())

	o, _ := store.Find("o1")
	assert.Equal(t, readmodel.OrderStatusPending, o.Status)
}

func TestStore_Approve_ConfirmsLocallyWithoutRefetch(t *testing.T) {
	store, backend, _ := newTestStore(t, sellOrder("o1", 5, 5), sellOrder("o2", 9, 1))

	require.NoError(t, store.Approve(context.Background(), "o1"))

	assert.Equal(t, []string{"o1"}, backend.confirmed)
	assert.Equal(t, 1, backend.Count("GetAll"))
	o, _ := store.Find("o1")
	assert.Equal(t, readmodel.OrderStatusConfirmed, o.Status)
	other, _ := store.Find("o2")
	assert.Equal(t, readmodel.OrderStatusPending, other.Status)
	assert.NoError(t, store.Error())
}

func TestStore_WorkflowCallsAreLoading(t *testing.T) {
	store, backend, _ := newTestStore(t, sellOrder("o1", 5, 5), sellOrder("o2", 1, 1))
	var during []bool
	backend.onCall = func() { during = append(during, store.Loading()) }

	require.NoError(t, store.Approve(context.Background(), "o1"))
	require.NoError(t, store.Cancel(context.Background(), "o2"))

	assert.Equal(t, []bool{true, true}, during)
	assert.False(t, store.Loading())
}

func TestStore_Approve_BuyOrderIgnoresStock(t *testing.T) {
	buy := readmodel.Order{ID: "b1", OrderType: readmodel.OrderTypeBuy, Status: readmodel.OrderStatusPending,
		Items: []readmodel.OrderItem{{ProductID: "p", StockedQuantity: 0, NeedQuantity: 50}}}
	store, backend, _ := newTestStore(t, buy)

	require.NoError(t, store.Approve(context.Background(), "b1"))
	assert.Equal(t, []string{"b1"}, backend.confirmed)
}

func TestStore_Approve_BackendFailureKeepsStatus(t *testing.T) {
	store, backend, _ := newTestStore(t, sellOrder("o1", 5, 5))
	backend.err = errors.New("boom")

	assert.Error(t, store.Approve(context.Background(), "o1"))
	o, _ := store.Find("o1")
	assert.Equal(t, readmodel.OrderStatusPending, o.Status)
	assert.Error(t, store.Error())
}

func TestStore_Approve_InvalidTransitions(t *testing.T) {
	confirmed := sellOrder("o1", 5, 5)
	confirmed.Status = readmodel.OrderStatusConfirmed
	store, backend, _ := newTestStore(t, confirmed)

	assert.ErrorIs(t, store.Approve(context.Background(), "o1"), ErrInvalidStatus)
	assert.ErrorIs(t, store.Approve(context.Background(), "missing"), ErrOrderNotFound)
	assert.Empty(t, backend.confirmed)
}

// ============================================
// Cancel / Filter / Selection Tests
// ============================================

func TestStore_Cancel(t *testing.T) {
	store, backend, _ := newTestStore(t, sellOrder("o1", 0, 5))

	require.NoError(t, store.Cancel(context.Background(), "o1"))

	assert.Equal(t, []string{"o1"}, backend.canceled)
	o, _ := store.Find("o1")
	assert.Equal(t, readmodel.OrderStatusCanceled, o.Status)
	assert.ErrorIs(t, store.Cancel(context.Background(), "o1"), ErrInvalidStatus)
}

func TestStore_StatusFilter(t *testing.T) {
	pending := sellOrder("o1", 1, 1)
	confirmed := sellOrder("o2", 1, 1)
	confirmed.Status = readmodel.OrderStatusConfirmed
	canceled := sellOrder("o3", 1, 1)
	canceled.Status = readmodel.OrderStatusCanceled
	store, _, _ := newTestStore(t, pending, confirmed, canceled)
	store.SetPage(4)

	require.NoError(t, store.SetStatusFilter("confirmed"))
	assert.Equal(t, readmodel.OrderStatusConfirmed, store.StatusFilter())
	assert.Equal(t, 1, store.Pagination().CurrentPage)
	filtered := store.Filtered()
	require.Len(t, filtered, 1)
	assert.Equal(t, "o2", filtered[0].ID)

	require.NoError(t, store.SetStatusFilter(FilterAll))
	assert.Len(t, store.Filtered(), 3)

	assert.ErrorIs(t, store.SetStatusFilter("shipped"), ErrInvalidFilter)
}

func TestStore_FilterThenSearch(t *testing.T) {
	a := sellOrder("o1", 1, 1)
	b := sellOrder("o2", 1, 1)
	b.Items[0].Product.Name = "Pear"
	store, _, _ := newTestStore(t, a, b)

	require.NoError(t, store.SetStatusFilter(readmodel.OrderStatusPending))
	store.SetSearch("pear")

	filtered := store.Filtered()
	require.Len(t, filtered, 1)
	assert.Equal(t, "o2", filtered[0].ID)
}

func TestStore_SelectionFollowsUpdatesAndRemoval(t *testing.T) {
	store, _, _ := newTestStore(t, sellOrder("o1", 5, 5), sellOrder("o2", 5, 5))

	assert.False(t, store.Select("missing"))
	require.True(t, store.Select("o1"))
	require.NoError(t, store.Approve(context.Background(), "o1"))

	selected, ok := store.Selected()
	require.True(t, ok)
	assert.Equal(t, readmodel.OrderStatusConfirmed, selected.Status)

	require.NoError(t, store.Remove(context.Background(), "o1"))
	_, ok = store.Selected()
	assert.False(t, ok)
	assert.Len(t, store.Items(), 1)
}
