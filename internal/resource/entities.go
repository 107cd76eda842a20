package resource

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"github.com/example/ec-admin-sync/internal/api"
	"github.com/example/ec-admin-sync/internal/readmodel"
)

// CategoryCacheMaxAge is how long the category list is served from cache
const CategoryCacheMaxAge = 5 * time.Minute

// Request ids of calls a caller may want to cancel, e.g. on navigation
const (
	SalesReportRequestID     = "reports-sales"
	InventoryReportRequestID = "reports-inventory"
)

// OrdersResource is the sales order collection plus its workflow transitions
type OrdersResource struct {
	*Collection[readmodel.Order]
}

func (o *OrdersResource) Confirm(ctx context.Context, id string) Result[readmodel.OrderStatusResponse] {
	return o.transition(ctx, id, "confirm")
}

func (o *OrdersResource) Cancel(ctx context.Context, id string) Result[readmodel.OrderStatusResponse] {
	return o.transition(ctx, id, "cancel")
}

func (o *OrdersResource) transition(ctx context.Context, id, action string) Result[readmodel.OrderStatusResponse] {
	var out readmodel.OrderStatusResponse
	err := o.client.Do(ctx, api.Request{Method: http.MethodPut, Path: o.itemPath(id) + "/" + action}, &out)
	if err != nil {
		return Err[readmodel.OrderStatusResponse](err)
	}
	o.client.ClearCache(o.path)
	if out.ID == "" {
		out.ID = id
	}
	return Ok(out)
}

// InventoryResource is the stock level collection plus replenishment orders
type InventoryResource struct {
	*Collection[readmodel.InventoryItem]
	Orders *Collection[readmodel.InventoryOrder]
}

// UpdateOrderStatus moves a stock order to status
func (i *InventoryResource) UpdateOrderStatus(ctx context.Context, id, status string) Result[*readmodel.InventoryOrder] {
	var out readmodel.InventoryOrder
	err := i.client.Do(ctx, api.Request{
		Method: http.MethodPut,
		Path:   i.Orders.itemPath(id) + "/status",
		Body:   map[string]string{"status": status},
	}, &out)
	if err != nil {
		return Err[*readmodel.InventoryOrder](err)
	}
	i.client.ClearCache(i.Orders.path)
	if out.ID == "" {
		return Ok[*readmodel.InventoryOrder](nil)
	}
	return Ok(&out)
}

// ReportRange bounds the sales report; zero times are left out of the query
type ReportRange struct {
	From time.Time
	To   time.Time
}

type ReportsResource struct {
	client api.Doer
}

func (r *ReportsResource) Sales(ctx context.Context, rng ReportRange) Result[readmodel.SalesReport] {
	q := url.Values{}
	if !rng.From.IsZero() {
		q.Set("from", rng.From.Format(time.DateOnly))
	}
	if !rng.To.IsZero() {
		q.Set("to", rng.To.Format(time.DateOnly))
	}
	var out readmodel.SalesReport
	err := r.client.Do(ctx, api.Request{Method: http.MethodGet, Path: "/reports/sales", Query: q, RequestID: SalesReportRequestID}, &out)
	if err != nil {
		return Err[readmodel.SalesReport](err)
	}
	return Ok(out)
}

func (r *ReportsResource) Inventory(ctx context.Context) Result[readmodel.InventoryReport] {
	var out readmodel.InventoryReport
	err := r.client.Do(ctx, api.Request{Method: http.MethodGet, Path: "/reports/inventory", RequestID: InventoryReportRequestID}, &out)
	if err != nil {
		return Err[readmodel.InventoryReport](err)
	}
	return Ok(out)
}
