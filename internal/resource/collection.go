package resource

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"time"

	"github.com/example/ec-admin-sync/internal/api"
)

// Collection binds the standard REST verbs of one entity path
type Collection[T any] struct {
	client     api.Doer
	path       string
	cacheList  bool
	listMaxAge time.Duration
}

// NewCollection creates the CRUD binding for path, e.g. "/products"
func NewCollection[T any](client api.Doer, path string) *Collection[T] {
	return &Collection[T]{client: client, path: path}
}

// CacheList makes GetAll cacheable with the given max age
func (c *Collection[T]) CacheList(maxAge time.Duration) *Collection[T] {
	c.cacheList = true
	c.listMaxAge = maxAge
	return c
}

func (c *Collection[T]) Path() string { return c.path }

func (c *Collection[T]) itemPath(id string) string {
	return c.path + "/" + url.PathEscape(id)
}

// GetAll lists every record
func (c *Collection[T]) GetAll(ctx context.Context) Result[[]T] {
	var out []T
	err := c.client.Do(ctx, api.Request{
		Method:      http.MethodGet,
		Path:        c.path,
		Cacheable:   c.cacheList,
		CacheMaxAge: c.listMaxAge,
	}, &out)
	if err != nil {
		return Err[[]T](err)
	}
	if out == nil {
		out = []T{}
	}
	return Ok(out)
}

// Get fetches one record by id
func (c *Collection[T]) Get(ctx context.Context, id string) Result[T] {
	var out T
	if err := c.client.Do(ctx, api.Request{Method: http.MethodGet, Path: c.itemPath(id)}, &out); err != nil {
		return Err[T](err)
	}
	return Ok(out)
}

// Create posts a new record and returns what the server echoed
func (c *Collection[T]) Create(ctx context.Context, record T) Result[T] {
	var out T
	if err := c.client.Do(ctx, api.Request{Method: http.MethodPost, Path: c.path, Body: record}, &out); err != nil {
		return Err[T](err)
	}
	c.client.ClearCache(c.path)
	return Ok(out)
}

// Update sends patch for id. The value is nil when the server did not echo
// the updated record.
func (c *Collection[T]) Update(ctx context.Context, id string, patch any) Result[*T] {
	var raw json.RawMessage
	if err := c.client.Do(ctx, api.Request{Method: http.MethodPut, Path: c.itemPath(id), Body: patch}, &raw); err != nil {
		return Err[*T](err)
	}
	c.client.ClearCache(c.path)

	if len(raw) == 0 || string(raw) == "null" {
		return Ok[*T](nil)
	}
	var out T
	if err := json.Unmarshal(raw, &out); err != nil {
		return Ok[*T](nil)
	}
	// A body without an identity (e.g. {"message":"updated"}) is not an echo.
	if rec, ok := any(out).(interface{ GetID() string }); ok && rec.GetID() == "" {
		return Ok[*T](nil)
	}
	return Ok(&out)
}

// Delete removes id
func (c *Collection[T]) Delete(ctx context.Context, id string) Result[Empty] {
	if err := c.client.Do(ctx, api.Request{Method: http.MethodDelete, Path: c.itemPath(id)}, nil); err != nil {
		return Err[Empty](err)
	}
	c.client.ClearCache(c.path)
	return Ok(Empty{})
}
