package api

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"
)

const (
	DefaultProbeInterval = 30 * time.Second
	DefaultProbeTimeout  = 5 * time.Second
)

// ConnectivityState is the outcome of the most recent health probe
type ConnectivityState struct {
	IsConnected   bool
	LastCheckedAt time.Time
}

// connectivity probes the health endpoint at most once per interval while
// the backend is reachable, and before every call once a probe has failed.
type connectivity struct {
	mu       sync.Mutex
	state    ConnectivityState
	url      string
	interval time.Duration
	timeout  time.Duration
	http     *http.Client
	now      func() time.Time
	onProbe  func(ok bool)
}

func (c *connectivity) snapshot() ConnectivityState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *connectivity) fresh() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.state.IsConnected || c.state.LastCheckedAt.IsZero() {
		return false
	}
	return c.now().Sub(c.state.LastCheckedAt) < c.interval
}

// ensure returns nil when the backend is known reachable, probing if needed
func (c *connectivity) ensure(ctx context.Context) error {
	if c.fresh() {
		return nil
	}

	err := c.probe(ctx)
	if err != nil && ctx.Err() != nil {
		// The caller gave up; that says nothing about the backend
		return err
	}

	c.mu.Lock()
	c.state = ConnectivityState{IsConnected: err == nil, LastCheckedAt: c.now()}
	c.mu.Unlock()

	if c.onProbe != nil {
		c.onProbe(err == nil)
	}
	if err != nil {
		return &ConnectivityError{URL: c.url, Err: err}
	}
	return nil
}

func (c *connectivity) probe(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return fmt.Errorf("create probe: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))

	if resp.StatusCode >= http.StatusInternalServerError {
		return fmt.Errorf("health endpoint returned status %d", resp.StatusCode)
	}
	return nil
}
