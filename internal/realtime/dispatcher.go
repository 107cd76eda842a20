package realtime

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/example/ec-admin-sync/internal/metrics"
	"github.com/example/ec-admin-sync/internal/notification"
)

// DefaultRefreshDelay separates a products refresh from the orders
// refresh it triggers.
const DefaultRefreshDelay = 500 * time.Millisecond

const (
	DefaultSinkTimeout     = 5 * time.Second
	DefaultSinkConcurrency = 4
)

// Refresher is a store that can re-read its collection
type Refresher interface {
	Fetch(ctx context.Context) error
}

// Sink receives a copy of every recorded message
type Sink interface {
	Publish(ctx context.Context, key string, event any) error
}

// Scheduler runs f after d. stop cancels it and reports whether f was
// prevented from running.
type Scheduler func(d time.Duration, f func()) (stop func() bool)

func timerScheduler(d time.Duration, f func()) func() bool {
	return time.AfterFunc(d, f).Stop
}

// DispatcherConfig wires a Dispatcher
type DispatcherConfig struct {
	Products     Refresher
	Orders       Refresher
	RefreshDelay time.Duration
	Log          *notification.Log
	Logger       *logrus.Entry
	Metrics      *metrics.Collector
	Scheduler    Scheduler
	Now          func() time.Time

	// Sink gets a copy of every message off the refresh path. Each Publish
	// is bounded by SinkTimeout; at most SinkConcurrency run at once and
	// messages beyond that are not forwarded.
	Sink            Sink
	SinkTimeout     time.Duration
	SinkConcurrency int
}

// Dispatcher turns messages into store refreshes
type Dispatcher struct {
	cfg DispatcherConfig
	log *logrus.Entry

	wg        sync.WaitGroup
	sinkSlots chan struct{}

	mu      sync.Mutex
	pending map[int]func() bool
	nextID  int
	closed  bool
}

func NewDispatcher(cfg DispatcherConfig) *Dispatcher {
	if cfg.RefreshDelay <= 0 {
		cfg.RefreshDelay = DefaultRefreshDelay
	}
	if cfg.Log == nil {
		cfg.Log = notification.NewLog(0)
	}
	if cfg.Scheduler == nil {
		cfg.Scheduler = timerScheduler
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.SinkTimeout <= 0 {
		cfg.SinkTimeout = DefaultSinkTimeout
	}
	if cfg.SinkConcurrency <= 0 {
		cfg.SinkConcurrency = DefaultSinkConcurrency
	}
	log := cfg.Logger
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Dispatcher{
		cfg:     cfg,
		log:     log.WithField("component", "realtime"),
		pending:   make(map[int]func() bool),
		sinkSlots: make(chan struct{}, cfg.SinkConcurrency),
	}
}

// Log is the record of received messages, most recent first
func (d *Dispatcher) Log() *notification.Log { return d.cfg.Log }

// HandleRaw parses and handles one payload
func (d *Dispatcher) HandleRaw(ctx context.Context, data []byte) {
	d.Handle(ctx, Parse(data))
}

// Handle records msg and starts the refreshes it calls for. It does not
// wait for them.
func (d *Dispatcher) Handle(ctx context.Context, msg Message) {
	d.cfg.Log.Append(notification.Entry{
		Type:       msg.Type,
		Message:    msg.Message,
		EntityType: msg.EntityType,
		ReceivedAt: d.cfg.Now(),
	})
	d.cfg.Metrics.RealtimeMessage(msg.Type)
	// Forwarded after the refreshes below have started
	defer d.forward(ctx, msg)

	entry := d.log.WithFields(logrus.Fields{"type": msg.Type, "entity_type": msg.EntityType})
	if msg.Type != TypeUpdate || msg.EntityType == "" {
		entry.Debug("message received")
		return
	}

	switch strings.ToLower(msg.EntityType) {
	case "products", "product":
		entry.Info("refreshing products, then orders")
		d.refreshNow(ctx, "products", d.cfg.Products)
		d.refreshLater(ctx, "orders", d.cfg.Orders)
	case "orders", "order", "workflow":
		entry.Info("refreshing orders")
		d.refreshNow(ctx, "orders", d.cfg.Orders)
	default:
		entry.Warn("update for unknown entity type")
	}
}

func (d *Dispatcher) refreshNow(ctx context.Context, name string, r Refresher) {
	if r == nil {
		return
	}
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.wg.Add(1)
	d.mu.Unlock()

	go func() {
		defer d.wg.Done()
		d.refresh(ctx, name, r)
	}()
}

func (d *Dispatcher) refreshLater(ctx context.Context, name string, r Refresher) {
	if r == nil {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return
	}

	id := d.nextID
	d.nextID++
	d.wg.Add(1)
	d.pending[id] = d.cfg.Scheduler(d.cfg.RefreshDelay, func() {
		defer d.wg.Done()
		d.mu.Lock()
		delete(d.pending, id)
		d.mu.Unlock()
		d.refresh(ctx, name, r)
	})
}

// forward publishes msg to the sink in the background
func (d *Dispatcher) forward(ctx context.Context, msg Message) {
	if d.cfg.Sink == nil {
		return
	}
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	select {
	case d.sinkSlots <- struct{}{}:
	default:
		d.mu.Unlock()
		d.log.WithField("entity_type", msg.EntityType).Warn("sink busy, message not forwarded")
		return
	}
	d.wg.Add(1)
	d.mu.Unlock()

	go func() {
		defer d.wg.Done()
		defer func() { <-d.sinkSlots }()
		pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.cfg.SinkTimeout)
		defer cancel()
		if err := d.cfg.Sink.Publish(pubCtx, msg.EntityType, msg); err != nil {
			d.log.WithError(err).Warn("failed to forward message")
		}
	}()
}

func (d *Dispatcher) refresh(ctx context.Context, name string, r Refresher) {
	if ctx.Err() != nil {
		return
	}
	if err := r.Fetch(ctx); err != nil {
		d.log.WithError(err).WithField("store", name).Warn("refresh failed")
	}
}

// Wait blocks until every started refresh and publish has finished
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

// Close cancels delayed refreshes that have not started and waits for
// running refreshes and sink publishes.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	d.closed = true
	for id, stop := range d.pending {
		if stop() {
			d.wg.Done()
		}
		delete(d.pending, id)
	}
	d.mu.Unlock()
	d.wg.Wait()
}
