// Package app wires the sync client together and owns its lifecycle.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/sirupsen/logrus"
	"golang.org/x/text/language"

	"github.com/example/ec-admin-sync/internal/api"
	"github.com/example/ec-admin-sync/internal/auth"
	"github.com/example/ec-admin-sync/internal/config"
	"github.com/example/ec-admin-sync/internal/domain/cart"
	"github.com/example/ec-admin-sync/internal/domain/category"
	"github.com/example/ec-admin-sync/internal/domain/inventory"
	"github.com/example/ec-admin-sync/internal/domain/order"
	"github.com/example/ec-admin-sync/internal/domain/product"
	"github.com/example/ec-admin-sync/internal/domain/user"
	"github.com/example/ec-admin-sync/internal/infrastructure/kafka"
	"github.com/example/ec-admin-sync/internal/infrastructure/store"
	"github.com/example/ec-admin-sync/internal/liststore"
	"github.com/example/ec-admin-sync/internal/metrics"
	"github.com/example/ec-admin-sync/internal/notification"
	"github.com/example/ec-admin-sync/internal/readmodel"
	"github.com/example/ec-admin-sync/internal/realtime"
	"github.com/example/ec-admin-sync/internal/resource"
)

var ErrDisposed = errors.New("app: disposed")

// App holds every long-lived component. Build it with New, start it with
// Init and release it with Dispose.
type App struct {
	Config   config.Config
	Log      *logrus.Entry
	Metrics  *metrics.Collector
	Notifier notification.Notifier
	Storage  store.KVStore
	Client   *api.Client
	API      *resource.Facade

	Session     *user.Session
	Products    *product.Store
	Categories  *category.Store
	Orders      *order.Store
	Users       *user.Store
	Inventory   *inventory.Store
	StockOrders *inventory.OrdersStore
	Cart        *cart.Store

	Dispatcher *realtime.Dispatcher
	Channel    *realtime.Channel

	sources []realtime.Source
	closers []io.Closer

	mu       sync.Mutex
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	started  bool
	disposed bool
}

// Option customizes New
type Option func(*options)

type options struct {
	storage  store.KVStore
	notifier notification.Notifier
	metrics  *metrics.Collector
}

// WithStorage replaces the SQLite storage, e.g. with a MemoryStore in tests
func WithStorage(kv store.KVStore) Option {
	return func(o *options) { o.storage = kv }
}

func WithNotifier(n notification.Notifier) Option {
	return func(o *options) { o.notifier = n }
}

func WithMetrics(m *metrics.Collector) Option {
	return func(o *options) { o.metrics = m }
}

// New builds the application graph. Nothing talks to the network until Init.
func New(cfg config.Config, log *logrus.Entry, opts ...Option) (*App, error) {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}

	a := &App{Config: cfg, Log: log.WithField("component", "app")}

	a.Metrics = o.metrics
	if a.Metrics == nil {
		a.Metrics = metrics.NewCollector("ecadmin")
	}
	a.Notifier = o.notifier
	if a.Notifier == nil {
		a.Notifier = notification.NewLogNotifier(log.WithField("component", "toast"))
	}

	a.Storage = o.storage
	if a.Storage == nil {
		sqlite, err := store.OpenSQLite(cfg.Storage.Path)
		if err != nil {
			return nil, err
		}
		a.Storage = sqlite
		a.closers = append(a.closers, sqlite)
	}

	client, err := api.NewClient(api.Config{
		BaseURL:       cfg.API.BaseURL,
		HealthPath:    cfg.API.HealthPath,
		Timeout:       cfg.API.Timeout.Std(),
		ProbeInterval: cfg.API.ProbeInterval.Std(),
		ProbeTimeout:  cfg.API.ProbeTimeout.Std(),
		CacheMaxAge:   cfg.API.CacheMaxAge.Std(),
		UserAgent:     "ec-admin-sync",
	},
		api.WithTokenSource(store.TokenReader{Store: a.Storage}),
		api.WithNotifier(a.Notifier),
		api.WithLogger(log),
		api.WithMetrics(a.Metrics),
	)
	if err != nil {
		a.closeAll()
		return nil, fmt.Errorf("app: api client: %w", err)
	}
	a.Client = client
	a.API = resource.New(client, a.Storage, a.Notifier).WithInspector(auth.NewInspector())

	locale, err := language.Parse(cfg.Store.Locale)
	if err != nil {
		locale = language.English
	}
	shared := liststore.Options{
		PerPage:  cfg.Store.PerPage,
		Locale:   locale,
		Logger:   log,
		Metrics:  a.Metrics,
		Notifier: a.Notifier,
	}

	a.Session = user.NewSession(a.API.Auth, a.API.Me, a.Storage, a.Notifier, log)
	a.Products = product.NewStore(a.API.Products, shared)
	a.Categories = category.NewStore(a.API.Categories, shared)
	a.Orders = order.NewStore(a.API.Orders, shared)
	a.Users = user.NewStore(a.API.Users, shared)
	a.Inventory = inventory.NewStore(a.API.Inventory, shared)
	a.StockOrders = inventory.NewOrdersStore(inventory.NewOrdersBinding(a.API.Inventory), shared)
	a.Cart = cart.NewStore(a.Storage, log)

	dcfg := realtime.DispatcherConfig{
		Products:     a.Products,
		Orders:       a.Orders,
		RefreshDelay: cfg.Realtime.RefreshDelay.Std(),
		Log:          notification.NewLog(cfg.Realtime.LogCapacity),
		Logger:       log,
		Metrics:      a.Metrics,
	}
	if cfg.Realtime.AuditTopic != "" && len(cfg.Realtime.KafkaBrokers) > 0 {
		producer := kafka.NewProducer(cfg.Realtime.KafkaBrokers, cfg.Realtime.AuditTopic)
		dcfg.Sink = producer
		a.closers = append(a.closers, producer)
	}
	a.Dispatcher = realtime.NewDispatcher(dcfg)

	if cfg.Realtime.URL != "" {
		a.Channel = realtime.NewChannel(realtime.ChannelConfig{
			URL:        cfg.Realtime.URL,
			MaxRetries: cfg.Realtime.MaxRetries,
			Backoff:    cfg.Realtime.Backoff.Std(),
		},
			realtime.WithChannelLogger(log),
			realtime.WithChannelMetrics(a.Metrics),
			realtime.WithChannelNotifier(a.Notifier),
		)
		a.sources = append(a.sources, a.Channel)
	}
	if cfg.KafkaEnabled() {
		consumer := kafka.NewConsumer(kafka.ConsumerConfig{
			Brokers: cfg.Realtime.KafkaBrokers,
			Topic:   cfg.Realtime.KafkaTopic,
			GroupID: cfg.Realtime.KafkaGroup,
		}, log)
		a.sources = append(a.sources, realtime.NewKafkaSource(consumer))
	}

	return a, nil
}

// Init restores client state, signs in when needed, loads every store and
// starts the real-time sources. Sources keep running until Dispose.
func (a *App) Init(ctx context.Context) error {
	a.mu.Lock()
	if a.disposed {
		a.mu.Unlock()
		return ErrDisposed
	}
	if a.started {
		a.mu.Unlock()
		return nil
	}
	a.started = true
	runCtx, cancel := context.WithCancel(context.Background())
	a.cancel = cancel
	a.mu.Unlock()

	if err := a.Cart.Restore(); err != nil {
		a.Log.WithError(err).Warn("cart snapshot discarded")
	}

	if err := a.authenticate(ctx); err != nil {
		return err
	}
	if err := a.Load(ctx); err != nil {
		a.Log.WithError(err).Warn("initial load incomplete")
	}

	for _, src := range a.sources {
		a.wg.Add(1)
		go func(src realtime.Source) {
			defer a.wg.Done()
			if err := src.Run(runCtx, a.Dispatcher.HandleRaw); err != nil && runCtx.Err() == nil {
				a.Log.WithError(err).Error("real-time source stopped")
			}
		}(src)
	}
	a.Log.WithField("sources", len(a.sources)).Info("sync client started")
	return nil
}

// authenticate reuses stored tokens, renewing them once if the profile
// cannot be loaded, and falls back to the configured credentials.
func (a *App) authenticate(ctx context.Context) error {
	if a.Session.IsAuthenticated() {
		err := a.Session.LoadProfile(ctx)
		if err == nil {
			return nil
		}
		a.Log.WithError(err).Info("stored session rejected, renewing")
		if rerr := a.Session.Refresh(ctx); rerr == nil {
			return a.Session.LoadProfile(ctx)
		}
	}

	creds := a.Config.Credentials
	if creds.Username == "" {
		if a.Session.IsAuthenticated() {
			return nil
		}
		return user.ErrNotSignedIn
	}
	return a.Session.Login(ctx, readmodel.Credentials{Username: creds.Username, Password: creds.Password})
}

// Load fetches every entity store concurrently and joins their errors
func (a *App) Load(ctx context.Context) error {
	fetchers := []interface{ Fetch(context.Context) error }{
		a.Products, a.Categories, a.Orders, a.Users, a.Inventory, a.StockOrders,
	}

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)
	for _, f := range fetchers {
		f := f
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := f.Fetch(ctx); err != nil {
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	return errors.Join(errs...)
}

// Dispose stops the sources, cancels pending requests and refreshes, and
// closes storage. It is safe to call more than once.
func (a *App) Dispose() error {
	a.mu.Lock()
	if a.disposed {
		a.mu.Unlock()
		return nil
	}
	a.disposed = true
	cancel := a.cancel
	a.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	for _, src := range a.sources {
		if err := src.Close(); err != nil {
			a.Log.WithError(err).Warn("closing real-time source")
		}
	}
	a.wg.Wait()
	a.Dispatcher.Close()
	if n := a.Client.CancelAllRequests(); n > 0 {
		a.Log.WithField("requests", n).Debug("cancelled pending requests")
	}

	err := a.closeAll()
	a.Log.Info("sync client stopped")
	return err
}

func (a *App) closeAll() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
