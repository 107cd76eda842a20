package realtime

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/example/ec-admin-sync/internal/metrics"
	"github.com/example/ec-admin-sync/internal/notification"
)

const (
	DefaultMaxRetries       = 5
	DefaultBackoff          = 3 * time.Second
	DefaultHandshakeTimeout = 10 * time.Second
	writeTimeout            = 5 * time.Second
)

var (
	ErrRetriesExhausted = errors.New("realtime: reconnect attempts exhausted")
	ErrNotConnected     = errors.New("realtime: not connected")
	ErrClosed           = errors.New("realtime: channel closed")
)

// State of the channel connection
type State int32

const (
	Disconnected State = iota
	Connecting
	Connected
)

func (s State) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	}
	return "disconnected"
}

// MessageHandler receives every raw payload read from a Source
type MessageHandler func(ctx context.Context, data []byte)

// Source delivers raw payloads until ctx ends or Close is called
type Source interface {
	Run(ctx context.Context, handler MessageHandler) error
	Close() error
}

// ChannelConfig configures the websocket channel
type ChannelConfig struct {
	URL              string
	MaxRetries       int
	Backoff          time.Duration
	HandshakeTimeout time.Duration
	ClientID         string
	Header           http.Header
}

// Channel is the process-wide websocket connection. It reconnects with a
// fixed backoff and gives up after MaxRetries consecutive failures.
type Channel struct {
	cfg      ChannelConfig
	dialer   websocket.Dialer
	log      *logrus.Entry
	metrics  *metrics.Collector
	notifier notification.Notifier
	onState  func(State)

	state atomic.Int32

	mu     sync.Mutex
	conn   *websocket.Conn
	done   chan struct{}
	closed bool
}

// ChannelOption customizes a Channel
type ChannelOption func(*Channel)

func WithChannelLogger(log *logrus.Entry) ChannelOption {
	return func(c *Channel) { c.log = log.WithField("component", "realtime") }
}

func WithChannelMetrics(m *metrics.Collector) ChannelOption {
	return func(c *Channel) { c.metrics = m }
}

func WithChannelNotifier(n notification.Notifier) ChannelOption {
	return func(c *Channel) { c.notifier = n }
}

// WithStateHook is called on every state change
func WithStateHook(fn func(State)) ChannelOption {
	return func(c *Channel) { c.onState = fn }
}

func NewChannel(cfg ChannelConfig, opts ...ChannelOption) *Channel {
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = DefaultMaxRetries
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = DefaultBackoff
	}
	if cfg.HandshakeTimeout <= 0 {
		cfg.HandshakeTimeout = DefaultHandshakeTimeout
	}
	if cfg.ClientID == "" {
		cfg.ClientID = uuid.NewString()
	}

	c := &Channel{
		cfg:      cfg,
		dialer:   websocket.Dialer{HandshakeTimeout: cfg.HandshakeTimeout, Proxy: http.ProxyFromEnvironment},
		log:      logrus.NewEntry(logrus.StandardLogger()).WithField("component", "realtime"),
		notifier: notification.Discard,
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Channel) ClientID() string { return c.cfg.ClientID }

func (c *Channel) State() State { return State(c.state.Load()) }

func (c *Channel) setState(s State) {
	if State(c.state.Swap(int32(s))) == s {
		return
	}
	c.metrics.RealtimeState(int(s))
	c.log.WithField("state", s.String()).Debug("state changed")
	if c.onState != nil {
		c.onState(s)
	}
}

// Run connects and feeds every message to handler until ctx ends, Close is
// called or the retry budget is spent.
func (c *Channel) Run(ctx context.Context, handler MessageHandler) error {
	failures := 0
	for {
		if err := c.stopped(ctx); err != nil {
			c.setState(Disconnected)
			return exitErr(err)
		}

		c.setState(Connecting)
		conn, err := c.dial(ctx)
		if err == nil {
			failures = 0
			err = c.serve(ctx, conn, handler)
			c.setState(Disconnected)
			if stopErr := c.stopped(ctx); stopErr != nil {
				return exitErr(stopErr)
			}
			c.log.WithError(err).Warn("connection lost")
			c.notifier.Notify(notification.Warning("Live updates", "Connection lost. Reconnecting..."))
		} else {
			c.setState(Disconnected)
			c.log.WithError(err).WithField("attempt", failures+1).Warn("connect failed")
		}

		failures++
		if failures > c.cfg.MaxRetries {
			c.log.WithField("retries", c.cfg.MaxRetries).Error("giving up on live updates")
			c.notifier.Notify(notification.Error("Live updates", "Live updates are unavailable."))
			return ErrRetriesExhausted
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-c.done:
			return nil
		case <-time.After(c.cfg.Backoff):
		}
	}
}

// exitErr hides ErrClosed: Close is a normal way to end Run
func exitErr(err error) error {
	if errors.Is(err, ErrClosed) {
		return nil
	}
	return err
}

func (c *Channel) stopped(ctx context.Context) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	return nil
}

func (c *Channel) dial(ctx context.Context) (*websocket.Conn, error) {
	conn, _, err := c.dialer.DialContext(ctx, c.cfg.URL, c.cfg.Header)
	if err != nil {
		return nil, fmt.Errorf("websocket dial: %w", err)
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		conn.Close()
		return nil, ErrClosed
	}
	c.conn = conn
	c.mu.Unlock()
	return conn, nil
}

// serve sends the hello message and reads until the connection fails
func (c *Channel) serve(ctx context.Context, conn *websocket.Conn, handler MessageHandler) error {
	defer func() {
		c.mu.Lock()
		if c.conn == conn {
			c.conn = nil
		}
		c.mu.Unlock()
		conn.Close()
	}()

	// Unblock the read when ctx ends
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	c.setState(Connected)
	c.log.WithField("client_id", c.cfg.ClientID).Info("connected")
	hello := Message{Type: TypeHello, Message: "admin client connected", ClientID: c.cfg.ClientID}
	if err := c.Send(hello); err != nil {
		return fmt.Errorf("send hello: %w", err)
	}

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		handler(ctx, data)
	}
}

// Send writes v as JSON on the current connection
func (c *Channel) Send(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return ErrNotConnected
	}
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return c.conn.WriteJSON(v)
}

// Close ends Run and closes the connection
func (c *Channel) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	close(c.done)
	if c.conn == nil {
		return nil
	}
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	return c.conn.Close()
}
