package app

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/ec-admin-sync/internal/config"
	"github.com/example/ec-admin-sync/internal/domain/user"
	"github.com/example/ec-admin-sync/internal/infrastructure/store"
	"github.com/example/ec-admin-sync/internal/notification/mocks"
)

// backend is a fake admin REST API with a websocket endpoint
type backend struct {
	mu     sync.Mutex
	hits   map[string]int
	pushes chan string
	srv    *httptest.Server
}

func newBackend(t *testing.T) *backend {
	t.Helper()
	b := &backend{hits: make(map[string]int), pushes: make(chan string, 4)}
	upgrader := websocket.Upgrader{}

	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/auth/public/login", func(w http.ResponseWriter, r *http.Request) {
		b.hit("login")
		writeJSON(w, map[string]string{"accessToken": "access-1", "refreshToken": "refresh-1"})
	})
	mux.HandleFunc("/me", func(w http.ResponseWriter, r *http.Request) {
		b.hit("me")
		if r.Header.Get("Authorization") != "Bearer access-1" {
			w.WriteHeader(http.StatusUnauthorized)
			writeJSON(w, map[string]string{"message": "unauthorized"})
			return
		}
		writeJSON(w, map[string]any{"id": "u1", "username": "admin", "roles": []string{"ADMIN"}})
	})
	mux.HandleFunc("/products", func(w http.ResponseWriter, r *http.Request) {
		b.hit("products")
		writeJSON(w, []map[string]any{{"id": "p1", "name": "Mouse", "price": 10, "stock": 3}})
	})
	mux.HandleFunc("/orders", func(w http.ResponseWriter, r *http.Request) {
		b.hit("orders")
		writeJSON(w, []map[string]any{{"id": "o1", "orderType": "SELL", "status": "PENDING"}})
	})
	for _, p := range []string{"/categories", "/users", "/inventory", "/inventory/orders"} {
		path := p
		mux.HandleFunc(path, func(w http.ResponseWriter, r *http.Request) {
			b.hit(strings.TrimPrefix(path, "/"))
			writeJSON(w, []any{})
		})
	}
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		go func() {
			for msg := range b.pushes {
				_ = conn.WriteMessage(websocket.TextMessage, []byte(msg))
			}
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})

	b.srv = httptest.NewServer(mux)
	t.Cleanup(b.srv.Close)
	return b
}

func (b *backend) hit(name string) {
	b.mu.Lock()
	b.hits[name]++
	b.mu.Unlock()
}

func (b *backend) Hits(name string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.hits[name]
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func testConfig(b *backend) config.Config {
	cfg := config.Default()
	cfg.API.BaseURL = b.srv.URL
	cfg.Realtime.RefreshDelay = config.Duration(10 * time.Millisecond)
	cfg.Realtime.Backoff = config.Duration(10 * time.Millisecond)
	cfg.Credentials = config.Credentials{Username: "admin", Password: "admin-pass"}
	return cfg
}

func newApp(t *testing.T, cfg config.Config, kv store.KVStore) *App {
	t.Helper()
	logger, _ := test.NewNullLogger()
	a, err := New(cfg, logrus.NewEntry(logger), WithStorage(kv), WithNotifier(mocks.NewMockNotifier()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Dispose() })
	return a
}

// ============================================
// Lifecycle Tests
// ============================================

func TestInit_LogsInAndLoadsStores(t *testing.T) {
	b := newBackend(t)
	kv := store.NewMemoryStore()
	a := newApp(t, testConfig(b), kv)

	require.NoError(t, a.Init(context.Background()))

	assert.True(t, a.Session.IsAuthenticated())
	profile, ok := a.Session.Profile()
	require.True(t, ok)
	assert.Equal(t, "admin", profile.Username)

	assert.Equal(t, 1, a.Products.Len())
	assert.Equal(t, 1, a.Orders.Len())
	assert.Equal(t, 0, a.Categories.Len())
	assert.Equal(t, 1, b.Hits("login"))

	tok, _, err := kv.Get(store.KeyAccessToken)
	require.NoError(t, err)
	assert.Equal(t, "access-1", tok)
}

func TestInit_ReusesStoredSession(t *testing.T) {
	b := newBackend(t)
	kv := store.NewMemoryStore()
	require.NoError(t, kv.Set(store.KeyAccessToken, "access-1"))
	cfg := testConfig(b)
	cfg.Credentials = config.Credentials{}
	a := newApp(t, cfg, kv)

	require.NoError(t, a.Init(context.Background()))

	assert.Equal(t, 0, b.Hits("login"))
	assert.Equal(t, 1, b.Hits("me"))
	assert.Equal(t, 1, a.Products.Len())
}

func TestInit_RequiresCredentials(t *testing.T) {
	b := newBackend(t)
	cfg := testConfig(b)
	cfg.Credentials = config.Credentials{}
	a := newApp(t, cfg, store.NewMemoryStore())

	err := a.Init(context.Background())

	assert.ErrorIs(t, err, user.ErrNotSignedIn)
	assert.Equal(t, 0, b.Hits("products"))
}

func TestInit_RestoresCart(t *testing.T) {
	b := newBackend(t)
	kv := store.NewMemoryStore()
	require.NoError(t, kv.Set(store.KeyCart, `[{"productId":"p1","name":"Mouse","price":10,"quantity":2}]`))
	a := newApp(t, testConfig(b), kv)

	require.NoError(t, a.Init(context.Background()))

	assert.Equal(t, 2, a.Cart.Count())
}

func TestDispose_Idempotent(t *testing.T) {
	b := newBackend(t)
	a := newApp(t, testConfig(b), store.NewMemoryStore())
	require.NoError(t, a.Init(context.Background()))

	require.NoError(t, a.Dispose())
	require.NoError(t, a.Dispose())
	assert.ErrorIs(t, a.Init(context.Background()), ErrDisposed)
}

func TestNew_SQLiteStorage(t *testing.T) {
	b := newBackend(t)
	cfg := testConfig(b)
	cfg.Storage.Path = t.TempDir() + "/state.db"
	logger, _ := test.NewNullLogger()

	a, err := New(cfg, logrus.NewEntry(logger))
	require.NoError(t, err)
	require.NoError(t, a.Init(context.Background()))
	require.NoError(t, a.Dispose())

	reopened, err := store.OpenSQLite(cfg.Storage.Path)
	require.NoError(t, err)
	defer reopened.Close()
	tok, ok, err := reopened.Get(store.KeyAccessToken)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "access-1", tok)
}

// ============================================
// Real-Time Tests
// ============================================

func TestRealtime_ProductUpdateRefreshesStores(t *testing.T) {
	b := newBackend(t)
	cfg := testConfig(b)
	cfg.Realtime.URL = "ws" + strings.TrimPrefix(b.srv.URL, "http") + "/ws"
	a := newApp(t, cfg, store.NewMemoryStore())

	require.NoError(t, a.Init(context.Background()))
	require.Eventually(t, func() bool { return a.Channel.State().String() == "connected" }, 2*time.Second, 5*time.Millisecond)

	b.pushes <- `{"type":"update","message":"{\"entityType\":\"products\"}"}`

	require.Eventually(t, func() bool {
		return b.Hits("products") == 2 && b.Hits("orders") == 2
	}, 2*time.Second, 5*time.Millisecond)

	entries := a.Dispatcher.Log().Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, "products", entries[0].EntityType)
}
