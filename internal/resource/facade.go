package resource

import (
	"github.com/example/ec-admin-sync/internal/api"
	"github.com/example/ec-admin-sync/internal/auth"
	"github.com/example/ec-admin-sync/internal/infrastructure/store"
	"github.com/example/ec-admin-sync/internal/notification"
	"github.com/example/ec-admin-sync/internal/readmodel"
)

// Facade exposes one namespace per backend resource
type Facade struct {
	Auth       *AuthResource
	Me         *MeResource
	Categories *Collection[readmodel.Category]
	Products   *Collection[readmodel.Product]
	Orders     *OrdersResource
	Users      *Collection[readmodel.User]
	Inventory  *InventoryResource
	Reports    *ReportsResource
}

// New binds every namespace to client. tokens is read by Me.Renew.
func New(client api.Doer, tokens store.KVStore, notifier notification.Notifier) *Facade {
	if notifier == nil {
		notifier = notification.Discard
	}
	return &Facade{
		Auth: &AuthResource{client: client},
		Me: &MeResource{
			client:    client,
			tokens:    tokens,
			inspector: auth.NewInspector(),
			notifier:  notifier,
		},
		Categories: NewCollection[readmodel.Category](client, "/categories").CacheList(CategoryCacheMaxAge),
		Products:   NewCollection[readmodel.Product](client, "/products"),
		Orders:     &OrdersResource{Collection: NewCollection[readmodel.Order](client, "/orders")},
		Users:      NewCollection[readmodel.User](client, "/users"),
		Inventory: &InventoryResource{
			Collection: NewCollection[readmodel.InventoryItem](client, "/inventory"),
			Orders:     NewCollection[readmodel.InventoryOrder](client, "/inventory/orders"),
		},
		Reports: &ReportsResource{client: client},
	}
}

// WithInspector replaces the token inspector used by Me.Renew
func (f *Facade) WithInspector(i *auth.Inspector) *Facade {
	f.Me.inspector = i
	return f
}
