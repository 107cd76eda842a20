package store

import "errors"

// Storage keys. Each key has exactly one writer: the session owns the
// token keys, the cart store owns KeyCart.
const (
	KeyAccessToken  = "access_token"
	KeyRefreshToken = "refresh_token"
	KeyCart         = "cart"
)

var ErrEmptyKey = errors.New("storage key is required")

// KVStore is the client-persisted key-value storage
type KVStore interface {
	// Get returns the value stored under key and whether it exists
	Get(key string) (string, bool, error)

	// Set stores value under key, replacing any previous value
	Set(key, value string) error

	// Delete removes key; deleting a missing key is not an error
	Delete(key string) error
}

// TokenReader adapts a KVStore to the access-token lookup the API client uses.
type TokenReader struct {
	Store KVStore
}

// AccessToken returns the persisted bearer token or "" when none is stored.
func (t TokenReader) AccessToken() string {
	if t.Store == nil {
		return ""
	}
	v, ok, err := t.Store.Get(KeyAccessToken)
	if err != nil || !ok {
		return ""
	}
	return v
}
