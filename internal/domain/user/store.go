package user

import (
	"context"
	"errors"
	"strings"

	"github.com/example/ec-admin-sync/internal/auth"
	"github.com/example/ec-admin-sync/internal/liststore"
	"github.com/example/ec-admin-sync/internal/readmodel"
)

const StoreName = "users"

var (
	ErrInvalidUsername = errors.New("username is required")
	ErrUserNotFound    = errors.New("user not found")
)

// Store is the user administration list
type Store struct {
	*liststore.Store[readmodel.User]
}

func NewStore(backend liststore.Backend[readmodel.User], opts liststore.Options) *Store {
	cfg := liststore.Apply(liststore.Config[readmodel.User]{
		Name:         StoreName,
		Backend:      backend,
		DefaultSort:  "username",
		SearchFields: []string{"username", "email", "fullName", "roles"},
	}, opts)
	return &Store{Store: liststore.New(cfg)}
}

// Create validates u and adds it
func (s *Store) Create(ctx context.Context, u readmodel.User) error {
	var err error
	switch {
	case strings.TrimSpace(u.Username) == "":
		err = ErrInvalidUsername
	case !auth.IsValidEmail(u.Email):
		err = auth.ErrInvalidEmail
	}
	if err != nil {
		s.SetError(err)
		return err
	}
	return s.Add(ctx, u)
}

// SetActive toggles whether the account may sign in
func (s *Store) SetActive(ctx context.Context, id string, active bool) error {
	if _, ok := s.Find(id); !ok {
		s.SetError(ErrUserNotFound)
		return ErrUserNotFound
	}
	return s.Update(ctx, id, map[string]bool{"isActive": active})
}

// WithRole lists users carrying role
func (s *Store) WithRole(role string) []readmodel.User {
	var out []readmodel.User
	for _, u := range s.Items() {
		if u.HasRole(role) {
			out = append(out, u)
		}
	}
	return out
}
