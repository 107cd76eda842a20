package resource

import (
	"context"
	"errors"
	"net/http"

	"github.com/example/ec-admin-sync/internal/api"
	"github.com/example/ec-admin-sync/internal/auth"
	"github.com/example/ec-admin-sync/internal/infrastructure/store"
	"github.com/example/ec-admin-sync/internal/notification"
	"github.com/example/ec-admin-sync/internal/readmodel"
)

// ErrNoRefreshToken is returned by Renew when nothing is stored
var ErrNoRefreshToken = errors.New("no refresh token stored")

// AuthResource covers the public authentication endpoints
type AuthResource struct {
	client api.Doer
}

func (a *AuthResource) Login(ctx context.Context, creds readmodel.Credentials) Result[readmodel.TokenPair] {
	var out readmodel.TokenPair
	if err := a.client.Do(ctx, api.Request{Method: http.MethodPost, Path: "/auth/public/login", Body: creds}, &out); err != nil {
		return Err[readmodel.TokenPair](err)
	}
	return Ok(out)
}

func (a *AuthResource) Signup(ctx context.Context, req readmodel.SignupRequest) Result[readmodel.User] {
	var out readmodel.User
	if err := a.client.Do(ctx, api.Request{Method: http.MethodPost, Path: "/auth/public/signup", Body: req}, &out); err != nil {
		return Err[readmodel.User](err)
	}
	return Ok(out)
}

func (a *AuthResource) Logout(ctx context.Context) Result[Empty] {
	return a.post(ctx, "/auth/public/logout", nil)
}

func (a *AuthResource) ForgotPassword(ctx context.Context, email string) Result[Empty] {
	return a.post(ctx, "/auth/public/forgot-password", map[string]string{"email": email})
}

func (a *AuthResource) ResetPassword(ctx context.Context, token, password string) Result[Empty] {
	return a.post(ctx, "/auth/public/reset-password", map[string]string{"token": token, "password": password})
}

func (a *AuthResource) post(ctx context.Context, path string, body any) Result[Empty] {
	if err := a.client.Do(ctx, api.Request{Method: http.MethodPost, Path: path, Body: body}, nil); err != nil {
		return Err[Empty](err)
	}
	return Ok(Empty{})
}

// MeResource covers the signed-in user's own profile
type MeResource struct {
	client    api.Doer
	tokens    store.KVStore
	inspector *auth.Inspector
	notifier  notification.Notifier
}

func (m *MeResource) Get(ctx context.Context) Result[readmodel.User] {
	var out readmodel.User
	if err := m.client.Do(ctx, api.Request{Method: http.MethodGet, Path: "/me"}, &out); err != nil {
		return Err[readmodel.User](err)
	}
	return Ok(out)
}

func (m *MeResource) Update(ctx context.Context, patch any) Result[readmodel.User] {
	var out readmodel.User
	if err := m.client.Do(ctx, api.Request{Method: http.MethodPut, Path: "/me", Body: patch}, &out); err != nil {
		return Err[readmodel.User](err)
	}
	return Ok(out)
}

func (m *MeResource) ChangePassword(ctx context.Context, change readmodel.PasswordChange) Result[Empty] {
	if err := m.client.Do(ctx, api.Request{Method: http.MethodPost, Path: "/me/change-password", Body: change}, nil); err != nil {
		return Err[Empty](err)
	}
	return Ok(Empty{})
}

// UploadAvatar sends the image as a multipart form under the "avatar" field
func (m *MeResource) UploadAvatar(ctx context.Context, fileName string, data []byte) Result[readmodel.User] {
	body := &api.Multipart{Files: []api.FilePart{{Field: "avatar", FileName: fileName, Data: data}}}
	var out readmodel.User
	if err := m.client.Do(ctx, api.Request{Method: http.MethodPost, Path: "/me/avatar", Body: body}, &out); err != nil {
		return Err[readmodel.User](err)
	}
	return Ok(out)
}

// Renew trades the stored refresh token for a new pair. An expired refresh
// token is rejected locally without a network call.
func (m *MeResource) Renew(ctx context.Context) Result[readmodel.TokenPair] {
	refresh, ok, err := m.tokens.Get(store.KeyRefreshToken)
	if err != nil {
		return Err[readmodel.TokenPair](err)
	}
	if !ok || refresh == "" {
		return Err[readmodel.TokenPair](ErrNoRefreshToken)
	}
	if err := m.inspector.CheckNotExpired(refresh); err != nil {
		m.notifier.Notify(notification.Warning("Session", "Your session has expired. Please sign in again."))
		return Err[readmodel.TokenPair](err)
	}

	header := http.Header{}
	header.Set("Authorization", "Bearer "+refresh)
	var out readmodel.TokenPair
	if err := m.client.Do(ctx, api.Request{Method: http.MethodGet, Path: "/me/renew", Header: header}, &out); err != nil {
		return Err[readmodel.TokenPair](err)
	}
	return Ok(out)
}
