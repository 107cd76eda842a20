package user

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/example/ec-admin-sync/internal/auth"
	"github.com/example/ec-admin-sync/internal/formerror"
	"github.com/example/ec-admin-sync/internal/infrastructure/store"
	"github.com/example/ec-admin-sync/internal/notification"
	"github.com/example/ec-admin-sync/internal/readmodel"
	"github.com/example/ec-admin-sync/internal/resource"
)

var (
	ErrMissingCredentials = errors.New("username and password are required")
	ErrNotSignedIn        = errors.New("not signed in")
)

// AuthBackend is the public authentication API
type AuthBackend interface {
	Login(ctx context.Context, creds readmodel.Credentials) resource.Result[readmodel.TokenPair]
	Signup(ctx context.Context, req readmodel.SignupRequest) resource.Result[readmodel.User]
	Logout(ctx context.Context) resource.Result[resource.Empty]
	ForgotPassword(ctx context.Context, email string) resource.Result[resource.Empty]
	ResetPassword(ctx context.Context, token, password string) resource.Result[resource.Empty]
}

// ProfileBackend is the signed-in user's own API
type ProfileBackend interface {
	Get(ctx context.Context) resource.Result[readmodel.User]
	Update(ctx context.Context, patch any) resource.Result[readmodel.User]
	ChangePassword(ctx context.Context, change readmodel.PasswordChange) resource.Result[resource.Empty]
	UploadAvatar(ctx context.Context, fileName string, data []byte) resource.Result[readmodel.User]
	Renew(ctx context.Context) resource.Result[readmodel.TokenPair]
}

// Session is the signed-in user. It is the only writer of the token keys
// in client storage.
type Session struct {
	auth     AuthBackend
	me       ProfileBackend
	tokens   store.KVStore
	notifier notification.Notifier
	log      *logrus.Entry
	errors   *formerror.Handler

	mu       sync.RWMutex
	profile  *readmodel.User
	inflight int
}

func NewSession(authAPI AuthBackend, me ProfileBackend, tokens store.KVStore, notifier notification.Notifier, log *logrus.Entry) *Session {
	if notifier == nil {
		notifier = notification.Discard
	}
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	log = log.WithField("component", "session")
	return &Session{
		auth:     authAPI,
		me:       me,
		tokens:   tokens,
		notifier: notifier,
		log:      log,
		errors:   formerror.NewHandler(notifier, log, "username", "password", "email"),
	}
}

// Login stores the issued tokens and loads the profile
func (s *Session) Login(ctx context.Context, creds readmodel.Credentials) error {
	if strings.TrimSpace(creds.Username) == "" || creds.Password == "" {
		return s.reject(ErrMissingCredentials)
	}
	defer s.track()()

	res := s.auth.Login(ctx, creds)
	if err := res.Err(); err != nil {
		s.errors.Handle(err)
		return err
	}
	if err := s.storeTokens(res.Value()); err != nil {
		return err
	}
	s.errors.Clear()
	s.log.WithField("username", creds.Username).Info("signed in")
	return s.LoadProfile(ctx)
}

// Logout always clears the local session, even when the backend call fails
func (s *Session) Logout(ctx context.Context) error {
	if err := s.auth.Logout(ctx).Err(); err != nil {
		s.log.WithError(err).Warn("logout request failed")
	}
	s.mu.Lock()
	s.profile = nil
	s.mu.Unlock()
	s.log.Info("signed out")
	return s.clearTokens()
}

// Signup registers a new account
func (s *Session) Signup(ctx context.Context, req readmodel.SignupRequest) (readmodel.User, error) {
	s.errors.Clear()
	var invalid error
	if strings.TrimSpace(req.Username) == "" {
		invalid = ErrInvalidUsername
		s.errors.Set("username", invalid.Error())
	}
	if !auth.IsValidEmail(req.Email) {
		invalid = auth.ErrInvalidEmail
		s.errors.Set("email", invalid.Error())
	}
	if err := auth.ValidatePassword(req.Password); err != nil {
		invalid = err
		s.errors.Set("password", err.Error())
	}
	if invalid != nil {
		return readmodel.User{}, invalid
	}

	defer s.track()()
	res := s.auth.Signup(ctx, req)
	if err := res.Err(); err != nil {
		s.errors.Handle(err)
		return readmodel.User{}, err
	}
	return res.Value(), nil
}

func (s *Session) ForgotPassword(ctx context.Context, email string) error {
	if !auth.IsValidEmail(email) {
		s.errors.Clear()
		s.errors.Set("email", auth.ErrInvalidEmail.Error())
		return auth.ErrInvalidEmail
	}
	defer s.track()()
	if err := s.auth.ForgotPassword(ctx, email).Err(); err != nil {
		s.errors.Handle(err)
		return err
	}
	s.errors.Clear()
	s.notifier.Notify(notification.Info("Password reset", "Check your inbox for the reset link."))
	return nil
}

func (s *Session) ResetPassword(ctx context.Context, token, password string) error {
	if err := auth.ValidatePassword(password); err != nil {
		s.errors.Clear()
		s.errors.Set("password", err.Error())
		return err
	}
	defer s.track()()
	if err := s.auth.ResetPassword(ctx, token, password).Err(); err != nil {
		s.errors.Handle(err)
		return err
	}
	s.errors.Clear()
	return nil
}

// LoadProfile reads /me into the session
func (s *Session) LoadProfile(ctx context.Context) error {
	defer s.track()()
	res := s.me.Get(ctx)
	if err := res.Err(); err != nil {
		s.errors.Handle(err)
		return err
	}
	s.setProfile(res.Value())
	return nil
}

func (s *Session) UpdateProfile(ctx context.Context, patch any) error {
	defer s.track()()
	res := s.me.Update(ctx, patch)
	if err := res.Err(); err != nil {
		s.errors.Handle(err)
		return err
	}
	s.errors.Clear()
	s.setProfile(res.Value())
	return nil
}

func (s *Session) ChangePassword(ctx context.Context, change readmodel.PasswordChange) error {
	if err := auth.ValidatePasswordChange(change.CurrentPassword, change.NewPassword); err != nil {
		s.errors.Clear()
		s.errors.Set("password", err.Error())
		return err
	}
	defer s.track()()
	if err := s.me.ChangePassword(ctx, change).Err(); err != nil {
		s.errors.Handle(err)
		return err
	}
	s.errors.Clear()
	s.notifier.Notify(notification.Info("Password", "Your password has been changed."))
	return nil
}

func (s *Session) UploadAvatar(ctx context.Context, fileName string, data []byte) error {
	defer s.track()()
	res := s.me.UploadAvatar(ctx, fileName, data)
	if err := res.Err(); err != nil {
		s.errors.Handle(err)
		return err
	}
	s.setProfile(res.Value())
	return nil
}

// Refresh renews the token pair. When the refresh token is missing or
// expired the session is ended.
func (s *Session) Refresh(ctx context.Context) error {
	defer s.track()()
	res := s.me.Renew(ctx)
	if err := res.Err(); err != nil {
		if errors.Is(err, auth.ErrExpiredToken) || errors.Is(err, auth.ErrInvalidToken) || errors.Is(err, resource.ErrNoRefreshToken) {
			s.log.WithError(err).Info("session ended")
			s.mu.Lock()
			s.profile = nil
			s.mu.Unlock()
			if cerr := s.clearTokens(); cerr != nil {
				return cerr
			}
		}
		return err
	}
	return s.storeTokens(res.Value())
}

// IsAuthenticated reports whether an access token is stored
func (s *Session) IsAuthenticated() bool {
	tok, ok, err := s.tokens.Get(store.KeyAccessToken)
	return err == nil && ok && tok != ""
}

func (s *Session) Profile() (readmodel.User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.profile == nil {
		return readmodel.User{}, false
	}
	return *s.profile, true
}

// HasRole reports whether the signed-in user carries role
func (s *Session) HasRole(role string) bool {
	p, ok := s.Profile()
	return ok && p.HasRole(role)
}

func (s *Session) Loading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.inflight > 0
}

func (s *Session) FieldErrors() formerror.Map {
	return s.errors.Errors()
}

func (s *Session) setProfile(u readmodel.User) {
	s.mu.Lock()
	s.profile = &u
	s.mu.Unlock()
}

func (s *Session) reject(err error) error {
	s.errors.Clear()
	s.errors.Set(formerror.General, err.Error())
	return err
}

// track marks a request in flight until the returned func runs
func (s *Session) track() func() {
	s.mu.Lock()
	s.inflight++
	s.mu.Unlock()
	return func() {
		s.mu.Lock()
		s.inflight--
		s.mu.Unlock()
	}
}

func (s *Session) storeTokens(pair readmodel.TokenPair) error {
	if pair.AccessToken == "" {
		return auth.ErrInvalidToken
	}
	if err := s.tokens.Set(store.KeyAccessToken, pair.AccessToken); err != nil {
		return err
	}
	if pair.RefreshToken != "" {
		if err := s.tokens.Set(store.KeyRefreshToken, pair.RefreshToken); err != nil {
			return err
		}
	}
	return nil
}

func (s *Session) clearTokens() error {
	if err := s.tokens.Delete(store.KeyAccessToken); err != nil {
		return err
	}
	return s.tokens.Delete(store.KeyRefreshToken)
}
