package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// TokenSource supplies the current bearer token; "" means anonymous.
type TokenSource interface {
	AccessToken() string
}

// TokenFunc adapts a function to TokenSource
type TokenFunc func() string

func (f TokenFunc) AccessToken() string { return f() }

// RoundTripperFunc adapts a function to http.RoundTripper
type RoundTripperFunc func(*http.Request) (*http.Response, error)

func (f RoundTripperFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

// extractToken extracts the bearer token from the Authorization header
func extractToken(r *http.Request) string {
	if authHeader := r.Header.Get("Authorization"); strings.HasPrefix(authHeader, "Bearer ") {
		return strings.TrimPrefix(authHeader, "Bearer ")
	}
	return ""
}

// BearerToken attaches the persisted token as an Authorization header. A
// header already set on the request wins, which lets token renewal send the
// refresh token instead.
func BearerToken(tokens TokenSource, next http.RoundTripper) http.RoundTripper {
	return RoundTripperFunc(func(r *http.Request) (*http.Response, error) {
		if r.Header.Get("Authorization") == "" {
			if token := tokens.AccessToken(); token != "" {
				r = r.Clone(r.Context())
				r.Header.Set("Authorization", "Bearer "+token)
			}
		}
		return next.RoundTrip(r)
	})
}

// UserAgent sets the User-Agent header when the caller did not
func UserAgent(ua string, next http.RoundTripper) http.RoundTripper {
	return RoundTripperFunc(func(r *http.Request) (*http.Response, error) {
		if r.Header.Get("User-Agent") == "" {
			r = r.Clone(r.Context())
			r.Header.Set("User-Agent", ua)
		}
		return next.RoundTrip(r)
	})
}

// Logging records each round trip at debug level
func Logging(log *logrus.Entry, next http.RoundTripper) http.RoundTripper {
	return RoundTripperFunc(func(r *http.Request) (*http.Response, error) {
		start := time.Now()
		resp, err := next.RoundTrip(r)
		entry := log.WithFields(logrus.Fields{
			"method":   r.Method,
			"path":     r.URL.Path,
			"duration": time.Since(start),
		})
		if err != nil {
			entry.WithError(err).Debug("request failed")
			return nil, err
		}
		entry.WithField("status", resp.StatusCode).Debug("request completed")
		return resp, nil
	})
}
