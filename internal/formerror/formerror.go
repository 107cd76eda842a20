// Package formerror turns request failures into a per-field message map with
// a "general" slot for everything that is not tied to a form field.
package formerror

import (
	"errors"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/example/ec-admin-sync/internal/api"
	"github.com/example/ec-admin-sync/internal/notification"
)

// General is the slot for messages that belong to no field
const General = "general"

// opaqueFields are backend categories that never name a form field
var opaqueFields = map[string]bool{
	"database":        true,
	"argument":        true,
	"db":              true,
	"illegalArgument": true,
}

// Map is field name -> message
type Map map[string]string

// Normalize maps err without side effects. ok is false for errors that did
// not come from the backend; those have no field mapping.
func Normalize(err error) (m Map, ok bool) {
	if err == nil {
		return Map{}, true
	}
	if !api.IsNetworkError(err) {
		return nil, false
	}

	m = Map{}
	var verr *api.ValidationError
	if !errors.As(err, &verr) {
		m[General] = message(err)
		return m, true
	}

	for _, f := range verr.Fields {
		key := f.Field
		if key == "" || (verr.Single && opaqueFields[key]) {
			key = General
		}
		if prev, exists := m[key]; exists && prev != "" {
			// Keep the first message per field
			continue
		}
		m[key] = f.Message
	}
	return m, true
}

func message(err error) string {
	var terr *api.TransportError
	if errors.As(err, &terr) && terr.Message != "" {
		return terr.Message
	}
	var cerr *api.ConnectivityError
	if errors.As(err, &cerr) {
		return "Unable to reach the server"
	}
	return err.Error()
}

// Handler owns the error map of one form
type Handler struct {
	mu       sync.RWMutex
	fields   Map
	defaults map[string]bool
	notifier notification.Notifier
	log      *logrus.Entry
}

// NewHandler creates a handler whose map always carries General plus the
// given default keys.
func NewHandler(notifier notification.Notifier, log *logrus.Entry, defaults ...string) *Handler {
	if notifier == nil {
		notifier = notification.Discard
	}
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	h := &Handler{
		fields:   Map{},
		defaults: map[string]bool{General: true},
		notifier: notifier,
		log:      log.WithField("component", "formerror"),
	}
	for _, k := range defaults {
		h.defaults[k] = true
	}
	h.reset()
	return h
}

// reset drops every non-default key and blanks the default ones.
// Callers hold mu.
func (h *Handler) reset() {
	for k := range h.fields {
		if !h.defaults[k] {
			delete(h.fields, k)
		}
	}
	for k := range h.defaults {
		h.fields[k] = ""
	}
}

// Handle replaces the map with the fields of err. Errors raised inside the
// client are shown as a toast and logged instead. It returns the new map.
func (h *Handler) Handle(err error) Map {
	h.mu.Lock()
	h.reset()
	mapped, ok := Normalize(err)
	if ok {
		for k, v := range mapped {
			h.fields[k] = v
		}
	}
	out := h.snapshot()
	h.mu.Unlock()

	if !ok {
		h.log.WithError(err).Error("unexpected client error")
		h.notifier.Notify(notification.Error("Error", "Something went wrong. Please try again."))
	}
	return out
}

// Set writes one message, e.g. from a check made before any request
func (h *Handler) Set(field, msg string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.fields[field] = msg
}

// Clear resets the map without handling an error
func (h *Handler) Clear() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.reset()
}

// Get returns the message for field, or "" when none is set
func (h *Handler) Get(field string) string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.fields[field]
}

// Errors returns a copy of the map
func (h *Handler) Errors() Map {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.snapshot()
}

// hasErrors reports whether any slot holds a message
func (h *Handler) hasErrors() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, v := range h.fields {
		if v != "" {
			return true
		}
	}
	return false
}

func (h *Handler) snapshot() Map {
	out := make(Map, len(h.fields))
	for k, v := range h.fields {
		out[k] = v
	}
	return out
}
