package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

var (
	ErrConnectivity = errors.New("backend unreachable")
	ErrCancelled    = errors.New("request cancelled")
	ErrTimeout      = errors.New("request timed out")
)

// ConnectivityError is returned when the health probe fails. The real call
// is never attempted.
type ConnectivityError struct {
	URL string
	Err error
}

func (e *ConnectivityError) Error() string {
	return fmt.Sprintf("connectivity check %s failed: %v", e.URL, e.Err)
}

func (e *ConnectivityError) Unwrap() error        { return e.Err }
func (e *ConnectivityError) Is(target error) bool { return target == ErrConnectivity }

// TransportError covers network failures, timeouts and non-validation HTTP
// error responses.
type TransportError struct {
	Method     string
	Path       string
	StatusCode int // 0 when no response was received
	Message    string
	Timeout    bool
	Err        error
}

func (e *TransportError) Error() string {
	switch {
	case e.StatusCode > 0 && e.Message != "":
		return fmt.Sprintf("%s %s: status %d: %s", e.Method, e.Path, e.StatusCode, e.Message)
	case e.StatusCode > 0:
		return fmt.Sprintf("%s %s: status %d", e.Method, e.Path, e.StatusCode)
	default:
		return fmt.Sprintf("%s %s: %v", e.Method, e.Path, e.Err)
	}
}

func (e *TransportError) Unwrap() error        { return e.Err }
func (e *TransportError) Is(target error) bool { return target == ErrTimeout && e.Timeout }

// FieldError is one field/message pair of a validation payload
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError is a structured validation payload from the backend.
// Single is set when the payload was one object rather than an array.
type ValidationError struct {
	StatusCode int
	Fields     []FieldError
	Single     bool
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		if f.Field == "" {
			parts = append(parts, f.Message)
			continue
		}
		parts = append(parts, f.Field+": "+f.Message)
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// CancellationError is returned when a registered request is cancelled by id
type CancellationError struct {
	RequestID string
}

func (e *CancellationError) Error() string {
	return fmt.Sprintf("request %q cancelled", e.RequestID)
}

func (e *CancellationError) Is(target error) bool { return target == ErrCancelled }

// IsNetworkError reports whether err came from talking to the backend, as
// opposed to a failure inside the client itself.
func IsNetworkError(err error) bool {
	var (
		ce *ConnectivityError
		te *TransportError
		ve *ValidationError
		xe *CancellationError
	)
	return errors.As(err, &ce) || errors.As(err, &te) || errors.As(err, &ve) || errors.As(err, &xe)
}

// parseErrorBody turns an error response into a ValidationError when the body
// carries field/message pairs, otherwise into a TransportError.
func parseErrorBody(method, path string, status int, body []byte) error {
	trimmed := strings.TrimSpace(string(body))

	var list []FieldError
	if err := json.Unmarshal(body, &list); err == nil && hasMessages(list) {
		return &ValidationError{StatusCode: status, Fields: list}
	}

	var obj struct {
		Field   *string      `json:"field"`
		Message string       `json:"message"`
		Error   string       `json:"error"`
		Errors  []FieldError `json:"errors"`
	}
	if err := json.Unmarshal(body, &obj); err == nil {
		switch {
		case hasMessages(obj.Errors):
			return &ValidationError{StatusCode: status, Fields: obj.Errors}
		case obj.Field != nil && obj.Message != "":
			return &ValidationError{
				StatusCode: status,
				Fields:     []FieldError{{Field: *obj.Field, Message: obj.Message}},
				Single:     true,
			}
		case obj.Message != "":
			trimmed = obj.Message
		case obj.Error != "":
			trimmed = obj.Error
		}
	}

	if len(trimmed) > 512 {
		trimmed = trimmed[:512] + "...(truncated)"
	}
	return &TransportError{Method: method, Path: path, StatusCode: status, Message: trimmed}
}

func hasMessages(list []FieldError) bool {
	for _, f := range list {
		if f.Message != "" {
			return true
		}
	}
	return false
}
