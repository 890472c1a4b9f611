package apiclient

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

var (
	// ErrUnauthorized matches 401 and 403 responses.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrTokenRejected matches 401 only: the caller's token is missing,
	// expired or revoked, as opposed to a permission refusal.
	ErrTokenRejected = errors.New("token rejected")
	ErrNotFound      = errors.New("not found")
)

// Error is the single failure type of the client. Transport errors, non-2xx
// responses and undecodable bodies all end up here.
type Error struct {
	Service Service
	Op      string
	Status  int
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s %s: status %d: %s", e.Service, e.Op, e.Status, e.Message)
	}
	return fmt.Sprintf("%s %s: %s", e.Service, e.Op, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool {
	switch target {
	case ErrUnauthorized:
		return e.Status == http.StatusUnauthorized || e.Status == http.StatusForbidden
	case ErrTokenRejected:
		return e.Status == http.StatusUnauthorized
	case ErrNotFound:
		return e.Status == http.StatusNotFound
	}
	return false
}

// Message returns a string suitable for showing to the user.
func Message(err error) string {
	if err == nil {
		return ""
	}
	var apiErr *Error
	if errors.As(err, &apiErr) {
		if apiErr.Message != "" {
			return apiErr.Message
		}
		return http.StatusText(apiErr.Status)
	}
	return err.Error()
}

// HTTPStatus maps a client error to the status a JSON endpoint should return.
func HTTPStatus(err error) int {
	var apiErr *Error
	if !errors.As(err, &apiErr) || apiErr.Status == 0 {
		return http.StatusBadGateway
	}
	if apiErr.Status >= 500 {
		return http.StatusBadGateway
	}
	return apiErr.Status
}

// errorMessage extracts the message from common backend error bodies:
// {"error": "..."}, {"detail": "..."}, {"message": "..."} or a field map
// such as {"amount": ["Bid too low"]}.
func errorMessage(body []byte, status int) string {
	var payload map[string]any
	if err := json.Unmarshal(body, &payload); err == nil {
		for _, key := range []string{"error", "detail", "message"} {
			if v, ok := payload[key].(string); ok && v != "" {
				return v
			}
		}
		var parts []string
		for field, v := range payload {
			switch val := v.(type) {
			case string:
				parts = append(parts, field+": "+val)
			case []any:
				for _, item := range val {
					if s, ok := item.(string); ok {
						parts = append(parts, field+": "+s)
					}
				}
			}
		}
		if len(parts) > 0 {
			return strings.Join(sortedStrings(parts), "; ")
		}
	}
	text := strings.TrimSpace(string(body))
	if text == "" || strings.HasPrefix(text, "<") || len(text) > 200 {
		return http.StatusText(status)
	}
	return text
}
