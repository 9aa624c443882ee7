package rest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

// HTTPError is a non-2xx response.
type HTTPError struct {
	Status  int
	Message string
}

func (e *HTTPError) Error() string {
	return e.Message
}

// StatusCode implements provider.StatusError.
func (e *HTTPError) StatusCode() int {
	return e.Status
}

// Temporary reports whether the request may succeed when retried.
func (e *HTTPError) Temporary() bool {
	return e.Status >= 500 || e.Status == http.StatusTooManyRequests
}

// newHTTPError builds the error of a failed response. The message is the
// body's message field when the body is a JSON object carrying one, the
// trimmed body text otherwise, and the status text for an empty body.
func newHTTPError(status int, body []byte) *HTTPError {
	var payload struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &payload); err == nil && payload.Message != "" {
		return &HTTPError{Status: status, Message: payload.Message}
	}
	if text := strings.TrimSpace(string(body)); text != "" && !strings.HasPrefix(text, "{") {
		return &HTTPError{Status: status, Message: text}
	}
	msg := http.StatusText(status)
	if msg == "" {
		msg = fmt.Sprintf("HTTP %d", status)
	}
	return &HTTPError{Status: status, Message: msg}
}
