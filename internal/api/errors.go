package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/tidwall/gjson"
)

// Display messages for failures that carry no usable backend text.
const (
	ServerUnavailableMessage = "server is unavailable, please try again later"
	RequestFailedMessage     = "request failed"
	NetworkErrorMessage      = "network error, check your connection and try again"
)

// ErrNoToken is returned when an authenticated call is made without a bearer token.
var ErrNoToken = errors.New("authentication required")

// Error is a normalized backend or transport failure.
type Error struct {
	// Status is the HTTP status code, or 0 for transport failures.
	Status  int
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Status == 0 {
		return e.Message
	}
	return fmt.Sprintf("%s (status %d)", e.Message, e.Status)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsUnauthorized reports whether err is a 401 from the backend.
func IsUnauthorized(err error) bool {
	return StatusOf(err) == http.StatusUnauthorized
}

// StatusOf returns the HTTP status carried by err, or 0.
func StatusOf(err error) int {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Status
	}
	return 0
}

// Message converts any error into a display-ready string.
func Message(err error) string {
	if err == nil {
		return ""
	}
	var apiErr *Error
	switch {
	case errors.As(err, &apiErr):
		return apiErr.Message
	case errors.Is(err, context.Canceled):
		return "request cancelled"
	case errors.Is(err, context.DeadlineExceeded):
		return "request timed out"
	default:
		return err.Error()
	}
}

// parseError builds an Error from a non-2xx response body. Server errors never
// surface raw backend text.
func parseError(status int, body []byte) *Error {
	if status >= http.StatusInternalServerError {
		return &Error{Status: status, Message: ServerUnavailableMessage}
	}
	msg := detailMessage(body)
	if msg == "" {
		msg = RequestFailedMessage
	}
	return &Error{Status: status, Message: msg}
}

// detailMessage flattens a `detail` field that is either a string, an object
// with a message, or a list of validation errors.
func detailMessage(body []byte) string {
	if len(body) == 0 || !gjson.ValidBytes(body) {
		return ""
	}
	detail := gjson.GetBytes(body, "detail")
	switch {
	case !detail.Exists():
		return ""
	case detail.Type == gjson.String:
		return strings.TrimSpace(detail.String())
	case detail.IsArray():
		parts := make([]string, 0, len(detail.Array()))
		for _, item := range detail.Array() {
			if item.Type == gjson.String {
				parts = append(parts, item.String())
				continue
			}
			msg := item.Get("msg").String()
			if msg == "" {
				continue
			}
			if field := lastLoc(item.Get("loc")); field != "" {
				msg = field + ": " + msg
			}
			parts = append(parts, msg)
		}
		return strings.Join(parts, "; ")
	case detail.IsObject():
		if msg := detail.Get("message").String(); msg != "" {
			return msg
		}
		return detail.Get("msg").String()
	default:
		return ""
	}
}

func lastLoc(loc gjson.Result) string {
	items := loc.Array()
	if len(items) == 0 {
		return ""
	}
	last := items[len(items)-1]
	if last.Type != gjson.String || last.String() == "body" {
		return ""
	}
	return last.String()
}
