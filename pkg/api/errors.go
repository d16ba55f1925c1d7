package api

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
)

// APIError is a non-2xx response decoded from the backend's {"error": code}
// payload. Code is a stable backend identifier; Message is the raw body text
// when no code could be decoded.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("api: %s (http %d)", e.Code, e.Status)
	}
	return fmt.Sprintf("api: http %d: %s", e.Status, e.Message)
}

// userMessages maps known backend error codes to user-facing text. Unknown
// codes fall back to a generic message so no raw code ever reaches the user.
var userMessages = map[string]string{
	"ERR_NO_TICKET_FOUND":        "No ticket found with this ID.",
	"ERR_NO_CONTACT_FOUND":       "No contact found with this ID.",
	"ERR_OTHER_OPEN_TICKET":      "There is already an open ticket for this contact.",
	"ERR_SESSION_EXPIRED":        "Session expired. Please login.",
	"ERR_USER_CREATION_DISABLED": "User creation was disabled by the administrator.",
	"ERR_NO_PERMISSION":          "You don't have permission to access this resource.",
	"ERR_SENDING_WAPP_MSG":       "Error sending WhatsApp message. Check the connection page.",
	"ERR_FETCH_WAPP_MSG":         "Error fetching messages. Maybe they are too old.",
}

const genericUserMessage = "An error occurred. Please try again."

// UserMessage returns the localized-equivalent text for the error.
func (e *APIError) UserMessage() string {
	if msg, ok := userMessages[e.Code]; ok {
		return msg
	}
	return genericUserMessage
}

// UserMessage funnels any error through the code→message table. Cancellation
// is not expected here; callers filter it first with IsCanceled.
func UserMessage(err error) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.UserMessage()
	}
	return genericUserMessage
}

// IsCanceled reports whether the error is a context cancellation rather than
// a genuine failure. Cancelled requests are silently ignored: their results
// must never apply, and neither should their error surface.
func IsCanceled(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
