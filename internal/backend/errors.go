package backend

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

var (
	ErrTransport = errors.New("backend unreachable")
	ErrProtocol  = errors.New("backend protocol error")
)

const (
	genericTransportMessage = "The store is not reachable right now, please try again"
	genericRejectMessage    = "The request was rejected by the store"
	genericProtocolMessage  = "The store sent an unexpected response"
)

// APIError is a business rejection: the backend answered with a non-2xx status.
type APIError struct {
	Status  int
	Message string
	Method  string
	Path    string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s %s: %d %s", e.Method, e.Path, e.Status, e.Message)
	}
	return fmt.Sprintf("%s %s: %d %s", e.Method, e.Path, e.Status, http.StatusText(e.Status))
}

func IsStatus(err error, status int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == status
}

func IsNotFound(err error) bool {
	return IsStatus(err, http.StatusNotFound)
}

// UserMessage turns any backend error into the text shown to the shopper.
func UserMessage(err error) string {
	var apiErr *APIError
	switch {
	case err == nil:
		return ""
	case errors.As(err, &apiErr):
		if apiErr.Message != "" {
			return apiErr.Message
		}
		return genericRejectMessage
	case errors.Is(err, ErrProtocol):
		return genericProtocolMessage
	default:
		return genericTransportMessage
	}
}

func parseErrorBody(body []byte) string {
	var payload struct {
		Message string `json:"message"`
		Detail  string `json:"detail"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err == nil {
		for _, s := range []string{payload.Message, payload.Detail, payload.Error} {
			if s = strings.TrimSpace(s); s != "" {
				return s
			}
		}
		return ""
	}
	text := strings.TrimSpace(string(body))
	if len(text) > 200 || strings.HasPrefix(text, "<") {
		return ""
	}
	return text
}
