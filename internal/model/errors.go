package model

import (
	"errors"
	"fmt"
)

var (
	// ErrBusy is returned when a dispatch is started while another is outstanding
	ErrBusy = errors.New("a request is already in progress")
	// ErrNotFound is returned for unknown history keys
	ErrNotFound = errors.New("history entry not found")
	// ErrNoCurrent is returned when an action needs a current response
	ErrNoCurrent = errors.New("no current response")
)

// ValidationError reports a missing or malformed form field. It blocks dispatch.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// TransportError wraps a network-level failure during the image fetch or the API call
type TransportError struct {
	Stage string // "image" or "api"
	Err   error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s request failed: %v", e.Stage, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// NonJSONResponseError is a success status whose body does not decode as JSON
type NonJSONResponseError struct {
	StatusCode int
	Body       string
}

func (e *NonJSONResponseError) Error() string {
	return "response is not valid JSON, received text content instead"
}

// APIError is any status outside {200, 201}
type APIError struct {
	StatusCode int
	Body       string
	// JSON holds the decoded body when it parses, nil otherwise
	JSON any
}

func (e *APIError) Error() string {
	return fmt.Sprintf("failed to fetch API response, status code: %d", e.StatusCode)
}

// EditValidationError reports an edited JSON buffer that does not parse. It blocks export only.
type EditValidationError struct {
	Err error
}

func (e *EditValidationError) Error() string {
	return fmt.Sprintf("invalid JSON format, fix it before exporting: %v", e.Err)
}

func (e *EditValidationError) Unwrap() error { return e.Err }
