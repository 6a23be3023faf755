package jsonapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// ErrorObject is one entry of a JSON:API error document.
type ErrorObject struct {
	Status string `json:"status,omitempty"`
	Code   string `json:"code,omitempty"`
	Title  string `json:"title,omitempty"`
	Detail string `json:"detail,omitempty"`
}

// APIError is the transport error raised for any non-2xx response. It always
// carries the HTTP status code; Errors holds the parsed JSON:API error
// objects when the server provided them.
type APIError struct {
	StatusCode int
	Errors     []ErrorObject
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if len(e.Errors) == 0 {
		return fmt.Sprintf("jsonapi: HTTP %d", e.StatusCode)
	}

	first := e.Errors[0]
	if first.Title != "" && first.Detail != "" {
		return fmt.Sprintf("jsonapi: HTTP %d: %s: %s", e.StatusCode, first.Title, first.Detail)
	}

	if first.Detail != "" {
		return fmt.Sprintf("jsonapi: HTTP %d: %s", e.StatusCode, first.Detail)
	}

	return fmt.Sprintf("jsonapi: HTTP %d: %s", e.StatusCode, first.Title)
}

// ParseAPIError builds an APIError from a response body, tolerating bodies
// that are not JSON:API error documents.
func ParseAPIError(statusCode int, body []byte) *APIError {
	apiErr := &APIError{StatusCode: statusCode}

	var parsed struct {
		Errors []ErrorObject `json:"errors"`
	}

	if err := json.Unmarshal(body, &parsed); err == nil {
		apiErr.Errors = parsed.Errors
	}

	return apiErr
}

// IsNotFound checks if the error is a 404 transport error.
func IsNotFound(err error) bool {
	apiErr := &APIError{}
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == http.StatusNotFound
	}

	return false
}

// IsUnauthorized checks if the error is a 401 transport error.
func IsUnauthorized(err error) bool {
	apiErr := &APIError{}
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == http.StatusUnauthorized
	}

	return false
}

// ValidationError reports a field value that could not be validated or
// converted. It is raised before any network call.
type ValidationError struct {
	Field   string
	Value   any
	Message string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("jsonapi: invalid value %v for field %q: %s", e.Value, e.Field, e.Message)
}

// Static errors that can be wrapped with context.
var (
	ErrInvalidIdentifier        = errors.New("invalid resource identifier")
	ErrEmptyDocumentData        = errors.New("document has no data")
	ErrUnknownRelationship      = errors.New("unknown relationship")
	ErrDuplicateResourceType    = errors.New("resource type already registered")
	ErrUnknownResourceType      = errors.New("unknown resource type")
	ErrRecordCreationNotAllowed = errors.New("record creation not supported")
	ErrUpdateFieldsRequired     = errors.New("update fields required to save a record")
	ErrMissingRecordCount       = errors.New("response meta has no record_count")
	ErrNoMoreItems              = errors.New("no more items")
	ErrIndexOutOfRange          = errors.New("index out of range")
	ErrCacheKeyNotFound         = errors.New("key not found")
	ErrCacheEntryExpired        = errors.New("entry expired")
	ErrCacheDisabled            = errors.New("cache disabled")
	ErrKeyNotFoundInAnyCache    = errors.New("key not found in any cache")
	ErrUnsupportedCacheType     = errors.New("unsupported cache type")
	ErrNATSConfigRequired       = errors.New("NATS configuration required for NATS cache")
	ErrRedisConfigRequired      = errors.New("redis configuration required for redis cache")
)
