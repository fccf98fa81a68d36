package util

import (
	"errors"
	"fmt"
	"net/http"
)

// Error codes used across the event-sourced core.
const (
	CodeNotFound           = "NOT_FOUND"
	CodeConflict           = "CONFLICT"
	CodePersistenceFailure = "PERSISTENCE_FAILURE"
	CodeUnknownEventType   = "UNKNOWN_EVENT_TYPE"
	CodeMalformedEvent     = "MALFORMED_EVENT"
	CodeValidationFailed   = "VALIDATION_FAILED"
	CodeInternal           = "INTERNAL_ERROR"
)

// DomainError standardizes application errors.
type DomainError struct {
	Code       string
	Message    string
	HTTPStatus int
	Details    map[string]any
	Err        error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError constructs a DomainError.
func NewDomainError(code, message string, status int, details map[string]any) *DomainError {
	return &DomainError{Code: code, Message: message, HTTPStatus: status, Details: details}
}

func NewValidationError(message string, details map[string]any) error {
	return NewDomainError(CodeValidationFailed, message, http.StatusBadRequest, details)
}

// NewAggregateNotFound signals that no events exist for the aggregate id.
func NewAggregateNotFound(aggregateID string) error {
	return &DomainError{
		Code:       CodeNotFound,
		Message:    fmt.Sprintf("aggregate %s not found", aggregateID),
		HTTPStatus: http.StatusNotFound,
		Details:    map[string]any{"aggregate_id": aggregateID},
	}
}

func NewConflict(message string, details map[string]any) error {
	return NewDomainError(CodeConflict, message, http.StatusConflict, details)
}

// NewPersistenceFailure wraps a store or transaction level error with the
// aggregate id it concerns.
func NewPersistenceFailure(aggregateID string, err error) error {
	return &DomainError{
		Code:       CodePersistenceFailure,
		Message:    fmt.Sprintf("persistence failure for aggregate %s", aggregateID),
		HTTPStatus: http.StatusInternalServerError,
		Details:    map[string]any{"aggregate_id": aggregateID},
		Err:        err,
	}
}

// NewUnknownEventType signals a stored event tag with no registered decoder.
func NewUnknownEventType(eventType string) error {
	return &DomainError{
		Code:       CodeUnknownEventType,
		Message:    fmt.Sprintf("unknown event type %q", eventType),
		HTTPStatus: http.StatusInternalServerError,
		Details:    map[string]any{"event_type": eventType},
	}
}

// NewMalformedEvent signals an event that cannot be applied because required
// fields are missing or unreadable.
func NewMalformedEvent(eventType, reason string, err error) error {
	return &DomainError{
		Code:       CodeMalformedEvent,
		Message:    fmt.Sprintf("malformed %s event: %s", eventType, reason),
		HTTPStatus: http.StatusInternalServerError,
		Details:    map[string]any{"event_type": eventType},
		Err:        err,
	}
}

func NewInternalError(err error) error {
	return &DomainError{
		Code:       CodeInternal,
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// HasCode reports whether err is a DomainError carrying the given code.
func HasCode(err error, code string) bool {
	var domainErr *DomainError
	return errors.As(err, &domainErr) && domainErr.Code == code
}

func IsNotFound(err error) bool { return HasCode(err, CodeNotFound) }
func IsConflict(err error) bool { return HasCode(err, CodeConflict) }

// ToDomainError converts generic errors to DomainError.
func ToDomainError(err error) *DomainError {
	if err == nil {
		return nil
	}
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr
	}
	return &DomainError{
		Code:       CodeInternal,
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}
