package engine

import (
	"errors"
	"fmt"
)

// RuntimeError is a request the engine refused to dispatch. Provider
// failures are not RuntimeErrors; they travel on the failure path and are
// surfaced as notifications.
type RuntimeError struct {
	// Code identifies the error category.
	Code RuntimeErrorCode

	// Message is a human-readable description.
	Message string

	// Token identifies the refused request.
	Token string

	// Resource is the resource the request targeted.
	Resource string

	// Details contains additional context.
	Details map[string]string
}

// RuntimeErrorCode categorizes runtime errors.
type RuntimeErrorCode string

const (
	// ErrCodeUnknownResource indicates the resource was never registered.
	ErrCodeUnknownResource RuntimeErrorCode = "UNKNOWN_RESOURCE"

	// ErrCodeInvalidVerb indicates a verb outside the data-provider contract.
	ErrCodeInvalidVerb RuntimeErrorCode = "INVALID_VERB"

	// ErrCodeInvalidReference indicates a malformed reference definition.
	ErrCodeInvalidReference RuntimeErrorCode = "INVALID_REFERENCE"

	// ErrCodeInvalidRequest indicates missing or malformed request arguments.
	ErrCodeInvalidRequest RuntimeErrorCode = "INVALID_REQUEST"

	// ErrCodeStopped indicates the engine no longer accepts requests.
	ErrCodeStopped RuntimeErrorCode = "ENGINE_STOPPED"
)

// Error implements the error interface.
func (e *RuntimeError) Error() string {
	switch {
	case e.Token != "" && e.Resource != "":
		return fmt.Sprintf("%s: %s (token=%s, resource=%s)", e.Code, e.Message, e.Token, e.Resource)
	case e.Resource != "":
		return fmt.Sprintf("%s: %s (resource=%s)", e.Code, e.Message, e.Resource)
	default:
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
}

func hasCode(err error, code RuntimeErrorCode) bool {
	var re *RuntimeError
	if errors.As(err, &re) {
		return re.Code == code
	}
	return false
}

// IsUnknownResource reports whether err is an unknown-resource error.
func IsUnknownResource(err error) bool {
	return hasCode(err, ErrCodeUnknownResource)
}

// IsInvalidRequest reports whether err is an invalid-request or invalid-verb
// error.
func IsInvalidRequest(err error) bool {
	return hasCode(err, ErrCodeInvalidRequest) || hasCode(err, ErrCodeInvalidVerb)
}

// IsInvalidReference reports whether err is a reference definition error.
func IsInvalidReference(err error) bool {
	return hasCode(err, ErrCodeInvalidReference)
}

// IsStopped reports whether err was returned because the engine stopped.
func IsStopped(err error) bool {
	return hasCode(err, ErrCodeStopped)
}

// ErrStopped is the error of tickets issued after Stop.
var ErrStopped = &RuntimeError{Code: ErrCodeStopped, Message: "engine is stopped"}

// NewUnknownResourceError creates a RuntimeError for an unregistered resource.
func NewUnknownResourceError(token, resource string) *RuntimeError {
	return &RuntimeError{
		Code:     ErrCodeUnknownResource,
		Message:  "resource is not registered",
		Token:    token,
		Resource: resource,
	}
}

// NewInvalidRequestError creates a RuntimeError for bad request arguments.
func NewInvalidRequestError(token, resource, message string) *RuntimeError {
	return &RuntimeError{
		Code:     ErrCodeInvalidRequest,
		Message:  message,
		Token:    token,
		Resource: resource,
	}
}

// NewInvalidReferenceError wraps a reference validation failure.
func NewInvalidReferenceError(resource, field string, cause error) *RuntimeError {
	return &RuntimeError{
		Code:     ErrCodeInvalidReference,
		Message:  cause.Error(),
		Resource: resource,
		Details:  map[string]string{"field": field},
	}
}
