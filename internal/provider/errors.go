package provider

import (
	"errors"
	"fmt"

	"github.com/roach88/admincache/internal/model"
)

// ContractError reports a response that violates the data-provider contract.
type ContractError struct {
	Verb   model.Verb
	Reason string
}

func (e *ContractError) Error() string {
	return fmt.Sprintf("%s: %s", e.Verb, e.Reason)
}

// IsContractError reports whether err is or wraps a *ContractError.
func IsContractError(err error) bool {
	var ce *ContractError
	return errors.As(err, &ce)
}

// StatusError is implemented by transport errors that carry an HTTP-like
// status code.
type StatusError interface {
	error
	StatusCode() int
}

// StatusOf returns the status code carried by err, or 0.
func StatusOf(err error) int {
	var se StatusError
	if errors.As(err, &se) {
		return se.StatusCode()
	}
	return 0
}
