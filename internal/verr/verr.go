// Package verr implements the error taxonomy: InvalidInput fails fast
// before any computation, InsufficientData marks a typed "not enough
// bars" condition, and ExternalFailure wraps an error raised by a
// collaborator named in internal/external.
package verr

import "fmt"

// InvalidInput wraps a precondition violation: a preset index out of
// range, a malformed TPSLConfig, a DataFrame missing a required column.
type InvalidInput struct {
	Field  string
	Reason string
}

func (e *InvalidInput) Error() string {
	return fmt.Sprintf("invalid input: %s: %s", e.Field, e.Reason)
}

// NewInvalidInput builds an *InvalidInput.
func NewInvalidInput(field, reason string) error {
	return &InvalidInput{Field: field, Reason: reason}
}

// InsufficientData wraps a "fewer bars than required" condition.
// Callers distinguish it from InvalidInput: the input is well-formed,
// there is just not enough of it yet.
type InsufficientData struct {
	Component string
	Have      int
	Need      int
}

func (e *InsufficientData) Error() string {
	return fmt.Sprintf("%s: insufficient data: have %d bars, need %d", e.Component, e.Have, e.Need)
}

// NewInsufficientData builds an *InsufficientData.
func NewInsufficientData(component string, have, need int) error {
	return &InsufficientData{Component: component, Have: have, Need: need}
}

// ExternalFailure wraps an error raised by a collaborator described in
// internal/external: the market-data source, the candle store, the
// state store, or the notification transport.
type ExternalFailure struct {
	Collaborator string
	Operation    string
	Err          error
}

func (e *ExternalFailure) Error() string {
	return fmt.Sprintf("%s.%s: %v", e.Collaborator, e.Operation, e.Err)
}

func (e *ExternalFailure) Unwrap() error { return e.Err }

// NewExternalFailure wraps err as raised by collaborator during operation.
func NewExternalFailure(collaborator, operation string, err error) error {
	if err == nil {
		return nil
	}
	return &ExternalFailure{Collaborator: collaborator, Operation: operation, Err: err}
}
