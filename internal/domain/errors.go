package domain

import "errors"

// ErrInvalidTransition is returned when an appointment status change is not
// allowed from its current status.
var ErrInvalidTransition = errors.New("invalid status transition")

// ValidationError reports malformed or inconsistent input. Field names the
// offending request field using its wire name.
type ValidationError struct {
	Field string
	Msg   string
}

func (e *ValidationError) Error() string {
	return e.Msg
}

func Invalid(field, msg string) error {
	return &ValidationError{Field: field, Msg: msg}
}
