package bot

import (
	"errors"
	"fmt"
)

// ValidationError reports a missing or malformed input. No store call was issued.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func validationErrorf(format string, args ...any) *ValidationError {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// StoreError reports a store rejection. Message is safe to show; Err carries the detail.
type StoreError struct {
	Message string
	Err     error
}

func (e *StoreError) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// Details returns the underlying failure text
func (e *StoreError) Details() string {
	if e.Err == nil {
		return ""
	}
	return e.Err.Error()
}

// IsValidation reports whether err is a ValidationError
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

// AsStoreError returns the StoreError wrapped in err, if any
func AsStoreError(err error) (*StoreError, bool) {
	var s *StoreError
	if errors.As(err, &s) {
		return s, true
	}
	return nil, false
}
