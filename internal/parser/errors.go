package parser

import (
	"errors"
	"fmt"
)

// ErrMalformedInput reports input that is neither a plan document nor plan text.
var ErrMalformedInput = errors.New("unrecognized input")

// MalformedInputError describes why an input could not be turned into a plan document.
type MalformedInputError struct {
	Reason string
	Err    error
}

func (e *MalformedInputError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", ErrMalformedInput, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s: %s", ErrMalformedInput, e.Reason)
}

func (e *MalformedInputError) Unwrap() error {
	return e.Err
}

// Is reports whether target is ErrMalformedInput.
func (e *MalformedInputError) Is(target error) bool {
	return target == ErrMalformedInput
}

func malformed(reason string, err error) error {
	return &MalformedInputError{Reason: reason, Err: err}
}
