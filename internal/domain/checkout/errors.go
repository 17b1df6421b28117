package checkout

import (
	"fmt"

	"github.com/go-faster/errors"
)

// ErrEmptyItems is returned when a checkout starts with no lines.
var ErrEmptyItems = errors.New("items required")

// ValidationError is a recoverable input failure; the state is unchanged.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// StateError reports a transition attempted from a state that does not allow it.
type StateError struct {
	State State
	Op    string
}

func (e *StateError) Error() string {
	return fmt.Sprintf("cannot %s while %s", e.Op, e.State)
}
