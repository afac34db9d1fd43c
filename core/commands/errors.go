package commands

import (
	"errors"
	"fmt"
)

var (
	// ErrCommandConflict indicates an attempt to replace a protected command
	ErrCommandConflict = errors.New("command cannot be overridden")

	// ErrNameRequired indicates an empty command name
	ErrNameRequired = errors.New("command name is required")

	// ErrHandlerRequired indicates a nil command handler
	ErrHandlerRequired = errors.New("command handler is required")

	// ErrInvalidPattern indicates a restricted-name pattern could not be compiled
	ErrInvalidPattern = errors.New("invalid restricted command pattern")
)

// ConflictError reports which protected command a registrant tried to take.
type ConflictError struct {
	Command string
	// Holder is the display name of the current owner, empty when the name
	// is restricted rather than held by a core registrant.
	Holder string
}

func (e *ConflictError) Error() string {
	if e.Holder == "" {
		return fmt.Sprintf("command '%s' is restricted", e.Command)
	}
	return fmt.Sprintf("command '%s' already exists and is owned by %s", e.Command, e.Holder)
}

func (e *ConflictError) Is(target error) bool {
	return target == ErrCommandConflict
}
