// Package commands owns the server's plugin command table: registration with
// override and restore of host built-ins, and the dispatch path shared by chat
// and console input.
package commands

import "strings"

// =============================================================================
// Origin
// =============================================================================

// Origin identifies where a command line came from.
type Origin int

const (
	OriginChat Origin = iota
	OriginConsole
)

func (o Origin) String() string {
	switch o {
	case OriginChat:
		return "chat"
	case OriginConsole:
		return "console"
	default:
		return "unknown"
	}
}

// =============================================================================
// Callers and Owners
// =============================================================================

// Caller is the identity a command runs on behalf of.
type Caller interface {
	ID() string
	Name() string
	IsConsole() bool
	Reply(message string)
}

// Owner is the registrant that installed a command. Owners are compared by
// identity, so implementations should be pointer types.
type Owner interface {
	Name() string
	// IsCore reports whether commands held by this owner may not be replaced.
	IsCore() bool
}

// Tracker is implemented by owners that time their own handler execution.
type Tracker interface {
	TrackStart()
	TrackEnd()
}

// Handler runs a command and reports whether it handled it.
type Handler func(caller Caller, name string, args []string) bool

// =============================================================================
// Record
// =============================================================================

// Record is the registry entry for a single command name.
type Record struct {
	Name    string
	Owner   Owner
	Handler Handler

	// PriorBuiltin is the host's original command for Name, captured on the
	// first override. Nil when Name was never a host built-in.
	PriorBuiltin *HostCommand
}

// OverridesBuiltin reports whether the record shadows a host built-in.
func (r Record) OverridesBuiltin() bool {
	return r.PriorBuiltin != nil
}

// NormalizeName lowercases and trims a command name.
func NormalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

func ownerName(owner Owner, fallback string) string {
	if owner == nil {
		return fallback
	}
	if name := strings.TrimSpace(owner.Name()); name != "" {
		return name
	}
	return fallback
}
