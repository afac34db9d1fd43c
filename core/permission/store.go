// Package permission persists permission groups and player memberships.
package permission

import "errors"

// =============================================================================
// Errors
// =============================================================================

var (
	// ErrIdentityRejected indicates the player id failed the registered validator
	ErrIdentityRejected = errors.New("identity rejected")

	// ErrGroupNotFound indicates a membership referenced a missing group
	ErrGroupNotFound = errors.New("permission group not found")

	// ErrGroupNameRequired indicates CreateGroup was called with a blank name
	ErrGroupNameRequired = errors.New("permission group name required")

	// ErrGroupExists indicates CreateGroup was called for an existing group
	ErrGroupExists = errors.New("permission group already exists")

	// ErrStoreClosed indicates the store has been closed
	ErrStoreClosed = errors.New("permission store is closed")
)

// Group is a named permission group. Higher ranks outrank lower ones.
type Group struct {
	Name  string `json:"name"`
	Title string `json:"title"`
	Rank  int    `json:"rank"`
}

// Store is the permission backend the server session depends on.
type Store interface {
	GroupExists(name string) (bool, error)
	CreateGroup(name, title string, rank int) error
	Groups() ([]Group, error)

	UserHasGroup(id, group string) (bool, error)
	AddUserGroup(id, group string) error
	RemoveUserGroup(id, group string) error
	UpdateNickname(id, nickname string) error

	// RegisterValidator sets the identity check applied to player ids on
	// writes and during Cleanup. A nil validator accepts every id.
	RegisterValidator(fn func(id string) bool)

	// Cleanup drops users whose id fails the validator and memberships in
	// groups that no longer exist.
	Cleanup() error

	Close() error
}
