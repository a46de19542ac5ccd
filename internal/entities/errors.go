package entities

import "errors"

// Typed failure conditions returned by stores and services.
// Callers match them with errors.Is; messages wrapped around them
// carry the specific ids involved.
var (
	// ErrNotFound indicates a referenced principal, resource, group or edge does not exist.
	ErrNotFound = errors.New("not found")

	// ErrDuplicate indicates an entity was created with an id that is already in use.
	// Edge inserts are idempotent and never return this.
	ErrDuplicate = errors.New("duplicate id")

	// ErrHierarchyCycle indicates a reparent would create a cycle (or self-parent),
	// or a hierarchy walk exceeded the node count bound.
	ErrHierarchyCycle = errors.New("hierarchy cycle")

	// ErrDanglingReference indicates an edge refers to a non-existent endpoint.
	ErrDanglingReference = errors.New("dangling reference")

	// ErrInvalidInput indicates a malformed id or name at the boundary.
	ErrInvalidInput = errors.New("invalid input")
)
