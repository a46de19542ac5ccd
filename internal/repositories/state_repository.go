package repositories

import (
	"context"

	"github.com/zutrittswerk/portier/internal/entities"
)

// HierarchyKind selects which of the two forests a group operation targets.
type HierarchyKind string

const (
	PrincipalGroups HierarchyKind = "principal"
	ResourceGroups  HierarchyKind = "resource"
)

// StateRepository is the durable store behind the in-memory engine.
// The mutation gateway writes through it before applying a change in
// memory; the server loads the full state once at startup. Implementations
// must be safe for concurrent use.
type StateRepository interface {
	// Load reads the complete persisted state.
	Load(ctx context.Context) (*entities.Dataset, error)

	// Import replaces the persisted state with the dataset in one transaction.
	Import(ctx context.Context, dataset *entities.Dataset) error

	CreatePrincipal(ctx context.Context, p entities.Principal) error
	DeletePrincipal(ctx context.Context, id int64) error

	CreateResource(ctx context.Context, r entities.Resource) error
	DeleteResource(ctx context.Context, id int64) error

	CreateGroup(ctx context.Context, kind HierarchyKind, g entities.Group) error
	RenameGroup(ctx context.Context, kind HierarchyKind, id int64, name string) error
	ReparentGroup(ctx context.Context, kind HierarchyKind, id int64, parentID *int64) error
	DeleteGroup(ctx context.Context, kind HierarchyKind, id int64) error

	AddMembership(ctx context.Context, m entities.Membership) error
	RemoveMembership(ctx context.Context, m entities.Membership) error

	AddGrouping(ctx context.Context, g entities.Grouping) error
	RemoveGrouping(ctx context.Context, g entities.Grouping) error

	AddPermission(ctx context.Context, effect entities.Effect, edge entities.PermissionEdge) error
	RemovePermission(ctx context.Context, effect entities.Effect, edge entities.PermissionEdge) error

	// PublishInvalidation broadcasts a cache invalidation scope to other
	// engine instances sharing the store. Scope is either "all" or a
	// comma-separated list of principal ids.
	PublishInvalidation(ctx context.Context, scope string) error
}
