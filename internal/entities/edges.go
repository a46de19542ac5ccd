package entities

import "fmt"

// Effect distinguishes allow from deny permission edges.
type Effect string

const (
	EffectAllow Effect = "allow"
	EffectDeny  Effect = "deny"
)

// Membership links a principal to a principal group it is directly assigned to.
type Membership struct {
	PrincipalID int64 `json:"user_id"`
	GroupID     int64 `json:"group_id"`
}

// Grouping links a resource to a resource group it belongs to.
type Grouping struct {
	ResourceID      int64 `json:"door_id"`
	ResourceGroupID int64 `json:"dgroup_id"`
}

// PermissionEdge grants or withholds access from a principal group to a
// resource group. The same (group, resource group) pair may carry both an
// allow and a deny edge; precedence is resolved at query time, not at write time.
type PermissionEdge struct {
	GroupID         int64 `json:"group_id"`  // Source principal group
	ResourceGroupID int64 `json:"dgroup_id"` // Target resource group
}

// String returns a wire-style representation, e.g. "group:2->dgroup:5"
func (e PermissionEdge) String() string {
	return fmt.Sprintf("group:%d->dgroup:%d", e.GroupID, e.ResourceGroupID)
}
