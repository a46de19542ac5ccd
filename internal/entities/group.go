package entities

import "fmt"

// Group is a node in one of the two hierarchies: principal groups
// (organizational units a user belongs to) or resource groups (door
// categories such as building/floor/area). Both hierarchies are forests;
// a group has at most one parent.
type Group struct {
	ID       int64  `json:"id"`        // Unique group id within its hierarchy
	Name     string `json:"name"`      // Display name (e.g., "Entwicklung", "Serverbereich")
	ParentID *int64 `json:"parent_id"` // Parent group id; nil for a root
}

// Validate checks if the group is well-formed
func (g *Group) Validate() error {
	if g.ID <= 0 {
		return fmt.Errorf("%w: group id must be positive", ErrInvalidInput)
	}
	if g.Name == "" {
		return fmt.Errorf("%w: group name is required", ErrInvalidInput)
	}
	if g.ParentID != nil && *g.ParentID == g.ID {
		return fmt.Errorf("%w: group %d cannot be its own parent", ErrHierarchyCycle, g.ID)
	}
	return nil
}
