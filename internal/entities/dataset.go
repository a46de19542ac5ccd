package entities

import "fmt"

// Dataset is a complete bulk-import payload: entity rows plus every edge
// type. It is used by schema bootstrap and by the synthetic data generator.
// A dataset is validated as a whole before any row is loaded; a single
// malformed row rejects the entire load.
type Dataset struct {
	Principals      []*Principal     `json:"users"`
	Resources       []*Resource      `json:"doors"`
	PrincipalGroups []*Group         `json:"groups"`
	ResourceGroups  []*Group         `json:"door_groups"`
	Memberships     []Membership     `json:"user_groups"`
	Groupings       []Grouping       `json:"door_in_group"`
	Allows          []PermissionEdge `json:"allow_permissions"`
	Denies          []PermissionEdge `json:"deny_permissions"`
}

// Validate checks referential integrity, id uniqueness and hierarchy
// acyclicity across the whole dataset.
func (d *Dataset) Validate() error {
	principals := make(map[int64]bool, len(d.Principals))
	for _, p := range d.Principals {
		if err := p.Validate(); err != nil {
			return err
		}
		if principals[p.ID] {
			return fmt.Errorf("%w: principal %d", ErrDuplicate, p.ID)
		}
		principals[p.ID] = true
	}

	resources := make(map[int64]bool, len(d.Resources))
	for _, r := range d.Resources {
		if err := r.Validate(); err != nil {
			return err
		}
		if resources[r.ID] {
			return fmt.Errorf("%w: resource %d", ErrDuplicate, r.ID)
		}
		resources[r.ID] = true
	}

	pgroups, err := validateForest("principal group", d.PrincipalGroups)
	if err != nil {
		return err
	}
	rgroups, err := validateForest("resource group", d.ResourceGroups)
	if err != nil {
		return err
	}

	for _, m := range d.Memberships {
		if !principals[m.PrincipalID] {
			return fmt.Errorf("%w: membership references unknown principal %d", ErrDanglingReference, m.PrincipalID)
		}
		if !pgroups[m.GroupID] {
			return fmt.Errorf("%w: membership references unknown principal group %d", ErrDanglingReference, m.GroupID)
		}
	}
	for _, g := range d.Groupings {
		if !resources[g.ResourceID] {
			return fmt.Errorf("%w: grouping references unknown resource %d", ErrDanglingReference, g.ResourceID)
		}
		if !rgroups[g.ResourceGroupID] {
			return fmt.Errorf("%w: grouping references unknown resource group %d", ErrDanglingReference, g.ResourceGroupID)
		}
	}
	for _, e := range d.Allows {
		if !pgroups[e.GroupID] || !rgroups[e.ResourceGroupID] {
			return fmt.Errorf("%w: allow edge %s", ErrDanglingReference, e)
		}
	}
	for _, e := range d.Denies {
		if !pgroups[e.GroupID] || !rgroups[e.ResourceGroupID] {
			return fmt.Errorf("%w: deny edge %s", ErrDanglingReference, e)
		}
	}
	return nil
}

// validateForest checks group rows for duplicates, dangling parents and
// cycles. Cycle detection walks each parent chain bounded by the node count.
func validateForest(kind string, groups []*Group) (map[int64]bool, error) {
	ids := make(map[int64]bool, len(groups))
	parents := make(map[int64]*int64, len(groups))
	for _, g := range groups {
		if err := g.Validate(); err != nil {
			return nil, err
		}
		if ids[g.ID] {
			return nil, fmt.Errorf("%w: %s %d", ErrDuplicate, kind, g.ID)
		}
		ids[g.ID] = true
		parents[g.ID] = g.ParentID
	}
	for _, g := range groups {
		if g.ParentID != nil && !ids[*g.ParentID] {
			return nil, fmt.Errorf("%w: %s %d references unknown parent %d", ErrDanglingReference, kind, g.ID, *g.ParentID)
		}
	}
	for _, g := range groups {
		steps := 0
		for cur := g.ParentID; cur != nil; cur = parents[*cur] {
			steps++
			if steps > len(groups) {
				return nil, fmt.Errorf("%w: %s hierarchy cycle through group %d", ErrHierarchyCycle, kind, g.ID)
			}
		}
	}
	return ids, nil
}
