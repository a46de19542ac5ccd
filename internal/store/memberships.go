package store

import (
	"fmt"
	"sort"
	"sync"

	"github.com/zutrittswerk/portier/internal/entities"
)

// MembershipStore owns the principal and resource entity tables together
// with the two many-to-many assignment edge sets: principal -> principal
// group and resource -> resource group. Edge adds are idempotent; removes
// of absent edges fail with ErrNotFound.
//
// A principal's direct groups are exactly its explicit membership rows;
// inheritance is the Hierarchy index's concern.
type MembershipStore struct {
	mu         sync.RWMutex
	principals map[int64]entities.Principal
	resources  map[int64]entities.Resource

	groupsByPrincipal map[int64]map[int64]bool // principal -> direct groups
	principalsByGroup map[int64]map[int64]bool // group -> direct members

	rgroupsByResource map[int64]map[int64]bool // resource -> resource groups
	resourcesByRgroup map[int64]map[int64]bool // resource group -> resources
}

// NewMembershipStore creates an empty membership store.
func NewMembershipStore() *MembershipStore {
	return &MembershipStore{
		principals:        make(map[int64]entities.Principal),
		resources:         make(map[int64]entities.Resource),
		groupsByPrincipal: make(map[int64]map[int64]bool),
		principalsByGroup: make(map[int64]map[int64]bool),
		rgroupsByResource: make(map[int64]map[int64]bool),
		resourcesByRgroup: make(map[int64]map[int64]bool),
	}
}

// AddPrincipal inserts a new principal, rejecting a reused id.
func (s *MembershipStore) AddPrincipal(p entities.Principal) error {
	if err := p.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.principals[p.ID]; ok {
		return fmt.Errorf("%w: principal %d", entities.ErrDuplicate, p.ID)
	}
	s.principals[p.ID] = p
	return nil
}

// RemovePrincipal deletes a principal and all of its membership rows.
func (s *MembershipStore) RemovePrincipal(id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.principals[id]; !ok {
		return fmt.Errorf("%w: principal %d", entities.ErrNotFound, id)
	}
	for gid := range s.groupsByPrincipal[id] {
		dropPair(s.principalsByGroup, gid, id)
	}
	delete(s.groupsByPrincipal, id)
	delete(s.principals, id)
	return nil
}

// GetPrincipal returns a principal by id.
func (s *MembershipStore) GetPrincipal(id int64) (entities.Principal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.principals[id]
	if !ok {
		return entities.Principal{}, fmt.Errorf("%w: principal %d", entities.ErrNotFound, id)
	}
	return p, nil
}

// ListPrincipals returns principals ordered by id. A limit of 0 means all.
func (s *MembershipStore) ListPrincipals(limit int) []entities.Principal {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]entities.Principal, 0, len(s.principals))
	for _, p := range s.principals {
		result = append(result, p)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result
}

// AddResource inserts a new resource, rejecting a reused id.
func (s *MembershipStore) AddResource(r entities.Resource) error {
	if err := r.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.resources[r.ID]; ok {
		return fmt.Errorf("%w: resource %d", entities.ErrDuplicate, r.ID)
	}
	s.resources[r.ID] = r
	return nil
}

// RemoveResource deletes a resource and all of its grouping rows.
func (s *MembershipStore) RemoveResource(id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.resources[id]; !ok {
		return fmt.Errorf("%w: resource %d", entities.ErrNotFound, id)
	}
	for rgid := range s.rgroupsByResource[id] {
		dropPair(s.resourcesByRgroup, rgid, id)
	}
	delete(s.rgroupsByResource, id)
	delete(s.resources, id)
	return nil
}

// GetResource returns a resource by id.
func (s *MembershipStore) GetResource(id int64) (entities.Resource, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.resources[id]
	if !ok {
		return entities.Resource{}, fmt.Errorf("%w: resource %d", entities.ErrNotFound, id)
	}
	return r, nil
}

// ListResources returns resources ordered by id. A limit of 0 means all.
func (s *MembershipStore) ListResources(limit int) []entities.Resource {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]entities.Resource, 0, len(s.resources))
	for _, r := range s.resources {
		result = append(result, r)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result
}

// AddMembership assigns a principal to a principal group. Idempotent; the
// returned bool reports whether the row was new. Endpoint existence is the
// mutation gateway's concern.
func (s *MembershipStore) AddMembership(principalID, groupID int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.principals[principalID]; !ok {
		return false, fmt.Errorf("%w: principal %d", entities.ErrDanglingReference, principalID)
	}
	if s.groupsByPrincipal[principalID][groupID] {
		return false, nil
	}
	putPair(s.groupsByPrincipal, principalID, groupID)
	putPair(s.principalsByGroup, groupID, principalID)
	return true, nil
}

// RemoveMembership removes a principal's direct group assignment.
func (s *MembershipStore) RemoveMembership(principalID, groupID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.groupsByPrincipal[principalID][groupID] {
		return fmt.Errorf("%w: principal %d is not in group %d", entities.ErrNotFound, principalID, groupID)
	}
	dropPair(s.groupsByPrincipal, principalID, groupID)
	dropPair(s.principalsByGroup, groupID, principalID)
	return nil
}

// DirectGroups returns the set of groups a principal is explicitly
// assigned to. Fails with ErrNotFound for an unknown principal.
func (s *MembershipStore) DirectGroups(principalID int64) (map[int64]bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.principals[principalID]; !ok {
		return nil, fmt.Errorf("%w: principal %d", entities.ErrNotFound, principalID)
	}
	result := make(map[int64]bool, len(s.groupsByPrincipal[principalID]))
	for gid := range s.groupsByPrincipal[principalID] {
		result[gid] = true
	}
	return result, nil
}

// MembersOf returns the union of direct members of the given groups.
// Used to scope cache invalidation to a group subtree.
func (s *MembershipStore) MembersOf(groupIDs map[int64]bool) map[int64]bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make(map[int64]bool)
	for gid := range groupIDs {
		for pid := range s.principalsByGroup[gid] {
			result[pid] = true
		}
	}
	return result
}

// RemoveMembershipsForGroup drops every membership row pointing at the
// given group. Used when cascading a group delete.
func (s *MembershipStore) RemoveMembershipsForGroup(groupID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for pid := range s.principalsByGroup[groupID] {
		dropPair(s.groupsByPrincipal, pid, groupID)
	}
	delete(s.principalsByGroup, groupID)
}

// AddGrouping assigns a resource to a resource group. Idempotent.
func (s *MembershipStore) AddGrouping(resourceID, resourceGroupID int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.resources[resourceID]; !ok {
		return false, fmt.Errorf("%w: resource %d", entities.ErrDanglingReference, resourceID)
	}
	if s.rgroupsByResource[resourceID][resourceGroupID] {
		return false, nil
	}
	putPair(s.rgroupsByResource, resourceID, resourceGroupID)
	putPair(s.resourcesByRgroup, resourceGroupID, resourceID)
	return true, nil
}

// RemoveGrouping removes a resource's group assignment.
func (s *MembershipStore) RemoveGrouping(resourceID, resourceGroupID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.rgroupsByResource[resourceID][resourceGroupID] {
		return fmt.Errorf("%w: resource %d is not in resource group %d", entities.ErrNotFound, resourceID, resourceGroupID)
	}
	dropPair(s.rgroupsByResource, resourceID, resourceGroupID)
	dropPair(s.resourcesByRgroup, resourceGroupID, resourceID)
	return nil
}

// RemoveGroupingsForResourceGroup drops every grouping row pointing at the
// given resource group. Used when cascading a resource group delete.
func (s *MembershipStore) RemoveGroupingsForResourceGroup(resourceGroupID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for rid := range s.resourcesByRgroup[resourceGroupID] {
		dropPair(s.rgroupsByResource, rid, resourceGroupID)
	}
	delete(s.resourcesByRgroup, resourceGroupID)
}

// ResourcesIn returns every resource whose grouping rows intersect the
// given resource group set, deduplicated and ordered by name with ties
// broken by id.
func (s *MembershipStore) ResourcesIn(resourceGroupIDs map[int64]bool) []entities.Resource {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[int64]bool)
	var result []entities.Resource
	for rgid := range resourceGroupIDs {
		for rid := range s.resourcesByRgroup[rgid] {
			if seen[rid] {
				continue
			}
			seen[rid] = true
			result = append(result, s.resources[rid])
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Name != result[j].Name {
			return result[i].Name < result[j].Name
		}
		return result[i].ID < result[j].ID
	})
	return result
}

// Counts returns the table sizes for the stats endpoint.
func (s *MembershipStore) Counts() (principals, resources, memberships, groupings int) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, groups := range s.groupsByPrincipal {
		memberships += len(groups)
	}
	for _, rgroups := range s.rgroupsByResource {
		groupings += len(rgroups)
	}
	return len(s.principals), len(s.resources), memberships, groupings
}
