package store

import (
	"fmt"
	"sort"
	"sync"

	"github.com/zutrittswerk/portier/internal/entities"
)

// PermissionStore holds allow and deny edges between principal groups and
// resource groups. It is a pure associative store: adds are idempotent,
// removes of absent edges fail with ErrNotFound, and lookups are indexed
// by source group and by target resource group. No ordering semantics are
// attached to the edge sets.
//
// An edge may be present in both the allow and the deny set for the same
// pair; precedence between them is the resolver's concern.
type PermissionStore struct {
	mu    sync.RWMutex
	allow edgeSet
	deny  edgeSet
}

type edgeSet struct {
	bySource map[int64]map[int64]bool // principal group -> resource groups
	byTarget map[int64]map[int64]bool // resource group -> principal groups
	count    int
}

// NewPermissionStore creates an empty permission store.
func NewPermissionStore() *PermissionStore {
	return &PermissionStore{
		allow: newEdgeSet(),
		deny:  newEdgeSet(),
	}
}

func newEdgeSet() edgeSet {
	return edgeSet{
		bySource: make(map[int64]map[int64]bool),
		byTarget: make(map[int64]map[int64]bool),
	}
}

// Add inserts a permission edge. Re-adding an existing edge is a no-op
// success; the returned bool reports whether the edge was new.
func (s *PermissionStore) Add(effect entities.Effect, edge entities.PermissionEdge) (bool, error) {
	set, err := s.set(effect)
	if err != nil {
		return false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if set.bySource[edge.GroupID][edge.ResourceGroupID] {
		return false, nil
	}
	putPair(set.bySource, edge.GroupID, edge.ResourceGroupID)
	putPair(set.byTarget, edge.ResourceGroupID, edge.GroupID)
	set.count++
	return true, nil
}

// Remove deletes a permission edge, failing with ErrNotFound if absent.
func (s *PermissionStore) Remove(effect entities.Effect, edge entities.PermissionEdge) error {
	set, err := s.set(effect)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !set.bySource[edge.GroupID][edge.ResourceGroupID] {
		return fmt.Errorf("%w: %s edge %s", entities.ErrNotFound, effect, edge)
	}
	dropPair(set.bySource, edge.GroupID, edge.ResourceGroupID)
	dropPair(set.byTarget, edge.ResourceGroupID, edge.GroupID)
	set.count--
	return nil
}

// TargetsFrom returns the union of resource groups targeted by edges whose
// source is any of the given principal groups.
func (s *PermissionStore) TargetsFrom(effect entities.Effect, groupIDs map[int64]bool) map[int64]bool {
	set, err := s.set(effect)
	if err != nil {
		return nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make(map[int64]bool)
	for gid := range groupIDs {
		for rgid := range set.bySource[gid] {
			result[rgid] = true
		}
	}
	return result
}

// EdgesFrom returns all edges sourced at any of the given principal groups,
// ordered by (group, resource group) for stable presentation.
func (s *PermissionStore) EdgesFrom(effect entities.Effect, groupIDs map[int64]bool) []entities.PermissionEdge {
	set, err := s.set(effect)
	if err != nil {
		return nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []entities.PermissionEdge
	for gid := range groupIDs {
		for rgid := range set.bySource[gid] {
			result = append(result, entities.PermissionEdge{GroupID: gid, ResourceGroupID: rgid})
		}
	}
	sortEdges(result)
	return result
}

// EdgesTo returns all edges targeting the given resource group.
func (s *PermissionStore) EdgesTo(effect entities.Effect, resourceGroupID int64) []entities.PermissionEdge {
	set, err := s.set(effect)
	if err != nil {
		return nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []entities.PermissionEdge
	for gid := range set.byTarget[resourceGroupID] {
		result = append(result, entities.PermissionEdge{GroupID: gid, ResourceGroupID: resourceGroupID})
	}
	sortEdges(result)
	return result
}

// RemoveAllForGroup drops every allow and deny edge sourced at the given
// principal group. Used when cascading a group delete.
func (s *PermissionStore) RemoveAllForGroup(groupID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.allow.dropSource(groupID)
	s.deny.dropSource(groupID)
}

// RemoveAllForResourceGroup drops every allow and deny edge targeting the
// given resource group. Used when cascading a resource group delete.
func (s *PermissionStore) RemoveAllForResourceGroup(resourceGroupID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.allow.dropTarget(resourceGroupID)
	s.deny.dropTarget(resourceGroupID)
}

// Count returns the number of edges carrying the given effect.
func (s *PermissionStore) Count(effect entities.Effect) int {
	set, err := s.set(effect)
	if err != nil {
		return 0
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return set.count
}

func (s *PermissionStore) set(effect entities.Effect) (*edgeSet, error) {
	switch effect {
	case entities.EffectAllow:
		return &s.allow, nil
	case entities.EffectDeny:
		return &s.deny, nil
	default:
		return nil, fmt.Errorf("%w: unknown permission effect %q", entities.ErrInvalidInput, effect)
	}
}

func (e *edgeSet) dropSource(groupID int64) {
	for rgid := range e.bySource[groupID] {
		dropPair(e.byTarget, rgid, groupID)
		e.count--
	}
	delete(e.bySource, groupID)
}

func (e *edgeSet) dropTarget(resourceGroupID int64) {
	for gid := range e.byTarget[resourceGroupID] {
		dropPair(e.bySource, gid, resourceGroupID)
		e.count--
	}
	delete(e.byTarget, resourceGroupID)
}

func putPair(m map[int64]map[int64]bool, key, value int64) {
	if m[key] == nil {
		m[key] = make(map[int64]bool)
	}
	m[key][value] = true
}

func dropPair(m map[int64]map[int64]bool, key, value int64) {
	delete(m[key], value)
	if len(m[key]) == 0 {
		delete(m, key)
	}
}

func sortEdges(edges []entities.PermissionEdge) {
	sort.Slice(edges, func(i, j int) bool {
		if edges[i].GroupID != edges[j].GroupID {
			return edges[i].GroupID < edges[j].GroupID
		}
		return edges[i].ResourceGroupID < edges[j].ResourceGroupID
	})
}
