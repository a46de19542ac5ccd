package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/zutrittswerk/portier/internal/entities"
	"github.com/zutrittswerk/portier/internal/repositories"
	"github.com/zutrittswerk/portier/internal/services/authorization"
	"github.com/zutrittswerk/portier/internal/store"
)

// ScopeAll is the invalidation scope meaning "every principal".
const ScopeAll = "all"

// DirectoryService is the mutation gateway: every structural change to the
// directory (entities, hierarchies, memberships, permissions) goes through
// it. Each mutation is validated fully before any write, persisted through
// the repository if one is configured, applied to the in-memory stores, and
// finished with a synchronous, scoped cache invalidation.
//
// Mutations are serialized by a gateway mutex. Reads never take it: access
// checks run against the stores' own read locks, so administrative writes
// do not stall the query path.
type DirectoryService struct {
	mu sync.Mutex

	principalGroups *store.Hierarchy
	resourceGroups  *store.Hierarchy
	permissions     *store.PermissionStore
	memberships     *store.MembershipStore
	resolver        *authorization.Resolver
	repo            repositories.StateRepository // optional; nil = memory only
}

// Stats reports store sizes, mirroring the original stats endpoint.
type Stats struct {
	Principals      int `json:"users"`
	PrincipalGroups int `json:"groups"`
	Resources       int `json:"doors"`
	ResourceGroups  int `json:"door_groups"`
	Memberships     int `json:"user_groups"`
	Groupings       int `json:"door_in_group"`
	Allows          int `json:"allow_permissions"`
	Denies          int `json:"deny_permissions"`
}

// NewDirectoryService creates the mutation gateway over the given stores.
// repo may be nil for a purely in-memory engine.
func NewDirectoryService(
	principalGroups *store.Hierarchy,
	resourceGroups *store.Hierarchy,
	permissions *store.PermissionStore,
	memberships *store.MembershipStore,
	resolver *authorization.Resolver,
	repo repositories.StateRepository,
) *DirectoryService {
	return &DirectoryService{
		principalGroups: principalGroups,
		resourceGroups:  resourceGroups,
		permissions:     permissions,
		memberships:     memberships,
		resolver:        resolver,
		repo:            repo,
	}
}

// CreatePrincipal adds a new principal. A reused id fails with ErrDuplicate.
func (s *DirectoryService) CreatePrincipal(ctx context.Context, p entities.Principal) error {
	if err := p.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.memberships.GetPrincipal(p.ID); err == nil {
		return fmt.Errorf("%w: principal %d", entities.ErrDuplicate, p.ID)
	}
	if err := s.persist(func() error { return s.repo.CreatePrincipal(ctx, p) }); err != nil {
		return err
	}
	return s.memberships.AddPrincipal(p)
}

// DeletePrincipal removes a principal, cascading its membership rows.
func (s *DirectoryService) DeletePrincipal(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.memberships.GetPrincipal(id); err != nil {
		return err
	}
	if err := s.persist(func() error { return s.repo.DeletePrincipal(ctx, id) }); err != nil {
		return err
	}
	if err := s.memberships.RemovePrincipal(id); err != nil {
		return err
	}
	s.invalidate(ctx, map[int64]bool{id: true})
	return nil
}

// CreateResource adds a new resource. A reused id fails with ErrDuplicate.
func (s *DirectoryService) CreateResource(ctx context.Context, r entities.Resource) error {
	if err := r.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.memberships.GetResource(r.ID); err == nil {
		return fmt.Errorf("%w: resource %d", entities.ErrDuplicate, r.ID)
	}
	if err := s.persist(func() error { return s.repo.CreateResource(ctx, r) }); err != nil {
		return err
	}
	return s.memberships.AddResource(r)
}

// DeleteResource removes a resource, cascading its grouping rows.
func (s *DirectoryService) DeleteResource(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.memberships.GetResource(id); err != nil {
		return err
	}
	if err := s.persist(func() error { return s.repo.DeleteResource(ctx, id) }); err != nil {
		return err
	}
	if err := s.memberships.RemoveResource(id); err != nil {
		return err
	}
	s.invalidateAll(ctx)
	return nil
}

// CreatePrincipalGroup adds a group to the principal hierarchy.
func (s *DirectoryService) CreatePrincipalGroup(ctx context.Context, g entities.Group) error {
	return s.createGroup(ctx, repositories.PrincipalGroups, s.principalGroups, g)
}

// CreateResourceGroup adds a group to the resource hierarchy.
func (s *DirectoryService) CreateResourceGroup(ctx context.Context, g entities.Group) error {
	return s.createGroup(ctx, repositories.ResourceGroups, s.resourceGroups, g)
}

func (s *DirectoryService) createGroup(ctx context.Context, kind repositories.HierarchyKind, h *store.Hierarchy, g entities.Group) error {
	if err := g.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if h.Exists(g.ID) {
		return fmt.Errorf("%w: %s group %d", entities.ErrDuplicate, kind, g.ID)
	}
	if g.ParentID != nil && !h.Exists(*g.ParentID) {
		return fmt.Errorf("%w: parent group %d", entities.ErrDanglingReference, *g.ParentID)
	}
	if err := s.persist(func() error { return s.repo.CreateGroup(ctx, kind, g) }); err != nil {
		return err
	}
	// A new group is a leaf with no members or edges; nothing to invalidate.
	return h.Add(g)
}

// RenamePrincipalGroup changes a principal group's name.
func (s *DirectoryService) RenamePrincipalGroup(ctx context.Context, id int64, name string) error {
	return s.renameGroup(ctx, repositories.PrincipalGroups, s.principalGroups, id, name)
}

// RenameResourceGroup changes a resource group's name.
func (s *DirectoryService) RenameResourceGroup(ctx context.Context, id int64, name string) error {
	return s.renameGroup(ctx, repositories.ResourceGroups, s.resourceGroups, id, name)
}

func (s *DirectoryService) renameGroup(ctx context.Context, kind repositories.HierarchyKind, h *store.Hierarchy, id int64, name string) error {
	if name == "" {
		return fmt.Errorf("%w: group name is required", entities.ErrInvalidInput)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !h.Exists(id) {
		return fmt.Errorf("%w: %s group %d", entities.ErrNotFound, kind, id)
	}
	if err := s.persist(func() error { return s.repo.RenameGroup(ctx, kind, id, name) }); err != nil {
		return err
	}
	// Names never influence the resolved set; no invalidation.
	return h.Rename(id, name)
}

// ReparentPrincipalGroup moves a principal group under a new parent,
// rejecting cycles. Members of the moved subtree gain or lose inherited
// groups, so their cached sets are invalidated.
func (s *DirectoryService) ReparentPrincipalGroup(ctx context.Context, id int64, parentID *int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.validateReparent(s.principalGroups, id, parentID); err != nil {
		return err
	}
	affected := s.subtreeMembers(id)
	if err := s.persist(func() error {
		return s.repo.ReparentGroup(ctx, repositories.PrincipalGroups, id, parentID)
	}); err != nil {
		return err
	}
	if err := s.principalGroups.Reparent(id, parentID); err != nil {
		return err
	}
	s.invalidate(ctx, affected)
	return nil
}

// ReparentResourceGroup moves a resource group under a new parent,
// rejecting cycles. The affected principal set is unbounded, so the whole
// cache is cleared.
func (s *DirectoryService) ReparentResourceGroup(ctx context.Context, id int64, parentID *int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.validateReparent(s.resourceGroups, id, parentID); err != nil {
		return err
	}
	if err := s.persist(func() error {
		return s.repo.ReparentGroup(ctx, repositories.ResourceGroups, id, parentID)
	}); err != nil {
		return err
	}
	if err := s.resourceGroups.Reparent(id, parentID); err != nil {
		return err
	}
	s.invalidateAll(ctx)
	return nil
}

// validateReparent runs the hierarchy's cycle and existence checks without
// applying, so persistence only happens for edits that will succeed.
func (s *DirectoryService) validateReparent(h *store.Hierarchy, id int64, parentID *int64) error {
	if _, err := h.Get(id); err != nil {
		return err
	}
	if parentID != nil {
		if *parentID == id {
			return fmt.Errorf("%w: group %d cannot be its own parent", entities.ErrHierarchyCycle, id)
		}
		if !h.Exists(*parentID) {
			return fmt.Errorf("%w: parent group %d", entities.ErrDanglingReference, *parentID)
		}
		desc, err := h.Descendants(id)
		if err != nil {
			return err
		}
		if desc[*parentID] {
			return fmt.Errorf("%w: reparenting group %d under its descendant %d", entities.ErrHierarchyCycle, id, *parentID)
		}
	}
	return nil
}

// DeletePrincipalGroup removes a leaf principal group, cascading its
// membership rows and permission edges.
func (s *DirectoryService) DeletePrincipalGroup(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	desc, err := s.principalGroups.Descendants(id)
	if err != nil {
		return err
	}
	if len(desc) > 1 {
		return fmt.Errorf("%w: principal group %d still has child groups", entities.ErrInvalidInput, id)
	}
	affected := s.subtreeMembers(id)
	if err := s.persist(func() error {
		return s.repo.DeleteGroup(ctx, repositories.PrincipalGroups, id)
	}); err != nil {
		return err
	}
	if err := s.principalGroups.Remove(id); err != nil {
		return err
	}
	s.memberships.RemoveMembershipsForGroup(id)
	s.permissions.RemoveAllForGroup(id)
	s.invalidate(ctx, affected)
	return nil
}

// DeleteResourceGroup removes a leaf resource group, cascading its
// grouping rows and permission edges.
func (s *DirectoryService) DeleteResourceGroup(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	desc, err := s.resourceGroups.Descendants(id)
	if err != nil {
		return err
	}
	if len(desc) > 1 {
		return fmt.Errorf("%w: resource group %d still has child groups", entities.ErrInvalidInput, id)
	}
	if err := s.persist(func() error {
		return s.repo.DeleteGroup(ctx, repositories.ResourceGroups, id)
	}); err != nil {
		return err
	}
	if err := s.resourceGroups.Remove(id); err != nil {
		return err
	}
	s.memberships.RemoveGroupingsForResourceGroup(id)
	s.permissions.RemoveAllForResourceGroup(id)
	s.invalidateAll(ctx)
	return nil
}

// AssignPrincipal adds a direct membership row. Idempotent.
func (s *DirectoryService) AssignPrincipal(ctx context.Context, principalID, groupID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.memberships.GetPrincipal(principalID); err != nil {
		return err
	}
	if !s.principalGroups.Exists(groupID) {
		return fmt.Errorf("%w: principal group %d", entities.ErrDanglingReference, groupID)
	}
	if err := s.persist(func() error {
		return s.repo.AddMembership(ctx, entities.Membership{PrincipalID: principalID, GroupID: groupID})
	}); err != nil {
		return err
	}
	added, err := s.memberships.AddMembership(principalID, groupID)
	if err != nil {
		return err
	}
	if added {
		s.invalidate(ctx, map[int64]bool{principalID: true})
	}
	return nil
}

// UnassignPrincipal removes a direct membership row.
func (s *DirectoryService) UnassignPrincipal(ctx context.Context, principalID, groupID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.persist(func() error {
		return s.repo.RemoveMembership(ctx, entities.Membership{PrincipalID: principalID, GroupID: groupID})
	}); err != nil {
		return err
	}
	if err := s.memberships.RemoveMembership(principalID, groupID); err != nil {
		return err
	}
	s.invalidate(ctx, map[int64]bool{principalID: true})
	return nil
}

// AssignResource adds a resource to a resource group. Idempotent.
func (s *DirectoryService) AssignResource(ctx context.Context, resourceID, resourceGroupID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.memberships.GetResource(resourceID); err != nil {
		return err
	}
	if !s.resourceGroups.Exists(resourceGroupID) {
		return fmt.Errorf("%w: resource group %d", entities.ErrDanglingReference, resourceGroupID)
	}
	if err := s.persist(func() error {
		return s.repo.AddGrouping(ctx, entities.Grouping{ResourceID: resourceID, ResourceGroupID: resourceGroupID})
	}); err != nil {
		return err
	}
	added, err := s.memberships.AddGrouping(resourceID, resourceGroupID)
	if err != nil {
		return err
	}
	if added {
		s.invalidateAll(ctx)
	}
	return nil
}

// UnassignResource removes a resource from a resource group.
func (s *DirectoryService) UnassignResource(ctx context.Context, resourceID, resourceGroupID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.persist(func() error {
		return s.repo.RemoveGrouping(ctx, entities.Grouping{ResourceID: resourceID, ResourceGroupID: resourceGroupID})
	}); err != nil {
		return err
	}
	if err := s.memberships.RemoveGrouping(resourceID, resourceGroupID); err != nil {
		return err
	}
	s.invalidateAll(ctx)
	return nil
}

// AddPermission inserts an allow or deny edge. Idempotent; the same pair
// may carry both effects, resolved by precedence at query time.
func (s *DirectoryService) AddPermission(ctx context.Context, effect entities.Effect, edge entities.PermissionEdge) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.principalGroups.Exists(edge.GroupID) {
		return fmt.Errorf("%w: principal group %d", entities.ErrDanglingReference, edge.GroupID)
	}
	if !s.resourceGroups.Exists(edge.ResourceGroupID) {
		return fmt.Errorf("%w: resource group %d", entities.ErrDanglingReference, edge.ResourceGroupID)
	}
	if err := s.persist(func() error { return s.repo.AddPermission(ctx, effect, edge) }); err != nil {
		return err
	}
	added, err := s.permissions.Add(effect, edge)
	if err != nil {
		return err
	}
	if added {
		s.invalidate(ctx, s.subtreeMembers(edge.GroupID))
	}
	return nil
}

// RemovePermission deletes an allow or deny edge.
func (s *DirectoryService) RemovePermission(ctx context.Context, effect entities.Effect, edge entities.PermissionEdge) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.persist(func() error { return s.repo.RemovePermission(ctx, effect, edge) }); err != nil {
		return err
	}
	if err := s.permissions.Remove(effect, edge); err != nil {
		return err
	}
	s.invalidate(ctx, s.subtreeMembers(edge.GroupID))
	return nil
}

// Import bulk-loads a dataset: schema bootstrap and the synthetic data
// generator come through here. The dataset is validated as a whole before
// any row is stored; a malformed row rejects the entire load.
func (s *DirectoryService) Import(ctx context.Context, dataset *entities.Dataset) error {
	if err := dataset.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.persist(func() error { return s.repo.Import(ctx, dataset) }); err != nil {
		return err
	}
	if err := s.load(dataset); err != nil {
		return err
	}
	s.invalidateAll(ctx)
	return nil
}

// LoadFromRepository populates the in-memory stores from the persisted
// state at startup.
func (s *DirectoryService) LoadFromRepository(ctx context.Context) error {
	if s.repo == nil {
		return nil
	}
	dataset, err := s.repo.Load(ctx)
	if err != nil {
		return fmt.Errorf("loading persisted state: %w", err)
	}
	if err := dataset.Validate(); err != nil {
		return fmt.Errorf("persisted state failed validation: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load(dataset)
}

// load applies a validated dataset to the stores. Groups are inserted
// parents-first so forest invariants hold row by row.
func (s *DirectoryService) load(dataset *entities.Dataset) error {
	for _, g := range sortGroupsByDepth(dataset.PrincipalGroups) {
		if err := s.principalGroups.Add(*g); err != nil {
			return err
		}
	}
	for _, g := range sortGroupsByDepth(dataset.ResourceGroups) {
		if err := s.resourceGroups.Add(*g); err != nil {
			return err
		}
	}
	for _, p := range dataset.Principals {
		if err := s.memberships.AddPrincipal(*p); err != nil {
			return err
		}
	}
	for _, r := range dataset.Resources {
		if err := s.memberships.AddResource(*r); err != nil {
			return err
		}
	}
	for _, m := range dataset.Memberships {
		if _, err := s.memberships.AddMembership(m.PrincipalID, m.GroupID); err != nil {
			return err
		}
	}
	for _, g := range dataset.Groupings {
		if _, err := s.memberships.AddGrouping(g.ResourceID, g.ResourceGroupID); err != nil {
			return err
		}
	}
	for _, e := range dataset.Allows {
		if _, err := s.permissions.Add(entities.EffectAllow, e); err != nil {
			return err
		}
	}
	for _, e := range dataset.Denies {
		if _, err := s.permissions.Add(entities.EffectDeny, e); err != nil {
			return err
		}
	}
	return nil
}

// Stats returns current store sizes.
func (s *DirectoryService) Stats(ctx context.Context) Stats {
	principals, resources, memberships, groupings := s.memberships.Counts()
	return Stats{
		Principals:      principals,
		PrincipalGroups: s.principalGroups.Len(),
		Resources:       resources,
		ResourceGroups:  s.resourceGroups.Len(),
		Memberships:     memberships,
		Groupings:       groupings,
		Allows:          s.permissions.Count(entities.EffectAllow),
		Denies:          s.permissions.Count(entities.EffectDeny),
	}
}

// subtreeMembers returns the principals directly assigned anywhere in the
// subtree rooted at the given group: exactly the set whose inherited group
// closure can include the group.
func (s *DirectoryService) subtreeMembers(groupID int64) map[int64]bool {
	subtree, err := s.principalGroups.Descendants(groupID)
	if err != nil {
		if errors.Is(err, entities.ErrNotFound) {
			return nil
		}
		// Walk failure means the subtree could not be bounded; treat every
		// member of the group itself as affected.
		subtree = map[int64]bool{groupID: true}
	}
	return s.memberships.MembersOf(subtree)
}

// persist runs a repository write if a repository is configured.
func (s *DirectoryService) persist(write func() error) error {
	if s.repo == nil {
		return nil
	}
	return write()
}

// invalidate drops cached sets for the affected principals and broadcasts
// the scope to sibling instances.
func (s *DirectoryService) invalidate(ctx context.Context, principalIDs map[int64]bool) {
	if len(principalIDs) == 0 {
		return
	}
	s.resolver.Invalidate(ctx, principalIDs)
	if s.repo != nil {
		_ = s.repo.PublishInvalidation(ctx, ScopeString(principalIDs))
	}
}

func (s *DirectoryService) invalidateAll(ctx context.Context) {
	s.resolver.InvalidateAll(ctx)
	if s.repo != nil {
		_ = s.repo.PublishInvalidation(ctx, ScopeAll)
	}
}

// ScopeString serializes a principal id set as an invalidation scope.
func ScopeString(principalIDs map[int64]bool) string {
	ids := make([]int64, 0, len(principalIDs))
	for id := range principalIDs {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.FormatInt(id, 10)
	}
	return strings.Join(parts, ",")
}

// ParseScope decodes an invalidation scope. The bool result reports
// whether the scope means "all principals".
func ParseScope(scope string) (map[int64]bool, bool) {
	if scope == ScopeAll || scope == "" {
		return nil, true
	}
	ids := make(map[int64]bool)
	for _, part := range strings.Split(scope, ",") {
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return nil, true // malformed scope: safest is a full flush
		}
		ids[id] = true
	}
	return ids, false
}

// sortGroupsByDepth orders groups so every parent precedes its children.
func sortGroupsByDepth(groups []*entities.Group) []*entities.Group {
	parents := make(map[int64]*int64, len(groups))
	for _, g := range groups {
		parents[g.ID] = g.ParentID
	}
	depth := func(g *entities.Group) int {
		d := 0
		for cur := g.ParentID; cur != nil && d <= len(groups); cur = parents[*cur] {
			d++
		}
		return d
	}
	sorted := make([]*entities.Group, len(groups))
	copy(sorted, groups)
	sort.SliceStable(sorted, func(i, j int) bool { return depth(sorted[i]) < depth(sorted[j]) })
	return sorted
}
