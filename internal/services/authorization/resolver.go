package authorization

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/zutrittswerk/portier/internal/entities"
	"github.com/zutrittswerk/portier/internal/store"
	"github.com/zutrittswerk/portier/pkg/cache"
)

// Resolver computes the authoritative accessible-resource set for a
// principal from the hierarchy indexes, the permission store and the
// membership store. It never mutates state.
//
// Precedence rule: a deny attached to a group the principal is directly
// assigned to always suppresses access through that resource group. A deny
// attached only to an inherited (ancestor) group is overridden by an allow
// from one of the principal's direct groups. Absent any direct allow, the
// union of all allows minus all denies applies.
type Resolver struct {
	principalGroups *store.Hierarchy
	resourceGroups  *store.Hierarchy
	permissions     *store.PermissionStore
	memberships     *store.MembershipStore

	cache    cache.Cache // optional per-principal resolved-set cache
	cacheTTL time.Duration
}

// resolution holds the intermediate sets of a single decision. Explanations
// are materialized from the same instance, so they always match the decision.
type resolution struct {
	principal entities.Principal

	direct    map[int64]bool // explicit membership rows
	inherited map[int64]bool // ancestors of direct groups, minus direct
	all       map[int64]bool // direct plus inherited

	allowDirectExpanded   map[int64]bool
	denyDirectExpanded    map[int64]bool
	denyInheritedExpanded map[int64]bool
	allowAllExpanded      map[int64]bool

	final map[int64]bool // authoritative resource-group set
}

// resourceSet is the cached value type: a resolved, sorted accessible set.
type resourceSet []entities.Resource

// CacheSize reports the approximate footprint for cache accounting.
func (rs resourceSet) CacheSize() int64 {
	size := int64(0)
	for _, r := range rs {
		size += 24 + int64(len(r.Name)+len(r.Location))
	}
	return size
}

// NewResolver creates a Resolver without caching.
func NewResolver(
	principalGroups *store.Hierarchy,
	resourceGroups *store.Hierarchy,
	permissions *store.PermissionStore,
	memberships *store.MembershipStore,
) *Resolver {
	return &Resolver{
		principalGroups: principalGroups,
		resourceGroups:  resourceGroups,
		permissions:     permissions,
		memberships:     memberships,
	}
}

// NewResolverWithCache creates a Resolver that caches resolved sets per
// principal. Entries are invalidated by the mutation gateway.
func NewResolverWithCache(
	principalGroups *store.Hierarchy,
	resourceGroups *store.Hierarchy,
	permissions *store.PermissionStore,
	memberships *store.MembershipStore,
	c cache.Cache,
	cacheTTL time.Duration,
) *Resolver {
	r := NewResolver(principalGroups, resourceGroups, permissions, memberships)
	r.cache = c
	r.cacheTTL = cacheTTL
	return r
}

// ResolveAccessibleResources returns every resource the principal may
// access, sorted by name with ties broken by id.
// Returns ErrNotFound for an unknown principal.
func (r *Resolver) ResolveAccessibleResources(ctx context.Context, principalID int64) ([]entities.Resource, error) {
	if r.cache != nil {
		if cached, ok := r.cache.Get(ctx, cacheKey(principalID)); ok {
			if set, ok := cached.(resourceSet); ok {
				return set, nil
			}
		}
	}

	res, err := r.resolve(principalID)
	if err != nil {
		return nil, err
	}
	set := resourceSet(r.memberships.ResourcesIn(res.final))

	if r.cache != nil {
		_ = r.cache.Set(ctx, cacheKey(principalID), set, r.cacheTTL)
	}
	return set, nil
}

// CheckAccess reports whether the principal may access the resource.
// It is a membership test against the fully resolved set, so it can never
// diverge from ResolveAccessibleResources.
// Returns ErrNotFound if either the principal or the resource is unknown.
func (r *Resolver) CheckAccess(ctx context.Context, principalID, resourceID int64) (bool, error) {
	if _, err := r.memberships.GetResource(resourceID); err != nil {
		return false, err
	}
	resources, err := r.ResolveAccessibleResources(ctx, principalID)
	if err != nil {
		return false, err
	}
	for _, res := range resources {
		if res.ID == resourceID {
			return true, nil
		}
	}
	return false, nil
}

// Invalidate drops cached resolved sets for the given principals.
func (r *Resolver) Invalidate(ctx context.Context, principalIDs map[int64]bool) {
	if r.cache == nil {
		return
	}
	for pid := range principalIDs {
		_ = r.cache.Delete(ctx, cacheKey(pid))
	}
}

// InvalidateAll drops every cached resolved set. Used for structural
// changes on the resource side, where the affected principal set is
// unbounded.
func (r *Resolver) InvalidateAll(ctx context.Context) {
	if r.cache == nil {
		return
	}
	_ = r.cache.Clear(ctx)
}

// resolve computes the full intermediate-set pipeline for one principal.
func (r *Resolver) resolve(principalID int64) (*resolution, error) {
	principal, err := r.memberships.GetPrincipal(principalID)
	if err != nil {
		return nil, err
	}
	direct, err := r.memberships.DirectGroups(principalID)
	if err != nil {
		return nil, err
	}

	all := make(map[int64]bool, len(direct))
	for gid := range direct {
		all[gid] = true
	}
	for gid := range direct {
		ancestors, err := r.principalGroups.Ancestors(gid)
		if err != nil {
			// A membership row can momentarily outlive a cascading group
			// delete; an absent group contributes no inheritance.
			if errors.Is(err, entities.ErrNotFound) {
				continue
			}
			return nil, fmt.Errorf("expanding groups of principal %d: %w", principalID, err)
		}
		for _, aid := range ancestors {
			all[aid] = true
		}
	}

	inherited := make(map[int64]bool)
	for gid := range all {
		if !direct[gid] {
			inherited[gid] = true
		}
	}

	res := &resolution{
		principal: principal,
		direct:    direct,
		inherited: inherited,
		all:       all,
	}

	if res.allowDirectExpanded, err = r.expandTargets(entities.EffectAllow, direct); err != nil {
		return nil, err
	}
	if res.denyDirectExpanded, err = r.expandTargets(entities.EffectDeny, direct); err != nil {
		return nil, err
	}
	if res.denyInheritedExpanded, err = r.expandTargets(entities.EffectDeny, inherited); err != nil {
		return nil, err
	}
	if res.allowAllExpanded, err = r.expandTargets(entities.EffectAllow, all); err != nil {
		return nil, err
	}

	// Direct allows win unless directly denied; otherwise inherited allows
	// apply minus every deny in scope.
	final := make(map[int64]bool)
	for rgid := range res.allowDirectExpanded {
		if !res.denyDirectExpanded[rgid] {
			final[rgid] = true
		}
	}
	for rgid := range res.allowAllExpanded {
		if res.allowDirectExpanded[rgid] || res.denyInheritedExpanded[rgid] || res.denyDirectExpanded[rgid] {
			continue
		}
		final[rgid] = true
	}
	res.final = final
	return res, nil
}

// expandTargets takes the resource groups targeted by edges sourced in the
// given principal groups and expands them downward through the resource
// group hierarchy (reflexive-transitive child closure).
func (r *Resolver) expandTargets(effect entities.Effect, sources map[int64]bool) (map[int64]bool, error) {
	targets := r.permissions.TargetsFrom(effect, sources)
	expanded, err := r.resourceGroups.DescendantsOfSet(targets)
	if err != nil {
		return nil, fmt.Errorf("expanding %s targets: %w", effect, err)
	}
	return expanded, nil
}

func cacheKey(principalID int64) string {
	return "principal:" + strconv.FormatInt(principalID, 10)
}
