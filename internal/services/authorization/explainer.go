package authorization

import (
	"context"
	"sort"

	"github.com/zutrittswerk/portier/internal/entities"
)

// AccessSummary is one row of the access matrix: a principal and the
// names of every resource it may access.
type AccessSummary struct {
	Principal     entities.Principal
	ResourceNames []string
}

// ExplainAccess returns the audit record for a principal: the groups in
// scope, the allow and deny edges that contributed, each annotated with
// whether it came from a direct or inherited group, and the final
// accessible resource names. The record is built from the same
// intermediate sets resolve computes, never recomputed independently.
func (r *Resolver) ExplainAccess(ctx context.Context, principalID int64) (*entities.Explanation, error) {
	res, err := r.resolve(principalID)
	if err != nil {
		return nil, err
	}

	explanation := &entities.Explanation{
		Principal:  res.principal,
		Groups:     r.explainGroups(res),
		AllowRules: r.explainRules(entities.EffectAllow, res),
		DenyRules:  r.explainRules(entities.EffectDeny, res),
	}

	for _, resource := range r.memberships.ResourcesIn(res.final) {
		explanation.Resources = append(explanation.Resources, resource.Name)
	}
	return explanation, nil
}

// ResolveAll returns the access matrix for every principal, ordered by
// principal name with ties broken by id.
func (r *Resolver) ResolveAll(ctx context.Context) ([]AccessSummary, error) {
	principals := r.memberships.ListPrincipals(0)
	result := make([]AccessSummary, 0, len(principals))
	for _, p := range principals {
		resources, err := r.ResolveAccessibleResources(ctx, p.ID)
		if err != nil {
			return nil, err
		}
		summary := AccessSummary{Principal: p}
		for _, res := range resources {
			summary.ResourceNames = append(summary.ResourceNames, res.Name)
		}
		result = append(result, summary)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Principal.Name != result[j].Principal.Name {
			return result[i].Principal.Name < result[j].Principal.Name
		}
		return result[i].Principal.ID < result[j].Principal.ID
	})
	return result, nil
}

// explainGroups lists the groups in scope, direct memberships first,
// each block ordered by id.
func (r *Resolver) explainGroups(res *resolution) []entities.GroupRef {
	refs := make([]entities.GroupRef, 0, len(res.all))
	for gid := range res.all {
		ref := entities.GroupRef{ID: gid, Direct: res.direct[gid]}
		if g, err := r.principalGroups.Get(gid); err == nil {
			ref.Name = g.Name
		}
		refs = append(refs, ref)
	}
	sort.Slice(refs, func(i, j int) bool {
		if refs[i].Direct != refs[j].Direct {
			return refs[i].Direct
		}
		return refs[i].ID < refs[j].ID
	})
	return refs
}

// explainRules lists the permission edges sourced in any group in scope.
func (r *Resolver) explainRules(effect entities.Effect, res *resolution) []entities.ExplainedRule {
	edges := r.permissions.EdgesFrom(effect, res.all)
	rules := make([]entities.ExplainedRule, 0, len(edges))
	for _, edge := range edges {
		rule := entities.ExplainedRule{
			GroupID:         edge.GroupID,
			ResourceGroupID: edge.ResourceGroupID,
			Direct:          res.direct[edge.GroupID],
		}
		if g, err := r.principalGroups.Get(edge.GroupID); err == nil {
			rule.GroupName = g.Name
		}
		if g, err := r.resourceGroups.Get(edge.ResourceGroupID); err == nil {
			rule.ResourceGroupName = g.Name
		}
		rules = append(rules, rule)
	}
	return rules
}
