package entities

// GroupRef identifies a group a principal belongs to within an explanation.
type GroupRef struct {
	ID     int64
	Name   string
	Direct bool // true for an explicit membership, false for an inherited ancestor
}

// ExplainedRule is a permission edge that was in scope for a decision,
// annotated with whether it came from a direct or inherited group.
type ExplainedRule struct {
	GroupID           int64
	GroupName         string
	ResourceGroupID   int64
	ResourceGroupName string
	Direct            bool
}

// Explanation is the audit record for a principal's access decision.
// It is materialized from the same intermediate sets the resolver computes,
// so the explanation always matches the decision.
type Explanation struct {
	Principal  Principal
	Groups     []GroupRef      // all groups in scope, direct first
	AllowRules []ExplainedRule // allow edges sourced from any group in scope
	DenyRules  []ExplainedRule // deny edges sourced from any group in scope
	Resources  []string        // final accessible resource names, sorted
}
