package handlers

import (
	"net/http"
	"time"

	"github.com/zutrittswerk/portier/internal/entities"
	"github.com/zutrittswerk/portier/internal/infrastructure/metrics"
	"github.com/zutrittswerk/portier/internal/services"
	"github.com/zutrittswerk/portier/internal/services/authorization"
	"github.com/zutrittswerk/portier/internal/store"
)

const defaultListLimit = 100

// AccessHandler serves the read side of the API: directory listings,
// access checks, resolved door sets, explanations and the access matrix.
type AccessHandler struct {
	resolver    *authorization.Resolver
	directory   *services.DirectoryService
	memberships *store.MembershipStore
	pgroups     *store.Hierarchy
	rgroups     *store.Hierarchy
	collector   *metrics.Collector
}

func NewAccessHandler(
	resolver *authorization.Resolver,
	directory *services.DirectoryService,
	memberships *store.MembershipStore,
	pgroups *store.Hierarchy,
	rgroups *store.Hierarchy,
	collector *metrics.Collector,
) *AccessHandler {
	return &AccessHandler{
		resolver:    resolver,
		directory:   directory,
		memberships: memberships,
		pgroups:     pgroups,
		rgroups:     rgroups,
		collector:   collector,
	}
}

// ListUsers handles GET /api/users
func (h *AccessHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	limit := queryLimit(r, defaultListLimit)
	principals := h.memberships.ListPrincipals(limit)

	users := make([]userJSON, len(principals))
	for i, p := range principals {
		users[i] = toUserJSON(p)
	}
	writeJSON(w, http.StatusOK, users)
}

// GetUser handles GET /api/users/{userID}
func (h *AccessHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	userID, err := pathID(r, "userID")
	if err != nil {
		writeError(w, err)
		return
	}

	principal, err := h.memberships.GetPrincipal(userID)
	if err != nil {
		writeError(w, err)
		return
	}

	groupIDs, err := h.memberships.DirectGroups(userID)
	if err != nil {
		writeError(w, err)
		return
	}
	groups := make([]groupJSON, 0, len(groupIDs))
	for id := range groupIDs {
		g, err := h.pgroups.Get(id)
		if err != nil {
			continue
		}
		groups = append(groups, groupJSON{GroupID: g.ID, Name: g.Name, ParentID: g.ParentID})
	}
	sortGroupsJSON(groups)

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"user":   toUserJSON(principal),
		"groups": groups,
	})
}

// ListUserDoors handles GET /api/users/{userID}/doors
func (h *AccessHandler) ListUserDoors(w http.ResponseWriter, r *http.Request) {
	userID, err := pathID(r, "userID")
	if err != nil {
		writeError(w, err)
		return
	}

	principal, err := h.memberships.GetPrincipal(userID)
	if err != nil {
		writeError(w, err)
		return
	}

	start := time.Now()
	doors, err := h.resolver.ResolveAccessibleResources(r.Context(), userID)
	elapsed := time.Since(start)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"user":       toUserJSON(principal),
		"doors":      toDoorsJSON(doors),
		"door_count": len(doors),
		"timing": map[string]interface{}{
			"query_ms":   float64(elapsed.Microseconds()) / 1000.0,
			"door_count": len(doors),
		},
	})
}

// CheckAccess handles GET /api/check/{userID}/{doorID}
func (h *AccessHandler) CheckAccess(w http.ResponseWriter, r *http.Request) {
	userID, err := pathID(r, "userID")
	if err != nil {
		writeError(w, err)
		return
	}
	doorID, err := pathID(r, "doorID")
	if err != nil {
		writeError(w, err)
		return
	}

	principal, err := h.memberships.GetPrincipal(userID)
	if err != nil {
		writeError(w, err)
		return
	}
	door, err := h.memberships.GetResource(doorID)
	if err != nil {
		writeError(w, err)
		return
	}

	start := time.Now()
	granted, err := h.resolver.CheckAccess(r.Context(), userID, doorID)
	elapsed := time.Since(start)
	if err != nil {
		writeError(w, err)
		return
	}
	if h.collector != nil {
		h.collector.RecordCheck(granted)
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"user":           toUserJSON(principal),
		"door":           toDoorJSON(door),
		"access_granted": granted,
		"timing": map[string]interface{}{
			"query_ms": float64(elapsed.Microseconds()) / 1000.0,
		},
	})
}

// ExplainAccess handles GET /api/explain/{userID}
func (h *AccessHandler) ExplainAccess(w http.ResponseWriter, r *http.Request) {
	userID, err := pathID(r, "userID")
	if err != nil {
		writeError(w, err)
		return
	}

	explanation, err := h.resolver.ExplainAccess(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"user":             toUserJSON(explanation.Principal),
		"member_of_groups": toGroupRefsJSON(explanation.Groups),
		"allow_rules":      toRulesJSON(explanation.AllowRules),
		"deny_rules":       toRulesJSON(explanation.DenyRules),
		"final_access":     explanation.Resources,
	})
}

// AccessMatrix handles GET /api/access-matrix
func (h *AccessHandler) AccessMatrix(w http.ResponseWriter, r *http.Request) {
	summaries, err := h.resolver.ResolveAll(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	matrix := make(map[string]interface{}, len(summaries))
	for _, s := range summaries {
		matrix[s.Principal.Name] = map[string]interface{}{
			"user_id":          s.Principal.ID,
			"email":            s.Principal.Email,
			"accessible_doors": s.ResourceNames,
			"door_count":       len(s.ResourceNames),
		}
	}
	writeJSON(w, http.StatusOK, matrix)
}

// ListGroups handles GET /api/groups
func (h *AccessHandler) ListGroups(w http.ResponseWriter, r *http.Request) {
	groups := h.pgroups.List()
	out := make([]groupJSON, len(groups))
	for i, g := range groups {
		out[i] = groupJSON{GroupID: g.ID, Name: g.Name, ParentID: g.ParentID}
	}
	writeJSON(w, http.StatusOK, out)
}

// ListDoorGroups handles GET /api/door-groups
func (h *AccessHandler) ListDoorGroups(w http.ResponseWriter, r *http.Request) {
	groups := h.rgroups.List()
	out := make([]dgroupJSON, len(groups))
	for i, g := range groups {
		out[i] = dgroupJSON{DgroupID: g.ID, Name: g.Name, ParentID: g.ParentID}
	}
	writeJSON(w, http.StatusOK, out)
}

// ListDoors handles GET /api/doors
func (h *AccessHandler) ListDoors(w http.ResponseWriter, r *http.Request) {
	limit := queryLimit(r, defaultListLimit)
	writeJSON(w, http.StatusOK, toDoorsJSON(h.memberships.ListResources(limit)))
}

// GetStats handles GET /api/stats
func (h *AccessHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.directory.Stats(r.Context()))
}

// Health handles GET /health
func (h *AccessHandler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type groupRefJSON struct {
	GroupID int64  `json:"group_id"`
	Name    string `json:"name"`
	Direct  bool   `json:"direct"`
}

type ruleJSON struct {
	GroupID    int64  `json:"group_id"`
	GroupName  string `json:"group_name"`
	DgroupID   int64  `json:"dgroup_id"`
	DgroupName string `json:"dgroup_name"`
	Direct     bool   `json:"direct"`
}

func toGroupRefsJSON(refs []entities.GroupRef) []groupRefJSON {
	out := make([]groupRefJSON, len(refs))
	for i, ref := range refs {
		out[i] = groupRefJSON{GroupID: ref.ID, Name: ref.Name, Direct: ref.Direct}
	}
	return out
}

func toRulesJSON(rules []entities.ExplainedRule) []ruleJSON {
	out := make([]ruleJSON, len(rules))
	for i, rule := range rules {
		out[i] = ruleJSON{
			GroupID:    rule.GroupID,
			GroupName:  rule.GroupName,
			DgroupID:   rule.ResourceGroupID,
			DgroupName: rule.ResourceGroupName,
			Direct:     rule.Direct,
		}
	}
	return out
}
