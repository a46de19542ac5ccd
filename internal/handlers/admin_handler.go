package handlers

import (
	"net/http"

	"github.com/zutrittswerk/portier/internal/entities"
	"github.com/zutrittswerk/portier/internal/services"
)

// AdminHandler serves the write side of the API. All mutations go through
// the directory service so persistence and cache invalidation stay in step.
type AdminHandler struct {
	directory *services.DirectoryService
}

func NewAdminHandler(directory *services.DirectoryService) *AdminHandler {
	return &AdminHandler{directory: directory}
}

// CreateUser handles POST /api/users
func (h *AdminHandler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID int64  `json:"user_id"`
		Name   string `json:"name"`
		Email  string `json:"email"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}

	p := entities.Principal{ID: req.UserID, Name: req.Name, Email: req.Email}
	if err := h.directory.CreatePrincipal(r.Context(), p); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toUserJSON(p))
}

// DeleteUser handles DELETE /api/users/{userID}
func (h *AdminHandler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	userID, err := pathID(r, "userID")
	if err != nil {
		writeError(w, err)
		return
	}
	if err := h.directory.DeletePrincipal(r.Context(), userID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, successJSON{Success: true})
}

// CreateDoor handles POST /api/doors
func (h *AdminHandler) CreateDoor(w http.ResponseWriter, r *http.Request) {
	var req struct {
		DoorID   int64  `json:"door_id"`
		Name     string `json:"name"`
		Location string `json:"location"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}

	d := entities.Resource{ID: req.DoorID, Name: req.Name, Location: req.Location}
	if err := h.directory.CreateResource(r.Context(), d); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toDoorJSON(d))
}

// DeleteDoor handles DELETE /api/doors/{doorID}
func (h *AdminHandler) DeleteDoor(w http.ResponseWriter, r *http.Request) {
	doorID, err := pathID(r, "doorID")
	if err != nil {
		writeError(w, err)
		return
	}
	if err := h.directory.DeleteResource(r.Context(), doorID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, successJSON{Success: true})
}

// CreateGroup handles POST /api/groups
func (h *AdminHandler) CreateGroup(w http.ResponseWriter, r *http.Request) {
	var req struct {
		GroupID  int64  `json:"group_id"`
		Name     string `json:"name"`
		ParentID *int64 `json:"parent_id"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}

	g := entities.Group{ID: req.GroupID, Name: req.Name, ParentID: req.ParentID}
	if err := h.directory.CreatePrincipalGroup(r.Context(), g); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, groupJSON{GroupID: g.ID, Name: g.Name, ParentID: g.ParentID})
}

// RenameGroup handles PUT /api/groups/{groupID}/name
func (h *AdminHandler) RenameGroup(w http.ResponseWriter, r *http.Request) {
	groupID, err := pathID(r, "groupID")
	if err != nil {
		writeError(w, err)
		return
	}
	var req struct {
		Name string `json:"name"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := h.directory.RenamePrincipalGroup(r.Context(), groupID, req.Name); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, successJSON{Success: true})
}

// ReparentGroup handles PUT /api/groups/{groupID}/parent
func (h *AdminHandler) ReparentGroup(w http.ResponseWriter, r *http.Request) {
	groupID, err := pathID(r, "groupID")
	if err != nil {
		writeError(w, err)
		return
	}
	var req struct {
		ParentID *int64 `json:"parent_id"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := h.directory.ReparentPrincipalGroup(r.Context(), groupID, req.ParentID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, successJSON{Success: true})
}

// DeleteGroup handles DELETE /api/groups/{groupID}
func (h *AdminHandler) DeleteGroup(w http.ResponseWriter, r *http.Request) {
	groupID, err := pathID(r, "groupID")
	if err != nil {
		writeError(w, err)
		return
	}
	if err := h.directory.DeletePrincipalGroup(r.Context(), groupID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, successJSON{Success: true})
}

// CreateDoorGroup handles POST /api/door-groups
func (h *AdminHandler) CreateDoorGroup(w http.ResponseWriter, r *http.Request) {
	var req struct {
		DgroupID int64  `json:"dgroup_id"`
		Name     string `json:"name"`
		ParentID *int64 `json:"parent_id"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}

	g := entities.Group{ID: req.DgroupID, Name: req.Name, ParentID: req.ParentID}
	if err := h.directory.CreateResourceGroup(r.Context(), g); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, dgroupJSON{DgroupID: g.ID, Name: g.Name, ParentID: g.ParentID})
}

// RenameDoorGroup handles PUT /api/door-groups/{dgroupID}/name
func (h *AdminHandler) RenameDoorGroup(w http.ResponseWriter, r *http.Request) {
	dgroupID, err := pathID(r, "dgroupID")
	if err != nil {
		writeError(w, err)
		return
	}
	var req struct {
		Name string `json:"name"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := h.directory.RenameResourceGroup(r.Context(), dgroupID, req.Name); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, successJSON{Success: true})
}

// ReparentDoorGroup handles PUT /api/door-groups/{dgroupID}/parent
func (h *AdminHandler) ReparentDoorGroup(w http.ResponseWriter, r *http.Request) {
	dgroupID, err := pathID(r, "dgroupID")
	if err != nil {
		writeError(w, err)
		return
	}
	var req struct {
		ParentID *int64 `json:"parent_id"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := h.directory.ReparentResourceGroup(r.Context(), dgroupID, req.ParentID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, successJSON{Success: true})
}

// DeleteDoorGroup handles DELETE /api/door-groups/{dgroupID}
func (h *AdminHandler) DeleteDoorGroup(w http.ResponseWriter, r *http.Request) {
	dgroupID, err := pathID(r, "dgroupID")
	if err != nil {
		writeError(w, err)
		return
	}
	if err := h.directory.DeleteResourceGroup(r.Context(), dgroupID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, successJSON{Success: true})
}

// AssignUserGroup handles POST /api/user-groups
func (h *AdminHandler) AssignUserGroup(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID  int64 `json:"user_id"`
		GroupID int64 `json:"group_id"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := h.directory.AssignPrincipal(r.Context(), req.UserID, req.GroupID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, successJSON{Success: true})
}

// UnassignUserGroup handles DELETE /api/user-groups/{userID}/{groupID}
func (h *AdminHandler) UnassignUserGroup(w http.ResponseWriter, r *http.Request) {
	userID, err := pathID(r, "userID")
	if err != nil {
		writeError(w, err)
		return
	}
	groupID, err := pathID(r, "groupID")
	if err != nil {
		writeError(w, err)
		return
	}
	if err := h.directory.UnassignPrincipal(r.Context(), userID, groupID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, successJSON{Success: true})
}

// AssignDoorGroup handles POST /api/door-in-group
func (h *AdminHandler) AssignDoorGroup(w http.ResponseWriter, r *http.Request) {
	var req struct {
		DoorID   int64 `json:"door_id"`
		DgroupID int64 `json:"dgroup_id"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := h.directory.AssignResource(r.Context(), req.DoorID, req.DgroupID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, successJSON{Success: true})
}

// UnassignDoorGroup handles DELETE /api/door-in-group/{doorID}/{dgroupID}
func (h *AdminHandler) UnassignDoorGroup(w http.ResponseWriter, r *http.Request) {
	doorID, err := pathID(r, "doorID")
	if err != nil {
		writeError(w, err)
		return
	}
	dgroupID, err := pathID(r, "dgroupID")
	if err != nil {
		writeError(w, err)
		return
	}
	if err := h.directory.UnassignResource(r.Context(), doorID, dgroupID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, successJSON{Success: true})
}

// AddAllowPermission handles POST /api/permissions/allow
func (h *AdminHandler) AddAllowPermission(w http.ResponseWriter, r *http.Request) {
	h.addPermission(w, r, entities.EffectAllow)
}

// AddDenyPermission handles POST /api/permissions/deny
func (h *AdminHandler) AddDenyPermission(w http.ResponseWriter, r *http.Request) {
	h.addPermission(w, r, entities.EffectDeny)
}

// RemoveAllowPermission handles DELETE /api/permissions/allow/{groupID}/{dgroupID}
func (h *AdminHandler) RemoveAllowPermission(w http.ResponseWriter, r *http.Request) {
	h.removePermission(w, r, entities.EffectAllow)
}

// RemoveDenyPermission handles DELETE /api/permissions/deny/{groupID}/{dgroupID}
func (h *AdminHandler) RemoveDenyPermission(w http.ResponseWriter, r *http.Request) {
	h.removePermission(w, r, entities.EffectDeny)
}

func (h *AdminHandler) addPermission(w http.ResponseWriter, r *http.Request, effect entities.Effect) {
	var req struct {
		GroupID  int64 `json:"group_id"`
		DgroupID int64 `json:"dgroup_id"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	edge := entities.PermissionEdge{GroupID: req.GroupID, ResourceGroupID: req.DgroupID}
	if err := h.directory.AddPermission(r.Context(), effect, edge); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, successJSON{Success: true})
}

func (h *AdminHandler) removePermission(w http.ResponseWriter, r *http.Request, effect entities.Effect) {
	groupID, err := pathID(r, "groupID")
	if err != nil {
		writeError(w, err)
		return
	}
	dgroupID, err := pathID(r, "dgroupID")
	if err != nil {
		writeError(w, err)
		return
	}
	edge := entities.PermissionEdge{GroupID: groupID, ResourceGroupID: dgroupID}
	if err := h.directory.RemovePermission(r.Context(), effect, edge); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, successJSON{Success: true})
}

// ImportDataset handles POST /api/import
func (h *AdminHandler) ImportDataset(w http.ResponseWriter, r *http.Request) {
	var dataset entities.Dataset
	if err := decodeBody(r, &dataset); err != nil {
		writeError(w, err)
		return
	}
	if err := h.directory.Import(r.Context(), &dataset); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, successJSON{Success: true, Message: "dataset imported"})
}
