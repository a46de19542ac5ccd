package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"sort"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/zutrittswerk/portier/internal/entities"
)

// userJSON mirrors the original API's user rows.
type userJSON struct {
	UserID int64  `json:"user_id"`
	Name   string `json:"name"`
	Email  string `json:"email"`
}

// doorJSON mirrors the original API's door rows.
type doorJSON struct {
	DoorID   int64  `json:"door_id"`
	Name     string `json:"name"`
	Location string `json:"location"`
}

// groupJSON serves both hierarchies; the id key differs per endpoint.
type groupJSON struct {
	GroupID  int64  `json:"group_id"`
	Name     string `json:"name"`
	ParentID *int64 `json:"parent_id"`
}

type dgroupJSON struct {
	DgroupID int64  `json:"dgroup_id"`
	Name     string `json:"name"`
	ParentID *int64 `json:"parent_id"`
}

type errorJSON struct {
	Error string `json:"error"`
}

type successJSON struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

func toUserJSON(p entities.Principal) userJSON {
	return userJSON{UserID: p.ID, Name: p.Name, Email: p.Email}
}

func toDoorJSON(r entities.Resource) doorJSON {
	return doorJSON{DoorID: r.ID, Name: r.Name, Location: r.Location}
}

func toDoorsJSON(resources []entities.Resource) []doorJSON {
	doors := make([]doorJSON, len(resources))
	for i, r := range resources {
		doors[i] = toDoorJSON(r)
	}
	return doors
}

func sortGroupsJSON(groups []groupJSON) {
	sort.Slice(groups, func(i, j int) bool { return groups[i].GroupID < groups[j].GroupID })
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps the engine's typed failures to HTTP status codes.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, entities.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, entities.ErrDuplicate):
		status = http.StatusConflict
	case errors.Is(err, entities.ErrHierarchyCycle):
		status = http.StatusConflict
	case errors.Is(err, entities.ErrDanglingReference):
		status = http.StatusBadRequest
	case errors.Is(err, entities.ErrInvalidInput):
		status = http.StatusBadRequest
	}
	writeJSON(w, status, errorJSON{Error: err.Error()})
}

// pathID parses a numeric id from a chi URL parameter.
func pathID(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil {
		return 0, entities.ErrInvalidInput
	}
	return id, nil
}

// queryLimit parses the optional ?limit= parameter with a default.
func queryLimit(r *http.Request, fallback int) int {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return fallback
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 0 {
		return fallback
	}
	return limit
}

// decodeBody decodes a JSON request body, rejecting malformed payloads.
func decodeBody(r *http.Request, v interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return entities.ErrInvalidInput
	}
	return nil
}
