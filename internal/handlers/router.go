package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter assembles the full API surface on a chi router.
// metricsMW may be nil when the exporter is disabled.
func NewRouter(access *AccessHandler, admin *AdminHandler, metricsMW func(http.Handler) http.Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Logger)
	r.Use(chimw.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))
	if metricsMW != nil {
		r.Use(metricsMW)
	}

	r.Get("/health", access.Health)

	r.Route("/api", func(r chi.Router) {
		r.Get("/users", access.ListUsers)
		r.Post("/users", admin.CreateUser)
		r.Get("/users/{userID}", access.GetUser)
		r.Delete("/users/{userID}", admin.DeleteUser)
		r.Get("/users/{userID}/doors", access.ListUserDoors)

		r.Get("/doors", access.ListDoors)
		r.Post("/doors", admin.CreateDoor)
		r.Delete("/doors/{doorID}", admin.DeleteDoor)

		r.Get("/check/{userID}/{doorID}", access.CheckAccess)
		r.Get("/explain/{userID}", access.ExplainAccess)
		r.Get("/access-matrix", access.AccessMatrix)
		r.Get("/stats", access.GetStats)

		r.Get("/groups", access.ListGroups)
		r.Post("/groups", admin.CreateGroup)
		r.Put("/groups/{groupID}/name", admin.RenameGroup)
		r.Put("/groups/{groupID}/parent", admin.ReparentGroup)
		r.Delete("/groups/{groupID}", admin.DeleteGroup)

		r.Get("/door-groups", access.ListDoorGroups)
		r.Post("/door-groups", admin.CreateDoorGroup)
		r.Put("/door-groups/{dgroupID}/name", admin.RenameDoorGroup)
		r.Put("/door-groups/{dgroupID}/parent", admin.ReparentDoorGroup)
		r.Delete("/door-groups/{dgroupID}", admin.DeleteDoorGroup)

		r.Post("/user-groups", admin.AssignUserGroup)
		r.Delete("/user-groups/{userID}/{groupID}", admin.UnassignUserGroup)

		r.Post("/door-in-group", admin.AssignDoorGroup)
		r.Delete("/door-in-group/{doorID}/{dgroupID}", admin.UnassignDoorGroup)

		r.Post("/permissions/allow", admin.AddAllowPermission)
		r.Delete("/permissions/allow/{groupID}/{dgroupID}", admin.RemoveAllowPermission)
		r.Post("/permissions/deny", admin.AddDenyPermission)
		r.Delete("/permissions/deny/{groupID}/{dgroupID}", admin.RemoveDenyPermission)

		r.Post("/import", admin.ImportDataset)
	})

	return r
}
