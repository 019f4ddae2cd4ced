// internal/app/features/status/routes.go
package status

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/juhiii45/EcoReborn/internal/app/system/auth"
	"github.com/juhiii45/EcoReborn/internal/domain/models"
)

// Routes mounts the status page behind the admin role.
func Routes(h *Handler, sessionMgr *auth.SessionManager) http.Handler {
	r := chi.NewRouter()
	r.Use(sessionMgr.RequireRole(models.RoleAdmin))
	r.Get("/", h.Serve)
	r.Post("/renew", h.HandleRenew)
	return r
}
