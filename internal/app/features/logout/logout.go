// internal/app/features/logout/logout.go
package logout

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/juhiii45/EcoReborn/internal/app/system/auditlog"
	"github.com/juhiii45/EcoReborn/internal/app/system/auth"
	"github.com/juhiii45/EcoReborn/internal/app/system/authflow"
	"github.com/juhiii45/EcoReborn/internal/app/system/network"
	"go.uber.org/zap"
)

type Handler struct {
	flow       *authflow.Service
	sessionMgr *auth.SessionManager
	clientIP   func(*http.Request) string
	logger     *zap.Logger
}

// NewHandler accepts a nil flow, which skips the audit record.
func NewHandler(flow *authflow.Service, sessionMgr *auth.SessionManager, clientIP func(*http.Request) string, logger *zap.Logger) *Handler {
	h := &Handler{flow: flow, sessionMgr: sessionMgr, clientIP: clientIP, logger: logger}
	if h.clientIP == nil {
		h.clientIP = network.RemoteIP
	}
	return h
}

// Routes accepts GET as well so the menu can use a plain link.
func Routes(h *Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(h.sessionMgr.RequireSignedIn)
	r.Post("/", h.logout)
	r.Get("/", h.logout)
	return r
}

func (h *Handler) logout(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.CurrentUser(r)
	if ok && h.flow != nil {
		h.flow.Logout(r.Context(), auditlog.ClientFrom(r, h.clientIP), user.ID, user.Email)
	}

	h.sessionMgr.DestroySession(w, r)
	h.sessionMgr.AddFlash(w, r, auth.FlashInfo, "You have been logged out")
	http.Redirect(w, r, "/", http.StatusSeeOther)
}
