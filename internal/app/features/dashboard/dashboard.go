// internal/app/features/dashboard/dashboard.go
package dashboard

import (
	"errors"
	"net/http"
	"time"

	"github.com/dalemusser/waffle/pantry/templates"
	"github.com/go-chi/chi/v5"
	errorsfeature "github.com/juhiii45/EcoReborn/internal/app/features/errors"
	requeststore "github.com/juhiii45/EcoReborn/internal/app/store/servicerequests"
	userstore "github.com/juhiii45/EcoReborn/internal/app/store/users"
	"github.com/juhiii45/EcoReborn/internal/app/system/auth"
	"github.com/juhiii45/EcoReborn/internal/app/system/timeouts"
	"github.com/juhiii45/EcoReborn/internal/app/system/viewdata"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

const (
	recentRequests = 10

	dateLayout     = "January 02, 2006"
	dateTimeLayout = "January 02, 2006 at 03:04 PM"
)

// Handler provides dashboard handlers.
type Handler struct {
	users    *userstore.Store
	requests *requeststore.Store
	errLog   *errorsfeature.ErrorLogger
	logger   *zap.Logger
}

// NewHandler creates a new dashboard Handler.
func NewHandler(db *mongo.Database, errLog *errorsfeature.ErrorLogger, logger *zap.Logger) *Handler {
	return &Handler{
		users:    userstore.New(db),
		requests: requeststore.New(db),
		errLog:   errLog,
		logger:   logger,
	}
}

// RequestRow is one service request as shown on the dashboard.
type RequestRow struct {
	ServiceName string
	Message     string
	Status      string
	Submitted   string
}

// DashboardVM is the view model for the dashboard.
type DashboardVM struct {
	viewdata.BaseVM
	Greeting    string
	MemberSince string
	LastLogin   string // empty before the first recorded login
	Requests    []RequestRow
}

// Routes returns a chi.Router with dashboard routes mounted.
func Routes(h *Handler, sessionMgr *auth.SessionManager) http.Handler {
	r := chi.NewRouter()
	r.Use(sessionMgr.RequireSignedIn)
	r.Get("/", h.showDashboard)
	return r
}

// showDashboard greets the user and lists their latest service requests.
func (h *Handler) showDashboard(w http.ResponseWriter, r *http.Request) {
	su, ok := auth.CurrentUser(r)
	if !ok {
		http.Redirect(w, r, "/login", http.StatusSeeOther)
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Short(), h.logger, "dashboard")
	defer cancel()

	u, err := h.users.FindByID(ctx, su.UserID())
	if err != nil {
		if errors.Is(err, userstore.ErrNotFound) {
			http.Redirect(w, r, "/logout", http.StatusSeeOther)
			return
		}
		h.errLog.Log(r, "dashboard: load user", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	list, err := h.requests.ListByEmail(ctx, u.Email, recentRequests)
	if err != nil {
		h.errLog.Log(r, "dashboard: list service requests", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	vm := DashboardVM{
		BaseVM:      viewdata.NewBaseVM(r, "Dashboard", "/"),
		Greeting:    greeting(u.Name, time.Now()),
		MemberSince: u.CreatedAt.Format(dateLayout),
	}
	if u.LastLogin != nil {
		vm.LastLogin = u.LastLogin.Format(dateTimeLayout)
	}
	vm.Email = u.Email
	for _, req := range list {
		vm.Requests = append(vm.Requests, RequestRow{
			ServiceName: req.ServiceName,
			Message:     req.Message,
			Status:      req.Status,
			Submitted:   req.CreatedAt.Format(dateTimeLayout),
		})
	}

	templates.Render(w, r, "dashboard/index", vm)
}

// greeting picks a salutation for the hour of now.
func greeting(name string, now time.Time) string {
	var part string
	switch h := now.Hour(); {
	case h < 12:
		part = "Good morning"
	case h < 18:
		part = "Good afternoon"
	default:
		part = "Good evening"
	}
	if name == "" {
		return part + "!"
	}
	return part + ", " + name + "!"
}
