// internal/app/features/login/login.go
package login

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/dalemusser/waffle/pantry/templates"
	"github.com/dalemusser/waffle/pantry/urlutil"
	"github.com/go-chi/chi/v5"
	errorsfeature "github.com/juhiii45/EcoReborn/internal/app/features/errors"
	"github.com/juhiii45/EcoReborn/internal/app/system/auditlog"
	"github.com/juhiii45/EcoReborn/internal/app/system/auth"
	"github.com/juhiii45/EcoReborn/internal/app/system/authflow"
	"github.com/juhiii45/EcoReborn/internal/app/system/formutil"
	"github.com/juhiii45/EcoReborn/internal/app/system/inputval"
	"github.com/juhiii45/EcoReborn/internal/app/system/network"
	"github.com/juhiii45/EcoReborn/internal/app/system/normalize"
	"github.com/juhiii45/EcoReborn/internal/app/system/timeouts"
	"go.uber.org/zap"
)

// Handler provides the login page.
type Handler struct {
	flow       *authflow.Service
	sessionMgr *auth.SessionManager
	errLog     *errorsfeature.ErrorLogger
	clientIP   func(*http.Request) string
	logger     *zap.Logger
}

// NewHandler creates a new login Handler. clientIP may be nil, in which case
// the connection's remote address is recorded with each attempt.
func NewHandler(
	flow *authflow.Service,
	sessionMgr *auth.SessionManager,
	errLog *errorsfeature.ErrorLogger,
	clientIP func(*http.Request) string,
	logger *zap.Logger,
) *Handler {
	if clientIP == nil {
		clientIP = network.RemoteIP
	}
	return &Handler{
		flow:       flow,
		sessionMgr: sessionMgr,
		errLog:     errLog,
		clientIP:   clientIP,
		logger:     logger,
	}
}

// LoginVM is the view model for the login page.
type LoginVM struct {
	formutil.Base
	Email      string
	RememberMe bool
	Next       string
	Locked     bool // show the reset-password link with the error
}

type loginInput struct {
	Email    string `json:"email" validate:"required,email,max=120" label:"Email"`
	Password string `json:"password" validate:"required,max=128" label:"Password"`
}

// Routes returns a chi.Router with login routes mounted.
func Routes(h *Handler) http.Handler {
	r := chi.NewRouter()
	r.Get("/", h.showLogin)
	r.Post("/", h.handleLogin)
	return r
}

func (h *Handler) showLogin(w http.ResponseWriter, r *http.Request) {
	if _, ok := auth.CurrentUser(r); ok {
		http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
		return
	}

	vm := LoginVM{
		Base: formutil.NewBase(r, "Login", "/"),
		Next: localPath(r.URL.Query().Get("next")),
	}
	templates.Render(w, r, "login/index", vm)
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	if _, ok := auth.CurrentUser(r); ok {
		http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	next := r.PostFormValue("next")
	if next == "" {
		next = r.URL.Query().Get("next")
	}
	in := loginInput{
		Email:    normalize.Email(r.PostFormValue("email")),
		Password: r.PostFormValue("password"),
	}
	remember := r.PostFormValue("remember_me") != ""

	vm := LoginVM{
		Base:       formutil.NewBase(r, "Login", "/"),
		Email:      in.Email,
		RememberMe: remember,
		Next:       localPath(next),
	}

	if res := inputval.Validate(in); res.HasErrors() {
		vm.SetResult(res)
		templates.Render(w, r, "login/index", vm)
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Short(), h.logger, "login")
	defer cancel()

	user, err := h.flow.Login(ctx, authflow.LoginInput{
		Email:    in.Email,
		Password: in.Password,
		Client:   auditlog.ClientFrom(r, h.clientIP),
	})
	if err != nil {
		var ce *authflow.CredentialsError
		switch {
		case errors.Is(err, authflow.ErrLocked):
			_, window := h.flow.Policy()
			vm.Locked = true
			vm.SetError(fmt.Sprintf("Account temporarily locked due to too many failed login attempts. Please wait %d minutes or reset your password.", int(window.Minutes())))
		case errors.As(err, &ce):
			vm.SetError(credentialsMessage(ce.Remaining, h.flow))
			vm.Locked = ce.Remaining == 0
		default:
			h.errLog.Log(r, "login failed", err)
			vm.SetError("Something went wrong. Please try again.")
		}
		templates.Render(w, r, "login/index", vm)
		return
	}

	if err := h.sessionMgr.CreateSession(w, r, auth.SessionUser{
		ID:    user.ID.Hex(),
		Name:  user.Name,
		Email: user.Email,
		Role:  user.Role,
	}, remember); err != nil {
		h.errLog.Log(r, "create session", err)
		vm.SetError("Something went wrong. Please try again.")
		templates.Render(w, r, "login/index", vm)
		return
	}

	h.sessionMgr.AddFlash(w, r, auth.FlashSuccess, "Welcome back, "+user.Name+"!")
	http.Redirect(w, r, urlutil.SafeReturn(localPath(next), "", "/dashboard"), http.StatusSeeOther)
}

func credentialsMessage(remaining int, flow *authflow.Service) string {
	if remaining > 0 {
		return fmt.Sprintf("Invalid email or password. You have %d attempt(s) remaining.", remaining)
	}
	_, window := flow.Policy()
	return fmt.Sprintf("Too many failed attempts. Account locked for %d minutes.", int(window.Minutes()))
}

// localPath returns p when it is a path on this site and "" otherwise.
func localPath(p string) string {
	p = strings.TrimSpace(p)
	if !strings.HasPrefix(p, "/") || strings.HasPrefix(p, "//") || strings.HasPrefix(p, "/\\") {
		return ""
	}
	return p
}
