// internal/app/features/password/password.go
package password

import (
	"errors"
	"net/http"

	"github.com/dalemusser/waffle/pantry/templates"
	"github.com/go-chi/chi/v5"
	errorsfeature "github.com/juhiii45/EcoReborn/internal/app/features/errors"
	"github.com/juhiii45/EcoReborn/internal/app/system/auditlog"
	"github.com/juhiii45/EcoReborn/internal/app/system/auth"
	"github.com/juhiii45/EcoReborn/internal/app/system/authflow"
	"github.com/juhiii45/EcoReborn/internal/app/system/authutil"
	"github.com/juhiii45/EcoReborn/internal/app/system/formutil"
	"github.com/juhiii45/EcoReborn/internal/app/system/inputval"
	"github.com/juhiii45/EcoReborn/internal/app/system/network"
	"github.com/juhiii45/EcoReborn/internal/app/system/normalize"
	"github.com/juhiii45/EcoReborn/internal/app/system/timeouts"
	"go.uber.org/zap"
)

const (
	forgotSentMsg   = "If an account exists with that email, you will receive password reset instructions."
	invalidLinkMsg  = "Invalid or expired password reset link."
	resetSuccessMsg = "Your password has been reset successfully. Please log in."
)

// Handler provides the forgot-password and reset-password pages.
type Handler struct {
	flow       *authflow.Service
	sessionMgr *auth.SessionManager
	errLog     *errorsfeature.ErrorLogger
	clientIP   func(*http.Request) string
	logger     *zap.Logger
}

// NewHandler creates a new password Handler.
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

// ForgotVM is the view model for the forgot-password page.
type ForgotVM struct {
	formutil.Base
	Email string
}

// ResetVM is the view model for the reset-password page.
type ResetVM struct {
	formutil.Base
	Token         string
	PasswordRules string
}

type forgotInput struct {
	Email string `json:"email" validate:"required,email,max=120" label:"Email"`
}

type resetInput struct {
	Password        string `json:"password" validate:"required,password" label:"New password"`
	ConfirmPassword string `json:"confirm_password" validate:"required" label:"Confirm password"`
}

// ForgotRoutes serves /forgot-password.
func ForgotRoutes(h *Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(h.redirectSignedIn)
	r.Get("/", h.showForgot)
	r.Post("/", h.handleForgot)
	return r
}

// ResetRoutes serves /reset-password/{token}.
func ResetRoutes(h *Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(h.redirectSignedIn)
	r.Get("/{token}", h.showReset)
	r.Post("/{token}", h.handleReset)
	return r
}

func (h *Handler) redirectSignedIn(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := auth.CurrentUser(r); ok {
			http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (h *Handler) showForgot(w http.ResponseWriter, r *http.Request) {
	templates.Render(w, r, "password/forgot", ForgotVM{Base: formutil.NewBase(r, "Forgot Password", "/login")})
}

// handleForgot answers the same way whether or not the email has an account.
func (h *Handler) handleForgot(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	in := forgotInput{Email: normalize.Email(r.PostFormValue("email"))}

	if res := inputval.Validate(in); res.HasErrors() {
		vm := ForgotVM{Base: formutil.NewBase(r, "Forgot Password", "/login"), Email: in.Email}
		vm.SetResult(res)
		templates.Render(w, r, "password/forgot", vm)
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Short(), h.logger, "forgot password")
	defer cancel()
	h.flow.ForgotPassword(ctx, in.Email, auditlog.ClientFrom(r, h.clientIP))

	h.sessionMgr.AddFlash(w, r, auth.FlashInfo, forgotSentMsg)
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

func (h *Handler) newResetVM(r *http.Request, token string) ResetVM {
	return ResetVM{
		Base:          formutil.NewBase(r, "Reset Password", "/login"),
		Token:         token,
		PasswordRules: authutil.PasswordRules(),
	}
}

func (h *Handler) showReset(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Short(), h.logger, "check reset token")
	defer cancel()
	if _, err := h.flow.CheckResetToken(ctx, token); err != nil {
		h.invalidToken(w, r, err)
		return
	}

	templates.Render(w, r, "password/reset", h.newResetVM(r, token))
}

func (h *Handler) handleReset(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")
	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Short(), h.logger, "reset password")
	defer cancel()

	if _, err := h.flow.CheckResetToken(ctx, token); err != nil {
		h.invalidToken(w, r, err)
		return
	}

	in := resetInput{
		Password:        r.PostFormValue("password"),
		ConfirmPassword: r.PostFormValue("confirm_password"),
	}
	res := inputval.Validate(in)
	if !res.HasErrors() && in.Password != in.ConfirmPassword {
		res.Add("confirm_password", "Confirm password", "Passwords do not match. Please try again.")
	}
	if res.HasErrors() {
		vm := h.newResetVM(r, token)
		vm.SetResult(res)
		templates.Render(w, r, "password/reset", vm)
		return
	}

	if err := h.flow.ResetPassword(ctx, token, in.Password, auditlog.ClientFrom(r, h.clientIP)); err != nil {
		h.invalidToken(w, r, err)
		return
	}

	h.sessionMgr.AddFlash(w, r, auth.FlashSuccess, resetSuccessMsg)
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

// invalidToken sends the user back to request a new link. Unexpected errors
// are logged first; the user sees the same message either way.
func (h *Handler) invalidToken(w http.ResponseWriter, r *http.Request, err error) {
	if !errors.Is(err, authflow.ErrInvalidOrExpiredToken) && !errors.Is(err, authflow.ErrNotFound) {
		h.errLog.Log(r, "password reset", err)
	}
	h.sessionMgr.AddFlash(w, r, auth.FlashError, invalidLinkMsg)
	http.Redirect(w, r, "/forgot-password", http.StatusSeeOther)
}
