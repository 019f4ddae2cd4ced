// internal/app/features/signup/signup.go
package signup

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
	"github.com/juhiii45/EcoReborn/internal/app/system/emailcheck"
	"github.com/juhiii45/EcoReborn/internal/app/system/formutil"
	"github.com/juhiii45/EcoReborn/internal/app/system/inputval"
	"github.com/juhiii45/EcoReborn/internal/app/system/network"
	"github.com/juhiii45/EcoReborn/internal/app/system/normalize"
	"github.com/juhiii45/EcoReborn/internal/app/system/timeouts"
	"go.uber.org/zap"
)

// Handler provides account registration.
type Handler struct {
	flow       *authflow.Service
	sessionMgr *auth.SessionManager
	emails     emailcheck.Checker
	errLog     *errorsfeature.ErrorLogger
	clientIP   func(*http.Request) string
	logger     *zap.Logger
}

// NewHandler creates a new signup Handler. emails decides whether the
// address domain must accept mail; its zero value skips the DNS lookup.
func NewHandler(
	flow *authflow.Service,
	sessionMgr *auth.SessionManager,
	emails emailcheck.Checker,
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
		emails:     emails,
		errLog:     errLog,
		clientIP:   clientIP,
		logger:     logger,
	}
}

// SignupVM is the view model for the signup page. Passwords are never echoed.
type SignupVM struct {
	formutil.Base
	Name          string
	Email         string
	PasswordRules string
}

type signupInput struct {
	Name            string `json:"name" validate:"required,min=2,max=100" label:"Full name"`
	Email           string `json:"email" validate:"required,email,max=120,nodisposable" label:"Email"`
	Password        string `json:"password" validate:"required,password" label:"Password"`
	ConfirmPassword string `json:"confirm_password" validate:"required" label:"Confirm password"`
}

// Routes returns a chi.Router with signup routes mounted.
func Routes(h *Handler) http.Handler {
	r := chi.NewRouter()
	r.Get("/", h.showSignup)
	r.Post("/", h.handleSignup)
	return r
}

func (h *Handler) newVM(r *http.Request) SignupVM {
	return SignupVM{
		Base:          formutil.NewBase(r, "Sign Up", "/"),
		PasswordRules: authutil.PasswordRules(),
	}
}

func (h *Handler) showSignup(w http.ResponseWriter, r *http.Request) {
	if _, ok := auth.CurrentUser(r); ok {
		http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
		return
	}
	templates.Render(w, r, "signup/index", h.newVM(r))
}

func (h *Handler) handleSignup(w http.ResponseWriter, r *http.Request) {
	if _, ok := auth.CurrentUser(r); ok {
		http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	in := signupInput{
		Name:            normalize.Name(r.PostFormValue("name")),
		Email:           normalize.Email(r.PostFormValue("email")),
		Password:        r.PostFormValue("password"),
		ConfirmPassword: r.PostFormValue("confirm_password"),
	}

	vm := h.newVM(r)
	vm.Name = in.Name
	vm.Email = in.Email

	res := inputval.Validate(in)
	if !res.HasErrors() && in.Password != in.ConfirmPassword {
		res.Add("confirm_password", "Confirm password", "Passwords do not match. Please try again.")
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Short(), h.logger, "signup")
	defer cancel()

	if !res.HasErrors() {
		if err := h.emails.Check(ctx, in.Email); err != nil {
			res.Add("email", "Email", err.Error())
		}
	}
	if res.HasErrors() {
		vm.SetResult(res)
		templates.Render(w, r, "signup/index", vm)
		return
	}

	_, err := h.flow.Signup(ctx, authflow.SignupInput{
		Name:     in.Name,
		Email:    in.Email,
		Password: in.Password,
		Client:   auditlog.ClientFrom(r, h.clientIP),
	})
	if err != nil {
		if errors.Is(err, authflow.ErrConflict) {
			vm.SetError("An account with this email already exists. Please log in or use a different email.")
			vm.FieldErrors = map[string]string{"email": "An account with this email already exists"}
		} else {
			h.errLog.Log(r, "signup failed", err)
			vm.SetError("An error occurred while creating your account. Please try again.")
		}
		templates.Render(w, r, "signup/index", vm)
		return
	}

	h.sessionMgr.AddFlash(w, r, auth.FlashSuccess, "Account created successfully! You can now log in with your credentials.")
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}
