// internal/app/features/newsletter/newsletter.go
package newsletter

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/dalemusser/waffle/pantry/templates"
	"github.com/go-chi/chi/v5"
	errorsfeature "github.com/juhiii45/EcoReborn/internal/app/features/errors"
	newsletterstore "github.com/juhiii45/EcoReborn/internal/app/store/newsletter"
	"github.com/juhiii45/EcoReborn/internal/app/system/auth"
	"github.com/juhiii45/EcoReborn/internal/app/system/formutil"
	"github.com/juhiii45/EcoReborn/internal/app/system/inputval"
	"github.com/juhiii45/EcoReborn/internal/app/system/normalize"
	"github.com/juhiii45/EcoReborn/internal/app/system/timeouts"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

const (
	subscribedMsg   = "Thank you for subscribing to our newsletter!"
	resubscribedMsg = "Welcome back! You are subscribed to our newsletter again."
	alreadyMsg      = "You are already subscribed to our newsletter."
	invalidMsg      = "Please enter a valid email address."
	unsubscribedMsg = "If that address was on our list, it has been unsubscribed."
	failedMsg       = "We could not process your request. Please try again."
)

// Handler provides the newsletter endpoints.
type Handler struct {
	subscribers *newsletterstore.Store
	sessionMgr  *auth.SessionManager
	errLog      *errorsfeature.ErrorLogger
	logger      *zap.Logger
}

func NewHandler(db *mongo.Database, sessionMgr *auth.SessionManager, errLog *errorsfeature.ErrorLogger, logger *zap.Logger) *Handler {
	return &Handler{
		subscribers: newsletterstore.New(db),
		sessionMgr:  sessionMgr,
		errLog:      errLog,
		logger:      logger,
	}
}

// UnsubscribeVM is the view model for the unsubscribe page.
type UnsubscribeVM struct {
	formutil.Base
	Email string
}

type emailInput struct {
	Email string `json:"email" validate:"required,email,max=120" label:"Email"`
}

// Routes returns a chi.Router with newsletter routes mounted.
func Routes(h *Handler) http.Handler {
	r := chi.NewRouter()
	r.Post("/subscribe", h.handleSubscribe)
	r.Get("/unsubscribe", h.showUnsubscribe)
	r.Post("/unsubscribe", h.handleUnsubscribe)
	return r
}

// handleSubscribe adds the address and sends the visitor back where the
// form was shown.
func (h *Handler) handleSubscribe(w http.ResponseWriter, r *http.Request) {
	back := backTo(r)

	in := emailInput{Email: normalize.Email(r.PostFormValue("email"))}
	if res := inputval.Validate(in); res.HasErrors() {
		h.sessionMgr.AddFlash(w, r, auth.FlashError, invalidMsg)
		http.Redirect(w, r, back, http.StatusSeeOther)
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Short(), h.logger, "newsletter subscribe")
	defer cancel()

	outcome, err := h.subscribers.Subscribe(ctx, in.Email)
	if err != nil {
		h.errLog.Log(r, "newsletter subscribe failed", err)
		h.sessionMgr.AddFlash(w, r, auth.FlashError, failedMsg)
		http.Redirect(w, r, back, http.StatusSeeOther)
		return
	}

	switch outcome {
	case newsletterstore.Subscribed:
		h.sessionMgr.AddFlash(w, r, auth.FlashSuccess, subscribedMsg)
	case newsletterstore.Resubscribed:
		h.sessionMgr.AddFlash(w, r, auth.FlashSuccess, resubscribedMsg)
	default:
		h.sessionMgr.AddFlash(w, r, auth.FlashInfo, alreadyMsg)
	}
	http.Redirect(w, r, back, http.StatusSeeOther)
}

func (h *Handler) showUnsubscribe(w http.ResponseWriter, r *http.Request) {
	vm := UnsubscribeVM{
		Base:  formutil.NewBase(r, "Unsubscribe", "/"),
		Email: normalize.Email(r.URL.Query().Get("email")),
	}
	templates.Render(w, r, "newsletter/unsubscribe", vm)
}

// handleUnsubscribe answers the same way whether or not the address was
// subscribed.
func (h *Handler) handleUnsubscribe(w http.ResponseWriter, r *http.Request) {
	in := emailInput{Email: normalize.Email(r.PostFormValue("email"))}
	if res := inputval.Validate(in); res.HasErrors() {
		vm := UnsubscribeVM{Base: formutil.NewBase(r, "Unsubscribe", "/"), Email: in.Email}
		vm.SetResult(res)
		templates.Render(w, r, "newsletter/unsubscribe", vm)
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Short(), h.logger, "newsletter unsubscribe")
	defer cancel()

	if err := h.subscribers.Unsubscribe(ctx, in.Email); err != nil {
		h.errLog.Log(r, "newsletter unsubscribe failed", err)
	}
	h.sessionMgr.AddFlash(w, r, auth.FlashInfo, unsubscribedMsg)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// backTo returns the path of a same-origin Referer, or "/".
func backTo(r *http.Request) string {
	ref := r.Header.Get("Referer")
	if ref == "" {
		return "/"
	}
	u, err := url.Parse(ref)
	if err != nil {
		return "/"
	}
	if u.Host != "" && !strings.EqualFold(u.Host, r.Host) {
		return "/"
	}
	p := u.EscapedPath()
	if !strings.HasPrefix(p, "/") || strings.HasPrefix(p, "//") || strings.HasPrefix(p, "/\\") {
		return "/"
	}
	if u.RawQuery != "" {
		p += "?" + u.RawQuery
	}
	return p
}
