// internal/app/features/services/services.go
package services

import (
	"errors"
	"net/http"

	"github.com/dalemusser/waffle/pantry/templates"
	"github.com/go-chi/chi/v5"
	errorsfeature "github.com/juhiii45/EcoReborn/internal/app/features/errors"
	requeststore "github.com/juhiii45/EcoReborn/internal/app/store/servicerequests"
	servicestore "github.com/juhiii45/EcoReborn/internal/app/store/services"
	"github.com/juhiii45/EcoReborn/internal/app/system/auth"
	"github.com/juhiii45/EcoReborn/internal/app/system/formutil"
	"github.com/juhiii45/EcoReborn/internal/app/system/htmlsanitize"
	"github.com/juhiii45/EcoReborn/internal/app/system/inputval"
	"github.com/juhiii45/EcoReborn/internal/app/system/mailer"
	"github.com/juhiii45/EcoReborn/internal/app/system/normalize"
	"github.com/juhiii45/EcoReborn/internal/app/system/timeouts"
	"github.com/juhiii45/EcoReborn/internal/domain/models"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

const submittedMsg = "Your service request has been submitted successfully! We will contact you soon."

// Handler provides the service catalog and request form.
type Handler struct {
	services   *servicestore.Store
	requests   *requeststore.Store
	sessionMgr *auth.SessionManager
	mail       *mailer.Dispatcher
	adminEmail string
	errLog     *errorsfeature.ErrorLogger
	logger     *zap.Logger
}

// NewHandler creates a new services Handler. A nil mail dispatcher or an
// empty adminEmail skips the corresponding notification.
func NewHandler(
	db *mongo.Database,
	sessionMgr *auth.SessionManager,
	mail *mailer.Dispatcher,
	adminEmail string,
	errLog *errorsfeature.ErrorLogger,
	logger *zap.Logger,
) *Handler {
	return &Handler{
		services:   servicestore.New(db),
		requests:   requeststore.New(db),
		sessionMgr: sessionMgr,
		mail:       mail,
		adminEmail: adminEmail,
		errLog:     errLog,
		logger:     logger,
	}
}

// ServicesVM is the view model for the services page.
type ServicesVM struct {
	formutil.Base
	Services []models.Service

	// Form values
	Service string
	Name    string
	Email   string
	Phone   string
	Company string
	Message string
}

type requestInput struct {
	Service string `json:"service" validate:"required" label:"Service"`
	Name    string `json:"name" validate:"required,min=2,max=100" label:"Name"`
	Email   string `json:"email" validate:"required,email,max=120" label:"Email"`
	Phone   string `json:"phone" validate:"max=20,phone" label:"Phone number"`
	Company string `json:"company" validate:"max=150" label:"Company"`
	Message string `json:"message" validate:"required,min=10,max=2000" label:"Details"`
}

// Routes returns a chi.Router with services routes mounted.
func Routes(h *Handler) http.Handler {
	r := chi.NewRouter()
	r.Get("/", h.showServices)
	r.Post("/", h.handleRequest)
	return r
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, vm ServicesVM) {
	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Short(), h.logger, "list services")
	defer cancel()

	list, err := h.services.List(ctx)
	if err != nil {
		h.errLog.Log(r, "failed to list services", err)
	}
	vm.Services = list
	templates.Render(w, r, "services/index", vm)
}

func (h *Handler) showServices(w http.ResponseWriter, r *http.Request) {
	vm := ServicesVM{
		Base:    formutil.NewBase(r, "Services", "/"),
		Service: normalize.Slug(r.URL.Query().Get("service")),
	}
	if u, ok := auth.CurrentUser(r); ok {
		vm.Name = u.Name
		vm.Email = u.Email
	}
	h.render(w, r, vm)
}

func (h *Handler) handleRequest(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	in := requestInput{
		Service: normalize.Slug(r.PostFormValue("service")),
		Name:    normalize.Name(htmlsanitize.PlainText(r.PostFormValue("name"))),
		Email:   normalize.Email(r.PostFormValue("email")),
		Phone:   normalize.Text(r.PostFormValue("phone")),
		Company: htmlsanitize.PlainText(r.PostFormValue("company")),
		Message: htmlsanitize.PlainText(r.PostFormValue("message")),
	}

	vm := ServicesVM{
		Base:    formutil.NewBase(r, "Services", "/"),
		Service: in.Service,
		Name:    in.Name,
		Email:   in.Email,
		Phone:   in.Phone,
		Company: in.Company,
		Message: in.Message,
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Short(), h.logger, "service request")
	defer cancel()

	res := inputval.Validate(in)
	var svc models.Service
	if !res.HasErrors() {
		var err error
		svc, err = h.services.GetBySlug(ctx, in.Service)
		switch {
		case errors.Is(err, servicestore.ErrNotFound):
			res.Add("service", "Service", "Please choose a service from the list.")
		case err != nil:
			h.errLog.Log(r, "failed to load service", err)
			vm.SetError("An error occurred. Please try again.")
			h.render(w, r, vm)
			return
		}
	}
	if res.HasErrors() {
		vm.SetResult(res)
		h.render(w, r, vm)
		return
	}

	req, err := h.requests.Create(ctx, models.ServiceRequest{
		ServiceSlug: svc.Slug,
		ServiceName: svc.Name,
		Name:        in.Name,
		Email:       in.Email,
		Phone:       in.Phone,
		Company:     in.Company,
		Message:     in.Message,
	})
	if err != nil {
		h.errLog.Log(r, "failed to save service request", err)
		vm.SetError("An error occurred. Please try again.")
		h.render(w, r, vm)
		return
	}

	h.notify(req)
	h.logger.Info("service request received",
		zap.String("request_id", req.ID.Hex()),
		zap.String("service", req.ServiceSlug))

	h.sessionMgr.AddFlash(w, r, auth.FlashSuccess, submittedMsg)
	http.Redirect(w, r, "/services", http.StatusSeeOther)
}

// notify confirms the request to the requester and tells the admin.
func (h *Handler) notify(req *models.ServiceRequest) {
	text, html := mailer.ServiceConfirmationEmail(mailer.ServiceConfirmationEmailData{
		AppName:     models.DefaultSiteName,
		UserName:    req.Name,
		ServiceName: req.ServiceName,
	})
	h.mail.Dispatch(mailer.Email{
		To:       req.Email,
		Subject:  "Service Request Received - " + req.ServiceName,
		TextBody: text,
		HTMLBody: html,
	})

	if h.adminEmail == "" {
		return
	}
	h.mail.Dispatch(mailer.Email{
		To:      h.adminEmail,
		Subject: "New Service Request: " + req.ServiceName,
		TextBody: mailer.ServiceAdminEmail(mailer.ServiceAdminEmailData{
			ServiceName: req.ServiceName,
			Name:        req.Name,
			Email:       req.Email,
			Phone:       req.Phone,
			Company:     req.Company,
			Message:     req.Message,
			RequestID:   req.ID.Hex(),
		}),
	})
}
