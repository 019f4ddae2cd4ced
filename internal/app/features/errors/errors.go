// internal/app/features/errors/errors.go
package errors

import (
	"net/http"

	"github.com/dalemusser/waffle/pantry/templates"
	"github.com/juhiii45/EcoReborn/internal/app/system/viewdata"
	"go.uber.org/zap"
)

// ErrorLogger logs handler failures with the request path and method.
type ErrorLogger struct {
	logger *zap.Logger
}

func NewErrorLogger(logger *zap.Logger) *ErrorLogger {
	return &ErrorLogger{logger: logger}
}

func (e *ErrorLogger) Log(r *http.Request, msg string, err error, extra ...zap.Field) {
	fields := make([]zap.Field, 0, 3+len(extra))
	fields = append(fields, zap.Error(err), zap.String("path", r.URL.Path), zap.String("method", r.Method))
	e.logger.Error(msg, append(fields, extra...)...)
}

type ErrorVM struct {
	viewdata.BaseVM
	Code    int
	Message string
}

type page struct {
	code    int
	title   string
	message string
}

var (
	unauthorized = page{http.StatusUnauthorized, "Unauthorized", "Please log in to access this page."}
	forbidden    = page{http.StatusForbidden, "Access Denied", "You do not have permission to view this page."}
	csrfFailure  = page{http.StatusForbidden, "Form Expired", "Your form session has expired. Please go back, reload the page and try again."}
	notFound     = page{http.StatusNotFound, "Page Not Found", "The page you are looking for does not exist or has been moved."}
	tooMany      = page{http.StatusTooManyRequests, "Too Many Requests", "You have made too many attempts. Please wait a while and try again."}
	internal     = page{http.StatusInternalServerError, "Server Error", "Something went wrong on our side. Please try again later."}
)

// Handler renders the error pages.
type Handler struct {
	maxUpload string
}

// NewHandler takes the upload limit quoted on the 413 page, e.g. "2 MB".
func NewHandler(maxUpload string) *Handler {
	if maxUpload == "" {
		maxUpload = "2 MB"
	}
	return &Handler{maxUpload: maxUpload}
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, p page) {
	vm := ErrorVM{BaseVM: viewdata.New(r), Code: p.code, Message: p.message}
	vm.Title = p.title
	w.WriteHeader(p.code)
	templates.Render(w, r, "errors/page", vm)
}

func (h *Handler) Unauthorized(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, unauthorized)
}

func (h *Handler) Forbidden(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, forbidden)
}

// CSRFFailure is the 403 for a rejected form token.
func (h *Handler) CSRFFailure(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, csrfFailure)
}

func (h *Handler) NotFound(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, notFound)
}

func (h *Handler) InternalError(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, internal)
}

// TooManyRequests renders 429. The caller sets Retry-After.
func (h *Handler) TooManyRequests(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, tooMany)
}

// TooLarge renders 413 for an oversized upload.
func (h *Handler) TooLarge(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, page{http.StatusRequestEntityTooLarge, "File Too Large",
		"The uploaded file is too large. Maximum size is " + h.maxUpload + "."})
}
