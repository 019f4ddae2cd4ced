// internal/app/features/contact/contact.go
package contact

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"mime/multipart"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/dalemusser/waffle/pantry/storage"
	"github.com/dalemusser/waffle/pantry/templates"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	errorsfeature "github.com/juhiii45/EcoReborn/internal/app/features/errors"
	contactstore "github.com/juhiii45/EcoReborn/internal/app/store/contact"
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

const (
	sentMsg = "Thank you for your message! We will get back to you soon."

	// DefaultMaxUpload is the attachment limit when none is configured.
	DefaultMaxUpload int64 = 2 << 20

	// formOverhead covers the text fields and multipart framing on top of
	// the attachment itself.
	formOverhead int64 = 64 << 10
)

// allowedExt lists the attachment types accepted, lowercase without the dot.
var allowedExt = map[string]struct{}{
	"pdf": {}, "doc": {}, "docx": {}, "txt": {},
	"jpg": {}, "jpeg": {}, "png": {}, "gif": {},
}

// Handler provides the contact form.
type Handler struct {
	messages   *contactstore.Store
	files      storage.Store
	sessionMgr *auth.SessionManager
	mail       *mailer.Dispatcher
	adminEmail string
	maxUpload  int64
	errPages   *errorsfeature.Handler
	errLog     *errorsfeature.ErrorLogger
	logger     *zap.Logger
}

// NewHandler creates a new contact Handler. maxUpload <= 0 selects
// DefaultMaxUpload.
func NewHandler(
	db *mongo.Database,
	files storage.Store,
	sessionMgr *auth.SessionManager,
	mail *mailer.Dispatcher,
	adminEmail string,
	maxUpload int64,
	errPages *errorsfeature.Handler,
	errLog *errorsfeature.ErrorLogger,
	logger *zap.Logger,
) *Handler {
	if maxUpload <= 0 {
		maxUpload = DefaultMaxUpload
	}
	return &Handler{
		messages:   contactstore.New(db),
		files:      files,
		sessionMgr: sessionMgr,
		mail:       mail,
		adminEmail: adminEmail,
		maxUpload:  maxUpload,
		errPages:   errPages,
		errLog:     errLog,
		logger:     logger,
	}
}

// ContactVM is the view model for the contact page.
type ContactVM struct {
	formutil.Base
	Name      string
	Email     string
	Subject   string
	Message   string
	MaxUpload int64
	MaxLabel  string
}

type contactInput struct {
	Name    string `json:"name" validate:"required,min=2,max=100" label:"Name"`
	Email   string `json:"email" validate:"required,email,max=120" label:"Email"`
	Subject string `json:"subject" validate:"required,min=3,max=200" label:"Subject"`
	Message string `json:"message" validate:"required,min=10,max=5000" label:"Message"`
}

// Routes returns a chi.Router with contact routes mounted.
func Routes(h *Handler) http.Handler {
	r := chi.NewRouter()
	r.Get("/", h.showContact)
	r.Post("/", h.handleContact)
	return r
}

func (h *Handler) newVM(r *http.Request) ContactVM {
	return ContactVM{
		Base:      formutil.NewBase(r, "Contact Us", "/"),
		MaxUpload: h.maxUpload,
		MaxLabel:  SizeLabel(h.maxUpload),
	}
}

func (h *Handler) showContact(w http.ResponseWriter, r *http.Request) {
	vm := h.newVM(r)
	if u, ok := auth.CurrentUser(r); ok {
		vm.Name = u.Name
		vm.Email = u.Email
	}
	templates.Render(w, r, "contact/index", vm)
}

func (h *Handler) handleContact(w http.ResponseWriter, r *http.Request) {
	limit := h.maxUpload + formOverhead
	if r.ContentLength > limit {
		h.errPages.TooLarge(w, r)
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	if err := r.ParseMultipartForm(1 << 20); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			h.errPages.TooLarge(w, r)
			return
		}
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	if r.MultipartForm != nil {
		defer r.MultipartForm.RemoveAll()
	}

	in := contactInput{
		Name:    normalize.Name(htmlsanitize.PlainText(r.PostFormValue("name"))),
		Email:   normalize.Email(r.PostFormValue("email")),
		Subject: htmlsanitize.PlainText(r.PostFormValue("subject")),
		Message: htmlsanitize.PlainText(r.PostFormValue("message")),
	}

	vm := h.newVM(r)
	vm.Name, vm.Email, vm.Subject, vm.Message = in.Name, in.Email, in.Subject, in.Message

	file, header, err := r.FormFile("attachment")
	switch {
	case errors.Is(err, http.ErrMissingFile):
		file, header = nil, nil
	case err != nil:
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	default:
		defer file.Close()
		if header.Filename == "" {
			header = nil
		}
	}
	if header != nil && header.Size > h.maxUpload {
		h.errPages.TooLarge(w, r)
		return
	}

	res := inputval.Validate(in)
	var ext string
	if header != nil {
		ext = AttachmentExt(header.Filename)
		if ext == "" {
			res.Add("attachment", "Attachment", "Only PDF, DOC, DOCX, TXT, JPG, PNG, and GIF files are allowed.")
		}
	}
	if res.HasErrors() {
		vm.SetResult(res)
		templates.Render(w, r, "contact/index", vm)
		return
	}

	timeout := timeouts.Medium()
	if header != nil {
		timeout = timeouts.Long()
	}
	ctx, cancel := timeouts.WithTimeout(r.Context(), timeout, h.logger, "contact message")
	defer cancel()

	msg := models.ContactMessage{
		Name:    in.Name,
		Email:   in.Email,
		Subject: in.Subject,
		Message: in.Message,
	}
	if header != nil {
		key, err := h.store(ctx, file, header, ext)
		if err != nil {
			h.errLog.Log(r, "failed to store attachment", err)
			vm.SetError("Your attachment could not be saved. Please try again.")
			templates.Render(w, r, "contact/index", vm)
			return
		}
		msg.Attachment = key
		msg.AttachmentName = DisplayName(header.Filename)
	}

	saved, err := h.messages.Create(ctx, msg)
	if err != nil {
		if msg.Attachment != "" {
			_ = h.files.Delete(ctx, msg.Attachment)
		}
		h.errLog.Log(r, "failed to save contact message", err)
		vm.SetError("An error occurred. Please try again.")
		templates.Render(w, r, "contact/index", vm)
		return
	}

	h.notify(saved)
	h.logger.Info("contact message received",
		zap.String("message_id", saved.ID.Hex()),
		zap.Bool("attachment", saved.Attachment != ""))

	h.sessionMgr.AddFlash(w, r, auth.FlashSuccess, sentMsg)
	http.Redirect(w, r, "/contact", http.StatusSeeOther)
}

// store writes the attachment under contact/YYYY/MM/<uuid>.<ext>.
func (h *Handler) store(ctx context.Context, file multipart.File, header *multipart.FileHeader, ext string) (string, error) {
	now := time.Now().UTC()
	key := fmt.Sprintf("contact/%04d/%02d/%s.%s", now.Year(), int(now.Month()), uuid.New().String(), ext)

	contentType := mime.TypeByExtension("." + ext)
	if contentType == "" {
		contentType = header.Header.Get("Content-Type")
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	if err := h.files.Put(ctx, key, file, &storage.PutOptions{ContentType: contentType}); err != nil {
		return "", err
	}
	return key, nil
}

// notify thanks the sender and forwards the message to the admin.
func (h *Handler) notify(msg *models.ContactMessage) {
	text, html := mailer.ContactConfirmationEmail(mailer.ContactConfirmationEmailData{
		AppName:  models.DefaultSiteName,
		UserName: msg.Name,
		Subject:  msg.Subject,
	})
	h.mail.Dispatch(mailer.Email{
		To:       msg.Email,
		Subject:  "Thank you for contacting " + models.DefaultSiteName,
		TextBody: text,
		HTMLBody: html,
	})

	if h.adminEmail == "" {
		return
	}
	h.mail.Dispatch(mailer.Email{
		To:      h.adminEmail,
		Subject: "New Contact Message: " + msg.Subject,
		TextBody: mailer.ContactAdminEmail(mailer.ContactAdminEmailData{
			Name:           msg.Name,
			Email:          msg.Email,
			Subject:        msg.Subject,
			Message:        msg.Message,
			AttachmentName: msg.AttachmentName,
			MessageID:      msg.ID.Hex(),
		}),
	})
}

// AttachmentExt returns the lowercase extension of name when it is an
// accepted attachment type, or "".
func AttachmentExt(name string) string {
	ext := strings.ToLower(strings.TrimPrefix(path.Ext(DisplayName(name)), "."))
	if _, ok := allowedExt[ext]; !ok {
		return ""
	}
	return ext
}

// DisplayName reduces a client-supplied filename to its last path element
// with markup removed.
func DisplayName(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	name = path.Base(name)
	name = htmlsanitize.PlainText(name)
	if name == "." || name == "/" {
		return ""
	}
	return name
}

// SizeLabel formats a byte count for people, e.g. "2 MB" or "512 KB".
func SizeLabel(n int64) string {
	switch {
	case n >= 1<<20 && n%(1<<20) == 0:
		return fmt.Sprintf("%d MB", n>>20)
	case n >= 1<<20:
		return fmt.Sprintf("%.1f MB", float64(n)/float64(1<<20))
	case n >= 1<<10:
		return fmt.Sprintf("%d KB", n>>10)
	default:
		return fmt.Sprintf("%d bytes", n)
	}
}
