// internal/app/features/inbox/inbox.go
package inbox

import (
	"errors"
	"io"
	"mime"
	"net/http"
	"path"

	"github.com/dalemusser/waffle/pantry/storage"
	"github.com/dalemusser/waffle/pantry/templates"
	"github.com/go-chi/chi/v5"
	errorsfeature "github.com/juhiii45/EcoReborn/internal/app/features/errors"
	contactstore "github.com/juhiii45/EcoReborn/internal/app/store/contact"
	requeststore "github.com/juhiii45/EcoReborn/internal/app/store/servicerequests"
	"github.com/juhiii45/EcoReborn/internal/app/system/auditlog"
	"github.com/juhiii45/EcoReborn/internal/app/system/auth"
	"github.com/juhiii45/EcoReborn/internal/app/system/network"
	"github.com/juhiii45/EcoReborn/internal/app/system/timeouts"
	"github.com/juhiii45/EcoReborn/internal/app/system/viewdata"
	"github.com/juhiii45/EcoReborn/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

const (
	listLimit      = 100
	dateTimeLayout = "January 02, 2006 at 03:04 PM"
)

// Handler serves the admin inbox of contact messages and service requests.
type Handler struct {
	messages *contactstore.Store
	requests *requeststore.Store
	files    storage.Store
	audit    *auditlog.Logger
	errLog   *errorsfeature.ErrorLogger
	clientIP func(*http.Request) string
	logger   *zap.Logger
}

// NewHandler creates a new inbox Handler. audit may be nil.
func NewHandler(
	db *mongo.Database,
	files storage.Store,
	audit *auditlog.Logger,
	errLog *errorsfeature.ErrorLogger,
	clientIP func(*http.Request) string,
	logger *zap.Logger,
) *Handler {
	if clientIP == nil {
		clientIP = network.RemoteIP
	}
	return &Handler{
		messages: contactstore.New(db),
		requests: requeststore.New(db),
		files:    files,
		audit:    audit,
		errLog:   errLog,
		clientIP: clientIP,
		logger:   logger,
	}
}

type messageRow struct {
	ID             string
	Name           string
	Email          string
	Subject        string
	Message        string
	Received       string
	Unread         bool
	AttachmentName string
}

type requestRow struct {
	ServiceName string
	Name        string
	Email       string
	Phone       string
	Company     string
	Message     string
	Status      string
	Submitted   string
}

// InboxVM is the view model for the inbox page.
type InboxVM struct {
	viewdata.BaseVM
	Messages []messageRow
	Requests []requestRow
	Unread   int
}

// Routes returns a chi.Router with inbox routes mounted. Every route
// requires the admin role.
func Routes(h *Handler, sessionMgr *auth.SessionManager) http.Handler {
	r := chi.NewRouter()
	r.Use(sessionMgr.RequireRole(models.RoleAdmin))
	r.Get("/", h.showInbox)
	r.Post("/messages/{id}/read", h.markRead)
	r.Get("/messages/{id}/attachment", h.serveAttachment)
	return r
}

func (h *Handler) showInbox(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Medium(), h.logger, "admin inbox")
	defer cancel()

	msgs, err := h.messages.List(ctx, listLimit)
	if err != nil {
		h.errLog.Log(r, "inbox: list messages", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	reqs, err := h.requests.List(ctx, listLimit)
	if err != nil {
		h.errLog.Log(r, "inbox: list service requests", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	vm := InboxVM{BaseVM: viewdata.NewBaseVM(r, "Inbox", "/dashboard")}
	for _, m := range msgs {
		unread := m.Status == models.MessageUnread
		if unread {
			vm.Unread++
		}
		name := m.AttachmentName
		if name == "" && m.Attachment != "" {
			name = path.Base(m.Attachment)
		}
		vm.Messages = append(vm.Messages, messageRow{
			ID:             m.ID.Hex(),
			Name:           m.Name,
			Email:          m.Email,
			Subject:        m.Subject,
			Message:        m.Message,
			Received:       m.CreatedAt.Format(dateTimeLayout),
			Unread:         unread,
			AttachmentName: name,
		})
	}
	for _, q := range reqs {
		vm.Requests = append(vm.Requests, requestRow{
			ServiceName: q.ServiceName,
			Name:        q.Name,
			Email:       q.Email,
			Phone:       q.Phone,
			Company:     q.Company,
			Message:     q.Message,
			Status:      q.Status,
			Submitted:   q.CreatedAt.Format(dateTimeLayout),
		})
	}

	templates.Render(w, r, "inbox/index", vm)
}

func (h *Handler) markRead(w http.ResponseWriter, r *http.Request) {
	id, err := primitive.ObjectIDFromHex(chi.URLParam(r, "id"))
	if err != nil {
		http.NotFound(w, r)
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Short(), h.logger, "mark message read")
	defer cancel()

	if err := h.messages.MarkRead(ctx, id); err != nil {
		if errors.Is(err, contactstore.ErrNotFound) {
			http.NotFound(w, r)
			return
		}
		h.errLog.Log(r, "inbox: mark read", err, zap.String("message_id", id.Hex()))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	actor := ""
	if u, ok := auth.CurrentUser(r); ok {
		actor = u.ID
	}
	h.audit.MessageMarkedRead(ctx, auditlog.ClientFrom(r, h.clientIP), actor, id)

	http.Redirect(w, r, "/admin/inbox", http.StatusSeeOther)
}

// serveAttachment streams a message's stored file as a download.
func (h *Handler) serveAttachment(w http.ResponseWriter, r *http.Request) {
	id, err := primitive.ObjectIDFromHex(chi.URLParam(r, "id"))
	if err != nil {
		http.NotFound(w, r)
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Long(), h.logger, "serve attachment")
	defer cancel()

	msg, err := h.messages.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, contactstore.ErrNotFound) {
			http.NotFound(w, r)
			return
		}
		h.errLog.Log(r, "inbox: load message", err, zap.String("message_id", id.Hex()))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if msg.Attachment == "" || h.files == nil {
		http.NotFound(w, r)
		return
	}

	rc, err := h.files.Get(ctx, msg.Attachment)
	if err != nil {
		h.logger.Warn("attachment unavailable",
			zap.String("message_id", id.Hex()),
			zap.String("key", msg.Attachment),
			zap.Error(err))
		http.NotFound(w, r)
		return
	}
	defer rc.Close()

	name := msg.AttachmentName
	if name == "" {
		name = path.Base(msg.Attachment)
	}
	contentType := mime.TypeByExtension(path.Ext(msg.Attachment))
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": name}))
	w.Header().Set("X-Content-Type-Options", "nosniff")
	if n, err := io.Copy(w, rc); err != nil {
		h.logger.Warn("attachment stream interrupted",
			zap.String("message_id", id.Hex()),
			zap.Int64("written", n),
			zap.Error(err))
	}
}
