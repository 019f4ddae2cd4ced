// internal/app/features/auditlog/auditlog.go
package auditlog

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/dalemusser/waffle/pantry/templates"
	"github.com/go-chi/chi/v5"
	errorsfeature "github.com/juhiii45/EcoReborn/internal/app/features/errors"
	"github.com/juhiii45/EcoReborn/internal/app/store/audit"
	userstore "github.com/juhiii45/EcoReborn/internal/app/store/users"
	"github.com/juhiii45/EcoReborn/internal/app/system/auth"
	"github.com/juhiii45/EcoReborn/internal/app/system/timeouts"
	"github.com/juhiii45/EcoReborn/internal/app/system/viewdata"
	"github.com/juhiii45/EcoReborn/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

const (
	pageSize   = 50
	dateLayout = "2006-01-02"
	timeLayout = "Jan 02, 2006 15:04:05 UTC"
)

// Handler serves the admin audit log viewer.
type Handler struct {
	auditStore *audit.Store
	userStore  *userstore.Store
	errLog     *errorsfeature.ErrorLogger
	logger     *zap.Logger
}

func NewHandler(db *mongo.Database, errLog *errorsfeature.ErrorLogger, logger *zap.Logger) *Handler {
	return &Handler{
		auditStore: audit.New(db),
		userStore:  userstore.New(db),
		errLog:     errLog,
		logger:     logger,
	}
}

type listItem struct {
	When      string
	Category  string
	EventType string
	Email     string
	ActorName string
	IP        string
	Success   bool
	Reason    string
	Details   map[string]string
}

type categoryOption struct {
	Value string
	Label string
}

// pager is the pagination block of the list page.
type pager struct {
	Page       int
	TotalPages int
	Total      int64
	RangeStart int
	RangeEnd   int
	HasPrev    bool
	HasNext    bool
	PrevPage   int
	NextPage   int
}

func newPager(page, shown int, total int64) pager {
	p := pager{Page: page, Total: total, TotalPages: max(int((total+pageSize-1)/pageSize), 1)}
	if shown > 0 {
		p.RangeStart = (page-1)*pageSize + 1
		p.RangeEnd = p.RangeStart + shown - 1
	}
	p.HasPrev = page > 1
	p.HasNext = page < p.TotalPages
	p.PrevPage = max(page-1, 1)
	p.NextPage = min(page+1, p.TotalPages)
	return p
}

type listData struct {
	viewdata.BaseVM
	pager

	Items      []listItem
	Categories []categoryOption
	EventTypes []string

	Category  string
	EventType string
	Email     string
	StartDate string
	EndDate   string
}

// catalog lists the filterable event types of each category in display
// order.
var catalog = []struct {
	category categoryOption
	events   []string
}{
	{categoryOption{audit.CategoryAuth, "Authentication"}, []string{
		audit.EventSignup,
		audit.EventLoginSuccess,
		audit.EventLoginFailedUserNotFound,
		audit.EventLoginFailedWrongPassword,
		audit.EventLoginFailedUserDisabled,
		audit.EventLoginLockedOut,
		audit.EventLogout,
		audit.EventPasswordResetRequested,
		audit.EventPasswordResetCompleted,
	}},
	{categoryOption{audit.CategoryAdmin, "Administration"}, []string{
		audit.EventAdminSeeded,
		audit.EventMessageMarkedRead,
	}},
}

func allCategories() []categoryOption {
	out := make([]categoryOption, len(catalog))
	for i, c := range catalog {
		out[i] = c.category
	}
	return out
}

// eventTypesForCategory returns every type for "" and nil for an unknown
// category.
func eventTypesForCategory(category string) []string {
	var out []string
	for _, c := range catalog {
		if category == "" || category == c.category.Value {
			out = append(out, c.events...)
		}
	}
	return out
}

// Routes mounts the viewer behind the admin role.
func Routes(h *Handler, sessionMgr *auth.SessionManager) http.Handler {
	r := chi.NewRouter()
	r.Use(sessionMgr.RequireRole(models.RoleAdmin))
	r.Get("/", h.list)
	return r
}

func utcDay(s string) (time.Time, bool) {
	t, err := time.ParseInLocation(dateLayout, strings.TrimSpace(s), time.UTC)
	return t, err == nil
}

// parseFilter reads the query string. Dates are whole UTC days and the end
// date is inclusive.
func parseFilter(r *http.Request) (audit.Filter, int) {
	q := r.URL.Query()

	page, err := strconv.Atoi(q.Get("page"))
	if err != nil || page < 1 {
		page = 1
	}

	f := audit.Filter{
		Category:  strings.TrimSpace(q.Get("category")),
		EventType: strings.TrimSpace(q.Get("event_type")),
		Email:     strings.ToLower(strings.TrimSpace(q.Get("email"))),
		Limit:     pageSize,
		Offset:    int64((page - 1) * pageSize),
	}
	if t, ok := utcDay(q.Get("start_date")); ok {
		f.Since = &t
	}
	if t, ok := utcDay(q.Get("end_date")); ok {
		end := t.AddDate(0, 0, 1).Add(-time.Nanosecond)
		f.Until = &end
	}
	return f, page
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	filter, page := parseFilter(r)

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Medium(), h.logger, "audit log list")
	defer cancel()

	events, err := h.auditStore.List(ctx, filter)
	if err != nil {
		h.errLog.Log(r, "failed to query audit events", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	total, err := h.auditStore.Count(ctx, filter)
	if err != nil {
		h.logger.Warn("audit event count failed", zap.Error(err))
		total = int64(len(events))
	}

	names := h.actorNames(ctx, events)
	items := make([]listItem, len(events))
	for i, e := range events {
		items[i] = listItem{
			When:      e.CreatedAt.UTC().Format(timeLayout),
			Category:  e.Category,
			EventType: e.EventType,
			Email:     e.Email,
			ActorName: names[actorOf(e)],
			IP:        e.IP,
			Success:   e.Success,
			Reason:    e.FailureReason,
			Details:   e.Details,
		}
	}

	q := r.URL.Query()
	templates.Render(w, r, "auditlog/list", listData{
		BaseVM:     viewdata.NewBaseVM(r, "Audit Log", "/admin/inbox"),
		pager:      newPager(page, len(items), total),
		Items:      items,
		Categories: allCategories(),
		EventTypes: eventTypesForCategory(filter.Category),
		Category:   filter.Category,
		EventType:  filter.EventType,
		Email:      filter.Email,
		StartDate:  q.Get("start_date"),
		EndDate:    q.Get("end_date"),
	})
}

// actorOf is whoever performed e. Auth events are performed by the user
// they are about; an unknown actor is the zero id.
func actorOf(e audit.Event) primitive.ObjectID {
	switch {
	case e.ActorID != nil:
		return *e.ActorID
	case e.UserID != nil && e.Category == audit.CategoryAuth:
		return *e.UserID
	}
	return primitive.NilObjectID
}

// actorNames resolves the actors on the page with one query. Deleted users
// resolve to "".
func (h *Handler) actorNames(ctx context.Context, events []audit.Event) map[primitive.ObjectID]string {
	var ids []primitive.ObjectID
	seen := make(map[primitive.ObjectID]bool)
	for _, e := range events {
		if id := actorOf(e); !id.IsZero() && !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}

	names := make(map[primitive.ObjectID]string, len(ids))
	if len(ids) == 0 {
		return names
	}
	users, err := h.userStore.GetByIDs(ctx, ids)
	if err != nil {
		h.logger.Warn("audit log actor lookup failed", zap.Error(err))
		return names
	}
	for _, u := range users {
		names[u.ID] = u.Name
	}
	return names
}
