// internal/app/features/status/handler.go
package status

import (
	"context"
	"fmt"
	"net/http"
	"runtime"
	"strings"
	"time"

	"github.com/dalemusser/waffle/pantry/templates"
	"github.com/dalemusser/waffle/server"
	contactstore "github.com/juhiii45/EcoReborn/internal/app/store/contact"
	ledgerstore "github.com/juhiii45/EcoReborn/internal/app/store/ledger"
	newsletterstore "github.com/juhiii45/EcoReborn/internal/app/store/newsletter"
	requeststore "github.com/juhiii45/EcoReborn/internal/app/store/servicerequests"
	userstore "github.com/juhiii45/EcoReborn/internal/app/store/users"
	"github.com/juhiii45/EcoReborn/internal/app/system/certcheck"
	"github.com/juhiii45/EcoReborn/internal/app/system/tasks"
	"github.com/juhiii45/EcoReborn/internal/app/system/timeouts"
	"github.com/juhiii45/EcoReborn/internal/app/system/viewdata"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.uber.org/zap"
)

var startTime = time.Now()

// ConfigItem is one configuration value as shown to admins. Secrets arrive
// already masked.
type ConfigItem struct {
	Name  string
	Value string
}

// ConfigGroup is a titled set of ConfigItems.
type ConfigGroup struct {
	Name  string
	Items []ConfigItem
}

// Options carries what the page reports besides live checks.
type Options struct {
	BaseURL string
	Mail    string // delivery backend, e.g. "smtp localhost:1025"
	Storage string // attachment backend, e.g. "local ./uploads"
	Jobs    func() []tasks.JobStatus
	Config  []ConfigGroup
}

// Handler serves the admin status page.
type Handler struct {
	client   *mongo.Client
	users    *userstore.Store
	messages *contactstore.Store
	requests *requeststore.Store
	subs     *newsletterstore.Store
	ledger   *ledgerstore.Store
	opts     Options
	log      *zap.Logger

	// checkCert is swapped in tests to avoid dialing.
	checkCert func(ctx context.Context, baseURL string) certcheck.CertInfo
}

func NewHandler(client *mongo.Client, db *mongo.Database, opts Options, logger *zap.Logger) *Handler {
	return &Handler{
		client:    client,
		users:     userstore.New(db),
		messages:  contactstore.New(db),
		requests:  requeststore.New(db),
		subs:      newsletterstore.New(db),
		ledger:    ledgerstore.New(db),
		opts:      opts,
		log:       logger,
		checkCert: certcheck.Check,
	}
}

type countsVM struct {
	Users       int64
	Unread      int64
	Pending     int64
	Subscribers int64
}

type failureRow struct {
	When       string
	Method     string
	Path       string
	StatusCode int
	ErrorClass string
	RequestID  string
}

type jobRow struct {
	Name    string
	Every   string
	Runs    int
	Running bool
	LastRun string
	Took    string
	LastErr string
}

func jobRows(jobs []tasks.JobStatus) []jobRow {
	rows := make([]jobRow, 0, len(jobs))
	for _, j := range jobs {
		row := jobRow{
			Name:    j.Name,
			Every:   j.Interval.String(),
			Runs:    j.Runs,
			Running: j.Running,
			LastRun: "never",
			LastErr: j.LastError,
		}
		if !j.LastRun.IsZero() {
			row.LastRun = j.LastRun.UTC().Format("Jan 02 15:04:05")
			row.Took = j.LastDuration.Round(time.Millisecond).String()
		}
		rows = append(rows, row)
	}
	return rows
}

type statusVM struct {
	viewdata.BaseVM

	CertHost      string
	CertIssuer    string
	CertExpiresAt string
	CertExpiresIn string
	CertValid     bool
	CertSkipped   bool
	CertWarning   bool
	CertError     string
	CanRenewCert  bool
	RenewSuccess  bool

	DBConnected bool
	DBError     string
	DBPingMS    int64
	DBVersion   string

	Counts countsVM

	// Form submissions over the last 24 hours, by status class.
	Last24h        map[string]int64
	RecentFailures []failureRow

	Mail    string
	Storage string
	Jobs    []jobRow

	GoVersion    string
	Uptime       string
	NumGoroutine int
	MemAlloc     string

	ConfigGroups []ConfigGroup
}

// Serve handles GET /admin/status.
func (h *Handler) Serve(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Medium(), h.log, "status page")
	defer cancel()

	vm := statusVM{
		BaseVM:       viewdata.NewBaseVM(r, "System Status", "/admin/inbox"),
		RenewSuccess: r.URL.Query().Get("renewed") == "1",
		Mail:         h.opts.Mail,
		Storage:      h.opts.Storage,
		GoVersion:    runtime.Version(),
		Uptime:       formatDuration(time.Since(startTime)),
		NumGoroutine: runtime.NumGoroutine(),
		ConfigGroups: h.opts.Config,
	}

	if h.opts.Jobs != nil {
		vm.Jobs = jobRows(h.opts.Jobs())
	}

	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	vm.MemAlloc = formatBytes(m.Alloc)

	pingStart := time.Now()
	if err := h.client.Ping(ctx, readpref.Primary()); err != nil {
		vm.DBError = err.Error()
		h.log.Warn("status page: database ping failed", zap.Error(err))
	} else {
		vm.DBConnected = true
		vm.DBPingMS = time.Since(pingStart).Milliseconds()

		var info bson.M
		if err := h.client.Database("admin").RunCommand(ctx, bson.D{{Key: "buildInfo", Value: 1}}).Decode(&info); err == nil {
			vm.DBVersion, _ = info["version"].(string)
		}
		vm.Counts = h.counts(ctx)
		vm.Last24h, vm.RecentFailures = h.failures(ctx)
	}

	if h.opts.BaseURL != "" {
		cert := h.checkCert(ctx, h.opts.BaseURL)
		vm.CertHost = cert.Host
		vm.CertIssuer = cert.Issuer
		vm.CertValid = cert.Valid
		vm.CertSkipped = cert.Skipped
		vm.CertError = cert.Error
		vm.CertWarning = cert.Expiring(time.Now())
		if !cert.ExpiresAt.IsZero() {
			vm.CertExpiresAt = cert.ExpiresAt.Format("Jan 02, 2006 15:04 MST")
			vm.CertExpiresIn = formatExpiresIn(time.Until(cert.ExpiresAt))
		}
	}
	vm.CanRenewCert = server.GetCertRenewer() != nil

	templates.Render(w, r, "status/index", vm)
}

// counts fills the site totals. A failed count reads as zero.
func (h *Handler) counts(ctx context.Context) countsVM {
	var c countsVM
	var err error
	if c.Users, err = h.users.Count(ctx, nil); err != nil {
		h.log.Warn("status page: count users", zap.Error(err))
	}
	if c.Unread, err = h.messages.CountUnread(ctx); err != nil {
		h.log.Warn("status page: count unread messages", zap.Error(err))
	}
	if c.Pending, err = h.requests.CountPending(ctx); err != nil {
		h.log.Warn("status page: count pending requests", zap.Error(err))
	}
	if c.Subscribers, err = h.subs.CountActive(ctx); err != nil {
		h.log.Warn("status page: count subscribers", zap.Error(err))
	}
	return c
}

func (h *Handler) failures(ctx context.Context) (map[string]int64, []failureRow) {
	byClass, err := h.ledger.CountByClass(ctx, time.Now().UTC().Add(-24*time.Hour))
	if err != nil {
		h.log.Warn("status page: ledger counts", zap.Error(err))
	}
	entries, err := h.ledger.RecentErrors(ctx, 20)
	if err != nil {
		h.log.Warn("status page: ledger errors", zap.Error(err))
		return byClass, nil
	}
	rows := make([]failureRow, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, failureRow{
			When:       e.StartedAt.UTC().Format("Jan 02 15:04:05"),
			Method:     e.Method,
			Path:       e.Path,
			StatusCode: e.StatusCode,
			ErrorClass: e.ErrorClass,
			RequestID:  e.RequestID,
		})
	}
	return byClass, rows
}

// HandleRenew handles POST /admin/status/renew when the server manages its
// own Let's Encrypt certificate.
func (h *Handler) HandleRenew(w http.ResponseWriter, r *http.Request) {
	renewer := server.GetCertRenewer()
	if renewer == nil {
		http.Error(w, "Certificate renewal not available", http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Minute)
	defer cancel()

	h.log.Info("forcing certificate renewal", zap.String("challenge_type", renewer.ChallengeType()))
	newExpiry, err := renewer.ForceRenewal(ctx)
	if err != nil {
		h.log.Error("certificate renewal failed", zap.Error(err))
		http.Error(w, "Renewal failed: "+err.Error(), http.StatusInternalServerError)
		return
	}
	h.log.Info("certificate renewal succeeded", zap.Time("new_expiry", newExpiry))

	http.Redirect(w, r, "/admin/status?renewed=1", http.StatusSeeOther)
}

// Mask hides all but the ends of a secret for display.
func Mask(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 4 {
		return "****"
	}
	return s[:2] + strings.Repeat("*", len(s)-4) + s[len(s)-2:]
}

func formatDuration(d time.Duration) string {
	days := int(d.Hours() / 24)
	hours := int(d.Hours()) % 24
	minutes := int(d.Minutes()) % 60

	switch {
	case days > 0:
		return plural(days, "day") + " " + plural(hours, "hour")
	case hours > 0:
		return plural(hours, "hour") + " " + plural(minutes, "min")
	default:
		return plural(minutes, "min")
	}
}

func formatExpiresIn(d time.Duration) string {
	if d < 0 {
		return "expired"
	}
	days := int(d.Hours() / 24)
	hours := int(d.Hours()) % 24
	return plural(days, "day") + ", " + plural(hours, "hour")
}

func plural(n int, unit string) string {
	if n == 1 {
		return "1 " + unit
	}
	return fmt.Sprintf("%d %ss", n, unit)
}

func formatBytes(b uint64) string {
	const unit = 1024
	if b < unit {
		return fmt.Sprintf("%d B", b)
	}
	div, exp := uint64(unit), 0
	for n := b / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(b)/float64(div), "KMGTPE"[exp])
}
