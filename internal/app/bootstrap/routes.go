// internal/app/bootstrap/routes.go
package bootstrap

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/dalemusser/waffle/config"
	"github.com/dalemusser/waffle/middleware"
	"github.com/dalemusser/waffle/pantry/templates"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/csrf"
	auditlogfeature "github.com/juhiii45/EcoReborn/internal/app/features/auditlog"
	contactfeature "github.com/juhiii45/EcoReborn/internal/app/features/contact"
	dashboardfeature "github.com/juhiii45/EcoReborn/internal/app/features/dashboard"
	errorsfeature "github.com/juhiii45/EcoReborn/internal/app/features/errors"
	healthfeature "github.com/juhiii45/EcoReborn/internal/app/features/health"
	homefeature "github.com/juhiii45/EcoReborn/internal/app/features/home"
	inboxfeature "github.com/juhiii45/EcoReborn/internal/app/features/inbox"
	loginfeature "github.com/juhiii45/EcoReborn/internal/app/features/login"
	logoutfeature "github.com/juhiii45/EcoReborn/internal/app/features/logout"
	newsletterfeature "github.com/juhiii45/EcoReborn/internal/app/features/newsletter"
	passwordfeature "github.com/juhiii45/EcoReborn/internal/app/features/password"
	seofeature "github.com/juhiii45/EcoReborn/internal/app/features/seo"
	servicesfeature "github.com/juhiii45/EcoReborn/internal/app/features/services"
	signupfeature "github.com/juhiii45/EcoReborn/internal/app/features/signup"
	statusfeature "github.com/juhiii45/EcoReborn/internal/app/features/status"
	appresources "github.com/juhiii45/EcoReborn/internal/app/resources"
	ledgerstore "github.com/juhiii45/EcoReborn/internal/app/store/ledger"
	"github.com/juhiii45/EcoReborn/internal/app/store/loginattempts"
	"github.com/juhiii45/EcoReborn/internal/app/store/passwordreset"
	userstore "github.com/juhiii45/EcoReborn/internal/app/store/users"
	"github.com/juhiii45/EcoReborn/internal/app/system/auth"
	"github.com/juhiii45/EcoReborn/internal/app/system/authflow"
	"github.com/juhiii45/EcoReborn/internal/app/system/emailcheck"
	"github.com/juhiii45/EcoReborn/internal/app/system/ledger"
	"github.com/juhiii45/EcoReborn/internal/app/system/network"
	"github.com/juhiii45/EcoReborn/internal/app/system/throttle"
	"go.uber.org/zap"
)

// BuildHandler constructs the root HTTP handler for Ecoreborn.
//
// WAFFLE calls this after configuration, DB connections, schema setup and
// Startup have completed. Every page is server-rendered: session auth, CSRF
// on all forms and the restrictive CORS policy from coreCfg apply site-wide.
func BuildHandler(coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) (http.Handler, error) {
	// Secure cookies are enabled in production mode.
	secure := coreCfg.Env == "prod"
	sessionMgr, err := auth.NewSessionManager(appCfg.SessionKey, appCfg.SessionName, appCfg.SessionDomain, appCfg.SessionMaxAge, secure, logger)
	if err != nil {
		logger.Error("session manager init failed", zap.Error(err))
		return nil, err
	}

	// LoadSessionUser re-reads the user on each request so role changes and
	// deactivation take effect immediately.
	sessionMgr.SetUserFetcher(userstore.NewFetcher(deps.MongoDatabase, logger))

	// Dev mode enables template reloading for faster iteration.
	eng := templates.New(coreCfg.Env == "dev")
	if err := eng.Boot(logger); err != nil {
		logger.Error("template engine boot failed", zap.Error(err))
		return nil, err
	}
	templates.UseEngine(eng, logger)

	errLog := errorsfeature.NewErrorLogger(logger)
	errPages := errorsfeature.NewHandler(contactfeature.SizeLabel(appCfg.MaxUploadSize))
	clientIP := network.ClientIPFunc(appCfg.TrustProxy)

	db := deps.MongoDatabase
	flow := authflow.New(db,
		userstore.New(db),
		loginattempts.New(db),
		passwordreset.New(db, appCfg.ResetTokenTTL),
		deps.Mailer,
		deps.Audit,
		authflow.Config{
			MaxFailures: appCfg.LoginMaxFailures,
			Window:      appCfg.LoginWindow,
			ResetTTL:    appCfg.ResetTokenTTL,
			BaseURL:     appCfg.BaseURL,
			AppName:     appCfg.MailFromName,
			AsyncMail:   appCfg.AsyncMail,
		},
		logger,
	)

	// Failed public form submissions are kept for the status page.
	recorder := ledger.New(ledger.Config{
		Store:      ledgerstore.New(db),
		Logger:     logger,
		ClientIP:   clientIP,
		OnlyErrors: true,
		Methods:    []string{http.MethodPost},
	})

	drainers = []interface{ Wait() }{deps.Mail, waitFunc(flow.WaitForMail), recorder}

	// One bucket per client IP shared by every auth form.
	authLimit := throttle.PerHour(appCfg.AuthRatePerHour).
		Middleware(clientIP, http.HandlerFunc(errPages.TooManyRequests), logger)

	r := chi.NewRouter()

	// ─────────────────────────────────────────────────────────────────────────────
	// Global Middleware (applies to ALL routes)
	// ─────────────────────────────────────────────────────────────────────────────

	// Request timeout middleware: prevents requests from hanging indefinitely.
	r.Use(chimw.Timeout(30 * time.Second))

	// CORS middleware: must be early in the chain to handle preflight requests.
	r.Use(middleware.CORSFromConfig(coreCfg))

	// Security headers middleware: adds X-Frame-Options, X-Content-Type-Options, etc.
	r.Use(middleware.SecurityHeadersFromConfig(coreCfg))

	// Session middleware: loads SessionUser into context if logged in.
	r.Use(sessionMgr.LoadSessionUser)

	// Cookie name is "ecoreborn_csrf" to avoid collisions with other services
	// on the same domain.
	csrfOpts := []csrf.Option{
		csrf.Secure(secure),
		csrf.Path("/"),
		csrf.CookieName("ecoreborn_csrf"),
		csrf.SameSite(csrf.SameSiteLaxMode),
		csrf.ErrorHandler(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			logger.Warn("CSRF validation failed",
				zap.String("path", req.URL.Path),
				zap.String("method", req.Method),
				zap.String("reason", csrf.FailureReason(req).Error()),
			)
			errPages.CSRFFailure(w, req)
		})),
	}
	// In dev mode, trust localhost origins for CSRF validation.
	if !secure {
		csrfOpts = append(csrfOpts, csrf.TrustedOrigins([]string{
			"localhost:8080",
			"localhost:3000",
			"127.0.0.1:8080",
			"127.0.0.1:3000",
		}))
	}
	if appCfg.SessionDomain != "" {
		csrfOpts = append(csrfOpts, csrf.Domain(appCfg.SessionDomain))
	}
	r.Use(csrf.Protect([]byte(appCfg.CSRFKey), csrfOpts...))

	// Flash messages are popped lazily by the page that shows them.
	r.Use(sessionMgr.LoadFlashes)

	// ─────────────────────────────────────────────────────────────────────────────
	// Infrastructure
	// ─────────────────────────────────────────────────────────────────────────────

	backends := healthfeature.Backends{Mail: "log", Storage: storageKind(appCfg.StorageType)}
	if deps.Mailer.SMTPEnabled() {
		backends.Mail = "smtp"
	}
	healthHandler := healthfeature.NewHandler(deps.MongoClient, backends, logger)
	r.Mount("/health", healthfeature.Routes(healthHandler))
	healthfeature.MountRootEndpoints(r, healthHandler)

	// Embedded CSS, JS and images. Attachments are never served from here;
	// admins download them through the inbox.
	r.Handle("/assets/*", appresources.AssetsHandler("/assets"))

	seoRoutes := seofeature.Routes(seofeature.NewHandler(appCfg.BaseURL, logger))
	r.Handle("/sitemap.xml", seoRoutes)
	r.Handle("/robots.txt", seoRoutes)

	// ─────────────────────────────────────────────────────────────────────────────
	// Public pages and forms
	// ─────────────────────────────────────────────────────────────────────────────

	homeHandler := homefeature.NewHandler(db, logger)
	r.Mount("/", homefeature.Routes(homeHandler))

	servicesHandler := servicesfeature.NewHandler(db, sessionMgr, deps.Mail, appCfg.AdminEmail, errLog, logger)
	r.Route("/services", func(sr chi.Router) {
		sr.Use(recorder.Middleware)
		sr.Mount("/", servicesfeature.Routes(servicesHandler))
	})

	contactHandler := contactfeature.NewHandler(db, deps.FileStorage, sessionMgr, deps.Mail,
		appCfg.AdminEmail, appCfg.MaxUploadSize, errPages, errLog, logger)
	r.Route("/contact", func(sr chi.Router) {
		sr.Use(recorder.Middleware)
		sr.Mount("/", contactfeature.Routes(contactHandler))
	})

	newsletterHandler := newsletterfeature.NewHandler(db, sessionMgr, errLog, logger)
	r.Route("/newsletter", func(sr chi.Router) {
		sr.Use(recorder.Middleware)
		sr.Mount("/", newsletterfeature.Routes(newsletterHandler))
	})

	// ─────────────────────────────────────────────────────────────────────────────
	// Accounts. The ledger sits outside the throttle so 429s are recorded.
	// ─────────────────────────────────────────────────────────────────────────────

	checker := emailcheck.Checker{CheckMX: appCfg.EmailMXCheck}
	signupHandler := signupfeature.NewHandler(flow, sessionMgr, checker, errLog, clientIP, logger)
	r.Route("/signup", func(sr chi.Router) {
		sr.Use(recorder.Middleware, authLimit)
		sr.Mount("/", signupfeature.Routes(signupHandler))
	})

	loginHandler := loginfeature.NewHandler(flow, sessionMgr, errLog, clientIP, logger)
	r.Route("/login", func(sr chi.Router) {
		sr.Use(recorder.Middleware, authLimit)
		sr.Mount("/", loginfeature.Routes(loginHandler))
	})

	logoutHandler := logoutfeature.NewHandler(flow, sessionMgr, clientIP, logger)
	r.Mount("/logout", logoutfeature.Routes(logoutHandler))

	passwordHandler := passwordfeature.NewHandler(flow, sessionMgr, errLog, clientIP, logger)
	r.Route("/forgot-password", func(sr chi.Router) {
		sr.Use(recorder.Middleware, authLimit)
		sr.Mount("/", passwordfeature.ForgotRoutes(passwordHandler))
	})
	r.Route("/reset-password", func(sr chi.Router) {
		sr.Use(recorder.Middleware, authLimit)
		sr.Mount("/", passwordfeature.ResetRoutes(passwordHandler))
	})

	dashboardHandler := dashboardfeature.NewHandler(db, errLog, logger)
	r.Mount("/dashboard", dashboardfeature.Routes(dashboardHandler, sessionMgr))

	// ─────────────────────────────────────────────────────────────────────────────
	// Admin (each feature enforces the admin role itself)
	// ─────────────────────────────────────────────────────────────────────────────

	inboxHandler := inboxfeature.NewHandler(db, deps.FileStorage, deps.Audit, errLog, clientIP, logger)
	r.Mount("/admin/inbox", inboxfeature.Routes(inboxHandler, sessionMgr))

	auditLogHandler := auditlogfeature.NewHandler(db, errLog, logger)
	r.Mount("/admin/audit", auditlogfeature.Routes(auditLogHandler, sessionMgr))

	statusHandler := statusfeature.NewHandler(deps.MongoClient, db, statusfeature.Options{
		BaseURL: appCfg.BaseURL,
		Mail:    mailDescription(appCfg, deps.Mailer.SMTPEnabled()),
		Storage: storageDescription(appCfg),
		Jobs:    taskRunner.Status,
		Config:  statusConfigGroups(coreCfg, appCfg),
	}, logger)
	r.Mount("/admin/status", statusfeature.Routes(statusHandler, sessionMgr))

	// Error pages
	r.Get("/forbidden", errPages.Forbidden)
	r.Get("/unauthorized", errPages.Unauthorized)

	// 404 catch-all for unmatched routes
	r.NotFound(errPages.NotFound)

	return r, nil
}

func storageKind(t string) string {
	if t == "" {
		return "local"
	}
	return t
}

func mailDescription(c AppConfig, smtp bool) string {
	if !smtp {
		return "log " + c.MailLogPath
	}
	return "smtp " + c.MailSMTPHost + ":" + strconv.Itoa(c.MailSMTPPort)
}

func storageDescription(c AppConfig) string {
	if storageKind(c.StorageType) == "s3" {
		return "s3 " + c.StorageS3Bucket + "/" + strings.TrimPrefix(c.StorageS3Prefix, "/")
	}
	return "local " + c.StorageLocalPath
}

// statusConfigGroups lists the effective configuration for the status page.
// Secrets pass through statusfeature.Mask.
func statusConfigGroups(coreCfg *config.CoreConfig, c AppConfig) []statusfeature.ConfigGroup {
	item := func(name, value string) statusfeature.ConfigItem {
		return statusfeature.ConfigItem{Name: name, Value: value}
	}
	secret := func(name, value string) statusfeature.ConfigItem {
		return statusfeature.ConfigItem{Name: name, Value: statusfeature.Mask(value)}
	}
	return []statusfeature.ConfigGroup{
		{Name: "Server", Items: []statusfeature.ConfigItem{
			item("env", coreCfg.Env),
			item("base_url", c.BaseURL),
			item("trust_proxy", strconv.FormatBool(c.TrustProxy)),
		}},
		{Name: "MongoDB", Items: []statusfeature.ConfigItem{
			secret("mongo_uri", c.MongoURI),
			item("mongo_database", c.MongoDatabase),
			item("mongo_max_pool_size", strconv.FormatUint(c.MongoMaxPoolSize, 10)),
			item("mongo_min_pool_size", strconv.FormatUint(c.MongoMinPoolSize, 10)),
		}},
		{Name: "Sessions", Items: []statusfeature.ConfigItem{
			secret("session_key", c.SessionKey),
			item("session_name", c.SessionName),
			item("session_domain", c.SessionDomain),
			item("session_max_age", c.SessionMaxAge.String()),
			secret("csrf_key", c.CSRFKey),
		}},
		{Name: "Login Policy", Items: []statusfeature.ConfigItem{
			item("login_max_failures", strconv.Itoa(c.LoginMaxFailures)),
			item("login_window", c.LoginWindow.String()),
			item("login_attempt_retention", c.LoginAttemptRetention.String()),
			item("reset_token_ttl", c.ResetTokenTTL.String()),
			item("auth_rate_per_hour", strconv.Itoa(c.AuthRatePerHour)),
		}},
		{Name: "Storage", Items: []statusfeature.ConfigItem{
			item("storage_type", storageKind(c.StorageType)),
			item("storage_local_path", c.StorageLocalPath),
			item("storage_s3_region", c.StorageS3Region),
			item("storage_s3_bucket", c.StorageS3Bucket),
			item("storage_s3_prefix", c.StorageS3Prefix),
			item("max_upload_size", contactfeature.SizeLabel(c.MaxUploadSize)),
		}},
		{Name: "Email", Items: []statusfeature.ConfigItem{
			item("mail_smtp_host", c.MailSMTPHost),
			item("mail_smtp_port", strconv.Itoa(c.MailSMTPPort)),
			item("mail_smtp_user", c.MailSMTPUser),
			secret("mail_smtp_pass", c.MailSMTPPass),
			item("mail_from", c.MailFrom),
			item("mail_log_path", c.MailLogPath),
			item("async_mail", strconv.FormatBool(c.AsyncMail)),
			item("admin_email", c.AdminEmail),
			item("email_mx_check", strconv.FormatBool(c.EmailMXCheck)),
		}},
		{Name: "Audit", Items: []statusfeature.ConfigItem{
			item("audit_log_auth", c.AuditLogAuth),
			item("audit_log_admin", c.AuditLogAdmin),
			item("audit_retention", c.AuditRetention.String()),
			item("ledger_retention", c.LedgerRetention.String()),
		}},
	}
}
