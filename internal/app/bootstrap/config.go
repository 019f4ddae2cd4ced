// internal/app/bootstrap/config.go
package bootstrap

import (
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/dalemusser/waffle/config"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"github.com/juhiii45/EcoReborn/internal/app/system/auditlog"
	"github.com/juhiii45/EcoReborn/internal/app/system/mailer"
	"go.uber.org/zap"
)

// EnvVarPrefix is the prefix for app environment variables, e.g.
// ECOREBORN_MONGO_URI.
const EnvVarPrefix = "ECOREBORN"

var appConfigKeys = []config.AppKey{
	{Name: "mongo_uri", Default: "mongodb://localhost:27017", Desc: "MongoDB connection URI"},
	{Name: "mongo_database", Default: "ecoreborn", Desc: "MongoDB database name"},
	{Name: "mongo_max_pool_size", Default: 100, Desc: "MongoDB max connection pool size"},
	{Name: "mongo_min_pool_size", Default: 10, Desc: "MongoDB min connection pool size"},

	{Name: "session_key", Default: "dev-only-change-me-please-0123456789ABCDEF", Desc: "Session signing key (must be strong in production)"},
	{Name: "session_name", Default: "ecoreborn-session", Desc: "Session cookie name"},
	{Name: "session_domain", Default: "", Desc: "Session cookie domain (blank means current host)"},
	{Name: "session_max_age", Default: "720h", Desc: "Remember-me session lifetime"},
	{Name: "csrf_key", Default: "dev-only-csrf-key-please-change-0123456789", Desc: "CSRF token signing key (32+ chars in production)"},

	// Login policy
	{Name: "login_max_failures", Default: 5, Desc: "Failed logins within login_window that lock an email"},
	{Name: "login_window", Default: "15m", Desc: "Rolling window for counting failed logins"},
	{Name: "login_attempt_retention", Default: "24h", Desc: "How long login attempt history is kept"},
	{Name: "reset_token_ttl", Default: "1h", Desc: "Password reset link lifetime"},
	{Name: "auth_rate_per_hour", Default: 10, Desc: "POSTs per hour per IP to login, signup and password reset"},
	{Name: "trust_proxy", Default: false, Desc: "Trust X-Forwarded-For and X-Real-IP for client IPs"},

	// Attachment storage
	{Name: "storage_type", Default: "local", Desc: "Storage backend: 'local' or 's3'"},
	{Name: "storage_local_path", Default: "./uploads", Desc: "Local storage path for contact attachments"},
	{Name: "storage_local_url", Default: "/files", Desc: "URL prefix recorded for local files (not served publicly)"},
	{Name: "storage_s3_region", Default: "", Desc: "AWS region for S3"},
	{Name: "storage_s3_bucket", Default: "", Desc: "S3 bucket name"},
	{Name: "storage_s3_prefix", Default: "uploads/", Desc: "S3 key prefix"},
	{Name: "storage_cf_url", Default: "", Desc: "CloudFront distribution URL"},
	{Name: "storage_cf_keypair_id", Default: "", Desc: "CloudFront key pair ID"},
	{Name: "storage_cf_key_path", Default: "", Desc: "Path to CloudFront private key file"},
	{Name: "max_upload_size", Default: 2 << 20, Desc: "Largest contact attachment in bytes"},

	// Email
	{Name: "mail_smtp_host", Default: "", Desc: "SMTP server host (blank writes mail to mail_log_path only)"},
	{Name: "mail_smtp_port", Default: 587, Desc: "SMTP server port"},
	{Name: "mail_smtp_user", Default: "", Desc: "SMTP username"},
	{Name: "mail_smtp_pass", Default: "", Desc: "SMTP password"},
	{Name: "mail_from", Default: "noreply@ecoreborn.in", Desc: "From email address"},
	{Name: "mail_from_name", Default: "Ecoreborn", Desc: "From display name"},
	{Name: "mail_log_path", Default: "logs/email.log", Desc: "File every outgoing email is appended to"},
	{Name: "async_mail", Default: true, Desc: "Send mail off the request path"},
	{Name: "admin_email", Default: "admin@ecoreborn.in", Desc: "Receives contact and service request notifications"},
	{Name: "email_mx_check", Default: false, Desc: "Require an MX record for signup email domains"},

	{Name: "base_url", Default: "http://localhost:8080", Desc: "Absolute site URL for emailed links and the sitemap"},

	// Audit and request ledger
	{Name: "audit_log_auth", Default: "all", Desc: "Auth event logging: 'all' (db+log), 'db', 'log', or 'off'"},
	{Name: "audit_log_admin", Default: "all", Desc: "Admin event logging: 'all' (db+log), 'db', 'log', or 'off'"},
	{Name: "audit_retention", Default: "0s", Desc: "Delete audit events older than this (0 keeps everything)"},
	{Name: "ledger_retention", Default: "720h", Desc: "Delete failed-request ledger entries older than this"},

	// Timeout tiers for database work inside requests
	{Name: "timeout_short", Default: "0s", Desc: "Single-document operations (0 keeps 5s)"},
	{Name: "timeout_medium", Default: "0s", Desc: "Page loads and form submissions (0 keeps 10s)"},
	{Name: "timeout_long", Default: "0s", Desc: "Attachment uploads and downloads (0 keeps 30s)"},

	// Admin seeding
	{Name: "seed_admin_email", Default: "", Desc: "Email of admin user to create on startup"},
	{Name: "seed_admin_name", Default: "Admin", Desc: "Name of admin user to create on startup"},
	{Name: "seed_admin_password", Default: "", Desc: "Password for a newly seeded admin user"},
}

// LoadConfig loads WAFFLE core config and the app keys above. Precedence is
// flags > env > config files > defaults.
func LoadConfig(logger *zap.Logger) (*config.CoreConfig, AppConfig, error) {
	coreCfg, appValues, err := config.LoadWithAppConfig(logger, EnvVarPrefix, appConfigKeys)
	if err != nil {
		return nil, AppConfig{}, err
	}

	appCfg := AppConfig{
		MongoURI:         appValues.String("mongo_uri"),
		MongoDatabase:    appValues.String("mongo_database"),
		MongoMaxPoolSize: uint64(appValues.Int("mongo_max_pool_size")),
		MongoMinPoolSize: uint64(appValues.Int("mongo_min_pool_size")),

		SessionKey:    appValues.String("session_key"),
		SessionName:   appValues.String("session_name"),
		SessionDomain: appValues.String("session_domain"),
		SessionMaxAge: appValues.Duration("session_max_age", 30*24*time.Hour),
		CSRFKey:       appValues.String("csrf_key"),

		LoginMaxFailures:      appValues.Int("login_max_failures"),
		LoginWindow:           appValues.Duration("login_window", 15*time.Minute),
		LoginAttemptRetention: appValues.Duration("login_attempt_retention", 24*time.Hour),
		ResetTokenTTL:         appValues.Duration("reset_token_ttl", time.Hour),
		AuthRatePerHour:       appValues.Int("auth_rate_per_hour"),
		TrustProxy:            appValues.Bool("trust_proxy"),

		StorageType:        appValues.String("storage_type"),
		StorageLocalPath:   appValues.String("storage_local_path"),
		StorageLocalURL:    appValues.String("storage_local_url"),
		StorageS3Region:    appValues.String("storage_s3_region"),
		StorageS3Bucket:    appValues.String("storage_s3_bucket"),
		StorageS3Prefix:    appValues.String("storage_s3_prefix"),
		StorageCFURL:       appValues.String("storage_cf_url"),
		StorageCFKeyPairID: appValues.String("storage_cf_keypair_id"),
		StorageCFKeyPath:   appValues.String("storage_cf_key_path"),
		MaxUploadSize:      int64(appValues.Int("max_upload_size")),

		MailSMTPHost: appValues.String("mail_smtp_host"),
		MailSMTPPort: appValues.Int("mail_smtp_port"),
		MailSMTPUser: appValues.String("mail_smtp_user"),
		MailSMTPPass: appValues.String("mail_smtp_pass"),
		MailFrom:     appValues.String("mail_from"),
		MailFromName: appValues.String("mail_from_name"),
		MailLogPath:  appValues.String("mail_log_path"),
		AsyncMail:    appValues.Bool("async_mail"),
		AdminEmail:   appValues.String("admin_email"),
		EmailMXCheck: appValues.Bool("email_mx_check"),

		BaseURL: appValues.String("base_url"),

		AuditLogAuth:    appValues.String("audit_log_auth"),
		AuditLogAdmin:   appValues.String("audit_log_admin"),
		AuditRetention:  appValues.Duration("audit_retention", 0),
		LedgerRetention: appValues.Duration("ledger_retention", 30*24*time.Hour),

		TimeoutShort:  appValues.Duration("timeout_short", 0),
		TimeoutMedium: appValues.Duration("timeout_medium", 0),
		TimeoutLong:   appValues.Duration("timeout_long", 0),

		SeedAdminEmail:    appValues.String("seed_admin_email"),
		SeedAdminName:     appValues.String("seed_admin_name"),
		SeedAdminPassword: appValues.String("seed_admin_password"),
	}

	return coreCfg, appCfg, nil
}

// ValidateConfig rejects settings the app cannot start with.
func ValidateConfig(coreCfg *config.CoreConfig, appCfg AppConfig, logger *zap.Logger) error {
	if err := wafflemongo.ValidateURI(appCfg.MongoURI); err != nil {
		logger.Error("invalid MongoDB URI", zap.Error(err))
		return fmt.Errorf("invalid MongoDB URI: %w", err)
	}
	if err := validateAppConfig(appCfg); err != nil {
		logger.Error("invalid app configuration", zap.Error(err))
		return err
	}
	return nil
}

// validateAppConfig holds the checks that need no logger, so tests can call
// it directly. All problems are reported together.
func validateAppConfig(c AppConfig) error {
	var errs []error

	switch c.StorageType {
	case "local", "":
		if c.StorageLocalPath == "" {
			errs = append(errs, errors.New("storage_local_path is required for local storage"))
		}
	case "s3":
		if c.StorageS3Bucket == "" || c.StorageS3Region == "" {
			errs = append(errs, errors.New("storage_s3_bucket and storage_s3_region are required for s3 storage"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown storage_type %q (want local or s3)", c.StorageType))
	}

	if u, err := url.Parse(c.BaseURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		errs = append(errs, fmt.Errorf("base_url %q must be an absolute http(s) URL", c.BaseURL))
	}

	if c.LoginMaxFailures < 1 {
		errs = append(errs, errors.New("login_max_failures must be at least 1"))
	}
	if c.LoginWindow <= 0 {
		errs = append(errs, errors.New("login_window must be positive"))
	}
	if c.ResetTokenTTL <= 0 {
		errs = append(errs, errors.New("reset_token_ttl must be positive"))
	}
	if c.AuthRatePerHour < 1 {
		errs = append(errs, errors.New("auth_rate_per_hour must be at least 1"))
	}
	if c.MaxUploadSize < 1 {
		errs = append(errs, errors.New("max_upload_size must be positive"))
	}

	for key, v := range map[string]string{"audit_log_auth": c.AuditLogAuth, "audit_log_admin": c.AuditLogAdmin} {
		if !auditlog.ValidMode(v) {
			errs = append(errs, fmt.Errorf("%s %q must be one of all, db, log, off", key, v))
		}
	}

	if c.MailFrom != "" && !mailer.ValidAddress(c.MailFrom) {
		errs = append(errs, fmt.Errorf("mail_from %q is not a bare email address", c.MailFrom))
	}

	if c.SeedAdminEmail != "" && c.SeedAdminPassword == "" {
		errs = append(errs, errors.New("seed_admin_password is required with seed_admin_email"))
	}

	return errors.Join(errs...)
}
