// internal/app/bootstrap/appconfig.go
package bootstrap

import "time"

// AppConfig holds Ecoreborn's own configuration, loaded next to WAFFLE's
// CoreConfig (ports, TLS, logging, CORS, body limits) in LoadConfig.
//
// Every field maps to a key in appConfigKeys and can be set from a config
// file, an ECOREBORN_* environment variable or a flag.
type AppConfig struct {
	// MongoDB
	MongoURI         string
	MongoDatabase    string
	MongoMaxPoolSize uint64
	MongoMinPoolSize uint64

	// Sessions. SessionMaxAge is the remember-me lifetime; sessions without
	// remember-me end with the browser.
	SessionKey    string
	SessionName   string
	SessionDomain string
	SessionMaxAge time.Duration

	CSRFKey string

	// Login policy and throttling
	LoginMaxFailures      int
	LoginWindow           time.Duration
	LoginAttemptRetention time.Duration
	ResetTokenTTL         time.Duration
	AuthRatePerHour       int
	TrustProxy            bool // read client IPs from X-Forwarded-For / X-Real-IP

	// Attachment storage
	StorageType        string // "local" or "s3"
	StorageLocalPath   string
	StorageLocalURL    string
	StorageS3Region    string
	StorageS3Bucket    string
	StorageS3Prefix    string
	StorageCFURL       string
	StorageCFKeyPairID string
	StorageCFKeyPath   string
	MaxUploadSize      int64

	// Email. With no SMTP host, mail is only appended to MailLogPath.
	MailSMTPHost string
	MailSMTPPort int
	MailSMTPUser string
	MailSMTPPass string
	MailFrom     string
	MailFromName string
	MailLogPath  string
	AsyncMail    bool
	AdminEmail   string // receives contact and service request notifications
	EmailMXCheck bool

	// Absolute site URL used in emailed links, the sitemap and the cert check.
	BaseURL string

	// Audit and request ledger. Audit values: "all", "db", "log" or "off".
	AuditLogAuth    string
	AuditLogAdmin   string
	AuditRetention  time.Duration // 0 keeps everything
	LedgerRetention time.Duration

	// Request timeout tiers; zero keeps the built-in default.
	TimeoutShort  time.Duration
	TimeoutMedium time.Duration
	TimeoutLong   time.Duration

	// Admin seeding
	SeedAdminEmail    string
	SeedAdminName     string
	SeedAdminPassword string
}
