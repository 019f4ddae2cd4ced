// internal/app/system/auditlog/logger.go
package auditlog

import (
	"context"
	"net/http"
	"strconv"

	"github.com/juhiii45/EcoReborn/internal/app/store/audit"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Destination modes for a category.
const (
	ModeAll = "all" // MongoDB and zap
	ModeDB  = "db"
	ModeLog = "log"
	ModeOff = "off"
)

// Config picks a mode per event category. Auth covers signup, login, logout
// and password reset; Admin covers inbox changes and seeding. Unknown
// categories always go to both.
type Config struct {
	Auth  string
	Admin string
}

// ValidMode reports whether mode is one of the Mode constants.
func ValidMode(mode string) bool {
	switch mode {
	case ModeAll, ModeDB, ModeLog, ModeOff:
		return true
	}
	return false
}

type destinations struct{ db, log bool }

func destinationsFor(mode string) destinations {
	return destinations{
		db:  mode == ModeAll || mode == ModeDB,
		log: mode == ModeAll || mode == ModeLog,
	}
}

// Logger writes audit events to the audit store and to zap. A nil *Logger
// discards everything.
type Logger struct {
	store *audit.Store
	log   *zap.Logger
	dest  map[string]destinations
}

// New accepts a nil store, in which case only zap output remains.
func New(store *audit.Store, log *zap.Logger, cfg Config) *Logger {
	return &Logger{
		store: store,
		log:   log,
		dest: map[string]destinations{
			audit.CategoryAuth:  destinationsFor(cfg.Auth),
			audit.CategoryAdmin: destinationsFor(cfg.Admin),
		},
	}
}

// Client is the request metadata stored with each event.
type Client struct {
	IP        string
	UserAgent string
}

// ClientFrom reads the metadata off r; ipOf is usually network.ClientIPFunc.
func ClientFrom(r *http.Request, ipOf func(*http.Request) string) Client {
	return Client{IP: ipOf(r), UserAgent: r.UserAgent()}
}

// Log sends event to the destinations configured for its category. Store
// failures are logged and swallowed; auditing never fails a request.
func (l *Logger) Log(ctx context.Context, event audit.Event) {
	if l == nil {
		return
	}
	d, ok := l.dest[event.Category]
	if !ok {
		d = destinations{db: true, log: true}
	}
	if d.log {
		l.emit(event)
	}
	if d.db && l.store != nil {
		if err := l.store.Log(ctx, event); err != nil {
			l.log.Error("failed to store audit event", zap.String("event_type", event.EventType), zap.Error(err))
		}
	}
}

// emit writes event as one structured line; failures log at warn.
func (l *Logger) emit(event audit.Event) {
	fields := make([]zap.Field, 0, 8+len(event.Details))
	fields = append(fields,
		zap.Bool("audit", true),
		zap.String("category", event.Category),
		zap.String("event_type", event.EventType),
		zap.Bool("success", event.Success),
		zap.String("ip", event.IP))
	if event.UserID != nil {
		fields = append(fields, zap.String("user_id", event.UserID.Hex()))
	}
	if event.ActorID != nil {
		fields = append(fields, zap.String("actor_id", event.ActorID.Hex()))
	}
	if event.Email != "" {
		fields = append(fields, zap.String("email", event.Email))
	}
	if event.FailureReason != "" {
		fields = append(fields, zap.String("failure_reason", event.FailureReason))
	}
	for k, v := range event.Details {
		fields = append(fields, zap.String("detail_"+k, v))
	}

	level := zapcore.InfoLevel
	if !event.Success {
		level = zapcore.WarnLevel
	}
	l.log.Log(level, "audit event", fields...)
}

// hexID parses an id read from the session; malformed ids are dropped.
func hexID(s string) *primitive.ObjectID {
	oid, err := primitive.ObjectIDFromHex(s)
	if err != nil {
		return nil
	}
	return &oid
}

func (l *Logger) auth(ctx context.Context, c Client, eventType, email string, userID *primitive.ObjectID, success bool, reason string, details map[string]string) {
	l.Log(ctx, audit.Event{
		Category:      audit.CategoryAuth,
		EventType:     eventType,
		UserID:        userID,
		Email:         email,
		IP:            c.IP,
		UserAgent:     c.UserAgent,
		Success:       success,
		FailureReason: reason,
		Details:       details,
	})
}

func (l *Logger) Signup(ctx context.Context, c Client, userID primitive.ObjectID, email string) {
	l.auth(ctx, c, audit.EventSignup, email, &userID, true, "", nil)
}

func (l *Logger) LoginSuccess(ctx context.Context, c Client, userID primitive.ObjectID, email string) {
	l.auth(ctx, c, audit.EventLoginSuccess, email, &userID, true, "", nil)
}

// LoginFailedUserNotFound logs a login for an email with no account.
func (l *Logger) LoginFailedUserNotFound(ctx context.Context, c Client, email string) {
	l.auth(ctx, c, audit.EventLoginFailedUserNotFound, email, nil, false, "user not found", nil)
}

// failures counts this attempt.
func (l *Logger) LoginFailedWrongPassword(ctx context.Context, c Client, userID primitive.ObjectID, email string, failures int) {
	l.auth(ctx, c, audit.EventLoginFailedWrongPassword, email, &userID, false, "wrong password",
		map[string]string{"recent_failures": strconv.Itoa(failures)})
}

// LoginFailedUserDisabled logs a failed login on an inactive account.
func (l *Logger) LoginFailedUserDisabled(ctx context.Context, c Client, userID primitive.ObjectID, email string) {
	l.auth(ctx, c, audit.EventLoginFailedUserDisabled, email, &userID, false, "user disabled", nil)
}

// LoginLockedOut logs a login rejected by the lockout policy.
func (l *Logger) LoginLockedOut(ctx context.Context, c Client, email string, failures int) {
	l.auth(ctx, c, audit.EventLoginLockedOut, email, nil, false, "too many failed attempts",
		map[string]string{"recent_failures": strconv.Itoa(failures)})
}

// Logout takes the session's id string as is.
func (l *Logger) Logout(ctx context.Context, c Client, userID, email string) {
	l.auth(ctx, c, audit.EventLogout, email, hexID(userID), true, "", nil)
}

// PasswordResetRequested logs an issued reset token.
func (l *Logger) PasswordResetRequested(ctx context.Context, c Client, userID primitive.ObjectID, email string) {
	l.auth(ctx, c, audit.EventPasswordResetRequested, email, &userID, true, "", nil)
}

// PasswordResetCompleted logs a password changed through a reset token.
func (l *Logger) PasswordResetCompleted(ctx context.Context, c Client, userID primitive.ObjectID) {
	l.auth(ctx, c, audit.EventPasswordResetCompleted, "", &userID, true, "", nil)
}

// AdminSeeded logs creation or promotion of the configured admin account.
func (l *Logger) AdminSeeded(ctx context.Context, userID primitive.ObjectID, email string, created bool) {
	l.Log(ctx, audit.Event{
		Category:  audit.CategoryAdmin,
		EventType: audit.EventAdminSeeded,
		UserID:    &userID,
		Email:     email,
		Success:   true,
		Details:   map[string]string{"created": strconv.FormatBool(created)},
	})
}

// MessageMarkedRead logs an admin acknowledging a contact message.
func (l *Logger) MessageMarkedRead(ctx context.Context, c Client, actorID string, messageID primitive.ObjectID) {
	l.Log(ctx, audit.Event{
		Category:  audit.CategoryAdmin,
		EventType: audit.EventMessageMarkedRead,
		ActorID:   hexID(actorID),
		IP:        c.IP,
		UserAgent: c.UserAgent,
		Success:   true,
		Details:   map[string]string{"message_id": messageID.Hex()},
	})
}
