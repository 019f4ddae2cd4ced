// Package auth keeps the signed-in user in a signed cookie session and
// guards routes by sign-in state and role.
package auth

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/securecookie"
	"github.com/gorilla/sessions"
	"github.com/juhiii45/EcoReborn/internal/app/system/normalize"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Session value keys. A session is signed in when uidKey is set.
const (
	uidKey   = "uid"
	nameKey  = "name"
	emailKey = "email"
	roleKey  = "role"
	tokenKey = "tok"
)

// DefaultSessionName is used when no cookie name is configured.
const DefaultSessionName = "ecoreborn-session"

// DefaultRememberFor is the remember-me lifetime when none is configured.
const DefaultRememberFor = 30 * 24 * time.Hour

// MinKeyLength is the shortest session key accepted in production.
const MinKeyLength = 32

// ErrWeakKey is returned by NewSessionManager for a key unfit for production.
var ErrWeakKey = errors.New("session key must be at least 32 random characters and not a placeholder")

// SessionManager signs users in and out and restores them on each request.
type SessionManager struct {
	store       *sessions.CookieStore
	logger      *zap.Logger
	name        string
	rememberFor time.Duration
	userFetcher UserFetcher
}

// NewSessionManager builds a cookie-backed manager.
//
// Sessions end with the browser unless created with remember set, in which
// case they last rememberFor. With secure set cookies are HTTPS-only and a
// weak key is an error; otherwise a weak key is only logged.
func NewSessionManager(sessionKey, name, domain string, rememberFor time.Duration, secure bool, logger *zap.Logger) (*SessionManager, error) {
	if sessionKey == "" {
		return nil, ErrWeakKey
	}
	if weakKey(sessionKey) {
		if secure {
			return nil, ErrWeakKey
		}
		logger.Warn("session key is weak; set a random 32+ character key before deploying",
			zap.Int("length", len(sessionKey)))
	}

	if name == "" {
		name = DefaultSessionName
	}
	if rememberFor <= 0 {
		rememberFor = DefaultRememberFor
	}

	store := sessions.NewCookieStore([]byte(sessionKey))
	store.Options = &sessions.Options{
		Domain:   domain,
		Path:     "/",
		Secure:   secure,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
	// securecookie rejects values older than its own MaxAge, so it must
	// accept the longest cookie the store can issue.
	for _, c := range store.Codecs {
		if sc, ok := c.(*securecookie.SecureCookie); ok {
			sc.MaxAge(int(rememberFor.Seconds()))
		}
	}

	logger.Info("session manager initialized",
		zap.Bool("secure", secure),
		zap.String("name", name),
		zap.String("domain", domain),
		zap.Duration("remember_for", rememberFor))

	return &SessionManager{
		store:       store,
		logger:      logger,
		name:        name,
		rememberFor: rememberFor,
	}, nil
}

// SessionName returns the cookie name.
func (sm *SessionManager) SessionName() string {
	return sm.name
}

// GetSession returns the request's session, or a fresh one if the cookie
// could not be decoded.
func (sm *SessionManager) GetSession(r *http.Request) (*sessions.Session, error) {
	return sm.store.Get(r, sm.name)
}

// session is GetSession for callers about to overwrite the session anyway:
// a bad cookie is logged and replaced.
func (sm *SessionManager) session(r *http.Request) *sessions.Session {
	sess, err := sm.store.Get(r, sm.name)
	if err != nil {
		sm.logSessionError(r, err)
		sess, _ = sm.store.New(r, sm.name)
	}
	return sess
}

// SetUserFetcher makes LoadSessionUser re-read the user on every request.
func (sm *SessionManager) SetUserFetcher(uf UserFetcher) {
	sm.userFetcher = uf
}

// CreateSession signs u in, replacing any identity already in the session
// and issuing a fresh session token.
func (sm *SessionManager) CreateSession(w http.ResponseWriter, r *http.Request, u SessionUser, remember bool) error {
	token, err := newToken()
	if err != nil {
		return err
	}

	sess := sm.session(r)
	clearIdentity(sess)
	sess.Values[uidKey] = u.ID
	sess.Values[nameKey] = u.Name
	sess.Values[emailKey] = normalize.Email(u.Email)
	sess.Values[roleKey] = normalize.Role(u.Role)
	sess.Values[tokenKey] = token

	opts := *sm.store.Options
	if remember {
		opts.MaxAge = int(sm.rememberFor.Seconds())
	}
	sess.Options = &opts
	return sess.Save(r, w)
}

// DestroySession signs the user out. The cookie is rewritten as a browser
// session rather than deleted, so flashes queued afterwards survive.
func (sm *SessionManager) DestroySession(w http.ResponseWriter, r *http.Request) {
	sess := sm.session(r)
	clearIdentity(sess)
	opts := *sm.store.Options
	opts.MaxAge = 0
	sess.Options = &opts
	if err := sess.Save(r, w); err != nil {
		sm.logger.Warn("save session on logout failed", zap.Error(err))
	}
}

func clearIdentity(s *sessions.Session) {
	for _, k := range []string{uidKey, nameKey, emailKey, roleKey, tokenKey} {
		delete(s.Values, k)
	}
}

func getString(s *sessions.Session, key string) string {
	v, _ := s.Values[key].(string)
	return v
}

func newToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

var placeholderKeyParts = []string{
	"dev-only", "change-me", "changeme", "placeholder", "default",
	"example", "insecure", "test-key", "secret123", "password",
}

// weakKey reports a key that is short or looks like a checked-in default.
func weakKey(key string) bool {
	if len(key) < MinKeyLength {
		return true
	}
	lower := strings.ToLower(key)
	for _, p := range placeholderKeyParts {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}

// logSessionError logs a cookie that could not be decoded. An expired
// cookie is routine; a bad MAC may be tampering.
func (sm *SessionManager) logSessionError(r *http.Request, err error) {
	level, reason := sessionErrorLevel(err)
	if ce := sm.logger.Check(level, "session cookie rejected, starting fresh session"); ce != nil {
		ce.Write(
			zap.String("reason", reason),
			zap.String("path", r.URL.Path),
			zap.String("remote_addr", r.RemoteAddr),
			zap.Error(err))
	}
}

func sessionErrorLevel(err error) (zapcore.Level, string) {
	var sc securecookie.Error
	if !errors.As(err, &sc) || !sc.IsDecode() {
		return zapcore.ErrorLevel, "store"
	}
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "expired timestamp"):
		return zapcore.DebugLevel, "expired"
	case strings.Contains(msg, "mac") || strings.Contains(msg, "hash"):
		return zapcore.WarnLevel, "mac_invalid"
	default:
		return zapcore.InfoLevel, "undecodable"
	}
}
