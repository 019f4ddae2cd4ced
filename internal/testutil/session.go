package testutil

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/juhiii45/EcoReborn/internal/app/system/auth"
	"go.uber.org/zap"
)

// TestSessionKey is a 32-byte key accepted by auth.NewSessionManager.
const TestSessionKey = "test-session-key-for-handlers-32b"

// NewSessionManager returns a session manager for handler tests.
func NewSessionManager(t *testing.T) *auth.SessionManager {
	t.Helper()
	sm, err := auth.NewSessionManager(TestSessionKey, "", "", 30*24*time.Hour, false, zap.NewNop())
	if err != nil {
		t.Fatalf("NewSessionManager() error = %v", err)
	}
	return sm
}

// CarryCookies builds a request that sends back the cookies set on rec.
// When a cookie was written more than once the last value wins.
func CarryCookies(rec *httptest.ResponseRecorder, method, target string) *http.Request {
	req := httptest.NewRequest(method, target, nil)
	latest := map[string]*http.Cookie{}
	var order []string
	for _, c := range rec.Result().Cookies() {
		if _, seen := latest[c.Name]; !seen {
			order = append(order, c.Name)
		}
		latest[c.Name] = c
	}
	for _, name := range order {
		req.AddCookie(latest[name])
	}
	return req
}

// FlashesAfter returns the flash messages a handler queued in rec, as the
// next page would see them.
func FlashesAfter(t *testing.T, sm *auth.SessionManager, rec *httptest.ResponseRecorder) []auth.Flash {
	t.Helper()
	var got []auth.Flash
	h := sm.LoadFlashes(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = auth.Flashes(r)
	}))
	h.ServeHTTP(httptest.NewRecorder(), CarryCookies(rec, http.MethodGet, "/"))
	return got
}

// HasFlash reports whether flashes contains a message of kind that equals msg.
func HasFlash(flashes []auth.Flash, kind, msg string) bool {
	for _, f := range flashes {
		if f.Kind == kind && f.Message == msg {
			return true
		}
	}
	return false
}

// SessionUserAfter returns the user a handler signed in through rec, or nil.
func SessionUserAfter(t *testing.T, sm *auth.SessionManager, rec *httptest.ResponseRecorder) *auth.SessionUser {
	t.Helper()
	var got *auth.SessionUser
	h := sm.LoadSessionUser(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, _ = auth.CurrentUser(r)
	}))
	h.ServeHTTP(httptest.NewRecorder(), CarryCookies(rec, http.MethodGet, "/"))
	return got
}
