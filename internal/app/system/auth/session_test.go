package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const testKey = "this-is-a-32-character-long-key!"

func newTestManager(t *testing.T) *SessionManager {
	t.Helper()
	sm, err := NewSessionManager(testKey, "", "", 30*24*time.Hour, false, zap.NewNop())
	if err != nil {
		t.Fatalf("NewSessionManager() error = %v", err)
	}
	return sm
}

// carry copies the cookies set on rec into a fresh request. When a cookie was
// saved more than once the last value wins, as in a browser.
func carry(rec *httptest.ResponseRecorder, method, target string) *http.Request {
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

type stubFetcher struct {
	users map[string]*SessionUser
	err   error
}

func (f stubFetcher) FetchUser(_ context.Context, id string) (*SessionUser, error) {
	if f.err != nil {
		return nil, f.err
	}
	u, ok := f.users[id]
	if !ok {
		return nil, nil
	}
	cp := *u
	return &cp, nil
}

func TestNewSessionManager(t *testing.T) {
	tests := []struct {
		name       string
		sessionKey string
		secure     bool
		wantErr    bool
	}{
		{"valid key dev mode", testKey, false, false},
		{"valid key prod mode", testKey, true, false},
		{"empty key", "", false, true},
		{"weak key dev mode", "short", false, false},
		{"weak key prod mode", "short", true, true},
		{"default key prod mode", "dev-only-session-key-not-for-production", true, true},
	}
	if _, err := NewSessionManager("", "", "", time.Hour, false, zap.NewNop()); !errors.Is(err, ErrWeakKey) {
		t.Errorf("empty key error = %v, want ErrWeakKey", err)
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sm, err := NewSessionManager(tt.sessionKey, "test-session", "", time.Hour, tt.secure, zap.NewNop())
			if tt.wantErr {
				if err == nil {
					t.Error("NewSessionManager() expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Errorf("NewSessionManager() error = %v", err)
			}
			if sm == nil {
				t.Error("NewSessionManager() returned nil")
			}
		})
	}
}

func TestSessionManager_SessionName(t *testing.T) {
	sm := newTestManager(t)
	if sm.SessionName() != DefaultSessionName {
		t.Errorf("SessionName() = %q, want %q", sm.SessionName(), DefaultSessionName)
	}

	sm2, _ := NewSessionManager(testKey, "custom-session", "", time.Hour, false, zap.NewNop())
	if sm2.SessionName() != "custom-session" {
		t.Errorf("SessionName() = %q, want %q", sm2.SessionName(), "custom-session")
	}
}

func TestCurrentUser(t *testing.T) {
	req := httptest.NewRequest("GET", "/", nil)
	if u, ok := CurrentUser(req); ok || u != nil {
		t.Error("CurrentUser() should report no user on a bare request")
	}

	want := &SessionUser{ID: primitive.NewObjectID().Hex(), Name: "Maya", Email: "maya@example.com", Role: "admin"}
	u, ok := CurrentUser(WithTestUser(req, want))
	if !ok || u == nil {
		t.Fatal("CurrentUser() should find the injected user")
	}
	if u.Email != want.Email || !u.IsAdmin() {
		t.Errorf("CurrentUser() = %+v", u)
	}
}

func TestSessionUser_UserID(t *testing.T) {
	oid := primitive.NewObjectID()
	if got := (&SessionUser{ID: oid.Hex()}).UserID(); got != oid {
		t.Errorf("UserID() = %v, want %v", got, oid)
	}
	if got := (&SessionUser{ID: "nope"}).UserID(); got != primitive.NilObjectID {
		t.Errorf("UserID() invalid = %v, want NilObjectID", got)
	}
}

func TestCreateSession_RoundTrip(t *testing.T) {
	sm := newTestManager(t)
	id := primitive.NewObjectID().Hex()
	sm.SetUserFetcher(stubFetcher{users: map[string]*SessionUser{
		id: {ID: id, Name: "Maya Green", Email: "maya@example.com", Role: "user"},
	}})

	rec := httptest.NewRecorder()
	if err := sm.CreateSession(rec, httptest.NewRequest("POST", "/login", nil), SessionUser{ID: id, Name: "Maya Green", Email: "Maya@Example.com", Role: "user"}, false); err != nil {
		t.Fatalf("CreateSession() error = %v", err)
	}

	var seen *SessionUser
	h := sm.LoadSessionUser(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = CurrentUser(r)
	}))
	h.ServeHTTP(httptest.NewRecorder(), carry(rec, "GET", "/dashboard"))

	if seen == nil {
		t.Fatal("LoadSessionUser() did not restore the user")
	}
	if seen.ID != id || seen.Email != "maya@example.com" {
		t.Errorf("restored user = %+v", seen)
	}
	if seen.Token == "" {
		t.Error("restored user has no session token")
	}
}

func TestCreateSession_RememberMe(t *testing.T) {
	sm := newTestManager(t)
	u := SessionUser{ID: primitive.NewObjectID().Hex(), Email: "a@example.com", Role: "user"}

	tests := []struct {
		name     string
		remember bool
		persist  bool
	}{
		{"browser session", false, false},
		{"remember me", true, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			if err := sm.CreateSession(rec, httptest.NewRequest("POST", "/login", nil), u, tt.remember); err != nil {
				t.Fatalf("CreateSession() error = %v", err)
			}
			var cookie *http.Cookie
			for _, c := range rec.Result().Cookies() {
				if c.Name == sm.SessionName() {
					cookie = c
				}
			}
			if cookie == nil {
				t.Fatal("no session cookie set")
			}
			if got := cookie.MaxAge > 0; got != tt.persist {
				t.Errorf("persistent = %v (MaxAge %d), want %v", got, cookie.MaxAge, tt.persist)
			}
			if !cookie.HttpOnly {
				t.Error("session cookie must be HttpOnly")
			}
			if cookie.SameSite != http.SameSiteLaxMode {
				t.Errorf("SameSite = %v, want Lax", cookie.SameSite)
			}
		})
	}
}

func TestLoadSessionUser_InactiveUserLosesSession(t *testing.T) {
	sm := newTestManager(t)
	sm.SetUserFetcher(stubFetcher{users: map[string]*SessionUser{}})

	rec := httptest.NewRecorder()
	_ = sm.CreateSession(rec, httptest.NewRequest("POST", "/login", nil), SessionUser{ID: primitive.NewObjectID().Hex(), Role: "user"}, false)

	called := false
	h := sm.LoadSessionUser(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		if _, ok := CurrentUser(r); ok {
			t.Error("user should not be loaded when the fetcher rejects it")
		}
	}))
	h.ServeHTTP(httptest.NewRecorder(), carry(rec, "GET", "/"))
	if !called {
		t.Error("next handler not called")
	}
}

func TestLoadSessionUser_FetchErrorKeepsSession(t *testing.T) {
	sm := newTestManager(t)
	sm.SetUserFetcher(stubFetcher{err: errors.New("mongo unavailable")})

	id := primitive.NewObjectID().Hex()
	rec := httptest.NewRecorder()
	_ = sm.CreateSession(rec, httptest.NewRequest("POST", "/login", nil), SessionUser{ID: id, Name: "Ravi", Email: "ravi@example.com", Role: "admin"}, false)

	var seen *SessionUser
	sm.LoadSessionUser(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = CurrentUser(r)
	})).ServeHTTP(httptest.NewRecorder(), carry(rec, "GET", "/dashboard"))

	if seen == nil || seen.ID != id || !seen.IsAdmin() {
		t.Errorf("user on fetch error = %+v, want cookie values", seen)
	}
}

func TestLoadSessionUser_FreshRole(t *testing.T) {
	sm := newTestManager(t)
	id := primitive.NewObjectID().Hex()
	sm.SetUserFetcher(stubFetcher{users: map[string]*SessionUser{
		id: {ID: id, Name: "Asha", Email: "asha@example.com", Role: "user"},
	}})

	rec := httptest.NewRecorder()
	_ = sm.CreateSession(rec, httptest.NewRequest("POST", "/login", nil), SessionUser{ID: id, Email: "asha@example.com", Role: "admin"}, false)

	var seen *SessionUser
	sm.LoadSessionUser(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = CurrentUser(r)
	})).ServeHTTP(httptest.NewRecorder(), carry(rec, "GET", "/admin/inbox"))

	if seen == nil || seen.IsAdmin() {
		t.Errorf("user = %+v, want the demoted role from the fetcher", seen)
	}
}

func TestDestroySession(t *testing.T) {
	sm := newTestManager(t)
	rec := httptest.NewRecorder()
	_ = sm.CreateSession(rec, httptest.NewRequest("POST", "/login", nil), SessionUser{ID: primitive.NewObjectID().Hex(), Role: "user"}, true)

	rec2 := httptest.NewRecorder()
	req := carry(rec, "POST", "/logout")
	sm.DestroySession(rec2, req)
	sm.AddFlash(rec2, req, FlashSuccess, "You have been logged out")

	var seen bool
	var flashes []Flash
	h := sm.LoadSessionUser(sm.LoadFlashes(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, seen = CurrentUser(r)
		flashes = Flashes(r)
	})))
	h.ServeHTTP(httptest.NewRecorder(), carry(rec2, "GET", "/"))

	if seen {
		t.Error("user still signed in after DestroySession")
	}
	if len(flashes) != 1 || flashes[0].Message != "You have been logged out" {
		t.Errorf("flashes = %+v, want the logout message", flashes)
	}
}

func TestFlashes_ConsumedOnce(t *testing.T) {
	sm := newTestManager(t)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/signup", nil)
	sm.AddFlash(rec, req, FlashSuccess, "Account created")
	sm.AddFlash(rec, req, FlashError, "first error")
	sm.AddFlash(rec, req, "bogus", "shown as info")

	read := func(from *httptest.ResponseRecorder) ([]Flash, *httptest.ResponseRecorder) {
		out := httptest.NewRecorder()
		var got []Flash
		sm.LoadFlashes(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got = Flashes(r)
			if again := Flashes(r); len(again) != len(got) {
				t.Error("repeated Flashes() calls should return the same messages")
			}
		})).ServeHTTP(out, carry(from, "GET", "/login"))
		return got, out
	}

	got, after := read(rec)
	want := []Flash{{FlashError, "first error"}, {FlashSuccess, "Account created"}, {FlashInfo, "shown as info"}}
	if len(got) != len(want) {
		t.Fatalf("flashes = %+v, want %+v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("flash[%d] = %+v, want %+v", i, got[i], want[i])
		}
	}

	if again, _ := read(after); len(again) != 0 {
		t.Errorf("flashes after consumption = %+v, want none", again)
	}
}

func TestFlashes_NotConsumedWithoutRead(t *testing.T) {
	sm := newTestManager(t)
	rec := httptest.NewRecorder()
	sm.AddFlash(rec, httptest.NewRequest("POST", "/login", nil), FlashSuccess, "Welcome back, Maya!")

	// An intermediate redirect that never renders keeps the message.
	mid := httptest.NewRecorder()
	sm.LoadFlashes(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
	})).ServeHTTP(mid, carry(rec, "GET", "/signup"))
	if len(mid.Result().Cookies()) != 0 {
		t.Error("redirect without reading flashes should not rewrite the session")
	}

	var got []Flash
	sm.LoadFlashes(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = Flashes(r)
	})).ServeHTTP(httptest.NewRecorder(), carry(rec, "GET", "/dashboard"))
	if len(got) != 1 {
		t.Errorf("flashes = %+v, want 1", got)
	}
}

func TestFlashes_WithoutMiddleware(t *testing.T) {
	if got := Flashes(httptest.NewRequest("GET", "/", nil)); got != nil {
		t.Errorf("Flashes() = %+v, want nil", got)
	}
}

func TestRequireSignedIn(t *testing.T) {
	sm := newTestManager(t)

	called := false
	protected := sm.RequireSignedIn(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.WriteHeader(http.StatusOK)
	}))

	tests := []struct {
		name       string
		header     map[string]string
		user       *SessionUser
		wantStatus int
		wantCalled bool
	}{
		{"html redirects to login", map[string]string{"Accept": "text/html"}, nil, http.StatusSeeOther, false},
		{"api gets 401", map[string]string{"Accept": "application/json"}, nil, http.StatusUnauthorized, false},
		{"htmx gets HX-Redirect", map[string]string{"HX-Request": "true"}, nil, http.StatusUnauthorized, false},
		{"signed in passes", nil, &SessionUser{ID: primitive.NewObjectID().Hex(), Role: "user"}, http.StatusOK, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			called = false
			req := httptest.NewRequest("GET", "/dashboard?tab=1", nil)
			for k, v := range tt.header {
				req.Header.Set(k, v)
			}
			if tt.user != nil {
				req = WithTestUser(req, tt.user)
			}
			rec := httptest.NewRecorder()
			protected.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if called != tt.wantCalled {
				t.Errorf("called = %v, want %v", called, tt.wantCalled)
			}
			if tt.wantStatus == http.StatusSeeOther {
				if loc := rec.Header().Get("Location"); loc != "/login?next=%2Fdashboard%3Ftab%3D1" {
					t.Errorf("Location = %q", loc)
				}
			}
			if tt.header["HX-Request"] == "true" {
				if hx := rec.Header().Get("HX-Redirect"); !strings.HasPrefix(hx, "/login?next=") {
					t.Errorf("HX-Redirect = %q", hx)
				}
			}
		})
	}
}

func TestRequireRole(t *testing.T) {
	sm := newTestManager(t)
	protected := sm.RequireRole("admin")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	tests := []struct {
		name       string
		role       string
		signedIn   bool
		accept     string
		wantStatus int
		wantLoc    string
	}{
		{"admin allowed", "admin", true, "text/html", http.StatusOK, ""},
		{"role is case-insensitive", " ADMIN ", true, "text/html", http.StatusOK, ""},
		{"user forbidden html", "user", true, "text/html", http.StatusSeeOther, "/forbidden"},
		{"user forbidden api", "user", true, "application/json", http.StatusForbidden, ""},
		{"user forbidden plain", "user", true, "", http.StatusForbidden, ""},
		{"anonymous api", "", false, "application/json", http.StatusUnauthorized, ""},
		{"anonymous to login", "", false, "text/html", http.StatusSeeOther, "/login?next=%2Fadmin%2Finbox"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/admin/inbox", nil)
			req.Header.Set("Accept", tt.accept)
			if tt.signedIn {
				req = WithTestUser(req, &SessionUser{ID: primitive.NewObjectID().Hex(), Role: tt.role})
			}
			rec := httptest.NewRecorder()
			protected.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if tt.wantLoc != "" && rec.Header().Get("Location") != tt.wantLoc {
				t.Errorf("Location = %q, want %q", rec.Header().Get("Location"), tt.wantLoc)
			}
		})
	}
}

func TestRequireSignedIn_JSONBody(t *testing.T) {
	sm := newTestManager(t)
	req := httptest.NewRequest("GET", "/dashboard", nil)
	req.Header.Set("Accept", "application/json")
	rec := httptest.NewRecorder()
	sm.RequireSignedIn(http.NotFoundHandler()).ServeHTTP(rec, req)

	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "application/json") {
		t.Errorf("Content-Type = %q", ct)
	}
	if !strings.Contains(rec.Body.String(), `"error":"unauthorized"`) {
		t.Errorf("body = %q", rec.Body.String())
	}
}

func TestNewToken(t *testing.T) {
	a, err := newToken()
	if err != nil {
		t.Fatalf("newToken() error = %v", err)
	}
	b, _ := newToken()
	if a == b || len(a) < 40 {
		t.Errorf("tokens %q and %q should be long and distinct", a, b)
	}
}

func TestWeakKey(t *testing.T) {
	tests := []struct {
		key  string
		want bool
	}{
		{"short", true},
		{"dev-only-change-me-please-0123456789ABCDEF", true},
		{"placeholder-placeholder-placeholder", true},
		{"my-default-session-key-0123456789abc", true},
		{"insecure-insecure-insecure-insecure", true},
		{"password-password-password-password", true},
		{"xK8nP2mQ9rT5vW7yB3cF6hJ0lN4sU1wZ", false},
		{"secure-random-key-that-is-long-enough", false},
	}
	for _, tt := range tests {
		if got := weakKey(tt.key); got != tt.want {
			t.Errorf("weakKey(%q) = %v, want %v", tt.key, got, tt.want)
		}
	}
}

func TestWantsHTML(t *testing.T) {
	tests := []struct {
		name      string
		accept    string
		hxRequest string
		want      bool
	}{
		{"HTML accept", "text/html", "", true},
		{"HTML with charset", "text/html; charset=utf-8", "", true},
		{"JSON accept", "application/json", "", false},
		{"HTMX request", "", "true", true},
		{"Empty", "", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/", nil)
			if tt.accept != "" {
				req.Header.Set("Accept", tt.accept)
			}
			if tt.hxRequest != "" {
				req.Header.Set("HX-Request", tt.hxRequest)
			}
			if got := wantsHTML(req); got != tt.want {
				t.Errorf("wantsHTML() = %v, want %v", got, tt.want)
			}
		})
	}
}

// cookieError implements securecookie.Error.
type cookieError struct {
	msg    string
	decode bool
}

func (e cookieError) Error() string    { return e.msg }
func (e cookieError) IsDecode() bool   { return e.decode }
func (e cookieError) IsUsage() bool    { return false }
func (e cookieError) IsInternal() bool { return !e.decode }
func (e cookieError) Cause() error     { return nil }

func TestSessionErrorLevel(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantLevel  zapcore.Level
		wantReason string
	}{
		{"expired", cookieError{"securecookie: expired timestamp", true}, zapcore.DebugLevel, "expired"},
		{"mac", cookieError{"securecookie: the value is not valid (mac)", true}, zapcore.WarnLevel, "mac_invalid"},
		{"hash", cookieError{"hash mismatch", true}, zapcore.WarnLevel, "mac_invalid"},
		{"base64", cookieError{"base64 decode failed", true}, zapcore.InfoLevel, "undecodable"},
		{"internal", cookieError{"encode failed", false}, zapcore.ErrorLevel, "store"},
		{"foreign", errors.New("disk full"), zapcore.ErrorLevel, "store"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			level, reason := sessionErrorLevel(tt.err)
			if level != tt.wantLevel || reason != tt.wantReason {
				t.Errorf("sessionErrorLevel() = %v %q, want %v %q", level, reason, tt.wantLevel, tt.wantReason)
			}
		})
	}
}

func TestGetString(t *testing.T) {
	sm := newTestManager(t)
	sess, _ := sm.GetSession(httptest.NewRequest("GET", "/", nil))

	if got := getString(sess, "missing"); got != "" {
		t.Errorf("getString() missing = %q, want empty", got)
	}
	sess.Values[nameKey] = "Maya"
	if got := getString(sess, nameKey); got != "Maya" {
		t.Errorf("getString() = %q, want Maya", got)
	}
	sess.Values["count"] = 3
	if got := getString(sess, "count"); got != "" {
		t.Errorf("getString() int = %q, want empty", got)
	}
}
