package login

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	errorsfeature "github.com/juhiii45/EcoReborn/internal/app/features/errors"
	"github.com/juhiii45/EcoReborn/internal/app/store/loginattempts"
	"github.com/juhiii45/EcoReborn/internal/app/store/passwordreset"
	userstore "github.com/juhiii45/EcoReborn/internal/app/store/users"
	"github.com/juhiii45/EcoReborn/internal/app/system/auth"
	"github.com/juhiii45/EcoReborn/internal/app/system/authflow"
	"github.com/juhiii45/EcoReborn/internal/domain/models"
	"github.com/juhiii45/EcoReborn/internal/testutil"
	"go.uber.org/zap"
)

const testPassword = "Recycled#Thread42"

type fixture struct {
	h     *Handler
	sm    *auth.SessionManager
	users *userstore.Store
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	testutil.MustBootTemplates(t)
	db := testutil.SetupTestDB(t)
	logger := zap.NewNop()

	users := userstore.New(db)
	flow := authflow.New(db, users, loginattempts.New(db), passwordreset.New(db, time.Hour), nil, nil,
		authflow.Config{BaseURL: "http://localhost:8080"}, logger)
	sm := testutil.NewSessionManager(t)

	return &fixture{
		h:     NewHandler(flow, sm, errorsfeature.NewErrorLogger(logger), nil, logger),
		sm:    sm,
		users: users,
	}
}

func (f *fixture) createUser(t *testing.T, email string) *models.User {
	t.Helper()
	ctx, cancel := testutil.TestContext()
	defer cancel()
	u, err := f.users.Create(ctx, userstore.CreateInput{Email: email, Password: testPassword, Name: "Maya Green", Role: models.RoleUser})
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	return u
}

func (f *fixture) post(t *testing.T, target string, form url.Values) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req = testutil.WithCSRFToken(req)
	rec := httptest.NewRecorder()
	Routes(f.h).ServeHTTP(rec, req)
	return rec
}

func TestShowLogin(t *testing.T) {
	f := newFixture(t)

	req := testutil.WithCSRFToken(httptest.NewRequest(http.MethodGet, "/?next=/services", nil))
	rec := httptest.NewRecorder()
	Routes(f.h).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := rec.Body.String()
	for _, want := range []string{`name="email"`, `name="password"`, "Remember Me", `name="next" value="/services"`, "test-csrf-token-12345"} {
		if !strings.Contains(body, want) {
			t.Errorf("login page missing %q", want)
		}
	}
}

func TestShowLogin_SignedInRedirects(t *testing.T) {
	f := newFixture(t)

	req := testutil.NewAuthenticatedRequestWithCSRF(http.MethodGet, "/", testutil.AdminUser())
	rec := testutil.NewRecorder()
	Routes(f.h).ServeHTTP(rec, req)

	rec.AssertRedirect(t, "/dashboard")
}

func TestHandleLogin_Success(t *testing.T) {
	f := newFixture(t)
	u := f.createUser(t, "maya@example.com")

	rec := f.post(t, "/", url.Values{"email": {"  Maya@Example.com "}, "password": {testPassword}})

	if rec.Code != http.StatusSeeOther {
		t.Fatalf("status = %d, want 303; body: %s", rec.Code, rec.Body.String())
	}
	if loc := rec.Header().Get("Location"); loc != "/dashboard" {
		t.Errorf("Location = %q, want /dashboard", loc)
	}

	su := testutil.SessionUserAfter(t, f.sm, rec)
	if su == nil || su.ID != u.ID.Hex() || su.Email != "maya@example.com" {
		t.Errorf("session user = %+v", su)
	}

	flashes := testutil.FlashesAfter(t, f.sm, rec)
	if !testutil.HasFlash(flashes, auth.FlashSuccess, "Welcome back, Maya Green!") {
		t.Errorf("flashes = %+v", flashes)
	}
}

func TestHandleLogin_Next(t *testing.T) {
	tests := []struct {
		name string
		next string
		want string
	}{
		{"local path", "/services", "/services"},
		{"absolute url", "https://evil.example/x", "/dashboard"},
		{"scheme relative", "//evil.example", "/dashboard"},
		{"empty", "", "/dashboard"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.createUser(t, "next@example.com")

			rec := f.post(t, "/", url.Values{"email": {"next@example.com"}, "password": {testPassword}, "next": {tt.next}})
			if loc := rec.Header().Get("Location"); loc != tt.want {
				t.Errorf("Location = %q, want %q", loc, tt.want)
			}
		})
	}
}

func TestHandleLogin_RememberMe(t *testing.T) {
	tests := []struct {
		name       string
		remember   string
		persistent bool
	}{
		{"checked", "y", true},
		{"unchecked", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.createUser(t, "remember@example.com")

			form := url.Values{"email": {"remember@example.com"}, "password": {testPassword}}
			if tt.remember != "" {
				form.Set("remember_me", tt.remember)
			}
			rec := f.post(t, "/", form)

			var cookie *http.Cookie
			for _, c := range rec.Result().Cookies() {
				if c.Name == f.sm.SessionName() {
					cookie = c
				}
			}
			if cookie == nil {
				t.Fatal("no session cookie set")
			}
			if got := cookie.MaxAge > 0; got != tt.persistent {
				t.Errorf("persistent = %v (MaxAge %d), want %v", got, cookie.MaxAge, tt.persistent)
			}
		})
	}
}

func TestHandleLogin_WrongPassword(t *testing.T) {
	f := newFixture(t)
	f.createUser(t, "wrong@example.com")

	rec := f.post(t, "/", url.Values{"email": {"wrong@example.com"}, "password": {"Nope#Nope123"}})

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "Invalid email or password. You have 4 attempt(s) remaining.") {
		t.Errorf("missing remaining-attempts hint:\n%s", body)
	}
	if !strings.Contains(body, `value="wrong@example.com"`) {
		t.Error("email should be kept in the form")
	}
	if testutil.SessionUserAfter(t, f.sm, rec) != nil {
		t.Error("failed login must not create a session")
	}
}

func TestHandleLogin_UnknownEmailLooksTheSame(t *testing.T) {
	f := newFixture(t)

	rec := f.post(t, "/", url.Values{"email": {"ghost@example.com"}, "password": {testPassword}})

	if !strings.Contains(rec.Body.String(), "Invalid email or password. You have 4 attempt(s) remaining.") {
		t.Errorf("unknown email should read like a wrong password:\n%s", rec.Body.String())
	}
}

func TestHandleLogin_Lockout(t *testing.T) {
	f := newFixture(t)
	f.createUser(t, "locked@example.com")

	var rec *httptest.ResponseRecorder
	for i := 0; i < 5; i++ {
		rec = f.post(t, "/", url.Values{"email": {"locked@example.com"}, "password": {"Nope#Nope123"}})
	}
	if !strings.Contains(rec.Body.String(), "Too many failed attempts. Account locked for 15 minutes.") {
		t.Errorf("fifth failure should announce the lock:\n%s", rec.Body.String())
	}

	rec = f.post(t, "/", url.Values{"email": {"locked@example.com"}, "password": {testPassword}})
	body := rec.Body.String()
	if !strings.Contains(body, "Account temporarily locked") {
		t.Errorf("correct password while locked should be refused:\n%s", body)
	}
	if !strings.Contains(body, `href="/forgot-password"`) {
		t.Error("lockout message should link to forgot-password")
	}
	if testutil.SessionUserAfter(t, f.sm, rec) != nil {
		t.Error("locked login must not create a session")
	}
}

func TestHandleLogin_Validation(t *testing.T) {
	tests := []struct {
		name string
		form url.Values
		want string
	}{
		{"missing email", url.Values{"password": {"x"}}, "Email is required."},
		{"bad email", url.Values{"email": {"not-an-email"}, "password": {"x"}}, "A valid email address is required."},
		{"missing password", url.Values{"email": {"a@example.com"}}, "Password is required."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			rec := f.post(t, "/", tt.form)
			if rec.Code != http.StatusOK {
				t.Fatalf("status = %d, want 200", rec.Code)
			}
			if !strings.Contains(rec.Body.String(), tt.want) {
				t.Errorf("body missing %q", tt.want)
			}
		})
	}
}

func TestLocalPath(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"/dashboard", "/dashboard"},
		{" /services?x=1 ", "/services?x=1"},
		{"", ""},
		{"dashboard", ""},
		{"//evil.example", ""},
		{"/\\evil.example", ""},
		{"https://evil.example", ""},
	}
	for _, tt := range tests {
		if got := localPath(tt.in); got != tt.want {
			t.Errorf("localPath(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
