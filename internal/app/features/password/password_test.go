package password

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
	"github.com/juhiii45/EcoReborn/internal/app/system/authutil"
	"github.com/juhiii45/EcoReborn/internal/app/system/mailer"
	"github.com/juhiii45/EcoReborn/internal/domain/models"
	"github.com/juhiii45/EcoReborn/internal/testutil"
	"go.uber.org/zap"
)

const (
	oldPassword = "Recycled#Thread42"
	newPassword = "Woven&Again77"
)

type outbox struct{ sent []mailer.Email }

func (o *outbox) Send(e mailer.Email) error {
	o.sent = append(o.sent, e)
	return nil
}

type fixture struct {
	h      *Handler
	sm     *auth.SessionManager
	users  *userstore.Store
	resets *passwordreset.Store
	mail   *outbox
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	testutil.MustBootTemplates(t)
	db := testutil.SetupTestDB(t)
	logger := zap.NewNop()

	f := &fixture{
		users:  userstore.New(db),
		resets: passwordreset.New(db, time.Hour),
		mail:   &outbox{},
		sm:     testutil.NewSessionManager(t),
	}
	flow := authflow.New(db, f.users, loginattempts.New(db), f.resets, f.mail, nil,
		authflow.Config{BaseURL: "http://localhost:8080"}, logger)
	f.h = NewHandler(flow, f.sm, errorsfeature.NewErrorLogger(logger), nil, logger)
	return f
}

func (f *fixture) createUser(t *testing.T) *models.User {
	t.Helper()
	ctx, cancel := testutil.TestContext()
	defer cancel()
	u, err := f.users.Create(ctx, userstore.CreateInput{Email: "maya@example.com", Password: oldPassword, Name: "Maya", Role: models.RoleUser})
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	return u
}

func (f *fixture) issue(t *testing.T, u *models.User) string {
	t.Helper()
	ctx, cancel := testutil.TestContext()
	defer cancel()
	rt, err := f.resets.Issue(ctx, u.ID)
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}
	return rt.Token
}

func serve(h http.Handler, method, target string, form url.Values) *httptest.ResponseRecorder {
	var req *http.Request
	if form != nil {
		req = httptest.NewRequest(method, target, strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, testutil.WithCSRFToken(req))
	return rec
}

func TestShowForgot(t *testing.T) {
	f := newFixture(t)
	rec := serve(ForgotRoutes(f.h), http.MethodGet, "/", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `action="/forgot-password"`) {
		t.Error("forgot page missing form")
	}
}

func TestHandleForgot_SameAnswerForAnyEmail(t *testing.T) {
	tests := []struct {
		name      string
		email     string
		wantMails int
	}{
		{"known", "MAYA@example.com", 1},
		{"unknown", "nobody@example.com", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.createUser(t)

			rec := serve(ForgotRoutes(f.h), http.MethodPost, "/", url.Values{"email": {tt.email}})

			if rec.Code != http.StatusSeeOther || rec.Header().Get("Location") != "/login" {
				t.Fatalf("got %d %q, want 303 /login", rec.Code, rec.Header().Get("Location"))
			}
			if !testutil.HasFlash(testutil.FlashesAfter(t, f.sm, rec), auth.FlashInfo, forgotSentMsg) {
				t.Error("missing neutral confirmation flash")
			}
			if len(f.mail.sent) != tt.wantMails {
				t.Errorf("mails = %d, want %d", len(f.mail.sent), tt.wantMails)
			}
		})
	}
}

func TestHandleForgot_InvalidEmail(t *testing.T) {
	f := newFixture(t)
	rec := serve(ForgotRoutes(f.h), http.MethodPost, "/", url.Values{"email": {"nope"}})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "A valid email address is required.") {
		t.Error("missing validation message")
	}
}

func TestShowReset(t *testing.T) {
	f := newFixture(t)
	token := f.issue(t, f.createUser(t))

	rec := serve(ResetRoutes(f.h), http.MethodGet, "/"+token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `action="/reset-password/`+token+`"`) {
		t.Error("reset form should post back to the token URL")
	}
}

func TestReset_InvalidToken(t *testing.T) {
	for _, method := range []string{http.MethodGet, http.MethodPost} {
		t.Run(method, func(t *testing.T) {
			f := newFixture(t)
			var form url.Values
			if method == http.MethodPost {
				form = url.Values{"password": {newPassword}, "confirm_password": {newPassword}}
			}

			rec := serve(ResetRoutes(f.h), method, "/not-a-token", form)

			if rec.Code != http.StatusSeeOther || rec.Header().Get("Location") != "/forgot-password" {
				t.Fatalf("got %d %q, want 303 /forgot-password", rec.Code, rec.Header().Get("Location"))
			}
			if !testutil.HasFlash(testutil.FlashesAfter(t, f.sm, rec), auth.FlashError, invalidLinkMsg) {
				t.Error("missing invalid link flash")
			}
		})
	}
}

func TestHandleReset_Success(t *testing.T) {
	f := newFixture(t)
	u := f.createUser(t)
	token := f.issue(t, u)

	rec := serve(ResetRoutes(f.h), http.MethodPost, "/"+token, url.Values{"password": {newPassword}, "confirm_password": {newPassword}})

	if rec.Code != http.StatusSeeOther || rec.Header().Get("Location") != "/login" {
		t.Fatalf("got %d %q, want 303 /login", rec.Code, rec.Header().Get("Location"))
	}
	if !testutil.HasFlash(testutil.FlashesAfter(t, f.sm, rec), auth.FlashSuccess, resetSuccessMsg) {
		t.Error("missing success flash")
	}

	ctx, cancel := testutil.TestContext()
	defer cancel()
	stored, _ := f.users.FindByID(ctx, u.ID)
	if !authutil.CheckPassword(newPassword, stored.PasswordHash) {
		t.Error("password was not changed")
	}

	// The link works once.
	rec = serve(ResetRoutes(f.h), http.MethodGet, "/"+token, nil)
	if rec.Header().Get("Location") != "/forgot-password" {
		t.Errorf("reused token: Location = %q, want /forgot-password", rec.Header().Get("Location"))
	}
}

func TestHandleReset_Validation(t *testing.T) {
	tests := []struct {
		name    string
		pw, cpw string
		want    string
	}{
		{"weak", "short", "short", "Password must be 8 to 128 characters"},
		{"mismatch", newPassword, "Other#Pass123", "Passwords do not match."},
		{"missing confirm", newPassword, "", "Confirm password is required."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			u := f.createUser(t)
			token := f.issue(t, u)

			rec := serve(ResetRoutes(f.h), http.MethodPost, "/"+token, url.Values{"password": {tt.pw}, "confirm_password": {tt.cpw}})

			if rec.Code != http.StatusOK {
				t.Fatalf("status = %d, want 200", rec.Code)
			}
			if !strings.Contains(rec.Body.String(), tt.want) {
				t.Errorf("body missing %q", tt.want)
			}

			ctx, cancel := testutil.TestContext()
			defer cancel()
			stored, _ := f.users.FindByID(ctx, u.ID)
			if !authutil.CheckPassword(oldPassword, stored.PasswordHash) {
				t.Error("password changed despite invalid input")
			}
		})
	}
}

func TestPasswordPages_SignedInRedirect(t *testing.T) {
	f := newFixture(t)
	for _, h := range []http.Handler{ForgotRoutes(f.h), ResetRoutes(f.h)} {
		rec := testutil.NewRecorder()
		h.ServeHTTP(rec, testutil.NewAuthenticatedRequestWithCSRF(http.MethodGet, "/anything", testutil.AdminUser()))
		rec.AssertRedirect(t, "/dashboard")
	}
}
