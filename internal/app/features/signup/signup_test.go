package signup

import (
	"context"
	"net"
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
	"github.com/juhiii45/EcoReborn/internal/app/system/emailcheck"
	"github.com/juhiii45/EcoReborn/internal/domain/models"
	"github.com/juhiii45/EcoReborn/internal/testutil"
	"go.uber.org/zap"
)

const goodPassword = "Recycled#Thread42"

type noMX struct{}

func (noMX) LookupMX(context.Context, string) ([]*net.MX, error) { return nil, nil }

type fixture struct {
	h     *Handler
	sm    *auth.SessionManager
	users *userstore.Store
}

func newFixture(t *testing.T, checker emailcheck.Checker) *fixture {
	t.Helper()
	testutil.MustBootTemplates(t)
	db := testutil.SetupTestDB(t)
	logger := zap.NewNop()

	users := userstore.New(db)
	flow := authflow.New(db, users, loginattempts.New(db), passwordreset.New(db, time.Hour), nil, nil, authflow.Config{}, logger)
	sm := testutil.NewSessionManager(t)
	return &fixture{
		h:     NewHandler(flow, sm, checker, errorsfeature.NewErrorLogger(logger), nil, logger),
		sm:    sm,
		users: users,
	}
}

func (f *fixture) post(form url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	Routes(f.h).ServeHTTP(rec, testutil.WithCSRFToken(req))
	return rec
}

func validForm() url.Values {
	return url.Values{
		"name":             {"  Maya   Green "},
		"email":            {"Maya@Example.com"},
		"password":         {goodPassword},
		"confirm_password": {goodPassword},
	}
}

func TestShowSignup(t *testing.T) {
	f := newFixture(t, emailcheck.Checker{})

	rec := httptest.NewRecorder()
	Routes(f.h).ServeHTTP(rec, testutil.WithCSRFToken(httptest.NewRequest(http.MethodGet, "/", nil)))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	for _, want := range []string{`name="name"`, `name="confirm_password"`, "Password must be 8 to 128 characters"} {
		if !strings.Contains(rec.Body.String(), want) {
			t.Errorf("signup page missing %q", want)
		}
	}
}

func TestSignup_SignedInRedirects(t *testing.T) {
	f := newFixture(t, emailcheck.Checker{})

	for _, method := range []string{http.MethodGet, http.MethodPost} {
		rec := testutil.NewRecorder()
		Routes(f.h).ServeHTTP(rec, testutil.NewAuthenticatedRequestWithCSRF(method, "/", testutil.AdminUser()))
		rec.AssertRedirect(t, "/dashboard")
	}
}

func TestHandleSignup_Success(t *testing.T) {
	f := newFixture(t, emailcheck.Checker{})

	rec := f.post(validForm())

	if rec.Code != http.StatusSeeOther {
		t.Fatalf("status = %d, want 303; body: %s", rec.Code, rec.Body.String())
	}
	if loc := rec.Header().Get("Location"); loc != "/login" {
		t.Errorf("Location = %q, want /login", loc)
	}

	ctx, cancel := testutil.TestContext()
	defer cancel()
	u, err := f.users.FindByEmail(ctx, "maya@example.com")
	if err != nil {
		t.Fatalf("user not created: %v", err)
	}
	if u.Name != "Maya Green" || u.Role != models.RoleUser || !u.Active {
		t.Errorf("user = %+v", u)
	}
	if u.PasswordHash == goodPassword {
		t.Error("password stored in plain text")
	}

	flashes := testutil.FlashesAfter(t, f.sm, rec)
	if len(flashes) != 1 || flashes[0].Kind != auth.FlashSuccess || !strings.HasPrefix(flashes[0].Message, "Account created") {
		t.Errorf("flashes = %+v", flashes)
	}
	if testutil.SessionUserAfter(t, f.sm, rec) != nil {
		t.Error("signup should not sign the user in")
	}
}

func TestHandleSignup_Conflict(t *testing.T) {
	f := newFixture(t, emailcheck.Checker{})
	f.post(validForm())

	form := validForm()
	form.Set("email", " MAYA@example.COM")
	rec := f.post(form)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "An account with this email already exists") {
		t.Errorf("missing conflict message:\n%s", body)
	}
	if !strings.Contains(body, `href="/login"`) {
		t.Error("conflict should offer a login link")
	}
}

func TestHandleSignup_Validation(t *testing.T) {
	tests := []struct {
		name  string
		field string
		value string
		want  string
	}{
		{"short name", "name", "M", "Full name must be at least 2 characters."},
		{"bad email", "email", "maya@", "A valid email address is required."},
		{"disposable email", "email", "maya@mailinator.com", "Temporary/disposable emails are not allowed."},
		{"weak password", "password", "password", "Password must be 8 to 128 characters"},
		{"mismatch", "confirm_password", "Different#Pass99", "Passwords do not match."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, emailcheck.Checker{})
			form := validForm()
			form.Set(tt.field, tt.value)
			if tt.field == "password" {
				form.Set("confirm_password", tt.value)
			}

			rec := f.post(form)

			if rec.Code != http.StatusOK {
				t.Fatalf("status = %d, want 200", rec.Code)
			}
			if !strings.Contains(rec.Body.String(), tt.want) {
				t.Errorf("body missing %q", tt.want)
			}
			if strings.Contains(rec.Body.String(), goodPassword) {
				t.Error("password echoed back into the form")
			}

			ctx, cancel := testutil.TestContext()
			defer cancel()
			if n, _ := f.users.Count(ctx, nil); n != 0 {
				t.Errorf("users = %d, want 0 after failed validation", n)
			}
		})
	}
}

func TestHandleSignup_MXCheck(t *testing.T) {
	f := newFixture(t, emailcheck.Checker{CheckMX: true, Resolver: noMX{}})

	rec := f.post(validForm())

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "Email domain does not appear to be valid.") {
		t.Errorf("missing MX error:\n%s", rec.Body.String())
	}
}
