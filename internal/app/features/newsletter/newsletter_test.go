package newsletter

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	errorsfeature "github.com/juhiii45/EcoReborn/internal/app/features/errors"
	newsletterstore "github.com/juhiii45/EcoReborn/internal/app/store/newsletter"
	"github.com/juhiii45/EcoReborn/internal/app/system/auth"
	"github.com/juhiii45/EcoReborn/internal/testutil"
	"go.uber.org/zap"
)

type fixture struct {
	h    *Handler
	sm   *auth.SessionManager
	subs *newsletterstore.Store
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	testutil.MustBootTemplates(t)
	db := testutil.SetupTestDB(t)
	logger := zap.NewNop()
	f := &fixture{sm: testutil.NewSessionManager(t), subs: newsletterstore.New(db)}
	f.h = NewHandler(db, f.sm, errorsfeature.NewErrorLogger(logger), logger)
	return f
}

func (f *fixture) post(path, email, referer string) *httptest.ResponseRecorder {
	form := url.Values{"email": {email}}
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if referer != "" {
		req.Header.Set("Referer", referer)
	}
	rec := httptest.NewRecorder()
	Routes(f.h).ServeHTTP(rec, testutil.WithCSRFToken(req))
	return rec
}

func TestSubscribe_Sequence(t *testing.T) {
	f := newFixture(t)

	steps := []struct {
		name string
		kind string
		want string
	}{
		{"first", auth.FlashSuccess, subscribedMsg},
		{"again", auth.FlashInfo, alreadyMsg},
	}
	for _, st := range steps {
		rec := f.post("/subscribe", "Reader@Example.com", "")
		if rec.Code != http.StatusSeeOther || rec.Header().Get("Location") != "/" {
			t.Fatalf("%s: got %d %q, want 303 /", st.name, rec.Code, rec.Header().Get("Location"))
		}
		if !testutil.HasFlash(testutil.FlashesAfter(t, f.sm, rec), st.kind, st.want) {
			t.Errorf("%s: missing %s flash %q", st.name, st.kind, st.want)
		}
	}

	ctx, cancel := testutil.TestContext()
	defer cancel()
	if ok, _ := f.subs.IsSubscribed(ctx, "reader@example.com"); !ok {
		t.Error("address not subscribed")
	}
}

func TestSubscribe_AfterUnsubscribe(t *testing.T) {
	f := newFixture(t)

	f.post("/subscribe", "back@example.com", "")
	f.post("/unsubscribe", "back@example.com", "")
	rec := f.post("/subscribe", "back@example.com", "")

	if !testutil.HasFlash(testutil.FlashesAfter(t, f.sm, rec), auth.FlashSuccess, resubscribedMsg) {
		t.Error("missing welcome back flash")
	}
}

func TestSubscribe_InvalidEmail(t *testing.T) {
	f := newFixture(t)

	rec := f.post("/subscribe", "not-an-email", "http://example.com/services")

	if rec.Header().Get("Location") != "/services" {
		t.Errorf("Location = %q, want /services", rec.Header().Get("Location"))
	}
	if !testutil.HasFlash(testutil.FlashesAfter(t, f.sm, rec), auth.FlashError, invalidMsg) {
		t.Error("missing invalid email flash")
	}
}

func TestUnsubscribe_SameAnswer(t *testing.T) {
	f := newFixture(t)
	f.post("/subscribe", "member@example.com", "")

	for _, email := range []string{"member@example.com", "stranger@example.com"} {
		rec := f.post("/unsubscribe", email, "")
		if rec.Code != http.StatusSeeOther || rec.Header().Get("Location") != "/" {
			t.Fatalf("%s: got %d %q", email, rec.Code, rec.Header().Get("Location"))
		}
		if !testutil.HasFlash(testutil.FlashesAfter(t, f.sm, rec), auth.FlashInfo, unsubscribedMsg) {
			t.Errorf("%s: missing confirmation", email)
		}
	}

	ctx, cancel := testutil.TestContext()
	defer cancel()
	if ok, _ := f.subs.IsSubscribed(ctx, "member@example.com"); ok {
		t.Error("member still subscribed")
	}
}

func TestUnsubscribe_Page(t *testing.T) {
	f := newFixture(t)

	rec := httptest.NewRecorder()
	Routes(f.h).ServeHTTP(rec, testutil.WithCSRFToken(httptest.NewRequest(http.MethodGet, "/unsubscribe?email=A@B.com", nil)))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `value="a@b.com"`) {
		t.Error("email not prefilled")
	}

	rec = f.post("/unsubscribe", "nope", "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "A valid email address is required.") {
		t.Errorf("invalid unsubscribe: status %d", rec.Code)
	}
}

func TestBackTo(t *testing.T) {
	tests := []struct {
		name    string
		referer string
		want    string
	}{
		{"none", "", "/"},
		{"same host", "http://example.com/services?service=consulting", "/services?service=consulting"},
		{"relative", "/contact", "/contact"},
		{"other host", "https://evil.test/phish", "/"},
		{"scheme relative", "//evil.test/x", "/"},
		{"not a path", "javascript:alert(1)", "/"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/newsletter/subscribe", nil)
			if tt.referer != "" {
				req.Header.Set("Referer", tt.referer)
			}
			if got := backTo(req); got != tt.want {
				t.Errorf("backTo(%q) = %q, want %q", tt.referer, got, tt.want)
			}
		})
	}
}
