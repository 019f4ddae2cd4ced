package testutil

import (
	"context"
	"net/http"
	"net/http/httptest"

	"github.com/juhiii45/EcoReborn/internal/app/system/auth"
	"github.com/juhiii45/EcoReborn/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// gorilla/csrf stores the masked token under this plain string key.
const csrfTokenKey = "gorilla.csrf.Token"

// TestUser is the identity injected by WithUser.
type TestUser struct {
	ID    string
	Name  string
	Email string
	Role  string
}

// AdminUser is a fresh admin identity.
func AdminUser() TestUser {
	return TestUser{
		ID:    primitive.NewObjectID().Hex(),
		Name:  "Test Admin",
		Email: "admin@ecoreborn.test",
		Role:  models.RoleAdmin,
	}
}

// WithUser signs r in as u without going through the session cookie.
func WithUser(r *http.Request, u TestUser) *http.Request {
	return auth.WithTestUser(r, &auth.SessionUser{ID: u.ID, Name: u.Name, Email: u.Email, Role: u.Role})
}

// WithCSRFToken lets handlers that call csrf.Token render outside csrf.Protect.
func WithCSRFToken(r *http.Request) *http.Request {
	return r.WithContext(context.WithValue(r.Context(), csrfTokenKey, "test-csrf-token"))
}

// NewAuthenticatedRequestWithCSRF builds a signed-in request ready for a
// handler that renders a form.
func NewAuthenticatedRequestWithCSRF(method, target string, u TestUser) *http.Request {
	return WithCSRFToken(WithUser(httptest.NewRequest(method, target, nil), u))
}

// Recorder adds assertions to httptest.ResponseRecorder.
type Recorder struct {
	*httptest.ResponseRecorder
}

func NewRecorder() *Recorder {
	return &Recorder{httptest.NewRecorder()}
}

// AssertRedirect fails unless the response is a 3xx to location.
func (r *Recorder) AssertRedirect(t interface{ Errorf(string, ...any) }, location string) {
	if r.Code < 300 || r.Code > 399 {
		t.Errorf("status = %d, want a redirect to %q", r.Code, location)
		return
	}
	if got := r.Header().Get("Location"); got != location {
		t.Errorf("Location = %q, want %q", got, location)
	}
}
