package auth

import (
	"context"
	"net/http"

	"github.com/juhiii45/EcoReborn/internal/app/system/normalize"
	"github.com/juhiii45/EcoReborn/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// SessionUser is the signed-in user as seen by handlers.
type SessionUser struct {
	ID    string
	Name  string
	Email string
	Role  string
	Token string // random per sign-in
}

// UserID parses ID, returning NilObjectID when it is malformed.
func (u *SessionUser) UserID() primitive.ObjectID {
	oid, err := primitive.ObjectIDFromHex(u.ID)
	if err != nil {
		return primitive.NilObjectID
	}
	return oid
}

// IsAdmin reports whether the user carries the admin role.
func (u *SessionUser) IsAdmin() bool {
	return normalize.Role(u.Role) == models.RoleAdmin
}

// UserFetcher loads the current state of a signed-in user.
//
// It returns (nil, nil) when the account is gone or deactivated, which ends
// the session. A non-nil error means the lookup itself failed; the session is
// then kept with the values stored in the cookie.
type UserFetcher interface {
	FetchUser(ctx context.Context, userID string) (*SessionUser, error)
}

type userCtxKey struct{}

// CurrentUser returns the signed-in user, if any.
func CurrentUser(r *http.Request) (*SessionUser, bool) {
	u, ok := r.Context().Value(userCtxKey{}).(*SessionUser)
	return u, ok
}

func withUser(r *http.Request, u *SessionUser) *http.Request {
	return r.WithContext(context.WithValue(r.Context(), userCtxKey{}, u))
}

// WithTestUser returns r carrying u as the signed-in user.
func WithTestUser(r *http.Request, u *SessionUser) *http.Request {
	return withUser(r, u)
}
