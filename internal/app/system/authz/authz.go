// Package authz resolves who a request belongs to and what role they hold.
package authz

import (
	"net/http"

	"github.com/juhiii45/EcoReborn/internal/app/system/auth"
	"github.com/juhiii45/EcoReborn/internal/app/system/normalize"
	"github.com/juhiii45/EcoReborn/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Visitor is the role of an anonymous request.
const Visitor = "visitor"

// Identity is the signed-in user as templates and handlers see it. The zero
// ID means nobody is signed in.
type Identity struct {
	ID    primitive.ObjectID
	Name  string
	Email string
	Role  string
}

// Who reads the session user placed on r by auth.LoadSessionUser. A user
// whose id is not a valid ObjectID is treated as anonymous.
func Who(r *http.Request) Identity {
	u, ok := auth.CurrentUser(r)
	if !ok {
		return Identity{Role: Visitor}
	}
	id, err := primitive.ObjectIDFromHex(u.ID)
	if err != nil {
		return Identity{Role: Visitor}
	}
	return Identity{ID: id, Name: u.Name, Email: u.Email, Role: normalize.Role(u.Role)}
}

func (i Identity) SignedIn() bool { return !i.ID.IsZero() }

// Is reports whether the identity is signed in with one of roles.
func (i Identity) Is(roles ...string) bool {
	if !i.SignedIn() {
		return false
	}
	for _, r := range roles {
		if normalize.Role(r) == i.Role {
			return true
		}
	}
	return false
}

func (i Identity) IsAdmin() bool { return i.Is(models.RoleAdmin) }
