// internal/domain/models/user.go
package models

import (
	"slices"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

var roles = []string{RoleUser, RoleAdmin}

// User is an account holder. Email is kept trimmed and lowercased and is
// unique; PasswordHash is bcrypt and is never serialized to JSON.
type User struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Email        string             `bson:"email" json:"email"`
	PasswordHash string             `bson:"password_hash" json:"-"`
	Name         string             `bson:"name" json:"name"`
	Role         string             `bson:"role" json:"role"`
	Active       bool               `bson:"active" json:"active"`
	CreatedAt    time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt    time.Time          `bson:"updated_at" json:"updated_at"`
	LastLogin    *time.Time         `bson:"last_login" json:"last_login,omitempty"`
}

// AllRoles lists the assignable roles.
func AllRoles() []string {
	return slices.Clone(roles)
}

func IsValidRole(role string) bool {
	return slices.Contains(roles, role)
}
