// internal/domain/models/loginattempt.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// LoginAttempt records one login try, successful or not.
// Attempts are immutable; the whole history for an email is cleared after
// a successful login.
type LoginAttempt struct {
	ID        primitive.ObjectID `bson:"_id,omitempty"`
	Email     string             `bson:"email"` // normalized
	Success   bool               `bson:"success"`
	IPAddress string             `bson:"ip_address"`
	Timestamp time.Time          `bson:"timestamp"`
}
