// internal/app/store/users/fetcher.go
package userstore

import (
	"context"
	"errors"

	"github.com/juhiii45/EcoReborn/internal/app/system/auth"
	"github.com/juhiii45/EcoReborn/internal/app/system/normalize"
	"github.com/juhiii45/EcoReborn/internal/app/system/timeouts"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

// Fetcher loads the signed-in user for auth.SessionManager on each request.
type Fetcher struct {
	users  *mongo.Collection
	logger *zap.Logger
}

var _ auth.UserFetcher = (*Fetcher)(nil)

func NewFetcher(db *mongo.Database, logger *zap.Logger) *Fetcher {
	return &Fetcher{users: db.Collection(collection), logger: logger}
}

// sessionDoc is the projection read per request; the hash stays in MongoDB.
type sessionDoc struct {
	ID     primitive.ObjectID `bson:"_id"`
	Name   string             `bson:"name"`
	Email  string             `bson:"email"`
	Role   string             `bson:"role"`
	Active bool               `bson:"active"`
}

// FetchUser returns (nil, nil) for a malformed id, a missing account and a
// deactivated one. Only lookup failures are errors.
func (f *Fetcher) FetchUser(ctx context.Context, userID string) (*auth.SessionUser, error) {
	oid, err := primitive.ObjectIDFromHex(userID)
	if err != nil {
		return nil, nil
	}

	ctx, cancel := timeouts.WithTimeout(ctx, timeouts.Short(), f.logger, "session user")
	defer cancel()

	var doc sessionDoc
	opts := options.FindOne().SetProjection(bson.D{
		{Key: "name", Value: 1}, {Key: "email", Value: 1}, {Key: "role", Value: 1}, {Key: "active", Value: 1},
	})
	switch err := f.users.FindOne(ctx, bson.D{{Key: "_id", Value: oid}}, opts).Decode(&doc); {
	case errors.Is(err, mongo.ErrNoDocuments):
		return nil, nil
	case err != nil:
		return nil, err
	case !doc.Active:
		return nil, nil
	}

	return &auth.SessionUser{
		ID:    doc.ID.Hex(),
		Name:  doc.Name,
		Email: doc.Email,
		Role:  normalize.Role(doc.Role),
	}, nil
}
