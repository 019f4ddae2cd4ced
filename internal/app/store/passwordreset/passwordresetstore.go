// internal/app/store/passwordreset/passwordresetstore.go
package passwordreset

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"time"

	"github.com/juhiii45/EcoReborn/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var (
	// ErrInvalidToken covers unknown, used and expired tokens alike.
	ErrInvalidToken = errors.New("invalid or expired token")
	// ErrNotFound is returned by MarkUsed for a token that was never issued.
	ErrNotFound = errors.New("reset token not found")
)

// Store provides access to the password_reset_tokens collection.
type Store struct {
	c   *mongo.Collection
	ttl time.Duration
	now func() time.Time
}

// New creates a new password reset store. Tokens expire ttl after issue.
func New(db *mongo.Database, ttl time.Duration) *Store {
	return &Store{
		c:   db.Collection("password_reset_tokens"),
		ttl: ttl,
		now: func() time.Time { return time.Now().UTC() },
	}
}

// Issue creates a fresh token for the user. The user's record is replaced
// in one upsert and user_id carries a unique index, so at most one token
// per user exists even when requests race.
func (s *Store) Issue(ctx context.Context, userID primitive.ObjectID) (*models.ResetToken, error) {
	token, err := generateToken()
	if err != nil {
		return nil, err
	}

	now := s.now()
	update := bson.M{"$set": bson.M{
		"token":      token,
		"expires_at": now.Add(s.ttl),
		"used":       false,
		"created_at": now,
	}}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)

	var rt models.ResetToken
	err = s.c.FindOneAndUpdate(ctx, bson.M{"user_id": userID}, update, opts).Decode(&rt)
	if mongo.IsDuplicateKeyError(err) {
		// A concurrent upsert inserted first; this attempt now matches it.
		err = s.c.FindOneAndUpdate(ctx, bson.M{"user_id": userID}, update, opts).Decode(&rt)
	}
	if err != nil {
		return nil, err
	}
	return &rt, nil
}

// FindValid returns the token record only while it is unused and unexpired.
// The expiry check runs here as well because the TTL monitor evicts lazily.
func (s *Store) FindValid(ctx context.Context, token string) (*models.ResetToken, error) {
	if token == "" {
		return nil, ErrInvalidToken
	}

	var rt models.ResetToken
	filter := bson.M{
		"token":      token,
		"used":       false,
		"expires_at": bson.M{"$gt": s.now()},
	}
	if err := s.c.FindOne(ctx, filter).Decode(&rt); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrInvalidToken
		}
		return nil, err
	}
	return &rt, nil
}

// Consume marks the token used only if it is still unused and unexpired.
// Of two callers racing on one token exactly one succeeds; the other gets
// ErrInvalidToken.
func (s *Store) Consume(ctx context.Context, token string) error {
	if token == "" {
		return ErrInvalidToken
	}
	res, err := s.c.UpdateOne(ctx,
		bson.M{"token": token, "used": false, "expires_at": bson.M{"$gt": s.now()}},
		bson.M{"$set": bson.M{"used": true}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrInvalidToken
	}
	return nil
}

// Release undoes Consume after the write it guarded has failed.
func (s *Store) Release(ctx context.Context, token string) error {
	_, err := s.c.UpdateOne(ctx,
		bson.M{"token": token, "used": true},
		bson.M{"$set": bson.M{"used": false}},
	)
	return err
}

// MarkUsed flags the token as consumed. Calling it twice is a no-op.
func (s *Store) MarkUsed(ctx context.Context, token string) error {
	res, err := s.c.UpdateOne(ctx,
		bson.M{"token": token},
		bson.M{"$set": bson.M{"used": true}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// generateToken returns 32 random bytes as unpadded URL-safe base64.
func generateToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// DeleteUsed removes consumed tokens issued before cutoff. Unused tokens are
// left to the TTL index.
func (s *Store) DeleteUsed(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.c.DeleteMany(ctx, bson.M{"used": true, "created_at": bson.M{"$lt": cutoff}})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}
