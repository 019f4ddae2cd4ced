// internal/app/store/loginattempts/store.go
package loginattempts

import (
	"context"
	"time"

	"github.com/juhiii45/EcoReborn/internal/app/system/normalize"
	"github.com/juhiii45/EcoReborn/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Store is the append-only ledger of login attempts.
// Records are never updated; a successful login deletes the history for that email.
type Store struct {
	c   *mongo.Collection
	now func() time.Time
}

func New(db *mongo.Database) *Store {
	return &Store{
		c:   db.Collection("login_attempts"),
		now: func() time.Time { return time.Now().UTC() },
	}
}

// Record inserts one attempt for the normalized email.
func (s *Store) Record(ctx context.Context, email string, success bool, ip string) error {
	rec := models.LoginAttempt{
		ID:        primitive.NewObjectID(),
		Email:     normalize.Email(email),
		Success:   success,
		IPAddress: ip,
		Timestamp: s.now(),
	}
	_, err := s.c.InsertOne(ctx, rec)
	return err
}

// RecentFailedCount counts failed attempts for email whose timestamp falls
// within the trailing window.
func (s *Store) RecentFailedCount(ctx context.Context, email string, window time.Duration) (int, error) {
	since := s.now().Add(-window)
	n, err := s.c.CountDocuments(ctx, bson.M{
		"email":     normalize.Email(email),
		"success":   false,
		"timestamp": bson.M{"$gte": since},
	})
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

// Clear removes every attempt recorded for email.
func (s *Store) Clear(ctx context.Context, email string) error {
	_, err := s.c.DeleteMany(ctx, bson.M{"email": normalize.Email(email)})
	return err
}

// ListByEmail returns the most recent attempts for email, newest first.
func (s *Store) ListByEmail(ctx context.Context, email string, limit int64) ([]models.LoginAttempt, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "timestamp", Value: -1}}).
		SetLimit(limit)

	cur, err := s.c.Find(ctx, bson.M{"email": normalize.Email(email)}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []models.LoginAttempt
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// DeleteOlderThan removes attempts recorded before cutoff.
func (s *Store) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.c.DeleteMany(ctx, bson.M{"timestamp": bson.M{"$lt": cutoff}})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}
