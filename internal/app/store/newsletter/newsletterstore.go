// internal/app/store/newsletter/newsletterstore.go
package newsletterstore

import (
	"context"
	"time"

	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"github.com/juhiii45/EcoReborn/internal/app/system/normalize"
	"github.com/juhiii45/EcoReborn/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

// Outcome reports what Subscribe did.
type Outcome int

const (
	Subscribed Outcome = iota
	Resubscribed
	AlreadySubscribed
)

// Store provides access to the newsletter_subscribers collection.
type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("newsletter_subscribers")}
}

// Subscribe adds email to the list. A previously unsubscribed address is
// reactivated. The unique index on email settles concurrent subscribes.
func (s *Store) Subscribe(ctx context.Context, email string) (Outcome, error) {
	email = normalize.Email(email)
	now := time.Now().UTC()

	res, err := s.c.UpdateOne(ctx,
		bson.M{"email": email, "unsubscribed": true},
		bson.M{"$set": bson.M{"unsubscribed": false, "updated_at": now}},
	)
	if err != nil {
		return 0, err
	}
	if res.MatchedCount > 0 {
		return Resubscribed, nil
	}

	sub := models.NewsletterSubscriber{
		ID:        primitive.NewObjectID(),
		Email:     email,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if _, err := s.c.InsertOne(ctx, sub); err != nil {
		if wafflemongo.IsDup(err) {
			return AlreadySubscribed, nil
		}
		return 0, err
	}
	return Subscribed, nil
}

// Unsubscribe flags email as unsubscribed. Unknown addresses are ignored so
// the caller can answer identically either way.
func (s *Store) Unsubscribe(ctx context.Context, email string) error {
	_, err := s.c.UpdateOne(ctx,
		bson.M{"email": normalize.Email(email)},
		bson.M{"$set": bson.M{"unsubscribed": true, "updated_at": time.Now().UTC()}},
	)
	return err
}

// IsSubscribed reports whether email is on the list and active.
func (s *Store) IsSubscribed(ctx context.Context, email string) (bool, error) {
	n, err := s.c.CountDocuments(ctx, bson.M{"email": normalize.Email(email), "unsubscribed": false})
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// CountActive returns the number of addresses currently subscribed.
func (s *Store) CountActive(ctx context.Context) (int64, error) {
	return s.c.CountDocuments(ctx, bson.M{"unsubscribed": false})
}
