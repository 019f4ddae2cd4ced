// internal/app/store/services/servicestore.go
package servicestore

import (
	"context"
	"errors"
	"time"

	"github.com/juhiii45/EcoReborn/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// ErrNotFound is returned when no service has the requested slug.
var ErrNotFound = errors.New("service not found")

// Store provides access to the services collection.
type Store struct {
	c *mongo.Collection
}

// New creates a new service store.
func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("services")}
}

// GetBySlug returns a service by its slug.
func (s *Store) GetBySlug(ctx context.Context, slug string) (models.Service, error) {
	var svc models.Service
	err := s.c.FindOne(ctx, bson.M{"slug": slug}).Decode(&svc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.Service{}, ErrNotFound
		}
		return models.Service{}, err
	}
	return svc, nil
}

// Upsert creates or updates a service by slug.
func (s *Store) Upsert(ctx context.Context, svc models.Service) error {
	now := time.Now().UTC()
	svc.UpdatedAt = &now

	filter := bson.M{"slug": svc.Slug}
	update := bson.M{
		"$set": bson.M{
			"name":        svc.Name,
			"description": svc.Description,
			"pricing":     svc.Pricing,
			"position":    svc.Position,
			"updated_at":  svc.UpdatedAt,
		},
		"$setOnInsert": bson.M{
			"_id":  primitive.NewObjectID(),
			"slug": svc.Slug,
		},
	}

	opts := options.Update().SetUpsert(true)
	_, err := s.c.UpdateOne(ctx, filter, update, opts)
	return err
}

// List returns the catalog in display order.
func (s *Store) List(ctx context.Context) ([]models.Service, error) {
	opts := options.Find().SetSort(bson.D{{Key: "position", Value: 1}, {Key: "slug", Value: 1}})
	cur, err := s.c.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var services []models.Service
	if err := cur.All(ctx, &services); err != nil {
		return nil, err
	}
	return services, nil
}

// Exists checks if a service with the given slug exists.
func (s *Store) Exists(ctx context.Context, slug string) (bool, error) {
	count, err := s.c.CountDocuments(ctx, bson.M{"slug": slug})
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
