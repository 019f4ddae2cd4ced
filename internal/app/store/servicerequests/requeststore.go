// internal/app/store/servicerequests/requeststore.go
package requeststore

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

// Store provides access to the service_requests collection.
type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("service_requests")}
}

// Create stores a pending request.
func (s *Store) Create(ctx context.Context, req models.ServiceRequest) (*models.ServiceRequest, error) {
	req.ID = primitive.NewObjectID()
	req.Email = normalize.Email(req.Email)
	req.Status = models.RequestPending
	if req.CreatedAt.IsZero() {
		req.CreatedAt = time.Now().UTC()
	}
	if _, err := s.c.InsertOne(ctx, req); err != nil {
		return nil, err
	}
	return &req, nil
}

// ListByEmail returns the requests submitted with email, newest first.
func (s *Store) ListByEmail(ctx context.Context, email string, limit int64) ([]models.ServiceRequest, error) {
	return s.find(ctx, bson.M{"email": normalize.Email(email)}, limit)
}

// List returns the newest requests across all submitters.
func (s *Store) List(ctx context.Context, limit int64) ([]models.ServiceRequest, error) {
	return s.find(ctx, bson.M{}, limit)
}

func (s *Store) find(ctx context.Context, filter bson.M, limit int64) ([]models.ServiceRequest, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetLimit(limit)

	cur, err := s.c.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []models.ServiceRequest
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// CountPending returns the number of requests nobody has picked up yet.
func (s *Store) CountPending(ctx context.Context) (int64, error) {
	return s.c.CountDocuments(ctx, bson.M{"status": models.RequestPending})
}
