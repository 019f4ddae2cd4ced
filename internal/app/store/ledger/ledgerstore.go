// internal/app/store/ledger/ledgerstore.go
package ledgerstore

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const Collection = "request_ledger"

// Entry is one recorded request. Request bodies are never kept; the routes
// that get recorded carry passwords and contact details.
type Entry struct {
	ID           primitive.ObjectID `bson:"_id"`
	RequestID    string             `bson:"request_id"`
	Method       string             `bson:"method"`
	Path         string             `bson:"path"`
	RemoteIP     string             `bson:"remote_ip"`
	UserAgent    string             `bson:"user_agent,omitempty"`
	ActorID      string             `bson:"actor_id,omitempty"`
	ActorName    string             `bson:"actor_name,omitempty"`
	StatusCode   int                `bson:"status_code"`
	ResponseSize int64              `bson:"response_size"`
	ErrorClass   string             `bson:"error_class,omitempty"`
	DurationMs   float64            `bson:"duration_ms"`
	StartedAt    time.Time          `bson:"started_at"`
}

type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection(Collection)}
}

func (s *Store) Create(ctx context.Context, entry Entry) error {
	if entry.ID.IsZero() {
		entry.ID = primitive.NewObjectID()
	}
	if _, err := s.c.InsertOne(ctx, entry); err != nil {
		return fmt.Errorf("insert ledger entry: %w", err)
	}
	return nil
}

// RecentErrors returns the newest entries whose status is 400 or above.
// limit defaults to 10 and is capped at 100.
func (s *Store) RecentErrors(ctx context.Context, limit int) ([]Entry, error) {
	switch {
	case limit < 1:
		limit = 10
	case limit > 100:
		limit = 100
	}

	cur, err := s.c.Find(ctx,
		bson.D{{Key: "status_code", Value: bson.D{{Key: "$gte", Value: 400}}}},
		options.Find().SetSort(bson.D{{Key: "started_at", Value: -1}}).SetLimit(int64(limit)))
	if err != nil {
		return nil, fmt.Errorf("find ledger errors: %w", err)
	}
	entries := []Entry{}
	if err := cur.All(ctx, &entries); err != nil {
		return nil, fmt.Errorf("decode ledger errors: %w", err)
	}
	return entries, nil
}

// statusClass maps $status_code onto "2xx".."5xx" inside a pipeline.
func statusClass() bson.D {
	branch := func(below int, class string) bson.D {
		return bson.D{
			{Key: "case", Value: bson.D{{Key: "$lt", Value: bson.A{"$status_code", below}}}},
			{Key: "then", Value: class},
		}
	}
	return bson.D{{Key: "$switch", Value: bson.D{
		{Key: "branches", Value: bson.A{branch(300, "2xx"), branch(400, "3xx"), branch(500, "4xx")}},
		{Key: "default", Value: "5xx"},
	}}}
}

// CountByClass counts entries started at or after since, keyed by status
// class.
func (s *Store) CountByClass(ctx context.Context, since time.Time) (map[string]int64, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.D{{Key: "started_at", Value: bson.D{{Key: "$gte", Value: since}}}}}},
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: statusClass()},
			{Key: "count", Value: bson.D{{Key: "$sum", Value: 1}}},
		}}},
	}

	cur, err := s.c.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("aggregate ledger classes: %w", err)
	}
	var rows []struct {
		Class string `bson:"_id"`
		Count int64  `bson:"count"`
	}
	if err := cur.All(ctx, &rows); err != nil {
		return nil, fmt.Errorf("decode ledger classes: %w", err)
	}

	counts := make(map[string]int64, len(rows))
	for _, r := range rows {
		counts[r.Class] = r.Count
	}
	return counts, nil
}

// DeleteOlderThan removes entries started before cutoff and reports how many
// went.
func (s *Store) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.c.DeleteMany(ctx, bson.D{{Key: "started_at", Value: bson.D{{Key: "$lt", Value: cutoff}}}})
	if err != nil {
		return 0, fmt.Errorf("prune ledger: %w", err)
	}
	return res.DeletedCount, nil
}
