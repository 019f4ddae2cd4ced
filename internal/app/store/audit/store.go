// internal/app/store/audit/store.go
package audit

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Collection holds one document per recorded event.
const Collection = "audit_logs"

const (
	CategoryAuth  = "auth"
	CategoryAdmin = "admin"
)

// Auth events.
const (
	EventSignup                   = "signup"
	EventLoginSuccess             = "login_success"
	EventLoginFailedUserNotFound  = "login_failed_user_not_found"
	EventLoginFailedWrongPassword = "login_failed_wrong_password"
	EventLoginFailedUserDisabled  = "login_failed_user_disabled"
	EventLoginLockedOut           = "login_locked_out"
	EventLogout                   = "logout"
	EventPasswordResetRequested   = "password_reset_requested"
	EventPasswordResetCompleted   = "password_reset_completed"
)

// Admin events.
const (
	EventAdminSeeded       = "admin_seeded"
	EventMessageMarkedRead = "message_marked_read"
)

// DefaultLimit caps List when the filter sets no limit.
const DefaultLimit = 100

// Event is one audit record. UserID is the account the event is about;
// ActorID is set only when someone else (an admin) performed it.
type Event struct {
	ID            primitive.ObjectID  `bson:"_id,omitempty"`
	CreatedAt     time.Time           `bson:"created_at"`
	Category      string              `bson:"category"`
	EventType     string              `bson:"event_type"`
	UserID        *primitive.ObjectID `bson:"user_id,omitempty"`
	ActorID       *primitive.ObjectID `bson:"actor_id,omitempty"`
	Email         string              `bson:"email,omitempty"`
	IP            string              `bson:"ip"`
	UserAgent     string              `bson:"user_agent,omitempty"`
	Success       bool                `bson:"success"`
	FailureReason string              `bson:"failure_reason,omitempty"`
	Details       map[string]string   `bson:"details,omitempty"`
}

// Filter selects events. Zero fields match everything; Since and Until are
// inclusive bounds on CreatedAt.
type Filter struct {
	UserID    *primitive.ObjectID
	Email     string
	Category  string
	EventType string
	Since     *time.Time
	Until     *time.Time
	Limit     int64
	Offset    int64
}

func (f Filter) match() bson.D {
	m := bson.D{}
	add := func(key string, v any) { m = append(m, bson.E{Key: key, Value: v}) }

	if f.UserID != nil {
		add("user_id", *f.UserID)
	}
	if f.Email != "" {
		add("email", f.Email)
	}
	if f.Category != "" {
		add("category", f.Category)
	}
	if f.EventType != "" {
		add("event_type", f.EventType)
	}
	if f.Since != nil || f.Until != nil {
		window := bson.M{}
		if f.Since != nil {
			window["$gte"] = f.Since.UTC()
		}
		if f.Until != nil {
			window["$lte"] = f.Until.UTC()
		}
		add("created_at", window)
	}
	return m
}

type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection(Collection)}
}

// Log inserts event, filling in the id and a UTC timestamp when absent.
func (s *Store) Log(ctx context.Context, event Event) error {
	if event.ID.IsZero() {
		event.ID = primitive.NewObjectID()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}
	event.CreatedAt = event.CreatedAt.UTC()
	if _, err := s.c.InsertOne(ctx, event); err != nil {
		return fmt.Errorf("insert audit event: %w", err)
	}
	return nil
}

// List returns one page of matching events, newest first.
func (s *Store) List(ctx context.Context, f Filter) ([]Event, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}}).
		SetSkip(f.Offset).
		SetLimit(limit)

	cur, err := s.c.Find(ctx, f.match(), opts)
	if err != nil {
		return nil, fmt.Errorf("find audit events: %w", err)
	}
	events := []Event{}
	if err := cur.All(ctx, &events); err != nil {
		return nil, fmt.Errorf("decode audit events: %w", err)
	}
	return events, nil
}

// Count ignores the filter's Limit and Offset.
func (s *Store) Count(ctx context.Context, f Filter) (int64, error) {
	return s.c.CountDocuments(ctx, f.match())
}

// Recent is List with no filter.
func (s *Store) Recent(ctx context.Context, n int64) ([]Event, error) {
	return s.List(ctx, Filter{Limit: n})
}

// DeleteOlderThan removes events created before cutoff and reports how many.
func (s *Store) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.c.DeleteMany(ctx, bson.M{"created_at": bson.M{"$lt": cutoff.UTC()}})
	if err != nil {
		return 0, fmt.Errorf("prune audit events: %w", err)
	}
	return res.DeletedCount, nil
}
