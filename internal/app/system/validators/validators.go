// Package validators creates the app's collections and attaches $jsonSchema
// validators to the ones whose documents come from user input.
package validators

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/juhiii45/EcoReborn/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// Collection pairs a collection with its validator; Schema is nil for
// collections written only by the server.
type Collection struct {
	Name   string
	Schema bson.M
}

// Collections lists every collection the app uses.
func Collections() []Collection {
	return []Collection{
		{"users", usersSchema()},
		{"login_attempts", loginAttemptsSchema()},
		{"password_reset_tokens", resetTokensSchema()},
		{"services", nil},
		{"service_requests", serviceRequestsSchema()},
		{"contact_messages", contactMessagesSchema()},
		{"newsletter_subscribers", newsletterSchema()},
		{"audit_logs", nil},
		{"request_ledger", nil},
	}
}

// EnsureAll is idempotent. Servers without collMod support (some DocumentDB
// versions) keep their collections unvalidated; that is logged, not failed.
// Every collection is attempted and the failures are joined.
func EnsureAll(ctx context.Context, db *mongo.Database) error {
	log := zap.L().With(zap.String("database", db.Name()))

	var errs []error
	for _, c := range Collections() {
		created, err := ensureCollection(ctx, db, c.Name)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", c.Name, err))
			continue
		}
		if created {
			log.Info("created collection", zap.String("collection", c.Name))
		}
		if c.Schema == nil {
			continue
		}
		switch err := setValidator(ctx, db, c.Name, c.Schema); {
		case err == nil:
			log.Debug("validator ensured", zap.String("collection", c.Name))
		case unsupported(err):
			log.Info("validator skipped, server does not support collMod", zap.String("collection", c.Name))
		default:
			errs = append(errs, fmt.Errorf("%s validator: %w", c.Name, err))
		}
	}
	return errors.Join(errs...)
}

func collectionExists(ctx context.Context, db *mongo.Database, name string) (bool, error) {
	names, err := db.ListCollectionNames(ctx, bson.D{{Key: "name", Value: name}})
	if err != nil {
		return false, err
	}
	return len(names) > 0, nil
}

// ensureCollection reports created only when this call made the collection.
// A create that loses a race with another instance counts as existing.
func ensureCollection(ctx context.Context, db *mongo.Database, name string) (created bool, err error) {
	if exists, err := collectionExists(ctx, db, name); err == nil && exists {
		return false, nil
	}
	if err := db.CreateCollection(ctx, name); err != nil {
		if namespaceExists(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func setValidator(ctx context.Context, db *mongo.Database, name string, schema bson.M) error {
	return db.RunCommand(ctx, bson.D{
		{Key: "collMod", Value: name},
		{Key: "validator", Value: schema},
		{Key: "validationLevel", Value: "moderate"},
		{Key: "validationAction", Value: "error"},
	}).Err()
}

// Server error codes.
const (
	codeNamespaceExists = 48
	codeCommandNotFound = 59
	codeNotImplemented  = 115
)

// commandMatches checks the server code first and falls back to the message,
// since some Mongo-compatible servers send no code.
func commandMatches(err error, code int32, phrases ...string) bool {
	if err == nil {
		return false
	}
	var ce mongo.CommandError
	if errors.As(err, &ce) && ce.Code == code {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, p := range phrases {
		if strings.Contains(msg, p) {
			return true
		}
	}
	return false
}

func namespaceExists(err error) bool {
	return commandMatches(err, codeNamespaceExists, "already exists", "namespace exists")
}

func unsupported(err error) bool {
	return commandMatches(err, codeCommandNotFound, "no such command") ||
		commandMatches(err, codeNotImplemented, "not implemented", "not supported")
}

// object builds a $jsonSchema for a document with the given required fields.
func object(required []string, props bson.M) bson.M {
	req := make(bson.A, len(required))
	for i, r := range required {
		req[i] = r
	}
	return bson.M{"$jsonSchema": bson.M{
		"bsonType":   "object",
		"required":   req,
		"properties": props,
	}}
}

func str(min, max int) bson.M {
	m := bson.M{"bsonType": "string"}
	if min > 0 {
		m["minLength"] = min
	}
	if max > 0 {
		m["maxLength"] = max
	}
	return m
}

func enum(values ...string) bson.M {
	a := make(bson.A, len(values))
	for i, v := range values {
		a[i] = v
	}
	return bson.M{"enum": a}
}

var (
	date    = bson.M{"bsonType": "date"}
	boolean = bson.M{"bsonType": "bool"}
)

func usersSchema() bson.M {
	return object([]string{"email", "password_hash", "name", "role", "active", "created_at"}, bson.M{
		"email":         str(3, 254),
		"password_hash": str(1, 0),
		"name":          bson.M{"bsonType": "string", "minLength": 1, "pattern": `.*\S.*`},
		"role":          enum(models.AllRoles()...),
		"active":        boolean,
		"created_at":    date,
		"last_login":    bson.M{"bsonType": bson.A{"date", "null"}},
	})
}

func loginAttemptsSchema() bson.M {
	return object([]string{"email", "success", "timestamp"}, bson.M{
		"email":     str(0, 254),
		"success":   boolean,
		"timestamp": date,
	})
}

func resetTokensSchema() bson.M {
	return object([]string{"user_id", "token", "expires_at", "used", "created_at"}, bson.M{
		"user_id":    bson.M{"bsonType": "objectId"},
		"token":      str(1, 0),
		"expires_at": date,
		"used":       boolean,
		"created_at": date,
	})
}

func serviceRequestsSchema() bson.M {
	return object([]string{"service_name", "name", "email", "message", "status", "created_at"}, bson.M{
		"service_name": str(1, 0),
		"name":         str(1, 100),
		"email":        str(3, 254),
		"message":      str(0, 2000),
		"status":       enum(models.RequestPending, models.RequestContacted, models.RequestCompleted),
		"created_at":   date,
	})
}

func contactMessagesSchema() bson.M {
	return object([]string{"name", "email", "subject", "message", "status", "created_at"}, bson.M{
		"name":       str(1, 100),
		"email":      str(3, 254),
		"subject":    str(0, 200),
		"message":    str(0, 5000),
		"status":     enum(models.MessageUnread, models.MessageRead),
		"created_at": date,
	})
}

func newsletterSchema() bson.M {
	return object([]string{"email", "unsubscribed"}, bson.M{
		"email":        str(3, 0),
		"unsubscribed": boolean,
	})
}
