// Package indexes declares every MongoDB index the app relies on and
// reconciles a database against that plan at startup.
package indexes

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

// Index is one wanted index. TTL, when set, is expireAfterSeconds.
type Index struct {
	Name   string
	Keys   bson.D
	Unique bool
	TTL    *int32
}

func (ix Index) model() mongo.IndexModel {
	opts := options.Index().SetName(ix.Name)
	if ix.Unique {
		opts.SetUnique(true)
	}
	if ix.TTL != nil {
		opts.SetExpireAfterSeconds(*ix.TTL)
	}
	return mongo.IndexModel{Keys: ix.Keys, Options: opts}
}

func asc(field string) bson.E  { return bson.E{Key: field, Value: 1} }
func desc(field string) bson.E { return bson.E{Key: field, Value: -1} }

func expireAt() *int32 {
	zero := int32(0)
	return &zero
}

// CollectionPlan is the index set for one collection.
type CollectionPlan struct {
	Collection string
	Indexes    []Index
}

// Plan lists every collection's indexes in the order they are ensured.
func Plan() []CollectionPlan {
	return []CollectionPlan{
		// Emails are stored normalized, so a plain unique index closes the
		// signup race.
		{"users", []Index{
			{Name: "uniq_users_email", Keys: bson.D{asc("email")}, Unique: true},
			{Name: "idx_users_created", Keys: bson.D{desc("created_at")}},
		}},
		{"login_attempts", []Index{
			{Name: "idx_loginattempts_email_success_ts", Keys: bson.D{asc("email"), asc("success"), desc("timestamp")}},
		}},
		{"password_reset_tokens", []Index{
			{Name: "uniq_resettokens_token", Keys: bson.D{asc("token")}, Unique: true},
			{Name: "uniq_resettokens_user", Keys: bson.D{asc("user_id")}, Unique: true},
			{Name: "idx_resettokens_expires_ttl", Keys: bson.D{asc("expires_at")}, TTL: expireAt()},
		}},
		{"services", []Index{
			{Name: "uniq_services_slug", Keys: bson.D{asc("slug")}, Unique: true},
			{Name: "idx_services_position", Keys: bson.D{asc("position")}},
		}},
		{"service_requests", []Index{
			{Name: "idx_servicerequests_email_created", Keys: bson.D{asc("email"), desc("created_at")}},
			{Name: "idx_servicerequests_status_created", Keys: bson.D{asc("status"), desc("created_at")}},
		}},
		{"contact_messages", []Index{
			{Name: "idx_contact_created", Keys: bson.D{desc("created_at")}},
			{Name: "idx_contact_status_created", Keys: bson.D{asc("status"), desc("created_at")}},
		}},
		{"newsletter_subscribers", []Index{
			{Name: "uniq_newsletter_email", Keys: bson.D{asc("email")}, Unique: true},
		}},
		{"audit_logs", []Index{
			{Name: "idx_audit_created", Keys: bson.D{desc("created_at")}},
			{Name: "idx_audit_category_created", Keys: bson.D{asc("category"), desc("created_at")}},
			{Name: "idx_audit_email_created", Keys: bson.D{asc("email"), desc("created_at")}},
			{Name: "idx_audit_user_created", Keys: bson.D{asc("user_id"), desc("created_at")}},
		}},
		{"request_ledger", []Index{
			{Name: "idx_ledger_started", Keys: bson.D{desc("started_at")}},
			{Name: "idx_ledger_status_started", Keys: bson.D{asc("status_code"), desc("started_at")}},
		}},
	}
}

// EnsureAll reconciles every collection in Plan. It keeps going after a
// failure so one bad collection does not hide the others, then returns all
// failures joined.
func EnsureAll(ctx context.Context, db *mongo.Database) error {
	var errs []error
	for _, p := range Plan() {
		if err := ensure(ctx, db.Collection(p.Collection), p.Indexes); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// existingIndex is the subset of listIndexes output that ensure compares.
type existingIndex struct {
	Name   string `bson:"name"`
	Key    bson.D `bson:"key"`
	Unique bool   `bson:"unique"`
	TTL    *int32 `bson:"expireAfterSeconds,omitempty"`
}

// keySig identifies an index by its key pattern, which is what Mongo
// deduplicates on; the name is not.
func keySig(keys bson.D) string {
	parts := make([]string, len(keys))
	for i, kv := range keys {
		parts[i] = fmt.Sprintf("%s:%v", kv.Key, kv.Value)
	}
	return strings.Join(parts, ", ")
}

func sameTTL(a, b *int32) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func listExisting(ctx context.Context, coll *mongo.Collection) (map[string]existingIndex, error) {
	cur, err := coll.Indexes().List(ctx)
	if err != nil {
		return nil, err
	}
	var all []existingIndex
	if err := cur.All(ctx, &all); err != nil {
		return nil, err
	}
	out := make(map[string]existingIndex, len(all))
	for _, ix := range all {
		out[keySig(ix.Key)] = ix
	}
	return out, nil
}

// ensure creates missing indexes and rebuilds any whose uniqueness or TTL
// differs from the plan. An index with the right keys under another name is
// left alone.
func ensure(ctx context.Context, coll *mongo.Collection, want []Index) error {
	log := zap.L().With(zap.String("collection", coll.Name()))

	existing, err := listExisting(ctx, coll)
	if err != nil {
		// A missing collection lists as an error on some servers; treat it
		// as having no indexes and let CreateOne create it.
		log.Debug("list indexes failed", zap.Error(err))
		existing = map[string]existingIndex{}
	}

	var errs []error
	for _, ix := range want {
		start := time.Now()
		sig := keySig(ix.Keys)

		if have, ok := existing[sig]; ok {
			if have.Unique == ix.Unique && sameTTL(have.TTL, ix.TTL) {
				continue
			}
			if _, err := coll.Indexes().DropOne(ctx, have.Name); err != nil {
				errs = append(errs, fmt.Errorf("%s: drop %s: %w", coll.Name(), have.Name, err))
				continue
			}
			log.Info("dropped index with outdated options", zap.String("name", have.Name), zap.String("keys", sig))
		}

		if _, err := coll.Indexes().CreateOne(ctx, ix.model()); err != nil {
			if ix.Unique && isDuplicateKeyErr(err) {
				err = fmt.Errorf("duplicates prevent unique index: %w", err)
			}
			log.Warn("index ensure failed", zap.String("name", ix.Name), zap.String("keys", sig), zap.Error(err))
			errs = append(errs, fmt.Errorf("%s(%s): %w", coll.Name(), ix.Name, err))
			continue
		}
		log.Info("index ensured",
			zap.String("name", ix.Name),
			zap.String("keys", sig),
			zap.Bool("unique", ix.Unique),
			zap.Duration("took", time.Since(start)))
	}
	return errors.Join(errs...)
}

func isDuplicateKeyErr(err error) bool {
	if err == nil {
		return false
	}
	if mongo.IsDuplicateKeyError(err) {
		return true
	}
	return strings.Contains(err.Error(), "E11000")
}
