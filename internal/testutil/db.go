// Package testutil holds shared fixtures for package tests: a throwaway
// MongoDB database per test, booted templates and request helpers.
package testutil

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/juhiii45/EcoReborn/internal/app/system/indexes"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	// TestDBURI can be pointed elsewhere by editing this constant; tests
	// expect a local mongod.
	TestDBURI = "mongodb://localhost:27017"
	// TestDBName prefixes every per-test database.
	TestDBName = "ecoreborn_test"

	// Mongo rejects database names longer than 63 bytes.
	maxDBName = 63
)

var shared struct {
	once   sync.Once
	client *mongo.Client
	err    error
}

func sharedClient() (*mongo.Client, error) {
	shared.once.Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		opts := options.Client().
			ApplyURI(TestDBURI).
			SetMaxPoolSize(200).
			SetMinPoolSize(10).
			SetMaxConnIdleTime(30 * time.Second).
			SetServerSelectionTimeout(10 * time.Second)

		c, err := mongo.Connect(ctx, opts)
		if err == nil {
			err = c.Ping(ctx, nil)
		}
		shared.client, shared.err = c, err
	})
	return shared.client, shared.err
}

// SetupTestDB hands the test an empty database named after it, with the
// production indexes in place. The database is dropped on cleanup.
func SetupTestDB(t *testing.T) *mongo.Database {
	t.Helper()

	c, err := sharedClient()
	if err != nil {
		t.Fatalf("connect to test MongoDB at %s: %v", TestDBURI, err)
	}
	db := c.Database(dbNameFor(t.Name()))

	ctx, cancel := TestContext()
	defer cancel()
	if err := db.Drop(ctx); err != nil {
		t.Fatalf("drop %s: %v", db.Name(), err)
	}
	if err := indexes.EnsureAll(ctx, db); err != nil {
		t.Fatalf("ensure indexes: %v", err)
	}

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := db.Drop(ctx); err != nil {
			t.Logf("cleanup: drop %s: %v", db.Name(), err)
		}
	})
	return db
}

// dbNameFor maps a test name such as "TestLogin/five_failures" onto a legal
// database name.
func dbNameFor(testName string) string {
	var b strings.Builder
	b.WriteString(TestDBName)
	b.WriteByte('_')
	for _, r := range testName {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
		if b.Len() >= maxDBName {
			break
		}
	}
	name := b.String()
	if len(name) > maxDBName {
		name = name[:maxDBName]
	}
	return name
}

// TestContext bounds a test's database calls.
func TestContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 30*time.Second)
}
