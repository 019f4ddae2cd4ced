package loginattempts

import (
	"testing"
	"time"

	"github.com/juhiii45/EcoReborn/internal/testutil"
	"go.mongodb.org/mongo-driver/bson"
)

func TestStore_Record(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	if err := store.Record(ctx, " Weaver@Example.com", false, "203.0.113.7"); err != nil {
		t.Fatalf("Record() error = %v", err)
	}

	got, err := store.ListByEmail(ctx, "weaver@example.com", 10)
	if err != nil {
		t.Fatalf("ListByEmail() error = %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("ListByEmail() returned %d records, want 1", len(got))
	}
	if got[0].Email != "weaver@example.com" {
		t.Errorf("Email = %q, want normalized", got[0].Email)
	}
	if got[0].Success {
		t.Error("Success = true, want false")
	}
	if got[0].IPAddress != "203.0.113.7" {
		t.Errorf("IPAddress = %q", got[0].IPAddress)
	}
	if got[0].Timestamp.IsZero() {
		t.Error("Timestamp not set")
	}
}

func TestStore_RecentFailedCount(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	email := "count@example.com"
	for i := 0; i < 3; i++ {
		if err := store.Record(ctx, email, false, "127.0.0.1"); err != nil {
			t.Fatalf("Record() error = %v", err)
		}
	}
	// Successes never count toward the lockout.
	if err := store.Record(ctx, email, true, "127.0.0.1"); err != nil {
		t.Fatalf("Record() error = %v", err)
	}
	// Other emails are independent.
	if err := store.Record(ctx, "other@example.com", false, "127.0.0.1"); err != nil {
		t.Fatalf("Record() error = %v", err)
	}

	n, err := store.RecentFailedCount(ctx, "COUNT@example.com", 15*time.Minute)
	if err != nil {
		t.Fatalf("RecentFailedCount() error = %v", err)
	}
	if n != 3 {
		t.Errorf("RecentFailedCount() = %d, want 3", n)
	}
}

func TestStore_RecentFailedCount_Window(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	email := "window@example.com"
	base := time.Now().UTC()

	// Two failures 20 minutes ago fall outside a 15 minute window.
	store.now = func() time.Time { return base.Add(-20 * time.Minute) }
	_ = store.Record(ctx, email, false, "")
	_ = store.Record(ctx, email, false, "")

	// One failure 5 minutes ago falls inside.
	store.now = func() time.Time { return base.Add(-5 * time.Minute) }
	_ = store.Record(ctx, email, false, "")

	store.now = func() time.Time { return base }

	tests := []struct {
		name   string
		window time.Duration
		want   int
	}{
		{"15 minute window", 15 * time.Minute, 1},
		{"30 minute window", 30 * time.Minute, 3},
		{"1 minute window", time.Minute, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n, err := store.RecentFailedCount(ctx, email, tt.window)
			if err != nil {
				t.Fatalf("RecentFailedCount() error = %v", err)
			}
			if n != tt.want {
				t.Errorf("RecentFailedCount(%v) = %d, want %d", tt.window, n, tt.want)
			}
		})
	}
}

func TestStore_Clear(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	_ = store.Record(ctx, "clear@example.com", false, "")
	_ = store.Record(ctx, "clear@example.com", false, "")
	_ = store.Record(ctx, "keep@example.com", false, "")

	if err := store.Clear(ctx, "Clear@Example.com"); err != nil {
		t.Fatalf("Clear() error = %v", err)
	}

	n, _ := db.Collection("login_attempts").CountDocuments(ctx, bson.M{"email": "clear@example.com"})
	if n != 0 {
		t.Errorf("records for cleared email = %d, want 0", n)
	}
	n, _ = db.Collection("login_attempts").CountDocuments(ctx, bson.M{"email": "keep@example.com"})
	if n != 1 {
		t.Errorf("records for other email = %d, want 1", n)
	}

	// Clearing an email with no history is fine.
	if err := store.Clear(ctx, "nobody@example.com"); err != nil {
		t.Errorf("Clear() on empty history error = %v", err)
	}
}

func TestStore_ListByEmail_Order(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	base := time.Now().UTC()
	for i := 0; i < 3; i++ {
		offset := time.Duration(i) * time.Minute
		store.now = func() time.Time { return base.Add(offset) }
		_ = store.Record(ctx, "order@example.com", i == 2, "")
	}

	got, err := store.ListByEmail(ctx, "order@example.com", 2)
	if err != nil {
		t.Fatalf("ListByEmail() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("ListByEmail() returned %d, want 2", len(got))
	}
	if !got[0].Success {
		t.Error("newest record should come first")
	}
	if got[0].Timestamp.Before(got[1].Timestamp) {
		t.Error("records not sorted newest first")
	}
}

func TestStore_DeleteOlderThan(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	now := time.Now().UTC()
	store.now = func() time.Time { return now.Add(-48 * time.Hour) }
	_ = store.Record(ctx, "old@x.com", false, "")
	store.now = func() time.Time { return now }
	_ = store.Record(ctx, "new@x.com", false, "")

	n, err := store.DeleteOlderThan(ctx, now.Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("DeleteOlderThan() error = %v", err)
	}
	if n != 1 {
		t.Errorf("deleted = %d, want 1", n)
	}
	if left, _ := db.Collection("login_attempts").CountDocuments(ctx, bson.M{"email": "new@x.com"}); left != 1 {
		t.Error("recent attempt was removed")
	}
}
