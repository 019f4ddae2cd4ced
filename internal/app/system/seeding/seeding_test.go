package seeding

import (
	"testing"

	servicestore "github.com/juhiii45/EcoReborn/internal/app/store/services"
	userstore "github.com/juhiii45/EcoReborn/internal/app/store/users"
	"github.com/juhiii45/EcoReborn/internal/app/system/authutil"
	"github.com/juhiii45/EcoReborn/internal/domain/models"
	"github.com/juhiii45/EcoReborn/internal/testutil"
	"go.uber.org/zap"
)

const adminPassword = "Loom&Needle2024"

func TestSeedAll_ServicesOnce(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	if err := SeedAll(ctx, db, zap.NewNop()); err != nil {
		t.Fatalf("SeedAll() error = %v", err)
	}

	store := servicestore.New(db)
	edited := models.Service{Slug: models.ServiceConsulting, Name: "Consulting (edited)", Position: 4}
	if err := store.Upsert(ctx, edited); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}

	if err := SeedAll(ctx, db, zap.NewNop()); err != nil {
		t.Fatalf("second SeedAll() error = %v", err)
	}

	list, err := store.List(ctx)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(list) != len(models.DefaultServices()) {
		t.Errorf("services = %d, want %d", len(list), len(models.DefaultServices()))
	}
	got, _ := store.GetBySlug(ctx, models.ServiceConsulting)
	if got.Name != "Consulting (edited)" {
		t.Errorf("reseeding overwrote an edited entry: %q", got.Name)
	}
}

func TestSeedAdmin_CreatesAccount(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	users := userstore.New(db)

	err := SeedAdmin(ctx, users, nil, AdminSeed{Email: "Admin@Ecoreborn.test", Password: adminPassword}, zap.NewNop())
	if err != nil {
		t.Fatalf("SeedAdmin() error = %v", err)
	}

	u, err := users.FindByEmail(ctx, "admin@ecoreborn.test")
	if err != nil {
		t.Fatalf("FindByEmail() error = %v", err)
	}
	if u.Role != models.RoleAdmin || u.Name != "Administrator" || !u.Active {
		t.Errorf("seeded admin = %+v", u)
	}
	if !authutil.CheckPassword(adminPassword, u.PasswordHash) {
		t.Error("seeded admin password does not verify")
	}

	// Second run is a no-op.
	if err := SeedAdmin(ctx, users, nil, AdminSeed{Email: "admin@ecoreborn.test", Password: adminPassword}, zap.NewNop()); err != nil {
		t.Errorf("second SeedAdmin() error = %v", err)
	}
	if n, _ := users.Count(ctx, nil); n != 1 {
		t.Errorf("users = %d, want 1", n)
	}
}

func TestSeedAdmin_PromotesExistingUser(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	users := userstore.New(db)

	if _, err := users.Create(ctx, userstore.CreateInput{Email: "owner@ecoreborn.test", Password: "Original#Pass1", Name: "Owner"}); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if err := SeedAdmin(ctx, users, nil, AdminSeed{Email: "owner@ecoreborn.test", Password: adminPassword}, zap.NewNop()); err != nil {
		t.Fatalf("SeedAdmin() error = %v", err)
	}

	u, _ := users.FindByEmail(ctx, "owner@ecoreborn.test")
	if u.Role != models.RoleAdmin {
		t.Errorf("Role = %q, want admin", u.Role)
	}
	if !authutil.CheckPassword("Original#Pass1", u.PasswordHash) {
		t.Error("promotion must keep the existing password")
	}
}

func TestSeedAdmin_Disabled(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	users := userstore.New(db)

	if err := SeedAdmin(ctx, users, nil, AdminSeed{Email: "admin@ecoreborn.test"}, zap.NewNop()); err != nil {
		t.Errorf("SeedAdmin() error = %v", err)
	}
	if n, _ := users.Count(ctx, nil); n != 0 {
		t.Errorf("users = %d, want 0 without a seed password", n)
	}
}
