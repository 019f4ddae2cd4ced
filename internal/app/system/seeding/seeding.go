// internal/app/system/seeding/seeding.go
package seeding

import (
	"context"
	"errors"
	"fmt"

	servicestore "github.com/juhiii45/EcoReborn/internal/app/store/services"
	userstore "github.com/juhiii45/EcoReborn/internal/app/store/users"
	"github.com/juhiii45/EcoReborn/internal/app/system/auditlog"
	"github.com/juhiii45/EcoReborn/internal/domain/models"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// SeedAll seeds default data if not already present.
func SeedAll(ctx context.Context, db *mongo.Database, logger *zap.Logger) error {
	if err := seedServices(ctx, db, logger); err != nil {
		return err
	}
	return nil
}

// seedServices inserts catalog entries that are missing. Existing entries
// keep any edits made after the first start.
func seedServices(ctx context.Context, db *mongo.Database, logger *zap.Logger) error {
	store := servicestore.New(db)

	for _, svc := range models.DefaultServices() {
		exists, err := store.Exists(ctx, svc.Slug)
		if err != nil {
			logger.Error("failed to check if service exists",
				zap.String("slug", svc.Slug),
				zap.Error(err))
			return err
		}
		if exists {
			continue
		}
		if err := store.Upsert(ctx, svc); err != nil {
			logger.Error("failed to seed service",
				zap.String("slug", svc.Slug),
				zap.Error(err))
			return err
		}
		logger.Info("seeded service", zap.String("slug", svc.Slug))
	}

	return nil
}

// AdminSeed describes the bootstrap administrator.
type AdminSeed struct {
	Email    string
	Name     string
	Password string
}

// SeedAdmin makes sure an admin account exists for seed.Email. A new
// account is created with seed.Password; an existing account keeps its
// password and is promoted to admin. It does nothing when Email or Password
// is empty.
func SeedAdmin(ctx context.Context, users *userstore.Store, audit *auditlog.Logger, seed AdminSeed, logger *zap.Logger) error {
	if seed.Email == "" || seed.Password == "" {
		return nil
	}
	if seed.Name == "" {
		seed.Name = "Administrator"
	}

	existing, err := users.FindByEmail(ctx, seed.Email)
	switch {
	case err == nil:
		if existing.Role != models.RoleAdmin {
			if err := users.SetRole(ctx, existing.ID, models.RoleAdmin); err != nil {
				return fmt.Errorf("promote admin: %w", err)
			}
			logger.Info("promoted existing user to admin", zap.String("user_id", existing.ID.Hex()))
		}
		audit.AdminSeeded(ctx, existing.ID, existing.Email, false)
		return nil
	case !errors.Is(err, userstore.ErrNotFound):
		return fmt.Errorf("find admin: %w", err)
	}

	u, err := users.Create(ctx, userstore.CreateInput{
		Email:    seed.Email,
		Password: seed.Password,
		Name:     seed.Name,
		Role:     models.RoleAdmin,
	})
	if err != nil {
		return fmt.Errorf("create admin: %w", err)
	}
	logger.Info("seeded admin account", zap.String("user_id", u.ID.Hex()), zap.String("email", u.Email))
	audit.AdminSeeded(ctx, u.ID, u.Email, true)
	return nil
}
