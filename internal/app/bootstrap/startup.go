// internal/app/bootstrap/startup.go
package bootstrap

import (
	"context"

	"github.com/dalemusser/waffle/config"
	"github.com/juhiii45/EcoReborn/internal/app/resources"
	userstore "github.com/juhiii45/EcoReborn/internal/app/store/users"
	"github.com/juhiii45/EcoReborn/internal/app/system/seeding"
	"github.com/juhiii45/EcoReborn/internal/app/system/tasks"
	"github.com/juhiii45/EcoReborn/internal/app/system/timeouts"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// Startup runs once after DB connections and schema setup are complete, but
// before the HTTP handler is built and requests are served.
//
// Returning a non-nil error aborts startup. The context is cancelled if the
// process is asked to shut down while Startup is running.
func Startup(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) error {
	resources.LoadSharedTemplates()

	eff := timeouts.Configure(timeouts.Config{
		Short:  appCfg.TimeoutShort,
		Medium: appCfg.TimeoutMedium,
		Long:   appCfg.TimeoutLong,
	})
	logger.Info("request timeouts",
		zap.Duration("short", eff.Short),
		zap.Duration("medium", eff.Medium),
		zap.Duration("long", eff.Long))

	// Note: Indexes are created in EnsureSchema via indexes.EnsureAll().

	if appCfg.SeedAdminEmail != "" {
		seed := seeding.AdminSeed{
			Email:    appCfg.SeedAdminEmail,
			Name:     appCfg.SeedAdminName,
			Password: appCfg.SeedAdminPassword,
		}
		if err := seeding.SeedAdmin(ctx, userstore.New(deps.MongoDatabase), deps.Audit, seed, logger); err != nil {
			logger.Error("failed to seed admin user", zap.Error(err))
			return err
		}
	}

	startTaskRunner(deps.MongoDatabase, appCfg, logger)

	return nil
}

// taskRunner is the global task runner instance, used for graceful shutdown.
var taskRunner *tasks.Runner

// startTaskRunner registers the retention jobs and starts them.
func startTaskRunner(db *mongo.Database, appCfg AppConfig, logger *zap.Logger) {
	taskRunner = tasks.New(logger)

	taskRunner.Register(tasks.LoginAttemptCleanupJob(db, logger, appCfg.LoginAttemptRetention))
	taskRunner.Register(tasks.UsedResetTokenCleanupJob(db, logger))
	taskRunner.Register(tasks.AuditRetentionJob(db, logger, appCfg.AuditRetention))
	taskRunner.Register(tasks.LedgerRetentionJob(db, logger, appCfg.LedgerRetention))

	taskRunner.Start()
	logger.Info("background jobs started", zap.Strings("jobs", taskRunner.Names()))
}
