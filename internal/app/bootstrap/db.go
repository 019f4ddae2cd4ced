// internal/app/bootstrap/db.go
package bootstrap

import (
	"context"
	"fmt"

	"github.com/dalemusser/waffle/config"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"github.com/dalemusser/waffle/pantry/storage"
	"github.com/juhiii45/EcoReborn/internal/app/store/audit"
	"github.com/juhiii45/EcoReborn/internal/app/system/auditlog"
	"github.com/juhiii45/EcoReborn/internal/app/system/indexes"
	"github.com/juhiii45/EcoReborn/internal/app/system/mailer"
	"github.com/juhiii45/EcoReborn/internal/app/system/seeding"
	"github.com/juhiii45/EcoReborn/internal/app/system/validators"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// ConnectDB opens the long-lived backends: MongoDB, attachment storage and
// outbound mail. ctx carries WAFFLE's DBConnectTimeout.
func ConnectDB(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, logger *zap.Logger) (DBDeps, error) {
	client, err := connectMongo(ctx, appCfg, logger)
	if err != nil {
		return DBDeps{}, err
	}
	db := client.Database(appCfg.MongoDatabase)

	files, err := openStorage(ctx, appCfg, logger)
	if err != nil {
		return DBDeps{}, err
	}

	mail := newMailer(appCfg, logger)

	return DBDeps{
		MongoClient:   client,
		MongoDatabase: db,
		FileStorage:   files,
		Mailer:        mail,
		Mail:          mailer.NewDispatcher(mail, appCfg.AsyncMail, logger),
		Audit: auditlog.New(audit.New(db), logger, auditlog.Config{
			Auth:  appCfg.AuditLogAuth,
			Admin: appCfg.AuditLogAdmin,
		}),
	}, nil
}

func connectMongo(ctx context.Context, appCfg AppConfig, logger *zap.Logger) (*mongo.Client, error) {
	pool := wafflemongo.DefaultPoolConfig()
	if appCfg.MongoMaxPoolSize > 0 {
		pool.MaxPoolSize = appCfg.MongoMaxPoolSize
	}
	if appCfg.MongoMinPoolSize > 0 {
		pool.MinPoolSize = appCfg.MongoMinPoolSize
	}

	client, err := wafflemongo.ConnectWithPool(ctx, appCfg.MongoURI, appCfg.MongoDatabase, pool)
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	logger.Info("connected to MongoDB",
		zap.String("database", appCfg.MongoDatabase),
		zap.Uint64("max_pool_size", pool.MaxPoolSize),
		zap.Uint64("min_pool_size", pool.MinPoolSize))
	return client, nil
}

// openStorage returns the store contact attachments are written to.
func openStorage(ctx context.Context, appCfg AppConfig, logger *zap.Logger) (storage.Store, error) {
	switch storageKind(appCfg.StorageType) {
	case "s3":
		s, err := storage.NewS3(ctx, storage.S3Config{
			Region:                   appCfg.StorageS3Region,
			Bucket:                   appCfg.StorageS3Bucket,
			Prefix:                   appCfg.StorageS3Prefix,
			CloudFrontURL:            appCfg.StorageCFURL,
			CloudFrontKeyPairID:      appCfg.StorageCFKeyPairID,
			CloudFrontPrivateKeyPath: appCfg.StorageCFKeyPath,
		})
		if err != nil {
			return nil, fmt.Errorf("open s3 storage: %w", err)
		}
		logger.Info("attachment storage ready", zap.String("backend", "s3"),
			zap.String("bucket", appCfg.StorageS3Bucket), zap.String("prefix", appCfg.StorageS3Prefix))
		return s, nil
	case "local":
		s, err := storage.NewLocal(storage.LocalConfig{
			BasePath: appCfg.StorageLocalPath,
			BaseURL:  appCfg.StorageLocalURL,
		})
		if err != nil {
			return nil, fmt.Errorf("open local storage: %w", err)
		}
		logger.Info("attachment storage ready", zap.String("backend", "local"),
			zap.String("path", appCfg.StorageLocalPath))
		return s, nil
	}
	return nil, fmt.Errorf("unknown storage type %q", appCfg.StorageType)
}

// newMailer falls back to the log file alone when no SMTP host is set.
func newMailer(appCfg AppConfig, logger *zap.Logger) *mailer.Mailer {
	m := mailer.New(mailer.Config{
		Host:     appCfg.MailSMTPHost,
		Port:     appCfg.MailSMTPPort,
		User:     appCfg.MailSMTPUser,
		Pass:     appCfg.MailSMTPPass,
		From:     appCfg.MailFrom,
		FromName: appCfg.MailFromName,
		LogPath:  appCfg.MailLogPath,
	}, logger)
	logger.Info("mailer ready",
		zap.Bool("smtp", m.SMTPEnabled()),
		zap.String("host", appCfg.MailSMTPHost),
		zap.String("log_path", appCfg.MailLogPath),
		zap.Bool("async", appCfg.AsyncMail))
	return m
}

// EnsureSchema runs on every boot; each step is idempotent. Validators go
// first because they create the collections the indexes are built on.
func EnsureSchema(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) error {
	db := deps.MongoDatabase
	steps := []struct {
		name string
		run  func(context.Context) error
	}{
		{"collection validators", func(ctx context.Context) error { return validators.EnsureAll(ctx, db) }},
		{"indexes", func(ctx context.Context) error { return indexes.EnsureAll(ctx, db) }},
		{"service catalog", func(ctx context.Context) error { return seeding.SeedAll(ctx, db, logger) }},
	}
	for _, step := range steps {
		logger.Info("ensuring " + step.name)
		if err := step.run(ctx); err != nil {
			logger.Error("schema step failed", zap.String("step", step.name), zap.Error(err))
			return fmt.Errorf("ensure %s: %w", step.name, err)
		}
	}
	logger.Info("database schema ready")
	return nil
}
