// internal/app/system/tasks/jobs.go
package tasks

import (
	"context"
	"time"

	auditstore "github.com/juhiii45/EcoReborn/internal/app/store/audit"
	ledgerstore "github.com/juhiii45/EcoReborn/internal/app/store/ledger"
	"github.com/juhiii45/EcoReborn/internal/app/store/loginattempts"
	"github.com/juhiii45/EcoReborn/internal/app/store/passwordreset"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// pruneJob runs del with a cutoff of now minus retention. A zero retention
// keeps everything.
func pruneJob(name string, every, retention time.Duration, logger *zap.Logger,
	del func(context.Context, time.Time) (int64, error)) Job {
	return Job{
		Name:     name,
		Interval: every,
		Run: func(ctx context.Context) error {
			if retention <= 0 {
				return nil
			}
			n, err := del(ctx, time.Now().UTC().Add(-retention))
			if err != nil {
				return err
			}
			if n > 0 {
				logger.Info("pruned", zap.String("job", name), zap.Int64("deleted", n), zap.Duration("retention", retention))
			}
			return nil
		},
	}
}

// LoginAttemptCleanupJob drops attempt history past retention. The lockout
// window is minutes long, so a day of history is plenty.
func LoginAttemptCleanupJob(db *mongo.Database, logger *zap.Logger, retention time.Duration) Job {
	return pruneJob("login-attempt-cleanup", time.Hour, retention, logger, loginattempts.New(db).DeleteOlderThan)
}

// UsedResetTokenCleanupJob drops tokens used more than a day ago.
func UsedResetTokenCleanupJob(db *mongo.Database, logger *zap.Logger) Job {
	return pruneJob("reset-token-cleanup", 6*time.Hour, 24*time.Hour, logger, passwordreset.New(db, 0).DeleteUsed)
}

func AuditRetentionJob(db *mongo.Database, logger *zap.Logger, retention time.Duration) Job {
	return pruneJob("audit-retention", 24*time.Hour, retention, logger, auditstore.New(db).DeleteOlderThan)
}

func LedgerRetentionJob(db *mongo.Database, logger *zap.Logger, retention time.Duration) Job {
	return pruneJob("ledger-retention", 24*time.Hour, retention, logger, ledgerstore.New(db).DeleteOlderThan)
}
