// internal/app/bootstrap/shutdown.go
package bootstrap

import (
	"context"
	"errors"

	"github.com/dalemusser/waffle/config"
	"go.uber.org/zap"
)

// Shutdown runs once the HTTP server has drained. Jobs stop first, then
// background mail and ledger writes finish, then MongoDB disconnects. ctx
// bounds the whole sequence.
func Shutdown(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) error {
	steps := []struct {
		name string
		run  func(context.Context) error
	}{
		{"stop task runner", func(ctx context.Context) error {
			if taskRunner == nil {
				return nil
			}
			return taskRunner.Stop(ctx)
		}},
		{"drain background writes", func(ctx context.Context) error {
			return waitDrained(ctx)
		}},
		{"disconnect mongodb", func(ctx context.Context) error {
			if deps.MongoClient == nil {
				return nil
			}
			return deps.MongoClient.Disconnect(ctx)
		}},
	}

	var errs []error
	for _, s := range steps {
		logger.Info("shutdown", zap.String("step", s.name))
		if err := s.run(ctx); err != nil {
			logger.Warn("shutdown step failed", zap.String("step", s.name), zap.Error(err))
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// drainers are the background writers BuildHandler started.
var drainers []interface{ Wait() }

func waitDrained(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		defer close(done)
		for _, d := range drainers {
			d.Wait()
		}
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// waitFunc adapts a blocking func to drainers.
type waitFunc func()

func (f waitFunc) Wait() { f() }
