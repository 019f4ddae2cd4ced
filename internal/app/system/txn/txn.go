// Package txn runs multi-document MongoDB writes atomically when the
// deployment supports transactions.
//
// A standalone mongod has no transactions; there Run executes the writes
// directly, so callers must tolerate a partial write on failure.
package txn

import (
	"context"
	"errors"
	"strings"

	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// Func performs the writes. ctx is a mongo.SessionContext inside a
// transaction and the caller's context otherwise.
type Func func(ctx context.Context) error

// Run executes fn in a transaction, falling back to a plain call when the
// server rejects transactions. log may be nil.
func Run(ctx context.Context, db *mongo.Database, log *zap.Logger, fn Func) error {
	session, err := db.Client().StartSession()
	if err != nil {
		warn(log, "start session failed, running without transaction", err)
		return fn(ctx)
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		return nil, fn(sc)
	})
	if err != nil && IsNotSupported(err) {
		warn(log, "transactions not supported, running without transaction", err)
		return fn(ctx)
	}
	return err
}

func warn(log *zap.Logger, msg string, err error) {
	if log != nil {
		log.Warn(msg, zap.Error(err))
	}
}

// Server codes meaning "no transactions here": 20 IllegalOperation (standalone
// or DocumentDB without a replica set) and 263 OperationNotSupportedInTransaction.
var unsupportedCodes = []int{20, 263}

// IsNotSupported reports whether err says the deployment cannot run
// multi-document transactions.
func IsNotSupported(err error) bool {
	if err == nil {
		return false
	}
	var se mongo.ServerError
	if errors.As(err, &se) {
		for _, c := range unsupportedCodes {
			if se.HasErrorCode(c) {
				return true
			}
		}
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "transaction numbers are only allowed on a replica set") ||
		strings.Contains(msg, "transactions are not supported")
}
