// internal/app/bootstrap/dbdeps.go
package bootstrap

import (
	"github.com/dalemusser/waffle/pantry/storage"
	"github.com/juhiii45/EcoReborn/internal/app/system/auditlog"
	"github.com/juhiii45/EcoReborn/internal/app/system/mailer"
	"go.mongodb.org/mongo-driver/mongo"
)

// DBDeps is what ConnectDB builds and every later hook receives.
type DBDeps struct {
	MongoClient   *mongo.Client
	MongoDatabase *mongo.Database

	// Contact attachments. Only the admin inbox reads them back.
	FileStorage storage.Store

	// Mailer relays over SMTP or writes the mail log; Mail is the
	// request-side wrapper that never fails a handler.
	Mailer *mailer.Mailer
	Mail   *mailer.Dispatcher

	Audit *auditlog.Logger
}
