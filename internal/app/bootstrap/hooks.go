// internal/app/bootstrap/hooks.go
package bootstrap

import (
	"github.com/dalemusser/waffle/app"
)

// Hooks wires Ecoreborn into the WAFFLE lifecycle. app.Run calls them in
// order: config, validation, connections, schema, startup work, the HTTP
// handler and finally graceful shutdown.
var Hooks = app.Hooks[AppConfig, DBDeps]{
	Name:           "ecoreborn",    // used only for logging/diagnostics
	LoadConfig:     LoadConfig,     // load core + app config
	ValidateConfig: ValidateConfig, // MongoDB URI, storage, base URL, login policy
	ConnectDB:      ConnectDB,      // MongoDB, attachment storage, mail
	EnsureSchema:   EnsureSchema,   // validators, indexes, service catalog
	Startup:        Startup,        // shared templates, admin seed, background jobs
	BuildHandler:   BuildHandler,   // router + middleware stack
	Shutdown:       Shutdown,       // stop jobs, drain mail and ledger, disconnect
}
