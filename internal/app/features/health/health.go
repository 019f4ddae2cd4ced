// internal/app/features/health/health.go
package health

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/juhiii45/EcoReborn/internal/app/system/jsonutil"
	"github.com/juhiii45/EcoReborn/internal/app/system/timeouts"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.uber.org/zap"
)

// Backends names the configured mail and storage backends. They are shown
// by /health but never affect its status.
type Backends struct {
	Mail    string
	Storage string
}

type Response struct {
	Status   string            `json:"status"`
	Services map[string]string `json:"services,omitempty"`
}

type Handler struct {
	client   *mongo.Client
	backends Backends
	logger   *zap.Logger
}

func NewHandler(client *mongo.Client, backends Backends, logger *zap.Logger) *Handler {
	return &Handler{client: client, backends: backends, logger: logger}
}

// Routes serves /, /ready and /live under the mount point.
func Routes(h *Handler) http.Handler {
	r := chi.NewRouter()
	r.Get("/", h.Check)
	r.Get("/ready", h.Ready)
	r.Get("/live", h.Live)
	return r
}

// MountRootEndpoints adds the probe aliases /ready, /readyz and /livez.
func MountRootEndpoints(r chi.Router, h *Handler) {
	for path, fn := range map[string]http.HandlerFunc{
		"/ready":  h.Ready,
		"/readyz": h.Ready,
		"/livez":  h.Live,
	} {
		r.Get(path, fn)
	}
}

func (h *Handler) mongoUp(ctx context.Context, probe string) bool {
	ctx, cancel := context.WithTimeout(ctx, timeouts.Ping())
	defer cancel()
	if err := h.client.Ping(ctx, readpref.Primary()); err != nil {
		h.logger.Warn("mongodb ping failed", zap.String("probe", probe), zap.Error(err))
		return false
	}
	return true
}

func (h *Handler) report(up bool) (int, Response) {
	services := map[string]string{"mongodb": "ok"}
	for name, v := range map[string]string{"mail": h.backends.Mail, "storage": h.backends.Storage} {
		if v != "" {
			services[name] = v
		}
	}
	if !up {
		services["mongodb"] = "unavailable"
		return http.StatusServiceUnavailable, Response{Status: "degraded", Services: services}
	}
	return http.StatusOK, Response{Status: "ok", Services: services}
}

// Check reports MongoDB reachability alongside the configured backends.
func (h *Handler) Check(w http.ResponseWriter, r *http.Request) {
	code, resp := h.report(h.mongoUp(r.Context(), "health"))
	jsonutil.JSON(w, code, resp)
}

func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	if !h.mongoUp(r.Context(), "ready") {
		jsonutil.JSON(w, http.StatusServiceUnavailable, Response{Status: "not ready"})
		return
	}
	jsonutil.OK(w, Response{Status: "ready"})
}

// Live never touches the database.
func (h *Handler) Live(w http.ResponseWriter, _ *http.Request) {
	jsonutil.OK(w, Response{Status: "alive"})
}
