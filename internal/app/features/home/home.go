// internal/app/features/home/home.go
package home

import (
	"net/http"

	"github.com/dalemusser/waffle/pantry/templates"
	"github.com/go-chi/chi/v5"
	servicestore "github.com/juhiii45/EcoReborn/internal/app/store/services"
	"github.com/juhiii45/EcoReborn/internal/app/system/timeouts"
	"github.com/juhiii45/EcoReborn/internal/app/system/viewdata"
	"github.com/juhiii45/EcoReborn/internal/domain/models"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

const featuredCount = 3

type Handler struct {
	services *servicestore.Store
	logger   *zap.Logger
}

func NewHandler(db *mongo.Database, logger *zap.Logger) *Handler {
	return &Handler{services: servicestore.New(db), logger: logger}
}

type indexVM struct {
	viewdata.BaseVM
	Featured []models.Service
}

func Routes(h *Handler) http.Handler {
	r := chi.NewRouter()
	r.Get("/", h.Index)
	return r
}

// featured returns the first few catalog entries. A read failure is logged
// and leaves the landing page without them.
func (h *Handler) featured(r *http.Request) []models.Service {
	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Short(), h.logger, "home services")
	defer cancel()

	list, err := h.services.List(ctx)
	if err != nil {
		h.logger.Warn("landing page services unavailable", zap.Error(err))
		return nil
	}
	return list[:min(len(list), featuredCount)]
}

// Index renders the landing page.
func (h *Handler) Index(w http.ResponseWriter, r *http.Request) {
	vm := indexVM{BaseVM: viewdata.New(r), Featured: h.featured(r)}
	vm.Title = "Home"
	templates.Render(w, r, "home/index", vm)
}
