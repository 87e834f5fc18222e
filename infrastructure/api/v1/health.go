package v1

import (
	"log/slog"
	"net/http"

	"github.com/lostworld/plateau/application/intake"
	"github.com/lostworld/plateau/infrastructure/api/middleware"
	"github.com/lostworld/plateau/infrastructure/api/v1/dto"
)

// HealthRouter handles the health endpoint.
type HealthRouter struct {
	service *intake.Service
	logger  *slog.Logger
}

// NewHealthRouter creates a new HealthRouter.
func NewHealthRouter(service *intake.Service, logger *slog.Logger) *HealthRouter {
	if logger == nil {
		logger = slog.Default()
	}
	return &HealthRouter{service: service, logger: logger}
}

// Health handles GET /api/health. The per-status counts are best
// effort; a store failure still reports the process as up.
func (h *HealthRouter) Health(w http.ResponseWriter, r *http.Request) {
	resp := dto.HealthResponse{Status: "ok"}

	counts, err := h.service.Counts(r.Context())
	if err != nil {
		h.logger.Warn("health count failed", "error", err)
	} else {
		resp.Feedback = make(map[string]int64, len(counts))
		for status, n := range counts {
			resp.Feedback[string(status)] = n
		}
	}
	middleware.WriteJSON(w, http.StatusOK, resp)
}
