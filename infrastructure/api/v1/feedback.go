// Package v1 provides the public API routes.
package v1

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/lostworld/plateau/application/intake"
	"github.com/lostworld/plateau/domain/feedback"
	"github.com/lostworld/plateau/infrastructure/api/middleware"
	"github.com/lostworld/plateau/infrastructure/api/v1/dto"
)

// FeedbackRouter handles the feedback endpoints.
type FeedbackRouter struct {
	service *intake.Service
	logger  *slog.Logger
}

// NewFeedbackRouter creates a new FeedbackRouter.
func NewFeedbackRouter(service *intake.Service, logger *slog.Logger) *FeedbackRouter {
	if logger == nil {
		logger = slog.Default()
	}
	return &FeedbackRouter{service: service, logger: logger}
}

// Routes returns the chi router for feedback endpoints.
func (f *FeedbackRouter) Routes() chi.Router {
	router := chi.NewRouter()
	router.Post("/", f.Create)
	router.Get("/", f.List)
	router.Get("/{reference}", f.Get)
	return router
}

// Create handles POST /api/feedback. The safety filter runs inline, so
// a rejected submission is reported as rejected in the response.
func (f *FeedbackRouter) Create(w http.ResponseWriter, r *http.Request) {
	var body dto.FeedbackCreateRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		middleware.WriteValidationError(w, r, "invalid JSON body", f.logger)
		return
	}

	sub, err := f.service.Submit(r.Context(), body.Content)
	if err != nil {
		middleware.WriteError(w, r, err, f.logger)
		return
	}
	middleware.WriteJSON(w, http.StatusCreated, dto.NewFeedbackSubmitResponse(sub))
}

// List handles GET /api/feedback with optional status, skip, and limit
// query parameters. Results come back newest first.
func (f *FeedbackRouter) List(w http.ResponseWriter, r *http.Request) {
	query := intake.NewListQuery()

	if raw := r.URL.Query().Get("status"); raw != "" {
		status := feedback.Status(raw)
		if !status.Valid() {
			middleware.WriteValidationError(w, r, fmt.Sprintf("unknown status %q", raw), f.logger)
			return
		}
		query = query.WithStatus(status)
	}
	if raw := r.URL.Query().Get("skip"); raw != "" {
		skip, err := strconv.Atoi(raw)
		if err != nil {
			middleware.WriteValidationError(w, r, "skip must be an integer", f.logger)
			return
		}
		query = query.WithSkip(skip)
	}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil {
			middleware.WriteValidationError(w, r, "limit must be an integer", f.logger)
			return
		}
		query = query.WithLimit(limit)
	}
	if err := query.Validate(); err != nil {
		middleware.WriteValidationError(w, r, err.Error(), f.logger)
		return
	}

	subs, err := f.service.List(r.Context(), query)
	if err != nil {
		middleware.WriteError(w, r, err, f.logger)
		return
	}

	data := make([]dto.FeedbackResponse, len(subs))
	for i, sub := range subs {
		data[i] = dto.NewFeedbackResponse(sub)
	}
	middleware.WriteJSON(w, http.StatusOK, dto.FeedbackListResponse{Data: data})
}

// Get handles GET /api/feedback/{reference}.
func (f *FeedbackRouter) Get(w http.ResponseWriter, r *http.Request) {
	reference := chi.URLParam(r, "reference")
	sub, err := f.service.Get(r.Context(), reference)
	if err != nil {
		middleware.WriteError(w, r, err, f.logger)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, dto.NewFeedbackResponse(sub))
}
