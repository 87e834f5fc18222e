package middleware

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/lostworld/plateau/domain/feedback"
	"github.com/lostworld/plateau/internal/database"
)

// ErrorBody is a single error in an error response.
type ErrorBody struct {
	Status string `json:"status"`
	Title  string `json:"title"`
	Detail string `json:"detail,omitempty"`
	ID     string `json:"id,omitempty"`
}

// ErrorResponse wraps the errors in a response envelope.
type ErrorResponse struct {
	Errors []ErrorBody `json:"errors"`
}

// WriteError writes a JSON error response, mapping domain errors onto
// HTTP status codes.
func WriteError(w http.ResponseWriter, r *http.Request, err error, logger *slog.Logger) {
	status := http.StatusInternalServerError
	title := "Internal Server Error"
	detail := err.Error()

	switch {
	case errors.Is(err, feedback.ErrEmptyContent),
		errors.Is(err, feedback.ErrContentTooLong):
		status = http.StatusUnprocessableEntity
		title = "Validation Error"
	case errors.Is(err, database.ErrNotFound):
		status = http.StatusNotFound
		title = "Not Found"
	}

	requestID := GetRequestID(r.Context())
	if logger != nil {
		logger.Error("request error",
			"request_id", requestID,
			"status", status,
			"error", err.Error(),
			"path", r.URL.Path,
		)
	}

	resp := ErrorResponse{
		Errors: []ErrorBody{
			{
				Status: http.StatusText(status),
				Title:  title,
				Detail: detail,
				ID:     requestID,
			},
		},
	}
	WriteJSON(w, status, resp)
}

// WriteValidationError writes a 400 response for malformed input.
func WriteValidationError(w http.ResponseWriter, r *http.Request, detail string, logger *slog.Logger) {
	requestID := GetRequestID(r.Context())
	if logger != nil {
		logger.Warn("invalid request",
			"request_id", requestID, "detail", detail, "path", r.URL.Path)
	}
	WriteJSON(w, http.StatusBadRequest, ErrorResponse{
		Errors: []ErrorBody{
			{
				Status: http.StatusText(http.StatusBadRequest),
				Title:  "Bad Request",
				Detail: detail,
				ID:     requestID,
			},
		},
	})
}

// WriteJSON writes a JSON response.
func WriteJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
