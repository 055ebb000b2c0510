package shipping_api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/BearBump/CustomsBox/internal/logging"
	"github.com/BearBump/CustomsBox/internal/models"
)

type APIResponse struct {
	Success bool      `json:"success"`
	Data    any       `json:"data"`
	Error   *APIError `json:"error"`
}

type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func respondSuccess(w http.ResponseWriter, status int, data any) {
	respondJSON(w, status, APIResponse{Success: true, Data: data})
}

func respondFailure(w http.ResponseWriter, status int, code, message string, details any) {
	respondJSON(w, status, APIResponse{
		Error: &APIError{Code: code, Message: message, Details: details},
	})
}

func respondValidation(w http.ResponseWriter, fields []FieldError) {
	respondFailure(w, http.StatusBadRequest, "VALIDATION_FAILED", "Validation failed", fields)
}

func respondBadRequest(w http.ResponseWriter, message string) {
	respondFailure(w, http.StatusBadRequest, "INVALID_REQUEST", message, nil)
}

// respondError maps error kinds to HTTP statuses. The reason of a domain error is safe to show;
// anything else is logged and hidden behind a generic message.
func respondError(w http.ResponseWriter, r *http.Request, err error) {
	var status int
	var code string
	switch {
	case errors.Is(err, models.ErrNotFound):
		status, code = http.StatusNotFound, "NOT_FOUND"
	case errors.Is(err, models.ErrValidation):
		status, code = http.StatusBadRequest, "VALIDATION_FAILED"
	case errors.Is(err, models.ErrInvalidState):
		status, code = http.StatusConflict, "INVALID_STATE"
	case errors.Is(err, models.ErrCurrencyMismatch):
		status, code = http.StatusUnprocessableEntity, "CURRENCY_MISMATCH"
	default:
		logging.FromContext(r.Context()).Error("request failed", "error", err)
		respondFailure(w, http.StatusInternalServerError, "INTERNAL_ERROR", "An unexpected error occurred", nil)
		return
	}

	msg := err.Error()
	var me *models.Error
	if errors.As(err, &me) {
		msg = me.Reason
	}
	respondFailure(w, status, code, msg, nil)
}
