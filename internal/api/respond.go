package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/Veraticus/chargedesk/internal/auth"
	"github.com/Veraticus/chargedesk/internal/common"
	"github.com/Veraticus/chargedesk/internal/lifecycle"
	"github.com/Veraticus/chargedesk/internal/model"
)

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, ErrorResponse{Code: code, Message: message})
}

// handleError maps a desk error to a status code and logs it with the
// request logger.
func handleError(w http.ResponseWriter, r *http.Request, err error) {
	log := common.LoggerFrom(r.Context())

	var storeErr *common.StoreIOError
	switch {
	case errors.Is(err, common.ErrValidation), errors.Is(err, model.ErrInvalidStatus), errors.Is(err, auth.ErrInvalidRole):
		log.Warn("Validation failed", "error", err)
		writeError(w, http.StatusBadRequest, "invalid_input", err.Error())

	case errors.Is(err, common.ErrForbidden):
		log.Warn("Forbidden", "error", err)
		writeError(w, http.StatusForbidden, "forbidden", err.Error())

	case errors.Is(err, common.ErrRecordNotFound):
		log.Warn("Record not found", "error", err)
		writeError(w, http.StatusNotFound, "not_found", err.Error())

	case errors.Is(err, common.ErrDuplicateID), errors.Is(err, auth.ErrUserExists):
		log.Warn("Already exists", "error", err)
		writeError(w, http.StatusConflict, "already_exists", err.Error())

	case errors.Is(err, lifecycle.ErrInvalidTransition):
		log.Warn("Invalid transition", "error", err)
		writeError(w, http.StatusConflict, "invalid_transition", err.Error())

	case errors.Is(err, auth.ErrInvalidCredentials):
		log.Warn("Login failed")
		writeError(w, http.StatusUnauthorized, "invalid_credentials", err.Error())

	case errors.Is(err, auth.ErrInvalidToken):
		log.Warn("Rejected session token", "error", err)
		writeError(w, http.StatusUnauthorized, "unauthorized", auth.ErrInvalidToken.Error())

	case errors.Is(err, model.ErrMalformedCharge), errors.Is(err, model.ErrNegativeCharge):
		log.Warn("Malformed charge in strict total", "error", err)
		writeError(w, http.StatusUnprocessableEntity, "malformed_charge", err.Error())

	case errors.As(err, &storeErr):
		level := slog.LevelError
		status := http.StatusBadGateway
		if storeErr.Retryable() {
			level = slog.LevelWarn
			status = http.StatusServiceUnavailable
		}
		log.Log(r.Context(), level, "Record store error", "op", storeErr.Op, "transient", storeErr.Transient, "error", err)
		writeError(w, status, "store_unavailable", "Record store temporarily unavailable")

	default:
		log.Error("Unexpected error", "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "An unexpected error occurred")
	}
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: invalid JSON body: %v", common.ErrValidation, err)
	}
	return nil
}
