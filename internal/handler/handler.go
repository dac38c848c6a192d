package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"coupon-engine/internal/model"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
)

// maxBodyBytes caps request bodies.
const maxBodyBytes = 1 << 20

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		// Log the error but don't expose it to the client
		return
	}
}

// writeError writes an error response carrying the request id as correlation id.
func writeError(w http.ResponseWriter, r *http.Request, status int, code, message string, logger zerolog.Logger) {
	requestID := chimw.GetReqID(r.Context())

	event := logger.Warn()
	if status >= http.StatusInternalServerError {
		event = logger.Error()
	}
	event.
		Str("error", code).
		Str("message", message).
		Int("status", status).
		Str("request_id", requestID).
		Msg("handler error")

	writeJSON(w, status, model.ErrorResponse{
		Error:         code,
		Message:       message,
		CorrelationID: requestID,
	})
}

// writeServiceError maps a service error onto a status code.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error, fallback string, logger zerolog.Logger) {
	var (
		validationErr  *model.ValidationError
		persistenceErr *model.PersistenceError
	)

	switch {
	case errors.As(err, &validationErr):
		writeError(w, r, http.StatusBadRequest, model.ErrCodeValidation, validationErr.Error(), logger)
	case errors.Is(err, model.ErrCouponCodeTaken):
		writeError(w, r, http.StatusConflict, model.ErrCodeCouponCodeTaken, model.ErrCouponCodeTaken.Message, logger)
	case errors.Is(err, model.ErrCouponNotFound):
		writeError(w, r, http.StatusNotFound, model.ErrCodeCouponNotFound, model.ErrCouponNotFound.Message, logger)
	case errors.As(err, &persistenceErr):
		logger.Error().Err(err).Str("request_id", chimw.GetReqID(r.Context())).Msg("persistence failure")
		writeError(w, r, http.StatusInternalServerError, model.ErrCodePersistence, "failed to record redemption", logger)
	default:
		logger.Error().Err(err).Str("request_id", chimw.GetReqID(r.Context())).Msg(fallback)
		writeError(w, r, http.StatusInternalServerError, model.ErrCodeInternalError, fallback, logger)
	}
}

// decodeBody decodes a JSON request body into dst, writing the error response on failure.
func decodeBody(w http.ResponseWriter, r *http.Request, dst interface{}, logger zerolog.Logger) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var validationErr *model.ValidationError
		if errors.As(err, &validationErr) {
			writeError(w, r, http.StatusBadRequest, model.ErrCodeValidation, validationErr.Error(), logger)
			return false
		}
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, r, http.StatusRequestEntityTooLarge, model.ErrCodePayloadTooLarge,
				fmt.Sprintf("request body exceeds %d bytes", tooLarge.Limit), logger)
			return false
		}
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidJSON, "invalid request body", logger)
		return false
	}

	return true
}

// parsePagination reads limit and offset query parameters, defaulting to 10 and 0.
func parsePagination(w http.ResponseWriter, r *http.Request, logger zerolog.Logger) (int, int, bool) {
	limit := 10
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		var err error
		limit, err = strconv.Atoi(limitStr)
		if err != nil {
			writeError(w, r, http.StatusBadRequest, model.ErrCodeValidation, "invalid limit parameter", logger)
			return 0, 0, false
		}
	}

	offset := 0
	if offsetStr := r.URL.Query().Get("offset"); offsetStr != "" {
		var err error
		offset, err = strconv.Atoi(offsetStr)
		if err != nil {
			writeError(w, r, http.StatusBadRequest, model.ErrCodeValidation, "invalid offset parameter", logger)
			return 0, 0, false
		}
	}

	return limit, offset, true
}
