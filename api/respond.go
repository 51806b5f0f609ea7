package api

import (
	"encoding/json"
	"net/http"

	"log/slog"

	"github.com/ascenthq/ascent/pkg/apperr"
)

func writeJSON(w http.ResponseWriter, v any, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("failed to encode response", slog.Any("err", err))
	}
}

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
}

// respondError maps domain error kinds to HTTP status codes. Internal
// details are logged, never sent to the caller.
func respondError(w http.ResponseWriter, err error) {
	kind := apperr.KindOf(err)

	status := http.StatusInternalServerError
	switch kind {
	case apperr.KindValidation:
		status = http.StatusBadRequest
	case apperr.KindUnauthorized:
		status = http.StatusUnauthorized
	case apperr.KindForbidden:
		status = http.StatusForbidden
	case apperr.KindNotFound:
		status = http.StatusNotFound
	case apperr.KindConflict:
		status = http.StatusConflict
	case apperr.KindRateLimited:
		status = http.StatusTooManyRequests
	}

	if status == http.StatusInternalServerError {
		logger.Error("request failed", slog.Any("err", err))
	}

	writeJSON(w, errorBody{Error: errorDetail{
		Code:    string(kind),
		Message: apperr.MessageOf(err),
		Fields:  apperr.FieldsOf(err),
	}}, status)
}
