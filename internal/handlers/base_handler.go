package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/knowledgehub/backend/internal/apperrors"
	"github.com/knowledgehub/backend/internal/logger"
	"go.uber.org/zap"
)

type BaseHandler struct {
	logger *zap.Logger
}

// respondJSON sends a JSON response
func (h *BaseHandler) respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode JSON response", zap.Error(err))
	}
}

// respondError sends an error JSON response
func (h *BaseHandler) respondError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}

// respondServiceError maps a service error to its status and user-facing message.
// Unclassified errors are logged and hidden behind a generic message.
func (h *BaseHandler) respondServiceError(w http.ResponseWriter, r *http.Request, err error, logMessage string) {
	log := logger.FromContext(r.Context(), h.logger)
	status := apperrors.HTTPStatus(err)
	if status == http.StatusInternalServerError {
		log.Error(logMessage, zap.String("path", r.URL.Path), zap.Error(err))
		h.respondError(w, status, "internal server error")
		return
	}

	log.Debug(logMessage, zap.Int("status", status), zap.Error(err))
	h.respondError(w, status, apperrors.Message(err, http.StatusText(status)))
}
