package handlers

import (
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ParseProjectID extracts and validates the project ID from the request path.
// Returns the parsed UUID and true on success, or uuid.Nil and false on error
// (after writing an error response).
// Expects path parameter: pid
func ParseProjectID(w http.ResponseWriter, r *http.Request, logger *zap.Logger) (uuid.UUID, bool) {
	return parseUUID(w, r, "pid", "invalid_project_id", "Invalid project ID format", logger)
}

// RequireUserID extracts the authenticated user's ID from the X-User-ID
// header set by the upstream auth proxy. Returns uuid.Nil and false after
// writing a 401 when the header is missing or malformed.
func RequireUserID(w http.ResponseWriter, r *http.Request, logger *zap.Logger) (uuid.UUID, bool) {
	idStr := r.Header.Get("X-User-ID")
	id, err := uuid.Parse(idStr)
	if err != nil {
		logger.Warn("Missing or invalid user header", zap.String("value", idStr))
		if err := ErrorResponse(w, http.StatusUnauthorized, "unauthorized", "Missing or invalid X-User-ID header"); err != nil {
			logger.Error("Failed to write error response", zap.Error(err))
		}
		return uuid.Nil, false
	}
	return id, true
}

// parseUUID is the internal helper that does the actual parsing work.
func parseUUID(w http.ResponseWriter, r *http.Request, pathParam, errorCode, errorMessage string, logger *zap.Logger) (uuid.UUID, bool) {
	idStr := r.PathValue(pathParam)
	id, err := uuid.Parse(idStr)
	if err != nil {
		logger.Warn("Invalid path parameter",
			zap.String("param", pathParam),
			zap.String("value", idStr))
		if err := ErrorResponse(w, http.StatusBadRequest, errorCode, errorMessage); err != nil {
			logger.Error("Failed to write error response", zap.Error(err))
		}
		return uuid.Nil, false
	}
	return id, true
}
