package handlers

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/cbc-agent/analytics-ingest/services"
	"github.com/cbc-agent/analytics-ingest/utils"
)

// RetryAfterSeconds is sent with 503 responses for downstream failures
const RetryAfterSeconds = 5

// HandleServiceError maps domain errors to HTTP responses
func HandleServiceError(w http.ResponseWriter, err error, logger *zap.Logger) {
	if err == nil {
		return
	}

	details := services.GetErrorDetails(err)
	if len(details) == 0 {
		details = nil
	}

	message := err.Error()
	var domainErr *services.DomainError
	if errors.As(err, &domainErr) {
		message = domainErr.Message
	}

	var writeErr error
	switch {
	case services.IsValidationError(err):
		if fields := utils.GetValidationFields(err); len(fields) > 0 {
			if details == nil {
				details = make(map[string]interface{}, len(fields))
			}
			for k, v := range fields {
				details[k] = v
			}
		}
		writeErr = utils.WriteBadRequest(w, message, details)

	case services.IsAuthenticationError(err):
		// The message never says which credential check failed
		writeErr = utils.WriteUnauthorized(w, "")

	case services.IsForbiddenError(err):
		writeErr = utils.WriteForbidden(w, message)

	case services.IsNotFoundError(err):
		writeErr = utils.WriteNotFound(w, message)

	case services.IsDownstreamError(err):
		logger.Warn("downstream failure", zap.Error(err))
		writeErr = utils.WriteServiceUnavailable(w, "", RetryAfterSeconds)

	case services.IsInternalError(err):
		// Log internal errors but return generic message
		logger.Error("internal server error", zap.Error(err))
		writeErr = utils.WriteInternalServerError(w, "An internal error occurred")

	default:
		logger.Error("unhandled error type",
			zap.Error(err),
			zap.String("error_type", string(services.GetErrorType(err))))
		writeErr = utils.WriteInternalServerError(w, "An unexpected error occurred")
	}

	if writeErr != nil {
		logger.Error("failed to write error response", zap.Error(writeErr))
	}
}

// HandleValidationError handles validation errors from request parsing
func HandleValidationError(w http.ResponseWriter, err error, logger *zap.Logger) {
	if utils.IsValidationError(err) {
		fields := utils.GetValidationFields(err)
		details := make(map[string]interface{}, len(fields))
		for k, v := range fields {
			details[k] = v
		}
		if err := utils.WriteBadRequest(w, "Validation failed", details); err != nil {
			logger.Error("failed to write validation error response", zap.Error(err))
		}
		return
	}

	if err := utils.WriteBadRequest(w, err.Error(), nil); err != nil {
		logger.Error("failed to write validation error response", zap.Error(err))
	}
}
