package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/custodia-labs/ragkit/internal/core/domain"
	"github.com/custodia-labs/ragkit/internal/logger"
)

// errorResponse is the body of every non-2xx response.
type errorResponse struct {
	ErrorCode string `json:"error_code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
}

// statusFor maps a domain error to an HTTP status and a stable code.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		return http.StatusBadRequest, "invalid_input"
	case errors.Is(err, domain.ErrInvalidK):
		return http.StatusBadRequest, "invalid_k"
	case errors.Is(err, domain.ErrDimensionMismatch):
		return http.StatusBadRequest, "dimension_mismatch"
	case errors.Is(err, domain.ErrInvalidConfiguration):
		return http.StatusBadRequest, "invalid_configuration"
	case errors.Is(err, domain.ErrEmptyIndex):
		return http.StatusConflict, "empty_index"
	case errors.Is(err, domain.ErrEmbeddingFailure):
		return http.StatusBadGateway, "embedding_failure"
	default:
		return http.StatusInternalServerError, "internal"
	}
}

func writeError(c *gin.Context, err error) {
	status, code := statusFor(err)
	if status >= http.StatusInternalServerError {
		logger.Warn("%s %s: %v", c.Request.Method, c.Request.URL.Path, err)
	}
	c.AbortWithStatusJSON(status, errorResponse{
		ErrorCode: code,
		Message:   err.Error(),
		RequestID: c.GetString(requestIDKey),
	})
}
