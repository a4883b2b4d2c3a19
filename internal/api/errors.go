package api

import (
	"alcyxob/run-coach/internal/planner"
	"alcyxob/run-coach/internal/service"
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// errorStatus maps service errors to HTTP status codes.
var errorStatus = []struct {
	err    error
	status int
}{
	{service.ErrPlanNotFound, http.StatusNotFound},
	{service.ErrPlanAccessDenied, http.StatusForbidden},
	{service.ErrInvalidPlan, http.StatusBadRequest},
	{service.ErrProfileNotFound, http.StatusNotFound},
	{service.ErrInvalidTimeZone, http.StatusBadRequest},
	{service.ErrExpiredPreview, http.StatusGone},
	{service.ErrUnknownPreview, http.StatusNotFound},
	{service.ErrVersionConflict, http.StatusConflict},
	{service.ErrPreviewAlreadyHeld, http.StatusConflict},
	{service.ErrPreviewPending, http.StatusConflict},
	{service.ErrInvalidModification, http.StatusUnprocessableEntity},
	{service.ErrUnknownClarification, http.StatusNotFound},
	{service.ErrInvalidOption, http.StatusBadRequest},
	{service.ErrInvalidRequest, http.StatusBadRequest},
	{service.ErrUnsupportedMode, http.StatusBadRequest},
	{planner.ErrUpstreamFailure, http.StatusBadGateway},
	{context.DeadlineExceeded, http.StatusGatewayTimeout},
}

// abortWithServiceError writes the response for err. Unmapped errors are
// logged and reported as 500 without details.
func abortWithServiceError(c *gin.Context, logger *zap.Logger, err error) {
	var conflict *service.VersionConflictError
	if errors.As(err, &conflict) {
		c.AbortWithStatusJSON(http.StatusConflict, gin.H{
			"error":          service.ErrVersionConflict.Error(),
			"basisVersion":   conflict.Basis,
			"currentVersion": conflict.Current,
		})
		return
	}
	for _, m := range errorStatus {
		if errors.Is(err, m.err) {
			msg := m.err.Error()
			if m.status == http.StatusBadRequest || m.status == http.StatusUnprocessableEntity {
				msg = err.Error()
			}
			if m.status >= http.StatusInternalServerError {
				logger.Warn("upstream failure", zap.String("path", c.FullPath()), zap.Error(err))
			}
			abortWithError(c, m.status, msg)
			return
		}
	}
	logger.Error("unhandled error", zap.String("path", c.FullPath()), zap.Error(err))
	abortWithError(c, http.StatusInternalServerError, "An unexpected error occurred.")
}
