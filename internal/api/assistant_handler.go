// internal/api/assistant_handler.go
package api

import (
	"alcyxob/run-coach/internal/planner"
	"alcyxob/run-coach/internal/service"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type AssistantHandler struct {
	assistant service.AssistantService
	logger    *zap.Logger
}

func NewAssistantHandler(assistant service.AssistantService, logger *zap.Logger) *AssistantHandler {
	return &AssistantHandler{assistant: assistant, logger: logger}
}

// Converse godoc
// @Summary Send one conversation turn about a plan
// @Description mode=draft sends a message; clarification_response answers the pending question; commit approves the held preview.
// @Tags Assistant
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param planId path string true "Training Plan's ObjectID Hex"
// @Param turn body AssistantRequestBody true "Turn"
// @Success 200 {object} AssistantResponse
// @Failure 404 {object} gin.H "Unknown preview or clarification"
// @Failure 409 {object} gin.H "Version conflict or preview pending"
// @Failure 410 {object} gin.H "Preview expired"
// @Failure 422 {object} gin.H "Preview cannot be applied"
// @Failure 502 {object} gin.H "Planner unavailable"
// @Router /plans/{planId}/assistant [post]
func (h *AssistantHandler) Converse(c *gin.Context) {
	owner, ok := ownerID(c)
	if !ok {
		return
	}
	planID, ok := planIDParam(c)
	if !ok {
		return
	}
	var req AssistantRequestBody
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, fmt.Sprintf("Validation error: %v", err))
		return
	}

	reply, err := h.assistant.Handle(c.Request.Context(), owner, planID, service.AssistantRequest{
		Mode:            planner.Mode(req.Mode),
		Message:         req.Message,
		ClarificationID: req.ClarificationID,
		OptionID:        req.OptionID,
		PreviewID:       req.PreviewID,
	})
	if err != nil {
		abortWithServiceError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, MapReplyToResponse(reply))
}

// GetMessages godoc
// @Summary Get the conversation transcript of a plan
// @Tags Assistant
// @Produce json
// @Security BearerAuth
// @Param planId path string true "Training Plan's ObjectID Hex"
// @Success 200 {array} MessageResponse
// @Router /plans/{planId}/messages [get]
func (h *AssistantHandler) GetMessages(c *gin.Context) {
	owner, ok := ownerID(c)
	if !ok {
		return
	}
	planID, ok := planIDParam(c)
	if !ok {
		return
	}
	msgs, err := h.assistant.Messages(c.Request.Context(), owner, planID)
	if err != nil {
		abortWithServiceError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, MapMessagesToResponse(msgs))
}

// GetPreview godoc
// @Summary Get the preview awaiting approval
// @Tags Assistant
// @Produce json
// @Security BearerAuth
// @Param planId path string true "Training Plan's ObjectID Hex"
// @Success 200 {object} PreviewResponse
// @Failure 404 {object} gin.H "No preview held"
// @Router /plans/{planId}/preview [get]
func (h *AssistantHandler) GetPreview(c *gin.Context) {
	owner, ok := ownerID(c)
	if !ok {
		return
	}
	planID, ok := planIDParam(c)
	if !ok {
		return
	}
	preview, err := h.assistant.PendingPreview(c.Request.Context(), owner, planID)
	if err != nil {
		abortWithServiceError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, MapPreviewToResponse(preview))
}

// RejectPreview godoc
// @Summary Discard the held preview
// @Tags Assistant
// @Security BearerAuth
// @Param planId path string true "Training Plan's ObjectID Hex"
// @Param previewId path string true "Preview ID"
// @Success 204
// @Failure 404 {object} gin.H "Unknown preview"
// @Router /plans/{planId}/preview/{previewId}/reject [post]
func (h *AssistantHandler) RejectPreview(c *gin.Context) {
	owner, ok := ownerID(c)
	if !ok {
		return
	}
	planID, ok := planIDParam(c)
	if !ok {
		return
	}
	if err := h.assistant.RejectPreview(c.Request.Context(), owner, planID, c.Param("previewId")); err != nil {
		abortWithServiceError(c, h.logger, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// GetClarification godoc
// @Summary Get the question awaiting an answer
// @Tags Assistant
// @Produce json
// @Security BearerAuth
// @Param planId path string true "Training Plan's ObjectID Hex"
// @Success 200 {object} ClarificationResponse
// @Failure 404 {object} gin.H "Nothing pending"
// @Router /plans/{planId}/clarification [get]
func (h *AssistantHandler) GetClarification(c *gin.Context) {
	owner, ok := ownerID(c)
	if !ok {
		return
	}
	planID, ok := planIDParam(c)
	if !ok {
		return
	}
	req, err := h.assistant.PendingClarification(c.Request.Context(), owner, planID)
	if err != nil {
		abortWithServiceError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, MapClarificationToResponse(req))
}

// CancelClarification godoc
// @Summary Drop the pending question
// @Tags Assistant
// @Security BearerAuth
// @Param planId path string true "Training Plan's ObjectID Hex"
// @Success 204
// @Failure 404 {object} gin.H "Nothing pending"
// @Router /plans/{planId}/clarification [delete]
func (h *AssistantHandler) CancelClarification(c *gin.Context) {
	owner, ok := ownerID(c)
	if !ok {
		return
	}
	planID, ok := planIDParam(c)
	if !ok {
		return
	}
	if err := h.assistant.CancelClarification(c.Request.Context(), owner, planID); err != nil {
		abortWithServiceError(c, h.logger, err)
		return
	}
	c.Status(http.StatusNoContent)
}
