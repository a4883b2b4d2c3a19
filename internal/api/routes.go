package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func SetupRoutes(
	router *gin.Engine,
	jwtSecret string,
	planHandler *PlanHandler,
	assistantHandler *AssistantHandler,
	datesHandler *DatesHandler,
) {
	authMiddleware := AuthMiddleware(jwtSecret)

	router.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})

	apiV1 := router.Group("/api/v1")
	protected := apiV1.Group("")
	protected.Use(authMiddleware)
	{
		protected.GET("/me", func(c *gin.Context) {
			userIDStr, err := getUserIDFromContext(c)
			if err != nil {
				abortWithError(c, http.StatusInternalServerError, "Failed to get user ID from token")
				return
			}
			c.JSON(http.StatusOK, gin.H{"userId": userIDStr})
		})

		protected.GET("/profile", planHandler.GetProfile)
		protected.PUT("/profile", planHandler.PutProfile)

		protected.POST("/dates/resolve", datesHandler.Resolve)

		// --- Plan Routes ---
		planGroup := protected.Group("/plans")
		{
			planGroup.POST("", planHandler.CreatePlan)
			planGroup.GET("", planHandler.ListPlans)
			planGroup.GET("/:planId", planHandler.GetPlan)

			// --- Conversation about a plan ---
			planGroup.POST("/:planId/assistant", assistantHandler.Converse)
			planGroup.GET("/:planId/messages", assistantHandler.GetMessages)
			planGroup.GET("/:planId/preview", assistantHandler.GetPreview)
			planGroup.POST("/:planId/preview/:previewId/reject", assistantHandler.RejectPreview)
			planGroup.GET("/:planId/clarification", assistantHandler.GetClarification)
			planGroup.DELETE("/:planId/clarification", assistantHandler.CancelClarification)
		}
	}
}
