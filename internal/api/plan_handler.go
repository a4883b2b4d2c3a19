// internal/api/plan_handler.go
package api

import (
	"alcyxob/run-coach/internal/domain"
	"alcyxob/run-coach/internal/service"
	"fmt"
	"net/http"

	"cloud.google.com/go/civil"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type PlanHandler struct {
	planService service.PlanService
	logger      *zap.Logger
}

func NewPlanHandler(planService service.PlanService, logger *zap.Logger) *PlanHandler {
	return &PlanHandler{planService: planService, logger: logger}
}

// CreatePlan godoc
// @Summary Create a training plan
// @Description Stores a plan; every date without a workout becomes a rest day.
// @Tags Plans
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param plan body CreatePlanRequest true "Plan"
// @Success 201 {object} PlanResponse
// @Failure 400 {object} gin.H "Validation error"
// @Failure 401 {object} gin.H "Unauthorized"
// @Router /plans [post]
func (h *PlanHandler) CreatePlan(c *gin.Context) {
	owner, ok := ownerID(c)
	if !ok {
		return
	}
	var req CreatePlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, fmt.Sprintf("Validation error: %v", err))
		return
	}
	start, err := civil.ParseDate(req.StartDate)
	if err != nil {
		abortWithError(c, http.StatusBadRequest, "Invalid startDate, expected YYYY-MM-DD.")
		return
	}
	days := make([]domain.DayRecord, 0, len(req.Days))
	for _, d := range req.Days {
		date, err := civil.ParseDate(d.Date)
		if err != nil {
			abortWithError(c, http.StatusBadRequest, fmt.Sprintf("Invalid day date %q, expected YYYY-MM-DD.", d.Date))
			return
		}
		days = append(days, domain.DayRecord{
			Date:               date,
			Title:              d.Title,
			WorkoutDescription: d.Description,
			Tips:               d.Tips,
			WorkoutKind:        domain.WorkoutKind(d.Kind),
		})
	}

	view, err := h.planService.CreatePlan(c.Request.Context(), owner, req.Name, start, req.TotalWeeks, days)
	if err != nil {
		abortWithServiceError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, MapPlanViewToResponse(view))
}

// ListPlans godoc
// @Summary List my training plans
// @Tags Plans
// @Produce json
// @Security BearerAuth
// @Success 200 {array} PlanSummaryResponse
// @Router /plans [get]
func (h *PlanHandler) ListPlans(c *gin.Context) {
	owner, ok := ownerID(c)
	if !ok {
		return
	}
	plans, err := h.planService.ListPlans(c.Request.Context(), owner)
	if err != nil {
		abortWithServiceError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, MapPlansToSummaries(plans))
}

// GetPlan godoc
// @Summary Get a training plan with its week grid
// @Tags Plans
// @Produce json
// @Security BearerAuth
// @Param planId path string true "Training Plan's ObjectID Hex"
// @Success 200 {object} PlanResponse
// @Failure 403 {object} gin.H "Forbidden"
// @Failure 404 {object} gin.H "Not found"
// @Router /plans/{planId} [get]
func (h *PlanHandler) GetPlan(c *gin.Context) {
	owner, ok := ownerID(c)
	if !ok {
		return
	}
	planID, ok := planIDParam(c)
	if !ok {
		return
	}
	view, err := h.planService.GetPlanView(c.Request.Context(), owner, planID)
	if err != nil {
		abortWithServiceError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, MapPlanViewToResponse(view))
}

// GetProfile godoc
// @Summary Get my runner profile
// @Tags Profile
// @Produce json
// @Security BearerAuth
// @Success 200 {object} ProfileResponse
// @Failure 404 {object} gin.H "No profile yet"
// @Router /profile [get]
func (h *PlanHandler) GetProfile(c *gin.Context) {
	owner, ok := ownerID(c)
	if !ok {
		return
	}
	profile, err := h.planService.GetProfile(c.Request.Context(), owner)
	if err != nil {
		abortWithServiceError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, MapProfileToResponse(profile))
}

// PutProfile godoc
// @Summary Create or replace my runner profile
// @Tags Profile
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param profile body ProfileRequest true "Profile"
// @Success 200 {object} ProfileResponse
// @Failure 400 {object} gin.H "Validation error"
// @Router /profile [put]
func (h *PlanHandler) PutProfile(c *gin.Context) {
	owner, ok := ownerID(c)
	if !ok {
		return
	}
	var req ProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, fmt.Sprintf("Validation error: %v", err))
		return
	}
	profile, err := h.planService.UpsertProfile(c.Request.Context(), &domain.Profile{
		UserID:           owner,
		DisplayName:      req.DisplayName,
		Goal:             req.Goal,
		Experience:       domain.Experience(req.Experience),
		WeeklyDistanceKm: req.WeeklyDistanceKm,
		TimeZone:         req.TimeZone,
	})
	if err != nil {
		abortWithServiceError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, MapProfileToResponse(profile))
}
