package api

import (
	"alcyxob/run-coach/internal/dates"
	"fmt"
	"net/http"
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"github.com/gin-gonic/gin"
)

type DatesHandler struct {
	defaultZone *time.Location
	now         func() time.Time
}

func NewDatesHandler(defaultZone *time.Location, now func() time.Time) *DatesHandler {
	if defaultZone == nil {
		defaultZone = time.UTC
	}
	if now == nil {
		now = time.Now
	}
	return &DatesHandler{defaultZone: defaultZone, now: now}
}

// Resolve godoc
// @Summary Resolve relative date phrases
// @Description Resolves a single phrase, or every phrase found in a message.
// @Tags Dates
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body ResolveRequest true "Phrase or message"
// @Success 200 {object} ResolveResponse
// @Failure 400 {object} gin.H "Validation error"
// @Router /dates/resolve [post]
func (h *DatesHandler) Resolve(c *gin.Context) {
	var req ResolveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, fmt.Sprintf("Validation error: %v", err))
		return
	}
	if strings.TrimSpace(req.Phrase) == "" && strings.TrimSpace(req.Message) == "" {
		abortWithError(c, http.StatusBadRequest, "Either phrase or message is required.")
		return
	}

	loc := h.defaultZone
	if req.Timezone != "" {
		l, err := time.LoadLocation(req.Timezone)
		if err != nil {
			abortWithError(c, http.StatusBadRequest, fmt.Sprintf("Unknown timezone %q.", req.Timezone))
			return
		}
		loc = l
	}
	today := dates.Today(h.now(), loc)
	if req.ReferenceDate != "" {
		d, err := civil.ParseDate(req.ReferenceDate)
		if err != nil {
			abortWithError(c, http.StatusBadRequest, "Invalid referenceDate, expected YYYY-MM-DD.")
			return
		}
		today = d
	}

	res := ResolveResponse{ReferenceDate: today.String(), Resolutions: []ResolutionResponse{}}
	if req.Message != "" {
		for _, r := range dates.AnnotateOn(req.Message, today) {
			res.Resolutions = append(res.Resolutions, MapResolutionToResponse(r))
		}
	} else if r, ok := dates.ResolveOn(req.Phrase, today); ok {
		res.Resolutions = append(res.Resolutions, MapResolutionToResponse(r))
	}
	res.Recognised = len(res.Resolutions) > 0
	c.JSON(http.StatusOK, res)
}
