// internal/domain/training_plan.go
package domain

import (
	"time"

	"cloud.google.com/go/civil"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// TrainingPlan is the canonical record of a runner's multi-week schedule.
// The week grid is never stored on this struct; it is always derived from Days
// by the grid package.
type TrainingPlan struct {
	ID         primitive.ObjectID `json:"id"`
	OwnerID    primitive.ObjectID `json:"ownerId"` // User the plan belongs to
	Name       string             `json:"name"`    // e.g., "Spring Half Marathon"
	StartDate  civil.Date         `json:"startDate"`
	TotalWeeks int                `json:"totalWeeks"`
	Version    int64              `json:"version"` // Bumped on every successful commit
	Days       DayList            `json:"days"`
	CreatedAt  time.Time          `json:"createdAt"`
	UpdatedAt  time.Time          `json:"updatedAt"`
}

// EndDate is the last calendar date covered by the plan.
func (p *TrainingPlan) EndDate() civil.Date {
	if p.TotalWeeks <= 0 {
		return p.StartDate.AddDays(-1)
	}
	return p.StartDate.AddDays(p.TotalWeeks*7 - 1)
}

// Covers reports whether d falls inside [StartDate, EndDate].
func (p *TrainingPlan) Covers(d civil.Date) bool {
	return !d.Before(p.StartDate) && !d.After(p.EndDate())
}

// FillRestDays adds a rest day for every covered date that has no record.
func (p *TrainingPlan) FillRestDays() {
	if p.Days == nil {
		p.Days = DayList{}
	}
	for d := p.StartDate; !d.After(p.EndDate()); d = d.AddDays(1) {
		if _, ok := p.Days[d]; !ok {
			p.Days[d] = RestDay(d)
		}
	}
}
