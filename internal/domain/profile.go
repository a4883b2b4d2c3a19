// internal/domain/profile.go
package domain

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Experience is the runner's self-reported level.
type Experience string

const (
	ExperienceBeginner     Experience = "beginner"
	ExperienceIntermediate Experience = "intermediate"
	ExperienceAdvanced     Experience = "advanced"
)

// Profile is the runner context handed to the planner alongside a plan.
type Profile struct {
	UserID           primitive.ObjectID `json:"userId"`
	DisplayName      string             `json:"displayName"`
	Goal             string             `json:"goal,omitempty"` // e.g., "Sub-2h half marathon"
	Experience       Experience         `json:"experience,omitempty"`
	WeeklyDistanceKm float64            `json:"weeklyDistanceKm,omitempty"`
	TimeZone         string             `json:"timeZone,omitempty"` // IANA name, drives date resolution
	UpdatedAt        time.Time          `json:"updatedAt"`
}

// Location resolves the profile's time zone, falling back to def.
func (p *Profile) Location(def *time.Location) *time.Location {
	if p == nil || p.TimeZone == "" {
		return def
	}
	loc, err := time.LoadLocation(p.TimeZone)
	if err != nil {
		return def
	}
	return loc
}
