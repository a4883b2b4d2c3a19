// internal/domain/preview.go
package domain

import (
	"time"

	"cloud.google.com/go/civil"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// PreviewState tracks the approve/reject lifecycle of a preview.
type PreviewState string

const (
	PreviewHeld      PreviewState = "held"
	PreviewCommitted PreviewState = "committed"
	PreviewRejected  PreviewState = "rejected"
	PreviewExpired   PreviewState = "expired"
)

// Operation is the kind of edit a Modification performs.
type Operation string

const (
	OpCancel     Operation = "cancel"
	OpReschedule Operation = "reschedule"
	OpModify     Operation = "modify"
)

// WorkoutSnapshot captures a day's title/description as shown to the user.
type WorkoutSnapshot struct {
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
}

// ModificationTarget is the proposed state after a modification.
// Date is only set for reschedules.
type ModificationTarget struct {
	Title       string      `json:"title,omitempty"`
	Description string      `json:"description,omitempty"`
	Date        *civil.Date `json:"date,omitempty"`
}

// Modification is a single proposed edit to one day of the plan.
type Modification struct {
	Date      civil.Date          `json:"date"`
	Operation Operation           `json:"operation"`
	Before    WorkoutSnapshot     `json:"before"`
	After     *ModificationTarget `json:"after,omitempty"` // Absent for cancel
}

// PreviewSet is a batch of proposed edits awaiting user approval.
// It is applied all-or-nothing against BasisVersion.
type PreviewSet struct {
	ID               string             `json:"previewId"`
	PlanID           primitive.ObjectID `json:"planId"`
	BasisVersion     int64              `json:"basisVersion"`
	Modifications    []Modification     `json:"modifications"`
	AssistantMessage string             `json:"assistantMessage,omitempty"`
	ExpiresAt        time.Time          `json:"expiresAt"`
	State            PreviewState       `json:"state"`
	CreatedAt        time.Time          `json:"createdAt"`
	ResolvedAt       *time.Time         `json:"resolvedAt,omitempty"`
}

// ExpiredAt reports whether the preview can no longer be approved at now.
func (p *PreviewSet) ExpiredAt(now time.Time) bool {
	return now.After(p.ExpiresAt)
}
