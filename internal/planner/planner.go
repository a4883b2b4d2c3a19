// Package planner defines the boundary to the modification planner, the
// external collaborator that reads a user's message and decides whether to
// ask a clarification, propose a preview of plan edits, refuse, or just answer.
package planner

import (
	"context"
	"errors"

	"alcyxob/run-coach/internal/dates"
	"alcyxob/run-coach/internal/domain"

	"cloud.google.com/go/civil"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

var (
	// ErrUpstreamFailure means the planner was unavailable or answered with
	// something unusable. Conversation state must be left unchanged.
	ErrUpstreamFailure = errors.New("modification planner failed")
	// ErrUnsupportedMode is returned for request modes a planner does not serve.
	ErrUnsupportedMode = errors.New("unsupported planner request mode")
)

// Mode is the kind of request sent across the planner boundary.
type Mode string

const (
	ModeDraft                 Mode = "draft"
	ModeClarificationResponse Mode = "clarification_response"
	ModeCommit                Mode = "commit" // Served by the preview controller, never by planners
)

// Outcome is the kind of answer the planner gives.
type Outcome string

const (
	OutcomeClarification Outcome = "clarification_required"
	OutcomePreview       Outcome = "preview"
	OutcomeIntervention  Outcome = "intervention"
	OutcomeInfo          Outcome = "info"
)

// PlanSnapshot is the read-only plan context handed to the planner.
type PlanSnapshot struct {
	ID        primitive.ObjectID `json:"id"`
	Name      string             `json:"name"`
	StartDate civil.Date         `json:"startDate"`
	EndDate   civil.Date         `json:"endDate"`
	Version   int64              `json:"version"`
	Days      []domain.DayRecord `json:"days"`
}

// SnapshotOf captures plan for a planner request.
func SnapshotOf(p *domain.TrainingPlan) PlanSnapshot {
	return PlanSnapshot{
		ID:        p.ID,
		Name:      p.Name,
		StartDate: p.StartDate,
		EndDate:   p.EndDate(),
		Version:   p.Version,
		Days:      p.Days.Sorted(),
	}
}

// ClarificationAnswer carries the user's pick for a clarification_response request.
type ClarificationAnswer struct {
	ClarificationID string     `json:"clarificationId"`
	SelectedDate    civil.Date `json:"selectedDate"`
	OriginalMessage string     `json:"originalMessage"`
	DetectedPhrase  string     `json:"detectedPhrase"`
}

// Request is one call across the planner boundary.
type Request struct {
	Mode Mode `json:"mode"`
	// Message is the user's text; for clarification responses the chosen
	// date has already been substituted for the ambiguous phrase.
	Message       string               `json:"message"`
	ReferenceDate civil.Date           `json:"referenceDate"`
	TimeZone      string               `json:"timeZone"`
	ResolvedDates []dates.Resolution   `json:"resolvedDates,omitempty"`
	Plan          PlanSnapshot         `json:"plan"`
	Transcript    []domain.ChatMessage `json:"transcript,omitempty"`
	Profile       *domain.Profile      `json:"profile,omitempty"`
	Clarification *ClarificationAnswer `json:"clarification,omitempty"`
}

// Response is the planner's structured decision.
type Response struct {
	Outcome       Outcome                      `json:"outcome"`
	Message       string                       `json:"message"`
	Clarification *domain.ClarificationRequest `json:"clarification,omitempty"`
	Preview       *domain.PreviewSet           `json:"preview,omitempty"`
}

// ModificationPlanner decides what to do with a user's request.
type ModificationPlanner interface {
	Plan(ctx context.Context, req Request) (*Response, error)
}

// Func adapts an ordinary function to ModificationPlanner.
type Func func(ctx context.Context, req Request) (*Response, error)

// Plan calls f(ctx, req).
func (f Func) Plan(ctx context.Context, req Request) (*Response, error) {
	return f(ctx, req)
}
