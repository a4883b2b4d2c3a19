package repository

import (
	"alcyxob/run-coach/internal/domain" // Import our defined domain models
	"context"                           // Standard for request-scoped deadlines, cancellation signals, etc.
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive" // For using ObjectIDs
)

// Error constants for repository layer
var (
	ErrNotFound        = RepositoryError("not found")
	ErrDuplicate       = RepositoryError("duplicate")
	ErrVersionMismatch = RepositoryError("version mismatch")
	ErrStateMismatch   = RepositoryError("state mismatch")
)

// RepositoryError helps distinguish repository errors
type RepositoryError string

func (e RepositoryError) Error() string {
	return string(e)
}

// PlanRepository stores training plans. Writes always derive the stored
// week cache from the day list; reads never trust it.
type PlanRepository interface {
	Create(ctx context.Context, plan *domain.TrainingPlan) (primitive.ObjectID, error)
	GetByID(ctx context.Context, id primitive.ObjectID) (*domain.TrainingPlan, error)
	GetByOwner(ctx context.Context, ownerID primitive.ObjectID) ([]domain.TrainingPlan, error)
	ListIDs(ctx context.Context) ([]primitive.ObjectID, error)
	// CommitDays replaces the day list and increments the version, but only if
	// the stored version still equals basisVersion. Returns the new version, or
	// ErrVersionMismatch when another commit got there first.
	CommitDays(ctx context.Context, planID primitive.ObjectID, basisVersion int64, days domain.DayList) (int64, error)
}

// PreviewRepository stores preview sets. At most one preview per plan may be
// in the held state.
type PreviewRepository interface {
	// Create stores a held preview; ErrDuplicate if the plan already holds one.
	Create(ctx context.Context, preview *domain.PreviewSet) error
	GetHeld(ctx context.Context, planID primitive.ObjectID) (*domain.PreviewSet, error)
	// GetByID loads a preview in any state.
	GetByID(ctx context.Context, previewID string) (*domain.PreviewSet, error)
	// Transition moves a preview from one state to another, failing with
	// ErrStateMismatch if it is not currently in "from".
	Transition(ctx context.Context, previewID string, from, to domain.PreviewState, at time.Time) error
}

// ClarificationRepository stores clarification requests.
type ClarificationRepository interface {
	// Create stores an awaiting request, superseding any awaiting one for the plan.
	Create(ctx context.Context, req *domain.ClarificationRequest) error
	GetAwaiting(ctx context.Context, planID primitive.ObjectID) (*domain.ClarificationRequest, error)
	Transition(ctx context.Context, clarificationID string, from, to domain.ClarificationState) error
}

// TranscriptRepository is an append-only message log per plan.
type TranscriptRepository interface {
	Append(ctx context.Context, planID, ownerID primitive.ObjectID, msgs ...domain.ChatMessage) error
	// Tail returns the last n messages in order; n <= 0 returns all.
	Tail(ctx context.Context, planID primitive.ObjectID, n int) ([]domain.ChatMessage, error)
}

// ProfileRepository stores runner profiles keyed by user.
type ProfileRepository interface {
	Upsert(ctx context.Context, profile *domain.Profile) error
	GetByUserID(ctx context.Context, userID primitive.ObjectID) (*domain.Profile, error)
}

// Set bundles one implementation of every repository.
type Set struct {
	Plans          PlanRepository
	Previews       PreviewRepository
	Clarifications ClarificationRepository
	Transcripts    TranscriptRepository
	Profiles       ProfileRepository
}
