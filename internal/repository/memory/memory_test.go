package memory

import (
	"alcyxob/run-coach/internal/domain"
	"alcyxob/run-coach/internal/repository"
	"context"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

var june12 = civil.Date{Year: 2024, Month: 6, Day: 12}

func newPlan() *domain.TrainingPlan {
	return &domain.TrainingPlan{
		OwnerID:    primitive.NewObjectID(),
		Name:       "Summer 10k",
		StartDate:  june12,
		TotalWeeks: 1,
		Days: domain.DayListOf([]domain.DayRecord{
			{Date: june12, Title: "Easy 5k", WorkoutKind: domain.WorkoutNormal},
		}),
	}
}

func TestPlanCommitDaysIsVersionGated(t *testing.T) {
	ctx := context.Background()
	repo := NewStore().Plans

	plan := newPlan()
	id, err := repo.Create(ctx, plan)
	require.NoError(t, err)
	assert.EqualValues(t, 1, plan.Version)

	days := plan.Days.Clone()
	days[june12] = domain.RestDay(june12)
	v, err := repo.CommitDays(ctx, id, 1, days)
	require.NoError(t, err)
	assert.EqualValues(t, 2, v)

	_, err = repo.CommitDays(ctx, id, 1, plan.Days)
	assert.ErrorIs(t, err, repository.ErrVersionMismatch)

	stored, err := repo.GetByID(ctx, id)
	require.NoError(t, err)
	assert.True(t, stored.Days[june12].IsRest())

	_, err = repo.CommitDays(ctx, primitive.NewObjectID(), 1, days)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestPlanReadsAreCopies(t *testing.T) {
	ctx := context.Background()
	repo := NewStore().Plans
	id, err := repo.Create(ctx, newPlan())
	require.NoError(t, err)

	got, err := repo.GetByID(ctx, id)
	require.NoError(t, err)
	got.Days[june12] = domain.RestDay(june12)

	again, err := repo.GetByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "Easy 5k", again.Days[june12].Title)
}

func TestPreviewSingleHeldPerPlan(t *testing.T) {
	ctx := context.Background()
	repo := NewStore().Previews
	planID := primitive.NewObjectID()

	first := &domain.PreviewSet{ID: "p1", PlanID: planID, BasisVersion: 1}
	require.NoError(t, repo.Create(ctx, first))
	assert.Equal(t, domain.PreviewHeld, first.State)

	err := repo.Create(ctx, &domain.PreviewSet{ID: "p2", PlanID: planID, BasisVersion: 1})
	assert.ErrorIs(t, err, repository.ErrDuplicate)

	held, err := repo.GetHeld(ctx, planID)
	require.NoError(t, err)
	assert.Equal(t, "p1", held.ID)

	at := time.Date(2024, 6, 12, 8, 0, 0, 0, time.UTC)
	require.NoError(t, repo.Transition(ctx, "p1", domain.PreviewHeld, domain.PreviewRejected, at))
	assert.ErrorIs(t, repo.Transition(ctx, "p1", domain.PreviewHeld, domain.PreviewCommitted, at), repository.ErrStateMismatch)

	_, err = repo.GetHeld(ctx, planID)
	assert.ErrorIs(t, err, repository.ErrNotFound)
	rejected, err := repo.GetByID(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, domain.PreviewRejected, rejected.State)
	_, err = repo.GetByID(ctx, "missing")
	assert.ErrorIs(t, err, repository.ErrNotFound)
	require.NoError(t, repo.Create(ctx, &domain.PreviewSet{ID: "p2", PlanID: planID, BasisVersion: 1}))
}

func TestClarificationCreateSupersedesAwaiting(t *testing.T) {
	ctx := context.Background()
	repo := NewStore().Clarifications
	planID := primitive.NewObjectID()

	require.NoError(t, repo.Create(ctx, &domain.ClarificationRequest{ID: "c1", PlanID: planID}))
	require.NoError(t, repo.Create(ctx, &domain.ClarificationRequest{ID: "c2", PlanID: planID}))

	state, ok := repo.State("c1")
	require.True(t, ok)
	assert.Equal(t, domain.ClarificationSuperseded, state)

	awaiting, err := repo.GetAwaiting(ctx, planID)
	require.NoError(t, err)
	assert.Equal(t, "c2", awaiting.ID)

	assert.ErrorIs(t, repo.Create(ctx, &domain.ClarificationRequest{ID: "c2", PlanID: planID}), repository.ErrDuplicate)
}

func TestTranscriptAppendAndTail(t *testing.T) {
	ctx := context.Background()
	repo := NewStore().Transcripts
	planID, ownerID := primitive.NewObjectID(), primitive.NewObjectID()

	require.NoError(t, repo.Append(ctx, planID, ownerID,
		domain.ChatMessage{Role: domain.RoleUser, Content: "move tuesday"},
		domain.ChatMessage{Role: domain.RoleAssistant, Content: "which tuesday?"},
	))
	require.NoError(t, repo.Append(ctx, planID, ownerID, domain.ChatMessage{Role: domain.RoleUser, Content: "the first"}))

	all, err := repo.Tail(ctx, planID, 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	for i, m := range all {
		assert.Equal(t, i, m.Seq)
	}

	tail, err := repo.Tail(ctx, planID, 2)
	require.NoError(t, err)
	require.Len(t, tail, 2)
	assert.Equal(t, "which tuesday?", tail[0].Content)

	empty, err := repo.Tail(ctx, primitive.NewObjectID(), 5)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestProfileUpsert(t *testing.T) {
	ctx := context.Background()
	repo := NewStore().Profiles
	userID := primitive.NewObjectID()

	_, err := repo.GetByUserID(ctx, userID)
	assert.ErrorIs(t, err, repository.ErrNotFound)

	require.NoError(t, repo.Upsert(ctx, &domain.Profile{UserID: userID, DisplayName: "Sam", TimeZone: "Europe/Berlin"}))
	require.NoError(t, repo.Upsert(ctx, &domain.Profile{UserID: userID, DisplayName: "Sam", TimeZone: "America/Denver"}))

	got, err := repo.GetByUserID(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, "America/Denver", got.TimeZone)
	assert.False(t, got.UpdatedAt.IsZero())
}
