package service

import (
	"alcyxob/run-coach/internal/domain"
	"alcyxob/run-coach/internal/planner"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// cancelResolved answers with a preview cancelling the first resolved date.
func cancelResolved(now func() time.Time) planner.Func {
	return func(_ context.Context, req planner.Request) (*planner.Response, error) {
		target := req.ResolvedDates[0].Date
		return &planner.Response{
			Outcome: planner.OutcomePreview,
			Message: "I'll cancel " + target.String() + ".",
			Preview: &domain.PreviewSet{
				ID:            uuid.NewString(),
				BasisVersion:  req.Plan.Version,
				Modifications: []domain.Modification{{Date: target, Operation: domain.OpCancel}},
				ExpiresAt:     now().Add(10 * time.Minute),
			},
		}, nil
	}
}

func TestAssistant_DraftAmbiguousAsksFirst(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	reply, err := f.assistant.Handle(ctx, f.owner, f.plan.ID, AssistantRequest{Mode: planner.ModeDraft, Message: "skip Friday"})
	require.NoError(t, err)
	assert.Equal(t, string(planner.OutcomeClarification), reply.Outcome)
	require.NotNil(t, reply.Clarification)
	assert.Zero(t, f.calls)

	pending, err := f.assistant.PendingClarification(ctx, f.owner, f.plan.ID)
	require.NoError(t, err)
	assert.Equal(t, reply.Clarification.ID, pending.ID)

	msgs, err := f.assistant.Messages(ctx, f.owner, f.plan.ID)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, domain.RoleUser, msgs[0].Role)
	assert.Equal(t, "skip Friday", msgs[0].Content)
	assert.Equal(t, `Which "Friday" do you mean?`, msgs[1].Content)
}

func TestAssistant_UpstreamFailureChangesNothing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.next = func(context.Context, planner.Request) (*planner.Response, error) {
		return nil, errors.New("503 from upstream")
	}

	_, err := f.assistant.Handle(ctx, f.owner, f.plan.ID, AssistantRequest{Mode: planner.ModeDraft, Message: "skip tomorrow"})
	assert.ErrorIs(t, err, planner.ErrUpstreamFailure)

	msgs, err := f.assistant.Messages(ctx, f.owner, f.plan.ID)
	require.NoError(t, err)
	assert.Empty(t, msgs)
	_, err = f.assistant.PendingPreview(ctx, f.owner, f.plan.ID)
	assert.ErrorIs(t, err, ErrUnknownPreview)
	assert.Equal(t, int64(1), f.reload(t).Version)
}

func TestAssistant_DraftPreviewCommit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.next = cancelResolved(f.clock.Now)

	reply, err := f.assistant.Handle(ctx, f.owner, f.plan.ID, AssistantRequest{Mode: planner.ModeDraft, Message: "skip tomorrow"})
	require.NoError(t, err)
	assert.Equal(t, string(planner.OutcomePreview), reply.Outcome)
	require.NotNil(t, reply.Preview)
	assert.Equal(t, f.plan.ID, reply.Preview.PlanID)
	assert.Equal(t, "2024-06-13", f.last.ResolvedDates[0].Date.String())
	assert.Equal(t, "2024-06-12", f.last.ReferenceDate.String())

	_, err = f.assistant.Handle(ctx, f.owner, f.plan.ID, AssistantRequest{Mode: planner.ModeDraft, Message: "also skip today"})
	assert.ErrorIs(t, err, ErrPreviewPending)
	assert.Equal(t, 1, f.calls)

	done, err := f.assistant.Handle(ctx, f.owner, f.plan.ID, AssistantRequest{Mode: planner.ModeCommit, PreviewID: reply.Preview.ID})
	require.NoError(t, err)
	assert.Equal(t, OutcomeCommitted, done.Outcome)
	require.NotNil(t, done.Plan)
	assert.Equal(t, int64(2), done.Plan.Plan.Version)
	assert.Equal(t, "Rest", slotTitle(t, done.Plan.Grid, d(t, "2024-06-13")))

	msgs, err := f.assistant.Messages(ctx, f.owner, f.plan.ID)
	require.NoError(t, err)
	assert.Len(t, msgs, 3)

	_, err = f.assistant.Handle(ctx, f.owner, f.plan.ID, AssistantRequest{Mode: planner.ModeCommit, PreviewID: reply.Preview.ID})
	assert.ErrorIs(t, err, ErrUnknownPreview)
}

func TestAssistant_ClarificationThenPreview(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.next = cancelResolved(f.clock.Now)

	asked, err := f.assistant.Handle(ctx, f.owner, f.plan.ID, AssistantRequest{Mode: planner.ModeDraft, Message: "cancel Thursday"})
	require.NoError(t, err)
	require.NotNil(t, asked.Clarification)

	reply, err := f.assistant.Handle(ctx, f.owner, f.plan.ID, AssistantRequest{
		Mode:            planner.ModeClarificationResponse,
		ClarificationID: asked.Clarification.ID,
		OptionID:        "2024-06-13",
	})
	require.NoError(t, err)
	assert.Equal(t, string(planner.OutcomePreview), reply.Outcome)
	assert.Equal(t, "cancel 2024-06-13", f.last.Message)

	held, err := f.assistant.PendingPreview(ctx, f.owner, f.plan.ID)
	require.NoError(t, err)
	assert.Equal(t, reply.Preview.ID, held.ID)

	msgs, err := f.assistant.Messages(ctx, f.owner, f.plan.ID)
	require.NoError(t, err)
	require.Len(t, msgs, 4)
	assert.Equal(t, "Thursday, June 13", msgs[2].Content)

	require.NoError(t, f.assistant.RejectPreview(ctx, f.owner, f.plan.ID, held.ID))
	assert.Equal(t, int64(1), f.reload(t).Version)
}

func TestAssistant_ClarificationStaysAwaitingWhenHoldFails(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.next = cancelResolved(f.clock.Now)

	asked, err := f.assistant.Handle(ctx, f.owner, f.plan.ID, AssistantRequest{Mode: planner.ModeDraft, Message: "cancel Thursday"})
	require.NoError(t, err)
	require.NotNil(t, asked.Clarification)

	// A preview held in the meantime blocks the one the answer produces.
	blocker := f.preview(cancel(d(t, "2024-06-15")))
	require.NoError(t, f.store.Previews.Create(ctx, blocker))

	answer := AssistantRequest{
		Mode:            planner.ModeClarificationResponse,
		ClarificationID: asked.Clarification.ID,
		OptionID:        "2024-06-13",
	}
	_, err = f.assistant.Handle(ctx, f.owner, f.plan.ID, answer)
	assert.ErrorIs(t, err, ErrPreviewAlreadyHeld)

	pending, err := f.assistant.PendingClarification(ctx, f.owner, f.plan.ID)
	require.NoError(t, err)
	assert.Equal(t, asked.Clarification.ID, pending.ID)
	msgs, err := f.assistant.Messages(ctx, f.owner, f.plan.ID)
	require.NoError(t, err)
	assert.Len(t, msgs, 2)

	require.NoError(t, f.previews.Reject(ctx, f.owner, f.plan.ID, blocker.ID))
	reply, err := f.assistant.Handle(ctx, f.owner, f.plan.ID, answer)
	require.NoError(t, err)
	assert.Equal(t, string(planner.OutcomePreview), reply.Outcome)

	state, ok := f.store.Clarifications.State(asked.Clarification.ID)
	require.True(t, ok)
	assert.Equal(t, domain.ClarificationResolved, state)
}

func TestAssistant_DraftSupersedesClarification(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	asked, err := f.assistant.Handle(ctx, f.owner, f.plan.ID, AssistantRequest{Mode: planner.ModeDraft, Message: "cancel Thursday"})
	require.NoError(t, err)
	_, err = f.assistant.Handle(ctx, f.owner, f.plan.ID, AssistantRequest{Mode: planner.ModeDraft, Message: "how far is my long run?"})
	require.NoError(t, err)

	state, _ := f.store.Clarifications.State(asked.Clarification.ID)
	assert.Equal(t, domain.ClarificationSuperseded, state)
	_, err = f.assistant.PendingClarification(ctx, f.owner, f.plan.ID)
	assert.ErrorIs(t, err, ErrUnknownClarification)
}

func TestAssistant_ProfileTimeZoneDrivesDates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.clock.now = time.Date(2024, 6, 12, 20, 0, 0, 0, time.UTC)
	_, err := f.plans.UpsertProfile(ctx, &domain.Profile{UserID: f.owner, DisplayName: "Aki", TimeZone: "Asia/Tokyo"})
	require.NoError(t, err)
	f.next = cancelResolved(f.clock.Now)

	_, err = f.assistant.Handle(ctx, f.owner, f.plan.ID, AssistantRequest{Mode: planner.ModeDraft, Message: "skip tomorrow"})
	require.NoError(t, err)
	assert.Equal(t, "2024-06-13", f.last.ReferenceDate.String())
	assert.Equal(t, "2024-06-14", f.last.ResolvedDates[0].Date.String())
	assert.Equal(t, "Asia/Tokyo", f.last.TimeZone)
	require.NotNil(t, f.last.Profile)
}

func TestAssistant_RequestValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	cases := []struct {
		name string
		req  AssistantRequest
		want error
	}{
		{"unknown mode", AssistantRequest{Mode: "chat"}, ErrUnsupportedMode},
		{"empty draft", AssistantRequest{Mode: planner.ModeDraft, Message: "  "}, ErrInvalidRequest},
		{"clarification without ids", AssistantRequest{Mode: planner.ModeClarificationResponse}, ErrInvalidRequest},
		{"commit without preview", AssistantRequest{Mode: planner.ModeCommit}, ErrInvalidRequest},
		{"clarification with nothing pending", AssistantRequest{Mode: planner.ModeClarificationResponse, ClarificationID: "c", OptionID: "2024-06-14"}, ErrUnknownClarification},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.assistant.Handle(ctx, f.owner, f.plan.ID, tc.req)
			assert.ErrorIs(t, err, tc.want)
		})
	}
	assert.ErrorIs(t, f.assistant.CancelClarification(ctx, f.owner, f.plan.ID), ErrUnknownClarification)
}
