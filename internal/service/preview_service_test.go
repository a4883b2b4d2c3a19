package service

import (
	"alcyxob/run-coach/internal/domain"
	"alcyxob/run-coach/internal/repository"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

func TestPreviewService_ApproveCommitsAndRebuildsGrid(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	thu, fri := d(t, "2024-06-13"), d(t, "2024-06-14")

	p := f.preview(reschedule(thu, fri))
	require.NoError(t, f.previews.Hold(ctx, p))

	view, err := f.previews.Approve(ctx, f.owner, f.plan.ID, p.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), view.Plan.Version)
	assert.Equal(t, "Rest", slotTitle(t, view.Grid, thu))
	assert.Equal(t, "Intervals", slotTitle(t, view.Grid, fri))
	assert.Empty(t, view.Grid.Repairs)

	stored := f.reload(t)
	assert.Equal(t, int64(2), stored.Version)
	assert.Equal(t, "Intervals", stored.Days[fri].Title)

	state, _ := f.store.Previews.State(p.ID)
	assert.Equal(t, domain.PreviewCommitted, state)
	assert.Equal(t, []int64{2}, f.archive.versions)
}

func TestPreviewService_ApproveTwice(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	p := f.preview(cancel(d(t, "2024-06-13")))
	require.NoError(t, f.previews.Hold(ctx, p))
	_, err := f.previews.Approve(ctx, f.owner, f.plan.ID, p.ID)
	require.NoError(t, err)

	_, err = f.previews.Approve(ctx, f.owner, f.plan.ID, p.ID)
	assert.ErrorIs(t, err, ErrUnknownPreview)
	assert.Equal(t, int64(2), f.reload(t).Version)
}

func TestPreviewService_ExpiredFailsClosed(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	p := f.preview(cancel(d(t, "2024-06-13")))
	require.NoError(t, f.previews.Hold(ctx, p))
	f.clock.Advance(16 * time.Minute)

	_, err := f.previews.Approve(ctx, f.owner, f.plan.ID, p.ID)
	assert.ErrorIs(t, err, ErrExpiredPreview)

	state, _ := f.store.Previews.State(p.ID)
	assert.Equal(t, domain.PreviewExpired, state)
	stored := f.reload(t)
	assert.Equal(t, int64(1), stored.Version)
	assert.Equal(t, "Intervals", stored.Days[d(t, "2024-06-13")].Title)

	_, err = f.previews.Approve(ctx, f.owner, f.plan.ID, p.ID)
	assert.ErrorIs(t, err, ErrExpiredPreview)
}

func TestPreviewService_ExpiredAfterRead(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	p := f.preview(cancel(d(t, "2024-06-13")))
	require.NoError(t, f.previews.Hold(ctx, p))
	f.clock.Advance(16 * time.Minute)

	// Reading the pending preview retires it before the approval arrives.
	_, err := f.assistant.PendingPreview(ctx, f.owner, f.plan.ID)
	require.ErrorIs(t, err, ErrUnknownPreview)
	state, _ := f.store.Previews.State(p.ID)
	require.Equal(t, domain.PreviewExpired, state)

	_, err = f.previews.Approve(ctx, f.owner, f.plan.ID, p.ID)
	assert.ErrorIs(t, err, ErrExpiredPreview)
	assert.Equal(t, int64(1), f.reload(t).Version)

	// An expired preview of another plan stays unknown here.
	other, err := f.plans.CreatePlan(ctx, f.owner, "Autumn 5k", d(t, "2024-09-02"), 1, nil)
	require.NoError(t, err)
	_, err = f.previews.Approve(ctx, f.owner, other.Plan.ID, p.ID)
	assert.ErrorIs(t, err, ErrUnknownPreview)
}

// flakyPreviews fails the first held->committed transition.
type flakyPreviews struct {
	repository.PreviewRepository
	failed bool
}

func (r *flakyPreviews) Transition(ctx context.Context, previewID string, from, to domain.PreviewState, at time.Time) error {
	if to == domain.PreviewCommitted && !r.failed {
		r.failed = true
		return errors.New("connection reset")
	}
	return r.PreviewRepository.Transition(ctx, previewID, from, to, at)
}

func TestPreviewService_CommitTransitionRetried(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	flaky := &flakyPreviews{PreviewRepository: f.store.Previews}
	previews := NewPreviewService(f.store.Plans, flaky, f.archive, zap.NewNop(), f.clock.Now)

	p := f.preview(cancel(d(t, "2024-06-13")))
	require.NoError(t, previews.Hold(ctx, p))
	_, err := previews.Approve(ctx, f.owner, f.plan.ID, p.ID)
	require.NoError(t, err)
	assert.True(t, flaky.failed)

	state, _ := f.store.Previews.State(p.ID)
	assert.Equal(t, domain.PreviewCommitted, state)

	_, err = previews.Approve(ctx, f.owner, f.plan.ID, p.ID)
	assert.ErrorIs(t, err, ErrUnknownPreview)

	// Nothing is left blocking the next preview.
	f.plan = f.reload(t)
	require.NoError(t, previews.Hold(ctx, f.preview(cancel(d(t, "2024-06-15")))))
}

func TestPreviewService_UnknownID(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.previews.Approve(ctx, f.owner, f.plan.ID, "nope")
	assert.ErrorIs(t, err, ErrUnknownPreview)

	p := f.preview(cancel(d(t, "2024-06-13")))
	require.NoError(t, f.previews.Hold(ctx, p))
	_, err = f.previews.Approve(ctx, f.owner, f.plan.ID, "nope")
	assert.ErrorIs(t, err, ErrUnknownPreview)

	state, _ := f.store.Previews.State(p.ID)
	assert.Equal(t, domain.PreviewHeld, state)
}

func TestPreviewService_VersionGate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	thu := d(t, "2024-06-13")

	p := f.preview(cancel(thu))
	require.NoError(t, f.previews.Hold(ctx, p))

	// Someone else commits first.
	other := f.plan.Days.Clone()
	other[thu] = workout(t, "2024-06-13", "Hills", "8x hill sprints")
	_, err := f.store.Plans.CommitDays(ctx, f.plan.ID, 1, other)
	require.NoError(t, err)
	before := f.reload(t)

	_, err = f.previews.Approve(ctx, f.owner, f.plan.ID, p.ID)
	require.ErrorIs(t, err, ErrVersionConflict)
	var conflict *VersionConflictError
	require.True(t, errors.As(err, &conflict))
	assert.Equal(t, int64(1), conflict.Basis)
	assert.Equal(t, int64(2), conflict.Current)

	after := f.reload(t)
	assert.Equal(t, before.Version, after.Version)
	if diff := cmp.Diff(before.Days, after.Days); diff != "" {
		t.Errorf("days changed on conflict (-before +after):\n%s", diff)
	}
	state, _ := f.store.Previews.State(p.ID)
	assert.Equal(t, domain.PreviewRejected, state)
}

func TestPreviewService_AtomicBatch(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	p := f.preview(
		cancel(d(t, "2024-06-13")),
		reschedule(d(t, "2024-06-15"), d(t, "2024-07-30")),
	)
	require.NoError(t, f.previews.Hold(ctx, p))

	_, err := f.previews.Approve(ctx, f.owner, f.plan.ID, p.ID)
	assert.ErrorIs(t, err, ErrInvalidModification)

	stored := f.reload(t)
	assert.Equal(t, int64(1), stored.Version)
	if diff := cmp.Diff(f.plan.Days, stored.Days); diff != "" {
		t.Errorf("partial batch persisted (-want +got):\n%s", diff)
	}
	state, _ := f.store.Previews.State(p.ID)
	assert.Equal(t, domain.PreviewRejected, state)
	assert.Empty(t, f.archive.versions)
}

func TestPreviewService_Hold(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first := f.preview(cancel(d(t, "2024-06-13")))
	require.NoError(t, f.previews.Hold(ctx, first))
	assert.ErrorIs(t, f.previews.Hold(ctx, f.preview(cancel(d(t, "2024-06-12")))), ErrPreviewAlreadyHeld)

	held, err := f.previews.Held(ctx, f.plan.ID)
	require.NoError(t, err)
	assert.Equal(t, first.ID, held.ID)

	f.clock.Advance(20 * time.Minute)
	_, err = f.previews.Held(ctx, f.plan.ID)
	assert.ErrorIs(t, err, ErrUnknownPreview)

	second := f.preview(cancel(d(t, "2024-06-12")))
	require.NoError(t, f.previews.Hold(ctx, second))
	state, _ := f.store.Previews.State(first.ID)
	assert.Equal(t, domain.PreviewExpired, state)

	assert.ErrorIs(t, f.previews.Hold(ctx, &domain.PreviewSet{ID: "x", PlanID: f.plan.ID}), ErrInvalidModification)
}

func TestPreviewService_Reject(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	p := f.preview(cancel(d(t, "2024-06-13")))
	require.NoError(t, f.previews.Hold(ctx, p))

	assert.ErrorIs(t, f.previews.Reject(ctx, f.owner, f.plan.ID, "other"), ErrUnknownPreview)
	require.NoError(t, f.previews.Reject(ctx, f.owner, f.plan.ID, p.ID))

	state, _ := f.store.Previews.State(p.ID)
	assert.Equal(t, domain.PreviewRejected, state)
	assert.Equal(t, int64(1), f.reload(t).Version)

	_, err := f.previews.Approve(ctx, f.owner, f.plan.ID, p.ID)
	assert.ErrorIs(t, err, ErrUnknownPreview)
	assert.ErrorIs(t, f.previews.Reject(ctx, f.owner, f.plan.ID, p.ID), ErrUnknownPreview)
}

func TestPreviewService_Ownership(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	p := f.preview(cancel(d(t, "2024-06-13")))
	require.NoError(t, f.previews.Hold(ctx, p))

	stranger := primitive.NewObjectID()
	_, err := f.previews.Approve(ctx, stranger, f.plan.ID, p.ID)
	assert.ErrorIs(t, err, ErrPlanAccessDenied)
	assert.ErrorIs(t, f.previews.Reject(ctx, stranger, f.plan.ID, p.ID), ErrPlanAccessDenied)

	_, err = f.previews.Approve(ctx, f.owner, primitive.NewObjectID(), p.ID)
	assert.ErrorIs(t, err, ErrPlanNotFound)
}
