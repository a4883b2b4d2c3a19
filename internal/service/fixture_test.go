package service

import (
	"alcyxob/run-coach/internal/domain"
	"alcyxob/run-coach/internal/grid"
	"alcyxob/run-coach/internal/planner"
	"alcyxob/run-coach/internal/repository/memory"
	"context"
	"sync"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fakeArchive struct {
	mu       sync.Mutex
	versions []int64
}

func (a *fakeArchive) Archive(_ context.Context, plan *domain.TrainingPlan) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.versions = append(a.versions, plan.Version)
	return nil
}

// fixture wires every service over a memory store. The inner planner is
// swapped per test through next; calls counts how often it was reached.
type fixture struct {
	store   *memory.Store
	clock   *fakeClock
	archive *fakeArchive

	plans          PlanService
	previews       PreviewService
	clarifications ClarificationService
	transcript     TranscriptService
	assistant      AssistantService

	next  planner.Func
	calls int
	last  planner.Request

	owner primitive.ObjectID
	plan  *domain.TrainingPlan
}

func d(t *testing.T, s string) civil.Date {
	t.Helper()
	v, err := civil.ParseDate(s)
	require.NoError(t, err)
	return v
}

func workout(t *testing.T, date, title, desc string) domain.DayRecord {
	return domain.DayRecord{Date: d(t, date), Title: title, WorkoutDescription: desc, WorkoutKind: domain.WorkoutNormal}
}

// newFixture creates a two-week plan starting Wednesday 2024-06-12, with
// the clock at 08:00 UTC that morning.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger := zap.NewNop()
	f := &fixture{
		store:   memory.NewStore(),
		clock:   &fakeClock{now: time.Date(2024, 6, 12, 8, 0, 0, 0, time.UTC)},
		archive: &fakeArchive{},
		owner:   primitive.NewObjectID(),
	}
	f.next = func(context.Context, planner.Request) (*planner.Response, error) {
		return &planner.Response{Outcome: planner.OutcomeInfo, Message: "ok"}, nil
	}
	inner := planner.Func(func(ctx context.Context, req planner.Request) (*planner.Response, error) {
		f.calls++
		f.last = req
		return f.next(ctx, req)
	})
	guarded := planner.NewDateGuard(inner)

	f.plans = NewPlanService(f.store.Plans, f.store.Profiles, logger)
	f.previews = NewPreviewService(f.store.Plans, f.store.Previews, f.archive, logger, f.clock.Now)
	f.clarifications = NewClarificationService(f.store.Clarifications, guarded, logger)
	f.transcript = NewTranscriptService(f.store.Transcripts, 10, f.clock.Now)
	f.assistant = NewAssistantService(AssistantDeps{
		Plans:          f.plans,
		Previews:       f.previews,
		Clarifications: f.clarifications,
		Transcript:     f.transcript,
		Planner:        guarded,
		Logger:         logger,
		Now:            f.clock.Now,
	})

	view, err := f.plans.CreatePlan(context.Background(), f.owner, "Summer 10k", d(t, "2024-06-12"), 2, []domain.DayRecord{
		workout(t, "2024-06-12", "Easy 5k", "Conversational pace"),
		workout(t, "2024-06-13", "Intervals", "6x800m at 5k pace"),
		workout(t, "2024-06-15", "Long run", "12k steady"),
		workout(t, "2024-06-19", "Tempo", "20 min at threshold"),
	})
	require.NoError(t, err)
	f.plan = view.Plan
	return f
}

func (f *fixture) preview(mods ...domain.Modification) *domain.PreviewSet {
	return &domain.PreviewSet{
		ID:            uuid.NewString(),
		PlanID:        f.plan.ID,
		BasisVersion:  f.plan.Version,
		Modifications: mods,
		ExpiresAt:     f.clock.Now().Add(15 * time.Minute),
	}
}

func (f *fixture) reload(t *testing.T) *domain.TrainingPlan {
	t.Helper()
	p, err := f.store.Plans.GetByID(context.Background(), f.plan.ID)
	require.NoError(t, err)
	return p
}

func cancel(date civil.Date) domain.Modification {
	return domain.Modification{Date: date, Operation: domain.OpCancel}
}

func reschedule(from, to civil.Date) domain.Modification {
	return domain.Modification{Date: from, Operation: domain.OpReschedule, After: &domain.ModificationTarget{Date: &to}}
}

func modify(date civil.Date, title, desc string) domain.Modification {
	return domain.Modification{Date: date, Operation: domain.OpModify, After: &domain.ModificationTarget{Title: title, Description: desc}}
}

func slotTitle(t *testing.T, g grid.Grid, date civil.Date) string {
	t.Helper()
	s, ok := g.Slot(date)
	require.True(t, ok, "grid does not cover %s", date)
	require.NotNil(t, s.Day, "slot %s has no day", date)
	return s.Day.Title
}
