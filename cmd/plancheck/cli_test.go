package main

import (
	"bytes"
	"context"
	"testing"

	"alcyxob/run-coach/internal/domain"
	"alcyxob/run-coach/internal/repository"
	"alcyxob/run-coach/internal/repository/memory"
	"alcyxob/run-coach/internal/storage"

	"cloud.google.com/go/civil"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

func newTestCmd() (*cobra.Command, *bytes.Buffer) {
	logger = zap.NewNop()
	out := &bytes.Buffer{}
	cmd := &cobra.Command{}
	cmd.SetOut(out)
	cmd.SetContext(context.Background())
	return cmd, out
}

func useStore(t *testing.T, store *memory.Store) {
	t.Helper()
	prev := openRepositories
	openRepositories = func(context.Context) (repository.Set, func(), error) {
		return store.Set(), func() {}, nil
	}
	t.Cleanup(func() { openRepositories = prev })
}

func resetVerifyFlags(t *testing.T) {
	t.Helper()
	t.Cleanup(func() {
		verifyPlanID, verifyAll, verifyRepair, verifyConcurrency = "", false, false, 4
	})
}

// sparsePlan stores a one-week plan whose only record is its first day.
func sparsePlan(t *testing.T, store *memory.Store) primitive.ObjectID {
	t.Helper()
	start := civil.Date{Year: 2024, Month: 6, Day: 10}
	plan := &domain.TrainingPlan{
		OwnerID:    primitive.NewObjectID(),
		Name:       "Base week",
		StartDate:  start,
		TotalWeeks: 1,
		Days: domain.DayListOf([]domain.DayRecord{
			{Date: start, Title: "Easy 5k", WorkoutKind: domain.WorkoutNormal},
		}),
	}
	id, err := store.Plans.Create(context.Background(), plan)
	require.NoError(t, err)
	return id
}

func TestResolveCmd(t *testing.T) {
	cmd, out := newTestCmd()
	resolveRef, resolveZone = "2024-06-12", "UTC"
	defer func() { resolveRef, resolveZone = "", "" }()

	require.NoError(t, runResolve(cmd, []string{"swap", "tomorrow", "with", "saturday"}))
	assert.Contains(t, out.String(), `"tomorrow" -> 2024-06-13`)
	assert.Contains(t, out.String(), `"saturday" -> ambiguous: 2024-06-15, 2024-06-22`)
}

func TestResolveCmdRejectsBadInput(t *testing.T) {
	cmd, _ := newTestCmd()
	defer func() { resolveRef, resolveZone = "", "" }()

	resolveZone = "Mars/Olympus"
	assert.Error(t, runResolve(cmd, []string{"today"}))

	resolveZone, resolveRef = "", "12/06/2024"
	assert.Error(t, runResolve(cmd, []string{"today"}))
}

func TestVerifyCmdReportsWithoutRepair(t *testing.T) {
	store := memory.NewStore()
	useStore(t, store)
	resetVerifyFlags(t)
	id := sparsePlan(t, store)

	cmd, out := newTestCmd()
	verifyPlanID = id.Hex()
	err := runVerify(cmd, nil)
	assert.ErrorIs(t, err, errInconsistent)
	assert.Contains(t, out.String(), "needs 6 repairs")

	plan, err := store.Plans.GetByID(context.Background(), id)
	require.NoError(t, err)
	assert.Len(t, plan.Days, 1)
	assert.EqualValues(t, 1, plan.Version)
}

func TestVerifyCmdRepairsAll(t *testing.T) {
	store := memory.NewStore()
	useStore(t, store)
	resetVerifyFlags(t)
	first := sparsePlan(t, store)
	second := sparsePlan(t, store)

	cmd, out := newTestCmd()
	verifyAll, verifyRepair, verifyConcurrency = true, true, 2
	require.NoError(t, runVerify(cmd, nil))
	assert.Contains(t, out.String(), "2 plans checked, 0 inconsistent")

	for _, id := range []primitive.ObjectID{first, second} {
		plan, err := store.Plans.GetByID(context.Background(), id)
		require.NoError(t, err)
		assert.Len(t, plan.Days, 7)
		assert.EqualValues(t, 2, plan.Version)
		assert.True(t, plan.Days[civil.Date{Year: 2024, Month: 6, Day: 16}].IsRest())
	}

	// A second sweep finds nothing left to do.
	out.Reset()
	require.NoError(t, runVerify(cmd, nil))
	assert.Contains(t, out.String(), "2 plans checked, 0 inconsistent")
}

func TestVerifyCmdStrayDaysDoNotFailRepair(t *testing.T) {
	store := memory.NewStore()
	useStore(t, store)
	resetVerifyFlags(t)

	start := civil.Date{Year: 2024, Month: 6, Day: 10}
	records := []domain.DayRecord{{Date: start.AddDays(9), Title: "Orphan tempo", WorkoutKind: domain.WorkoutNormal}}
	for i := 0; i < 7; i++ {
		records = append(records, domain.RestDay(start.AddDays(i)))
	}
	id, err := store.Plans.Create(context.Background(), &domain.TrainingPlan{
		OwnerID:    primitive.NewObjectID(),
		Name:       "Base week",
		StartDate:  start,
		TotalWeeks: 1,
		Days:       domain.DayListOf(records),
	})
	require.NoError(t, err)

	cmd, out := newTestCmd()
	verifyAll, verifyRepair = true, true
	require.NoError(t, runVerify(cmd, nil))
	assert.Contains(t, out.String(), id.Hex()+" v1 has 1 days outside the plan range")
	assert.Contains(t, out.String(), "2024-06-19 stray_day")
	assert.Contains(t, out.String(), "1 plans checked, 0 inconsistent")
}

func TestVerifyCmdFlagValidation(t *testing.T) {
	resetVerifyFlags(t)
	cmd, _ := newTestCmd()

	assert.Error(t, runVerify(cmd, nil))

	verifyAll, verifyPlanID = true, primitive.NewObjectID().Hex()
	assert.Error(t, runVerify(cmd, nil))
}

type stubArchive struct {
	snapshots map[int64]*storage.Snapshot
}

func (a *stubArchive) Archive(context.Context, *domain.TrainingPlan) error { return nil }

func (a *stubArchive) Fetch(_ context.Context, _ primitive.ObjectID, version int64) (*storage.Snapshot, error) {
	s, ok := a.snapshots[version]
	if !ok {
		return nil, storage.ErrSnapshotNotFound
	}
	return s, nil
}

func (a *stubArchive) Versions(context.Context, primitive.ObjectID) ([]int64, error) {
	var out []int64
	for v := int64(1); v <= int64(len(a.snapshots)); v++ {
		out = append(out, v)
	}
	return out, nil
}

func TestSnapshotCmd(t *testing.T) {
	planID := primitive.NewObjectID()
	archive := &stubArchive{snapshots: map[int64]*storage.Snapshot{
		1: {PlanID: planID, Name: "Base week", Version: 1},
		2: {PlanID: planID, Name: "Base week", Version: 2},
	}}
	prev := openArchive
	openArchive = func(context.Context) (storage.SnapshotArchive, error) { return archive, nil }
	defer func() { openArchive = prev; snapshotVersion = 0 }()

	cmd, out := newTestCmd()
	require.NoError(t, runSnapshot(cmd, []string{planID.Hex()}))
	assert.Contains(t, out.String(), "v2\t"+storage.SnapshotKey(planID, 2))

	out.Reset()
	snapshotVersion = 2
	require.NoError(t, runSnapshot(cmd, []string{planID.Hex()}))
	assert.Contains(t, out.String(), `"version": 2`)

	snapshotVersion = 9
	assert.Error(t, runSnapshot(cmd, []string{planID.Hex()}))
	assert.Error(t, runSnapshot(cmd, []string{"not-an-id"}))
}
