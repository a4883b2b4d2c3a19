package mongo

import (
	"alcyxob/run-coach/internal/domain"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestPlanDocumentCachesWeeksButReadsDays(t *testing.T) {
	start := civil.Date{Year: 2024, Month: 6, Day: 12} // Wednesday
	plan := &domain.TrainingPlan{
		ID:         primitive.NewObjectID(),
		OwnerID:    primitive.NewObjectID(),
		Name:       "Summer 10k",
		StartDate:  start,
		TotalWeeks: 1,
		Version:    3,
		Days: domain.DayListOf([]domain.DayRecord{
			{Date: start.AddDays(1), Title: "Intervals", WorkoutKind: domain.WorkoutNormal},
			{Date: start, Title: "Easy 5k", Tips: []string{"keep it chatty"}, WorkoutKind: domain.WorkoutNormal},
		}),
		CreatedAt: time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
		UpdatedAt: time.Date(2024, 6, 2, 0, 0, 0, 0, time.UTC),
	}

	doc := toPlanDocument(plan)
	require.Len(t, doc.Days, 2)
	assert.Equal(t, "2024-06-12", doc.Days[0].Date)
	// A Wednesday start spans two Monday-aligned weeks.
	require.Len(t, doc.Weeks, 2)
	assert.Equal(t, "2024-06-10", doc.Weeks[0].Start)

	raw, err := bson.Marshal(doc)
	require.NoError(t, err)
	var decoded planDocument
	require.NoError(t, bson.Unmarshal(raw, &decoded))
	decoded.Weeks = nil

	got, err := fromPlanDocument(decoded)
	require.NoError(t, err)
	if diff := cmp.Diff(plan, got); diff != "" {
		t.Errorf("plan mismatch (-want +got):\n%s", diff)
	}
}

func TestPreviewDocumentKeepsRescheduleTarget(t *testing.T) {
	from := civil.Date{Year: 2024, Month: 6, Day: 13}
	to := civil.Date{Year: 2024, Month: 6, Day: 14}
	preview := &domain.PreviewSet{
		ID:           "preview-1",
		PlanID:       primitive.NewObjectID(),
		BasisVersion: 2,
		Modifications: []domain.Modification{
			{Date: from, Operation: domain.OpReschedule, Before: domain.WorkoutSnapshot{Title: "Intervals"},
				After: &domain.ModificationTarget{Title: "Intervals", Date: &to}},
			{Date: to.AddDays(1), Operation: domain.OpCancel, Before: domain.WorkoutSnapshot{Title: "Long run"}},
		},
		ExpiresAt: time.Date(2024, 6, 12, 9, 15, 0, 0, time.UTC),
		State:     domain.PreviewHeld,
		CreatedAt: time.Date(2024, 6, 12, 9, 0, 0, 0, time.UTC),
	}

	got, err := fromPreviewDocument(toPreviewDocument(preview))
	require.NoError(t, err)
	if diff := cmp.Diff(preview, got); diff != "" {
		t.Errorf("preview mismatch (-want +got):\n%s", diff)
	}
	assert.Nil(t, got.Modifications[1].After)
}

func TestFromPlanDocumentRejectsBadDates(t *testing.T) {
	_, err := fromPlanDocument(planDocument{StartDate: "12/06/2024"})
	assert.Error(t, err)

	_, err = fromPlanDocument(planDocument{StartDate: "2024-06-12", Days: []dayDocument{{Date: "soon"}}})
	assert.Error(t, err)
}
