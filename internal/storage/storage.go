package storage

import (
	"alcyxob/run-coach/internal/domain"
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// SnapshotArchive keeps an immutable copy of every committed plan version.
type SnapshotArchive interface {
	// Archive stores the plan under its current version.
	Archive(ctx context.Context, plan *domain.TrainingPlan) error
	// Fetch loads one archived version.
	Fetch(ctx context.Context, planID primitive.ObjectID, version int64) (*Snapshot, error)
	// Versions lists the archived versions of a plan in ascending order.
	Versions(ctx context.Context, planID primitive.ObjectID) ([]int64, error)
}

// Error constants for storage layer
var (
	ErrSnapshotNotFound = errors.New("snapshot not found in storage")
)

// Snapshot is the archived form of a committed plan version.
type Snapshot struct {
	PlanID     primitive.ObjectID `json:"planId"`
	OwnerID    primitive.ObjectID `json:"ownerId"`
	Name       string             `json:"name"`
	StartDate  civil.Date         `json:"startDate"`
	TotalWeeks int                `json:"totalWeeks"`
	Version    int64              `json:"version"`
	Days       []domain.DayRecord `json:"days"`
	ArchivedAt time.Time          `json:"archivedAt"`
}

// SnapshotOf captures plan for archiving.
func SnapshotOf(plan *domain.TrainingPlan, at time.Time) *Snapshot {
	return &Snapshot{
		PlanID:     plan.ID,
		OwnerID:    plan.OwnerID,
		Name:       plan.Name,
		StartDate:  plan.StartDate,
		TotalWeeks: plan.TotalWeeks,
		Version:    plan.Version,
		Days:       plan.Days.Sorted(),
		ArchivedAt: at.UTC(),
	}
}

// Plan rebuilds the plan the snapshot was taken from.
func (s *Snapshot) Plan() *domain.TrainingPlan {
	return &domain.TrainingPlan{
		ID:         s.PlanID,
		OwnerID:    s.OwnerID,
		Name:       s.Name,
		StartDate:  s.StartDate,
		TotalWeeks: s.TotalWeeks,
		Version:    s.Version,
		Days:       domain.DayListOf(s.Days),
	}
}

// SnapshotPrefix is the key prefix of every snapshot of a plan.
func SnapshotPrefix(planID primitive.ObjectID) string {
	return "plans/" + planID.Hex() + "/"
}

// SnapshotKey is the object key of one plan version, e.g. plans/<id>/v000003.json.
func SnapshotKey(planID primitive.ObjectID, version int64) string {
	return fmt.Sprintf("%sv%06d.json", SnapshotPrefix(planID), version)
}

// versionFromKey parses the version out of a snapshot key.
func versionFromKey(key string) (int64, bool) {
	i := strings.LastIndex(key, "/v")
	if i < 0 || !strings.HasSuffix(key, ".json") {
		return 0, false
	}
	v, err := strconv.ParseInt(key[i+2:len(key)-len(".json")], 10, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
