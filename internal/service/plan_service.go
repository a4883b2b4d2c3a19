package service

import (
	"alcyxob/run-coach/internal/domain"
	"alcyxob/run-coach/internal/grid"
	"alcyxob/run-coach/internal/repository"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// --- Error Definitions ---
var (
	ErrPlanNotFound     = errors.New("training plan not found")
	ErrPlanAccessDenied = errors.New("access denied to this training plan")
	ErrInvalidPlan      = errors.New("invalid training plan")
	ErrProfileNotFound  = errors.New("profile not found")
	ErrInvalidTimeZone  = errors.New("unknown time zone")
)

// PlanView is a plan together with its freshly derived week grid.
type PlanView struct {
	Plan *domain.TrainingPlan
	Grid grid.Grid
}

// CheckReport describes the consistency of one stored plan.
type CheckReport struct {
	PlanID   primitive.ObjectID
	Version  int64
	Repairs  []grid.Repair
	Repaired bool  // Synthesized rest days were written back
	Err      error // Set when the write-back failed
}

// PlanService manages plans and runner profiles.
type PlanService interface {
	CreatePlan(ctx context.Context, ownerID primitive.ObjectID, name string, startDate civil.Date, totalWeeks int, days []domain.DayRecord) (*PlanView, error)
	GetPlanView(ctx context.Context, ownerID, planID primitive.ObjectID) (*PlanView, error)
	ListPlans(ctx context.Context, ownerID primitive.ObjectID) ([]domain.TrainingPlan, error)
	GetProfile(ctx context.Context, userID primitive.ObjectID) (*domain.Profile, error)
	UpsertProfile(ctx context.Context, profile *domain.Profile) (*domain.Profile, error)
	// CheckPlan re-derives the grid of a stored plan and reports repairs.
	// With repair set, missing days are persisted as rest days.
	CheckPlan(ctx context.Context, planID primitive.ObjectID, repair bool) (*CheckReport, error)
}

type planService struct {
	planRepo    repository.PlanRepository
	profileRepo repository.ProfileRepository
	logger      *zap.Logger
}

// NewPlanService creates a new instance of planService.
func NewPlanService(planRepo repository.PlanRepository, profileRepo repository.ProfileRepository, logger *zap.Logger) PlanService {
	return &planService{planRepo: planRepo, profileRepo: profileRepo, logger: logger}
}

// CreatePlan validates the supplied days and stores a new plan whose every
// covered date has a record.
func (s *planService) CreatePlan(ctx context.Context, ownerID primitive.ObjectID, name string, startDate civil.Date, totalWeeks int, days []domain.DayRecord) (*PlanView, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidPlan)
	}
	if !startDate.IsValid() || startDate.IsZero() {
		return nil, fmt.Errorf("%w: start date is required", ErrInvalidPlan)
	}
	if totalWeeks <= 0 || totalWeeks > 52 {
		return nil, fmt.Errorf("%w: total weeks must be between 1 and 52", ErrInvalidPlan)
	}

	plan := &domain.TrainingPlan{
		OwnerID:    ownerID,
		Name:       name,
		StartDate:  startDate,
		TotalWeeks: totalWeeks,
		Days:       make(domain.DayList, len(days)),
	}
	for _, d := range days {
		if !plan.Covers(d.Date) {
			return nil, fmt.Errorf("%w: %s is outside the plan", ErrInvalidPlan, d.Date)
		}
		if _, dup := plan.Days[d.Date]; dup {
			return nil, fmt.Errorf("%w: %s appears twice", ErrInvalidPlan, d.Date)
		}
		if strings.TrimSpace(d.Title) == "" {
			return nil, fmt.Errorf("%w: %s has no title", ErrInvalidPlan, d.Date)
		}
		if d.WorkoutKind == "" {
			d.WorkoutKind = domain.WorkoutNormal
		}
		plan.Days[d.Date] = d.Clone()
	}
	plan.FillRestDays()

	if _, err := s.planRepo.Create(ctx, plan); err != nil {
		return nil, err
	}
	s.logger.Info("plan created",
		zap.String("planId", plan.ID.Hex()),
		zap.String("ownerId", ownerID.Hex()),
		zap.Int("weeks", totalWeeks))
	return &PlanView{Plan: plan, Grid: grid.ForPlan(plan)}, nil
}

func (s *planService) GetPlanView(ctx context.Context, ownerID, planID primitive.ObjectID) (*PlanView, error) {
	plan, err := loadOwnedPlan(ctx, s.planRepo, ownerID, planID)
	if err != nil {
		return nil, err
	}
	return newPlanView(plan, s.logger), nil
}

func (s *planService) ListPlans(ctx context.Context, ownerID primitive.ObjectID) ([]domain.TrainingPlan, error) {
	return s.planRepo.GetByOwner(ctx, ownerID)
}

func (s *planService) GetProfile(ctx context.Context, userID primitive.ObjectID) (*domain.Profile, error) {
	p, err := s.profileRepo.GetByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrProfileNotFound
		}
		return nil, err
	}
	return p, nil
}

func (s *planService) UpsertProfile(ctx context.Context, profile *domain.Profile) (*domain.Profile, error) {
	if profile.TimeZone != "" {
		if _, err := time.LoadLocation(profile.TimeZone); err != nil {
			return nil, fmt.Errorf("%w: %q", ErrInvalidTimeZone, profile.TimeZone)
		}
	}
	if profile.WeeklyDistanceKm < 0 {
		profile.WeeklyDistanceKm = 0
	}
	if err := s.profileRepo.Upsert(ctx, profile); err != nil {
		return nil, err
	}
	return profile, nil
}

func (s *planService) CheckPlan(ctx context.Context, planID primitive.ObjectID, repair bool) (*CheckReport, error) {
	plan, err := s.planRepo.GetByID(ctx, planID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrPlanNotFound
		}
		return nil, err
	}
	g := grid.ForPlan(plan)
	report := &CheckReport{PlanID: plan.ID, Version: plan.Version, Repairs: g.Repairs}
	logRepairs(s.logger, plan, g)

	missing := 0
	for _, r := range g.Repairs {
		if r.Kind == grid.RepairMissingDay {
			missing++
		}
	}
	if !repair || missing == 0 {
		return report, nil
	}

	// Only in-range rest days are written back; stray days stay untouched.
	days := plan.Days.Clone()
	for _, r := range g.Repairs {
		if r.Kind == grid.RepairMissingDay {
			days[r.Date] = domain.RestDay(r.Date)
		}
	}
	version, err := s.planRepo.CommitDays(ctx, plan.ID, plan.Version, days)
	if err != nil {
		report.Err = err
		return report, nil
	}
	report.Version = version
	report.Repaired = true
	s.logger.Info("plan repaired",
		zap.String("planId", plan.ID.Hex()),
		zap.Int("restDaysAdded", missing),
		zap.Int64("version", version))
	return report, nil
}

// --- Helpers ---

func loadOwnedPlan(ctx context.Context, repo repository.PlanRepository, ownerID, planID primitive.ObjectID) (*domain.TrainingPlan, error) {
	plan, err := repo.GetByID(ctx, planID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrPlanNotFound
		}
		return nil, err
	}
	if plan.OwnerID != ownerID {
		return nil, ErrPlanAccessDenied
	}
	return plan, nil
}

func newPlanView(plan *domain.TrainingPlan, logger *zap.Logger) *PlanView {
	g := grid.ForPlan(plan)
	logRepairs(logger, plan, g)
	return &PlanView{Plan: plan, Grid: g}
}

// logRepairs reports normalization repairs. Plan use continues regardless.
func logRepairs(logger *zap.Logger, plan *domain.TrainingPlan, g grid.Grid) {
	for _, r := range g.Repairs {
		logger.Warn("plan normalization repair",
			zap.String("planId", plan.ID.Hex()),
			zap.Int64("version", plan.Version),
			zap.String("date", r.Date.String()),
			zap.String("kind", string(r.Kind)))
	}
}
