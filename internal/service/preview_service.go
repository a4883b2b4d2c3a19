package service

import (
	"alcyxob/run-coach/internal/domain"
	"alcyxob/run-coach/internal/repository"
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// --- Error Definitions ---
var (
	ErrExpiredPreview      = errors.New("preview has expired")
	ErrUnknownPreview      = errors.New("preview not found or no longer held")
	ErrVersionConflict     = errors.New("plan changed since the preview was drafted")
	ErrPreviewAlreadyHeld  = errors.New("a preview is already held for this plan")
	ErrInvalidModification = errors.New("preview cannot be applied to the plan")
)

// VersionConflictError reports the versions involved in a lost commit.
type VersionConflictError struct {
	Basis   int64
	Current int64
}

func (e *VersionConflictError) Error() string {
	return fmt.Sprintf("%v: preview drafted against version %d, plan is at version %d", ErrVersionConflict, e.Basis, e.Current)
}

// Is makes errors.Is(err, ErrVersionConflict) match.
func (e *VersionConflictError) Is(target error) bool {
	return target == ErrVersionConflict
}

// SnapshotArchiver stores a copy of every committed plan version.
type SnapshotArchiver interface {
	Archive(ctx context.Context, plan *domain.TrainingPlan) error
}

// PreviewService holds proposed edits and commits them against the plan's
// version.
type PreviewService interface {
	Hold(ctx context.Context, preview *domain.PreviewSet) error
	// Held returns the live held preview, or ErrUnknownPreview.
	Held(ctx context.Context, planID primitive.ObjectID) (*domain.PreviewSet, error)
	Approve(ctx context.Context, ownerID, planID primitive.ObjectID, previewID string) (*PlanView, error)
	Reject(ctx context.Context, ownerID, planID primitive.ObjectID, previewID string) error
}

type previewService struct {
	planRepo    repository.PlanRepository
	previewRepo repository.PreviewRepository
	archive     SnapshotArchiver // Optional
	logger      *zap.Logger
	now         func() time.Time
}

// NewPreviewService creates a new instance of previewService. archive may be nil.
func NewPreviewService(
	planRepo repository.PlanRepository,
	previewRepo repository.PreviewRepository,
	archive SnapshotArchiver,
	logger *zap.Logger,
	now func() time.Time,
) PreviewService {
	if now == nil {
		now = time.Now
	}
	return &previewService{
		planRepo:    planRepo,
		previewRepo: previewRepo,
		archive:     archive,
		logger:      logger,
		now:         now,
	}
}

// Hold stores preview as the plan's single outstanding preview. A held
// preview that has already expired is retired first.
func (s *previewService) Hold(ctx context.Context, preview *domain.PreviewSet) error {
	if preview == nil || preview.ID == "" || len(preview.Modifications) == 0 {
		return fmt.Errorf("%w: empty preview", ErrInvalidModification)
	}
	if _, err := s.Held(ctx, preview.PlanID); err == nil {
		return ErrPreviewAlreadyHeld
	} else if !errors.Is(err, ErrUnknownPreview) {
		return err
	}

	preview.State = domain.PreviewHeld
	if preview.CreatedAt.IsZero() {
		preview.CreatedAt = s.now().UTC()
	}
	if err := s.previewRepo.Create(ctx, preview); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return ErrPreviewAlreadyHeld
		}
		return err
	}
	s.logger.Info("preview held",
		zap.String("planId", preview.PlanID.Hex()),
		zap.String("previewId", preview.ID),
		zap.Int64("basisVersion", preview.BasisVersion),
		zap.Int("modifications", len(preview.Modifications)),
		zap.Time("expiresAt", preview.ExpiresAt))
	return nil
}

func (s *previewService) Held(ctx context.Context, planID primitive.ObjectID) (*domain.PreviewSet, error) {
	held, err := s.previewRepo.GetHeld(ctx, planID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUnknownPreview
		}
		return nil, err
	}
	if now := s.now(); held.ExpiredAt(now) {
		s.retire(ctx, held, domain.PreviewExpired, now)
		return nil, ErrUnknownPreview
	}
	return held, nil
}

// Approve commits the held preview. The checks run in a fixed order: expiry,
// identity, basis version, batch validity. Only a fully validated batch is
// written, and only if the stored version still equals the basis.
func (s *previewService) Approve(ctx context.Context, ownerID, planID primitive.ObjectID, previewID string) (*PlanView, error) {
	plan, err := loadOwnedPlan(ctx, s.planRepo, ownerID, planID)
	if err != nil {
		return nil, err
	}

	held, err := s.previewRepo.GetHeld(ctx, planID)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}

	now := s.now()
	if held != nil && held.ExpiredAt(now) {
		s.retire(ctx, held, domain.PreviewExpired, now)
		return nil, ErrExpiredPreview
	}
	if held == nil || held.ID != previewID {
		// A read may already have retired the preview as expired.
		return nil, s.missingPreview(ctx, planID, previewID)
	}
	if plan.Version != held.BasisVersion {
		s.retire(ctx, held, domain.PreviewRejected, now)
		return nil, &VersionConflictError{Basis: held.BasisVersion, Current: plan.Version}
	}

	days, err := applyModifications(plan, held.Modifications)
	if err != nil {
		s.retire(ctx, held, domain.PreviewRejected, now)
		s.logger.Warn("preview batch rejected",
			zap.String("planId", planID.Hex()),
			zap.String("previewId", held.ID),
			zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrInvalidModification, err)
	}

	version, err := s.planRepo.CommitDays(ctx, planID, held.BasisVersion, days)
	if err != nil {
		if errors.Is(err, repository.ErrVersionMismatch) {
			// Another commit won; the preview is left for that commit's
			// outcome to settle.
			current := held.BasisVersion + 1
			if latest, gerr := s.planRepo.GetByID(ctx, planID); gerr == nil {
				current = latest.Version
			}
			return nil, &VersionConflictError{Basis: held.BasisVersion, Current: current}
		}
		return nil, fmt.Errorf("commit plan days: %w", err)
	}

	s.markCommitted(ctx, held, now)

	// Authoritative post-commit read; the view is rebuilt from what is stored.
	committed, err := s.planRepo.GetByID(ctx, planID)
	if err != nil {
		return nil, fmt.Errorf("read committed plan: %w", err)
	}
	view := newPlanView(committed, s.logger)
	if committed.Version != version {
		s.logger.Warn("post-commit read returned a different version",
			zap.String("planId", planID.Hex()),
			zap.Int64("committed", version),
			zap.Int64("read", committed.Version))
	}
	s.logger.Info("preview committed",
		zap.String("planId", planID.Hex()),
		zap.String("previewId", held.ID),
		zap.Int64("version", committed.Version))

	if s.archive != nil {
		if err := s.archive.Archive(ctx, committed); err != nil {
			s.logger.Error("archive committed plan",
				zap.String("planId", planID.Hex()),
				zap.Int64("version", committed.Version),
				zap.Error(err))
		}
	}
	return view, nil
}

// missingPreview explains why previewID is not the plan's held preview.
func (s *previewService) missingPreview(ctx context.Context, planID primitive.ObjectID, previewID string) error {
	p, err := s.previewRepo.GetByID(ctx, previewID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrUnknownPreview
		}
		return err
	}
	if p.PlanID == planID && p.State == domain.PreviewExpired {
		return ErrExpiredPreview
	}
	return ErrUnknownPreview
}

// markCommitted moves the preview out of held once its days are written. The
// write already happened, so the transition is retried once on a context that
// outlives a cancelled request.
func (s *previewService) markCommitted(ctx context.Context, held *domain.PreviewSet, at time.Time) {
	err := s.previewRepo.Transition(ctx, held.ID, domain.PreviewHeld, domain.PreviewCommitted, at)
	if err == nil || errors.Is(err, repository.ErrStateMismatch) {
		return
	}
	s.logger.Warn("retrying preview commit transition",
		zap.String("previewId", held.ID),
		zap.Error(err))
	err = s.previewRepo.Transition(context.WithoutCancel(ctx), held.ID, domain.PreviewHeld, domain.PreviewCommitted, at)
	if err != nil && !errors.Is(err, repository.ErrStateMismatch) {
		s.logger.Error("preview state not recorded after commit",
			zap.String("planId", held.PlanID.Hex()),
			zap.String("previewId", held.ID),
			zap.Error(err))
	}
}

func (s *previewService) Reject(ctx context.Context, ownerID, planID primitive.ObjectID, previewID string) error {
	if _, err := loadOwnedPlan(ctx, s.planRepo, ownerID, planID); err != nil {
		return err
	}
	held, err := s.previewRepo.GetHeld(ctx, planID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrUnknownPreview
		}
		return err
	}
	if held.ID != previewID {
		return ErrUnknownPreview
	}
	if err := s.previewRepo.Transition(ctx, held.ID, domain.PreviewHeld, domain.PreviewRejected, s.now()); err != nil {
		if errors.Is(err, repository.ErrStateMismatch) {
			return ErrUnknownPreview
		}
		return err
	}
	s.logger.Info("preview rejected", zap.String("planId", planID.Hex()), zap.String("previewId", held.ID))
	return nil
}

// retire moves a held preview to a final state. Losing the race to another
// transition is fine: the preview is no longer held either way.
func (s *previewService) retire(ctx context.Context, p *domain.PreviewSet, to domain.PreviewState, at time.Time) {
	err := s.previewRepo.Transition(ctx, p.ID, domain.PreviewHeld, to, at)
	if err != nil && !errors.Is(err, repository.ErrStateMismatch) {
		s.logger.Warn("retire preview",
			zap.String("previewId", p.ID),
			zap.String("to", string(to)),
			zap.Error(err))
	}
}
