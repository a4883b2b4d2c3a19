package service

import (
	"alcyxob/run-coach/internal/dates"
	"alcyxob/run-coach/internal/domain"
	"alcyxob/run-coach/internal/planner"
	"alcyxob/run-coach/internal/repository"
	"context"
	"errors"
	"fmt"

	"cloud.google.com/go/civil"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// --- Error Definitions ---
var (
	ErrUnknownClarification = errors.New("clarification not found or no longer awaiting selection")
	ErrInvalidOption        = errors.New("option is not one of the offered choices")
)

// Selection is the result of answering a clarification.
type Selection struct {
	Option   domain.ClarificationOption
	Message  string // Original message with the chosen date substituted
	Response *planner.Response
}

// ClarificationService runs the one-live-question-per-plan sub-dialog that
// pins an ambiguous phrase to a single date.
type ClarificationService interface {
	Begin(ctx context.Context, req *domain.ClarificationRequest) error
	// Pending returns the awaiting request, or ErrUnknownClarification.
	Pending(ctx context.Context, planID primitive.ObjectID) (*domain.ClarificationRequest, error)
	// Select answers the awaiting request and re-asks the planner. base
	// carries the plan snapshot and context for the follow-up request. A
	// non-nil accept runs before the request is resolved; its error leaves
	// the request awaiting.
	Select(ctx context.Context, planID primitive.ObjectID, clarificationID, optionID string, base planner.Request, accept func(*Selection) error) (*Selection, error)
	Cancel(ctx context.Context, planID primitive.ObjectID) error
	// Supersede retires the awaiting request because the user moved on.
	Supersede(ctx context.Context, planID primitive.ObjectID) error
}

type clarificationService struct {
	repo    repository.ClarificationRepository
	planner planner.ModificationPlanner
	logger  *zap.Logger
}

// NewClarificationService creates a new instance of clarificationService.
func NewClarificationService(repo repository.ClarificationRepository, p planner.ModificationPlanner, logger *zap.Logger) ClarificationService {
	return &clarificationService{repo: repo, planner: p, logger: logger}
}

func (s *clarificationService) Begin(ctx context.Context, req *domain.ClarificationRequest) error {
	if req == nil || req.ID == "" {
		return fmt.Errorf("%w: empty clarification", ErrUnknownClarification)
	}
	if err := s.repo.Create(ctx, req); err != nil {
		return err
	}
	s.logger.Info("clarification awaiting selection",
		zap.String("planId", req.PlanID.Hex()),
		zap.String("clarificationId", req.ID),
		zap.String("phrase", req.Context.DetectedPhrase),
		zap.Int("options", len(req.Options)))
	return nil
}

func (s *clarificationService) Pending(ctx context.Context, planID primitive.ObjectID) (*domain.ClarificationRequest, error) {
	req, err := s.repo.GetAwaiting(ctx, planID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUnknownClarification
		}
		return nil, err
	}
	return req, nil
}

// Select validates the choice, substitutes the chosen date into the original
// message and re-invokes the planner. The request is marked resolved only
// after the planner answered and accept succeeded; any failure before that
// leaves it awaiting. A new clarification in the answer becomes the awaiting
// request.
func (s *clarificationService) Select(ctx context.Context, planID primitive.ObjectID, clarificationID, optionID string, base planner.Request, accept func(*Selection) error) (*Selection, error) {
	pending, err := s.Pending(ctx, planID)
	if err != nil {
		return nil, err
	}
	if pending.ID != clarificationID {
		return nil, ErrUnknownClarification
	}
	opt, ok := pending.Option(optionID)
	if !ok {
		return nil, ErrInvalidOption
	}
	chosen, err := civil.ParseDate(opt.ISODate)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidOption, err)
	}

	pc := pending.Context
	phrase := dates.Resolution{Phrase: pc.DetectedPhrase, Start: pc.PhraseStart, End: pc.PhraseEnd}
	message := dates.Substitute(pc.OriginalMessage, phrase, chosen)

	req := base
	req.Mode = planner.ModeClarificationResponse
	req.Message = message
	req.ResolvedDates = dates.AnnotateOn(message, base.ReferenceDate)
	req.Clarification = &planner.ClarificationAnswer{
		ClarificationID: pending.ID,
		SelectedDate:    chosen,
		OriginalMessage: pc.OriginalMessage,
		DetectedPhrase:  pc.DetectedPhrase,
	}

	resp, err := s.planner.Plan(ctx, req)
	if err != nil {
		return nil, err
	}
	sel := &Selection{Option: opt, Message: message, Response: resp}
	if accept != nil {
		if err := accept(sel); err != nil {
			return nil, err
		}
	}

	if err := s.repo.Transition(ctx, pending.ID, domain.ClarificationAwaiting, domain.ClarificationResolved); err != nil {
		if errors.Is(err, repository.ErrStateMismatch) {
			return nil, ErrUnknownClarification
		}
		return nil, err
	}
	s.logger.Info("clarification resolved",
		zap.String("planId", planID.Hex()),
		zap.String("clarificationId", pending.ID),
		zap.String("date", opt.ISODate))

	if resp.Outcome == planner.OutcomeClarification && resp.Clarification != nil {
		resp.Clarification.PlanID = planID
		if err := s.Begin(ctx, resp.Clarification); err != nil {
			return nil, err
		}
	}
	return sel, nil
}

func (s *clarificationService) Cancel(ctx context.Context, planID primitive.ObjectID) error {
	return s.close(ctx, planID, domain.ClarificationCancelled)
}

func (s *clarificationService) Supersede(ctx context.Context, planID primitive.ObjectID) error {
	err := s.close(ctx, planID, domain.ClarificationSuperseded)
	if errors.Is(err, ErrUnknownClarification) {
		return nil
	}
	return err
}

func (s *clarificationService) close(ctx context.Context, planID primitive.ObjectID, to domain.ClarificationState) error {
	pending, err := s.Pending(ctx, planID)
	if err != nil {
		return err
	}
	if err := s.repo.Transition(ctx, pending.ID, domain.ClarificationAwaiting, to); err != nil {
		if errors.Is(err, repository.ErrStateMismatch) {
			return ErrUnknownClarification
		}
		return err
	}
	s.logger.Info("clarification closed",
		zap.String("planId", planID.Hex()),
		zap.String("clarificationId", pending.ID),
		zap.String("state", string(to)))
	return nil
}
