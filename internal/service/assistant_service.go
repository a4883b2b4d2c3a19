package service

import (
	"alcyxob/run-coach/internal/dates"
	"alcyxob/run-coach/internal/domain"
	"alcyxob/run-coach/internal/planner"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// --- Error Definitions ---
var (
	ErrPreviewPending  = errors.New("a preview is awaiting approval or rejection")
	ErrInvalidRequest  = errors.New("invalid assistant request")
	ErrUnsupportedMode = errors.New("unsupported assistant mode")
)

// OutcomeCommitted is reported after a successful commit.
const OutcomeCommitted = "committed"

// AssistantRequest is one turn of the plan conversation.
type AssistantRequest struct {
	Mode            planner.Mode
	Message         string // draft
	ClarificationID string // clarification_response
	OptionID        string // clarification_response
	PreviewID       string // commit
}

// AssistantReply is what the user sees after a turn.
type AssistantReply struct {
	Outcome       string
	Message       string
	Clarification *domain.ClarificationRequest
	Preview       *domain.PreviewSet
	Plan          *PlanView // Set after a commit
}

// AssistantService drives the plan conversation: draft, clarify, commit.
type AssistantService interface {
	Handle(ctx context.Context, ownerID, planID primitive.ObjectID, req AssistantRequest) (*AssistantReply, error)
	RejectPreview(ctx context.Context, ownerID, planID primitive.ObjectID, previewID string) error
	CancelClarification(ctx context.Context, ownerID, planID primitive.ObjectID) error
	PendingPreview(ctx context.Context, ownerID, planID primitive.ObjectID) (*domain.PreviewSet, error)
	PendingClarification(ctx context.Context, ownerID, planID primitive.ObjectID) (*domain.ClarificationRequest, error)
	Messages(ctx context.Context, ownerID, planID primitive.ObjectID) ([]domain.ChatMessage, error)
}

// AssistantDeps groups the collaborators of the assistant service.
type AssistantDeps struct {
	Plans          PlanService
	Previews       PreviewService
	Clarifications ClarificationService
	Transcript     TranscriptService
	Planner        planner.ModificationPlanner
	DefaultZone    *time.Location
	Logger         *zap.Logger
	Now            func() time.Time
}

type assistantService struct {
	AssistantDeps
}

// NewAssistantService creates a new instance of assistantService.
func NewAssistantService(deps AssistantDeps) AssistantService {
	if deps.DefaultZone == nil {
		deps.DefaultZone = time.UTC
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	return &assistantService{AssistantDeps: deps}
}

func (s *assistantService) Handle(ctx context.Context, ownerID, planID primitive.ObjectID, req AssistantRequest) (*AssistantReply, error) {
	switch req.Mode {
	case planner.ModeDraft:
		return s.draft(ctx, ownerID, planID, req)
	case planner.ModeClarificationResponse:
		return s.clarificationResponse(ctx, ownerID, planID, req)
	case planner.ModeCommit:
		return s.commit(ctx, ownerID, planID, req)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedMode, req.Mode)
	}
}

func (s *assistantService) draft(ctx context.Context, ownerID, planID primitive.ObjectID, req AssistantRequest) (*AssistantReply, error) {
	message := strings.TrimSpace(req.Message)
	if message == "" {
		return nil, fmt.Errorf("%w: message is required", ErrInvalidRequest)
	}
	view, err := s.Plans.GetPlanView(ctx, ownerID, planID)
	if err != nil {
		return nil, err
	}
	if _, err := s.Previews.Held(ctx, planID); err == nil {
		return nil, ErrPreviewPending
	} else if !errors.Is(err, ErrUnknownPreview) {
		return nil, err
	}

	base, err := s.baseRequest(ctx, ownerID, view.Plan)
	if err != nil {
		return nil, err
	}
	base.Mode = planner.ModeDraft
	base.Message = message
	base.ResolvedDates = dates.AnnotateOn(message, base.ReferenceDate)

	resp, err := s.Planner.Plan(ctx, base)
	if err != nil {
		s.Logger.Warn("draft failed", zap.String("planId", planID.Hex()), zap.Error(err))
		return nil, err
	}

	if resp.Outcome == planner.OutcomeClarification {
		resp.Clarification.PlanID = planID
		if err := s.Clarifications.Begin(ctx, resp.Clarification); err != nil {
			return nil, err
		}
	} else if err := s.Clarifications.Supersede(ctx, planID); err != nil {
		return nil, err
	}
	if err := s.holdPreview(ctx, planID, resp); err != nil {
		return nil, err
	}

	if err := s.Transcript.Record(ctx, planID, ownerID,
		domain.ChatMessage{Role: domain.RoleUser, Content: message},
		domain.ChatMessage{Role: domain.RoleAssistant, Content: replyText(resp)},
	); err != nil {
		return nil, err
	}
	return replyFor(resp), nil
}

func (s *assistantService) clarificationResponse(ctx context.Context, ownerID, planID primitive.ObjectID, req AssistantRequest) (*AssistantReply, error) {
	if req.ClarificationID == "" || req.OptionID == "" {
		return nil, fmt.Errorf("%w: clarificationId and optionId are required", ErrInvalidRequest)
	}
	view, err := s.Plans.GetPlanView(ctx, ownerID, planID)
	if err != nil {
		return nil, err
	}
	base, err := s.baseRequest(ctx, ownerID, view.Plan)
	if err != nil {
		return nil, err
	}

	// The preview is held and the exchange recorded before the request
	// counts as resolved.
	sel, err := s.Clarifications.Select(ctx, planID, req.ClarificationID, req.OptionID, base, func(sel *Selection) error {
		if err := s.holdPreview(ctx, planID, sel.Response); err != nil {
			return err
		}
		userText := sel.Option.Label
		if userText == "" {
			userText = sel.Option.ISODate
		}
		return s.Transcript.Record(ctx, planID, ownerID,
			domain.ChatMessage{Role: domain.RoleUser, Content: userText},
			domain.ChatMessage{Role: domain.RoleAssistant, Content: replyText(sel.Response)},
		)
	})
	if err != nil {
		return nil, err
	}
	return replyFor(sel.Response), nil
}

func (s *assistantService) commit(ctx context.Context, ownerID, planID primitive.ObjectID, req AssistantRequest) (*AssistantReply, error) {
	if req.PreviewID == "" {
		return nil, fmt.Errorf("%w: previewId is required", ErrInvalidRequest)
	}
	view, err := s.Previews.Approve(ctx, ownerID, planID, req.PreviewID)
	if err != nil {
		return nil, err
	}
	text := fmt.Sprintf("Done, your plan is updated (version %d).", view.Plan.Version)
	if err := s.Transcript.Record(ctx, planID, ownerID, domain.ChatMessage{Role: domain.RoleAssistant, Content: text}); err != nil {
		// The commit is durable; a missing confirmation line is not worth failing it.
		s.Logger.Error("record commit confirmation", zap.String("planId", planID.Hex()), zap.Error(err))
	}
	return &AssistantReply{Outcome: OutcomeCommitted, Message: text, Plan: view}, nil
}

func (s *assistantService) RejectPreview(ctx context.Context, ownerID, planID primitive.ObjectID, previewID string) error {
	if err := s.Previews.Reject(ctx, ownerID, planID, previewID); err != nil {
		return err
	}
	return s.Transcript.Record(ctx, planID, ownerID,
		domain.ChatMessage{Role: domain.RoleAssistant, Content: "Okay, I left your plan as it was."})
}

func (s *assistantService) CancelClarification(ctx context.Context, ownerID, planID primitive.ObjectID) error {
	if _, err := s.Plans.GetPlanView(ctx, ownerID, planID); err != nil {
		return err
	}
	return s.Clarifications.Cancel(ctx, planID)
}

func (s *assistantService) PendingPreview(ctx context.Context, ownerID, planID primitive.ObjectID) (*domain.PreviewSet, error) {
	if _, err := s.Plans.GetPlanView(ctx, ownerID, planID); err != nil {
		return nil, err
	}
	return s.Previews.Held(ctx, planID)
}

func (s *assistantService) PendingClarification(ctx context.Context, ownerID, planID primitive.ObjectID) (*domain.ClarificationRequest, error) {
	if _, err := s.Plans.GetPlanView(ctx, ownerID, planID); err != nil {
		return nil, err
	}
	return s.Clarifications.Pending(ctx, planID)
}

func (s *assistantService) Messages(ctx context.Context, ownerID, planID primitive.ObjectID) ([]domain.ChatMessage, error) {
	if _, err := s.Plans.GetPlanView(ctx, ownerID, planID); err != nil {
		return nil, err
	}
	return s.Transcript.History(ctx, planID)
}

// --- Helpers ---

// baseRequest gathers the planner context shared by every mode. The reference
// date is today in the runner's time zone.
func (s *assistantService) baseRequest(ctx context.Context, ownerID primitive.ObjectID, plan *domain.TrainingPlan) (planner.Request, error) {
	profile, err := s.Plans.GetProfile(ctx, ownerID)
	if err != nil && !errors.Is(err, ErrProfileNotFound) {
		return planner.Request{}, err
	}
	loc := profile.Location(s.DefaultZone)

	window, err := s.Transcript.Window(ctx, plan.ID)
	if err != nil {
		return planner.Request{}, err
	}
	return planner.Request{
		ReferenceDate: dates.Today(s.Now(), loc),
		TimeZone:      loc.String(),
		Plan:          planner.SnapshotOf(plan),
		Transcript:    window,
		Profile:       profile,
	}, nil
}

func (s *assistantService) holdPreview(ctx context.Context, planID primitive.ObjectID, resp *planner.Response) error {
	if resp.Outcome != planner.OutcomePreview || resp.Preview == nil {
		return nil
	}
	resp.Preview.PlanID = planID
	if resp.Preview.AssistantMessage == "" {
		resp.Preview.AssistantMessage = resp.Message
	}
	return s.Previews.Hold(ctx, resp.Preview)
}

func replyText(resp *planner.Response) string {
	if resp.Message != "" {
		return resp.Message
	}
	if resp.Clarification != nil {
		return resp.Clarification.Question
	}
	return ""
}

func replyFor(resp *planner.Response) *AssistantReply {
	return &AssistantReply{
		Outcome:       string(resp.Outcome),
		Message:       replyText(resp),
		Clarification: resp.Clarification,
		Preview:       resp.Preview,
	}
}
